// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package emov2 provides the public API for the EMOv2 image backbone: a
// convolution/attention hybrid feature extractor built from inverted
// residual blocks with efficient windowed multi-head self-attention.
//
// Example:
//
//	backend := cpu.New()
//	model := emov2.New(emov2.DefaultConfig(), backend)
//	x := tensor.Randn[float32](tensor.Shape{1, 3, 224, 224}, backend)
//	features := model.Forward(x)  // one map per configured output index
package emov2

import (
	"github.com/born-ml/emov2/internal/emov2"
	"github.com/born-ml/emov2/internal/tensor"
)

// Config describes an EMOv2 backbone variant.
type Config = emov2.Config

// OpKind selects the expansion operator of an inverted residual block.
type OpKind = emov2.OpKind

// Expansion operator kinds.
const (
	OpConv       OpKind = emov2.OpConv
	OpAttnRemote OpKind = emov2.OpAttnRemote
	OpAttnClose  OpKind = emov2.OpAttnClose
	OpAttnHybrid OpKind = emov2.OpAttnHybrid
)

// Backbone is the EMOv2 feature extractor.
type Backbone[B tensor.Backend] = emov2.Backbone[B]

// WindowAttention is efficient windowed multi-head self-attention.
type WindowAttention[B tensor.Backend] = emov2.WindowAttention[B]

// AttentionConfig describes one windowed self-attention operator.
type AttentionConfig = emov2.AttentionConfig

// InvertedResidual is the backbone's inverted residual block.
type InvertedResidual[B tensor.Backend] = emov2.InvertedResidual[B]

// BlockConfig describes one inverted residual block.
type BlockConfig = emov2.BlockConfig

// DefaultConfig returns the detection backbone configuration.
func DefaultConfig() Config {
	return emov2.DefaultConfig()
}

// New builds a backbone from the configuration. Invalid configurations panic.
func New[B tensor.Backend](cfg Config, backend B) *Backbone[B] {
	return emov2.New(cfg, backend)
}

// NewWindowAttention builds a windowed attention operator of the given kind.
func NewWindowAttention[B tensor.Backend](kind OpKind, cfg AttentionConfig, backend B) *WindowAttention[B] {
	return emov2.NewWindowAttention(kind, cfg, backend)
}

// NewInvertedResidual builds an inverted residual block from its configuration.
func NewInvertedResidual[B tensor.Backend](cfg BlockConfig, backend B) *InvertedResidual[B] {
	return emov2.NewInvertedResidual(cfg, backend)
}

// Register adds a named configuration builder to the variant registry.
func Register(name string, builder func() Config) {
	emov2.Register(name, builder)
}

// VariantConfig returns the configuration of a registered variant.
func VariantConfig(name string) (Config, error) {
	return emov2.VariantConfig(name)
}

// Variants returns the registered variant names, sorted.
func Variants() []string {
	return emov2.Variants()
}
