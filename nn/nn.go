// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"github.com/born-ml/emov2/internal/nn"
	"github.com/born-ml/emov2/internal/tensor"
)

// Module interface defines the common interface for all neural network modules.
type Module[B tensor.Backend] = nn.Module[B]

// Trainable is implemented by modules whose forward pass depends on training
// vs evaluation mode.
type Trainable = nn.Trainable

// Parameter represents a trainable parameter in a neural network.
type Parameter[B tensor.Backend] = nn.Parameter[B]

// NewParameter creates a new parameter with the given name and tensor.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return nn.NewParameter(name, t)
}

// Layers

// Conv2D represents a grouped 2D convolutional layer.
type Conv2D[B tensor.Backend] = nn.Conv2D[B]

// NewConv2D creates a new 2D convolutional layer.
//
// Example:
//
//	backend := cpu.New()
//	conv := nn.NewConv2D(3, 32, 3, 2, 1, 1, true, backend)  // in=3, out=32, kernel=3, stride=2, padding=1, groups=1, useBias=true
func NewConv2D[B tensor.Backend](
	inChannels, outChannels, kernelSize, stride, padding, groups int,
	useBias bool,
	backend B,
) *Conv2D[B] {
	return nn.NewConv2D(inChannels, outChannels, kernelSize, stride, padding, groups, useBias, backend)
}

// BatchNorm2d represents 2D batch normalization over NCHW channels.
type BatchNorm2d[B tensor.Backend] = nn.BatchNorm2d[B]

// NewBatchNorm2d creates a batch normalization layer over numFeatures channels.
func NewBatchNorm2d[B tensor.Backend](numFeatures int, backend B) *BatchNorm2d[B] {
	return nn.NewBatchNorm2d(numFeatures, backend)
}

// LayerNorm2d represents per-position layer normalization across NCHW channels.
type LayerNorm2d[B tensor.Backend] = nn.LayerNorm2d[B]

// NewLayerNorm2d creates a layer normalization layer over numFeatures channels.
func NewLayerNorm2d[B tensor.Backend](numFeatures int, backend B) *LayerNorm2d[B] {
	return nn.NewLayerNorm2d(numFeatures, backend)
}

// ConvNormAct is the convolution / normalization / activation composite.
type ConvNormAct[B tensor.Backend] = nn.ConvNormAct[B]

// ConvNormActConfig describes one conv-norm-act composite.
type ConvNormActConfig = nn.ConvNormActConfig

// NewConvNormAct builds the composite from its configuration.
//
// Example:
//
//	backend := cpu.New()
//	stemConv := nn.NewConvNormAct(nn.ConvNormActConfig{
//	    DimIn: 3, DimOut: 32, KernelSize: 3, Stride: 2,
//	    Bias: true, NormLayer: "bn_2d", ActLayer: "silu",
//	}, backend)
func NewConvNormAct[B tensor.Backend](cfg ConvNormActConfig, backend B) *ConvNormAct[B] {
	return nn.NewConvNormAct(cfg, backend)
}

// Activations

// ReLU represents the Rectified Linear Unit activation function.
type ReLU[B tensor.Backend] = nn.ReLU[B]

// NewReLU creates a new ReLU activation layer.
func NewReLU[B tensor.Backend]() *ReLU[B] {
	return nn.NewReLU[B]()
}

// SiLU represents the Sigmoid Linear Unit (swish) activation function.
type SiLU[B tensor.Backend] = nn.SiLU[B]

// NewSiLU creates a new SiLU activation layer.
func NewSiLU[B tensor.Backend]() *SiLU[B] {
	return nn.NewSiLU[B]()
}

// GELU represents the Gaussian Error Linear Unit activation function.
type GELU[B tensor.Backend] = nn.GELU[B]

// NewGELU creates a new GELU activation layer.
func NewGELU[B tensor.Backend]() *GELU[B] {
	return nn.NewGELU[B]()
}

// Identity passes its input through unchanged.
type Identity[B tensor.Backend] = nn.Identity[B]

// NewIdentity creates a new identity layer.
func NewIdentity[B tensor.Backend]() *Identity[B] {
	return nn.NewIdentity[B]()
}

// Regularization

// Dropout randomly zeroes elements during training.
type Dropout[B tensor.Backend] = nn.Dropout[B]

// NewDropout creates a dropout layer with drop probability p.
func NewDropout[B tensor.Backend](p float32) *Dropout[B] {
	return nn.NewDropout[B](p)
}

// DropPath implements stochastic depth: whole residual branches are dropped
// per sample during training.
type DropPath[B tensor.Backend] = nn.DropPath[B]

// NewDropPath creates a stochastic depth layer with drop probability p.
func NewDropPath[B tensor.Backend](p float32) *DropPath[B] {
	return nn.NewDropPath[B](p)
}

// LayerScale2D multiplies each channel by a learned per-channel scale.
type LayerScale2D[B tensor.Backend] = nn.LayerScale2D[B]

// NewLayerScale2D creates a per-channel scale over dim channels.
func NewLayerScale2D[B tensor.Backend](dim int, initValue float32, backend B) *LayerScale2D[B] {
	return nn.NewLayerScale2D(dim, initValue, backend)
}

// Factories

// Normalization and activation tags accepted by NewNorm and NewAct.
const (
	NormBatch = nn.NormBatch
	NormLayer = nn.NormLayer
	NormNone  = nn.NormNone

	ActSiLU = nn.ActSiLU
	ActGELU = nn.ActGELU
	ActReLU = nn.ActReLU
	ActNone = nn.ActNone
)

// NewNorm builds a normalization module over dim channels from its tag.
// Panics on an unknown tag.
func NewNorm[B tensor.Backend](tag string, dim int, backend B) Module[B] {
	return nn.NewNorm(tag, dim, backend)
}

// NewAct builds an activation module from its tag. Panics on an unknown tag.
func NewAct[B tensor.Backend](tag string) Module[B] {
	return nn.NewAct[B](tag)
}
