// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the neural network layers the EMOv2 backbone is built
// from.
//
// # Overview
//
// This package contains:
//   - Layers: Conv2D (grouped), BatchNorm2d, LayerNorm2d, ConvNormAct
//   - Activations: ReLU, SiLU, GELU, Identity
//   - Regularization: Dropout, DropPath, LayerScale2D
//   - Utilities: Module interface, Parameter, norm/act factories
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/emov2/nn"
//	    "github.com/born-ml/emov2/backend/cpu"
//	)
//
//	func main() {
//	    backend := cpu.New()
//	    conv := nn.NewConvNormAct(nn.ConvNormActConfig{
//	        DimIn: 3, DimOut: 32, KernelSize: 3, Stride: 2,
//	        Bias: true, NormLayer: nn.NormBatch, ActLayer: nn.ActSiLU,
//	    }, backend)
//	    _ = conv
//	}
package nn
