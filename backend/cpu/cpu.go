// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the CPU compute backend.
//
// All tensor operations are implemented in pure Go; matrix products go
// through gonum's BLAS bindings and large loops are chunked across a worker
// pool sized to GOMAXPROCS.
package cpu

import (
	internalcpu "github.com/born-ml/emov2/internal/backend/cpu"
	"github.com/born-ml/emov2/tensor"
)

// Backend represents the CPU backend implementation.
type Backend = internalcpu.CPUBackend

// Compile-time check that Backend implements tensor.Backend.
var _ tensor.Backend = (*Backend)(nil)

// New creates a new CPU backend.
//
// Example:
//
//	import (
//	    "github.com/born-ml/emov2/backend/cpu"
//	    "github.com/born-ml/emov2/tensor"
//	)
//
//	func main() {
//	    backend := cpu.New()
//	    x := tensor.Zeros[float32](tensor.Shape{1, 3, 224, 224}, backend)
//	}
func New() *Backend {
	return internalcpu.New()
}
