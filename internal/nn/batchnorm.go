package nn

import (
	"fmt"
	"math"

	"github.com/born-ml/emov2/internal/tensor"
)

// BatchNorm2d applies batch normalization over the channel dimension of an
// NCHW tensor.
//
// Training mode normalizes with the current batch statistics and updates the
// running mean/variance buffers as a side effect; evaluation mode normalizes
// with the running statistics and mutates nothing. The running buffers are
// the only shared state a forward pass writes.
type BatchNorm2d[B tensor.Backend] struct {
	numFeatures int
	eps         float32
	momentum    float32
	training    bool

	weight *Parameter[B] // scale (gamma) [C]
	bias   *Parameter[B] // shift (beta) [C]

	runningMean *tensor.Tensor[float32, B] // buffer [C]
	runningVar  *tensor.Tensor[float32, B] // buffer [C]

	backend B
}

// NewBatchNorm2d creates a batch normalization layer with scale 1, shift 0,
// running mean 0, running variance 1.
func NewBatchNorm2d[B tensor.Backend](numFeatures int, backend B) *BatchNorm2d[B] {
	if numFeatures <= 0 {
		panic(fmt.Sprintf("batchnorm2d: invalid feature count %d", numFeatures))
	}
	shape := tensor.Shape{numFeatures}
	return &BatchNorm2d[B]{
		numFeatures: numFeatures,
		eps:         1e-5,
		momentum:    0.1,
		training:    true,
		weight:      NewParameter("weight", Ones(shape, backend)),
		bias:        NewParameter("bias", Zeros(shape, backend)),
		runningMean: Zeros(shape, backend),
		runningVar:  Ones(shape, backend),
		backend:     backend,
	}
}

// SetTraining switches between batch statistics (training) and running
// statistics (evaluation).
func (bn *BatchNorm2d[B]) SetTraining(training bool) {
	bn.training = training
}

// Training reports the current mode.
func (bn *BatchNorm2d[B]) Training() bool {
	return bn.training
}

// Forward normalizes the input.
//
// Input/output: [N, C, H, W] with C == numFeatures.
func (bn *BatchNorm2d[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) != 4 || shape[1] != bn.numFeatures {
		panic(fmt.Sprintf("batchnorm2d: expected [N,%d,H,W] input, got %v", bn.numFeatures, shape))
	}
	n, c, h, w := shape[0], shape[1], shape[2], shape[3]
	plane := h * w
	count := n * plane

	in := input.Data()
	out := tensor.Zeros[float32](shape, bn.backend)
	outData := out.Data()

	gamma := bn.weight.Tensor().Data()
	beta := bn.bias.Tensor().Data()
	rMean := bn.runningMean.Data()
	rVar := bn.runningVar.Data()

	for ch := 0; ch < c; ch++ {
		var mean, variance float32
		if bn.training {
			var sum float64
			for b := 0; b < n; b++ {
				base := (b*c + ch) * plane
				for i := 0; i < plane; i++ {
					sum += float64(in[base+i])
				}
			}
			mean = float32(sum / float64(count))

			var sqSum float64
			for b := 0; b < n; b++ {
				base := (b*c + ch) * plane
				for i := 0; i < plane; i++ {
					d := float64(in[base+i] - mean)
					sqSum += d * d
				}
			}
			variance = float32(sqSum / float64(count)) // biased, used for normalization

			// Running stats use the unbiased variance estimate.
			unbiased := variance
			if count > 1 {
				unbiased = float32(sqSum / float64(count-1))
			}
			rMean[ch] = (1-bn.momentum)*rMean[ch] + bn.momentum*mean
			rVar[ch] = (1-bn.momentum)*rVar[ch] + bn.momentum*unbiased
		} else {
			mean, variance = rMean[ch], rVar[ch]
		}

		scale := gamma[ch] / float32(math.Sqrt(float64(variance)+float64(bn.eps)))
		shift := beta[ch] - mean*scale
		for b := 0; b < n; b++ {
			base := (b*c + ch) * plane
			for i := 0; i < plane; i++ {
				outData[base+i] = in[base+i]*scale + shift
			}
		}
	}
	return out
}

// Parameters returns the scale and shift. Running statistics are buffers,
// not trainable parameters.
func (bn *BatchNorm2d[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{bn.weight, bn.bias}
}

// StateDict returns parameters and running-statistic buffers.
func (bn *BatchNorm2d[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{
		"weight":       bn.weight.Tensor().Raw(),
		"bias":         bn.bias.Tensor().Raw(),
		"running_mean": bn.runningMean.Raw(),
		"running_var":  bn.runningVar.Raw(),
	}
}

// LoadStateDict copies matching entries into parameters and buffers.
func (bn *BatchNorm2d[B]) LoadStateDict(sd map[string]*tensor.RawTensor) error {
	targets := map[string]*tensor.RawTensor{
		"weight":       bn.weight.Tensor().Raw(),
		"bias":         bn.bias.Tensor().Raw(),
		"running_mean": bn.runningMean.Raw(),
		"running_var":  bn.runningVar.Raw(),
	}
	for name, dst := range targets {
		if src, ok := sd[name]; ok {
			if err := copyInto("batchnorm2d."+name, dst, src); err != nil {
				return err
			}
		}
	}
	return nil
}

// SanitizeRunningStats replaces non-finite running statistics: NaN becomes 0,
// +Inf becomes 1, -Inf becomes -1. Long mixed-precision runs can poison the
// buffers; sanitizing keeps evaluation usable.
func (bn *BatchNorm2d[B]) SanitizeRunningStats() {
	for _, buf := range [][]float32{bn.runningMean.Data(), bn.runningVar.Data()} {
		for i, v := range buf {
			f := float64(v)
			switch {
			case math.IsNaN(f):
				buf[i] = 0
			case math.IsInf(f, 1):
				buf[i] = 1
			case math.IsInf(f, -1):
				buf[i] = -1
			}
		}
	}
}
