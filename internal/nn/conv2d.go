package nn

import (
	"fmt"

	"github.com/born-ml/emov2/internal/tensor"
)

// Conv2D is a grouped 2D convolutional layer.
//
// Input shape:  [batch, in_channels, height, width]
// Weight shape: [out_channels, in_channels/groups, kernel_h, kernel_w]
// Bias shape:   [out_channels]
// Output shape: [batch, out_channels, out_h, out_w]
//
// groups=in_channels with out_channels=in_channels gives a depthwise
// convolution, the local-mixing operator of the inverted residual block.
type Conv2D[B tensor.Backend] struct {
	inChannels  int
	outChannels int
	kernelSize  int
	stride      int
	padding     int
	groups      int
	useBias     bool

	weight *Parameter[B]
	bias   *Parameter[B] // nil without bias

	backend B
}

// NewConv2D creates a new grouped 2D convolutional layer with Xavier-initialized
// weights and zero bias. Square kernels only; padding is explicit (the
// conv-norm-act composite passes kernel/2 for "same" spatial behavior).
func NewConv2D[B tensor.Backend](
	inChannels, outChannels, kernelSize, stride, padding, groups int,
	useBias bool,
	backend B,
) *Conv2D[B] {
	if inChannels <= 0 || outChannels <= 0 {
		panic(fmt.Sprintf("conv2d: invalid channels in=%d, out=%d", inChannels, outChannels))
	}
	if kernelSize <= 0 || stride <= 0 || padding < 0 {
		panic(fmt.Sprintf("conv2d: invalid kernel=%d stride=%d padding=%d", kernelSize, stride, padding))
	}
	if groups <= 0 || inChannels%groups != 0 || outChannels%groups != 0 {
		panic(fmt.Sprintf("conv2d: channels (in=%d, out=%d) not divisible by groups=%d", inChannels, outChannels, groups))
	}

	weightShape := tensor.Shape{outChannels, inChannels / groups, kernelSize, kernelSize}
	fanIn := (inChannels / groups) * kernelSize * kernelSize
	fanOut := (outChannels / groups) * kernelSize * kernelSize
	weightParam := NewParameter("weight", Xavier(fanIn, fanOut, weightShape, backend))

	var biasParam *Parameter[B]
	if useBias {
		biasParam = NewParameter("bias", Zeros(tensor.Shape{outChannels}, backend))
	}

	return &Conv2D[B]{
		inChannels:  inChannels,
		outChannels: outChannels,
		kernelSize:  kernelSize,
		stride:      stride,
		padding:     padding,
		groups:      groups,
		useBias:     useBias,
		weight:      weightParam,
		bias:        biasParam,
		backend:     backend,
	}
}

// Forward performs the convolution.
//
// Input: [batch, in_channels, H, W]
// Output: [batch, out_channels, H_out, W_out]
func (c *Conv2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	inputShape := input.Shape()
	if len(inputShape) != 4 {
		panic(fmt.Sprintf("conv2d: expected 4D input [N,C,H,W], got %dD", len(inputShape)))
	}
	if inputShape[1] != c.inChannels {
		panic(fmt.Sprintf("conv2d: input channels %d != expected %d", inputShape[1], c.inChannels))
	}

	outputRaw := c.backend.Conv2D(input.Raw(), c.weight.Tensor().Raw(), c.stride, c.padding, c.groups)
	output := tensor.New[float32, B](outputRaw, c.backend)

	if c.useBias {
		// Broadcast bias [C_out] as [1, C_out, 1, 1].
		biasReshaped := c.bias.Tensor().Reshape(1, c.outChannels, 1, 1)
		output = output.Add(biasReshaped)
	}
	return output
}

// Parameters returns the weight (and bias, if present).
func (c *Conv2D[B]) Parameters() []*Parameter[B] {
	if c.useBias {
		return []*Parameter[B]{c.weight, c.bias}
	}
	return []*Parameter[B]{c.weight}
}

// StateDict returns the layer's parameters keyed "weight" and "bias".
func (c *Conv2D[B]) StateDict() map[string]*tensor.RawTensor {
	sd := map[string]*tensor.RawTensor{"weight": c.weight.Tensor().Raw()}
	if c.useBias {
		sd["bias"] = c.bias.Tensor().Raw()
	}
	return sd
}

// LoadStateDict copies matching entries into the layer's parameters.
func (c *Conv2D[B]) LoadStateDict(sd map[string]*tensor.RawTensor) error {
	if src, ok := sd["weight"]; ok {
		if err := copyInto("conv2d.weight", c.weight.Tensor().Raw(), src); err != nil {
			return err
		}
	}
	if src, ok := sd["bias"]; ok && c.useBias {
		if err := copyInto("conv2d.bias", c.bias.Tensor().Raw(), src); err != nil {
			return err
		}
	}
	return nil
}

// OutChannels returns the number of output channels.
func (c *Conv2D[B]) OutChannels() int { return c.outChannels }

// InChannels returns the number of input channels.
func (c *Conv2D[B]) InChannels() int { return c.inChannels }

// Stride returns the stride.
func (c *Conv2D[B]) Stride() int { return c.stride }

// String returns a string representation of the layer.
func (c *Conv2D[B]) String() string {
	return fmt.Sprintf("Conv2D(in=%d, out=%d, kernel=%d, stride=%d, padding=%d, groups=%d, bias=%v)",
		c.inChannels, c.outChannels, c.kernelSize, c.stride, c.padding, c.groups, c.useBias)
}
