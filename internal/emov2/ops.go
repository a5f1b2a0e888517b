package emov2

import "fmt"

// OpKind selects the expansion operator of an inverted residual block.
type OpKind int

const (
	// OpConv is a 1x1 (or configured-kernel) convolution expansion.
	OpConv OpKind = iota
	// OpAttnRemote is windowed self-attention over strided windows.
	OpAttnRemote
	// OpAttnClose is windowed self-attention over contiguous windows.
	OpAttnClose
	// OpAttnHybrid runs both window tilings over a shared projection.
	OpAttnHybrid
)

// String returns the operator name.
func (k OpKind) String() string {
	switch k {
	case OpConv:
		return "conv"
	case OpAttnRemote:
		return "attn_remote"
	case OpAttnClose:
		return "attn_close"
	case OpAttnHybrid:
		return "attn_hybrid"
	default:
		return fmt.Sprintf("OpKind(%d)", int(k))
	}
}
