// Package serialization implements reading and writing model checkpoints in
// the SafeTensors format, the standard format for HuggingFace models.
//
// Reading converts F16 and BF16 entries to float32 so checkpoints exported
// from half-precision training runs load directly.
package serialization
