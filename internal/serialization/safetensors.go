package serialization

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/d4l3k/go-bfloat16"
	"github.com/x448/float16"

	"github.com/born-ml/emov2/internal/tensor"
)

// maxHeaderSize bounds the JSON header to guard against corrupt files.
const maxHeaderSize = 100 * 1024 * 1024

// tensorEntry describes one tensor in the SafeTensors JSON header.
type tensorEntry struct {
	DType       string   `json:"dtype"`
	Shape       []int64  `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

// ReadSafeTensors reads a SafeTensors file into a state dictionary.
//
// Format:
// [8 bytes: header_size (uint64 LE)]
// [header_size bytes: JSON header]
// [tensor data: raw bytes]
//
// F16 and BF16 tensors are converted to float32 on load; F32 tensors are
// copied as-is. The second return value is the file's __metadata__ map, if
// present.
func ReadSafeTensors(path string, device tensor.Device) (map[string]*tensor.RawTensor, map[string]string, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for model loading
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() {
		_ = file.Close() // Best effort close
	}()

	return ReadSafeTensorsFrom(file, device)
}

// ReadSafeTensorsFrom reads SafeTensors data from an io.Reader.
// This is useful for reading from buffers or network connections.
func ReadSafeTensorsFrom(reader io.Reader, device tensor.Device) (map[string]*tensor.RawTensor, map[string]string, error) {
	// Read header size (8 bytes, little-endian uint64)
	var headerSize uint64
	if err := binary.Read(reader, binary.LittleEndian, &headerSize); err != nil {
		return nil, nil, fmt.Errorf("failed to read header size: %w", err)
	}
	if headerSize > maxHeaderSize {
		return nil, nil, fmt.Errorf("invalid header size: %d (too large)", headerSize)
	}

	// Read and parse header JSON
	headerBytes := make([]byte, headerSize)
	if _, err := io.ReadFull(reader, headerBytes); err != nil {
		return nil, nil, fmt.Errorf("failed to read header: %w", err)
	}

	var rawHeader map[string]json.RawMessage
	if err := json.Unmarshal(headerBytes, &rawHeader); err != nil {
		return nil, nil, fmt.Errorf("failed to parse header JSON: %w", err)
	}

	var metadata map[string]string
	entries := make(map[string]tensorEntry, len(rawHeader))
	for name, msg := range rawHeader {
		if name == "__metadata__" {
			if err := json.Unmarshal(msg, &metadata); err != nil {
				return nil, nil, fmt.Errorf("failed to parse metadata: %w", err)
			}
			continue
		}
		var entry tensorEntry
		if err := json.Unmarshal(msg, &entry); err != nil {
			return nil, nil, fmt.Errorf("failed to parse entry for tensor %s: %w", name, err)
		}
		entries[name] = entry
	}

	// Tensor data follows the header ordered by data offset.
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return entries[names[i]].DataOffsets[0] < entries[names[j]].DataOffsets[0]
	})

	stateDict := make(map[string]*tensor.RawTensor, len(entries))
	var pos int64
	for _, name := range names {
		entry := entries[name]
		start, end := entry.DataOffsets[0], entry.DataOffsets[1]
		if start < pos || end < start {
			return nil, nil, fmt.Errorf("invalid data offsets for tensor %s: [%d, %d]", name, start, end)
		}
		if skip := start - pos; skip > 0 {
			if _, err := io.CopyN(io.Discard, reader, skip); err != nil {
				return nil, nil, fmt.Errorf("failed to skip to tensor %s: %w", name, err)
			}
		}

		data := make([]byte, end-start)
		if _, err := io.ReadFull(reader, data); err != nil {
			return nil, nil, fmt.Errorf("failed to read tensor %s: %w", name, err)
		}
		pos = end

		shape := make(tensor.Shape, len(entry.Shape))
		for i, dim := range entry.Shape {
			shape[i] = int(dim)
		}
		if err := shape.Validate(); err != nil {
			return nil, nil, fmt.Errorf("invalid shape for tensor %s: %w", name, err)
		}

		raw, err := decodeTensor(name, entry.DType, shape, data, device)
		if err != nil {
			return nil, nil, err
		}
		stateDict[name] = raw
	}

	return stateDict, metadata, nil
}

// decodeTensor converts raw SafeTensors bytes into a float32 RawTensor.
func decodeTensor(name, dtype string, shape tensor.Shape, data []byte, device tensor.Device) (*tensor.RawTensor, error) {
	raw, err := tensor.NewRaw(shape, tensor.Float32, device)
	if err != nil {
		return nil, fmt.Errorf("failed to create tensor %s: %w", name, err)
	}
	numel := shape.NumElements()

	switch dtype {
	case "F32":
		if len(data) != numel*4 {
			return nil, fmt.Errorf("tensor %s: expected %d bytes, got %d", name, numel*4, len(data))
		}
		copy(raw.Data(), data)

	case "F16":
		if len(data) != numel*2 {
			return nil, fmt.Errorf("tensor %s: expected %d bytes, got %d", name, numel*2, len(data))
		}
		dst := raw.AsFloat32()
		for i := 0; i < numel; i++ {
			bits := binary.LittleEndian.Uint16(data[i*2:])
			dst[i] = float16.Frombits(bits).Float32()
		}

	case "BF16":
		if len(data) != numel*2 {
			return nil, fmt.Errorf("tensor %s: expected %d bytes, got %d", name, numel*2, len(data))
		}
		copy(raw.AsFloat32(), bfloat16.DecodeFloat32(data))

	default:
		return nil, fmt.Errorf("tensor %s: unsupported dtype %s", name, dtype)
	}

	return raw, nil
}

// WriteSafeTensors writes a state dictionary to a SafeTensors file.
//
// Tensors are written in alphabetical order by name (SafeTensors
// requirement). All entries are written as F32.
func WriteSafeTensors(path string, stateDict map[string]*tensor.RawTensor, metadata map[string]string) error {
	//nolint:gosec // G304: File path comes from user input, which is expected for model saving
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		_ = file.Close() // Best effort close
	}()

	return WriteSafeTensorsTo(file, stateDict, metadata)
}

// WriteSafeTensorsTo writes a state dictionary to an io.Writer.
func WriteSafeTensorsTo(writer io.Writer, stateDict map[string]*tensor.RawTensor, metadata map[string]string) error {
	names := make([]string, 0, len(stateDict))
	for name := range stateDict {
		names = append(names, name)
	}
	sort.Strings(names)

	header := make(map[string]interface{})
	if len(metadata) > 0 {
		header["__metadata__"] = metadata
	}

	var currentOffset int64
	for _, name := range names {
		raw := stateDict[name]
		if raw.DType() != tensor.Float32 {
			return fmt.Errorf("tensor %s: only float32 tensors can be written, got %s", name, raw.DType())
		}
		size := int64(raw.ByteSize())

		shape := raw.Shape()
		shapeInt64 := make([]int64, len(shape))
		for i, dim := range shape {
			shapeInt64[i] = int64(dim)
		}

		header[name] = tensorEntry{
			DType:       "F32",
			Shape:       shapeInt64,
			DataOffsets: [2]int64{currentOffset, currentOffset + size},
		}
		currentOffset += size
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}

	headerSize := uint64(len(headerJSON))
	if err := binary.Write(writer, binary.LittleEndian, headerSize); err != nil {
		return fmt.Errorf("failed to write header size: %w", err)
	}
	if _, err := writer.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, name := range names {
		if _, err := writer.Write(stateDict[name].Data()); err != nil {
			return fmt.Errorf("failed to write tensor %s: %w", name, err)
		}
	}

	return nil
}
