package serialization

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"math"
	"path/filepath"
	"testing"

	"github.com/d4l3k/go-bfloat16"
	"github.com/x448/float16"

	"github.com/born-ml/emov2/internal/tensor"
)

// TestSafeTensorsRoundTrip tests write then read back with metadata.
func TestSafeTensorsRoundTrip(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "roundtrip.safetensors")

	weight, err := tensor.NewRaw(tensor.Shape{2, 3}, tensor.Float32, tensor.CPU)
	if err != nil {
		t.Fatalf("Failed to create weight tensor: %v", err)
	}
	copy(weight.AsFloat32(), []float32{1, 2, 3, 4, 5, 6})

	bias, err := tensor.NewRaw(tensor.Shape{3}, tensor.Float32, tensor.CPU)
	if err != nil {
		t.Fatalf("Failed to create bias tensor: %v", err)
	}
	copy(bias.AsFloat32(), []float32{0.1, 0.2, 0.3})

	stateDict := map[string]*tensor.RawTensor{
		"weight": weight,
		"bias":   bias,
	}
	metadata := map[string]string{"format": "pt"}

	if err := WriteSafeTensors(testFile, stateDict, metadata); err != nil {
		t.Fatalf("WriteSafeTensors failed: %v", err)
	}

	loaded, loadedMeta, err := ReadSafeTensors(testFile, tensor.CPU)
	if err != nil {
		t.Fatalf("ReadSafeTensors failed: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("Expected 2 tensors, got %d", len(loaded))
	}
	if loadedMeta["format"] != "pt" {
		t.Errorf("Expected metadata format=pt, got %q", loadedMeta["format"])
	}

	for name, original := range stateDict {
		got, ok := loaded[name]
		if !ok {
			t.Fatalf("Tensor %s missing after round trip", name)
		}
		if !got.Shape().Equal(original.Shape()) {
			t.Errorf("Tensor %s: shape %v, want %v", name, got.Shape(), original.Shape())
		}
		gotData := got.AsFloat32()
		wantData := original.AsFloat32()
		for i := range wantData {
			if gotData[i] != wantData[i] {
				t.Errorf("Tensor %s[%d]: got %v, want %v", name, i, gotData[i], wantData[i])
			}
		}
	}
}

// writeRawFile assembles a SafeTensors stream from raw header entries and data.
func writeRawFile(t *testing.T, entries map[string]tensorEntry, data []byte) *bytes.Reader {
	t.Helper()
	header := make(map[string]interface{}, len(entries))
	for name, entry := range entries {
		header[name] = entry
	}
	headerJSON, err := json.Marshal(header)
	if err != nil {
		t.Fatalf("Failed to marshal header: %v", err)
	}

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		t.Fatalf("Failed to write header size: %v", err)
	}
	buf.Write(headerJSON)
	buf.Write(data)
	return bytes.NewReader(buf.Bytes())
}

// TestReadSafeTensorsF16 tests half precision conversion on load.
func TestReadSafeTensorsF16(t *testing.T) {
	values := []float32{0, 1, -2, 0.5}
	data := make([]byte, len(values)*2)
	for i, v := range values {
		binary.LittleEndian.PutUint16(data[i*2:], float16.Fromfloat32(v).Bits())
	}

	reader := writeRawFile(t, map[string]tensorEntry{
		"half": {DType: "F16", Shape: []int64{4}, DataOffsets: [2]int64{0, int64(len(data))}},
	}, data)

	loaded, _, err := ReadSafeTensorsFrom(reader, tensor.CPU)
	if err != nil {
		t.Fatalf("ReadSafeTensorsFrom failed: %v", err)
	}
	got := loaded["half"].AsFloat32()
	for i, want := range values {
		if got[i] != want {
			t.Errorf("half[%d]: got %v, want %v", i, got[i], want)
		}
	}
}

// TestReadSafeTensorsBF16 tests bfloat16 conversion on load.
func TestReadSafeTensorsBF16(t *testing.T) {
	values := []float32{1, -4, 0.25, 128}
	data := bfloat16.EncodeFloat32(values)

	reader := writeRawFile(t, map[string]tensorEntry{
		"brain": {DType: "BF16", Shape: []int64{2, 2}, DataOffsets: [2]int64{0, int64(len(data))}},
	}, data)

	loaded, _, err := ReadSafeTensorsFrom(reader, tensor.CPU)
	if err != nil {
		t.Fatalf("ReadSafeTensorsFrom failed: %v", err)
	}
	got := loaded["brain"].AsFloat32()
	for i, want := range values {
		// bfloat16 keeps 8 mantissa bits; all chosen values are exact
		if got[i] != want {
			t.Errorf("brain[%d]: got %v, want %v", i, got[i], want)
		}
	}
}

// TestReadSafeTensorsErrors tests malformed input handling.
func TestReadSafeTensorsErrors(t *testing.T) {
	// truncated header size
	if _, _, err := ReadSafeTensorsFrom(bytes.NewReader([]byte{1, 2, 3}), tensor.CPU); err == nil {
		t.Error("Expected error for truncated header size")
	}

	// absurd header size
	var huge bytes.Buffer
	_ = binary.Write(&huge, binary.LittleEndian, uint64(math.MaxUint32))
	if _, _, err := ReadSafeTensorsFrom(bytes.NewReader(huge.Bytes()), tensor.CPU); err == nil {
		t.Error("Expected error for oversized header")
	}

	// unsupported dtype
	reader := writeRawFile(t, map[string]tensorEntry{
		"q": {DType: "I64", Shape: []int64{1}, DataOffsets: [2]int64{0, 8}},
	}, make([]byte, 8))
	if _, _, err := ReadSafeTensorsFrom(reader, tensor.CPU); err == nil {
		t.Error("Expected error for unsupported dtype")
	}

	// data shorter than the declared byte count
	short := writeRawFile(t, map[string]tensorEntry{
		"w": {DType: "F32", Shape: []int64{4}, DataOffsets: [2]int64{0, 16}},
	}, make([]byte, 8))
	if _, _, err := ReadSafeTensorsFrom(short, tensor.CPU); err == nil {
		t.Error("Expected error for truncated data")
	}
}

// TestWriteSafeTensorsRejectsNonFloat32 tests the writer dtype restriction.
func TestWriteSafeTensorsRejectsNonFloat32(t *testing.T) {
	raw, err := tensor.NewRaw(tensor.Shape{2}, tensor.Float16, tensor.CPU)
	if err != nil {
		t.Fatalf("Failed to create tensor: %v", err)
	}
	var buf bytes.Buffer
	if err := WriteSafeTensorsTo(&buf, map[string]*tensor.RawTensor{"h": raw}, nil); err == nil {
		t.Error("Expected error for non-float32 tensor")
	}
}
