package safetensors

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeRaw creates a safetensors file from an arbitrary header and payload.
func writeRaw(t *testing.T, header map[string]any, data []byte) string {
	t.Helper()
	headerBytes, err := json.Marshal(header)
	if err != nil {
		t.Fatalf("marshal header: %v", err)
	}
	path := filepath.Join(t.TempDir(), "test.safetensors")
	buf := binary.LittleEndian.AppendUint64(nil, uint64(len(headerBytes)))
	buf = append(buf, headerBytes...)
	buf = append(buf, data...)
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	return path
}

func entry(dtype string, shape []int, start, end int64) map[string]any {
	return map[string]any{"dtype": dtype, "shape": shape, "data_offsets": []int64{start, end}}
}

func TestOpenErrors(t *testing.T) {
	t.Parallel()

	if _, err := Open("/nonexistent/file.safetensors"); err == nil {
		t.Fatal("expected error for nonexistent file")
	}

	short := filepath.Join(t.TempDir(), "short.safetensors")
	if err := os.WriteFile(short, []byte{0, 0, 0, 0}, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Open(short); err == nil {
		t.Fatal("expected error for truncated length")
	}

	garbage := filepath.Join(t.TempDir(), "garbage.safetensors")
	buf := binary.LittleEndian.AppendUint64(nil, 12)
	buf = append(buf, "not valid js"...)
	if err := os.WriteFile(garbage, buf, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Open(garbage); err == nil {
		t.Fatal("expected error for invalid JSON header")
	}

	huge := filepath.Join(t.TempDir(), "huge.safetensors")
	if err := os.WriteFile(huge, binary.LittleEndian.AppendUint64(nil, 1<<40), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Open(huge); err == nil {
		t.Fatal("expected error for oversized header length")
	}

	bad := writeRaw(t, map[string]any{
		"x": map[string]any{"dtype": "F32", "shape": []int{1}, "data_offsets": []int64{0}},
	}, nil)
	if _, err := Open(bad); err == nil {
		t.Fatal("expected error for invalid data_offsets")
	}
}

func TestOpenReadsMetadata(t *testing.T) {
	t.Parallel()
	path := writeRaw(t, map[string]any{
		"__metadata__": map[string]string{"format": "np"},
		"t":            entry("F32", []int{4}, 0, 16),
	}, make([]byte, 16))

	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if len(f.Tensors) != 1 {
		t.Fatalf("expected 1 tensor, got %d", len(f.Tensors))
	}
	if f.Metadata["format"] != "np" {
		t.Fatalf("metadata: %v", f.Metadata)
	}
	if _, _, err := f.ReadTensor("missing"); err == nil {
		t.Fatal("expected error for missing tensor")
	}
}

func TestReadTensorF32Decodes(t *testing.T) {
	t.Parallel()

	f32 := make([]byte, 0, 8)
	f32 = binary.LittleEndian.AppendUint32(f32, math.Float32bits(1.5))
	f32 = binary.LittleEndian.AppendUint32(f32, math.Float32bits(-2))

	f64 := make([]byte, 0, 16)
	f64 = binary.LittleEndian.AppendUint64(f64, math.Float64bits(1.5))
	f64 = binary.LittleEndian.AppendUint64(f64, math.Float64bits(-2))

	bf16 := binary.LittleEndian.AppendUint16(nil, 0x3FC0) // 1.5
	bf16 = binary.LittleEndian.AppendUint16(bf16, 0xC000) // -2

	f16 := binary.LittleEndian.AppendUint16(nil, 0x3E00) // 1.5
	f16 = binary.LittleEndian.AppendUint16(f16, 0xC000)  // -2

	tests := []struct {
		dtype string
		data  []byte
	}{
		{"F32", f32},
		{"F64", f64},
		{"BF16", bf16},
		{"F16", f16},
	}
	for _, tc := range tests {
		t.Run(tc.dtype, func(t *testing.T) {
			t.Parallel()
			path := writeRaw(t, map[string]any{
				"t": entry(tc.dtype, []int{2}, 0, int64(len(tc.data))),
			}, tc.data)
			f, err := Open(path)
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			got, info, err := f.ReadTensorF32("t")
			if err != nil {
				t.Fatalf("ReadTensorF32: %v", err)
			}
			if info.DType != tc.dtype {
				t.Fatalf("dtype: got %q", info.DType)
			}
			if len(got) != 2 || got[0] != 1.5 || got[1] != -2 {
				t.Fatalf("decoded %v, want [1.5 -2]", got)
			}
		})
	}
}

func TestReadTensorF32Rejects(t *testing.T) {
	t.Parallel()

	unsupported := writeRaw(t, map[string]any{"t": entry("I32", []int{2}, 0, 8)}, make([]byte, 8))
	f, err := Open(unsupported)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, _, err := f.ReadTensorF32("t"); err == nil || !strings.Contains(err.Error(), "unsupported dtype") {
		t.Fatalf("expected unsupported dtype error, got %v", err)
	}

	mismatch := writeRaw(t, map[string]any{"t": entry("F32", []int{4}, 0, 8)}, make([]byte, 8))
	f, err = Open(mismatch)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, _, err := f.ReadTensorF32("t"); err == nil {
		t.Fatal("expected size mismatch error")
	}
}

func TestReadTensorBoundsOffsetsByFileSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		start, end int64
	}{
		{"past_eof", 0, 1 << 62},
		{"negative_start", -8, 8},
		{"reversed", 8, 0},
		{"one_past_eof", 0, 9},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			path := writeRaw(t, map[string]any{"embd": entry("F32", []int{2}, tc.start, tc.end)}, make([]byte, 8))
			f, err := Open(path)
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			defer func() {
				if r := recover(); r != nil {
					t.Fatalf("ReadTensorF32 panicked: %v", r)
				}
			}()
			_, _, err = f.ReadTensorF32("embd")
			if err == nil || !strings.Contains(err.Error(), "embd") {
				t.Fatalf("expected error naming embd, got %v", err)
			}
		})
	}
}

func TestWriteRoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "out.safetensors")
	in := []Tensor{
		{Name: "wx", Shape: []int{2, 3}, Data: []float32{1, 2, 3, 4, 5, 6}},
		{Name: "b", Shape: []int{3}, Data: []float32{-1, 0, 0.5}},
	}
	if err := Write(path, in, map[string]string{"source": "test"}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if f.DataStart%8 != 0 {
		t.Fatalf("data start %d not 8-byte aligned", f.DataStart)
	}
	if got := f.Names(); len(got) != 2 || got[0] != "b" || got[1] != "wx" {
		t.Fatalf("names: %v", got)
	}
	if f.Metadata["source"] != "test" {
		t.Fatalf("metadata: %v", f.Metadata)
	}
	for _, want := range in {
		got, info, err := f.ReadTensorF32(want.Name)
		if err != nil {
			t.Fatalf("ReadTensorF32(%s): %v", want.Name, err)
		}
		if len(info.Shape) != len(want.Shape) {
			t.Fatalf("%s shape: %v", want.Name, info.Shape)
		}
		for i := range want.Data {
			if got[i] != want.Data[i] {
				t.Fatalf("%s[%d]: got %v want %v", want.Name, i, got[i], want.Data[i])
			}
		}
	}
}

func TestWriteRejectsBadTensors(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	if err := Write(filepath.Join(dir, "a"), []Tensor{{Name: "x", Shape: []int{3}, Data: []float32{1}}}, nil); err == nil {
		t.Fatal("expected error for shape/data mismatch")
	}
	dup := []Tensor{
		{Name: "x", Shape: []int{1}, Data: []float32{1}},
		{Name: "x", Shape: []int{1}, Data: []float32{2}},
	}
	if err := Write(filepath.Join(dir, "b"), dup, nil); err == nil {
		t.Fatal("expected error for duplicate names")
	}
}
