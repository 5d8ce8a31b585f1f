package weights

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/sbinet/npyio"

	"github.com/samcharles93/mlstm/internal/model"
	"github.com/samcharles93/mlstm/internal/safetensors"
)

var (
	ErrBadHeader        = errors.New("weights: malformed npy header")
	ErrUnsupportedDType = errors.New("weights: unsupported dtype")
	ErrTooLarge         = errors.New("weights: array too large")
)

var npyMagic = []byte("\x93NUMPY")

// NPYHeader is the parsed preamble of a .npy file.
type NPYHeader struct {
	Major, Minor byte
	Descr        string
	FortranOrder bool
	Shape        []int
}

// ReadNPY loads a little-endian float array from path as float32.
func ReadNPY(path string) (model.Array, error) {
	data, release, err := mapFile(path)
	if err != nil {
		return model.Array{}, err
	}
	defer func() { _ = release() }()

	name := strings.TrimSuffix(filepath.Base(path), ".npy")
	return DecodeNPY(name, data)
}

// ReadNPYHeader parses the preamble at the start of r and leaves r
// positioned at the payload.
func ReadNPYHeader(r io.Reader) (NPYHeader, error) {
	_, h, err := openNPY(r)
	return h, err
}

func openNPY(r io.Reader) (*npyio.Reader, NPYHeader, error) {
	nr, err := npyio.NewReader(r)
	if err != nil {
		return nil, NPYHeader{}, fmt.Errorf("%w: %v", ErrBadHeader, err)
	}
	h := NPYHeader{
		Major:        nr.Header.Major,
		Minor:        nr.Header.Minor,
		Descr:        nr.Header.Descr.Type,
		FortranOrder: nr.Header.Descr.Fortran,
		Shape:        slices.Clone(nr.Header.Descr.Shape),
	}
	return nr, h, nil
}

// DecodeNPY parses a complete .npy image held in memory. The returned array
// never aliases data.
func DecodeNPY(name string, data []byte) (model.Array, error) {
	br := bytes.NewReader(data)
	nr, h, err := openNPY(br)
	if err != nil {
		return model.Array{}, fmt.Errorf("%s: %w", name, err)
	}
	if h.FortranOrder {
		return model.Array{}, fmt.Errorf("%s: %w: fortran order", name, ErrBadHeader)
	}
	size, err := elemSize(h.Descr)
	if err != nil {
		return model.Array{}, fmt.Errorf("%s: %w", name, err)
	}
	n, err := elemCount(h.Shape, size, br.Len())
	if err != nil {
		return model.Array{}, fmt.Errorf("%s: %w", name, err)
	}

	out := make([]float32, n)
	switch h.Descr {
	case "<f4":
		err = nr.Read(&out)
	case "<f8":
		wide := make([]float64, n)
		if err = nr.Read(&wide); err == nil {
			for i, v := range wide {
				out[i] = float32(v)
			}
		}
	case "<f2":
		// npyio has no half-precision type; decode the payload directly.
		payload := data[len(data)-br.Len():]
		for i := range out {
			out[i] = safetensors.FP16ToFloat32(binary.LittleEndian.Uint16(payload[2*i:]))
		}
	}
	if err != nil {
		return model.Array{}, fmt.Errorf("%s: read %s payload: %w", name, h.Descr, err)
	}
	return model.Array{Name: name, Shape: h.Shape, Data: out}, nil
}

func elemSize(descr string) (int, error) {
	switch descr {
	case "<f4":
		return 4, nil
	case "<f8":
		return 8, nil
	case "<f2":
		return 2, nil
	default:
		return 0, fmt.Errorf("%w %q", ErrUnsupportedDType, descr)
	}
}

// elemCount returns the number of elements in shape after checking that the
// product does not overflow and that payload bytes hold that many elements
// of size bytes each.
func elemCount(shape []int, size, payload int) (int, error) {
	n := 1
	for _, d := range shape {
		if d < 0 {
			return 0, fmt.Errorf("%w: negative dimension in shape %v", ErrBadHeader, shape)
		}
		if d != 0 && n > math.MaxInt/d {
			return 0, fmt.Errorf("%w: shape %v", ErrTooLarge, shape)
		}
		n *= d
	}
	if n > payload/size {
		return 0, fmt.Errorf("truncated payload: %d bytes for %d elements of %d bytes", payload, n, size)
	}
	return n, nil
}

// EncodeNPY renders a as a version 1.0 '<f4' .npy image. npyio.Write
// records a flat (len,) shape for slices and only writes 2-D shapes for
// float64 matrices, so the header is built here.
func EncodeNPY(a model.Array) []byte {
	dims := make([]string, len(a.Shape))
	for i, d := range a.Shape {
		dims[i] = strconv.Itoa(d)
	}
	shape := strings.Join(dims, ", ")
	if len(a.Shape) == 1 {
		shape += ","
	}
	dict := fmt.Sprintf("{'descr': '<f4', 'fortran_order': False, 'shape': (%s), }", shape)
	// Header (magic + version + len + dict + newline) is padded to 64 bytes.
	total := 10 + len(dict) + 1
	pad := (64 - total%64) % 64
	dict += strings.Repeat(" ", pad) + "\n"

	buf := make([]byte, 0, 10+len(dict)+4*len(a.Data))
	buf = append(buf, npyMagic...)
	buf = append(buf, 1, 0)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(dict)))
	buf = append(buf, dict...)
	for _, v := range a.Data {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
	}
	return buf
}

// WriteNPY writes a to path as a '<f4' array.
func WriteNPY(path string, a model.Array) error {
	return os.WriteFile(path, EncodeNPY(a), 0o644)
}
