package weights

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/samcharles93/mlstm/internal/model"
	"github.com/samcharles93/mlstm/internal/safetensors"
)

// Info describes one stored array without decoding it.
type Info struct {
	Name  string
	DType string
	Shape []int
}

// Store is a model.Source that can also enumerate its contents.
type Store interface {
	model.Source
	Format() string
	Path() string
	List() ([]Info, error)
}

// Dir serves arrays from <dir>/<name>.npy.
type Dir struct {
	Root string
}

func (d Dir) Format() string { return "npy" }
func (d Dir) Path() string   { return d.Root }

func (d Dir) Array(name string) (model.Array, error) {
	path := filepath.Join(d.Root, name+".npy")
	a, err := ReadNPY(path)
	if errors.Is(err, fs.ErrNotExist) {
		return model.Array{}, fmt.Errorf("%s: %w", path, model.ErrMissingArray)
	}
	return a, err
}

func (d Dir) List() ([]Info, error) {
	entries, err := os.ReadDir(d.Root)
	if err != nil {
		return nil, err
	}
	var out []Info
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".npy") {
			continue
		}
		h, err := readNPYHeaderFile(filepath.Join(d.Root, e.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, Info{
			Name:  strings.TrimSuffix(e.Name(), ".npy"),
			DType: h.Descr,
			Shape: h.Shape,
		})
	}
	return out, nil
}

func readNPYHeaderFile(path string) (NPYHeader, error) {
	f, err := os.Open(path)
	if err != nil {
		return NPYHeader{}, err
	}
	defer func() { _ = f.Close() }()
	h, err := ReadNPYHeader(f)
	if err != nil {
		return NPYHeader{}, fmt.Errorf("%s: %w", path, err)
	}
	return h, nil
}

// SafetensorsSource serves arrays from a single .safetensors file.
type SafetensorsSource struct {
	File *safetensors.File
}

func (s SafetensorsSource) Format() string { return "safetensors" }
func (s SafetensorsSource) Path() string   { return s.File.Path }

func (s SafetensorsSource) Array(name string) (model.Array, error) {
	if _, ok := s.File.Tensor(name); !ok {
		return model.Array{}, fmt.Errorf("%s: %w", s.File.Path, model.ErrMissingArray)
	}
	data, info, err := s.File.ReadTensorF32(name)
	if err != nil {
		return model.Array{}, err
	}
	return model.Array{Name: name, Shape: slices.Clone(info.Shape), Data: data}, nil
}

func (s SafetensorsSource) List() ([]Info, error) {
	var out []Info
	for _, name := range s.File.Names() {
		info := s.File.Tensors[name]
		out = append(out, Info{Name: name, DType: info.DType, Shape: info.Shape})
	}
	return out, nil
}

// Open returns a Store for path: a directory of .npy files or a single
// .safetensors file.
func Open(path string) (Store, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("open weights: %w", err)
	}
	if st.IsDir() {
		return Dir{Root: path}, nil
	}
	if strings.HasSuffix(strings.ToLower(path), ".safetensors") {
		f, err := safetensors.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open weights %s: %w", path, err)
		}
		return SafetensorsSource{File: f}, nil
	}
	return nil, fmt.Errorf("open weights %s: expected a directory of .npy files or a .safetensors file", path)
}

// Save writes arrays to path in the given format ("npy" or "safetensors").
// For npy, path is a directory created if needed.
func Save(path, format string, arrays []model.Array) error {
	switch format {
	case "npy":
		if err := os.MkdirAll(path, 0o755); err != nil {
			return err
		}
		for _, a := range arrays {
			if err := WriteNPY(filepath.Join(path, a.Name+".npy"), a); err != nil {
				return fmt.Errorf("write %s: %w", a.Name, err)
			}
		}
		return nil
	case "safetensors":
		tensors := make([]safetensors.Tensor, len(arrays))
		for i, a := range arrays {
			tensors[i] = safetensors.Tensor{Name: a.Name, Shape: a.Shape, Data: a.Data}
		}
		return safetensors.Write(path, tensors, map[string]string{"format": "mlstm"})
	default:
		return fmt.Errorf("unknown weights format %q", format)
	}
}
