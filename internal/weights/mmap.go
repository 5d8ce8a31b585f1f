//go:build unix

package weights

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// mapFile returns the contents of path and a release func. It prefers a
// read-only mmap and falls back to reading the file when mapping fails.
func mapFile(path string) ([]byte, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = f.Close() }()

	st, err := f.Stat()
	if err != nil {
		return nil, nil, err
	}
	size64 := st.Size()
	if size64 <= 0 || size64 > int64(int(^uint(0)>>1)) {
		return nil, nil, fmt.Errorf("%s: unusable file size %d", path, size64)
	}
	size := int(size64)

	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err == nil {
		return data, func() error { return unix.Munmap(data) }, nil
	}

	data = make([]byte, size)
	if _, err := f.ReadAt(data, 0); err != nil && err != io.EOF {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, func() error { return nil }, nil
}
