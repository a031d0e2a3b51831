//go:build !linux && !darwin

package mmap

import (
	"io"
	"os"
)

const (
	adviseRandom advice = iota + 1
	adviseSequential
	adviseWillNeed
)

// Without mmap the file is read into memory once.
func mapFile(f *os.File, size int) ([]byte, error) {
	buf := make([]byte, size)
	if _, err := f.ReadAt(buf, 0); err != nil && err != io.EOF {
		return nil, err
	}
	return buf, nil
}

func unmap([]byte) error { return nil }

func advise([]byte, advice) error { return nil }
