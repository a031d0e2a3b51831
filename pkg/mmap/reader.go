// Package mmap provides read-only memory-mapped file access. Dataset readers
// use it to pull individual variable slices out of multi-gigabyte files
// without reading or copying the rest.
package mmap

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
)

// advice is a madvise hint.
type advice int

// Reader is a read-only memory-mapped file. It implements io.ReaderAt and is
// safe for concurrent reads.
type Reader struct {
	file     *os.File
	data     []byte
	fileSize int64
	pageSize int

	// Prefetch control
	prefetch bool

	// Stats
	bytesRead atomic.Int64
	pagesRead atomic.Int64

	mu sync.RWMutex
}

// Open maps the file at filename. Random access is advised; callers that scan
// front to back can call Sequential.
func Open(filename string) (*Reader, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	r := &Reader{
		file:     file,
		fileSize: stat.Size(),
		pageSize: os.Getpagesize(),
		prefetch: true,
	}
	if r.fileSize == 0 {
		// nothing to map; every read reports EOF
		return r, nil
	}

	r.data, err = mapFile(file, int(r.fileSize))
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to mmap file: %w", err)
	}

	// Non-fatal: advice only tunes readahead
	_ = advise(r.data, adviseRandom)
	return r, nil
}

// Sequential tells the kernel the mapping will be read front to back.
func (r *Reader) Sequential() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.data) > 0 {
		_ = advise(r.data, adviseSequential)
	}
}

// Size returns the file size in bytes.
func (r *Reader) Size() int64 {
	return r.fileSize
}

// ReadRange returns the mapped bytes in [offset, offset+length), clipped to
// the end of the file. The slice aliases the mapping and is only valid until
// Close.
func (r *Reader) ReadRange(offset, length int64) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.file == nil {
		return nil, os.ErrClosed
	}
	if offset < 0 || offset >= r.fileSize || length < 0 {
		return nil, fmt.Errorf("offset %d out of range [0, %d)", offset, r.fileSize)
	}

	end := min(offset+length, r.fileSize)

	if r.prefetch {
		r.prefetchRange(offset, end)
	}
	r.recordRead(end - offset)

	return r.data[offset:end], nil
}

// ReadAt copies len(p) bytes at off into p.
func (r *Reader) ReadAt(p []byte, off int64) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.file == nil {
		return 0, os.ErrClosed
	}
	if off < 0 {
		return 0, fmt.Errorf("negative offset %d", off)
	}
	if off >= r.fileSize {
		return 0, io.EOF
	}
	n := copy(p, r.data[off:])
	r.recordRead(int64(n))
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (r *Reader) recordRead(n int64) {
	r.bytesRead.Add(n)
	r.pagesRead.Add((n + int64(r.pageSize) - 1) / int64(r.pageSize))
}

// prefetchRange advises kernel to prefetch a range of pages
func (r *Reader) prefetchRange(start, end int64) {
	// Align to page boundaries
	startPage := (start / int64(r.pageSize)) * int64(r.pageSize)
	endPage := min(((end+int64(r.pageSize)-1)/int64(r.pageSize))*int64(r.pageSize), r.fileSize)

	if endPage-startPage <= 0 {
		return
	}
	_ = advise(r.data[startPage:endPage], adviseWillNeed)
}

// Close unmaps the file and closes it
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var err error

	if r.data != nil {
		err = unmap(r.data)
		r.data = nil
	}

	if r.file != nil {
		if closeErr := r.file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		r.file = nil
	}

	return err
}

// Stats returns reading statistics
func (r *Reader) Stats() (bytesRead, pagesRead int64) {
	return r.bytesRead.Load(), r.pagesRead.Load()
}
