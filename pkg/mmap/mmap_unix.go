//go:build linux || darwin

package mmap

import (
	"os"
	"syscall"
	"unsafe"
)

// Advice values shared by Linux and Darwin.
const (
	adviseRandom     advice = 1
	adviseSequential advice = 2
	adviseWillNeed   advice = 3
)

// mapFile maps the first size bytes of f read-only and shared.
func mapFile(f *os.File, size int) ([]byte, error) {
	return syscall.Mmap(int(f.Fd()), 0, size, syscall.PROT_READ, syscall.MAP_SHARED)
}

func unmap(b []byte) error {
	return syscall.Munmap(b)
}

// advise is best effort; the Darwin syscall package has no Madvise, so both
// platforms go through the raw syscall.
func advise(b []byte, a advice) error {
	if len(b) == 0 {
		return nil
	}
	_, _, errno := syscall.Syscall(syscall.SYS_MADVISE, uintptr(unsafe.Pointer(&b[0])), uintptr(len(b)), uintptr(a))
	if errno != 0 {
		return errno
	}
	return nil
}
