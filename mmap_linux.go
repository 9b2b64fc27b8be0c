// Copyright the spscq authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build linux

package spscq

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// newDoubleMappedSlice backs a single memfd and maps that fd twice in a
// row so that buffer[i] and buffer[i+actualN] alias the same
// physical page, for some actualN >= n. Any actualN-long span starting
// anywhere in [0, actualN) is then a single contiguous slice.
//
// The physical aliasing period is fixed by the kernel to a multiple of the
// page size, not by n*sizeof(T); mapping exactly n elements would only
// alias correctly at n when n*sizeof(T) already happens to be a page
// multiple. Since n is already a power of two, this function instead grows
// it (doubling preserves the power-of-two mask invariant) until
// actualN*sizeof(T) lands on a page boundary, then sizes both the memfd
// and the two mappings to exactly that many bytes, so the alias period is
// exactly actualN elements and the linear bulk path's buffer[i+actualN]
// == buffer[i] assumption holds precisely, not just approximately.
//
// It falls back to a plain heap allocation (linear=false) if any step
// fails, returning the wrapped error alongside a still-usable queue.
func newDoubleMappedSlice[T any](n uint64) (buf []T, actualN uint64, cleanup func(), linear bool, err error) {
	var zero T
	elemSize := int(unsafe.Sizeof(zero))
	if elemSize == 0 {
		elemSize = 1
	}

	pageSize := unix.Getpagesize()
	actualN = n
	for (int(actualN)*elemSize)%pageSize != 0 {
		actualN *= 2
	}
	size := int(actualN) * elemSize

	fallback := func(wrapErr error) ([]T, uint64, func(), bool, error) {
		return make([]T, n), n, nil, false, wrapErr
	}

	fd, ferr := unix.MemfdCreate("spscq-ring", 0)
	if ferr != nil {
		return fallback(&mmapInitError{op: "memfd_create", err: ferr})
	}
	if ferr = unix.Ftruncate(fd, int64(size)); ferr != nil {
		_ = unix.Close(fd)
		return fallback(&mmapInitError{op: "ftruncate", err: ferr})
	}

	reservation, ferr := unix.Mmap(-1, 0, 2*size, unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if ferr != nil {
		_ = unix.Close(fd)
		return fallback(&mmapInitError{op: "mmap reservation", err: ferr})
	}
	base := uintptr(unsafe.Pointer(&reservation[0]))

	if ferr = mmapFixed(fd, base, size); ferr != nil {
		_ = unix.Munmap(reservation)
		_ = unix.Close(fd)
		return fallback(&mmapInitError{op: "mmap first half", err: ferr})
	}
	if ferr = mmapFixed(fd, base+uintptr(size), size); ferr != nil {
		_ = unix.Munmap(reservation)
		_ = unix.Close(fd)
		return fallback(&mmapInitError{op: "mmap second half", err: ferr})
	}

	buf = unsafe.Slice((*T)(unsafe.Pointer(base)), 2*actualN)
	cleanup = func() {
		_ = unix.Munmap(reservation[:2*size])
		_ = unix.Close(fd)
	}
	return buf, actualN, cleanup, true, nil
}

// mmapFixed maps fd at the given fixed virtual address, overwriting the
// PROT_NONE reservation already held there.
func mmapFixed(fd int, addr uintptr, length int) error {
	_, _, errno := unix.Syscall6(
		unix.SYS_MMAP,
		addr,
		uintptr(length),
		uintptr(unix.PROT_READ|unix.PROT_WRITE),
		uintptr(unix.MAP_SHARED|unix.MAP_FIXED),
		uintptr(fd),
		0,
	)
	if errno != 0 {
		return errno
	}
	return nil
}

