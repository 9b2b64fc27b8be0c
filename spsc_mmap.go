// Copyright the spscq authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package spscq

import (
	"runtime"
	"time"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// mmapSpsc is the double-mapped variant of the lock-free SPSC ring buffer.
// Its backing storage is mapped twice consecutively in virtual memory (see
// mmap_linux.go), so any (mask+1)-long span starting anywhere in [0,
// mask+1) is a single contiguous Go slice — bulk operations never need
// the two-segment split that the plain in-process ring buffer requires.
// mask+1 may be larger than the requested capacity: mmap_linux.go grows it
// so the physical alias period lands on a page boundary.
//
// When double-mapping is unavailable (non-Linux, or the mmap calls failed
// at construction time), linear is false and the engine falls back to the
// same two-segment bulk path as spsc.go, transparently to the caller.
//
// T must not hold pointers into the Go heap when linear is true: the
// doubly-mapped region is anonymous memory outside the Go allocator, and
// the garbage collector does not scan it for pointers.
type mmapSpsc[T any] struct {
	_          pad
	head       atomix.Uint64
	_          pad
	cachedTail uint64
	_          pad
	tail       atomix.Uint64
	_          pad
	cachedHead uint64
	_          pad
	buffer     []T // len == 2*(mask+1) if linear, len == mask+1 otherwise
	mask       uint64
	linear     bool
	cleanup    func()
}

// MmapSink is the producer-only handle to a double-mapped SPSC queue,
// created in a pair with an MmapSource by NewMmapSPSC.
type MmapSink[T any] struct {
	q *mmapSpsc[T]
}

// MmapSource is the consumer-only handle to a double-mapped SPSC queue,
// created in a pair with an MmapSink by NewMmapSPSC.
type MmapSource[T any] struct {
	q *mmapSpsc[T]
}

// NewMmapSPSC creates a double-mapped bounded SPSC queue and returns its
// producer and consumer handles. Capacity rounds up to the next power of
// two, and on Linux may round up further so the mapping's physical alias
// period lands on a page boundary (Cap reports the actual slot count
// either way, of which Cap()-1 are usable); NewMmapSPSC panics if capacity < 2. Unlike NewSPSC,
// construction can fail: the double-mapping syscalls can be refused by the
// kernel (memfd exhaustion, mlock limits, no MAP_FIXED room), in which case
// the returned error wraps the failing step and the queue falls back to a
// plain allocation with two-segment bulk transfers instead of failing
// outright.
func NewMmapSPSC[T any](capacity int) (*MmapSink[T], *MmapSource[T], error) {
	if capacity < 2 {
		panic("spscq: capacity must be >= 2")
	}
	n := uint64(roundToPow2(capacity))

	buf, actualN, cleanup, linear, err := newDoubleMappedSlice[T](n)
	q := &mmapSpsc[T]{
		buffer:  buf,
		mask:    actualN - 1,
		linear:  linear,
		cleanup: cleanup,
	}
	return &MmapSink[T]{q: q}, &MmapSource[T]{q: q}, err
}

// Cap returns the queue's slot count; at most Cap()-1 elements fit.
func (s *MmapSink[T]) Cap() int { return int(s.q.mask + 1) }

// Cap returns the queue's slot count; at most Cap()-1 elements fit.
func (c *MmapSource[T]) Cap() int { return int(c.q.mask + 1) }

// Empty reports whether the queue currently holds no elements (advisory).
func (s *MmapSink[T]) Empty() bool { return s.Size() == 0 }

// Empty reports whether the queue currently holds no elements (advisory).
func (c *MmapSource[T]) Empty() bool { return c.Size() == 0 }

// Size returns the number of elements currently stored (advisory).
func (s *MmapSink[T]) Size() int {
	tail := s.q.tail.LoadRelaxed()
	head := s.q.head.LoadAcquire()
	return int(occupancyMask(tail, head, s.q.mask))
}

// Size returns the number of elements currently stored (advisory).
func (c *MmapSource[T]) Size() int {
	head := c.q.head.LoadRelaxed()
	tail := c.q.tail.LoadAcquire()
	return int(occupancyMask(tail, head, c.q.mask))
}

// Close releases the queue's backing memory. It must only be called once
// both the Sink and the Source are done using the queue.
func (s *MmapSink[T]) Close() {
	if s.q.cleanup != nil {
		s.q.cleanup()
	}
}

// TryEnqueue stores value and returns true, or returns false immediately if
// the queue is full.
func (s *MmapSink[T]) TryEnqueue(value *T) bool {
	q := s.q
	tail := q.tail.LoadRelaxed()
	if tail-q.cachedHead >= q.mask {
		q.cachedHead = q.head.LoadAcquire()
		if tail-q.cachedHead >= q.mask {
			return false
		}
	}
	q.buffer[tail&q.mask] = *value
	q.tail.StoreRelease(tail + 1)
	return true
}

// TryEnqueueBulk stores as many elements of data as fit and returns the
// count actually stored. On the linear (double-mapped) path this is always
// a single contiguous copy regardless of wrap.
func (s *MmapSink[T]) TryEnqueueBulk(data []T) int {
	q := s.q
	if len(data) == 0 {
		return 0
	}
	tail := q.tail.LoadRelaxed()
	free := freeSpaceMask(tail, q.cachedHead, q.mask)
	if free < uint64(len(data)) {
		q.cachedHead = q.head.LoadAcquire()
		free = freeSpaceMask(tail, q.cachedHead, q.mask)
	}
	n := uint64(len(data))
	if free < n {
		n = free
	}
	if n == 0 {
		return 0
	}

	start := tail & q.mask
	if q.linear {
		copy(q.buffer[start:start+n], data[:n])
	} else {
		firstSeg := q.mask + 1 - start
		if firstSeg > n {
			firstSeg = n
		}
		copy(q.buffer[start:start+firstSeg], data[:firstSeg])
		if firstSeg < n {
			copy(q.buffer[0:n-firstSeg], data[firstSeg:n])
		}
	}
	q.tail.StoreRelease(tail + n)
	return int(n)
}

// TryDequeue removes and returns the oldest element, or returns
// (zero-value, false) immediately if the queue is empty.
func (c *MmapSource[T]) TryDequeue() (T, bool) {
	q := c.q
	head := q.head.LoadRelaxed()
	if head >= q.cachedTail {
		q.cachedTail = q.tail.LoadAcquire()
		if head >= q.cachedTail {
			var zero T
			return zero, false
		}
	}
	elem := q.buffer[head&q.mask]
	var zero T
	q.buffer[head&q.mask] = zero
	q.head.StoreRelease(head + 1)
	return elem, true
}

// TryDequeueBulk removes up to len(out) elements into out and returns the
// count actually removed.
func (c *MmapSource[T]) TryDequeueBulk(out []T) int {
	q := c.q
	if len(out) == 0 {
		return 0
	}
	head := q.head.LoadRelaxed()
	avail := occupancyMask(q.cachedTail, head, q.mask)
	if avail < uint64(len(out)) {
		q.cachedTail = q.tail.LoadAcquire()
		avail = occupancyMask(q.cachedTail, head, q.mask)
	}
	n := uint64(len(out))
	if avail < n {
		n = avail
	}
	if n == 0 {
		return 0
	}

	start := head & q.mask
	var zero T
	if q.linear {
		copy(out[:n], q.buffer[start:start+n])
		for i := start; i < start+n; i++ {
			q.buffer[i] = zero
		}
	} else {
		firstSeg := q.mask + 1 - start
		if firstSeg > n {
			firstSeg = n
		}
		copy(out[:firstSeg], q.buffer[start:start+firstSeg])
		for i := start; i < start+firstSeg; i++ {
			q.buffer[i] = zero
		}
		if firstSeg < n {
			copy(out[firstSeg:n], q.buffer[0:n-firstSeg])
			for i := uint64(0); i < n-firstSeg; i++ {
				q.buffer[i] = zero
			}
		}
	}
	q.head.StoreRelease(head + n)
	return int(n)
}

// Enqueue blocks until value is stored or timeout elapses, returning false
// on timeout without ever having copied value into the queue.
func (s *MmapSink[T]) Enqueue(value *T, timeout time.Duration) bool {
	if s.TryEnqueue(value) {
		return true
	}
	deadline := time.Now().Add(timeout)
	sw := spin.Wait{}
	for {
		sw.Once()
		if s.TryEnqueue(value) {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		runtime.Gosched()
	}
}

// EnqueueBulk blocks until all of data is stored or timeout elapses,
// returning the count actually stored.
func (s *MmapSink[T]) EnqueueBulk(data []T, timeout time.Duration) int {
	total := s.TryEnqueueBulk(data)
	if total >= len(data) {
		return total
	}
	deadline := time.Now().Add(timeout)
	sw := spin.Wait{}
	for total < len(data) {
		sw.Once()
		n := s.TryEnqueueBulk(data[total:])
		total += n
		if total >= len(data) {
			break
		}
		if time.Now().After(deadline) {
			break
		}
		if n == 0 {
			runtime.Gosched()
		}
	}
	return total
}

// Dequeue blocks until an element is available or timeout elapses,
// returning (zero-value, false) on timeout.
func (c *MmapSource[T]) Dequeue(timeout time.Duration) (T, bool) {
	if v, ok := c.TryDequeue(); ok {
		return v, true
	}
	deadline := time.Now().Add(timeout)
	sw := spin.Wait{}
	for {
		sw.Once()
		if v, ok := c.TryDequeue(); ok {
			return v, true
		}
		if time.Now().After(deadline) {
			var zero T
			return zero, false
		}
		runtime.Gosched()
	}
}

// DequeueBulk blocks until out is fully populated or timeout elapses,
// returning the count actually removed.
func (c *MmapSource[T]) DequeueBulk(out []T, timeout time.Duration) int {
	total := c.TryDequeueBulk(out)
	if total >= len(out) {
		return total
	}
	deadline := time.Now().Add(timeout)
	sw := spin.Wait{}
	for total < len(out) {
		sw.Once()
		n := c.TryDequeueBulk(out[total:])
		total += n
		if total >= len(out) {
			break
		}
		if time.Now().After(deadline) {
			break
		}
		if n == 0 {
			runtime.Gosched()
		}
	}
	return total
}
