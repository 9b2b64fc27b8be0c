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

// spsc is the lock-free single-producer single-consumer ring buffer shared
// by Sink and Source. Based on Lamport's ring buffer with the cached index
// optimization: the producer caches the consumer's head, and vice versa, so
// most calls never need a fresh acquire load of the opposite index.
type spsc[T any] struct {
	_          pad
	head       atomix.Uint64 // consumer-owned
	_          pad
	cachedTail uint64 // consumer's cached view of tail, used only by the consumer
	_          pad
	tail       atomix.Uint64 // producer-owned
	_          pad
	cachedHead uint64 // producer's cached view of head, used only by the producer
	_          pad
	buffer     []T
	mask       uint64
}

// Sink is the producer-only handle to a lock-free SPSC queue. It is created
// in a pair with a Source by NewSPSC, which jointly own the underlying
// queue. A Sink must be used from a single goroutine at a time.
type Sink[T any] struct {
	q *spsc[T]
}

// Source is the consumer-only handle to a lock-free SPSC queue. It is
// created in a pair with a Sink by NewSPSC. A Source must be used from a
// single goroutine at a time.
type Source[T any] struct {
	q *spsc[T]
}

// NewSPSC creates a lock-free bounded SPSC queue and returns its producer
// and consumer handles. Capacity rounds up to the next power of two;
// NewSPSC panics if capacity < 2.
func NewSPSC[T any](capacity int) (*Sink[T], *Source[T]) {
	if capacity < 2 {
		panic("spscq: capacity must be >= 2")
	}
	n := uint64(roundToPow2(capacity))
	q := &spsc[T]{
		buffer: make([]T, n),
		mask:   n - 1,
	}
	return &Sink[T]{q: q}, &Source[T]{q: q}
}

// Cap returns the queue's slot count; at most Cap()-1 elements fit.
func (s *Sink[T]) Cap() int { return int(s.q.mask + 1) }

// Cap returns the queue's slot count; at most Cap()-1 elements fit.
func (c *Source[T]) Cap() int { return int(c.q.mask + 1) }

// Empty reports whether the queue currently holds no elements. This is
// advisory: the result may already be stale by the time the caller acts on
// it, since the opposite end can enqueue or dequeue concurrently.
func (s *Sink[T]) Empty() bool { return s.Size() == 0 }

// Empty reports whether the queue currently holds no elements (advisory).
func (c *Source[T]) Empty() bool { return c.Size() == 0 }

// Size returns the number of elements currently stored (advisory, see
// Empty).
func (s *Sink[T]) Size() int {
	tail := s.q.tail.LoadRelaxed()
	head := s.q.head.LoadAcquire()
	return int(occupancyMask(tail, head, s.q.mask))
}

// Size returns the number of elements currently stored (advisory, see
// Empty).
func (c *Source[T]) Size() int {
	head := c.q.head.LoadRelaxed()
	tail := c.q.tail.LoadAcquire()
	return int(occupancyMask(tail, head, c.q.mask))
}

// TryEnqueue stores value and returns true, or returns false immediately if
// the queue is full.
func (s *Sink[T]) TryEnqueue(value *T) bool {
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
// count actually stored, which may be less than len(data) if the queue does
// not have enough free space. It never blocks.
func (s *Sink[T]) TryEnqueueBulk(data []T) int {
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
	firstSeg := q.mask + 1 - start
	if firstSeg > n {
		firstSeg = n
	}
	copy(q.buffer[start:start+firstSeg], data[:firstSeg])
	if firstSeg < n {
		copy(q.buffer[0:n-firstSeg], data[firstSeg:n])
	}
	q.tail.StoreRelease(tail + n)
	return int(n)
}

// TryDequeue removes and returns the oldest element, or returns
// (zero-value, false) immediately if the queue is empty.
func (c *Source[T]) TryDequeue() (T, bool) {
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
// count actually removed, which may be less than len(out) if the queue does
// not hold enough elements. It never blocks.
func (c *Source[T]) TryDequeueBulk(out []T) int {
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
	firstSeg := q.mask + 1 - start
	if firstSeg > n {
		firstSeg = n
	}
	copy(out[:firstSeg], q.buffer[start:start+firstSeg])
	var zero T
	for i := start; i < start+firstSeg; i++ {
		q.buffer[i] = zero
	}
	if firstSeg < n {
		copy(out[firstSeg:n], q.buffer[0:n-firstSeg])
		for i := uint64(0); i < n-firstSeg; i++ {
			q.buffer[i] = zero
		}
	}
	q.head.StoreRelease(head + n)
	return int(n)
}

// Enqueue blocks until value is stored or timeout elapses, returning false
// on timeout. A timed-out call never stores value: the queue only copies
// from value once a slot is confirmed free, so there is no partial or
// duplicated transfer to undo.
func (s *Sink[T]) Enqueue(value *T, timeout time.Duration) bool {
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

// EnqueueBulk blocks, storing elements of data as slots free up, until all
// of data is stored or timeout elapses. It returns the count actually
// stored, which is len(data) on full success and may be less on timeout;
// it never blocks past the point where it has made no further progress for
// a full spin-and-yield cycle without checking the deadline.
func (s *Sink[T]) EnqueueBulk(data []T, timeout time.Duration) int {
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
func (c *Source[T]) Dequeue(timeout time.Duration) (T, bool) {
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

// DequeueBulk blocks, removing elements into out as they arrive, until out
// is fully populated or timeout elapses. It returns the count actually
// removed.
func (c *Source[T]) DequeueBulk(out []T, timeout time.Duration) int {
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
