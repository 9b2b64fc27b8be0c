// Copyright the spscq authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package spscq provides bounded single-producer single-consumer FIFO
// queues behind one producer/consumer handle contract, with three
// interchangeable back-ends:
//
//   - [NewSPSC]: lock-free ring buffer, cache-line split indices.
//   - [NewMmapSPSC]: lock-free ring buffer whose storage is double-mapped
//     so bulk transfers are always a single contiguous copy.
//   - [NewMutexSPSC]: mutex/condition-variable ring buffer, the portable
//     reference implementation and fallback.
//
// # Quick Start
//
//	sink, source := spscq.NewSPSC[Event](1024)
//
//	go func() { // producer
//	    for ev := range events {
//	        for !sink.Enqueue(&ev, 10*time.Millisecond) {
//	        }
//	    }
//	}()
//
//	go func() { // consumer
//	    for {
//	        ev, ok := source.Dequeue(10 * time.Millisecond)
//	        if ok {
//	            process(ev)
//	        }
//	    }
//	}()
//
// # Back-ends
//
// Each constructor returns one producer-only handle and one consumer-only
// handle, jointly owning the queue. There is no other way to obtain a
// handle, and a handle is only ever valid on one goroutine at a time:
//
//	sink, source := spscq.NewSPSC[Event](1024)
//	sink, source, err := spscq.NewMmapSPSC[Event](1024)
//	sink, source := spscq.NewMutexSPSC[Event](1024)
//
// NewSPSC and NewMmapSPSC round capacity up to the next power of two, and
// exactly Cap()-1 elements fit — one slot is always sacrificed so that
// head==tail unambiguously means empty. NewMmapSPSC may round further on
// Linux so its double mapping's alias period lands on a page boundary;
// Cap() always reports the queue's actual rounded size. NewMutexSPSC uses
// capacity exactly as given, and likewise fits Cap()-1 elements. All three
// panic if capacity < 2.
//
// NewMmapSPSC is the only constructor that can fail: if the kernel refuses
// the double-mapping syscalls, it returns a non-nil error but still hands
// back a working queue that has fallen back to a plain allocation.
//
// # Bulk transfer
//
// TryEnqueueBulk and TryDequeueBulk move as many elements as currently fit
// or are currently available, and return that count — never an error, and
// never more than len(data)/len(out):
//
//	n := sink.TryEnqueueBulk(batch)       // n <= len(batch)
//	n := source.TryDequeueBulk(dst)       // n <= len(dst)
//
// A short count is not a failure signal; it means the opposite end has not
// caught up yet. Use EnqueueBulk/DequeueBulk for a blocking variant that
// keeps retrying the remainder until either everything moves or the
// timeout elapses.
//
// # Blocking and timeouts
//
// Enqueue and Dequeue (and their bulk counterparts) take a time.Duration
// and return false (or a short count) if that duration elapses before the
// operation can complete. A timed-out Enqueue never copies value into the
// queue — there is no partial transfer to undo, because the lock-free and
// mmap back-ends only assign from the caller's pointer once a slot is
// already confirmed free, and the mutex back-end only assigns after
// acquiring the lock with room available.
//
//	ok := sink.Enqueue(&v, 50*time.Millisecond)
//	v, ok := source.Dequeue(50 * time.Millisecond)
//
// The lock-free and mmap back-ends implement the wait as a brief spin
// ([code.hybscloud.com/spin]) followed by runtime.Gosched between
// retries. The mutex back-end waits on a [sync.Cond] and is woken either
// by the opposite handle's next successful operation or by its own
// timeout timer.
//
// # Observers
//
// Empty and Size are advisory: by the time the caller acts on the result,
// the opposite end may already have enqueued or dequeued concurrently.
// They are useful for metrics and backpressure heuristics, never for
// correctness decisions.
//
// # Error handling
//
// Enqueue, Dequeue, and their Try/Bulk variants never return an error:
// full, empty, and timeout are reported through bool/count results, since
// they are expected outcomes a caller retries, not failures to propagate.
// The sole exception is [NewMmapSPSC], whose error reports a
// construction-time OS resource failure. [IsWouldBlock], [IsSemantic], and
// [IsNonFailure] delegate to [code.hybscloud.com/iox] for call sites that
// still want to reason about these outcomes in error-shaped terms.
//
// # Thread safety
//
// Each Sink must be driven by exactly one goroutine, and each Source by
// exactly one goroutine — that is the "SP" and "SC" in SPSC. Driving a
// Sink or Source from more than one goroutine concurrently is undefined
// behavior: these back-ends are not multi-producer or multi-consumer safe.
//
// # Race detection
//
// Go's race detector tracks explicit synchronization primitives but cannot
// observe the happens-before relationship the lock-free and mmap back-ends
// establish through acquire/release atomics on separate variables.
// Concurrent tests for those back-ends are gated behind //go:build !race;
// see [RaceEnabled].
//
// # Dependencies
//
// This package uses [code.hybscloud.com/atomix] for atomics with explicit
// memory ordering, [code.hybscloud.com/iox] for the one semantic error it
// exposes, [code.hybscloud.com/spin] for the blocking facade's busy-wait
// step, and golang.org/x/sys/unix for the mmap back-end's Linux
// double-mapping syscalls.
package spscq
