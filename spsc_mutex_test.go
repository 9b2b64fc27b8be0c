// Copyright the spscq authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package spscq_test

import (
	"testing"
	"time"

	"github.com/qbuf-go/spscq"
)

func TestMutexSPSCBasicFIFO(t *testing.T) {
	sink, source := spscq.NewMutexSPSC[int](5) // not rounded to a power of two

	if sink.Cap() != 5 {
		t.Fatalf("Cap() = %d, want 5", sink.Cap())
	}

	for i := range 4 {
		v := i + 100
		if !sink.TryEnqueue(&v) {
			t.Fatalf("TryEnqueue(%d) failed", i)
		}
	}
	for i := range 4 {
		val, ok := source.TryDequeue()
		if !ok || val != i+100 {
			t.Fatalf("TryDequeue(%d): got (%d, %v), want (%d, true)", i, val, ok, i+100)
		}
	}
}

func TestMutexSPSCOddCapacityWrap(t *testing.T) {
	sink, source := spscq.NewMutexSPSC[int](3)

	for round := range 10 {
		for i := range 2 {
			v := round*100 + i
			if !sink.TryEnqueue(&v) {
				t.Fatalf("round %d enqueue %d failed", round, i)
			}
		}
		for i := range 2 {
			val, ok := source.TryDequeue()
			if !ok {
				t.Fatalf("round %d dequeue %d failed", round, i)
			}
			if want := round*100 + i; val != want {
				t.Fatalf("round %d dequeue %d: got %d, want %d", round, i, val, want)
			}
		}
	}
}

func TestMutexSPSCBulkPartialSuccess(t *testing.T) {
	sink, source := spscq.NewMutexSPSC[int](4) // 3 usable slots

	data := []int{1, 2, 3, 4, 5}
	if n := sink.TryEnqueueBulk(data); n != 3 {
		t.Fatalf("TryEnqueueBulk short of capacity: got %d, want 3", n)
	}

	out := make([]int, 5)
	if n := source.TryDequeueBulk(out); n != 3 {
		t.Fatalf("TryDequeueBulk: got %d, want 3", n)
	}
}

func TestMutexSPSCBlockingTimeout(t *testing.T) {
	sink, source := spscq.NewMutexSPSC[int](2)

	v1, v2 := 1, 2
	sink.TryEnqueue(&v1)
	sink.TryEnqueue(&v2)

	start := time.Now()
	v3 := 3
	if sink.Enqueue(&v3, 30*time.Millisecond) {
		t.Fatal("Enqueue on permanently full queue should time out")
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Fatalf("Enqueue returned before timeout elapsed: %v", elapsed)
	}

	source.TryDequeue()
	source.TryDequeue()

	start = time.Now()
	if _, ok := source.Dequeue(30 * time.Millisecond); ok {
		t.Fatal("Dequeue on permanently empty queue should time out")
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Fatalf("Dequeue returned before timeout elapsed: %v", elapsed)
	}
}

func TestMutexSPSCBlockingWakesOnNotify(t *testing.T) {
	sink, source := spscq.NewMutexSPSC[int](2)
	v1, v2 := 1, 2
	sink.TryEnqueue(&v1)
	sink.TryEnqueue(&v2)

	done := make(chan bool, 1)
	go func() {
		v3 := 3
		done <- sink.Enqueue(&v3, 500*time.Millisecond)
	}()

	time.Sleep(10 * time.Millisecond)
	source.TryDequeue()

	select {
	case ok := <-done:
		if !ok {
			t.Fatal("Enqueue should have succeeded once a slot freed up")
		}
	case <-time.After(time.Second):
		t.Fatal("Enqueue never returned; condition variable wakeup likely missing")
	}
}

func TestMutexSPSCPanicOnSmallCapacity(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for capacity < 2")
		}
	}()
	spscq.NewMutexSPSC[int](1)
}
