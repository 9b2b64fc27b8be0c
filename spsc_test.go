// Copyright the spscq authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package spscq_test

import (
	"testing"
	"time"

	"github.com/qbuf-go/spscq"
)

func TestSPSCBasicFIFO(t *testing.T) {
	sink, source := spscq.NewSPSC[int](3)

	if sink.Cap() != 4 {
		t.Fatalf("Cap: got %d, want 4", sink.Cap())
	}

	for i := range 3 {
		v := i + 100
		if !sink.TryEnqueue(&v) {
			t.Fatalf("TryEnqueue(%d) failed", i)
		}
	}

	v := 999
	if sink.TryEnqueue(&v) {
		t.Fatal("TryEnqueue on full queue (Cap-1 = 3 slots used) should fail")
	}

	for i := range 3 {
		val, ok := source.TryDequeue()
		if !ok {
			t.Fatalf("TryDequeue(%d) failed", i)
		}
		if val != i+100 {
			t.Fatalf("TryDequeue(%d): got %d, want %d", i, val, i+100)
		}
	}

	if _, ok := source.TryDequeue(); ok {
		t.Fatal("TryDequeue on empty queue should fail")
	}
}

func TestSPSCWrapAround(t *testing.T) {
	sink, source := spscq.NewSPSC[int](4)

	for round := range 10 {
		for i := range 3 {
			v := round*100 + i
			if !sink.TryEnqueue(&v) {
				t.Fatalf("round %d enqueue %d failed", round, i)
			}
		}
		for i := range 3 {
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

func TestSPSCBulkPartialSuccess(t *testing.T) {
	sink, source := spscq.NewSPSC[int](4)

	data := []int{1, 2, 3, 4, 5, 6}
	n := sink.TryEnqueueBulk(data)
	if n != 3 {
		t.Fatalf("TryEnqueueBulk short of capacity (Cap-1 = 3): got %d, want 3", n)
	}

	out := make([]int, 6)
	got := source.TryDequeueBulk(out)
	if got != 3 {
		t.Fatalf("TryDequeueBulk on partially filled queue: got %d, want 3", got)
	}
	for i := range 3 {
		if out[i] != i+1 {
			t.Fatalf("out[%d] = %d, want %d", i, out[i], i+1)
		}
	}

	if got := source.TryDequeueBulk(out); got != 0 {
		t.Fatalf("TryDequeueBulk on empty queue: got %d, want 0", got)
	}
}

func TestSPSCBulkWrapAround(t *testing.T) {
	sink, source := spscq.NewSPSC[int](4)

	// Advance head/tail to the last slot so the bulk transfer crosses the
	// wrap point.
	for i := range 3 {
		v := i
		sink.TryEnqueue(&v)
	}
	out := make([]int, 3)
	source.TryDequeueBulk(out)

	data := []int{10, 20, 30, 40}
	if n := sink.TryEnqueueBulk(data); n != 3 {
		t.Fatalf("TryEnqueueBulk across wrap (Cap-1 = 3): got %d, want 3", n)
	}

	got := make([]int, 3)
	if n := source.TryDequeueBulk(got); n != 3 {
		t.Fatalf("TryDequeueBulk across wrap: got %d, want 3", n)
	}
	for i, want := range data[:3] {
		if got[i] != want {
			t.Fatalf("got[%d] = %d, want %d", i, got[i], want)
		}
	}
}

func TestSPSCBlockingTimeout(t *testing.T) {
	sink, source := spscq.NewSPSC[int](3) // Cap() == 4, 3 usable slots

	v1, v2, v3 := 1, 2, 3
	for _, v := range []*int{&v1, &v2, &v3} {
		if !sink.TryEnqueue(v) {
			t.Fatal("pre-fill enqueue should have succeeded")
		}
	}

	start := time.Now()
	full := 4
	if sink.Enqueue(&full, 20*time.Millisecond) {
		t.Fatal("Enqueue on permanently full queue should time out")
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Fatalf("Enqueue returned before timeout elapsed: %v", elapsed)
	}

	source.TryDequeue()
	source.TryDequeue()
	source.TryDequeue()

	start = time.Now()
	if _, ok := source.Dequeue(20 * time.Millisecond); ok {
		t.Fatal("Dequeue on permanently empty queue should time out")
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Fatalf("Dequeue returned before timeout elapsed: %v", elapsed)
	}
}

func TestSPSCEnqueueUnblocksOnRoom(t *testing.T) {
	sink, source := spscq.NewSPSC[int](3) // Cap() == 4, 3 usable slots
	v1, v2, v3 := 1, 2, 3
	for _, v := range []*int{&v1, &v2, &v3} {
		if !sink.TryEnqueue(v) {
			t.Fatal("pre-fill enqueue should have succeeded")
		}
	}

	done := make(chan bool, 1)
	go func() {
		v4 := 4
		done <- sink.Enqueue(&v4, 200*time.Millisecond)
	}()

	time.Sleep(10 * time.Millisecond)
	source.TryDequeue()

	select {
	case ok := <-done:
		if !ok {
			t.Fatal("Enqueue should have succeeded once a slot freed up")
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("Enqueue never returned")
	}
}

func TestSPSCCapacityRounding(t *testing.T) {
	tests := []struct{ input, want int }{
		{2, 2}, {3, 4}, {4, 4}, {5, 8}, {1000, 1024},
	}
	for _, tt := range tests {
		sink, _ := spscq.NewSPSC[int](tt.input)
		if sink.Cap() != tt.want {
			t.Errorf("NewSPSC(%d).Cap() = %d, want %d", tt.input, sink.Cap(), tt.want)
		}
	}
}

func TestSPSCPanicOnSmallCapacity(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for capacity < 2")
		}
	}()
	spscq.NewSPSC[int](1)
}

func TestSPSCZeroValue(t *testing.T) {
	sink, source := spscq.NewSPSC[int](4)
	v := 0
	if !sink.TryEnqueue(&v) {
		t.Fatal("enqueue of zero value should succeed")
	}
	val, ok := source.TryDequeue()
	if !ok || val != 0 {
		t.Fatalf("got (%d, %v), want (0, true)", val, ok)
	}
}
