// Copyright the spscq authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package spscq

import (
	"fmt"

	"code.hybscloud.com/iox"
)

// ErrWouldBlock is the would-block control flow signal from
// [code.hybscloud.com/iox], kept available for callers composing this
// package with other iox-style APIs.
//
// None of TryEnqueue, TryDequeue, Enqueue, or Dequeue in this package
// return it: a full or empty queue, and a blocking call that times out,
// are reported through a bool/count result instead, so that "try again
// later" is never mistaken for a failure that must be propagated. See
// [IsWouldBlock] for call sites that still want to reason about this
// outcome in error-shaped terms.
var ErrWouldBlock = iox.ErrWouldBlock

// IsWouldBlock reports whether err is (or wraps) [ErrWouldBlock].
func IsWouldBlock(err error) bool {
	return iox.IsWouldBlock(err)
}

// IsSemantic reports whether err is a control flow signal rather than a
// failure.
func IsSemantic(err error) bool {
	return iox.IsSemantic(err)
}

// IsNonFailure reports whether err represents a non-failure condition.
func IsNonFailure(err error) bool {
	return iox.IsNonFailure(err)
}

// mmapInitError wraps a failure encountered while double-mapping the
// backing region for [NewMmapSPSC]. It is the only error this package
// returns from production code — construction-time OS resource failure,
// as opposed to the steady-state full/empty/timeout outcomes reported via
// bool elsewhere.
type mmapInitError struct {
	op  string
	err error
}

func (e *mmapInitError) Error() string {
	return fmt.Sprintf("spscq: mmap init failed during %s: %v", e.op, e.err)
}

func (e *mmapInitError) Unwrap() error {
	return e.err
}
