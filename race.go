// Copyright the spscq authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build race

package spscq

// RaceEnabled is true when the race detector is active.
// The concurrent stress tests are excluded from race builds by a
// //go:build !race tag rather than by this constant, because the lock-free
// and mmap back-ends trigger false positives there: the race detector
// cannot see the happens-before relationship established by
// acquire/release atomics on separate variables.
const RaceEnabled = true
