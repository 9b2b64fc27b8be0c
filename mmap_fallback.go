// Copyright the spscq authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !linux

package spscq

// newDoubleMappedSlice has no portable double-mapping implementation
// outside Linux (no memfd_create/MAP_FIXED equivalent used here). It
// allocates a plain contiguous buffer and reports linear=false so the
// engine transparently uses the two-segment bulk path instead.
func newDoubleMappedSlice[T any](n uint64) (buf []T, actualN uint64, cleanup func(), linear bool, err error) {
	return make([]T, n), n, nil, false, nil
}
