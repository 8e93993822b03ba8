/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package ringbuf provides a capacity-capped byte buffer used as the staging
// area of the non-blocking socket read and write paths.
//
// The buffer keeps bytes in arrival order between a producer and a consumer
// living on the same event-loop goroutine. It can hand out a contiguous view
// of its whole content, relocating the payload when the internal cursors
// wrapped around. A buffer instance belongs to exactly one channel and must
// never be shared across goroutines.
package ringbuf

import (
	liberr "github.com/nabbar/golib/errors"
)

// Buffer is an ordered byte container with an optional capacity cap.
//
// A capacity of zero means unlimited: the buffer grows until allocation
// fails. With a nonzero capacity, a write that would push the stored size
// beyond the cap is refused as a whole.
type Buffer interface {
	// Write appends p to the buffer. When a nonzero capacity is set and
	// len(p) would exceed the remaining room, nothing is stored and a
	// capacity error is returned. A zero-length write is a no-op.
	Write(p []byte) liberr.Error

	// Read copies up to min(len(p), Len()) bytes into p, consuming them.
	// It returns the number of bytes copied, zero when the buffer is empty.
	Read(p []byte) int

	// PeekAll returns a contiguous read-only view of the whole content.
	// The returned slice stays valid until the next mutating call only.
	PeekAll() []byte

	// Skip consumes up to n bytes without copying them and returns the
	// number of bytes actually dropped.
	Skip(n int) int

	// Len returns the number of stored bytes.
	Len() int

	// Cap returns the configured capacity, zero meaning unlimited.
	Cap() int

	// IsEmpty returns true when no byte is stored.
	IsEmpty() bool

	// Free returns the remaining room before the cap, or a negative value
	// when no capacity is set.
	Free() int

	// Clear drops the whole content. The capacity is preserved.
	Clear()

	// SetCapacity changes the capacity cap. It fails unless the stored
	// size already fits the new cap, or the new cap is zero.
	SetCapacity(c int) liberr.Error
}

// New returns an empty Buffer with the given capacity cap, zero meaning
// unlimited.
func New(capacity int) Buffer {
	if capacity < 0 {
		capacity = 0
	}

	return &buf{
		cap: capacity,
	}
}
