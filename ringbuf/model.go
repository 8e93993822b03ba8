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

package ringbuf

import (
	liberr "github.com/nabbar/golib/errors"
)

const minAlloc = 512

// buf stores bytes in a wrap-around window [rd, rd+size) over a backing
// slice whose length is always a power of two. The mask shortcut works only
// while that invariant holds.
type buf struct {
	data []byte
	rd   int
	size int
	cap  int
}

func (o *buf) Write(p []byte) liberr.Error {
	if len(p) == 0 {
		return nil
	}

	if o.cap > 0 && o.size+len(p) > o.cap {
		return ErrorCapacityExceeded.Error(nil)
	}

	o.grow(o.size + len(p))

	w := (o.rd + o.size) & (len(o.data) - 1)
	n := copy(o.data[w:], p)

	if n < len(p) {
		copy(o.data, p[n:])
	}

	o.size += len(p)

	return nil
}

func (o *buf) Read(p []byte) int {
	n := len(p)

	if n > o.size {
		n = o.size
	}

	if n == 0 {
		return 0
	}

	c := copy(p, o.data[o.rd:min(o.rd+n, len(o.data))])

	if c < n {
		copy(p[c:], o.data[:n-c])
	}

	o.discard(n)

	return n
}

func (o *buf) PeekAll() []byte {
	if o.size == 0 {
		return nil
	}

	if o.rd+o.size > len(o.data) {
		// wrapped content, relocate into a fresh contiguous region
		n := make([]byte, nextPow2(o.size))
		c := copy(n, o.data[o.rd:])
		copy(n[c:], o.data[:o.size-c])
		o.data = n
		o.rd = 0
	}

	return o.data[o.rd : o.rd+o.size]
}

func (o *buf) Skip(n int) int {
	if n > o.size {
		n = o.size
	}

	if n > 0 {
		o.discard(n)
	}

	return n
}

func (o *buf) Len() int {
	return o.size
}

func (o *buf) Cap() int {
	return o.cap
}

func (o *buf) IsEmpty() bool {
	return o.size == 0
}

func (o *buf) Free() int {
	if o.cap == 0 {
		return -1
	}

	return o.cap - o.size
}

func (o *buf) Clear() {
	o.rd = 0
	o.size = 0
}

func (o *buf) SetCapacity(c int) liberr.Error {
	if c < 0 {
		c = 0
	}

	if c != 0 && o.size > c {
		return ErrorInvalidCapacity.Error(nil)
	}

	o.cap = c

	return nil
}

func (o *buf) discard(n int) {
	o.size -= n

	if o.size == 0 {
		o.rd = 0
	} else {
		o.rd = (o.rd + n) & (len(o.data) - 1)
	}
}

func (o *buf) grow(need int) {
	if need <= len(o.data) {
		return
	}

	n := make([]byte, nextPow2(need))

	if o.size > 0 {
		c := copy(n, o.data[o.rd:min(o.rd+o.size, len(o.data))])
		if c < o.size {
			copy(n[c:], o.data[:o.size-c])
		}
	}

	o.data = n
	o.rd = 0
}

func nextPow2(n int) int {
	p := minAlloc

	for p < n {
		p <<= 1
	}

	return p
}
