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

package handler

import (
	"sync/atomic"
)

// repo lives on one worker loop; only Count is read cross-thread, which is
// why it rides on an atomic while the set itself is loop-confined.
type repo struct {
	set map[Handler]struct{}
	cnt atomic.Int64
	fnl func()
}

func (o *repo) Add(h Handler) {
	if h == nil {
		return
	}

	if _, ok := o.set[h]; ok {
		return
	}

	o.set[h] = struct{}{}
	o.cnt.Add(1)

	h.RegisterDisconnect(o.Remove)
}

func (o *repo) Remove(h Handler) {
	if _, ok := o.set[h]; !ok {
		return
	}

	delete(o.set, h)

	if o.cnt.Add(-1) == 0 && o.fnl != nil {
		o.fnl()
	}
}

func (o *repo) Count() int64 {
	return o.cnt.Load()
}

func (o *repo) RegisterLastRemoved(fn func()) {
	o.fnl = fn
}

func (o *repo) Close() error {
	// closing a handler triggers its disconnect notification, which
	// re-enters Remove; iterate over a snapshot
	l := make([]Handler, 0, len(o.set))

	for h := range o.set {
		l = append(l, h)
	}

	for _, h := range l {
		_ = h.Close()
	}

	return nil
}
