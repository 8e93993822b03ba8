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

// repository_test.go validates the live-handler tracking, the empty
// notification and the teardown of leftover handlers.
package handler_test

import (
	srvhdl "github.com/sabouaram/netbind/server/handler"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// fakeHandler closes by firing its disconnect notification, the way a
// socket-backed handler behaves.
type fakeHandler struct {
	disc   func(h srvhdl.Handler)
	closed int
}

func (o *fakeHandler) Close() error {
	o.closed++

	if o.disc != nil {
		o.disc(o)
	}

	return nil
}

func (o *fakeHandler) RegisterDisconnect(fn func(h srvhdl.Handler)) {
	o.disc = fn
}

var _ = Describe("Handler Repository", func() {
	var rep srvhdl.Repository

	BeforeEach(func() {
		rep = srvhdl.NewRepository()
	})

	It("should count live handlers", func() {
		a := &fakeHandler{}
		b := &fakeHandler{}

		rep.Add(a)
		rep.Add(b)
		Expect(rep.Count()).To(Equal(int64(2)))

		rep.Add(a) // idempotent
		Expect(rep.Count()).To(Equal(int64(2)))

		rep.Remove(a)
		Expect(rep.Count()).To(Equal(int64(1)))

		rep.Remove(a) // unknown handler
		Expect(rep.Count()).To(Equal(int64(1)))
	})

	It("should remove a handler when its disconnect fires", func() {
		a := &fakeHandler{}
		rep.Add(a)

		Expect(a.Close()).To(Succeed())
		Expect(rep.Count()).To(Equal(int64(0)))
	})

	It("should notify when the last handler is removed", func() {
		var empty int

		rep.RegisterLastRemoved(func() {
			empty++
		})

		a := &fakeHandler{}
		b := &fakeHandler{}
		rep.Add(a)
		rep.Add(b)

		rep.Remove(a)
		Expect(empty).To(Equal(0))

		rep.Remove(b)
		Expect(empty).To(Equal(1))
	})

	It("should tear down leftover handlers on close", func() {
		a := &fakeHandler{}
		b := &fakeHandler{}
		rep.Add(a)
		rep.Add(b)

		Expect(rep.Close()).To(Succeed())
		Expect(a.closed).To(Equal(1))
		Expect(b.closed).To(Equal(1))
		Expect(rep.Count()).To(Equal(int64(0)))
	})
})
