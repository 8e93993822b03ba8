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

// boundary_test.go checks the capacity cap enforcement at its exact limits.
package ringbuf_test

import (
	"bytes"

	sckbuf "github.com/sabouaram/netbind/ringbuf"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Ring Buffer Capacity Boundaries", func() {
	Context("with a nonzero capacity", func() {
		It("should accept a write exactly filling the cap", func() {
			b := sckbuf.New(100)
			Expect(b.Write(bytes.Repeat([]byte("a"), 100))).To(BeNil())
			Expect(b.Len()).To(Equal(100))
			Expect(b.Free()).To(Equal(0))
		})

		It("should refuse one byte beyond the cap", func() {
			b := sckbuf.New(100)
			Expect(b.Write(bytes.Repeat([]byte("a"), 100))).To(BeNil())

			err := b.Write([]byte("b"))
			Expect(err).ToNot(BeNil())
			Expect(err.IsCode(sckbuf.ErrorCapacityExceeded)).To(BeTrue())
			Expect(b.Len()).To(Equal(100))
		})

		It("should refuse an oversized write atomically", func() {
			b := sckbuf.New(10)
			Expect(b.Write([]byte("12345"))).To(BeNil())

			err := b.Write([]byte("6789ab"))
			Expect(err).ToNot(BeNil())

			p := make([]byte, 16)
			n := b.Read(p)
			Expect(string(p[:n])).To(Equal("12345"))
		})

		It("should free room as bytes are consumed", func() {
			b := sckbuf.New(8)
			Expect(b.Write([]byte("12345678"))).To(BeNil())
			Expect(b.Write([]byte("x"))).ToNot(BeNil())

			p := make([]byte, 4)
			Expect(b.Read(p)).To(Equal(4))
			Expect(b.Write([]byte("abcd"))).To(BeNil())

			q := make([]byte, 16)
			n := b.Read(q)
			Expect(string(q[:n])).To(Equal("5678abcd"))
		})
	})

	Context("when changing the capacity", func() {
		It("should refuse a cap below the stored size", func() {
			b := sckbuf.New(0)
			Expect(b.Write([]byte("123456"))).To(BeNil())

			err := b.SetCapacity(4)
			Expect(err).ToNot(BeNil())
			Expect(err.IsCode(sckbuf.ErrorInvalidCapacity)).To(BeTrue())
		})

		It("should accept a cap equal to the stored size", func() {
			b := sckbuf.New(0)
			Expect(b.Write([]byte("123456"))).To(BeNil())
			Expect(b.SetCapacity(6)).To(BeNil())
			Expect(b.Write([]byte("x"))).ToNot(BeNil())
		})

		It("should always accept an unlimited cap", func() {
			b := sckbuf.New(4)
			Expect(b.Write([]byte("1234"))).To(BeNil())
			Expect(b.SetCapacity(0)).To(BeNil())
			Expect(b.Write(bytes.Repeat([]byte("z"), 4096))).To(BeNil())
		})
	})
})
