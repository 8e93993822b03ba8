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

// contracts_test.go validates the shared enumerations, the POSIX failure
// rendering and the nil-safety of the event hook set.
package socket_test

import (
	"context"

	libsck "github.com/sabouaram/netbind/socket"
	"golang.org/x/sys/unix"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Socket Contracts", func() {
	Context("posix failure rendering", func() {
		It("should render the errno name, number and text", func() {
			Expect(libsck.PosixMessage(unix.EACCES)).To(Equal("POSIX error EACCES(13): Permission denied."))
			Expect(libsck.PosixMessage(unix.EADDRINUSE)).To(Equal("POSIX error EADDRINUSE(98): Address already in use."))
		})
	})

	Context("state enumerations", func() {
		It("should render the lifecycle states", func() {
			Expect(libsck.Unconnected.String()).To(Equal("Unconnected"))
			Expect(libsck.Connecting.String()).To(Equal("Connecting"))
			Expect(libsck.Connected.String()).To(Equal("Connected"))
			Expect(libsck.Disconnecting.String()).To(Equal("Disconnecting"))
		})

		It("should render the handshake states", func() {
			Expect(libsck.HandshakeNotStarted.String()).To(Equal("NotStarted"))
			Expect(libsck.HandshakeInProgress.String()).To(Equal("Handshaking"))
			Expect(libsck.HandshakeDone.String()).To(Equal("Done"))
			Expect(libsck.HandshakeFailed.String()).To(Equal("Failed"))
		})

		It("should render the option names", func() {
			Expect(libsck.LowDelay.String()).To(Equal("LowDelay"))
			Expect(libsck.KeepAlive.String()).To(Equal("KeepAlive"))
			Expect(libsck.SendBufferSize.String()).To(Equal("SendBufferSize"))
			Expect(libsck.ReceiveBufferSize.String()).To(Equal("ReceiveBufferSize"))
		})
	})

	Context("event hook set", func() {
		It("should tolerate a fully nil hook set", func() {
			var e *libsck.Events

			e.Connected()
			e.Encrypted()
			e.DataReceived()
			e.DataSent()
			e.Disconnected()
			e.Error(nil)
		})

		It("should invoke the configured hooks", func() {
			var n int

			e := &libsck.Events{
				OnConnected:    func() { n++ },
				OnDisconnected: func() { n++ },
			}

			e.Connected()
			e.DataReceived() // unset hooks stay silent
			e.Disconnected()

			Expect(n).To(Equal(2))
		})
	})

	Context("resolver", func() {
		It("should resolve loopback names without a DNS server", func() {
			r := libsck.NewResolver()

			ips := r.Resolve(context.Background(), "localhost")
			Expect(len(ips)).To(BeNumerically(">=", 1))
			Expect(ips[0].String()).To(Equal("127.0.0.1"))
		})
	})
})
