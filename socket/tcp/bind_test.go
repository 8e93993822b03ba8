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

// bind_test.go validates the local-endpoint binding path and its literal
// failure messages.
package tcp_test

import (
	"net"
	"time"

	evtlps "github.com/sabouaram/netbind/eventloop"
	scktcp "github.com/sabouaram/netbind/socket/tcp"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("TCP Socket Binding", func() {
	var (
		lop  evtlps.Loop
		stop func()
		rec  *evRecorder
		cli  scktcp.SocketTcp
	)

	BeforeEach(func() {
		lop, stop = startLoop()
		rec = &evRecorder{}

		onLoop(lop, func() {
			cli = scktcp.New(lop, rec.events())
		})
	})

	AfterEach(func() {
		onLoop(lop, func() {
			cli.Abort()
		})
		stop()
	})

	It("should connect from the requested local endpoint", func() {
		lis, acc := acceptOne()
		defer func() { _ = lis.Close() }()

		onLoop(lop, func() {
			cli.SetBindAddressAndPort("127.0.0.1", 0)
			cli.Connect("127.0.0.1", listenerPort(lis))
		})

		Eventually(rec.connected.Load, 2*time.Second, time.Millisecond).Should(Equal(int32(1)))

		var srvConn net.Conn
		Eventually(acc, 2*time.Second).Should(Receive(&srvConn))
		defer func() { _ = srvConn.Close() }()

		onLoop(lop, func() {
			Expect(cli.LocalAddress()).To(Equal("127.0.0.1"))
			Expect(cli.LocalPort()).ToNot(BeZero())
		})
	})

	It("should fail on a busy local endpoint with the address-in-use message", func() {
		lis, _ := acceptOne()
		defer func() { _ = lis.Close() }()

		tgt, acc := acceptOne()
		defer func() { _ = tgt.Close() }()
		_ = acc

		onLoop(lop, func() {
			cli.SetBindAddressAndPort("127.0.0.1", listenerPort(lis))
			cli.Connect("127.0.0.1", listenerPort(tgt))
		})

		Eventually(rec.failed.Load, 2*time.Second, time.Millisecond).Should(Equal(int32(1)))

		onLoop(lop, func() {
			Expect(cli.ErrorMessage()).To(HavePrefix("Failed to bind socket to 127.0.0.1:"))
			Expect(cli.ErrorMessage()).To(HaveSuffix("EADDRINUSE(98): Address already in use."))
		})

		Expect(rec.connected.Load()).To(Equal(int32(0)))
	})
})
