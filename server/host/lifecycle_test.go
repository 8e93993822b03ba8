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

// lifecycle_test.go validates the cross-thread lifecycle forwarding of the
// worker host, including the deferred stop while the worker is starting.
package host_test

import (
	"net"
	"strconv"
	"sync/atomic"
	"time"

	srvhst "github.com/sabouaram/netbind/server/host"
	srvwrk "github.com/sabouaram/netbind/server/worker"
	sckvls "github.com/sabouaram/netbind/socket/listen"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Worker Host Lifecycle", func() {
	var (
		hst     srvhst.Host
		started atomic.Int32
		stopped atomic.Int32
		failed  atomic.Int32
	)

	BeforeEach(func() {
		started.Store(0)
		stopped.Store(0)
		failed.Store(0)

		var err error
		hst, err = srvhst.New(echoWorker)
		Expect(err).To(BeNil())

		hst.RegisterStarted(func() { started.Add(1) })
		hst.RegisterStopped(func() { stopped.Add(1) })
		hst.RegisterFailed(func(_ string) { failed.Add(1) })
	})

	AfterEach(func() {
		Expect(hst.Close()).To(Succeed())
	})

	It("should start the hosted worker and serve traffic", func() {
		prt := freePort()
		hst.Start(sckvls.Config{Address: "127.0.0.1", Port: prt})

		Eventually(started.Load, 2*time.Second, time.Millisecond).Should(Equal(int32(1)))
		Expect(hst.ExecState()).To(Equal(srvwrk.Started))

		c, e := net.DialTimeout("tcp4", net.JoinHostPort("127.0.0.1", strconv.Itoa(int(prt))), 2*time.Second)
		Expect(e).ToNot(HaveOccurred())
		defer func() { _ = c.Close() }()

		Eventually(hst.OpenConnections, 2*time.Second, time.Millisecond).Should(Equal(int64(1)))

		_, e = c.Write([]byte("ping"))
		Expect(e).ToNot(HaveOccurred())

		got := make([]byte, 8)
		_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
		n, e := c.Read(got)
		Expect(e).ToNot(HaveOccurred())
		Expect(string(got[:n])).To(Equal("ping"))

		hst.Stop()
		Eventually(stopped.Load, 5*time.Second, time.Millisecond).Should(Equal(int32(1)))
		Expect(hst.ExecState()).To(Equal(srvwrk.Stopped))
	})

	It("should forward a startup failure", func() {
		hst.Start(sckvls.Config{})

		Eventually(failed.Load, 2*time.Second, time.Millisecond).Should(Equal(int32(1)))
		Expect(hst.ExecState()).To(Equal(srvwrk.Stopped))
		Expect(started.Load()).To(Equal(int32(0)))
	})

	It("should wind a started worker down on close", func() {
		prt := freePort()
		hst.Start(sckvls.Config{Address: "127.0.0.1", Port: prt})

		Eventually(started.Load, 2*time.Second, time.Millisecond).Should(Equal(int32(1)))

		c, e := net.DialTimeout("tcp4", net.JoinHostPort("127.0.0.1", strconv.Itoa(int(prt))), 2*time.Second)
		Expect(e).ToNot(HaveOccurred())
		defer func() { _ = c.Close() }()

		Eventually(hst.OpenConnections, 2*time.Second, time.Millisecond).Should(Equal(int64(1)))

		// no explicit stop first: close alone must rest the worker
		Expect(hst.Close()).To(Succeed())

		Expect(hst.ExecState()).To(Equal(srvwrk.Stopped))
		Expect(hst.OpenConnections()).To(Equal(int64(0)))
		Expect(stopped.Load()).To(Equal(int32(1)))

		// the handler socket was torn down with its worker
		_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
		one := make([]byte, 1)
		_, e = c.Read(one)
		Expect(e).To(HaveOccurred())
	})

	It("should close an idle host without blocking", func() {
		Expect(hst.Close()).To(Succeed())
		Expect(hst.ExecState()).To(Equal(srvwrk.Stopped))
	})

	It("should defer a stop issued while starting", func() {
		hst.Start(sckvls.Config{Address: "127.0.0.1", Port: freePort()})

		// the hosted worker has most likely not resolved startup yet
		hst.Stop()

		Eventually(stopped.Load, 5*time.Second, time.Millisecond).Should(Equal(int32(1)))
		Expect(hst.ExecState()).To(Equal(srvwrk.Stopped))
	})
})

// freePort grabs an ephemeral port and releases it for the worker to bind.
func freePort() uint16 {
	l, err := net.Listen("tcp4", "127.0.0.1:0")
	Expect(err).ToNot(HaveOccurred())

	p := l.Addr().(*net.TCPAddr).Port
	_ = l.Close()

	return uint16(p)
}
