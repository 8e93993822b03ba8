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

// lifecycle_test.go validates worker startup, echo traffic through the
// handler factory, the connection cap and the stop sequence.
package worker_test

import (
	"net"
	"strconv"
	"sync/atomic"
	"time"

	srvwrk "github.com/sabouaram/netbind/server/worker"
	sckvls "github.com/sabouaram/netbind/socket/listen"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Server Worker Lifecycle", func() {
	var (
		stop    func()
		wrk     srvwrk.Worker
		started atomic.Int32
		stopped atomic.Int32
		failed  atomic.Int32
		femsg   atomic.Pointer[string]
	)

	newWorker := func(max int64) {
		loop, st := startLoop()
		stop = st

		started.Store(0)
		stopped.Store(0)
		failed.Store(0)

		wrk = srvwrk.New(loop, echoFactory(loop), srvwrk.Options{MaxConnections: max})
		wrk.RegisterStarted(func() { started.Add(1) })
		wrk.RegisterStopped(func() { stopped.Add(1) })
		wrk.RegisterFailed(func(m string) {
			failed.Add(1)
			femsg.Store(&m)
		})
	}

	AfterEach(func() {
		if wrk != nil && wrk.ExecState() == srvwrk.Started {
			wrk.Stop()
			Eventually(stopped.Load, 5*time.Second, time.Millisecond).Should(Equal(int32(1)))
		}

		stop()
	})

	dial := func() net.Conn {
		// the worker binds an ephemeral port on loopback
		Expect(wrk.ExecState()).To(Equal(srvwrk.Started))

		c, e := net.DialTimeout("tcp4", addrOf(wrk), 2*time.Second)
		Expect(e).ToNot(HaveOccurred())

		return c
	}

	Context("startup", func() {
		It("should report started and accept traffic", func() {
			newWorker(0)

			wrk.Start(sckvls.Config{Address: "127.0.0.1", Port: freePort()})
			Eventually(started.Load, 2*time.Second, time.Millisecond).Should(Equal(int32(1)))
			Expect(wrk.ExecState()).To(Equal(srvwrk.Started))

			c := dial()
			defer func() { _ = c.Close() }()

			Eventually(wrk.OpenConnections, 2*time.Second, time.Millisecond).Should(Equal(int64(1)))

			_, e := c.Write([]byte("a"))
			Expect(e).ToNot(HaveOccurred())

			got := make([]byte, 4)
			_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
			n, e := c.Read(got)
			Expect(e).ToNot(HaveOccurred())
			Expect(string(got[:n])).To(Equal("a"))
		})

		It("should report failed on invalid start data", func() {
			newWorker(0)

			wrk.Start(sckvls.Config{})
			Eventually(failed.Load, 2*time.Second, time.Millisecond).Should(Equal(int32(1)))
			Expect(wrk.ExecState()).To(Equal(srvwrk.Stopped))
			Expect(started.Load()).To(Equal(int32(0)))
			Expect(*femsg.Load()).ToNot(BeEmpty())
		})
	})

	Context("connection cap", func() {
		It("should close descriptors above the cap without a handler", func() {
			newWorker(2)

			wrk.Start(sckvls.Config{Address: "127.0.0.1", Port: freePort()})
			Eventually(started.Load, 2*time.Second, time.Millisecond).Should(Equal(int32(1)))

			c1 := dial()
			defer func() { _ = c1.Close() }()
			c2 := dial()
			defer func() { _ = c2.Close() }()

			Eventually(wrk.OpenConnections, 2*time.Second, time.Millisecond).Should(Equal(int64(2)))

			// the third connection must be shut by the worker itself
			c3 := dial()
			defer func() { _ = c3.Close() }()

			_ = c3.SetReadDeadline(time.Now().Add(2 * time.Second))
			one := make([]byte, 1)
			_, e := c3.Read(one)
			Expect(e).To(HaveOccurred())

			Expect(wrk.OpenConnections()).To(BeNumerically("<=", int64(2)))

			// capped peers keep working
			_, e = c1.Write([]byte("x"))
			Expect(e).ToNot(HaveOccurred())

			_ = c1.SetReadDeadline(time.Now().Add(2 * time.Second))
			n, e := c1.Read(one)
			Expect(e).ToNot(HaveOccurred())
			Expect(n).To(Equal(1))
		})
	})

	Context("stop", func() {
		It("should disconnect live handlers and report stopped", func() {
			newWorker(0)

			wrk.Start(sckvls.Config{Address: "127.0.0.1", Port: freePort()})
			Eventually(started.Load, 2*time.Second, time.Millisecond).Should(Equal(int32(1)))

			c := dial()
			defer func() { _ = c.Close() }()

			Eventually(wrk.OpenConnections, 2*time.Second, time.Millisecond).Should(Equal(int64(1)))

			wrk.Stop()

			Eventually(stopped.Load, 5*time.Second, time.Millisecond).Should(Equal(int32(1)))
			Expect(wrk.ExecState()).To(Equal(srvwrk.Stopped))
			Expect(wrk.OpenConnections()).To(Equal(int64(0)))

			// the peer observes the teardown
			_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
			one := make([]byte, 1)
			_, e := c.Read(one)
			Expect(e).To(HaveOccurred())
		})
	})
})

var lastPort atomic.Int32

// freePort grabs an ephemeral port and releases it for the worker to bind.
func freePort() uint16 {
	l, err := net.Listen("tcp4", "127.0.0.1:0")
	Expect(err).ToNot(HaveOccurred())

	p := l.Addr().(*net.TCPAddr).Port
	_ = l.Close()

	lastPort.Store(int32(p))

	return uint16(p)
}

func addrOf(_ srvwrk.Worker) string {
	return net.JoinHostPort("127.0.0.1", strconv.Itoa(int(lastPort.Load())))
}
