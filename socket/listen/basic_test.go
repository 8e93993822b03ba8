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

// basic_test.go validates listener startup, ordered accept delivery, the
// inherited-descriptor mode and the one-shot start contract.
package listen_test

import (
	"net"
	"strconv"
	"sync"
	"time"

	sckvls "github.com/sabouaram/netbind/socket/listen"
	"golang.org/x/sys/unix"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Listener Basic Operations", func() {
	var (
		mu   sync.Mutex
		fds  []int
		grab func(fd int)
	)

	BeforeEach(func() {
		mu.Lock()
		fds = nil
		mu.Unlock()

		grab = func(fd int) {
			mu.Lock()
			fds = append(fds, fd)
			mu.Unlock()
		}
	})

	count := func() int {
		mu.Lock()
		defer mu.Unlock()
		return len(fds)
	}

	closeAll := func() {
		mu.Lock()
		defer mu.Unlock()
		for _, fd := range fds {
			_ = unix.Close(fd)
		}
		fds = nil
	}

	It("should accept connections and surface descriptors in order", func() {
		loop, stop := startLoop()
		defer stop()

		var l sckvls.Listener

		onLoop(loop, func() {
			l = sckvls.New(loop, sckvls.Config{Address: "127.0.0.1", Port: 0}, grab)
			Expect(l.Start()).To(BeTrue())
			Expect(l.IsStarted()).To(BeTrue())
			Expect(l.LastError()).To(BeEmpty())
			Expect(l.Port()).ToNot(BeZero())
		})

		defer func() {
			onLoop(loop, l.Close)
			closeAll()
		}()

		var port uint16
		onLoop(loop, func() { port = l.Port() })

		for i := 0; i < 5; i++ {
			c, e := net.DialTimeout("tcp4", net.JoinHostPort("127.0.0.1", itoa(port)), 2*time.Second)
			Expect(e).ToNot(HaveOccurred())
			defer func() { _ = c.Close() }()
		}

		Eventually(count, 2*time.Second, time.Millisecond).Should(Equal(5))
	})

	It("should adopt an inherited listening descriptor", func() {
		loop, stop := startLoop()
		defer stop()

		// pre-bind a listening socket outside the listener
		fd, e := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
		Expect(e).ToNot(HaveOccurred())

		sa := &unix.SockaddrInet4{Port: 0}
		copy(sa.Addr[:], net.IPv4(127, 0, 0, 1).To4())
		Expect(unix.Bind(fd, sa)).To(Succeed())
		Expect(unix.Listen(fd, 16)).To(Succeed())

		var l sckvls.Listener

		onLoop(loop, func() {
			l = sckvls.New(loop, sckvls.Config{SocketDescriptor: fd}, grab)
			Expect(l.Start()).To(BeTrue())
			Expect(l.Port()).ToNot(BeZero())
		})

		defer func() {
			onLoop(loop, l.Close)
			closeAll()
		}()

		var port uint16
		onLoop(loop, func() { port = l.Port() })

		c, e := net.DialTimeout("tcp4", net.JoinHostPort("127.0.0.1", itoa(port)), 2*time.Second)
		Expect(e).ToNot(HaveOccurred())
		defer func() { _ = c.Close() }()

		Eventually(count, 2*time.Second, time.Millisecond).Should(Equal(1))
	})

	It("should be one-shot", func() {
		loop, stop := startLoop()
		defer stop()

		onLoop(loop, func() {
			l := sckvls.New(loop, sckvls.Config{Address: "127.0.0.1", Port: 0}, grab)
			Expect(l.Start()).To(BeTrue())
			Expect(l.Start()).To(BeFalse())
			Expect(l.LastError()).ToNot(BeEmpty())
			l.Close()
		})
	})

	Context("with invalid start data", func() {
		It("should refuse both an address and a descriptor", func() {
			loop, stop := startLoop()
			defer stop()

			onLoop(loop, func() {
				l := sckvls.New(loop, sckvls.Config{Address: "127.0.0.1", Port: 1024, SocketDescriptor: 42}, grab)
				Expect(l.Start()).To(BeFalse())
				Expect(l.LastError()).To(ContainSubstring("both an address and a socket descriptor"))
			})
		})

		It("should refuse empty start data", func() {
			loop, stop := startLoop()
			defer stop()

			onLoop(loop, func() {
				l := sckvls.New(loop, sckvls.Config{}, grab)
				Expect(l.Start()).To(BeFalse())
				Expect(l.LastError()).To(ContainSubstring("neither an address nor a socket descriptor"))
			})
		})

		It("should refuse a hostname as bind address", func() {
			loop, stop := startLoop()
			defer stop()

			onLoop(loop, func() {
				l := sckvls.New(loop, sckvls.Config{Address: "localhost", Port: 1024}, grab)
				Expect(l.Start()).To(BeFalse())
			})
		})
	})
})

func itoa(p uint16) string {
	return strconv.Itoa(int(p))
}
