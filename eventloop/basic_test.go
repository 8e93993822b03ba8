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

// basic_test.go validates queued invocations, timers, deferred release and
// file-descriptor readiness dispatch.
package eventloop_test

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	evtlps "github.com/sabouaram/netbind/eventloop"
	"golang.org/x/sys/unix"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type fdRecorder struct {
	mu  sync.Mutex
	evs []evtlps.FdEvents
}

func (o *fdRecorder) OnFdEvent(ev evtlps.FdEvents) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.evs = append(o.evs, ev)
}

func (o *fdRecorder) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.evs)
}

func (o *fdRecorder) last() evtlps.FdEvents {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.evs[len(o.evs)-1]
}

var _ = Describe("Event Loop Basic Operations", func() {
	var (
		lop evtlps.Loop
		cnl context.CancelFunc
		end chan struct{}
	)

	BeforeEach(func() {
		var (
			c   context.Context
			err error
		)

		lop, err = evtlps.New()
		Expect(err).To(BeNil())

		c, cnl = context.WithCancel(globalCtx)
		end = make(chan struct{})

		go func() {
			defer close(end)
			_ = lop.Run(c)
		}()

		Eventually(lop.IsRunning, time.Second, 5*time.Millisecond).Should(BeTrue())
	})

	AfterEach(func() {
		cnl()
		Eventually(end, time.Second).Should(BeClosed())
	})

	Context("with queued invocations", func() {
		It("should run posted functions on the loop goroutine", func() {
			var ran atomic.Bool

			lop.Post(func() {
				ran.Store(true)
			})

			Eventually(ran.Load, time.Second, time.Millisecond).Should(BeTrue())
		})

		It("should keep posting order", func() {
			var (
				mu  sync.Mutex
				got []int
			)

			for i := 0; i < 100; i++ {
				n := i
				lop.Post(func() {
					mu.Lock()
					got = append(got, n)
					mu.Unlock()
				})
			}

			Eventually(func() int {
				mu.Lock()
				defer mu.Unlock()
				return len(got)
			}, time.Second, time.Millisecond).Should(Equal(100))

			mu.Lock()
			defer mu.Unlock()
			for i, v := range got {
				Expect(v).To(Equal(i))
			}
		})

		It("should run a function posted from a callback in a later turn", func() {
			var step atomic.Int32

			lop.Post(func() {
				lop.Post(func() {
					// the nested invocation must not run inline
					Expect(step.Load()).To(Equal(int32(1)))
					step.Store(2)
				})
				step.Store(1)
			})

			Eventually(step.Load, time.Second, time.Millisecond).Should(Equal(int32(2)))
		})
	})

	Context("with timers", func() {
		It("should fire after the delay", func() {
			var hit atomic.Bool
			t0 := time.Now()

			lop.PostDelayed(50*time.Millisecond, func() {
				hit.Store(true)
			})

			Eventually(hit.Load, time.Second, time.Millisecond).Should(BeTrue())
			Expect(time.Since(t0)).To(BeNumerically(">=", 50*time.Millisecond))
		})

		It("should not fire a stopped timer", func() {
			var hit atomic.Bool

			t := lop.PostDelayed(50*time.Millisecond, func() {
				hit.Store(true)
			})
			t.Stop()

			Consistently(hit.Load, 200*time.Millisecond, 10*time.Millisecond).Should(BeFalse())
		})
	})

	Context("with deferred release", func() {
		It("should drain the release list in the next turn", func() {
			var hit atomic.Bool

			lop.Post(func() {
				lop.Defer(func() {
					hit.Store(true)
				})
				Expect(hit.Load()).To(BeFalse())
			})

			Eventually(hit.Load, time.Second, time.Millisecond).Should(BeTrue())
		})
	})

	Context("with registered file descriptors", func() {
		It("should deliver read readiness", func() {
			var fds [2]int
			Expect(unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC)).To(Succeed())

			defer func() {
				_ = unix.Close(fds[0])
				_ = unix.Close(fds[1])
			}()

			rec := &fdRecorder{}
			Expect(lop.RegisterFd(fds[0], rec)).To(BeNil())

			_, e := unix.Write(fds[1], []byte("x"))
			Expect(e).ToNot(HaveOccurred())

			Eventually(rec.count, time.Second, time.Millisecond).Should(BeNumerically(">", 0))
			Expect(rec.last().Readable).To(BeTrue())

			lop.UnregisterFd(fds[0])
		})

		It("should signal hangup when the peer end closes", func() {
			var fds [2]int
			Expect(unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC)).To(Succeed())

			defer func() {
				_ = unix.Close(fds[0])
			}()

			rec := &fdRecorder{}
			Expect(lop.RegisterFd(fds[0], rec)).To(BeNil())

			_ = unix.Close(fds[1])

			Eventually(func() bool {
				return rec.count() > 0 && rec.last().Hangup
			}, time.Second, time.Millisecond).Should(BeTrue())

			lop.UnregisterFd(fds[0])
		})
	})

	Context("lifecycle", func() {
		It("should refuse a second concurrent run", func() {
			err := lop.Run(context.Background())
			Expect(err).ToNot(BeNil())
			Expect(err.IsCode(evtlps.ErrorAlreadyRunning)).To(BeTrue())
		})

		It("should stop on quit", func() {
			lop.Quit()
			Eventually(end, time.Second).Should(BeClosed())
			Expect(lop.IsRunning()).To(BeFalse())
		})
	})
})
