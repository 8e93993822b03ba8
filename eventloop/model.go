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

package eventloop

import (
	"container/heap"
	"context"
	"encoding/binary"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	liberr "github.com/nabbar/golib/errors"
	liblog "github.com/nabbar/golib/logger"
	loglvl "github.com/nabbar/golib/logger/level"
	"golang.org/x/sys/unix"
)

const maxPollEvents = 128

type loop struct {
	mu   sync.Mutex
	pfd  int
	wfd  int
	tsk  []func()
	rea  []func()
	tmr  timerHeap
	seq  uint64
	fds  map[int]FdHandler
	run  atomic.Bool
	stop atomic.Bool
	wok  atomic.Bool
	done chan struct{}
	log  atomic.Pointer[liblog.FuncLog]
}

func newLoop() (Loop, liberr.Error) {
	p, e := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if e != nil {
		return nil, ErrorPollerCreate.Error(e)
	}

	w, e := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if e != nil {
		_ = unix.Close(p)
		return nil, ErrorPollerCreate.Error(e)
	}

	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(w)}
	if e = unix.EpollCtl(p, unix.EPOLL_CTL_ADD, w, &ev); e != nil {
		_ = unix.Close(p)
		_ = unix.Close(w)
		return nil, ErrorPollerCreate.Error(e)
	}

	return &loop{
		pfd:  p,
		wfd:  w,
		fds:  make(map[int]FdHandler),
		done: make(chan struct{}),
	}, nil
}

func (o *loop) RegisterFuncLogger(f liblog.FuncLog) {
	o.log.Store(&f)
}

func (o *loop) logger() liblog.Logger {
	if f := o.log.Load(); f != nil && *f != nil {
		if l := (*f)(); l != nil {
			return l
		}
	}

	return liblog.GetDefault()
}

func (o *loop) IsRunning() bool {
	return o.run.Load()
}

func (o *loop) Quit() {
	o.stop.Store(true)
	o.wake()
}

func (o *loop) Post(fn func()) {
	if fn == nil {
		return
	}

	o.mu.Lock()
	o.tsk = append(o.tsk, fn)
	o.mu.Unlock()

	o.wake()
}

func (o *loop) PostDelayed(d time.Duration, fn func()) Timer {
	if d < 0 {
		d = 0
	}

	e := &timerEntry{
		when: time.Now().Add(d),
		fn:   fn,
	}

	o.mu.Lock()
	o.seq++
	e.seq = o.seq
	heap.Push(&o.tmr, e)
	o.mu.Unlock()

	o.wake()

	return e
}

func (o *loop) Defer(fn func()) {
	if fn == nil {
		return
	}

	o.mu.Lock()
	o.rea = append(o.rea, fn)
	o.mu.Unlock()

	o.wake()
}

func (o *loop) RegisterFd(fd int, h FdHandler) liberr.Error {
	if h == nil {
		return ErrorFdRegister.Error(nil)
	}

	o.mu.Lock()
	o.fds[fd] = h
	o.mu.Unlock()

	ev := unix.EpollEvent{Events: unix.EPOLLIN | unix.EPOLLRDHUP, Fd: int32(fd)}
	if e := unix.EpollCtl(o.pfd, unix.EPOLL_CTL_ADD, fd, &ev); e != nil {
		o.mu.Lock()
		delete(o.fds, fd)
		o.mu.Unlock()
		return ErrorFdRegister.Error(e)
	}

	return nil
}

func (o *loop) ModifyFd(fd int, read, write bool) liberr.Error {
	var f uint32 = unix.EPOLLRDHUP

	if read {
		f |= unix.EPOLLIN
	}

	if write {
		f |= unix.EPOLLOUT
	}

	ev := unix.EpollEvent{Events: f, Fd: int32(fd)}
	if e := unix.EpollCtl(o.pfd, unix.EPOLL_CTL_MOD, fd, &ev); e != nil {
		return ErrorFdModify.Error(e)
	}

	return nil
}

func (o *loop) UnregisterFd(fd int) {
	o.mu.Lock()
	delete(o.fds, fd)
	o.mu.Unlock()

	// the kernel drops closed fds on its own, EBADF/ENOENT are expected here
	_ = unix.EpollCtl(o.pfd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (o *loop) Run(ctx context.Context) liberr.Error {
	if !o.run.CompareAndSwap(false, true) {
		return ErrorAlreadyRunning.Error(nil)
	}

	runtime.LockOSThread()

	defer func() {
		o.drainReap()
		close(o.done)
		_ = unix.Close(o.pfd)
		_ = unix.Close(o.wfd)
		o.run.Store(false)
		runtime.UnlockOSThread()
	}()

	if ctx != nil {
		go func() {
			select {
			case <-ctx.Done():
				o.Quit()
			case <-o.done:
			}
		}()
	}

	events := make([]unix.EpollEvent, maxPollEvents)

	for {
		o.drainReap()
		o.runTasks()
		o.fireTimers()

		if o.stop.Load() {
			return nil
		}

		n, e := unix.EpollWait(o.pfd, events, o.pollTimeout())

		if e == unix.EINTR {
			continue
		} else if e != nil {
			err := ErrorPollerWait.Error(e)
			o.logger().Entry(loglvl.ErrorLevel, "event loop poller failure").ErrorAdd(true, err).Log()
			return err
		}

		for i := 0; i < n; i++ {
			o.dispatch(events[i])
		}
	}
}

func (o *loop) dispatch(ev unix.EpollEvent) {
	fd := int(ev.Fd)

	if fd == o.wfd {
		var b [8]byte
		_, _ = unix.Read(o.wfd, b[:])
		o.wok.Store(false)
		return
	}

	o.mu.Lock()
	h := o.fds[fd]
	o.mu.Unlock()

	if h == nil {
		return
	}

	h.OnFdEvent(FdEvents{
		Readable: ev.Events&unix.EPOLLIN != 0,
		Writable: ev.Events&unix.EPOLLOUT != 0,
		Hangup:   ev.Events&(unix.EPOLLHUP|unix.EPOLLRDHUP) != 0,
		Error:    ev.Events&unix.EPOLLERR != 0,
	})
}

func (o *loop) wake() {
	if !o.run.Load() {
		return
	}

	if o.wok.CompareAndSwap(false, true) {
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], 1)
		_, _ = unix.Write(o.wfd, b[:])
	}
}

func (o *loop) drainReap() {
	o.mu.Lock()
	r := o.rea
	o.rea = nil
	o.mu.Unlock()

	for _, fn := range r {
		fn()
	}
}

func (o *loop) runTasks() {
	o.mu.Lock()
	t := o.tsk
	o.tsk = nil
	o.mu.Unlock()

	for _, fn := range t {
		fn()
	}
}

func (o *loop) fireTimers() {
	now := time.Now()

	for {
		o.mu.Lock()
		e := o.tmr.next()

		if e == nil || e.when.After(now) {
			o.mu.Unlock()
			return
		}

		heap.Pop(&o.tmr)
		o.mu.Unlock()

		if !e.dead.Swap(true) && e.fn != nil {
			e.fn()
		}
	}
}

func (o *loop) pollTimeout() int {
	o.mu.Lock()
	defer o.mu.Unlock()

	if len(o.tsk) > 0 || len(o.rea) > 0 {
		return 0
	}

	e := o.tmr.next()
	if e == nil {
		return -1
	}

	d := time.Until(e.when)
	if d <= 0 {
		return 0
	}

	// round up so a timer never fires early
	return int((d + time.Millisecond - 1) / time.Millisecond)
}
