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

// Package eventloop provides the single-threaded dispatch substrate of the
// networking runtime: an epoll poller, queued invocations, timers and a
// deferred-release list, all serviced by one goroutine locked to its OS
// thread.
//
// Every socket, listener and worker of this module is driven by exactly one
// Loop for its whole lifetime. Functions posted from other goroutines are
// marshalled through an eventfd wakeup; functions posted from inside a
// callback run in the next loop turn, in posting order.
package eventloop

import (
	"context"
	"time"

	liberr "github.com/nabbar/golib/errors"
	liblog "github.com/nabbar/golib/logger"
)

// FdEvents describes the readiness state delivered to a registered handler.
type FdEvents struct {
	Readable bool
	Writable bool
	Hangup   bool
	Error    bool
}

// FdHandler receives readiness events for one registered file descriptor.
// Callbacks run on the loop goroutine.
type FdHandler interface {
	OnFdEvent(ev FdEvents)
}

// Timer is a pending delayed invocation. Stop cancels it when it has not
// fired yet; stopping a fired timer is a no-op.
type Timer interface {
	Stop()
}

// Loop is the per-worker event loop.
//
// Run must be called exactly once. All other methods are safe to call from
// any goroutine unless stated otherwise; the registered callbacks always
// execute on the loop goroutine.
type Loop interface {
	// Run services the loop until Quit is called or the context is
	// cancelled. It locks the calling goroutine to its OS thread.
	Run(ctx context.Context) liberr.Error

	// Quit asks the loop to stop after the current turn.
	Quit()

	// IsRunning reports whether Run is currently servicing the loop.
	IsRunning() bool

	// Post enqueues fn to run in the next loop turn. It never runs fn
	// inline, even when called from the loop goroutine.
	Post(fn func())

	// PostDelayed enqueues fn to run on the loop goroutine once d has
	// elapsed.
	PostDelayed(d time.Duration, fn func()) Timer

	// Defer appends fn to the release list drained at the top of the next
	// loop turn. This is the self-destruction primitive: an object may
	// defer its own teardown from inside one of its callbacks and stays
	// valid until the callback frame has unwound.
	Defer(fn func())

	// RegisterFd adds fd to the poller, armed for read readiness. The
	// handler stays registered until UnregisterFd.
	RegisterFd(fd int, h FdHandler) liberr.Error

	// ModifyFd re-arms fd for read and/or write readiness.
	ModifyFd(fd int, read, write bool) liberr.Error

	// UnregisterFd removes fd from the poller. Safe to call with an fd
	// already closed by the kernel.
	UnregisterFd(fd int)

	// RegisterFuncLogger sets the logger source used by the loop.
	RegisterFuncLogger(f liblog.FuncLog)
}

// New returns a Loop ready to Run, with its poller and wakeup descriptors
// already allocated.
func New() (Loop, liberr.Error) {
	return newLoop()
}
