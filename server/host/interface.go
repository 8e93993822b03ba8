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

// Package host runs a server worker on its own dedicated event-loop
// thread. The worker is constructed on that thread, lifecycle commands
// cross over as queued invocations and lifecycle outcomes are forwarded
// back through the registered hooks.
//
// A stop requested while the hosted worker is still starting is held back
// until the worker reports started, then forwarded. Closing the host quits
// the hosted loop, joins the thread and releases the worker on its own
// thread.
package host

import (
	liberr "github.com/nabbar/golib/errors"
	liblog "github.com/nabbar/golib/logger"

	evtlps "github.com/sabouaram/netbind/eventloop"
	srvwrk "github.com/sabouaram/netbind/server/worker"
	sckvls "github.com/sabouaram/netbind/socket/listen"
)

// FuncWorker constructs the hosted worker, bound to the loop servicing
// the dedicated thread. It runs on that thread.
type FuncWorker func(l evtlps.Loop) srvwrk.Worker

// Host drives one worker living on its own thread.
type Host interface {
	// Start forwards the start data to the hosted worker.
	Start(cfg sckvls.Config)

	// Stop forwards a stop, deferring it while the worker is starting.
	Stop()

	// ExecState returns the host view of the worker lifecycle. Safe from
	// any goroutine.
	ExecState() srvwrk.ExecutionState

	// OpenConnections returns the hosted worker's live handler count.
	OpenConnections() int64

	RegisterStarted(fn func())
	RegisterStopped(fn func())
	RegisterFailed(fn func(msg string))

	// RegisterFuncLogger sets the logger source used by the host and its
	// worker.
	RegisterFuncLogger(f liblog.FuncLog)

	// Close quits the hosted loop and joins the thread. The host is
	// unusable afterwards.
	Close() error
}

// New spawns the dedicated thread, constructs the worker on it through
// fct and waits for that construction to complete.
func New(fct FuncWorker) (Host, liberr.Error) {
	return newHost(fct)
}
