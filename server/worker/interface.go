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

// Package worker provides the single-threaded accept-and-handle unit of
// the server scaffold: one listener, one handler factory, one repository
// and a connection cap, all serviced by one event loop.
//
// A worker accepts descriptors from its listener, asks the factory to wrap
// each one in a handler, registers the handler with the repository and
// closes the descriptor outright when the cap is reached. Lifecycle hooks
// fire on the worker's loop goroutine and must be safe to forward across
// threads.
package worker

import (
	libatm "github.com/nabbar/golib/atomic"
	liblog "github.com/nabbar/golib/logger"

	evtlps "github.com/sabouaram/netbind/eventloop"
	srvhdl "github.com/sabouaram/netbind/server/handler"
	sckvls "github.com/sabouaram/netbind/socket/listen"
)

// DefaultMaxConnections caps the live handlers of one worker when no
// explicit cap is configured.
const DefaultMaxConnections = 10000

// ExecutionState is the lifecycle state of a worker, a worker host or the
// multi-worker server.
type ExecutionState uint8

const (
	Stopped ExecutionState = iota
	Starting
	Started
	Stopping
)

func (s ExecutionState) String() string {
	switch s {
	case Stopped:
		return "Stopped"
	case Starting:
		return "Starting"
	case Started:
		return "Started"
	case Stopping:
		return "Stopping"
	}

	return "Unknown"
}

// Worker is the per-core accepting unit. Start and Stop are asynchronous:
// they enqueue onto the worker loop and resolve through the registered
// hooks. A worker is one-shot, as its listener is.
type Worker interface {
	// Start begins listener startup with the given start data. The
	// outcome arrives via the started or failed hook.
	Start(cfg sckvls.Config)

	// Stop stops accepting, disconnects the live handlers and resolves
	// through the stopped hook once the repository drained. A stop
	// issued while starting is deferred until startup resolves.
	Stop()

	// ExecState returns the lifecycle state. Safe from any goroutine.
	ExecState() ExecutionState

	// OpenConnections returns the live handler count. Safe from any
	// goroutine.
	OpenConnections() int64

	// MaxConnections returns the connection cap.
	MaxConnections() int64

	RegisterStarted(fn func())
	RegisterStopped(fn func())
	RegisterFailed(fn func(msg string))

	// RegisterFuncLogger sets the logger source used by the worker.
	RegisterFuncLogger(f liblog.FuncLog)
}

// Options tunes one worker.
type Options struct {
	// MaxConnections caps the live handlers; zero means
	// DefaultMaxConnections.
	MaxConnections int64 `mapstructure:"maxConnections" json:"maxConnections" yaml:"maxConnections" toml:"maxConnections"`
}

func (o Options) maxConnections() int64 {
	if o.MaxConnections > 0 {
		return o.MaxConnections
	}

	return DefaultMaxConnections
}

// New returns a stopped worker owned by the given loop, wrapping accepted
// descriptors through fct.
func New(l evtlps.Loop, fct srvhdl.Factory, opt Options) Worker {
	w := &wrk{
		lop: l,
		fct: fct,
		rep: srvhdl.NewRepository(),
		max: opt.maxConnections(),
		stt: libatm.NewValue[ExecutionState](),
	}

	w.stt.Store(Stopped)

	return w
}
