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

// Package listen provides the listening-socket side of the runtime: it
// binds a stream socket with port sharing enabled, or adopts an inherited
// descriptor, and surfaces every accepted descriptor to its owner in
// arrival order.
//
// Accepted descriptors are batched per poller wake-up and drained in one
// deferred callback so a connection burst cannot recurse into the accept
// path. A listener is one-shot: once stopped it cannot be started again.
package listen

import (
	liblog "github.com/nabbar/golib/logger"

	evtlps "github.com/sabouaram/netbind/eventloop"
)

// FuncNewConnection receives each accepted descriptor, in arrival order,
// on the loop goroutine. The receiver owns the descriptor.
type FuncNewConnection func(fd int)

// Listener owns a listening stream socket.
type Listener interface {
	// Start validates the configuration, binds and listens (or adopts
	// the inherited descriptor) and starts accepting. It returns false
	// with the failure recorded in LastError. Start is one-shot.
	Start() bool

	// IsStarted reports whether the listener is accepting.
	IsStarted() bool

	// LastError returns the startup failure text, empty when none.
	LastError() string

	// Address returns the bound address once started.
	Address() string

	// Port returns the bound port once started.
	Port() uint16

	// Close stops accepting and releases the listening socket.
	Close()

	// RegisterFuncLogger sets the logger source used by the listener.
	RegisterFuncLogger(f liblog.FuncLog)
}

// New returns a stopped Listener bound to the given loop that will hand
// accepted descriptors to fn.
func New(l evtlps.Loop, cfg Config, fn FuncNewConnection) Listener {
	return &lsn{
		lop: l,
		cfg: cfg,
		fnc: fn,
		fd:  -1,
	}
}
