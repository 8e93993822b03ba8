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

// Package handler defines the per-connection object contract of the server
// scaffold and the repository tracking the live instances of one worker.
//
// A handler owns its accepted descriptor from construction until its
// disconnect notification fires; the repository subscribes to that
// notification, removes the handler and lets it be released. The
// repository enforces no connection cap itself: the worker reads the count
// and decides before constructing a handler.
package handler

import (
	"io"
)

// Handler is an opaque per-connection object. Implementations wrap the
// accepted descriptor, typically in a stream socket, and must invoke the
// registered disconnect notification exactly once when the connection
// ends.
type Handler interface {
	io.Closer

	// RegisterDisconnect subscribes fn to the handler's disconnect
	// notification. The handler calls it at most once, on the loop
	// goroutine owning the connection.
	RegisterDisconnect(fn func(h Handler))
}

// Factory creates one handler per accepted descriptor. The worker injects
// handler options at factory construction time; New runs on the worker
// loop. Returning nil refuses the connection and the worker closes the
// descriptor.
type Factory interface {
	New(fd int) Handler
}

// FuncFactory adapts a plain function to the Factory interface.
type FuncFactory func(fd int) Handler

// New implements Factory.
func (f FuncFactory) New(fd int) Handler {
	return f(fd)
}

// Repository tracks the live handlers of one worker.
type Repository interface {
	// Add stores a live handler and wires its disconnect notification to
	// the removal path.
	Add(h Handler)

	// Remove drops a handler. Removing an unknown handler is a no-op.
	Remove(h Handler)

	// Count returns the number of live handlers. Safe from any
	// goroutine.
	Count() int64

	// RegisterLastRemoved subscribes fn to the moment the repository
	// becomes empty again.
	RegisterLastRemoved(fn func())

	// Close tears down every live handler still present and empties the
	// repository.
	Close() error
}

// NewRepository returns an empty Repository.
func NewRepository() Repository {
	return &repo{
		set: make(map[Handler]struct{}),
	}
}
