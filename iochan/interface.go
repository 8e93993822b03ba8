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

// Package iochan provides the non-blocking I/O core shared by the stream
// sockets: it owns a connected file descriptor, a read buffer and a write
// buffer, and turns poller readiness into buffered byte movement and
// surface events.
//
// A channel belongs to one event loop and must only be used from that
// loop's goroutine. Its hooks may call back into the channel, including
// Abort and DisconnectFromPeer on the channel itself: the callback frame
// unwinds first and the request completes afterwards.
package iochan

import (
	liberr "github.com/nabbar/golib/errors"

	evtlps "github.com/sabouaram/netbind/eventloop"
	libsck "github.com/sabouaram/netbind/socket"
)

// Channel is the readiness-driven byte mover between one fd and its two
// staging buffers.
type Channel interface {
	// AttachFd takes ownership of a connected, non-blocking fd, registers
	// it with the loop and moves the channel to the Connected state.
	AttachFd(fd int) liberr.Error

	// Detach unregisters the descriptor from the loop and hands its
	// ownership back to the caller without closing it or emitting any
	// event. Both buffers are preserved. Returns -1 when none is owned.
	Detach() int

	// Fd returns the owned descriptor, -1 when none.
	Fd() int

	// State returns the channel lifecycle state.
	State() libsck.State

	// Write appends p to the write buffer and drains as much as the
	// kernel accepts without blocking; the remainder is flushed on write
	// readiness. Refused once a disconnect is pending or the channel is
	// not connected.
	Write(p []byte) liberr.Error

	// Read copies up to len(p) buffered inbound bytes into p.
	Read(p []byte) int

	// ReadAll drains the whole read buffer and returns its content.
	ReadAll() []byte

	// BufferedInput returns the number of inbound bytes not yet consumed.
	BufferedInput() int

	// PendingOutput returns the number of outbound bytes not yet written
	// to the kernel.
	PendingOutput() int

	// SetReadBufferCapacity caps the read buffer. When the cap is hit the
	// channel stops reading from the fd and resumes once the consumer
	// drained bytes. Zero removes the cap.
	SetReadBufferCapacity(n int) liberr.Error

	// DisconnectFromPeer drains the pending writes, then shuts the fd
	// down for writing and waits for the peer to close its side.
	DisconnectFromPeer()

	// Abort closes the fd immediately, clears both buffers and emits the
	// disconnected event. Safe to call from the channel's own hooks.
	Abort()

	// LastError returns the recorded failure text, empty when none.
	LastError() string
}

// New returns an unconnected Channel bound to the given loop and hook set.
func New(l evtlps.Loop, e *libsck.Events) Channel {
	return newChannel(l, e)
}
