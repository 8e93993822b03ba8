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

// Package tcp provides the plaintext stream socket of the runtime: an
// event-loop-driven TCP endpoint with asynchronous hostname resolution,
// bounded connect attempts, kernel socket options and the buffered I/O
// paths of the underlying channel.
//
// A socket belongs to one loop for its whole life and all methods must be
// called from that loop's goroutine. The same object can be connected,
// disconnected and reconnected any number of times.
package tcp

import (
	"time"

	liberr "github.com/nabbar/golib/errors"
	liblog "github.com/nabbar/golib/logger"

	evtlps "github.com/sabouaram/netbind/eventloop"
	libsck "github.com/sabouaram/netbind/socket"
)

// DefaultConnectTimeout bounds a whole connect attempt, resolution and
// address walking included.
const DefaultConnectTimeout = 60 * time.Second

// SocketTcp is a plaintext stream socket.
type SocketTcp interface {
	// Connect starts connecting to hostOrIP:port. A literal IPv4/IPv6
	// address is used directly; otherwise the name is resolved off the
	// loop and the returned addresses are tried in order. At most one of
	// the connected or error events fires per attempt; an attempt
	// cancelled by Abort fires neither.
	Connect(hostOrIP string, port uint16)

	// SetBindAddressAndPort sets the local endpoint used by the next
	// connect. A zero port picks an ephemeral one.
	SetBindAddressAndPort(addr string, port uint16)

	// SetConnectTimeout overrides DefaultConnectTimeout for subsequent
	// connect attempts.
	SetConnectTimeout(d time.Duration)

	// DisconnectFromPeer drains pending writes then closes gracefully.
	DisconnectFromPeer()

	// Abort closes immediately, dropping whatever was not flushed.
	Abort()

	// State returns the socket lifecycle state.
	State() libsck.State

	// ErrorMessage returns the failure text of the last error, empty
	// when none occurred since the last connect.
	ErrorMessage() string

	LocalAddress() string
	LocalPort() uint16
	PeerAddress() string
	PeerPort() uint16

	// SetOption sets a kernel socket option. Boolean options coerce any
	// nonzero value to 1. The value is remembered and re-applied on the
	// next connect when the socket is not currently connected.
	SetOption(opt libsck.Option, val int) liberr.Error

	// GetOption reads a kernel socket option. Buffer sizes report the
	// value the kernel returns, which is the doubled requested size.
	// Without a descriptor it returns the remembered value as last set.
	GetOption(opt libsck.Option) (int, liberr.Error)

	// Write queues p for sending.
	Write(p []byte) liberr.Error

	// Read copies up to len(p) received bytes into p.
	Read(p []byte) int

	// ReadAll drains and returns all received bytes.
	ReadAll() []byte

	// BufferedInput returns the number of received bytes not yet read.
	BufferedInput() int

	// SetReadBufferCapacity caps the inbound staging buffer; the socket
	// stops reading from the kernel when full and resumes on drain.
	SetReadBufferCapacity(n int) liberr.Error

	// SetResolver replaces the hostname resolver.
	SetResolver(r libsck.Resolver)

	// RegisterFuncLogger sets the logger source used by the socket.
	RegisterFuncLogger(f liblog.FuncLog)
}

// New returns an unconnected socket bound to the given loop and hook set.
func New(l evtlps.Loop, e *libsck.Events) SocketTcp {
	return newSocket(l, e)
}

// NewFromFd wraps a pre-accepted descriptor. When fd is a valid connected
// stream socket the result starts Connected with its endpoints populated;
// otherwise the socket stays Unconnected. Construction never fails on fd
// validity.
func NewFromFd(l evtlps.Loop, e *libsck.Events, fd int) SocketTcp {
	o := newSocket(l, e)
	o.adoptFd(fd)

	return o
}
