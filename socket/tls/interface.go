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

// Package tls layers transport encryption on top of the plaintext stream
// socket: it drives the handshake as a state machine, encrypts application
// writes into the channel's outbound buffer and decrypts inbound records
// into a plaintext buffer surfaced to the caller.
//
// TLS parameters come from the certificates configuration of
// github.com/nabbar/golib/certificates; the engine is the standard library
// record layer serviced through an in-memory bridge so the event loop never
// blocks on encryption.
//
// A client socket emits connected first, then encrypted once the handshake
// completes. A server-accepted socket emits encrypted only. Application
// writes issued before the handshake completes are queued in order and
// flushed right after the encrypted event; no received data surfaces before
// that event either.
package tls

import (
	liberr "github.com/nabbar/golib/errors"
	liblog "github.com/nabbar/golib/logger"

	evtlps "github.com/sabouaram/netbind/eventloop"
	libsck "github.com/sabouaram/netbind/socket"
)

// SocketTls is an encrypted stream socket.
type SocketTls interface {
	// Connect starts a client connection to hostOrIP:port followed by a
	// TLS handshake in the client role.
	Connect(hostOrIP string, port uint16)

	// DisconnectFromPeer drains pending ciphertext then closes.
	DisconnectFromPeer()

	// Abort closes immediately.
	Abort()

	// State returns the transport lifecycle state.
	State() libsck.State

	// HandshakeState returns the TLS handshake progress.
	HandshakeState() libsck.HandshakeState

	// IsEncrypted reports whether the handshake completed on the current
	// connection.
	IsEncrypted() bool

	// ErrorMessage returns the failure text of the last error, empty
	// when none occurred since the last connect.
	ErrorMessage() string

	LocalAddress() string
	LocalPort() uint16
	PeerAddress() string
	PeerPort() uint16

	// Write queues application plaintext. Before the handshake completes
	// the bytes are held back and flushed, in order, after encryption is
	// established.
	Write(p []byte) liberr.Error

	// Read copies up to len(p) decrypted bytes into p.
	Read(p []byte) int

	// ReadAll drains and returns all decrypted bytes.
	ReadAll() []byte

	// BufferedInput returns the number of decrypted bytes not yet read.
	BufferedInput() int

	// SetOption forwards a kernel socket option to the transport.
	SetOption(opt libsck.Option, val int) liberr.Error

	// GetOption reads a kernel socket option from the transport.
	GetOption(opt libsck.Option) (int, liberr.Error)

	// SetResolver replaces the hostname resolver of the transport.
	SetResolver(r libsck.Resolver)

	// RegisterFuncLogger sets the logger source used by the socket.
	RegisterFuncLogger(f liblog.FuncLog)
}

// New returns an unconnected client-role socket using the given TLS
// configuration.
func New(l evtlps.Loop, e *libsck.Events, cfg Config) (SocketTls, liberr.Error) {
	if err := cfg.clientUsable(); err != nil {
		return nil, err
	}

	return newSocket(l, e, cfg, false, -1)
}

// NewFromFd wraps a freshly accepted descriptor in the server role and
// starts the handshake immediately. The connected event is never emitted
// for such sockets; encrypted is the first event once the handshake
// completes.
func NewFromFd(l evtlps.Loop, e *libsck.Events, cfg Config, fd int) (SocketTls, liberr.Error) {
	if err := cfg.serverUsable(); err != nil {
		return nil, err
	}

	return newSocket(l, e, cfg, true, fd)
}
