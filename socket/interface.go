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

// Package socket holds the contracts shared by the stream-socket
// implementations: lifecycle states, socket options, the per-socket event
// hook set, POSIX error rendering and the asynchronous hostname resolver.
package socket

// State is the lifecycle state of a stream socket or I/O channel.
type State uint8

const (
	Unconnected State = iota
	Connecting
	Connected
	Disconnecting
)

func (s State) String() string {
	switch s {
	case Unconnected:
		return "Unconnected"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case Disconnecting:
		return "Disconnecting"
	}

	return "Unknown"
}

// HandshakeState is the TLS handshake progress of an encrypted socket.
type HandshakeState uint8

const (
	HandshakeNotStarted HandshakeState = iota
	HandshakeInProgress
	HandshakeDone
	HandshakeFailed
)

func (s HandshakeState) String() string {
	switch s {
	case HandshakeNotStarted:
		return "NotStarted"
	case HandshakeInProgress:
		return "Handshaking"
	case HandshakeDone:
		return "Done"
	case HandshakeFailed:
		return "Failed"
	}

	return "Unknown"
}

// Option identifies a per-socket tuning knob mapped onto a kernel socket
// option.
type Option uint8

const (
	// LowDelay maps to TCP_NODELAY. Enabled at construction; any nonzero
	// set value is coerced to 1.
	LowDelay Option = iota

	// KeepAlive maps to SO_KEEPALIVE. Disabled at construction; any
	// nonzero set value is coerced to 1.
	KeepAlive

	// SendBufferSize maps to SO_SNDBUF. The getter reports the value the
	// kernel returns, which is the doubled requested size.
	SendBufferSize

	// ReceiveBufferSize maps to SO_RCVBUF. The getter reports the value
	// the kernel returns, which is the doubled requested size.
	ReceiveBufferSize
)

func (o Option) String() string {
	switch o {
	case LowDelay:
		return "LowDelay"
	case KeepAlive:
		return "KeepAlive"
	case SendBufferSize:
		return "SendBufferSize"
	case ReceiveBufferSize:
		return "ReceiveBufferSize"
	}

	return "Unknown"
}
