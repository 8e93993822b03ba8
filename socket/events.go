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

package socket

import (
	liberr "github.com/nabbar/golib/errors"
)

// Events is the per-socket hook set. Every hook is optional and, when set,
// is invoked on the goroutine of the loop owning the socket.
//
// Within one connected cycle the delivery order is a prefix of:
// connected, encrypted, (data received | data sent)*, error?, disconnected.
// The disconnected hook fires at most once per connected cycle and is always
// the terminal event of the cycle.
type Events struct {
	OnConnected    func()
	OnEncrypted    func()
	OnDataReceived func()
	OnDataSent     func()
	OnDisconnected func()
	OnError        func(err liberr.Error)
}

// Connected invokes the OnConnected hook when set.
func (e *Events) Connected() {
	if e != nil && e.OnConnected != nil {
		e.OnConnected()
	}
}

// Encrypted invokes the OnEncrypted hook when set.
func (e *Events) Encrypted() {
	if e != nil && e.OnEncrypted != nil {
		e.OnEncrypted()
	}
}

// DataReceived invokes the OnDataReceived hook when set.
func (e *Events) DataReceived() {
	if e != nil && e.OnDataReceived != nil {
		e.OnDataReceived()
	}
}

// DataSent invokes the OnDataSent hook when set.
func (e *Events) DataSent() {
	if e != nil && e.OnDataSent != nil {
		e.OnDataSent()
	}
}

// Disconnected invokes the OnDisconnected hook when set.
func (e *Events) Disconnected() {
	if e != nil && e.OnDisconnected != nil {
		e.OnDisconnected()
	}
}

// Error invokes the OnError hook when set.
func (e *Events) Error(err liberr.Error) {
	if e != nil && e.OnError != nil {
		e.OnError(err)
	}
}
