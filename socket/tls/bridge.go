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

package tls

import (
	"io"
	"net"
	"sync"
	"time"

	sckbuf "github.com/sabouaram/netbind/ringbuf"
)

// bridge is the in-memory record transport between the TLS engine and the
// wire. The engine side (the service goroutine) blocks in Read until
// ciphertext arrives from the wire; its writes are buffered and signalled
// to the loop, which moves them into the channel's outbound buffer. The
// wire side never blocks.
type bridge struct {
	mu     sync.Mutex
	rdy    *sync.Cond
	in     sckbuf.Buffer
	out    sckbuf.Buffer
	closed bool
	notify func()
}

type bridgeAddr struct{}

func (bridgeAddr) Network() string { return "tls-bridge" }
func (bridgeAddr) String() string  { return "tls-bridge" }

func newBridge(notify func()) *bridge {
	b := &bridge{
		in:     sckbuf.New(0),
		out:    sckbuf.New(0),
		notify: notify,
	}

	b.rdy = sync.NewCond(&b.mu)

	return b
}

// Read blocks until inbound ciphertext is available or the bridge closes.
func (b *bridge) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for b.in.IsEmpty() && !b.closed {
		b.rdy.Wait()
	}

	if b.in.IsEmpty() {
		return 0, io.EOF
	}

	return b.in.Read(p), nil
}

// Write buffers outbound ciphertext and signals the loop to flush it.
func (b *bridge) Write(p []byte) (int, error) {
	b.mu.Lock()

	if b.closed {
		b.mu.Unlock()
		return 0, net.ErrClosed
	}

	_ = b.out.Write(p)
	fn := b.notify
	b.mu.Unlock()

	if fn != nil {
		fn()
	}

	return len(p), nil
}

func (b *bridge) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()

	b.rdy.Broadcast()

	return nil
}

// feed hands wire ciphertext to the engine side.
func (b *bridge) feed(p []byte) {
	if len(p) == 0 {
		return
	}

	b.mu.Lock()
	_ = b.in.Write(p)
	b.mu.Unlock()

	b.rdy.Broadcast()
}

// takeOut drains the ciphertext produced by the engine.
func (b *bridge) takeOut() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.out.IsEmpty() {
		return nil
	}

	p := make([]byte, b.out.Len())
	_ = b.out.Read(p)

	return p
}

func (b *bridge) LocalAddr() net.Addr  { return bridgeAddr{} }
func (b *bridge) RemoteAddr() net.Addr { return bridgeAddr{} }

func (b *bridge) SetDeadline(_ time.Time) error      { return nil }
func (b *bridge) SetReadDeadline(_ time.Time) error  { return nil }
func (b *bridge) SetWriteDeadline(_ time.Time) error { return nil }
