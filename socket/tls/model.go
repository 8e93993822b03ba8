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
	stdtls "crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"

	liberr "github.com/nabbar/golib/errors"
	liblog "github.com/nabbar/golib/logger"

	evtlps "github.com/sabouaram/netbind/eventloop"
	sckbuf "github.com/sabouaram/netbind/ringbuf"
	libsck "github.com/sabouaram/netbind/socket"
	scktcp "github.com/sabouaram/netbind/socket/tcp"
)

const engineChunk = 32 * 1024

type sck struct {
	lop evtlps.Loop
	evt *libsck.Events
	cfg Config
	srv bool

	tcp scktcp.SocketTcp

	hsk libsck.HandshakeState
	gen uint64
	brg *bridge
	eng *stdtls.Conn
	tmr evtlps.Timer

	pln sckbuf.Buffer // decrypted application bytes
	pnd sckbuf.Buffer // plaintext queued before the handshake completed

	host string
	lit  bool
	msg  string
	drn  bool // transport closed, draining the engine before disconnected
}

func newSocket(l evtlps.Loop, e *libsck.Events, cfg Config, server bool, fd int) (SocketTls, liberr.Error) {
	o := &sck{
		lop: l,
		evt: e,
		cfg: cfg,
		srv: server,
		hsk: libsck.HandshakeNotStarted,
		pln: sckbuf.New(0),
		pnd: sckbuf.New(0),
	}

	inner := &libsck.Events{
		OnConnected:    o.onTransportConnected,
		OnDataReceived: o.onCiphertext,
		OnDataSent:     o.onTransportSent,
		OnError:        o.onTransportError,
		OnDisconnected: o.onTransportClosed,
	}

	if server {
		o.tcp = scktcp.NewFromFd(l, inner, fd)

		if o.tcp.State() != libsck.Connected {
			return nil, ErrorInvalidState.Error(nil)
		}

		o.startHandshake()

		return o, nil
	}

	o.tcp = scktcp.New(l, inner)

	return o, nil
}

func (o *sck) RegisterFuncLogger(f liblog.FuncLog) {
	o.tcp.RegisterFuncLogger(f)
}

func (o *sck) SetResolver(r libsck.Resolver) {
	o.tcp.SetResolver(r)
}

func (o *sck) Connect(hostOrIP string, port uint16) {
	if o.tcp.State() != libsck.Unconnected {
		return
	}

	o.host = hostOrIP
	o.lit = net.ParseIP(hostOrIP) != nil
	o.msg = ""
	o.drn = false
	o.pln.Clear()

	o.tcp.Connect(hostOrIP, port)
}

func (o *sck) State() libsck.State {
	return o.tcp.State()
}

func (o *sck) HandshakeState() libsck.HandshakeState {
	return o.hsk
}

func (o *sck) IsEncrypted() bool {
	return o.hsk == libsck.HandshakeDone
}

func (o *sck) ErrorMessage() string {
	if o.msg != "" {
		return o.msg
	}

	return o.tcp.ErrorMessage()
}

func (o *sck) LocalAddress() string { return o.tcp.LocalAddress() }
func (o *sck) LocalPort() uint16    { return o.tcp.LocalPort() }
func (o *sck) PeerAddress() string  { return o.tcp.PeerAddress() }
func (o *sck) PeerPort() uint16     { return o.tcp.PeerPort() }

func (o *sck) SetOption(opt libsck.Option, val int) liberr.Error {
	return o.tcp.SetOption(opt, val)
}

func (o *sck) GetOption(opt libsck.Option) (int, liberr.Error) {
	return o.tcp.GetOption(opt)
}

func (o *sck) Write(p []byte) liberr.Error {
	if len(p) == 0 {
		return nil
	}

	switch o.hsk {
	case libsck.HandshakeDone:
		if o.eng == nil {
			return ErrorInvalidState.Error(nil)
		}

		if _, e := o.eng.Write(p); e != nil {
			return ErrorProtocol.Error(e)
		}

		return nil

	case libsck.HandshakeNotStarted, libsck.HandshakeInProgress:
		// queued ahead of handshake completion, flushed in order after
		return o.pnd.Write(p)
	}

	return ErrorInvalidState.Error(nil)
}

func (o *sck) Read(p []byte) int {
	return o.pln.Read(p)
}

func (o *sck) ReadAll() []byte {
	if o.pln.IsEmpty() {
		return nil
	}

	p := make([]byte, o.pln.Len())
	_ = o.pln.Read(p)

	return p
}

func (o *sck) BufferedInput() int {
	return o.pln.Len()
}

func (o *sck) DisconnectFromPeer() {
	o.tcp.DisconnectFromPeer()
}

func (o *sck) Abort() {
	o.tcp.Abort()
}

// transport hooks

func (o *sck) onTransportConnected() {
	// client role only: surface the transport event, then negotiate
	o.evt.Connected()
	o.startHandshake()
}

func (o *sck) onCiphertext() {
	if o.brg != nil {
		o.brg.feed(o.tcp.ReadAll())
	} else {
		// no engine: drop, nothing may surface before encryption
		_ = o.tcp.ReadAll()
	}
}

func (o *sck) onTransportSent() {
	if o.hsk == libsck.HandshakeDone {
		o.evt.DataSent()
	}
}

func (o *sck) onTransportError(err liberr.Error) {
	o.evt.Error(err)
}

func (o *sck) onTransportClosed() {
	if o.hsk == libsck.HandshakeDone && o.brg != nil && !o.drn {
		// let the engine decrypt what the wire already delivered; the
		// disconnected event follows once it stops
		o.drn = true
		_ = o.brg.Close()
		return
	}

	o.teardown()
	o.evt.Disconnected()
}

// handshake machinery

func (o *sck) startHandshake() {
	o.hsk = libsck.HandshakeInProgress
	o.gen++

	gen := o.gen

	o.brg = newBridge(func() {
		o.lop.Post(func() {
			o.flushCiphertext(gen)
		})
	})

	if o.srv {
		o.eng = stdtls.Server(o.brg, o.cfg.buildServer())
	} else {
		o.eng = stdtls.Client(o.brg, o.cfg.buildClient(o.host))
	}

	o.tmr = o.lop.PostDelayed(o.cfg.handshakeTimeout(), func() {
		o.onHandshakeTimeout(gen)
	})

	go o.service(o.eng, gen)
}

// service pumps the blocking engine on its own goroutine; every outcome is
// marshalled back onto the loop with the generation guarding staleness.
func (o *sck) service(eng *stdtls.Conn, gen uint64) {
	if e := eng.Handshake(); e != nil {
		o.lop.Post(func() {
			o.onHandshakeDone(gen, e)
		})
		return
	}

	o.lop.Post(func() {
		o.onHandshakeDone(gen, nil)
	})

	buf := make([]byte, engineChunk)

	for {
		n, e := eng.Read(buf)

		if n > 0 {
			p := make([]byte, n)
			copy(p, buf[:n])

			o.lop.Post(func() {
				o.onPlaintext(gen, p)
			})
		}

		if e != nil {
			o.lop.Post(func() {
				o.onEngineStop(gen, e)
			})
			return
		}
	}
}

func (o *sck) flushCiphertext(gen uint64) {
	if gen != o.gen || o.brg == nil {
		return
	}

	if p := o.brg.takeOut(); len(p) > 0 && o.tcp.State() != libsck.Unconnected {
		_ = o.tcp.Write(p)
	}
}

func (o *sck) onHandshakeDone(gen uint64, e error) {
	if gen != o.gen || o.hsk != libsck.HandshakeInProgress {
		return
	}

	o.stopTimer()

	if e != nil {
		o.hsk = libsck.HandshakeFailed
		o.msg = fmt.Sprintf("TLS handshake failed: %v.", e)
		o.evt.Error(ErrorHandshakeFailed.Error(e))
		o.tcp.Abort()
		return
	}

	o.hsk = libsck.HandshakeDone
	o.evt.Encrypted()

	if !o.pnd.IsEmpty() {
		p := o.pnd.PeekAll()
		if _, we := o.eng.Write(p); we == nil {
			o.pnd.Clear()
		}
	}
}

func (o *sck) onPlaintext(gen uint64, p []byte) {
	if gen != o.gen || o.hsk != libsck.HandshakeDone {
		return
	}

	_ = o.pln.Write(p)
	o.evt.DataReceived()
}

func (o *sck) onEngineStop(gen uint64, e error) {
	if gen != o.gen {
		return
	}

	if o.drn {
		o.drn = false
		o.teardown()
		o.evt.Disconnected()
		return
	}

	if errors.Is(e, io.EOF) || errors.Is(e, net.ErrClosed) {
		// orderly shutdown, the transport teardown drives the events
		return
	}

	if o.hsk == libsck.HandshakeDone {
		o.msg = fmt.Sprintf("TLS protocol failure: %v.", e)
		o.evt.Error(ErrorProtocol.Error(e))
		o.tcp.Abort()
	}
}

func (o *sck) onHandshakeTimeout(gen uint64) {
	if gen != o.gen || o.hsk != libsck.HandshakeInProgress {
		return
	}

	o.tmr = nil
	o.hsk = libsck.HandshakeFailed
	o.msg = o.timeoutText()
	o.evt.Error(ErrorHandshakeTimeout.Error(errors.New(o.msg)))
	o.tcp.Abort()
}

func (o *sck) timeoutText() string {
	adr := net.JoinHostPort(o.tcp.PeerAddress(), strconv.Itoa(int(o.tcp.PeerPort())))

	if o.srv || o.lit || o.host == "" {
		return fmt.Sprintf("Failed to connect to %s. TLS handshake timed out.", adr)
	}

	return fmt.Sprintf("Failed to connect to %s at %s. TLS handshake timed out.", o.host, adr)
}

// teardown drops the per-connection TLS state so the object can be reused
// for another connection, in either role.
func (o *sck) teardown() {
	o.gen++
	o.stopTimer()

	if o.brg != nil {
		_ = o.brg.Close()
		o.brg = nil
	}

	o.eng = nil
	o.hsk = libsck.HandshakeNotStarted
	o.pnd.Clear()
}

func (o *sck) stopTimer() {
	if o.tmr != nil {
		o.tmr.Stop()
		o.tmr = nil
	}
}
