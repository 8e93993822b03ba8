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

package iochan

import (
	"errors"

	liberr "github.com/nabbar/golib/errors"
	"golang.org/x/sys/unix"

	evtlps "github.com/sabouaram/netbind/eventloop"
	libsck "github.com/sabouaram/netbind/socket"
	sckbuf "github.com/sabouaram/netbind/ringbuf"
)

const readChunk = 32 * 1024

type chn struct {
	lop evtlps.Loop
	evt *libsck.Events

	fd   int
	rbf  sckbuf.Buffer
	wbf  sckbuf.Buffer
	tmp  []byte
	rcap int

	stt libsck.State
	msg string

	closing  bool // close write side once the write buffer drains
	shutDone bool // SHUT_WR already issued
	peerEOF  bool
	wArmed   bool
	rPaused  bool

	inCb    int
	pendEnd bool // teardown requested from inside a callback
	pendErr liberr.Error
}

func newChannel(l evtlps.Loop, e *libsck.Events) Channel {
	return &chn{
		lop: l,
		evt: e,
		fd:  -1,
		rbf: sckbuf.New(0),
		wbf: sckbuf.New(0),
		tmp: make([]byte, readChunk),
	}
}

func (o *chn) AttachFd(fd int) liberr.Error {
	if fd < 0 {
		return ErrorAttachFailed.Error(nil)
	}

	if err := o.lop.RegisterFd(fd, o); err != nil {
		return ErrorAttachFailed.Error(err)
	}

	o.fd = fd
	o.stt = libsck.Connected
	o.msg = ""
	o.closing = false
	o.shutDone = false
	o.peerEOF = false
	o.wArmed = false
	o.rPaused = false

	return nil
}

func (o *chn) Detach() int {
	if o.fd < 0 {
		return -1
	}

	fd := o.fd
	o.lop.UnregisterFd(fd)

	o.fd = -1
	o.stt = libsck.Unconnected
	o.closing = false
	o.shutDone = false
	o.peerEOF = false
	o.wArmed = false
	o.rPaused = false

	return fd
}

func (o *chn) Fd() int {
	return o.fd
}

func (o *chn) State() libsck.State {
	return o.stt
}

func (o *chn) LastError() string {
	return o.msg
}

func (o *chn) BufferedInput() int {
	return o.rbf.Len()
}

func (o *chn) PendingOutput() int {
	return o.wbf.Len()
}

func (o *chn) Read(p []byte) int {
	n := o.rbf.Read(p)

	if n > 0 {
		o.resumeRead()
	}

	return n
}

func (o *chn) ReadAll() []byte {
	if o.rbf.IsEmpty() {
		return nil
	}

	p := make([]byte, o.rbf.Len())
	_ = o.rbf.Read(p)

	o.resumeRead()

	return p
}

func (o *chn) SetReadBufferCapacity(n int) liberr.Error {
	if n < 0 {
		n = 0
	}

	// the staged bytes stay, the cap only gates further kernel reads
	o.rcap = n
	o.resumeRead()

	return nil
}

func (o *chn) Write(p []byte) liberr.Error {
	if o.stt != libsck.Connected {
		return ErrorNotConnected.Error(nil)
	}

	if o.closing {
		return ErrorDisconnecting.Error(nil)
	}

	if len(p) == 0 {
		return nil
	}

	if err := o.wbf.Write(p); err != nil {
		return err
	}

	n, fatal := o.flush()

	if fatal != nil {
		o.fail(fatal)
		return ErrorIO.Error(nil)
	}

	if n > 0 {
		o.lop.Post(o.emitSent())
	}

	if !o.wbf.IsEmpty() {
		o.armWrite(true)
	}

	return nil
}

func (o *chn) DisconnectFromPeer() {
	if o.stt != libsck.Connected || o.closing {
		return
	}

	o.closing = true
	o.stt = libsck.Disconnecting

	if o.wbf.IsEmpty() {
		o.shutWrite()
	} else {
		o.armWrite(true)
	}
}

func (o *chn) Abort() {
	if o.fd < 0 && o.stt == libsck.Unconnected {
		return
	}

	o.rbf.Clear()
	o.wbf.Clear()
	o.requestEnd(nil)
}

// OnFdEvent implements eventloop.FdHandler.
func (o *chn) OnFdEvent(ev evtlps.FdEvents) {
	if o.fd < 0 || o.pendEnd {
		return
	}

	if ev.Error {
		o.fail(o.soError())
		return
	}

	if ev.Writable {
		o.writeCycle()
	}

	if o.fd < 0 {
		return
	}

	if ev.Readable || ev.Hangup {
		o.readCycle()
	}
}

func (o *chn) readCycle() {
	var (
		got int
		eof bool
	)

	for {
		if o.rcap > 0 && o.rbf.Len() >= o.rcap {
			o.pauseRead()
			break
		}

		lim := len(o.tmp)
		if o.rcap > 0 && o.rcap-o.rbf.Len() < lim {
			lim = o.rcap - o.rbf.Len()
		}

		n, e := unix.Read(o.fd, o.tmp[:lim])

		if n > 0 {
			_ = o.rbf.Write(o.tmp[:n])
			got += n
			continue
		}

		if n == 0 && e == nil {
			eof = true
			break
		}

		if errors.Is(e, unix.EAGAIN) {
			break
		}

		if errors.Is(e, unix.EINTR) {
			continue
		}

		if ne, k := e.(unix.Errno); k {
			o.fail(ne)
		} else {
			o.fail(unix.EIO)
		}

		return
	}

	if got > 0 {
		o.invoke(o.evt.DataReceived)

		if o.fd < 0 {
			return
		}
	}

	if eof {
		o.peerEOF = true

		if o.wbf.IsEmpty() {
			o.requestEnd(nil)
		}
	}
}

func (o *chn) writeCycle() {
	n, fatal := o.flush()

	if fatal != nil {
		o.fail(fatal)
		return
	}

	if n > 0 {
		o.invoke(o.evt.DataSent)

		if o.fd < 0 {
			return
		}
	}

	if o.wbf.IsEmpty() {
		o.armWrite(false)

		if o.closing && !o.shutDone {
			o.shutWrite()
		}

		if o.peerEOF {
			o.requestEnd(nil)
		}
	}
}

// flush pushes as many buffered bytes as the kernel accepts. It returns the
// drained count and the fatal errno when one occurred.
func (o *chn) flush() (int, error) {
	var total int

	for !o.wbf.IsEmpty() {
		p := o.wbf.PeekAll()

		n, e := unix.Write(o.fd, p)

		if n > 0 {
			_ = o.wbf.Skip(n)
			total += n
		}

		if e == nil && n == len(p) {
			continue
		}

		if e == nil || errors.Is(e, unix.EAGAIN) {
			break
		}

		if errors.Is(e, unix.EINTR) {
			continue
		}

		if errors.Is(e, unix.EPIPE) || errors.Is(e, unix.ECONNRESET) {
			return total, e
		}

		return total, e
	}

	return total, nil
}

func (o *chn) shutWrite() {
	o.shutDone = true
	_ = unix.Shutdown(o.fd, unix.SHUT_WR)
}

func (o *chn) armWrite(on bool) {
	if o.wArmed == on || o.fd < 0 {
		return
	}

	o.wArmed = on
	_ = o.lop.ModifyFd(o.fd, !o.rPaused, on)
}

func (o *chn) pauseRead() {
	if o.rPaused || o.fd < 0 {
		return
	}

	o.rPaused = true
	_ = o.lop.ModifyFd(o.fd, false, o.wArmed)
}

func (o *chn) resumeRead() {
	if !o.rPaused || o.fd < 0 {
		return
	}

	if o.rcap > 0 && o.rbf.Len() >= o.rcap {
		return
	}

	o.rPaused = false
	_ = o.lop.ModifyFd(o.fd, true, o.wArmed)
}

func (o *chn) soError() unix.Errno {
	if v, e := unix.GetsockoptInt(o.fd, unix.SOL_SOCKET, unix.SO_ERROR); e == nil && v != 0 {
		return unix.Errno(v)
	}

	return unix.ECONNRESET
}

func (o *chn) fail(e error) {
	var err liberr.Error

	if ne, k := e.(unix.Errno); k {
		o.msg = libsck.PosixMessage(ne)
		err = libsck.ErrorTransport.Error(ne)
	} else if e != nil {
		o.msg = e.Error()
		err = libsck.ErrorTransport.Error(e)
	} else {
		err = libsck.ErrorTransport.Error(nil)
	}

	o.requestEnd(err)
}

// requestEnd tears the channel down, deferring to the next loop turn when a
// user callback is currently on the stack so the frame can unwind first.
func (o *chn) requestEnd(err liberr.Error) {
	if o.inCb > 0 {
		if !o.pendEnd {
			o.pendEnd = true
			o.pendErr = err
			o.lop.Defer(o.finishEnd)
		}

		return
	}

	o.pendErr = err
	o.finishEnd()
}

func (o *chn) finishEnd() {
	if o.fd < 0 && o.stt == libsck.Unconnected {
		return
	}

	if o.fd >= 0 {
		o.lop.UnregisterFd(o.fd)
		_ = unix.Close(o.fd)
		o.fd = -1
	}

	o.stt = libsck.Unconnected
	o.closing = false
	o.shutDone = false
	o.peerEOF = false
	o.wArmed = false
	o.rPaused = false
	o.pendEnd = false

	err := o.pendErr
	o.pendErr = nil

	if err != nil {
		o.invoke(func() { o.evt.Error(err) })
	}

	o.invoke(o.evt.Disconnected)
}

// invoke runs a user hook, tracking the nesting depth so teardown requests
// issued from inside the hook complete after it returns.
func (o *chn) invoke(fn func()) {
	if fn == nil {
		return
	}

	o.inCb++

	defer func() {
		o.inCb--
	}()

	fn()
}

func (o *chn) emitSent() func() {
	return func() {
		if o.stt == libsck.Connected || o.stt == libsck.Disconnecting {
			o.invoke(o.evt.DataSent)
		}
	}
}
