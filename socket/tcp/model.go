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

package tcp

import (
	"net"
	"time"

	liberr "github.com/nabbar/golib/errors"
	liblog "github.com/nabbar/golib/logger"
	"golang.org/x/sys/unix"

	evtlps "github.com/sabouaram/netbind/eventloop"
	sckchn "github.com/sabouaram/netbind/iochan"
	libsck "github.com/sabouaram/netbind/socket"
)

type sck struct {
	lop evtlps.Loop
	evt *libsck.Events
	chn sckchn.Channel
	rsv libsck.Resolver
	log liblog.FuncLog

	stt libsck.State
	msg string

	bndAdr net.IP
	bndPrt uint16

	locAdr string
	locPrt uint16
	perAdr string
	perPrt uint16

	// remembered option values, re-applied on the next connect
	optDelay int
	optKeep  int
	optSnd   int
	optRcv   int

	cto time.Duration
	atm *attempt
}

func newSocket(l evtlps.Loop, e *libsck.Events) *sck {
	o := &sck{
		lop:      l,
		evt:      e,
		rsv:      libsck.NewResolver(),
		stt:      libsck.Unconnected,
		optDelay: 1,
		optKeep:  0,
		cto:      DefaultConnectTimeout,
	}

	o.chn = sckchn.New(l, &libsck.Events{
		OnDataReceived: func() { o.evt.DataReceived() },
		OnDataSent:     func() { o.evt.DataSent() },
		OnError:        o.onChannelError,
		OnDisconnected: o.onChannelClosed,
	})

	return o
}

func (o *sck) RegisterFuncLogger(f liblog.FuncLog) {
	o.log = f
}

func (o *sck) logger() liblog.Logger {
	if o.log != nil {
		if l := o.log(); l != nil {
			return l
		}
	}

	return liblog.GetDefault()
}

func (o *sck) SetResolver(r libsck.Resolver) {
	if r != nil {
		o.rsv = r
	}
}

func (o *sck) SetConnectTimeout(d time.Duration) {
	if d > 0 {
		o.cto = d
	}
}

func (o *sck) SetBindAddressAndPort(addr string, port uint16) {
	o.bndAdr = net.ParseIP(addr)
	o.bndPrt = port
}

func (o *sck) State() libsck.State {
	return o.stt
}

func (o *sck) ErrorMessage() string {
	return o.msg
}

func (o *sck) LocalAddress() string {
	return o.locAdr
}

func (o *sck) LocalPort() uint16 {
	return o.locPrt
}

func (o *sck) PeerAddress() string {
	return o.perAdr
}

func (o *sck) PeerPort() uint16 {
	return o.perPrt
}

func (o *sck) Write(p []byte) liberr.Error {
	if o.stt != libsck.Connected {
		return ErrorInvalidState.Error(nil)
	}

	return o.chn.Write(p)
}

func (o *sck) Read(p []byte) int {
	return o.chn.Read(p)
}

func (o *sck) ReadAll() []byte {
	return o.chn.ReadAll()
}

func (o *sck) BufferedInput() int {
	return o.chn.BufferedInput()
}

func (o *sck) SetReadBufferCapacity(n int) liberr.Error {
	return o.chn.SetReadBufferCapacity(n)
}

func (o *sck) DisconnectFromPeer() {
	if o.stt == libsck.Connected {
		o.stt = libsck.Disconnecting
		o.chn.DisconnectFromPeer()
	}
}

func (o *sck) Abort() {
	if o.atm != nil {
		o.atm.cancel()
		o.atm = nil
		o.stt = libsck.Unconnected
		return
	}

	if o.stt != libsck.Unconnected {
		o.chn.Abort()
	}
}

// adoptFd moves the socket straight to Connected when fd is a valid
// connected stream socket; otherwise it leaves the socket Unconnected.
func (o *sck) adoptFd(fd int) {
	if fd < 0 {
		return
	}

	if t, e := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_TYPE); e != nil || t != unix.SOCK_STREAM {
		return
	}

	pa, e := unix.Getpeername(fd)
	if e != nil {
		return
	}

	_ = unix.SetNonblock(fd, true)

	if err := o.chn.AttachFd(fd); err != nil {
		return
	}

	o.applyOptions(fd)
	o.stt = libsck.Connected
	o.msg = ""
	o.perAdr, o.perPrt = fromSockaddr(pa)

	if la, le := unix.Getsockname(fd); le == nil {
		o.locAdr, o.locPrt = fromSockaddr(la)
	}
}

func (o *sck) onChannelError(err liberr.Error) {
	if m := o.chn.LastError(); m != "" {
		o.msg = m
	}

	o.evt.Error(err)
}

func (o *sck) onChannelClosed() {
	o.stt = libsck.Unconnected
	o.locAdr, o.locPrt = "", 0
	o.perAdr, o.perPrt = "", 0
	o.evt.Disconnected()
}

func (o *sck) SetOption(opt libsck.Option, val int) liberr.Error {
	switch opt {
	case libsck.LowDelay:
		if val != 0 {
			val = 1
		}
		o.optDelay = val
	case libsck.KeepAlive:
		if val != 0 {
			val = 1
		}
		o.optKeep = val
	case libsck.SendBufferSize:
		o.optSnd = val
	case libsck.ReceiveBufferSize:
		o.optRcv = val
	default:
		return ErrorOptionUnknown.Error(nil)
	}

	if fd := o.currentFd(); fd >= 0 {
		if e := setOption(fd, opt, val); e != nil {
			return libsck.ErrorInvalidOption.Error(e)
		}
	}

	return nil
}

func (o *sck) GetOption(opt libsck.Option) (int, liberr.Error) {
	if fd := o.currentFd(); fd >= 0 {
		v, e := getOption(fd, opt)
		if e != nil {
			return 0, libsck.ErrorInvalidOption.Error(e)
		}

		return v, nil
	}

	switch opt {
	case libsck.LowDelay:
		return o.optDelay, nil
	case libsck.KeepAlive:
		return o.optKeep, nil
	case libsck.SendBufferSize:
		return o.optSnd, nil
	case libsck.ReceiveBufferSize:
		return o.optRcv, nil
	}

	return 0, ErrorOptionUnknown.Error(nil)
}

func (o *sck) currentFd() int {
	if o.atm != nil && o.atm.fd >= 0 {
		return o.atm.fd
	}

	return o.chn.Fd()
}

// applyOptions pushes the remembered option values onto a fresh fd.
func (o *sck) applyOptions(fd int) {
	_ = setOption(fd, libsck.LowDelay, o.optDelay)
	_ = setOption(fd, libsck.KeepAlive, o.optKeep)

	if o.optSnd > 0 {
		_ = setOption(fd, libsck.SendBufferSize, o.optSnd)
	}

	if o.optRcv > 0 {
		_ = setOption(fd, libsck.ReceiveBufferSize, o.optRcv)
	}
}

func setOption(fd int, opt libsck.Option, val int) error {
	switch opt {
	case libsck.LowDelay:
		return unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, val)
	case libsck.KeepAlive:
		return unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, val)
	case libsck.SendBufferSize:
		return unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_SNDBUF, val)
	case libsck.ReceiveBufferSize:
		return unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, val)
	}

	return unix.EINVAL
}

func getOption(fd int, opt libsck.Option) (int, error) {
	switch opt {
	case libsck.LowDelay:
		v, e := unix.GetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY)
		return norm01(v), e
	case libsck.KeepAlive:
		v, e := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE)
		return norm01(v), e
	case libsck.SendBufferSize:
		return unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_SNDBUF)
	case libsck.ReceiveBufferSize:
		return unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF)
	}

	return 0, unix.EINVAL
}

func norm01(v int) int {
	if v != 0 {
		return 1
	}

	return 0
}

func fromSockaddr(sa unix.Sockaddr) (string, uint16) {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return net.IP(a.Addr[:]).String(), uint16(a.Port)
	case *unix.SockaddrInet6:
		return net.IP(a.Addr[:]).String(), uint16(a.Port)
	}

	return "", 0
}
