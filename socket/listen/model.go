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

package listen

import (
	"errors"
	"fmt"
	"net"
	"time"

	liblog "github.com/nabbar/golib/logger"
	loglvl "github.com/nabbar/golib/logger/level"
	"golang.org/x/sys/unix"

	evtlps "github.com/sabouaram/netbind/eventloop"
	libsck "github.com/sabouaram/netbind/socket"
)

const (
	// bindRetryWindow tolerates lingering TIME_WAIT owners of the
	// requested endpoint before giving up.
	bindRetryWindow = 20 * time.Second
	bindRetryPause  = 250 * time.Millisecond
)

type lsn struct {
	lop evtlps.Loop
	cfg Config
	fnc FuncNewConnection
	log liblog.FuncLog

	fd  int
	adr string
	prt uint16
	msg string

	started bool
	used    bool

	pending  []int
	draining bool
}

func (o *lsn) RegisterFuncLogger(f liblog.FuncLog) {
	o.log = f
}

func (o *lsn) logger() liblog.Logger {
	if o.log != nil {
		if l := o.log(); l != nil {
			return l
		}
	}

	return liblog.GetDefault()
}

func (o *lsn) IsStarted() bool {
	return o.started
}

func (o *lsn) LastError() string {
	return o.msg
}

func (o *lsn) Address() string {
	return o.adr
}

func (o *lsn) Port() uint16 {
	return o.prt
}

func (o *lsn) Start() bool {
	if o.used {
		o.msg = "The listener was already started."
		return false
	}

	o.used = true

	if err := o.cfg.Validate(); err != nil {
		o.msg = fmt.Sprintf("Invalid listener start data: %s", err.Error())
		return false
	}

	if o.cfg.SocketDescriptor > 0 {
		return o.adopt(o.cfg.SocketDescriptor)
	}

	return o.bindAndListen()
}

func (o *lsn) adopt(fd int) bool {
	if e := unix.SetNonblock(fd, true); e != nil {
		o.msg = fmt.Sprintf("Cannot use socket descriptor %d. %s", fd, posixText(e))
		return false
	}

	if sa, e := unix.Getsockname(fd); e == nil {
		o.adr, o.prt = endpointOf(sa)
	}

	return o.arm(fd)
}

func (o *lsn) bindAndListen() bool {
	ip := net.ParseIP(o.cfg.Address)

	fam := unix.AF_INET6
	if ip.To4() != nil {
		fam = unix.AF_INET
	}

	fd, e := unix.Socket(fam, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if e != nil {
		o.msg = fmt.Sprintf("Cannot create listening socket. %s", posixText(e))
		return false
	}

	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)

	sa := toSockaddr(ip, o.cfg.Port)
	deadline := time.Now().Add(bindRetryWindow)

	for {
		e = unix.Bind(fd, sa)

		if e == nil {
			break
		}

		// a lingering TIME_WAIT owner may release the endpoint shortly
		if errors.Is(e, unix.EADDRINUSE) && time.Now().Before(deadline) {
			time.Sleep(bindRetryPause)
			continue
		}

		_ = unix.Close(fd)
		o.msg = fmt.Sprintf("Failed to bind socket to %s. %s", joinAddr(ip, o.cfg.Port), posixText(e))
		return false
	}

	if e = unix.Listen(fd, o.cfg.backlog()); e != nil {
		_ = unix.Close(fd)
		o.msg = fmt.Sprintf("Failed to listen on %s. %s", joinAddr(ip, o.cfg.Port), posixText(e))
		return false
	}

	if sa, ge := unix.Getsockname(fd); ge == nil {
		o.adr, o.prt = endpointOf(sa)
	}

	return o.arm(fd)
}

func (o *lsn) arm(fd int) bool {
	if err := o.lop.RegisterFd(fd, o); err != nil {
		_ = unix.Close(fd)
		o.msg = fmt.Sprintf("Cannot register the listening socket with the loop: %s", err.Error())
		return false
	}

	o.fd = fd
	o.started = true

	o.logger().Entry(loglvl.InfoLevel, "listener started").
		FieldAdd("address", o.adr).
		FieldAdd("port", o.prt).Log()

	return true
}

// OnFdEvent implements eventloop.FdHandler: it batches every connection
// the kernel has ready and drains the batch in one deferred callback.
func (o *lsn) OnFdEvent(ev evtlps.FdEvents) {
	if !o.started || o.fd < 0 || !ev.Readable {
		return
	}

	for {
		fd, _, e := unix.Accept4(o.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)

		if e != nil {
			if errors.Is(e, unix.EINTR) {
				continue
			}

			// EAGAIN ends the batch; transient accept errors are dropped
			break
		}

		o.pending = append(o.pending, fd)
	}

	if len(o.pending) > 0 && !o.draining {
		o.draining = true
		o.lop.Post(o.drain)
	}
}

func (o *lsn) drain() {
	o.draining = false

	p := o.pending
	o.pending = nil

	for _, fd := range p {
		if !o.started {
			// the listener stopped while draining, the rest is refused
			_ = unix.Close(fd)
			continue
		}

		if o.fnc != nil {
			o.fnc(fd)
		} else {
			_ = unix.Close(fd)
		}
	}
}

func (o *lsn) Close() {
	if o.fd >= 0 {
		o.lop.UnregisterFd(o.fd)
		_ = unix.Close(o.fd)
		o.fd = -1
	}

	for _, fd := range o.pending {
		_ = unix.Close(fd)
	}

	o.pending = nil
	o.started = false
}

func posixText(e error) string {
	if errno, k := e.(unix.Errno); k {
		return libsck.PosixMessage(errno)
	}

	return e.Error()
}

func endpointOf(sa unix.Sockaddr) (string, uint16) {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return net.IP(a.Addr[:]).String(), uint16(a.Port)
	case *unix.SockaddrInet6:
		return net.IP(a.Addr[:]).String(), uint16(a.Port)
	}

	return "", 0
}

func toSockaddr(ip net.IP, port uint16) unix.Sockaddr {
	if v4 := ip.To4(); v4 != nil {
		sa := &unix.SockaddrInet4{Port: int(port)}
		copy(sa.Addr[:], v4)
		return sa
	}

	sa := &unix.SockaddrInet6{Port: int(port)}
	copy(sa.Addr[:], ip.To16())

	return sa
}

func joinAddr(ip net.IP, port uint16) string {
	return net.JoinHostPort(ip.String(), fmt.Sprintf("%d", port))
}
