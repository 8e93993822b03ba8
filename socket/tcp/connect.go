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
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	liberr "github.com/nabbar/golib/errors"
	loglvl "github.com/nabbar/golib/logger/level"
	"golang.org/x/sys/unix"

	evtlps "github.com/sabouaram/netbind/eventloop"
	libsck "github.com/sabouaram/netbind/socket"
)

// attempt tracks one in-flight connect: the resolved address list, the
// probing fd waiting for write readiness and the overall deadline.
type attempt struct {
	own  *sck
	host string
	port uint16
	lit  bool

	addrs []net.IP
	idx   int

	fd  int
	reg bool

	tmr evtlps.Timer
	cnl context.CancelFunc

	dead bool
}

func (o *sck) Connect(hostOrIP string, port uint16) {
	if o.stt != libsck.Unconnected || o.atm != nil {
		o.logger().Entry(loglvl.WarnLevel, "connect ignored, socket busy").
			FieldAdd("state", o.stt.String()).Log()
		return
	}

	o.msg = ""

	a := &attempt{
		own:  o,
		host: hostOrIP,
		port: port,
		fd:   -1,
	}

	o.atm = a
	o.stt = libsck.Connecting

	a.tmr = o.lop.PostDelayed(o.cto, a.onTimeout)

	if ip := net.ParseIP(hostOrIP); ip != nil {
		a.lit = true
		a.addrs = []net.IP{ip}
		a.tryNext()
		return
	}

	ctx, cnl := context.WithCancel(context.Background())
	a.cnl = cnl

	go func() {
		ips := o.rsv.Resolve(ctx, hostOrIP)

		o.lop.Post(func() {
			a.onResolved(ips)
		})
	}()
}

func (a *attempt) onResolved(ips []net.IP) {
	if a.dead {
		return
	}

	if len(ips) == 0 {
		a.fail(
			fmt.Sprintf("Failed to connect to %s. Could not fetch any address for domain.", a.host),
			ErrorResolveFailed,
		)
		return
	}

	a.addrs = ips
	a.tryNext()
}

func (a *attempt) tryNext() {
	o := a.own

	for a.idx < len(a.addrs) {
		ip := a.addrs[a.idx]

		fd, e := newStreamFd(ip)
		if e != nil {
			a.idx++
			continue
		}

		o.applyOptions(fd)

		if o.bndAdr != nil || o.bndPrt != 0 {
			if errno := bindFd(fd, o.bndAdr, o.bndPrt, ip); errno != 0 {
				_ = unix.Close(fd)
				a.fail(
					fmt.Sprintf("Failed to bind socket to %s. %s",
						joinAddr(o.bndAdr, o.bndPrt), libsck.PosixMessage(errno)),
					ErrorBindFailed,
				)
				return
			}
		}

		e = unix.Connect(fd, toSockaddr(ip, a.port))

		if e == nil {
			a.fd = fd
			a.succeed()
			return
		}

		if errors.Is(e, unix.EINPROGRESS) {
			a.fd = fd

			if err := o.lop.RegisterFd(fd, a); err != nil {
				_ = unix.Close(fd)
				a.fd = -1
				a.idx++
				continue
			}

			a.reg = true
			_ = o.lop.ModifyFd(fd, false, true)
			return
		}

		_ = unix.Close(fd)
		a.idx++
	}

	a.fail(a.connectText(), ErrorConnectFailed)
}

// OnFdEvent implements eventloop.FdHandler for the connect probe.
func (a *attempt) OnFdEvent(ev evtlps.FdEvents) {
	if a.dead || a.fd < 0 {
		return
	}

	if !ev.Writable && !ev.Error && !ev.Hangup {
		return
	}

	v, e := unix.GetsockoptInt(a.fd, unix.SOL_SOCKET, unix.SO_ERROR)

	if e == nil && v == 0 {
		a.succeed()
		return
	}

	a.dropFd()
	a.idx++
	a.tryNext()
}

func (a *attempt) succeed() {
	o := a.own

	if a.reg {
		o.lop.UnregisterFd(a.fd)
		a.reg = false
	}

	a.stopAsync()
	a.dead = true

	fd := a.fd
	a.fd = -1
	o.atm = nil

	if err := o.chn.AttachFd(fd); err != nil {
		_ = unix.Close(fd)
		o.stt = libsck.Unconnected
		o.msg = a.connectText()
		o.evt.Error(ErrorConnectFailed.Error(err))
		return
	}

	if la, e := unix.Getsockname(fd); e == nil {
		o.locAdr, o.locPrt = fromSockaddr(la)
	}

	if pa, e := unix.Getpeername(fd); e == nil {
		o.perAdr, o.perPrt = fromSockaddr(pa)
	}

	o.stt = libsck.Connected
	o.evt.Connected()
}

func (a *attempt) onTimeout() {
	if a.dead {
		return
	}

	a.tmr = nil
	a.fail(a.connectText(), ErrorConnectTimeout)
}

func (a *attempt) fail(msg string, code liberr.CodeError) {
	o := a.own

	a.cancel()
	o.atm = nil
	o.stt = libsck.Unconnected
	o.msg = msg

	o.evt.Error(code.Error(errors.New(msg)))
}

func (a *attempt) cancel() {
	a.dead = true
	a.stopAsync()
	a.dropFd()
}

func (a *attempt) stopAsync() {
	if a.tmr != nil {
		a.tmr.Stop()
		a.tmr = nil
	}

	if a.cnl != nil {
		a.cnl()
		a.cnl = nil
	}
}

func (a *attempt) dropFd() {
	if a.fd < 0 {
		return
	}

	if a.reg {
		a.own.lop.UnregisterFd(a.fd)
		a.reg = false
	}

	_ = unix.Close(a.fd)
	a.fd = -1
}

// connectText renders the attempt failure the way callers assert on it.
func (a *attempt) connectText() string {
	var ip net.IP

	if len(a.addrs) > 0 {
		i := a.idx
		if i >= len(a.addrs) {
			i = len(a.addrs) - 1
		}
		ip = a.addrs[i]
	}

	if a.lit {
		return fmt.Sprintf("Failed to connect to %s.", joinAddr(ip, a.port))
	}

	if ip == nil {
		return fmt.Sprintf("Failed to connect to %s.", a.host)
	}

	return fmt.Sprintf("Failed to connect to %s at %s.", a.host, joinAddr(ip, a.port))
}

func newStreamFd(ip net.IP) (int, error) {
	fam := unix.AF_INET6

	if ip.To4() != nil {
		fam = unix.AF_INET
	}

	return unix.Socket(fam, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
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

// bindFd binds fd to the requested local endpoint, matching the family of
// the target address when no bind address was given.
func bindFd(fd int, bind net.IP, port uint16, target net.IP) unix.Errno {
	ip := bind

	if ip == nil {
		if target.To4() != nil {
			ip = net.IPv4zero
		} else {
			ip = net.IPv6zero
		}
	}

	if e := unix.Bind(fd, toSockaddr(ip, port)); e != nil {
		if errno, k := e.(unix.Errno); k {
			return errno
		}

		return unix.EINVAL
	}

	return 0
}

func joinAddr(ip net.IP, port uint16) string {
	h := ""

	if ip != nil {
		h = ip.String()
	}

	return net.JoinHostPort(h, strconv.Itoa(int(port)))
}
