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

package worker

import (
	libatm "github.com/nabbar/golib/atomic"
	liblog "github.com/nabbar/golib/logger"
	loglvl "github.com/nabbar/golib/logger/level"
	"golang.org/x/sys/unix"

	evtlps "github.com/sabouaram/netbind/eventloop"
	srvhdl "github.com/sabouaram/netbind/server/handler"
	sckvls "github.com/sabouaram/netbind/socket/listen"
)

type wrk struct {
	lop evtlps.Loop
	fct srvhdl.Factory
	rep srvhdl.Repository
	lsn sckvls.Listener
	max int64
	log liblog.FuncLog

	stt libatm.Value[ExecutionState]

	fnStarted func()
	fnStopped func()
	fnFailed  func(msg string)

	pendStop bool
}

func (o *wrk) RegisterFuncLogger(f liblog.FuncLog) {
	o.log = f
}

func (o *wrk) logger() liblog.Logger {
	if o.log != nil {
		if l := o.log(); l != nil {
			return l
		}
	}

	return liblog.GetDefault()
}

func (o *wrk) RegisterStarted(fn func()) {
	o.fnStarted = fn
}

func (o *wrk) RegisterStopped(fn func()) {
	o.fnStopped = fn
}

func (o *wrk) RegisterFailed(fn func(msg string)) {
	o.fnFailed = fn
}

func (o *wrk) ExecState() ExecutionState {
	return o.stt.Load()
}

func (o *wrk) OpenConnections() int64 {
	return o.rep.Count()
}

func (o *wrk) MaxConnections() int64 {
	return o.max
}

func (o *wrk) Start(cfg sckvls.Config) {
	o.lop.Post(func() {
		o.doStart(cfg)
	})
}

func (o *wrk) Stop() {
	o.lop.Post(o.doStop)
}

func (o *wrk) doStart(cfg sckvls.Config) {
	if o.stt.Load() != Stopped || o.lsn != nil {
		return
	}

	o.stt.Store(Starting)

	l := sckvls.New(o.lop, cfg, o.onNewConnection)
	l.RegisterFuncLogger(o.log)

	if !l.Start() {
		msg := l.LastError()
		o.stt.Store(Stopped)
		o.pendStop = false

		o.logger().Entry(loglvl.ErrorLevel, "worker startup failed").
			FieldAdd("reason", msg).Log()

		if o.fnFailed != nil {
			o.fnFailed(msg)
		}

		return
	}

	o.lsn = l
	o.stt.Store(Started)

	if o.fnStarted != nil {
		o.fnStarted()
	}

	if o.pendStop {
		o.pendStop = false
		o.doStop()
	}
}

func (o *wrk) doStop() {
	switch o.stt.Load() {
	case Starting:
		// resolved once startup completes, in either direction
		o.pendStop = true
		return

	case Started:
		// continue below

	default:
		return
	}

	o.stt.Store(Stopping)

	if o.lsn != nil {
		o.lsn.Close()
	}

	if o.rep.Count() == 0 {
		o.finishStop()
		return
	}

	o.rep.RegisterLastRemoved(o.finishStop)
	_ = o.rep.Close()

	// handlers tearing down synchronously may already have drained
	if o.stt.Load() == Stopping && o.rep.Count() == 0 {
		o.finishStop()
	}
}

func (o *wrk) finishStop() {
	if o.stt.Load() != Stopping {
		return
	}

	o.rep.RegisterLastRemoved(nil)
	o.stt.Store(Stopped)

	if o.fnStopped != nil {
		o.fnStopped()
	}
}

// onNewConnection applies the cap, then wraps the descriptor. Runs on the
// worker loop for every accepted descriptor, in arrival order.
func (o *wrk) onNewConnection(fd int) {
	if o.stt.Load() != Started {
		_ = unix.Close(fd)
		return
	}

	if o.rep.Count() >= o.max {
		// politely refused: the descriptor is closed without a handler
		_ = unix.Close(fd)
		return
	}

	h := o.fct.New(fd)

	if h == nil {
		_ = unix.Close(fd)
		return
	}

	o.rep.Add(h)
}
