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

package server

import (
	"sync"

	libatm "github.com/nabbar/golib/atomic"
	liberr "github.com/nabbar/golib/errors"
	liblog "github.com/nabbar/golib/logger"
	loglvl "github.com/nabbar/golib/logger/level"

	srvhst "github.com/sabouaram/netbind/server/host"
	srvwrk "github.com/sabouaram/netbind/server/worker"
	sckvls "github.com/sabouaram/netbind/socket/listen"
)

func newState() libatm.Value[srvwrk.ExecutionState] {
	v := libatm.NewValue[srvwrk.ExecutionState]()
	v.Store(srvwrk.Stopped)

	return v
}

type srv struct {
	stt libatm.Value[srvwrk.ExecutionState]
	hst []srvhst.Host
	log liblog.FuncLog

	mu sync.Mutex

	// start/stop accounting, guarded by mu
	nStarted int
	nStopped int
	nFailed  int
	failing  bool
	failMsg  string
	pendStop bool

	fnStart func()
	fnStop  func()
	fnFail  func(msg string)
}

func (o *srv) attach(h srvhst.Host) {
	h.RegisterStarted(func() { o.onWorkerStarted(h) })
	h.RegisterStopped(func() { o.onWorkerStopped(h) })
	h.RegisterFailed(func(msg string) { o.onWorkerFailed(h, msg) })

	o.hst = append(o.hst, h)
}

func (o *srv) RegisterFuncLogger(f liblog.FuncLog) {
	o.log = f

	for _, h := range o.hst {
		h.RegisterFuncLogger(f)
	}
}

func (o *srv) logger() liblog.Logger {
	if o.log != nil {
		if l := o.log(); l != nil {
			return l
		}
	}

	return liblog.GetDefault()
}

func (o *srv) RegisterStarted(fn func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fnStart = fn
}

func (o *srv) RegisterStopped(fn func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fnStop = fn
}

func (o *srv) RegisterFailed(fn func(msg string)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fnFail = fn
}

func (o *srv) ExecState() srvwrk.ExecutionState {
	return o.stt.Load()
}

func (o *srv) WorkerCount() int {
	return len(o.hst)
}

func (o *srv) OpenConnections() int64 {
	var n int64

	for _, h := range o.hst {
		n += h.OpenConnections()
	}

	return n
}

func (o *srv) Start(cfg sckvls.Config) liberr.Error {
	if err := cfg.Validate(); err != nil {
		return ErrorInvalidConfig.Error(err)
	}

	if o.stt.Load() != srvwrk.Stopped {
		return ErrorInvalidState.Error(nil)
	}

	o.mu.Lock()
	o.nStarted = 0
	o.nStopped = 0
	o.nFailed = 0
	o.failing = false
	o.failMsg = ""
	o.pendStop = false
	o.mu.Unlock()

	o.stt.Store(srvwrk.Starting)

	o.logger().Entry(loglvl.InfoLevel, "server starting").
		FieldAdd("workers", len(o.hst)).Log()

	for _, h := range o.hst {
		h.Start(cfg)
	}

	return nil
}

func (o *srv) Stop() {
	switch o.stt.Load() {
	case srvwrk.Starting:
		o.mu.Lock()
		o.pendStop = true
		o.mu.Unlock()

	case srvwrk.Started:
		o.beginStop()
	}
}

func (o *srv) beginStop() {
	o.stt.Store(srvwrk.Stopping)

	o.mu.Lock()
	o.nStopped = 0
	o.mu.Unlock()

	for _, h := range o.hst {
		h.Stop()
	}
}

// worker lifecycle hooks, invoked on the worker threads

func (o *srv) onWorkerStarted(h srvhst.Host) {
	o.mu.Lock()

	if o.failing {
		// a sibling already failed, this worker winds straight down
		o.mu.Unlock()
		h.Stop()
		return
	}

	o.nStarted++
	all := o.nStarted == len(o.hst)
	fn := o.fnStart
	pend := o.pendStop
	o.pendStop = pend && !all
	o.mu.Unlock()

	if !all {
		return
	}

	o.stt.Store(srvwrk.Started)

	if fn != nil {
		fn()
	}

	if pend {
		o.beginStop()
	}
}

func (o *srv) onWorkerFailed(_ srvhst.Host, msg string) {
	o.mu.Lock()

	o.nFailed++

	first := !o.failing
	if first {
		o.failing = true
		o.failMsg = msg
	}

	o.mu.Unlock()

	if first {
		o.logger().Entry(loglvl.ErrorLevel, "server worker failed during startup").
			FieldAdd("reason", msg).Log()

		for _, s := range o.hst {
			if s != nil {
				s.Stop()
			}
		}
	}

	o.settleFailure()
}

func (o *srv) onWorkerStopped(_ srvhst.Host) {
	o.mu.Lock()
	o.nStopped++
	failing := o.failing
	done := o.nStopped+o.nFailed == len(o.hst)
	fn := o.fnStop
	o.mu.Unlock()

	if failing {
		o.settleFailure()
		return
	}

	if done && o.stt.Load() == srvwrk.Stopping {
		o.stt.Store(srvwrk.Stopped)

		if fn != nil {
			fn()
		}
	}
}

// settleFailure emits failed once every worker is at rest again.
func (o *srv) settleFailure() {
	o.mu.Lock()

	if !o.failing {
		o.mu.Unlock()
		return
	}

	for _, h := range o.hst {
		if h.ExecState() != srvwrk.Stopped {
			o.mu.Unlock()
			return
		}
	}

	o.failing = false
	msg := o.failMsg
	fn := o.fnFail
	o.pendStop = false
	o.mu.Unlock()

	o.stt.Store(srvwrk.Stopped)

	if fn != nil {
		fn(msg)
	}
}

func (o *srv) Close() error {
	for _, h := range o.hst {
		if h != nil {
			_ = h.Close()
		}
	}

	o.hst = nil

	return nil
}
