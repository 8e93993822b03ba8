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

package host

import (
	"context"
	"sync"

	libatm "github.com/nabbar/golib/atomic"
	liberr "github.com/nabbar/golib/errors"
	liblog "github.com/nabbar/golib/logger"

	evtlps "github.com/sabouaram/netbind/eventloop"
	srvwrk "github.com/sabouaram/netbind/server/worker"
	sckvls "github.com/sabouaram/netbind/socket/listen"
)

type hst struct {
	lop evtlps.Loop
	wrk srvwrk.Worker
	wgr sync.WaitGroup
	cnl context.CancelFunc

	stt libatm.Value[srvwrk.ExecutionState]

	mu       sync.Mutex
	pendStop bool
	clsDone  chan struct{}
	fnStart  func()
	fnStop   func()
	fnFail   func(msg string)
}

func newHost(fct FuncWorker) (Host, liberr.Error) {
	if fct == nil {
		return nil, ErrorInvalidWorker.Error(nil)
	}

	lop, err := evtlps.New()
	if err != nil {
		return nil, err
	}

	o := &hst{
		lop: lop,
		stt: libatm.NewValue[srvwrk.ExecutionState](),
	}

	o.stt.Store(srvwrk.Stopped)

	ctx, cnl := context.WithCancel(context.Background())
	o.cnl = cnl

	o.wgr.Add(1)

	go func() {
		defer o.wgr.Done()
		_ = lop.Run(ctx)
	}()

	// the worker must be built on its own thread
	done := make(chan srvwrk.Worker, 1)

	lop.Post(func() {
		done <- fct(lop)
	})

	w := <-done

	if w == nil {
		cnl()
		o.wgr.Wait()
		return nil, ErrorInvalidWorker.Error(nil)
	}

	w.RegisterStarted(o.onStarted)
	w.RegisterStopped(o.onStopped)
	w.RegisterFailed(o.onFailed)

	o.wrk = w

	return o, nil
}

func (o *hst) RegisterFuncLogger(f liblog.FuncLog) {
	o.lop.RegisterFuncLogger(f)
	o.wrk.RegisterFuncLogger(f)
}

func (o *hst) RegisterStarted(fn func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fnStart = fn
}

func (o *hst) RegisterStopped(fn func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fnStop = fn
}

func (o *hst) RegisterFailed(fn func(msg string)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fnFail = fn
}

func (o *hst) ExecState() srvwrk.ExecutionState {
	return o.stt.Load()
}

func (o *hst) OpenConnections() int64 {
	return o.wrk.OpenConnections()
}

func (o *hst) Start(cfg sckvls.Config) {
	if o.stt.Load() != srvwrk.Stopped {
		return
	}

	o.stt.Store(srvwrk.Starting)
	o.wrk.Start(cfg)
}

func (o *hst) Stop() {
	switch o.stt.Load() {
	case srvwrk.Starting:
		// held back until the worker resolves its startup
		o.mu.Lock()
		o.pendStop = true

		// startup may have resolved between the state read and the flag
		if o.stt.Load() == srvwrk.Started && o.pendStop {
			o.pendStop = false
			o.mu.Unlock()
			o.stt.Store(srvwrk.Stopping)
			o.wrk.Stop()
			return
		}

		o.mu.Unlock()

	case srvwrk.Started:
		o.stt.Store(srvwrk.Stopping)
		o.wrk.Stop()
	}
}

// worker hooks, invoked on the hosted thread

func (o *hst) onStarted() {
	o.stt.Store(srvwrk.Started)

	o.mu.Lock()
	fn := o.fnStart
	pend := o.pendStop
	o.pendStop = false
	o.mu.Unlock()

	if fn != nil {
		fn()
	}

	if pend {
		o.stt.Store(srvwrk.Stopping)
		o.wrk.Stop()
	}
}

func (o *hst) onStopped() {
	o.stt.Store(srvwrk.Stopped)

	o.mu.Lock()
	fn := o.fnStop
	o.mu.Unlock()

	if fn != nil {
		fn()
	}

	o.signalClosed()
}

func (o *hst) onFailed(msg string) {
	o.stt.Store(srvwrk.Stopped)

	o.mu.Lock()
	fn := o.fnFail
	o.pendStop = false
	o.mu.Unlock()

	if fn != nil {
		fn(msg)
	}

	o.signalClosed()
}

// signalClosed releases a Close call waiting for the worker to rest.
func (o *hst) signalClosed() {
	o.mu.Lock()
	d := o.clsDone
	o.clsDone = nil
	o.mu.Unlock()

	if d != nil {
		close(d)
	}
}

func (o *hst) Close() error {
	if !o.lop.IsRunning() {
		return nil
	}

	// wind the worker down on its own thread and wait for it to reach
	// Stopped before quitting the loop: the stop command is itself a
	// queued invocation, so the loop must keep turning until the worker's
	// stopped (or failed) hook reports back
	done := make(chan struct{})

	o.mu.Lock()
	o.clsDone = done
	o.mu.Unlock()

	o.lop.Post(func() {
		switch o.stt.Load() {
		case srvwrk.Stopped:
			o.signalClosed()

		case srvwrk.Starting:
			// the stop follows once startup resolves
			o.mu.Lock()
			o.pendStop = true
			o.mu.Unlock()

		case srvwrk.Started:
			o.stt.Store(srvwrk.Stopping)
			o.wrk.Stop()

		case srvwrk.Stopping:
			// the pending stop signals on completion
		}
	})

	<-done

	o.lop.Quit()
	o.wgr.Wait()

	if o.cnl != nil {
		o.cnl()
	}

	return nil
}
