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

// Package server fans accept load out across worker threads sharing one
// listening endpoint. Every worker binds its own socket with port sharing
// enabled, so the kernel balances accepted connections across them; the
// server only aggregates their lifecycles.
//
// The server reports started once every worker did. The first startup
// failure is recorded, the surviving workers are wound down and failed
// fires once all of them returned to rest. A stop requested while startup
// is still resolving is held back and applied afterwards. A crashing
// worker never affects its siblings beyond this lifecycle aggregation.
package server

import (
	"runtime"

	liberr "github.com/nabbar/golib/errors"
	liblog "github.com/nabbar/golib/logger"

	evtlps "github.com/sabouaram/netbind/eventloop"
	srvhdl "github.com/sabouaram/netbind/server/handler"
	srvhst "github.com/sabouaram/netbind/server/host"
	srvwrk "github.com/sabouaram/netbind/server/worker"
	sckvls "github.com/sabouaram/netbind/socket/listen"
)

// FuncFactoryProvider builds the handler factory of one worker, bound to
// that worker's loop. It runs on the worker's thread.
type FuncFactoryProvider func(l evtlps.Loop) srvhdl.Factory

// Server is the N-worker coordinator.
type Server interface {
	// Start validates the start data and launches every worker with it.
	// The outcome arrives through the started or failed hook.
	Start(cfg sckvls.Config) liberr.Error

	// Stop winds every worker down; stopped fires once all are at rest.
	// A stop issued while starting is deferred until startup resolves.
	Stop()

	// ExecState returns the aggregated lifecycle state. Safe from any
	// goroutine.
	ExecState() srvwrk.ExecutionState

	// OpenConnections sums the live handler counts of all workers.
	OpenConnections() int64

	// WorkerCount returns the number of workers.
	WorkerCount() int

	RegisterStarted(fn func())
	RegisterStopped(fn func())
	RegisterFailed(fn func(msg string))

	// RegisterFuncLogger sets the logger source used by the server and
	// its workers.
	RegisterFuncLogger(f liblog.FuncLog)

	// Close releases every worker thread. The server is unusable
	// afterwards.
	Close() error
}

// Options tunes the server.
type Options struct {
	// WorkerCount is the number of accept workers; zero or a value above
	// the available CPU cores is capped at that count.
	WorkerCount int `mapstructure:"workerCount" json:"workerCount" yaml:"workerCount" toml:"workerCount"`

	// Worker tunes each worker.
	Worker srvwrk.Options `mapstructure:"worker" json:"worker" yaml:"worker" toml:"worker"`
}

func (o Options) workerCount() int {
	n := runtime.NumCPU()

	if o.WorkerCount > 0 && o.WorkerCount < n {
		return o.WorkerCount
	}

	return n
}

// New builds the server and its hosted workers, each on a dedicated
// thread.
func New(opt Options, fct FuncFactoryProvider) (Server, liberr.Error) {
	if fct == nil {
		return nil, ErrorInvalidFactory.Error(nil)
	}

	s := &srv{
		stt: newState(),
	}

	for i := 0; i < opt.workerCount(); i++ {
		h, err := srvhst.New(func(l evtlps.Loop) srvwrk.Worker {
			return srvwrk.New(l, fct(l), opt.Worker)
		})

		if err != nil {
			_ = s.Close()
			return nil, err
		}

		s.attach(h)
	}

	return s, nil
}
