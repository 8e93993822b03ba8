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

package eventloop

import liberr "github.com/nabbar/golib/errors"

const (
	ErrorPollerCreate liberr.CodeError = iota + liberr.MinAvailable + 20
	ErrorPollerWait
	ErrorFdRegister
	ErrorFdModify
	ErrorAlreadyRunning
	ErrorNotRunning
)

func init() {
	if liberr.ExistInMapMessage(ErrorPollerCreate) {
		panic("error code collision for package eventloop")
	}
	liberr.RegisterIdFctMessage(ErrorPollerCreate, getMessage)
}

func getMessage(code liberr.CodeError) (message string) {
	switch code {
	case ErrorPollerCreate:
		return "cannot create the readiness poller"
	case ErrorPollerWait:
		return "waiting on the readiness poller failed"
	case ErrorFdRegister:
		return "cannot register the file descriptor with the poller"
	case ErrorFdModify:
		return "cannot re-arm the file descriptor with the poller"
	case ErrorAlreadyRunning:
		return "the loop is already running"
	case ErrorNotRunning:
		return "the loop is not running"
	}

	return liberr.NullMessage
}
