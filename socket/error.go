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

package socket

import (
	"fmt"

	liberr "github.com/nabbar/golib/errors"
	"golang.org/x/sys/unix"
)

const (
	ErrorTransport liberr.CodeError = iota + liberr.MinAvailable + 60
	ErrorResolve
	ErrorInvalidOption
)

func init() {
	if liberr.ExistInMapMessage(ErrorTransport) {
		panic("error code collision for package socket")
	}
	liberr.RegisterIdFctMessage(ErrorTransport, getMessage)
}

func getMessage(code liberr.CodeError) (message string) {
	switch code {
	case ErrorTransport:
		return "transport failure on the stream socket"
	case ErrorResolve:
		return "no usable address returned for the domain"
	case ErrorInvalidOption:
		return "unknown socket option"
	}

	return liberr.NullMessage
}

// PosixMessage renders errno the way callers observe it inside the socket
// failure texts, for instance "POSIX error EACCES(13): Permission denied.".
func PosixMessage(errno unix.Errno) string {
	n := unix.ErrnoName(errno)

	if n == "" {
		n = "EUNKNOWN"
	}

	return fmt.Sprintf("POSIX error %s(%d): %s.", n, int(errno), errno.Error())
}
