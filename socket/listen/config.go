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
	"fmt"
	"net"

	libval "github.com/go-playground/validator/v10"
	liberr "github.com/nabbar/golib/errors"
)

// DefaultBacklog is the listen(2) backlog applied when none is configured.
const DefaultBacklog = 50

// Config is the start data of a listener. Exactly one of the address+port
// pair or the inherited descriptor must be provided.
type Config struct {
	// Address is the bind address, an IPv4 or IPv6 literal.
	Address string `mapstructure:"address" json:"address" yaml:"address" toml:"address" validate:"omitempty,ip"`

	// Port is the bind port.
	Port uint16 `mapstructure:"port" json:"port" yaml:"port" toml:"port"`

	// BacklogSize is the listen(2) backlog; zero means DefaultBacklog.
	BacklogSize int `mapstructure:"backlogSize" json:"backlogSize" yaml:"backlogSize" toml:"backlogSize" validate:"gte=0"`

	// SocketDescriptor is a pre-bound, pre-listening descriptor to adopt
	// instead of binding. Zero or negative means unset.
	SocketDescriptor int `mapstructure:"socketDescriptor" json:"socketDescriptor" yaml:"socketDescriptor" toml:"socketDescriptor"`
}

// Validate enforces the start-data schema.
func (c Config) Validate() liberr.Error {
	err := ErrorConfigInvalid.Error(nil)

	if er := libval.New().Struct(c); er != nil {
		if e, ok := er.(*libval.InvalidValidationError); ok {
			err.Add(e)
		} else {
			for _, e := range er.(libval.ValidationErrors) {
				//nolint goerr113
				err.Add(fmt.Errorf("config field '%s' is not validated by constraint '%s'", e.StructNamespace(), e.ActualTag()))
			}
		}
	}

	hasAddr := c.Address != "" || c.Port != 0
	hasFd := c.SocketDescriptor > 0

	if hasAddr && hasFd {
		//nolint goerr113
		err.Add(fmt.Errorf("both an address and a socket descriptor were provided"))
	} else if !hasAddr && !hasFd {
		//nolint goerr113
		err.Add(fmt.Errorf("neither an address nor a socket descriptor was provided"))
	} else if hasAddr {
		if c.Port == 0 {
			//nolint goerr113
			err.Add(fmt.Errorf("a bind port is required with a bind address"))
		}

		if c.Address == "" || net.ParseIP(c.Address) == nil {
			//nolint goerr113
			err.Add(fmt.Errorf("the bind address is not an IP literal"))
		}
	}

	if err.HasParent() {
		return err
	}

	return nil
}

func (c Config) backlog() int {
	if c.BacklogSize > 0 {
		return c.BacklogSize
	}

	return DefaultBacklog
}
