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

package tls

import (
	stdtls "crypto/tls"
	"time"

	libtls "github.com/nabbar/golib/certificates"
	libdur "github.com/nabbar/golib/duration"
	liberr "github.com/nabbar/golib/errors"
)

// DefaultHandshakeTimeout bounds the whole handshake exchange.
const DefaultHandshakeTimeout = 60 * time.Second

// Config carries the TLS parameter set of a socket. The certificate
// material, CA bundles, protocol version bounds, cipher and curve lists
// live in the nabbar certificates configuration; the fields here add what
// the stream runtime layers on top of it.
type Config struct {
	// TLS is the certificate configuration: cert/key pairs, root CA
	// bundle, client CA bundle, client-auth mode, version bounds and
	// cipher lists.
	TLS libtls.Config `mapstructure:"tls" json:"tls" yaml:"tls" toml:"tls"`

	// ALPN is the protocol list offered or accepted during the
	// handshake.
	ALPN []string `mapstructure:"alpn" json:"alpn" yaml:"alpn" toml:"alpn"`

	// VerifyPeer turns peer verification on. For a client this enables
	// chain validation against the configured root CA bundle; for a
	// server it requires and verifies a client certificate against the
	// client CA bundle. When off, invalid peer certificates are ignored.
	VerifyPeer bool `mapstructure:"verifyPeer" json:"verifyPeer" yaml:"verifyPeer" toml:"verifyPeer"`

	// ServerName is the name presented for SNI and used for chain
	// validation. When empty, the connect host is used.
	ServerName string `mapstructure:"serverName" json:"serverName" yaml:"serverName" toml:"serverName"`

	// HandshakeTimeout bounds the handshake; zero means the default.
	HandshakeTimeout libdur.Duration `mapstructure:"handshakeTimeout" json:"handshakeTimeout" yaml:"handshakeTimeout" toml:"handshakeTimeout"`
}

func (c Config) handshakeTimeout() time.Duration {
	if d := c.HandshakeTimeout.Time(); d > 0 {
		return d
	}

	return DefaultHandshakeTimeout
}

func (c Config) clientUsable() liberr.Error {
	// a client without explicit roots falls back to the system bundle
	return nil
}

func (c Config) serverUsable() liberr.Error {
	if len(c.TLS.Certs) == 0 {
		return ErrorConfigServer.Error(nil)
	}

	return nil
}

// buildClient renders the engine configuration for the client role.
func (c Config) buildClient(serverName string) *stdtls.Config {
	name := c.ServerName

	if name == "" {
		name = serverName
	}

	t := c.TLS.New().TlsConfig(name)
	t.NextProtos = append([]string(nil), c.ALPN...)

	if !c.VerifyPeer {
		t.InsecureSkipVerify = true
	}

	return t
}

// buildServer renders the engine configuration for the server role.
func (c Config) buildServer() *stdtls.Config {
	t := c.TLS.New().TlsConfig("")
	t.NextProtos = append([]string(nil), c.ALPN...)

	if c.VerifyPeer {
		t.ClientAuth = stdtls.RequireAndVerifyClientCert
	}

	return t
}
