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
	"context"
	"net"
	"time"

	dns "github.com/miekg/dns"
)

const (
	resolvConfPath  = "/etc/resolv.conf"
	resolveTimeout  = 5 * time.Second
	fallbackDNSAddr = "127.0.0.53:53"
)

// Resolver turns a hostname into the ordered list of addresses a connect
// attempt should walk. Resolution runs off the event-loop goroutine; the
// caller marshals the result back onto its loop.
//
// IPv4 addresses come first, in server answer order, then IPv6 ones. An
// empty result means the domain yielded no usable address.
type Resolver interface {
	Resolve(ctx context.Context, host string) []net.IP
}

// NewResolver returns the default resolver, backed by the servers listed in
// /etc/resolv.conf.
func NewResolver() Resolver {
	return &resolver{}
}

type resolver struct{}

func (o *resolver) Resolve(ctx context.Context, host string) []net.IP {
	// loopback names resolve locally, a DNS server is not involved
	if host == "localhost" {
		return []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback}
	}

	var res []net.IP

	srv := o.servers()

	for _, ip := range o.query(ctx, srv, host, dns.TypeA) {
		res = append(res, ip)
	}

	for _, ip := range o.query(ctx, srv, host, dns.TypeAAAA) {
		res = append(res, ip)
	}

	return res
}

func (o *resolver) servers() []string {
	cfg, err := dns.ClientConfigFromFile(resolvConfPath)

	if err != nil || len(cfg.Servers) == 0 {
		return []string{fallbackDNSAddr}
	}

	srv := make([]string, 0, len(cfg.Servers))
	for _, s := range cfg.Servers {
		srv = append(srv, net.JoinHostPort(s, cfg.Port))
	}

	return srv
}

func (o *resolver) query(ctx context.Context, servers []string, host string, qtype uint16) []net.IP {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(host), qtype)
	m.RecursionDesired = true

	c := &dns.Client{
		Timeout: resolveTimeout,
	}

	for _, s := range servers {
		r, _, err := c.ExchangeContext(ctx, m, s)

		if err != nil || r == nil {
			continue
		}

		if r.Rcode != dns.RcodeSuccess {
			return nil
		}

		var res []net.IP

		for _, a := range r.Answer {
			switch v := a.(type) {
			case *dns.A:
				res = append(res, v.A)
			case *dns.AAAA:
				res = append(res, v.AAAA)
			}
		}

		return res
	}

	return nil
}
