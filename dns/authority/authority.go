// Copyright (c) 2018 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package authority resolves DNS queries against preconfigured records and
// tenant rows.  Missing data is answered with an empty authoritative answer,
// never with a name error; validators probing a name before its proof is
// published should retry, not cache a denial.
package authority

import (
	"context"
	"log/slog"
	"net"
	"strings"

	"github.com/miekg/dns"

	"github.com/tsavola/certdns"
	"github.com/tsavola/certdns/config"
)

const (
	challengeLabel = "_acme-challenge"

	dynamicTTL = 100

	soaSerial  = 1
	soaRefresh = 28800
	soaRetry   = 7200
	soaExpire  = 604800
	soaMinimum = 86400
)

// Facade exposes the row lookups which query resolution needs.
type Facade interface {
	FindDomain(ctx context.Context, id string) (*certdns.Domain, error)
	FirstCert(ctx context.Context) (*certdns.Cert, error)
}

// Authority combines a static zone with dynamic per-tenant TXT data.
type Authority struct {
	origin   string
	records  config.Records
	facade   Facade
	resolver *net.Resolver
	logger   *slog.Logger
}

// New creates an authority serving the given origin.  records may be nil.
func New(facade Facade, origin string, records config.Records, logger *slog.Logger) *Authority {
	return &Authority{
		origin:   strings.ToLower(dns.Fqdn(origin)),
		records:  records,
		facade:   facade,
		resolver: net.DefaultResolver,
		logger:   logger.With("component", "authority"),
	}
}

// Search resolves a query.  A nil answer without error means an empty
// authoritative answer.
func (a *Authority) Search(ctx context.Context, name string, qtype uint16) ([]dns.RR, error) {
	lower := strings.ToLower(dns.Fqdn(name))

	if qtype == dns.TypeSOA {
		return a.soa(), nil
	}

	if answer, err := a.static(ctx, name, lower, qtype); answer != nil || err != nil {
		return answer, err
	}

	if qtype != dns.TypeTXT {
		return nil, nil
	}

	labels := dns.SplitDomainName(lower)
	if len(labels) == 0 {
		return nil, nil
	}

	if labels[0] == challengeLabel {
		return a.challenge(ctx, name)
	}
	return a.tenant(ctx, name, labels[0])
}

func (a *Authority) static(ctx context.Context, name, lower string, qtype uint16) ([]dns.RR, error) {
	byType := a.records[lower]
	if byType == nil {
		return nil, nil
	}

	if answer := byType[qtype]; len(answer) > 0 {
		return answer, nil
	}

	// An aliased name without its own address records gets resolved live,
	// with the addresses served directly under the queried name.
	if qtype == dns.TypeA {
		if cnames := byType[dns.TypeCNAME]; len(cnames) > 0 {
			return a.resolveAlias(ctx, name, cnames[0].(*dns.CNAME).Target)
		}
	}

	return nil, nil
}

func (a *Authority) resolveAlias(ctx context.Context, name, target string) ([]dns.RR, error) {
	addrs, err := a.resolver.LookupIP(ctx, "ip4", target)
	if err != nil {
		a.logger.Warn("alias resolution failed", "name", name, "target", target, "error", err)
		return nil, nil
	}

	var answer []dns.RR
	for _, addr := range addrs {
		answer = append(answer, &dns.A{
			Hdr: dns.RR_Header{
				Name:   dns.Fqdn(name),
				Rrtype: dns.TypeA,
				Class:  dns.ClassINET,
			},
			A: addr,
		})
	}
	return answer, nil
}

func (a *Authority) challenge(ctx context.Context, name string) ([]dns.RR, error) {
	cert, err := a.facade.FirstCert(ctx)
	if err != nil {
		return nil, err
	}
	if cert == nil {
		a.logger.Debug("no certificate row", "name", name)
		return nil, nil
	}

	domain, err := a.facade.FindDomain(ctx, cert.Domain)
	if err != nil {
		return nil, err
	}
	if domain == nil {
		a.logger.Debug("certificate row has no tenant", "name", name)
		return nil, nil
	}
	return a.txt(name, domain), nil
}

func (a *Authority) tenant(ctx context.Context, name, id string) ([]dns.RR, error) {
	domain, err := a.facade.FindDomain(ctx, id)
	if err != nil {
		return nil, err
	}
	if domain == nil {
		return nil, nil
	}
	return a.txt(name, domain), nil
}

func (a *Authority) txt(name string, domain *certdns.Domain) []dns.RR {
	if domain.Txt == nil {
		return nil
	}

	return []dns.RR{&dns.TXT{
		Hdr: dns.RR_Header{
			Name:   dns.Fqdn(name),
			Rrtype: dns.TypeTXT,
			Class:  dns.ClassINET,
			Ttl:    dynamicTTL,
		},
		Txt: []string{*domain.Txt},
	}}
}

func (a *Authority) soa() []dns.RR {
	return []dns.RR{&dns.SOA{
		Hdr: dns.RR_Header{
			Name:   a.origin,
			Rrtype: dns.TypeSOA,
			Class:  dns.ClassINET,
			Ttl:    dynamicTTL,
		},
		Ns:      a.origin,
		Mbox:    a.origin,
		Serial:  soaSerial,
		Refresh: soaRefresh,
		Retry:   soaRetry,
		Expire:  soaExpire,
		Minttl:  soaMinimum,
	}}
}
