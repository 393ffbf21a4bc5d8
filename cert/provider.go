// Copyright (c) 2018 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cert

import (
	"context"

	"github.com/go-acme/lego/v4/challenge/dns01"

	"github.com/tsavola/certdns"
)

// Provider solves ACME dns-01 challenges by publishing the proof through the
// tenant row, where the DNS authority picks it up.  The challenge interface
// carries no context, so the renewal context is captured at construction;
// shutdown cancels the facade writes along with everything else.
type Provider struct {
	ctx    context.Context
	facade certdns.DomainFacade
	domain *certdns.Domain
}

func NewProvider(ctx context.Context, facade certdns.DomainFacade, domain *certdns.Domain) *Provider {
	return &Provider{ctx, facade, domain}
}

func (p *Provider) Present(name, token, keyAuth string) error {
	info := dns01.GetChallengeInfo(name, keyAuth)
	value := info.Value
	p.domain.Txt = &value
	return p.facade.UpdateDomain(p.ctx, p.domain)
}

func (p *Provider) CleanUp(name, token, keyAuth string) error {
	p.domain.Txt = nil
	return p.facade.UpdateDomain(p.ctx, p.domain)
}
