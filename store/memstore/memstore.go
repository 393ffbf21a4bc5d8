// Copyright (c) 2018 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package memstore is an in-memory facade implementation.  A single mutex
// stands in for the database's serializable isolation; it is held across a
// whole Transaction callback, so blocking work doesn't belong there.
package memstore

import (
	"context"
	"sync"

	"github.com/tsavola/certdns"
)

type state struct {
	domains map[string]certdns.Domain
	cert    *certdns.Cert
	account *certdns.Account
}

func (s *state) FindDomain(ctx context.Context, id string) (*certdns.Domain, error) {
	domain, ok := s.domains[id]
	if !ok {
		return nil, nil
	}
	clone := domain
	return &clone, nil
}

func (s *state) CreateDomain(ctx context.Context, domain *certdns.Domain) error {
	s.domains[domain.ID] = *domain
	return nil
}

func (s *state) UpdateDomain(ctx context.Context, domain *certdns.Domain) error {
	s.domains[domain.ID] = *domain
	return nil
}

func (s *state) FirstCert(ctx context.Context) (*certdns.Cert, error) {
	if s.cert == nil {
		return nil, nil
	}
	clone := *s.cert
	return &clone, nil
}

func (s *state) CreateCert(ctx context.Context, cert *certdns.Cert) error {
	clone := *cert
	s.cert = &clone
	return nil
}

func (s *state) UpdateCert(ctx context.Context, cert *certdns.Cert) error {
	clone := *cert
	s.cert = &clone
	return nil
}

func (s *state) Account(ctx context.Context) (*certdns.Account, error) {
	if s.account == nil {
		return nil, nil
	}
	clone := *s.account
	return &clone, nil
}

func (s *state) SaveAccount(ctx context.Context, account *certdns.Account) error {
	clone := *account
	s.account = &clone
	return nil
}

// Store implements certdns.Store on process memory.
type Store struct {
	mu sync.Mutex
	state
}

func NewStore() *Store {
	return &Store{
		state: state{
			domains: make(map[string]certdns.Domain),
		},
	}
}

func (s *Store) FindDomain(ctx context.Context, id string) (*certdns.Domain, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.FindDomain(ctx, id)
}

func (s *Store) CreateDomain(ctx context.Context, domain *certdns.Domain) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.CreateDomain(ctx, domain)
}

func (s *Store) UpdateDomain(ctx context.Context, domain *certdns.Domain) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.UpdateDomain(ctx, domain)
}

func (s *Store) FirstCert(ctx context.Context) (*certdns.Cert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.FirstCert(ctx)
}

func (s *Store) CreateCert(ctx context.Context, cert *certdns.Cert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.CreateCert(ctx, cert)
}

func (s *Store) UpdateCert(ctx context.Context, cert *certdns.Cert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.UpdateCert(ctx, cert)
}

func (s *Store) Account(ctx context.Context) (*certdns.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Account(ctx)
}

func (s *Store) SaveAccount(ctx context.Context, account *certdns.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.SaveAccount(ctx, account)
}

func (s *Store) Transaction(ctx context.Context, fn func(certdns.Facade) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&s.state)
}
