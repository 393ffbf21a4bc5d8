// Copyright (c) 2018 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cert

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-acme/lego/v4/certificate"
	"github.com/go-acme/lego/v4/challenge/dns01"
	"github.com/go-acme/lego/v4/lego"

	"github.com/tsavola/certdns"
)

const renewInterval = time.Hour

// Manager renews the service's certificate.  Several managers may run
// against the same database; the lifecycle lock keeps at most one order in
// flight.
type Manager struct {
	store        certdns.Store
	directoryURL string
	name         string
	email        string
	logger       *slog.Logger

	client *lego.Client

	// obtain is the issuance step, replaceable in tests.
	obtain func(ctx context.Context, domain *certdns.Domain) (chain, key string, err error)
}

// NewManager creates a manager which obtains certificates for name from the
// ACME directory.  The client is built lazily, so an unreachable directory
// delays issuance instead of failing startup.
func NewManager(store certdns.Store, directoryURL, name, email string, logger *slog.Logger) *Manager {
	m := &Manager{
		store:        store,
		directoryURL: directoryURL,
		name:         name,
		email:        email,
		logger:       logger.With("component", "cert"),
	}
	m.obtain = m.obtainACME
	return m
}

// Run renews immediately and then once per interval, until the context is
// done.  A failed attempt is logged and retried on the next tick; the
// abandoned lock claim expires on its own.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(renewInterval)
	defer ticker.Stop()

	for {
		if err := m.manage(ctx); err != nil {
			m.logger.Error("certificate renewal failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (m *Manager) manage(ctx context.Context) error {
	memory, err := StartCert(ctx, m.store)
	if err != nil {
		return err
	}
	if memory == nil {
		m.logger.Info("certificate job still in progress")
		return nil
	}

	domain, err := m.store.FindDomain(ctx, memory.Domain)
	if err != nil {
		return err
	}
	if domain == nil {
		return fmt.Errorf("certificate row references unknown tenant %s", memory.Domain)
	}

	chain, key, err := m.obtain(ctx, domain)
	if err != nil {
		return err
	}

	memory.Cert = &chain
	memory.Private = &key

	if err := StopCert(ctx, m.store, memory); err != nil {
		return err
	}

	m.logger.Info("certificate renewed", "name", m.name)
	return nil
}

func (m *Manager) obtainACME(ctx context.Context, domain *certdns.Domain) (string, string, error) {
	if m.client == nil {
		client, err := newClient(ctx, m.store, m.directoryURL, m.email, m.logger)
		if err != nil {
			return "", "", err
		}
		m.client = client
	}

	provider := NewProvider(ctx, m.store, domain)
	if err := m.client.Challenge.SetDNS01Provider(provider, dns01.AddDNSTimeout(10*time.Minute)); err != nil {
		return "", "", err
	}

	resource, err := m.client.Certificate.Obtain(certificate.ObtainRequest{
		Domains: []string{m.name},
		Bundle:  true,
	})
	if err != nil {
		return "", "", err
	}

	return string(resource.Certificate), string(resource.PrivateKey), nil
}
