// Copyright (c) 2018 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cert drives certificate issuance and renewal.  The singleton Cert
// row is the unit of coordination: flipping it into the updating state
// acquires a distributed lock, and the acquisition timestamp is the fencing
// token which a worker must still hold when it tries to complete the job.
package cert

import (
	"context"

	"github.com/tsavola/certdns"
)

// updateTimeout is the age in seconds after which an updating row counts as
// abandoned and may be reclaimed.
const updateTimeout = 3600

// StartCert tries to acquire the update lock.  It returns the acquired row,
// or nil when another worker holds a live claim.  On first ever call it also
// creates the tenant which owns the service's certificate.
func StartCert(ctx context.Context, store certdns.Store) (*certdns.Cert, error) {
	var acquired *certdns.Cert

	err := store.Transaction(ctx, func(f certdns.Facade) error {
		current, err := f.FirstCert(ctx)
		if err != nil {
			return err
		}

		switch {
		case current == nil:
			domain, err := certdns.NewDomain()
			if err != nil {
				return err
			}
			if err := f.CreateDomain(ctx, domain); err != nil {
				return err
			}
			cert := certdns.NewCert(domain)
			if err := f.CreateCert(ctx, cert); err != nil {
				return err
			}
			acquired = cert
			return nil

		case current.State == certdns.StateOk:
			current.State = certdns.StateUpdating
			current.Update = certdns.ToInt64(certdns.Now())
			if err := f.UpdateCert(ctx, current); err != nil {
				return err
			}
			acquired = current
			return nil

		default:
			// Signed comparison: a future timestamp (worker clock skew)
			// counts as a live claim, not an ancient one.
			now := certdns.ToInt64(certdns.Now())
			if now-current.Update < updateTimeout {
				return nil
			}
			current.Update = now
			if err := f.UpdateCert(ctx, current); err != nil {
				return err
			}
			acquired = current
			return nil
		}
	})
	if err != nil {
		return nil, err
	}
	return acquired, nil
}

// StopCert tries to complete the job by persisting the in-memory row with
// its state flipped to ok.  The write happens only if the persisted row is
// still updating and still carries this worker's acquisition timestamp;
// otherwise the result is discarded, because whoever reclaimed the job owns
// it now.
func StopCert(ctx context.Context, store certdns.Store, memory *certdns.Cert) error {
	return store.Transaction(ctx, func(f certdns.Facade) error {
		current, err := f.FirstCert(ctx)
		if err != nil {
			return err
		}
		if current == nil || current.State != certdns.StateUpdating || current.Update != memory.Update {
			return nil
		}

		memory.State = certdns.StateOk
		return f.UpdateCert(ctx, memory)
	})
}
