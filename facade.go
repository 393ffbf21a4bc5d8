// Copyright (c) 2018 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package certdns

import (
	"context"
)

// Account is the persisted ACME account: a PEM-encoded private key and the
// registration URI obtained from the certificate authority.
type Account struct {
	Key          string
	Registration string
}

// DomainFacade accesses tenant rows.  Lookups return nil without error when
// no row matches.
type DomainFacade interface {
	FindDomain(ctx context.Context, id string) (*Domain, error)
	CreateDomain(ctx context.Context, domain *Domain) error
	UpdateDomain(ctx context.Context, domain *Domain) error
}

// CertFacade accesses the singleton certificate row.  FirstCert returns nil
// without error when the row doesn't exist yet.
type CertFacade interface {
	FirstCert(ctx context.Context) (*Cert, error)
	CreateCert(ctx context.Context, cert *Cert) error
	UpdateCert(ctx context.Context, cert *Cert) error
}

// AccountFacade accesses the persisted ACME account.  Account returns nil
// without error when no account has been registered yet.
type AccountFacade interface {
	Account(ctx context.Context) (*Account, error)
	SaveAccount(ctx context.Context, account *Account) error
}

// Facade bundles all row access behind one interface.
type Facade interface {
	DomainFacade
	CertFacade
	AccountFacade
}

// Store is a facade which can also scope a group of accesses into a single
// serializable transaction.  The callback's facade must not be retained.
type Store interface {
	Facade
	Transaction(ctx context.Context, fn func(Facade) error) error
}
