// Copyright (c) 2018 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cert

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tsavola/certdns"
	"github.com/tsavola/certdns/store/memstore"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, nil))

func TestProvider(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewStore()

	domain, err := certdns.NewDomain()
	require.NoError(t, err)
	require.NoError(t, store.CreateDomain(ctx, domain))

	provider := NewProvider(ctx, store, domain)
	require.NoError(t, provider.Present("acme.example.org", "token", "key-auth-material"))

	published, err := store.FindDomain(ctx, domain.ID)
	require.NoError(t, err)
	require.NotNil(t, published.Txt)
	require.NotEmpty(t, *published.Txt)
	// The published proof is the digest, not the raw key authorization.
	require.NotEqual(t, "key-auth-material", *published.Txt)

	require.NoError(t, provider.CleanUp("acme.example.org", "token", "key-auth-material"))

	cleaned, err := store.FindDomain(ctx, domain.ID)
	require.NoError(t, err)
	require.Nil(t, cleaned.Txt)
}

// contextFacade rejects writes once its context is done.
type contextFacade struct {
	certdns.DomainFacade
}

func (f contextFacade) UpdateDomain(ctx context.Context, domain *certdns.Domain) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return f.DomainFacade.UpdateDomain(ctx, domain)
}

func TestProviderCanceled(t *testing.T) {
	store := memstore.NewStore()

	domain, err := certdns.NewDomain()
	require.NoError(t, err)
	require.NoError(t, store.CreateDomain(context.Background(), domain))

	ctx, cancel := context.WithCancel(context.Background())
	provider := NewProvider(ctx, contextFacade{store}, domain)
	cancel()

	require.ErrorIs(t, provider.Present("acme.example.org", "token", "key-auth-material"), context.Canceled)
}
