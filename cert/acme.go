// Copyright (c) 2018 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cert

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"log/slog"

	"github.com/go-acme/lego/v4/certcrypto"
	"github.com/go-acme/lego/v4/lego"
	"github.com/go-acme/lego/v4/registration"

	"github.com/tsavola/certdns"
)

// user implements registration.User on the persisted account.
type user struct {
	email        string
	key          crypto.PrivateKey
	registration *registration.Resource
}

func (u *user) GetEmail() string                        { return u.email }
func (u *user) GetRegistration() *registration.Resource { return u.registration }
func (u *user) GetPrivateKey() crypto.PrivateKey        { return u.key }

// newClient loads the ACME account from the store, creating and registering
// one on first use, and configures a client against the directory.
func newClient(ctx context.Context, store certdns.Store, directoryURL, email string, logger *slog.Logger) (*lego.Client, error) {
	account, err := store.Account(ctx)
	if err != nil {
		return nil, err
	}

	var key crypto.PrivateKey

	if account != nil {
		key, err = certcrypto.ParsePEMPrivateKey([]byte(account.Key))
		if err != nil {
			return nil, fmt.Errorf("stored account key: %w", err)
		}
	} else {
		generated, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			return nil, err
		}
		der, err := x509.MarshalECPrivateKey(generated)
		if err != nil {
			return nil, err
		}

		account = &certdns.Account{
			Key: string(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der})),
		}
		if err := store.SaveAccount(ctx, account); err != nil {
			return nil, err
		}
		key = generated
	}

	u := &user{email: email, key: key}

	config := lego.NewConfig(u)
	config.CADirURL = directoryURL
	config.Certificate.KeyType = certcrypto.EC256

	client, err := lego.NewClient(config)
	if err != nil {
		return nil, err
	}

	reg, err := client.Registration.ResolveAccountByKey()
	if err != nil {
		logger.Info("registering ACME account", "directory", directoryURL)
		reg, err = client.Registration.Register(registration.RegisterOptions{TermsOfServiceAgreed: true})
		if err != nil {
			return nil, fmt.Errorf("account registration: %w", err)
		}
	}
	u.registration = reg

	if account.Registration != reg.URI {
		account.Registration = reg.URI
		if err := store.SaveAccount(ctx, account); err != nil {
			return nil, err
		}
	}

	return client, nil
}
