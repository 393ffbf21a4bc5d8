// Copyright (c) 2018 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package api

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"log/slog"
	"math/big"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tsavola/certdns"
	"github.com/tsavola/certdns/store/memstore"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, nil))

func selfSigned(t *testing.T, commonName string) (certPEM, keyPEM string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: commonName},
		DNSNames:     []string{commonName},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)

	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	certPEM = string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}))
	keyPEM = string(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}))
	return
}

func storeCert(t *testing.T, store *memstore.Store, commonName string) *certdns.Cert {
	t.Helper()
	ctx := context.Background()

	certPEM, keyPEM := selfSigned(t, commonName)

	cert, err := store.FirstCert(ctx)
	require.NoError(t, err)
	if cert == nil {
		domain, err := certdns.NewDomain()
		require.NoError(t, err)
		require.NoError(t, store.CreateDomain(ctx, domain))
		cert = certdns.NewCert(domain)
		cert.Cert = &certPEM
		cert.Private = &keyPEM
		cert.State = certdns.StateOk
		require.NoError(t, store.CreateCert(ctx, cert))
	} else {
		cert.ID = certdns.NewID()
		cert.Cert = &certPEM
		cert.Private = &keyPEM
		require.NoError(t, store.UpdateCert(ctx, cert))
	}
	return cert
}

func handshakeCommonName(t *testing.T, resolver *tlsResolver) (string, error) {
	t.Helper()

	hello := &tls.ClientHelloInfo{}
	config, err := resolver.getConfigForClient(hello)
	if err != nil {
		return "", err
	}

	require.Len(t, config.Certificates, 1)
	leaf, err := x509.ParseCertificate(config.Certificates[0].Certificate[0])
	require.NoError(t, err)
	return leaf.Subject.CommonName, nil
}

func TestTLSResolverSwap(t *testing.T) {
	store := memstore.NewStore()
	resolver := newTLSResolver(store, testLogger)

	// No certificate row yet: accept fails.
	_, err := handshakeCommonName(t, resolver)
	require.ErrorIs(t, err, errNoCertificate)

	storeCert(t, store, "first.example.org")

	name, err := handshakeCommonName(t, resolver)
	require.NoError(t, err)
	require.Equal(t, "first.example.org", name)

	// A renewed row is picked up by the next connection.
	storeCert(t, store, "second.example.org")

	name, err = handshakeCommonName(t, resolver)
	require.NoError(t, err)
	require.Equal(t, "second.example.org", name)
}

func TestTLSResolverKeepsLastGood(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewStore()
	resolver := newTLSResolver(store, testLogger)

	storeCert(t, store, "good.example.org")

	name, err := handshakeCommonName(t, resolver)
	require.NoError(t, err)
	require.Equal(t, "good.example.org", name)

	// Corrupt the row: new connections keep the last good configuration.
	cert, err := store.FirstCert(ctx)
	require.NoError(t, err)
	cert.ID = certdns.NewID()
	garbage := "not pem"
	cert.Cert = &garbage
	require.NoError(t, store.UpdateCert(ctx, cert))

	name, err = handshakeCommonName(t, resolver)
	require.NoError(t, err)
	require.Equal(t, "good.example.org", name)
}

func TestTLSResolverFirstFailureFailsAccept(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewStore()
	resolver := newTLSResolver(store, testLogger)

	domain, err := certdns.NewDomain()
	require.NoError(t, err)
	require.NoError(t, store.CreateDomain(ctx, domain))
	cert := certdns.NewCert(domain)
	garbage := "not pem"
	cert.Cert = &garbage
	cert.Private = &garbage
	require.NoError(t, store.CreateCert(ctx, cert))

	_, err = handshakeCommonName(t, resolver)
	require.Error(t, err)
}

func TestTLSResolverInstallRace(t *testing.T) {
	store := memstore.NewStore()
	resolver := newTLSResolver(store, testLogger)

	oldCert := storeCert(t, store, "old.example.org")
	oldConfig, err := serverConfig(oldCert)
	require.NoError(t, err)

	// A renewal lands and a concurrent handshake installs the new row.
	storeCert(t, store, "new.example.org")

	name, err := handshakeCommonName(t, resolver)
	require.NoError(t, err)
	require.Equal(t, "new.example.org", name)

	// The slower handshake snapshotted an empty cache before the swap; its
	// late install must not clobber the newer configuration.
	require.False(t, resolver.install(nil, oldCert, oldConfig))

	name, err = handshakeCommonName(t, resolver)
	require.NoError(t, err)
	require.Equal(t, "new.example.org", name)
}

func TestServerConfigALPN(t *testing.T) {
	store := memstore.NewStore()
	storeCert(t, store, "alpn.example.org")

	cert, err := store.FirstCert(context.Background())
	require.NoError(t, err)

	config, err := serverConfig(cert)
	require.NoError(t, err)
	require.Equal(t, []string{"h2", "http/1.1"}, config.NextProtos)
}
