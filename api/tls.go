// Copyright (c) 2018 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package api

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"sync"

	"github.com/tsavola/certdns"
)

var errNoCertificate = errors.New("no certificate available")

var alpnProtocols = []string{"h2", "http/1.1"}

// tlsResolver resolves the TLS configuration per accepted connection.  The
// certificate row is re-read on each handshake; a changed row swaps the
// parsed configuration for new connections only.  Lookup or parse failures
// fall back to the last good configuration, so a bad database write can't
// take down the listener once it has served a single connection.
type tlsResolver struct {
	facade certdns.CertFacade
	logger *slog.Logger

	mu      sync.RWMutex
	current *certdns.Cert
	config  *tls.Config
}

func newTLSResolver(facade certdns.CertFacade, logger *slog.Logger) *tlsResolver {
	return &tlsResolver{
		facade: facade,
		logger: logger.With("component", "tls"),
	}
}

// listenerConfig is the configuration given to tls.NewListener.  The real
// configuration is resolved during the handshake.
func (r *tlsResolver) listenerConfig() *tls.Config {
	return &tls.Config{
		GetConfigForClient: r.getConfigForClient,
		NextProtos:         alpnProtocols,
	}
}

func (r *tlsResolver) getConfigForClient(hello *tls.ClientHelloInfo) (*tls.Config, error) {
	r.mu.RLock()
	current, config := r.current, r.config
	r.mu.RUnlock()

	ctx := hello.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cert, err := r.facade.FirstCert(ctx)
	if err != nil {
		r.logger.Warn("certificate lookup failed, using cached configuration", "error", err)
		cert = current
	}

	if cert.Same(current) {
		if config == nil {
			return nil, errNoCertificate
		}
		return config, nil
	}

	fresh, err := serverConfig(cert)
	if err != nil {
		r.logger.Error("certificate rejected", "error", err)
		if config == nil {
			return nil, err
		}
		return config, nil
	}

	if r.install(current, cert, fresh) {
		r.logger.Info("certificate loaded", "id", cert.ID)
	}
	return fresh, nil
}

// install swaps the cached configuration, but only if the cache still holds
// the row snapshotted at lookup time.  Two handshakes racing a renewal may
// otherwise apply their swaps in the wrong order, leaving the older row
// cached.  The loser of the race still serves its own freshly built config.
func (r *tlsResolver) install(snapshot, cert *certdns.Cert, config *tls.Config) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.current.Same(snapshot) {
		return false
	}
	r.current, r.config = cert, config
	return true
}

func serverConfig(cert *certdns.Cert) (*tls.Config, error) {
	if cert == nil || cert.Cert == nil || cert.Private == nil {
		return nil, errNoCertificate
	}

	pair, err := tls.X509KeyPair([]byte(*cert.Cert), []byte(*cert.Private))
	if err != nil {
		return nil, err
	}

	return &tls.Config{
		Certificates: []tls.Certificate{pair},
		NextProtos:   alpnProtocols,
		MinVersion:   tls.VersionTLS12,
	}, nil
}
