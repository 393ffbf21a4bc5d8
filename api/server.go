// Copyright (c) 2018 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package api serves the tenant registration routes over HTTP and TLS, and
// the Prometheus metrics endpoint.  The TLS listener's certificate comes
// from the database and follows renewals without restarts.
package api

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"

	"github.com/tsavola/certdns"
	"github.com/tsavola/certdns/api/proxy"
	"github.com/tsavola/certdns/config"
)

// Server serves the configured API listeners.
type Server struct {
	config config.API
	facade certdns.Facade
	logger *slog.Logger
}

func NewServer(apiConfig config.API, facade certdns.Facade, logger *slog.Logger) *Server {
	return &Server{
		config: apiConfig,
		facade: facade,
		logger: logger.With("component", "api"),
	}
}

// Run binds all enabled listeners and serves until the context is done or a
// listener fails.
func (s *Server) Run(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errors := make(chan error, 6) // (http, https, prom) x (context, listener)
	handler := newHandler(s.facade, s.logger)

	serve := func(listenerConfig config.Listener, name string, configure func(net.Listener) (net.Listener, *http.Server, error)) error {
		l, err := net.Listen("tcp", listenerConfig.Addr)
		if err != nil {
			return err
		}
		if listenerConfig.Proxy {
			l = proxy.NewListener(l)
		}

		l, server, err := configure(l)
		if err != nil {
			l.Close()
			return err
		}

		s.logger.Info("listening", "listener", name, "addr", l.Addr().String(), "proxy", listenerConfig.Proxy)

		go func() {
			defer l.Close()
			<-ctx.Done()
			errors <- ctx.Err()
		}()

		go func() {
			errors <- server.Serve(l)
		}()

		return nil
	}

	count := 0

	if s.config.HTTP.Enabled() {
		err = serve(s.config.HTTP, "http", func(l net.Listener) (net.Listener, *http.Server, error) {
			return l, &http.Server{Handler: handler}, nil
		})
		if err != nil {
			return
		}
		count++
	}

	if s.config.HTTPS.Enabled() {
		err = serve(s.config.HTTPS, "https", func(l net.Listener) (net.Listener, *http.Server, error) {
			resolver := newTLSResolver(s.facade, s.logger)
			server := &http.Server{Handler: handler}
			if err := http2.ConfigureServer(server, nil); err != nil {
				return l, nil, err
			}
			return tls.NewListener(l, resolver.listenerConfig()), server, nil
		})
		if err != nil {
			return
		}
		count++
	}

	if s.config.Prom.Enabled() {
		err = serve(s.config.Prom, "prom", func(l net.Listener) (net.Listener, *http.Server, error) {
			mux := http.NewServeMux()
			mux.Handle("GET /metrics", promhttp.Handler())
			return l, &http.Server{Handler: mux}, nil
		})
		if err != nil {
			return
		}
		count++
	}

	if count == 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	err = <-errors
	return
}
