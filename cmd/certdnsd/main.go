// Copyright (c) 2018 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Server program certdnsd answers ACME DNS-01 challenges, serves the tenant
// API, and keeps its own TLS certificate renewed.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/tsavola/certdns/api"
	"github.com/tsavola/certdns/cert"
	"github.com/tsavola/certdns/config"
	"github.com/tsavola/certdns/dns/authority"
	"github.com/tsavola/certdns/dns/dnsserver"
	"github.com/tsavola/certdns/store/pgstore"
)

func main() {
	level := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	configPath := flag.String("config", config.DefaultPath, "configuration file")
	flag.Parse()

	if err := run(logger, *configPath); err != nil {
		logger.Error("exiting", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, configPath string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conf, err := config.Load(configPath, logger)
	if err != nil {
		return err
	}

	records, err := config.ParseRecords(conf.Records)
	if err != nil {
		return err
	}

	store, err := pgstore.Connect(ctx, conf.General.DB)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		return err
	}

	resolver := authority.New(store, conf.General.Name, records, logger)
	manager := cert.NewManager(store, conf.General.Acme, conf.General.Name, conf.General.Email, logger)
	server := api.NewServer(conf.API, store, logger)

	errors := make(chan error, 3)

	go func() {
		errors <- dnsserver.Serve(ctx, resolver, &dnsserver.Config{
			Addr:   conf.General.DNS,
			Logger: logger,
		})
	}()

	go func() {
		errors <- server.Run(ctx)
	}()

	go func() {
		errors <- manager.Run(ctx)
	}()

	// In-flight work is abandoned on interrupt; the lifecycle lock's reclaim
	// window cleans up after us.
	select {
	case <-ctx.Done():
		logger.Info("interrupted")
		return nil
	case err := <-errors:
		return err
	}
}
