// Copyright (c) 2018 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config loads the TOML server configuration.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// DefaultPath is used when no -config flag is given.
const DefaultPath = "config.toml"

// DefaultDirectoryURL is the production Let's Encrypt directory.
const DefaultDirectoryURL = "https://acme-v02.api.letsencrypt.org/directory"

// Listener configures one API endpoint.  An empty Addr disables the
// endpoint.  Proxy enables PROXY protocol decoding on accepted connections.
type Listener struct {
	Addr  string `toml:"addr"`
	Proxy bool   `toml:"proxy"`
}

func (l Listener) Enabled() bool {
	return l.Addr != ""
}

type General struct {
	DNS   string `toml:"dns"`
	DB    string `toml:"db"`
	Acme  string `toml:"acme"`
	Name  string `toml:"name"`
	Email string `toml:"email"`
}

type API struct {
	HTTP  Listener `toml:"http"`
	HTTPS Listener `toml:"https"`
	Prom  Listener `toml:"prom"`
}

// Config is the parsed configuration file.  Records maps owner names to
// record entries; see ParseRecords for the entry format.
type Config struct {
	General General               `toml:"general"`
	API     API                   `toml:"api"`
	Records map[string][][]string `toml:"records"`
}

// Load reads and validates the configuration file.  The database address is
// logged with credentials redacted.
func Load(path string, logger *slog.Logger) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	config := new(Config)
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	if config.General.Acme == "" {
		config.General.Acme = DefaultDirectoryURL
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	logger.Info("configuration loaded", "path", path, "dns", config.General.DNS, "db", redactDSN(config.General.DB), "name", config.General.Name)
	return config, nil
}

func (c *Config) validate() error {
	if c.General.DNS == "" {
		return fmt.Errorf("general.dns is required")
	}
	if c.General.DB == "" {
		return fmt.Errorf("general.db is required")
	}
	if c.General.Name == "" {
		return fmt.Errorf("general.name is required")
	}
	c.General.Name = strings.ToLower(strings.TrimSuffix(c.General.Name, "."))
	return nil
}

func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "(unparsable)"
	}
	return u.Redacted()
}
