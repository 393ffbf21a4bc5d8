// Copyright (c) 2018 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pgstore is the PostgreSQL facade implementation.
package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tsavola/certdns"
)

const maxConns = 5

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type facade struct {
	q querier
}

func (f *facade) FindDomain(ctx context.Context, id string) (*certdns.Domain, error) {
	domain := new(certdns.Domain)
	row := f.q.QueryRow(ctx, `SELECT id, username, password, txt FROM domain WHERE id = $1`, id)
	if err := row.Scan(&domain.ID, &domain.Username, &domain.Password, &domain.Txt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find domain: %w", err)
	}
	return domain, nil
}

func (f *facade) CreateDomain(ctx context.Context, domain *certdns.Domain) error {
	_, err := f.q.Exec(ctx, `INSERT INTO domain (id, username, password, txt) VALUES ($1, $2, $3, $4)`,
		domain.ID, domain.Username, domain.Password, domain.Txt)
	if err != nil {
		return fmt.Errorf("create domain: %w", err)
	}
	return nil
}

func (f *facade) UpdateDomain(ctx context.Context, domain *certdns.Domain) error {
	_, err := f.q.Exec(ctx, `UPDATE domain SET username = $2, password = $3, txt = $4 WHERE id = $1`,
		domain.ID, domain.Username, domain.Password, domain.Txt)
	if err != nil {
		return fmt.Errorf("update domain: %w", err)
	}
	return nil
}

func (f *facade) FirstCert(ctx context.Context) (*certdns.Cert, error) {
	cert := new(certdns.Cert)
	row := f.q.QueryRow(ctx, `SELECT id, "update", state, cert, private, domain_id FROM cert LIMIT 1`)
	if err := row.Scan(&cert.ID, &cert.Update, &cert.State, &cert.Cert, &cert.Private, &cert.Domain); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("first cert: %w", err)
	}
	return cert, nil
}

func (f *facade) CreateCert(ctx context.Context, cert *certdns.Cert) error {
	_, err := f.q.Exec(ctx, `INSERT INTO cert (id, "update", state, cert, private, domain_id) VALUES ($1, $2, $3, $4, $5, $6)`,
		cert.ID, cert.Update, cert.State, cert.Cert, cert.Private, cert.Domain)
	if err != nil {
		return fmt.Errorf("create cert: %w", err)
	}
	return nil
}

func (f *facade) UpdateCert(ctx context.Context, cert *certdns.Cert) error {
	_, err := f.q.Exec(ctx, `UPDATE cert SET "update" = $2, state = $3, cert = $4, private = $5, domain_id = $6 WHERE id = $1`,
		cert.ID, cert.Update, cert.State, cert.Cert, cert.Private, cert.Domain)
	if err != nil {
		return fmt.Errorf("update cert: %w", err)
	}
	return nil
}

func (f *facade) Account(ctx context.Context) (*certdns.Account, error) {
	account := new(certdns.Account)
	row := f.q.QueryRow(ctx, `SELECT private_key, registration FROM acme_account WHERE id = 1`)
	if err := row.Scan(&account.Key, &account.Registration); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find account: %w", err)
	}
	return account, nil
}

func (f *facade) SaveAccount(ctx context.Context, account *certdns.Account) error {
	_, err := f.q.Exec(ctx, `
		INSERT INTO acme_account (id, private_key, registration) VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET private_key = EXCLUDED.private_key, registration = EXCLUDED.registration`,
		account.Key, account.Registration)
	if err != nil {
		return fmt.Errorf("save account: %w", err)
	}
	return nil
}

// Store implements certdns.Store on a PostgreSQL connection pool.
type Store struct {
	facade
	pool *pgxpool.Pool
}

// Connect establishes the connection pool.
func Connect(ctx context.Context, dsn string) (*Store, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	config.MaxConns = maxConns

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database: %w", err)
	}

	return &Store{facade{pool}, pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// Transaction runs fn inside a serializable transaction.  The conflicting
// loser of two concurrent transactions gets a serialization error; callers
// treat it like any other failure and retry on their own schedule.
func (s *Store) Transaction(ctx context.Context, fn func(certdns.Facade) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&facade{tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
