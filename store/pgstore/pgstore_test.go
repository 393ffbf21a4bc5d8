// Copyright (c) 2018 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pgstore

import (
	"context"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrations(t *testing.T) {
	names, err := fs.Glob(migrations, "migrations/*.sql")
	require.NoError(t, err)
	require.Len(t, names, 3)

	for _, name := range names {
		data, err := fs.ReadFile(migrations, name)
		require.NoError(t, err)
		require.Contains(t, string(data), "-- +goose Up")
		require.Contains(t, string(data), "-- +goose Down")
	}
}

func TestConnectBadDSN(t *testing.T) {
	_, err := Connect(context.Background(), "not a dsn")
	require.Error(t, err)
}
