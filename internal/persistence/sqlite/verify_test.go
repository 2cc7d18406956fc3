// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_AppliesWAL(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, filepath.Join(t.TempDir(), "tvplay.db"), Config{})
	require.NoError(t, err)
	defer db.Close()

	var mode string
	require.NoError(t, db.QueryRowContext(ctx, "PRAGMA journal_mode;").Scan(&mode))
	assert.Equal(t, "wal", mode)

	var fk int
	require.NoError(t, db.QueryRowContext(ctx, "PRAGMA foreign_keys;").Scan(&fk))
	assert.Equal(t, 1, fk)
}

func TestVerifyIntegrity_Healthy(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, filepath.Join(t.TempDir(), "tvplay.db"), DefaultConfig())
	require.NoError(t, err)
	defer db.Close()

	_, err = db.ExecContext(ctx, "CREATE TABLE t (id INTEGER PRIMARY KEY, v TEXT);")
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		_, err = db.ExecContext(ctx, "INSERT INTO t (v) VALUES (?);", "value")
		require.NoError(t, err)
	}

	issues, err := VerifyIntegrity(ctx, db, false)
	require.NoError(t, err)
	assert.Nil(t, issues)

	issues, err = VerifyIntegrity(ctx, db, true)
	require.NoError(t, err)
	assert.Nil(t, issues)
}

func TestOpen_BadPath(t *testing.T) {
	_, err := Open(context.Background(), filepath.Join(t.TempDir(), "missing", "dir", "tvplay.db"), DefaultConfig())
	assert.Error(t, err)
}
