package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T, name string, profile DatabaseProfile) *DB {
	t.Helper()
	db, err := New(Config{
		Path:    filepath.Join(t.TempDir(), name+".db"),
		Profile: profile,
		Name:    name,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate())
	return db
}

func tableExists(t *testing.T, db *sql.DB, table string) bool {
	t.Helper()
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&n)
	require.NoError(t, err)
	return n == 1
}

func TestMigrate_AppliesNamedSchema(t *testing.T) {
	history := openTestDB(t, NameHistory, ProfileCache)
	assert.True(t, tableExists(t, history.Conn(), "daily_prices"))
	assert.True(t, tableExists(t, history.Conn(), "instruments"))
	assert.Equal(t, ProfileCache, history.Profile())

	results := openTestDB(t, NameResults, "")
	assert.Equal(t, ProfileStandard, results.Profile(), "empty profile defaults to standard")
	assert.False(t, tableExists(t, results.Conn(), "daily_prices"))

	unknown := openTestDB(t, "scratch", ProfileStandard)
	assert.False(t, tableExists(t, unknown.Conn(), "daily_prices"), "unknown names get no schema")

	require.NoError(t, history.Migrate(), "migrations are idempotent")
}

func TestWithTransaction(t *testing.T) {
	db := openTestDB(t, NameHistory, ProfileStandard)
	insert := func(tx *sql.Tx, id string) error {
		_, err := tx.Exec(`INSERT INTO instruments (id, name) VALUES (?, '')`, id)
		return err
	}
	count := func() int {
		var n int
		require.NoError(t, db.Conn().QueryRow(`SELECT COUNT(*) FROM instruments`).Scan(&n))
		return n
	}

	require.NoError(t, WithTransaction(db.Conn(), func(tx *sql.Tx) error { return insert(tx, "510300") }))
	assert.Equal(t, 1, count())

	boom := errors.New("boom")
	err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		require.NoError(t, insert(tx, "510880"))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, count(), "failed transaction is rolled back")

	err = WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		require.NoError(t, insert(tx, "159915"))
		panic("unexpected")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, count(), "panicking transaction is rolled back")

	assert.Error(t, WithTransaction(nil, func(*sql.Tx) error { return nil }))
}

func TestHealthAndStats(t *testing.T) {
	db := openTestDB(t, NameResults, ProfileStandard)
	ctx := context.Background()

	require.NoError(t, db.HealthCheck(ctx))
	require.NoError(t, db.QuickCheck(ctx))

	stats, err := db.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, NameResults, stats.Name)
	assert.Greater(t, stats.PageCount, int64(0))
	assert.Greater(t, stats.PageSize, int64(0))

	require.NoError(t, db.Close())
	assert.Error(t, db.QuickCheck(ctx))
}

func TestSnapshotTo(t *testing.T) {
	db := openTestDB(t, NameHistory, ProfileStandard)
	ctx := context.Background()
	_, err := db.Conn().Exec(`INSERT INTO instruments (id, name) VALUES ('518880', 'Gold ETF')`)
	require.NoError(t, err)

	target := filepath.Join(t.TempDir(), "copy.db")
	require.NoError(t, db.SnapshotTo(ctx, target))
	assert.Error(t, db.SnapshotTo(ctx, target), "existing targets are not overwritten")

	copyDB, err := New(Config{Path: target, Name: NameHistory})
	require.NoError(t, err)
	defer copyDB.Close()

	var name string
	require.NoError(t, copyDB.Conn().QueryRow(`SELECT name FROM instruments WHERE id = '518880'`).Scan(&name))
	assert.Equal(t, "Gold ETF", name)
}
