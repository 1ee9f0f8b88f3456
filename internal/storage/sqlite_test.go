package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupSQLiteKV(t *testing.T) *SQLiteKV {
	t.Helper()

	kv, err := NewSQLiteKV(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, kv.Close())
	})
	return kv
}

func TestSQLiteKVRoundTrip(t *testing.T) {
	kv := setupSQLiteKV(t)
	ctx := context.Background()

	_, err := kv.Get(ctx, SlotToken)
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, kv.Set(ctx, SlotToken, "tok-abc"))
	value, err := kv.Get(ctx, SlotToken)
	require.NoError(t, err)
	assert.Equal(t, "tok-abc", value)

	// Upsert path: same key, new value.
	require.NoError(t, kv.Set(ctx, SlotToken, "tok-def"))
	value, err = kv.Get(ctx, SlotToken)
	require.NoError(t, err)
	assert.Equal(t, "tok-def", value)

	require.NoError(t, kv.Remove(ctx, SlotToken))
	_, err = kv.Get(ctx, SlotToken)
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, kv.Remove(ctx, SlotToken))
}

func TestSQLiteKVIsolatesKeys(t *testing.T) {
	kv := setupSQLiteKV(t)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, SlotToken, "tok"))
	require.NoError(t, kv.Set(ctx, SlotUser, `{"id":1}`))
	require.NoError(t, kv.Remove(ctx, SlotToken))

	value, err := kv.Get(ctx, SlotUser)
	require.NoError(t, err)
	assert.Equal(t, `{"id":1}`, value)
}

func TestNewSQLiteKVRequiresPath(t *testing.T) {
	_, err := NewSQLiteKV("")
	assert.Error(t, err)
}
