package local

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "device.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestGet_NotFound(t *testing.T) {
	s := setupTestStore(t)

	v, err := s.Get(context.Background(), "user-1", KeyTabs)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Nil(t, v)
}

func TestPutGet(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "user-1", KeyActiveTab, []byte("tab-1")))
	require.NoError(t, s.Put(ctx, "user-1", KeyActiveTab, []byte("tab-2")))

	v, err := s.Get(ctx, "user-1", KeyActiveTab)
	require.NoError(t, err)
	assert.Equal(t, "tab-2", string(v))
}

func TestPutMany_IsolatedPerUser(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutMany(ctx, "user-1", map[string][]byte{
		KeyTabs:      []byte(`[{"id":"a"}]`),
		KeyActiveTab: []byte("a"),
	}))

	v, err := s.Get(ctx, "user-1", KeyTabs)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"a"}]`, string(v))

	_, err = s.Get(ctx, "user-2", KeyTabs)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "user-1", KeyCustomerInfo, []byte("{}")))
	require.NoError(t, s.Delete(ctx, "user-1", KeyCustomerInfo))

	_, err := s.Get(ctx, "user-1", KeyCustomerInfo)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpen_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, "user-1", KeyActiveTab, []byte("tab-9")))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	v, err := s.Get(ctx, "user-1", KeyActiveTab)
	require.NoError(t, err)
	assert.Equal(t, "tab-9", string(v))
}
