package storage_test

import (
	"context"
	"testing"

	"github.com/openledger/statetable/internal/errors"
	"github.com/openledger/statetable/internal/model"
	"github.com/openledger/statetable/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func commitOneRow(t *testing.T, store *storage.MemoryStore, table, key string, fields map[string]string) {
	t.Helper()

	entry := model.NewEntry()
	for name, value := range fields {
		entry.SetField(name, value)
	}
	entries := model.NewEntries()
	entries.AddEntry(entry)

	data := model.NewTableData(table)
	data.Data[key] = entries

	written, err := store.Commit(context.Background(), model.Digest{1}, 1, []*model.TableData{data})
	require.NoError(t, err)
	require.Equal(t, 1, written)
}

func TestMemoryStoreSelectMissing(t *testing.T) {
	store := storage.NewMemoryStore(zap.NewNop())

	entries, err := store.Select(context.Background(), model.Digest{}, 0, "accounts", "nope")
	require.NoError(t, err)
	assert.Nil(t, entries, "an unknown key reads as nil")
}

func TestMemoryStoreCommitThenSelect(t *testing.T) {
	store := storage.NewMemoryStore(zap.NewNop())
	commitOneRow(t, store, "accounts", "alice", map[string]string{"name": "alice"})

	entries, err := store.Select(context.Background(), model.Digest{}, 1, "accounts", "alice")
	require.NoError(t, err)
	require.NotNil(t, entries)
	require.Equal(t, 1, entries.Size())
	assert.Equal(t, "alice", entries.Get(0).GetField("name"))
	assert.False(t, entries.Dirty(), "a loaded bag starts clean")
}

func TestMemoryStoreSelectReturnsCopy(t *testing.T) {
	store := storage.NewMemoryStore(zap.NewNop())
	commitOneRow(t, store, "accounts", "alice", map[string]string{"name": "alice"})
	ctx := context.Background()

	first, err := store.Select(ctx, model.Digest{}, 1, "accounts", "alice")
	require.NoError(t, err)
	first.Get(0).SetField("name", "mutated")

	second, err := store.Select(ctx, model.Digest{}, 1, "accounts", "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", second.Get(0).GetField("name"),
		"mutating a selected bag must not leak into the store")
}

func TestMemoryStoreVerify(t *testing.T) {
	store := storage.NewMemoryStore(zap.NewNop())

	err := store.Verify("accounts")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeTableNotFound, errors.GetCode(err))

	commitOneRow(t, store, "accounts", "alice", map[string]string{"name": "alice"})
	assert.NoError(t, store.Verify("accounts"))

	commitOneRow(t, store, "accounts", "bob", map[string]string{"name": "bob"})
	assert.NoError(t, store.Verify("accounts"), "the checksum covers the full row set after every commit")
}

func TestMemoryStoreChecksum(t *testing.T) {
	store := storage.NewMemoryStore(zap.NewNop())

	_, ok := store.Checksum("accounts")
	assert.False(t, ok)

	commitOneRow(t, store, "accounts", "alice", map[string]string{"name": "alice"})
	sum1, ok := store.Checksum("accounts")
	require.True(t, ok)

	commitOneRow(t, store, "accounts", "bob", map[string]string{"name": "bob"})
	sum2, ok := store.Checksum("accounts")
	require.True(t, ok)
	assert.NotEqual(t, sum1, sum2, "the checksum tracks the committed payload")
}
