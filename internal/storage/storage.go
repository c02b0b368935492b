package storage

import (
	"context"

	"github.com/openledger/statetable/internal/model"
)

// RemoteStore is the persistent backing store behind the in-memory table
// layer. Select is addressed by the block view so historical reads stay
// consistent while a block is being executed; Commit receives the dumped
// table data at block commit.
type RemoteStore interface {
	// Select returns all rows for the key at the given block view. A nil
	// result is permitted and is treated as an empty row set by callers.
	Select(ctx context.Context, blockHash model.Digest, blockNum int64, tableName, key string) (*model.Entries, error)

	// Commit applies the dumped table data for the committed block and
	// returns the number of keys written.
	Commit(ctx context.Context, blockHash model.Digest, blockNum int64, datas []*model.TableData) (int, error)
}
