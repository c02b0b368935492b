package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/openledger/statetable/internal/errors"
	"github.com/openledger/statetable/internal/model"
	"github.com/openledger/statetable/internal/util"
	"go.uber.org/zap"
)

// MemoryStore is an in-memory RemoteStore used by the devnode and tests. It
// keeps only the latest committed view; the block coordinates are accepted
// for interface compatibility and ignored on reads.
type MemoryStore struct {
	tables    map[string]map[string]*model.Entries
	checksums map[string]uint32
	logger    *zap.Logger
	mu        sync.RWMutex
}

// NewMemoryStore creates a new empty in-memory store
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	return &MemoryStore{
		tables:    make(map[string]map[string]*model.Entries),
		checksums: make(map[string]uint32),
		logger:    logger,
	}
}

// Select returns a deep copy of the rows stored under the key, or nil when
// the key has never been written
func (s *MemoryStore) Select(ctx context.Context, blockHash model.Digest, blockNum int64, tableName, key string) (*model.Entries, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, ok := s.tables[tableName]
	if !ok {
		return nil, nil
	}
	entries, ok := rows[key]
	if !ok {
		return nil, nil
	}

	// Callers mutate what Select returns, so hand out a copy
	return entries.Clone(), nil
}

// Commit applies the dumped table data and refreshes each table's payload
// checksum over its full row set. Returns the number of keys written.
func (s *MemoryStore) Commit(ctx context.Context, blockHash model.Digest, blockNum int64, datas []*model.TableData) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	written := 0
	for _, data := range datas {
		rows, ok := s.tables[data.Name]
		if !ok {
			rows = make(map[string]*model.Entries)
			s.tables[data.Name] = rows
		}
		for key, entries := range data.Data {
			rows[key] = entries.Clone()
			written++
		}
		s.checksums[data.Name] = util.ComputeChecksum(encodeRows(rows))
	}

	s.logger.Debug("Committed block data",
		zap.String("block_hash", blockHash.Hex()),
		zap.Int64("block_number", blockNum),
		zap.Int("tables", len(datas)),
		zap.Int("keys_written", written))

	return written, nil
}

// Checksum returns the payload checksum recorded at the table's last commit
func (s *MemoryStore) Checksum(tableName string) (uint32, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sum, ok := s.checksums[tableName]
	return sum, ok
}

// Verify recomputes the table's payload checksum and compares it against the
// one recorded at its last commit
func (s *MemoryStore) Verify(tableName string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expected, ok := s.checksums[tableName]
	if !ok {
		return errors.TableNotFound(tableName)
	}

	payload := encodeRows(s.tables[tableName])
	if !util.ValidateChecksum(payload, expected) {
		return errors.ChecksumFailed(tableName, expected, util.ComputeChecksum(payload))
	}
	return nil
}

// encodeRows produces a deterministic byte encoding of a table's rows for
// checksumming: keys in lexicographic order, each followed by its rows'
// fields and status
func encodeRows(rows map[string]*model.Entries) []byte {
	keys := make([]string, 0, len(rows))
	for key := range rows {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var buf []byte
	for _, key := range keys {
		buf = append(buf, key...)
		entries := rows[key]
		for i := 0; i < entries.Size(); i++ {
			entry := entries.Get(i)
			for _, f := range entry.Fields() {
				buf = append(buf, f.Name...)
				buf = append(buf, f.Value...)
			}
			buf = append(buf, byte(entry.Status()))
		}
	}
	return buf
}
