package service

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/openledger/statetable/internal/errors"
	"github.com/openledger/statetable/internal/metrics"
	"github.com/openledger/statetable/internal/model"
	"github.com/openledger/statetable/internal/storage"
	"github.com/openledger/statetable/internal/table"
	"github.com/openledger/statetable/internal/util/workerpool"
	"go.uber.org/zap"
)

// StateConfig holds state service configuration
type StateConfig struct {
	CacheShards int
}

// StateService owns the per-block table overlays and their change journal.
// Tables opened through it share one block view and one recorder; savepoints
// mark journal positions that RollbackTo can unwind. Commit dumps every dirty
// table and hands the batch to the remote store.
type StateService struct {
	config  *StateConfig
	store   storage.RemoteStore
	pool    *workerpool.WorkerPool
	metrics *metrics.Metrics
	logger  *zap.Logger

	blockHash model.Digest
	blockNum  int64

	mu      sync.Mutex
	tables  map[string]*table.MemoryTable
	journal []journalEntry
}

// journalEntry pairs a change with the table it was applied to
type journalEntry struct {
	table  *table.MemoryTable
	change model.Change
}

// NewStateService creates a new state service over the remote store. The
// worker pool parallelizes commit-time dumps and may be nil, in which case
// dumps run serially. The metrics sink may be nil.
func NewStateService(cfg *StateConfig, store storage.RemoteStore, pool *workerpool.WorkerPool, m *metrics.Metrics, logger *zap.Logger) *StateService {
	return &StateService{
		config:  cfg,
		store:   store,
		pool:    pool,
		metrics: m,
		logger:  logger,
		tables:  make(map[string]*table.MemoryTable),
	}
}

// SetBlock binds the block view for subsequently opened tables and resets
// the open table set and journal. Called once per block before execution.
func (s *StateService) SetBlock(blockHash model.Digest, blockNum int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.blockHash = blockHash
	s.blockNum = blockNum
	s.tables = make(map[string]*table.MemoryTable)
	s.journal = nil
	s.updateGauges()
}

// OpenTable returns the overlay for the named table, creating and binding it
// on first use. The same table instance is returned for the whole block.
func (s *StateService) OpenTable(name string, info *model.TableInfo) *table.MemoryTable {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.tables[name]; ok {
		return t
	}

	t := table.NewMemoryTable(&table.Config{CacheShards: s.config.CacheShards}, s.logger)
	t.SetStateStorage(s.store)
	t.SetBlockHash(s.blockHash)
	t.SetBlockNumber(s.blockNum)
	t.SetTableInfo(info)
	t.SetMetrics(s.metrics)
	t.SetRecorder(s.record)

	s.tables[name] = t
	s.updateGauges()

	s.logger.Debug("Opened table",
		zap.String("table", name),
		zap.Int64("block_number", s.blockNum))

	return t
}

// Table returns the already-open overlay for the named table, or a
// table-not-found error when the block has not opened it
func (s *StateService) Table(name string) (*table.MemoryTable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables[name]
	if !ok {
		return nil, errors.TableNotFound(name)
	}
	return t, nil
}

// record is the recorder bound to every opened table. It runs synchronously
// inside the mutating operation: after the mutation for updates and removes,
// just before the entry is appended for inserts.
func (s *StateService) record(t *table.MemoryTable, kind model.ChangeKind, key string, records []model.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.journal = append(s.journal, journalEntry{
		table:  t,
		change: model.Change{Kind: kind, Key: key, Records: records},
	})
	s.updateGauges()
}

// Savepoint returns a marker for the current journal position
func (s *StateService) Savepoint() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.SavepointsTotal.Inc()
	}
	return len(s.journal)
}

// RollbackTo undoes every change journaled after the savepoint, most recent
// first, and truncates the journal back to it
func (s *StateService) RollbackTo(savepoint int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if savepoint < 0 || savepoint > len(s.journal) {
		s.logger.Error("Rollback to invalid savepoint",
			zap.Int("savepoint", savepoint),
			zap.Int("journal_depth", len(s.journal)))
		return
	}

	for i := len(s.journal) - 1; i >= savepoint; i-- {
		entry := s.journal[i]
		entry.table.Rollback(entry.change)
	}
	s.journal = s.journal[:savepoint]
	s.updateGauges()
}

// JournalDepth returns the current number of journaled changes
func (s *StateService) JournalDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.journal)
}

// OpenTables returns the number of tables opened in the current block
func (s *StateService) OpenTables() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tables)
}

// Commit dumps every open table, in parallel when a worker pool is bound,
// hands the dirty tables to the remote store, and clears the journal.
// Returns the number of keys written.
func (s *StateService) Commit(ctx context.Context) (int, error) {
	start := time.Now()

	s.mu.Lock()
	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	tables := make([]*table.MemoryTable, len(names))
	for i, name := range names {
		tables[i] = s.tables[name]
	}
	blockHash, blockNum := s.blockHash, s.blockNum
	s.mu.Unlock()

	datas := make([]*model.TableData, len(names))
	dirty := make([]bool, len(names))

	var wg sync.WaitGroup
	for i := range names {
		i := i
		wg.Add(1)
		dump := func(context.Context) error {
			defer wg.Done()
			data := model.NewTableData(names[i])
			dirty[i] = tables[i].Dump(data)
			datas[i] = data
			return nil
		}
		if s.pool != nil {
			if err := s.pool.Submit(workerpool.Task{ID: fmt.Sprintf("dump-%s", names[i]), Fn: dump}); err == nil {
				continue
			}
			// Pool unavailable or saturated, dump on the calling goroutine
		}
		_ = dump(ctx)
	}
	wg.Wait()

	committed := make([]*model.TableData, 0, len(datas))
	for i, data := range datas {
		if dirty[i] {
			committed = append(committed, data)
		}
	}

	written := 0
	if len(committed) > 0 {
		var err error
		written, err = s.store.Commit(ctx, blockHash, blockNum, committed)
		if err != nil {
			s.logger.Error("Block commit failed",
				zap.Int64("block_number", blockNum),
				zap.Error(err))
			if !errors.IsTableError(err) {
				err = errors.CommitFailed("remote store commit failed", err)
			}
			return 0, err
		}
	}

	s.mu.Lock()
	s.journal = nil
	s.updateGauges()
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.CommitsTotal.Inc()
		s.metrics.CommitSeconds.Observe(time.Since(start).Seconds())
	}

	s.logger.Info("Block committed",
		zap.String("block_hash", blockHash.Hex()),
		zap.Int64("block_number", blockNum),
		zap.Int("tables_dirty", len(committed)),
		zap.Int("keys_written", written))

	return written, nil
}

// Hash returns the combined digest over all open tables: names in
// lexicographic order, each dirty table contributing its name and table
// digest. The zero digest means no table has dirty content.
func (s *StateService) Hash() model.Digest {
	s.mu.Lock()
	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	tables := make([]*table.MemoryTable, len(names))
	for i, name := range names {
		tables[i] = s.tables[name]
	}
	s.mu.Unlock()

	var buf []byte
	for i, name := range names {
		h := tables[i].Hash()
		if h.IsZero() {
			continue
		}
		buf = append(buf, name...)
		buf = append(buf, h[:]...)
	}

	if len(buf) == 0 {
		return model.Digest{}
	}
	return sha256.Sum256(buf)
}

// updateGauges refreshes the journal, table, and cache gauges; callers hold
// s.mu
func (s *StateService) updateGauges() {
	if s.metrics == nil {
		return
	}
	s.metrics.JournalEntries.Set(float64(len(s.journal)))
	s.metrics.OpenTables.Set(float64(len(s.tables)))

	cached := 0
	for _, t := range s.tables {
		cached += t.CacheSize()
	}
	s.metrics.CachedKeys.Set(float64(cached))
}
