package table

import (
	"context"
	"crypto/sha256"
	"sort"
	"sync"
	"time"

	"github.com/openledger/statetable/internal/errors"
	"github.com/openledger/statetable/internal/metrics"
	"github.com/openledger/statetable/internal/model"
	"github.com/openledger/statetable/internal/storage"
	"github.com/openledger/statetable/internal/validation"
	"go.uber.org/zap"
)

// Recorder receives every reversible change a table applies, synchronously,
// before the operation returns: updates and removes are recorded after the
// in-memory mutation, an insert just before its entry is appended. The journal
// that owns the recorder replays changes back through Rollback on revert.
type Recorder func(t *MemoryTable, kind model.ChangeKind, key string, records []model.Record)

// Config holds memory table configuration
type Config struct {
	CacheShards int
}

// MemoryTable is the write-buffering, rollback-capable overlay over the
// remote store for one table within one block. Reads populate the key cache
// lazily from the remote store; writes mutate only the cache and emit journal
// records through the recorder. The overlay lives until the block is
// committed via Dump or discarded via Clear.
type MemoryTable struct {
	remote    storage.RemoteStore
	info      *model.TableInfo
	cache     *keyCache
	blockHash model.Digest
	blockNum  int64
	recorder  Recorder
	validator *validation.Validator
	metrics   *metrics.Metrics
	logger    *zap.Logger

	// reloadMu guards only the tombstone-reload window so a reloaded slot
	// cannot be lost to a concurrent nullification. The common first-miss
	// path stays outside it.
	reloadMu sync.Mutex
}

// NewMemoryTable creates a new memory table. The remote store, block view,
// table info and recorder are bound afterwards through the setters, matching
// the per-block construction sequence of the transaction layer.
func NewMemoryTable(cfg *Config, logger *zap.Logger) *MemoryTable {
	shards := 0
	if cfg != nil {
		shards = cfg.CacheShards
	}
	return &MemoryTable{
		cache:     newKeyCache(shards),
		validator: validation.NewValidator(),
		logger:    logger,
	}
}

// SetStateStorage binds the remote backing store
func (t *MemoryTable) SetStateStorage(remote storage.RemoteStore) {
	t.remote = remote
}

// SetBlockHash sets the block hash component of the read view
func (t *MemoryTable) SetBlockHash(blockHash model.Digest) {
	t.blockHash = blockHash
}

// SetBlockNumber sets the block number component of the read view
func (t *MemoryTable) SetBlockNumber(blockNum int64) {
	t.blockNum = blockNum
}

// SetTableInfo binds the table schema
func (t *MemoryTable) SetTableInfo(info *model.TableInfo) {
	t.info = info
}

// SetRecorder binds the journal recorder callback
func (t *MemoryTable) SetRecorder(recorder Recorder) {
	t.recorder = recorder
}

// SetMetrics binds the metrics sink; a nil sink disables instrumentation
func (t *MemoryTable) SetMetrics(m *metrics.Metrics) {
	t.metrics = m
}

// Info returns the bound table schema
func (t *MemoryTable) Info() *model.TableInfo {
	return t.info
}

// selectCache resolves the cached entries for a key, populating the slot
// from the remote store on first touch. The key is validated before it can
// reach the cache or the remote store. A tombstone slot is reloaded under
// reloadMu; the first-miss path is lock-free apart from the shard lock.
// Whatever the remote returns is normalized to a non-nil bag before it is
// cached. When the remote is unbound or needSelect is false, a fresh empty
// bag is returned without entering the cache.
func (t *MemoryTable) selectCache(ctx context.Context, key string, needSelect bool) (*model.Entries, error) {
	if err := t.validator.ValidateKey(key); err != nil {
		return nil, err
	}

	entries, ok := t.cache.Load(key)
	if ok && entries != nil {
		if t.metrics != nil {
			t.metrics.CacheHitsTotal.Inc()
		}
		return entries, nil
	}

	if t.remote == nil || !needSelect {
		return model.NewEntries(), nil
	}

	if !ok {
		// First touch: fetch without exclusion. Concurrent fetchers race to
		// insert and the first one wins.
		if t.metrics != nil {
			t.metrics.CacheMissesTotal.Inc()
		}
		fetched, err := t.fetch(ctx, key)
		if err != nil {
			return nil, err
		}
		return t.cache.LoadOrStore(key, fetched), nil
	}

	// Tombstone: the slot was invalidated by rollback. Reload exclusively so
	// the refreshed entries cannot be dropped by a racing writer.
	t.reloadMu.Lock()
	defer t.reloadMu.Unlock()

	if entries, _ := t.cache.Load(key); entries != nil {
		return entries, nil
	}
	if t.metrics != nil {
		t.metrics.TombstoneReloads.Inc()
	}
	fetched, err := t.fetch(ctx, key)
	if err != nil {
		return nil, err
	}
	t.cache.Store(key, fetched)
	return fetched, nil
}

// fetch reads the key from the remote store, normalizing a nil result to an
// empty bag
func (t *MemoryTable) fetch(ctx context.Context, key string) (*model.Entries, error) {
	start := time.Now()
	entries, err := t.remote.Select(ctx, t.blockHash, t.blockNum, t.info.Name, key)
	if t.metrics != nil {
		t.metrics.RemoteFetchesTotal.Inc()
		t.metrics.RemoteFetchSeconds.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		if t.metrics != nil {
			t.metrics.RemoteFetchErrors.Inc()
		}
		return nil, errors.RemoteStoreFailed("remote store select failed", err)
	}
	if entries == nil {
		entries = model.NewEntries()
	}
	return entries, nil
}

// Select returns the entries under the key that match the condition. The
// returned bag holds the matched rows by reference. Any failure yields an
// empty result and is logged.
func (t *MemoryTable) Select(ctx context.Context, key string, cond *model.Condition) *model.Entries {
	if t.metrics != nil {
		t.metrics.SelectsTotal.Inc()
		defer t.observeOp("select", time.Now())
	}

	entries, err := t.selectCache(ctx, key, true)
	if err != nil {
		t.logger.Error("Table select failed",
			zap.String("table", t.info.Name),
			zap.String("key", key),
			zap.Error(err))
		return model.NewEntries()
	}

	result := model.NewEntries()
	for _, i := range matchingIndexes(entries, cond, t.logger) {
		result.AddEntry(entries.Get(i))
	}
	return result
}

// Update applies the patch's fields to every entry matching the condition.
// Returns the number of rows modified, CodeNoAuthorized when the caller is
// not permitted, or 0 on an empty cache slot or any recovered failure.
func (t *MemoryTable) Update(ctx context.Context, key string, patch *model.Entry, cond *model.Condition, opts *model.AccessOptions) int {
	if t.metrics != nil {
		t.metrics.UpdatesTotal.Inc()
		defer t.observeOp("update", time.Now())
	}

	if !t.accessGranted(opts) {
		return errors.CodeNoAuthorized
	}

	entries, err := t.selectCache(ctx, key, true)
	if err != nil {
		t.logger.Error("Table update failed",
			zap.String("table", t.info.Name),
			zap.String("key", key),
			zap.Error(err))
		return 0
	}
	if entries.Size() == 0 {
		return 0
	}

	if err := t.checkField(patch); err != nil {
		t.logger.Error("Table update rejected",
			zap.String("table", t.info.Name),
			zap.String("key", key),
			zap.Error(err))
		return 0
	}

	indexes := matchingIndexes(entries, cond, t.logger)
	records := make([]model.Record, 0, len(indexes)*len(patch.Fields()))
	for _, i := range indexes {
		row := entries.Get(i)
		for _, f := range patch.Fields() {
			records = append(records, model.Record{Index: i, Field: f.Name, OldValue: row.GetField(f.Name)})
			row.SetField(f.Name, f.Value)
		}
	}
	if t.recorder != nil {
		t.recorder(t, model.ChangeUpdate, key, records)
	}

	entries.SetDirty(true)
	if t.metrics != nil {
		t.metrics.RowsAffected.Observe(float64(len(indexes)))
	}
	return len(indexes)
}

// Insert appends the entry under the key. Returns 1 on success,
// CodeNoAuthorized when the caller is not permitted, or 0 on any recovered
// failure. The journal record is emitted only once field validation has
// passed. With needSelect false the prior rows are not fetched from the
// remote store; callers use this when the key is known to be fresh.
func (t *MemoryTable) Insert(ctx context.Context, key string, entry *model.Entry, opts *model.AccessOptions, needSelect bool) int {
	if t.metrics != nil {
		t.metrics.InsertsTotal.Inc()
		defer t.observeOp("insert", time.Now())
	}

	if !t.accessGranted(opts) {
		return errors.CodeNoAuthorized
	}

	entries, err := t.selectCache(ctx, key, needSelect)
	if err != nil {
		t.logger.Error("Table insert failed",
			zap.String("table", t.info.Name),
			zap.String("key", key),
			zap.Error(err))
		return 0
	}

	if err := t.checkField(entry); err != nil {
		t.logger.Error("Table insert rejected",
			zap.String("table", t.info.Name),
			zap.String("key", key),
			zap.Error(err))
		return 0
	}

	if t.recorder != nil {
		// The record points at the position the new entry will occupy
		t.recorder(t, model.ChangeInsert, key, []model.Record{{Index: entries.Size()}})
	}

	if entries.Size() == 0 {
		entries.AddEntry(entry)
		t.cache.LoadOrStore(key, entries)
	} else {
		entries.AddEntry(entry)
	}
	return 1
}

// Remove marks every entry matching the condition as deleted. Returns the
// number of rows marked, CodeNoAuthorized when the caller is not permitted,
// or 0 on any recovered failure.
func (t *MemoryTable) Remove(ctx context.Context, key string, cond *model.Condition, opts *model.AccessOptions) int {
	if t.metrics != nil {
		t.metrics.RemovesTotal.Inc()
		defer t.observeOp("remove", time.Now())
	}

	if !t.accessGranted(opts) {
		return errors.CodeNoAuthorized
	}

	entries, err := t.selectCache(ctx, key, true)
	if err != nil {
		t.logger.Error("Table remove failed",
			zap.String("table", t.info.Name),
			zap.String("key", key),
			zap.Error(err))
		return 0
	}

	indexes := matchingIndexes(entries, cond, t.logger)
	records := make([]model.Record, 0, len(indexes))
	for _, i := range indexes {
		entries.Get(i).SetStatus(model.StatusDeleted)
		records = append(records, model.Record{Index: i})
	}
	if t.recorder != nil {
		t.recorder(t, model.ChangeRemove, key, records)
	}

	entries.SetDirty(true)
	if t.metrics != nil {
		t.metrics.RowsAffected.Observe(float64(len(indexes)))
	}
	return len(indexes)
}

// Hash returns the SHA-256 digest of the table's dirty content. Keys are
// visited in lexicographic order so the digest is invariant under cache
// insertion order; within an entry, fields contribute in insertion order.
// A table with no dirty content hashes to the zero digest.
func (t *MemoryTable) Hash() model.Digest {
	if t.metrics != nil {
		start := time.Now()
		defer func() { t.metrics.HashSeconds.Observe(time.Since(start).Seconds()) }()
	}

	snapshot := make(map[string]*model.Entries)
	keys := make([]string, 0)
	t.cache.Range(func(key string, entries *model.Entries) bool {
		snapshot[key] = entries
		keys = append(keys, key)
		return true
	})
	sort.Strings(keys)

	var buf []byte
	for _, key := range keys {
		entries := snapshot[key]
		if entries == nil || !entries.Dirty() {
			continue
		}
		buf = append(buf, key...)
		for i := 0; i < entries.Size(); i++ {
			entry := entries.Get(i)
			if !entry.Dirty() {
				continue
			}
			for _, f := range entry.Fields() {
				if isHashField(f.Name) {
					buf = append(buf, f.Name...)
					buf = append(buf, f.Value...)
				}
			}
		}
	}

	if len(buf) == 0 {
		return model.Digest{}
	}
	return sha256.Sum256(buf)
}

// isHashField reports whether the field contributes to the table digest:
// any field not wrapped in underscores, plus the status field
func isHashField(name string) bool {
	if name == "" {
		return false
	}
	if name == model.FieldStatus {
		return true
	}
	return name[0] != '_' && name[len(name)-1] != '_'
}

// Dump appends every live cache slot to the table data sink and reports
// whether any of them is dirty
func (t *MemoryTable) Dump(data *model.TableData) bool {
	dirty := false
	t.cache.Range(func(key string, entries *model.Entries) bool {
		if entries == nil {
			return true
		}
		data.Data[key] = entries
		if entries.Dirty() {
			dirty = true
		}
		return true
	})
	return dirty
}

// Rollback undoes one journaled change. Undoing an insert that leaves the
// bag empty writes a tombstone so the next read re-consults the remote
// store. Dirtiness is monotonic within a block and is not reverted.
func (t *MemoryTable) Rollback(change model.Change) {
	if t.metrics != nil {
		t.metrics.RollbacksTotal.Inc()
	}

	switch change.Kind {
	case model.ChangeInsert:
		entries, ok := t.cache.Load(change.Key)
		if !ok || entries == nil {
			t.logger.Error("Rollback of insert on missing cache slot",
				zap.String("table", t.info.Name),
				zap.String("key", change.Key),
				zap.Error(errors.InternalError("cache slot missing for journaled change", nil)))
			return
		}
		index := change.Records[0].Index
		if index != entries.Size()-1 {
			t.logger.Panic("Rollback of insert at non-final position",
				zap.String("table", t.info.Name),
				zap.String("key", change.Key),
				zap.Int("index", index),
				zap.Int("size", entries.Size()))
		}
		entries.RemoveEntry(index)
		if entries.Size() == 0 {
			t.cache.Store(change.Key, nil)
		}

	case model.ChangeUpdate:
		entries, ok := t.cache.Load(change.Key)
		if !ok || entries == nil {
			return
		}
		for _, r := range change.Records {
			entries.Get(r.Index).SetField(r.Field, r.OldValue)
		}

	case model.ChangeRemove:
		entries, ok := t.cache.Load(change.Key)
		if !ok || entries == nil {
			return
		}
		for _, r := range change.Records {
			entries.Get(r.Index).SetStatus(model.StatusLive)
		}

	case model.ChangeSelect:
		// reserved

	default:
	}
}

// Clear empties the key cache
func (t *MemoryTable) Clear() {
	t.cache.Clear()
}

// Empty reports whether every cache slot is a tombstone. A live slot holding
// zero entries still counts as non-empty.
func (t *MemoryTable) Empty() bool {
	empty := true
	t.cache.Range(func(key string, entries *model.Entries) bool {
		if entries != nil {
			empty = false
			return false
		}
		return true
	})
	return empty
}

// CacheSize returns the number of cache slots, tombstones included
func (t *MemoryTable) CacheSize() int {
	return t.cache.Len()
}

// accessGranted applies the authority gate for a mutating operation
func (t *MemoryTable) accessGranted(opts *model.AccessOptions) bool {
	if opts == nil || !opts.Check {
		return true
	}
	if t.authorityOK(opts.Origin) {
		return true
	}
	t.logger.Warn("Table access denied",
		zap.Error(errors.NoAuthorized(t.info.Name, string(opts.Origin))))
	if t.metrics != nil {
		t.metrics.AuthorityDenied.Inc()
	}
	return false
}

// authorityOK reports whether the origin may mutate the table. An empty
// authorized set leaves the table open to all callers.
func (t *MemoryTable) authorityOK(origin model.Address) bool {
	if len(t.info.AuthorizedAddresses) == 0 {
		return true
	}
	for _, a := range t.info.AuthorizedAddresses {
		if a == origin {
			return true
		}
	}
	return false
}

// checkField validates every field of the entry against the schema before
// any write is applied. The id field is exempt.
func (t *MemoryTable) checkField(entry *model.Entry) error {
	if err := t.validator.ValidateEntry(t.info, entry); err != nil {
		if t.metrics != nil {
			t.metrics.SchemaRejected.Inc()
		}
		return err
	}
	return nil
}

func (t *MemoryTable) observeOp(op string, start time.Time) {
	t.metrics.OpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
