package snapshot

import (
	"hash/fnv"
	"sync"

	"github.com/Hardikdarji921/esp32-datalogger/errors"
	"github.com/Hardikdarji921/esp32-datalogger/telemetry"
)

// DefaultShards is used when New is given a non-positive shard count.
const DefaultShards = 32

type shard struct {
	mu    sync.RWMutex
	items map[string]telemetry.Snapshot
}

// Store is a sharded latest-value cache keyed by device serial.
type Store struct {
	shards  []*shard
	stats   *Statistics
	metrics *storeMetrics
}

// New creates a store with the given shard count.
// Returns an error only when metrics registration fails.
func New(shardCount int, opts ...Option) (*Store, error) {
	if shardCount <= 0 {
		shardCount = DefaultShards
	}

	options := &storeOptions{}
	for _, opt := range opts {
		opt(options)
	}

	var metrics *storeMetrics
	if options.metricsReg != nil {
		var err error
		metrics, err = newStoreMetrics(options.metricsReg)
		if err != nil {
			return nil, errors.WrapTransient(err, "SnapshotStore", "New", "register metrics")
		}
	}

	shards := make([]*shard, shardCount)
	for i := range shards {
		shards[i] = &shard{items: make(map[string]telemetry.Snapshot)}
	}

	return &Store{
		shards:  shards,
		stats:   NewStatistics(),
		metrics: metrics,
	}, nil
}

func (s *Store) shardFor(serial string) *shard {
	h := fnv.New32a()
	h.Write([]byte(serial))
	return s.shards[h.Sum32()%uint32(len(s.shards))]
}

// Put replaces the snapshot for its serial. The stored value owns its
// parameter map; callers must not mutate it after Put.
func (s *Store) Put(snap telemetry.Snapshot) {
	sh := s.shardFor(snap.Serial)
	sh.mu.Lock()
	sh.items[snap.Serial] = snap
	sh.mu.Unlock()

	s.stats.Put()
	if s.metrics != nil {
		s.metrics.recordPut()
		s.metrics.setEntries(s.Len())
	}
}

// Get returns the latest snapshot for serial.
// Returns ErrSnapshotNotFound when the device has never posted.
func (s *Store) Get(serial string) (telemetry.Snapshot, error) {
	sh := s.shardFor(serial)
	sh.mu.RLock()
	snap, ok := sh.items[serial]
	sh.mu.RUnlock()

	if !ok {
		s.stats.Miss()
		if s.metrics != nil {
			s.metrics.recordMiss()
		}
		return telemetry.Snapshot{}, errors.ErrSnapshotNotFound
	}

	s.stats.Hit()
	if s.metrics != nil {
		s.metrics.recordHit()
	}
	return snap, nil
}

// List returns every stored snapshot. Order is unspecified.
func (s *Store) List() []telemetry.Snapshot {
	var out []telemetry.Snapshot
	for _, sh := range s.shards {
		sh.mu.RLock()
		for _, snap := range sh.items {
			out = append(out, snap)
		}
		sh.mu.RUnlock()
	}
	return out
}

// Delete removes the snapshot for serial, reporting whether one existed.
func (s *Store) Delete(serial string) bool {
	sh := s.shardFor(serial)
	sh.mu.Lock()
	_, ok := sh.items[serial]
	delete(sh.items, serial)
	sh.mu.Unlock()

	if ok {
		s.stats.Delete()
		if s.metrics != nil {
			s.metrics.recordDelete()
			s.metrics.setEntries(s.Len())
		}
	}
	return ok
}

// Len returns the number of stored snapshots.
func (s *Store) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.items)
		sh.mu.RUnlock()
	}
	return n
}

// Stats returns the store's always-on statistics tracker.
func (s *Store) Stats() *Statistics {
	return s.stats
}
