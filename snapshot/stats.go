package snapshot

import "sync/atomic"

// Statistics tracks store activity with atomic counters.
type Statistics struct {
	hits    int64
	misses  int64
	puts    int64
	deletes int64
}

// NewStatistics creates a zeroed statistics tracker.
func NewStatistics() *Statistics {
	return &Statistics{}
}

// Hit records a successful lookup.
func (s *Statistics) Hit() { atomic.AddInt64(&s.hits, 1) }

// Miss records a lookup for an unknown serial.
func (s *Statistics) Miss() { atomic.AddInt64(&s.misses, 1) }

// Put records a snapshot write.
func (s *Statistics) Put() { atomic.AddInt64(&s.puts, 1) }

// Delete records a snapshot removal.
func (s *Statistics) Delete() { atomic.AddInt64(&s.deletes, 1) }

// Hits returns the total number of successful lookups.
func (s *Statistics) Hits() int64 { return atomic.LoadInt64(&s.hits) }

// Misses returns the total number of failed lookups.
func (s *Statistics) Misses() int64 { return atomic.LoadInt64(&s.misses) }

// Puts returns the total number of writes.
func (s *Statistics) Puts() int64 { return atomic.LoadInt64(&s.puts) }

// Deletes returns the total number of removals.
func (s *Statistics) Deletes() int64 { return atomic.LoadInt64(&s.deletes) }
