package mapstore

import (
	"context"
	"sync"
	"time"

	"github.com/telemeet/conference-mapper/internal/allocator"
	"github.com/telemeet/conference-mapper/internal/mapstore/model"
	"github.com/telemeet/conference-mapper/internal/telemetry"
)

// InMemoryStore keeps the mapping in mutex-guarded maps. It is the
// zero-configuration default backend and the double the handler tests
// run against. Nothing survives a restart.
type InMemoryStore struct {
	mu           sync.Mutex
	alloc        *allocator.Allocator
	metrics      *telemetry.StoreMetrics
	byCode       map[int64]model.Mapping
	byConference map[string]int64
	now          func() time.Time
}

// NewInMemoryStore creates an empty in-memory store. metrics may be nil.
func NewInMemoryStore(alloc *allocator.Allocator, metrics *telemetry.StoreMetrics) *InMemoryStore {
	return &InMemoryStore{
		alloc:        alloc,
		metrics:      metrics,
		byCode:       make(map[int64]model.Mapping),
		byConference: make(map[string]int64),
		now:          time.Now,
	}
}

// FindByConference returns the existing code for the identifier or
// allocates a new one. The mutex covers the whole check-then-insert
// sequence, so concurrent callers for the same identifier cannot race
// each other into duplicate codes.
func (s *InMemoryStore) FindByConference(ctx context.Context, conference string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if code, ok := s.byConference[conference]; ok {
		s.metrics.RecordLookup(ctx, "conference", "hit")
		return code, nil
	}

	probes := int64(0)
	code, err := s.alloc.Allocate(conference, func(candidate int64) (bool, error) {
		probes++
		_, taken := s.byCode[candidate]
		return taken, nil
	})
	if err != nil {
		s.metrics.RecordLookup(ctx, "conference", "error")
		return 0, err
	}

	s.byCode[code] = model.Mapping{
		Code:       code,
		Conference: conference,
		CreatedAt:  s.now().Unix(),
	}
	s.byConference[conference] = code
	s.metrics.RecordLookup(ctx, "conference", "miss")
	s.metrics.RecordAllocation(ctx, probes)
	return code, nil
}

// FindByCode returns the identifier mapped to code.
func (s *InMemoryStore) FindByCode(ctx context.Context, code int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.byCode[code]
	if !ok {
		s.metrics.RecordLookup(ctx, "code", "miss")
		return "", model.ErrNotFound
	}
	s.metrics.RecordLookup(ctx, "code", "hit")
	return m.Conference, nil
}

// SweepExpired drops every mapping older than the retention window.
func (s *InMemoryStore) SweepExpired(ctx context.Context, now time.Time, retention time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-retention).Unix()
	var removed int64
	for code, m := range s.byCode {
		if m.CreatedAt < cutoff {
			delete(s.byCode, code)
			delete(s.byConference, m.Conference)
			removed++
		}
	}
	s.metrics.RecordSweep(ctx, removed)
	return removed, nil
}

// Close is a no-op; there is no backing connection.
func (s *InMemoryStore) Close() error {
	return nil
}
