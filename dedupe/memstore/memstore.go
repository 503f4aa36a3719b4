package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/sunder-dev/rundedupe/dedupe"
)

// StoreConfig models optional configuration, for NewStore.
type StoreConfig struct {
	// SweepInterval controls how often expired records are evicted from
	// memory in the background, if positive.
	// Defaults to 1 minute, if 0, or StoreConfig is nil.
	// A negative value disables the background sweep entirely - expired
	// records remain in memory until explicitly Invalidated, and since every
	// record with an ExpiresOn is completed, they keep being classified as
	// Completed until then.
	SweepInterval time.Duration
}

// Store is an in-memory, process-local dedupe.Persistence. Instances must be
// initialized using the NewStore factory, and Close'd once no longer needed,
// to stop the background sweep goroutine.
type Store[Id comparable, ProcessorId comparable, A any] struct {
	mu      sync.Mutex
	records map[key[Id, ProcessorId]]*dedupe.Record[Id, ProcessorId, A]

	done     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

type key[Id comparable, ProcessorId comparable] struct {
	id          Id
	processorID ProcessorId
}

// NewStore initializes a new Store, using the provided StoreConfig, which
// may be nil.
func NewStore[Id comparable, ProcessorId comparable, A any](config *StoreConfig) *Store[Id, ProcessorId, A] {
	sweepInterval := time.Minute
	if config != nil && config.SweepInterval != 0 {
		sweepInterval = config.SweepInterval
	}

	s := &Store[Id, ProcessorId, A]{
		records: map[key[Id, ProcessorId]]*dedupe.Record[Id, ProcessorId, A]{},
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}

	if sweepInterval > 0 {
		go s.sweep(sweepInterval)
	} else {
		close(s.done)
	}

	return s
}

// Close stops the background sweep goroutine. Safe to call more than once,
// and safe to call even if the sweep was disabled via StoreConfig.
func (s *Store[Id, ProcessorId, A]) Close() error {
	s.stopOnce.Do(func() { close(s.stopped) })
	<-s.done
	return nil
}

func (s *Store[Id, ProcessorId, A]) sweep(interval time.Duration) {
	defer close(s.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopped:
			return
		case now := <-ticker.C:
			s.evictExpired(now)
		}
	}
}

func (s *Store[Id, ProcessorId, A]) evictExpired(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, rec := range s.records {
		if rec.ExpiresOn != nil && !now.Before(*rec.ExpiresOn) {
			delete(s.records, k)
		}
	}
}

// Claim implements dedupe.Persistence.
func (s *Store[Id, ProcessorId, A]) Claim(_ context.Context, id Id, processorID ProcessorId, now time.Time) (*dedupe.Record[Id, ProcessorId, A], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key[Id, ProcessorId]{id: id, processorID: processorID}
	existing, ok := s.records[k]
	if !ok {
		s.records[k] = &dedupe.Record[Id, ProcessorId, A]{ID: id, ProcessorID: processorID, StartedAt: now}
		return nil, nil
	}

	cp := *existing
	return &cp, nil
}

// Complete implements dedupe.Persistence.
func (s *Store[Id, ProcessorId, A]) Complete(_ context.Context, id Id, processorID ProcessorId, now time.Time, ttl *time.Duration, value A) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key[Id, ProcessorId]{id: id, processorID: processorID}
	rec, ok := s.records[k]
	if !ok {
		rec = &dedupe.Record[Id, ProcessorId, A]{ID: id, ProcessorID: processorID, StartedAt: now}
		s.records[k] = rec
	}

	rec.CompletedAt = &now
	rec.Memoized = &value
	if ttl != nil {
		exp := now.Add(*ttl)
		rec.ExpiresOn = &exp
	}
	return nil
}

// Invalidate implements dedupe.Persistence.
func (s *Store[Id, ProcessorId, A]) Invalidate(_ context.Context, id Id, processorID ProcessorId) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key[Id, ProcessorId]{id: id, processorID: processorID})
	return nil
}
