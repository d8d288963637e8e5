package services

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// StoredFile is a processed output kept in memory for download.
type StoredFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// Batch is the retained result of one upload: the per-file outcomes, the
// captured log text and the output files.
type Batch struct {
	ID        string
	CreatedAt time.Time
	Files     []FileOutcome
	Log       string
	Outputs   map[string]StoredFile
}

// ResultStore keeps upload batches in memory until their TTL passes or the
// store grows beyond maxBatches, whichever comes first. Oldest batches are
// evicted first.
type ResultStore struct {
	mu         sync.RWMutex
	batches    map[string]*Batch
	ttl        time.Duration
	maxBatches int
	now        func() time.Time
}

// NewResultStore creates an empty store. maxBatches <= 0 means unbounded.
func NewResultStore(ttl time.Duration, maxBatches int) *ResultStore {
	return &ResultStore{
		batches:    make(map[string]*Batch),
		ttl:        ttl,
		maxBatches: maxBatches,
		now:        time.Now,
	}
}

// Put stores b, replacing any batch with the same ID.
func (s *ResultStore) Put(b *Batch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b.CreatedAt.IsZero() {
		b.CreatedAt = s.now()
	}
	s.batches[b.ID] = b
	s.evictLocked()
}

// Get returns the batch with id, or ErrBatchNotFound when absent or expired.
func (s *ResultStore) Get(id string) (*Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.batches[id]
	if !ok || s.expired(b) {
		return nil, ErrBatchNotFound
	}
	return b, nil
}

// GetFile returns one output of a batch.
func (s *ResultStore) GetFile(batchID, name string) (StoredFile, error) {
	b, err := s.Get(batchID)
	if err != nil {
		return StoredFile{}, err
	}
	f, ok := b.Outputs[name]
	if !ok {
		return StoredFile{}, ErrFileNotFound
	}
	return f, nil
}

// Len returns the number of retained batches, expired ones included until
// the next cleanup.
func (s *ResultStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.batches)
}

// Cleanup drops expired batches and returns how many were removed.
func (s *ResultStore) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, b := range s.batches {
		if s.expired(b) {
			delete(s.batches, id)
			removed++
		}
	}
	return removed
}

// Run calls Cleanup every interval until ctx is done.
func (s *ResultStore) Run(ctx context.Context, interval time.Duration, logger *slog.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := s.Cleanup(); n > 0 && logger != nil {
				logger.Debug("expired upload batches removed", slog.Int("count", n))
			}
		}
	}
}

func (s *ResultStore) expired(b *Batch) bool {
	return s.ttl > 0 && s.now().Sub(b.CreatedAt) > s.ttl
}

func (s *ResultStore) evictLocked() {
	if s.maxBatches <= 0 || len(s.batches) <= s.maxBatches {
		return
	}
	ordered := make([]*Batch, 0, len(s.batches))
	for _, b := range s.batches {
		ordered = append(ordered, b)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})
	for _, b := range ordered[:len(ordered)-s.maxBatches] {
		delete(s.batches, b.ID)
	}
}
