package memory

import (
	"context"
	"sort"
	"sync"

	"collector-node/internal/domain"
	"collector-node/internal/storage"
)

// PriceIndexStore is an in-memory implementation of storage.PriceIndexStore
// for tests and stub runs.
type PriceIndexStore struct {
	mu   sync.RWMutex
	data map[string][]domain.PriceAttestation // keyed by pair, append order
}

// NewPriceIndexStore creates a new in-memory price index store.
func NewPriceIndexStore() *PriceIndexStore {
	return &PriceIndexStore{
		data: make(map[string][]domain.PriceAttestation),
	}
}

// Compile-time interface check.
var _ storage.PriceIndexStore = (*PriceIndexStore)(nil)

// Put records an observation, standing in for the external indexer.
func (s *PriceIndexStore) Put(_ context.Context, a domain.PriceAttestation) error {
	if a.Pair == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[a.Pair] = append(s.data[a.Pair], a)
	return nil
}

// LatestPrices returns the freshest observation per requested pair not
// older than sinceMs, ordered by pair.
func (s *PriceIndexStore) LatestPrices(_ context.Context, pairs []string, sinceMs int64) ([]domain.PriceAttestation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.PriceAttestation
	for _, pair := range pairs {
		var latest *domain.PriceAttestation
		for i := range s.data[pair] {
			a := s.data[pair][i]
			if a.CollectedAtMs < sinceMs {
				continue
			}
			if latest == nil || a.CollectedAtMs > latest.CollectedAtMs {
				latest = &a
			}
		}
		if latest != nil {
			out = append(out, *latest)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Pair < out[j].Pair })
	return out, nil
}
