package postgres

import (
	"context"
	"fmt"

	"collector-node/internal/domain"
	"collector-node/internal/storage"
)

// PriceIndexStore implements storage.PriceIndexStore against the indexer's
// PostgreSQL database. The table is written by the external indexer; this
// store only reads it.
type PriceIndexStore struct {
	pool *Pool
}

// NewPriceIndexStore creates a new PriceIndexStore.
func NewPriceIndexStore(pool *Pool) *PriceIndexStore {
	return &PriceIndexStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PriceIndexStore = (*PriceIndexStore)(nil)

// LatestPrices returns the most recent row per requested pair with
// collected_at_ms >= sinceMs, ordered by pair.
func (s *PriceIndexStore) LatestPrices(ctx context.Context, pairs []string, sinceMs int64) ([]domain.PriceAttestation, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	query := `
		SELECT DISTINCT ON (pair)
			pair, price, source_count, collected_at_ms, deviation
		FROM dex_prices
		WHERE pair = ANY($1) AND collected_at_ms >= $2
		ORDER BY pair, collected_at_ms DESC
	`

	rows, err := s.pool.Query(ctx, query, pairs, sinceMs)
	if err != nil {
		return nil, fmt.Errorf("query dex prices: %w", err)
	}
	defer rows.Close()

	var out []domain.PriceAttestation
	for rows.Next() {
		var a domain.PriceAttestation
		if err := rows.Scan(&a.Pair, &a.Price, &a.SourceCount, &a.CollectedAtMs, &a.Deviation); err != nil {
			return nil, fmt.Errorf("scan dex price: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dex prices: %w", err)
	}

	return out, nil
}
