package clickhouse

import (
	"context"
	"fmt"

	"collector-node/internal/domain"
	"collector-node/internal/storage"
)

// PriceIndexStore implements storage.PriceIndexStore against the indexer's
// ClickHouse database. Read-only from the collector's side.
type PriceIndexStore struct {
	conn *Conn
}

// NewPriceIndexStore creates a new PriceIndexStore.
func NewPriceIndexStore(conn *Conn) *PriceIndexStore {
	return &PriceIndexStore{conn: conn}
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
		SELECT pair, price, source_count, collected_at_ms, deviation
		FROM dex_prices
		WHERE pair IN (?) AND collected_at_ms >= ?
		ORDER BY pair ASC, collected_at_ms DESC
		LIMIT 1 BY pair
	`

	rows, err := s.conn.Query(ctx, query, pairs, sinceMs)
	if err != nil {
		return nil, fmt.Errorf("query dex prices: %w", err)
	}
	defer rows.Close()

	var out []domain.PriceAttestation
	for rows.Next() {
		var (
			a           domain.PriceAttestation
			sourceCount int32
		)
		if err := rows.Scan(&a.Pair, &a.Price, &sourceCount, &a.CollectedAtMs, &a.Deviation); err != nil {
			return nil, fmt.Errorf("scan dex price: %w", err)
		}
		a.SourceCount = int(sourceCount)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dex prices: %w", err)
	}

	return out, nil
}
