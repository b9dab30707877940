// Package storage defines read access to the price-index database
// maintained by the external DEX indexer.
package storage

import (
	"context"

	"collector-node/internal/domain"
)

// PriceIndexStore reads recent DEX pair prices from the indexer database.
// The index is owned by the external indexer process; this core only
// queries it.
type PriceIndexStore interface {
	// LatestPrices returns the most recent observation per requested pair
	// with collected_at_ms >= sinceMs, ordered by pair. Pairs with no
	// fresh enough row are omitted; callers treat omissions as gaps, not
	// errors.
	LatestPrices(ctx context.Context, pairs []string, sinceMs int64) ([]domain.PriceAttestation, error)
}
