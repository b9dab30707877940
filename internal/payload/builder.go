// Package payload builds and signs the delivery message for one
// collection cycle.
package payload

import (
	"time"

	"collector-node/internal/domain"
	"collector-node/internal/idhash"
	"collector-node/internal/identity"
)

// RoundToCadence rounds t down to the invocation cadence. Retried
// deliveries of the same cycle therefore share a collection time and, with
// an identical attestation set, an identical dedup key.
func RoundToCadence(t time.Time, cadence time.Duration) int64 {
	if cadence <= 0 {
		return t.UnixMilli()
	}
	ms := t.UnixMilli()
	step := cadence.Milliseconds()
	return ms - ms%step
}

// Build binds validated attestations to the node identity and collection
// timestamp. Pure and deterministic given its inputs.
func Build(id *identity.NodeIdentity, attestations []domain.PriceAttestation, now time.Time, cadence time.Duration) *domain.CollectorMessage {
	collectionTime := RoundToCadence(now, cadence)
	return &domain.CollectorMessage{
		NodeID:           id.NodeID,
		Attestations:     attestations,
		CollectionTimeMs: collectionTime,
		DedupKey:         idhash.ComputeDedupKey(id.NodeID, collectionTime, attestations),
	}
}
