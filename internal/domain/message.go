package domain

// CollectorMessage is the delivery payload for one collection cycle.
// DedupKey is a deterministic hash of (node_id, collection_time,
// attestation set) so the validator can discard duplicate deliveries of
// the same cycle without extra coordination.
type CollectorMessage struct {
	NodeID           string             `json:"node_id"`
	Attestations     []PriceAttestation `json:"attestations"`
	CollectionTimeMs int64              `json:"collection_time_ms"`
	DedupKey         string             `json:"dedup_key"`
}
