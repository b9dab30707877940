package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"collector-node/internal/domain"
)

// ComputeDedupKey computes a deterministic message dedup key using SHA256.
// Formula: SHA256(node_id|collection_time_ms|pair=price,...) with the
// attestation list sorted by pair. Returns hex-encoded hash (64 characters).
//
// The key is stable across retries of the same collection cycle, letting
// the validator discard duplicate deliveries.
func ComputeDedupKey(
	nodeID string,
	collectionTimeMs int64,
	attestations []domain.PriceAttestation,
) string {
	entries := make([]string, 0, len(attestations))
	for _, a := range attestations {
		entries = append(entries, a.Pair+"="+strconv.FormatFloat(a.Price, 'f', -1, 64))
	}
	sort.Strings(entries)

	data := fmt.Sprintf("%s|%d|%s",
		nodeID,
		collectionTimeMs,
		strings.Join(entries, ","),
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
