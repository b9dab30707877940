package idhash

import (
	"testing"

	"collector-node/internal/domain"
)

func testAttestations() []domain.PriceAttestation {
	return []domain.PriceAttestation{
		{Pair: "ADA/USD", Price: 0.45, SourceCount: 5, CollectedAtMs: 1724400000000},
		{Pair: "BTC/USD", Price: 64000.5, SourceCount: 4, CollectedAtMs: 1724400000500},
	}
}

func TestComputeDedupKey(t *testing.T) {
	got := ComputeDedupKey("node-001", 1724400000000, testAttestations())

	if len(got) != 64 {
		t.Errorf("ComputeDedupKey() length = %d, want 64", len(got))
	}

	// Verify determinism: same inputs should produce same output.
	got2 := ComputeDedupKey("node-001", 1724400000000, testAttestations())
	if got != got2 {
		t.Errorf("ComputeDedupKey() not deterministic: %s != %s", got, got2)
	}
}

func TestComputeDedupKey_OrderIndependent(t *testing.T) {
	atts := testAttestations()
	reversed := []domain.PriceAttestation{atts[1], atts[0]}

	if ComputeDedupKey("node-001", 1724400000000, atts) != ComputeDedupKey("node-001", 1724400000000, reversed) {
		t.Error("dedup key should not depend on attestation order")
	}
}

func TestComputeDedupKey_InputSensitivity(t *testing.T) {
	base := ComputeDedupKey("node-001", 1724400000000, testAttestations())

	if ComputeDedupKey("node-002", 1724400000000, testAttestations()) == base {
		t.Error("different node_id should produce different key")
	}
	if ComputeDedupKey("node-001", 1724400060000, testAttestations()) == base {
		t.Error("different collection time should produce different key")
	}

	changed := testAttestations()
	changed[0].Price = 0.46
	if ComputeDedupKey("node-001", 1724400000000, changed) == base {
		t.Error("different price should produce different key")
	}
}

func TestComputeDedupKey_CollectedAtNotIncluded(t *testing.T) {
	// Per-record collection timestamps vary between retries of a cycle that
	// happens to re-collect; the key binds only the rounded cycle time and
	// the pair/price set.
	atts := testAttestations()
	shifted := testAttestations()
	shifted[0].CollectedAtMs += 250

	if ComputeDedupKey("node-001", 1724400000000, atts) != ComputeDedupKey("node-001", 1724400000000, shifted) {
		t.Error("per-record timestamps should not affect the dedup key")
	}
}
