package payload

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mr-tron/base58"

	"collector-node/internal/domain"
	"collector-node/internal/identity"
)

func testIdentity(t *testing.T) *identity.NodeIdentity {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	dir := t.TempDir()
	doc, _ := json.Marshal(map[string]string{
		"node_id":    "node-test-001",
		"public_key": base58.Encode(pub),
	})
	identityPath := filepath.Join(dir, "node-identity.json")
	if err := os.WriteFile(identityPath, doc, 0o600); err != nil {
		t.Fatalf("write identity: %v", err)
	}
	keyPath := filepath.Join(dir, "signing.key")
	if err := os.WriteFile(keyPath, []byte(base58.Encode(priv.Seed())), 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}

	id, err := identity.Load(identityPath, keyPath)
	if err != nil {
		t.Fatalf("load identity: %v", err)
	}
	return id
}

func testAttestations(now time.Time) []domain.PriceAttestation {
	return []domain.PriceAttestation{
		{Pair: "BTC/USD", Price: 64000.5, SourceCount: 4, CollectedAtMs: now.UnixMilli()},
		{Pair: "ADA/USD", Price: 0.45, SourceCount: 5, CollectedAtMs: now.UnixMilli()},
	}
}

func TestRoundToCadence(t *testing.T) {
	now := time.UnixMilli(1724400037123)

	got := RoundToCadence(now, time.Minute)
	if got != 1724400000000 {
		t.Errorf("expected 1724400000000, got %d", got)
	}

	// Zero cadence leaves the timestamp untouched.
	if RoundToCadence(now, 0) != 1724400037123 {
		t.Error("zero cadence should not round")
	}
}

func TestBuild_Deterministic(t *testing.T) {
	id := testIdentity(t)
	now := time.UnixMilli(1724400037123)

	m1 := Build(id, testAttestations(now), now, time.Minute)
	// A retry 20 seconds later within the same cycle window.
	m2 := Build(id, testAttestations(now), now.Add(20*time.Second), time.Minute)

	if m1.DedupKey != m2.DedupKey {
		t.Errorf("dedup keys differ across retries of the same cycle: %s != %s", m1.DedupKey, m2.DedupKey)
	}
	if m1.CollectionTimeMs != m2.CollectionTimeMs {
		t.Errorf("collection times differ: %d != %d", m1.CollectionTimeMs, m2.CollectionTimeMs)
	}
}

func TestBuild_BindsIdentityAndTime(t *testing.T) {
	id := testIdentity(t)
	now := time.UnixMilli(1724400037123)

	msg := Build(id, testAttestations(now), now, time.Minute)

	if msg.NodeID != "node-test-001" {
		t.Errorf("expected node-test-001, got %s", msg.NodeID)
	}
	if msg.CollectionTimeMs != 1724400000000 {
		t.Errorf("collection time not rounded to cadence: %d", msg.CollectionTimeMs)
	}
	if len(msg.Attestations) != 2 {
		t.Fatalf("expected 2 attestations, got %d", len(msg.Attestations))
	}

	// A different cycle produces a different key.
	next := Build(id, testAttestations(now), now.Add(time.Minute), time.Minute)
	if next.DedupKey == msg.DedupKey {
		t.Error("distinct cycles should produce distinct dedup keys")
	}
}

func TestSeal_SignatureVerifies(t *testing.T) {
	id := testIdentity(t)
	now := time.UnixMilli(1724400037123)
	msg := Build(id, testAttestations(now), now, time.Minute)

	env, err := Seal(id, msg)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	canonical, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	sig, err := base58.Decode(env.Signature)
	if err != nil {
		t.Fatalf("decode signature: %v", err)
	}
	pub, err := base58.Decode(env.PublicKey)
	if err != nil {
		t.Fatalf("decode public key: %v", err)
	}

	if !ed25519.Verify(ed25519.PublicKey(pub), canonical, sig) {
		t.Error("envelope signature does not verify")
	}
}
