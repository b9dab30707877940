package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mr-tron/base58"
)

// writeTestIdentity generates a fresh keypair and writes the identity
// document plus signing key file into dir.
func writeTestIdentity(t *testing.T, dir, nodeID string) (identityPath, keyPath string, pub ed25519.PublicKey) {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	doc := map[string]string{
		"node_id":    nodeID,
		"public_key": base58.Encode(pub),
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal identity: %v", err)
	}

	identityPath = filepath.Join(dir, "node-identity.json")
	if err := os.WriteFile(identityPath, raw, 0o600); err != nil {
		t.Fatalf("write identity: %v", err)
	}

	keyPath = filepath.Join(dir, "signing.key")
	if err := os.WriteFile(keyPath, []byte(base58.Encode(priv.Seed())+"\n"), 0o600); err != nil {
		t.Fatalf("write signing key: %v", err)
	}

	return identityPath, keyPath, pub
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	identityPath, keyPath, pub := writeTestIdentity(t, dir, "node-001")

	id, err := Load(identityPath, keyPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if id.NodeID != "node-001" {
		t.Errorf("expected node-001, got %s", id.NodeID)
	}
	if !id.PublicKey.Equal(pub) {
		t.Error("loaded public key does not match generated key")
	}
	if id.PublicKeyBase58() != base58.Encode(pub) {
		t.Error("PublicKeyBase58 mismatch")
	}
}

func TestLoad_SignatureVerifies(t *testing.T) {
	dir := t.TempDir()
	identityPath, keyPath, pub := writeTestIdentity(t, dir, "node-001")

	id, err := Load(identityPath, keyPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	msg := []byte(`{"pair":"ADA/USD","price":0.45}`)
	sig := id.Sign(msg)
	if !ed25519.Verify(pub, msg, sig) {
		t.Error("signature does not verify against identity public key")
	}
}

func TestLoad_MissingIdentityFile(t *testing.T) {
	dir := t.TempDir()
	_, keyPath, _ := writeTestIdentity(t, dir, "node-001")

	if _, err := Load(filepath.Join(dir, "missing.json"), keyPath); err == nil {
		t.Fatal("expected error for missing identity file")
	}
}

func TestLoad_MalformedIdentityFile(t *testing.T) {
	dir := t.TempDir()
	_, keyPath, _ := writeTestIdentity(t, dir, "node-001")

	badPath := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(badPath, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := Load(badPath, keyPath); err == nil {
		t.Fatal("expected error for malformed identity file")
	}
}

func TestLoad_KeyMismatch(t *testing.T) {
	dir := t.TempDir()
	identityPath, _, _ := writeTestIdentity(t, dir, "node-001")

	// Signing key from an unrelated keypair.
	otherDir := t.TempDir()
	_, otherKeyPath, _ := writeTestIdentity(t, otherDir, "node-002")

	if _, err := Load(identityPath, otherKeyPath); err == nil {
		t.Fatal("expected error for mismatched signing key")
	}
}

func TestLoad_TruncatedSeed(t *testing.T) {
	dir := t.TempDir()
	identityPath, _, _ := writeTestIdentity(t, dir, "node-001")

	shortKey := filepath.Join(dir, "short.key")
	if err := os.WriteFile(shortKey, []byte(base58.Encode([]byte("tooshort"))), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := Load(identityPath, shortKey); err == nil {
		t.Fatal("expected error for truncated seed")
	}
}
