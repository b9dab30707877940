// Package identity loads the stable node identity produced by the external
// provisioning tool. The identity is read once at process start and treated
// as immutable for the process lifetime.
package identity

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// NodeIdentity is the immutable per-deployment identity: a stable opaque
// node ID plus the ed25519 signing material bound to it.
type NodeIdentity struct {
	NodeID     string
	PublicKey  ed25519.PublicKey
	signingKey ed25519.PrivateKey
}

// identityFile mirrors the on-disk node identity document.
type identityFile struct {
	NodeID    string `json:"node_id"`
	PublicKey string `json:"public_key"` // base58-encoded ed25519 public key
	CreatedAt string `json:"created_at,omitempty"`
	Location  string `json:"location,omitempty"`
}

// Load reads the identity document and the signing key file and verifies
// they belong together. The signing key file holds the base58-encoded
// 32-byte ed25519 seed.
func Load(identityPath, signingKeyPath string) (*NodeIdentity, error) {
	raw, err := os.ReadFile(identityPath)
	if err != nil {
		return nil, fmt.Errorf("read node identity: %w", err)
	}

	var doc identityFile
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse node identity (consider re-running node-init): %w", err)
	}
	if doc.NodeID == "" {
		return nil, fmt.Errorf("node identity %s: missing node_id", identityPath)
	}

	pub, err := decodePublicKey(doc.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("node identity %s: %w", identityPath, err)
	}

	keyRaw, err := os.ReadFile(signingKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read signing key: %w", err)
	}

	seed, err := base58.Decode(strings.TrimSpace(string(keyRaw)))
	if err != nil {
		return nil, fmt.Errorf("decode signing key: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("signing key: expected %d-byte seed, got %d bytes", ed25519.SeedSize, len(seed))
	}

	priv := ed25519.NewKeyFromSeed(seed)
	derived := priv.Public().(ed25519.PublicKey)
	if !derived.Equal(pub) {
		return nil, fmt.Errorf("signing key does not match identity public key for node %s", doc.NodeID)
	}

	return &NodeIdentity{
		NodeID:     doc.NodeID,
		PublicKey:  pub,
		signingKey: priv,
	}, nil
}

// decodePublicKey decodes a base58 public key and verifies it is a valid
// point on the edwards25519 curve.
func decodePublicKey(encoded string) (ed25519.PublicKey, error) {
	if encoded == "" {
		return nil, fmt.Errorf("missing public_key")
	}

	decoded, err := base58.Decode(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode public_key: %w", err)
	}
	if len(decoded) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("public_key: expected %d bytes, got %d", ed25519.PublicKeySize, len(decoded))
	}

	if _, err := new(edwards25519.Point).SetBytes(decoded); err != nil {
		return nil, fmt.Errorf("public_key is not a valid curve point: %w", err)
	}

	return ed25519.PublicKey(decoded), nil
}

// Sign returns the ed25519 signature over data.
func (n *NodeIdentity) Sign(data []byte) []byte {
	return ed25519.Sign(n.signingKey, data)
}

// PublicKeyBase58 returns the base58 encoding of the node public key, as
// carried on the wire envelope.
func (n *NodeIdentity) PublicKeyBase58() string {
	return base58.Encode(n.PublicKey)
}
