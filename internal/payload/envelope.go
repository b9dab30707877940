package payload

import (
	"encoding/json"
	"fmt"

	"github.com/mr-tron/base58"

	"collector-node/internal/domain"
	"collector-node/internal/identity"
)

// Envelope is the signed wire form of a CollectorMessage. The signature
// covers the canonical JSON serialization of the message so the validator
// can verify provenance before inspecting the payload.
type Envelope struct {
	Message   *domain.CollectorMessage `json:"message"`
	Signature string                   `json:"signature"`  // base58 ed25519 signature over Message JSON
	PublicKey string                   `json:"public_key"` // base58 node public key
}

// Seal signs msg with the node identity and returns the wire envelope.
func Seal(id *identity.NodeIdentity, msg *domain.CollectorMessage) (*Envelope, error) {
	canonical, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}

	return &Envelope{
		Message:   msg,
		Signature: base58.Encode(id.Sign(canonical)),
		PublicKey: id.PublicKeyBase58(),
	}, nil
}
