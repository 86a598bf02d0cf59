// Package auth provides wallet-style identities for creators and
// viewers: an ed25519 keypair whose address is the hex-encoded public
// key, plus the canonical messages signed when talking to the key
// custody service.
package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/prividocs/privistream/pkg/types"
)

// Identity is a signing keypair. The wallet itself is an external
// collaborator; Identity is the minimal sign(message) -> signature
// capability the pipelines need.
type Identity struct {
	priv ed25519.PrivateKey
}

// NewIdentity generates a fresh identity.
func NewIdentity() (*Identity, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating identity: %w", err)
	}
	return &Identity{priv: priv}, nil
}

// IdentityFromSeed derives a deterministic identity from a 32-byte
// seed. Used by tests and by credential issuers with fixed keys.
func IdentityFromSeed(seed []byte) (*Identity, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return &Identity{priv: ed25519.NewKeyFromSeed(seed)}, nil
}

// Address returns the identity's public address, the lowercase hex
// encoding of the ed25519 public key.
func (id *Identity) Address() string {
	return hex.EncodeToString(id.priv.Public().(ed25519.PublicKey))
}

// Sign signs an ASCII message.
func (id *Identity) Sign(message string) []byte {
	return ed25519.Sign(id.priv, []byte(message))
}

// Verify checks a signature over message against the claimed address.
// Any failure, including a malformed address, is ErrAuthentication so
// callers cannot distinguish probe errors.
func Verify(address, message string, signature []byte) error {
	pub, err := hex.DecodeString(address)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: malformed address", types.ErrAuthentication)
	}
	if !ed25519.Verify(ed25519.PublicKey(pub), []byte(message), signature) {
		return fmt.Errorf("%w: signature does not match %s", types.ErrAuthentication, address)
	}
	return nil
}

// StoreKeyMessage is the canonical message a creator signs to register
// key material for a video.
func StoreKeyMessage(videoID string) string {
	return "Store Key for " + videoID
}

// RequestKeyMessage is the canonical message a viewer signs to request
// key material for a video.
func RequestKeyMessage(videoID string) string {
	return "Request Key for " + videoID
}
