// Package crypt implements the per-chunk authenticated encryption used
// for video assets: AES-256-GCM with a fresh random 96-bit nonce per
// chunk. Every chunk of an asset shares one key; nonces are never
// reused under that key.
package crypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

const (
	// KeySize is the symmetric key length in bytes (AES-256).
	KeySize = 32
	// NonceSize is the GCM nonce length in bytes.
	NonceSize = 12
)

// ErrAuthentication is returned when a ciphertext or nonce fails the
// GCM integrity check. Decryption fails closed: no partial plaintext is
// ever returned.
var ErrAuthentication = errors.New("chunk authentication failed")

// NewKey generates a fresh 256-bit key from the system CSPRNG.
func NewKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("generating key: %w", err)
	}
	return key, nil
}

// EncryptChunk seals one chunk under key with a freshly generated
// random nonce. The key is read-only and safe for concurrent use across
// chunks.
func EncryptChunk(plaintext, key []byte) (ciphertext, nonce []byte, err error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, nil, err
	}

	nonce = make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, fmt.Errorf("generating nonce: %w", err)
	}

	return aead.Seal(nil, nonce, plaintext, nil), nonce, nil
}

// DecryptChunk opens one chunk. Any tampering with the ciphertext or
// the nonce yields ErrAuthentication.
func DecryptChunk(ciphertext, key, nonce []byte) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != NonceSize {
		return nil, fmt.Errorf("%w: nonce must be %d bytes, got %d", ErrAuthentication, NonceSize, len(nonce))
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrAuthentication
	}
	return plaintext, nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
