// Package types holds the shared data model of privistream:
// video assets, chunk manifests, sealed key material and access records.
package types

import (
	"fmt"
	"time"
)

// AgeRestriction classifies content by the minimum viewer age.
// Thresholds are totally ordered; a higher restriction is a strictly
// stronger requirement.
type AgeRestriction uint8

const (
	Unrestricted AgeRestriction = iota
	Age13Plus
	Age18Plus
)

// Threshold returns the minimum age in years a viewer must prove.
func (a AgeRestriction) Threshold() int {
	switch a {
	case Age13Plus:
		return 13
	case Age18Plus:
		return 18
	default:
		return 0
	}
}

func (a AgeRestriction) String() string {
	switch a {
	case Age13Plus:
		return "13+"
	case Age18Plus:
		return "18+"
	default:
		return "unrestricted"
	}
}

// ChunkRef names one encrypted chunk of an asset. Index is 0-based and
// contiguous; manifest order is playback order.
type ChunkRef struct {
	Index     uint32 `json:"index"`
	ContentID string `json:"contentId"`
}

// VideoAsset describes one published video. The manifest is immutable
// once the chunks are uploaded; a re-upload produces a new VideoID and
// a new manifest, never an in-place mutation.
type VideoAsset struct {
	VideoID        string         `json:"videoId"`
	OwnerAddress   string         `json:"ownerAddress"`
	ChunkManifest  []ChunkRef     `json:"chunkManifest"`
	AgeRestriction AgeRestriction `json:"ageRestriction"`
	Title          string         `json:"title,omitempty"`
	MimeType       string         `json:"mimeType,omitempty"`
	Compressed     bool           `json:"compressed,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// Validate checks structural invariants of the asset.
func (v *VideoAsset) Validate() error {
	if v.VideoID == "" {
		return fmt.Errorf("%w: missing videoId", ErrValidation)
	}
	if v.OwnerAddress == "" {
		return fmt.Errorf("%w: missing ownerAddress", ErrValidation)
	}
	for i, ref := range v.ChunkManifest {
		if ref.Index != uint32(i) {
			return fmt.Errorf("%w: manifest index %d at position %d, indexes must be contiguous", ErrValidation, ref.Index, i)
		}
		if ref.ContentID == "" {
			return fmt.Errorf("%w: empty contentId at index %d", ErrValidation, i)
		}
	}
	return nil
}

// EncryptionMaterial is the sealed key material for one asset: a single
// symmetric key shared by all chunks plus one nonce per chunk.
// ChunkNonces[i] decrypts ChunkManifest[i] and nothing else; a nonce is
// never reused under the same key.
type EncryptionMaterial struct {
	Key         []byte   `json:"key"`
	ChunkNonces [][]byte `json:"chunkNonces"`
}

// Validate checks the material against the chunk count of a manifest.
func (m *EncryptionMaterial) Validate(totalChunks int) error {
	if len(m.Key) == 0 {
		return fmt.Errorf("%w: missing key", ErrValidation)
	}
	if len(m.ChunkNonces) != totalChunks {
		return fmt.Errorf("%w: %d nonces for %d chunks", ErrValidation, len(m.ChunkNonces), totalChunks)
	}
	return nil
}

// AccessRecord is proof that a user may decrypt a video until a given
// time. Records are append-only; a renewal is a new record, never a
// mutation of an old one.
type AccessRecord struct {
	UserID      string    `json:"userId"`
	VideoID     string    `json:"videoId"`
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
	IsPaid      bool      `json:"isPaid"`
}

// Valid reports whether the record grants access at the given time.
func (r AccessRecord) Valid(now time.Time) bool {
	return r.ExpiresAt.After(now)
}
