// Package contentstore moves chunk ciphertext in and out of
// content-addressed storage. Chunks are immutable once written, so a
// content id always resolves to the same bytes.
package contentstore

import "context"

// Store reads and writes content-addressed blobs.
type Store interface {
	// Put writes data and returns its content id.
	Put(ctx context.Context, data []byte) (string, error)
	// Get resolves a content id to its bytes.
	Get(ctx context.Context, cid string) ([]byte, error)
}
