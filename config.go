package privistream

import (
	"log/slog"
	"time"

	"github.com/prividocs/privistream/pkg/chunker"
)

const (
	// DefaultPrefetchWindow is how many chunks ahead of the playhead
	// the stream keeps in flight.
	DefaultPrefetchWindow = 5

	// DefaultChunkCacheSize bounds the ciphertext cache per stream.
	DefaultChunkCacheSize = 20

	// DefaultFetchTimeout bounds a single chunk fetch.
	DefaultFetchTimeout = 30 * time.Second
)

// Config tunes the publish and playback pipeline. The zero value is
// usable; every field falls back to a sensible default.
type Config struct {
	// ChunkSize is the plaintext chunk size in bytes.
	ChunkSize int

	// PrefetchWindow is how many chunks are fetched ahead during
	// playback.
	PrefetchWindow int

	// ChunkCacheSize bounds the per-stream ciphertext cache.
	ChunkCacheSize int

	// FetchTimeout bounds a single chunk fetch.
	FetchTimeout time.Duration

	// Compress applies lzma to each chunk before encryption.
	Compress bool

	// Workers sizes the encryption worker pool. Zero means three
	// workers per CPU.
	Workers int

	// Logger receives pipeline logs. Nil means slog.Default().
	Logger *slog.Logger
}

func (c *Config) setDefaults() {
	if c.ChunkSize <= 0 {
		c.ChunkSize = chunker.DefaultChunkSize
	}
	if c.PrefetchWindow <= 0 {
		c.PrefetchWindow = DefaultPrefetchWindow
	}
	if c.ChunkCacheSize <= 0 {
		c.ChunkCacheSize = DefaultChunkCacheSize
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = DefaultFetchTimeout
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
