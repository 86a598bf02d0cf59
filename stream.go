package privistream

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/prividocs/privistream/pkg/contentstore"
	"github.com/prividocs/privistream/pkg/crypt"
	"github.com/prividocs/privistream/pkg/types"
)

type chunkResult struct {
	data []byte
	err  error
}

// ChunkStream delivers decrypted chunks in manifest order. Up to the
// configured prefetch window of chunks are fetched and decrypted
// concurrently ahead of the playhead; Next still returns them strictly
// in order. The ciphertext cache is shared across every stream the
// pipeline opens, so replaying an asset skips fetches for chunks still
// resident.
type ChunkStream struct {
	asset    *types.VideoAsset
	material *types.EncryptionMaterial
	store    contentstore.Store
	cfg      Config
	cache    *chunkCache

	pending chan chan chunkResult
	cancel  context.CancelFunc

	closeOnce sync.Once
}

func newChunkStream(asset *types.VideoAsset, material *types.EncryptionMaterial, store contentstore.Store, cache *chunkCache, cfg Config) *ChunkStream {
	ctx, cancel := context.WithCancel(context.Background())
	s := &ChunkStream{
		asset:    asset,
		material: material,
		store:    store,
		cfg:      cfg,
		cache:    cache,
		pending:  make(chan chan chunkResult, cfg.PrefetchWindow),
		cancel:   cancel,
	}
	go s.prefetch(ctx)
	return s
}

// prefetch launches up to PrefetchWindow concurrent chunk fetches and
// queues their result slots in manifest order.
func (s *ChunkStream) prefetch(ctx context.Context) {
	defer close(s.pending)

	sem := make(chan struct{}, s.cfg.PrefetchWindow)
	for i, ref := range s.asset.ChunkManifest {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			return
		}

		slot := make(chan chunkResult, 1)
		select {
		case s.pending <- slot:
		case <-ctx.Done():
			return
		}

		go func(index int, ref types.ChunkRef) {
			defer func() { <-sem }()
			data, err := s.fetchChunk(ctx, index, ref)
			slot <- chunkResult{data: data, err: err}
		}(i, ref)
	}
}

func (s *ChunkStream) fetchChunk(ctx context.Context, index int, ref types.ChunkRef) ([]byte, error) {
	ciphertext, ok := s.cache.get(ref.ContentID)
	if !ok {
		fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
		defer cancel()

		var err error
		ciphertext, err = s.store.Get(fetchCtx, ref.ContentID)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", index, err)
		}
		s.cache.put(ref.ContentID, ciphertext)
	}

	plaintext, err := crypt.DecryptChunk(ciphertext, s.material.Key, s.material.ChunkNonces[index])
	if err != nil {
		return nil, fmt.Errorf("chunk %d: %w", index, err)
	}
	if s.asset.Compressed {
		plaintext, err = decompressChunk(plaintext)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", index, err)
		}
	}
	return plaintext, nil
}

// Next returns the next decrypted chunk. It returns io.EOF after the
// final chunk, and the fetch or decrypt error if a chunk fails.
func (s *ChunkStream) Next() ([]byte, error) {
	slot, ok := <-s.pending
	if !ok {
		return nil, io.EOF
	}
	res := <-slot
	return res.data, res.err
}

// ReadAll drains the stream into one buffer. Intended for small
// assets and tests.
func (s *ChunkStream) ReadAll() ([]byte, error) {
	var out []byte
	for {
		chunk, err := s.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, chunk...)
	}
}

// Chunks reports the total chunk count of the asset.
func (s *ChunkStream) Chunks() int {
	return len(s.asset.ChunkManifest)
}

// Close stops prefetching and releases in-flight fetches. Next returns
// io.EOF or a cancellation error afterwards.
func (s *ChunkStream) Close() {
	s.closeOnce.Do(s.cancel)
}

// chunkCache is a FIFO-evicting ciphertext cache keyed by content id,
// scoped to a playback session (one per Pipeline).
type chunkCache struct {
	mu    sync.Mutex
	max   int
	order []string
	data  map[string][]byte
}

func newChunkCache(max int) *chunkCache {
	return &chunkCache{
		max:  max,
		data: make(map[string][]byte, max),
	}
}

func (c *chunkCache) get(cid string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.data[cid]
	return data, ok
}

func (c *chunkCache) put(cid string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.data[cid]; ok {
		return
	}
	if len(c.order) >= c.max {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.data, oldest)
	}
	c.order = append(c.order, cid)
	c.data[cid] = data
}
