// Package privistream publishes videos as encrypted content-addressed
// chunks and plays them back behind signature-gated key custody.
//
// Publishing splits the input into fixed-size chunks, seals each chunk
// with AES-GCM under a single per-video key, uploads the ciphertext to
// a content store and registers the key material with an access node.
// Playback runs the gates in order (age proof, access records, key
// request) and then streams decrypted chunks with a bounded prefetch
// window.
package privistream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/ulikunitz/xz/lzma"

	"github.com/prividocs/privistream/internal/custody"
	"github.com/prividocs/privistream/pkg/access"
	"github.com/prividocs/privistream/pkg/agegate"
	"github.com/prividocs/privistream/pkg/auth"
	"github.com/prividocs/privistream/pkg/chunker"
	"github.com/prividocs/privistream/pkg/contentstore"
	"github.com/prividocs/privistream/pkg/crypt"
	"github.com/prividocs/privistream/pkg/types"
	"github.com/prividocs/privistream/pkg/workerpool"
)

// KeyCustody registers and releases per-video key material. Both the
// in-process custody service and the HTTP client satisfy it.
type KeyCustody interface {
	StoreKey(ctx context.Context, req custody.StoreKeyRequest) error
	RequestKey(ctx context.Context, req custody.RequestKeyRequest) (*types.EncryptionMaterial, error)
}

// Pipeline ties identity, content storage and key custody together
// into the publish and playback flows.
type Pipeline struct {
	cfg      Config
	identity *auth.Identity
	store    contentstore.Store
	keys     KeyCustody
	pool     *workerpool.Pool
	cache    *chunkCache

	engine     *access.Engine
	gate       *agegate.Verifier
	userSecret []byte

	log *slog.Logger
}

// PipelineOption configures optional gates on a Pipeline.
type PipelineOption func(*Pipeline)

// WithAccessEngine routes non-owner playback through an access engine.
// Without one, playback of videos the identity does not own is denied.
func WithAccessEngine(engine *access.Engine) PipelineOption {
	return func(p *Pipeline) { p.engine = engine }
}

// WithAgeGate enables age verification for restricted videos. The
// user secret scopes nullifiers to this viewer.
func WithAgeGate(gate *agegate.Verifier, userSecret []byte) PipelineOption {
	return func(p *Pipeline) {
		p.gate = gate
		p.userSecret = userSecret
	}
}

// NewPipeline creates a pipeline for one identity.
func NewPipeline(identity *auth.Identity, store contentstore.Store, keys KeyCustody, cfg Config, opts ...PipelineOption) *Pipeline {
	cfg.setDefaults()
	p := &Pipeline{
		cfg:      cfg,
		identity: identity,
		store:    store,
		keys:     keys,
		pool:     workerpool.New(workerpool.Config{WorkerCount: cfg.Workers}),
		cache:    newChunkCache(cfg.ChunkCacheSize),
		log:      cfg.Logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Close releases the worker pool. Streams opened earlier stay usable.
func (p *Pipeline) Close() {
	p.pool.Close()
}

// PublishRequest describes one video to publish.
type PublishRequest struct {
	Title          string
	MimeType       string
	AgeRestriction types.AgeRestriction
	Content        io.Reader
}

// Publish seals the content and returns its manifest. Chunks are
// encrypted in parallel but the manifest preserves input order, so
// chunk i of the plaintext is always manifest entry i.
//
// If key registration with the access node fails the asset is still
// returned; the chunks are already uploaded and the caller can
// re-register. Until then playback will not find the key.
func (p *Pipeline) Publish(ctx context.Context, req PublishRequest) (*types.VideoAsset, error) {
	if req.Content == nil {
		return nil, fmt.Errorf("%w: missing content", types.ErrValidation)
	}

	chunks, err := chunker.Split(req.Content, p.cfg.ChunkSize)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: empty content", types.ErrValidation)
	}

	key, err := crypt.NewKey()
	if err != nil {
		return nil, err
	}

	videoID := uuid.NewString()
	refs := make([]types.ChunkRef, len(chunks))
	nonces := make([][]byte, len(chunks))

	room := p.pool.NewRoom()
	for i, chunk := range chunks {
		room.Submit(func() error {
			plaintext := chunk
			if p.cfg.Compress {
				compressed, err := compressChunk(chunk)
				if err != nil {
					return fmt.Errorf("compressing chunk %d: %w", i, err)
				}
				plaintext = compressed
			}
			ciphertext, nonce, err := crypt.EncryptChunk(plaintext, key)
			if err != nil {
				return fmt.Errorf("encrypting chunk %d: %w", i, err)
			}
			cid, err := p.store.Put(ctx, ciphertext)
			if err != nil {
				return fmt.Errorf("uploading chunk %d: %w", i, err)
			}
			refs[i] = types.ChunkRef{Index: uint32(i), ContentID: cid}
			nonces[i] = nonce
			return nil
		})
	}
	if err := room.Wait(); err != nil {
		return nil, err
	}

	asset := &types.VideoAsset{
		VideoID:        videoID,
		OwnerAddress:   p.identity.Address(),
		ChunkManifest:  refs,
		AgeRestriction: req.AgeRestriction,
		Title:          req.Title,
		MimeType:       req.MimeType,
		Compressed:     p.cfg.Compress,
		CreatedAt:      time.Now().UTC(),
	}
	if err := asset.Validate(); err != nil {
		return nil, err
	}

	storeReq := custody.StoreKeyRequest{
		VideoID:      videoID,
		Key:          key,
		ChunkNonces:  nonces,
		OwnerAddress: p.identity.Address(),
		Signature:    p.identity.Sign(auth.StoreKeyMessage(videoID)),
	}
	if err := p.keys.StoreKey(ctx, storeReq); err != nil {
		p.log.Warn("key registration failed, chunks uploaded but video is not playable",
			"videoId", videoID, "error", err)
	}

	p.log.Info("published video",
		"videoId", videoID, "chunks", len(refs), "compressed", p.cfg.Compress)
	return asset, nil
}

// Play runs the access gates for the asset and opens a decrypted
// chunk stream. The stream must be closed when playback ends.
func (p *Pipeline) Play(ctx context.Context, asset *types.VideoAsset) (*ChunkStream, error) {
	if err := asset.Validate(); err != nil {
		return nil, err
	}
	if len(asset.ChunkManifest) == 0 {
		return nil, fmt.Errorf("%w: asset has no chunks", types.ErrValidation)
	}

	if threshold := asset.AgeRestriction.Threshold(); threshold > 0 {
		if p.gate == nil {
			return nil, fmt.Errorf("%w: video is age restricted and no age verifier is configured", types.ErrAccessDenied)
		}
		result := p.gate.Verify(ctx, p.userSecret, asset.VideoID, threshold)
		if result.Status != agegate.StatusVerified {
			return nil, fmt.Errorf("%w: age verification %s: %s", types.ErrAccessDenied, result.Status, result.Message)
		}
	}

	if asset.OwnerAddress != p.identity.Address() {
		if p.engine == nil {
			return nil, fmt.Errorf("%w: no access to video %s", types.ErrAccessDenied, asset.VideoID)
		}
		state, err := p.engine.CheckAccess(ctx, asset.VideoID)
		if err != nil {
			return nil, err
		}
		if state.State != access.StateGranted {
			return nil, fmt.Errorf("%w: no access to video %s", types.ErrAccessDenied, asset.VideoID)
		}
	}

	material, err := p.keys.RequestKey(ctx, custody.RequestKeyRequest{
		VideoID:          asset.VideoID,
		RequesterAddress: p.identity.Address(),
		Signature:        p.identity.Sign(auth.RequestKeyMessage(asset.VideoID)),
	})
	if err != nil {
		return nil, err
	}
	if err := material.Validate(len(asset.ChunkManifest)); err != nil {
		return nil, err
	}

	p.log.Info("playback authorized", "videoId", asset.VideoID, "chunks", len(asset.ChunkManifest))
	return newChunkStream(asset, material, p.store, p.cache, p.cfg), nil
}

func compressChunk(chunk []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := lzma.NewWriter(&buf)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(chunk); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompressChunk(chunk []byte) ([]byte, error) {
	r, err := lzma.NewReader(bytes.NewReader(chunk))
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}
