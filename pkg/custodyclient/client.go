// Package custodyclient talks to a remote access node over JSON/HTTP.
// Status codes map back onto the shared error taxonomy, so callers
// branch the same way against a remote node and an in-process service.
package custodyclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prividocs/privistream/internal/custody"
	"github.com/prividocs/privistream/pkg/types"
)

// DefaultTimeout bounds every custody call.
const DefaultTimeout = 30 * time.Second

// Client is an HTTP client for the access node.
type Client struct {
	baseURL string
	hc      *http.Client
	timeout time.Duration
}

// Option configures the client.
type Option func(*Client)

// WithTimeout overrides the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithHTTPClient swaps the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

// New creates a client for the access node at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		hc:      &http.Client{},
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type storeKeyPayload struct {
	VideoID      string   `json:"videoId"`
	Key          []byte   `json:"key"`
	ChunkNonces  [][]byte `json:"chunkNonces"`
	OwnerAddress string   `json:"ownerAddress"`
	Signature    []byte   `json:"signature"`
}

type requestKeyPayload struct {
	VideoID          string `json:"videoId"`
	RequesterAddress string `json:"requesterAddress"`
	Signature        []byte `json:"signature"`
}

type requestKeyReply struct {
	Key         []byte   `json:"key"`
	ChunkNonces [][]byte `json:"chunkNonces"`
}

type errorReply struct {
	Error string `json:"error"`
}

// StoreKey registers key material with the access node.
func (c *Client) StoreKey(ctx context.Context, req custody.StoreKeyRequest) error {
	payload := storeKeyPayload{
		VideoID:      req.VideoID,
		Key:          req.Key,
		ChunkNonces:  req.ChunkNonces,
		OwnerAddress: req.OwnerAddress,
		Signature:    req.Signature,
	}
	return c.post(ctx, "/keys/store", payload, nil)
}

// RequestKey fetches the sealed key material for a video.
func (c *Client) RequestKey(ctx context.Context, req custody.RequestKeyRequest) (*types.EncryptionMaterial, error) {
	payload := requestKeyPayload{
		VideoID:          req.VideoID,
		RequesterAddress: req.RequesterAddress,
		Signature:        req.Signature,
	}

	var reply requestKeyReply
	if err := c.post(ctx, "/keys/request", payload, &reply); err != nil {
		return nil, err
	}
	return &types.EncryptionMaterial{
		Key:         reply.Key,
		ChunkNonces: reply.ChunkNonces,
	}, nil
}

func (c *Client) post(ctx context.Context, path string, payload, reply any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s", types.ErrTimeout, path)
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	if reply == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(reply)
}

func statusError(resp *http.Response) error {
	var reply errorReply
	_ = json.NewDecoder(resp.Body).Decode(&reply)
	detail := reply.Error
	if detail == "" {
		detail = resp.Status
	}

	switch resp.StatusCode {
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", types.ErrValidation, detail)
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", types.ErrAuthentication, detail)
	case http.StatusForbidden:
		return fmt.Errorf("%w: %s", types.ErrAccessDenied, detail)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", types.ErrNotFound, detail)
	case http.StatusGatewayTimeout:
		return fmt.Errorf("%w: %s", types.ErrTimeout, detail)
	default:
		return fmt.Errorf("access node returned %s: %s", resp.Status, detail)
	}
}
