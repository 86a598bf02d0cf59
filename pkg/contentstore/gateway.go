package contentstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/prividocs/privistream/pkg/types"
)

// DefaultFetchTimeout bounds a single gateway round trip.
const DefaultFetchTimeout = 30 * time.Second

// GatewayClient fetches chunks from an HTTP content gateway and pins
// new chunks through its upload endpoint.
type GatewayClient struct {
	gatewayBase string
	uploadURL   string
	hc          *http.Client
	timeout     time.Duration
}

// GatewayOption configures a GatewayClient.
type GatewayOption func(*GatewayClient)

// WithFetchTimeout overrides the per-request timeout.
func WithFetchTimeout(d time.Duration) GatewayOption {
	return func(g *GatewayClient) { g.timeout = d }
}

// WithGatewayHTTPClient swaps the underlying HTTP client.
func WithGatewayHTTPClient(hc *http.Client) GatewayOption {
	return func(g *GatewayClient) { g.hc = hc }
}

// NewGatewayClient creates a client that reads chunks from
// {gatewayBase}/{cid} and uploads them via uploadURL.
func NewGatewayClient(gatewayBase, uploadURL string, opts ...GatewayOption) *GatewayClient {
	g := &GatewayClient{
		gatewayBase: strings.TrimRight(gatewayBase, "/"),
		uploadURL:   uploadURL,
		hc:          &http.Client{},
		timeout:     DefaultFetchTimeout,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *GatewayClient) Get(ctx context.Context, cid string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.gatewayBase+"/"+cid, nil)
	if err != nil {
		return nil, err
	}

	resp, err := g.hc.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: fetching %s", types.ErrTimeout, cid)
		}
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: content %s", types.ErrNotFound, cid)
	default:
		return nil, fmt.Errorf("gateway returned %s for %s", resp.Status, cid)
	}
	return io.ReadAll(resp.Body)
}

func (g *GatewayClient) Put(ctx context.Context, data []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.uploadURL, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := g.hc.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: uploading chunk", types.ErrTimeout)
		}
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("upload returned %s", resp.Status)
	}

	var reply struct {
		CID string `json:"cid"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return "", fmt.Errorf("decoding upload response: %w", err)
	}
	if reply.CID == "" {
		return "", errors.New("upload response missing cid")
	}
	return reply.CID, nil
}
