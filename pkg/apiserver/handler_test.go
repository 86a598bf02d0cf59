package apiserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prividocs/privistream/internal/custody"
	"github.com/prividocs/privistream/internal/keyvalstore"
	"github.com/prividocs/privistream/pkg/access"
	"github.com/prividocs/privistream/pkg/auth"
	"github.com/prividocs/privistream/pkg/crypt"
	"github.com/prividocs/privistream/pkg/types"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newTestServer(t *testing.T) (*Server, *access.Ledger, *fakeClock) {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	store, err := keyvalstore.New(keyvalstore.StoreConfig{
		Path:   t.TempDir(),
		Logger: log,
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	clock := &fakeClock{now: time.Unix(200_000, 0)}
	ledger := access.NewLedger(store, clock)
	svc := custody.New(store, ledger, log)

	srv := New(svc, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	return srv, ledger, clock
}

func postJSON(t *testing.T, srv *Server, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func signedStore(t *testing.T, owner *auth.Identity, videoID string) storeKeyRequest {
	t.Helper()

	key, err := crypt.NewKey()
	require.NoError(t, err)
	_, nonce, err := crypt.EncryptChunk([]byte("chunk"), key)
	require.NoError(t, err)

	return storeKeyRequest{
		VideoID:      videoID,
		Key:          key,
		ChunkNonces:  [][]byte{nonce},
		OwnerAddress: owner.Address(),
		Signature:    owner.Sign(auth.StoreKeyMessage(videoID)),
	}
}

func TestStoreAndRequestOverHTTP(t *testing.T) {
	srv, _, _ := newTestServer(t)

	owner, err := auth.NewIdentity()
	require.NoError(t, err)

	stored := signedStore(t, owner, "v1")
	rec := postJSON(t, srv, "/keys/store", stored)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var storeResp storeKeyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &storeResp))
	assert.True(t, storeResp.Success)

	rec = postJSON(t, srv, "/keys/request", requestKeyRequest{
		VideoID:          "v1",
		RequesterAddress: owner.Address(),
		Signature:        owner.Sign(auth.RequestKeyMessage("v1")),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var keyResp requestKeyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &keyResp))
	assert.Equal(t, stored.Key, keyResp.Key)
	assert.Equal(t, stored.ChunkNonces, keyResp.ChunkNonces)
}

func TestStoreKey_MissingFields(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := postJSON(t, srv, "/keys/store", storeKeyRequest{VideoID: "v1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Error)
}

func TestStoreKey_BadSignature(t *testing.T) {
	srv, _, _ := newTestServer(t)

	owner, err := auth.NewIdentity()
	require.NoError(t, err)
	impostor, err := auth.NewIdentity()
	require.NoError(t, err)

	req := signedStore(t, owner, "v1")
	req.Signature = impostor.Sign(auth.StoreKeyMessage("v1"))

	rec := postJSON(t, srv, "/keys/store", req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequestKey_NotFound(t *testing.T) {
	srv, _, _ := newTestServer(t)

	requester, err := auth.NewIdentity()
	require.NoError(t, err)

	rec := postJSON(t, srv, "/keys/request", requestKeyRequest{
		VideoID:          "v404",
		RequesterAddress: requester.Address(),
		Signature:        requester.Sign(auth.RequestKeyMessage("v404")),
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRequestKey_DeniedThenGranted(t *testing.T) {
	srv, ledger, clock := newTestServer(t)

	owner, err := auth.NewIdentity()
	require.NoError(t, err)
	viewer, err := auth.NewIdentity()
	require.NoError(t, err)

	rec := postJSON(t, srv, "/keys/store", signedStore(t, owner, "v1"))
	require.Equal(t, http.StatusOK, rec.Code)

	request := requestKeyRequest{
		VideoID:          "v1",
		RequesterAddress: viewer.Address(),
		Signature:        viewer.Sign(auth.RequestKeyMessage("v1")),
	}

	rec = postJSON(t, srv, "/keys/request", request)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	require.NoError(t, ledger.Append(context.Background(), types.AccessRecord{
		UserID:    viewer.Address(),
		VideoID:   "v1",
		ExpiresAt: clock.now.Add(time.Hour),
	}))

	rec = postJSON(t, srv, "/keys/request", request)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestInvalidBody(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/keys/store", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthz(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/keys/request", nil)
	req.Header.Set("Origin", "https://app.example")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
}
