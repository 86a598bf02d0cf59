package custodyclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prividocs/privistream/internal/custody"
	"github.com/prividocs/privistream/internal/keyvalstore"
	"github.com/prividocs/privistream/pkg/apiserver"
	"github.com/prividocs/privistream/pkg/auth"
	"github.com/prividocs/privistream/pkg/crypt"
	"github.com/prividocs/privistream/pkg/types"
)

func newTestNode(t *testing.T) *httptest.Server {
	t.Helper()

	store, err := keyvalstore.New(keyvalstore.StoreConfig{
		Path: filepath.Join(t.TempDir(), "kv"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	svc := custody.New(store, nil, nil)
	srv := httptest.NewServer(apiserver.New(svc))
	t.Cleanup(srv.Close)
	return srv
}

func signedStore(t *testing.T, id *auth.Identity, videoID string, nonces int) custody.StoreKeyRequest {
	t.Helper()

	key, err := crypt.NewKey()
	require.NoError(t, err)

	chunkNonces := make([][]byte, nonces)
	for i := range chunkNonces {
		chunkNonces[i] = make([]byte, crypt.NonceSize)
		chunkNonces[i][0] = byte(i + 1)
	}
	return custody.StoreKeyRequest{
		VideoID:      videoID,
		Key:          key,
		ChunkNonces:  chunkNonces,
		OwnerAddress: id.Address(),
		Signature:    id.Sign(auth.StoreKeyMessage(videoID)),
	}
}

func TestClientStoreAndRequest(t *testing.T) {
	srv := newTestNode(t)
	client := New(srv.URL)

	owner, err := auth.NewIdentity()
	require.NoError(t, err)

	stored := signedStore(t, owner, "vid-1", 3)
	require.NoError(t, client.StoreKey(context.Background(), stored))

	got, err := client.RequestKey(context.Background(), custody.RequestKeyRequest{
		VideoID:          "vid-1",
		RequesterAddress: owner.Address(),
		Signature:        owner.Sign(auth.RequestKeyMessage("vid-1")),
	})
	require.NoError(t, err)
	assert.Equal(t, stored.Key, got.Key)
	assert.Equal(t, stored.ChunkNonces, got.ChunkNonces)
}

func TestClientErrorMapping(t *testing.T) {
	srv := newTestNode(t)
	client := New(srv.URL)

	owner, err := auth.NewIdentity()
	require.NoError(t, err)
	stranger, err := auth.NewIdentity()
	require.NoError(t, err)

	// Missing fields come back as a validation failure.
	err = client.StoreKey(context.Background(), custody.StoreKeyRequest{VideoID: "vid-1"})
	assert.ErrorIs(t, err, types.ErrValidation)

	// A forged signature is an authentication failure.
	forged := signedStore(t, owner, "vid-1", 1)
	forged.Signature = stranger.Sign(auth.StoreKeyMessage("vid-1"))
	err = client.StoreKey(context.Background(), forged)
	assert.ErrorIs(t, err, types.ErrAuthentication)

	// Unknown videos are not found.
	_, err = client.RequestKey(context.Background(), custody.RequestKeyRequest{
		VideoID:          "missing",
		RequesterAddress: owner.Address(),
		Signature:        owner.Sign(auth.RequestKeyMessage("missing")),
	})
	assert.ErrorIs(t, err, types.ErrNotFound)

	// Non-owners are rejected when no access policy grants them entry.
	require.NoError(t, client.StoreKey(context.Background(), signedStore(t, owner, "vid-2", 1)))
	_, err = client.RequestKey(context.Background(), custody.RequestKeyRequest{
		VideoID:          "vid-2",
		RequesterAddress: stranger.Address(),
		Signature:        stranger.Sign(auth.RequestKeyMessage("vid-2")),
	})
	assert.ErrorIs(t, err, types.ErrAccessDenied)
}

func TestClientTimeout(t *testing.T) {
	stall := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server can detect the client's timeout
		// disconnect and cancel the request context; otherwise this
		// handler never returns and Close deadlocks.
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer stall.Close()

	client := New(stall.URL, WithTimeout(50*time.Millisecond))

	owner, err := auth.NewIdentity()
	require.NoError(t, err)

	_, err = client.RequestKey(context.Background(), custody.RequestKeyRequest{
		VideoID:          "vid-1",
		RequesterAddress: owner.Address(),
		Signature:        owner.Sign(auth.RequestKeyMessage("vid-1")),
	})
	assert.ErrorIs(t, err, types.ErrTimeout)
}
