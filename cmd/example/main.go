// Command example walks the full publish and playback flow in process:
// an owner publishes an encrypted video, a viewer is denied, buys
// access through the ledger and then streams the video back.
package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prividocs/privistream"
	"github.com/prividocs/privistream/internal/custody"
	"github.com/prividocs/privistream/internal/keyvalstore"
	"github.com/prividocs/privistream/pkg/access"
	"github.com/prividocs/privistream/pkg/auth"
	"github.com/prividocs/privistream/pkg/contentstore"
	"github.com/prividocs/privistream/pkg/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()
	log := logging.New("info")

	dir, err := os.MkdirTemp("", "privistream-example")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	store, err := keyvalstore.New(keyvalstore.StoreConfig{Path: filepath.Join(dir, "kv")})
	if err != nil {
		return err
	}
	defer store.Close()

	ledger := access.NewLedger(store, nil)
	keys := custody.New(store, ledger, nil)
	chunks := contentstore.NewMemoryStore()

	owner, err := auth.NewIdentity()
	if err != nil {
		return err
	}
	publisher := privistream.NewPipeline(owner, chunks, keys, privistream.Config{
		ChunkSize: 64 * 1024,
		Logger:    log,
	})
	defer publisher.Close()

	video := bytes.Repeat([]byte("frame data "), 20000)
	asset, err := publisher.Publish(ctx, privistream.PublishRequest{
		Title:    "launch trailer",
		MimeType: "video/mp4",
		Content:  bytes.NewReader(video),
	})
	if err != nil {
		return err
	}
	if _, err := ledger.PublishVideo(ctx, asset, 2.99); err != nil {
		return err
	}
	fmt.Printf("published %q as %s (%d chunks)\n", asset.Title, asset.VideoID, len(asset.ChunkManifest))

	viewerID, err := auth.NewIdentity()
	if err != nil {
		return err
	}
	engine := access.NewEngine(viewerID.Address(), ledger, nil)
	viewer := privistream.NewPipeline(viewerID, chunks, keys, privistream.Config{
		Logger: log,
	}, privistream.WithAccessEngine(engine))
	defer viewer.Close()

	if _, err := viewer.Play(ctx, asset); err != nil {
		fmt.Println("viewer before purchase:", err)
	}

	tx, err := ledger.ProcessPayment(ctx, asset.VideoID, viewerID.Address(), owner.Address(), "basic")
	if err != nil {
		return err
	}
	fmt.Printf("paid %.2f, access until %s\n", tx.Amount, tx.ExpiresAt.Format("2006-01-02 15:04"))

	stream, err := viewer.Play(ctx, asset)
	if err != nil {
		return err
	}
	defer stream.Close()

	played, err := stream.ReadAll()
	if err != nil {
		return err
	}
	fmt.Printf("streamed %d bytes, matches original: %t\n", len(played), bytes.Equal(played, video))
	return nil
}
