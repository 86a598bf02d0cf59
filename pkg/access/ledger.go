package access

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/prividocs/privistream/internal/keyvalstore"
	"github.com/prividocs/privistream/pkg/auth"
	"github.com/prividocs/privistream/pkg/types"
)

// PricingTier is one purchasable access tier.
type PricingTier struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Price        float64 `json:"price"`
	DurationDays int     `json:"durationDays"`
}

// DefaultTiers mirrors the catalog of the payment surface. The free
// tier grants 24 hours.
var DefaultTiers = []PricingTier{
	{ID: "free", Name: "Free Access", Price: 0, DurationDays: 0},
	{ID: "basic", Name: "Basic Access", Price: 2.99, DurationDays: 7},
	{ID: "pro", Name: "Pro Access", Price: 9.99, DurationDays: 90},
	{ID: "lifetime", Name: "Lifetime Access", Price: 29.99, DurationDays: 36500},
}

// PaymentTransaction is the confirmation of one simulated purchase.
type PaymentTransaction struct {
	ID             string    `json:"id"`
	VideoID        string    `json:"videoId"`
	BuyerAddress   string    `json:"buyerAddress"`
	CreatorAddress string    `json:"creatorAddress"`
	Amount         float64   `json:"amount"`
	Status         string    `json:"status"`
	TxHash         string    `json:"txHash"`
	Timestamp      time.Time `json:"timestamp"`
	AccessToken    string    `json:"accessToken"`
	ExpiresAt      time.Time `json:"expiresAt"`
}

// publishedVideo is the append-only publish fact for one asset.
type publishedVideo struct {
	Asset types.VideoAsset `json:"asset"`
	Price float64          `json:"price"`
	TxID  string           `json:"txId"`
}

// Ledger is the durable, append-only store of access records and
// publish facts. It stands in for the on-chain fact store: records are
// created by payments, never mutated, and expire only by time.
type Ledger struct {
	store *keyvalstore.KeyValStore
	clock auth.Clock
	tiers []PricingTier

	// serializes the read-modify-write of one pair's record list
	mu sync.Mutex
}

// NewLedger creates a ledger over the given store.
func NewLedger(store *keyvalstore.KeyValStore, clock auth.Clock) *Ledger {
	if clock == nil {
		clock = auth.RealClock{}
	}
	return &Ledger{store: store, clock: clock, tiers: DefaultTiers}
}

// Tiers returns the pricing catalog.
func (l *Ledger) Tiers() []PricingTier { return l.tiers }

// Tier looks a tier up by id.
func (l *Ledger) Tier(id string) (PricingTier, bool) {
	for _, t := range l.tiers {
		if t.ID == id {
			return t, true
		}
	}
	return PricingTier{}, false
}

func recordsKey(userID, videoID string) []byte {
	return []byte("access/" + userID + "/" + videoID)
}

func videoKey(videoID string) []byte {
	return []byte("video/" + videoID)
}

// Records returns all stacked access records for a pair, oldest first.
func (l *Ledger) Records(ctx context.Context, userID, videoID string) ([]types.AccessRecord, error) {
	data, err := l.store.Read(recordsKey(userID, videoID))
	if err != nil {
		if errors.Is(err, keyvalstore.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var records []types.AccessRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decoding access records for %s/%s: %w", userID, videoID, err)
	}
	return records, nil
}

// HasValidAccess reports whether any record of the pair is unexpired.
// This is the policy check the custody service consults for non-owner
// key requests.
func (l *Ledger) HasValidAccess(ctx context.Context, userID, videoID string) (bool, error) {
	records, err := l.Records(ctx, userID, videoID)
	if err != nil {
		return false, err
	}
	now := l.clock.Now()
	for _, r := range records {
		if r.Valid(now) {
			return true, nil
		}
	}
	return false, nil
}

// Append adds one record to the pair's stack.
func (l *Ledger) Append(ctx context.Context, record types.AccessRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.Records(ctx, record.UserID, record.VideoID)
	if err != nil {
		return err
	}
	records = append(records, record)

	data, err := json.Marshal(records)
	if err != nil {
		return err
	}
	return l.store.Write(recordsKey(record.UserID, record.VideoID), data)
}

// ProcessPayment simulates the buyAccess contract call: it confirms a
// transaction for the chosen tier and appends the resulting access
// record. The free tier grants 24 hours and is not marked paid.
func (l *Ledger) ProcessPayment(ctx context.Context, videoID, buyerAddress, creatorAddress, tierID string) (*PaymentTransaction, error) {
	tier, ok := l.Tier(tierID)
	if !ok {
		return nil, fmt.Errorf("%w: unknown pricing tier %q", types.ErrValidation, tierID)
	}

	now := l.clock.Now()
	duration := time.Duration(tier.DurationDays) * 24 * time.Hour
	if duration == 0 {
		duration = 24 * time.Hour
	}

	tx := &PaymentTransaction{
		ID:             uuid.NewString(),
		VideoID:        videoID,
		BuyerAddress:   buyerAddress,
		CreatorAddress: creatorAddress,
		Amount:         tier.Price,
		Status:         "confirmed",
		TxHash:         "0x" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		Timestamp:      now,
		AccessToken:    uuid.NewString(),
		ExpiresAt:      now.Add(duration),
	}

	record := types.AccessRecord{
		UserID:      buyerAddress,
		VideoID:     videoID,
		AccessToken: tx.AccessToken,
		ExpiresAt:   tx.ExpiresAt,
		IsPaid:      tier.Price > 0,
	}
	if err := l.Append(ctx, record); err != nil {
		return nil, fmt.Errorf("recording access: %w", err)
	}

	return tx, nil
}

// PublishVideo records the publish fact for an asset. Manifests are
// immutable: republishing an existing videoId is rejected.
func (l *Ledger) PublishVideo(ctx context.Context, asset *types.VideoAsset, price float64) (string, error) {
	if err := asset.Validate(); err != nil {
		return "", err
	}

	exists, err := l.store.Has(videoKey(asset.VideoID))
	if err != nil {
		return "", err
	}
	if exists {
		return "", fmt.Errorf("%w: video %s already published", types.ErrValidation, asset.VideoID)
	}

	fact := publishedVideo{
		Asset: *asset,
		Price: price,
		TxID:  "0x" + strings.ReplaceAll(uuid.NewString(), "-", ""),
	}
	data, err := json.Marshal(fact)
	if err != nil {
		return "", err
	}
	if err := l.store.Write(videoKey(asset.VideoID), data); err != nil {
		return "", err
	}
	return fact.TxID, nil
}

// Video returns the published asset and its price.
func (l *Ledger) Video(ctx context.Context, videoID string) (*types.VideoAsset, float64, error) {
	data, err := l.store.Read(videoKey(videoID))
	if err != nil {
		if errors.Is(err, keyvalstore.ErrKeyNotFound) {
			return nil, 0, fmt.Errorf("%w: video %s", types.ErrNotFound, videoID)
		}
		return nil, 0, err
	}

	var fact publishedVideo
	if err := json.Unmarshal(data, &fact); err != nil {
		return nil, 0, fmt.Errorf("decoding publish fact for %s: %w", videoID, err)
	}
	return &fact.Asset, fact.Price, nil
}
