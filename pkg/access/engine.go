// Package access tracks, per (user, video) pair, whether access is
// granted, paid, and when it expires. The engine is a client-side cache
// over an authoritative record source; the ledger in this package is
// the durable source used by the access node.
package access

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prividocs/privistream/pkg/auth"
	"github.com/prividocs/privistream/pkg/types"
)

// State is the resolution state of one (user, video) pair.
type State uint8

const (
	StateUnknown State = iota
	StateChecking
	StateGranted
	StateDenied
)

func (s State) String() string {
	switch s {
	case StateChecking:
		return "checking"
	case StateGranted:
		return "granted"
	case StateDenied:
		return "denied"
	default:
		return "unknown"
	}
}

// AccessState is the resolved access for one video.
type AccessState struct {
	State     State
	IsPaid    bool
	ExpiresAt time.Time
	Tier      string
}

// valid reports whether a granted state is still trustworthy at now.
func (a AccessState) valid(now time.Time) bool {
	return a.State == StateGranted && a.ExpiresAt.After(now)
}

// RecordSource is the authoritative store of access records, typically
// the ledger behind the access node.
type RecordSource interface {
	Records(ctx context.Context, userID, videoID string) ([]types.AccessRecord, error)
}

// Engine resolves and caches access state for one user. The cache is
// process-lifetime only; a cached grant is never trusted past its
// expiry, every read path re-validates against the clock.
type Engine struct {
	userID string
	src    RecordSource
	clock  auth.Clock

	mu    sync.Mutex
	cache map[string]AccessState
}

// NewEngine creates an engine for one user session.
func NewEngine(userID string, src RecordSource, clock auth.Clock) *Engine {
	if clock == nil {
		clock = auth.RealClock{}
	}
	return &Engine{
		userID: userID,
		src:    src,
		clock:  clock,
		cache:  make(map[string]AccessState),
	}
}

// UserID returns the user this engine resolves access for.
func (e *Engine) UserID() string { return e.userID }

// CheckAccess returns the current access state for a video. A cached
// unexpired grant is returned as-is; anything else re-queries the
// record source. Source errors fail closed.
func (e *Engine) CheckAccess(ctx context.Context, videoID string) (AccessState, error) {
	now := e.clock.Now()

	e.mu.Lock()
	if cached, ok := e.cache[videoID]; ok && cached.valid(now) {
		e.mu.Unlock()
		return cached, nil
	}
	e.cache[videoID] = AccessState{State: StateChecking}
	e.mu.Unlock()

	records, err := e.src.Records(ctx, e.userID, videoID)
	if err != nil {
		e.mu.Lock()
		delete(e.cache, videoID)
		e.mu.Unlock()
		return AccessState{State: StateDenied}, fmt.Errorf("querying access records: %w", err)
	}

	state := resolve(records, now)

	e.mu.Lock()
	e.cache[videoID] = state
	e.mu.Unlock()
	return state, nil
}

// resolve derives an AccessState from the stacked records of a pair.
// The record with the latest expiry decides; access is granted iff at
// least one record is unexpired.
func resolve(records []types.AccessRecord, now time.Time) AccessState {
	var best *types.AccessRecord
	for i := range records {
		if best == nil || records[i].ExpiresAt.After(best.ExpiresAt) {
			best = &records[i]
		}
	}
	if best == nil || !best.Valid(now) {
		return AccessState{State: StateDenied}
	}
	return AccessState{
		State:     StateGranted,
		IsPaid:    best.IsPaid,
		ExpiresAt: best.ExpiresAt,
	}
}

// GrantAccess records an optimistic local grant after a confirmed
// payment, unblocking playback without a second round-trip. The next
// CheckAccess past expiry reconciles it against the record source.
func (e *Engine) GrantAccess(videoID, tier string, expiresAt time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache[videoID] = AccessState{
		State:     StateGranted,
		IsPaid:    tier != "" && tier != "free",
		ExpiresAt: expiresAt,
		Tier:      tier,
	}
}

// RevokeAccess drops the cached state for a video.
func (e *Engine) RevokeAccess(videoID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.cache, videoID)
}

// State returns the cached state without querying the source. An
// expired grant is evicted and reported as absent.
func (e *Engine) State(videoID string) (AccessState, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, ok := e.cache[videoID]
	if !ok {
		return AccessState{}, false
	}
	if state.State == StateGranted && !state.valid(e.clock.Now()) {
		delete(e.cache, videoID)
		return AccessState{}, false
	}
	return state, true
}

// FormatTimeRemaining renders the time until expiry for UI surfaces.
func (e *Engine) FormatTimeRemaining(expiresAt time.Time) string {
	if expiresAt.IsZero() {
		return "No access"
	}
	remaining := expiresAt.Sub(e.clock.Now())
	if remaining <= 0 {
		return "Expired"
	}

	days := int(remaining.Hours()) / 24
	hours := int(remaining.Hours()) % 24
	if days > 0 {
		return fmt.Sprintf("%dd %dh remaining", days, hours)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh remaining", hours)
	}
	return fmt.Sprintf("%dm remaining", int(remaining.Minutes()))
}
