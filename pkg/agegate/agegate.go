// Package agegate implements the credential-based age threshold check
// gating restricted content. The viewer obtains an issuer-signed birth
// credential, proves `now - birth >= threshold years` and presents only
// the threshold satisfaction plus a per-(user, video) nullifier; the
// birth date itself never leaves this package. The zero-knowledge
// circuit behind the proof is an external concern, the protocol here
// verifies the same statement locally and keeps its interface.
package agegate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/prividocs/privistream/pkg/auth"
)

// SecondsPerYear is the year length used by the threshold inequality,
// 365 days.
const SecondsPerYear = 31536000

// Status is the state of one verification attempt.
type Status uint8

const (
	StatusPrompt Status = iota
	StatusGenerating
	StatusVerified
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusGenerating:
		return "generating"
	case StatusVerified:
		return "verified"
	case StatusFailed:
		return "failed"
	default:
		return "prompt"
	}
}

var (
	// ErrCredentialUnavailable means the identity holder could not
	// supply a birth credential.
	ErrCredentialUnavailable = errors.New("birth credential unavailable")

	// ErrProofGeneration covers every cryptographic failure: untrusted
	// issuer, bad signature, unmet threshold, reused nullifier.
	ErrProofGeneration = errors.New("age proof generation failed")
)

// BirthCredential is an issuer-signed birth timestamp. The signature
// covers the decimal unix timestamp string.
type BirthCredential struct {
	BirthTimestamp int64  `json:"birthTimestamp"`
	Signature      []byte `json:"signature"`
	Issuer         string `json:"issuer"`
}

// CredentialMessage is the message an issuer signs for a credential.
func CredentialMessage(birthTimestamp int64) string {
	return strconv.FormatInt(birthTimestamp, 10)
}

// CredentialProvider obtains a credential from the user's identity
// holder, typically a wallet prompt.
type CredentialProvider func(ctx context.Context) (BirthCredential, error)

// AgeProof reveals only threshold satisfaction and the nullifier.
type AgeProof struct {
	Nullifier string    `json:"nullifier"`
	Threshold int       `json:"threshold"`
	IssuedAt  time.Time `json:"issuedAt"`
}

// Result is the outcome of one verification attempt. Failed is
// terminal for the attempt; retrying means calling Verify again.
type Result struct {
	Status    Status
	Proof     *AgeProof
	Message   string
	Err       error
	Timestamp time.Time
}

// Nullifier derives the single-use token binding a user secret to one
// video, preventing replay and cross-content linkage.
func Nullifier(userSecret []byte, videoID string) string {
	h := sha256.New()
	h.Write(userSecret)
	h.Write([]byte{0})
	h.Write([]byte(videoID))
	return hex.EncodeToString(h.Sum(nil))
}

// Verifier runs the protocol for one viewer session.
type Verifier struct {
	provider   CredentialProvider
	issuers    map[string]struct{}
	clock      auth.Clock
	nullifiers *auth.NullifierCache

	mu       sync.Mutex
	sessions map[string]Result
}

// NewVerifier creates a verifier trusting the given issuer addresses.
func NewVerifier(provider CredentialProvider, trustedIssuers []string, clock auth.Clock) *Verifier {
	if clock == nil {
		clock = auth.RealClock{}
	}
	issuers := make(map[string]struct{}, len(trustedIssuers))
	for _, addr := range trustedIssuers {
		issuers[addr] = struct{}{}
	}
	return &Verifier{
		provider:   provider,
		issuers:    issuers,
		clock:      clock,
		nullifiers: auth.NewNullifierCache(24*time.Hour, clock),
		sessions:   make(map[string]Result),
	}
}

// Verify runs one attempt for (userSecret, videoID) against an age
// threshold in years. A Verified result is cached for the session; a
// Failed result is not, so the caller may retry explicitly.
func (v *Verifier) Verify(ctx context.Context, userSecret []byte, videoID string, threshold int) Result {
	nullifier := Nullifier(userSecret, videoID)
	now := v.clock.Now()

	v.mu.Lock()
	if cached, ok := v.sessions[nullifier]; ok {
		v.mu.Unlock()
		return cached
	}
	v.mu.Unlock()

	credential, err := v.provider(ctx)
	if err != nil {
		return v.failed(fmt.Errorf("%w: %v", ErrCredentialUnavailable, err), now)
	}

	if _, trusted := v.issuers[credential.Issuer]; !trusted {
		return v.failed(fmt.Errorf("%w: untrusted issuer %s", ErrProofGeneration, credential.Issuer), now)
	}
	if err := auth.Verify(credential.Issuer, CredentialMessage(credential.BirthTimestamp), credential.Signature); err != nil {
		return v.failed(fmt.Errorf("%w: invalid credential signature", ErrProofGeneration), now)
	}

	ageSeconds := now.Unix() - credential.BirthTimestamp
	requiredSeconds := int64(threshold) * SecondsPerYear
	if ageSeconds < requiredSeconds {
		return v.failed(fmt.Errorf("%w: age requirement not met", ErrProofGeneration), now)
	}

	if !v.nullifiers.Record(nullifier) {
		return v.failed(fmt.Errorf("%w: nullifier already used", ErrProofGeneration), now)
	}

	result := Result{
		Status: StatusVerified,
		Proof: &AgeProof{
			Nullifier: nullifier,
			Threshold: threshold,
			IssuedAt:  now,
		},
		Message:   "age verified",
		Timestamp: now,
	}

	v.mu.Lock()
	v.sessions[nullifier] = result
	v.mu.Unlock()
	return result
}

// Session returns the cached result for a pair, if any.
func (v *Verifier) Session(userSecret []byte, videoID string) (Result, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	result, ok := v.sessions[Nullifier(userSecret, videoID)]
	return result, ok
}

// EndSession drops the cached result for a pair. The nullifier stays
// recorded, so a fresh proof for the same pair is rejected until it
// expires.
func (v *Verifier) EndSession(userSecret []byte, videoID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.sessions, Nullifier(userSecret, videoID))
}

func (v *Verifier) failed(err error, now time.Time) Result {
	return Result{
		Status:    StatusFailed,
		Message:   err.Error(),
		Err:       err,
		Timestamp: now,
	}
}
