package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"
)

// DefaultTTL bounds how long a completed submission can be replayed.
const DefaultTTL = 10 * time.Minute

// State is the lifecycle of a stored submission.
type State string

const (
	StateInFlight  State = "in_flight"
	StateCompleted State = "completed"
)

// Outcome tells the middleware what to do with a claimed key.
type Outcome int

const (
	// OutcomeAcquired means the caller owns the key and must run the handler.
	OutcomeAcquired Outcome = iota
	// OutcomeReplay means a stored response exists for the same request.
	OutcomeReplay
	// OutcomeInFlight means an identical request is still being handled.
	OutcomeInFlight
)

// Claim is the result of Store.Claim.
type Claim struct {
	Outcome Outcome
	Entry   Entry
}

// Entry is one stored submission.
type Entry struct {
	Key         string
	Fingerprint string
	State       State
	Status      int
	Headers     map[string][]string
	Body        []byte
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

func (e Entry) expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

// Response is the handler output captured for replay.
type Response struct {
	Status  int
	Headers http.Header
	Body    []byte
}

// Store persists submissions keyed by the scoped idempotency key.
type Store interface {
	Claim(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Claim, error)
	Complete(ctx context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error
	Abandon(ctx context.Context, key string) error
	Purge(ctx context.Context, now time.Time, limit int) (int, error)
}

// ErrFingerprintMismatch is returned when a key is reused for a different request.
var ErrFingerprintMismatch = errors.New("idempotency: key already used for a different request")

func documentID(key string) string {
	return sha256Hex([]byte(strings.TrimSpace(key)))
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func newEntry(key, fingerprint string, now time.Time, ttl time.Duration) Entry {
	return Entry{
		Key:         key,
		Fingerprint: fingerprint,
		State:       StateInFlight,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
}

func replayableHeaders(header http.Header) map[string][]string {
	out := make(map[string][]string, len(header))
	for name, values := range header {
		canonical := http.CanonicalHeaderKey(name)
		switch canonical {
		case "Content-Length", "Date", "Connection", "Keep-Alive", "Transfer-Encoding", "Upgrade", "Traceparent", "Tracestate":
			continue
		}
		out[canonical] = append([]string(nil), values...)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func normaliseTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultTTL
	}
	return ttl
}
