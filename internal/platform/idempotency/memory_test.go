package idempotency

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	claim, err := store.Claim(ctx, "s|k", "fp", fixedTime, time.Minute)
	if err != nil || claim.Outcome != OutcomeAcquired {
		t.Fatalf("expected acquired claim, got %+v err=%v", claim, err)
	}
	claim, err = store.Claim(ctx, "s|k", "fp", fixedTime, time.Minute)
	if err != nil || claim.Outcome != OutcomeInFlight {
		t.Fatalf("expected in-flight claim, got %+v err=%v", claim, err)
	}
	if _, err := store.Claim(ctx, "s|k", "other", fixedTime, time.Minute); !errors.Is(err, ErrFingerprintMismatch) {
		t.Fatalf("expected fingerprint mismatch, got %v", err)
	}

	resp := Response{
		Status:  http.StatusOK,
		Headers: http.Header{"Content-Type": {"application/json"}, "Content-Length": {"2"}},
		Body:    []byte("{}"),
	}
	if err := store.Complete(ctx, "s|k", "fp", resp, fixedTime, time.Minute); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	claim, err = store.Claim(ctx, "s|k", "fp", fixedTime.Add(30*time.Second), time.Minute)
	if err != nil || claim.Outcome != OutcomeReplay {
		t.Fatalf("expected replay, got %+v err=%v", claim, err)
	}
	if diff := cmp.Diff(map[string][]string{"Content-Type": {"application/json"}}, claim.Entry.Headers); diff != "" {
		t.Fatalf("unexpected stored headers (-want +got):\n%s", diff)
	}

	claim, err = store.Claim(ctx, "s|k", "other", fixedTime.Add(2*time.Minute), time.Minute)
	if err != nil || claim.Outcome != OutcomeAcquired {
		t.Fatalf("expected expired entry to be reclaimed, got %+v err=%v", claim, err)
	}
}

func TestMemoryStorePurge(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	for _, key := range []string{"a", "b", "c"} {
		if _, err := store.Claim(ctx, key, "fp", fixedTime, time.Minute); err != nil {
			t.Fatalf("Claim: %v", err)
		}
	}
	if _, err := store.Claim(ctx, "fresh", "fp", fixedTime.Add(time.Minute), time.Hour); err != nil {
		t.Fatalf("Claim: %v", err)
	}

	removed, err := store.Purge(ctx, fixedTime.Add(2*time.Minute), 2)
	if err != nil || removed != 2 {
		t.Fatalf("expected 2 removed, got %d err=%v", removed, err)
	}
	removed, _ = store.Purge(ctx, fixedTime.Add(2*time.Minute), 0)
	if removed != 1 || store.Len() != 1 {
		t.Fatalf("expected only the fresh entry to remain, removed=%d len=%d", removed, store.Len())
	}
}

type signallingStore struct {
	*MemoryStore
	purged chan time.Time
}

func (s *signallingStore) Purge(ctx context.Context, now time.Time, limit int) (int, error) {
	select {
	case s.purged <- now:
	default:
	}
	return s.MemoryStore.Purge(ctx, now, limit)
}

func TestStartJanitorPurgesUntilStopped(t *testing.T) {
	store := &signallingStore{MemoryStore: NewMemoryStore(), purged: make(chan time.Time, 1)}
	stop := StartJanitor(store, time.Millisecond, 10, func() time.Time { return fixedTime }, nil)

	select {
	case got := <-store.purged:
		if !got.Equal(fixedTime) {
			t.Fatalf("expected janitor to use injected clock, got %s", got)
		}
	case <-time.After(time.Second):
		t.Fatal("janitor did not run")
	}
	stop()
	stop()
}

func TestStartJanitorDisabled(t *testing.T) {
	stop := StartJanitor(NewMemoryStore(), 0, 10, nil, nil)
	stop()
}
