package idempotency

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps submissions in process. Suitable for a single instance.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Entry
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (s *MemoryStore) Claim(_ context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Claim, error) {
	now = now.UTC()
	s.mu.Lock()
	defer s.mu.Unlock()

	id := documentID(key)
	entry, ok := s.entries[id]
	if !ok || entry.expired(now) {
		entry = newEntry(key, fingerprint, now, normaliseTTL(ttl))
		s.entries[id] = entry
		return Claim{Outcome: OutcomeAcquired, Entry: entry}, nil
	}
	if entry.Fingerprint != fingerprint {
		return Claim{}, ErrFingerprintMismatch
	}
	if entry.State == StateCompleted {
		return Claim{Outcome: OutcomeReplay, Entry: entry}, nil
	}
	return Claim{Outcome: OutcomeInFlight, Entry: entry}, nil
}

func (s *MemoryStore) Complete(_ context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error {
	now = now.UTC()
	s.mu.Lock()
	defer s.mu.Unlock()

	id := documentID(key)
	entry, ok := s.entries[id]
	if ok && entry.Fingerprint != fingerprint {
		return ErrFingerprintMismatch
	}
	if !ok {
		entry = newEntry(key, fingerprint, now, normaliseTTL(ttl))
	}
	entry.State = StateCompleted
	entry.Status = resp.Status
	entry.Headers = replayableHeaders(resp.Headers)
	entry.Body = append([]byte(nil), resp.Body...)
	entry.ExpiresAt = now.Add(normaliseTTL(ttl))
	s.entries[id] = entry
	return nil
}

func (s *MemoryStore) Abandon(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, documentID(key))
	return nil
}

func (s *MemoryStore) Purge(_ context.Context, now time.Time, limit int) (int, error) {
	now = now.UTC()
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, entry := range s.entries {
		if limit > 0 && removed >= limit {
			break
		}
		if entry.expired(now) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed, nil
}

// Len reports the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
