package idempotency

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	pfirestore "github.com/storefront/customizer/internal/platform/firestore"
)

const (
	defaultCollection = "cart_submissions"
	defaultPurgeLimit = 100
)

// FirestoreOption customises the FirestoreStore.
type FirestoreOption func(*FirestoreStore)

// WithCollection overrides the collection name.
func WithCollection(name string) FirestoreOption {
	return func(s *FirestoreStore) {
		if name != "" {
			s.collection = name
		}
	}
}

// FirestoreStore shares submissions across instances through Firestore.
type FirestoreStore struct {
	provider   *pfirestore.Provider
	collection string
}

var _ Store = (*FirestoreStore)(nil)

// NewFirestoreStore binds a store to provider.
func NewFirestoreStore(provider *pfirestore.Provider, opts ...FirestoreOption) (*FirestoreStore, error) {
	if provider == nil {
		return nil, errors.New("idempotency: firestore provider is required")
	}
	s := &FirestoreStore{provider: provider, collection: defaultCollection}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

func (s *FirestoreStore) ref(ctx context.Context, key string) (*firestore.DocumentRef, error) {
	client, err := s.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(s.collection).Doc(documentID(key)), nil
}

func (s *FirestoreStore) Claim(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Claim, error) {
	now = now.UTC()
	ref, err := s.ref(ctx, key)
	if err != nil {
		return Claim{}, err
	}

	var claim Claim
	err = s.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}
		if err == nil {
			var doc submissionDocument
			if err := snap.DataTo(&doc); err != nil {
				return err
			}
			entry := doc.entry()
			if !entry.expired(now) {
				if entry.Fingerprint != fingerprint {
					return ErrFingerprintMismatch
				}
				claim = Claim{Outcome: OutcomeInFlight, Entry: entry}
				if entry.State == StateCompleted {
					claim.Outcome = OutcomeReplay
				}
				return nil
			}
		}

		entry := newEntry(key, fingerprint, now, normaliseTTL(ttl))
		claim = Claim{Outcome: OutcomeAcquired, Entry: entry}
		return tx.Set(ref, toSubmissionDocument(entry))
	})
	if err != nil {
		if errors.Is(err, ErrFingerprintMismatch) {
			return Claim{}, ErrFingerprintMismatch
		}
		return Claim{}, pfirestore.WrapError(s.collection+".claim", err)
	}
	return claim, nil
}

func (s *FirestoreStore) Complete(ctx context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error {
	now = now.UTC()
	ref, err := s.ref(ctx, key)
	if err != nil {
		return err
	}

	err = s.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		entry := newEntry(key, fingerprint, now, normaliseTTL(ttl))
		snap, err := tx.Get(ref)
		switch {
		case err == nil:
			var doc submissionDocument
			if err := snap.DataTo(&doc); err != nil {
				return err
			}
			if doc.Fingerprint != fingerprint {
				return ErrFingerprintMismatch
			}
			entry.CreatedAt = doc.CreatedAt
		case status.Code(err) != codes.NotFound:
			return err
		}

		entry.State = StateCompleted
		entry.Status = resp.Status
		entry.Headers = replayableHeaders(resp.Headers)
		entry.Body = append([]byte(nil), resp.Body...)
		return tx.Set(ref, toSubmissionDocument(entry))
	})
	if errors.Is(err, ErrFingerprintMismatch) {
		return ErrFingerprintMismatch
	}
	return pfirestore.WrapError(s.collection+".complete", err)
}

func (s *FirestoreStore) Abandon(ctx context.Context, key string) error {
	err := pfirestore.NewCollection[submissionDocument](s.provider, s.collection).Delete(ctx, documentID(key))
	var ferr *pfirestore.Error
	if errors.As(err, &ferr) && ferr.IsNotFound() {
		return nil
	}
	return err
}

func (s *FirestoreStore) Purge(ctx context.Context, now time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = defaultPurgeLimit
	}
	client, err := s.provider.Client(ctx)
	if err != nil {
		return 0, err
	}
	docs, err := client.Collection(s.collection).
		Where("expires_at", "<=", now.UTC()).
		Limit(limit).
		Documents(ctx).
		GetAll()
	if err != nil {
		return 0, pfirestore.WrapError(s.collection+".purge", err)
	}
	if len(docs) == 0 {
		return 0, nil
	}

	batch := client.Batch()
	for _, doc := range docs {
		batch.Delete(doc.Ref)
	}
	if _, err := batch.Commit(ctx); err != nil {
		return 0, pfirestore.WrapError(s.collection+".purge", err)
	}
	return len(docs), nil
}

type submissionDocument struct {
	Key         string              `firestore:"key"`
	Fingerprint string              `firestore:"fingerprint"`
	State       string              `firestore:"state"`
	Status      int                 `firestore:"status"`
	Headers     map[string][]string `firestore:"headers"`
	Body        []byte              `firestore:"body"`
	CreatedAt   time.Time           `firestore:"created_at"`
	ExpiresAt   time.Time           `firestore:"expires_at"`
}

func toSubmissionDocument(e Entry) submissionDocument {
	return submissionDocument{
		Key:         e.Key,
		Fingerprint: e.Fingerprint,
		State:       string(e.State),
		Status:      e.Status,
		Headers:     e.Headers,
		Body:        e.Body,
		CreatedAt:   e.CreatedAt,
		ExpiresAt:   e.ExpiresAt,
	}
}

func (d submissionDocument) entry() Entry {
	return Entry{
		Key:         d.Key,
		Fingerprint: d.Fingerprint,
		State:       State(d.State),
		Status:      d.Status,
		Headers:     d.Headers,
		Body:        d.Body,
		CreatedAt:   d.CreatedAt,
		ExpiresAt:   d.ExpiresAt,
	}
}
