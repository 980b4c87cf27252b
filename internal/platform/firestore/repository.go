package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
)

// Document is a decoded snapshot with its server timestamps.
type Document[T any] struct {
	ID         string
	Data       T
	CreateTime time.Time
	UpdateTime time.Time
}

// Collection gives typed access to one Firestore collection. Documents are
// encoded and decoded through Firestore's struct tags.
type Collection[T any] struct {
	provider *Provider
	name     string
}

// NewCollection binds a typed helper to the named collection.
func NewCollection[T any](provider *Provider, name string) *Collection[T] {
	return &Collection[T]{provider: provider, name: strings.TrimSpace(name)}
}

// Get loads and decodes the document with id.
func (c *Collection[T]) Get(ctx context.Context, id string) (Document[T], error) {
	ref, err := c.doc(ctx, id)
	if err != nil {
		return Document[T]{}, err
	}
	snap, err := ref.Get(ctx)
	if err != nil {
		return Document[T]{}, WrapError(c.op("get"), err)
	}
	var data T
	if err := snap.DataTo(&data); err != nil {
		return Document[T]{}, fmt.Errorf("firestore: decode %s/%s: %w", c.name, id, err)
	}
	return Document[T]{
		ID:         snap.Ref.ID,
		Data:       data,
		CreateTime: snap.CreateTime,
		UpdateTime: snap.UpdateTime,
	}, nil
}

// Create writes a new document and fails with a conflict when it already exists.
func (c *Collection[T]) Create(ctx context.Context, id string, value T) (time.Time, error) {
	ref, err := c.doc(ctx, id)
	if err != nil {
		return time.Time{}, err
	}
	result, err := ref.Create(ctx, value)
	if err != nil {
		return time.Time{}, WrapError(c.op("create"), err)
	}
	return result.UpdateTime, nil
}

// Replace overwrites an existing document, guarded by its last update time
// when lastUpdate is non-zero.
func (c *Collection[T]) Replace(ctx context.Context, id string, value T, lastUpdate time.Time) (time.Time, error) {
	ref, err := c.doc(ctx, id)
	if err != nil {
		return time.Time{}, err
	}

	if lastUpdate.IsZero() {
		result, err := ref.Set(ctx, value)
		if err != nil {
			return time.Time{}, WrapError(c.op("replace"), err)
		}
		return result.UpdateTime, nil
	}

	err = c.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		if !snap.UpdateTime.Equal(lastUpdate) {
			return &Error{op: c.op("replace"), err: errors.New("document changed since it was read"), conflict: true}
		}
		return tx.Set(ref, value)
	})
	if err != nil {
		return time.Time{}, WrapError(c.op("replace"), err)
	}
	snap, err := ref.Get(ctx)
	if err != nil {
		return time.Time{}, WrapError(c.op("replace"), err)
	}
	return snap.UpdateTime, nil
}

// Delete removes the document with id.
func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	ref, err := c.doc(ctx, id)
	if err != nil {
		return err
	}
	if _, err := ref.Delete(ctx); err != nil {
		return WrapError(c.op("delete"), err)
	}
	return nil
}

func (c *Collection[T]) doc(ctx context.Context, id string) (*firestore.DocumentRef, error) {
	if c == nil || c.provider == nil {
		return nil, errors.New("firestore: provider is nil")
	}
	if c.name == "" {
		return nil, errors.New("firestore: collection name is required")
	}
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("firestore: document id is required")
	}
	client, err := c.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(c.name).Doc(id), nil
}

func (c *Collection[T]) op(action string) string {
	return c.name + "." + action
}
