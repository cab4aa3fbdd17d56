// Package storage persists data sources and query logs as record collections.
package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hyperjump/chatdata/internal/models"
)

// RecordPtr constrains a collection's element pointer to a models.Record.
type RecordPtr[T any] interface {
	*T
	models.Record
}

// Collection is an ordered set of records addressed by id.
//
// Get and Update return an error wrapping apperrors.ErrNotFound for unknown ids.
// Failures of the underlying medium wrap apperrors.ErrStorageUnavailable.
type Collection[T any] interface {
	// List returns every record in insertion order.
	List(ctx context.Context) ([]*T, error)
	Get(ctx context.Context, id string) (*T, error)
	// Create assigns a fresh id and timestamps to rec, appends and persists it.
	Create(ctx context.Context, rec *T) (*T, error)
	// Update applies patch to the stored record and bumps its update time.
	// A patch error aborts the update without writing.
	Update(ctx context.Context, id string, patch func(*T) error) (*T, error)
	// Delete removes the record and reports whether anything was removed.
	Delete(ctx context.Context, id string) (bool, error)
	Count(ctx context.Context) (int, error)
}

// NewID returns a random version 4 UUID.
func NewID() string {
	return uuid.NewString()
}

func utcNow() time.Time {
	return time.Now().UTC()
}

type collectionOptions struct {
	now   func() time.Time
	newID func() string
}

// CollectionOption configures a collection.
type CollectionOption func(*collectionOptions)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) CollectionOption {
	return func(o *collectionOptions) { o.now = now }
}

// WithIDGenerator overrides the id generator.
func WithIDGenerator(gen func() string) CollectionOption {
	return func(o *collectionOptions) { o.newID = gen }
}

func buildOptions(opts []CollectionOption) collectionOptions {
	o := collectionOptions{now: utcNow, newID: NewID}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
