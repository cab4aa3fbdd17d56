package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/hyperjump/chatdata/internal/apperrors"
)

// JSONCollection keeps a collection as a single JSON array file.
// Every read-modify-write cycle runs under one mutex and the file is replaced
// atomically, so concurrent writers never lose updates.
type JSONCollection[T any, P RecordPtr[T]] struct {
	path string
	mu   sync.Mutex
	opts collectionOptions
}

// NewJSONCollection returns a collection stored at path. The parent directory
// is created if missing; the file itself is created on first access.
func NewJSONCollection[T any, P RecordPtr[T]](path string, opts ...CollectionOption) (*JSONCollection[T, P], error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("%w: create data directory: %w", apperrors.ErrStorageUnavailable, err)
		}
	}
	return &JSONCollection[T, P]{path: path, opts: buildOptions(opts)}, nil
}

// Path returns the backing file path.
func (c *JSONCollection[T, P]) Path() string { return c.path }

func (c *JSONCollection[T, P]) load() ([]*T, error) {
	data, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		if err := c.save([]*T{}); err != nil {
			return nil, err
		}
		return []*T{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", apperrors.ErrStorageUnavailable, c.path, err)
	}
	var items []*T
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", apperrors.ErrStorageUnavailable, c.path, err)
	}
	if items == nil {
		items = []*T{}
	}
	return items, nil
}

func (c *JSONCollection[T, P]) save(items []*T) error {
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode %s: %w", c.path, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(c.path), filepath.Base(c.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %w", apperrors.ErrStorageUnavailable, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: write %s: %w", apperrors.ErrStorageUnavailable, tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: sync %s: %w", apperrors.ErrStorageUnavailable, tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: close %s: %w", apperrors.ErrStorageUnavailable, tmpName, err)
	}
	if err := os.Rename(tmpName, c.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: replace %s: %w", apperrors.ErrStorageUnavailable, c.path, err)
	}
	return nil
}

func indexOf[T any, P RecordPtr[T]](items []*T, id string) int {
	for i, it := range items {
		if P(it).RecordID() == id {
			return i
		}
	}
	return -1
}

// List returns all records in insertion order.
func (c *JSONCollection[T, P]) List(ctx context.Context) ([]*T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.load()
}

// Get returns the record with the given id.
func (c *JSONCollection[T, P]) Get(ctx context.Context, id string) (*T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	items, err := c.load()
	if err != nil {
		return nil, err
	}
	i := indexOf[T, P](items, id)
	if i < 0 {
		return nil, fmt.Errorf("record %s: %w", id, apperrors.ErrNotFound)
	}
	return items[i], nil
}

// Create stamps rec with a new id and timestamps and appends it.
func (c *JSONCollection[T, P]) Create(ctx context.Context, rec *T) (*T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	items, err := c.load()
	if err != nil {
		return nil, err
	}
	P(rec).Init(c.opts.newID(), c.opts.now())
	items = append(items, rec)
	if err := c.save(items); err != nil {
		return nil, err
	}
	return rec, nil
}

// Update patches the record with the given id and persists the collection.
func (c *JSONCollection[T, P]) Update(ctx context.Context, id string, patch func(*T) error) (*T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	items, err := c.load()
	if err != nil {
		return nil, err
	}
	i := indexOf[T, P](items, id)
	if i < 0 {
		return nil, fmt.Errorf("record %s: %w", id, apperrors.ErrNotFound)
	}
	rec := items[i]
	if err := patch(rec); err != nil {
		return nil, err
	}
	if P(rec).RecordID() != id {
		return nil, fmt.Errorf("%w: record id is immutable", apperrors.ErrValidation)
	}
	P(rec).Touch(c.opts.now())
	if err := c.save(items); err != nil {
		return nil, err
	}
	return rec, nil
}

// Delete removes the record with the given id. The file is rewritten only
// when something was removed.
func (c *JSONCollection[T, P]) Delete(ctx context.Context, id string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	items, err := c.load()
	if err != nil {
		return false, err
	}
	i := indexOf[T, P](items, id)
	if i < 0 {
		return false, nil
	}
	items = append(items[:i], items[i+1:]...)
	if err := c.save(items); err != nil {
		return false, err
	}
	return true, nil
}

// Count returns the number of records.
func (c *JSONCollection[T, P]) Count(ctx context.Context) (int, error) {
	items, err := c.List(ctx)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}
