package storage

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/hyperjump/chatdata/internal/apperrors"
)

// BoltDB is a bbolt file holding record collections. Each collection uses two
// buckets: records keyed by insertion sequence, and an id index pointing at
// the sequence key.
type BoltDB struct {
	db *bbolt.DB
}

// OpenBolt opens or creates the bbolt file at path.
func OpenBolt(path string) (*BoltDB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("%w: create database directory: %w", apperrors.ErrStorageUnavailable, err)
		}
	}
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("%w: open bolt database: %w", apperrors.ErrStorageUnavailable, err)
	}
	return &BoltDB{db: db}, nil
}

// Close closes the database file.
func (b *BoltDB) Close() error {
	return b.db.Close()
}

// BoltCollection is a Collection backed by buckets of a BoltDB.
type BoltCollection[T any, P RecordPtr[T]] struct {
	db      *bbolt.DB
	records []byte
	ids     []byte
	opts    collectionOptions
}

// NewBoltCollection returns the collection called name inside db, creating
// its buckets if needed.
func NewBoltCollection[T any, P RecordPtr[T]](db *BoltDB, name string, opts ...CollectionOption) (*BoltCollection[T, P], error) {
	c := &BoltCollection[T, P]{
		db:      db.db,
		records: []byte(name),
		ids:     []byte(name + ".ids"),
		opts:    buildOptions(opts),
	}
	err := c.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(c.records); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(c.ids)
		return err
	})
	if err != nil {
		return nil, unavailable("create buckets "+name, err)
	}
	return c, nil
}

func seqKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}

func notFound(id string) error {
	return fmt.Errorf("record %s: %w", id, apperrors.ErrNotFound)
}

// List returns all records in insertion order. Sequence keys are big-endian
// so the bucket cursor walks them in order.
func (c *BoltCollection[T, P]) List(ctx context.Context) ([]*T, error) {
	items := []*T{}
	err := c.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(c.records).ForEach(func(_, v []byte) error {
			rec, err := decodeRecord[T](string(v))
			if err != nil {
				return err
			}
			items = append(items, rec)
			return nil
		})
	})
	if err != nil {
		return nil, unavailable("list "+string(c.records), err)
	}
	return items, nil
}

// Get returns the record with the given id.
func (c *BoltCollection[T, P]) Get(ctx context.Context, id string) (*T, error) {
	var rec *T
	found := false
	err := c.db.View(func(tx *bbolt.Tx) error {
		key := tx.Bucket(c.ids).Get([]byte(id))
		if key == nil {
			return nil
		}
		found = true
		var err error
		rec, err = decodeRecord[T](string(tx.Bucket(c.records).Get(key)))
		return err
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, notFound(id)
	}
	return rec, nil
}

// Create stamps rec with a new id and timestamps and appends it.
func (c *BoltCollection[T, P]) Create(ctx context.Context, rec *T) (*T, error) {
	P(rec).Init(c.opts.newID(), c.opts.now())
	body, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	err = c.db.Update(func(tx *bbolt.Tx) error {
		records := tx.Bucket(c.records)
		seq, err := records.NextSequence()
		if err != nil {
			return err
		}
		key := seqKey(seq)
		if err := records.Put(key, body); err != nil {
			return err
		}
		return tx.Bucket(c.ids).Put([]byte(P(rec).RecordID()), key)
	})
	if err != nil {
		return nil, unavailable("insert "+string(c.records), err)
	}
	return rec, nil
}

// Update patches the record inside one write transaction.
func (c *BoltCollection[T, P]) Update(ctx context.Context, id string, patch func(*T) error) (*T, error) {
	var (
		rec *T
		// rejected holds errors raised by the record itself rather than by bbolt
		rejected error
	)
	err := c.db.Update(func(tx *bbolt.Tx) error {
		key := tx.Bucket(c.ids).Get([]byte(id))
		if key == nil {
			rejected = notFound(id)
			return rejected
		}
		records := tx.Bucket(c.records)
		var err error
		if rec, err = decodeRecord[T](string(records.Get(key))); err != nil {
			rejected = err
			return err
		}
		if err := patch(rec); err != nil {
			rejected = err
			return err
		}
		if P(rec).RecordID() != id {
			rejected = fmt.Errorf("%w: record id is immutable", apperrors.ErrValidation)
			return rejected
		}
		P(rec).Touch(c.opts.now())
		body, err := json.Marshal(rec)
		if err != nil {
			rejected = fmt.Errorf("encode record: %w", err)
			return rejected
		}
		return records.Put(key, body)
	})
	if rejected != nil {
		return nil, rejected
	}
	if err != nil {
		return nil, unavailable("update "+string(c.records), err)
	}
	return rec, nil
}

// Delete removes the record with the given id.
func (c *BoltCollection[T, P]) Delete(ctx context.Context, id string) (bool, error) {
	removed := false
	err := c.db.Update(func(tx *bbolt.Tx) error {
		ids := tx.Bucket(c.ids)
		key := ids.Get([]byte(id))
		if key == nil {
			return nil
		}
		if err := tx.Bucket(c.records).Delete(key); err != nil {
			return err
		}
		removed = true
		return ids.Delete([]byte(id))
	})
	if err != nil {
		return false, unavailable("delete "+string(c.records), err)
	}
	return removed, nil
}

// Count returns the number of records in the collection.
func (c *BoltCollection[T, P]) Count(ctx context.Context) (int, error) {
	var n int
	err := c.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(c.ids).Stats().KeyN
		return nil
	})
	if err != nil {
		return 0, unavailable("count "+string(c.records), err)
	}
	return n, nil
}
