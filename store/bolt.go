package store

import (
	"bytes"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketLedger = []byte("ledger")

// BoltBackend persists the whole ledger in a single bbolt bucket. The
// one-byte key prefixes (see store.go) partition the keyspace.
type BoltBackend struct {
	db *bolt.DB
}

// OpenBolt opens (creating if needed) the bbolt file at path.
func OpenBolt(path string) (*BoltBackend, error) {
	if path == "" {
		return nil, fmt.Errorf("store: path required")
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("store: open bbolt: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketLedger)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: create bucket: %w", err)
	}
	return &BoltBackend{db: db}, nil
}

func (b *BoltBackend) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

func (b *BoltBackend) View(fn func(tx Tx) error) error {
	return b.db.View(func(btx *bolt.Tx) error {
		return fn(boltTx{bucket: btx.Bucket(bucketLedger)})
	})
}

func (b *BoltBackend) Update(fn func(tx Tx) error) error {
	return b.db.Update(func(btx *bolt.Tx) error {
		return fn(boltTx{bucket: btx.Bucket(bucketLedger)})
	})
}

type boltTx struct {
	bucket *bolt.Bucket
}

func (t boltTx) Get(key []byte) []byte {
	return t.bucket.Get(key)
}

func (t boltTx) Put(key, value []byte) error {
	return t.bucket.Put(key, value)
}

func (t boltTx) Scan(prefix []byte, fn func(key, value []byte) error) error {
	c := t.bucket.Cursor()
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		if err := fn(k, v); err != nil {
			return err
		}
	}
	return nil
}
