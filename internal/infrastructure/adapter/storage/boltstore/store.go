// Package boltstore persists all payment state in a single embedded BoltDB
// file. Each logical collection gets its own bucket, and every
// read-modify-write runs inside one bolt transaction, which is what makes
// the check-then-act sequences (duplicate-active guard, ref dedup,
// inventory reservation) safe under concurrent callers.
package boltstore

import (
	"time"

	bolt "github.com/boltdb/bolt"
)

// Bucket names
var (
	bucketPending  = []byte("pending_transactions")
	bucketRefs     = []byte("ref_ledger")
	bucketBalances = []byte("balances")
	bucketProducts = []byte("products")
	bucketMeta     = []byte("meta")
)

// DB wraps the bolt handle shared by the store adapters.
type DB struct {
	db *bolt.DB
}

// Open opens (or creates) the database file and ensures all buckets exist.
func Open(path string) (*DB, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketPending, bucketRefs, bucketBalances, bucketProducts, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &DB{db: db}, nil
}

// Close releases the database file lock.
func (d *DB) Close() error {
	return d.db.Close()
}
