package storage

import (
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var boltBucket = []byte("cryptvault")

// BoltDB stores every key in a single bbolt bucket. It suits deployments that
// prefer one data file over a LevelDB directory.
type BoltDB struct {
	db *bolt.DB
}

// NewBoltDB opens (or creates) the bbolt file at path.
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init bolt bucket: %w", err)
	}
	return &BoltDB{db: db}, nil
}

// Put inserts or updates a key-value pair.
func (b *BoltDB) Put(key []byte, value []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Put(key, value)
	})
}

// Get retrieves a value for a given key.
func (b *BoltDB) Get(key []byte) ([]byte, error) {
	var out []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		value := tx.Bucket(boltBucket).Get(key)
		if value == nil {
			return ErrNotFound
		}
		// bbolt values are only valid for the life of the transaction.
		out = append([]byte(nil), value...)
		return nil
	})
	return out, err
}

// Delete removes a key.
func (b *BoltDB) Delete(key []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Delete(key)
	})
}

// NewBatch returns a batch written in one bbolt update transaction.
func (b *BoltDB) NewBatch() Batch {
	return &opBatch{apply: func(ops []batchOp) error {
		return b.db.Update(func(tx *bolt.Tx) error {
			bucket := tx.Bucket(boltBucket)
			for _, op := range ops {
				var err error
				if op.delete {
					err = bucket.Delete(op.key)
				} else {
					err = bucket.Put(op.key, op.value)
				}
				if err != nil {
					return err
				}
			}
			return nil
		})
	}}
}

// Close closes the underlying file.
func (b *BoltDB) Close() {
	b.db.Close()
}

// Open selects a backend by name. Supported values are "memory", "leveldb"
// and "bolt".
func Open(backend, path string) (Database, error) {
	switch backend {
	case "", "memory":
		return NewMemDB(), nil
	case "leveldb":
		if path == "" {
			return nil, fmt.Errorf("storage: leveldb requires a path")
		}
		db, err := NewLevelDB(path)
		if err != nil {
			return nil, err
		}
		return db, nil
	case "bolt":
		if path == "" {
			return nil, fmt.Errorf("storage: bolt requires a path")
		}
		db, err := NewBoltDB(path)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", backend)
	}
}
