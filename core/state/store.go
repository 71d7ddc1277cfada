package state

import (
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"cryptvault/storage"
)

// Store persists RLP-encoded records in a key/value backend. Keys are hashed
// so callers may use arbitrary, human-readable prefixes.
type Store struct {
	db storage.Database
	// batch, when set, receives writes instead of db.
	batch storage.Batch
}

// NewStore wraps db.
func NewStore(db storage.Database) *Store {
	return &Store{db: db}
}

// Batch runs fn against a store whose writes are buffered and then committed
// to the backend in one atomic write. When fn fails nothing is written.
func (s *Store) Batch(fn func(*Store) error) error {
	if s.batch != nil {
		return fn(s)
	}
	batched := &Store{db: s.db, batch: s.db.NewBatch()}
	if err := fn(batched); err != nil {
		return err
	}
	if err := batched.batch.Write(); err != nil {
		return fmt.Errorf("kv: write batch: %w", err)
	}
	return nil
}

func (s *Store) put(key, value []byte) error {
	if s.batch != nil {
		return s.batch.Put(key, value)
	}
	return s.db.Put(key, value)
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(append([]byte("kv/"), key...))
}

// KVPut encodes value with RLP and stores it under key.
func (s *Store) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return s.put(kvKey(key), encoded)
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed.
func (s *Store) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := s.db.Get(kvKey(key))
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVDelete removes key.
func (s *Store) KVDelete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	if s.batch != nil {
		return s.batch.Delete(kvKey(key))
	}
	return s.db.Delete(kvKey(key))
}
