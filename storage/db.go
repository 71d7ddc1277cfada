package storage

import (
	"errors"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("storage: key not found")

// Database is a generic interface for a key-value store.
// Vault and strategy snapshots are persisted through it, so any backend
// (in-memory or persistent) can hold the ledger.
type Database interface {
	Put(key []byte, value []byte) error
	Get(key []byte) ([]byte, error)
	Delete(key []byte) error
	// NewBatch returns a write set that reaches the backend atomically on Write.
	NewBatch() Batch
	Close() // A way to gracefully shut down the database connection.
}

// Batch buffers writes until Write applies all of them or none.
type Batch interface {
	Put(key []byte, value []byte) error
	Delete(key []byte) error
	Write() error
	Len() int
}

type batchOp struct {
	key    []byte
	value  []byte
	delete bool
}

// opBatch records operations for backends whose atomic write takes the whole
// operation list at once.
type opBatch struct {
	ops   []batchOp
	apply func([]batchOp) error
}

func (b *opBatch) Put(key []byte, value []byte) error {
	b.ops = append(b.ops, batchOp{key: append([]byte(nil), key...), value: append([]byte(nil), value...)})
	return nil
}

func (b *opBatch) Delete(key []byte) error {
	b.ops = append(b.ops, batchOp{key: append([]byte(nil), key...), delete: true})
	return nil
}

func (b *opBatch) Len() int { return len(b.ops) }

func (b *opBatch) Write() error {
	if len(b.ops) == 0 {
		return nil
	}
	if err := b.apply(b.ops); err != nil {
		return err
	}
	b.ops = nil
	return nil
}

// --- In-Memory DB (for testing) ---

type MemDB struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemDB() *MemDB {
	return &MemDB{
		data: make(map[string][]byte),
	}
}

func (db *MemDB) Put(key []byte, value []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.data[string(key)] = append([]byte(nil), value...)
	return nil
}

func (db *MemDB) Get(key []byte) ([]byte, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	value, ok := db.data[string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), value...), nil
}

func (db *MemDB) Delete(key []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	delete(db.data, string(key))
	return nil
}

// NewBatch returns a batch applied under a single lock acquisition.
func (db *MemDB) NewBatch() Batch {
	return &opBatch{apply: func(ops []batchOp) error {
		db.mu.Lock()
		defer db.mu.Unlock()
		for _, op := range ops {
			if op.delete {
				delete(db.data, string(op.key))
				continue
			}
			db.data[string(op.key)] = op.value
		}
		return nil
	}}
}

// Close satisfies the Database interface for MemDB.
func (db *MemDB) Close() {
	// Nothing to close for an in-memory database.
}

// --- Persistent DB ---

// LevelDB is a persistent key-value store using LevelDB.
type LevelDB struct {
	db *leveldb.DB
}

// NewLevelDB creates or opens a LevelDB database at the specified path.
func NewLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &LevelDB{db: db}, nil
}

// Put inserts or updates a key-value pair.
func (ldb *LevelDB) Put(key []byte, value []byte) error {
	return ldb.db.Put(key, value, nil)
}

// Get retrieves a value for a given key.
func (ldb *LevelDB) Get(key []byte) ([]byte, error) {
	value, err := ldb.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	return value, err
}

// Delete removes a key. Deleting an absent key is not an error.
func (ldb *LevelDB) Delete(key []byte) error {
	return ldb.db.Delete(key, nil)
}

type levelBatch struct {
	db    *leveldb.DB
	batch leveldb.Batch
}

func (b *levelBatch) Put(key []byte, value []byte) error {
	b.batch.Put(key, value)
	return nil
}

func (b *levelBatch) Delete(key []byte) error {
	b.batch.Delete(key)
	return nil
}

func (b *levelBatch) Len() int { return b.batch.Len() }

func (b *levelBatch) Write() error {
	if err := b.db.Write(&b.batch, nil); err != nil {
		return err
	}
	b.batch.Reset()
	return nil
}

// NewBatch returns a leveldb write batch.
func (ldb *LevelDB) NewBatch() Batch {
	return &levelBatch{db: ldb.db}
}

// Close closes the database connection.
func (ldb *LevelDB) Close() {
	ldb.db.Close()
}
