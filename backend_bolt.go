package ridb

import (
	"context"
	"fmt"
	"sync"

	json "github.com/goccy/go-json"
	bolt "go.etcd.io/bbolt"
)

// documentsBucket is the single bucket every collection's documents
// are written into. The reference IndexedDB implementation this
// backend mirrors keys an entire database's object store by primary
// key alone, with no per-collection namespace; two collections that
// share a primary-key value collide. That behavior is preserved here
// rather than fixed, since callers may depend on cross-collection
// lookups the reference implementation happened to allow. For the same
// reason FindDocumentByID, Find and Count ignore their collection
// argument: Find and Count scan every document in the bucket,
// whichever collection wrote it.
var documentsBucket = []byte("documents")

// metaBucket holds database-level metadata, distinct from documents:
// currently just the per-database encryption salt, keyed by saltKey.
var metaBucket = []byte("meta")
var saltKey = []byte("salt")

// boltPool is the process-wide cache of open bbolt handles, keyed by
// database path, mirroring the reference implementation's connection
// pool: a database is opened at most once per process regardless of
// how many Database values reference it.
var boltPool = struct {
	mu      sync.Mutex
	handles map[string]*bolt.DB
}{handles: make(map[string]*bolt.DB)}

func getOrOpenBolt(path string) (*bolt.DB, error) {
	boltPool.mu.Lock()
	defer boltPool.mu.Unlock()

	if db, ok := boltPool.handles[path]; ok {
		return db, nil
	}
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %s", ErrStorage, path, err)
	}
	boltPool.handles[path] = db
	return db, nil
}

func releaseBolt(path string) {
	boltPool.mu.Lock()
	defer boltPool.mu.Unlock()
	if db, ok := boltPool.handles[path]; ok {
		db.Close()
		delete(boltPool.handles, path)
	}
}

// IndexedBackend is a StorageBackend modeled on a browser IndexedDB
// object store, persisted on disk with go.etcd.io/bbolt. Writes and
// reads are synchronous bolt transactions; there is no asynchronous
// completion callback to emulate.
type IndexedBackend struct {
	path        string
	db          *bolt.DB
	primaryKeys map[string]string
}

// NewIndexedBackend returns a backend that persists to the bbolt file
// at path.
func NewIndexedBackend(path string) *IndexedBackend {
	return &IndexedBackend{path: path}
}

func (b *IndexedBackend) Start(_ context.Context, _ string, primaryKeys map[string]string) error {
	db, err := getOrOpenBolt(b.path)
	if err != nil {
		return err
	}
	b.db = db
	b.primaryKeys = primaryKeys
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(documentsBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(metaBucket)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: create buckets: %s", ErrStorage, err)
	}
	return nil
}

// LoadSalt returns the database's persisted encryption salt, if one
// has been saved.
func (b *IndexedBackend) LoadSalt(_ context.Context) ([]byte, bool, error) {
	if b.db == nil {
		return nil, false, fmt.Errorf("%w: backend not started", ErrStorage)
	}
	var salt []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(metaBucket).Get(saltKey); v != nil {
			salt = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return salt, salt != nil, nil
}

// SaveSalt persists the database's encryption salt.
func (b *IndexedBackend) SaveSalt(_ context.Context, salt []byte) error {
	if b.db == nil {
		return fmt.Errorf("%w: backend not started", ErrStorage)
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(metaBucket).Put(saltKey, salt)
	})
}

func (b *IndexedBackend) Close(_ context.Context) error {
	releaseBolt(b.path)
	b.db = nil
	return nil
}

func (b *IndexedBackend) Write(_ context.Context, op Operation) (any, error) {
	if b.db == nil {
		return nil, fmt.Errorf("%w: backend not started", ErrStorage)
	}

	switch op.Type {
	case OpCreate, OpUpdate:
		doc, ok := op.Data.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: expected document for %s", ErrStorage, op.Type)
		}
		key, err := b.primaryKeyOf(op.Collection, doc)
		if err != nil {
			return nil, err
		}
		blob, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("%w: encode document: %s", ErrStorage, err)
		}
		err = b.db.Update(func(tx *bolt.Tx) error {
			return tx.Bucket(documentsBucket).Put([]byte(key), blob)
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrStorage, err)
		}
		return doc, nil
	case OpDelete:
		key, ok := op.Data.(string)
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: expected primary key for DELETE", ErrStorage)
		}
		err := b.db.Update(func(tx *bolt.Tx) error {
			return tx.Bucket(documentsBucket).Delete([]byte(key))
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrStorage, err)
		}
		return deletedSentinel, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedOperation, op.Type)
	}
}

func (b *IndexedBackend) primaryKeyOf(collection string, doc map[string]any) (string, error) {
	field := b.primaryKeys[collection]
	if field == "" {
		return "", fmt.Errorf("%w: unknown collection %s", ErrStorage, collection)
	}
	v, ok := doc[field].(string)
	if !ok || v == "" {
		return "", fmt.Errorf("%w: document missing primary key %s", ErrStorage, field)
	}
	return v, nil
}

func (b *IndexedBackend) FindDocumentByID(_ context.Context, _ string, id string) (map[string]any, error) {
	if b.db == nil {
		return nil, fmt.Errorf("%w: backend not started", ErrStorage)
	}
	var doc map[string]any
	err := b.db.View(func(tx *bolt.Tx) error {
		blob := tx.Bucket(documentsBucket).Get([]byte(id))
		if blob == nil {
			return fmt.Errorf("%w: document %s", ErrNotFound, id)
		}
		if err := json.Unmarshal(blob, &doc); err != nil {
			return fmt.Errorf("%w: decode document: %s", ErrStorage, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (b *IndexedBackend) Find(_ context.Context, _ string, query *Query) ([]map[string]any, error) {
	if b.db == nil {
		return nil, fmt.Errorf("%w: backend not started", ErrStorage)
	}
	var out []map[string]any
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(documentsBucket).ForEach(func(_, blob []byte) error {
			var doc map[string]any
			if err := json.Unmarshal(blob, &doc); err != nil {
				return fmt.Errorf("%w: decode document: %s", ErrStorage, err)
			}
			if query == nil || query.Matches(doc) {
				out = append(out, doc)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (b *IndexedBackend) Count(ctx context.Context, collection string, query *Query) (int, error) {
	docs, err := b.Find(ctx, collection, query)
	if err != nil {
		return 0, err
	}
	return len(docs), nil
}
