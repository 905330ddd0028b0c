package store

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

// envelope wraps a stored value with its compare-and-swap version.
type envelope struct {
	Version uint64 `json:"version"`
	Data    []byte `json:"data"`
}

// BoltStore holds the shared BoltDB database backing every namespace.
// Namespaces map to buckets rooted under the framework name.
type BoltStore struct {
	db     *bolt.DB
	prefix string
}

// Open opens (creating if necessary) the database file under dataDir.
// Buckets are created lazily on first write so that a namespace that has
// never been written to is distinguishable from an empty one.
func Open(dataDir, frameworkName string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "reservoir.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &BoltStore{db: db, prefix: frameworkName}, nil
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Namespace returns the store for one namespace. The underlying bucket is
// created on first write, not here.
func (s *BoltStore) Namespace(name string) Store {
	return &boltNamespace{
		db:     s.db,
		bucket: []byte(s.prefix + "/" + name),
	}
}

type boltNamespace struct {
	db     *bolt.DB
	bucket []byte
}

func (n *boltNamespace) Fetch(key string) (Variable, error) {
	v := Variable{Key: key}
	err := n.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(n.bucket)
		if b == nil {
			return nil
		}
		data := b.Get([]byte(key))
		if data == nil {
			return nil
		}
		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			return fmt.Errorf("failed to decode stored value for %q: %w", key, err)
		}
		v.Value = env.Data
		v.version = env.Version
		return nil
	})
	return v, err
}

func (n *boltNamespace) Store(v Variable) (Variable, error) {
	stored := Variable{Key: v.Key, Value: v.Value}
	err := n.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(n.bucket)
		if err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", n.bucket, err)
		}

		var current uint64
		if data := b.Get([]byte(v.Key)); data != nil {
			var env envelope
			if err := json.Unmarshal(data, &env); err == nil {
				current = env.Version
			}
		}
		if current != v.version {
			return ErrConflict
		}

		stored.version = current + 1
		data, err := json.Marshal(envelope{Version: stored.version, Data: v.Value})
		if err != nil {
			return err
		}
		return b.Put([]byte(v.Key), data)
	})
	if err != nil {
		return Variable{}, err
	}
	return stored, nil
}

func (n *boltNamespace) Expunge(v Variable) error {
	return n.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(n.bucket)
		if b == nil {
			return nil
		}
		return b.Delete([]byte(v.Key))
	})
}

func (n *boltNamespace) ListKeys() ([]string, error) {
	var keys []string
	err := n.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(n.bucket)
		if b == nil {
			return ErrNotFound
		}
		return b.ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}
