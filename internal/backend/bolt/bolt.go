package bolt

import (
	"fmt"
	"iter"

	bolt "go.etcd.io/bbolt"

	"jdbm/internal/backend"
)

// DefaultBucket holds all keys unless Params.Options["bucket"] says otherwise.
const DefaultBucket = "kv"

// Store implements backend.Backend using bbolt (embedded B+ tree).
// Every mutation is its own bbolt transaction.
type Store struct {
	db     *bolt.DB
	bucket []byte
}

var _ backend.Backend = (*Store)(nil)

// Open creates or opens a bbolt database at the given path using the
// given bucket name.
func Open(path, bucket string) (*Store, error) {
	if path == "" {
		return nil, backend.ErrPathRequired
	}
	if bucket == "" {
		bucket = DefaultBucket
	}
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("opening bolt db: %w", err)
	}
	s := &Store{db: db, bucket: []byte(bucket)}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(s.bucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}
	return s, nil
}

// Factory is the registry factory for the "bolt" variant.
func Factory(p backend.Params) (backend.Backend, error) {
	return Open(p.Path, p.Option("bucket", DefaultBucket))
}

// ValidateKey rejects keys longer than bbolt's key size limit.
func (s *Store) ValidateKey(key string) error {
	if len(key) > bolt.MaxKeySize {
		return fmt.Errorf("%w: key is %d bytes, bolt limit is %d", backend.ErrInvalidKey, len(key), bolt.MaxKeySize)
	}
	return nil
}

func (s *Store) Get(key string) (string, error) {
	var (
		val   string
		found bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(s.bucket).Get([]byte(key))
		if v != nil {
			val, found = string(v), true
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if !found {
		return "", backend.ErrNotFound
	}
	return val, nil
}

func (s *Store) Put(key, value string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Put([]byte(key), []byte(value))
	})
}

// Delete is a no-op for absent keys; bbolt's Bucket.Delete already is.
func (s *Store) Delete(key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Delete([]byte(key))
	})
}

func (s *Store) Exists(key string) (bool, error) {
	var ok bool
	err := s.db.View(func(tx *bolt.Tx) error {
		ok = tx.Bucket(s.bucket).Get([]byte(key)) != nil
		return nil
	})
	return ok, err
}

func (s *Store) Count() (int, error) {
	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(s.bucket).Stats().KeyN
		return nil
	})
	return n, err
}

// Keys reads the key set in one read transaction and yields after it has
// been released. Holding a bbolt read transaction across a yield would
// deadlock callers that write from inside the loop.
func (s *Store) Keys() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		var keys []string
		err := s.db.View(func(tx *bolt.Tx) error {
			return tx.Bucket(s.bucket).ForEach(func(k, _ []byte) error {
				keys = append(keys, string(k))
				return nil
			})
		})
		if err != nil {
			yield("", err)
			return
		}
		for _, k := range keys {
			if !yield(k, nil) {
				return
			}
		}
	}
}

func (s *Store) Close() error {
	return s.db.Close()
}
