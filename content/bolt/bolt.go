// Package bolt implements content.KV on top of a single go.etcd.io/bbolt
// file: the default, dependency-free-at-runtime backend, since a bbolt
// database is itself one embedded keyed file, matching the on-disk
// ".dets" convention a Bamboo store uses.
package bolt

import (
	"context"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"github.com/mwmiller/baobab"
	"github.com/mwmiller/baobab/content"
)

var entriesBucket = []byte("entries")

var _ content.KV = &Store{}

// Store is a bbolt-backed content.KV. Keys are content.Key.Bytes();
// values are baobab.EncodeFull(entry).
type Store struct {
	db *bolt.DB
}

// Open opens (creating if necessary) a bbolt database at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "opening bbolt db %s", path)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(entriesBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "creating entries bucket")
	}
	return &Store{db: db}, nil
}

// Close closes the underlying bbolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Get(_ context.Context, key content.Key) (baobab.Entry, bool, error) {
	var e baobab.Entry
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(entriesBucket).Get(key.Bytes())
		if v == nil {
			return nil
		}
		found = true
		decoded, err := decodeStored(v)
		if err != nil {
			return err
		}
		e = decoded
		return nil
	})
	return e, found, err
}

func (s *Store) Put(_ context.Context, key content.Key, e baobab.Entry) (bool, error) {
	var added bool
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(entriesBucket)
		added = b.Get(key.Bytes()) == nil
		return b.Put(key.Bytes(), encodeStored(e))
	})
	return added, err
}

func (s *Store) Delete(_ context.Context, key content.Key) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(entriesBucket).Delete(key.Bytes())
	})
}

func (s *Store) Range(_ context.Context, author baobab.Author, logID uint64, from, to uint64, f func(baobab.Entry) error) error {
	prefix := content.LogPrefix(author, logID)
	return s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(entriesBucket).Cursor()
		for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			key, err := content.KeyFromBytes(k)
			if err != nil {
				return err
			}
			if key.Seqnum < from {
				continue
			}
			if to != 0 && key.Seqnum > to {
				break
			}
			e, err := decodeStored(v)
			if err != nil {
				return err
			}
			if err := f(e); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) MaxSeqnum(_ context.Context, author baobab.Author, logID uint64) (uint64, bool, error) {
	prefix := content.LogPrefix(author, logID)
	var max uint64
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(entriesBucket).Cursor()
		for k, _ := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, _ = c.Next() {
			key, err := content.KeyFromBytes(k)
			if err != nil {
				return err
			}
			if !found || key.Seqnum > max {
				max = key.Seqnum
				found = true
			}
		}
		return nil
	})
	return max, found, err
}

func (s *Store) Logs(_ context.Context, f func(content.LogRef) error) error {
	var refs []content.LogRef
	seen := make(map[content.LogRef]bool)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(entriesBucket).ForEach(func(k, _ []byte) error {
			key, err := content.KeyFromBytes(k)
			if err != nil {
				return err
			}
			ref := content.LogRef{Author: key.Author, LogID: key.LogID}
			if !seen[ref] {
				seen[ref] = true
				refs = append(refs, ref)
			}
			return nil
		})
	})
	if err != nil {
		return err
	}
	for _, ref := range refs {
		if err := f(ref); err != nil {
			return err
		}
	}
	return nil
}

func hasPrefix(b, prefix []byte) bool {
	if len(b) < len(prefix) {
		return false
	}
	for i := range prefix {
		if b[i] != prefix[i] {
			return false
		}
	}
	return true
}

func encodeStored(e baobab.Entry) []byte {
	return baobab.EncodeFull(e)
}

func decodeStored(v []byte) (baobab.Entry, error) {
	e, _, err := baobab.Decode(v)
	return e, err
}

func init() {
	content.Register("bolt", func(_ context.Context, conf map[string]interface{}) (content.KV, error) {
		path, ok := conf["path"].(string)
		if !ok {
			return nil, errors.New(`content/bolt: missing "path" parameter`)
		}
		return Open(path)
	})
}
