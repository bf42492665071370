// Package lru implements a content.KV that caches Get results from a
// nested store, adapting the teacher's blob-cache decorator to
// entry-keyed lookups.
package lru

import (
	"context"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	"github.com/mwmiller/baobab"
	"github.com/mwmiller/baobab/content"
)

var _ content.KV = &Store{}

// Store adds an in-memory least-recently-used cache in front of a
// nested content.KV. Writes and deletes pass through and invalidate
// or refresh the cache; only Get is accelerated.
type Store struct {
	c *lru.Cache // content.Key -> baobab.Entry
	s content.KV
}

// New produces a Store backed by s, caching up to size entries.
func New(s content.KV, size int) (*Store, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, errors.Wrap(err, "constructing cache")
	}
	return &Store{s: s, c: c}, nil
}

func (s *Store) Get(ctx context.Context, key content.Key) (baobab.Entry, bool, error) {
	if v, ok := s.c.Get(key); ok {
		return v.(baobab.Entry), true, nil
	}
	e, ok, err := s.s.Get(ctx, key)
	if err != nil || !ok {
		return e, ok, err
	}
	s.c.Add(key, e)
	return e, true, nil
}

func (s *Store) Put(ctx context.Context, key content.Key, e baobab.Entry) (bool, error) {
	added, err := s.s.Put(ctx, key, e)
	if err != nil {
		return added, err
	}
	s.c.Add(key, e)
	return added, nil
}

func (s *Store) Delete(ctx context.Context, key content.Key) error {
	s.c.Remove(key)
	return s.s.Delete(ctx, key)
}

func (s *Store) Range(ctx context.Context, author baobab.Author, logID uint64, from, to uint64, f func(baobab.Entry) error) error {
	return s.s.Range(ctx, author, logID, from, to, f)
}

func (s *Store) MaxSeqnum(ctx context.Context, author baobab.Author, logID uint64) (uint64, bool, error) {
	return s.s.MaxSeqnum(ctx, author, logID)
}

func (s *Store) Logs(ctx context.Context, f func(content.LogRef) error) error {
	return s.s.Logs(ctx, f)
}

func init() {
	content.Register("lru", func(ctx context.Context, conf map[string]interface{}) (content.KV, error) {
		size, ok := conf["size"].(int)
		if !ok {
			return nil, errors.New(`content/lru: missing "size" parameter`)
		}
		nested, ok := conf["nested"].(map[string]interface{})
		if !ok {
			return nil, errors.New(`content/lru: missing "nested" parameter`)
		}
		nestedType, ok := nested["type"].(string)
		if !ok {
			return nil, errors.New(`content/lru: "nested" parameter missing "type"`)
		}
		nestedStore, err := content.Create(ctx, nestedType, nested)
		if err != nil {
			return nil, errors.Wrap(err, "creating nested store")
		}
		return New(nestedStore, size)
	})
}
