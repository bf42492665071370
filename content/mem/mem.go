// Package mem implements an in-memory content.KV, useful for tests.
package mem

import (
	"context"
	"sort"
	"sync"

	"github.com/mwmiller/baobab"
	"github.com/mwmiller/baobab/content"
)

var _ content.KV = &Store{}

// Store is a memory-based content.KV.
type Store struct {
	mu      sync.Mutex
	entries map[content.Key]baobab.Entry
}

// New produces a new Store.
func New() *Store {
	return &Store{entries: make(map[content.Key]baobab.Entry)}
}

func (s *Store) Get(_ context.Context, key content.Key) (baobab.Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	return e, ok, nil
}

func (s *Store) Put(_ context.Context, key content.Key, e baobab.Entry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, existed := s.entries[key]
	s.entries[key] = e
	return !existed, nil
}

func (s *Store) Delete(_ context.Context, key content.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

func (s *Store) Range(_ context.Context, author baobab.Author, logID uint64, from, to uint64, f func(baobab.Entry) error) error {
	s.mu.Lock()
	var matched []baobab.Entry
	for k, e := range s.entries {
		if k.Author != author || k.LogID != logID {
			continue
		}
		if k.Seqnum < from {
			continue
		}
		if to != 0 && k.Seqnum > to {
			continue
		}
		matched = append(matched, e)
	}
	s.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].Seqnum < matched[j].Seqnum })
	for _, e := range matched {
		if err := f(e); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) MaxSeqnum(_ context.Context, author baobab.Author, logID uint64) (uint64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var max uint64
	var found bool
	for k := range s.entries {
		if k.Author != author || k.LogID != logID {
			continue
		}
		if !found || k.Seqnum > max {
			max = k.Seqnum
			found = true
		}
	}
	return max, found, nil
}

func (s *Store) Logs(_ context.Context, f func(content.LogRef) error) error {
	s.mu.Lock()
	seen := make(map[content.LogRef]bool)
	var refs []content.LogRef
	for k := range s.entries {
		ref := content.LogRef{Author: k.Author, LogID: k.LogID}
		if !seen[ref] {
			seen[ref] = true
			refs = append(refs, ref)
		}
	}
	s.mu.Unlock()

	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Author != refs[j].Author {
			return string(refs[i].Author[:]) < string(refs[j].Author[:])
		}
		return refs[i].LogID < refs[j].LogID
	})
	for _, ref := range refs {
		if err := f(ref); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	content.Register("mem", func(context.Context, map[string]interface{}) (content.KV, error) {
		return New(), nil
	})
}
