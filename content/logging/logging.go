// Package logging wraps a content.KV, logging each operation as it
// happens, in the style of the teacher's store/logging decorator.
package logging

import (
	"context"
	"log"

	"github.com/pkg/errors"

	"github.com/mwmiller/baobab"
	"github.com/mwmiller/baobab/content"
)

var _ content.KV = &Store{}

// Store delegates every call to a nested content.KV, logging inputs
// and outcomes.
type Store struct {
	s content.KV
}

// New wraps s with logging.
func New(s content.KV) *Store {
	return &Store{s: s}
}

func (s *Store) Get(ctx context.Context, key content.Key) (baobab.Entry, bool, error) {
	e, ok, err := s.s.Get(ctx, key)
	if err != nil {
		log.Printf("ERROR Get author=%x log=%d seq=%d: %s", key.Author, key.LogID, key.Seqnum, err)
	} else {
		log.Printf("Get author=%x log=%d seq=%d found=%v", key.Author, key.LogID, key.Seqnum, ok)
	}
	return e, ok, err
}

func (s *Store) Put(ctx context.Context, key content.Key, e baobab.Entry) (bool, error) {
	added, err := s.s.Put(ctx, key, e)
	if err != nil {
		log.Printf("ERROR Put author=%x log=%d seq=%d: %s", key.Author, key.LogID, key.Seqnum, err)
	} else {
		log.Printf("Put author=%x log=%d seq=%d added=%v", key.Author, key.LogID, key.Seqnum, added)
	}
	return added, err
}

func (s *Store) Delete(ctx context.Context, key content.Key) error {
	err := s.s.Delete(ctx, key)
	if err != nil {
		log.Printf("ERROR Delete author=%x log=%d seq=%d: %s", key.Author, key.LogID, key.Seqnum, err)
	} else {
		log.Printf("Delete author=%x log=%d seq=%d", key.Author, key.LogID, key.Seqnum)
	}
	return err
}

func (s *Store) Range(ctx context.Context, author baobab.Author, logID uint64, from, to uint64, f func(baobab.Entry) error) error {
	log.Printf("Range author=%x log=%d from=%d to=%d", author, logID, from, to)
	return s.s.Range(ctx, author, logID, from, to, f)
}

func (s *Store) MaxSeqnum(ctx context.Context, author baobab.Author, logID uint64) (uint64, bool, error) {
	seqnum, ok, err := s.s.MaxSeqnum(ctx, author, logID)
	if err != nil {
		log.Printf("ERROR MaxSeqnum author=%x log=%d: %s", author, logID, err)
	}
	return seqnum, ok, err
}

func (s *Store) Logs(ctx context.Context, f func(content.LogRef) error) error {
	log.Printf("Logs")
	return s.s.Logs(ctx, f)
}

func init() {
	content.Register("logging", func(ctx context.Context, conf map[string]interface{}) (content.KV, error) {
		nested, ok := conf["nested"].(map[string]interface{})
		if !ok {
			return nil, errors.New(`content/logging: missing "nested" parameter`)
		}
		nestedType, ok := nested["type"].(string)
		if !ok {
			return nil, errors.New(`content/logging: "nested" parameter missing "type"`)
		}
		nestedStore, err := content.Create(ctx, nestedType, nested)
		if err != nil {
			return nil, errors.Wrap(err, "creating nested store")
		}
		return New(nestedStore), nil
	})
}
