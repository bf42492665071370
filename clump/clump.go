// Package clump implements per-clump block-set metadata: the set of
// authors, log IDs, and (author, log ID) pairs an engine refuses to
// accept content from. A Set wraps either an in-memory map or a bbolt
// bucket, mirroring package identity's habit of giving small auxiliary
// stores their own minimal persistence rather than routing everything
// through the general blob-store abstraction.
package clump

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"github.com/mwmiller/baobab"
	"github.com/mwmiller/baobab/base62"
	"github.com/mwmiller/baobab/varu64"
)

// Errors returned by block-set operations.
var (
	ErrBadBase62            = errors.New("clump: bad base62 author reference")
	ErrBlockedLocalIdentity = errors.New("clump: cannot block a self-owned identity")
)

// SpecKind distinguishes the three shapes a block specifier can take.
type SpecKind int

const (
	// ByAuthor blocks every log from an author, in every log ID.
	ByAuthor SpecKind = iota
	// ByLogID blocks a log ID across every author.
	ByLogID
	// ByAuthorLogID blocks one specific (author, log ID) pair.
	ByAuthorLogID
)

// Spec is a block specifier: exactly one of AuthorB62 or (both
// AuthorB62 and LogID) or LogID alone is meaningful, selected by Kind.
type Spec struct {
	Kind      SpecKind
	AuthorB62 string
	LogID     uint64
}

func (s Spec) key() Spec {
	switch s.Kind {
	case ByAuthor:
		return Spec{Kind: ByAuthor, AuthorB62: s.AuthorB62}
	case ByLogID:
		return Spec{Kind: ByLogID, LogID: s.LogID}
	default:
		return Spec{Kind: ByAuthorLogID, AuthorB62: s.AuthorB62, LogID: s.LogID}
	}
}

// Triple identifies one stored entry's origin, for Blocked and
// FilterBlocked.
type Triple struct {
	AuthorB62 string
	LogID     uint64
	Seqnum    uint64
}

// LocalIdentitySource reports whether a base62 public key belongs to
// a self-owned identity, so Block can enforce invariant 4 (an author
// with a local identity may never be blocked).
type LocalIdentitySource interface {
	IsLocal(authorB62 string) (bool, error)
}

// PurgeFunc removes stored content matching a newly blocked spec. The
// caller supplies it so this package does not need to depend on the
// content or logengine packages directly.
type PurgeFunc func(ctx context.Context, spec Spec) error

// backend persists a Set's specs, or does nothing if the Set is
// purely in-memory.
type backend interface {
	put(Spec) error
	delete(Spec) error
	close() error
}

// Set is one clump's block set.
type Set struct {
	mu    sync.Mutex
	specs map[Spec]bool
	b     backend
}

// New returns an empty, in-memory block set, the default for tests.
func New() *Set {
	return &Set{specs: make(map[Spec]bool)}
}

// Open opens (creating if necessary) a bbolt-backed Set at path,
// conventionally named "metadata.dets", restoring any blocks recorded
// in a previous process lifetime.
func Open(path string) (*Set, error) {
	b, err := newBoltBackend(path)
	if err != nil {
		return nil, err
	}
	specs, err := b.load()
	if err != nil {
		b.close()
		return nil, err
	}
	return &Set{specs: specs, b: b}, nil
}

// Close releases any resources the backend holds (a no-op for the
// in-memory Set New returns).
func (s *Set) Close() error {
	if s.b == nil {
		return nil
	}
	return s.b.close()
}

// Block adds spec to the set, per the base62 validity check, the
// local-identity guard, and the "purge affected content" rule. purge
// is called only after the spec is validated and (if new) recorded.
func (s *Set) Block(ctx context.Context, spec Spec, locals LocalIdentitySource, purge PurgeFunc) ([]Spec, error) {
	if spec.AuthorB62 != "" {
		if _, err := base62.Decode(spec.AuthorB62); err != nil {
			return nil, errors.Wrap(ErrBadBase62, err.Error())
		}
		if locals != nil {
			local, err := locals.IsLocal(spec.AuthorB62)
			if err != nil {
				return nil, err
			}
			if local {
				return nil, errors.Wrapf(ErrBlockedLocalIdentity, "author %s", spec.AuthorB62)
			}
		}
	}

	k := spec.key()

	s.mu.Lock()
	already := s.specs[k]
	if !already {
		s.specs[k] = true
	}
	var persistErr error
	if !already && s.b != nil {
		if persistErr = s.b.put(k); persistErr != nil {
			delete(s.specs, k)
		}
	}
	s.mu.Unlock()
	if persistErr != nil {
		return nil, errors.Wrap(persistErr, "persisting block")
	}

	if !already && purge != nil {
		if err := purge(ctx, k); err != nil {
			return nil, err
		}
	}

	return s.List(), nil
}

// Unblock removes spec if present. Removing a general block does not
// remove a more specific one that happens to overlap it.
func (s *Set) Unblock(spec Spec) ([]Spec, error) {
	k := spec.key()

	s.mu.Lock()
	delete(s.specs, k)
	var err error
	if s.b != nil {
		err = s.b.delete(k)
	}
	s.mu.Unlock()
	if err != nil {
		return nil, errors.Wrap(err, "persisting unblock")
	}

	return s.List(), nil
}

// Blocked reports whether triple is covered by any spec in the set:
// its author alone, its log ID alone, or the (author, log ID) pair.
func (s *Set) Blocked(t Triple) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.specs[Spec{Kind: ByAuthor, AuthorB62: t.AuthorB62}] {
		return true
	}
	if s.specs[Spec{Kind: ByLogID, LogID: t.LogID}] {
		return true
	}
	if s.specs[Spec{Kind: ByAuthorLogID, AuthorB62: t.AuthorB62, LogID: t.LogID}] {
		return true
	}
	return false
}

// List returns every spec in the set, in a stable order.
func (s *Set) List() []Spec {
	s.mu.Lock()
	defer s.mu.Unlock()
	specs := make([]Spec, 0, len(s.specs))
	for spec := range s.specs {
		specs = append(specs, spec)
	}
	sort.Slice(specs, func(i, j int) bool {
		if specs[i].Kind != specs[j].Kind {
			return specs[i].Kind < specs[j].Kind
		}
		if specs[i].AuthorB62 != specs[j].AuthorB62 {
			return specs[i].AuthorB62 < specs[j].AuthorB62
		}
		return specs[i].LogID < specs[j].LogID
	})
	return specs
}

// FilterBlocked returns the subset of triples not covered by any
// block, preserving input order.
func (s *Set) FilterBlocked(triples []Triple) []Triple {
	var kept []Triple
	for _, t := range triples {
		if !s.Blocked(t) {
			kept = append(kept, t)
		}
	}
	return kept
}

// EntriesToTriples converts stored entries into the Triple shape
// FilterBlocked expects.
func EntriesToTriples(entries []baobab.Entry) []Triple {
	triples := make([]Triple, len(entries))
	for i, e := range entries {
		triples[i] = Triple{AuthorB62: base62.Encode(e.Author[:]), LogID: e.LogID, Seqnum: e.Seqnum}
	}
	return triples
}

// encodeSpecKey encodes a normalized spec (as returned by Spec.key)
// as a bbolt key: kind byte, base62 author, a NUL separator (base62's
// alphabet excludes it), then the log ID as a varu64.
func encodeSpecKey(s Spec) []byte {
	buf := []byte{byte(s.Kind)}
	buf = append(buf, []byte(s.AuthorB62)...)
	buf = append(buf, 0)
	buf = append(buf, varu64.Encode(s.LogID)...)
	return buf
}

func decodeSpecKey(b []byte) (Spec, error) {
	if len(b) < 1 {
		return Spec{}, errors.New("clump: truncated metadata key")
	}
	kind := SpecKind(b[0])
	b = b[1:]
	i := bytes.IndexByte(b, 0)
	if i < 0 {
		return Spec{}, errors.New("clump: malformed metadata key")
	}
	author := string(b[:i])
	logID, _, err := varu64.Decode(b[i+1:])
	if err != nil {
		return Spec{}, errors.Wrap(err, "decoding metadata key log ID")
	}
	return Spec{Kind: kind, AuthorB62: author, LogID: logID}, nil
}

var metadataBucket = []byte("blocks")

type boltBackend struct {
	db *bolt.DB
}

func newBoltBackend(path string) (*boltBackend, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "opening bbolt db %s", path)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(metadataBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "creating blocks bucket")
	}
	return &boltBackend{db: db}, nil
}

func (b *boltBackend) load() (map[Spec]bool, error) {
	specs := make(map[Spec]bool)
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(metadataBucket).ForEach(func(k, _ []byte) error {
			spec, err := decodeSpecKey(k)
			if err != nil {
				return err
			}
			specs[spec] = true
			return nil
		})
	})
	return specs, err
}

func (b *boltBackend) put(k Spec) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(metadataBucket).Put(encodeSpecKey(k), []byte{1})
	})
}

func (b *boltBackend) delete(k Spec) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(metadataBucket).Delete(encodeSpecKey(k))
	})
}

func (b *boltBackend) close() error { return b.db.Close() }
