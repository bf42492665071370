// Package identity implements the identity store: named keypairs an
// engine can sign log entries with.
//
// Storage is a single alias -> (secret, public) table, small enough
// that it does not need the content package's registry-of-backends
// treatment; a Store wraps either an in-memory map or a bbolt bucket,
// mirroring the teacher's habit of giving small auxiliary stores their
// own minimal persistence rather than routing everything through the
// general blob-store abstraction.
package identity

import (
	"context"
	"crypto/rand"
	"sort"
	"sync"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"github.com/mwmiller/baobab/base62"
	"github.com/mwmiller/baobab/ed25519sig"
)

// Errors returned by Store operations.
var (
	ErrBadArgs        = errors.New("identity: bad arguments")
	ErrBadBase62      = errors.New("identity: bad base62 secret or public key")
	ErrNoSuchIdentity = errors.New("identity: no such identity")
	ErrUnknownRef     = errors.New("identity: unresolved or ambiguous reference")
)

// Which selects the key material Key returns.
type Which int

const (
	Public Which = iota
	Secret
	Signing
)

// Entry is one row of List's result.
type Entry struct {
	Alias     string
	PublicB62 string
}

const recordLen = 64 // 32-byte secret ‖ 32-byte public

type backend interface {
	get(alias string) ([]byte, bool, error)
	put(alias string, record []byte) error
	delete(alias string) error
	forEach(f func(alias string, record []byte) error) error
}

// Store is the identity store.
type Store struct {
	mu sync.Mutex
	b  backend
}

// NewMem returns an in-memory Store, the default for tests.
func NewMem() *Store {
	return &Store{b: newMemBackend()}
}

// Open opens (creating if necessary) a bbolt-backed Store at path,
// conventionally named "identity.dets".
func Open(path string) (*Store, error) {
	b, err := newBoltBackend(path)
	if err != nil {
		return nil, err
	}
	return &Store{b: b}, nil
}

// Close releases any resources the backend holds (a no-op for the
// in-memory backend).
func (s *Store) Close() error {
	if c, ok := s.b.(interface{ close() error }); ok {
		return c.close()
	}
	return nil
}

// Create adds or overwrites the identity named alias. secret may be
// nil, in which case 32 random bytes are drawn from crypto/rand;
// otherwise it must be exactly 32 bytes. It returns the base62
// encoding of the derived public key.
func (s *Store) Create(alias string, secret []byte) (string, error) {
	if alias == "" {
		return "", errors.Wrap(ErrBadArgs, "empty alias")
	}
	if secret == nil {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return "", errors.Wrap(err, "generating random secret")
		}
	}
	if len(secret) != 32 {
		return "", errors.Wrapf(ErrBadArgs, "secret must be 32 bytes, got %d", len(secret))
	}

	public, err := derivePublic(secret)
	if err != nil {
		return "", err
	}

	record := make([]byte, recordLen)
	copy(record[:32], secret)
	copy(record[32:], public)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.b.put(alias, record); err != nil {
		return "", err
	}
	return base62.Encode(public), nil
}

// ParseSecretArg interprets a CLI-supplied secret argument: an empty
// string means "generate", a 43-character string is decoded as
// base62, and anything else of length 32 is used as raw bytes.
func ParseSecretArg(arg string) ([]byte, error) {
	switch {
	case arg == "":
		return nil, nil
	case len(arg) == base62.EncodedLen32:
		b, err := base62.Decode(arg)
		if err != nil {
			return nil, errors.Wrap(ErrBadBase62, err.Error())
		}
		return b, nil
	case len(arg) == 32:
		return []byte(arg), nil
	default:
		return nil, errors.Wrapf(ErrBadArgs, "secret must be empty, 32 raw bytes, or %d-char base62", base62.EncodedLen32)
	}
}

// Rename changes an identity's alias, preserving its keys. It returns
// the base62 public key.
func (s *Store) Rename(oldAlias, newAlias string) (string, error) {
	if newAlias == "" {
		return "", errors.Wrap(ErrBadArgs, "empty new alias")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok, err := s.b.get(oldAlias)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errors.Wrapf(ErrNoSuchIdentity, "alias %q", oldAlias)
	}
	if err := s.b.put(newAlias, record); err != nil {
		return "", err
	}
	if err := s.b.delete(oldAlias); err != nil {
		return "", err
	}
	return base62.Encode(record[32:]), nil
}

// Drop removes an identity, destroying its secret key.
func (s *Store) Drop(alias string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok, err := s.b.get(alias)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Wrapf(ErrNoSuchIdentity, "alias %q", alias)
	}
	return s.b.delete(alias)
}

// List returns every identity, ordered by alias.
func (s *Store) List() ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var entries []Entry
	err := s.b.forEach(func(alias string, record []byte) error {
		entries = append(entries, Entry{Alias: alias, PublicB62: base62.Encode(record[32:])})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Alias < entries[j].Alias })
	return entries, nil
}

// Key returns the requested key material for alias.
func (s *Store) Key(alias string, which Which) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok, err := s.b.get(alias)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Wrapf(ErrNoSuchIdentity, "alias %q", alias)
	}

	switch which {
	case Secret:
		return append([]byte(nil), record[:32]...), nil
	case Public:
		return append([]byte(nil), record[32:]...), nil
	case Signing:
		return append([]byte(nil), record...), nil
	default:
		return nil, errors.Wrap(ErrBadArgs, "unknown key selector")
	}
}

// AuthorSource resolves a "~prefix" reference against the base62
// public keys currently known to the Content Store, per the
// resolution rule in AsBase62: prefix search happens against authors
// that have stored entries, not against identity aliases.
type AuthorSource interface {
	AuthorsWithPrefix(ctx context.Context, prefix string) ([]string, error)
}

// AsBase62 resolves ref to a 43-character base62 public key using the
// rules: a "~"-prefixed ref is a unique-prefix search over authors,
// a 43-character ref is assumed already base62, a 32-byte ref is
// assumed a raw public key, and anything else is looked up as an
// alias.
func (s *Store) AsBase62(ctx context.Context, ref string, authors AuthorSource) (string, error) {
	switch {
	case len(ref) > 0 && ref[0] == '~':
		matches, err := authors.AuthorsWithPrefix(ctx, ref[1:])
		if err != nil {
			return "", err
		}
		if len(matches) != 1 {
			return "", errors.Wrapf(ErrUnknownRef, "prefix %q matched %d authors", ref[1:], len(matches))
		}
		return matches[0], nil
	case len(ref) == base62.EncodedLen32:
		return ref, nil
	case len(ref) == 32:
		return base62.Encode([]byte(ref)), nil
	default:
		record, ok, err := s.b.get(ref)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", errors.Wrapf(ErrNoSuchIdentity, "alias %q", ref)
		}
		return base62.Encode(record[32:]), nil
	}
}

func derivePublic(secret []byte) ([]byte, error) {
	return ed25519sig.DerivePublic(secret)
}

func newMemBackend() backend { return &memBackend{records: make(map[string][]byte)} }

type memBackend struct {
	mu      sync.Mutex
	records map[string][]byte
}

func (m *memBackend) get(alias string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[alias]
	return r, ok, nil
}

func (m *memBackend) put(alias string, record []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[alias] = record
	return nil
}

func (m *memBackend) delete(alias string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, alias)
	return nil
}

func (m *memBackend) forEach(f func(alias string, record []byte) error) error {
	m.mu.Lock()
	aliases := make([]string, 0, len(m.records))
	for a := range m.records {
		aliases = append(aliases, a)
	}
	m.mu.Unlock()

	for _, a := range aliases {
		m.mu.Lock()
		r := m.records[a]
		m.mu.Unlock()
		if err := f(a, r); err != nil {
			return err
		}
	}
	return nil
}

var identitiesBucket = []byte("identities")

type boltBackend struct {
	db *bolt.DB
}

func newBoltBackend(path string) (*boltBackend, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "opening bbolt db %s", path)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(identitiesBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "creating identities bucket")
	}
	return &boltBackend{db: db}, nil
}

func (b *boltBackend) close() error { return b.db.Close() }

func (b *boltBackend) get(alias string) ([]byte, bool, error) {
	var record []byte
	var found bool
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(identitiesBucket).Get([]byte(alias))
		if v != nil {
			found = true
			record = append([]byte(nil), v...)
		}
		return nil
	})
	return record, found, err
}

func (b *boltBackend) put(alias string, record []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(identitiesBucket).Put([]byte(alias), record)
	})
}

func (b *boltBackend) delete(alias string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(identitiesBucket).Delete([]byte(alias))
	})
}

func (b *boltBackend) forEach(f func(alias string, record []byte) error) error {
	return b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(identitiesBucket).ForEach(func(k, v []byte) error {
			return f(string(k), v)
		})
	})
}
