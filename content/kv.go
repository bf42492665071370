// Package content defines the storage interface Bamboo logs are kept in,
// and a registry of pluggable backend implementations, mirroring the
// factory-registration pattern the teacher's store package uses for its
// blob stores. Unlike a content-addressed blob store, Bamboo entries
// are keyed by (author, log ID, seqnum) rather than by hash: an
// author's log is an ordered sequence, not a content-addressed set, so
// the Key here carries structure a plain Ref does not.
package content

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/mwmiller/baobab"
)

// Key identifies one entry's position within one author's log.
type Key struct {
	Author baobab.Author
	LogID  uint64
	Seqnum uint64
}

// keyLen is the width of a Key's fixed-width binary encoding: a 32-byte
// author, an 8-byte big-endian log ID, and an 8-byte big-endian
// seqnum. Big-endian integers keep lexicographic byte order consistent
// with numeric order, which every backend here relies on for range
// scans.
const keyLen = 32 + 8 + 8

// Bytes returns k's fixed-width binary encoding, ordered first by
// author, then log ID, then seqnum.
func (k Key) Bytes() []byte {
	buf := make([]byte, keyLen)
	copy(buf[:32], k.Author[:])
	binary.BigEndian.PutUint64(buf[32:40], k.LogID)
	binary.BigEndian.PutUint64(buf[40:48], k.Seqnum)
	return buf
}

// KeyFromBytes parses a Key encoded by Bytes.
func KeyFromBytes(b []byte) (Key, error) {
	var k Key
	if len(b) != keyLen {
		return k, fmt.Errorf("content: bad key length %d, want %d", len(b), keyLen)
	}
	copy(k.Author[:], b[:32])
	k.LogID = binary.BigEndian.Uint64(b[32:40])
	k.Seqnum = binary.BigEndian.Uint64(b[40:48])
	return k, nil
}

// LogPrefix returns the byte prefix shared by every Key belonging to
// the log identified by (author, logID), for backends that scan by
// prefix.
func LogPrefix(author baobab.Author, logID uint64) []byte {
	buf := make([]byte, 40)
	copy(buf[:32], author[:])
	binary.BigEndian.PutUint64(buf[32:40], logID)
	return buf
}

// LogRef names one author's log, without a seqnum.
type LogRef struct {
	Author baobab.Author
	LogID  uint64
}

// KV is the storage interface every backend implements: entries keyed
// by (author, log ID, seqnum), plus enough range and enumeration
// support for the log-level operations built on top of it.
type KV interface {
	// Get retrieves the entry at key, or ok=false if absent.
	Get(ctx context.Context, key Key) (e baobab.Entry, ok bool, err error)

	// Put stores e at key, inserting or replacing whatever was there.
	// added reports whether the key was not previously present;
	// callers that need insert-if-absent semantics (e.g. a replace=false
	// import) must check Get first and skip the call themselves.
	Put(ctx context.Context, key Key, e baobab.Entry) (added bool, err error)

	// Delete removes the entry at key, if any. Deleting an absent key
	// is not an error.
	Delete(ctx context.Context, key Key) error

	// Range calls f for every stored entry in (author, logID) with
	// seqnum in [from, to] inclusive, in increasing seqnum order. A to
	// of 0 means "no upper bound".
	Range(ctx context.Context, author baobab.Author, logID uint64, from, to uint64, f func(baobab.Entry) error) error

	// MaxSeqnum returns the highest seqnum stored for (author, logID),
	// or ok=false if the log is empty.
	MaxSeqnum(ctx context.Context, author baobab.Author, logID uint64) (seqnum uint64, ok bool, err error)

	// Logs enumerates every (author, logID) pair with at least one
	// stored entry.
	Logs(ctx context.Context, f func(LogRef) error) error
}

// Factory constructs a KV from a JSON-decoded configuration map, the
// same convention the teacher's store.Factory uses.
type Factory func(ctx context.Context, conf map[string]interface{}) (KV, error)

var registry = make(map[string]Factory)

// Register associates a backend name with a Factory. Backend packages
// call this from an init function.
func Register(name string, f Factory) {
	registry[name] = f
}

// Create builds the named backend using conf.
func Create(ctx context.Context, name string, conf map[string]interface{}) (KV, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("content: backend %q not registered", name)
	}
	return f(ctx, conf)
}
