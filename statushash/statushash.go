// Package statushash computes the cheap change-token digest a clump
// exposes for its content and identity tables, so callers can detect
// "did anything change" without diffing the tables themselves.
package statushash

import (
	"sync"

	"golang.org/x/crypto/blake2b"

	"github.com/mwmiller/baobab/base62"
)

// digestLen is widened from the 7 bytes the source format used (see
// the Open Question this resolves): it remains a cheap change token,
// never a content identifier, so birthday-attack safety at 7 bytes was
// never actually load-bearing, but 12 bytes costs nothing and reads
// less alarming in an export bundle.
const digestLen = 12

// Table accumulates a digest over a set of records, independent of
// the order records were added or removed: it XORs each record's own
// blake2b digest into a running accumulator. Toggling the same
// fingerprint twice (once on insert, once on delete) restores the
// accumulator to what it was before the pair, which is what makes
// "export, wipe, reimport" reproduce the original digest regardless
// of scan order.
type Table struct {
	mu  sync.Mutex
	acc [32]byte
}

// New returns an empty Table.
func New() *Table {
	return &Table{}
}

// Toggle records that fingerprint's presence changed (added or
// removed). Calling Toggle twice with the same fingerprint is a
// no-op overall.
func (t *Table) Toggle(fingerprint []byte) {
	h := blake2b.Sum256(fingerprint)
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.acc {
		t.acc[i] ^= h[i]
	}
}

// Current returns the table's current digest, base62-encoded.
func (t *Table) Current() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return base62.Encode(t.acc[:digestLen])
}
