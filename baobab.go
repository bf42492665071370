// Package baobab implements the Bamboo append-only log entry format: its
// binary encoding, and the shared types every other package in this
// module builds on.
//
// A Bamboo log is a hash-chained, Ed25519-signed sequence of entries
// authored by a single keypair. This package only concerns itself with
// one entry at a time -- encoding, decoding, and the vocabulary
// (Author, Link, Entry) the rest of the module shares. Validation
// (package validate), persistence (package content), and the log-level
// operations (package logengine) live elsewhere, mirroring how the
// teacher separates its blob codec from its store implementations.
package baobab

import (
	"github.com/mwmiller/baobab/yamfhash"
)

// Author is an Ed25519 public key: the identity a log belongs to.
type Author [32]byte

// Link is a Bamboo backlink or lipmaalink field: either present, giving
// the yamf-hash of an earlier entry, or absent. Using a sum type here
// rather than a nullable hash makes the seqnum-driven presence
// invariants checkable at construction instead of by convention.
type Link struct {
	hash    yamfhash.Hash
	present bool
}

// AbsentLink is the zero value of Link.
var AbsentLink Link

// NewLink wraps a yamf-hash as a present Link.
func NewLink(h yamfhash.Hash) Link {
	return Link{hash: h, present: true}
}

// Present reports whether the link carries a hash.
func (l Link) Present() bool { return l.present }

// Hash returns the link's yamf-hash. It panics if the link is absent;
// callers must check Present first.
func (l Link) Hash() yamfhash.Hash {
	if !l.present {
		panic("baobab: Hash called on an absent Link")
	}
	return l.hash
}

// Entry is one signed record in a Bamboo log.
type Entry struct {
	Tag         byte
	Author      Author
	LogID       uint64
	Seqnum      uint64
	Lipmaalink  Link
	Backlink    Link
	Size        uint64
	PayloadHash yamfhash.Hash
	Sig         [64]byte

	// Payload holds the entry's payload bytes when available. A nil
	// Payload means the payload has not been loaded or transported,
	// distinct from an empty-but-present payload ([]byte{}).
	Payload []byte
}

// HasPayload reports whether e carries payload bytes.
func (e Entry) HasPayload() bool { return e.Payload != nil }
