package validate

import (
	"context"
	"errors"
	"testing"

	"github.com/mwmiller/baobab"
	"github.com/mwmiller/baobab/ed25519sig"
	"github.com/mwmiller/baobab/lipmaa"
	"github.com/mwmiller/baobab/yamfhash"
)

// fakeFetcher is a minimal in-memory EntryFetcher for one (author, logID).
type fakeFetcher struct {
	entries map[uint64]baobab.Entry
}

func newFakeFetcher() *fakeFetcher { return &fakeFetcher{entries: make(map[uint64]baobab.Entry)} }

func (f *fakeFetcher) FetchEntry(_ context.Context, _ baobab.Author, _ uint64, seqnum uint64) (baobab.Entry, bool, error) {
	e, ok := f.entries[seqnum]
	return e, ok, nil
}

func (f *fakeFetcher) MaxSeqnum(_ context.Context, _ baobab.Author, _ uint64) (uint64, bool, error) {
	var max uint64
	var found bool
	for sn := range f.entries {
		if !found || sn > max {
			max, found = sn, true
		}
	}
	return max, found, nil
}

type chain struct {
	author baobab.Author
	seed   []byte
	pub    []byte
	f      *fakeFetcher
}

func newChain(t *testing.T) *chain {
	t.Helper()
	seed, err := ed25519sig.GenerateSeed()
	if err != nil {
		t.Fatal(err)
	}
	pub, err := ed25519sig.DerivePublic(seed)
	if err != nil {
		t.Fatal(err)
	}
	var author baobab.Author
	copy(author[:], pub)
	return &chain{author: author, seed: seed, pub: pub, f: newFakeFetcher()}
}

// append signs and stores the next entry in sequence, computing its
// links from what's already in c.f exactly like a real log engine
// would.
func (c *chain) append(t *testing.T, payload []byte) baobab.Entry {
	t.Helper()
	seqnum := uint64(len(c.f.entries) + 1)

	e := baobab.Entry{
		Tag:     0,
		Author:  c.author,
		LogID:   0,
		Seqnum:  seqnum,
		Payload: payload,
	}

	if seqnum > 1 {
		prev := c.f.entries[seqnum-1]
		e.Backlink = baobab.NewLink(yamfhash.Create(baobab.EncodeFullSansPayload(prev)))

		if n := lipmaa.Linkseq(seqnum); n != seqnum-1 {
			target := c.f.entries[n]
			e.Lipmaalink = baobab.NewLink(yamfhash.Create(baobab.EncodeFullSansPayload(target)))
		}
	}

	signed, err := baobab.Sign(e, c.seed, c.pub)
	if err != nil {
		t.Fatal(err)
	}
	c.f.entries[seqnum] = signed
	return signed
}

func TestValidateAcceptsWellFormedChain(t *testing.T) {
	ctx := context.Background()
	c := newChain(t)
	var last baobab.Entry
	for i := 0; i < 14; i++ {
		last = c.append(t, []byte("entry"))
	}
	if _, err := Validate(ctx, last, c.f); err != nil {
		t.Fatalf("valid chain rejected: %s", err)
	}
}

func TestValidateRejectsTamperedPayload(t *testing.T) {
	ctx := context.Background()
	c := newChain(t)
	e := c.append(t, []byte("hello"))
	e.Payload = []byte("tampered")
	// The signature covers payload_hash, not payload itself, so a
	// tampered payload with the original payload_hash fails step 2
	// (payload hash), not step 1 (signature).
	if _, err := Validate(ctx, e, c.f); !errors.Is(err, ErrInvalidPayloadHash) {
		t.Errorf("got %v, want ErrInvalidPayloadHash", err)
	}
}

func TestValidateRejectsTamperedSignature(t *testing.T) {
	ctx := context.Background()
	c := newChain(t)
	e := c.append(t, []byte("hello"))
	e.Author[0] ^= 0xff
	if _, err := Validate(ctx, e, c.f); !errors.Is(err, ErrInvalidSig) {
		t.Errorf("got %v, want ErrInvalidSig", err)
	}
}

func TestValidateToleratesAbsentBacklinkTargetButNeedsLipmaaSpine(t *testing.T) {
	ctx := context.Background()
	c := newChain(t)
	for i := 0; i < 4; i++ {
		c.append(t, []byte("x"))
	}
	fourth := c.f.entries[4]

	partial := newFakeFetcher()
	partial.entries[4] = fourth
	// seqnum 3 (the immediate backlink target) is missing, and so is
	// the lipmaa spine target (seqnum 1) for seqnum 4, so this must
	// fail on the lipmaa check rather than silently passing.
	if _, err := Validate(ctx, fourth, partial); !errors.Is(err, ErrMissingLipmaa) {
		t.Errorf("got %v, want ErrMissingLipmaa", err)
	}
}

func TestValidateMissingBacklinkField(t *testing.T) {
	ctx := context.Background()
	c := newChain(t)
	c.append(t, []byte("first"))

	e := baobab.Entry{Author: c.author, Seqnum: 2, Payload: []byte("x")}
	e, err := baobab.Sign(e, c.seed, c.pub)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Validate(ctx, e, c.f); !errors.Is(err, ErrMissingBacklink) {
		t.Errorf("got %v, want ErrMissingBacklink", err)
	}
}

func TestValidateSkipsPayloadHashWhenPayloadAbsent(t *testing.T) {
	ctx := context.Background()
	c := newChain(t)
	e := c.append(t, []byte("hello"))
	e.Payload = nil
	if _, err := Validate(ctx, e, c.f); err != nil {
		t.Errorf("preamble-only entry should validate without its payload: %s", err)
	}
}
