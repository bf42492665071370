package baobab

import (
	"bytes"
	"errors"
	"testing"

	"github.com/mwmiller/baobab/ed25519sig"
)

func mustAuthor(t *testing.T) (Author, []byte) {
	t.Helper()
	seed, err := ed25519sig.GenerateSeed()
	if err != nil {
		t.Fatal(err)
	}
	pub, err := ed25519sig.DerivePublic(seed)
	if err != nil {
		t.Fatal(err)
	}
	var a Author
	copy(a[:], pub)
	return a, seed
}

func signedEntry(t *testing.T, seqnum uint64, backlink, lipmaalink Link, payload []byte) Entry {
	t.Helper()
	author, seed := mustAuthor(t)
	pub := author[:]
	e := Entry{
		Tag:        entryTag,
		Author:     author,
		LogID:      0,
		Seqnum:     seqnum,
		Backlink:   backlink,
		Lipmaalink: lipmaalink,
		Payload:    payload,
	}
	signed, err := Sign(e, seed, pub)
	if err != nil {
		t.Fatal(err)
	}
	return signed
}

func TestEncodeDecodeRoundTripFirstEntry(t *testing.T) {
	e := signedEntry(t, 1, AbsentLink, AbsentLink, []byte("genesis"))

	encoded := EncodeFull(e)
	if want := len(EncodeFullSansPayload(e)) + len(e.Payload); len(encoded) != want {
		t.Fatalf("EncodeFull length = %d, want %d (sans-payload + payload)", len(encoded), want)
	}
	got, rest, err := Decode(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if len(rest) != 0 {
		t.Errorf("unexpected leftover bytes: %d", len(rest))
	}
	if string(got.Payload) != "genesis" {
		t.Errorf("decoded payload = %q, want %q", got.Payload, "genesis")
	}
	if got.Seqnum != 1 || got.Backlink.Present() || got.Lipmaalink.Present() {
		t.Errorf("first entry must have no links, got backlink=%v lipmaalink=%v",
			got.Backlink.Present(), got.Lipmaalink.Present())
	}
	if !VerifySignature(got) {
		t.Error("decoded entry failed signature verification")
	}
}

func TestEncodeDecodeRoundTripWithBothLinks(t *testing.T) {
	// seqnum 8's lipmaalink target (5) differs from its backlink target
	// (7), so both fields are present on the wire.
	backHash := hashPayload([]byte("back"))
	lipHash := hashPayload([]byte("lip"))
	e := signedEntry(t, 8, NewLink(backHash), NewLink(lipHash), []byte("eighth"))

	encoded := EncodeFull(e)
	got, rest, err := Decode(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if len(rest) != 0 {
		t.Errorf("unexpected leftover bytes: %d", len(rest))
	}
	if !got.Backlink.Present() || !got.Lipmaalink.Present() {
		t.Fatal("expected both links present at seqnum 8")
	}
	if got.Backlink.Hash() != backHash {
		t.Error("backlink hash mismatch after round trip")
	}
	if got.Lipmaalink.Hash() != lipHash {
		t.Error("lipmaalink hash mismatch after round trip")
	}
	if !VerifySignature(got) {
		t.Error("decoded entry failed signature verification")
	}
}

func TestEncodeDecodeOmitsRedundantLipmaalink(t *testing.T) {
	// seqnum 2's lipmaalink target (1) coincides with its backlink
	// target (1), so the format omits the lipmaalink field entirely.
	backHash := hashPayload([]byte("only-link"))
	e := signedEntry(t, 2, NewLink(backHash), AbsentLink, []byte("second"))

	encoded := EncodeFull(e)
	got, _, err := Decode(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if got.Lipmaalink.Present() {
		t.Error("expected lipmaalink to be absent when it duplicates the backlink")
	}
	if !got.Backlink.Present() {
		t.Error("expected backlink to be present at seqnum 2")
	}
}

func TestDecodePreambleOnlyLeavesPayloadAbsent(t *testing.T) {
	e := signedEntry(t, 1, AbsentLink, AbsentLink, []byte("genesis"))

	got, rest, err := Decode(EncodeFullSansPayload(e))
	if err != nil {
		t.Fatal(err)
	}
	if len(rest) != 0 {
		t.Errorf("unexpected leftover bytes: %d", len(rest))
	}
	if got.HasPayload() {
		t.Error("decoding a sans-payload encoding should leave Payload absent")
	}
}

func TestDecodeRejectsTruncatedInput(t *testing.T) {
	e := signedEntry(t, 1, AbsentLink, AbsentLink, []byte("xyz"))
	encoded := EncodeFull(e)
	sansPayload := len(EncodeFullSansPayload(e))

	for cut := 0; cut < len(encoded); cut++ {
		_, _, err := Decode(encoded[:cut])
		if cut == sansPayload {
			// Dropping the payload entirely leaves zero bytes remaining
			// after the signature, which decodes as a valid preamble-only
			// entry rather than a truncation error.
			if err != nil {
				t.Errorf("cut=%d: unexpected error for a preamble-only decode: %s", cut, err)
			}
			continue
		}
		if err == nil {
			t.Errorf("cut=%d: expected error decoding truncated input", cut)
		}
	}
}

func TestDecodeRejectsBadTag(t *testing.T) {
	e := signedEntry(t, 1, AbsentLink, AbsentLink, []byte("x"))
	encoded := EncodeFull(e)
	encoded[0] = 0xff

	if _, _, err := Decode(encoded); err == nil {
		t.Error("expected error for unrecognized tag byte")
	}
}

func TestDecodeStreamMultipleEntries(t *testing.T) {
	e1 := signedEntry(t, 1, AbsentLink, AbsentLink, []byte("one"))
	backHash := hashPayload([]byte("one"))
	e2 := signedEntry(t, 2, NewLink(backHash), AbsentLink, []byte("two"))

	var buf bytes.Buffer
	buf.Write(EncodeFull(e1))
	buf.Write(EncodeFull(e2))

	entries, err := DecodeStream(buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Seqnum != 1 || entries[1].Seqnum != 2 {
		t.Errorf("unexpected seqnums: %d, %d", entries[0].Seqnum, entries[1].Seqnum)
	}
}

func TestDecodeStreamReturnsPartialResultsOnFailure(t *testing.T) {
	e1 := signedEntry(t, 1, AbsentLink, AbsentLink, []byte("one"))

	var buf bytes.Buffer
	buf.Write(EncodeFull(e1))
	buf.Write([]byte{entryTag, 0x01, 0x02}) // truncated second entry

	_, err := DecodeStream(buf.Bytes())
	if err == nil {
		t.Fatal("expected error decoding stream with truncated tail entry")
	}
	streamErr, ok := err.(*StreamError)
	if !ok {
		t.Fatalf("got error type %T, want *StreamError", err)
	}
	if len(streamErr.Entries) != 1 {
		t.Errorf("got %d recovered entries, want 1", len(streamErr.Entries))
	}
	if !errors.Is(streamErr, ErrBadBinary) {
		t.Errorf("expected StreamError to wrap ErrBadBinary, got %s", streamErr)
	}
}

func TestSignRejectsEntryWithoutPayload(t *testing.T) {
	author, seed := mustAuthor(t)
	e := Entry{Tag: entryTag, Author: author, Seqnum: 1}
	if _, err := Sign(e, seed, author[:]); err == nil {
		t.Error("expected error signing an entry with a nil payload")
	}
}
