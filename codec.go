package baobab

import (
	"github.com/pkg/errors"

	"github.com/mwmiller/baobab/lipmaa"
	"github.com/mwmiller/baobab/varu64"
	"github.com/mwmiller/baobab/yamfhash"
)

// hashPayload computes the yamf-hash an entry's PayloadHash field must
// carry for the given payload bytes.
func hashPayload(payload []byte) yamfhash.Hash {
	return yamfhash.Create(payload)
}

// NeedsBacklink reports whether an entry at seqnum must carry a
// backlink. Only the first entry in a log (seqnum 1) has none.
func NeedsBacklink(seqnum uint64) bool { return seqnum > 1 }

// NeedsLipmaalink reports whether an entry at seqnum must carry a
// lipmaalink distinct from its backlink. When the lipmaa-linked
// position and the backlink position coincide, the format omits the
// redundant field.
func NeedsLipmaalink(seqnum uint64) bool {
	return seqnum > 1 && lipmaa.Linkseq(seqnum) != seqnum-1
}

// EncodePreamble encodes everything that gets signed: the entry's
// header fields up to and including the payload hash, but not the
// signature or the payload itself. A link that is absent contributes
// no bytes.
func EncodePreamble(e Entry) []byte {
	buf := make([]byte, 0, 256)
	buf = append(buf, e.Tag)
	buf = append(buf, e.Author[:]...)
	buf = append(buf, varu64.Encode(e.LogID)...)
	buf = append(buf, varu64.Encode(e.Seqnum)...)
	if NeedsLipmaalink(e.Seqnum) && e.Lipmaalink.Present() {
		h := e.Lipmaalink.Hash()
		buf = append(buf, h.Bytes()...)
	}
	if NeedsBacklink(e.Seqnum) && e.Backlink.Present() {
		h := e.Backlink.Hash()
		buf = append(buf, h.Bytes()...)
	}
	buf = append(buf, varu64.Encode(e.Size)...)
	buf = append(buf, e.PayloadHash.Bytes()...)
	return buf
}

// EncodeFullSansPayload encodes e's preamble followed by its
// signature, omitting the payload: the bytes a backlink or lipmaalink
// hashes against, per the "hash of the previous entry's stored bytes"
// rule.
func EncodeFullSansPayload(e Entry) []byte {
	buf := EncodePreamble(e)
	buf = append(buf, e.Sig[:]...)
	return buf
}

// EncodeFull encodes e's preamble, signature, and payload in that
// order: the wire format for a stored or transmitted entry, and the
// unit a ".bamboo.log" file concatenates. If e.Payload is nil (not
// loaded or transported), the payload is simply omitted from the
// output.
func EncodeFull(e Entry) []byte {
	buf := EncodeFullSansPayload(e)
	buf = append(buf, e.Payload...)
	return buf
}

// Decode parses one entry's full encoding from the front of b,
// returning the decoded entry and the unconsumed remainder of b. After
// the preamble and signature, it consumes e.Size bytes as the payload
// if at least that many remain; if none remain at all, the payload is
// left absent so a caller can lazily load it from the content store.
func Decode(b []byte) (Entry, []byte, error) {
	var e Entry

	if len(b) < 1 {
		return e, b, ErrTruncated
	}
	e.Tag = b[0]
	if e.Tag != entryTag {
		return e, b, ErrBadTag
	}
	b = b[1:]

	if len(b) < len(e.Author) {
		return e, b, ErrTruncated
	}
	copy(e.Author[:], b[:len(e.Author)])
	b = b[len(e.Author):]

	var err error
	e.LogID, b, err = varu64.Decode(b)
	if err != nil {
		return e, b, err
	}
	e.Seqnum, b, err = varu64.Decode(b)
	if err != nil {
		return e, b, err
	}

	if NeedsLipmaalink(e.Seqnum) {
		if len(b) < yamfhash.Size {
			return e, b, ErrTruncated
		}
		h, err := yamfhash.FromBytes(b[:yamfhash.Size])
		if err != nil {
			return e, b, err
		}
		e.Lipmaalink = NewLink(h)
		b = b[yamfhash.Size:]
	}

	if NeedsBacklink(e.Seqnum) {
		if len(b) < yamfhash.Size {
			return e, b, ErrTruncated
		}
		h, err := yamfhash.FromBytes(b[:yamfhash.Size])
		if err != nil {
			return e, b, err
		}
		e.Backlink = NewLink(h)
		b = b[yamfhash.Size:]
	}

	e.Size, b, err = varu64.Decode(b)
	if err != nil {
		return e, b, err
	}

	if len(b) < yamfhash.Size {
		return e, b, ErrTruncated
	}
	e.PayloadHash, err = yamfhash.FromBytes(b[:yamfhash.Size])
	if err != nil {
		return e, b, err
	}
	b = b[yamfhash.Size:]

	if len(b) < len(e.Sig) {
		return e, b, ErrTruncated
	}
	copy(e.Sig[:], b[:len(e.Sig)])
	b = b[len(e.Sig):]

	if len(b) == 0 {
		// No payload transported; leave it absent for a caller to load
		// separately, per the preamble-only exchange case.
		return e, b, nil
	}
	if uint64(len(b)) < e.Size {
		return e, b, ErrTruncated
	}
	e.Payload = append([]byte(nil), b[:e.Size]...)
	b = b[e.Size:]

	return e, b, nil
}

// StreamError is returned by DecodeStream when decoding fails partway
// through a run of entries. Entries decoded successfully before the
// failure are preserved so a caller can decide whether a partial
// result is usable.
type StreamError struct {
	Entries []Entry
	Err     error
}

func (e *StreamError) Error() string { return e.Err.Error() }
func (e *StreamError) Unwrap() error { return e.Err }

// DecodeStream repeatedly decodes full entries from b until it is
// exhausted, the format a concatenated ".bamboo.log" file uses.
func DecodeStream(b []byte) ([]Entry, error) {
	var entries []Entry
	for len(b) > 0 {
		e, rest, err := Decode(b)
		if err != nil {
			return entries, &StreamError{Entries: entries, Err: errors.Wrap(ErrBadBinary, err.Error())}
		}
		entries = append(entries, e)
		b = rest
	}
	return entries, nil
}
