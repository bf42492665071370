package baobab

import (
	"github.com/mwmiller/baobab/ed25519sig"
	"github.com/pkg/errors"
)

// Sign computes e's payload hash, size, and signature from seed and
// public, and fills them into a copy of e which it returns. Callers
// must set Tag, Author, LogID, Seqnum, Backlink, and Lipmaalink (per
// NeedsBacklink/NeedsLipmaalink) and Payload before calling Sign.
func Sign(e Entry, seed, public []byte) (Entry, error) {
	if e.Payload == nil {
		return e, errors.New("baobab: cannot sign an entry with no payload")
	}
	e.Size = uint64(len(e.Payload))
	e.PayloadHash = hashPayload(e.Payload)

	preamble := EncodePreamble(e)
	sig, err := ed25519sig.Sign(seed, public, preamble)
	if err != nil {
		return e, errors.Wrap(err, "signing entry")
	}
	copy(e.Sig[:], sig)
	return e, nil
}

// VerifySignature checks e's signature over its own preamble against
// e.Author, treating e.Author as the Ed25519 public key. It does not
// check the payload hash, backlink, lipmaalink, or certificate chain;
// package validate composes those checks.
func VerifySignature(e Entry) bool {
	preamble := EncodePreamble(e)
	return ed25519sig.Verify(e.Sig[:], preamble, e.Author[:])
}
