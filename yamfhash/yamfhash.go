// Package yamfhash implements yamf-hash, the self-describing multihash
// container Bamboo uses for payload, backlink, and lipmaalink digests.
//
// A yamf-hash is a type byte, a length byte, and the digest itself. This
// package only implements the one type Bamboo actually uses -- BLAKE2b
// with a 64-byte (512-bit) digest, which is exactly what makes a
// yamf-hash 66 bytes long (1 + 1 + 64). BLAKE2b comes from
// golang.org/x/crypto/blake2b, the same package family the
// bitmark-inc-bitmarkd and bureau-foundation-bureau repos in the
// reference pack pull golang.org/x/crypto for.
package yamfhash

import (
	"crypto/subtle"

	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
)

// Size is the length of a yamf-hash: 1 type byte, 1 length byte, and a
// 64-byte BLAKE2b-512 digest.
const Size = 66

// Blake2bType is the yamf-hash type code for BLAKE2b with a 64-byte
// digest, the only algorithm Bamboo uses.
const Blake2bType = 0x00

// digestLen is the declared length byte for a 64-byte digest.
const digestLen = 64

// Hash is a decoded yamf-hash.
type Hash [Size]byte

// Zero is the zero value of a Hash; it never occurs as a real digest.
// The codec marks an absent link with baobab.Link, not with Zero.
var Zero Hash

// IsZero reports whether h is the zero value.
func (h Hash) IsZero() bool { return h == Zero }

// Bytes returns the raw 66-byte encoding of h.
func (h Hash) Bytes() []byte { return h[:] }

// ErrBadYamfHash is returned when decoding bytes that are not a
// well-formed yamf-hash of the supported type.
var ErrBadYamfHash = errors.New("yamfhash: malformed or unsupported hash")

// Create computes the yamf-hash of msg.
func Create(msg []byte) Hash {
	digest := blake2b.Sum512(msg)
	var h Hash
	h[0] = Blake2bType
	h[1] = digestLen
	copy(h[2:], digest[:])
	return h
}

// FromBytes parses a 66-byte slice into a Hash without verifying it
// against any message.
func FromBytes(b []byte) (Hash, error) {
	var h Hash
	if len(b) != Size {
		return h, errors.Wrapf(ErrBadYamfHash, "want %d bytes, got %d", Size, len(b))
	}
	if b[0] != Blake2bType || b[1] != digestLen {
		return h, ErrBadYamfHash
	}
	copy(h[:], b)
	return h, nil
}

// Verify reports whether digest is the yamf-hash of msg.
func Verify(digest Hash, msg []byte) error {
	want := Create(msg)
	if subtle.ConstantTimeCompare(want[:], digest[:]) != 1 {
		return errors.New("yamfhash: digest does not match message")
	}
	return nil
}
