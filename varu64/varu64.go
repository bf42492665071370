// Package varu64 implements the unsigned variable-length integer codec
// used throughout the Bamboo entry format.
//
// It is LEB128-style: exactly the encoding stdlib's encoding/binary
// already implements as Uvarint/PutUvarint, so this package is a thin,
// named wrapper rather than a hand-rolled codec.
package varu64

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// MaxLen is the longest a varu64 encoding of a uint64 can be.
const MaxLen = binary.MaxVarintLen64

// ErrTruncated is returned by Decode when b does not contain a complete
// encoding.
var ErrTruncated = errors.New("varu64: truncated")

// Encode returns the varu64 encoding of v.
func Encode(v uint64) []byte {
	buf := make([]byte, MaxLen)
	n := binary.PutUvarint(buf, v)
	return buf[:n]
}

// Decode reads a varu64 from the front of b, returning the decoded value
// and the remaining bytes.
func Decode(b []byte) (uint64, []byte, error) {
	v, n := binary.Uvarint(b)
	if n <= 0 {
		return 0, b, ErrTruncated
	}
	return v, b[n:], nil
}
