// Package base62 implements the alphanumeric text codec used to render
// Ed25519 public keys as 43-character identifiers.
//
// No example in the retrieved reference pack ships a base62 codec (see
// DESIGN.md), so this is a small from-scratch implementation built on
// math/big rather than an adapted third-party package.
package base62

import (
	"math/big"

	"github.com/pkg/errors"
)

const alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// ErrBadBase62 is returned by Decode when s contains a character outside
// the base62 alphabet.
var ErrBadBase62 = errors.New("base62: invalid character")

var (
	base    = big.NewInt(int64(len(alphabet)))
	byValue [256]int8
)

func init() {
	for i := range byValue {
		byValue[i] = -1
	}
	for i, c := range alphabet {
		byValue[byte(c)] = int8(i)
	}
}

// Encode returns the base62 text encoding of b.
func Encode(b []byte) string {
	if len(b) == 0 {
		return ""
	}

	n := new(big.Int).SetBytes(b)
	if n.Sign() == 0 {
		return string(alphabet[0])
	}

	var (
		out  []byte
		zero = big.NewInt(0)
		mod  = new(big.Int)
	)
	for n.Cmp(zero) > 0 {
		n.DivMod(n, base, mod)
		out = append(out, alphabet[mod.Int64()])
	}

	// Preserve leading zero bytes as leading '0' characters, so Decode
	// restores them.
	for _, byt := range b {
		if byt != 0 {
			break
		}
		out = append(out, alphabet[0])
	}

	reverse(out)
	return string(out)
}

// Decode parses base62 text back into bytes.
func Decode(s string) ([]byte, error) {
	n := new(big.Int)
	for i := 0; i < len(s); i++ {
		v := byValue[s[i]]
		if v < 0 {
			return nil, errors.Wrapf(ErrBadBase62, "character %q at position %d", s[i], i)
		}
		n.Mul(n, base)
		n.Add(n, big.NewInt(int64(v)))
	}

	b := n.Bytes()

	// Restore leading zero bytes represented by leading '0' characters.
	var leadingZeros int
	for i := 0; i < len(s) && s[i] == alphabet[0]; i++ {
		leadingZeros++
	}
	if leadingZeros > 0 {
		padded := make([]byte, leadingZeros+len(b))
		copy(padded[leadingZeros:], b)
		b = padded
	}

	return b, nil
}

// EncodedLen32 is the longest base62 encoding Encode produces for a
// 32-byte value such as an Ed25519 public key; values with a smaller
// numeric magnitude encode to fewer characters.
const EncodedLen32 = 43

func reverse(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}
