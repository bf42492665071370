// Package ed25519sig adapts stdlib crypto/ed25519 to the narrow
// sign/verify/derive interface Bamboo entries need.
//
// Ed25519 is treated as an external primitive by the specification, and
// crypto/ed25519 has been part of the Go standard library since Go
// 1.13 -- the reference pack's bitmark-inc-bitmarkd repo reaches for
// golang.org/x/crypto/ed25519 only because it predates that stdlib
// promotion. There is no ecosystem reason to prefer a third-party
// implementation here; see DESIGN.md.
package ed25519sig

import (
	"crypto/ed25519"
	"crypto/rand"

	"github.com/pkg/errors"
)

// PublicKeySize, SeedSize and SignatureSize match crypto/ed25519's
// conventions: a secret here is the 32-byte seed, not ed25519's 64-byte
// expanded private key.
const (
	PublicKeySize = ed25519.PublicKeySize
	SeedSize      = ed25519.SeedSize
	SignatureSize = ed25519.SignatureSize
)

// GenerateSeed draws a fresh random 32-byte Ed25519 seed.
func GenerateSeed() ([]byte, error) {
	seed := make([]byte, SeedSize)
	_, err := rand.Read(seed)
	return seed, errors.Wrap(err, "reading random seed")
}

// DerivePublic returns the public key corresponding to a 32-byte seed.
func DerivePublic(seed []byte) ([]byte, error) {
	if len(seed) != SeedSize {
		return nil, errors.Errorf("ed25519sig: seed must be %d bytes, got %d", SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := make([]byte, PublicKeySize)
	copy(pub, priv[SeedSize:])
	return pub, nil
}

// Sign signs msg using a 32-byte seed and 32-byte public key, returning
// a 64-byte signature. The public key is not strictly required by
// crypto/ed25519 (it is recomputed from the seed), but is accepted here
// to match the spec's "secret ‖ public" signing-key convention and to
// catch seed/public mismatches early.
func Sign(seed, public, msg []byte) ([]byte, error) {
	if len(seed) != SeedSize {
		return nil, errors.Errorf("ed25519sig: seed must be %d bytes, got %d", SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	if len(public) == PublicKeySize {
		derived := priv[SeedSize:]
		for i := range derived {
			if derived[i] != public[i] {
				return nil, errors.New("ed25519sig: public key does not match seed")
			}
		}
	}
	return ed25519.Sign(priv, msg), nil
}

// Verify reports whether sig is a valid Ed25519 signature of msg by
// public.
func Verify(sig, msg, public []byte) bool {
	if len(public) != PublicKeySize || len(sig) != SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(public), msg, sig)
}
