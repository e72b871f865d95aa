package skde

import (
	"crypto/sha256"

	"golang.org/x/crypto/sha3"
)

// Hasher is the runtime-pluggable hash family the Key Service is
// parameterized by (spec §9 Design Notes: reimplement the source's phantom
// generic as a pair of injected functions rather than a generic consumer).
// HashFixed always returns a 32-byte digest; HashVar returns exactly size
// bytes from a variable-output hash.
type Hasher interface {
	HashFixed(data []byte) []byte
	HashVar(data []byte, size int) []byte
}

// DefaultHasher uses SHA-256 for fixed-size digests and SHAKE256 for
// variable-size output, per spec §4.3 ("H is SHAKE256 when a variable
// output size is needed, SHA-256 when a 32-byte output is needed").
type DefaultHasher struct{}

func (DefaultHasher) HashFixed(data []byte) []byte {
	h := sha256.Sum256(data)
	return h[:]
}

func (DefaultHasher) HashVar(data []byte, size int) []byte {
	out := make([]byte, size)
	sha3.ShakeSum256(out, data)
	return out
}
