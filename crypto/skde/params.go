// Package skde implements the Paillier-like group arithmetic and
// repeated-squaring time-lock puzzle behind Single-Key Delay Encryption: the
// Key Service component of the DKG node (spec §4.3). Every participant
// derives its own partial key independently; the aggregated key is a public
// value nobody individually holds the discrete log of, and the paired
// decryption key only becomes computable by actually performing the
// sequential squaring — there is no shortcut, which is the entire point of
// a time-lock puzzle.
package skde

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/skde-project/dkg-node/pkg/dkgerr"
)

// Params holds the public SKDE parameters generated once by the Authority
// role (TrustedSetup in pkg/primitives) plus the derived N^2 every
// operation needs. The time-lock depth is kept as T; the squaring count
// 2^T is computed from it on each puzzle call.
type Params struct {
	T                  uint32
	N                  *big.Int
	NSquared           *big.Int
	G                  *big.Int
	H                  *big.Int
	MaxSequencerNumber *big.Int
}

// GenerateParams produces a fresh trusted setup: an RSA-style modulus N of
// the requested bit length, the standard Paillier generator g = N+1, a
// random generator h, squaring depth t, and max sequencer bound. Only the
// Authority role calls this; p and q are discarded immediately on return,
// by construction never stored in Params.
func GenerateParams(bits int, t uint32, maxSequencerNumber uint64) (Params, error) {
	if bits < 64 {
		return Params{}, dkgerr.Wrap(dkgerr.CategoryCrypto, "GenerateParams", fmt.Errorf("modulus bit length too small: %d", bits))
	}
	p, err := rand.Prime(rand.Reader, bits/2)
	if err != nil {
		return Params{}, dkgerr.Wrap(dkgerr.CategoryCrypto, "GenerateParams", err)
	}
	q, err := rand.Prime(rand.Reader, bits/2)
	if err != nil {
		return Params{}, dkgerr.Wrap(dkgerr.CategoryCrypto, "GenerateParams", err)
	}
	n := new(big.Int).Mul(p, q)
	nSquared := new(big.Int).Mul(n, n)
	g := new(big.Int).Add(n, big.NewInt(1))
	h, err := rand.Int(rand.Reader, nSquared)
	if err != nil {
		return Params{}, dkgerr.Wrap(dkgerr.CategoryCrypto, "GenerateParams", err)
	}
	if h.Sign() == 0 {
		h.SetInt64(2)
	}
	return Params{
		T:                  t,
		N:                  n,
		NSquared:           nSquared,
		G:                  g,
		H:                  h,
		MaxSequencerNumber: big.NewInt(0).SetUint64(maxSequencerNumber),
	}, nil
}

// wireParams mirrors pkg/primitives.TrustedSetup's string-encoded big
// integers for the parts of Params that cross the wire.
type wireParams struct {
	T                  uint32 `json:"t"`
	N                  string `json:"n"`
	G                  string `json:"g"`
	H                  string `json:"h"`
	MaxSequencerNumber string `json:"max_sequencer_number"`
}

// FromTrustedSetup reconstructs Params from the wire TrustedSetup record
// fetched from the Authority at start-up.
func FromTrustedSetup(t uint32, n, g, h string, maxSequencerNumber uint64) (Params, error) {
	nBig, ok := new(big.Int).SetString(n, 10)
	if !ok {
		return Params{}, dkgerr.Wrap(dkgerr.CategoryCrypto, "FromTrustedSetup", fmt.Errorf("invalid n"))
	}
	gBig, ok := new(big.Int).SetString(g, 10)
	if !ok {
		return Params{}, dkgerr.Wrap(dkgerr.CategoryCrypto, "FromTrustedSetup", fmt.Errorf("invalid g"))
	}
	hBig, ok := new(big.Int).SetString(h, 10)
	if !ok {
		return Params{}, dkgerr.Wrap(dkgerr.CategoryCrypto, "FromTrustedSetup", fmt.Errorf("invalid h"))
	}
	return Params{
		T:                  t,
		N:                  nBig,
		NSquared:           new(big.Int).Mul(nBig, nBig),
		G:                  gBig,
		H:                  hBig,
		MaxSequencerNumber: big.NewInt(0).SetUint64(maxSequencerNumber),
	}, nil
}

// ToWire returns the (t, n, g, h, max_sequencer_number) tuple in the string
// encoding used by pkg/primitives.TrustedSetup.
func (p Params) ToWire() (t uint32, n, g, h string, maxSequencerNumber uint64) {
	return p.T, p.N.String(), p.G.String(), p.H.String(), p.MaxSequencerNumber.Uint64()
}

func randomBelow(n *big.Int) (*big.Int, error) {
	if n.Sign() <= 0 {
		return nil, dkgerr.Wrap(dkgerr.CategoryCrypto, "randomBelow", fmt.Errorf("modulus must be positive"))
	}
	v, err := rand.Int(rand.Reader, n)
	if err != nil {
		return nil, dkgerr.Wrap(dkgerr.CategoryCrypto, "randomBelow", err)
	}
	return v, nil
}
