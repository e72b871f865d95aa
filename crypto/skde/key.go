package skde

import "math/big"

// UVPair is one (u, v) Paillier-style commitment: u = g^x mod N^2,
// v = h^r * (1+N)^x mod N^2. Two such pairs compose one PartialKey.
type UVPair struct {
	U *big.Int
	V *big.Int
}

// generateUVPair computes (u, v) for exponent x and blinding factor r,
// exactly the `generate_uv_pair(x, r)` primitive referenced throughout
// spec §4.3.
func generateUVPair(p Params, x, r *big.Int) UVPair {
	u := new(big.Int).Exp(p.G, x, p.NSquared)
	onePlusN := new(big.Int).Add(p.N, big.NewInt(1))
	term := new(big.Int).Exp(onePlusN, x, p.NSquared)
	hr := new(big.Int).Exp(p.H, r, p.NSquared)
	v := new(big.Int).Mod(new(big.Int).Mul(hr, term), p.NSquared)
	return UVPair{U: u, V: v}
}

// PartialKey is one participant's contribution: two UV pairs, (u,v) and
// (y,w), each built from an independently random exponent/blinding pair.
type PartialKey struct {
	U *big.Int `json:"u"`
	V *big.Int `json:"v"`
	Y *big.Int `json:"y"`
	W *big.Int `json:"w"`
}

// GeneratePartialKey produces a fresh, independent standalone partial key:
// two random (exponent, blinding) pairs turned into UV pairs via the group
// generators in p. This is what a committee member calls on
// RequestSubmitEncKey, and what gen_enc_key(randomness, nil) returns.
func GeneratePartialKey(p Params) (PartialKey, error) {
	x1, err := randomBelow(p.N)
	if err != nil {
		return PartialKey{}, err
	}
	r1, err := randomBelow(p.N)
	if err != nil {
		return PartialKey{}, err
	}
	x2, err := randomBelow(p.N)
	if err != nil {
		return PartialKey{}, err
	}
	r2, err := randomBelow(p.N)
	if err != nil {
		return PartialKey{}, err
	}
	uv := generateUVPair(p, x1, r1)
	yw := generateUVPair(p, x2, r2)
	return PartialKey{U: uv.U, V: uv.V, Y: yw.U, W: yw.V}, nil
}

// AggregatedKey is the multiparty-combined encryption key: the product,
// modulo N^2, of every selected partial key's four components. Its U field
// is the public value applications encrypt against.
type AggregatedKey struct {
	U *big.Int `json:"u"`
	V *big.Int `json:"v"`
}

// AggregateKey combines keys into a single AggregatedKey by multiplying
// every U*Y and every V*W term across all keys, modulo N^2. Because each
// UV pair is of the form g^x, multiplying them is equivalent to summing the
// (unknown, individually-held) exponents — the aggregated key's discrete
// log is the sum of every contributor's secret, which nobody holds.
func AggregateKey(p Params, keys []PartialKey) AggregatedKey {
	u := big.NewInt(1)
	v := big.NewInt(1)
	for _, k := range keys {
		u.Mul(u, k.U)
		u.Mul(u, k.Y)
		u.Mod(u, p.NSquared)
		v.Mul(v, k.V)
		v.Mul(v, k.W)
		v.Mod(v, p.NSquared)
	}
	return AggregatedKey{U: u, V: v}
}
