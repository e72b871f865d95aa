package skde

import (
	"encoding/binary"
	"encoding/json"
	"math/big"
	"time"

	"github.com/skde-project/dkg-node/pkg/dkgerr"
)

// KeyService is the stateless Key Service core (spec §4.3): a trusted-setup
// parameterization plus a hash family, wrapping deterministic partial-key
// generation, randomized aggregation, time-lock puzzle solving, and
// key-pair verification. It owns no mutable state. Aggregation and
// verification are deterministic given (params, hasher) and their
// arguments; standalone partial-key generation draws fresh randomness, and
// GenDecKey stamps the wall-clock solve time.
type KeyService struct {
	params Params
	hasher Hasher
}

// NewKeyService constructs a Key Service over params, using hasher (or
// DefaultHasher if nil).
func NewKeyService(params Params, hasher Hasher) *KeyService {
	if hasher == nil {
		hasher = DefaultHasher{}
	}
	return &KeyService{params: params, hasher: hasher}
}

// Params returns the trusted setup this service was constructed with.
func (s *KeyService) Params() Params { return s.params }

// GenEncKey implements the two modes of spec §4.3: with no peer keys, it
// returns a fresh standalone partial key; with peer keys, it deterministically
// selects a random subset (seeded by randomness), derives one virtual key
// from the selection, and aggregates the result. Callers MUST sort
// peerKeys lexicographically before calling so that every honest peer's
// aggregation is byte-identical (spec's determinism requirement).
func (s *KeyService) GenEncKey(randomness []byte, peerKeys [][]byte) ([]byte, error) {
	if peerKeys == nil {
		partial, err := GeneratePartialKey(s.params)
		if err != nil {
			return nil, err
		}
		return json.Marshal(partial)
	}

	parsed := make([]PartialKey, len(peerKeys))
	for i, raw := range peerKeys {
		if err := json.Unmarshal(raw, &parsed[i]); err != nil {
			return nil, dkgerr.Wrap(dkgerr.CategoryCrypto, "GenEncKey", err)
		}
	}

	selected, err := s.selectPartialKeys(parsed, randomness)
	if err != nil {
		return nil, err
	}
	virtual, err := s.deriveVirtualKey(selected)
	if err != nil {
		return nil, err
	}
	all := append(append([]PartialKey{}, selected...), virtual)
	agg := AggregateKey(s.params, all)
	return json.Marshal(agg)
}

// GenDecKey deserializes encKey, solves the time-lock puzzle, and returns
// the serialized secret plus the wall-clock time the solve completed.
// Callers on a cooperative scheduler must run this on a blocking task
// (spec §4.2.3, §9): it is CPU-bound and deliberately long-running.
func (s *KeyService) GenDecKey(encKey []byte) (decKey []byte, solveAtMs uint64, err error) {
	var agg AggregatedKey
	if err := json.Unmarshal(encKey, &agg); err != nil {
		return nil, 0, dkgerr.Wrap(dkgerr.CategoryCrypto, "GenDecKey", err)
	}
	secure := SolveTimeLockPuzzle(s.params, agg)
	b, err := json.Marshal(secure.Sk)
	if err != nil {
		return nil, 0, dkgerr.Wrap(dkgerr.CategoryCrypto, "GenDecKey", err)
	}
	return b, uint64(time.Now().UnixMilli()), nil
}

// canaryMessage is the fixed plaintext VerifyDecKey round-trips through
// encrypt/decrypt to confirm an (encKey, decKey) pair actually pair up.
const canaryMessage = "sample_message"

// VerifyDecKey encrypts the canary message under encKey's u component and
// decrypts with decKey, requiring byte equality. Any mismatch or
// deserialization failure is reported via dkgerr (MessageMismatch /
// InternalError per spec §4.3).
func (s *KeyService) VerifyDecKey(encKey, decKey []byte) error {
	var agg AggregatedKey
	if err := json.Unmarshal(encKey, &agg); err != nil {
		return dkgerr.Wrap(dkgerr.CategoryCrypto, "VerifyDecKey", err)
	}
	var sk big.Int
	if err := json.Unmarshal(decKey, &sk); err != nil {
		return dkgerr.Wrap(dkgerr.CategoryCrypto, "VerifyDecKey", err)
	}
	ct, err := Encrypt(s.params, canaryMessage, agg.U, true)
	if err != nil {
		return dkgerr.Wrap(dkgerr.CategoryCrypto, "VerifyDecKey", dkgerr.ErrEncryption)
	}
	pt, err := Decrypt(s.params, ct, &sk)
	if err != nil {
		return dkgerr.Wrap(dkgerr.CategoryCrypto, "VerifyDecKey", dkgerr.ErrDecryption)
	}
	if pt != canaryMessage {
		return dkgerr.Wrap(dkgerr.CategoryCrypto, "VerifyDecKey", dkgerr.ErrMessageMismatch)
	}
	return nil
}

// selectPartialKeys runs the randomized Fisher-Yates selection from spec
// §4.3 step 1 and returns the chosen keys in shuffle-produced order (not
// re-sorted), since deriveVirtualKey's hash input is order-sensitive and
// every honest peer must concatenate in the same order to agree.
func (s *KeyService) selectPartialKeys(keys []PartialKey, randomness []byte) ([]PartialKey, error) {
	indices, err := s.selectOrderedIndices(len(keys), randomness)
	if err != nil {
		return nil, err
	}
	out := make([]PartialKey, len(indices))
	for i, idx := range indices {
		out[i] = keys[idx]
	}
	return out, nil
}

func (s *KeyService) selectOrderedIndices(n int, randomness []byte) ([]int, error) {
	if n < 1 {
		return nil, dkgerr.Wrap(dkgerr.CategoryCrypto, "selectOrderedIndices", dkgerr.ErrEncryption)
	}
	if n == 1 {
		return []int{0}, nil
	}
	if len(randomness) == 0 {
		return nil, dkgerr.Wrap(dkgerr.CategoryCrypto, "selectOrderedIndices", dkgerr.ErrEncryption)
	}

	first := int(randomness[0])
	k := (first % (n - 1)) + 1

	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	state := append([]byte{}, randomness...)
	for i := n - 1; i >= 1; i-- {
		input := append(append([]byte{}, state...), byte(i))
		hash := s.hasher.HashFixed(input)
		randVal := binary.LittleEndian.Uint64(hash[:8])
		j := int(randVal % uint64(i+1))
		indices[i], indices[j] = indices[j], indices[i]
		state = hash
	}

	return indices[:k], nil
}

// deriveVirtualKey implements spec §4.3 step 2: hash the selected keys'
// serialized bytes into three labeled exponents and assemble a virtual
// PartialKey from two UV pairs built from them.
func (s *KeyService) deriveVirtualKey(selected []PartialKey) (PartialKey, error) {
	hInput := make([]byte, 0, 256)
	for _, k := range selected {
		b, err := json.Marshal(k)
		if err != nil {
			return PartialKey{}, dkgerr.Wrap(dkgerr.CategoryCrypto, "deriveVirtualKey", err)
		}
		hInput = append(hInput, b...)
	}

	maxSeq := s.params.MaxSequencerNumber
	nHalfOverMax := new(big.Int).Div(s.params.N, new(big.Int).Mul(big.NewInt(2), maxSeq))
	nHalf := new(big.Int).Div(s.params.N, big.NewInt(2))

	gen := func(label byte) *big.Int {
		digest := s.hasher.HashVar(append(append([]byte{}, hInput...), label), 32)
		return new(big.Int).SetBytes(reverseBytes(digest))
	}

	rH := new(big.Int).Mod(gen('r'), nHalfOverMax)
	sH := new(big.Int).Mod(gen('s'), nHalfOverMax)
	kH := new(big.Int).Mod(gen('k'), nHalf)

	uv := generateUVPair(s.params, new(big.Int).Add(rH, sH), sH)
	yw := generateUVPair(s.params, kH, rH)

	return PartialKey{U: uv.U, V: uv.V, Y: yw.U, W: yw.V}, nil
}

// reverseBytes flips byte order, since the upstream derivation interprets
// the hash digest as a little-endian big integer.
func reverseBytes(b []byte) []byte {
	out := make([]byte, len(b))
	for i, v := range b {
		out[len(b)-1-i] = v
	}
	return out
}
