package primitives

// TrustedSetup holds the SKDE public parameters generated once by the
// Authority role: the Paillier-like modulus generator g, the commitment
// base h, the time-lock exponent t, the group size n, and the maximum
// number of sequencers the parameters support.
type TrustedSetup struct {
	T                 uint32 `json:"t"`
	N                 string `json:"n"`
	G                 string `json:"g"`
	H                 string `json:"h"`
	MaxSequencerNumber uint64 `json:"max_sequencer_number"`
}

// SignedTrustedSetup is the TrustedSetup plus the Authority's signature over
// its canonical encoding, fetched by every other node at start-up and
// verified against the configured Authority address.
type SignedTrustedSetup struct {
	Setup     TrustedSetup `json:"setup"`
	Signature []byte       `json:"signature"`
}
