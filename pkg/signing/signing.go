// Package signing wraps the Ethereum-style secp256k1 signature scheme used
// to authenticate every SignedCommitment on the wire: a 65-byte (r,s,v)
// signature over the Keccak-256 hash of a deterministic JSON encoding of the
// payload, with v the raw recovery id (0 or 1; the 27 offset is not added
// by Sign and not accepted by Verify) and the signer address recovered rather than
// carried alongside the signature.
package signing

import (
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/skde-project/dkg-node/pkg/dkgerr"
	"github.com/skde-project/dkg-node/pkg/primitives"
)

// SignatureLength is the wire size of every signature produced by this
// package: 32-byte r, 32-byte s, 1-byte recovery id.
const SignatureLength = 65

// KeyPair is a secp256k1 signing identity. Sign/Verify operate on the
// canonical encoding of whatever payload the caller passes; Address is
// derived once at construction from the public key.
type KeyPair struct {
	private *secp256k1.PrivateKey
	address primitives.Address
}

// GenerateKeyPair creates a fresh random signing identity.
func GenerateKeyPair() (*KeyPair, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, dkgerr.Wrap(dkgerr.CategorySignature, "GenerateKeyPair", err)
	}
	return fromPrivateKey(priv), nil
}

// KeyPairFromHex loads a signing identity from a hex-encoded 32-byte private
// key (optionally 0x-prefixed), the format used for the `signing_key`
// data-directory file.
func KeyPairFromHex(hexKey string) (*KeyPair, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, dkgerr.Wrap(dkgerr.CategoryConfig, "KeyPairFromHex", err)
	}
	priv := secp256k1.PrivKeyFromBytes(b)
	return fromPrivateKey(priv), nil
}

func fromPrivateKey(priv *secp256k1.PrivateKey) *KeyPair {
	addr := AddressFromPublicKey(priv.PubKey())
	return &KeyPair{private: priv, address: addr}
}

// Address returns the signer's derived address.
func (k *KeyPair) Address() primitives.Address { return k.address }

// ExportHex returns the hex-encoded private key, the format the data
// directory's `signing_key` file persists (spec §6).
func (k *KeyPair) ExportHex() string {
	return hex.EncodeToString(k.private.Serialize())
}

// Sign produces a 65-byte (r,s,v) signature over the Keccak-256 hash of the
// canonical JSON encoding of payload.
func (k *KeyPair) Sign(payload any) ([]byte, error) {
	hash, err := CanonicalHash(payload)
	if err != nil {
		return nil, err
	}
	sig, err := ethcrypto.Sign(hash, k.private.ToECDSA())
	if err != nil {
		return nil, dkgerr.Wrap(dkgerr.CategorySignature, "Sign", err)
	}
	return sig, nil
}

// SignCommitment builds and signs a fresh Commitment wrapping payload for
// sessionID, stamping the sender as this key pair's address.
func (k *KeyPair) SignCommitment(sessionID primitives.SessionID, payload []byte) (primitives.SignedCommitment, error) {
	sender := k.address
	commitment := primitives.NewCommitment(sessionID, payload, &sender)
	sig, err := k.Sign(commitment)
	if err != nil {
		return primitives.SignedCommitment{}, err
	}
	return primitives.SignedCommitment{Commitment: commitment, Signature: sig}, nil
}

// CanonicalHash returns the Keccak-256 hash of payload's canonical JSON
// encoding. This fills the role bincode serialization plays upstream: Go's
// encoding/json emits struct fields in declaration order deterministically,
// which is sufficient since every signed payload here is a fixed struct
// shape rather than an unordered map.
func CanonicalHash(payload any) ([]byte, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, dkgerr.Wrap(dkgerr.CategorySignature, "CanonicalHash", err)
	}
	return ethcrypto.Keccak256(b), nil
}

// AddressFromPublicKey derives the 20-byte Ethereum-style address (hex,
// 0x-prefixed) from a secp256k1 public key.
func AddressFromPublicKey(pub *secp256k1.PublicKey) primitives.Address {
	addr := ethcrypto.PubkeyToAddress(*pub.ToECDSA())
	return primitives.Address(addr.Hex())
}

// Verify recovers the signer address from sig over payload's canonical hash
// and requires it to equal claimedSender (when non-nil). It is the sole
// entry point RPC handlers use to authenticate an inbound SignedCommitment.
func Verify(payload any, sig []byte, claimedSender *primitives.Address) (primitives.Address, error) {
	if len(sig) != SignatureLength {
		return "", dkgerr.Wrap(dkgerr.CategorySignature, "Verify", dkgerr.ErrInvalidSignatureLength)
	}
	hash, err := CanonicalHash(payload)
	if err != nil {
		return "", err
	}
	pub, err := ethcrypto.SigToPub(hash, sig)
	if err != nil {
		return "", dkgerr.Wrap(dkgerr.CategorySignature, "Verify", dkgerr.ErrSignatureRecoveryFailed)
	}
	recovered := primitives.Address(ethcrypto.PubkeyToAddress(*pub).Hex())
	if claimedSender != nil && !strings.EqualFold(string(recovered), string(*claimedSender)) {
		return "", dkgerr.Wrap(dkgerr.CategorySignature, "Verify", dkgerr.ErrSenderMismatch)
	}
	return recovered, nil
}

// VerifyCommitment verifies a SignedCommitment's signature over its
// Commitment and requires recovery to match the Commitment's claimed
// sender, returning the recovered address.
func VerifyCommitment(sc primitives.SignedCommitment) (primitives.Address, error) {
	return Verify(sc.Commitment, sc.Signature, sc.Commitment.Sender)
}
