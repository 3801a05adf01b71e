// crypto.go - Cryptographic primitives for the commitment-gated note protocol.
//
// Implements the MiMC digest scheme that gates note consumption, nullifier
// derivation, secret masking for transport, and BLS12-377 DH key exchange.

package hashlock

import (
	"encoding/json"
	"fmt"
	"math/big"

	bls12377 "github.com/consensys/gnark-crypto/ecc/bls12-377"
	bls12377_fr "github.com/consensys/gnark-crypto/ecc/bls12-377/fr"
	"github.com/consensys/gnark-crypto/ecc/bw6-761/fr"
	mimcNative "github.com/consensys/gnark-crypto/ecc/bw6-761/fr/mimc"
)

const (
	// SecretLen is the fixed arity of a claim secret, in field elements.
	SecretLen = 4

	// BlockLen is the hash input block width: a leading all-zero block of
	// SecretLen elements followed by the secret itself.
	BlockLen = 2 * SecretLen
)

// Secret is the preimage that opens a hash-locked note. It is a fixed-length
// vector of BW6-761 scalar field elements and must never appear in any public
// note field.
type Secret [SecretLen]fr.Element

// Digest is the public commitment to a secret, stored verbatim in the note's
// input vector. It is a pure function of the secret.
type Digest [SecretLen]fr.Element

// NewSecret builds a secret from small integer limbs. Used by tests and demos;
// real claimants should use RandomSecret.
func NewSecret(limbs [SecretLen]uint64) Secret {
	var s Secret
	for i := range limbs {
		s[i].SetUint64(limbs[i])
	}
	return s
}

// RandomSecret samples a uniformly random secret using crypto/rand.
func RandomSecret() (Secret, error) {
	var s Secret
	for i := range s {
		if _, err := s[i].SetRandom(); err != nil {
			return Secret{}, fmt.Errorf("secret sampling failed: %w", err)
		}
	}
	return s, nil
}

// ComputeDigest derives the commitment digest of a secret.
//
// The secret is padded with a leading all-zero block to fill the hash input
// width, then absorbed into MiMC. The first digest element is the hash of the
// padded block; the remaining elements extend it with the same hash chain used
// elsewhere in the protocol, giving a fixed four-element digest.
func ComputeDigest(s Secret) Digest {
	h := mimcNative.NewMiMC()
	var zero fr.Element
	zb := zero.Bytes()
	for i := 0; i < SecretLen; i++ {
		h.Write(zb[:])
	}
	for i := range s {
		b := s[i].Bytes()
		h.Write(b[:])
	}
	var d Digest
	prev := h.Sum(nil)
	d[0].SetBytes(prev)
	for i := 1; i < SecretLen; i++ {
		h.Write(prev)
		prev = h.Sum(nil)
		d[i].SetBytes(prev)
	}
	return d
}

// Equal compares two digests element by element.
func (d Digest) Equal(o Digest) bool {
	for i := range d {
		if !d[i].Equal(&o[i]) {
			return false
		}
	}
	return true
}

// Bytes returns the digest as canonical big-endian element encodings, in the
// form stored in a note's input vector.
func (d Digest) Bytes() [][]byte {
	out := make([][]byte, SecretLen)
	for i := range d {
		b := d[i].Bytes()
		out[i] = b[:]
	}
	return out
}

// DigestFromBytes rebuilds a digest from a note input vector.
func DigestFromBytes(in [][]byte) (Digest, error) {
	var d Digest
	if len(in) != SecretLen {
		return d, fmt.Errorf("digest arity mismatch: got %d inputs, want %d", len(in), SecretLen)
	}
	for i := range in {
		d[i].SetBytes(in[i])
	}
	return d, nil
}

// VerifyPreimage is the consumption-side predicate: recompute the padded-hash
// digest of the candidate and compare it element by element against the digest
// stored at construction time. A mismatch is a rejected precondition, not a
// crash; the caller must leave all note state untouched.
func VerifyPreimage(candidate Secret, stored Digest) error {
	if !ComputeDigest(candidate).Equal(stored) {
		return ErrDigestMismatch
	}
	return nil
}

// MarshalJSON encodes the secret as an array of canonical element bytes so
// that wallets can persist claimable secrets.
func (s Secret) MarshalJSON() ([]byte, error) {
	raw := make([][]byte, SecretLen)
	for i := range s {
		b := s[i].Bytes()
		raw[i] = b[:]
	}
	return json.Marshal(raw)
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (s *Secret) UnmarshalJSON(data []byte) error {
	var raw [][]byte
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != SecretLen {
		return fmt.Errorf("secret arity mismatch: got %d elements, want %d", len(raw), SecretLen)
	}
	for i := range raw {
		s[i].SetBytes(raw[i])
	}
	return nil
}

// mimcHash computes a single MiMC hash over the given element encodings.
func mimcHash(chunks ...[]byte) []byte {
	h := mimcNative.NewMiMC()
	for _, c := range chunks {
		e := frFromBytes(c)
		b := e.Bytes()
		h.Write(b[:])
	}
	return h.Sum(nil)
}

// frFromBytes reduces an arbitrary big-endian byte string into the scalar field.
func frFromBytes(b []byte) fr.Element {
	var e fr.Element
	e.SetBigInt(new(big.Int).SetBytes(b))
	return e
}

// randomSerial samples a fresh serial number. Serial numbers keep distinct
// constructions from ever sharing a note identifier.
func randomSerial() ([]byte, error) {
	var e fr.Element
	if _, err := e.SetRandom(); err != nil {
		return nil, fmt.Errorf("serial sampling failed: %w", err)
	}
	b := e.Bytes()
	return b[:], nil
}

// ComputeNullifier derives the ledger-level replay marker for a note. Recording
// it on successful consumption is what makes consumption terminal.
func ComputeNullifier(serial, noteID []byte) []byte {
	return mimcHash(serial, noteID)
}

// KeyPair is a BLS12-377 keypair. The public point doubles as the account
// identity and as one half of a DH exchange for masking claim secrets in
// transit.
type KeyPair struct {
	Sk *bls12377_fr.Element
	Pk *bls12377.G1Affine
}

// GenerateKeyPair generates a random BLS12-377 keypair.
func GenerateKeyPair() (*KeyPair, error) {
	var sk bls12377_fr.Element
	if _, err := sk.SetRandom(); err != nil {
		return nil, err
	}
	g1Jac, _, _, _ := bls12377.Generators()
	var pk bls12377.G1Affine
	pk.FromJacobian(&g1Jac)
	pk.ScalarMultiplication(&pk, sk.BigInt(new(big.Int)))
	return &KeyPair{Sk: &sk, Pk: &pk}, nil
}

// ComputeShared computes the DH shared point given our sk and their pk.
func ComputeShared(sk *bls12377_fr.Element, pk *bls12377.G1Affine) *bls12377.G1Affine {
	var shared bls12377.G1Affine
	shared.ScalarMultiplication(pk, sk.BigInt(new(big.Int)))
	return &shared
}

// maskChain expands a DH shared point into SecretLen MiMC masks.
func maskChain(shared *bls12377.G1Affine) [SecretLen][]byte {
	h := mimcNative.NewMiMC()
	x := shared.X.Bytes()
	y := shared.Y.Bytes()
	h.Write(x[:])
	h.Write(y[:])
	var masks [SecretLen][]byte
	prev := h.Sum(nil)
	masks[0] = prev
	for i := 1; i < SecretLen; i++ {
		h.Write(prev)
		prev = h.Sum(nil)
		masks[i] = prev
	}
	return masks
}

// MaskSecret masks a claim secret for transport with the MiMC mask chain of a
// DH shared point. The claimant masks with g^ab; only the operator holding the
// other half of the exchange can unmask, so the secret never crosses the wire
// in the clear.
func MaskSecret(s Secret, shared *bls12377.G1Affine) [SecretLen][]byte {
	masks := maskChain(shared)
	var out [SecretLen][]byte
	for i := range s {
		b := s[i].Bytes()
		out[i] = xorPad(b[:], masks[i])
	}
	return out
}

// UnmaskSecret reverses MaskSecret given the same shared point.
func UnmaskSecret(enc [SecretLen][]byte, shared *bls12377.G1Affine) Secret {
	masks := maskChain(shared)
	var s Secret
	for i := range enc {
		s[i].SetBytes(xorPad(enc[i], masks[i]))
	}
	return s
}

// xorPad xors two byte slices, padding the shorter one with zeros.
func xorPad(a, b []byte) []byte {
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	out := make([]byte, maxLen)
	for i := 0; i < maxLen; i++ {
		var ab, bb byte
		if i < len(a) {
			ab = a[i]
		}
		if i < len(b) {
			bb = b[i]
		}
		out[i] = ab ^ bb
	}
	return out
}
