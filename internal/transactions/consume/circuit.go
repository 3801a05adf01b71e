package consume

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"

	"hashlock/internal/hashlock"
)

// CircuitClaim proves knowledge of a note preimage without disclosing it.
//
// Public inputs are the digest stored in the note and the nullifier the ledger
// will record; the secret and serial stay private. The in-circuit digest
// mirrors the native computation in hashlock.ComputeDigest: a leading all-zero
// block, the secret, then the hash chain extending the first element.
type CircuitClaim struct {
	// Public inputs
	Digest    [hashlock.SecretLen]frontend.Variable `gnark:",public"`
	Nullifier frontend.Variable                     `gnark:",public"`
	NoteID    frontend.Variable                     `gnark:",public"`

	// Private inputs
	Secret [hashlock.SecretLen]frontend.Variable
	Serial frontend.Variable
}

func (c *CircuitClaim) Define(api frontend.API) error {
	hasher, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}

	// Step 1: pad with the zero block and absorb the secret
	for i := 0; i < hashlock.SecretLen; i++ {
		hasher.Write(0)
	}
	for i := 0; i < hashlock.SecretLen; i++ {
		hasher.Write(c.Secret[i])
	}

	// Step 2: digest chain, element by element against the stored digest
	prev := hasher.Sum()
	api.AssertIsEqual(c.Digest[0], prev)
	for i := 1; i < hashlock.SecretLen; i++ {
		hasher.Write(prev)
		prev = hasher.Sum()
		api.AssertIsEqual(c.Digest[i], prev)
	}

	// Step 3: nullifier binding (nf = H(serial, noteID))
	hasher.Reset()
	hasher.Write(c.Serial)
	hasher.Write(c.NoteID)
	api.AssertIsEqual(c.Nullifier, hasher.Sum())

	return nil
}
