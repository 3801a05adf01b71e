package consume

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"

	"hashlock/internal/hashlock"
)

// ClaimTx is a proven consumption attempt. It carries the Groth16 proof and
// the public inputs needed to verify it; the secret never leaves the prover.
type ClaimTx struct {
	NoteID    string                     `json:"note_id"`
	Claimant  hashlock.AccountID         `json:"claimant"`
	Digest    [hashlock.SecretLen]string `json:"digest"`
	Nullifier string                     `json:"nullifier"`
	Proof     []byte                     `json:"proof"`
}

// Claim proves that the claimant knows the preimage opening the note.
// Steps:
//  1. Recompute digest and nullifier natively from the secret and serial
//  2. Build the full witness and generate the Groth16 proof
//  3. Return the claim with only public values populated
func Claim(note *hashlock.Note, secret hashlock.Secret, claimant hashlock.AccountID,
	ccs constraint.ConstraintSystem, pk groth16.ProvingKey) (*ClaimTx, error) {

	digest := hashlock.ComputeDigest(secret)
	nf := note.Nullifier()

	w := &CircuitClaim{
		Nullifier: new(big.Int).SetBytes(nf).String(),
		NoteID:    note.IDString(),
		Serial:    new(big.Int).SetBytes(note.Recipient.Serial).String(),
	}
	var digestStrs [hashlock.SecretLen]string
	for i, b := range digest.Bytes() {
		digestStrs[i] = new(big.Int).SetBytes(b).String()
		w.Digest[i] = digestStrs[i]
	}
	for i := range secret {
		el := secret[i].Bytes()
		w.Secret[i] = new(big.Int).SetBytes(el[:]).String()
	}

	witness, err := frontend.NewWitness(w, ecc.BW6_761.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("witness creation failed: %w", err)
	}
	proof, err := groth16.Prove(ccs, pk, witness)
	if err != nil {
		return nil, fmt.Errorf("proof generation failed: %w", err)
	}
	var buf bytes.Buffer
	if _, err := proof.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("proof marshaling failed: %w", err)
	}
	return &ClaimTx{
		NoteID:    note.IDString(),
		Claimant:  claimant,
		Digest:    digestStrs,
		Nullifier: new(big.Int).SetBytes(nf).String(),
		Proof:     buf.Bytes(),
	}, nil
}

// VerifyClaim checks the Groth16 proof against the claim's public inputs.
func VerifyClaim(tx *ClaimTx, vk groth16.VerifyingKey) error {
	public := &CircuitClaim{
		Nullifier: tx.Nullifier,
		NoteID:    tx.NoteID,
	}
	for i := range tx.Digest {
		public.Digest[i] = tx.Digest[i]
	}
	w, err := frontend.NewWitness(public, ecc.BW6_761.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return fmt.Errorf("public witness creation failed: %w", err)
	}
	proof := groth16.NewProof(ecc.BW6_761)
	if _, err := proof.ReadFrom(bytes.NewReader(tx.Proof)); err != nil {
		return fmt.Errorf("proof unmarshaling failed: %w", err)
	}
	if err := groth16.Verify(proof, vk, w); err != nil {
		return fmt.Errorf("proof verification failed: %w", err)
	}
	return nil
}

// Apply verifies the claim and consumes the note. The proof's public digest
// must match the digest stored in the note's input vector, binding the proof
// to this specific note before the ledger settles.
func Apply(l *hashlock.Ledger, tx *ClaimTx, vk groth16.VerifyingKey) error {
	noteID, ok := new(big.Int).SetString(tx.NoteID, 10)
	if !ok {
		return fmt.Errorf("malformed note id %q", tx.NoteID)
	}
	rec, found := l.GetNote(noteID.Bytes())
	if !found {
		return fmt.Errorf("%w: %s", hashlock.ErrNoteNotFound, tx.NoteID)
	}
	if len(rec.Note.Recipient.Inputs) != hashlock.SecretLen {
		return fmt.Errorf("%w (note input arity %d)", hashlock.ErrDigestMismatch, len(rec.Note.Recipient.Inputs))
	}
	for i, in := range rec.Note.Recipient.Inputs {
		if new(big.Int).SetBytes(in).String() != tx.Digest[i] {
			return fmt.Errorf("%w (proof digest does not match note inputs)", hashlock.ErrDigestMismatch)
		}
	}
	if err := VerifyClaim(tx, vk); err != nil {
		return err
	}
	nf, ok := new(big.Int).SetString(tx.Nullifier, 10)
	if !ok {
		return fmt.Errorf("malformed nullifier %q", tx.Nullifier)
	}
	return l.ConsumeProven(noteID.Bytes(), nf.Bytes(), tx.Claimant)
}
