// protocol_test.go - End-to-end tests for the commitment-gated note protocol.
//
// The scenarios here run the full lifecycle through the public packages: mint
// faucet funds, lock them into notes, and consume the notes with preimage
// reveals or zero-knowledge claim proofs. Everything runs in-process over a
// temp-dir ledger.

package main

import (
	"encoding/json"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"hashlock/internal/asset"
	"hashlock/internal/hashlock"
	"hashlock/internal/transactions/consume"
	"hashlock/internal/transactions/create"
	"hashlock/internal/transactions/mint"
)

// setupFundedLedger mints supply to a treasury account and returns the ledger
// with the faucet.
func setupFundedLedger(t *testing.T, supply uint64) (*hashlock.Ledger, *asset.Faucet, hashlock.AccountID) {
	t.Helper()
	l := hashlock.NewLedger()
	faucet, err := asset.NewFaucet("0xfaucet", "TST", 0, supply)
	if err != nil {
		t.Fatalf("NewFaucet failed: %v", err)
	}
	treasury := hashlock.AccountID("0xtreasury")
	mintTx, err := mint.Mint(faucet, treasury, supply)
	if err != nil {
		t.Fatalf("Mint failed: %v", err)
	}
	if err := mintTx.Apply(l); err != nil {
		t.Fatalf("mint apply failed: %v", err)
	}
	return l, faucet, treasury
}

// TestPreimageGatedLifecycle locks 100 units behind the digest of the secret
// (1, 2, 3, 4) and checks that claiming with (1, 2, 3, 5) fails while the true
// preimage succeeds, exactly once.
func TestPreimageGatedLifecycle(t *testing.T) {
	l, _, treasury := setupFundedLedger(t, 100)

	secret := hashlock.NewSecret([4]uint64{1, 2, 3, 4})
	tx, err := create.HashLocked(treasury,
		asset.FungibleAsset{FaucetID: "0xfaucet", Amount: 100},
		hashlock.ComputeDigest(secret), hashlock.NoteTypePublic, 0)
	if err != nil {
		t.Fatalf("HashLocked failed: %v", err)
	}
	if err := tx.Apply(l); err != nil {
		t.Fatalf("create apply failed: %v", err)
	}
	if got := l.BalanceOf(treasury, "0xfaucet"); got != 0 {
		t.Fatalf("treasury balance after lock = %d, want 0", got)
	}

	claimant := hashlock.AccountID("0xclaimant")

	wrong := hashlock.NewSecret([4]uint64{1, 2, 3, 5})
	err = l.Consume(tx.Note.ID, hashlock.ClaimArgs{Secret: wrong, Claimant: claimant})
	if !errors.Is(err, hashlock.ErrDigestMismatch) {
		t.Fatalf("near-miss secret, err=%v", err)
	}
	if got := l.BalanceOf(claimant, "0xfaucet"); got != 0 {
		t.Fatalf("failed claim moved %d units", got)
	}

	if err := l.Consume(tx.Note.ID, hashlock.ClaimArgs{Secret: secret, Claimant: claimant}); err != nil {
		t.Fatalf("true preimage rejected: %v", err)
	}
	if got := l.BalanceOf(claimant, "0xfaucet"); got != 100 {
		t.Fatalf("claimant balance = %d, want 100", got)
	}

	// At most once, for anyone, forever.
	for _, who := range []hashlock.AccountID{claimant, treasury, "0xthird"} {
		err := l.Consume(tx.Note.ID, hashlock.ClaimArgs{Secret: secret, Claimant: who})
		if !errors.Is(err, hashlock.ErrNoteSpent) {
			t.Errorf("replay by %s, err=%v", who, err)
		}
	}
}

// TestValueConservation runs several notes through the lifecycle and checks
// that total balance plus locked value always equals minted supply.
func TestValueConservation(t *testing.T) {
	const perNote = 100
	const count = 5
	l, faucet, treasury := setupFundedLedger(t, perNote*count)

	if faucet.Remaining() != 0 {
		t.Fatalf("faucet remaining = %d, want 0", faucet.Remaining())
	}

	secrets := make([]hashlock.Secret, count)
	txs := make([]*create.CreateTx, count)
	for i := 0; i < count; i++ {
		s, err := hashlock.RandomSecret()
		if err != nil {
			t.Fatalf("RandomSecret failed: %v", err)
		}
		secrets[i] = s
		tx, err := create.HashLocked(treasury,
			asset.FungibleAsset{FaucetID: "0xfaucet", Amount: perNote},
			hashlock.ComputeDigest(s), hashlock.NoteTypePublic, uint32(i))
		if err != nil {
			t.Fatalf("HashLocked failed: %v", err)
		}
		if err := tx.Apply(l); err != nil {
			t.Fatalf("create apply failed: %v", err)
		}
		txs[i] = tx
	}

	claimant := hashlock.AccountID("0xclaimant")
	for i := 0; i < 3; i++ {
		if err := l.Consume(txs[i].Note.ID, hashlock.ClaimArgs{Secret: secrets[i], Claimant: claimant}); err != nil {
			t.Fatalf("claim %d failed: %v", i, err)
		}
	}

	claimed := l.BalanceOf(claimant, "0xfaucet")
	unlocked := l.BalanceOf(treasury, "0xfaucet")
	var locked uint64
	for _, tx := range txs {
		if rec, ok := l.GetNote(tx.Note.ID); ok && !rec.Consumed {
			for _, a := range rec.Note.Assets {
				locked += a.Amount
			}
		}
	}
	if claimed+unlocked+locked != perNote*count {
		t.Errorf("conservation violated: claimed %d + treasury %d + locked %d != %d",
			claimed, unlocked, locked, perNote*count)
	}
	if claimed != 3*perNote || locked != 2*perNote {
		t.Errorf("claimed %d locked %d, want %d and %d", claimed, locked, 3*perNote, 2*perNote)
	}
}

// TestLedgerFileNeverHoldsSecrets persists a full lifecycle and scans the
// ledger file for secret material.
func TestLedgerFileNeverHoldsSecrets(t *testing.T) {
	l, _, treasury := setupFundedLedger(t, 100)

	secret := hashlock.NewSecret([4]uint64{11, 22, 33, 44})
	tx, err := create.HashLocked(treasury,
		asset.FungibleAsset{FaucetID: "0xfaucet", Amount: 100},
		hashlock.ComputeDigest(secret), hashlock.NoteTypePublic, 0)
	if err != nil {
		t.Fatalf("HashLocked failed: %v", err)
	}
	if err := tx.Apply(l); err != nil {
		t.Fatalf("create apply failed: %v", err)
	}
	if err := l.Consume(tx.Note.ID, hashlock.ClaimArgs{Secret: secret, Claimant: "0xclaimant"}); err != nil {
		t.Fatalf("claim failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "ledger.json")
	if err := l.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read ledger failed: %v", err)
	}

	var secretJSON []byte
	if secretJSON, err = json.Marshal(secret); err != nil {
		t.Fatalf("marshal secret failed: %v", err)
	}
	// Each element encodes as a quoted base64 string inside the secret's JSON
	// array; none of them may appear in the ledger file.
	for _, part := range strings.Split(strings.Trim(string(secretJSON), "[]"), ",") {
		if part != "" && strings.Contains(string(data), part) {
			t.Fatalf("ledger file contains secret element %s", part)
		}
	}

	// The digest, nullifier and claim trace are public and must survive.
	reloaded, err := hashlock.LoadLedgerFromFile(path)
	if err != nil {
		t.Fatalf("LoadLedgerFromFile failed: %v", err)
	}
	nf := new(big.Int).SetBytes(tx.Note.Nullifier()).String()
	if !reloaded.HasNullifier(nf) {
		t.Error("nullifier trace missing after reload")
	}
	if len(reloaded.ClaimList) != 1 {
		t.Error("claim trace missing after reload")
	}
}

// TestProvenClaimLifecycle consumes a note with a Groth16 claim proof instead
// of a revealed preimage. Compiling and setting up BW6-761 keys is expensive,
// so this is skipped under -short.
func TestProvenClaimLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("groth16 setup over BW6-761 is slow")
	}

	l, _, treasury := setupFundedLedger(t, 100)

	// A random secret keeps the leak scan below meaningful: every element's
	// decimal rendering is long enough that it cannot appear in the digest or
	// nullifier digits by accident.
	secret, err := hashlock.RandomSecret()
	if err != nil {
		t.Fatalf("RandomSecret failed: %v", err)
	}
	tx, err := create.HashLocked(treasury,
		asset.FungibleAsset{FaucetID: "0xfaucet", Amount: 100},
		hashlock.ComputeDigest(secret), hashlock.NoteTypePublic, 0)
	if err != nil {
		t.Fatalf("HashLocked failed: %v", err)
	}
	if err := tx.Apply(l); err != nil {
		t.Fatalf("create apply failed: %v", err)
	}

	ccs, err := consume.Compile()
	if err != nil {
		t.Fatalf("circuit compile failed: %v", err)
	}
	keyDir := t.TempDir()
	pk, vk, err := consume.SetupOrLoadKeys(ccs,
		filepath.Join(keyDir, "claim_pk.bin"), filepath.Join(keyDir, "claim_vk.bin"))
	if err != nil {
		t.Fatalf("key setup failed: %v", err)
	}

	claimant := hashlock.AccountID("0xclaimant")
	claim, err := consume.Claim(tx.Note, secret, claimant, ccs, pk)
	if err != nil {
		t.Fatalf("proof generation failed: %v", err)
	}

	// The claim carries only public values.
	if len(claim.Proof) == 0 {
		t.Fatal("claim is missing its proof")
	}
	serialized, err := json.Marshal(claim)
	if err != nil {
		t.Fatalf("marshal claim failed: %v", err)
	}
	for i := range secret {
		el := secret[i]
		if strings.Contains(string(serialized), el.String()) {
			t.Errorf("claim leaks secret element %d", i)
		}
	}

	if err := consume.Apply(l, claim, vk); err != nil {
		t.Fatalf("proven claim rejected: %v", err)
	}
	if got := l.BalanceOf(claimant, "0xfaucet"); got != 100 {
		t.Errorf("claimant balance = %d, want 100", got)
	}

	// The same proof cannot settle twice.
	err = consume.Apply(l, claim, vk)
	if !errors.Is(err, hashlock.ErrNoteSpent) {
		t.Errorf("proof replay, err=%v", err)
	}

	// A proof built from a wrong secret is self-consistent but carries the
	// wrong public digest; Apply must reject it before settlement.
	l.Credit(treasury, "0xfaucet", 50)
	wrong := hashlock.NewSecret([4]uint64{1, 2, 3, 5})
	tx2, err := create.HashLocked(treasury, asset.FungibleAsset{FaucetID: "0xfaucet", Amount: 50},
		hashlock.ComputeDigest(secret), hashlock.NoteTypePublic, 1)
	if err != nil {
		t.Fatalf("HashLocked failed: %v", err)
	}
	if err := tx2.Apply(l); err != nil {
		t.Fatalf("create apply failed: %v", err)
	}
	badClaim, err := consume.Claim(tx2.Note, wrong, claimant, ccs, pk)
	if err != nil {
		t.Fatalf("proof generation failed: %v", err)
	}
	err = consume.Apply(l, badClaim, vk)
	if !errors.Is(err, hashlock.ErrDigestMismatch) {
		t.Errorf("wrong-secret proof, err=%v", err)
	}
	if rec, _ := l.GetNote(tx2.Note.ID); rec.Consumed {
		t.Error("rejected proof consumed the note")
	}
}
