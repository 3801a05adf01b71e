// main.go - End-to-end commitment-gated note scenario.
//
// Demonstrates the full protocol on a fresh ledger:
//   - a treasury mints a bounded supply from its faucet
//   - N hash-locked notes are created, each gated on a fresh secret
//   - a claimant fails with a wrong secret, succeeds with the right one, and
//     is rejected on replay
//   - one note is consumed through a zero-knowledge claim proof instead of a
//     disclosed secret
//
// Architecture:
//   - the ledger is a single append-only JSON file (ledger.json)
//   - claim secrets are held in a goleveldb wallet store, never on the ledger
//   - circuit keys live under keys/ and are generated on first run
//
// Usage:
//
//	go run main.go
package main

import (
	"errors"
	"os"

	"github.com/rs/zerolog"

	"hashlock/database"
	"hashlock/internal/asset"
	"hashlock/internal/hashlock"
	"hashlock/internal/transactions/consume"
	"hashlock/internal/transactions/create"
	"hashlock/internal/transactions/mint"
)

const numNotes = 5

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
		Level(zerolog.InfoLevel).
		With().Timestamp().Logger()

	log.Info().Msg("=== commitment-gated note protocol: demo scenario ===")

	for _, dir := range []string{"wallets", "keys", "store"} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatal().Err(err).Str("dir", dir).Msg("cannot create directory")
		}
	}

	// 1. Claim circuit setup (generated on first run, loaded afterwards)
	log.Info().Msg("compiling claim circuit")
	ccs, err := consume.Compile()
	if err != nil {
		log.Fatal().Err(err).Msg("claim circuit compilation failed")
	}
	pk, vk, err := consume.SetupOrLoadKeys(ccs, "keys/claim_pk.bin", "keys/claim_vk.bin")
	if err != nil {
		log.Fatal().Err(err).Msg("claim key setup failed")
	}

	// 2. Participants and ledger
	ledgerPath := "ledger.json"
	treasury, err := hashlock.NewParticipant("treasury", hashlock.RoleCreator, ledgerPath, "wallets", log)
	if err != nil {
		log.Fatal().Err(err).Msg("treasury init failed")
	}
	defer treasury.Close()
	claimant, err := hashlock.NewParticipant("claimant", hashlock.RoleClaimant, ledgerPath, "wallets", log)
	if err != nil {
		log.Fatal().Err(err).Msg("claimant init failed")
	}
	defer claimant.Close()

	ledger := hashlock.NewLedger()

	store, err := database.New("store/claimant.db")
	if err != nil {
		log.Fatal().Err(err).Msg("store open failed")
	}
	defer store.Close()

	// 3. Faucet issuance
	faucet, err := asset.NewFaucet(string(treasury.Account), "TST", 6, 100_000)
	if err != nil {
		log.Fatal().Err(err).Msg("faucet init failed")
	}
	mintTx, err := mint.Mint(faucet, treasury.Account, numNotes*100)
	if err != nil {
		log.Fatal().Err(err).Msg("mint failed")
	}
	if err := mintTx.Apply(ledger); err != nil {
		log.Fatal().Err(err).Msg("mint apply failed")
	}
	log.Info().Uint64("amount", mintTx.Asset.Amount).Str("faucet", faucet.Symbol).Msg("minted")

	// 4. Create hash-locked notes, handing each secret to the claimant's store
	notes := make([]*hashlock.Note, 0, numNotes)
	for i := 0; i < numNotes; i++ {
		secret, err := hashlock.RandomSecret()
		if err != nil {
			log.Fatal().Err(err).Msg("secret sampling failed")
		}
		digest := hashlock.ComputeDigest(secret)
		tx, err := create.HashLocked(treasury.Account,
			asset.FungibleAsset{FaucetID: faucet.ID, Amount: 100},
			digest, hashlock.NoteTypePublic, uint32(i))
		if err != nil {
			log.Fatal().Err(err).Msg("note construction failed")
		}
		if err := tx.Apply(ledger); err != nil {
			log.Fatal().Err(err).Msg("note creation failed")
		}
		if err := store.PutClaimSecret(tx.Note.ID, secret); err != nil {
			log.Fatal().Err(err).Msg("secret store failed")
		}
		if err := store.PutNoteRecord(tx.Note.ID, false, 100); err != nil {
			log.Fatal().Err(err).Msg("note record store failed")
		}
		treasury.Wallet.AddNote(tx.Note, nil)
		notes = append(notes, tx.Note)
		log.Info().Str("note", tx.Note.IDString()).Msg("hash-locked note created")
	}

	// 5. Claims: wrong secret rejected, right secret settles, replay rejected
	target := notes[0]
	wrong, _ := hashlock.RandomSecret()
	err = ledger.Consume(target.ID, hashlock.ClaimArgs{Secret: wrong, Claimant: claimant.Account})
	if !errors.Is(err, hashlock.ErrDigestMismatch) {
		log.Fatal().Err(err).Msg("wrong secret should have been rejected")
	}
	log.Info().Msg("wrong secret rejected, note still claimable")

	secret, err := store.FetchClaimSecret(target.ID)
	if err != nil {
		log.Fatal().Err(err).Msg("secret fetch failed")
	}
	if err := ledger.Consume(target.ID, hashlock.ClaimArgs{Secret: secret, Claimant: claimant.Account}); err != nil {
		log.Fatal().Err(err).Msg("claim with correct secret failed")
	}
	if err := store.MarkConsumed(target.ID); err != nil {
		log.Fatal().Err(err).Msg("store update failed")
	}
	log.Info().Uint64("balance", ledger.BalanceOf(claimant.Account, faucet.ID)).Msg("note consumed")

	err = ledger.Consume(target.ID, hashlock.ClaimArgs{Secret: secret, Claimant: claimant.Account})
	if !errors.Is(err, hashlock.ErrNoteSpent) {
		log.Fatal().Err(err).Msg("replay should have been rejected")
	}
	log.Info().Msg("replay rejected")

	// 6. Proven claim: consume a note without disclosing the secret
	proven := notes[1]
	secret, err = store.FetchClaimSecret(proven.ID)
	if err != nil {
		log.Fatal().Err(err).Msg("secret fetch failed")
	}
	log.Info().Msg("generating claim proof")
	claimTx, err := consume.Claim(proven, secret, claimant.Account, ccs, pk)
	if err != nil {
		log.Fatal().Err(err).Msg("claim proof generation failed")
	}
	if err := consume.Apply(ledger, claimTx, vk); err != nil {
		log.Fatal().Err(err).Msg("proven claim failed")
	}
	if err := store.MarkConsumed(proven.ID); err != nil {
		log.Fatal().Err(err).Msg("store update failed")
	}
	log.Info().Uint64("balance", ledger.BalanceOf(claimant.Account, faucet.ID)).Msg("note consumed via proof")

	// 7. Flush state
	treasury.Wallet.CheckNoteStatusAgainstLedger(ledger)
	if err := ledger.SaveToFile(ledgerPath); err != nil {
		log.Fatal().Err(err).Msg("ledger save failed")
	}
	remaining, err := store.ClaimableBalance()
	if err != nil {
		log.Fatal().Err(err).Msg("store balance failed")
	}
	log.Info().
		Uint64("claimed", ledger.BalanceOf(claimant.Account, faucet.ID)).
		Uint64("claimable", remaining).
		Uint64("unissued", faucet.Remaining()).
		Msg("scenario complete")
}
