package create

import (
	"fmt"

	"hashlock/internal/asset"
	"hashlock/internal/hashlock"
)

// CreateTx moves funds out of the sender's balance into a freshly constructed
// note. The note is immutable once the tx is built; applying the tx debits the
// sender and records the note atomically.
type CreateTx struct {
	Sender hashlock.AccountID `json:"sender"`
	Note   *hashlock.Note     `json:"note"`
}

// HashLocked builds a creation tx for a note gated on the digest of a secret.
// The caller computes the digest with hashlock.ComputeDigest and keeps the
// secret for the intended claimant; only the digest enters the note.
func HashLocked(sender hashlock.AccountID, a asset.FungibleAsset, digest hashlock.Digest, typ hashlock.NoteType, tag uint32) (*CreateTx, error) {
	note, err := hashlock.NewHashLockNote(sender, a, digest, typ, tag)
	if err != nil {
		return nil, fmt.Errorf("note construction failed: %w", err)
	}
	return &CreateTx{Sender: sender, Note: note}, nil
}

// PayToID builds a creation tx for a note claimable only by owner.
func PayToID(sender hashlock.AccountID, a asset.FungibleAsset, owner hashlock.AccountID, typ hashlock.NoteType, tag uint32) (*CreateTx, error) {
	note, err := hashlock.NewPayToIDNote(sender, a, owner, typ, tag)
	if err != nil {
		return nil, fmt.Errorf("note construction failed: %w", err)
	}
	return &CreateTx{Sender: sender, Note: note}, nil
}

// Apply debits the sender and records the note. Nothing changes if the
// sender's balance does not cover the locked assets. A tx whose note is
// already recorded is a duplicate regardless of the sender's balance.
func (tx *CreateTx) Apply(l *hashlock.Ledger) error {
	if _, ok := l.GetNote(tx.Note.ID); ok {
		return fmt.Errorf("%w: %s", hashlock.ErrDuplicateNote, tx.Note.IDString())
	}
	for _, a := range tx.Note.Assets {
		if l.BalanceOf(tx.Sender, a.FaucetID) < a.Amount {
			return fmt.Errorf("create rejected: %w", hashlock.ErrInsufficientFunds)
		}
	}
	if err := l.RecordNote(tx.Note); err != nil {
		return err
	}
	for _, a := range tx.Note.Assets {
		// Covered by the balance check above.
		if err := l.Debit(tx.Sender, a.FaucetID, a.Amount); err != nil {
			return err
		}
	}
	return nil
}
