// ledger.go - Append-only ledger for commitment-gated notes.
//
// The Ledger records notes, nullifiers, balances and applied claims, and is
// persisted as a single JSON file. Consumption is atomic: either the script
// accepts and the asset moves with the nullifier recorded, or nothing changes.
//
// NOTE: Ledger is not thread-safe by itself; use a sync.Mutex for concurrent
// access.

package hashlock

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
)

var (
	// ErrNoteNotFound is returned for claims against unknown identifiers.
	ErrNoteNotFound = errors.New("note not found")
	// ErrNoteSpent rejects a second claim against an already consumed note.
	ErrNoteSpent = errors.New("note already consumed: nullifier recorded")
	// ErrDuplicateNote rejects re-recording an existing note identifier.
	ErrDuplicateNote = errors.New("note identifier already recorded")
	// ErrInsufficientFunds rejects note creation not covered by the sender's
	// balance.
	ErrInsufficientFunds = errors.New("insufficient balance to fund note")
)

// NoteRecord is a note together with its consumption state. A note is created
// once and consumed at most once; consumption is terminal.
type NoteRecord struct {
	Note       *Note     `json:"note"`
	Consumed   bool      `json:"consumed"`
	ConsumedBy AccountID `json:"consumed_by,omitempty"`
}

// ClaimRecord is the public trace of a successful consumption. It carries the
// nullifier and claimant, never the secret.
type ClaimRecord struct {
	NoteID    string    `json:"note_id"`
	Claimant  AccountID `json:"claimant"`
	Nullifier string    `json:"nullifier"`
}

// Ledger is the canonical, append-only record of the note protocol.
type Ledger struct {
	Records   map[string]*NoteRecord          `json:"records"`
	NullList  []string                        `json:"null_list"`
	Balances  map[AccountID]map[string]uint64 `json:"balances"`
	ClaimList []*ClaimRecord                  `json:"claim_list"`
}

// NewLedger creates a new, empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		Records:  make(map[string]*NoteRecord),
		NullList: make([]string, 0),
		Balances: make(map[AccountID]map[string]uint64),
	}
}

func ledgerKey(id []byte) string {
	return new(big.Int).SetBytes(id).String()
}

// RecordNote appends a freshly constructed note. Duplicate identifiers are
// rejected.
func (l *Ledger) RecordNote(n *Note) error {
	key := ledgerKey(n.ID)
	if _, ok := l.Records[key]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateNote, key)
	}
	l.Records[key] = &NoteRecord{Note: n}
	return nil
}

// GetNote looks up a note record by identifier.
func (l *Ledger) GetNote(id []byte) (*NoteRecord, bool) {
	rec, ok := l.Records[ledgerKey(id)]
	return rec, ok
}

// HasNullifier returns true if the nullifier has already been recorded.
func (l *Ledger) HasNullifier(nf string) bool {
	for _, s := range l.NullList {
		if s == nf {
			return true
		}
	}
	return false
}

// Consume claims a note. The claimant's secret arrives as a private argument;
// the ledger runs the note's script and only on success moves the assets,
// records the nullifier and marks the note consumed. A failed claim leaves the
// note unclaimed and eligible for a future attempt.
func (l *Ledger) Consume(noteID []byte, args ClaimArgs) error {
	rec, ok := l.Records[ledgerKey(noteID)]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoteNotFound, ledgerKey(noteID))
	}
	nf := ledgerKey(rec.Note.Nullifier())
	if rec.Consumed || l.HasNullifier(nf) {
		return ErrNoteSpent
	}
	script, err := ScriptFor(rec.Note.Recipient.ScriptKind)
	if err != nil {
		return err
	}
	if err := script.Verify(rec.Note.Recipient.Inputs, args); err != nil {
		return err
	}
	l.settle(rec, nf, args.Claimant)
	return nil
}

// ConsumeProven claims a note on behalf of a claimant whose authorization was
// established out of band (a verified zero-knowledge claim proof). The caller
// must have checked the proof against the note's digest; the ledger only
// cross-checks the nullifier binding and enforces at-most-once.
func (l *Ledger) ConsumeProven(noteID, nullifier []byte, claimant AccountID) error {
	rec, ok := l.Records[ledgerKey(noteID)]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoteNotFound, ledgerKey(noteID))
	}
	nf := ledgerKey(rec.Note.Nullifier())
	if nf != ledgerKey(nullifier) {
		return fmt.Errorf("%w (nullifier does not bind to note)", ErrDigestMismatch)
	}
	if rec.Consumed || l.HasNullifier(nf) {
		return ErrNoteSpent
	}
	l.settle(rec, nf, claimant)
	return nil
}

// settle performs the terminal state transition. Callers have already
// authorized the claim.
func (l *Ledger) settle(rec *NoteRecord, nf string, claimant AccountID) {
	l.NullList = append(l.NullList, nf)
	rec.Consumed = true
	rec.ConsumedBy = claimant
	for _, a := range rec.Note.Assets {
		l.Credit(claimant, a.FaucetID, a.Amount)
	}
	l.ClaimList = append(l.ClaimList, &ClaimRecord{
		NoteID:    ledgerKey(rec.Note.ID),
		Claimant:  claimant,
		Nullifier: nf,
	})
}

// Credit adds amount to an account balance for the given faucet.
func (l *Ledger) Credit(acct AccountID, faucetID string, amount uint64) {
	if l.Balances[acct] == nil {
		l.Balances[acct] = make(map[string]uint64)
	}
	l.Balances[acct][faucetID] += amount
}

// Debit removes amount from an account balance, failing without change if the
// balance does not cover it.
func (l *Ledger) Debit(acct AccountID, faucetID string, amount uint64) error {
	if l.Balances[acct][faucetID] < amount {
		return fmt.Errorf("%w: %s has %d, needs %d", ErrInsufficientFunds,
			acct, l.Balances[acct][faucetID], amount)
	}
	l.Balances[acct][faucetID] -= amount
	return nil
}

// BalanceOf reports an account's balance for the given faucet.
func (l *Ledger) BalanceOf(acct AccountID, faucetID string) uint64 {
	return l.Balances[acct][faucetID]
}

// SaveToFile saves the ledger to a JSON file, overwriting it if it exists.
func (l *Ledger) SaveToFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(l)
}

// LoadLedgerFromFile loads the ledger from a JSON file.
func LoadLedgerFromFile(path string) (*Ledger, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var l Ledger
	if err := json.NewDecoder(f).Decode(&l); err != nil {
		return nil, err
	}
	if l.Records == nil {
		l.Records = make(map[string]*NoteRecord)
	}
	if l.Balances == nil {
		l.Balances = make(map[AccountID]map[string]uint64)
	}
	return &l, nil
}
