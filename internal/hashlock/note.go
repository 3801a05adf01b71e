// note.go - Note type for the commitment-gated note protocol.
//
// A Note is an immutable bundle of assets plus consumption logic and public
// inputs. Once constructed it can be consumed at most once; consumption is
// authorized by the note's script, never by the note's owner field alone.

package hashlock

import (
	"encoding/binary"
	"encoding/hex"
	"math/big"

	bls12377 "github.com/consensys/gnark-crypto/ecc/bls12-377"

	"hashlock/internal/asset"
)

// AccountID identifies an account on the ledger. Derived from the account's
// public key, never chosen freely.
type AccountID string

// AccountIDFromPub derives the account identifier from a BLS12-377 public key.
func AccountIDFromPub(pk *bls12377.G1Affine) AccountID {
	x := pk.X.Bytes()
	y := pk.Y.Bytes()
	h := mimcHash(x[:], y[:])
	return AccountID("0x" + hex.EncodeToString(h[:16]))
}

// NoteType controls how much of a note is broadcast to the network.
type NoteType string

const (
	// NoteTypePublic notes are announced in full: assets, metadata and the
	// digest inputs are all visible. The secret still never appears.
	NoteTypePublic NoteType = "public"
	// NoteTypePrivate notes are announced by identifier only.
	NoteTypePrivate NoteType = "private"
)

// Metadata carries the public, non-consumption fields of a note.
type Metadata struct {
	Sender AccountID `json:"sender"`
	Type   NoteType  `json:"type"`
	Tag    uint32    `json:"tag"`
}

// Recipient is the consumption descriptor of a note: a fresh serial number,
// the consumption script, and the script's public input vector. For a
// hash-locked note the inputs are exactly the commitment digest.
type Recipient struct {
	Serial     []byte     `json:"serial"`
	ScriptKind ScriptKind `json:"script_kind"`
	ScriptRoot []byte     `json:"script_root"`
	Inputs     [][]byte   `json:"inputs"`
}

// Note is the transferable value container. ID is a deterministic hash over
// asset payload, metadata and recipient descriptor, computed at construction.
type Note struct {
	Assets    []asset.FungibleAsset `json:"assets"`
	Meta      Metadata              `json:"meta"`
	Recipient Recipient             `json:"recipient"`
	ID        []byte                `json:"id"`
}

// NewNote assembles an immutable note and computes its identifier.
func NewNote(assets []asset.FungibleAsset, meta Metadata, rcpt Recipient) *Note {
	n := &Note{
		Assets:    assets,
		Meta:      meta,
		Recipient: rcpt,
	}
	n.ID = computeNoteID(n)
	return n
}

// NewHashLockNote builds a note whose single asset may be claimed only by a
// party producing a preimage of digest. The digest, and only the digest, is
// embedded as the note's input vector; the caller keeps the secret off-note.
// A fresh random serial number is assigned so that no two notes collide.
func NewHashLockNote(sender AccountID, a asset.FungibleAsset, digest Digest, typ NoteType, tag uint32) (*Note, error) {
	serial, err := randomSerial()
	if err != nil {
		return nil, err
	}
	script := HashLockScript{}
	rcpt := Recipient{
		Serial:     serial,
		ScriptKind: script.Kind(),
		ScriptRoot: script.Root(),
		Inputs:     digest.Bytes(),
	}
	meta := Metadata{Sender: sender, Type: typ, Tag: tag}
	return NewNote([]asset.FungibleAsset{a}, meta, rcpt), nil
}

// NewPayToIDNote builds a note claimable only by the named owner account.
func NewPayToIDNote(sender AccountID, a asset.FungibleAsset, owner AccountID, typ NoteType, tag uint32) (*Note, error) {
	serial, err := randomSerial()
	if err != nil {
		return nil, err
	}
	script := PayToIDScript{}
	rcpt := Recipient{
		Serial:     serial,
		ScriptKind: script.Kind(),
		ScriptRoot: script.Root(),
		Inputs:     [][]byte{mimcHash([]byte(owner))},
	}
	meta := Metadata{Sender: sender, Type: typ, Tag: tag}
	return NewNote([]asset.FungibleAsset{a}, meta, rcpt), nil
}

// Nullifier derives the replay marker the ledger records when this note is
// consumed.
func (n *Note) Nullifier() []byte {
	return ComputeNullifier(n.Recipient.Serial, n.ID)
}

// IDString renders the note identifier the way the ledger keys it.
func (n *Note) IDString() string {
	return new(big.Int).SetBytes(n.ID).String()
}

// Announcement returns the note as it should be broadcast. Private notes are
// stripped down to identifier and tag; the consumption condition and the
// payload stay between creator and claimant.
func (n *Note) Announcement() *Note {
	if n.Meta.Type != NoteTypePrivate {
		return n
	}
	return &Note{
		Meta: Metadata{Sender: n.Meta.Sender, Type: n.Meta.Type, Tag: n.Meta.Tag},
		ID:   n.ID,
	}
}

// computeNoteID hashes asset payload, metadata and recipient descriptor into
// the note identifier. Distinct (asset, digest, serial) triples give distinct
// identifiers except with negligible probability.
func computeNoteID(n *Note) []byte {
	var chunks [][]byte
	for _, a := range n.Assets {
		amt := make([]byte, 8)
		binary.BigEndian.PutUint64(amt, a.Amount)
		chunks = append(chunks, []byte(a.FaucetID), amt)
	}
	tag := make([]byte, 4)
	binary.BigEndian.PutUint32(tag, n.Meta.Tag)
	chunks = append(chunks, []byte(n.Meta.Sender), []byte(n.Meta.Type), tag)
	chunks = append(chunks, n.Recipient.Serial, []byte(n.Recipient.ScriptKind), n.Recipient.ScriptRoot)
	chunks = append(chunks, n.Recipient.Inputs...)
	return mimcHash(chunks...)
}
