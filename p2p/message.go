package p2p

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	bls12377 "github.com/consensys/gnark-crypto/ecc/bls12-377"
	"github.com/consensys/gnark-crypto/ecc/bls12-377/fr"

	"hashlock/internal/hashlock"
)

// --- Custom JSON marshaling for gnark-crypto types ---

// G1AffineJSON is a wrapper around bls12377.G1Affine to implement custom JSON
// marshaling.
type G1AffineJSON struct {
	bls12377.G1Affine
}

// MarshalJSON implements the json.Marshaler interface.
func (p G1AffineJSON) MarshalJSON() ([]byte, error) {
	bytes := p.G1Affine.Marshal()
	return []byte(`"` + base64.StdEncoding.EncodeToString(bytes) + `"`), nil
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (p *G1AffineJSON) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("invalid JSON string for G1AffineJSON")
	}
	b, err := base64.StdEncoding.DecodeString(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	return p.G1Affine.Unmarshal(b)
}

// Message is the generic envelope for any message sent over the network.
type Message struct {
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	SenderID string          `json:"senderId"`
}

// Message types understood by every node.
const (
	MsgHandshakeInitiate = "handshake_initiate"
	MsgHandshakeResponse = "handshake_response"
	MsgNoteAnnounce      = "note_announce"
	MsgClaimRequest      = "claim_request"
	MsgClaimResult       = "claim_result"
)

// --- Handshake state and payloads ---

// HandshakeState holds the state of a single DH exchange with a peer. The
// shared point masks claim secrets sent to that peer.
type HandshakeState struct {
	OurSecret    fr.Element
	OurPublic    bls12377.G1Affine
	TheirPublic  bls12377.G1Affine
	SharedSecret bls12377.G1Affine
	Status       string // "initiated" or "completed"
}

// HandshakeInitiatePayload carries the initiator's public key.
type HandshakeInitiatePayload struct {
	SenderID  string
	PublicKey G1AffineJSON
}

// HandshakeResponsePayload carries the responder's public key back.
type HandshakeResponsePayload struct {
	SenderID  string
	PublicKey G1AffineJSON
}

// --- Protocol payloads ---

// NoteAnnouncePayload broadcasts a freshly recorded note. Private notes are
// announced in stripped form (identifier and tag only); the sender is expected
// to call Note.Announcement before broadcasting.
type NoteAnnouncePayload struct {
	SenderID string         `json:"sender_id"`
	Note     *hashlock.Note `json:"note"`
}

// ClaimRequestPayload asks the peer operating the ledger to consume a note.
// The candidate secret is masked under the completed handshake's shared point,
// so it is never observable on the wire.
type ClaimRequestPayload struct {
	SenderID     string                     `json:"sender_id"`
	NoteID       []byte                     `json:"note_id"`
	Claimant     hashlock.AccountID         `json:"claimant"`
	MaskedSecret [hashlock.SecretLen][]byte `json:"masked_secret"`
}

// ClaimResultPayload reports the outcome of a claim back to the requester.
type ClaimResultPayload struct {
	SenderID string `json:"sender_id"`
	NoteID   []byte `json:"note_id"`
	OK       bool   `json:"ok"`
	Reason   string `json:"reason,omitempty"`
}
