// participant.go - Session state and REST surface for protocol participants.
//
// A Participant is an explicit session object with a bounded lifecycle: opened
// at the start of a workflow with its keypair, wallet and ledger path, closed
// by flushing wallet and ledger state. Nothing here is ambient or global.
//
// The operator role exposes REST endpoints for note submission and claims.
// Claim secrets arrive masked under a DH shared key and are unmasked only in
// process memory.

package hashlock

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"

	bls12377 "github.com/consensys/gnark-crypto/ecc/bls12-377"
	"github.com/rs/zerolog"
)

// Role names what a participant does in a workflow.
type Role string

const (
	RoleCreator  Role = "creator"
	RoleClaimant Role = "claimant"
	RoleOperator Role = "operator"
)

// WalletEntry tracks one note the wallet knows about, with the claim secret
// when this wallet can open it. Spent is re-derived from ledger nullifiers.
type WalletEntry struct {
	Note   *Note   `json:"note"`
	Secret *Secret `json:"secret,omitempty"`
	Spent  bool    `json:"spent"`
}

// Wallet stores a participant's notes and claim secrets.
type Wallet struct {
	Name    string         `json:"name"`
	Account AccountID      `json:"account"`
	Entries []*WalletEntry `json:"entries"`
}

// LoadWallet loads a wallet from a JSON file.
func LoadWallet(path string) (*Wallet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var w Wallet
	if err := json.NewDecoder(f).Decode(&w); err != nil {
		return nil, err
	}
	return &w, nil
}

// Save saves the wallet to a JSON file.
func (w *Wallet) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(w)
}

// AddNote records a note, with its claim secret when known.
func (w *Wallet) AddNote(note *Note, secret *Secret) {
	w.Entries = append(w.Entries, &WalletEntry{Note: note, Secret: secret})
}

// UnspentEntries returns entries not yet consumed on the ledger.
func (w *Wallet) UnspentEntries() []*WalletEntry {
	var out []*WalletEntry
	for _, e := range w.Entries {
		if !e.Spent {
			out = append(out, e)
		}
	}
	return out
}

// CheckNoteStatusAgainstLedger re-derives spent state from ledger nullifiers.
// Useful when notes were consumed by other participants or in other sessions.
func (w *Wallet) CheckNoteStatusAgainstLedger(l *Ledger) {
	for _, e := range w.Entries {
		if e.Spent {
			continue
		}
		if l.HasNullifier(ledgerKey(e.Note.Nullifier())) {
			e.Spent = true
		}
	}
}

// Participant is a node in a protocol workflow.
type Participant struct {
	Name       string
	Role       Role
	Keys       *KeyPair
	Account    AccountID
	Wallet     *Wallet
	LedgerPath string
	WalletPath string
	Mu         sync.Mutex
	Log        zerolog.Logger
}

// NewParticipant opens a session: generates a fresh keypair and loads or
// creates the participant's wallet file.
func NewParticipant(name string, role Role, ledgerPath, walletDir string, log zerolog.Logger) (*Participant, error) {
	kp, err := GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("%s keygen failed: %w", name, err)
	}
	account := AccountIDFromPub(kp.Pk)
	walletPath := fmt.Sprintf("%s/%s_wallet.json", walletDir, name)
	wallet, err := LoadWallet(walletPath)
	if err != nil {
		wallet = &Wallet{Name: name, Account: account}
		if err := wallet.Save(walletPath); err != nil {
			return nil, fmt.Errorf("wallet init failed: %w", err)
		}
	}
	// A reloaded wallet keeps its recorded account; the session keypair is
	// ephemeral transport identity.
	if wallet.Account == "" {
		wallet.Account = account
	}
	return &Participant{
		Name:       name,
		Role:       role,
		Keys:       kp,
		Account:    account,
		Wallet:     wallet,
		LedgerPath: ledgerPath,
		WalletPath: walletPath,
		Log:        log.With().Str("participant", name).Str("role", string(role)).Logger(),
	}, nil
}

// Close flushes the wallet. The ledger is flushed on every applied change.
func (p *Participant) Close() error {
	p.Mu.Lock()
	defer p.Mu.Unlock()
	return p.Wallet.Save(p.WalletPath)
}

// PubKeyResponse is the REST response for a public key, hex-encoded
// BLS12-377 G1Affine coordinates.
type PubKeyResponse struct {
	X string `json:"x"`
	Y string `json:"y"`
}

// NoteRequest submits a freshly constructed note for recording.
type NoteRequest struct {
	Note *Note `json:"note"`
}

// ClaimRequest submits a consumption attempt. The secret is masked under the
// DH shared key of the claimant's keypair and the operator's public key.
type ClaimRequest struct {
	NoteID       []byte            `json:"note_id"`
	Claimant     AccountID         `json:"claimant"`
	ClaimantPub  PubKeyResponse    `json:"claimant_pub"`
	MaskedSecret [SecretLen][]byte `json:"masked_secret"`
}

// PubKey returns the participant's public key as a REST response.
func (p *Participant) PubKey() PubKeyResponse {
	x := p.Keys.Pk.X.Bytes()
	y := p.Keys.Pk.Y.Bytes()
	return PubKeyResponse{X: hex.EncodeToString(x[:]), Y: hex.EncodeToString(y[:])}
}

// Mux builds the participant's REST surface.
func (p *Participant) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/pubkey", p.handlePubKey)
	mux.HandleFunc("/note", p.handleNote)
	mux.HandleFunc("/claim", p.handleClaim)
	return mux
}

// RunServer starts the REST server for this participant.
func (p *Participant) RunServer(port int) {
	go func() {
		p.Log.Info().Int("port", port).Msg("listening")
		if err := http.ListenAndServe(fmt.Sprintf(":%d", port), p.Mux()); err != nil {
			p.Log.Fatal().Err(err).Msg("server error")
		}
	}()
}

func (p *Participant) handlePubKey(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(p.PubKey())
}

// handleNote records a submitted note on the ledger, debiting the sender.
func (p *Participant) handleNote(w http.ResponseWriter, r *http.Request) {
	var req NoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Note == nil {
		http.Error(w, "invalid note request", http.StatusBadRequest)
		return
	}
	p.Mu.Lock()
	defer p.Mu.Unlock()
	ledger, err := p.openLedger()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	for _, a := range req.Note.Assets {
		if err := ledger.Debit(req.Note.Meta.Sender, a.FaucetID, a.Amount); err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
	}
	if err := ledger.RecordNote(req.Note); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	if err := ledger.SaveToFile(p.LedgerPath); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	p.Log.Info().Str("note", req.Note.IDString()).Msg("note recorded")
	fmt.Fprintf(w, "note recorded: %s", req.Note.IDString())
}

// handleClaim unmasks the candidate secret and attempts consumption. Rejected
// preconditions (wrong secret, spent note) return conflict; the note state is
// unchanged unless the claim succeeds.
func (p *Participant) handleClaim(w http.ResponseWriter, r *http.Request) {
	var req ClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid claim request", http.StatusBadRequest)
		return
	}
	claimantPub, err := decodePub(req.ClaimantPub)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	shared := ComputeShared(p.Keys.Sk, claimantPub)
	secret := UnmaskSecret(req.MaskedSecret, shared)

	p.Mu.Lock()
	defer p.Mu.Unlock()
	ledger, err := p.openLedger()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := ledger.Consume(req.NoteID, ClaimArgs{Secret: secret, Claimant: req.Claimant}); err != nil {
		p.Log.Warn().Err(err).Str("claimant", string(req.Claimant)).Msg("claim rejected")
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	if err := ledger.SaveToFile(p.LedgerPath); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	p.Log.Info().Str("claimant", string(req.Claimant)).Msg("note consumed")
	fmt.Fprint(w, "note consumed")
}

func (p *Participant) openLedger() (*Ledger, error) {
	if l, err := LoadLedgerFromFile(p.LedgerPath); err == nil {
		return l, nil
	}
	return NewLedger(), nil
}

func decodePub(resp PubKeyResponse) (*bls12377.G1Affine, error) {
	xBytes, err := hex.DecodeString(resp.X)
	if err != nil || len(xBytes) != 48 {
		return nil, fmt.Errorf("invalid pubkey X")
	}
	yBytes, err := hex.DecodeString(resp.Y)
	if err != nil || len(yBytes) != 48 {
		return nil, fmt.Errorf("invalid pubkey Y")
	}
	var pk bls12377.G1Affine
	pk.X.SetBytes(xBytes)
	pk.Y.SetBytes(yBytes)
	return &pk, nil
}

// FetchPeerPubKey fetches a peer's public key from their REST endpoint.
func FetchPeerPubKey(addr string) (*bls12377.G1Affine, error) {
	resp, err := http.Get(fmt.Sprintf("http://%s/pubkey", addr))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var pkResp PubKeyResponse
	if err := json.NewDecoder(resp.Body).Decode(&pkResp); err != nil {
		return nil, err
	}
	return decodePub(pkResp)
}
