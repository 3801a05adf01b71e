package hashlock

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func newTestOperator(t *testing.T) *Participant {
	t.Helper()
	dir := t.TempDir()
	op, err := NewParticipant("operator", RoleOperator,
		filepath.Join(dir, "ledger.json"), dir, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewParticipant failed: %v", err)
	}
	return op
}

func TestWalletSpentTracking(t *testing.T) {
	secret := NewSecret([4]uint64{1, 2, 3, 4})
	note := lockedNote(t, secret, 100)

	w := &Wallet{Name: "claimant", Account: "0xclaimant"}
	w.AddNote(note, &secret)
	if len(w.UnspentEntries()) != 1 {
		t.Fatal("fresh note not listed as unspent")
	}

	l := NewLedger()
	if err := l.RecordNote(note); err != nil {
		t.Fatalf("RecordNote failed: %v", err)
	}
	if err := l.Consume(note.ID, ClaimArgs{Secret: secret, Claimant: "0xclaimant"}); err != nil {
		t.Fatalf("claim failed: %v", err)
	}

	w.CheckNoteStatusAgainstLedger(l)
	if len(w.UnspentEntries()) != 0 {
		t.Error("consumed note still listed as unspent")
	}
}

func TestWalletFileRoundTrip(t *testing.T) {
	secret := NewSecret([4]uint64{5, 5, 5, 5})
	note := lockedNote(t, secret, 10)

	w := &Wallet{Name: "claimant", Account: "0xclaimant"}
	w.AddNote(note, &secret)

	path := filepath.Join(t.TempDir(), "wallet.json")
	if err := w.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded, err := LoadWallet(path)
	if err != nil {
		t.Fatalf("LoadWallet failed: %v", err)
	}
	if len(loaded.Entries) != 1 || loaded.Entries[0].Secret == nil {
		t.Fatal("wallet entry lost across reload")
	}
	if !ComputeDigest(*loaded.Entries[0].Secret).Equal(ComputeDigest(secret)) {
		t.Error("wallet secret corrupted across reload")
	}
}

func TestOperatorClaimEndpoint(t *testing.T) {
	op := newTestOperator(t)
	defer op.Close()

	srv := httptest.NewServer(op.Mux())
	defer srv.Close()

	// Seed the ledger with a funded sender and a locked note.
	secret := NewSecret([4]uint64{1, 2, 3, 4})
	note := lockedNote(t, secret, 100)
	ledger := NewLedger()
	ledger.Credit("0xtreasury", "0xfaucet", 100)
	if err := ledger.SaveToFile(op.LedgerPath); err != nil {
		t.Fatalf("seed ledger failed: %v", err)
	}

	postJSON := func(path string, body interface{}) *http.Response {
		t.Helper()
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal failed: %v", err)
		}
		resp, err := http.Post(srv.URL+path, "application/json", bytes.NewReader(data))
		if err != nil {
			t.Fatalf("post %s failed: %v", path, err)
		}
		return resp
	}

	resp := postJSON("/note", NoteRequest{Note: note})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("note submission status = %d", resp.StatusCode)
	}

	claimant, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("keygen failed: %v", err)
	}
	opPub, err := FetchPeerPubKey(srv.Listener.Addr().String())
	if err != nil {
		t.Fatalf("FetchPeerPubKey failed: %v", err)
	}
	shared := ComputeShared(claimant.Sk, opPub)

	claimantPubX := claimant.Pk.X.Bytes()
	claimantPubY := claimant.Pk.Y.Bytes()
	req := ClaimRequest{
		NoteID:   note.ID,
		Claimant: AccountIDFromPub(claimant.Pk),
		ClaimantPub: PubKeyResponse{
			X: hex.EncodeToString(claimantPubX[:]),
			Y: hex.EncodeToString(claimantPubY[:]),
		},
	}

	// Wrong secret is rejected with conflict and the note stays open.
	wrong := NewSecret([4]uint64{1, 2, 3, 5})
	req.MaskedSecret = MaskSecret(wrong, shared)
	resp = postJSON("/claim", req)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("wrong secret status = %d, want 409", resp.StatusCode)
	}

	// Correct secret consumes the note.
	req.MaskedSecret = MaskSecret(secret, shared)
	resp = postJSON("/claim", req)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("valid claim status = %d", resp.StatusCode)
	}

	// Replay bounces.
	resp = postJSON("/claim", req)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("replay status = %d, want 409", resp.StatusCode)
	}

	final, err := LoadLedgerFromFile(op.LedgerPath)
	if err != nil {
		t.Fatalf("load final ledger failed: %v", err)
	}
	if got := final.BalanceOf(AccountIDFromPub(claimant.Pk), "0xfaucet"); got != 100 {
		t.Errorf("claimant balance = %d, want 100", got)
	}
	if got := final.BalanceOf("0xtreasury", "0xfaucet"); got != 0 {
		t.Errorf("treasury balance = %d, want 0", got)
	}

	// The wire requests never carried the raw secret; sanity check the ledger
	// file as well.
	data, err := os.ReadFile(op.LedgerPath)
	if err != nil {
		t.Fatalf("read ledger failed: %v", err)
	}
	if containsSecretBytes(data, secret) {
		t.Error("ledger file contains the claim secret")
	}
}
