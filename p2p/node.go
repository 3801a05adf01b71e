package p2p

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"sync"
	"time"

	bls12377 "github.com/consensys/gnark-crypto/ecc/bls12-377"
	"github.com/consensys/gnark-crypto/ecc/bls12-377/fr"
	"github.com/rs/zerolog"
)

// Handler processes one decoded message envelope.
type Handler func(n *Node, msg Message)

// Node is a participant in the note network. It serves a single /message
// endpoint and dispatches envelopes by type to registered handlers; the
// handshake types are handled built-in so any two nodes can derive a shared
// masking point before exchanging claim secrets.
type Node struct {
	ID      string
	Address string
	Peers   map[string]string // node ID -> address
	server  *http.Server
	wg      *sync.WaitGroup
	log     zerolog.Logger

	handlerMutex sync.RWMutex
	handlers     map[string]Handler

	hsMutex             sync.Mutex
	Handshakes          map[string]*HandshakeState // peer ID -> handshake state
	hsCompletionChannel map[string]chan error
}

// NewNode creates and initializes a new Node.
func NewNode(id, address string, peers map[string]string, wg *sync.WaitGroup, log zerolog.Logger) *Node {
	return &Node{
		ID:                  id,
		Address:             address,
		Peers:               peers,
		wg:                  wg,
		log:                 log.With().Str("node", id).Logger(),
		handlers:            make(map[string]Handler),
		Handshakes:          make(map[string]*HandshakeState),
		hsCompletionChannel: make(map[string]chan error),
	}
}

// RegisterHandler installs a handler for a message type, replacing any
// previous one.
func (n *Node) RegisterHandler(msgType string, h Handler) {
	n.handlerMutex.Lock()
	defer n.handlerMutex.Unlock()
	n.handlers[msgType] = h
}

// messageHandler is the HTTP handler for receiving messages. It decodes the
// envelope and dispatches the payload based on its type.
func (n *Node) messageHandler(w http.ResponseWriter, r *http.Request) {
	var msg Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		n.log.Warn().Err(err).Msg("received a bad request")
		return
	}

	n.log.Debug().Str("type", msg.Type).Str("from", msg.SenderID).Msg("received message")

	switch msg.Type {
	case MsgHandshakeInitiate:
		var payload HandshakeInitiatePayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			n.log.Error().Err(err).Msg("unmarshalling HandshakeInitiatePayload")
			return
		}
		n.handleHandshakeInitiate(payload)

	case MsgHandshakeResponse:
		var payload HandshakeResponsePayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			n.log.Error().Err(err).Msg("unmarshalling HandshakeResponsePayload")
			return
		}
		n.handleHandshakeResponse(payload)

	default:
		n.handlerMutex.RLock()
		h, ok := n.handlers[msg.Type]
		n.handlerMutex.RUnlock()
		if !ok {
			n.log.Warn().Str("type", msg.Type).Msg("no handler for message type")
			break
		}
		h(n, msg)
	}

	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "Message received")
}

// handleHandshakeInitiate generates the responder's half of the exchange,
// stores the shared point and sends the public key back.
func (n *Node) handleHandshakeInitiate(payload HandshakeInitiatePayload) {
	n.hsMutex.Lock()
	defer n.hsMutex.Unlock()

	var secret fr.Element
	if _, err := secret.SetRandom(); err != nil {
		n.log.Error().Err(err).Msg("handshake secret sampling failed")
		return
	}

	g1Jac, _, _, _ := bls12377.Generators()
	var gen, public, shared bls12377.G1Affine
	gen.FromJacobian(&g1Jac)
	public.ScalarMultiplication(&gen, secret.BigInt(new(big.Int)))
	shared.ScalarMultiplication(&payload.PublicKey.G1Affine, secret.BigInt(new(big.Int)))

	n.Handshakes[payload.SenderID] = &HandshakeState{
		OurSecret:    secret,
		OurPublic:    public,
		TheirPublic:  payload.PublicKey.G1Affine,
		SharedSecret: shared,
		Status:       "completed",
	}
	n.log.Debug().Str("peer", payload.SenderID).Msg("handshake completed (responder)")

	response := HandshakeResponsePayload{
		SenderID:  n.ID,
		PublicKey: G1AffineJSON{public},
	}
	// Respond in a goroutine so we don't block the handler.
	go func() {
		if err := n.SendMessage(payload.SenderID, MsgHandshakeResponse, response); err != nil {
			n.log.Error().Err(err).Str("peer", payload.SenderID).Msg("sending handshake response")
		}
	}()
}

// handleHandshakeResponse completes the initiator's half of the exchange.
func (n *Node) handleHandshakeResponse(payload HandshakeResponsePayload) {
	n.hsMutex.Lock()
	defer n.hsMutex.Unlock()

	state, ok := n.Handshakes[payload.SenderID]
	if !ok || state.Status != "initiated" {
		n.log.Warn().Str("peer", payload.SenderID).Msg("handshake response for unknown or completed session")
		return
	}

	var shared bls12377.G1Affine
	shared.ScalarMultiplication(&payload.PublicKey.G1Affine, state.OurSecret.BigInt(new(big.Int)))
	state.TheirPublic = payload.PublicKey.G1Affine
	state.SharedSecret = shared
	state.Status = "completed"
	n.log.Debug().Str("peer", payload.SenderID).Msg("handshake completed (initiator)")

	if ch, ok := n.hsCompletionChannel[payload.SenderID]; ok {
		ch <- nil
		close(ch)
		delete(n.hsCompletionChannel, payload.SenderID)
	}
}

// InitiateHandshake starts the key exchange with a target peer. It returns a
// channel that receives an error or nil upon completion.
func (n *Node) InitiateHandshake(targetID string) <-chan error {
	doneCh := make(chan error)

	go func() {
		n.hsMutex.Lock()
		defer n.hsMutex.Unlock()

		var secret fr.Element
		if _, err := secret.SetRandom(); err != nil {
			doneCh <- fmt.Errorf("failed to generate random secret: %v", err)
			close(doneCh)
			return
		}

		g1Jac, _, _, _ := bls12377.Generators()
		var gen, public bls12377.G1Affine
		gen.FromJacobian(&g1Jac)
		public.ScalarMultiplication(&gen, secret.BigInt(new(big.Int)))

		n.Handshakes[targetID] = &HandshakeState{
			OurSecret: secret,
			OurPublic: public,
			Status:    "initiated",
		}
		n.hsCompletionChannel[targetID] = doneCh

		payload := HandshakeInitiatePayload{
			SenderID:  n.ID,
			PublicKey: G1AffineJSON{public},
		}
		if err := n.SendMessage(targetID, MsgHandshakeInitiate, payload); err != nil {
			doneCh <- fmt.Errorf("failed to send handshake_initiate message: %v", err)
			close(doneCh)
			delete(n.hsCompletionChannel, targetID)
		}
	}()

	return doneCh
}

// SharedWith returns the completed shared point with a peer, or false if no
// handshake has completed yet.
func (n *Node) SharedWith(peerID string) (*bls12377.G1Affine, bool) {
	n.hsMutex.Lock()
	defer n.hsMutex.Unlock()
	state, ok := n.Handshakes[peerID]
	if !ok || state.Status != "completed" {
		return nil, false
	}
	shared := state.SharedSecret
	return &shared, true
}

// StartServer starts the node's HTTP server in a new goroutine. It signals on
// the 'ready' channel once the server is actively listening.
func (n *Node) StartServer(ready chan<- struct{}) {
	mux := http.NewServeMux()
	mux.HandleFunc("/message", n.messageHandler)

	n.server = &http.Server{
		Addr:    n.Address,
		Handler: mux,
	}

	listener, err := net.Listen("tcp", n.Address)
	if err != nil {
		n.log.Fatal().Err(err).Msg("failed to listen")
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.log.Info().Str("addr", n.Address).Msg("server starting")

		ready <- struct{}{}

		if err := n.server.Serve(listener); err != http.ErrServerClosed {
			n.log.Fatal().Err(err).Msg("server failed")
		}
		n.log.Info().Msg("server stopped")
	}()
}

// Close shuts down the node's server.
func (n *Node) Close() error {
	if n.server == nil {
		return nil
	}
	return n.server.Close()
}

// SendMessage sends a message to another node in the network. The payload can
// be any struct that is marshallable to JSON.
func (n *Node) SendMessage(targetID, messageType string, payload interface{}) error {
	targetAddress, ok := n.Peers[targetID]
	if !ok {
		return fmt.Errorf("peer '%s' not found in directory", targetID)
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %v", err)
	}

	msg := Message{
		Type:     messageType,
		Payload:  payloadBytes,
		SenderID: n.ID,
	}
	messageBytes, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message envelope: %v", err)
	}

	n.log.Debug().Str("type", messageType).Str("to", targetID).Msg("sending message")
	req, err := http.NewRequest("POST", "http://"+targetAddress+"/message", bytes.NewBuffer(messageBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("peer returned non-OK status: %s", resp.Status)
	}
	return nil
}

// Broadcast sends a message to every known peer, returning the first error.
func (n *Node) Broadcast(messageType string, payload interface{}) error {
	for id := range n.Peers {
		if id == n.ID {
			continue
		}
		if err := n.SendMessage(id, messageType, payload); err != nil {
			return err
		}
	}
	return nil
}
