// Package hashlock implements a commitment-gated note protocol.
//
// Overview:
//   - A creator locks a fungible asset in a note whose public inputs hold the
//     MiMC digest of a secret; whoever later presents a matching preimage
//     claims the asset
//   - Notes are immutable after construction and consumed at most once; the
//     ledger records a nullifier per consumed note to prevent replay
//   - Participants hold explicit session state (keypair, wallet, ledger path)
//     and expose a small REST surface for note submission and claims
//
// Security model:
//   - MiMC over the BW6-761 scalar field for digests, note identifiers and
//     nullifiers
//   - BLS12-377 DH for account identity and for masking claim secrets in
//     transit; the secret itself never appears in any public note field
//   - Optional zero-knowledge claim proofs (gnark Groth16, BW6-761) let a
//     claimant authorize consumption without disclosing the secret at all
//   - All randomness comes from crypto/rand
//
// Usage:
//   - NewHashLockNote / NewPayToIDNote to construct notes
//   - Ledger.Consume for transparent claims, Ledger.ConsumeProven after
//     verifying a claim proof
//   - NewParticipant and RunServer for REST-based scenarios
package hashlock
