// script.go - Consumption scripts.
//
// The target execution environment expresses consumption conditions in a
// stack-based instruction set; here each condition is a plain predicate over
// the note's public input vector and the claimant's private arguments. The
// ledger runs the note's script before any asset moves, and a script failure
// leaves the note untouched.

package hashlock

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

var (
	// ErrDigestMismatch rejects a claim whose candidate secret does not hash
	// to the digest stored in the note.
	ErrDigestMismatch = errors.New("digest mismatch: candidate preimage does not open the note")
	// ErrWrongClaimant rejects a claim against a pay-to-id note by anyone but
	// the committed owner.
	ErrWrongClaimant = errors.New("claimant is not the committed note owner")
	// ErrUnknownScript rejects notes carrying a script kind this build cannot
	// execute.
	ErrUnknownScript = errors.New("unknown script kind")
)

// ScriptKind names a consumption script.
type ScriptKind string

const (
	ScriptHashLock ScriptKind = "hashlock"
	ScriptPayToID  ScriptKind = "p2id"
)

// ClaimArgs are the claimant-supplied private arguments of a consumption
// attempt. They are passed to the script directly and never written to any
// publicly observable state.
type ClaimArgs struct {
	Secret   Secret
	Claimant AccountID
}

// Script is a consumption condition. Verify is a pure predicate: it must not
// mutate anything, so that a failed claim leaves the note eligible for a
// future, correct attempt.
type Script interface {
	Kind() ScriptKind
	Root() []byte
	Verify(inputs [][]byte, args ClaimArgs) error
}

// scriptSources are the canonical source texts the roots commit to. The target
// VM compiles these; this implementation only needs their identity.
var scriptSources = map[ScriptKind]string{
	ScriptHashLock: "load.inputs 4\npad.zeros 4\nhash.perm\nassert.eqw\nrecv.assets\n",
	ScriptPayToID:  "load.inputs 1\nhash.caller\nassert.eq\nrecv.assets\n",
}

func scriptRoot(kind ScriptKind) []byte {
	sum := blake2b.Sum256([]byte(scriptSources[kind]))
	return sum[:]
}

// ScriptFor resolves a script kind carried by a note.
func ScriptFor(kind ScriptKind) (Script, error) {
	switch kind {
	case ScriptHashLock:
		return HashLockScript{}, nil
	case ScriptPayToID:
		return PayToIDScript{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownScript, kind)
	}
}

// HashLockScript releases the note's assets to whoever presents a preimage of
// the digest stored in the note inputs. The four steps: pad and hash the
// candidate, load the stored digest, assert element-wise equality, and only
// then let the ledger move the assets.
type HashLockScript struct{}

func (HashLockScript) Kind() ScriptKind { return ScriptHashLock }
func (HashLockScript) Root() []byte     { return scriptRoot(ScriptHashLock) }

func (HashLockScript) Verify(inputs [][]byte, args ClaimArgs) error {
	stored, err := DigestFromBytes(inputs)
	if err != nil {
		// A malformed input vector can never match; same failure as a wrong
		// secret.
		return fmt.Errorf("%w (%v)", ErrDigestMismatch, err)
	}
	return VerifyPreimage(args.Secret, stored)
}

// PayToIDScript releases the note's assets only to the account whose
// identifier hash was committed at construction time.
type PayToIDScript struct{}

func (PayToIDScript) Kind() ScriptKind { return ScriptPayToID }
func (PayToIDScript) Root() []byte     { return scriptRoot(ScriptPayToID) }

func (PayToIDScript) Verify(inputs [][]byte, args ClaimArgs) error {
	if len(inputs) != 1 {
		return ErrWrongClaimant
	}
	got := mimcHash([]byte(args.Claimant))
	if len(got) != len(inputs[0]) {
		return ErrWrongClaimant
	}
	for i := range got {
		if got[i] != inputs[0][i] {
			return ErrWrongClaimant
		}
	}
	return nil
}
