// Package digest implements the running cryptographic digest that
// constitutes the proof of execution path: a streaming hash folded with
// every control-flow event the dispatcher observes, in call order.
//
// It wraps crypto/sha256 the way github.com/karasz/securelog's
// protocol.go wraps it for MAC-chain folding (fold, mac, htag) — stdlib
// crypto throughout, no third-party hash library. The corpus never
// reaches for one for a primitive this standard; see DESIGN.md.
package digest

import (
	"crypto/sha256"
	"errors"
	"hash"
)

// Size is the fixed width of a finalized tag, in bytes.
const Size = sha256.Size // 32

// ErrNotRunning is returned by Finalize when the accumulator has not
// been (re)initialized (Update has no error result; it silently does
// nothing in that state). The dispatcher never lets this surface for
// HASH_FINAL — that command is gated on session state before Finalize
// is ever called — but it guards the package against misuse from
// anywhere else.
var ErrNotRunning = errors.New("digest: not initialized")

// HasherFactory allocates the underlying hash primitive. Swapping it
// lets callers model allocation failure (the oat_ta.c
// TEE_AllocateOperation failure path) without touching the dispatcher.
type HasherFactory func() (hash.Hash, error)

// DefaultHasherFactory returns stdlib SHA-256 and never fails.
func DefaultHasherFactory() (hash.Hash, error) {
	return sha256.New(), nil
}

type state int

const (
	stateFresh state = iota
	stateRunning
	stateFinalized
)

// Accumulator is a single session's running digest. It is not
// safe for concurrent use; callers serialize access (the core package
// does this per-session).
type Accumulator struct {
	factory HasherFactory
	h       hash.Hash
	st      state
}

// New creates an accumulator backed by factory. It starts in the Fresh
// state: Update is a silent no-op until Init succeeds.
func New(factory HasherFactory) *Accumulator {
	return &Accumulator{factory: factory, st: stateFresh}
}

// Init (re)initializes the digest. Any previous handle is released
// first. A factory allocation failure is reported as ErrResource-class
// by the caller; Init itself just returns the underlying error.
func (a *Accumulator) Init() error {
	a.h = nil
	h, err := a.factory()
	if err != nil {
		a.st = stateFresh
		return err
	}
	a.h = h
	a.st = stateRunning
	return nil
}

// Update folds p into the running digest, in the exact order it is
// called. It is a silent no-op when the accumulator is not in the
// Running state (Fresh or Finalized) — this is the source's lazy-init
// asymmetry (spec §9), preserved deliberately: shadow-stack and
// indirect-call events keep flowing to Update even before HASH_INIT,
// and Update simply discards them until the digest exists.
func (a *Accumulator) Update(p []byte) {
	if a.st != stateRunning {
		return
	}
	_, _ = a.h.Write(p)
}

// Finalize writes the tag into out (which must be at least Size bytes)
// and closes the digest. After Finalize, Init must be called again
// before any further Update takes effect. Returns the number of bytes
// written (always Size on success).
func (a *Accumulator) Finalize(out []byte) (int, error) {
	if a.st != stateRunning {
		return 0, ErrNotRunning
	}
	sum := a.h.Sum(nil)
	n := copy(out, sum)
	a.h = nil
	a.st = stateFinalized
	return n, nil
}

// Running reports whether Update currently folds bytes into the digest.
func (a *Accumulator) Running() bool { return a.st == stateRunning }
