// Package core implements the Trusted Attestation Core: the session
// state machine (C4), the command dispatcher (C5), and the boundary
// entrypoints (C6) an untrusted client invokes across the isolation
// boundary.
//
// The Boundary's session table (a map guarded by a sync.RWMutex) follows
// the same shape as github.com/karasz/securelog's Server.stores map in
// server.go; Invoke's per-session exclusive-access discipline is this
// repo's realization of spec §5's "at most one invoke per session handle
// in flight at a time."
package core

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/ctrlflow/attestcore/core/metrics"
	"github.com/ctrlflow/attestcore/digest"
	"github.com/ctrlflow/attestcore/protocol"
	"github.com/google/uuid"
)

// Identity is the fixed 16-byte UUID this core is addressed by — the Go
// analogue of a TEE TA's compiled-in TA_..._UUID. An untrusted client
// opens a session against this identity.
var Identity = uuid.MustParse("a1f0d9b4-62de-4c3b-9b7a-7e7f6a9a9b10")

const diagnosticsCacheSize = 128
const diagnosticsTTL = 10 * time.Minute

// Config controls Boundary behavior. The zero value is usable: it
// yields the default SHA-256 accumulator, a no-op metrics collector, no
// session ceiling other than MaxSessions' default, and the package
// default slog logger.
type Config struct {
	// MaxSessions bounds how many sessions may be open at once before
	// OpenSession starts failing with ErrOutOfMemory. Zero means the
	// default (256). The TA itself has no such ceiling (TEE_Malloc just
	// fails when the secure heap is exhausted) — this is the Go
	// boundary's equivalent resource limit, made an explicit knob
	// because there is no secure-heap analogue to bound it implicitly.
	MaxSessions int

	// HasherFactory overrides the digest primitive. Defaults to
	// digest.DefaultHasherFactory (stdlib SHA-256).
	HasherFactory digest.HasherFactory

	// Metrics receives a per-command observation. Defaults to a no-op
	// collector; pass metrics.NewPrometheus(reg) to wire real counters.
	Metrics metrics.Collector

	// Logger receives security-relevant and lifecycle events. Defaults
	// to slog.Default().
	Logger *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.MaxSessions == 0 {
		c.MaxSessions = 256
	}
	if c.HasherFactory == nil {
		c.HasherFactory = digest.DefaultHasherFactory
	}
	if c.Metrics == nil {
		c.Metrics = metrics.Noop{}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Boundary is the external contract used by the untrusted client: the
// create/open/invoke/close/destroy entrypoints of spec §4.6 (C6).
type Boundary struct {
	cfg Config

	mu       sync.RWMutex
	sessions map[Handle]*Session
	next     uint64

	diagnostics *lru.LRU[Handle, Summary]
}

// NewBoundary constructs a Boundary. This corresponds to the TA's
// create entrypoint; call Create afterward for full parity with the
// spec's five-entrypoint lifecycle (Create itself does no work here —
// there is no secure-world module to initialize on the Go side).
func NewBoundary(cfg Config) *Boundary {
	cfg = cfg.withDefaults()
	return &Boundary{
		cfg:         cfg,
		sessions:    make(map[Handle]*Session),
		diagnostics: lru.NewLRU[Handle, Summary](diagnosticsCacheSize, nil, diagnosticsTTL),
	}
}

// Create is invoked once when the core is loaded. Always succeeds.
func (b *Boundary) Create() error { return nil }

// Destroy is invoked once at core teardown.
func (b *Boundary) Destroy() error { return nil }

// OpenSession allocates and zero-initializes a Session, returning an
// opaque handle. Fails with ErrOutOfMemory once MaxSessions are
// concurrently open.
func (b *Boundary) OpenSession() (Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.sessions) >= b.cfg.MaxSessions {
		return 0, protocol.ErrOutOfMemory
	}

	b.next++
	h := Handle(b.next)
	b.sessions[h] = newSession(h, b.cfg.HasherFactory)
	b.cfg.Logger.Debug("session opened", "handle", h)
	return h, nil
}

// CloseSession releases the digest handle if present, then frees the
// Session. Idempotent: closing an already-closed or unknown handle is a
// no-op, mirroring TA_CloseSessionEntryPoint's unconditional TEE_Free.
func (b *Boundary) CloseSession(h Handle) error {
	b.mu.Lock()
	s, ok := b.sessions[h]
	if !ok {
		b.mu.Unlock()
		return nil
	}
	delete(b.sessions, h)
	b.mu.Unlock()

	b.diagnostics.Add(h, s.summarize())
	b.cfg.Logger.Debug("session closed", "handle", h)
	return nil
}

// Invoke dispatches cmd against the session identified by h. Different
// sessions invoke concurrently; a single session processes at most one
// Invoke at a time (the session's own mutex enforces this, held for the
// whole call — spec §4.5's "one command = one indivisible step").
func (b *Boundary) Invoke(h Handle, cmd uint32, params *protocol.Params) error {
	b.mu.RLock()
	s, ok := b.sessions[h]
	b.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: unknown session handle", protocol.ErrBadParameters)
	}

	s.mu.Lock()
	err := s.dispatch(cmd, params)
	s.mu.Unlock()

	b.cfg.Metrics.Observe(protocol.CommandName(cmd), protocol.ResultName(err))

	if errors.Is(err, protocol.ErrSecurity) {
		attrs := []any{"handle", h, "command", protocol.CommandName(cmd), "error", err}
		var mismatch *MismatchError
		if errors.As(err, &mismatch) {
			attrs = append(attrs, "expected", mismatch.Expected, "observed", mismatch.Observed)
		}
		b.cfg.Logger.Error("security violation", attrs...)
	}

	return err
}

// Summarize returns the last-known Summary for a handle, whether the
// session is still open or was recently closed. ok is false once the
// summary has aged out of the diagnostics cache or the handle was never
// opened.
func (b *Boundary) Summarize(h Handle) (Summary, bool) {
	b.mu.RLock()
	if s, ok := b.sessions[h]; ok {
		b.mu.RUnlock()
		return s.summarize(), true
	}
	b.mu.RUnlock()
	return b.diagnostics.Get(h)
}
