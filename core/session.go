package core

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/ctrlflow/attestcore/digest"
	"github.com/ctrlflow/attestcore/eventlog"
	"github.com/ctrlflow/attestcore/protocol"
	"github.com/ctrlflow/attestcore/shadowstack"
)

// MismatchError is a STACK_POP security violation carrying the expected
// and observed frame identifiers as discrete fields, so Boundary.Invoke
// can log them without parsing an error string.
type MismatchError struct {
	Expected, Observed uint32
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("stack_pop: expected %d, observed %d", e.Expected, e.Observed)
}

func (e *MismatchError) Unwrap() error { return protocol.ErrSecurity }

// Handle is an opaque session identifier returned by OpenSession.
// Handles are allocated monotonically and never reused within a
// process's lifetime, so a stale handle from a closed session can never
// be confused with a later, unrelated one — a concern a raw pointer (as
// the original TA uses for sess_ctx) does not have, but a Go API handed
// across goroutines does.
type Handle uint64

// Session is the per-client container composing the digest
// accumulator, shadow stack, and event log with their lifecycle — the
// Go counterpart of the TA's oat_session_ctx. A Session is exclusively
// owned by its OpenSession/CloseSession pair and is not safe for
// concurrent use; Boundary.Invoke serializes access per handle.
type Session struct {
	mu sync.Mutex

	handle Handle
	stack  *shadowstack.Stack
	acc    *digest.Accumulator
	log    *eventlog.Buffer

	pushes, pops, branches, indirects, violations uint64
}

func newSession(h Handle, factory digest.HasherFactory) *Session {
	return &Session{
		handle: h,
		stack:  shadowstack.New(),
		acc:    digest.New(factory),
		log:    eventlog.New(),
	}
}

// Summary is a point-in-time snapshot of a session's counters, kept
// around after CloseSession purely for operator diagnostics.
type Summary struct {
	Handle                              Handle
	StackDepth                          int
	LogLen                              int
	Pushes, Pops, Branches, Indirects   uint64
	SecurityViolations                  uint64
}

func (s *Session) summarize() Summary {
	return Summary{
		Handle:             s.handle,
		StackDepth:         s.stack.Depth(),
		LogLen:             s.log.Len(),
		Pushes:             s.pushes,
		Pops:               s.pops,
		Branches:           s.branches,
		Indirects:          s.indirects,
		SecurityViolations: s.violations,
	}
}

// dispatch executes a single command against this session. The caller
// (Boundary.Invoke) holds the session's lock for the whole call, making
// every command atomic with respect to the boundary, per spec §4.5.
func (s *Session) dispatch(cmd uint32, p *protocol.Params) error {
	switch cmd {
	case protocol.CmdHashInit:
		return s.hashInit(p)
	case protocol.CmdHashUpdate:
		return s.hashUpdate(p)
	case protocol.CmdHashFinal:
		return s.hashFinal(p)
	case protocol.CmdStackPush:
		return s.stackPush(p)
	case protocol.CmdStackPop:
		return s.stackPop(p)
	case protocol.CmdIndirectCall:
		return s.indirectCall(p)
	case protocol.CmdGetLog:
		return s.getLog(p)
	default:
		return protocol.ErrBadParameters
	}
}

func (s *Session) hashInit(p *protocol.Params) error {
	if p[0].Type != protocol.ParamNone {
		return protocol.ErrBadParameters
	}
	s.stack.Reset()
	s.log.Reset()
	if err := s.acc.Init(); err != nil {
		return fmt.Errorf("%w: %v", protocol.ErrResource, err)
	}
	return nil
}

func (s *Session) hashUpdate(p *protocol.Params) error {
	if p[0].Type != protocol.ParamMemrefIn {
		return protocol.ErrBadParameters
	}
	if !s.acc.Running() {
		return protocol.ErrBadState
	}
	s.acc.Update(p[0].Memref)
	s.log.AppendBranch(p[0].Memref) // dropped silently on log pressure; digest already covers it
	s.branches++
	return nil
}

func (s *Session) hashFinal(p *protocol.Params) error {
	if p[0].Type != protocol.ParamMemrefOut {
		return protocol.ErrBadParameters
	}
	if len(p[0].Memref) < protocol.DigestSize {
		return protocol.ErrBadParameters
	}
	if !s.acc.Running() {
		return protocol.ErrBadState
	}
	n, err := s.acc.Finalize(p[0].Memref)
	if err != nil {
		return fmt.Errorf("%w: %v", protocol.ErrResource, err)
	}
	p[0].Size = n
	return nil
}

func (s *Session) stackPush(p *protocol.Params) error {
	if p[0].Type != protocol.ParamValueIn {
		return protocol.ErrBadParameters
	}
	id := p[0].Value.A
	if err := s.stack.Push(id); err != nil {
		return protocol.ErrOverflow
	}
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], id)
	s.acc.Update(b[:]) // no-op if the digest isn't Running yet — the lazy-init asymmetry
	s.pushes++
	return nil
}

func (s *Session) stackPop(p *protocol.Params) error {
	if p[0].Type != protocol.ParamValueIn {
		return protocol.ErrBadParameters
	}
	id := p[0].Value.A
	popped, err := s.stack.Pop(id)
	if err != nil {
		s.violations++
		if errors.Is(err, shadowstack.ErrMismatch) {
			return &MismatchError{Expected: id, Observed: popped}
		}
		return fmt.Errorf("%w: stack_pop(%d): %v", protocol.ErrSecurity, id, err)
	}
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], popped)
	s.acc.Update(b[:])
	s.log.AppendReturn(popped)
	s.pops++
	return nil
}

func (s *Session) indirectCall(p *protocol.Params) error {
	if p[0].Type != protocol.ParamValueIn {
		return protocol.ErrBadParameters
	}
	target := uint64(p[0].Value.A) | (uint64(p[0].Value.B) << 32)
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], target)
	s.acc.Update(b[:])
	s.log.AppendIndirect(target)
	s.indirects++
	return nil
}

func (s *Session) getLog(p *protocol.Params) error {
	if p[0].Type != protocol.ParamMemrefOut {
		return protocol.ErrBadParameters
	}
	n, short, hint := s.log.Read(p[0].Memref)
	if short {
		p[0].Size = hint
		return protocol.ErrShortBuffer
	}
	p[0].Size = n
	return nil
}
