// Package simclient is an in-process stand-in for an untrusted caller:
// the Go counterpart of the original instrumentation's host/liboat.c,
// which wrapped TEEC_OpenSession/TEEC_InvokeCommand behind a handful of
// __oat_* entry points a compiler pass inserted at every branch, call,
// and return. Here those entry points become methods on Client, and
// the compiler pass becomes whatever calls them — a test, a CLI
// command, or a real instrumented binary wired the same way.
package simclient

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ctrlflow/attestcore/core"
	"github.com/ctrlflow/attestcore/exportsink"
	"github.com/ctrlflow/attestcore/protocol"
)

// Aborter is invoked when the core reports a SECURITY result from
// FuncExit — the Go analogue of liboat.c's __oat_func_exit calling
// exit(1) on a failed CMD_STACK_POP. Tests inject a non-exiting
// Aborter to observe the detection without killing the process.
type Aborter interface {
	Abort(msg string)
}

// OSAborter logs the detection and terminates the process, matching
// __oat_func_exit's fprintf-then-exit(1).
type OSAborter struct {
	Logger *slog.Logger
}

// Abort implements Aborter.
func (a OSAborter) Abort(msg string) {
	logger := a.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Error("ROP ATTACK DETECTED! TEE blocked return.", "detail", msg)
	os.Exit(1)
}

// Client is a single untrusted caller's view of one session against a
// Boundary. Unlike liboat.c's file-scope ctx/sess globals shared by the
// whole process, a Client owns exactly one handle, so a test can run
// many Clients concurrently against the same Boundary without them
// stepping on each other.
type Client struct {
	b       *core.Boundary
	handle  core.Handle
	aborter Aborter
}

// Open opens a session and issues CMD_HASH_INIT, mirroring __oat_init's
// OpenSession-then-CMD_HASH_INIT sequence. aborter may be nil, in which
// case FuncExit uses OSAborter{}.
func Open(b *core.Boundary, aborter Aborter) (*Client, error) {
	h, err := b.OpenSession()
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	if aborter == nil {
		aborter = OSAborter{}
	}
	c := &Client{b: b, handle: h, aborter: aborter}
	none := &protocol.Params{{Type: protocol.ParamNone}}
	if err := b.Invoke(h, protocol.CmdHashInit, none); err != nil {
		_ = b.CloseSession(h)
		return nil, fmt.Errorf("hash init: %w", err)
	}
	return c, nil
}

// Close releases the underlying session.
func (c *Client) Close() error {
	return c.b.CloseSession(c.handle)
}

// Log folds a single observed branch outcome into the running digest
// and the execution log, the equivalent of __oat_log's one-byte
// CMD_HASH_UPDATE.
func (c *Client) Log(outcome byte) error {
	p := &protocol.Params{{Type: protocol.ParamMemrefIn, Memref: []byte{outcome}}}
	return c.b.Invoke(c.handle, protocol.CmdHashUpdate, p)
}

// LogIndirect folds an indirect-call target into the digest and
// execution log, mirroring __oat_log_indirect's address split into a
// VALUE_IN pair.
func (c *Client) LogIndirect(target uint64) error {
	p := &protocol.Params{{Type: protocol.ParamValueIn, Value: protocol.Value{
		A: uint32(target),
		B: uint32(target >> 32),
	}}}
	return c.b.Invoke(c.handle, protocol.CmdIndirectCall, p)
}

// FuncEnter pushes id onto the shadow stack, mirroring __oat_func_enter.
func (c *Client) FuncEnter(id uint32) error {
	p := &protocol.Params{{Type: protocol.ParamValueIn, Value: protocol.Value{A: id}}}
	return c.b.Invoke(c.handle, protocol.CmdStackPush, p)
}

// FuncExit pops id off the shadow stack. A mismatch or underflow is
// treated exactly like __oat_func_exit treats a failed
// TEEC_InvokeCommand: fatal. The Aborter is called instead of exiting
// directly so callers can test the detection path.
func (c *Client) FuncExit(id uint32) {
	p := &protocol.Params{{Type: protocol.ParamValueIn, Value: protocol.Value{A: id}}}
	if err := c.b.Invoke(c.handle, protocol.CmdStackPop, p); err != nil {
		c.aborter.Abort(fmt.Sprintf("func_exit(%d): %v", id, err))
	}
}

// ExportLog retrieves the full execution log, growing its buffer on
// ErrShortBuffer the way a careful client retries once told the real
// size — liboat.c instead hardcodes an 8192-byte stack buffer sized to
// the TA's fixed MaxLogSize and never retries.
func (c *Client) ExportLog() ([]byte, error) {
	size := protocol.MaxLogSize
	for {
		buf := make([]byte, size)
		p := &protocol.Params{{Type: protocol.ParamMemrefOut, Memref: buf}}
		err := c.b.Invoke(c.handle, protocol.CmdGetLog, p)
		if err == nil {
			return buf[:(*p)[0].Size], nil
		}
		if errors.Is(err, protocol.ErrShortBuffer) {
			size = (*p)[0].Size
			continue
		}
		return nil, fmt.Errorf("get log: %w", err)
	}
}

// ExportAndPersist pulls the execution log and the finalized proof tag
// and hands both to sink, the way __oat_export_log writes the buffer
// straight to a file — except here the destination is whatever Sink
// backend the caller configured (a FileSink or a SQLiteSink) rather
// than a hardcoded fopen/fwrite pair.
func (c *Client) ExportAndPersist(sink exportsink.Sink, sessionID uint64) error {
	log, err := c.ExportLog()
	if err != nil {
		return err
	}
	tag, err := c.Proof()
	if err != nil {
		return err
	}
	return sink.Put(exportsink.Export{
		SessionID:  sessionID,
		ExportedAt: time.Now(),
		Tag:        tag,
		Log:        log,
	})
}

// Proof finalizes the running digest, mirroring __oat_print_proof's
// CMD_HASH_FINAL call. It returns the raw 32-byte tag rather than
// printing it; callers format it however their log style prefers.
func (c *Client) Proof() ([protocol.DigestSize]byte, error) {
	var out [protocol.DigestSize]byte
	p := &protocol.Params{{Type: protocol.ParamMemrefOut, Memref: out[:]}}
	if err := c.b.Invoke(c.handle, protocol.CmdHashFinal, p); err != nil {
		return out, fmt.Errorf("hash final: %w", err)
	}
	return out, nil
}
