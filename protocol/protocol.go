// Package protocol defines the invocation ABI between an untrusted client
// and the Trusted Attestation Core: command codes, parameter slot kinds,
// the tagged log wire format, and the result taxonomy crossing the
// isolation boundary.
//
// The shapes here mirror a TEE client API (TEE_Param unions, a fixed
// command-id switch) the way github.com/karasz/securelog's protocol.go
// mirrors its paper's commitment handshake: a small set of wire messages
// with explicit, narrow field types.
package protocol

import "errors"

// Command codes accepted by the dispatcher. Any other value is BAD_PARAMETERS.
const (
	CmdHashInit      uint32 = 4
	CmdHashUpdate    uint32 = 5
	CmdHashFinal     uint32 = 6
	CmdStackPush     uint32 = 0x10
	CmdStackPop      uint32 = 0x11
	CmdIndirectCall  uint32 = 0x12
	CmdGetLog        uint32 = 0x13
)

// Wire constants, per the specification's data model.
const (
	MaxStackDepth = 128
	MaxLogSize    = 8192
	DigestSize    = 32
)

// Event tags written to the execution log.
const (
	TagBranch   byte = 0x01
	TagIndirect byte = 0x02
	TagReturn   byte = 0x03
)

// ParamType identifies the kind of a single invocation slot.
type ParamType int

const (
	ParamNone ParamType = iota
	ParamMemrefIn
	ParamMemrefOut
	ParamValueIn
)

// Value carries the two packed 32-bit fields of a VALUE_IN slot.
type Value struct {
	A uint32
	B uint32
}

// Param is one of the four slots of an invocation. Only the field
// matching Type is read or written by the dispatcher.
//
//   - ParamMemrefIn:  Memref holds the caller's input bytes.
//   - ParamMemrefOut: Memref is caller-allocated capacity; the dispatcher
//     writes into it and sets Size to the number of bytes produced (or,
//     on ErrShortBuffer, to the size the caller should have provided) —
//     the Go analogue of writing back through params[i].memref.size.
//   - ParamValueIn:   Value holds the packed fields.
type Param struct {
	Type   ParamType
	Memref []byte
	Size   int
	Value  Value
}

// Params is the fixed four-slot invocation frame.
type Params [4]Param

// Result taxonomy. SUCCESS is represented by a nil error; every other
// outcome is one of these sentinels, optionally wrapped with context via
// fmt.Errorf("...: %w", ...).
var (
	ErrBadParameters = errors.New("bad parameters")
	ErrBadState      = errors.New("bad state")
	ErrOverflow      = errors.New("shadow stack overflow")
	ErrSecurity      = errors.New("security violation")
	ErrShortBuffer   = errors.New("short buffer")
	ErrOutOfMemory   = errors.New("out of memory")
	ErrResource      = errors.New("resource failure")
)

// CommandName returns a short label for metrics and log lines.
func CommandName(cmd uint32) string {
	switch cmd {
	case CmdHashInit:
		return "HASH_INIT"
	case CmdHashUpdate:
		return "HASH_UPDATE"
	case CmdHashFinal:
		return "HASH_FINAL"
	case CmdStackPush:
		return "STACK_PUSH"
	case CmdStackPop:
		return "STACK_POP"
	case CmdIndirectCall:
		return "INDIRECT_CALL"
	case CmdGetLog:
		return "GET_LOG"
	default:
		return "UNKNOWN"
	}
}

// ResultName returns a short label for a dispatch error, "SUCCESS" for nil.
func ResultName(err error) string {
	switch {
	case err == nil:
		return "SUCCESS"
	case errors.Is(err, ErrBadParameters):
		return "BAD_PARAMETERS"
	case errors.Is(err, ErrBadState):
		return "BAD_STATE"
	case errors.Is(err, ErrOverflow):
		return "OVERFLOW"
	case errors.Is(err, ErrSecurity):
		return "SECURITY"
	case errors.Is(err, ErrShortBuffer):
		return "SHORT_BUFFER"
	case errors.Is(err, ErrOutOfMemory):
		return "OUT_OF_MEMORY"
	case errors.Is(err, ErrResource):
		return "RESOURCE"
	default:
		return "UNKNOWN"
	}
}
