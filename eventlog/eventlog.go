// Package eventlog implements the bounded, append-only, tagged binary
// record of observed control-flow events that gets exported to a
// verifier. It never fails closed on pressure: once full, further
// events are dropped silently (the digest keeps covering them) so an
// adversary cannot force a denial of attestation by flooding the log.
//
// The wire layout follows github.com/karasz/securelog's file_store.go
// pattern — a flat byte buffer assembled field-by-field with
// encoding/binary — adapted from that file's fixed-width record scheme
// (index/timestamp/length/payload/tags) down to this system's much
// smaller tag+payload grammar.
package eventlog

import "encoding/binary"

// MaxSize is the capacity of the log buffer in bytes.
const MaxSize = 8192

// Event tags.
const (
	TagBranch   byte = 0x01
	TagIndirect byte = 0x02
	TagReturn   byte = 0x03
)

// Buffer is a fixed-capacity, append-only tagged record log.
// Not safe for concurrent use.
type Buffer struct {
	data [MaxSize]byte
	len  int
}

// New returns an empty buffer.
func New() *Buffer { return &Buffer{} }

// Len returns the number of bytes currently held.
func (b *Buffer) Len() int { return b.len }

// Reset clears the buffer, as HASH_INIT does.
func (b *Buffer) Reset() { b.len = 0 }

// AppendBranch appends a BRANCH record carrying decision as-is. The
// specification's data model names a single ASCII '0'/'1' payload, but
// the dispatcher (and the source it is grounded on) never validates the
// byte: the open question in the design notes resolves to permissive,
// source-observed behavior rather than the stricter reading.
func (b *Buffer) AppendBranch(decision []byte) bool {
	return b.append(TagBranch, decision)
}

// AppendIndirect appends an INDIRECT record with an 8-byte
// little-endian target address.
func (b *Buffer) AppendIndirect(target uint64) bool {
	var payload [8]byte
	binary.LittleEndian.PutUint64(payload[:], target)
	return b.append(TagIndirect, payload[:])
}

// AppendReturn appends a RETURN record with a 4-byte little-endian
// function id.
func (b *Buffer) AppendReturn(id uint32) bool {
	var payload [4]byte
	binary.LittleEndian.PutUint32(payload[:], id)
	return b.append(TagReturn, payload[:])
}

// append writes tag+payload if it fits, otherwise drops the event and
// reports false. Callers (the dispatcher) ignore the return value for
// correctness purposes — the digest already covers the event — but
// tests use it to assert the truncation point.
func (b *Buffer) append(tag byte, payload []byte) bool {
	need := 1 + len(payload)
	if b.len+need > MaxSize {
		return false
	}
	b.data[b.len] = tag
	b.len++
	copy(b.data[b.len:], payload)
	b.len += len(payload)
	return true
}

// Read copies the log into out, non-destructively. If out is too small
// to hold the whole log, no bytes are copied, short is true, and hint
// is the size the caller should retry with. Otherwise n is the number
// of bytes copied (== Len()).
func (b *Buffer) Read(out []byte) (n int, short bool, hint int) {
	if len(out) < b.len {
		return 0, true, b.len
	}
	return copy(out, b.data[:b.len]), false, b.len
}
