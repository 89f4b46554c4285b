// Package exportsink persists execution-log exports pulled out of the
// core via GET_LOG. The shape is the teacher's Store interface
// (logger.go / file_store.go / sqlite_store.go) narrowed to what an
// export actually is in this domain: a session identity, a completed
// proof tag, and the raw tagged-record bytes GET_LOG returned — not a
// hash-chained audit entry, since offline verification of that chain
// is explicitly out of scope here.
package exportsink

import "time"

// Export is one GET_LOG result a client chose to persist, together
// with the digest it finalized for the same run.
type Export struct {
	SessionID  uint64
	ExportedAt time.Time
	Tag        [32]byte
	Log        []byte
}

// Sink is the persistence contract every backend satisfies. It plays
// the role the teacher's Store interface plays for its hash chain:
// the core and simclient packages never depend on a concrete backend,
// only on this narrow append/list/close surface.
type Sink interface {
	Put(e Export) error
	List(sessionID uint64) ([]Export, error)
	Close() error
}
