package exportsink

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"
)

// FileSink persists exports to a single append-only file, the same
// POSIX-file discipline file_store.go uses for its log: exclusive
// flock around each write, a fixed binary header, fsync before
// returning. There is no separate anchor/tail file here — an export
// has no chain to checkpoint.
//
// Record layout, big-endian:
//
//	[8]byte  sessionID
//	[8]byte  exportedAt (unix nanoseconds)
//	[32]byte tag
//	[4]byte  log length
//	[n]byte  log
type FileSink struct {
	mu   sync.RWMutex
	file *os.File
}

const fileSinkName = "exports.dat"

// OpenFileSink creates dir if needed and opens (or creates) its
// exports file for append.
func OpenFileSink(dir string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}
	path := filepath.Join(dir, fileSinkName)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("open exports file: %w", err)
	}
	return &FileSink{file: f}, nil
}

// Put appends e, fsyncing before returning.
func (s *FileSink) Put(e Export) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf := make([]byte, 8+8+32+4+len(e.Log))
	binary.BigEndian.PutUint64(buf[0:8], e.SessionID)
	binary.BigEndian.PutUint64(buf[8:16], uint64(e.ExportedAt.UnixNano()))
	copy(buf[16:48], e.Tag[:])
	binary.BigEndian.PutUint32(buf[48:52], uint32(len(e.Log)))
	copy(buf[52:], e.Log)

	if err := syscall.Flock(int(s.file.Fd()), syscall.LOCK_EX); err != nil {
		return fmt.Errorf("lock exports file: %w", err)
	}
	defer syscall.Flock(int(s.file.Fd()), syscall.LOCK_UN)

	if _, err := s.file.Write(buf); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	return s.file.Sync()
}

// List returns every export recorded for sessionID, in append order.
func (s *FileSink) List(sessionID uint64) ([]Export, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek exports file: %w", err)
	}
	reader := bufio.NewReader(s.file)

	var out []Export
	for {
		var header [52]byte
		if _, err := io.ReadFull(reader, header[:]); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("read export header: %w", err)
		}
		id := binary.BigEndian.Uint64(header[0:8])
		ts := int64(binary.BigEndian.Uint64(header[8:16]))
		logLen := binary.BigEndian.Uint32(header[48:52])

		log := make([]byte, logLen)
		if _, err := io.ReadFull(reader, log); err != nil {
			return nil, fmt.Errorf("read export log: %w", err)
		}

		if id != sessionID {
			continue
		}
		var tag [32]byte
		copy(tag[:], header[16:48])
		out = append(out, Export{
			SessionID:  id,
			ExportedAt: time.Unix(0, ts).UTC(),
			Tag:        tag,
			Log:        log,
		})
	}
	return out, nil
}

// Close closes the underlying file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}
