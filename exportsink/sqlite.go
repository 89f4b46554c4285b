package exportsink

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteSink persists exports to a SQLite database, the same
// database/sql-over-modernc.org/sqlite setup sqlite_store.go uses,
// narrowed to a single table since exports carry no chain to anchor.
type SQLiteSink struct{ db *sql.DB }

// OpenSQLiteSink opens or creates the database at dsn and ensures the
// exports table and WAL pragmas are in place.
func OpenSQLiteSink(dsn string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	for _, p := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=FULL;",
		"PRAGMA busy_timeout=5000;",
	} {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set %s: %w", p, err)
		}
	}
	schema := `
CREATE TABLE IF NOT EXISTS exports (
  id          INTEGER PRIMARY KEY AUTOINCREMENT,
  session_id  INTEGER NOT NULL,
  exported_at INTEGER NOT NULL,
  tag         BLOB    NOT NULL,
  log         BLOB    NOT NULL
);
CREATE INDEX IF NOT EXISTS exports_session_idx ON exports(session_id);
`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteSink{db: db}, nil
}

// Put inserts e as a new row.
func (s *SQLiteSink) Put(e Export) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO exports(session_id, exported_at, tag, log) VALUES(?, ?, ?, ?)`,
		e.SessionID, e.ExportedAt.UnixNano(), e.Tag[:], e.Log)
	return err
}

// List returns every export for sessionID, oldest first.
func (s *SQLiteSink) List(sessionID uint64) ([]Export, error) {
	rows, err := s.db.Query(
		`SELECT session_id, exported_at, tag, log FROM exports WHERE session_id=? ORDER BY id ASC`,
		sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Export
	for rows.Next() {
		var id uint64
		var ts int64
		var tagB, log []byte
		if err := rows.Scan(&id, &ts, &tagB, &log); err != nil {
			return nil, err
		}
		if len(tagB) != 32 {
			return nil, fmt.Errorf("invalid tag size %d", len(tagB))
		}
		var tag [32]byte
		copy(tag[:], tagB)
		out = append(out, Export{
			SessionID:  id,
			ExportedAt: time.Unix(0, ts).UTC(),
			Tag:        tag,
			Log:        log,
		})
	}
	return out, rows.Err()
}

// Close closes the underlying database handle.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
