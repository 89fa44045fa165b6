package testutil

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/chatvault/chatvault/internal/index"
	"github.com/chatvault/chatvault/internal/source"
)

// SourceDB is a writable handle on a temporary external-store lookalike,
// for seeding messages the reader and indexer are pointed at.
type SourceDB struct {
	Path string
	DB   *sql.DB
	T    testing.TB
}

// NewSourceDB creates a temporary message database with the external
// store's shape and returns a seeding handle. The database is cleaned
// up when the test completes.
func NewSourceDB(t testing.TB) *SourceDB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "messages.db")
	db, err := sql.Open("sqlite3", path)
	MustNoErr(t, err, "open source db")
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE messages (
			id              INTEGER PRIMARY KEY,
			text            TEXT,
			body            BLOB,
			date            INTEGER NOT NULL DEFAULT 0,
			conversation_id TEXT
		)`)
	MustNoErr(t, err, "create source schema")

	return &SourceDB{Path: path, DB: db, T: t}
}

// AddMessage inserts one message row. text may be nil (no plain text)
// and body may be nil (no rich-text blob).
func (s *SourceDB) AddMessage(id int64, text *string, body []byte, date int64, conversationID string) {
	s.T.Helper()
	var textVal interface{}
	if text != nil {
		textVal = *text
	}
	_, err := s.DB.Exec(
		`INSERT INTO messages (id, text, body, date, conversation_id) VALUES (?, ?, ?, ?, ?)`,
		id, textVal, body, date, conversationID)
	MustNoErr(s.T, err, "insert source message")
}

// Reader opens a read-only source.Reader over this database.
func (s *SourceDB) Reader() *source.Reader {
	s.T.Helper()
	r, err := source.Open(s.Path)
	MustNoErr(s.T, err, "open source reader")
	s.T.Cleanup(func() { r.Close() })
	return r
}

// NewIndexStore creates a temporary index store with the schema
// initialized, cleaned up when the test completes.
func NewIndexStore(t testing.TB) *index.Store {
	t.Helper()

	st, err := index.Open(filepath.Join(t.TempDir(), "index.db"))
	MustNoErr(t, err, "open index store")
	t.Cleanup(func() { st.Close() })
	return st
}
