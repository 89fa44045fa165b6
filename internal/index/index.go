// Package index owns the on-disk search index: a denormalized table of
// message text plus the cursor recording how far indexing has
// progressed. The index lives in a private cache location, separate
// from the source database, and can be deleted at any time.
package index

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaFS embed.FS

// cursorKey is the index_meta key holding the last indexed message id.
const cursorKey = "last_indexed_id"

// Entry is one searchable record derived from a source message.
type Entry struct {
	MessageID      int64
	Text           string
	Date           int64
	ConversationID string
}

// Store provides database operations on the search index.
type Store struct {
	db     *sql.DB
	dbPath string
}

const defaultSQLiteParams = "?_journal_mode=WAL&_busy_timeout=5000"

// Open opens or creates the index database at the given path and
// initializes the schema. Initialization is idempotent.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+defaultSQLiteParams)
	if err != nil {
		return nil, fmt.Errorf("open index database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping index database: %w", err)
	}

	s := &Store{db: db, dbPath: dbPath}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	schema, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("read schema.sql: %w", err)
	}
	if _, err := s.db.Exec(string(schema)); err != nil {
		return fmt.Errorf("execute schema.sql: %w", err)
	}
	return nil
}

// withTx executes fn within a database transaction. If fn returns an
// error, the transaction is rolled back; otherwise it is committed.
func (s *Store) withTx(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// ApplyBatch upserts a batch of entries and advances the cursor in a
// single transaction: after a crash mid-batch the index holds either
// the full batch plus the new cursor, or neither. The cursor never
// moves backwards, even if newCursor is stale.
func (s *Store) ApplyBatch(entries []Entry, newCursor int64) error {
	return s.withTx(func(tx *sql.Tx) error {
		for _, e := range entries {
			_, err := tx.Exec(`
				INSERT INTO entries (message_id, text, date, conversation_id)
				VALUES (?, ?, ?, ?)
				ON CONFLICT(message_id) DO UPDATE SET
					text = excluded.text,
					date = excluded.date,
					conversation_id = excluded.conversation_id`,
				e.MessageID, e.Text, e.Date, e.ConversationID)
			if err != nil {
				return fmt.Errorf("upsert entry %d: %w", e.MessageID, err)
			}
		}
		_, err := tx.Exec(`
			INSERT INTO index_meta (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value
			WHERE excluded.value > index_meta.value`,
			cursorKey, newCursor)
		if err != nil {
			return fmt.Errorf("advance cursor: %w", err)
		}
		return nil
	})
}

// Cursor returns the last indexed message id, or 0 when nothing has
// been indexed yet.
func (s *Store) Cursor() (int64, error) {
	var cursor int64
	err := s.db.QueryRow(
		`SELECT value FROM index_meta WHERE key = ?`, cursorKey).Scan(&cursor)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read cursor: %w", err)
	}
	return cursor, nil
}

// Count returns the number of indexed entries.
func (s *Store) Count() (int64, error) {
	var n int64
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return n, nil
}

// Scan returns entries whose text contains substr, newest first,
// collecting at most scanCap rows. Matching is case-insensitive for
// ASCII (SQLite LIKE semantics). The cap bounds worst-case latency on
// very large indexes; when it is hit, callers see at most scanCap
// matches.
func (s *Store) Scan(ctx context.Context, substr string, scanCap int) ([]Entry, error) {
	pattern := "%" + escapeLike(substr) + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT message_id, text, date, conversation_id
		FROM entries
		WHERE text LIKE ? ESCAPE '\'
		ORDER BY date DESC
		LIMIT ?`, pattern, scanCap)
	if err != nil {
		return nil, fmt.Errorf("scan entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.MessageID, &e.Text, &e.Date, &e.ConversationID); err != nil {
			return nil, fmt.Errorf("scan entry row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

// Wipe removes all entries and resets the cursor to 0. Used by full
// rebuilds only; normal indexing never deletes.
func (s *Store) Wipe() error {
	return s.withTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM entries`); err != nil {
			return fmt.Errorf("wipe entries: %w", err)
		}
		if _, err := tx.Exec(`DELETE FROM index_meta WHERE key = ?`, cursorKey); err != nil {
			return fmt.Errorf("reset cursor: %w", err)
		}
		return nil
	})
}

// escapeLike escapes LIKE wildcards in a user-supplied substring so it
// matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
