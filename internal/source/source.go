// Package source provides read-only access to the external message
// database the search index is built from. The database is owned and
// appended to by another program; this package never writes to it.
package source

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Message is one row of the external message store. Text is the plain
// body when the writer recorded one; Body is the rich-text archive
// blob that older rows carry instead.
type Message struct {
	ID             int64
	Text           sql.NullString
	Body           []byte
	Date           int64 // domain epoch, monotonic with ID in practice
	ConversationID string
}

// Reader reads messages from the external store.
type Reader struct {
	db     *sql.DB
	dbPath string
}

// The store may be appended to concurrently by its owning program, so
// reads go through a read-only connection with a busy timeout instead
// of taking any locks of our own.
const readOnlyParams = "?mode=ro&_busy_timeout=5000&_query_only=true"

// Open opens the external message database read-only.
func Open(dbPath string) (*Reader, error) {
	db, err := sql.Open("sqlite3", "file:"+dbPath+readOnlyParams)
	if err != nil {
		return nil, fmt.Errorf("open source database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping source database: %w", err)
	}
	return &Reader{db: db, dbPath: dbPath}, nil
}

// Close closes the read connection.
func (r *Reader) Close() error {
	return r.db.Close()
}

// MessagesAfter returns up to limit messages with id > afterID,
// ordered ascending by id.
func (r *Reader) MessagesAfter(ctx context.Context, afterID int64, limit int) ([]Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, text, body, date, conversation_id
		FROM messages
		WHERE id > ?
		ORDER BY id ASC
		LIMIT ?`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("select messages after %d: %w", afterID, err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		var conv sql.NullString
		if err := rows.Scan(&m.ID, &m.Text, &m.Body, &m.Date, &conv); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.ConversationID = conv.String
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return msgs, nil
}

// MaxID returns the highest message id in the store, or 0 when the
// store is empty.
func (r *Reader) MaxID(ctx context.Context) (int64, error) {
	var max int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(id), 0) FROM messages`).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("select max message id: %w", err)
	}
	return max, nil
}
