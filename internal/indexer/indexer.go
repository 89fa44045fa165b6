// Package indexer keeps the search index incrementally synchronized
// with the external message store. Indexing is single-writer: the
// caller (normally the scheduler) guarantees at most one indexing
// operation in flight at a time. Readers of the index may run
// concurrently; batch commits are atomic so they never observe a
// partial batch.
package indexer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/chatvault/chatvault/internal/index"
	"github.com/chatvault/chatvault/internal/source"
)

// buildBatchSize is the batch size used by full catch-up runs.
const buildBatchSize = 5000

// SourceReader is the read-only view of the external message store
// the indexer needs.
type SourceReader interface {
	MessagesAfter(ctx context.Context, afterID int64, limit int) ([]source.Message, error)
	MaxID(ctx context.Context) (int64, error)
}

// IndexStore is the subset of index.Store the indexer writes through.
type IndexStore interface {
	Cursor() (int64, error)
	ApplyBatch(entries []index.Entry, newCursor int64) error
}

// Indexer advances the search index to reflect new source messages.
type Indexer struct {
	src    SourceReader
	idx    IndexStore
	logger *slog.Logger
}

// New creates an Indexer over the given source reader and index store.
func New(src SourceReader, idx IndexStore) *Indexer {
	return &Indexer{src: src, idx: idx, logger: slog.Default()}
}

// WithLogger sets the logger for the indexer.
func (ix *Indexer) WithLogger(logger *slog.Logger) *Indexer {
	ix.logger = logger
	return ix
}

// IndexBatch indexes one batch of unprocessed source messages and
// returns the number of source rows considered (not the number that
// yielded text). A return equal to batchSize means there is probably
// more to do; a short return means the index has caught up. Messages
// with no recoverable text still advance the cursor so they are never
// rescanned. Safe to call repeatedly: with no new source rows it is a
// no-op and the cursor is unchanged.
func (ix *Indexer) IndexBatch(ctx context.Context, batchSize int) (int, error) {
	cursor, err := ix.idx.Cursor()
	if err != nil {
		return 0, fmt.Errorf("read cursor: %w", err)
	}

	msgs, err := ix.src.MessagesAfter(ctx, cursor, batchSize)
	if err != nil {
		return 0, fmt.Errorf("fetch batch after %d: %w", cursor, err)
	}
	if len(msgs) == 0 {
		return 0, nil
	}

	maxID := cursor
	entries := make([]index.Entry, 0, len(msgs))
	for _, m := range msgs {
		if m.ID > maxID {
			maxID = m.ID
		}
		// A corrupt blob degrades to "" inside the extractor; the row
		// is skipped but still advances the cursor so one bad message
		// never stalls everything after it.
		text := ResolveText(m)
		if text == "" {
			continue
		}
		entries = append(entries, index.Entry{
			MessageID:      m.ID,
			Text:           text,
			Date:           m.Date,
			ConversationID: m.ConversationID,
		})
	}

	if err := ix.idx.ApplyBatch(entries, maxID); err != nil {
		// The whole batch rolled back and the cursor is unchanged; the
		// next scheduled run retries from the same position.
		return 0, fmt.Errorf("commit batch through %d: %w", maxID, err)
	}

	ix.logger.Debug("indexed batch",
		"considered", len(msgs),
		"indexed", len(entries),
		"cursor", maxID)
	return len(msgs), nil
}

// BuildIndex repeatedly indexes large batches until the source is
// exhausted, returning the total number of source rows considered.
// Used at startup to catch up fully; search stays available against
// whatever the index contains while it runs.
func (ix *Indexer) BuildIndex(ctx context.Context) (int64, error) {
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := ix.IndexBatch(ctx, buildBatchSize)
		if err != nil {
			return total, err
		}
		total += int64(n)
		if n < buildBatchSize {
			ix.logger.Info("index caught up", "rows_considered", total)
			return total, nil
		}
	}
}

// NeedsUpdate reports whether the source store has grown past the
// cursor. Cheap and read-only; safe to poll frequently.
func (ix *Indexer) NeedsUpdate(ctx context.Context) (bool, error) {
	cursor, err := ix.idx.Cursor()
	if err != nil {
		return false, fmt.Errorf("read cursor: %w", err)
	}
	maxID, err := ix.src.MaxID(ctx)
	if err != nil {
		return false, fmt.Errorf("read source max id: %w", err)
	}
	return maxID > cursor, nil
}
