// Package query executes paginated substring searches against the
// message index. The engine is stateless per call and safe to use
// concurrently with an in-progress indexing batch: batch commits are
// atomic, so a query sees either the pre-batch or post-batch index.
package query

import (
	"context"
	"log/slog"
	"strings"

	"github.com/chatvault/chatvault/internal/contacts"
	"github.com/chatvault/chatvault/internal/index"
)

const (
	// DefaultPageSize is used when a query does not specify one.
	DefaultPageSize = 20

	// DefaultScanCap bounds how many matching rows a single search
	// collects from the index. When the cap is hit, Total undercounts
	// the true match count; that is a deliberate latency/accuracy
	// tradeoff for pathological queries against very large indexes.
	DefaultScanCap = 10000
)

// Options control pagination and filtering for a search.
type Options struct {
	// Page is 1-based; values below 1 are treated as 1.
	Page int
	// PageSize defaults to DefaultPageSize when <= 0.
	PageSize int
	// Groups restricts results to conversations covered by these
	// contact-group ids (raw conversation ids are accepted too).
	// Empty means no restriction.
	Groups []string
}

// ResultItem is one search hit.
type ResultItem struct {
	MessageID      int64  `json:"message_id"`
	Text           string `json:"text"`
	Date           int64  `json:"date"`
	ConversationID string `json:"conversation_id"`
	DisplayName    string `json:"display_name"`
}

// Result is one page of search hits. Total counts all filtered
// matches, bounded by the engine's scan cap.
type Result struct {
	Items    []ResultItem `json:"items"`
	Page     int          `json:"page"`
	PageSize int          `json:"page_size"`
	Total    int          `json:"total"`
}

// IndexSearcher is the read-only view of the index store the engine
// needs.
type IndexSearcher interface {
	Scan(ctx context.Context, substr string, scanCap int) ([]index.Entry, error)
}

// Engine executes searches.
type Engine struct {
	idx      IndexSearcher
	resolver contacts.Resolver
	groups   contacts.GroupResolver
	scanCap  int
	logger   *slog.Logger
}

// NewEngine creates an Engine. resolver and groups may be nil, in
// which case display names echo identifiers and group ids are treated
// as raw conversation ids.
func NewEngine(idx IndexSearcher, resolver contacts.Resolver, groups contacts.GroupResolver) *Engine {
	if resolver == nil {
		resolver = contacts.Passthrough{}
	}
	if groups == nil {
		groups = contacts.NewStaticGroups(nil)
	}
	return &Engine{
		idx:      idx,
		resolver: resolver,
		groups:   groups,
		scanCap:  DefaultScanCap,
		logger:   slog.Default(),
	}
}

// WithScanCap overrides the bounded scan cap.
func (e *Engine) WithScanCap(scanCap int) *Engine {
	if scanCap > 0 {
		e.scanCap = scanCap
	}
	return e
}

// WithLogger sets the logger for the engine.
func (e *Engine) WithLogger(logger *slog.Logger) *Engine {
	e.logger = logger
	return e
}

// Search runs a case-insensitive substring search over the index,
// newest first, applies the optional conversation filter, and returns
// the requested page. A blank query is not an error: it returns an
// empty result immediately without touching the index.
func (e *Engine) Search(ctx context.Context, queryText string, opts Options) (*Result, error) {
	page, pageSize := normalizePaging(opts)
	result := &Result{Items: []ResultItem{}, Page: page, PageSize: pageSize}

	if strings.TrimSpace(queryText) == "" {
		return result, nil
	}

	entries, err := e.idx.Scan(ctx, queryText, e.scanCap)
	if err != nil {
		return nil, err
	}

	if len(opts.Groups) > 0 {
		allowed := make(map[string]bool)
		for _, id := range e.groups.Conversations(opts.Groups) {
			allowed[id] = true
		}
		filtered := entries[:0]
		for _, en := range entries {
			if allowed[en.ConversationID] {
				filtered = append(filtered, en)
			}
		}
		entries = filtered
	}

	result.Total = len(entries)
	e.logger.Debug("search executed",
		"matches", result.Total,
		"page", page,
		"filtered", len(opts.Groups) > 0)

	start := (page - 1) * pageSize
	if start >= len(entries) {
		return result, nil
	}
	end := start + pageSize
	if end > len(entries) {
		end = len(entries)
	}

	for _, en := range entries[start:end] {
		result.Items = append(result.Items, ResultItem{
			MessageID:      en.MessageID,
			Text:           en.Text,
			Date:           en.Date,
			ConversationID: en.ConversationID,
			DisplayName:    e.displayName(en.ConversationID),
		})
	}
	return result, nil
}

// displayName resolves an identifier, shielding the query from a
// misbehaving external resolver: any panic falls back to the raw
// identifier.
func (e *Engine) displayName(identifier string) (name string) {
	defer func() {
		if recover() != nil {
			name = identifier
		}
	}()
	name = e.resolver.DisplayName(identifier)
	if name == "" {
		name = identifier
	}
	return name
}

func normalizePaging(opts Options) (page, pageSize int) {
	page = opts.Page
	if page < 1 {
		page = 1
	}
	pageSize = opts.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return page, pageSize
}
