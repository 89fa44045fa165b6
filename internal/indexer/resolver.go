package indexer

import (
	"strings"

	"github.com/chatvault/chatvault/internal/source"
	"github.com/chatvault/chatvault/internal/typedstream"
)

// ResolveText returns the searchable text for a source message: the
// plain-text column when it is non-blank, otherwise whatever the
// rich-text extractor recovers from the body blob, otherwise "".
// Pure function, no I/O.
func ResolveText(msg source.Message) string {
	if msg.Text.Valid {
		if t := strings.TrimSpace(msg.Text.String); t != "" {
			return t
		}
	}
	if len(msg.Body) > 0 {
		return typedstream.Extract(msg.Body)
	}
	return ""
}
