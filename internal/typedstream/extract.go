// Package typedstream recovers plain message text from the binary
// rich-text archive blobs Apple messaging databases store when a row
// has no plain-text body. The blobs are a keyed object-graph
// serialization (NSKeyedArchiver plists in newer rows, raw typedstream
// in older ones), so extraction is best-effort: a structured decode is
// attempted first, then a raw byte scan for the embedded string.
package typedstream

import (
	"bytes"
	"regexp"
	"strings"

	"howett.net/plist"
)

// stringClassMarker is the literal type name that precedes the message
// body in a typedstream buffer.
var stringClassMarker = []byte("NSString")

const (
	// lengthMarker introduces the string length in a typedstream
	// buffer. Some synthetic or truncated buffers omit it, in which
	// case the byte right after the type name is read as the length.
	lengthMarker = 0x2B // '+'

	// endMarker terminates the string payload when the decoded length
	// overruns it.
	endMarker = 0x86

	// markerWindow bounds how far past the type name the length marker
	// is searched for.
	markerWindow = 80
)

// strategy attempts one extraction technique. It reports ok=false when
// the buffer does not yield text via this technique.
type strategy func(buf []byte) (text string, ok bool)

// strategies are tried in order; the first success wins.
var strategies = []strategy{extractKeyedArchive, extractByteScan}

// Extract returns the best-guess plain text embedded in a rich-text
// archive buffer, or "" if none is recoverable. It never panics:
// buffer content is untrusted and malformed input degrades to "".
func Extract(buf []byte) string {
	if len(buf) == 0 {
		return ""
	}
	for _, s := range strategies {
		if text, ok := runStrategy(s, buf); ok {
			return text
		}
	}
	return ""
}

// runStrategy invokes a single strategy, converting any panic from a
// malformed buffer into a failed attempt.
func runStrategy(s strategy, buf []byte) (text string, ok bool) {
	defer func() {
		if recover() != nil {
			text, ok = "", false
		}
	}()
	return s(buf)
}

// extractKeyedArchive decodes the buffer as a generic keyed-archive
// object graph and scans it for the first plausible user string. Only
// buffers carrying a plist header are attempted: the underlying parser
// also accepts bare text plists, which would turn arbitrary ASCII junk
// into a "successful" decode.
func extractKeyedArchive(buf []byte) (string, bool) {
	if !looksLikePlist(buf) {
		return "", false
	}
	var root interface{}
	if _, err := plist.Unmarshal(buf, &root); err != nil {
		return "", false
	}
	s, ok := scanGraph(root, 0)
	if !ok {
		return "", false
	}
	s = clean(s)
	if s == "" {
		return "", false
	}
	return s, true
}

func looksLikePlist(buf []byte) bool {
	trimmed := bytes.TrimLeft(buf, " \t\r\n")
	return bytes.HasPrefix(trimmed, []byte("bplist")) ||
		bytes.HasPrefix(trimmed, []byte("<?xml")) ||
		bytes.HasPrefix(trimmed, []byte("<plist"))
}

// scanGraph walks a decoded object graph looking for either a plain
// string value or an object carrying an "NS.string" content key,
// skipping archiver metadata. Depth is bounded so cyclic or deeply
// nested graphs cannot recurse forever.
func scanGraph(v interface{}, depth int) (string, bool) {
	if depth > 16 {
		return "", false
	}
	switch t := v.(type) {
	case string:
		if isUserString(t) {
			return t, true
		}
	case map[string]interface{}:
		if s, ok := t["NS.string"].(string); ok && isUserString(s) {
			return s, true
		}
		if objs, ok := t["$objects"]; ok {
			return scanGraph(objs, depth+1)
		}
		for _, key := range sortedKeys(t) {
			if strings.HasPrefix(key, "$") {
				continue
			}
			if s, ok := scanGraph(t[key], depth+1); ok {
				return s, true
			}
		}
	case []interface{}:
		for _, elem := range t {
			if s, ok := scanGraph(elem, depth+1); ok {
				return s, true
			}
		}
	}
	return "", false
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// Insertion sort keeps the walk deterministic without pulling in
	// package sort for a handful of keys.
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j] < keys[j-1]; j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	return keys
}

// bundleIDPattern matches reverse-domain identifiers such as
// com.apple.messages.plugin that archives embed alongside user text.
var bundleIDPattern = regexp.MustCompile(`^[a-z][a-z0-9-]*(\.[A-Za-z0-9-]+){2,}$`)

// isUserString filters out archiver metadata that happens to be stored
// as a string: framework class names (two-capital prefix convention),
// $-prefixed keys, and reverse-domain bundle identifiers. Strings of
// length <= 1 are noise.
func isUserString(s string) bool {
	if len(s) <= 1 || strings.HasPrefix(s, "$") {
		return false
	}
	if looksLikeClassName(s) {
		return false
	}
	if bundleIDPattern.MatchString(s) {
		return false
	}
	return true
}

func looksLikeClassName(s string) bool {
	if len(s) < 3 || !isUpper(s[0]) || !isUpper(s[1]) {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !isUpper(c) && !isLower(c) && !(c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}

func isUpper(c byte) bool { return c >= 'A' && c <= 'Z' }
func isLower(c byte) bool { return c >= 'a' && c <= 'z' }

// extractByteScan recovers text from a raw typedstream buffer without
// decoding the full stream: it locates the NSString type name, decodes
// the variable-width length that follows, and slices out the payload.
func extractByteScan(buf []byte) (string, bool) {
	marker := bytes.Index(buf, stringClassMarker)
	if marker < 0 {
		return "", false
	}
	pos := marker + len(stringClassMarker)
	if pos >= len(buf) {
		return "", false
	}

	// Real archives put a '+' between the type name and the length;
	// search a bounded window for it. Absent one, the byte right after
	// the type name is the length prefix.
	window := pos + markerWindow
	if window > len(buf) {
		window = len(buf)
	}
	lengthPos := pos
	if rel := bytes.IndexByte(buf[pos:window], lengthMarker); rel >= 0 {
		lengthPos = pos + rel + 1
	}
	if lengthPos >= len(buf) {
		return "", false
	}

	start, length, known := decodeLength(buf, lengthPos)
	if start >= len(buf) {
		return "", false
	}

	end := len(buf)
	if known && start+length < end {
		end = start + length
	}
	if rel := bytes.IndexByte(buf[start:], endMarker); rel >= 0 && start+rel < end {
		end = start + rel
	}

	text := clean(string(buf[start:end]))
	if text == "" {
		return "", false
	}
	return text, true
}

// decodeLength interprets the variable-width length encoding at pos.
// Values below 0x80 are the length itself; 0x81..0x83 announce a 2-,
// 3- or 4-byte little-endian length. Anything else means the length is
// unrecoverable: skip the byte plus any trailing control bytes and let
// the end marker bound the payload.
func decodeLength(buf []byte, pos int) (start, length int, known bool) {
	b := buf[pos]
	switch {
	case b < 0x80:
		return pos + 1, int(b), true
	case b == 0x81 && pos+2 < len(buf):
		return pos + 3, int(buf[pos+1]) | int(buf[pos+2])<<8, true
	case b == 0x82 && pos+3 < len(buf):
		return pos + 4, int(buf[pos+1]) | int(buf[pos+2])<<8 | int(buf[pos+3])<<16, true
	case b == 0x83 && pos+4 < len(buf):
		return pos + 5, int(buf[pos+1]) | int(buf[pos+2])<<8 | int(buf[pos+3])<<16 | int(buf[pos+4])<<24, true
	default:
		start = pos + 1
		for start < len(buf) && buf[start] < 0x20 {
			start++
		}
		return start, 0, false
	}
}

// clean strips leading and trailing runs of invisible characters the
// archive format injects around user text (object-replacement and
// replacement runes plus ASCII control bytes), then trims whitespace.
func clean(s string) string {
	isJunk := func(r rune) bool {
		return r == '\uFFFC' || r == '\uFFFD' || r <= 0x20
	}
	s = strings.TrimFunc(s, isJunk)
	return strings.TrimSpace(s)
}
