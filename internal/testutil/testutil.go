// Package testutil provides shared test helpers for chatvault tests:
// assertion helpers, temporary source/index databases, and synthetic
// rich-text archive blobs.
package testutil

import (
	"bytes"
	"testing"
)

// MustNoErr fails the test immediately if err is non-nil.
func MustNoErr(t testing.TB, err error, context string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: %v", context, err)
	}
}

// StrPtr returns a pointer to a string (useful for optional fields).
func StrPtr(s string) *string { return &s }

// StreamBlob builds a synthetic typedstream-style rich-text archive
// blob whose extractable text is s. Layout mirrors what real archives
// carry: a stream header, the NSString type name, the '+' length
// marker, a single-byte length, the payload, and the 0x86 end marker.
// Payloads longer than 127 bytes get the 2-byte length form.
func StreamBlob(s string) []byte {
	var b bytes.Buffer
	b.WriteString("\x04\x0bstreamtyped\x81\xe8\x03\x84\x01\x40\x84\x84\x84")
	b.WriteString("NSString")
	b.WriteString("\x01\x94\x84\x01+")
	if len(s) < 0x80 {
		b.WriteByte(byte(len(s)))
	} else {
		b.WriteByte(0x81)
		b.WriteByte(byte(len(s)))
		b.WriteByte(byte(len(s) >> 8))
	}
	b.WriteString(s)
	b.WriteByte(0x86)
	b.WriteString("\x84\x02iI\x01\x92\x84")
	return b.Bytes()
}
