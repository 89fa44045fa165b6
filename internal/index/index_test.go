package index_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/chatvault/chatvault/internal/index"
	"github.com/chatvault/chatvault/internal/testutil"
)

func entry(id int64, text string, date int64, conv string) index.Entry {
	return index.Entry{MessageID: id, Text: text, Date: date, ConversationID: conv}
}

func TestOpen_SchemaIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")

	st, err := index.Open(path)
	testutil.MustNoErr(t, err, "first open")
	testutil.MustNoErr(t, st.Close(), "close")

	// Reopening an existing database must not fail or lose data.
	st, err = index.Open(path)
	testutil.MustNoErr(t, err, "second open")
	defer st.Close()

	cursor, err := st.Cursor()
	testutil.MustNoErr(t, err, "cursor")
	if cursor != 0 {
		t.Errorf("fresh store cursor = %d, want 0", cursor)
	}
}

func TestApplyBatch_RoundTrip(t *testing.T) {
	st := testutil.NewIndexStore(t)

	batch := []index.Entry{
		entry(1, "hi there", 100, "chat-a"),
		entry(2, "call me", 200, "chat-b"),
	}
	testutil.MustNoErr(t, st.ApplyBatch(batch, 3), "apply batch")

	cursor, err := st.Cursor()
	testutil.MustNoErr(t, err, "cursor")
	if cursor != 3 {
		t.Errorf("cursor = %d, want 3", cursor)
	}

	count, err := st.Count()
	testutil.MustNoErr(t, err, "count")
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}

	got, err := st.Scan(context.Background(), "call", 100)
	testutil.MustNoErr(t, err, "scan")
	want := []index.Entry{entry(2, "call me", 200, "chat-b")}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("scan mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyBatch_UpsertOverwrites(t *testing.T) {
	st := testutil.NewIndexStore(t)

	testutil.MustNoErr(t, st.ApplyBatch([]index.Entry{entry(1, "old text", 100, "a")}, 1), "first batch")
	testutil.MustNoErr(t, st.ApplyBatch([]index.Entry{entry(1, "new text", 150, "b")}, 1), "reindex batch")

	got, err := st.Scan(context.Background(), "text", 100)
	testutil.MustNoErr(t, err, "scan")
	want := []index.Entry{entry(1, "new text", 150, "b")}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("reindexed entry mismatch (-want +got):\n%s", diff)
	}

	count, err := st.Count()
	testutil.MustNoErr(t, err, "count")
	if count != 1 {
		t.Errorf("count after overwrite = %d, want 1", count)
	}
}

func TestApplyBatch_Atomic(t *testing.T) {
	st := testutil.NewIndexStore(t)
	testutil.MustNoErr(t, st.ApplyBatch([]index.Entry{entry(1, "before", 10, "a")}, 1), "seed")

	// The empty-text entry violates the schema constraint, so the
	// whole batch must roll back: no rows from it, cursor unchanged.
	bad := []index.Entry{
		entry(2, "good row", 20, "a"),
		entry(3, "", 30, "a"),
	}
	if err := st.ApplyBatch(bad, 3); err == nil {
		t.Fatal("ApplyBatch with invalid entry = nil, want error")
	}

	cursor, err := st.Cursor()
	testutil.MustNoErr(t, err, "cursor")
	if cursor != 1 {
		t.Errorf("cursor after failed batch = %d, want 1", cursor)
	}
	count, err := st.Count()
	testutil.MustNoErr(t, err, "count")
	if count != 1 {
		t.Errorf("count after failed batch = %d, want 1", count)
	}
}

func TestCursor_NeverDecreases(t *testing.T) {
	st := testutil.NewIndexStore(t)

	testutil.MustNoErr(t, st.ApplyBatch(nil, 10), "advance to 10")
	testutil.MustNoErr(t, st.ApplyBatch(nil, 5), "stale cursor write")

	cursor, err := st.Cursor()
	testutil.MustNoErr(t, err, "cursor")
	if cursor != 10 {
		t.Errorf("cursor = %d, want 10 (must not decrease)", cursor)
	}
}

func TestScan_NewestFirst(t *testing.T) {
	st := testutil.NewIndexStore(t)
	batch := []index.Entry{
		entry(1, "match one", 100, "a"),
		entry(2, "match two", 300, "a"),
		entry(3, "match three", 200, "a"),
	}
	testutil.MustNoErr(t, st.ApplyBatch(batch, 3), "apply")

	got, err := st.Scan(context.Background(), "match", 100)
	testutil.MustNoErr(t, err, "scan")

	var ids []int64
	for _, e := range got {
		ids = append(ids, e.MessageID)
	}
	want := []int64{2, 3, 1}
	if diff := cmp.Diff(want, ids); diff != "" {
		t.Errorf("scan order mismatch (-want +got):\n%s", diff)
	}
}

func TestScan_CaseInsensitive(t *testing.T) {
	st := testutil.NewIndexStore(t)
	testutil.MustNoErr(t, st.ApplyBatch([]index.Entry{entry(1, "Hello World", 1, "a")}, 1), "apply")

	for _, q := range []string{"hello", "HELLO", "o w"} {
		got, err := st.Scan(context.Background(), q, 100)
		testutil.MustNoErr(t, err, "scan "+q)
		if len(got) != 1 {
			t.Errorf("Scan(%q) returned %d entries, want 1", q, len(got))
		}
	}
}

func TestScan_EscapesWildcards(t *testing.T) {
	st := testutil.NewIndexStore(t)
	batch := []index.Entry{
		entry(1, "sale: 50% off", 1, "a"),
		entry(2, "sale: half off", 2, "a"),
		entry(3, "under_score", 3, "a"),
		entry(4, "underscore", 4, "a"),
	}
	testutil.MustNoErr(t, st.ApplyBatch(batch, 4), "apply")

	got, err := st.Scan(context.Background(), "50%", 100)
	testutil.MustNoErr(t, err, "scan percent")
	if len(got) != 1 || got[0].MessageID != 1 {
		t.Errorf("Scan(%q) = %v, want only entry 1", "50%", got)
	}

	got, err = st.Scan(context.Background(), "under_", 100)
	testutil.MustNoErr(t, err, "scan underscore")
	if len(got) != 1 || got[0].MessageID != 3 {
		t.Errorf("Scan(%q) = %v, want only entry 3", "under_", got)
	}
}

func TestScan_CapBoundary(t *testing.T) {
	st := testutil.NewIndexStore(t)

	var batch []index.Entry
	for i := int64(1); i <= 7; i++ {
		batch = append(batch, entry(i, "bounded match", i, "a"))
	}
	testutil.MustNoErr(t, st.ApplyBatch(batch, 7), "apply")

	tests := []struct {
		name string
		cap  int
		want int
	}{
		{"below cap", 10, 7},
		{"cap exactly reached", 7, 7},
		{"cap exceeded", 5, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := st.Scan(context.Background(), "bounded", tt.cap)
			testutil.MustNoErr(t, err, "scan")
			if len(got) != tt.want {
				t.Errorf("Scan with cap %d returned %d entries, want %d", tt.cap, len(got), tt.want)
			}
		})
	}
}

func TestWipe(t *testing.T) {
	st := testutil.NewIndexStore(t)
	testutil.MustNoErr(t, st.ApplyBatch([]index.Entry{entry(1, "gone soon", 1, "a")}, 1), "apply")

	testutil.MustNoErr(t, st.Wipe(), "wipe")

	count, err := st.Count()
	testutil.MustNoErr(t, err, "count")
	if count != 0 {
		t.Errorf("count after wipe = %d, want 0", count)
	}
	cursor, err := st.Cursor()
	testutil.MustNoErr(t, err, "cursor")
	if cursor != 0 {
		t.Errorf("cursor after wipe = %d, want 0", cursor)
	}
}
