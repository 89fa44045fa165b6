package source_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/chatvault/chatvault/internal/source"
	"github.com/chatvault/chatvault/internal/testutil"
)

func TestOpen_MissingFile(t *testing.T) {
	_, err := source.Open(filepath.Join(t.TempDir(), "nope.db"))
	if err == nil {
		t.Fatal("Open on missing file = nil, want error (read-only mode)")
	}
}

func TestMessagesAfter(t *testing.T) {
	db := testutil.NewSourceDB(t)
	for i := int64(1); i <= 10; i++ {
		db.AddMessage(i, testutil.StrPtr("msg"), nil, i*100, "chat-a")
	}
	r := db.Reader()

	msgs, err := r.MessagesAfter(context.Background(), 4, 3)
	testutil.MustNoErr(t, err, "MessagesAfter")
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	for i, want := range []int64{5, 6, 7} {
		if msgs[i].ID != want {
			t.Errorf("msgs[%d].ID = %d, want %d (ascending order)", i, msgs[i].ID, want)
		}
	}

	// Past the end.
	msgs, err = r.MessagesAfter(context.Background(), 10, 3)
	testutil.MustNoErr(t, err, "MessagesAfter past end")
	if len(msgs) != 0 {
		t.Errorf("got %d messages past the end, want 0", len(msgs))
	}
}

func TestMessagesAfter_NullColumns(t *testing.T) {
	db := testutil.NewSourceDB(t)
	db.AddMessage(1, nil, []byte{0x01, 0x02}, 100, "")
	r := db.Reader()

	msgs, err := r.MessagesAfter(context.Background(), 0, 10)
	testutil.MustNoErr(t, err, "MessagesAfter")
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	m := msgs[0]
	if m.Text.Valid {
		t.Errorf("Text.Valid = true for NULL column")
	}
	if len(m.Body) != 2 {
		t.Errorf("Body = %v, want 2 bytes", m.Body)
	}
	if m.ConversationID != "" {
		t.Errorf("ConversationID = %q, want empty", m.ConversationID)
	}
}

func TestMaxID(t *testing.T) {
	db := testutil.NewSourceDB(t)
	r := db.Reader()

	max, err := r.MaxID(context.Background())
	testutil.MustNoErr(t, err, "MaxID empty")
	if max != 0 {
		t.Errorf("MaxID on empty store = %d, want 0", max)
	}

	db.AddMessage(7, testutil.StrPtr("x"), nil, 1, "a")
	db.AddMessage(9, testutil.StrPtr("y"), nil, 2, "a")

	max, err = r.MaxID(context.Background())
	testutil.MustNoErr(t, err, "MaxID")
	if max != 9 {
		t.Errorf("MaxID = %d, want 9", max)
	}
}

// The source store may be appended to by its owning program while we
// hold a read connection; new rows must be visible to later reads.
func TestReader_SeesConcurrentAppends(t *testing.T) {
	db := testutil.NewSourceDB(t)
	db.AddMessage(1, testutil.StrPtr("first"), nil, 1, "a")
	r := db.Reader()

	max, err := r.MaxID(context.Background())
	testutil.MustNoErr(t, err, "MaxID before append")
	if max != 1 {
		t.Fatalf("MaxID = %d, want 1", max)
	}

	db.AddMessage(2, testutil.StrPtr("second"), nil, 2, "a")

	max, err = r.MaxID(context.Background())
	testutil.MustNoErr(t, err, "MaxID after append")
	if max != 2 {
		t.Errorf("MaxID after external append = %d, want 2", max)
	}
}
