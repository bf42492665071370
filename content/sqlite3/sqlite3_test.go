package sqlite3

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mwmiller/baobab/content"
	"github.com/mwmiller/baobab/testutil"
)

func TestConformance(t *testing.T) {
	ctx := context.Background()
	testutil.KVConformance(ctx, t, func() content.KV {
		db, err := sql.Open("sqlite3", ":memory:")
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { db.Close() })
		s, err := New(ctx, db)
		if err != nil {
			t.Fatal(err)
		}
		return s
	})
}
