package bolt

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/mwmiller/baobab/content"
	"github.com/mwmiller/baobab/testutil"
)

func TestConformance(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	n := 0
	testutil.KVConformance(ctx, t, func() content.KV {
		n++
		path := filepath.Join(dir, fmt.Sprintf("conformance%d.dets", n))
		s, err := Open(path)
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { s.Close() })
		return s
	})
}
