package mem

import (
	"context"
	"testing"

	"github.com/mwmiller/baobab/content"
	"github.com/mwmiller/baobab/testutil"
)

func TestConformance(t *testing.T) {
	ctx := context.Background()
	testutil.KVConformance(ctx, t, func() content.KV { return New() })
}

func TestQuickCheck(t *testing.T) {
	ctx := context.Background()
	testutil.PutQuickCheck(ctx, t, func() content.KV { return New() })
}
