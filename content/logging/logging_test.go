package logging

import (
	"context"
	"testing"

	"github.com/mwmiller/baobab/content"
	"github.com/mwmiller/baobab/content/mem"
	"github.com/mwmiller/baobab/testutil"
)

func TestConformance(t *testing.T) {
	ctx := context.Background()
	testutil.KVConformance(ctx, t, func() content.KV {
		return New(mem.New())
	})
}
