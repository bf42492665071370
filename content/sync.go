package content

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/mwmiller/baobab"
)

// Sync copies, log by log, every entry of src whose seqnum is above
// dst's max seqnum for that log (every entry, when dst has none of the
// log). Entries below dst's max seqnum that dst lacks are not copied.
// It is meant for replicating one author's logs between stores
// (e.g. from a fast local cache into durable storage), not for
// merging arbitrary unrelated stores: unlike a content-addressed blob
// store, Bamboo entries only make sense in the context of the log they
// belong to, so Sync walks src's logs rather than a flat ref space, as
// the teacher's Sync walks a flat ref space instead.
func Sync(ctx context.Context, src, dst KV) error {
	var refs []LogRef
	err := src.Logs(ctx, func(ref LogRef) error {
		refs = append(refs, ref)
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "listing source logs")
	}

	eg, ctx := errgroup.WithContext(ctx)
	for _, ref := range refs {
		ref := ref
		eg.Go(func() error {
			return syncLog(ctx, src, dst, ref)
		})
	}
	return eg.Wait()
}

func syncLog(ctx context.Context, src, dst KV, ref LogRef) error {
	dstMax, dstHas, err := dst.MaxSeqnum(ctx, ref.Author, ref.LogID)
	if err != nil {
		return errors.Wrapf(err, "checking destination max seqnum for log %x/%d", ref.Author, ref.LogID)
	}

	from := uint64(1)
	if dstHas {
		from = dstMax + 1
	}

	return src.Range(ctx, ref.Author, ref.LogID, from, 0, func(e baobab.Entry) error {
		key := Key{Author: ref.Author, LogID: ref.LogID, Seqnum: e.Seqnum}
		_, err := dst.Put(ctx, key, e)
		return errors.Wrapf(err, "copying entry %d", e.Seqnum)
	})
}
