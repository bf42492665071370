package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/pkg/errors"

	"github.com/mwmiller/baobab/engine"
	"github.com/mwmiller/baobab/logengine"
)

func (c maincmd) compactCmd(ctx context.Context, fs *flag.FlagSet, args []string) error {
	var (
		author  = fs.String("author", "", "author reference")
		logID   = fs.Uint64("log-id", 0, "log ID")
		clumpID = fs.String("clump", "default", "clump ID")
	)
	if err := fs.Parse(args); err != nil {
		return errors.Wrap(err, "parsing args")
	}
	a, err := c.resolveAuthor(ctx, *clumpID, *author)
	if err != nil {
		return err
	}
	logs, err := c.e.Logs(*clumpID)
	if err != nil {
		return err
	}
	deleted, err := logs.Compact(ctx, a, *logID, notifyFor(c.e, *clumpID))
	if err != nil {
		return err
	}
	fmt.Printf("deleted %d entries: %v\n", len(deleted), deleted)
	return nil
}

func notifyFor(e *engine.Engine, clumpID string) logengine.StatusNotifier {
	return cliNotifier{e: e, clumpID: clumpID}
}

type cliNotifier struct {
	e       *engine.Engine
	clumpID string
}

func (n cliNotifier) Toggle(fingerprint []byte) {
	n.e.TouchContent(n.clumpID, fingerprint)
}

func (c maincmd) purgeCmd(ctx context.Context, fs *flag.FlagSet, args []string) error {
	var (
		author  = fs.String("author", "", "author reference, or empty for all")
		logID   = fs.Int64("log-id", -1, "log ID, or -1 for all")
		clumpID = fs.String("clump", "default", "clump ID")
	)
	if err := fs.Parse(args); err != nil {
		return errors.Wrap(err, "parsing args")
	}

	var scope logengine.PurgeScope
	if *author != "" {
		a, err := c.resolveAuthor(ctx, *clumpID, *author)
		if err != nil {
			return err
		}
		scope.Author = &a
	}
	if *logID >= 0 {
		id := uint64(*logID)
		scope.LogID = &id
	}

	logs, err := c.e.Logs(*clumpID)
	if err != nil {
		return err
	}
	infos, err := logs.Purge(ctx, scope, notifyFor(c.e, *clumpID))
	if err != nil {
		return err
	}
	printStoredInfo(infos)
	return nil
}

func printStoredInfo(infos []logengine.StoredInfo) {
	for _, info := range infos {
		fmt.Printf("%s log=%d max_seqnum=%d\n", info.AuthorB62, info.LogID, info.MaxSeqnum)
	}
}

func (c maincmd) storedInfoCmd(ctx context.Context, fs *flag.FlagSet, args []string) error {
	clumpID := fs.String("clump", "default", "clump ID")
	if err := fs.Parse(args); err != nil {
		return errors.Wrap(err, "parsing args")
	}
	logs, err := c.e.Logs(*clumpID)
	if err != nil {
		return err
	}
	infos, err := logs.StoredInfo(ctx)
	if err != nil {
		return err
	}
	printStoredInfo(infos)
	return nil
}
