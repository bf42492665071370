package main

import (
	"context"
	"flag"

	"github.com/pkg/errors"

	"github.com/mwmiller/baobab"
	"github.com/mwmiller/baobab/interchange"
)

// engineLogSource adapts one clump's log engine to interchange.LogSource.
type engineLogSource struct {
	c       maincmd
	clumpID string
}

func (s engineLogSource) StoredInfo(ctx context.Context) ([]interchange.LogInfo, error) {
	logs, err := s.c.e.Logs(s.clumpID)
	if err != nil {
		return nil, err
	}
	infos, err := logs.StoredInfo(ctx)
	if err != nil {
		return nil, err
	}
	var out []interchange.LogInfo
	for _, info := range infos {
		author, err := s.c.resolveAuthor(ctx, s.clumpID, info.AuthorB62)
		if err != nil {
			return nil, err
		}
		out = append(out, interchange.LogInfo{Author: author, LogID: info.LogID})
	}
	return out, nil
}

func (s engineLogSource) FullLogAscending(ctx context.Context, author baobab.Author, logID uint64) ([]baobab.Entry, error) {
	logs, err := s.c.e.Logs(s.clumpID)
	if err != nil {
		return nil, err
	}
	descending, err := logs.FullLog(ctx, author, logID)
	if err != nil {
		return nil, err
	}
	ascending := make([]baobab.Entry, len(descending))
	for i, e := range descending {
		ascending[len(descending)-1-i] = e
	}
	return ascending, nil
}

func (c maincmd) exportCmd(ctx context.Context, fs *flag.FlagSet, args []string) error {
	var (
		path    = fs.String("path", "", "directory to export into")
		clumpID = fs.String("clump", "default", "clump ID")
	)
	if err := fs.Parse(args); err != nil {
		return errors.Wrap(err, "parsing args")
	}
	if *path == "" {
		return errors.New("must supply -path")
	}
	return interchange.Export(ctx, *path, *clumpID, c.e.Identities(), engineLogSource{c: c, clumpID: *clumpID})
}

func (c maincmd) importCmd(ctx context.Context, fs *flag.FlagSet, args []string) error {
	var (
		path    = fs.String("path", "", "directory to import from")
		clumpID = fs.String("clump", "default", "clump ID to associate with imported content")
		replace = fs.Bool("replace", false, "overwrite existing entries")
	)
	if err := fs.Parse(args); err != nil {
		return errors.Wrap(err, "parsing args")
	}
	if *path == "" {
		return errors.New("must supply -path")
	}

	logs, err := c.e.Logs(*clumpID)
	if err != nil {
		return err
	}
	blocks, err := c.e.Blocks(*clumpID)
	if err != nil {
		return err
	}
	storer := interchange.ClumpStorer{
		KV:     logs.Store(),
		Blocks: blocks,
		Fetch:  logs.Fetcher(),
		Notify: notifyFor(c.e, *clumpID),
	}
	storers := map[string]interchange.EntryStorer{*clumpID: storer}
	return interchange.Import(ctx, *path, c.e.Identities(), storers, *replace)
}
