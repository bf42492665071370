package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/pkg/errors"

	"github.com/mwmiller/baobab"
	"github.com/mwmiller/baobab/base62"
	"github.com/mwmiller/baobab/logengine"
)

func (c maincmd) resolveAuthor(ctx context.Context, clumpID, ref string) (baobab.Author, error) {
	var author baobab.Author
	b62, err := c.e.ResolveAuthor(ctx, clumpID, ref)
	if err != nil {
		return author, err
	}
	pub, err := base62.Decode(b62)
	if err != nil {
		return author, err
	}
	copy(author[:], pub)
	return author, nil
}

func printEntry(e baobab.Entry) {
	fmt.Printf("seqnum=%d log_id=%d size=%d backlink=%v lipmaalink=%v\n",
		e.Seqnum, e.LogID, e.Size, e.Backlink.Present(), e.Lipmaalink.Present())
}

func (c maincmd) logCmd(ctx context.Context, fs *flag.FlagSet, args []string) error {
	var (
		author     = fs.String("author", "", "author reference: alias, base62, or ~prefix")
		logID      = fs.Uint64("log-id", 0, "log ID")
		clumpID    = fs.String("clump", "default", "clump ID")
		seqnum     = fs.Uint64("seqnum", 0, "seqnum to fetch; 0 means max")
		revalidate = fs.Bool("revalidate", false, "revalidate the entry before returning it")
		binary     = fs.Bool("binary", false, "print encode_full bytes instead of a summary")
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
	format := logengine.FormatEntry
	if *binary {
		format = logengine.FormatBinary
	}
	entry, raw, err := logs.LogEntry(ctx, a, *logID, *seqnum, *seqnum == 0, *revalidate, format)
	if err != nil {
		return err
	}
	if *binary {
		_, err := os.Stdout.Write(raw)
		return err
	}
	printEntry(entry)
	return nil
}

func (c maincmd) rangeCmd(ctx context.Context, fs *flag.FlagSet, args []string) error {
	var (
		author  = fs.String("author", "", "author reference")
		logID   = fs.Uint64("log-id", 0, "log ID")
		clumpID = fs.String("clump", "default", "clump ID")
		first   = fs.Uint64("first", 2, "first seqnum (>= 2)")
		last    = fs.Uint64("last", 0, "last seqnum")
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
	entries, err := logs.LogRange(ctx, a, *logID, *first, *last)
	if err != nil {
		return err
	}
	for _, e := range entries {
		printEntry(e)
	}
	return nil
}

func (c maincmd) fullLogCmd(ctx context.Context, fs *flag.FlagSet, args []string) error {
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
	entries, err := logs.FullLog(ctx, a, *logID)
	if err != nil {
		return err
	}
	for _, e := range entries {
		printEntry(e)
	}
	return nil
}

func (c maincmd) maxSeqnumCmd(ctx context.Context, fs *flag.FlagSet, args []string) error {
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
	max, err := logs.MaxSeqnum(ctx, a, *logID)
	if err != nil {
		return err
	}
	fmt.Println(max)
	return nil
}

func (c maincmd) certificatePoolCmd(ctx context.Context, fs *flag.FlagSet, args []string) error {
	var (
		author  = fs.String("author", "", "author reference")
		logID   = fs.Uint64("log-id", 0, "log ID")
		clumpID = fs.String("clump", "default", "clump ID")
		seqnum  = fs.Uint64("seqnum", 0, "seqnum whose certificate pool to print")
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
	pool, err := logs.CertificatePool(ctx, a, *logID, *seqnum)
	if err != nil {
		return err
	}
	for _, s := range pool {
		fmt.Println(s)
	}
	return nil
}

func (c maincmd) clumpsCmd(ctx context.Context, fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return errors.Wrap(err, "parsing args")
	}
	ids, err := c.e.Clumps()
	if err != nil {
		return err
	}
	for _, id := range ids {
		fmt.Println(id)
	}
	return nil
}
