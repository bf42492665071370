package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"

	"github.com/pkg/errors"

	"github.com/mwmiller/baobab"
	"github.com/mwmiller/baobab/identity"
)

func (c maincmd) appendCmd(ctx context.Context, fs *flag.FlagSet, args []string) error {
	var (
		alias   = fs.String("alias", "", "identity to sign with")
		logID   = fs.Uint64("log-id", 0, "log ID")
		clumpID = fs.String("clump", "default", "clump ID")
	)
	if err := fs.Parse(args); err != nil {
		return errors.Wrap(err, "parsing args")
	}
	if *alias == "" {
		return errors.New("must supply -alias")
	}

	payload, err := io.ReadAll(os.Stdin)
	if err != nil {
		return errors.Wrap(err, "reading stdin")
	}

	secret, err := c.e.Identities().Key(*alias, identity.Secret)
	if err != nil {
		return err
	}
	public, err := c.e.Identities().Key(*alias, identity.Public)
	if err != nil {
		return err
	}
	var author baobab.Author
	copy(author[:], public)

	entry, err := c.e.Append(ctx, *clumpID, payload, author, secret, public, *logID)
	if err != nil {
		return errors.Wrap(err, "appending entry")
	}
	log.Printf("appended seqnum %d for log %d", entry.Seqnum, entry.LogID)
	return nil
}
