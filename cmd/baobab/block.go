package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/pkg/errors"

	"github.com/mwmiller/baobab"
	"github.com/mwmiller/baobab/base62"
	"github.com/mwmiller/baobab/clump"
	"github.com/mwmiller/baobab/identity"
	"github.com/mwmiller/baobab/logengine"
)

func specFromFlags(author string, hasLogID bool, logID uint64) (clump.Spec, error) {
	switch {
	case author != "" && hasLogID:
		return clump.Spec{Kind: clump.ByAuthorLogID, AuthorB62: author, LogID: logID}, nil
	case author != "":
		return clump.Spec{Kind: clump.ByAuthor, AuthorB62: author}, nil
	case hasLogID:
		return clump.Spec{Kind: clump.ByLogID, LogID: logID}, nil
	default:
		return clump.Spec{}, errors.New("must supply -author, -log-id, or both")
	}
}

// engineLocalIdentities reports an author local when it belongs to
// one of the engine's stored identities, the "self-owned authors" set
// invariant 4 protects from being blocked.
type engineLocalIdentities struct {
	ids *identity.Store
}

func (l engineLocalIdentities) IsLocal(authorB62 string) (bool, error) {
	entries, err := l.ids.List()
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.PublicB62 == authorB62 {
			return true, nil
		}
	}
	return false, nil
}

// purgeForSpec builds the logengine.PurgeScope a newly blocked spec
// implies and runs it against logs, exactly matching the "block purges
// matching content" rule.
func purgeForSpec(logs *logengine.Engine, notify logengine.StatusNotifier) clump.PurgeFunc {
	return func(ctx context.Context, spec clump.Spec) error {
		var scope logengine.PurgeScope
		if spec.AuthorB62 != "" {
			raw, err := base62.Decode(spec.AuthorB62)
			if err != nil {
				return err
			}
			var a baobab.Author
			copy(a[:], raw)
			scope.Author = &a
		}
		if spec.Kind == clump.ByLogID || spec.Kind == clump.ByAuthorLogID {
			id := spec.LogID
			scope.LogID = &id
		}
		_, err := logs.Purge(ctx, scope, notify)
		return err
	}
}

func (c maincmd) blockCmd(ctx context.Context, fs *flag.FlagSet, args []string) error {
	var (
		author   = fs.String("author", "", "author base62 to block")
		logID    = fs.Uint64("log-id", 0, "log ID to block")
		hasLogID = fs.Bool("has-log-id", false, "set to scope the block to -log-id")
		clumpID  = fs.String("clump", "default", "clump ID")
	)
	if err := fs.Parse(args); err != nil {
		return errors.Wrap(err, "parsing args")
	}
	spec, err := specFromFlags(*author, *hasLogID, *logID)
	if err != nil {
		return err
	}

	blocks, err := c.e.Blocks(*clumpID)
	if err != nil {
		return err
	}
	logs, err := c.e.Logs(*clumpID)
	if err != nil {
		return err
	}
	specs, err := blocks.Block(ctx, spec, engineLocalIdentities{ids: c.e.Identities()}, purgeForSpec(logs, notifyFor(c.e, *clumpID)))
	if err != nil {
		return err
	}
	printSpecs(specs)
	return nil
}

func (c maincmd) unblockCmd(ctx context.Context, fs *flag.FlagSet, args []string) error {
	var (
		author   = fs.String("author", "", "author base62 to unblock")
		logID    = fs.Uint64("log-id", 0, "log ID to unblock")
		hasLogID = fs.Bool("has-log-id", false, "set to scope the unblock to -log-id")
		clumpID  = fs.String("clump", "default", "clump ID")
	)
	if err := fs.Parse(args); err != nil {
		return errors.Wrap(err, "parsing args")
	}
	spec, err := specFromFlags(*author, *hasLogID, *logID)
	if err != nil {
		return err
	}
	blocks, err := c.e.Blocks(*clumpID)
	if err != nil {
		return err
	}
	specs, err := blocks.Unblock(spec)
	if err != nil {
		return err
	}
	printSpecs(specs)
	return nil
}

func (c maincmd) listBlockedCmd(ctx context.Context, fs *flag.FlagSet, args []string) error {
	clumpID := fs.String("clump", "default", "clump ID")
	if err := fs.Parse(args); err != nil {
		return errors.Wrap(err, "parsing args")
	}
	blocks, err := c.e.Blocks(*clumpID)
	if err != nil {
		return err
	}
	printSpecs(blocks.List())
	return nil
}

func printSpecs(specs []clump.Spec) {
	for _, s := range specs {
		fmt.Printf("kind=%d author=%s log_id=%d\n", s.Kind, s.AuthorB62, s.LogID)
	}
}
