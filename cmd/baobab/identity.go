package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/pkg/errors"

	"github.com/mwmiller/baobab/identity"
)

func (c maincmd) createIdentity(ctx context.Context, fs *flag.FlagSet, args []string) error {
	var (
		alias     = fs.String("alias", "", "identity alias")
		secretArg = fs.String("secret", "", "secret key: empty to generate, 43-char base62, or 32 raw bytes")
	)
	if err := fs.Parse(args); err != nil {
		return errors.Wrap(err, "parsing args")
	}
	if *alias == "" {
		return errors.New("must supply -alias")
	}

	secret, err := identity.ParseSecretArg(*secretArg)
	if err != nil {
		return err
	}

	pub, err := c.e.CreateIdentity(*alias, secret)
	if err != nil {
		return errors.Wrapf(err, "creating identity %s", *alias)
	}
	fmt.Printf("%s %s\n", *alias, pub)
	return nil
}
