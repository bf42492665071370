// Command baobab is a general purpose CLI interface to a Bamboo log
// engine spool directory.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"

	"github.com/bobg/subcmd"

	"github.com/mwmiller/baobab/engine"
)

type maincmd struct {
	e *engine.Engine
}

type config struct {
	SpoolDir string `json:"spool_dir"`
}

func main() {
	configPath := flag.String("config", "baobabconf.json", "path to config file")
	flag.Parse()

	var conf config
	f, err := os.Open(*configPath)
	if err != nil {
		log.Fatalf("opening config file %s: %s", *configPath, err)
	}
	err = json.NewDecoder(f).Decode(&conf)
	f.Close()
	if err != nil {
		log.Fatalf("decoding config file %s: %s", *configPath, err)
	}
	if conf.SpoolDir == "" {
		log.Fatalf("config file %s missing `spool_dir` parameter", *configPath)
	}

	e, err := engine.Open(engine.Config{SpoolDir: conf.SpoolDir})
	if err != nil {
		log.Fatalf("opening spool directory %s: %s", conf.SpoolDir, err)
	}
	defer e.Close()

	ctx := context.Background()
	err = subcmd.Run(ctx, maincmd{e: e}, flag.Args())
	if err != nil {
		log.Fatal(err)
	}
}

func (c maincmd) Subcmds() map[string]subcmd.Subcmd {
	return map[string]subcmd.Subcmd{
		"create-identity":  {F: c.createIdentity},
		"append":           {F: c.appendCmd},
		"log":              {F: c.logCmd},
		"range":            {F: c.rangeCmd},
		"full-log":         {F: c.fullLogCmd},
		"compact":          {F: c.compactCmd},
		"purge":            {F: c.purgeCmd},
		"block":            {F: c.blockCmd},
		"unblock":          {F: c.unblockCmd},
		"list-blocked":     {F: c.listBlockedCmd},
		"export":           {F: c.exportCmd},
		"import":           {F: c.importCmd},
		"stored-info":      {F: c.storedInfoCmd},
		"max-seqnum":       {F: c.maxSeqnumCmd},
		"certificate-pool": {F: c.certificatePoolCmd},
		"clumps":           {F: c.clumpsCmd},
	}
}
