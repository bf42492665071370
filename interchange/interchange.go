// Package interchange implements import and export of a spool
// directory's identities and content to a portable file layout:
// per-identity keyfiles and per-(author, log ID) concatenated binary
// logs, grounded on the teacher's atomic create-exclusive file-write
// convention and its errgroup-based sync fan-out.
package interchange

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/mwmiller/baobab"
	"github.com/mwmiller/baobab/base62"
	"github.com/mwmiller/baobab/clump"
	"github.com/mwmiller/baobab/content"
	"github.com/mwmiller/baobab/identity"
	"github.com/mwmiller/baobab/validate"
)

// Errors returned by this package.
var ErrRefusedBlocked = errors.New("interchange: entry refused, its author or log is blocked")

// Keyfile is the JSON shape written for each identity.
type Keyfile struct {
	Source      string `json:"source"`
	KeyEncoding string `json:"key_encoding"`
	KeyType     string `json:"key_type"`
	Identity    string `json:"identity"`
	PublicKey   string `json:"public_key"`
	SecretKey   string `json:"secret_key"`
}

// Exporter is the subset of identity.Store that Export needs.
type Exporter interface {
	List() ([]identity.Entry, error)
	Key(alias string, which identity.Which) ([]byte, error)
}

// LogSource supplies the entries Export writes out.
type LogSource interface {
	StoredInfo(ctx context.Context) ([]LogInfo, error)
	FullLogAscending(ctx context.Context, author baobab.Author, logID uint64) ([]baobab.Entry, error)
}

// LogInfo names one (author, logID) pair to export.
type LogInfo struct {
	Author baobab.Author
	LogID  uint64
}

// Export writes every identity in ids and every log logs reports
// into path, following the teacher's layout convention.
func Export(ctx context.Context, path, clumpID string, ids Exporter, logs LogSource) error {
	idDir := filepath.Join(path, "identities")
	if err := os.MkdirAll(idDir, 0700); err != nil {
		return errors.Wrap(err, "creating identities directory")
	}

	entries, err := ids.List()
	if err != nil {
		return err
	}
	for _, e := range entries {
		secret, err := ids.Key(e.Alias, identity.Secret)
		if err != nil {
			return err
		}
		kf := Keyfile{
			Source:      "baobab",
			KeyEncoding: "base62",
			KeyType:     "ed25519",
			Identity:    e.Alias,
			PublicKey:   e.PublicB62,
			SecretKey:   base62.Encode(secret),
		}
		b, err := json.Marshal(kf)
		if err != nil {
			return err
		}
		if err := writeFileExclusive(filepath.Join(idDir, e.Alias+".keyfile.json"), b, 0600); err != nil {
			return err
		}
	}

	contentDir := filepath.Join(path, "content", clumpID)
	if err := os.MkdirAll(contentDir, 0700); err != nil {
		return errors.Wrap(err, "creating content directory")
	}

	infos, err := logs.StoredInfo(ctx)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, info := range infos {
		info := info
		g.Go(func() error {
			entries, err := logs.FullLogAscending(gctx, info.Author, info.LogID)
			if err != nil {
				return err
			}
			var buf []byte
			for _, e := range entries {
				buf = append(buf, baobab.EncodeFull(e)...)
			}
			name := base62.Encode(info.Author[:]) + "_" + strconv.FormatUint(info.LogID, 10) + ".bamboo.log"
			return writeFileExclusive(filepath.Join(contentDir, name), buf, 0600)
		})
	}
	return g.Wait()
}

// writeFileExclusive mirrors the teacher's atomic-create pattern: it
// refuses to overwrite an existing file.
func writeFileExclusive(path string, data []byte, mode os.FileMode) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, mode)
	if err != nil {
		return errors.Wrapf(err, "creating %s", path)
	}
	defer f.Close()
	_, err = f.Write(data)
	return errors.Wrapf(err, "writing %s", path)
}

// Importer is the subset of identity.Store that Import needs.
type Importer interface {
	Create(alias string, secret []byte) (string, error)
}

// EntryStorer is the subset of a log engine Import needs to ingest
// decoded entries, adapting logengine.Engine plus its blocked-check
// and Validator dependencies.
type EntryStorer interface {
	Store(ctx context.Context, e baobab.Entry, replace bool) (baobab.Entry, bool, error)
}

// Import reads path (as laid out by Export) and loads identities into
// ids, then imports every ".bamboo.log" file found beneath
// path/content/<clump>/ into storers, keyed by clump ID.
func Import(ctx context.Context, path string, ids Importer, storers map[string]EntryStorer, replace bool) error {
	idDir := filepath.Join(path, "identities")
	keyfiles, err := os.ReadDir(idDir)
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "reading identities directory")
	}
	for _, fi := range keyfiles {
		if fi.IsDir() || !strings.HasSuffix(fi.Name(), ".keyfile.json") {
			continue
		}
		b, err := os.ReadFile(filepath.Join(idDir, fi.Name()))
		if err != nil {
			return err
		}
		var kf Keyfile
		if err := json.Unmarshal(b, &kf); err != nil {
			return errors.Wrapf(err, "parsing %s", fi.Name())
		}
		secret, err := base62.Decode(kf.SecretKey)
		if err != nil {
			return errors.Wrap(err, "decoding secret key")
		}
		public, err := ids.Create(kf.Identity, secret)
		if err != nil {
			return err
		}
		if public != kf.PublicKey {
			return errors.Errorf("interchange: keyfile %s: derived public key %s does not match recorded %s", fi.Name(), public, kf.PublicKey)
		}
	}

	contentDir := filepath.Join(path, "content")
	clumpDirs, err := os.ReadDir(contentDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(err, "reading content directory")
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, cd := range clumpDirs {
		if !cd.IsDir() {
			continue
		}
		clumpID := cd.Name()
		storer, ok := storers[clumpID]
		if !ok {
			continue
		}
		logDir := filepath.Join(contentDir, clumpID)
		files, err := os.ReadDir(logDir)
		if err != nil {
			return errors.Wrapf(err, "reading %s", logDir)
		}
		for _, f := range files {
			if f.IsDir() || !strings.HasSuffix(f.Name(), ".bamboo.log") {
				continue
			}
			fpath := filepath.Join(logDir, f.Name())
			g.Go(func() error {
				b, err := os.ReadFile(fpath)
				if err != nil {
					return err
				}
				entries, err := baobab.DecodeStream(b)
				if err != nil {
					return errors.Wrapf(err, "decoding %s", fpath)
				}
				return ImportBinaries(gctx, entries, storer, replace)
			})
		}
	}
	return g.Wait()
}

// ImportBinaries stores each entry in list via storer, honoring
// replace exactly as store's spec describes.
func ImportBinaries(ctx context.Context, list []baobab.Entry, storer EntryStorer, replace bool) error {
	for _, e := range list {
		if _, _, err := storer.Store(ctx, e, replace); err != nil {
			return err
		}
	}
	return nil
}

// StatusNotifier receives a toggle for each entry ClumpStorer actually
// writes, so a content status digest built by toggling on append (see
// package logengine) reaches the same value after an export, wipe, and
// reimport of the same entries.
type StatusNotifier interface {
	Toggle(fingerprint []byte)
}

// ClumpStorer implements EntryStorer for one clump: it checks the
// block set, honors replace, runs the Validator, and writes
// atomically via KV, exactly matching Entry.store's rules.
type ClumpStorer struct {
	KV     content.KV
	Blocks *clump.Set
	Fetch  validate.EntryFetcher
	Notify StatusNotifier
}

// Store implements EntryStorer.
func (c ClumpStorer) Store(ctx context.Context, e baobab.Entry, replace bool) (baobab.Entry, bool, error) {
	authorB62 := base62.Encode(e.Author[:])
	if c.Blocks != nil && c.Blocks.Blocked(clump.Triple{AuthorB62: authorB62, LogID: e.LogID, Seqnum: e.Seqnum}) {
		return baobab.Entry{}, false, ErrRefusedBlocked
	}

	key := content.Key{Author: e.Author, LogID: e.LogID, Seqnum: e.Seqnum}
	if !replace {
		if existing, ok, err := c.KV.Get(ctx, key); err != nil {
			return baobab.Entry{}, false, err
		} else if ok {
			return existing, false, nil
		}
	}

	validated, err := validate.Validate(ctx, e, c.Fetch)
	if err != nil {
		return baobab.Entry{}, false, err
	}

	if _, err := c.KV.Put(ctx, key, validated); err != nil {
		return baobab.Entry{}, false, err
	}
	if c.Notify != nil {
		c.Notify.Toggle(key.Bytes())
	}
	return validated, true, nil
}
