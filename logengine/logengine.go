// Package logengine implements the log-level operations built on top
// of the Content Store and Validator: appending new entries, reading
// them back by seqnum or range, computing certificate pools, and
// compacting or purging a log.
package logengine

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/mwmiller/baobab"
	"github.com/mwmiller/baobab/base62"
	"github.com/mwmiller/baobab/content"
	"github.com/mwmiller/baobab/lipmaa"
	"github.com/mwmiller/baobab/validate"
	"github.com/mwmiller/baobab/yamfhash"
)

// Errors returned by logengine operations.
var (
	ErrBadRange = errors.New("logengine: last must be >= first, and first must be >= 2")
	ErrMissing  = errors.New("logengine: requested entry is absent")
)

// Format selects whether a single-entry fetch returns a decoded Entry
// or its raw binary encoding, per the option map's format ∈ {Entry,
// Binary}.
type Format int

const (
	FormatEntry Format = iota
	FormatBinary
)

// StoredInfo summarizes one log.
type StoredInfo struct {
	AuthorB62 string
	LogID     uint64
	MaxSeqnum uint64
}

// StatusNotifier is told about mutations so a clump's status hash can
// stay current; nil is a valid StatusNotifier (no-op).
type StatusNotifier interface {
	Toggle(fingerprint []byte)
}

// Engine is the log engine for one clump's Content Store.
type Engine struct {
	store content.KV

	mu sync.Mutex // serializes every append, across all (author, logID) pairs
}

// New wraps store as a log engine.
func New(store content.KV) *Engine {
	return &Engine{store: store}
}

// fetcher adapts an Engine to validate.EntryFetcher.
type fetcher struct{ e *Engine }

func (f fetcher) FetchEntry(ctx context.Context, author baobab.Author, logID, seqnum uint64) (baobab.Entry, bool, error) {
	return f.e.store.Get(ctx, content.Key{Author: author, LogID: logID, Seqnum: seqnum})
}

func (f fetcher) MaxSeqnum(ctx context.Context, author baobab.Author, logID uint64) (uint64, bool, error) {
	return f.e.store.MaxSeqnum(ctx, author, logID)
}

// Store returns the underlying content.KV, for callers (such as
// package interchange) that need direct access alongside the engine's
// higher-level operations.
func (e *Engine) Store() content.KV { return e.store }

// Fetcher returns a validate.EntryFetcher backed by e's store.
func (e *Engine) Fetcher() validate.EntryFetcher { return fetcher{e} }

// Append signs and stores the next entry in (author, logID)'s log,
// using secret and public from the caller's chosen identity. It
// serializes concurrent appends to the same (author, logID) pair.
func (e *Engine) Append(ctx context.Context, payload []byte, author baobab.Author, secret, public []byte, logID uint64, notify StatusNotifier) (baobab.Entry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	max, ok, err := e.store.MaxSeqnum(ctx, author, logID)
	if err != nil {
		return baobab.Entry{}, err
	}
	seqnum := uint64(1)
	if ok {
		seqnum = max + 1
	}

	entry := baobab.Entry{
		Tag:     0,
		Author:  author,
		LogID:   logID,
		Seqnum:  seqnum,
		Payload: payload,
	}

	if seqnum > 1 {
		prev, ok, err := e.store.Get(ctx, content.Key{Author: author, LogID: logID, Seqnum: seqnum - 1})
		if err != nil {
			return baobab.Entry{}, err
		}
		if ok {
			entry.Backlink = baobab.NewLink(yamfhash.Create(baobab.EncodeFullSansPayload(prev)))
		}

		if n := lipmaa.Linkseq(seqnum); n != seqnum-1 {
			target, ok, err := e.store.Get(ctx, content.Key{Author: author, LogID: logID, Seqnum: n})
			if err != nil {
				return baobab.Entry{}, err
			}
			if ok {
				entry.Lipmaalink = baobab.NewLink(yamfhash.Create(baobab.EncodeFullSansPayload(target)))
			}
		}
	}

	signed, err := baobab.Sign(entry, secret, public)
	if err != nil {
		return baobab.Entry{}, err
	}

	key := content.Key{Author: author, LogID: logID, Seqnum: seqnum}
	if _, err := e.store.Put(ctx, key, signed); err != nil {
		return baobab.Entry{}, err
	}
	if notify != nil {
		notify.Toggle(key.Bytes())
	}
	return signed, nil
}

// LogEntry fetches one entry by seqnum (or the current max when
// max=true), optionally revalidating it. When format is FormatBinary,
// the second return value carries entry ‖ payload, per the option
// map's format=Binary case; otherwise it is nil.
func (e *Engine) LogEntry(ctx context.Context, author baobab.Author, logID uint64, seqnum uint64, useMax bool, revalidate bool, format Format) (baobab.Entry, []byte, error) {
	if useMax {
		max, ok, err := e.store.MaxSeqnum(ctx, author, logID)
		if err != nil {
			return baobab.Entry{}, nil, err
		}
		if !ok {
			return baobab.Entry{}, nil, ErrMissing
		}
		seqnum = max
	}

	ent, ok, err := e.store.Get(ctx, content.Key{Author: author, LogID: logID, Seqnum: seqnum})
	if err != nil {
		return baobab.Entry{}, nil, err
	}
	if !ok {
		return baobab.Entry{}, nil, ErrMissing
	}
	if revalidate {
		if _, err := validate.Validate(ctx, ent, fetcher{e}); err != nil {
			return baobab.Entry{}, nil, err
		}
	}
	if format == FormatBinary {
		return ent, baobab.EncodeFull(ent), nil
	}
	return ent, nil, nil
}

// LogAt returns the certificate-pool path from 1 to seqnum (ascending),
// filtered to entries actually present.
func (e *Engine) LogAt(ctx context.Context, author baobab.Author, logID uint64, seqnum uint64) ([]baobab.Entry, error) {
	max, ok, err := e.store.MaxSeqnum(ctx, author, logID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	if seqnum == 0 {
		seqnum = max
	}

	pool := lipmaa.CertPool(seqnum)
	seqnums := append(pool, seqnum)
	sort.Slice(seqnums, func(i, j int) bool { return seqnums[i] < seqnums[j] })

	var entries []baobab.Entry
	for _, s := range seqnums {
		if s > max {
			continue
		}
		ent, ok, err := e.store.Get(ctx, content.Key{Author: author, LogID: logID, Seqnum: s})
		if err != nil {
			return nil, err
		}
		if ok {
			entries = append(entries, ent)
		}
	}
	return entries, nil
}

// LogRange returns every present entry in [first, last]. first must
// be >= 2.
func (e *Engine) LogRange(ctx context.Context, author baobab.Author, logID uint64, first, last uint64) ([]baobab.Entry, error) {
	if first < 2 || last < first {
		return nil, ErrBadRange
	}
	var entries []baobab.Entry
	err := e.store.Range(ctx, author, logID, first, last, func(ent baobab.Entry) error {
		entries = append(entries, ent)
		return nil
	})
	return entries, err
}

// FullLog returns every present entry in descending seqnum order,
// max_seqnum first.
func (e *Engine) FullLog(ctx context.Context, author baobab.Author, logID uint64) ([]baobab.Entry, error) {
	var entries []baobab.Entry
	err := e.store.Range(ctx, author, logID, 1, 0, func(ent baobab.Entry) error {
		entries = append(entries, ent)
		return nil
	})
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// MaxSeqnum returns the largest seqnum stored for (author, logID), or
// 0 if none.
func (e *Engine) MaxSeqnum(ctx context.Context, author baobab.Author, logID uint64) (uint64, error) {
	max, ok, err := e.store.MaxSeqnum(ctx, author, logID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return max, nil
}

// AllSeqnum returns every present seqnum for (author, logID) in
// ascending order.
func (e *Engine) AllSeqnum(ctx context.Context, author baobab.Author, logID uint64) ([]uint64, error) {
	var seqnums []uint64
	err := e.store.Range(ctx, author, logID, 1, 0, func(ent baobab.Entry) error {
		seqnums = append(seqnums, ent.Seqnum)
		return nil
	})
	return seqnums, err
}

// CertificatePool returns lipmaa.CertPool(seqnum) filtered to entries
// present and <= max_seqnum.
func (e *Engine) CertificatePool(ctx context.Context, author baobab.Author, logID uint64, seqnum uint64) ([]uint64, error) {
	max, ok, err := e.store.MaxSeqnum(ctx, author, logID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var kept []uint64
	for _, s := range lipmaa.CertPool(seqnum) {
		if s > max {
			continue
		}
		if _, ok, err := e.store.Get(ctx, content.Key{Author: author, LogID: logID, Seqnum: s}); err != nil {
			return nil, err
		} else if ok {
			kept = append(kept, s)
		}
	}
	return kept, nil
}

// Compact deletes every stored seqnum for (author, logID) that is not
// in the tip's certificate pool (and is not the tip itself). It is
// idempotent.
func (e *Engine) Compact(ctx context.Context, author baobab.Author, logID uint64, notify StatusNotifier) ([]uint64, error) {
	all, err := e.AllSeqnum(ctx, author, logID)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, nil
	}
	tip := all[len(all)-1]

	keep := make(map[uint64]bool)
	keep[tip] = true
	for _, s := range lipmaa.CertPool(tip) {
		keep[s] = true
	}

	var deleted []uint64
	for _, s := range all {
		if keep[s] {
			continue
		}
		key := content.Key{Author: author, LogID: logID, Seqnum: s}
		if err := e.store.Delete(ctx, key); err != nil {
			return nil, err
		}
		if notify != nil {
			notify.Toggle(key.Bytes())
		}
		deleted = append(deleted, s)
	}
	return deleted, nil
}

// PurgeScope selects which (author, logID) combinations Purge affects.
type PurgeScope struct {
	Author    *baobab.Author // nil means "all authors"
	LogID     *uint64        // nil means "all log IDs"
}

// Purge removes stored entries matching scope, then returns the
// resulting stored_info for the clump.
func (e *Engine) Purge(ctx context.Context, scope PurgeScope, notify StatusNotifier) ([]StoredInfo, error) {
	var refs []content.LogRef
	err := e.store.Logs(ctx, func(ref content.LogRef) error {
		if scope.Author != nil && ref.Author != *scope.Author {
			return nil
		}
		if scope.LogID != nil && ref.LogID != *scope.LogID {
			return nil
		}
		refs = append(refs, ref)
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, ref := range refs {
		var seqnums []uint64
		err := e.store.Range(ctx, ref.Author, ref.LogID, 1, 0, func(ent baobab.Entry) error {
			seqnums = append(seqnums, ent.Seqnum)
			return nil
		})
		if err != nil {
			return nil, err
		}
		for _, s := range seqnums {
			key := content.Key{Author: ref.Author, LogID: ref.LogID, Seqnum: s}
			if err := e.store.Delete(ctx, key); err != nil {
				return nil, err
			}
			if notify != nil {
				notify.Toggle(key.Bytes())
			}
		}
	}

	return e.StoredInfo(ctx)
}

// StoredInfo returns a sorted summary of every log in the clump.
func (e *Engine) StoredInfo(ctx context.Context) ([]StoredInfo, error) {
	var infos []StoredInfo
	err := e.store.Logs(ctx, func(ref content.LogRef) error {
		max, ok, err := e.store.MaxSeqnum(ctx, ref.Author, ref.LogID)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		infos = append(infos, StoredInfo{
			AuthorB62: base62.Encode(ref.Author[:]),
			LogID:     ref.LogID,
			MaxSeqnum: max,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].AuthorB62 != infos[j].AuthorB62 {
			return infos[i].AuthorB62 < infos[j].AuthorB62
		}
		return infos[i].LogID < infos[j].LogID
	})
	return infos, nil
}

// AllEntries returns every stored (author, logID, seqnum) key in the
// clump.
func (e *Engine) AllEntries(ctx context.Context) ([]content.Key, error) {
	infos, err := e.StoredInfo(ctx)
	if err != nil {
		return nil, err
	}
	var keys []content.Key
	for _, info := range infos {
		authorBytes, err := base62.Decode(info.AuthorB62)
		if err != nil {
			return nil, err
		}
		var author baobab.Author
		copy(author[:], authorBytes)
		err = e.store.Range(ctx, author, info.LogID, 1, 0, func(ent baobab.Entry) error {
			keys = append(keys, content.Key{Author: author, LogID: info.LogID, Seqnum: ent.Seqnum})
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return keys, nil
}
