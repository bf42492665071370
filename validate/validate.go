// Package validate implements the five-step entry validator: signature,
// payload hash, backlink, lipmaalink, and certificate-pool chain
// checks, in that fixed order.
package validate

import (
	"context"

	"github.com/pkg/errors"

	"github.com/mwmiller/baobab"
	"github.com/mwmiller/baobab/lipmaa"
	"github.com/mwmiller/baobab/yamfhash"
)

// Errors returned by Validate, matching the error-kind table.
var (
	ErrInvalidSig         = errors.New("validate: invalid signature")
	ErrInvalidPayloadHash = errors.New("validate: payload does not match payload_hash")
	ErrMissingBacklink    = errors.New("validate: backlink field required but absent")
	ErrInvalidBacklink    = errors.New("validate: backlink does not match stored predecessor")
	ErrMissingLipmaa      = errors.New("validate: lipmaalink field required but absent")
	ErrInvalidLipmaa      = errors.New("validate: lipmaalink mismatch")
	ErrChainBroken        = errors.New("validate: certificate-pool link unretrievable")
)

// EntryFetcher retrieves the stored entry at (author, log_id, seqnum),
// if present. It is satisfied by content.KV via a small adapter in
// package logengine, kept decoupled here so package validate does not
// need to import package content.
type EntryFetcher interface {
	FetchEntry(ctx context.Context, author baobab.Author, logID, seqnum uint64) (baobab.Entry, bool, error)
	MaxSeqnum(ctx context.Context, author baobab.Author, logID uint64) (uint64, bool, error)
}

// Validate runs the five-step algorithm against e, using fetch to
// resolve link targets and prior chain entries. It returns e
// unchanged on success.
func Validate(ctx context.Context, e baobab.Entry, fetch EntryFetcher) (baobab.Entry, error) {
	if err := checkSignature(e); err != nil {
		return e, err
	}
	if err := checkPayloadHash(e); err != nil {
		return e, err
	}
	if err := checkBacklink(ctx, e, fetch); err != nil {
		return e, err
	}
	if err := checkLipmaalink(ctx, e, fetch); err != nil {
		return e, err
	}
	if err := checkChain(ctx, e, fetch); err != nil {
		return e, err
	}
	return e, nil
}

func checkSignature(e baobab.Entry) error {
	if !baobab.VerifySignature(e) {
		return ErrInvalidSig
	}
	return nil
}

func checkPayloadHash(e baobab.Entry) error {
	if !e.HasPayload() {
		// Preamble-only entries (payload not transported) skip this
		// check; the payload hash itself was already part of what
		// checkSignature verified.
		return nil
	}
	if err := yamfhash.Verify(e.PayloadHash, e.Payload); err != nil {
		return errors.Wrap(ErrInvalidPayloadHash, err.Error())
	}
	return nil
}

func checkBacklink(ctx context.Context, e baobab.Entry, fetch EntryFetcher) error {
	if e.Seqnum == 1 {
		if e.Backlink.Present() {
			return errors.Wrap(ErrInvalidBacklink, "seqnum 1 must have no backlink")
		}
		return nil
	}
	if !e.Backlink.Present() {
		return ErrMissingBacklink
	}
	prev, ok, err := fetch.FetchEntry(ctx, e.Author, e.LogID, e.Seqnum-1)
	if err != nil {
		return err
	}
	if !ok {
		// Partial-replication tolerance: the immediate predecessor is
		// not required to be present locally.
		return nil
	}
	if err := yamfhash.Verify(e.Backlink.Hash(), baobab.EncodeFullSansPayload(prev)); err != nil {
		return errors.Wrap(ErrInvalidBacklink, err.Error())
	}
	return nil
}

func checkLipmaalink(ctx context.Context, e baobab.Entry, fetch EntryFetcher) error {
	if e.Seqnum <= 1 {
		return nil
	}
	n := lipmaa.Linkseq(e.Seqnum)
	if n == e.Seqnum-1 {
		if e.Lipmaalink.Present() {
			return errors.Wrap(ErrInvalidLipmaa, "lipmaalink duplicates backlink and must be omitted")
		}
		return nil
	}
	if !e.Lipmaalink.Present() {
		return ErrMissingLipmaa
	}
	target, ok, err := fetch.FetchEntry(ctx, e.Author, e.LogID, n)
	if err != nil {
		return err
	}
	if !ok {
		// The lipmaa spine, unlike the immediate backlink, must be
		// present in the store: a missing target is reported here.
		return ErrMissingLipmaa
	}
	if err := yamfhash.Verify(e.Lipmaalink.Hash(), baobab.EncodeFullSansPayload(target)); err != nil {
		return errors.Wrap(ErrInvalidLipmaa, err.Error())
	}
	return nil
}

func checkChain(ctx context.Context, e baobab.Entry, fetch EntryFetcher) error {
	pool := lipmaa.CertPool(e.Seqnum)
	if len(pool) == 0 {
		return nil
	}
	max, ok, err := fetch.MaxSeqnum(ctx, e.Author, e.LogID)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	for _, s := range pool {
		if s > max {
			continue
		}
		linked, found, err := fetch.FetchEntry(ctx, e.Author, e.LogID, s)
		if err != nil {
			return err
		}
		if !found {
			return errors.Wrapf(ErrChainBroken, "seqnum %d", s)
		}
		if err := checkSignature(linked); err != nil {
			return err
		}
		if err := checkBacklink(ctx, linked, fetch); err != nil {
			return err
		}
		if err := checkLipmaalink(ctx, linked, fetch); err != nil {
			return err
		}
	}
	return nil
}
