// Package testutil holds conformance tests shared by every content.KV
// backend, adapting the teacher's testutil.AllRefs pattern (a
// property-based check run against a store built fresh by a factory
// function) from content-addressed blob refs to seqnum-keyed entries.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"testing/quick"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/mwmiller/baobab"
	"github.com/mwmiller/baobab/content"
	"github.com/mwmiller/baobab/ed25519sig"
	"github.com/mwmiller/baobab/yamfhash"
)

// KVConformance runs the full content.KV conformance suite against a
// store produced fresh by storeFactory for each subtest.
func KVConformance(ctx context.Context, t *testing.T, storeFactory func() content.KV) {
	t.Run("get_put_roundtrip", func(t *testing.T) { testGetPutRoundtrip(ctx, t, storeFactory()) })
	t.Run("put_replaces_existing", func(t *testing.T) { testPutReplaces(ctx, t, storeFactory()) })
	t.Run("range_orders_by_seqnum", func(t *testing.T) { testRangeOrder(ctx, t, storeFactory()) })
	t.Run("max_seqnum", func(t *testing.T) { testMaxSeqnum(ctx, t, storeFactory()) })
	t.Run("delete", func(t *testing.T) { testDelete(ctx, t, storeFactory()) })
	t.Run("logs_enumeration", func(t *testing.T) { testLogsEnumeration(ctx, t, storeFactory()) })
}

func testAuthor(t *testing.T) baobab.Author {
	t.Helper()
	seed, err := ed25519sig.GenerateSeed()
	if err != nil {
		t.Fatal(err)
	}
	pub, err := ed25519sig.DerivePublic(seed)
	if err != nil {
		t.Fatal(err)
	}
	var a baobab.Author
	copy(a[:], pub)
	return a
}

// testEntry builds an entry that survives baobab.EncodeFull and
// baobab.Decode, which the byte-oriented backends store and parse: it
// carries a real payload hash and placeholder links wherever seqnum
// requires them.
func testEntry(seqnum uint64, payload []byte) baobab.Entry {
	e := baobab.Entry{Seqnum: seqnum, Size: uint64(len(payload)), PayloadHash: yamfhash.Create(payload), Payload: payload}
	if baobab.NeedsBacklink(seqnum) {
		e.Backlink = baobab.NewLink(yamfhash.Create([]byte("backlink")))
	}
	if baobab.NeedsLipmaalink(seqnum) {
		e.Lipmaalink = baobab.NewLink(yamfhash.Create([]byte("lipmaalink")))
	}
	return e
}

func testGetPutRoundtrip(ctx context.Context, t *testing.T, s content.KV) {
	author := testAuthor(t)
	key := content.Key{Author: author, LogID: 0, Seqnum: 1}
	e := testEntry(1, []byte("hello"))

	added, err := s.Put(ctx, key, e)
	if err != nil {
		t.Fatal(err)
	}
	if !added {
		t.Fatal("Put on empty store reported added=false")
	}

	got, ok, err := s.Get(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("Get reported not found immediately after Put")
	}
	if diff := cmp.Diff(e.Payload, got.Payload, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}
	if got.Seqnum != e.Seqnum {
		t.Errorf("got seqnum %d, want %d", got.Seqnum, e.Seqnum)
	}
}

func testPutReplaces(ctx context.Context, t *testing.T, s content.KV) {
	author := testAuthor(t)
	key := content.Key{Author: author, LogID: 0, Seqnum: 1}
	e := testEntry(1, []byte("first"))

	added, err := s.Put(ctx, key, e)
	if err != nil {
		t.Fatal(err)
	}
	if !added {
		t.Fatal("Put on empty store reported added=false")
	}

	added, err = s.Put(ctx, key, testEntry(1, []byte("second")))
	if err != nil {
		t.Fatal(err)
	}
	if added {
		t.Error("Put over an existing key reported added=true")
	}

	got, _, err := s.Get(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if string(got.Payload) != "second" {
		t.Errorf("Put over an existing key did not replace its value: got payload %q", got.Payload)
	}
}

func testRangeOrder(ctx context.Context, t *testing.T, s content.KV) {
	author := testAuthor(t)
	seqnums := []uint64{5, 1, 3, 2, 4}
	for _, sn := range seqnums {
		key := content.Key{Author: author, LogID: 0, Seqnum: sn}
		if _, err := s.Put(ctx, key, testEntry(sn, []byte(fmt.Sprintf("payload-%d", sn)))); err != nil {
			t.Fatal(err)
		}
	}

	var got []uint64
	err := s.Range(ctx, author, 0, 1, 0, func(e baobab.Entry) error {
		got = append(got, e.Seqnum)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []uint64{1, 2, 3, 4, 5}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("range order mismatch (-want +got):\n%s", diff)
	}

	got = nil
	err = s.Range(ctx, author, 0, 2, 4, func(e baobab.Entry) error {
		got = append(got, e.Seqnum)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]uint64{2, 3, 4}, got); diff != "" {
		t.Errorf("bounded range mismatch (-want +got):\n%s", diff)
	}
}

func testMaxSeqnum(ctx context.Context, t *testing.T, s content.KV) {
	author := testAuthor(t)
	if _, ok, err := s.MaxSeqnum(ctx, author, 0); err != nil {
		t.Fatal(err)
	} else if ok {
		t.Error("MaxSeqnum on empty log reported ok=true")
	}

	for _, sn := range []uint64{1, 2, 3} {
		key := content.Key{Author: author, LogID: 0, Seqnum: sn}
		if _, err := s.Put(ctx, key, testEntry(sn, []byte("x"))); err != nil {
			t.Fatal(err)
		}
	}

	max, ok, err := s.MaxSeqnum(ctx, author, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || max != 3 {
		t.Errorf("got max=%d ok=%v, want 3 true", max, ok)
	}
}

func testDelete(ctx context.Context, t *testing.T, s content.KV) {
	author := testAuthor(t)
	key := content.Key{Author: author, LogID: 0, Seqnum: 1}
	if _, err := s.Put(ctx, key, testEntry(1, []byte("x"))); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, key); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := s.Get(ctx, key); err != nil {
		t.Fatal(err)
	} else if ok {
		t.Error("Get found an entry after Delete")
	}
	if err := s.Delete(ctx, key); err != nil {
		t.Errorf("deleting an already-absent key returned an error: %s", err)
	}
}

func testLogsEnumeration(ctx context.Context, t *testing.T, s content.KV) {
	a1, a2 := testAuthor(t), testAuthor(t)
	for _, key := range []content.Key{
		{Author: a1, LogID: 0, Seqnum: 1},
		{Author: a1, LogID: 1, Seqnum: 1},
		{Author: a2, LogID: 0, Seqnum: 1},
	} {
		if _, err := s.Put(ctx, key, testEntry(1, []byte("x"))); err != nil {
			t.Fatal(err)
		}
	}

	var refs []content.LogRef
	err := s.Logs(ctx, func(ref content.LogRef) error {
		refs = append(refs, ref)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(refs) != 3 {
		t.Errorf("got %d logs, want 3", len(refs))
	}
}

// PutQuickCheck uses testing/quick to fuzz payload contents through Put
// and Get, in the spirit of the teacher's AllRefs.
func PutQuickCheck(ctx context.Context, t *testing.T, storeFactory func() content.KV) {
	author := testAuthor(t)
	f := func(payload []byte) bool {
		s := storeFactory()
		key := content.Key{Author: author, LogID: 0, Seqnum: 1}
		if _, err := s.Put(ctx, key, testEntry(1, payload)); err != nil {
			t.Log(err)
			return false
		}
		got, ok, err := s.Get(ctx, key)
		if err != nil || !ok {
			t.Log(err, ok)
			return false
		}
		return cmp.Diff(payload, got.Payload, cmpopts.EquateEmpty()) == ""
	}
	if err := quick.Check(f, nil); err != nil {
		t.Error(err)
	}
}
