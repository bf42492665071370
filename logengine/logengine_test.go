package logengine

import (
	"context"
	"testing"

	"github.com/mwmiller/baobab"
	"github.com/mwmiller/baobab/content"
	_ "github.com/mwmiller/baobab/content/mem"
	"github.com/mwmiller/baobab/ed25519sig"
	"github.com/mwmiller/baobab/lipmaa"
)

type testIdentity struct {
	author baobab.Author
	secret []byte
	public []byte
}

func newTestIdentity(t *testing.T) testIdentity {
	t.Helper()
	seed, err := ed25519sig.GenerateSeed()
	if err != nil {
		t.Fatal(err)
	}
	pub, err := ed25519sig.DerivePublic(seed)
	if err != nil {
		t.Fatal(err)
	}
	var author baobab.Author
	copy(author[:], pub)
	return testIdentity{author: author, secret: seed, public: pub}
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	store, err := content.Create(context.Background(), "mem", nil)
	if err != nil {
		t.Fatal(err)
	}
	return New(store)
}

func TestAppendBuildsChain(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	id := newTestIdentity(t)

	first, err := e.Append(ctx, []byte("one"), id.author, id.secret, id.public, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if first.Seqnum != 1 || first.Backlink.Present() || first.Lipmaalink.Present() {
		t.Fatalf("first entry should have seqnum 1 and no links, got %+v", first)
	}

	second, err := e.Append(ctx, []byte("two"), id.author, id.secret, id.public, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if second.Seqnum != 2 || !second.Backlink.Present() {
		t.Fatalf("second entry should have seqnum 2 and a backlink, got %+v", second)
	}
}

func TestAppendNotifiesStatus(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	id := newTestIdentity(t)

	var toggled [][]byte
	notify := notifyFunc(func(fp []byte) { toggled = append(toggled, fp) })

	if _, err := e.Append(ctx, []byte("one"), id.author, id.secret, id.public, 0, notify); err != nil {
		t.Fatal(err)
	}
	if len(toggled) != 1 {
		t.Fatalf("expected one notification, got %d", len(toggled))
	}
}

type notifyFunc func([]byte)

func (f notifyFunc) Toggle(fp []byte) { f(fp) }

func TestLogEntryByMax(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	id := newTestIdentity(t)

	for i := 0; i < 3; i++ {
		if _, err := e.Append(ctx, []byte("x"), id.author, id.secret, id.public, 0, nil); err != nil {
			t.Fatal(err)
		}
	}

	got, raw, err := e.LogEntry(ctx, id.author, 0, 0, true, false, FormatEntry)
	if err != nil {
		t.Fatal(err)
	}
	if got.Seqnum != 3 {
		t.Fatalf("expected max seqnum 3, got %d", got.Seqnum)
	}
	if raw != nil {
		t.Error("FormatEntry should not return raw bytes")
	}

	_, raw, err = e.LogEntry(ctx, id.author, 0, 0, true, false, FormatBinary)
	if err != nil {
		t.Fatal(err)
	}
	if len(raw) == 0 {
		t.Error("FormatBinary should return entry ‖ payload bytes")
	}
}

func TestLogEntryRevalidates(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	id := newTestIdentity(t)

	if _, err := e.Append(ctx, []byte("x"), id.author, id.secret, id.public, 0, nil); err != nil {
		t.Fatal(err)
	}
	if _, _, err := e.LogEntry(ctx, id.author, 0, 1, false, true, FormatEntry); err != nil {
		t.Fatalf("well-formed entry failed revalidation: %s", err)
	}
}

func TestLogRangeRejectsBadRange(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	id := newTestIdentity(t)

	if _, err := e.LogRange(ctx, id.author, 0, 1, 5); err != ErrBadRange {
		t.Errorf("got %v, want ErrBadRange for first < 2", err)
	}
	if _, err := e.LogRange(ctx, id.author, 0, 5, 3); err != ErrBadRange {
		t.Errorf("got %v, want ErrBadRange for last < first", err)
	}
}

func TestLogRangeReturnsPresentEntries(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	id := newTestIdentity(t)

	for i := 0; i < 5; i++ {
		if _, err := e.Append(ctx, []byte("x"), id.author, id.secret, id.public, 0, nil); err != nil {
			t.Fatal(err)
		}
	}

	got, err := e.LogRange(ctx, id.author, 0, 2, 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	for i, ent := range got {
		if ent.Seqnum != uint64(i+2) {
			t.Errorf("entry %d has seqnum %d, want %d", i, ent.Seqnum, i+2)
		}
	}
}

func TestFullLogIsDescending(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	id := newTestIdentity(t)

	for i := 0; i < 4; i++ {
		if _, err := e.Append(ctx, []byte("x"), id.author, id.secret, id.public, 0, nil); err != nil {
			t.Fatal(err)
		}
	}

	got, err := e.FullLog(ctx, id.author, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(got))
	}
	for i, ent := range got {
		want := uint64(4 - i)
		if ent.Seqnum != want {
			t.Errorf("entry %d has seqnum %d, want %d", i, ent.Seqnum, want)
		}
	}
}

func TestLogAtReturnsCertPoolPath(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	id := newTestIdentity(t)

	for i := 0; i < 8; i++ {
		if _, err := e.Append(ctx, []byte("x"), id.author, id.secret, id.public, 0, nil); err != nil {
			t.Fatal(err)
		}
	}

	got, err := e.LogAt(ctx, id.author, 0, 8)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) == 0 {
		t.Fatal("expected a non-empty certificate-pool path")
	}
	last := got[len(got)-1]
	if last.Seqnum != 8 {
		t.Errorf("path should end at the requested seqnum, got %d", last.Seqnum)
	}
}

func TestCompactKeepsCertPoolAndTip(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	id := newTestIdentity(t)

	for i := 0; i < 10; i++ {
		if _, err := e.Append(ctx, []byte("x"), id.author, id.secret, id.public, 0, nil); err != nil {
			t.Fatal(err)
		}
	}

	deleted, err := e.Compact(ctx, id.author, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(deleted) == 0 {
		t.Fatal("expected compact to remove at least one seqnum from a 10-entry log")
	}

	remaining, err := e.AllSeqnum(ctx, id.author, 0)
	if err != nil {
		t.Fatal(err)
	}
	found := make(map[uint64]bool)
	for _, s := range remaining {
		found[s] = true
	}
	if !found[10] {
		t.Error("compact must never delete the tip")
	}
	for _, s := range lipmaa.CertPool(10) {
		if !found[s] {
			t.Errorf("compact deleted seqnum %d of the tip's certificate pool", s)
		}
	}
}

func TestCompactIsIdempotent(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	id := newTestIdentity(t)

	for i := 0; i < 10; i++ {
		if _, err := e.Append(ctx, []byte("x"), id.author, id.secret, id.public, 0, nil); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := e.Compact(ctx, id.author, 0, nil); err != nil {
		t.Fatal(err)
	}
	second, err := e.Compact(ctx, id.author, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(second) != 0 {
		t.Errorf("second compact should be a no-op, deleted %v", second)
	}
}

func TestPurgeRemovesMatchingLogs(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	idA := newTestIdentity(t)
	idB := newTestIdentity(t)

	if _, err := e.Append(ctx, []byte("x"), idA.author, idA.secret, idA.public, 0, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Append(ctx, []byte("y"), idB.author, idB.secret, idB.public, 0, nil); err != nil {
		t.Fatal(err)
	}

	scope := PurgeScope{Author: &idA.author}
	infos, err := e.Purge(ctx, scope, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 1 || infos[0].AuthorB62 == "" {
		t.Fatalf("expected exactly idB's log to remain, got %+v", infos)
	}

	max, err := e.MaxSeqnum(ctx, idA.author, 0)
	if err != nil {
		t.Fatal(err)
	}
	if max != 0 {
		t.Errorf("idA's log should be fully purged, max seqnum = %d", max)
	}
}

func TestStoredInfoSortedByAuthorThenLog(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	id := newTestIdentity(t)

	if _, err := e.Append(ctx, []byte("x"), id.author, id.secret, id.public, 5, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Append(ctx, []byte("y"), id.author, id.secret, id.public, 1, nil); err != nil {
		t.Fatal(err)
	}

	infos, err := e.StoredInfo(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 2 || infos[0].LogID != 1 || infos[1].LogID != 5 {
		t.Fatalf("expected logs sorted by log ID, got %+v", infos)
	}
}
