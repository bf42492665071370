package engine

import (
	"context"
	"os"
	"testing"

	"github.com/mwmiller/baobab/base62"
	"github.com/mwmiller/baobab/clump"
	"github.com/mwmiller/baobab/ed25519sig"
)

func newTestEngine(t *testing.T) (*Engine, func()) {
	t.Helper()
	dir, err := os.MkdirTemp("", "engine")
	if err != nil {
		t.Fatal(err)
	}
	e, err := Open(Config{SpoolDir: dir})
	if err != nil {
		os.RemoveAll(dir)
		t.Fatal(err)
	}
	return e, func() {
		e.Close()
		os.RemoveAll(dir)
	}
}

func TestOpenTwiceFails(t *testing.T) {
	dir, err := os.MkdirTemp("", "engine")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	first, err := Open(Config{SpoolDir: dir})
	if err != nil {
		t.Fatal(err)
	}
	defer first.Close()

	if _, err := Open(Config{SpoolDir: dir}); err == nil {
		t.Error("expected second Open of the same spool directory to fail")
	}
}

func TestAppendAndStats(t *testing.T) {
	ctx := context.Background()
	e, cleanup := newTestEngine(t)
	defer cleanup()

	alias := "alice"
	if _, err := e.Identities().Create(alias, nil); err != nil {
		t.Fatal(err)
	}
	secret, err := e.Identities().Key(alias, 1) // identity.Secret
	if err != nil {
		t.Fatal(err)
	}
	public, err := e.Identities().Key(alias, 0) // identity.Public
	if err != nil {
		t.Fatal(err)
	}
	pub, err := ed25519sig.DerivePublic(secret)
	if err != nil {
		t.Fatal(err)
	}
	if string(pub) != string(public) {
		t.Fatal("derived public key does not match stored public key")
	}

	var author [32]byte
	copy(author[:], public)

	before, err := e.ContentHash("default")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := e.Append(ctx, "default", []byte("hello"), author, secret, public, 0); err != nil {
		t.Fatal(err)
	}

	after, err := e.ContentHash("default")
	if err != nil {
		t.Fatal(err)
	}
	if before == after {
		t.Error("appending should change the content status hash")
	}

	stats, err := e.StatsFor(ctx, "default")
	if err != nil {
		t.Fatal(err)
	}
	if len(stats.Logs) != 1 || stats.Logs[0].MaxSeqnum != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestIdentityHashChangesAndSurvivesRestart(t *testing.T) {
	dir, err := os.MkdirTemp("", "engine")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	e, err := Open(Config{SpoolDir: dir})
	if err != nil {
		t.Fatal(err)
	}
	before := e.IdentityHash()
	if _, err := e.CreateIdentity("alice", nil); err != nil {
		t.Fatal(err)
	}
	after := e.IdentityHash()
	if before == after {
		t.Error("creating an identity should change the identity status hash")
	}
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(Config{SpoolDir: dir})
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	if reopened.IdentityHash() != after {
		t.Errorf("identity hash after restart = %s, want %s", reopened.IdentityHash(), after)
	}
}

func TestBlockAndContentHashSurviveRestart(t *testing.T) {
	ctx := context.Background()
	dir, err := os.MkdirTemp("", "engine")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	e, err := Open(Config{SpoolDir: dir})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Identities().Create("alice", nil); err != nil {
		t.Fatal(err)
	}
	secret, err := e.Identities().Key("alice", 1)
	if err != nil {
		t.Fatal(err)
	}
	public, err := e.Identities().Key("alice", 0)
	if err != nil {
		t.Fatal(err)
	}
	var author [32]byte
	copy(author[:], public)

	if _, err := e.Append(ctx, "default", []byte("hello"), author, secret, public, 0); err != nil {
		t.Fatal(err)
	}
	before, err := e.ContentHash("default")
	if err != nil {
		t.Fatal(err)
	}

	blocks, err := e.Blocks("default")
	if err != nil {
		t.Fatal(err)
	}
	authorB62 := base62.Encode(author[:])
	guyB62 := "3n1cKrUYdugEt4WH8FRuWLPekR4MFzrRauIudDhmBmH"
	if _, err := blocks.Block(ctx, clump.Spec{Kind: clump.ByAuthor, AuthorB62: guyB62}, nil, nil); err != nil {
		t.Fatal(err)
	}
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(Config{SpoolDir: dir})
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	after, err := reopened.ContentHash("default")
	if err != nil {
		t.Fatal(err)
	}
	if after != before {
		t.Errorf("content hash after restart = %s, want %s", after, before)
	}

	reblocks, err := reopened.Blocks("default")
	if err != nil {
		t.Fatal(err)
	}
	if !reblocks.Blocked(clump.Triple{AuthorB62: guyB62, LogID: 0}) {
		t.Error("block did not survive restart")
	}
	if reblocks.Blocked(clump.Triple{AuthorB62: authorB62, LogID: 0}) {
		t.Error("unrelated author reported blocked after restart")
	}
}

func TestClumpsDiscoversContentDets(t *testing.T) {
	e, cleanup := newTestEngine(t)
	defer cleanup()

	if _, err := e.Logs("alpha"); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Logs("beta"); err != nil {
		t.Fatal(err)
	}

	ids, err := e.Clumps()
	if err != nil {
		t.Fatal(err)
	}
	found := map[string]bool{}
	for _, id := range ids {
		found[id] = true
	}
	if !found["alpha"] || !found["beta"] {
		t.Fatalf("expected alpha and beta clumps, got %v", ids)
	}
}
