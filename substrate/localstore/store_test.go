package localstore

import (
	"path/filepath"
	"testing"
	"time"

	"garden.dev/garden/protocol"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "devnet.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreEmptyHasNoRoot(t *testing.T) {
	s := openTestStore(t)
	if _, ok := s.RootBlock(); ok {
		t.Fatal("expected no root block on empty store")
	}
	if len(s.History()) != 0 {
		t.Fatal("expected empty history")
	}
}

func TestStoreSealAndRead(t *testing.T) {
	s := openTestStore(t)
	signingKey, err := NewSigningKey()
	if err != nil {
		t.Fatal(err)
	}

	content, _ := protocol.NewContent("hello")
	post, _ := protocol.NewPostEvent(content, nil)
	data := protocol.FromPostEvent(post).Encode()

	msg, err := s.CreateMessage(signingKey, data)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SendMessage(protocol.BlockchainAddress{}, msg); err != nil {
		t.Fatal(err)
	}

	h, err := s.SealPendingBlock(time.Unix(1000, 0))
	if err != nil {
		t.Fatal(err)
	}

	root, ok := s.RootBlock()
	if !ok || root != h {
		t.Fatalf("expected root == sealed block hash, got root=%v ok=%v", root, ok)
	}
	if !s.HasBlock(h) {
		t.Fatal("expected HasBlock true for sealed block")
	}
	blk, ok := s.ReadBlock(h)
	if !ok {
		t.Fatal("expected to read sealed block")
	}
	inline := blk.InlineMessages()
	if len(inline) != 1 {
		t.Fatalf("expected 1 inline message, got %d", len(inline))
	}
	scheme, _, err := inline[0].Verify()
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if scheme != SchemeEd25519 {
		t.Fatalf("unexpected scheme %v", scheme)
	}

	blockOfMsg, ok := s.FindMessage(msg.Hash())
	if !ok || blockOfMsg != h {
		t.Fatalf("FindMessage mismatch: got %v ok=%v want %v", blockOfMsg, ok, h)
	}

	readBack, ok := s.ReadMessage(msg.Hash())
	if !ok {
		t.Fatal("expected ReadMessage to find sealed message")
	}
	if string(readBack.Data()) != string(data) {
		t.Fatal("read-back message data mismatch")
	}
}

func TestStoreNextBlockAndHistory(t *testing.T) {
	s := openTestStore(t)
	h1, err := s.SealPendingBlock(time.Unix(1, 0))
	if err != nil {
		t.Fatal(err)
	}
	h2, err := s.SealPendingBlock(time.Unix(2, 0))
	if err != nil {
		t.Fatal(err)
	}
	next, ok := s.NextBlock(h1)
	if !ok || next != h2 {
		t.Fatalf("NextBlock(h1) = %v, ok=%v; want %v", next, ok, h2)
	}
	if _, ok := s.NextBlock(h2); ok {
		t.Fatal("expected no successor for tip")
	}
	history := s.History()
	if len(history) != 2 || history[0] != h1 || history[1] != h2 {
		t.Fatalf("unexpected history: %v", history)
	}
}

func TestStoreReset(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.SealPendingBlock(time.Unix(1, 0)); err != nil {
		t.Fatal(err)
	}
	if err := s.Reset(); err != nil {
		t.Fatal(err)
	}
	if _, ok := s.RootBlock(); ok {
		t.Fatal("expected no root block after reset")
	}
}
