package sqlindex

import (
	"path/filepath"
	"testing"
	"time"

	"garden.dev/garden/protocol"
	"garden.dev/garden/substrate/localstore"
)

func openTestStore(t *testing.T) (*Store, *localstore.Store) {
	t.Helper()
	sub, err := localstore.Open(filepath.Join(t.TempDir(), "devnet.db"))
	if err != nil {
		t.Fatalf("open substrate store: %v", err)
	}
	t.Cleanup(func() { _ = sub.Close() })

	idx, err := Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("open index store: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	return idx, sub
}

func TestSyncProjectsPostTagsCommentAndReaction(t *testing.T) {
	idx, sub := openTestStore(t)
	signingKey, err := localstore.NewSigningKey()
	if err != nil {
		t.Fatal(err)
	}

	content, _ := protocol.NewContent("hello garden")
	tagA, _ := protocol.NewTag("a")
	tagB, _ := protocol.NewTag("b")
	post, _ := protocol.NewPostEvent(content, []protocol.Tag{tagA, tagB})
	postMsg, err := sub.CreateMessage(signingKey, protocol.FromPostEvent(post).Encode())
	if err != nil {
		t.Fatal(err)
	}
	if err := sub.SendMessage(protocol.BlockchainAddress{}, postMsg); err != nil {
		t.Fatal(err)
	}
	if _, err := sub.SealPendingBlock(time.Unix(100, 0)); err != nil {
		t.Fatal(err)
	}

	commentContent, _ := protocol.NewContent("nice")
	comment := protocol.CommentEvent{RefMessageHash: postMsg.Hash(), Content: commentContent}
	commentMsg, err := sub.CreateMessage(signingKey, protocol.FromCommentEvent(comment).Encode())
	if err != nil {
		t.Fatal(err)
	}
	if err := sub.SendMessage(protocol.BlockchainAddress{}, commentMsg); err != nil {
		t.Fatal(err)
	}

	reaction := protocol.ReactionEvent{RefMessageHash: postMsg.Hash(), Reaction: protocol.ThumbUp}
	reactionMsg, err := sub.CreateMessage(signingKey, protocol.FromReactionEvent(reaction).Encode())
	if err != nil {
		t.Fatal(err)
	}
	if err := sub.SendMessage(protocol.BlockchainAddress{}, reactionMsg); err != nil {
		t.Fatal(err)
	}
	if _, err := sub.SealPendingBlock(time.Unix(200, 0)); err != nil {
		t.Fatal(err)
	}

	if err := idx.Sync(sub); err != nil {
		t.Fatalf("sync: %v", err)
	}

	p, err := idx.QueryPost(postMsg.Hash())
	if err != nil {
		t.Fatal(err)
	}
	if p == nil {
		t.Fatal("expected post to be projected")
	}
	if p.Content != "hello garden" {
		t.Fatalf("content mismatch: %q", p.Content)
	}
	if len(p.Tags) != 2 || p.Tags[0] != "a" || p.Tags[1] != "b" {
		t.Fatalf("unexpected tags: %v", p.Tags)
	}
	if len(p.Comments) != 1 || p.Comments[0] != commentMsg.Hash() {
		t.Fatalf("unexpected comments: %v", p.Comments)
	}
	if len(p.Reactions) != 1 || p.Reactions[0].Name != "thumb_up" {
		t.Fatalf("unexpected reactions: %+v", p.Reactions)
	}

	comments, err := idx.QueryCommentsList(postMsg.Hash())
	if err != nil || len(comments) != 1 {
		t.Fatalf("QueryCommentsList: %v %v", comments, err)
	}
	reactions, err := idx.QueryReactions(postMsg.Hash())
	if err != nil || len(reactions) != 1 {
		t.Fatalf("QueryReactions: %v %v", reactions, err)
	}
}

func TestQueryPostUnknownHashReturnsNil(t *testing.T) {
	idx, _ := openTestStore(t)
	p, err := idx.QueryPost(protocol.ZeroHash)
	if err != nil {
		t.Fatal(err)
	}
	if p != nil {
		t.Fatal("expected nil post for unknown hash")
	}
}

func TestSyncIsIdempotentAcrossCalls(t *testing.T) {
	idx, sub := openTestStore(t)
	signingKey, err := localstore.NewSigningKey()
	if err != nil {
		t.Fatal(err)
	}
	content, _ := protocol.NewContent("only post")
	post, _ := protocol.NewPostEvent(content, nil)
	msg, err := sub.CreateMessage(signingKey, protocol.FromPostEvent(post).Encode())
	if err != nil {
		t.Fatal(err)
	}
	if err := sub.SendMessage(protocol.BlockchainAddress{}, msg); err != nil {
		t.Fatal(err)
	}
	if _, err := sub.SealPendingBlock(time.Unix(1, 0)); err != nil {
		t.Fatal(err)
	}

	if err := idx.Sync(sub); err != nil {
		t.Fatal(err)
	}
	if err := idx.Sync(sub); err != nil {
		t.Fatal(err)
	}

	posts, _, err := idx.Posts(0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(posts) != 1 {
		t.Fatalf("expected exactly 1 post after two syncs, got %d", len(posts))
	}
}

func TestPostsIteratorIsNewestFirstAndResumable(t *testing.T) {
	idx, sub := openTestStore(t)
	signingKey, err := localstore.NewSigningKey()
	if err != nil {
		t.Fatal(err)
	}

	var hashes []protocol.Hash
	for i := 0; i < 3; i++ {
		content, _ := protocol.NewContent("post")
		post, _ := protocol.NewPostEvent(content, nil)
		msg, err := sub.CreateMessage(signingKey, protocol.FromPostEvent(post).Encode())
		if err != nil {
			t.Fatal(err)
		}
		if err := sub.SendMessage(protocol.BlockchainAddress{}, msg); err != nil {
			t.Fatal(err)
		}
		if _, err := sub.SealPendingBlock(time.Unix(int64(i), 0)); err != nil {
			t.Fatal(err)
		}
		hashes = append(hashes, msg.Hash())
	}
	if err := idx.Sync(sub); err != nil {
		t.Fatal(err)
	}

	first, last, err := idx.Posts(0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != 2 || first[0].Hash != hashes[2] || first[1].Hash != hashes[1] {
		t.Fatalf("unexpected first page: %+v", first)
	}
	second, _, err := idx.Posts(last, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(second) != 1 || second[0].Hash != hashes[0] {
		t.Fatalf("unexpected second page: %+v", second)
	}
}

func TestSyncAbortsWholeBlockOnDecodeFailure(t *testing.T) {
	idx, sub := openTestStore(t)
	signingKey, err := localstore.NewSigningKey()
	if err != nil {
		t.Fatal(err)
	}
	content, _ := protocol.NewContent("good post")
	post, _ := protocol.NewPostEvent(content, nil)
	goodMsg, err := sub.CreateMessage(signingKey, protocol.FromPostEvent(post).Encode())
	if err != nil {
		t.Fatal(err)
	}
	if err := sub.SendMessage(protocol.BlockchainAddress{}, goodMsg); err != nil {
		t.Fatal(err)
	}
	badMsg, err := sub.CreateMessage(signingKey, []byte{0xff, 0xff})
	if err != nil {
		t.Fatal(err)
	}
	if err := sub.SendMessage(protocol.BlockchainAddress{}, badMsg); err != nil {
		t.Fatal(err)
	}
	if _, err := sub.SealPendingBlock(time.Unix(1, 0)); err != nil {
		t.Fatal(err)
	}

	if err := idx.Sync(sub); err == nil {
		t.Fatal("expected Sync to report the decode failure")
	}

	p, err := idx.QueryPost(goodMsg.Hash())
	if err != nil {
		t.Fatal(err)
	}
	if p != nil {
		t.Fatal("expected the whole block, including the good post, to be rolled back")
	}
}
