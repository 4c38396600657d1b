// Package index implements the client's in-memory projection of the
// substrate's linear block history into queryable post/comment references
// (spec §4.3). It stores no payload bytes, only pointers back into substrate
// storage; readers resolve those pointers through the substrate outside the
// index's lock.
package index

import (
	"sync"
	"time"

	"garden.dev/garden/protocol"
	"garden.dev/garden/substrate"
)

// PostIndex locates a projected post by the block and message that carried
// it.
type PostIndex struct {
	BlockHash   protocol.Hash
	MessageHash protocol.Hash
}

// CommentIndex locates a projected comment and the message it replies to.
type CommentIndex struct {
	BlockHash      protocol.Hash
	MessageHash    protocol.Hash
	RefMessageHash protocol.Hash
}

// PostInfo is a fully resolved post: the index entry plus everything
// recovered from substrate storage.
type PostInfo struct {
	PostIndex
	Event     protocol.PostEvent
	Author    substrate.VerifyingKey
	Timestamp time.Time
}

// CommentInfo is a fully resolved comment.
type CommentInfo struct {
	CommentIndex
	Event        protocol.CommentEvent
	Author       substrate.VerifyingKey
	Timestamp    time.Time
	RefBlockHash protocol.Hash
}

// Index is the client's readers-writer-locked projection. Update is the sole
// writer; it holds the write lock for one projection batch. Posts/Comments
// snapshots are taken under the read lock and returned as plain slices so
// callers never hold the lock across substrate I/O.
type Index struct {
	mu sync.RWMutex

	rootBlock protocol.Hash
	haveRoot  bool
	lastBlock protocol.Hash

	posts    []PostIndex
	comments []CommentIndex

	// storage is the handle last used by Update; read operations resolve
	// against it. It is nil until the first successful Update, which is
	// exactly the spec's "no storage attached for the configured chain"
	// condition for the outer Option on read operations.
	storage substrate.Storage
}

// New returns an empty index.
func New() *Index {
	return &Index{}
}

// Update advances last_block forward along storage's linear history,
// appending entries for each recognized event and leaving unrecognized
// events untouched. See spec §4.3 for the full algorithm.
func (idx *Index) Update(storage substrate.Storage) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.storage = storage

	root, ok := storage.RootBlock()
	if !ok {
		// Storage empty: no-op.
		return nil
	}

	if !idx.haveRoot || idx.rootBlock != root || !storage.HasBlock(idx.lastBlock) {
		idx.posts = nil
		idx.comments = nil
		idx.lastBlock = protocol.ZeroHash
		idx.rootBlock = root
		idx.haveRoot = true
	}

	cur := idx.lastBlock
	for {
		var next protocol.Hash
		var ok bool
		if cur == protocol.ZeroHash {
			next, ok = root, true
		} else {
			next, ok = storage.NextBlock(cur)
		}
		if !ok {
			break
		}

		block, found := storage.ReadBlock(next)
		if !found {
			// Partial tail: stop without advancing past the missing block.
			break
		}

		for _, msg := range block.InlineMessages() {
			events, err := protocol.EventsFromBytes(msg.Data())
			if err != nil {
				// Decode errors here are warnings, not fatal: the substrate
				// may carry unrelated messages.
				continue
			}
			switch {
			case events.Post != nil:
				idx.posts = append(idx.posts, PostIndex{BlockHash: next, MessageHash: msg.Hash()})
			case events.Comment != nil:
				idx.comments = append(idx.comments, CommentIndex{
					BlockHash:      next,
					MessageHash:    msg.Hash(),
					RefMessageHash: events.Comment.RefMessageHash,
				})
			}
		}

		idx.lastBlock = next
		cur = next
	}
	return nil
}

// snapshot copies the current posts/comments slices under the read lock.
func (idx *Index) snapshot() ([]PostIndex, []CommentIndex, substrate.Storage) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	posts := make([]PostIndex, len(idx.posts))
	copy(posts, idx.posts)
	comments := make([]CommentIndex, len(idx.comments))
	copy(comments, idx.comments)
	return posts, comments, idx.storage
}

// Posts returns a restartable, finite snapshot of the currently projected
// posts, in block-then-intra-block order.
func (idx *Index) Posts() []PostIndex {
	posts, _, _ := idx.snapshot()
	return posts
}

// Comments returns a restartable, finite snapshot of the currently projected
// comments.
func (idx *Index) Comments() []CommentIndex {
	_, comments, _ := idx.snapshot()
	return comments
}

// ReadPost resolves a PostIndex through substrate storage. The outer bool is
// false iff no storage has ever been attached via Update; the error reports
// storage, codec or signature failures encountered while resolving.
func (idx *Index) ReadPost(ref PostIndex) (PostInfo, bool, error) {
	_, _, storage := idx.snapshot()
	if storage == nil {
		return PostInfo{}, false, nil
	}

	block, ok := storage.ReadBlock(ref.BlockHash)
	if !ok {
		return PostInfo{}, true, substrate.NoBlockInStorage(ref.BlockHash)
	}
	msg, ok := storage.ReadMessage(ref.MessageHash)
	if !ok {
		return PostInfo{}, true, substrate.NoMessageInStorage(ref.MessageHash)
	}
	events, err := protocol.EventsFromBytes(msg.Data())
	if err != nil {
		return PostInfo{}, true, err
	}
	if events.Post == nil {
		return PostInfo{}, true, substrate.InvalidEventType(ref.MessageHash)
	}
	_, author, err := msg.Verify()
	if err != nil {
		return PostInfo{}, true, err
	}
	return PostInfo{
		PostIndex: ref,
		Event:     *events.Post,
		Author:    author,
		Timestamp: block.Timestamp(),
	}, true, nil
}

// ReadComment resolves a CommentIndex through substrate storage, additionally
// resolving the block hash containing the referenced message.
func (idx *Index) ReadComment(ref CommentIndex) (CommentInfo, bool, error) {
	_, _, storage := idx.snapshot()
	if storage == nil {
		return CommentInfo{}, false, nil
	}

	block, ok := storage.ReadBlock(ref.BlockHash)
	if !ok {
		return CommentInfo{}, true, substrate.NoBlockInStorage(ref.BlockHash)
	}
	msg, ok := storage.ReadMessage(ref.MessageHash)
	if !ok {
		return CommentInfo{}, true, substrate.NoMessageInStorage(ref.MessageHash)
	}
	events, err := protocol.EventsFromBytes(msg.Data())
	if err != nil {
		return CommentInfo{}, true, err
	}
	if events.Comment == nil {
		return CommentInfo{}, true, substrate.InvalidEventType(ref.MessageHash)
	}
	_, author, err := msg.Verify()
	if err != nil {
		return CommentInfo{}, true, err
	}
	refBlock, ok := storage.FindMessage(ref.RefMessageHash)
	if !ok {
		return CommentInfo{}, true, substrate.NoBlockWithMessage(ref.RefMessageHash)
	}
	return CommentInfo{
		CommentIndex: ref,
		Event:        *events.Comment,
		Author:       author,
		Timestamp:    block.Timestamp(),
		RefBlockHash: refBlock,
	}, true, nil
}

// RootBlock and LastBlock report the index's current generation checkpoint,
// primarily for diagnostics and tests.
func (idx *Index) RootBlock() (protocol.Hash, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.rootBlock, idx.haveRoot
}

func (idx *Index) LastBlock() protocol.Hash {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.lastBlock
}
