// Package localstore is a minimal, non-production implementation of the
// substrate.Storage and substrate.Node contracts, backed by a single bbolt
// database. It exists so the index projection engines and the publish path
// have something real to run against in tests and in a local single-process
// devnet, without the test suite hand-rolling a different fake per file.
//
// It is explicitly NOT the substrate the spec describes: it does no block
// production, no networking, and no peer discovery. Blocks are sealed
// on demand by SealPendingBlock, a devnet/test-only operation outside the
// substrate.Node interface the core consumes.
package localstore

import (
	"fmt"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"garden.dev/garden/protocol"
	"garden.dev/garden/substrate"
)

var (
	bucketMeta     = []byte("meta")
	bucketBlocks   = []byte("blocks_by_hash")
	bucketNext     = []byte("next_by_prev_hash")
	bucketMsgBlock = []byte("block_by_message_hash")
	bucketMsgData  = []byte("message_by_hash")
)

var (
	keyRoot = []byte("root")
	keyTip  = []byte("tip")
)

// Store is a bbolt-backed reference Storage+Node implementation.
type Store struct {
	db *bolt.DB

	mu      sync.Mutex
	pending []*localMessage
}

// Open opens (creating if absent) a local reference substrate database at
// path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt: %w", err)
	}
	s := &Store{db: db}
	if err := s.db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketMeta, bucketBlocks, bucketNext, bucketMsgBlock, bucketMsgData} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", string(b), err)
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RootBlock implements substrate.Storage.
func (s *Store) RootBlock() (protocol.Hash, bool) {
	var out protocol.Hash
	found := false
	_ = s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketMeta).Get(keyRoot)
		if v == nil {
			return nil
		}
		copy(out[:], v)
		found = true
		return nil
	})
	return out, found
}

// HasBlock implements substrate.Storage.
func (s *Store) HasBlock(h protocol.Hash) bool {
	found := false
	_ = s.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(bucketBlocks).Get(h[:]) != nil
		return nil
	})
	return found
}

// NextBlock implements substrate.Storage.
func (s *Store) NextBlock(h protocol.Hash) (protocol.Hash, bool) {
	var out protocol.Hash
	found := false
	_ = s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketNext).Get(h[:])
		if v == nil {
			return nil
		}
		copy(out[:], v)
		found = true
		return nil
	})
	return out, found
}

// ReadBlock implements substrate.Storage.
func (s *Store) ReadBlock(h protocol.Hash) (substrate.Block, bool) {
	var raw []byte
	_ = s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketBlocks).Get(h[:])
		if v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if raw == nil {
		return nil, false
	}
	blk, err := decodeBlock(raw)
	if err != nil {
		return nil, false
	}
	return blk, true
}

// ReadMessage implements substrate.Storage.
func (s *Store) ReadMessage(h protocol.Hash) (substrate.Message, bool) {
	var raw []byte
	_ = s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketMsgData).Get(h[:])
		if v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if raw == nil {
		return nil, false
	}
	pub, off, err := readLP16(raw, 0)
	if err != nil {
		return nil, false
	}
	sig, off, err := readLP16(raw, off)
	if err != nil {
		return nil, false
	}
	data, _, err := readLP32(raw, off)
	if err != nil {
		return nil, false
	}
	return &localMessage{hash: h, data: data, pub: pub, sig: sig}, true
}

// FindMessage implements substrate.Storage.
func (s *Store) FindMessage(h protocol.Hash) (protocol.Hash, bool) {
	var out protocol.Hash
	found := false
	_ = s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketMsgBlock).Get(h[:])
		if v == nil {
			return nil
		}
		copy(out[:], v)
		found = true
		return nil
	})
	return out, found
}

// History implements substrate.Storage.
func (s *Store) History() []protocol.Hash {
	var out []protocol.Hash
	root, ok := s.RootBlock()
	if !ok {
		return nil
	}
	out = append(out, root)
	cur := root
	for {
		next, ok := s.NextBlock(cur)
		if !ok {
			break
		}
		out = append(out, next)
		cur = next
	}
	return out
}

// SendMessage implements substrate.Node: it enqueues message for inclusion
// in the next sealed block. Submission is fire-and-forget past local
// enqueue, matching the spec's contract.
func (s *Store) SendMessage(_ protocol.BlockchainAddress, message substrate.Message) error {
	lm, ok := message.(*localMessage)
	if !ok {
		return fmt.Errorf("localstore: foreign message implementation")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, lm)
	return nil
}

// CreateMessage implements substrate.Node.
func (s *Store) CreateMessage(signingKey substrate.SigningKey, data []byte) (substrate.Message, error) {
	return createMessage(signingKey, data)
}

// SealPendingBlock appends every message enqueued via SendMessage since the
// last seal into one new block. It is a devnet/test-only operation: real
// block production belongs to the substrate, outside this package's scope.
func (s *Store) SealPendingBlock(ts time.Time) (protocol.Hash, error) {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	prev, hasPrev := s.tip()
	h := blockHash(prev, ts, pending)
	blk := &localBlock{timestamp: ts, messages: pending}
	encoded := encodeBlock(blk)

	err := s.db.Update(func(tx *bolt.Tx) error {
		blocks := tx.Bucket(bucketBlocks)
		if err := blocks.Put(h[:], encoded); err != nil {
			return err
		}
		meta := tx.Bucket(bucketMeta)
		if !hasPrev {
			if err := meta.Put(keyRoot, h[:]); err != nil {
				return err
			}
		} else {
			if err := tx.Bucket(bucketNext).Put(prev[:], h[:]); err != nil {
				return err
			}
		}
		if err := meta.Put(keyTip, h[:]); err != nil {
			return err
		}
		msgBlock := tx.Bucket(bucketMsgBlock)
		msgData := tx.Bucket(bucketMsgData)
		for _, m := range pending {
			if err := msgBlock.Put(m.hash[:], h[:]); err != nil {
				return err
			}
			rec := appendLP32(appendLP16(appendLP16(nil, m.pub), m.sig), m.data)
			if err := msgData.Put(m.hash[:], rec); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return protocol.Hash{}, err
	}
	return h, nil
}

func (s *Store) tip() (protocol.Hash, bool) {
	var out protocol.Hash
	found := false
	_ = s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketMeta).Get(keyTip)
		if v == nil {
			return nil
		}
		copy(out[:], v)
		found = true
		return nil
	})
	return out, found
}

// Reset wipes the chain back to empty, simulating the substrate choosing a
// different root block (used to test the index's re-org handling).
func (s *Store) Reset() error {
	s.mu.Lock()
	s.pending = nil
	s.mu.Unlock()
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketMeta, bucketBlocks, bucketNext, bucketMsgBlock, bucketMsgData} {
			if err := tx.DeleteBucket(b); err != nil && err != bolt.ErrBucketNotFound {
				return err
			}
			if _, err := tx.CreateBucket(b); err != nil {
				return err
			}
		}
		return nil
	})
}
