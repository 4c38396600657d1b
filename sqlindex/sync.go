package sqlindex

import (
	"database/sql"
	"fmt"

	"garden.dev/garden/protocol"
	"garden.dev/garden/substrate"
)

// Sync walks storage.History() and projects every block not yet recorded in
// handled_blocks. Each block is projected inside its own transaction: a
// decode failure on any message in the block rolls back that transaction
// whole, so the block is retried in full on the next Sync call. See spec
// §4.4.
func (s *Store) Sync(storage substrate.Storage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, blockHash := range storage.History() {
		handled, err := s.isHandled(blockHash)
		if err != nil {
			return err
		}
		if handled {
			continue
		}

		block, ok := storage.ReadBlock(blockHash)
		if !ok {
			continue
		}

		if err := s.projectBlock(blockHash, block); err != nil {
			return fmt.Errorf("sqlindex: project block %s: %w", blockHash.Base64(), err)
		}
	}
	return nil
}

func (s *Store) isHandled(h protocol.Hash) (bool, error) {
	var exists int
	err := s.db.QueryRow(`SELECT 1 FROM handled_blocks WHERE hash = ?`, h[:]).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sqlindex: query handled_blocks: %w", err)
	}
	return true, nil
}

func (s *Store) projectBlock(blockHash protocol.Hash, block substrate.Block) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO handled_blocks (hash) VALUES (?)`, blockHash[:]); err != nil {
		return fmt.Errorf("insert handled_blocks: %w", err)
	}

	for _, msg := range block.InlineMessages() {
		if err := projectMessage(tx, blockHash, block, msg); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func projectMessage(tx *sql.Tx, blockHash protocol.Hash, block substrate.Block, msg substrate.Message) error {
	_, author, err := msg.Verify()
	if err != nil {
		return fmt.Errorf("verify message %s: %w", msg.Hash().Base64(), err)
	}
	events, err := protocol.EventsFromBytes(msg.Data())
	if err != nil {
		return fmt.Errorf("decode message %s: %w", msg.Hash().Base64(), err)
	}

	ts := block.Timestamp().Unix()
	msgHash := msg.Hash()

	switch {
	case events.Post != nil:
		if _, err := tx.Exec(
			`INSERT INTO v1_posts (message_hash, block_hash, content, timestamp, author) VALUES (?, ?, ?, ?, ?)`,
			msgHash[:], blockHash[:], string(events.Post.Content), ts, []byte(author),
		); err != nil {
			return fmt.Errorf("insert v1_posts: %w", err)
		}
		for _, tag := range events.Post.Tags {
			if _, err := tx.Exec(
				`INSERT INTO v1_post_tags (message_hash, tag) VALUES (?, ?)`,
				msgHash[:], string(tag),
			); err != nil {
				return fmt.Errorf("insert v1_post_tags: %w", err)
			}
		}
	case events.Comment != nil:
		if _, err := tx.Exec(
			`INSERT INTO v1_comments (message_hash, block_hash, ref, content, timestamp, author) VALUES (?, ?, ?, ?, ?, ?)`,
			msgHash[:], blockHash[:], events.Comment.RefMessageHash[:], string(events.Comment.Content), ts, []byte(author),
		); err != nil {
			return fmt.Errorf("insert v1_comments: %w", err)
		}
	case events.Reaction != nil:
		if _, err := tx.Exec(
			`INSERT INTO v1_reactions (message_hash, block_hash, ref, name, timestamp, author) VALUES (?, ?, ?, ?, ?, ?)`,
			msgHash[:], blockHash[:], events.Reaction.RefMessageHash[:], events.Reaction.Reaction.Name(), ts, []byte(author),
		); err != nil {
			return fmt.Errorf("insert v1_reactions: %w", err)
		}
	}
	return nil
}
