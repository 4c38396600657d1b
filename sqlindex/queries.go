package sqlindex

import (
	"database/sql"
	"fmt"

	"garden.dev/garden/protocol"
)

// Post is a fully resolved post row plus its computed reactions/comments.
type Post struct {
	RowID     int64
	Hash      protocol.Hash
	Content   string
	Tags      []string
	Timestamp int64
	Author    []byte
	Reactions []ReactionRow
	Comments  []protocol.Hash
}

// ReactionRow is one row from v1_reactions.
type ReactionRow struct {
	Hash      protocol.Hash
	Name      string
	Timestamp int64
	Author    []byte
}

// QueryPost returns the post with the given message hash, along with its
// tags, reactions and comment hashes. It returns (nil, nil) for an unknown
// hash.
func (s *Store) QueryPost(hash protocol.Hash) (*Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var p Post
	err := s.db.QueryRow(
		`SELECT rowid, content, timestamp, author FROM v1_posts WHERE message_hash = ?`,
		hash[:],
	).Scan(&p.RowID, &p.Content, &p.Timestamp, &p.Author)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlindex: query_post: %w", err)
	}
	p.Hash = hash

	rows, err := s.db.Query(`SELECT tag FROM v1_post_tags WHERE message_hash = ?`, hash[:])
	if err != nil {
		return nil, fmt.Errorf("sqlindex: query_post tags: %w", err)
	}
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			rows.Close()
			return nil, fmt.Errorf("sqlindex: scan tag: %w", err)
		}
		p.Tags = append(p.Tags, tag)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	reactions, err := s.queryReactionsLocked(hash)
	if err != nil {
		return nil, err
	}
	p.Reactions = reactions

	comments, err := s.queryCommentsListLocked(hash)
	if err != nil {
		return nil, err
	}
	p.Comments = comments

	return &p, nil
}

// QueryReactions returns every reaction to the message with the given hash.
func (s *Store) QueryReactions(hash protocol.Hash) ([]ReactionRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryReactionsLocked(hash)
}

func (s *Store) queryReactionsLocked(hash protocol.Hash) ([]ReactionRow, error) {
	rows, err := s.db.Query(
		`SELECT message_hash, name, timestamp, author FROM v1_reactions WHERE ref = ?`,
		hash[:],
	)
	if err != nil {
		return nil, fmt.Errorf("sqlindex: query_reactions: %w", err)
	}
	defer rows.Close()

	var out []ReactionRow
	for rows.Next() {
		var r ReactionRow
		var msgHash []byte
		if err := rows.Scan(&msgHash, &r.Name, &r.Timestamp, &r.Author); err != nil {
			return nil, fmt.Errorf("sqlindex: scan reaction: %w", err)
		}
		copy(r.Hash[:], msgHash)
		out = append(out, r)
	}
	return out, rows.Err()
}

// QueryCommentsList returns the message hashes of every comment referencing
// the given hash.
func (s *Store) QueryCommentsList(hash protocol.Hash) ([]protocol.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryCommentsListLocked(hash)
}

func (s *Store) queryCommentsListLocked(hash protocol.Hash) ([]protocol.Hash, error) {
	rows, err := s.db.Query(`SELECT message_hash FROM v1_comments WHERE ref = ?`, hash[:])
	if err != nil {
		return nil, fmt.Errorf("sqlindex: query_comments_list: %w", err)
	}
	defer rows.Close()

	var out []protocol.Hash
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("sqlindex: scan comment hash: %w", err)
		}
		var h protocol.Hash
		copy(h[:], raw)
		out = append(out, h)
	}
	return out, rows.Err()
}

// Posts returns up to limit posts strictly older (by rowid) than afterRowID,
// newest-first, plus the rowid to pass as afterRowID on the next call. Pass
// afterRowID=0 to start from the newest post. A returned lastRowID of 0
// means there are no more posts.
func (s *Store) Posts(afterRowID int64, limit int) ([]Post, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows *sql.Rows
	var err error
	if afterRowID <= 0 {
		rows, err = s.db.Query(
			`SELECT rowid, message_hash, content, timestamp, author FROM v1_posts ORDER BY rowid DESC LIMIT ?`,
			limit,
		)
	} else {
		rows, err = s.db.Query(
			`SELECT rowid, message_hash, content, timestamp, author FROM v1_posts WHERE rowid < ? ORDER BY rowid DESC LIMIT ?`,
			afterRowID, limit,
		)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("sqlindex: posts: %w", err)
	}
	defer rows.Close()

	var out []Post
	for rows.Next() {
		var p Post
		var hashBytes []byte
		if err := rows.Scan(&p.RowID, &hashBytes, &p.Content, &p.Timestamp, &p.Author); err != nil {
			return nil, 0, fmt.Errorf("sqlindex: scan post: %w", err)
		}
		copy(p.Hash[:], hashBytes)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	for i := range out {
		tags, err := s.queryTagsLocked(out[i].Hash)
		if err != nil {
			return nil, 0, err
		}
		out[i].Tags = tags
		reactions, err := s.queryReactionsLocked(out[i].Hash)
		if err != nil {
			return nil, 0, err
		}
		out[i].Reactions = reactions
		comments, err := s.queryCommentsListLocked(out[i].Hash)
		if err != nil {
			return nil, 0, err
		}
		out[i].Comments = comments
	}

	var last int64
	if len(out) > 0 {
		last = out[len(out)-1].RowID
	}
	return out, last, nil
}

func (s *Store) queryTagsLocked(hash protocol.Hash) ([]string, error) {
	rows, err := s.db.Query(`SELECT tag FROM v1_post_tags WHERE message_hash = ?`, hash[:])
	if err != nil {
		return nil, fmt.Errorf("sqlindex: query tags: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, err
		}
		out = append(out, tag)
	}
	return out, rows.Err()
}
