package protocol

// PostEvent is the payload of a new top-level post.
//
// Wire layout: u16 content_len (LE) || content_bytes || u8 tag_count ||
// repeat tag_count times (u8 tag_len || tag_bytes).
type PostEvent struct {
	Content Content
	Tags    []Tag
}

// NewPostEvent validates |tags| <= 255 before constructing the event; Content
// and each Tag are assumed already validated via NewContent/NewTag.
func NewPostEvent(content Content, tags []Tag) (PostEvent, error) {
	if len(tags) > 255 {
		return PostEvent{}, codecErr(ErrTooManyTags, "a post may carry at most 255 tags")
	}
	return PostEvent{Content: content, Tags: tags}, nil
}

func (e PostEvent) SizeHint() int {
	n := 2 + len(e.Content) + 1
	for _, t := range e.Tags {
		n += 1 + len(t)
	}
	return n
}

func (e PostEvent) Encode() []byte {
	out := make([]byte, 0, e.SizeHint())
	var lenBuf [2]byte
	putU16LE(lenBuf[:], uint16(len(e.Content)))
	out = append(out, lenBuf[:]...)
	out = append(out, []byte(e.Content)...)
	out = append(out, byte(len(e.Tags)))
	for _, t := range e.Tags {
		out = append(out, byte(len(t)))
		out = append(out, []byte(t)...)
	}
	return out
}

func DecodePostEvent(b []byte) (PostEvent, error) {
	c := newCursor(b)
	contentLen, err := c.readU16LE()
	if err != nil {
		return PostEvent{}, err
	}
	contentBytes, err := c.readExact(int(contentLen))
	if err != nil {
		return PostEvent{}, err
	}
	content, err := NewContent(string(contentBytes))
	if err != nil {
		return PostEvent{}, err
	}
	tagCount, err := c.readU8()
	if err != nil {
		return PostEvent{}, err
	}
	tags := make([]Tag, 0, tagCount)
	for i := 0; i < int(tagCount); i++ {
		tagLen, err := c.readU8()
		if err != nil {
			return PostEvent{}, err
		}
		tagBytes, err := c.readExact(int(tagLen))
		if err != nil {
			return PostEvent{}, err
		}
		tag, err := NewTag(string(tagBytes))
		if err != nil {
			return PostEvent{}, err
		}
		tags = append(tags, tag)
	}
	return PostEvent{Content: content, Tags: tags}, nil
}

// CommentEvent replies to a prior post or comment.
//
// Wire layout: H bytes ref_message_hash || utf8 content_bytes (rest of
// buffer). The decoder infers content length from the remaining bytes.
type CommentEvent struct {
	RefMessageHash Hash
	Content        Content
}

func (e CommentEvent) SizeHint() int {
	return HashSize + len(e.Content)
}

func (e CommentEvent) Encode() []byte {
	out := make([]byte, 0, e.SizeHint())
	out = append(out, e.RefMessageHash[:]...)
	out = append(out, []byte(e.Content)...)
	return out
}

func DecodeCommentEvent(b []byte) (CommentEvent, error) {
	c := newCursor(b)
	refBytes, err := c.readExact(HashSize)
	if err != nil {
		return CommentEvent{}, err
	}
	var ref Hash
	copy(ref[:], refBytes)
	content, err := NewContent(string(c.rest()))
	if err != nil {
		return CommentEvent{}, err
	}
	return CommentEvent{RefMessageHash: ref, Content: content}, nil
}

// ReactionEvent reacts to a prior post or comment.
//
// Wire layout: H bytes ref_message_hash || ascii reaction_name (rest of
// buffer).
type ReactionEvent struct {
	RefMessageHash Hash
	Reaction       Reaction
}

func (e ReactionEvent) SizeHint() int {
	return HashSize + len(e.Reaction.Name())
}

func (e ReactionEvent) Encode() []byte {
	out := make([]byte, 0, e.SizeHint())
	out = append(out, e.RefMessageHash[:]...)
	out = append(out, []byte(e.Reaction.Name())...)
	return out
}

func DecodeReactionEvent(b []byte) (ReactionEvent, error) {
	c := newCursor(b)
	refBytes, err := c.readExact(HashSize)
	if err != nil {
		return ReactionEvent{}, err
	}
	var ref Hash
	copy(ref[:], refBytes)
	reaction, err := ReactionFromName(string(c.rest()))
	if err != nil {
		return ReactionEvent{}, err
	}
	return ReactionEvent{RefMessageHash: ref, Reaction: reaction}, nil
}
