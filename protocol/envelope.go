package protocol

// EventTag is the 16-bit little-endian discriminant prefixed to every
// encoded event.
type EventTag uint16

const (
	TagV1Post     EventTag = 0
	TagV1Comment  EventTag = 1
	TagV1Reaction EventTag = 2
)

// Events is the tagged union of every event variant this protocol version
// knows about. Exactly one of Post/Comment/Reaction is non-nil.
type Events struct {
	Post     *PostEvent
	Comment  *CommentEvent
	Reaction *ReactionEvent
}

func FromPostEvent(e PostEvent) Events         { return Events{Post: &e} }
func FromCommentEvent(e CommentEvent) Events   { return Events{Comment: &e} }
func FromReactionEvent(e ReactionEvent) Events { return Events{Reaction: &e} }

// Tag reports which variant is populated.
func (e Events) Tag() EventTag {
	switch {
	case e.Post != nil:
		return TagV1Post
	case e.Comment != nil:
		return TagV1Comment
	default:
		return TagV1Reaction
	}
}

func (e Events) SizeHint() int {
	switch {
	case e.Post != nil:
		return 2 + e.Post.SizeHint()
	case e.Comment != nil:
		return 2 + e.Comment.SizeHint()
	case e.Reaction != nil:
		return 2 + e.Reaction.SizeHint()
	default:
		return 2
	}
}

func (e Events) Encode() []byte {
	out := make([]byte, 2, e.SizeHint())
	switch {
	case e.Post != nil:
		putU16LE(out, uint16(TagV1Post))
		out = append(out, e.Post.Encode()...)
	case e.Comment != nil:
		putU16LE(out, uint16(TagV1Comment))
		out = append(out, e.Comment.Encode()...)
	case e.Reaction != nil:
		putU16LE(out, uint16(TagV1Reaction))
		out = append(out, e.Reaction.Encode()...)
	}
	return out
}

// EventsFromBytes decodes the tagged envelope, rejecting unrecognized tags
// with UnknownEvent so forward-compatible variants can be skipped by
// projection without being fatal.
func EventsFromBytes(b []byte) (Events, error) {
	c := newCursor(b)
	tagBytes, err := c.readU16LE()
	if err != nil {
		return Events{}, err
	}
	body := c.rest()
	switch EventTag(tagBytes) {
	case TagV1Post:
		ev, err := DecodePostEvent(body)
		if err != nil {
			return Events{}, err
		}
		return FromPostEvent(ev), nil
	case TagV1Comment:
		ev, err := DecodeCommentEvent(body)
		if err != nil {
			return Events{}, err
		}
		return FromCommentEvent(ev), nil
	case TagV1Reaction:
		ev, err := DecodeReactionEvent(body)
		if err != nil {
			return Events{}, err
		}
		return FromReactionEvent(ev), nil
	default:
		return Events{}, UnknownEvent(tagBytes)
	}
}
