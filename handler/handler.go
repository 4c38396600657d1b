// Package handler is the publish path: it turns a constructed event into a
// signed substrate message and submits it (spec §4.6).
package handler

import (
	"garden.dev/garden/protocol"
	"garden.dev/garden/substrate"
)

// Handler wraps the two substrate operations the publish path needs.
type Handler struct {
	Node substrate.Node
}

// New returns a Handler backed by node.
func New(node substrate.Node) *Handler {
	return &Handler{Node: node}
}

// SendPost wraps event, signs it with signingKey, and submits it to addr.
func (h *Handler) SendPost(signingKey substrate.SigningKey, addr protocol.BlockchainAddress, event protocol.PostEvent) error {
	return h.send(signingKey, addr, protocol.FromPostEvent(event))
}

// SendComment wraps event, signs it with signingKey, and submits it to addr.
func (h *Handler) SendComment(signingKey substrate.SigningKey, addr protocol.BlockchainAddress, event protocol.CommentEvent) error {
	return h.send(signingKey, addr, protocol.FromCommentEvent(event))
}

// SendReaction wraps event, signs it with signingKey, and submits it to addr.
func (h *Handler) SendReaction(signingKey substrate.SigningKey, addr protocol.BlockchainAddress, event protocol.ReactionEvent) error {
	return h.send(signingKey, addr, protocol.FromReactionEvent(event))
}

func (h *Handler) send(signingKey substrate.SigningKey, addr protocol.BlockchainAddress, events protocol.Events) error {
	message, err := h.Node.CreateMessage(signingKey, events.Encode())
	if err != nil {
		return err
	}
	return h.Node.SendMessage(addr, message)
}

// MessagesFilter reports whether message carries a garden event this
// protocol version recognizes. It is meant to be supplied to the substrate
// at node start so that only garden-relevant traffic enters the local
// message pipeline; rootBlock and author are accepted to match the
// substrate's filter signature but are not otherwise consulted here.
func MessagesFilter(rootBlock protocol.Hash, message substrate.Message, author substrate.VerifyingKey) bool {
	_, err := protocol.EventsFromBytes(message.Data())
	return err == nil
}
