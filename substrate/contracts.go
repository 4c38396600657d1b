// Package substrate defines the narrow contract the garden core consumes
// from the underlying signed block-chain substrate: ordering, replication,
// signature verification and durable storage. The substrate itself — block
// production, gossip, consensus, peer handshake, packet framing, key
// exchange — is an external collaborator and out of scope here; this
// package only names the interfaces the core is built against.
package substrate

import (
	"time"

	"garden.dev/garden/protocol"
)

// SignatureScheme identifies the algorithm a Message was signed with, as
// reported by Message.Verify. The core treats it as opaque.
type SignatureScheme string

// VerifyingKey is an opaque fixed-width public-key identifier from the
// substrate's signature scheme.
type VerifyingKey []byte

// SigningKey is an opaque fixed-width private-key identifier from the
// substrate's signature scheme. It can be serialized to bytes and
// reconstructed.
type SigningKey []byte

// Message is a signed envelope whose payload is event bytes.
type Message interface {
	Hash() protocol.Hash
	Data() []byte
	// Verify cryptographically verifies the message's signature, returning
	// the scheme used and the signer's verifying key.
	Verify() (SignatureScheme, VerifyingKey, error)
}

// Block is a substrate record holding a timestamp and a set of inline
// messages.
type Block interface {
	Timestamp() time.Time
	InlineMessages() []Message
}

// Storage is the read-only handle to a substrate's linear block history that
// the index projection engines consume.
type Storage interface {
	// RootBlock returns the genesis block of the chain, or ok=false if the
	// chain is empty.
	RootBlock() (protocol.Hash, bool)
	// HasBlock reports whether h is present in storage.
	HasBlock(h protocol.Hash) bool
	// NextBlock returns the successor of h along the canonical chain, or
	// ok=false if h is the tip or is absent.
	NextBlock(h protocol.Hash) (protocol.Hash, bool)
	// ReadBlock returns the whole block, or ok=false if absent.
	ReadBlock(h protocol.Hash) (Block, bool)
	// ReadMessage returns a message by hash, or ok=false if absent.
	ReadMessage(h protocol.Hash) (Message, bool)
	// FindMessage returns the hash of the block containing message h, or
	// ok=false if the message is unknown.
	FindMessage(h protocol.Hash) (protocol.Hash, bool)
	// History returns every block hash from root to tip, in canonical order.
	History() []protocol.Hash
}

// Node is the write path into the substrate: submitting signed messages.
type Node interface {
	// SendMessage submits message for inclusion in the chain identified by
	// addr. Submission is fire-and-forget past local enqueue; the substrate
	// owns delivery and retry.
	SendMessage(addr protocol.BlockchainAddress, message Message) error
	// CreateMessage signs data with signingKey and returns the resulting
	// substrate message, ready to submit via SendMessage.
	CreateMessage(signingKey SigningKey, data []byte) (Message, error)
}
