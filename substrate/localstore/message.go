package localstore

import (
	"crypto/ed25519"
	"crypto/sha256"

	"garden.dev/garden/protocol"
	"garden.dev/garden/substrate"
)

// SchemeEd25519 is the only signature scheme this reference store supports.
// The index, sqlindex and handler packages never import crypto/ed25519; they
// only ever see this value through substrate.Message.Verify. The vault
// package imports it only for the private-key width it checks.
const SchemeEd25519 substrate.SignatureScheme = "ed25519"

type localMessage struct {
	hash protocol.Hash
	data []byte
	pub  ed25519.PublicKey
	sig  []byte
}

func (m *localMessage) Hash() protocol.Hash { return m.hash }
func (m *localMessage) Data() []byte        { return m.data }

func (m *localMessage) Verify() (substrate.SignatureScheme, substrate.VerifyingKey, error) {
	if !ed25519.Verify(m.pub, m.data, m.sig) {
		return "", nil, substrate.Wrap(substrate.ErrSignature, m.hash, errInvalidSignature)
	}
	return SchemeEd25519, substrate.VerifyingKey(append([]byte(nil), m.pub...)), nil
}

var errInvalidSignature = &signatureError{"ed25519 signature verification failed"}

type signatureError struct{ msg string }

func (e *signatureError) Error() string { return e.msg }

func messageHash(pub ed25519.PublicKey, sig, data []byte) protocol.Hash {
	h := sha256.New()
	h.Write(pub)
	h.Write(sig)
	h.Write(data)
	var out protocol.Hash
	copy(out[:], h.Sum(nil))
	return out
}

// NewSigningKey generates a fresh Ed25519 keypair and returns the private
// key bytes in the shape substrate.SigningKey expects.
func NewSigningKey() (substrate.SigningKey, error) {
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, err
	}
	return substrate.SigningKey(priv), nil
}

// createMessage signs data with signingKey (an ed25519.PrivateKey's 64 raw
// bytes) and builds the resulting message.
func createMessage(signingKey substrate.SigningKey, data []byte) (*localMessage, error) {
	if len(signingKey) != ed25519.PrivateKeySize {
		return nil, &signatureError{"signing key must be an ed25519 private key"}
	}
	priv := ed25519.PrivateKey(signingKey)
	pub := priv.Public().(ed25519.PublicKey)
	sig := ed25519.Sign(priv, data)
	return &localMessage{
		hash: messageHash(pub, sig, data),
		data: append([]byte(nil), data...),
		pub:  append(ed25519.PublicKey(nil), pub...),
		sig:  append([]byte(nil), sig...),
	}, nil
}
