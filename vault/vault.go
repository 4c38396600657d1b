// Package vault is the client-side account keystore: it derives a
// per-password symmetric key and uses it to encrypt signing keys at rest, so
// a user's private key never touches disk in the clear (spec §4.5).
package vault

import (
	"crypto/ed25519"
	"fmt"
	"time"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/chacha20poly1305"

	"garden.dev/garden/protocol"
	"garden.dev/garden/substrate"
)

// kdfDomain is the fixed domain-separation context for the password KDF.
// Changing it invalidates every previously encrypted account.
const kdfDomain = "garden client account encryption key context"

// fixedNonce is baked into the protocol: every account is sealed under the
// same nonce. Security depends entirely on the derived key being unique per
// password — see deriveKey. Implementers MUST NOT change this value or
// existing vault files stop decrypting.
var fixedNonce [chacha20poly1305.NonceSize]byte

// Account is one encrypted signing-key record in the vault file.
type Account struct {
	Name       protocol.Name `json:"name"`
	CreatedAt  int64         `json:"created_at"`  // unix seconds
	SigningKey string        `json:"signing_key"` // base64(ciphertext||tag)
}

// New encrypts signingKey under password and produces an Account record with
// CreatedAt set to now.
func New(name protocol.Name, signingKey substrate.SigningKey, password string) (Account, error) {
	key, err := deriveKey(password)
	if err != nil {
		return Account{}, err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return Account{}, fmt.Errorf("vault: build aead: %w", err)
	}
	sealed := aead.Seal(nil, fixedNonce[:], signingKey, nil)
	return Account{
		Name:       name,
		CreatedAt:  time.Now().Unix(),
		SigningKey: encodeCiphertext(sealed),
	}, nil
}

// errDecryptionFailed is the single error surfaced for both a wrong password
// (MAC verification failure) and a corrupt/foreign-scheme record (length
// mismatch) — the spec calls for a generic failure mode here so neither
// case leaks which check tripped.
var errDecryptionFailed = fmt.Errorf("vault: decryption failed")

// SigningKey decrypts a.SigningKey under password, validating that the
// recovered plaintext is exactly the width of an ed25519 private key — the
// only scheme this repo's reference substrate issues keys for. Try the empty
// password first; it is a valid input representing an intentionally
// unencrypted account.
func (a Account) SigningKey(password string) (substrate.SigningKey, error) {
	key, err := deriveKey(password)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("vault: build aead: %w", err)
	}
	sealed, err := decodeCiphertext(a.SigningKey)
	if err != nil {
		return nil, errDecryptionFailed
	}
	plain, err := aead.Open(nil, fixedNonce[:], sealed, nil)
	if err != nil {
		return nil, errDecryptionFailed
	}
	if len(plain) != ed25519.PrivateKeySize {
		return nil, errDecryptionFailed
	}
	return substrate.SigningKey(plain), nil
}

// deriveKey computes the 32-byte ChaCha20-Poly1305 key for password via
// blake2b keyed-hash mode: the domain-separation string is the MAC key, and
// password is the hashed input. Every distinct password yields an
// independent key, which is what makes the fixed nonce above safe to reuse.
func deriveKey(password string) ([]byte, error) {
	h, err := blake2b.New256([]byte(kdfDomain))
	if err != nil {
		return nil, fmt.Errorf("vault: kdf init: %w", err)
	}
	if _, err := h.Write([]byte(password)); err != nil {
		return nil, fmt.Errorf("vault: kdf write: %w", err)
	}
	return h.Sum(nil), nil
}
