package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const sealedPrefix = "v1:"

// ErrUnsealable is returned when a sealed credential cannot be opened with
// the current key (tampered value or rotated key).
var ErrUnsealable = errors.New("auth: credential cannot be unsealed")

// Vault seals GitHub access tokens before they are written to the database.
// Sealed values look like "v1:<base64url(nonce|ciphertext)>".
type Vault struct {
	aead interface {
		NonceSize() int
		Seal(dst, nonce, plaintext, additionalData []byte) []byte
		Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
	}
}

// NewVault derives an XChaCha20-Poly1305 key from secret with HKDF-SHA256.
func NewVault(secret string) (*Vault, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: credential key must be at least 16 characters")
	}

	key := make([]byte, chacha20poly1305.KeySize)
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte("onelink-portfolio credential vault"))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("auth: deriving credential key: %w", err)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("auth: creating cipher: %w", err)
	}
	return &Vault{aead: aead}, nil
}

// Seal encrypts plaintext. The user id is bound as associated data so a
// sealed token copied onto another user's row does not open.
func (v *Vault) Seal(userID, plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, v.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("auth: generating nonce: %w", err)
	}

	out := v.aead.Seal(nonce, nonce, []byte(plaintext), []byte(userID))
	return sealedPrefix + base64.RawURLEncoding.EncodeToString(out), nil
}

// Open reverses Seal. An empty value opens to "".
func (v *Vault) Open(userID, sealed string) (string, error) {
	if sealed == "" {
		return "", nil
	}

	raw, ok := strings.CutPrefix(sealed, sealedPrefix)
	if !ok {
		return "", ErrUnsealable
	}
	data, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil || len(data) < v.aead.NonceSize() {
		return "", ErrUnsealable
	}

	nonce, ciphertext := data[:v.aead.NonceSize()], data[v.aead.NonceSize():]
	plain, err := v.aead.Open(nil, nonce, ciphertext, []byte(userID))
	if err != nil {
		return "", ErrUnsealable
	}
	return string(plain), nil
}
