// Package secret encrypts provider credentials at rest.
package secret

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

// Prefix marks a stored value as ciphertext. Values without it are legacy plaintext.
const Prefix = "enc_str__"

var (
	ErrNoSecret = errors.New("secret: empty encryption secret")
	ErrCorrupt  = errors.New("secret: corrupted ciphertext")
)

const hkdfInfo = "mobileapps provider credentials v1"

// Cipher is XChaCha20-Poly1305 keyed from a server secret.
type Cipher struct {
	key []byte
}

func NewCipher(serverSecret string) (*Cipher, error) {
	if strings.TrimSpace(serverSecret) == "" {
		return nil, ErrNoSecret
	}
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(serverSecret), nil, []byte(hkdfInfo)), key); err != nil {
		return nil, fmt.Errorf("secret: derive key: %w", err)
	}
	return &Cipher{key: key}, nil
}

// Encrypt returns base64url(nonce || sealed).
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("secret: nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (c *Cipher) Decrypt(blob string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(blob)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", err
	}
	if len(raw) < aead.NonceSize()+aead.Overhead() {
		return "", fmt.Errorf("%w: %d bytes", ErrCorrupt, len(raw))
	}
	nonce, sealed := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return string(plain), nil
}
