package session

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters for deriving the cookie key from SESSION_SECRET.
const (
	argonTime    = 2
	argonMemory  = 19 * 1024
	argonThreads = 1
	keyLength    = 32
)

var keySalt = []byte("ai-design-team/session-cookie/v1")

var ErrEmptySecret = errors.New("session secret is empty")

// DeriveKey stretches a secret into a 32-byte AES-256 key with Argon2id.
func DeriveKey(secret string) []byte {
	return argon2.IDKey([]byte(secret), keySalt, argonTime, argonMemory, argonThreads, keyLength)
}

// Encrypt encrypts plaintext using AES-GCM with the provided key.
// The key must be 16, 24, or 32 bytes for AES-128, AES-192, or AES-256.
// Returns URL-safe base64 so the result can be stored in a cookie.
func Encrypt(plaintext []byte, key []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	// nonce + ciphertext + tag
	ciphertext := gcm.Seal(nonce, nonce, plaintext, nil)

	return base64.RawURLEncoding.EncodeToString(ciphertext), nil
}

// Decrypt decrypts the output of Encrypt.
func Decrypt(encoded string, key []byte) ([]byte, error) {
	ciphertext, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}

	return plaintext, nil
}

// Sealer encrypts values stored in client cookies.
type Sealer struct {
	key []byte
}

func NewSealer(secret string) (*Sealer, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	return &Sealer{key: DeriveKey(secret)}, nil
}

func (s *Sealer) Seal(value string) (string, error) {
	return Encrypt([]byte(value), s.key)
}

func (s *Sealer) Open(sealed string) (string, error) {
	plaintext, err := Decrypt(sealed, s.key)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// GenerateSecret returns a random URL-safe secret for processes started
// without SESSION_SECRET.
func GenerateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate session secret: %w", err)
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
