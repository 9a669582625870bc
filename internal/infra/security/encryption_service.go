package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

// sealedPrefix marks values produced by Seal. Columns holding older plaintext rows
// are read back unchanged.
const sealedPrefix = "enc:v1:"

var ErrCiphertext = errors.New("security: malformed ciphertext")

// FieldCipher encrypts individual column values (LPA activation codes) with AES-GCM.
// The row id is bound as additional data so a sealed value cannot be moved to another row.
type FieldCipher struct {
	gcm cipher.AEAD
}

// NewFieldCipher accepts a raw 32-byte key or its base64 encoding.
func NewFieldCipher(key string) (*FieldCipher, error) {
	k := []byte(key)
	if len(k) != 32 {
		decoded, err := base64.StdEncoding.DecodeString(key)
		if err != nil || len(decoded) != 32 {
			return nil, fmt.Errorf("security: key must be 32 bytes or base64 of 32 bytes, got %d bytes", len(k))
		}
		k = decoded
	}
	block, err := aes.NewCipher(k)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return &FieldCipher{gcm: gcm}, nil
}

// Seal returns enc:v1:base64(nonce || ciphertext). Empty input stays empty.
func (c *FieldCipher) Seal(plaintext, rowID string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	nonce := make([]byte, c.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}
	ct := c.gcm.Seal(nonce, nonce, []byte(plaintext), []byte(rowID))
	return sealedPrefix + base64.RawURLEncoding.EncodeToString(ct), nil
}

// Open reverses Seal. Values without the prefix are returned as-is.
func (c *FieldCipher) Open(value, rowID string) (string, error) {
	if !strings.HasPrefix(value, sealedPrefix) {
		return value, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(value, sealedPrefix))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCiphertext, err)
	}
	ns := c.gcm.NonceSize()
	if len(data) < ns {
		return "", ErrCiphertext
	}
	pt, err := c.gcm.Open(nil, data[:ns], data[ns:], []byte(rowID))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCiphertext, err)
	}
	return string(pt), nil
}

// Sealed reports whether value was produced by Seal.
func Sealed(value string) bool { return strings.HasPrefix(value, sealedPrefix) }
