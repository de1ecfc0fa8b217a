package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
)

// MessageSealer encrypts direct message bodies at rest with AES-256-GCM
type MessageSealer struct {
	gcm cipher.AEAD
}

// NewMessageSealer creates a sealer with a 32 byte key
func NewMessageSealer(key []byte) (*MessageSealer, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes for AES-256, got %d", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &MessageSealer{gcm: gcm}, nil
}

// NewMessageSealerFromSecret derives the key from a configured secret
func NewMessageSealerFromSecret(secret string) (*MessageSealer, error) {
	if secret == "" {
		return nil, fmt.Errorf("secret cannot be empty")
	}
	hash := sha256.Sum256([]byte(secret))
	return NewMessageSealer(hash[:])
}

// Seal encrypts plaintext and prepends the nonce
func (s *MessageSealer) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, s.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return s.gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts data produced by Seal
func (s *MessageSealer) Open(sealed []byte) ([]byte, error) {
	nonceSize := s.gcm.NonceSize()
	if len(sealed) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]
	plaintext, err := s.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	return plaintext, nil
}
