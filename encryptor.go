package pathoram

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"fmt"
)

// Encryptor provides block payload encryption and decryption at the
// storage boundary. The engine's protocol does not depend on it; the
// default NoOpEncryptor leaves the wire format as plain payload bytes.
type Encryptor interface {
	// Encrypt encrypts plaintext for the given block.
	Encrypt(blockID uint64, plaintext []byte) ([]byte, error)

	// Decrypt decrypts ciphertext for the given block.
	Decrypt(blockID uint64, ciphertext []byte) ([]byte, error)

	// Overhead returns the number of extra bytes added by encryption
	// (nonce + authentication tag).
	Overhead() int
}

// NoOpEncryptor passes data through without encryption.
// Use when encryption is handled externally.
type NoOpEncryptor struct{}

// Encrypt returns a copy of plaintext.
func (NoOpEncryptor) Encrypt(blockID uint64, plaintext []byte) ([]byte, error) {
	result := make([]byte, len(plaintext))
	copy(result, plaintext)
	return result, nil
}

// Decrypt returns a copy of ciphertext.
func (NoOpEncryptor) Decrypt(blockID uint64, ciphertext []byte) ([]byte, error) {
	result := make([]byte, len(ciphertext))
	copy(result, ciphertext)
	return result, nil
}

// Overhead returns 0 for NoOpEncryptor.
func (NoOpEncryptor) Overhead() int { return 0 }

// AESGCMEncryptor provides AES-256-GCM encryption with random nonces.
// The block id is bound as additional authenticated data, so a ciphertext
// moved to another slot fails to decrypt.
type AESGCMEncryptor struct {
	aead cipher.AEAD
}

const (
	aesKeySize   = 32 // AES-256
	aesNonceSize = 12 // Standard GCM nonce size
)

// NewAESGCMEncryptor creates a new AES-GCM encryptor with the given 32-byte key.
func NewAESGCMEncryptor(key []byte) (*AESGCMEncryptor, error) {
	if len(key) != aesKeySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", aesKeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create AES cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}

	return &AESGCMEncryptor{aead: aead}, nil
}

// Encrypt encrypts plaintext using AES-GCM with a random nonce.
// Output format: nonce (12 bytes) || ciphertext || tag (16 bytes)
func (e *AESGCMEncryptor) Encrypt(blockID uint64, plaintext []byte) ([]byte, error) {
	nonce := make([]byte, aesNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, ErrEncryptionFailed
	}

	// Seal appends ciphertext+tag to nonce
	ciphertext := e.aead.Seal(nonce, nonce, plaintext, makeAAD(blockID))
	return ciphertext, nil
}

// Decrypt decrypts ciphertext using AES-GCM.
// Input format: nonce (12 bytes) || ciphertext || tag (16 bytes)
func (e *AESGCMEncryptor) Decrypt(blockID uint64, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < aesNonceSize+e.aead.Overhead() {
		return nil, ErrDecryptionFailed
	}

	nonce := ciphertext[:aesNonceSize]
	ct := ciphertext[aesNonceSize:]

	plaintext, err := e.aead.Open(nil, nonce, ct, makeAAD(blockID))
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// Overhead returns nonce size + GCM tag size.
func (e *AESGCMEncryptor) Overhead() int {
	return aesNonceSize + e.aead.Overhead()
}

// makeAAD creates additional authenticated data from the block id.
func makeAAD(blockID uint64) []byte {
	aad := make([]byte, 8)
	binary.LittleEndian.PutUint64(aad, blockID)
	return aad
}
