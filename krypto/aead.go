package krypto

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"fmt"
)

const (
	// NonceSize is the AES-GCM nonce (IV) length in bytes.
	NonceSize = 12
	// TagSize is the AES-GCM authentication tag length in bytes.
	TagSize = 16
)

// NewAEAD returns AES-GCM bound to key. The key must be 128, 192 or 256 bits.
func NewAEAD(key SymmetricKey) (cipher.AEAD, error) {
	if !ValidKeySize(key.Bits()) {
		return nil, fmt.Errorf("aes-gcm key of %d bytes: %w", len(key), ErrInvalidParameter)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return gcm, nil
}

// Seal encrypts plaintext with AES-GCM under a freshly generated nonce,
// returning the nonce and the ciphertext with the tag appended.
func Seal(key SymmetricKey, plaintext, aad []byte) (nonce, ciphertext []byte, err error) {
	gcm, err := NewAEAD(key)
	if err != nil {
		return nil, nil, err
	}

	nonce, err = RandomBytes(NonceSize)
	if err != nil {
		return nil, nil, fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext = gcm.Seal(nil, nonce, plaintext, aad)
	return nonce, ciphertext, nil
}

// Open verifies and decrypts a ciphertext produced by Seal. Any tag mismatch
// is reported as ErrAuthenticationFailed without further detail.
func Open(key SymmetricKey, nonce, ciphertext, aad []byte) ([]byte, error) {
	gcm, err := NewAEAD(key)
	if err != nil {
		return nil, err
	}

	if len(nonce) != NonceSize {
		return nil, fmt.Errorf("nonce of %d bytes: %w", len(nonce), ErrMalformedEnvelope)
	}
	if len(ciphertext) < TagSize {
		return nil, fmt.Errorf("ciphertext shorter than tag: %w", ErrMalformedEnvelope)
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	return plaintext, nil
}

// ChunkNonce derives the nonce for chunk counter from a random base nonce by
// XORing the big-endian counter into its last eight bytes. Distinct counters
// give distinct nonces under the same base.
func ChunkNonce(base []byte, counter uint64) []byte {
	nonce := make([]byte, len(base))
	copy(nonce, base)
	var ctr [8]byte
	binary.BigEndian.PutUint64(ctr[:], counter)
	off := len(nonce) - len(ctr)
	for i := range ctr {
		nonce[off+i] ^= ctr[i]
	}
	return nonce
}
