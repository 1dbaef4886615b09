package envelope

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Hussein-Mazeh/cipherbox/krypto"
)

const (
	// MinChunkSize and MaxChunkSize bound the plaintext chunk of a stream mode.
	MinChunkSize = 1 << 10
	MaxChunkSize = 16 << 20
)

// Algorithm is the parsed form of an envelope's algorithm tag:
//
//	aes-<bits>-gcm[-stream-<chunkSize>][/<kdf>/<cost>]
type Algorithm struct {
	KeySizeBits int
	// ChunkSize is zero for single-shot encryption.
	ChunkSize int
	// KDF is nil when the envelope was sealed under a caller-held key.
	KDF krypto.KDF
}

// PasswordBased reports whether the key is derived from a password.
func (a Algorithm) PasswordBased() bool { return a.KDF != nil }

// Streamed reports whether the ciphertext is a chunked blob.
func (a Algorithm) Streamed() bool { return a.ChunkSize > 0 }

// Mode returns the cipher-mode component of the tag.
func (a Algorithm) Mode() string {
	mode := fmt.Sprintf("aes-%d-gcm", a.KeySizeBits)
	if a.Streamed() {
		mode += fmt.Sprintf("-stream-%d", a.ChunkSize)
	}
	return mode
}

func (a Algorithm) String() string {
	if a.KDF == nil {
		return a.Mode()
	}
	return a.Mode() + "/" + a.KDF.Name() + "/" + a.KDF.Cost()
}

// Validate checks the parameters a caller asked for before encrypting.
func (a Algorithm) Validate() error {
	if !krypto.ValidKeySize(a.KeySizeBits) {
		return fmt.Errorf("key size %d bits: %w", a.KeySizeBits, krypto.ErrInvalidParameter)
	}
	if a.ChunkSize != 0 && (a.ChunkSize < MinChunkSize || a.ChunkSize > MaxChunkSize) {
		return fmt.Errorf("chunk size %d: %w", a.ChunkSize, krypto.ErrInvalidParameter)
	}
	if a.KDF != nil {
		return a.KDF.Validate()
	}
	return nil
}

// ParseAlgorithm parses an algorithm tag. Only canonical tags are accepted.
func ParseAlgorithm(tag string) (Algorithm, error) {
	var a Algorithm

	comps := strings.Split(tag, "/")
	switch len(comps) {
	case 1:
	case 3:
		kdf, err := krypto.ParseKDF(comps[1], comps[2])
		if err != nil {
			return a, err
		}
		a.KDF = kdf
	default:
		return a, fmt.Errorf("algorithm %q: %w", tag, krypto.ErrMalformedEnvelope)
	}

	parts := strings.Split(comps[0], "-")
	if len(parts) != 3 && len(parts) != 5 {
		return a, fmt.Errorf("algorithm %q: %w", tag, krypto.ErrMalformedEnvelope)
	}
	if parts[0] != "aes" || parts[2] != "gcm" {
		return a, fmt.Errorf("algorithm %q: %w", tag, krypto.ErrMalformedEnvelope)
	}
	bits, err := strconv.Atoi(parts[1])
	if err != nil || !krypto.ValidKeySize(bits) {
		return a, fmt.Errorf("algorithm %q: %w", tag, krypto.ErrMalformedEnvelope)
	}
	a.KeySizeBits = bits

	if len(parts) == 5 {
		if parts[3] != "stream" {
			return a, fmt.Errorf("algorithm %q: %w", tag, krypto.ErrMalformedEnvelope)
		}
		n, err := strconv.Atoi(parts[4])
		if err != nil || n < MinChunkSize || n > MaxChunkSize {
			return a, fmt.Errorf("algorithm %q: %w", tag, krypto.ErrMalformedEnvelope)
		}
		a.ChunkSize = n
	}

	if a.String() != tag {
		return a, fmt.Errorf("algorithm %q is not canonical: %w", tag, krypto.ErrMalformedEnvelope)
	}
	return a, nil
}
