package krypto

import (
	"crypto/sha256"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// MinSaltBits is the smallest salt accepted by Derive.
	MinSaltBits = 128
	// SaltLengthBytes is the salt length generated for every password flow.
	SaltLengthBytes = MinSaltBits / 8

	// KDF names as they appear in algorithm tags.
	KDFArgon2id = "argon2id"
	KDFPBKDF2   = "pbkdf2-sha256"

	// Upper bounds accepted when parsing costs from untrusted envelopes.
	maxArgonTime        = 64
	maxArgonMemoryKB    = 1 << 20 // 1 GiB
	maxArgonThreads     = 64
	maxPBKDF2Iterations = 10_000_000
)

// SymmetricKey is raw AES key material produced by Derive or NewSymmetricKey.
type SymmetricKey []byte

// Bits returns the key size in bits.
func (k SymmetricKey) Bits() int { return len(k) * 8 }

// Wipe zeroes the key in place.
func (k SymmetricKey) Wipe() { Zeroize(k) }

// ValidKeySize reports whether bits is one of the supported AES sizes.
func ValidKeySize(bits int) bool {
	switch bits {
	case 128, 192, 256:
		return true
	}
	return false
}

// NewSymmetricKey returns a random key of the given size.
func NewSymmetricKey(bits int) (SymmetricKey, error) {
	if !ValidKeySize(bits) {
		return nil, fmt.Errorf("key size %d bits: %w", bits, ErrInvalidParameter)
	}
	b, err := RandomBytes(bits / 8)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return SymmetricKey(b), nil
}

// KDF is a password-based key derivation function with fixed cost parameters.
type KDF interface {
	// Name is the algorithm tag component, e.g. "argon2id".
	Name() string
	// Cost encodes the cost parameters for the algorithm tag.
	Cost() string
	// Validate checks the cost parameters.
	Validate() error

	derive(password, salt []byte, keyLen uint32) []byte
}

// Argon2Params captures tunable parameters for Argon2id.
type Argon2Params struct {
	Time        uint32
	MemoryKB    uint32
	Parallelism uint8
}

// DefaultArgon2Params returns sane defaults: 3 passes over 64 MiB.
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		Time:        3,
		MemoryKB:    64 * 1024,
		Parallelism: 1,
	}
}

func (p Argon2Params) Name() string { return KDFArgon2id }

func (p Argon2Params) Cost() string {
	return fmt.Sprintf("t%d-m%d-p%d", p.Time, p.MemoryKB, p.Parallelism)
}

func (p Argon2Params) Validate() error {
	if p.Time == 0 || p.Time > maxArgonTime {
		return fmt.Errorf("argon2 time %d: %w", p.Time, ErrInvalidParameter)
	}
	if p.MemoryKB < 8*uint32(p.Parallelism) || p.MemoryKB > maxArgonMemoryKB {
		return fmt.Errorf("argon2 memory %d KiB: %w", p.MemoryKB, ErrInvalidParameter)
	}
	if p.Parallelism == 0 || p.Parallelism > maxArgonThreads {
		return fmt.Errorf("argon2 parallelism %d: %w", p.Parallelism, ErrInvalidParameter)
	}
	return nil
}

func (p Argon2Params) derive(password, salt []byte, keyLen uint32) []byte {
	return argon2.IDKey(password, salt, p.Time, p.MemoryKB, p.Parallelism, keyLen)
}

// PBKDF2Params configures PBKDF2 with HMAC-SHA-256.
type PBKDF2Params struct {
	Iterations int
}

// DefaultPBKDF2Params follows the current OWASP recommendation for SHA-256.
func DefaultPBKDF2Params() PBKDF2Params {
	return PBKDF2Params{Iterations: 600_000}
}

func (p PBKDF2Params) Name() string { return KDFPBKDF2 }

func (p PBKDF2Params) Cost() string { return strconv.Itoa(p.Iterations) }

func (p PBKDF2Params) Validate() error {
	if p.Iterations <= 0 || p.Iterations > maxPBKDF2Iterations {
		return fmt.Errorf("pbkdf2 iterations %d: %w", p.Iterations, ErrInvalidParameter)
	}
	return nil
}

func (p PBKDF2Params) derive(password, salt []byte, keyLen uint32) []byte {
	return pbkdf2.Key(password, salt, p.Iterations, int(keyLen), sha256.New)
}

// ParseKDF rebuilds a KDF from the name and cost components of an algorithm
// tag. Unknown names and out-of-range costs are reported as
// ErrMalformedEnvelope since they come from stored data.
func ParseKDF(name, cost string) (KDF, error) {
	var kdf KDF
	switch name {
	case KDFArgon2id:
		var p Argon2Params
		var par uint32
		parts := strings.Split(cost, "-")
		if len(parts) != 3 {
			return nil, fmt.Errorf("argon2 cost %q: %w", cost, ErrMalformedEnvelope)
		}
		prefixes := [...]string{"t", "m", "p"}
		for i, dst := range []*uint32{&p.Time, &p.MemoryKB, &par} {
			if !strings.HasPrefix(parts[i], prefixes[i]) {
				return nil, fmt.Errorf("argon2 cost %q: %w", cost, ErrMalformedEnvelope)
			}
			v, err := strconv.ParseUint(parts[i][1:], 10, 32)
			if err != nil {
				return nil, fmt.Errorf("argon2 cost %q: %w", cost, ErrMalformedEnvelope)
			}
			*dst = uint32(v)
		}
		if par > maxArgonThreads {
			return nil, fmt.Errorf("argon2 cost %q: %w", cost, ErrMalformedEnvelope)
		}
		p.Parallelism = uint8(par)
		kdf = p
	case KDFPBKDF2:
		n, err := strconv.Atoi(cost)
		if err != nil {
			return nil, fmt.Errorf("pbkdf2 cost %q: %w", cost, ErrMalformedEnvelope)
		}
		kdf = PBKDF2Params{Iterations: n}
	default:
		return nil, fmt.Errorf("kdf %q: %w", name, ErrMalformedEnvelope)
	}
	if err := kdf.Validate(); err != nil {
		return nil, fmt.Errorf("kdf %s/%s: %w", name, cost, ErrMalformedEnvelope)
	}
	return kdf, nil
}

// Derive stretches password and salt into a key of keySizeBits bits. The
// result is deterministic for equal inputs.
func Derive(password, salt []byte, keySizeBits int, kdf KDF) (SymmetricKey, error) {
	if !ValidKeySize(keySizeBits) {
		return nil, fmt.Errorf("key size %d bits: %w", keySizeBits, ErrInvalidParameter)
	}
	if len(password) == 0 {
		return nil, fmt.Errorf("password is required: %w", ErrInvalidParameter)
	}
	if len(salt) < SaltLengthBytes {
		return nil, fmt.Errorf("salt must be at least %d bits: %w", MinSaltBits, ErrInvalidParameter)
	}
	if kdf == nil {
		return nil, fmt.Errorf("kdf is required: %w", ErrInvalidParameter)
	}
	if err := kdf.Validate(); err != nil {
		return nil, err
	}

	keyLen := uint32(keySizeBits / 8)
	key := kdf.derive(password, salt, keyLen)
	if uint32(len(key)) != keyLen {
		return nil, fmt.Errorf("derived key has unexpected length %d", len(key))
	}
	return SymmetricKey(key), nil
}

// NewRandomSalt returns a random salt of SaltLengthBytes bytes.
func NewRandomSalt() ([]byte, error) {
	salt, err := RandomBytes(SaltLengthBytes)
	if err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return salt, nil
}
