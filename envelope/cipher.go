package envelope

import (
	"encoding/base64"
	"fmt"

	"github.com/Hussein-Mazeh/cipherbox/krypto"
)

// Cipher carries the parameters used when encrypting under a password.
// Decryption never consults a Cipher: it reads everything from the envelope.
type Cipher struct {
	KDF         krypto.KDF
	KeySizeBits int
}

// DefaultCipher returns AES-256-GCM keyed through Argon2id with the default
// cost.
func DefaultCipher() Cipher {
	return Cipher{KDF: krypto.DefaultArgon2Params(), KeySizeBits: 256}
}

func (c Cipher) withDefaults() Cipher {
	if c.KDF == nil {
		c.KDF = krypto.DefaultArgon2Params()
	}
	if c.KeySizeBits == 0 {
		c.KeySizeBits = 256
	}
	return c
}

// PasswordKey is a freshly salted key derived from a password, together
// with the algorithm it was derived for.
type PasswordKey struct {
	Key       krypto.SymmetricKey
	Salt      []byte
	Algorithm Algorithm
}

// NewPasswordKey draws a fresh salt and derives a key for the given chunk
// size (zero for single-shot). The caller must Wipe the key when done.
func (c Cipher) NewPasswordKey(password []byte, chunkSize int) (*PasswordKey, error) {
	c = c.withDefaults()
	alg := Algorithm{KeySizeBits: c.KeySizeBits, ChunkSize: chunkSize, KDF: c.KDF}
	if err := alg.Validate(); err != nil {
		return nil, err
	}

	salt, err := krypto.NewRandomSalt()
	if err != nil {
		return nil, err
	}

	key, err := krypto.Derive(password, salt, alg.KeySizeBits, alg.KDF)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return &PasswordKey{Key: key, Salt: salt, Algorithm: alg}, nil
}

// Wipe zeroes the derived key.
func (pk *PasswordKey) Wipe() {
	if pk != nil {
		pk.Key.Wipe()
	}
}

// EncryptWithPassword derives a key from password and a fresh salt and seals
// plaintext under a fresh IV.
func (c Cipher) EncryptWithPassword(plaintext, password []byte) (*Envelope, error) {
	pk, err := c.NewPasswordKey(password, 0)
	if err != nil {
		return nil, err
	}
	defer pk.Wipe()

	env, err := seal(pk.Key, pk.Algorithm, plaintext)
	if err != nil {
		return nil, err
	}
	env.Salt = base64.StdEncoding.EncodeToString(pk.Salt)
	return env, nil
}

// EncryptWithPassword encrypts with DefaultCipher.
func EncryptWithPassword(plaintext, password []byte) (*Envelope, error) {
	return DefaultCipher().EncryptWithPassword(plaintext, password)
}

// DecryptWithPassword re-derives the key from the envelope's salt and
// algorithm tag and opens the ciphertext.
func DecryptWithPassword(env *Envelope, password []byte) ([]byte, error) {
	if env == nil {
		return nil, fmt.Errorf("nil envelope: %w", krypto.ErrMalformedEnvelope)
	}
	d, err := env.decode()
	if err != nil {
		return nil, err
	}
	if !d.alg.PasswordBased() || d.alg.Streamed() {
		return nil, fmt.Errorf("not a password text envelope: %w", krypto.ErrMalformedEnvelope)
	}

	if len(password) == 0 {
		return nil, krypto.ErrAuthenticationFailed
	}
	key, err := krypto.Derive(password, d.salt, d.alg.KeySizeBits, d.alg.KDF)
	if err != nil {
		return nil, err
	}
	defer key.Wipe()

	return krypto.Open(key, d.iv, d.ciphertext, []byte(env.Algorithm))
}

// DeriveKey re-derives the key of a password-based envelope. It is used by
// chunked decryption, which opens the blob itself.
func (e Envelope) DeriveKey(password []byte) (krypto.SymmetricKey, Algorithm, error) {
	d, err := e.decode()
	if err != nil {
		return nil, Algorithm{}, err
	}
	if !d.alg.PasswordBased() {
		return nil, Algorithm{}, fmt.Errorf("envelope has no kdf: %w", krypto.ErrMalformedEnvelope)
	}
	if len(password) == 0 {
		return nil, Algorithm{}, krypto.ErrAuthenticationFailed
	}
	key, err := krypto.Derive(password, d.salt, d.alg.KeySizeBits, d.alg.KDF)
	if err != nil {
		return nil, Algorithm{}, err
	}
	return key, d.alg, nil
}

// Encrypt seals plaintext under a caller-held key with a fresh IV.
func Encrypt(plaintext []byte, key krypto.SymmetricKey) (*Envelope, error) {
	alg := Algorithm{KeySizeBits: key.Bits()}
	if err := alg.Validate(); err != nil {
		return nil, err
	}
	return seal(key, alg, plaintext)
}

// Decrypt opens a key-flow envelope.
func Decrypt(env *Envelope, key krypto.SymmetricKey) ([]byte, error) {
	if env == nil {
		return nil, fmt.Errorf("nil envelope: %w", krypto.ErrMalformedEnvelope)
	}
	if !krypto.ValidKeySize(key.Bits()) {
		return nil, fmt.Errorf("key of %d bytes: %w", len(key), krypto.ErrInvalidParameter)
	}
	d, err := env.decode()
	if err != nil {
		return nil, err
	}
	if d.alg.PasswordBased() || d.alg.Streamed() {
		return nil, fmt.Errorf("not a key text envelope: %w", krypto.ErrMalformedEnvelope)
	}
	if d.alg.KeySizeBits != key.Bits() {
		return nil, krypto.ErrAuthenticationFailed
	}
	return krypto.Open(key, d.iv, d.ciphertext, []byte(env.Algorithm))
}

func seal(key krypto.SymmetricKey, alg Algorithm, plaintext []byte) (*Envelope, error) {
	tag := alg.String()
	iv, ct, err := krypto.Seal(key, plaintext, []byte(tag))
	if err != nil {
		return nil, fmt.Errorf("seal: %w", err)
	}
	return &Envelope{
		Ciphertext: base64.StdEncoding.EncodeToString(ct),
		IV:         base64.StdEncoding.EncodeToString(iv),
		Algorithm:  tag,
	}, nil
}

// StreamEnvelope builds the envelope for a chunked blob sealed with pk and
// base IV iv.
func StreamEnvelope(pk *PasswordKey, iv []byte) *Envelope {
	return &Envelope{
		IV:        base64.StdEncoding.EncodeToString(iv),
		Salt:      base64.StdEncoding.EncodeToString(pk.Salt),
		Algorithm: pk.Algorithm.String(),
	}
}
