package keys

import (
	"encoding/base64"
	"fmt"

	"github.com/cloudflare/circl/kem"
	"github.com/cloudflare/circl/kem/mlkem/mlkem768"

	"github.com/Hussein-Mazeh/cipherbox/envelope"
	"github.com/Hussein-Mazeh/cipherbox/krypto"
)

// KEMAlgorithm names the sealed payload construction.
const KEMAlgorithm = "ml-kem-768/hkdf-sha256/aes-256-gcm"

var kemScheme = mlkem768.Scheme()

// KEMKeyPair is an ML-KEM-768 key pair.
type KEMKeyPair struct {
	Public  kem.PublicKey
	Private kem.PrivateKey
}

// GenerateKEMKeyPair creates a fresh ML-KEM-768 key pair.
func GenerateKEMKeyPair() (*KEMKeyPair, error) {
	pub, priv, err := mlkem768.GenerateKeyPair(krypto.RandReader())
	if err != nil {
		return nil, fmt.Errorf("generate ml-kem key: %w", err)
	}
	return &KEMKeyPair{Public: pub, Private: priv}, nil
}

// sealKey derives the payload key from the shared secret, salted with the
// encapsulated key.
func sealKey(shared, encapsulated []byte) (krypto.SymmetricKey, error) {
	key, err := krypto.HKDFSHA256(shared, encapsulated, []byte(KEMAlgorithm), 32)
	if err != nil {
		return nil, err
	}
	return krypto.SymmetricKey(key), nil
}

// SealTo encrypts payload for pub. The result is the encapsulated key
// followed by the IV and the AES-GCM ciphertext.
func SealTo(pub kem.PublicKey, payload []byte) ([]byte, error) {
	if pub == nil {
		return nil, fmt.Errorf("nil public key: %w", krypto.ErrInvalidParameter)
	}
	seed, err := krypto.RandomBytes(kemScheme.EncapsulationSeedSize())
	if err != nil {
		return nil, fmt.Errorf("generate seed: %w", err)
	}
	encapsulated, shared, err := kemScheme.EncapsulateDeterministically(pub, seed)
	if err != nil {
		return nil, fmt.Errorf("encapsulate: %w", err)
	}
	defer krypto.Zeroize(shared)

	key, err := sealKey(shared, encapsulated)
	if err != nil {
		return nil, err
	}
	defer key.Wipe()

	iv, ct, err := krypto.Seal(key, payload, []byte(KEMAlgorithm))
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(encapsulated)+len(iv)+len(ct))
	out = append(out, encapsulated...)
	out = append(out, iv...)
	return append(out, ct...), nil
}

// Seal encrypts payload for the pair's public key.
func (kp *KEMKeyPair) Seal(payload []byte) ([]byte, error) {
	return SealTo(kp.Public, payload)
}

// Open decrypts a payload sealed for the pair's public key.
func (kp *KEMKeyPair) Open(sealed []byte) ([]byte, error) {
	if kp.Private == nil {
		return nil, fmt.Errorf("nil private key: %w", krypto.ErrInvalidParameter)
	}
	ctSize := kemScheme.CiphertextSize()
	if len(sealed) < ctSize+krypto.NonceSize+krypto.TagSize {
		return nil, fmt.Errorf("sealed payload of %d bytes: %w", len(sealed), krypto.ErrMalformedEnvelope)
	}
	encapsulated := sealed[:ctSize]
	iv := sealed[ctSize : ctSize+krypto.NonceSize]
	ct := sealed[ctSize+krypto.NonceSize:]

	shared, err := kemScheme.Decapsulate(kp.Private, encapsulated)
	if err != nil {
		return nil, fmt.Errorf("decapsulate: %w", krypto.ErrMalformedEnvelope)
	}
	defer krypto.Zeroize(shared)

	key, err := sealKey(shared, encapsulated)
	if err != nil {
		return nil, err
	}
	defer key.Wipe()

	return krypto.Open(key, iv, ct, []byte(KEMAlgorithm))
}

// ExportKEMPublicKey encodes pub as standard base64.
func ExportKEMPublicKey(pub kem.PublicKey) (string, error) {
	if pub == nil {
		return "", fmt.Errorf("nil public key: %w", krypto.ErrInvalidParameter)
	}
	b, err := pub.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("marshal public key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// ImportKEMPublicKey parses a key produced by ExportKEMPublicKey.
func ImportKEMPublicKey(s string) (kem.PublicKey, error) {
	b, err := base64.StdEncoding.Strict().DecodeString(s)
	if err != nil || len(b) != kemScheme.PublicKeySize() {
		return nil, fmt.Errorf("decode public key: %w", krypto.ErrMalformedEnvelope)
	}
	pub, err := kemScheme.UnmarshalBinaryPublicKey(b)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", krypto.ErrMalformedEnvelope)
	}
	return pub, nil
}

// ExportKEMPrivateKey wraps the pair's private key in a password envelope.
func ExportKEMPrivateKey(kp *KEMKeyPair, password []byte, c envelope.Cipher) (*envelope.Envelope, error) {
	if kp == nil || kp.Private == nil {
		return nil, fmt.Errorf("nil private key: %w", krypto.ErrInvalidParameter)
	}
	b, err := kp.Private.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal private key: %w", err)
	}
	defer krypto.Zeroize(b)

	return c.EncryptWithPassword(b, password)
}

// ImportKEMPrivateKey unwraps a key pair exported by ExportKEMPrivateKey.
func ImportKEMPrivateKey(env *envelope.Envelope, password []byte) (*KEMKeyPair, error) {
	b, err := envelope.DecryptWithPassword(env, password)
	if err != nil {
		return nil, err
	}
	defer krypto.Zeroize(b)

	if len(b) != kemScheme.PrivateKeySize() {
		return nil, fmt.Errorf("private key of %d bytes: %w", len(b), krypto.ErrMalformedEnvelope)
	}
	priv, err := kemScheme.UnmarshalBinaryPrivateKey(b)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", krypto.ErrMalformedEnvelope)
	}
	return &KEMKeyPair{Public: priv.Public(), Private: priv}, nil
}
