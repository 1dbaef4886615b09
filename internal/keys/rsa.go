// Package keys manages asymmetric key pairs: RSA-OAEP for wrapping small
// payloads such as symmetric keys, and ML-KEM-768 for sealing payloads of
// any size. Private keys leave the process only inside password envelopes.
package keys

import (
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"strings"

	"golang.org/x/crypto/ssh"

	"github.com/Hussein-Mazeh/cipherbox/envelope"
	"github.com/Hussein-Mazeh/cipherbox/krypto"
)

// DefaultKeyBits is the RSA modulus size used when none is requested.
const DefaultKeyBits = 3072

const (
	pemPublicKey    = "PUBLIC KEY"
	pemRSAPublicKey = "RSA PUBLIC KEY"
)

// KeyPair is an RSA key pair.
type KeyPair struct {
	Public  *rsa.PublicKey
	Private *rsa.PrivateKey
}

// SupportedKeySize reports whether bits is an RSA modulus size we generate.
func SupportedKeySize(bits int) bool {
	switch bits {
	case 2048, 3072, 4096:
		return true
	}
	return false
}

// GenerateKeyPair creates an RSA key pair with a modulus of bits bits.
func GenerateKeyPair(bits int) (*KeyPair, error) {
	if !SupportedKeySize(bits) {
		return nil, fmt.Errorf("rsa key size %d: %w", bits, krypto.ErrInvalidParameter)
	}
	priv, err := rsa.GenerateKey(krypto.RandReader(), bits)
	if err != nil {
		return nil, fmt.Errorf("generate rsa key: %w", err)
	}
	return &KeyPair{Public: &priv.PublicKey, Private: priv}, nil
}

// ExportPublicKey encodes pub as a PEM "PUBLIC KEY" block (PKIX).
func ExportPublicKey(pub *rsa.PublicKey) (string, error) {
	if pub == nil {
		return "", fmt.Errorf("nil public key: %w", krypto.ErrInvalidParameter)
	}
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("marshal public key: %w", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: pemPublicKey, Bytes: der})), nil
}

// ExportPublicKeySSH encodes pub as an authorized_keys line.
func ExportPublicKeySSH(pub *rsa.PublicKey) (string, error) {
	if pub == nil {
		return "", fmt.Errorf("nil public key: %w", krypto.ErrInvalidParameter)
	}
	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("convert public key: %w", err)
	}
	return strings.TrimSpace(string(ssh.MarshalAuthorizedKey(sshPub))), nil
}

// ImportPublicKey parses a PEM PKIX or PKCS#1 public key, or an ssh-rsa
// authorized_keys line. Well-formed keys of another type are rejected with
// ErrInvalidParameter.
func ImportPublicKey(s string) (*rsa.PublicKey, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "-----BEGIN") {
		return importSSHPublicKey(s)
	}

	block, _ := pem.Decode([]byte(s))
	if block == nil {
		return nil, fmt.Errorf("decode pem: %w", krypto.ErrMalformedEnvelope)
	}

	switch block.Type {
	case pemPublicKey:
		pub, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse public key: %w", krypto.ErrMalformedEnvelope)
		}
		rsaPub, ok := pub.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("%T is not an rsa public key: %w", pub, krypto.ErrInvalidParameter)
		}
		return rsaPub, nil
	case pemRSAPublicKey:
		pub, err := x509.ParsePKCS1PublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse public key: %w", krypto.ErrMalformedEnvelope)
		}
		return pub, nil
	default:
		return nil, fmt.Errorf("pem block %q: %w", block.Type, krypto.ErrMalformedEnvelope)
	}
}

func importSSHPublicKey(s string) (*rsa.PublicKey, error) {
	pub, _, _, _, err := ssh.ParseAuthorizedKey([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", krypto.ErrMalformedEnvelope)
	}
	if pub.Type() != ssh.KeyAlgoRSA {
		return nil, fmt.Errorf("%s is not an rsa public key: %w", pub.Type(), krypto.ErrInvalidParameter)
	}
	cpk, ok := pub.(ssh.CryptoPublicKey)
	if !ok {
		return nil, fmt.Errorf("parse public key: %w", krypto.ErrMalformedEnvelope)
	}
	rsaPub, ok := cpk.CryptoPublicKey().(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("parse public key: %w", krypto.ErrMalformedEnvelope)
	}
	return rsaPub, nil
}

// ExportPrivateKey wraps priv as PKCS#8 inside a password envelope.
func ExportPrivateKey(priv *rsa.PrivateKey, password []byte, c envelope.Cipher) (*envelope.Envelope, error) {
	if priv == nil {
		return nil, fmt.Errorf("nil private key: %w", krypto.ErrInvalidParameter)
	}
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("marshal private key: %w", err)
	}
	defer krypto.Zeroize(der)

	return c.EncryptWithPassword(der, password)
}

// ImportPrivateKey unwraps a key exported by ExportPrivateKey. A wrong
// password yields ErrAuthenticationFailed.
func ImportPrivateKey(env *envelope.Envelope, password []byte) (*rsa.PrivateKey, error) {
	der, err := envelope.DecryptWithPassword(env, password)
	if err != nil {
		return nil, err
	}
	defer krypto.Zeroize(der)

	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", krypto.ErrMalformedEnvelope)
	}
	priv, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%T is not an rsa private key: %w", key, krypto.ErrInvalidParameter)
	}
	return priv, nil
}

// MaxPayload is the largest payload Encrypt accepts for pub.
func MaxPayload(pub *rsa.PublicKey) int {
	return pub.Size() - 2*sha256.Size - 2
}

// Encrypt wraps payload for pub with RSA-OAEP over SHA-256.
func Encrypt(payload []byte, pub *rsa.PublicKey) ([]byte, error) {
	if pub == nil {
		return nil, fmt.Errorf("nil public key: %w", krypto.ErrInvalidParameter)
	}
	if limit := MaxPayload(pub); len(payload) > limit {
		return nil, fmt.Errorf("%d bytes exceeds %d: %w", len(payload), limit, krypto.ErrPayloadTooLarge)
	}
	ct, err := rsa.EncryptOAEP(sha256.New(), krypto.RandReader(), pub, payload, nil)
	if err != nil {
		return nil, fmt.Errorf("rsa encrypt: %w", err)
	}
	return ct, nil
}

// Decrypt unwraps a ciphertext produced by Encrypt. Any mismatch between
// ciphertext and key is reported as ErrAuthenticationFailed.
func Decrypt(ciphertext []byte, priv *rsa.PrivateKey) ([]byte, error) {
	if priv == nil {
		return nil, fmt.Errorf("nil private key: %w", krypto.ErrInvalidParameter)
	}
	pt, err := rsa.DecryptOAEP(sha256.New(), nil, priv, ciphertext, nil)
	if err != nil {
		return nil, krypto.ErrAuthenticationFailed
	}
	return pt, nil
}
