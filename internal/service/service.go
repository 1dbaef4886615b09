package service

import (
	"context"
	"crypto/rsa"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Hussein-Mazeh/cipherbox/auth"
	"github.com/Hussein-Mazeh/cipherbox/envelope"
	"github.com/Hussein-Mazeh/cipherbox/internal/config"
	"github.com/Hussein-Mazeh/cipherbox/internal/db"
	"github.com/Hussein-Mazeh/cipherbox/internal/filecrypt"
	"github.com/Hussein-Mazeh/cipherbox/internal/keys"
	"github.com/Hussein-Mazeh/cipherbox/internal/logging"
	"github.com/Hussein-Mazeh/cipherbox/krypto"
)

// Record types written by the service.
const (
	TypeText          = "text"
	TypeFile          = "file"
	TypeRSAPrivateKey = "rsa-private-key"
	TypeKEMPrivateKey = "kem-private-key"
)

// Metadata keys written by the service.
const (
	MetaPublicKey = "public_key"
	MetaSSHKey    = "ssh_public_key"
	MetaKeyBits   = "bits"
	MetaBlobPath  = "blob"
)

// weakScore is the zxcvbn score below which key export passwords draw a
// warning.
const weakScore = 3

// Service exposes high-level envelope operations for the CLI.
type Service struct {
	db     *db.DB
	cfg    config.Config
	cipher envelope.Cipher
	files  *filecrypt.Processor
	log    logging.Logger
}

// New validates cfg and opens the record database it points to.
func New(ctx context.Context, cfg config.Config, log logging.Logger) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cipher, err := cfg.EnvelopeCipher()
	if err != nil {
		return nil, err
	}

	store, err := db.Open(ctx, cfg.Storage.Database)
	if err != nil {
		return nil, fmt.Errorf("open records (%s): %w", cfg.Storage.Database, err)
	}
	log.Debugf("opened records database %s", store.Path())

	return &Service{
		db:     store,
		cfg:    cfg,
		cipher: cipher,
		files: &filecrypt.Processor{
			ChunkSize: cfg.Files.ChunkSize,
			Workers:   cfg.Files.Workers,
			Cipher:    cipher,
			Logger:    log,
		},
		log: log,
	}, nil
}

// Close releases the database.
func (s *Service) Close() error {
	return s.db.Close()
}

// EncryptText seals plaintext under password.
func (s *Service) EncryptText(plaintext, password []byte) (*envelope.Envelope, error) {
	env, err := s.cipher.EncryptWithPassword(plaintext, password)
	if err != nil {
		return nil, err
	}
	s.log.Debugf("sealed %d bytes with %s", len(plaintext), env.Algorithm)
	return env, nil
}

// DecryptText opens a text envelope. Failures are returned as is and never
// retried.
func (s *Service) DecryptText(env *envelope.Envelope, password []byte) ([]byte, error) {
	return envelope.DecryptWithPassword(env, password)
}

// Store saves env as a record and returns its ID.
func (s *Service) Store(ctx context.Context, name, typ string, env *envelope.Envelope, metadata map[string]string) (string, error) {
	if env == nil {
		return "", fmt.Errorf("nil envelope: %w", krypto.ErrInvalidParameter)
	}
	id, err := s.db.Insert(ctx, db.Record{Name: name, Type: typ, Data: *env, Metadata: metadata})
	if err != nil {
		return "", err
	}
	s.log.Infof("stored %s record %q as %s", typ, name, id)
	return id, nil
}

// Envelope returns the envelope stored under id.
func (s *Service) Envelope(ctx context.Context, id string) (*envelope.Envelope, error) {
	rec, err := s.db.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &rec.Data, nil
}

// Record returns the record stored under id.
func (s *Service) Record(ctx context.Context, id string) (*db.Record, error) {
	return s.db.Get(ctx, id)
}

// Records lists records of the given type, or all records when typ is empty.
func (s *Service) Records(ctx context.Context, typ string) ([]db.Record, error) {
	return s.db.ListByType(ctx, typ)
}

// DeleteRecord removes the record stored under id.
func (s *Service) DeleteRecord(ctx context.Context, id string) error {
	if err := s.db.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Infof("deleted record %s", id)
	return nil
}

// Rekey re-encrypts a stored text or private key envelope under a new
// password using the current cipher settings. File envelopes cannot be
// rekeyed without their blob.
func (s *Service) Rekey(ctx context.Context, id string, oldPassword, newPassword []byte) error {
	rec, err := s.db.Get(ctx, id)
	if err != nil {
		return err
	}
	alg, err := rec.Data.ParsedAlgorithm()
	if err != nil {
		return err
	}
	if alg.Streamed() {
		return fmt.Errorf("record %s holds a file envelope: %w", id, krypto.ErrInvalidParameter)
	}

	plain, err := envelope.DecryptWithPassword(&rec.Data, oldPassword)
	if err != nil {
		return err
	}
	defer krypto.Zeroize(plain)

	s.warnIfWeak(newPassword)
	env, err := s.cipher.EncryptWithPassword(plain, newPassword)
	if err != nil {
		return err
	}
	if err := s.db.UpdateData(ctx, id, *env); err != nil {
		return err
	}
	s.log.Infof("rekeyed record %s with %s", id, env.Algorithm)
	return nil
}

// EncryptFile encrypts the file at path into dstDir.
func (s *Service) EncryptFile(ctx context.Context, path, dstDir string, password []byte, progress filecrypt.ProgressFunc) (string, *envelope.Envelope, error) {
	return s.files.EncryptFile(ctx, path, dstDir, password, progress)
}

// DecryptFile decrypts the blob at path into dstDir.
func (s *Service) DecryptFile(ctx context.Context, path, dstDir string, env *envelope.Envelope, password []byte, progress filecrypt.ProgressFunc) (string, error) {
	return s.files.DecryptFile(ctx, path, dstDir, env, password, progress)
}

// KeyInfo describes a stored key pair.
type KeyInfo struct {
	ID        string
	Name      string
	PublicKey string
}

func (s *Service) warnIfWeak(password []byte) {
	if st := auth.EstimateStrength(string(password)); st.Score < weakScore {
		s.log.Warnf("password is %s (crack time %s)", st.Label(), st.CrackTime)
	}
}

// GenerateKeyPair creates an RSA key pair and stores the private key,
// wrapped under password, with the public key in its metadata.
func (s *Service) GenerateKeyPair(ctx context.Context, name string, bits int, password []byte) (*KeyInfo, error) {
	if bits == 0 {
		bits = keys.DefaultKeyBits
	}
	s.warnIfWeak(password)

	s.log.Debugf("generating %d-bit rsa key", bits)
	kp, err := keys.GenerateKeyPair(bits)
	if err != nil {
		return nil, err
	}
	pubPEM, err := keys.ExportPublicKey(kp.Public)
	if err != nil {
		return nil, err
	}
	pubSSH, err := keys.ExportPublicKeySSH(kp.Public)
	if err != nil {
		return nil, err
	}
	env, err := keys.ExportPrivateKey(kp.Private, password, s.cipher)
	if err != nil {
		return nil, err
	}

	id, err := s.Store(ctx, name, TypeRSAPrivateKey, env, map[string]string{
		MetaPublicKey: pubPEM,
		MetaSSHKey:    pubSSH,
		MetaKeyBits:   strconv.Itoa(bits),
	})
	if err != nil {
		return nil, err
	}
	return &KeyInfo{ID: id, Name: name, PublicKey: pubPEM}, nil
}

// GenerateKEMKeyPair creates an ML-KEM-768 key pair and stores it like
// GenerateKeyPair.
func (s *Service) GenerateKEMKeyPair(ctx context.Context, name string, password []byte) (*KeyInfo, error) {
	s.warnIfWeak(password)

	kp, err := keys.GenerateKEMKeyPair()
	if err != nil {
		return nil, err
	}
	pub, err := keys.ExportKEMPublicKey(kp.Public)
	if err != nil {
		return nil, err
	}
	env, err := keys.ExportKEMPrivateKey(kp, password, s.cipher)
	if err != nil {
		return nil, err
	}

	id, err := s.Store(ctx, name, TypeKEMPrivateKey, env, map[string]string{MetaPublicKey: pub})
	if err != nil {
		return nil, err
	}
	return &KeyInfo{ID: id, Name: name, PublicKey: pub}, nil
}

func (s *Service) keyRecord(ctx context.Context, id, typ string) (*db.Record, error) {
	rec, err := s.db.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Type != typ {
		return nil, fmt.Errorf("record %s is a %s, not a %s: %w", id, rec.Type, typ, krypto.ErrInvalidParameter)
	}
	return rec, nil
}

// PublicKey returns the stored public key of a key pair record, as PEM or
// as an authorized_keys line when ssh is set.
func (s *Service) PublicKey(ctx context.Context, id string, ssh bool) (string, error) {
	rec, err := s.db.Get(ctx, id)
	if err != nil {
		return "", err
	}
	switch rec.Type {
	case TypeRSAPrivateKey:
		if ssh {
			return rec.Metadata[MetaSSHKey], nil
		}
		return rec.Metadata[MetaPublicKey], nil
	case TypeKEMPrivateKey:
		if ssh {
			return "", fmt.Errorf("ml-kem keys have no ssh form: %w", krypto.ErrInvalidParameter)
		}
		return rec.Metadata[MetaPublicKey], nil
	default:
		return "", fmt.Errorf("record %s is not a key pair: %w", id, krypto.ErrInvalidParameter)
	}
}

// WrapForRSA encrypts a small payload for an exported RSA public key.
func (s *Service) WrapForRSA(payload []byte, publicKey string) ([]byte, error) {
	pub, err := keys.ImportPublicKey(publicKey)
	if err != nil {
		return nil, err
	}
	return keys.Encrypt(payload, pub)
}

// UnwrapWithRSA decrypts a payload with the private key stored under id.
func (s *Service) UnwrapWithRSA(ctx context.Context, id string, password, ciphertext []byte) ([]byte, error) {
	priv, err := s.rsaPrivateKey(ctx, id, password)
	if err != nil {
		return nil, err
	}
	return keys.Decrypt(ciphertext, priv)
}

func (s *Service) rsaPrivateKey(ctx context.Context, id string, password []byte) (*rsa.PrivateKey, error) {
	rec, err := s.keyRecord(ctx, id, TypeRSAPrivateKey)
	if err != nil {
		return nil, err
	}
	return keys.ImportPrivateKey(&rec.Data, password)
}

// SealForKEM encrypts a payload of any size for an exported ML-KEM public key.
func (s *Service) SealForKEM(payload []byte, publicKey string) ([]byte, error) {
	pub, err := keys.ImportKEMPublicKey(strings.TrimSpace(publicKey))
	if err != nil {
		return nil, err
	}
	return keys.SealTo(pub, payload)
}

// OpenWithKEM decrypts a sealed payload with the key pair stored under id.
func (s *Service) OpenWithKEM(ctx context.Context, id string, password, sealed []byte) ([]byte, error) {
	rec, err := s.keyRecord(ctx, id, TypeKEMPrivateKey)
	if err != nil {
		return nil, err
	}
	kp, err := keys.ImportKEMPrivateKey(&rec.Data, password)
	if err != nil {
		return nil, err
	}
	return kp.Open(sealed)
}

// Wrap encrypts payload for publicKey, choosing RSA-OAEP for PEM and ssh
// keys and ML-KEM otherwise. The result is base64 encoded.
func (s *Service) Wrap(payload []byte, publicKey string) (string, error) {
	var (
		out []byte
		err error
	)
	if isRSAKeyText(publicKey) {
		out, err = s.WrapForRSA(payload, publicKey)
	} else {
		out, err = s.SealForKEM(payload, publicKey)
	}
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(out), nil
}

// Unwrap reverses Wrap with the key pair stored under id.
func (s *Service) Unwrap(ctx context.Context, id string, password []byte, wrapped string) ([]byte, error) {
	ct, err := base64.StdEncoding.Strict().DecodeString(strings.TrimSpace(wrapped))
	if err != nil {
		return nil, fmt.Errorf("decode payload: %w", krypto.ErrMalformedEnvelope)
	}

	rec, err := s.db.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch rec.Type {
	case TypeRSAPrivateKey:
		return s.UnwrapWithRSA(ctx, id, password, ct)
	case TypeKEMPrivateKey:
		return s.OpenWithKEM(ctx, id, password, ct)
	default:
		return nil, fmt.Errorf("record %s is not a key pair: %w", id, krypto.ErrInvalidParameter)
	}
}

func isRSAKeyText(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "-----BEGIN") || strings.HasPrefix(s, "ssh-")
}

// CheckPassword applies the password policy and estimates strength. The
// strength is returned even when the policy rejects the password.
func CheckPassword(pw string, userInputs ...string) (auth.Strength, error) {
	st := auth.EstimateStrength(pw, userInputs...)
	return st, auth.ValidateMasterPassword(pw)
}

// IsNotFound reports whether err means a record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
