package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/Hussein-Mazeh/cipherbox/envelope"
	"github.com/Hussein-Mazeh/cipherbox/krypto"
	"github.com/Hussein-Mazeh/cipherbox/store"
)

// DefaultDatabaseName is the SQLite file created next to the config file.
const DefaultDatabaseName = "cipherbox.db"

// Config describes how envelopes are produced and where records live.
type Config struct {
	KDF     KDFConfig     `toml:"kdf"`
	Cipher  CipherConfig  `toml:"cipher"`
	Files   FilesConfig   `toml:"files"`
	Storage StorageConfig `toml:"storage"`
}

// KDFConfig selects the password key derivation function and its cost.
type KDFConfig struct {
	Name        string `toml:"name"`
	Time        uint32 `toml:"time"`
	MemoryKiB   uint32 `toml:"memory_kib"`
	Parallelism uint8  `toml:"parallelism"`
	Iterations  int    `toml:"iterations"`
}

type CipherConfig struct {
	KeySizeBits int `toml:"key_size_bits"`
}

type FilesConfig struct {
	ChunkSize int `toml:"chunk_size"`
	Workers   int `toml:"workers"`
}

type StorageConfig struct {
	// Database points to the SQLite file. Relative paths resolve against
	// the directory holding the config file.
	Database string `toml:"database"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	argon := krypto.DefaultArgon2Params()
	return Config{
		KDF: KDFConfig{
			Name:        krypto.KDFArgon2id,
			Time:        argon.Time,
			MemoryKiB:   argon.MemoryKB,
			Parallelism: argon.Parallelism,
			Iterations:  krypto.DefaultPBKDF2Params().Iterations,
		},
		Cipher:  CipherConfig{KeySizeBits: 256},
		Files:   FilesConfig{ChunkSize: 64 << 10, Workers: 4},
		Storage: StorageConfig{Database: DefaultDatabaseName},
	}
}

// DefaultPath returns <user config dir>/cipherbox/config.toml.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate user config dir: %w", err)
	}
	return filepath.Join(dir, "cipherbox", "config.toml"), nil
}

// Load reads path over Default. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load config %s: %w", path, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	if !filepath.IsAbs(cfg.Storage.Database) {
		cfg.Storage.Database = filepath.Join(filepath.Dir(path), cfg.Storage.Database)
	}
	return cfg, nil
}

// Save writes cfg to path atomically with owner-only permissions.
func Save(path string, cfg Config) error {
	err := store.WriteFileAtomic(path, 0o600, func(w io.Writer) error {
		return toml.NewEncoder(w).Encode(cfg)
	})
	if err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	return nil
}

// KDFParams turns the [kdf] table into a krypto.KDF.
func (c Config) KDFParams() (krypto.KDF, error) {
	var kdf krypto.KDF
	switch c.KDF.Name {
	case krypto.KDFArgon2id:
		kdf = krypto.Argon2Params{
			Time:        c.KDF.Time,
			MemoryKB:    c.KDF.MemoryKiB,
			Parallelism: c.KDF.Parallelism,
		}
	case krypto.KDFPBKDF2:
		kdf = krypto.PBKDF2Params{Iterations: c.KDF.Iterations}
	default:
		return nil, fmt.Errorf("kdf %q: %w", c.KDF.Name, krypto.ErrInvalidParameter)
	}
	if err := kdf.Validate(); err != nil {
		return nil, err
	}
	return kdf, nil
}

// EnvelopeCipher returns the password cipher described by the config.
func (c Config) EnvelopeCipher() (envelope.Cipher, error) {
	kdf, err := c.KDFParams()
	if err != nil {
		return envelope.Cipher{}, err
	}
	return envelope.Cipher{KDF: kdf, KeySizeBits: c.Cipher.KeySizeBits}, nil
}

// Validate checks every section.
func (c Config) Validate() error {
	cipher, err := c.EnvelopeCipher()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	alg := envelope.Algorithm{KeySizeBits: cipher.KeySizeBits, ChunkSize: c.Files.ChunkSize, KDF: cipher.KDF}
	if err := alg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Files.ChunkSize == 0 {
		return fmt.Errorf("config: chunk size is required: %w", krypto.ErrInvalidParameter)
	}
	if c.Files.Workers < 1 {
		return fmt.Errorf("config: workers %d: %w", c.Files.Workers, krypto.ErrInvalidParameter)
	}
	if c.Storage.Database == "" {
		return fmt.Errorf("config: storage database is required: %w", krypto.ErrInvalidParameter)
	}
	return nil
}
