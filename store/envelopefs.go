package store

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Hussein-Mazeh/cipherbox/envelope"
)

// EnvelopeSuffix is appended to an encrypted file's name to form the default
// sidecar path for its envelope.
const EnvelopeSuffix = ".envelope.json"

// SidecarPath returns the default envelope path for an encrypted file.
func SidecarPath(blobPath string) string {
	return blobPath + EnvelopeSuffix
}

// WriteFileAtomic streams fill into a temp file next to path and renames it
// into place only when fill, flush and close all succeed. On failure nothing
// is left behind.
func WriteFileAtomic(path string, perm os.FileMode, fill func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	bw := bufio.NewWriter(tmp)
	if err := fill(bw); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}

	if err := bw.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}

	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("chmod temp file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}

// SaveEnvelope persists an envelope as JSON atomically with restrictive
// permissions.
func SaveEnvelope(path string, env *envelope.Envelope) error {
	if env == nil {
		return errors.New("envelope is nil")
	}
	data, err := env.Marshal()
	if err != nil {
		return err
	}

	return WriteFileAtomic(path, 0o600, func(w io.Writer) error {
		if _, err := w.Write(append(data, '\n')); err != nil {
			return fmt.Errorf("write envelope: %w", err)
		}
		return nil
	})
}

// LoadEnvelope reads and validates an envelope written by SaveEnvelope.
// A missing file is returned unwrapped so callers can test os.ErrNotExist.
func LoadEnvelope(path string) (*envelope.Envelope, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		return nil, fmt.Errorf("read envelope: %w", err)
	}

	env, err := envelope.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("decode envelope %s: %w", filepath.Base(path), err)
	}
	return env, nil
}
