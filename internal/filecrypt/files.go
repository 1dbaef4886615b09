package filecrypt

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Hussein-Mazeh/cipherbox/envelope"
	"github.com/Hussein-Mazeh/cipherbox/krypto"
	"github.com/Hussein-Mazeh/cipherbox/store"
)

// Suffix marks encrypted blobs.
const Suffix = ".cbx"

// EncryptedName appends Suffix to name.
func EncryptedName(name string) string {
	return name + Suffix
}

// DecryptedName strips Suffix from name if present.
func DecryptedName(name string) string {
	return strings.TrimSuffix(name, Suffix)
}

// outputPath places the renamed base of path in dstDir, or next to path when
// dstDir is empty. It refuses to target path itself.
func outputPath(path, dstDir string, rename func(string) string) (string, error) {
	dir := dstDir
	if dir == "" {
		dir = filepath.Dir(path)
	}
	out := filepath.Join(dir, rename(filepath.Base(path)))

	inAbs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve input path: %w", err)
	}
	outAbs, err := filepath.Abs(out)
	if err != nil {
		return "", fmt.Errorf("resolve output path: %w", err)
	}
	if inAbs == outAbs {
		return "", fmt.Errorf("output %s would overwrite input: %w", out, krypto.ErrInvalidParameter)
	}
	return out, nil
}

func openInput(path string) (*os.File, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open input: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("stat input: %w", err)
	}
	if info.IsDir() {
		f.Close()
		return nil, 0, fmt.Errorf("%s is a directory: %w", path, krypto.ErrInvalidParameter)
	}
	return f, info.Size(), nil
}

// holdFinal forwards progress below 1. The final 1 is reported by the caller
// once the output is in place.
func holdFinal(progress ProgressFunc) ProgressFunc {
	if progress == nil {
		return nil
	}
	return func(f float64) {
		if f < 1 {
			progress(f)
		}
	}
}

// EncryptFile encrypts the file at path into dstDir under EncryptedName and
// returns the output path with the envelope needed to decrypt it.
func (p *Processor) EncryptFile(ctx context.Context, path, dstDir string, password []byte, progress ProgressFunc) (string, *envelope.Envelope, error) {
	out, err := outputPath(path, dstDir, EncryptedName)
	if err != nil {
		return "", nil, err
	}

	in, size, err := openInput(path)
	if err != nil {
		return "", nil, err
	}
	defer in.Close()

	var env *envelope.Envelope
	err = store.WriteFileAtomic(out, 0o600, func(w io.Writer) error {
		var err error
		env, err = p.Encrypt(ctx, in, size, w, password, holdFinal(progress))
		return err
	})
	if err != nil {
		return "", nil, err
	}

	p.Logger.Infof("encrypted %s -> %s", path, out)
	if progress != nil {
		progress(1)
	}
	return out, env, nil
}

// DecryptFile decrypts the blob at path into dstDir under DecryptedName.
func (p *Processor) DecryptFile(ctx context.Context, path, dstDir string, env *envelope.Envelope, password []byte, progress ProgressFunc) (string, error) {
	out, err := outputPath(path, dstDir, DecryptedName)
	if err != nil {
		return "", err
	}

	in, size, err := openInput(path)
	if err != nil {
		return "", err
	}
	defer in.Close()

	err = store.WriteFileAtomic(out, 0o600, func(w io.Writer) error {
		return p.Decrypt(ctx, in, size, w, env, password, holdFinal(progress))
	})
	if err != nil {
		return "", err
	}

	p.Logger.Infof("decrypted %s -> %s", path, out)
	if progress != nil {
		progress(1)
	}
	return out, nil
}

// EncryptBytes encrypts data into an in-memory blob.
func (p *Processor) EncryptBytes(ctx context.Context, data, password []byte, progress ProgressFunc) ([]byte, *envelope.Envelope, error) {
	var buf bytes.Buffer
	env, err := p.Encrypt(ctx, bytes.NewReader(data), int64(len(data)), &buf, password, progress)
	if err != nil {
		return nil, nil, err
	}
	return buf.Bytes(), env, nil
}

// DecryptBytes decrypts an in-memory blob produced by EncryptBytes.
func (p *Processor) DecryptBytes(ctx context.Context, blob []byte, env *envelope.Envelope, password []byte, progress ProgressFunc) ([]byte, error) {
	var buf bytes.Buffer
	if err := p.Decrypt(ctx, bytes.NewReader(blob), int64(len(blob)), &buf, env, password, progress); err != nil {
		krypto.Zeroize(buf.Bytes())
		return nil, err
	}
	return buf.Bytes(), nil
}
