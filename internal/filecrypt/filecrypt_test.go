package filecrypt_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hussein-Mazeh/cipherbox/envelope"
	"github.com/Hussein-Mazeh/cipherbox/internal/filecrypt"
	"github.com/Hussein-Mazeh/cipherbox/krypto"
)

const chunk = 1024

var password = []byte("correct-horse")

func newProcessor(workers int) *filecrypt.Processor {
	p := filecrypt.New(envelope.Cipher{
		KDF:         krypto.Argon2Params{Time: 1, MemoryKB: 64, Parallelism: 1},
		KeySizeBits: 256,
	})
	p.ChunkSize = chunk
	p.Workers = workers
	return p
}

func randomData(t *testing.T, n int) []byte {
	t.Helper()
	if n == 0 {
		return []byte{}
	}
	b, err := krypto.RandomBytes(n)
	require.NoError(t, err)
	return b
}

type recorder struct{ values []float64 }

func (r *recorder) record(f float64) { r.values = append(r.values, f) }

func (r *recorder) assertComplete(t *testing.T) {
	t.Helper()
	require.NotEmpty(t, r.values)
	ones := 0
	for i, v := range r.values {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
		if i > 0 {
			assert.GreaterOrEqual(t, v, r.values[i-1], "progress went backwards at %d", i)
		}
		if v == 1 {
			ones++
		}
	}
	assert.Equal(t, 1, ones)
	assert.Equal(t, 1.0, r.values[len(r.values)-1])
}

func TestBytesRoundTrip(t *testing.T) {
	sizes := []int{0, 1, chunk - 1, chunk, chunk + 1, 2 * chunk, 5000}
	for _, workers := range []int{1, 4} {
		for _, n := range sizes {
			p := newProcessor(workers)
			data := randomData(t, n)

			var encProgress, decProgress recorder
			blob, env, err := p.EncryptBytes(context.Background(), data, password, encProgress.record)
			require.NoError(t, err)

			chunks := n/chunk + 1
			if n > 0 && n%chunk == 0 {
				chunks = n / chunk
			}
			assert.Len(t, blob, n+chunks*krypto.TagSize, "size %d", n)
			assert.Equal(t, "aes-256-gcm-stream-1024/argon2id/t1-m64-p1", env.Algorithm)
			assert.Empty(t, env.Ciphertext)
			encProgress.assertComplete(t)

			got, err := p.DecryptBytes(context.Background(), blob, env, password, decProgress.record)
			require.NoError(t, err)
			assert.True(t, bytes.Equal(data, got), "size %d workers %d", n, workers)
			decProgress.assertComplete(t)
		}
	}
}

func TestDecryptUsesEnvelopeChunkSize(t *testing.T) {
	data := randomData(t, 3*chunk+7)
	blob, env, err := newProcessor(1).EncryptBytes(context.Background(), data, password, nil)
	require.NoError(t, err)

	other := newProcessor(2)
	other.ChunkSize = 4 * chunk
	got, err := other.DecryptBytes(context.Background(), blob, env, password, nil)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestWrongPassword(t *testing.T) {
	p := newProcessor(1)
	blob, env, err := p.EncryptBytes(context.Background(), []byte("secret"), password, nil)
	require.NoError(t, err)

	for _, pw := range []string{"wrong", ""} {
		var progress recorder
		got, err := p.DecryptBytes(context.Background(), blob, env, []byte(pw), progress.record)
		assert.ErrorIs(t, err, krypto.ErrAuthenticationFailed, "password %q", pw)
		assert.Nil(t, got)
		assert.NotContains(t, progress.values, 1.0)
	}
}

func TestBlobTampering(t *testing.T) {
	p := newProcessor(2)
	data := randomData(t, 5000)
	blob, env, err := p.EncryptBytes(context.Background(), data, password, nil)
	require.NoError(t, err)

	sealed := chunk + krypto.TagSize
	cases := map[string]func([]byte) []byte{
		"flip bit": func(b []byte) []byte {
			b[sealed+3] ^= 0x01
			return b
		},
		"drop last chunk": func(b []byte) []byte {
			return b[:4*sealed]
		},
		"truncate mid chunk": func(b []byte) []byte {
			return b[:len(b)-10]
		},
		"swap chunks": func(b []byte) []byte {
			out := append([]byte{}, b[sealed:2*sealed]...)
			out = append(out, b[:sealed]...)
			return append(out, b[2*sealed:]...)
		},
		"append chunk": func(b []byte) []byte {
			return append(b, b[:sealed]...)
		},
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			tampered := mutate(append([]byte{}, blob...))
			_, err := p.DecryptBytes(context.Background(), tampered, env, password, nil)
			assert.ErrorIs(t, err, krypto.ErrAuthenticationFailed)
		})
	}
}

func TestTagTamperingFailsAuthentication(t *testing.T) {
	p := newProcessor(1)
	blob, env, err := p.EncryptBytes(context.Background(), randomData(t, 100), password, nil)
	require.NoError(t, err)

	// Same key parameters, different chunk size.
	edited := *env
	edited.Algorithm = "aes-256-gcm-stream-2048/argon2id/t1-m64-p1"
	_, err = p.DecryptBytes(context.Background(), blob, &edited, password, nil)
	assert.ErrorIs(t, err, krypto.ErrAuthenticationFailed)
}

func TestDecryptRejectsTextEnvelope(t *testing.T) {
	env, err := envelope.Cipher{KDF: krypto.PBKDF2Params{Iterations: 1000}}.EncryptWithPassword([]byte("x"), password)
	require.NoError(t, err)

	_, err = newProcessor(1).DecryptBytes(context.Background(), []byte{}, env, password, nil)
	assert.ErrorIs(t, err, krypto.ErrMalformedEnvelope)

	_, err = newProcessor(1).DecryptBytes(context.Background(), []byte{}, nil, password, nil)
	assert.ErrorIs(t, err, krypto.ErrMalformedEnvelope)
}

func TestInvalidChunkSize(t *testing.T) {
	p := newProcessor(1)
	p.ChunkSize = 100
	_, _, err := p.EncryptBytes(context.Background(), []byte("x"), password, nil)
	assert.ErrorIs(t, err, krypto.ErrInvalidParameter)
}

func TestCancellation(t *testing.T) {
	p := newProcessor(1)
	data := randomData(t, 8*chunk)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := p.EncryptBytes(ctx, data, password, nil)
	assert.ErrorIs(t, err, krypto.ErrOperationCancelled)

	ctx, cancel = context.WithCancel(context.Background())
	defer cancel()
	var progress recorder
	blob, env, err := p.EncryptBytes(ctx, data, password, func(f float64) {
		progress.record(f)
		cancel()
	})
	assert.ErrorIs(t, err, krypto.ErrOperationCancelled)
	assert.Nil(t, blob)
	assert.Nil(t, env)
	assert.NotContains(t, progress.values, 1.0)
}

func TestFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "report.pdf")
	data := randomData(t, 10*chunk+123)
	require.NoError(t, os.WriteFile(src, data, 0o644))

	p := newProcessor(3)
	var encProgress recorder
	encPath, env, err := p.EncryptFile(context.Background(), src, "", password, encProgress.record)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "report.pdf.cbx"), encPath)
	encProgress.assertComplete(t)

	info, err := os.Stat(encPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	outDir := filepath.Join(dir, "out")
	var decProgress recorder
	decPath, err := p.DecryptFile(context.Background(), encPath, outDir, env, password, decProgress.record)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(outDir, "report.pdf"), decPath)
	decProgress.assertComplete(t)

	got, err := os.ReadFile(decPath)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestFileFailureLeavesNoOutput(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(src, randomData(t, 4*chunk), 0o600))

	p := newProcessor(1)
	encPath, env, err := p.EncryptFile(context.Background(), src, "", password, nil)
	require.NoError(t, err)

	outDir := filepath.Join(dir, "plain")
	var progress recorder
	_, err = p.DecryptFile(context.Background(), encPath, outDir, env, []byte("wrong"), progress.record)
	assert.ErrorIs(t, err, krypto.ErrAuthenticationFailed)
	assert.NotContains(t, progress.values, 1.0)

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, os.Remove(encPath))
	_, _, err = p.EncryptFile(ctx, src, "", password, nil)
	assert.ErrorIs(t, err, krypto.ErrOperationCancelled)

	entries, err = os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"notes.txt", "plain"}, names)
}

func TestRefusesToOverwriteInput(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "plain.bin")
	require.NoError(t, os.WriteFile(src, []byte("data"), 0o600))

	_, err := newProcessor(1).DecryptFile(context.Background(), src, "", &envelope.Envelope{}, password, nil)
	assert.ErrorIs(t, err, krypto.ErrInvalidParameter)

	got, err := os.ReadFile(src)
	require.NoError(t, err)
	assert.Equal(t, "data", string(got))
}

func TestNames(t *testing.T) {
	assert.Equal(t, "a.txt.cbx", filecrypt.EncryptedName("a.txt"))
	assert.Equal(t, "a.txt", filecrypt.DecryptedName("a.txt.cbx"))
	assert.Equal(t, "a.txt", filecrypt.DecryptedName("a.txt"))
	assert.Equal(t, "a.txt", filecrypt.DecryptedName(filecrypt.EncryptedName("a.txt")))
}
