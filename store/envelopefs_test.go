package store_test

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hussein-Mazeh/cipherbox/envelope"
	"github.com/Hussein-Mazeh/cipherbox/krypto"
	"github.com/Hussein-Mazeh/cipherbox/store"
)

func TestSaveLoadEnvelope(t *testing.T) {
	key, err := krypto.NewSymmetricKey(256)
	require.NoError(t, err)
	env, err := envelope.Encrypt([]byte("sidecar"), key)
	require.NoError(t, err)

	path := store.SidecarPath(filepath.Join(t.TempDir(), "report.pdf.cbx"))
	require.NoError(t, store.SaveEnvelope(path, env))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := store.LoadEnvelope(path)
	require.NoError(t, err)
	assert.Equal(t, *env, *loaded)
}

func TestLoadEnvelopeMissing(t *testing.T) {
	_, err := store.LoadEnvelope(filepath.Join(t.TempDir(), "nope.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadEnvelopeMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"iv":"AAAA","algorithm":"rot13"}`), 0o600))

	_, err := store.LoadEnvelope(path)
	assert.ErrorIs(t, err, krypto.ErrMalformedEnvelope)
}

func TestWriteFileAtomicLeavesNothingOnFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.bin")
	boom := errors.New("boom")

	err := store.WriteFileAtomic(path, 0o600, func(w io.Writer) error {
		_, _ = w.Write([]byte("partial"))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
