package keys_test

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/pem"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"github.com/Hussein-Mazeh/cipherbox/envelope"
	"github.com/Hussein-Mazeh/cipherbox/internal/keys"
	"github.com/Hussein-Mazeh/cipherbox/krypto"
)

var testCipher = envelope.Cipher{
	KDF:         krypto.Argon2Params{Time: 1, MemoryKB: 64, Parallelism: 1},
	KeySizeBits: 256,
}

var (
	pairOnce sync.Once
	pairs    [2]*keys.KeyPair
)

// testPairs returns two 2048-bit pairs shared by the tests in this file.
func testPairs(t *testing.T) (*keys.KeyPair, *keys.KeyPair) {
	t.Helper()
	pairOnce.Do(func() {
		for i := range pairs {
			kp, err := keys.GenerateKeyPair(2048)
			if err != nil {
				panic(err)
			}
			pairs[i] = kp
		}
	})
	return pairs[0], pairs[1]
}

func TestWrapSymmetricKey(t *testing.T) {
	kp, other := testPairs(t)
	assert.Equal(t, 2048, kp.Public.N.BitLen())

	symKey, err := krypto.NewSymmetricKey(256)
	require.NoError(t, err)

	ct, err := keys.Encrypt(symKey, kp.Public)
	require.NoError(t, err)
	assert.Len(t, ct, 256)

	got, err := keys.Decrypt(ct, kp.Private)
	require.NoError(t, err)
	assert.Equal(t, []byte(symKey), got)

	_, err = keys.Decrypt(ct, other.Private)
	assert.ErrorIs(t, err, krypto.ErrAuthenticationFailed)

	ct[10] ^= 0x80
	_, err = keys.Decrypt(ct, kp.Private)
	assert.ErrorIs(t, err, krypto.ErrAuthenticationFailed)
}

func TestPayloadTooLarge(t *testing.T) {
	kp, _ := testPairs(t)
	limit := keys.MaxPayload(kp.Public)
	assert.Equal(t, 256-66, limit)

	_, err := keys.Encrypt(make([]byte, limit), kp.Public)
	require.NoError(t, err)

	_, err = keys.Encrypt(make([]byte, limit+1), kp.Public)
	assert.ErrorIs(t, err, krypto.ErrPayloadTooLarge)
}

func TestUnsupportedKeySize(t *testing.T) {
	for _, bits := range []int{0, 512, 1024, 2047, 8192} {
		_, err := keys.GenerateKeyPair(bits)
		assert.ErrorIs(t, err, krypto.ErrInvalidParameter, "bits %d", bits)
	}
}

func TestPublicKeyExportImport(t *testing.T) {
	kp, _ := testPairs(t)

	pemText, err := keys.ExportPublicKey(kp.Public)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(pemText, "-----BEGIN PUBLIC KEY-----"))

	sshLine, err := keys.ExportPublicKeySSH(kp.Public)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sshLine, "ssh-rsa "))

	pkcs1 := string(pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PUBLIC KEY",
		Bytes: x509.MarshalPKCS1PublicKey(kp.Public),
	}))

	for name, in := range map[string]string{"pkix": pemText, "ssh": sshLine, "pkcs1": pkcs1, "padded": "\n  " + pemText + "\n"} {
		pub, err := keys.ImportPublicKey(in)
		require.NoError(t, err, name)
		assert.True(t, kp.Public.Equal(pub), name)
	}
}

func TestImportPublicKeyErrors(t *testing.T) {
	edPub, _, err := ed25519.GenerateKey(krypto.RandReader())
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(edPub)
	require.NoError(t, err)
	edPEM := string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
	sshPub, err := ssh.NewPublicKey(edPub)
	require.NoError(t, err)
	edSSH := string(ssh.MarshalAuthorizedKey(sshPub))

	_, err = keys.ImportPublicKey(edPEM)
	assert.ErrorIs(t, err, krypto.ErrInvalidParameter)
	_, err = keys.ImportPublicKey(edSSH)
	assert.ErrorIs(t, err, krypto.ErrInvalidParameter)

	for _, garbage := range []string{
		"",
		"not a key",
		"-----BEGIN PUBLIC KEY-----\nZm9v\n-----END PUBLIC KEY-----\n",
		"-----BEGIN PUBLIC KEY-----\n",
		"-----BEGIN CERTIFICATE-----\nZm9v\n-----END CERTIFICATE-----\n",
		"ssh-rsa AAAA",
	} {
		_, err := keys.ImportPublicKey(garbage)
		assert.ErrorIs(t, err, krypto.ErrMalformedEnvelope, "%q", garbage)
	}
}

func TestPrivateKeyExportImport(t *testing.T) {
	kp, _ := testPairs(t)

	env, err := keys.ExportPrivateKey(kp.Private, []byte("hunter22"), testCipher)
	require.NoError(t, err)
	assert.NotEmpty(t, env.Salt)
	assert.Equal(t, "aes-256-gcm/argon2id/t1-m64-p1", env.Algorithm)

	priv, err := keys.ImportPrivateKey(env, []byte("hunter22"))
	require.NoError(t, err)
	assert.True(t, kp.Private.Equal(priv))

	_, err = keys.ImportPrivateKey(env, []byte("hunter23"))
	assert.ErrorIs(t, err, krypto.ErrAuthenticationFailed)

	_, err = keys.ExportPrivateKey(nil, []byte("pw"), testCipher)
	assert.ErrorIs(t, err, krypto.ErrInvalidParameter)
}

func TestImportPrivateKeyRejectsNonKey(t *testing.T) {
	env, err := testCipher.EncryptWithPassword([]byte("not der"), []byte("pw"))
	require.NoError(t, err)

	_, err = keys.ImportPrivateKey(env, []byte("pw"))
	assert.ErrorIs(t, err, krypto.ErrMalformedEnvelope)
}

func TestKEMSealOpen(t *testing.T) {
	kp, err := keys.GenerateKEMKeyPair()
	require.NoError(t, err)
	other, err := keys.GenerateKEMKeyPair()
	require.NoError(t, err)

	payload := make([]byte, 10_000)
	for i := range payload {
		payload[i] = byte(i)
	}

	sealed, err := kp.Seal(payload)
	require.NoError(t, err)

	got, err := kp.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	_, err = other.Open(sealed)
	assert.ErrorIs(t, err, krypto.ErrAuthenticationFailed)

	sealed[len(sealed)-1] ^= 0x01
	_, err = kp.Open(sealed)
	assert.ErrorIs(t, err, krypto.ErrAuthenticationFailed)

	_, err = kp.Open(sealed[:100])
	assert.ErrorIs(t, err, krypto.ErrMalformedEnvelope)
}

func TestKEMKeyExportImport(t *testing.T) {
	kp, err := keys.GenerateKEMKeyPair()
	require.NoError(t, err)

	pubText, err := keys.ExportKEMPublicKey(kp.Public)
	require.NoError(t, err)
	pub, err := keys.ImportKEMPublicKey(pubText)
	require.NoError(t, err)
	assert.True(t, kp.Public.Equal(pub))

	sealed, err := keys.SealTo(pub, []byte("for your eyes only"))
	require.NoError(t, err)

	env, err := keys.ExportKEMPrivateKey(kp, []byte("pw"), testCipher)
	require.NoError(t, err)
	restored, err := keys.ImportKEMPrivateKey(env, []byte("pw"))
	require.NoError(t, err)
	assert.True(t, kp.Public.Equal(restored.Public))

	got, err := restored.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "for your eyes only", string(got))

	_, err = keys.ImportKEMPrivateKey(env, []byte("nope"))
	assert.ErrorIs(t, err, krypto.ErrAuthenticationFailed)

	_, err = keys.ImportKEMPublicKey("AAAA")
	assert.ErrorIs(t, err, krypto.ErrMalformedEnvelope)

	// Setting a padding bit in the last data character leaves the decoded
	// bytes unchanged unless decoding is strict.
	require.True(t, strings.HasSuffix(pubText, "="))
	last := len(strings.TrimRight(pubText, "=")) - 1
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"
	idx := strings.IndexByte(alphabet, pubText[last])
	mutated := pubText[:last] + string(alphabet[idx^1]) + pubText[last+1:]
	_, err = keys.ImportKEMPublicKey(mutated)
	assert.ErrorIs(t, err, krypto.ErrMalformedEnvelope)
}
