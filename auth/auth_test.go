package auth_test

import (
	"errors"
	"strings"
	"testing"
	"testing/iotest"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hussein-Mazeh/cipherbox/auth"
	"github.com/Hussein-Mazeh/cipherbox/krypto"
)

func TestValidateMasterPassword(t *testing.T) {
	tests := []struct {
		pw      string
		wantErr string
	}{
		{"Sh0rt!", "at least 12"},
		{"alllowercase1!", "uppercase"},
		{"NoDigitsHere!!", "digit"},
		{"NoSpecials1234", "special"},
		{"Correct-Horse-9", ""},
	}
	for _, tc := range tests {
		err := auth.ValidateMasterPassword(tc.pw)
		if tc.wantErr == "" {
			assert.NoError(t, err, tc.pw)
			continue
		}
		require.Error(t, err, tc.pw)
		assert.Contains(t, err.Error(), tc.wantErr)
	}
}

func TestPolicyReportsEveryViolation(t *testing.T) {
	p := auth.Policy{MinLength: 10, RequireUpper: true, RequireLower: true, RequireDigit: true}
	err := p.Check("ABC")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 10")
	assert.Contains(t, err.Error(), "lowercase")
	assert.Contains(t, err.Error(), "digit")
	assert.NotContains(t, err.Error(), "uppercase")

	assert.NoError(t, auth.Policy{}.Check(""))
}

func TestEstimateStrength(t *testing.T) {
	weak := auth.EstimateStrength("password")
	strong := auth.EstimateStrength("vR7#qL2!mZ9@xT4$wK")

	assert.Equal(t, 0, weak.Score)
	assert.Equal(t, "very weak", weak.Label())
	assert.Equal(t, 4, strong.Score)
	assert.Greater(t, strong.Entropy, weak.Entropy)
	assert.NotEmpty(t, strong.CrackTime)

	withInput := auth.EstimateStrength("alice2024", "alice")
	without := auth.EstimateStrength("alice2024")
	assert.LessOrEqual(t, withInput.Entropy, without.Entropy)
}

func TestGeneratePassword(t *testing.T) {
	for _, length := range []int{8, 16, 64} {
		pw, err := auth.GeneratePassword(length, auth.AllClasses)
		require.NoError(t, err)
		assert.Len(t, pw, length)
		assert.True(t, strings.IndexFunc(pw, unicode.IsLower) >= 0, pw)
		assert.True(t, strings.IndexFunc(pw, unicode.IsUpper) >= 0, pw)
		assert.True(t, strings.IndexFunc(pw, unicode.IsDigit) >= 0, pw)
		assert.NoError(t, auth.ValidateMasterPassword(pw+"Aa1!"), pw)
	}

	digits, err := auth.GeneratePassword(20, auth.Digits)
	require.NoError(t, err)
	assert.Equal(t, -1, strings.IndexFunc(digits, func(r rune) bool { return !unicode.IsDigit(r) }), digits)

	a, err := auth.GeneratePassword(32, auth.AllClasses)
	require.NoError(t, err)
	b, err := auth.GeneratePassword(32, auth.AllClasses)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestGeneratePasswordInvalid(t *testing.T) {
	_, err := auth.GeneratePassword(7, auth.AllClasses)
	assert.ErrorIs(t, err, krypto.ErrInvalidParameter)

	_, err = auth.GeneratePassword(2000, auth.AllClasses)
	assert.ErrorIs(t, err, krypto.ErrInvalidParameter)

	_, err = auth.GeneratePassword(16, 0)
	assert.ErrorIs(t, err, krypto.ErrInvalidParameter)
}

func TestGeneratePasswordRandomFailure(t *testing.T) {
	boom := errors.New("entropy exhausted")
	restore := krypto.SetRandSource(iotest.ErrReader(boom))
	defer restore()

	_, err := auth.GeneratePassword(16, auth.AllClasses)
	assert.ErrorIs(t, err, boom)
}

func TestParseClasses(t *testing.T) {
	c, err := auth.ParseClasses("lud")
	require.NoError(t, err)
	assert.Equal(t, auth.Lower|auth.Upper|auth.Digits, c)

	c, err = auth.ParseClasses("LUDS")
	require.NoError(t, err)
	assert.Equal(t, auth.AllClasses, c)

	_, err = auth.ParseClasses("x")
	assert.ErrorIs(t, err, krypto.ErrInvalidParameter)
}
