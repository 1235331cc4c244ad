package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashSecretRoundTrip(t *testing.T) {
	hash, err := HashSecret("s3cret", 1000)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$pbkdf2-sha256$1000$"), hash)
	assert.NotContains(t, hash, "+")

	require.NoError(t, VerifySecret(hash, "s3cret"))
	assert.ErrorIs(t, VerifySecret(hash, "other"), ErrMismatch)
}

func TestHashSecretRejectsUnverifiableRounds(t *testing.T) {
	_, err := HashSecret("s3cret", maxPBKDF2Rounds+1)
	assert.Error(t, err)
}

func TestHashSecretSaltsEachHash(t *testing.T) {
	first, err := HashSecret("same", 10)
	require.NoError(t, err)
	second, err := HashSecret("same", 10)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestVerifySecretBcrypt(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("token"), bcrypt.MinCost)
	require.NoError(t, err)

	require.NoError(t, VerifySecret(string(hash), "token"))
	assert.ErrorIs(t, VerifySecret(string(hash), "nope"), ErrMismatch)
}

func TestVerifySecretMalformedHash(t *testing.T) {
	cases := []string{
		"",
		"plain-text",
		"$pbkdf2-sha256$",
		"$pbkdf2-sha256$abc$c2FsdA$c3Vt",
		"$pbkdf2-sha256$-4$c2FsdA$c3Vt",
		"$pbkdf2-sha256$1000$!!!$c3Vt",
		"$pbkdf2-sha256$1000$c2FsdA$",
		"$2a$10$short",
	}
	for _, hash := range cases {
		err := VerifySecret(hash, "anything")
		assert.ErrorIs(t, err, ErrMalformedHash, "hash %q", hash)
	}
}

func TestAB64(t *testing.T) {
	raw := []byte{0xfb, 0xff, 0xbf}
	encoded := ab64Encode(raw)
	assert.Equal(t, "././", encoded)
	decoded, err := ab64Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, raw, decoded)
}
