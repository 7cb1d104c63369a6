package security_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/angelmondragon/marketplace-backend/pkg/config"
	"github.com/angelmondragon/marketplace-backend/pkg/security"
)

var cheap = config.PasswordConfig{ArgonMemoryKB: 1024, ArgonTime: 1, ArgonParallelism: 1, ArgonSaltLen: 16, ArgonKeyLen: 32}

func TestHashAndVerify(t *testing.T) {
	hash, err := security.HashPassword("very-secure-password", cheap)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=1024,t=1,p=1$"), hash)

	ok, err := security.VerifyPassword("very-secure-password", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = security.VerifyPassword("bogus-password", hash)
	require.NoError(t, err)
	assert.False(t, ok)

	again, err := security.HashPassword("very-secure-password", cheap)
	require.NoError(t, err)
	assert.NotEqual(t, hash, again, "salt is random")

	_, err = security.HashPassword("", cheap)
	assert.Error(t, err)
}

func TestVerifyRejectsMalformedHashes(t *testing.T) {
	hash, err := security.HashPassword("pw-123456", cheap)
	require.NoError(t, err)
	parts := strings.Split(hash, "$")

	for name, encoded := range map[string]string{
		"not phc":      "not-a-hash",
		"bcrypt":       "$2a$10$abcdefghijklmnopqrstuv",
		"old version":  strings.Join([]string{"", parts[1], "v=16", parts[3], parts[4], parts[5]}, "$"),
		"bad params":   strings.Join([]string{"", parts[1], parts[2], "m=x", parts[4], parts[5]}, "$"),
		"bad salt":     strings.Join([]string{"", parts[1], parts[2], parts[3], "!!", parts[5]}, "$"),
		"missing tail": strings.Join(parts[:5], "$"),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := security.VerifyPassword("pw-123456", encoded)
			assert.ErrorIs(t, err, security.ErrInvalidHash)
		})
	}
}

func TestNeedsRehash(t *testing.T) {
	hash, err := security.HashPassword("pw-123456", cheap)
	require.NoError(t, err)

	assert.False(t, security.NeedsRehash(hash, cheap))
	stronger := cheap
	stronger.ArgonTime = 2
	assert.True(t, security.NeedsRehash(hash, stronger))
	assert.True(t, security.NeedsRehash("garbage", cheap))
}

func TestCheckPasswordStrength(t *testing.T) {
	require.NoError(t, security.CheckPasswordStrength("Str0ng-pass", "ivan@example.com"))

	err := security.CheckPasswordStrength("1234567", "ivan@example.com")
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 2, "length and numeric-only violations")

	assert.Error(t, security.CheckPasswordStrength("password", "ivan@example.com"))
	assert.Error(t, security.CheckPasswordStrength("ivanivan", "ivanivan@example.com"))
}

func TestGenerateAccountTokenIsUnique(t *testing.T) {
	a, err := security.GenerateAccountToken()
	require.NoError(t, err)
	b, err := security.GenerateAccountToken()
	require.NoError(t, err)
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}
