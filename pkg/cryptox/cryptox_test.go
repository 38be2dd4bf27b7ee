package cryptox

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("hunter2-but-longer")
	require.NoError(t, err)
	require.NotEqual(t, "hunter2-but-longer", hash)

	require.NoError(t, VerifyPassword(hash, "hunter2-but-longer"))
	require.ErrorIs(t, VerifyPassword(hash, "wrong"), ErrMismatch)
}

func TestHashPasswordSaltsEveryCall(t *testing.T) {
	a, err := HashPassword("same input")
	require.NoError(t, err)
	b, err := HashPassword("same input")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestGenerateTokenIsUnique(t *testing.T) {
	seen := map[string]bool{}
	for range 50 {
		tok, err := GenerateToken(TokenSize128)
		require.NoError(t, err)
		require.NotEmpty(t, tok)
		require.False(t, seen[tok], "token repeated")
		seen[tok] = true
	}
}

func TestFingerprintTokenIsStable(t *testing.T) {
	tok, err := GenerateToken(TokenSize128)
	require.NoError(t, err)

	require.Equal(t, FingerprintToken(tok), FingerprintToken(tok))
	other, err := GenerateToken(TokenSize128)
	require.NoError(t, err)
	require.NotEqual(t, FingerprintToken(tok), FingerprintToken(other))
}

func TestGenerateDigits(t *testing.T) {
	code, err := GenerateDigits(3)
	require.NoError(t, err)
	require.Len(t, code, 3)
	for _, c := range code {
		require.GreaterOrEqual(t, c, '0')
		require.LessOrEqual(t, c, '9')
	}
}
