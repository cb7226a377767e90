package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndVerifyToken(t *testing.T) {
	m := NewJWTManager("test-secret", 1)

	tokenStr, err := m.GenerateToken(42, "alice", "manager")
	require.NoError(t, err)

	claims, err := m.VerifyToken(tokenStr)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "manager", claims.Role)
}

func TestVerifyTokenRejectsWrongSecret(t *testing.T) {
	issuer := NewJWTManager("secret-a", 1)
	verifier := NewJWTManager("secret-b", 1)

	tokenStr, err := issuer.GenerateToken(1, "bob", "employee")
	require.NoError(t, err)

	_, err = verifier.VerifyToken(tokenStr)
	assert.Error(t, err)
}
