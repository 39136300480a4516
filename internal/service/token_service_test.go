package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-master-scheduler/internal/models"
	appErrors "github.com/noah-isme/sma-master-scheduler/pkg/errors"
)

func signedClaims(t *testing.T, v *TokenValidator, role models.UserRole, expiresIn time.Duration) string {
	t.Helper()
	now := time.Now()
	token, err := v.IssueToken(&models.JWTClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
		},
	})
	require.NoError(t, err)
	return token
}

func TestTokenValidatorAcceptsValidToken(t *testing.T) {
	v := NewTokenValidator("secret")
	claims, err := v.ValidateToken(signedClaims(t, v, models.RoleAdmin, time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestTokenValidatorRejectsExpiredToken(t *testing.T) {
	v := NewTokenValidator("secret")
	_, err := v.ValidateToken(signedClaims(t, v, models.RoleAdmin, -time.Minute))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestTokenValidatorRejectsForeignSecret(t *testing.T) {
	other := NewTokenValidator("other")
	_, err := NewTokenValidator("secret").ValidateToken(signedClaims(t, other, models.RoleAdmin, time.Hour))
	require.Error(t, err)
}

func TestTokenValidatorRequiresRole(t *testing.T) {
	v := NewTokenValidator("secret")
	_, err := v.ValidateToken(signedClaims(t, v, "", time.Hour))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Status, appErrors.FromError(err).Status)
}
