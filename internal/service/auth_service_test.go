package service

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/assignment-sync/pkg/errors"
)

func TestAuthServiceIssueAndValidate(t *testing.T) {
	svc := NewAuthService("secret", time.Hour)
	token, expiresAt, err := svc.IssueToken("registrar")
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "registrar", claims.Operator)
	assert.Equal(t, TokenIssuer, claims.Issuer)
}

func TestAuthServiceRejectsForeignSecret(t *testing.T) {
	token, _, err := NewAuthService("other", time.Hour).IssueToken("registrar")
	require.NoError(t, err)

	_, err = NewAuthService("secret", time.Hour).ValidateToken(token)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}

func TestAuthServiceRejectsExpired(t *testing.T) {
	svc := NewAuthService("secret", time.Minute)
	issued := time.Now().Add(-time.Hour)
	svc.now = func() time.Time { return issued }
	token, _, err := svc.IssueToken("registrar")
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.ValidateToken(token)
	require.Error(t, err)
}

func TestAuthServiceDisabled(t *testing.T) {
	svc := NewAuthService("", time.Hour)
	assert.False(t, svc.Enabled())
	_, _, err := svc.IssueToken("registrar")
	require.Error(t, err)
}
