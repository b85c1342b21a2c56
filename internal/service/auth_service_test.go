package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/course-registration/internal/models"
	appErrors "github.com/noah-isme/course-registration/pkg/errors"
)

func newTestAuthService(t *testing.T) *AuthService {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	return NewAuthService(nil, nil, AuthConfig{
		AccessTokenSecret: "test-secret",
		AccessTokenExpiry: time.Hour,
		AdminUsername:     "admin",
		AdminPasswordHash: string(hash),
	})
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	svc := newTestAuthService(t)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Username: "admin", Password: "s3cret"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, int64(3600), resp.ExpiresIn)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, claims.Role)
	assert.Equal(t, "admin", claims.Subject)
	assert.Nil(t, claims.TeacherID)
	assert.NotEmpty(t, claims.ID)
}

func TestAuthServiceLoginRejectsBadCredentials(t *testing.T) {
	svc := newTestAuthService(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "admin", Password: "wrong"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), models.LoginRequest{Username: "root", Password: "s3cret"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), models.LoginRequest{Username: "admin"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestAuthServiceLoginWithoutConfiguredHash(t *testing.T) {
	svc := NewAuthService(nil, nil, AuthConfig{AccessTokenSecret: "x", AdminUsername: "admin"})

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "admin", Password: ""})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Login(context.Background(), models.LoginRequest{Username: "admin", Password: "anything"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)
}

func TestAuthServiceIssueTeacherToken(t *testing.T) {
	svc := newTestAuthService(t)
	teacherID := int64(2)

	resp, err := svc.IssueToken(models.TokenRequest{Subject: "florin", Role: models.RoleTeacher, TeacherID: &teacherID})
	require.NoError(t, err)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, models.RoleTeacher, claims.Role)
	require.NotNil(t, claims.TeacherID)
	assert.Equal(t, int64(2), *claims.TeacherID)

	_, err = svc.IssueToken(models.TokenRequest{Subject: "florin", Role: models.RoleTeacher})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.IssueToken(models.TokenRequest{Subject: "x", Role: "STUDENT"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestAuthServiceValidateTokenRejectsForeignSignature(t *testing.T) {
	svc := newTestAuthService(t)
	other := NewAuthService(nil, nil, AuthConfig{AccessTokenSecret: "other-secret"})

	resp, err := other.IssueToken(models.TokenRequest{Subject: "admin", Role: models.RoleAdmin})
	require.NoError(t, err)

	_, err = svc.ValidateToken(resp.AccessToken)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("pw")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("pw")))

	_, err = HashPassword("")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}
