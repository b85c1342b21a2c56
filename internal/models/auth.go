package models

import "github.com/golang-jwt/jwt/v5"

// UserRole represents the roles understood by the RBAC middleware.
type UserRole string

const (
	RoleAdmin   UserRole = "ADMIN"
	RoleTeacher UserRole = "TEACHER"
)

// LoginRequest holds administrator credentials.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// TokenRequest describes a token to mint from the CLI.
type TokenRequest struct {
	Subject   string   `validate:"required"`
	Role      UserRole `validate:"required,oneof=ADMIN TEACHER"`
	TeacherID *int64   `validate:"required_if=Role TEACHER"`
}

// TokenResponse returns an issued access token.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	Role      UserRole `json:"role"`
	TeacherID *int64   `json:"teacher_id,omitempty"`
	jwt.RegisteredClaims
}
