package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest holds credentials for authenticating an admin.
type LoginRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// ParentLoginRequest authenticates a parent by registered phone number.
type ParentLoginRequest struct {
	Phone string `json:"phone" validate:"required"`
}

// LoginResponse returns the issued tokens and principal info.
type LoginResponse struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token,omitempty"`
	ExpiresIn    int64         `json:"expires_in"`
	Principal    PrincipalInfo `json:"principal"`
	IssuedAt     time.Time     `json:"issued_at"`
}

// RefreshTokenRequest exchanges a refresh token for a new access token.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
	IP           string `json:"-"`
	UserAgent    string `json:"-"`
}

// RefreshTokenResponse returns the refreshed tokens.
type RefreshTokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int64     `json:"expires_in"`
	IssuedAt     time.Time `json:"issued_at"`
}

// PrincipalInfo describes the authenticated caller in responses.
type PrincipalInfo struct {
	ID       string   `json:"id"`
	Role     UserRole `json:"role"`
	FullName string   `json:"full_name"`
	Email    string   `json:"email,omitempty"`
	Phone    string   `json:"phone,omitempty"`
}

// JWTClaims represents the JWT payload for access tokens.
// For PARENT tokens SubjectID is the parent id; for ADMIN tokens the user id.
type JWTClaims struct {
	SubjectID string   `json:"sub_id"`
	Role      UserRole `json:"role"`
	FullName  string   `json:"full_name"`
	jwt.RegisteredClaims
}

// RefreshToken is a persisted opaque refresh credential for admin sessions.
type RefreshToken struct {
	ID        string     `db:"id" json:"id"`
	UserID    string     `db:"user_id" json:"user_id"`
	Token     string     `db:"token" json:"-"`
	ExpiresAt time.Time  `db:"expires_at" json:"expires_at"`
	Revoked   bool       `db:"revoked" json:"revoked"`
	RevokedAt *time.Time `db:"revoked_at" json:"revoked_at,omitempty"`
	IPAddress string     `db:"ip_address" json:"-"`
	UserAgent string     `db:"user_agent" json:"-"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}
