package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse returns the issued token and user info.
type LoginResponse struct {
	AccessToken string   `json:"access_token"`
	ExpiresIn   int64    `json:"expires_in"`
	User        UserInfo `json:"user"`
}

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	ID       string   `json:"id"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	Role     UserRole `json:"role"`
	Owner    OwnerRef `json:"owner"`
}

// JWTClaims represents the JWT payload for access tokens. The owner
// reference travels in the token so every request resolves its ownership
// scope exactly once.
type JWTClaims struct {
	UserID    string    `json:"user_id"`
	Role      UserRole  `json:"role"`
	Email     string    `json:"email"`
	OwnerID   string    `json:"owner_id"`
	OwnerKind OwnerKind `json:"owner_kind"`
	jwt.RegisteredClaims
}

// Owner returns the owner reference carried by the claims.
func (c *JWTClaims) Owner() OwnerRef {
	return OwnerRef{Kind: c.OwnerKind, ID: c.OwnerID}
}
