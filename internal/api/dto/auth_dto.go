package dto

import "time"

// LoginRequest payload for POST /auth.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Validate requires both credentials.
func (r LoginRequest) Validate() error {
	return apply(
		required("username", r.Username),
		required("password", r.Password),
	)
}

// TokenResponse standard response for auth endpoints.
type TokenResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
}
