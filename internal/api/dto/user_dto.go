package dto

import (
	"time"

	"github.com/parkwise/parking-service/internal/domain"
)

// CreateUserRequest payload for new accounts.
type CreateUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Validate checks the username is an e-mail address and the password length.
func (r CreateUserRequest) Validate() error {
	return apply(
		required("username", r.Username),
		matches("username", r.Username, usernamePattern, "must be a valid e-mail address"),
		required("password", r.Password),
		lengthBetween("password", r.Password, 6, 10),
	)
}

// ChangePasswordRequest payload for PATCH /users/:id.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

// Validate checks every password field.
func (r ChangePasswordRequest) Validate() error {
	return apply(
		required("current_password", r.CurrentPassword),
		lengthBetween("current_password", r.CurrentPassword, 6, 10),
		required("new_password", r.NewPassword),
		lengthBetween("new_password", r.NewPassword, 6, 10),
		required("confirm_password", r.ConfirmPassword),
		lengthBetween("confirm_password", r.ConfirmPassword, 6, 10),
	)
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID        string      `json:"id"`
	Username  string      `json:"username"`
	Role      domain.Role `json:"role"`
	CreatedAt time.Time   `json:"created_at"`
}

// NewUserResponse maps a user, dropping the password hash.
func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{ID: u.ID, Username: u.Username, Role: u.Role, CreatedAt: u.CreatedAt}
}
