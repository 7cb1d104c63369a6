package auth

import (
	"github.com/angelmondragon/marketplace-backend/internal/users"
)

// LoginRequest captures the user credentials sent to the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse contains the tokens and user produced by a successful login.
type LoginResponse struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	User         *users.UserDTO `json:"user"`
}

// RegisterRequest is the account sign-up payload. Type defaults to customer.
type RegisterRequest struct {
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	Company   string `json:"company" validate:"required"`
	Position  string `json:"position" validate:"required"`
	Type      string `json:"type,omitempty" validate:"omitempty,oneof=customer shop buyer"`
}

// ConfirmRequest activates an account with the mailed token.
type ConfirmRequest struct {
	Email string `json:"email" validate:"required,email"`
	Token string `json:"token" validate:"required"`
}

// PasswordResetRequest starts the reset flow for an email.
type PasswordResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// PasswordResetConfirmRequest sets a new password using a reset token.
type PasswordResetConfirmRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// DetailsUpdateRequest is a partial profile update.
type DetailsUpdateRequest struct {
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Company   *string `json:"company,omitempty"`
	Position  *string `json:"position,omitempty"`
	Password  *string `json:"password,omitempty"`
}
