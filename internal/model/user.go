package model

import "time"

// User represents an account in the database.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Country      string
	IsConfirmed  bool
	CreatedAt    time.Time
}

// RegisterRequest represents a user registration request.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
	Country  string `json:"country" validate:"required"`
}

// ConfirmEmailRequest carries the verification code mailed at registration.
type ConfirmEmailRequest struct {
	Email string `json:"email" validate:"required"`
	Code  string `json:"code" validate:"required"`
}

// LoginRequest represents a user login request.
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AccountResponse is returned by register and login.
type AccountResponse struct {
	Message string `json:"message"`
	UserID  string `json:"user_id"`
}

// MessageResponse is returned by endpoints that carry no payload.
type MessageResponse struct {
	Message string `json:"message"`
}
