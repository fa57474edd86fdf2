package model

import "time"

// VerificationToken is a one-time email confirmation code issued to a user.
// Several tokens may be outstanding for the same user.
type VerificationToken struct {
	ID        int64
	UserID    string
	Code      string
	ExpiresAt time.Time
	CreatedAt time.Time
}
