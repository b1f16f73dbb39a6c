package domain

import "time"

// PendingSignup tracks a registration that has requested email
// verification but not yet confirmed the one-time code. At most one
// pending record exists per normalized email; a new request overwrites
// the previous one.
type PendingSignup struct {
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Gender       string    `json:"gender"`
	PasswordHash string    `json:"passwordHash"`
	OTPHash      string    `json:"otpHash"`
	ExpiresAt    time.Time `json:"expiresAt"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Expired reports whether the pending signup is expired relative to now.
func (p PendingSignup) Expired(now time.Time) bool {
	if p.ExpiresAt.IsZero() {
		return false
	}
	return now.UTC().After(p.ExpiresAt.UTC())
}
