package domain

import "time"

// Preference defaults applied when a user is materialized.
const (
	DefaultTheme        = "Light"
	DefaultLanguage     = "Eng"
	DefaultNotification = "Allow"
)

// User represents a community account. PasswordHash is a digest, never the
// plaintext. Email is unique across the collection and immutable after
// creation, as is ID and CreatedAt.
type User struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	Gender          string     `json:"gender"`
	PasswordHash    string     `json:"passwordHash"`
	Phone           string     `json:"phone"`
	Photo           string     `json:"photo"`
	Skills          string     `json:"skills"`
	Theme           string     `json:"theme"`
	Language        string     `json:"language"`
	Notification    string     `json:"notification"`
	EmailVerified   bool       `json:"emailVerified"`
	EmailVerifiedAt *time.Time `json:"emailVerifiedAt,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// SafeUser is the subset of User exposed to session and transport
// consumers. It never carries the password digest.
type SafeUser struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Gender       string `json:"gender"`
	Phone        string `json:"phone"`
	Photo        string `json:"photo"`
	Skills       string `json:"skills"`
	Theme        string `json:"theme"`
	Language     string `json:"language"`
	Notification string `json:"notification"`
}

// Safe strips the password digest, filling preference defaults for
// documents written before those fields existed.
func (u User) Safe() SafeUser {
	s := SafeUser{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		Gender:       u.Gender,
		Phone:        u.Phone,
		Photo:        u.Photo,
		Skills:       u.Skills,
		Theme:        u.Theme,
		Language:     u.Language,
		Notification: u.Notification,
	}
	if s.Theme == "" {
		s.Theme = DefaultTheme
	}
	if s.Language == "" {
		s.Language = DefaultLanguage
	}
	if s.Notification == "" {
		s.Notification = DefaultNotification
	}
	return s
}
