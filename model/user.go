package model

import "time"

// User represents an account. Users are created at signup and never mutated.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Not exposed in API responses
	CreatedAt    time.Time `json:"createdAt"`
}

// PublicUser is the shape returned by the auth endpoints.
type PublicUser struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

// Public strips everything but id and email.
func (u *User) Public() PublicUser {
	return PublicUser{ID: u.ID, Email: u.Email}
}
