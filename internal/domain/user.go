package domain

import "time"

// User is a registered account. Email is unique and stored exactly as submitted
// (after trimming surrounding whitespace).
type User struct {
	ID           string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewUser is the insert payload; the store assigns ID and timestamps.
type NewUser struct {
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
}
