// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a registered account.
//
// PasswordHash is tagged `json:"-"` so it can never leak into a response,
// no matter which handler serializes the struct. Only the bcrypt hash is
// ever stored; the plaintext password exists just long enough to hash it.
//
// Places holds the IDs of the places this user created. It is a true stored
// back-reference (the user_places table), not a derived query result, and it
// is kept in lockstep with the places table inside the same transaction.
type User struct {
	ID           string    `json:"id"        db:"id"`
	Name         string    `json:"name"      db:"name"`
	Email        string    `json:"email"     db:"email"` // unique, lowercased login key
	PasswordHash string    `json:"-"         db:"password_hash"`
	Image        string    `json:"image"     db:"image"` // profile image reference
	Places       []string  `json:"places"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}
