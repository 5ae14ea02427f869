package model

import "time"

// Location is a geocoded coordinate pair. It is derived from the address at
// creation time and never edited directly.
type Location struct {
	Lat float64 `json:"lat" db:"lat"`
	Lng float64 `json:"lng" db:"lng"`
}

// Place represents a place record owned by exactly one user.
//
// CreatorID references an existing user, and that user's Places set must
// contain this place's ID whenever the place exists. Both sides of the
// relationship are written inside one transaction (see repository.TxRunner),
// so readers never observe one without the other.
type Place struct {
	ID          string    `json:"id"          db:"id"`
	Title       string    `json:"title"       db:"title"`
	Description string    `json:"description" db:"description"`
	Address     string    `json:"address"     db:"address"`
	Location    Location  `json:"location"`
	Image       string    `json:"image"       db:"image"` // uploaded image reference
	CreatorID   string    `json:"creator"     db:"creator_id"`
	CreatedAt   time.Time `json:"createdAt"   db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt"   db:"updated_at"`
}
