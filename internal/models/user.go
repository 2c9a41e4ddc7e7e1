package models

import "time"

// User owns playlists, groups, channels and EPGs.
type User struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
}
