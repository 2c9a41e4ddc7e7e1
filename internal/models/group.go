package models

import "time"

// Group is a channel category within a playlist (group-title in M3U).
type Group struct {
	ID         int64        `json:"id"`
	UserID     int64        `json:"user_id"`
	PlaylistID int64        `json:"playlist_id"`
	Name       string       `json:"name"`
	Playlist   *PlaylistRef `json:"playlist,omitempty"`
	CreatedAt  *time.Time   `json:"created_at,omitempty"`
	UpdatedAt  *time.Time   `json:"updated_at,omitempty"`
}

// GroupRef is the compact form embedded in channels.
type GroupRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
