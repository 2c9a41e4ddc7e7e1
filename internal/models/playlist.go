package models

import "time"

// Playlist is a remote M3U source owned by a user.
type Playlist struct {
	ID           int64          `json:"id"`
	UUID         string         `json:"uuid"`
	UserID       int64          `json:"user_id"`
	Name         string         `json:"name"`
	URL          string         `json:"url"`
	SyncInterval string         `json:"sync_interval"`
	Status       Status         `json:"status"`
	Errors       *string        `json:"errors"`
	Channels     int            `json:"channels"`
	Synced       *time.Time     `json:"synced"`
	ImportPrefs  map[string]any `json:"import_prefs"`
	CreatedAt    *time.Time     `json:"created_at,omitempty"`
	UpdatedAt    *time.Time     `json:"updated_at,omitempty"`
}

// PlaylistRef is the compact form embedded in related records.
type PlaylistRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// SyncState is the outcome written to a Playlist or Epg by a sync job.
type SyncState struct {
	Status Status
	Errors *string
	Count  int
	// Programmes is only meaningful for EPGs.
	Programmes int
	Synced     time.Time
}
