package models

import "time"

// Epg is a remote XMLTV guide owned by a user.
type Epg struct {
	ID             int64      `json:"id"`
	UUID           string     `json:"uuid"`
	UserID         int64      `json:"user_id"`
	Name           string     `json:"name"`
	URL            string     `json:"url"`
	SyncInterval   string     `json:"sync_interval"`
	Status         Status     `json:"status"`
	Errors         *string    `json:"errors"`
	ChannelCount   int        `json:"channel_count"`
	ProgrammeCount int        `json:"programme_count"`
	Synced         *time.Time `json:"synced"`
	CreatedAt      *time.Time `json:"created_at,omitempty"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty"`
}

// EpgChannel is a <channel> of an EPG, identified by its XMLTV id.
type EpgChannel struct {
	ID          int64   `json:"id"`
	UserID      int64   `json:"user_id"`
	EpgID       int64   `json:"epg_id"`
	ChannelID   string  `json:"channel_id"`
	Name        string  `json:"name"`
	DisplayName string  `json:"display_name"`
	Icon        *string `json:"icon"`
}
