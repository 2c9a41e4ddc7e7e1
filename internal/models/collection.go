package models

import "time"

// CustomPlaylist is a hand-picked set of channels across playlists.
type CustomPlaylist struct {
	ID                   int64        `json:"id"`
	UUID                 string       `json:"uuid"`
	UserID               int64        `json:"user_id"`
	Name                 string       `json:"name"`
	AutoChannelIncrement bool         `json:"auto_channel_increment"`
	ChannelStart         int          `json:"channel_start"`
	Channels             []ChannelRef `json:"channels"`
	CreatedAt            *time.Time   `json:"created_at,omitempty"`
	UpdatedAt            *time.Time   `json:"updated_at,omitempty"`
}

// MergedPlaylist combines every channel of its member playlists.
type MergedPlaylist struct {
	ID                   int64         `json:"id"`
	UUID                 string        `json:"uuid"`
	UserID               int64         `json:"user_id"`
	Name                 string        `json:"name"`
	AutoChannelIncrement bool          `json:"auto_channel_increment"`
	ChannelStart         int           `json:"channel_start"`
	Playlists            []PlaylistRef `json:"playlists"`
	ChannelsCount        int           `json:"channels_count"`
	EnabledChannelsCount int           `json:"enabled_channels_count"`
	CreatedAt            *time.Time    `json:"created_at,omitempty"`
	UpdatedAt            *time.Time    `json:"updated_at,omitempty"`
}
