package models

import "time"

// Channel is a single stream entry of a playlist.
// Name and Group identify it within its playlist; the *Custom fields,
// Enabled, LogoType, Number and EpgChannelID are user-owned and survive syncs.
type Channel struct {
	ID           int64        `json:"id"`
	UserID       int64        `json:"user_id"`
	PlaylistID   int64        `json:"playlist_id"`
	GroupID      *int64       `json:"group_id"`
	Group        string       `json:"group"`
	Name         string       `json:"name"`
	Title        string       `json:"title"`
	NameCustom   *string      `json:"name_custom"`
	TitleCustom  *string      `json:"title_custom"`
	URL          string       `json:"url"`
	Logo         *string      `json:"logo"`
	LogoType     string       `json:"logo_type"`
	StreamID     *string      `json:"stream_id"`
	Shift        int          `json:"shift"`
	Lang         *string      `json:"lang"`
	Country      *string      `json:"country"`
	Number       *int         `json:"channel"`
	Enabled      bool         `json:"enabled"`
	EpgChannelID *int64       `json:"epg_channel_id"`
	Playlist     *PlaylistRef `json:"playlist,omitempty"`
	GroupRef     *GroupRef    `json:"group_ref,omitempty"`
	CreatedAt    *time.Time   `json:"created_at,omitempty"`
	UpdatedAt    *time.Time   `json:"updated_at,omitempty"`
}

// DisplayName returns the user override when present, else the source name.
func (c *Channel) DisplayName() string {
	if c.NameCustom != nil && *c.NameCustom != "" {
		return *c.NameCustom
	}
	return c.Name
}

// DisplayTitle returns the user title override, else the source title, else the name.
func (c *Channel) DisplayTitle() string {
	if c.TitleCustom != nil && *c.TitleCustom != "" {
		return *c.TitleCustom
	}
	if c.Title != "" {
		return c.Title
	}
	return c.DisplayName()
}

// ChannelRef is the compact form embedded in custom playlists.
type ChannelRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// OutputChannel is a channel joined with its mapped EPG channel, ready for rendering.
type OutputChannel struct {
	Channel
	EpgXMLTVID *string
	EpgIcon    *string
}
