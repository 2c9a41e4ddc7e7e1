package models

// Status is the sync state of a Playlist or Epg.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Logo preference for a channel in generated output.
const (
	LogoTypeChannel = "channel"
	LogoTypeEpg     = "epg"
)

// DefaultSyncInterval is applied when a Playlist or Epg has no interval set.
const DefaultSyncInterval = "24 hours"

// Output kinds addressable by uuid.
const (
	OutputPlaylist       = "playlist"
	OutputCustomPlaylist = "custom"
	OutputMergedPlaylist = "merged"
)
