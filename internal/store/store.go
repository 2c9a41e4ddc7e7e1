package store

import (
	"context"
	"errors"
	"time"

	"github.com/voyagen/m3ueditor/internal/models"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a write violates a uniqueness constraint.
	ErrConflict = errors.New("conflict")
)

// Store is the full persistence surface of the service.
type Store interface {
	UserStore
	PlaylistStore
	GroupStore
	ChannelStore
	EpgStore
	CollectionStore
	// OwnedIDs returns the subset of ids in table (see Owned*) that belong to userID.
	OwnedIDs(ctx context.Context, table string, userID int64, ids []int64) ([]int64, error)
}

// Tables accepted by OwnedIDs.
const (
	OwnedPlaylists       = "playlists"
	OwnedGroups          = "groups"
	OwnedChannels        = "channels"
	OwnedEpgs            = "epgs"
	OwnedCustomPlaylists = "custom_playlists"
	OwnedEpgChannels     = "epg_channels"
)

// UserStore persists users.
type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
}

// PlaylistStore persists playlists and their sync state.
type PlaylistStore interface {
	// CreatePlaylist inserts p, assigning ID, UUID, status and timestamps.
	CreatePlaylist(ctx context.Context, p *models.Playlist) error
	GetPlaylist(ctx context.Context, id int64) (*models.Playlist, error)
	ListPlaylists(ctx context.Context, userID int64) ([]models.Playlist, error)
	UpdatePlaylist(ctx context.Context, id int64, fields PlaylistUpdate) error
	// DeletePlaylist deletes a playlist; groups and channels cascade.
	DeletePlaylist(ctx context.Context, id int64) error
	// UpdatePlaylistSync records a sync state transition.
	UpdatePlaylistSync(ctx context.Context, id int64, s models.SyncState) error
	// ListDuePlaylists returns playlists whose sync interval has elapsed at now.
	ListDuePlaylists(ctx context.Context, now time.Time) ([]models.Playlist, error)
}

// GroupStore persists channel groups.
type GroupStore interface {
	// GetOrCreateGroup returns the id of the group keyed by (playlistID, name), creating it if needed.
	GetOrCreateGroup(ctx context.Context, userID, playlistID int64, name string) (int64, error)
	CreateGroup(ctx context.Context, g *models.Group) error
	GetGroup(ctx context.Context, id int64) (*models.Group, error)
	// ListGroups returns the user's groups with their playlist embedded.
	ListGroups(ctx context.Context, userID int64) ([]models.Group, error)
	// UpdateGroup updates a group; a rename is copied to its channels' group label.
	UpdateGroup(ctx context.Context, id int64, fields GroupUpdate) error
	DeleteGroup(ctx context.Context, id int64) error
	// DeleteGroupsNotIn deletes the playlist's groups whose id is not in keep.
	DeleteGroupsNotIn(ctx context.Context, playlistID int64, keep []int64) (int64, error)
}

// ChannelStore persists channels.
type ChannelStore interface {
	// UpsertChannel finds or creates the channel keyed by (PlaylistID, Name, Group)
	// and overwrites its source-owned fields; returns the channel id.
	UpsertChannel(ctx context.Context, ch *models.Channel) (int64, error)
	CreateChannel(ctx context.Context, ch *models.Channel) error
	GetChannel(ctx context.Context, id int64) (*models.Channel, error)
	// ListChannels returns channels matching the filter and the total count before limit/offset.
	ListChannels(ctx context.Context, filter ChannelFilter) ([]models.Channel, int, error)
	ListChannelsByIDs(ctx context.Context, userID int64, ids []int64) ([]models.Channel, error)
	UpdateChannel(ctx context.Context, id int64, fields ChannelUpdate) error
	DeleteChannel(ctx context.Context, id int64) error
	// DeleteChannelsNotIn deletes the playlist's channels whose id is not in keep.
	DeleteChannelsNotIn(ctx context.Context, playlistID int64, keep []int64) (int64, error)
	SetChannelsEnabled(ctx context.Context, userID int64, ids []int64, enabled bool) (int64, error)
	// MoveChannelsToGroup moves the selected channels that belong to g's playlist into g.
	MoveChannelsToGroup(ctx context.Context, userID int64, ids []int64, g *models.Group) (int64, error)
	SetChannelsLogoType(ctx context.Context, userID int64, ids []int64, logoType string) (int64, error)
	SetChannelEpgChannel(ctx context.Context, channelID int64, epgChannelID *int64) error
	// ListOutputChannels returns the enabled channels of an output target in output order.
	ListOutputChannels(ctx context.Context, kind string, id int64) ([]models.OutputChannel, error)
}

// EpgStore persists EPG sources and their channels.
type EpgStore interface {
	CreateEpg(ctx context.Context, e *models.Epg) error
	GetEpg(ctx context.Context, id int64) (*models.Epg, error)
	ListEpgs(ctx context.Context, userID int64) ([]models.Epg, error)
	UpdateEpg(ctx context.Context, id int64, fields EpgUpdate) error
	DeleteEpg(ctx context.Context, id int64) error
	UpdateEpgSync(ctx context.Context, id int64, s models.SyncState) error
	ListDueEpgs(ctx context.Context, now time.Time) ([]models.Epg, error)
	// UpsertEpgChannel finds or creates the EPG channel keyed by (EpgID, ChannelID).
	UpsertEpgChannel(ctx context.Context, ch *models.EpgChannel) (int64, error)
	DeleteEpgChannelsNotIn(ctx context.Context, epgID int64, keep []int64) (int64, error)
	ListEpgChannels(ctx context.Context, epgID int64) ([]models.EpgChannel, error)
}

// CollectionStore persists custom and merged playlists.
type CollectionStore interface {
	CreateCustomPlaylist(ctx context.Context, cp *models.CustomPlaylist) error
	GetCustomPlaylist(ctx context.Context, id int64) (*models.CustomPlaylist, error)
	ListCustomPlaylists(ctx context.Context, userID int64) ([]models.CustomPlaylist, error)
	UpdateCustomPlaylist(ctx context.Context, id int64, fields CollectionUpdate) error
	DeleteCustomPlaylist(ctx context.Context, id int64) error
	// AttachCustomPlaylistChannels adds channels without removing existing ones.
	AttachCustomPlaylistChannels(ctx context.Context, id int64, channelIDs []int64) error
	// SyncCustomPlaylistChannels replaces the channel set.
	SyncCustomPlaylistChannels(ctx context.Context, id int64, channelIDs []int64) error

	CreateMergedPlaylist(ctx context.Context, mp *models.MergedPlaylist) error
	GetMergedPlaylist(ctx context.Context, id int64) (*models.MergedPlaylist, error)
	ListMergedPlaylists(ctx context.Context, userID int64) ([]models.MergedPlaylist, error)
	UpdateMergedPlaylist(ctx context.Context, id int64, fields CollectionUpdate) error
	DeleteMergedPlaylist(ctx context.Context, id int64) error
	// SyncMergedPlaylistPlaylists replaces the member playlist set.
	SyncMergedPlaylistPlaylists(ctx context.Context, id int64, playlistIDs []int64) error

	// FindOutput resolves a playlist, custom playlist or merged playlist by uuid.
	FindOutput(ctx context.Context, uuid string) (*OutputTarget, error)
}

// ChannelFilter holds optional filters for listing channels.
type ChannelFilter struct {
	UserID     int64
	PlaylistID *int64
	GroupID    *int64
	Enabled    *bool
	Search     string // case-insensitive substring match on name or title
	Limit      int    // default 50, max 500
	Offset     int
}

// PlaylistUpdate holds mutable playlist fields. nil = don't change.
type PlaylistUpdate struct {
	Name         *string
	URL          *string
	SyncInterval *string
	ImportPrefs  map[string]any
}

// EpgUpdate holds mutable EPG fields. nil = don't change.
type EpgUpdate struct {
	Name         *string
	URL          *string
	SyncInterval *string
}

// GroupUpdate holds mutable group fields. nil = don't change.
type GroupUpdate struct {
	Name       *string
	PlaylistID *int64
}

// ChannelUpdate holds mutable channel fields. nil = don't change.
type ChannelUpdate struct {
	Name         *string
	URL          *string
	PlaylistID   *int64
	GroupID      *int64
	Enabled      *bool
	Shift        *int
	Logo         *string
	LogoType     *string
	NameCustom   *string
	TitleCustom  *string
	Number       *int
	EpgChannelID *int64
}

// CollectionUpdate holds mutable custom/merged playlist fields. nil = don't change.
type CollectionUpdate struct {
	Name                 *string
	AutoChannelIncrement *bool
	ChannelStart         *int
}

// OutputTarget is a uuid-addressable playlist with its numbering options.
type OutputTarget struct {
	Kind                 string
	ID                   int64
	Name                 string
	AutoChannelIncrement bool
	ChannelStart         int
}

// staleProcessing is how long a record may sit in "processing" before the
// scheduler treats it as abandoned and due again.
const staleProcessing = time.Hour
