package store

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/voyagen/m3ueditor/internal/cache"
	"github.com/voyagen/m3ueditor/internal/models"
)

// Cache TTLs for different read paths.
const (
	ttlTarget   = 5 * time.Minute
	ttlOutput   = 1 * time.Minute
	ttlChannels = 1 * time.Minute
	ttlGroups   = 5 * time.Minute
)

// CachedStore wraps a Store with a Redis caching layer.
// The public playlist output and the channel/group listings are served from
// cache when possible; writes that can change them invalidate the relevant keys.
// Methods not overridden here pass straight through to the embedded Store.
//
// Per-row import writes (UpsertChannel, GetOrCreateGroup, UpsertEpgChannel) do
// not invalidate; every import ends with the matching *NotIn prune, which does.
type CachedStore struct {
	Store
	cache *cache.Redis
	log   logrus.FieldLogger
}

// NewCachedStore creates a CachedStore that wraps inner with Redis caching.
func NewCachedStore(inner Store, c *cache.Redis, log logrus.FieldLogger) *CachedStore {
	return &CachedStore{Store: inner, cache: c, log: log}
}

// Ping checks the inner store and Redis.
func (c *CachedStore) Ping(ctx context.Context) error {
	if p, ok := c.Store.(interface{ Ping(context.Context) error }); ok {
		if err := p.Ping(ctx); err != nil {
			return err
		}
	}
	return c.cache.Ping(ctx)
}

// --- cached read operations ---

func (c *CachedStore) FindOutput(ctx context.Context, uuid string) (*OutputTarget, error) {
	key := cache.Key("target:%s", uuid)
	if v, err := cache.Get[OutputTarget](ctx, c.cache, key); err == nil {
		return &v, nil
	}
	t, err := c.Store.FindOutput(ctx, uuid)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, t, ttlTarget)
	return t, nil
}

func (c *CachedStore) ListOutputChannels(ctx context.Context, kind string, id int64) ([]models.OutputChannel, error) {
	key := cache.Key("output:%s:%d", kind, id)
	if v, err := cache.Get[[]models.OutputChannel](ctx, c.cache, key); err == nil {
		return v, nil
	}
	chs, err := c.Store.ListOutputChannels(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, chs, ttlOutput)
	return chs, nil
}

// channelListResult is a helper type to cache the ListChannels tuple.
type channelListResult struct {
	Channels []models.Channel `json:"channels"`
	Total    int              `json:"total"`
}

func (c *CachedStore) ListChannels(ctx context.Context, filter ChannelFilter) ([]models.Channel, int, error) {
	key := cache.Key("channels:u%d:%s", filter.UserID, filterHash(filter))
	if v, err := cache.Get[channelListResult](ctx, c.cache, key); err == nil {
		return v.Channels, v.Total, nil
	}
	channels, total, err := c.Store.ListChannels(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	c.set(ctx, key, channelListResult{Channels: channels, Total: total}, ttlChannels)
	return channels, total, nil
}

func (c *CachedStore) ListGroups(ctx context.Context, userID int64) ([]models.Group, error) {
	key := cache.Key("groups:u%d", userID)
	if v, err := cache.Get[[]models.Group](ctx, c.cache, key); err == nil {
		return v, nil
	}
	groups, err := c.Store.ListGroups(ctx, userID)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, groups, ttlGroups)
	return groups, nil
}

// --- write operations with cache invalidation ---

func (c *CachedStore) UpdatePlaylist(ctx context.Context, id int64, fields PlaylistUpdate) error {
	if err := c.Store.UpdatePlaylist(ctx, id, fields); err != nil {
		return err
	}
	c.invalidatePattern(ctx, "channels:*", "groups:*")
	return nil
}

func (c *CachedStore) DeletePlaylist(ctx context.Context, id int64) error {
	if err := c.Store.DeletePlaylist(ctx, id); err != nil {
		return err
	}
	c.invalidatePattern(ctx, "target:*", "output:*", "channels:*", "groups:*")
	return nil
}

func (c *CachedStore) CreateGroup(ctx context.Context, g *models.Group) error {
	if err := c.Store.CreateGroup(ctx, g); err != nil {
		return err
	}
	c.invalidate(ctx, cache.Key("groups:u%d", g.UserID))
	return nil
}

func (c *CachedStore) UpdateGroup(ctx context.Context, id int64, fields GroupUpdate) error {
	if err := c.Store.UpdateGroup(ctx, id, fields); err != nil {
		return err
	}
	c.invalidatePattern(ctx, "groups:*", "channels:*", "output:*")
	return nil
}

func (c *CachedStore) DeleteGroup(ctx context.Context, id int64) error {
	if err := c.Store.DeleteGroup(ctx, id); err != nil {
		return err
	}
	c.invalidatePattern(ctx, "groups:*", "channels:*", "output:*")
	return nil
}

func (c *CachedStore) DeleteGroupsNotIn(ctx context.Context, playlistID int64, keep []int64) (int64, error) {
	n, err := c.Store.DeleteGroupsNotIn(ctx, playlistID, keep)
	if err != nil {
		return 0, err
	}
	c.invalidatePattern(ctx, "groups:*")
	return n, nil
}

func (c *CachedStore) CreateChannel(ctx context.Context, ch *models.Channel) error {
	if err := c.Store.CreateChannel(ctx, ch); err != nil {
		return err
	}
	c.invalidatePattern(ctx, "channels:*", "output:*")
	return nil
}

func (c *CachedStore) UpdateChannel(ctx context.Context, id int64, fields ChannelUpdate) error {
	if err := c.Store.UpdateChannel(ctx, id, fields); err != nil {
		return err
	}
	c.invalidatePattern(ctx, "channels:*", "output:*")
	return nil
}

func (c *CachedStore) DeleteChannel(ctx context.Context, id int64) error {
	if err := c.Store.DeleteChannel(ctx, id); err != nil {
		return err
	}
	c.invalidatePattern(ctx, "channels:*", "output:*")
	return nil
}

func (c *CachedStore) DeleteChannelsNotIn(ctx context.Context, playlistID int64, keep []int64) (int64, error) {
	n, err := c.Store.DeleteChannelsNotIn(ctx, playlistID, keep)
	if err != nil {
		return 0, err
	}
	c.invalidatePattern(ctx, "channels:*", "output:*")
	return n, nil
}

func (c *CachedStore) SetChannelsEnabled(ctx context.Context, userID int64, ids []int64, enabled bool) (int64, error) {
	n, err := c.Store.SetChannelsEnabled(ctx, userID, ids, enabled)
	if err != nil {
		return 0, err
	}
	c.invalidatePattern(ctx, "channels:*", "output:*")
	return n, nil
}

func (c *CachedStore) MoveChannelsToGroup(ctx context.Context, userID int64, ids []int64, g *models.Group) (int64, error) {
	n, err := c.Store.MoveChannelsToGroup(ctx, userID, ids, g)
	if err != nil {
		return 0, err
	}
	c.invalidatePattern(ctx, "channels:*", "output:*")
	return n, nil
}

func (c *CachedStore) SetChannelsLogoType(ctx context.Context, userID int64, ids []int64, logoType string) (int64, error) {
	n, err := c.Store.SetChannelsLogoType(ctx, userID, ids, logoType)
	if err != nil {
		return 0, err
	}
	c.invalidatePattern(ctx, "channels:*", "output:*")
	return n, nil
}

func (c *CachedStore) SetChannelEpgChannel(ctx context.Context, channelID int64, epgChannelID *int64) error {
	if err := c.Store.SetChannelEpgChannel(ctx, channelID, epgChannelID); err != nil {
		return err
	}
	c.invalidatePattern(ctx, "channels:*", "output:*")
	return nil
}

func (c *CachedStore) DeleteEpg(ctx context.Context, id int64) error {
	if err := c.Store.DeleteEpg(ctx, id); err != nil {
		return err
	}
	c.invalidatePattern(ctx, "channels:*", "output:*")
	return nil
}

func (c *CachedStore) DeleteEpgChannelsNotIn(ctx context.Context, epgID int64, keep []int64) (int64, error) {
	n, err := c.Store.DeleteEpgChannelsNotIn(ctx, epgID, keep)
	if err != nil {
		return 0, err
	}
	c.invalidatePattern(ctx, "channels:*", "output:*")
	return n, nil
}

func (c *CachedStore) UpdateCustomPlaylist(ctx context.Context, id int64, fields CollectionUpdate) error {
	if err := c.Store.UpdateCustomPlaylist(ctx, id, fields); err != nil {
		return err
	}
	c.invalidatePattern(ctx, "target:*")
	return nil
}

func (c *CachedStore) DeleteCustomPlaylist(ctx context.Context, id int64) error {
	if err := c.Store.DeleteCustomPlaylist(ctx, id); err != nil {
		return err
	}
	c.invalidatePattern(ctx, "target:*")
	c.invalidate(ctx, cache.Key("output:%s:%d", models.OutputCustomPlaylist, id))
	return nil
}

func (c *CachedStore) AttachCustomPlaylistChannels(ctx context.Context, id int64, channelIDs []int64) error {
	if err := c.Store.AttachCustomPlaylistChannels(ctx, id, channelIDs); err != nil {
		return err
	}
	c.invalidate(ctx, cache.Key("output:%s:%d", models.OutputCustomPlaylist, id))
	return nil
}

func (c *CachedStore) SyncCustomPlaylistChannels(ctx context.Context, id int64, channelIDs []int64) error {
	if err := c.Store.SyncCustomPlaylistChannels(ctx, id, channelIDs); err != nil {
		return err
	}
	c.invalidate(ctx, cache.Key("output:%s:%d", models.OutputCustomPlaylist, id))
	return nil
}

func (c *CachedStore) UpdateMergedPlaylist(ctx context.Context, id int64, fields CollectionUpdate) error {
	if err := c.Store.UpdateMergedPlaylist(ctx, id, fields); err != nil {
		return err
	}
	c.invalidatePattern(ctx, "target:*")
	return nil
}

func (c *CachedStore) DeleteMergedPlaylist(ctx context.Context, id int64) error {
	if err := c.Store.DeleteMergedPlaylist(ctx, id); err != nil {
		return err
	}
	c.invalidatePattern(ctx, "target:*")
	c.invalidate(ctx, cache.Key("output:%s:%d", models.OutputMergedPlaylist, id))
	return nil
}

func (c *CachedStore) SyncMergedPlaylistPlaylists(ctx context.Context, id int64, playlistIDs []int64) error {
	if err := c.Store.SyncMergedPlaylistPlaylists(ctx, id, playlistIDs); err != nil {
		return err
	}
	c.invalidate(ctx, cache.Key("output:%s:%d", models.OutputMergedPlaylist, id))
	return nil
}

// --- helpers ---

func (c *CachedStore) set(ctx context.Context, key string, v any, ttl time.Duration) {
	if err := cache.Set(ctx, c.cache, key, v, ttl); err != nil {
		c.log.WithError(err).WithField("key", key).Warn("cache set failed")
	}
}

// invalidate deletes exact cache keys, logging any errors.
func (c *CachedStore) invalidate(ctx context.Context, keys ...string) {
	if err := cache.Del(ctx, c.cache, keys...); err != nil {
		c.log.WithError(err).WithField("keys", keys).Warn("cache del failed")
	}
}

// invalidatePattern deletes all keys matching the given glob patterns under KeyPrefix.
func (c *CachedStore) invalidatePattern(ctx context.Context, patterns ...string) {
	for _, p := range patterns {
		if err := cache.DelPattern(ctx, c.cache, cache.KeyPrefix+p); err != nil {
			c.log.WithError(err).WithField("pattern", p).Warn("cache del pattern failed")
		}
	}
}

// filterHash produces a short deterministic hash for a ChannelFilter so it
// can be used as part of a cache key.
func filterHash(f ChannelFilter) string {
	raw := fmt.Sprintf("%d|%s|%s|%s|%s|%d|%d",
		f.UserID, ptrString(f.PlaylistID), ptrString(f.GroupID), ptrString(f.Enabled), f.Search, f.Limit, f.Offset)
	h := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%x", h[:8])
}

func ptrString[T any](p *T) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprint(*p)
}
