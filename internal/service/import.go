package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/voyagen/m3ueditor/internal/fetcher"
	"github.com/voyagen/m3ueditor/internal/models"
	"github.com/voyagen/m3ueditor/internal/storage"
)

// ImportPlaylist fetches a playlist's M3U source and reconciles its groups and
// channels. Existing channels are updated in place, keeping user edits
// (enabled, custom name/title, number, logo type, EPG mapping); channels and
// groups that no longer appear upstream are removed.
//
// Without force the import only runs when the playlist is due. The returned
// count is the number of distinct channels in the source.
func (s *Syncer) ImportPlaylist(ctx context.Context, playlistID int64, force bool) (int, error) {
	pl, err := s.store.GetPlaylist(ctx, playlistID)
	if err != nil {
		return 0, fmt.Errorf("GetPlaylist: %w", err)
	}
	log := s.log.WithFields(logrus.Fields{"kind": storage.KindPlaylist, "playlist_id": pl.ID})

	if !force && !models.IsDue(pl.Synced, pl.SyncInterval, s.now()) {
		log.Debug("playlist not due, skipping")
		return 0, ErrSkipped
	}
	unlock, err := s.acquire(ctx, storage.KindPlaylist, pl.ID, log)
	if err != nil {
		return 0, err
	}
	defer unlock()

	return s.track(ctx, storage.KindPlaylist, pl.ID, log,
		func(ctx context.Context, st models.SyncState) error {
			return s.store.UpdatePlaylistSync(ctx, pl.ID, st)
		},
		func(ctx context.Context) (int, int, error) {
			entries, raw, err := s.fetch.FetchM3U(ctx, pl.URL)
			if err != nil {
				return 0, 0, fmt.Errorf("fetch: %w", err)
			}
			s.keepRaw(storage.KindPlaylist, pl.UUID, "playlist.m3u", raw, log)
			n, err := s.reconcilePlaylist(ctx, pl, entries)
			return n, 0, err
		})
}

// reconcilePlaylist upserts groups then channels and prunes everything not
// touched. Writes are not transactional: an error leaves earlier rows committed.
func (s *Syncer) reconcilePlaylist(ctx context.Context, pl *models.Playlist, entries []fetcher.Entry) (int, error) {
	groupIDs := make(map[string]int64)
	keepGroups := make([]int64, 0)
	for i := range entries {
		label := entries[i].Group
		if label == "" {
			continue
		}
		if _, ok := groupIDs[label]; ok {
			continue
		}
		gid, err := s.store.GetOrCreateGroup(ctx, pl.UserID, pl.ID, label)
		if err != nil {
			return 0, fmt.Errorf("GetOrCreateGroup: %w", err)
		}
		groupIDs[label] = gid
		keepGroups = append(keepGroups, gid)
	}

	seen := make(map[int64]struct{}, len(entries))
	keep := make([]int64, 0, len(entries))
	for i := range entries {
		// Check for cancellation between rows so shutdown does not wait for a long import.
		if err := ctx.Err(); err != nil {
			return 0, fmt.Errorf("import cancelled: %w", err)
		}
		e := &entries[i]
		ch := &models.Channel{
			UserID:     pl.UserID,
			PlaylistID: pl.ID,
			Group:      e.Group,
			Name:       e.Name,
			Title:      e.Title,
			URL:        e.URL,
			Logo:       e.Logo,
			StreamID:   e.StreamID,
			Shift:      e.Shift,
			Lang:       e.Lang,
			Country:    e.Country,
		}
		if gid, ok := groupIDs[e.Group]; ok {
			ch.GroupID = &gid
		}
		id, err := s.store.UpsertChannel(ctx, ch)
		if err != nil {
			return 0, fmt.Errorf("UpsertChannel: %w", err)
		}
		if _, dup := seen[id]; !dup {
			seen[id] = struct{}{}
			keep = append(keep, id)
		}
	}

	if _, err := s.store.DeleteChannelsNotIn(ctx, pl.ID, keep); err != nil {
		return 0, fmt.Errorf("DeleteChannelsNotIn: %w", err)
	}
	if _, err := s.store.DeleteGroupsNotIn(ctx, pl.ID, keepGroups); err != nil {
		return 0, fmt.Errorf("DeleteGroupsNotIn: %w", err)
	}
	// Entries sharing name and group collapse into one row, so this can be
	// less than len(entries).
	return len(keep), nil
}
