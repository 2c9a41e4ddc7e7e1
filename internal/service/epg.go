package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/voyagen/m3ueditor/internal/fetcher"
	"github.com/voyagen/m3ueditor/internal/models"
	"github.com/voyagen/m3ueditor/internal/storage"
)

// ImportEpg fetches an EPG's XMLTV source, upserts its channels keyed by XMLTV
// id and removes channels no longer listed. The returned count is the number of
// EPG channels.
func (s *Syncer) ImportEpg(ctx context.Context, epgID int64, force bool) (int, error) {
	e, err := s.store.GetEpg(ctx, epgID)
	if err != nil {
		return 0, fmt.Errorf("GetEpg: %w", err)
	}
	log := s.log.WithFields(logrus.Fields{"kind": storage.KindEpg, "epg_id": e.ID})

	if !force && !models.IsDue(e.Synced, e.SyncInterval, s.now()) {
		log.Debug("epg not due, skipping")
		return 0, ErrSkipped
	}
	unlock, err := s.acquire(ctx, storage.KindEpg, e.ID, log)
	if err != nil {
		return 0, err
	}
	defer unlock()

	return s.track(ctx, storage.KindEpg, e.ID, log,
		func(ctx context.Context, st models.SyncState) error {
			return s.store.UpdateEpgSync(ctx, e.ID, st)
		},
		func(ctx context.Context) (int, int, error) {
			guide, raw, err := s.fetch.FetchXMLTV(ctx, e.URL)
			if err != nil {
				return 0, 0, fmt.Errorf("fetch: %w", err)
			}
			s.keepRaw(storage.KindEpg, e.UUID, "epg.xml", raw, log)
			n, err := s.reconcileEpg(ctx, e, guide)
			return n, guide.Programmes, err
		})
}

func (s *Syncer) reconcileEpg(ctx context.Context, e *models.Epg, guide *fetcher.Guide) (int, error) {
	keep := make([]int64, 0, len(guide.Channels))
	for _, gc := range guide.Channels {
		if err := ctx.Err(); err != nil {
			return 0, fmt.Errorf("import cancelled: %w", err)
		}
		name := gc.DisplayName
		if name == "" {
			name = gc.ID
		}
		id, err := s.store.UpsertEpgChannel(ctx, &models.EpgChannel{
			UserID:      e.UserID,
			EpgID:       e.ID,
			ChannelID:   gc.ID,
			Name:        name,
			DisplayName: gc.DisplayName,
			Icon:        gc.Icon,
		})
		if err != nil {
			return 0, fmt.Errorf("UpsertEpgChannel: %w", err)
		}
		keep = append(keep, id)
	}
	if _, err := s.store.DeleteEpgChannelsNotIn(ctx, e.ID, keep); err != nil {
		return 0, fmt.Errorf("DeleteEpgChannelsNotIn: %w", err)
	}
	return len(keep), nil
}
