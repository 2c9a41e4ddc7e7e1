package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyagen/m3ueditor/internal/fetcher"
	"github.com/voyagen/m3ueditor/internal/models"
	"github.com/voyagen/m3ueditor/internal/store/storetest"
)

func newEpg(t *testing.T, s *storetest.Memory, userID int64) *models.Epg {
	t.Helper()
	e := &models.Epg{UserID: userID, Name: "Guide", URL: "http://example.com/epg.xml"}
	require.NoError(t, s.CreateEpg(context.Background(), e))
	return e
}

func TestImportEpg(t *testing.T) {
	ctx := context.Background()
	s := storetest.NewMemory()
	pl := newPlaylist(t, s)
	e := newEpg(t, s, pl.UserID)
	f := &fakeFetcher{guide: &fetcher.Guide{
		Channels: []fetcher.GuideChannel{
			{ID: "bbc1.uk", DisplayName: "BBC One", Icon: strp("http://icon/bbc1")},
			{ID: "cnn.us", DisplayName: "CNN"},
		},
		Programmes: 42,
	}}
	sy := NewSyncer(s, f, Options{})

	n, err := sy.ImportEpg(ctx, e.ID, true)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, _ := s.GetEpg(ctx, e.ID)
	assert.Equal(t, models.StatusCompleted, got.Status)
	assert.Equal(t, 2, got.ChannelCount)
	assert.Equal(t, 42, got.ProgrammeCount)

	ecs, _ := s.ListEpgChannels(ctx, e.ID)
	require.Len(t, ecs, 2)
	bbcID := ecs[0].ID

	// map a channel to cnn, then drop cnn upstream: the mapping is cleared
	chID, err := s.UpsertChannel(ctx, &models.Channel{UserID: pl.UserID, PlaylistID: pl.ID, Name: "CNN", URL: "u"})
	require.NoError(t, err)
	require.NoError(t, s.SetChannelEpgChannel(ctx, chID, &ecs[1].ID))

	f.guide = &fetcher.Guide{Channels: []fetcher.GuideChannel{{ID: "bbc1.uk", DisplayName: "BBC One HD"}}}
	n, err = sy.ImportEpg(ctx, e.ID, true)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	ecs, _ = s.ListEpgChannels(ctx, e.ID)
	require.Len(t, ecs, 1)
	assert.Equal(t, bbcID, ecs[0].ID)
	assert.Equal(t, "BBC One HD", ecs[0].DisplayName)

	ch, _ := s.GetChannel(ctx, chID)
	assert.Nil(t, ch.EpgChannelID)
}

func TestImportEpg_failure(t *testing.T) {
	ctx := context.Background()
	s := storetest.NewMemory()
	pl := newPlaylist(t, s)
	e := newEpg(t, s, pl.UserID)

	_, err := NewSyncer(s, &fakeFetcher{err: errors.New("parse xmltv: no <tv> element")}, Options{}).ImportEpg(ctx, e.ID, true)
	require.Error(t, err)

	got, _ := s.GetEpg(ctx, e.ID)
	assert.Equal(t, models.StatusFailed, got.Status)
	require.NotNil(t, got.Errors)
	assert.Contains(t, *got.Errors, "no <tv> element")
}
