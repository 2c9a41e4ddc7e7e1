package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyagen/m3ueditor/internal/models"
	"github.com/voyagen/m3ueditor/internal/store"
	"github.com/voyagen/m3ueditor/internal/store/storetest"
)

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "bbcone", normalizeName(" BBC One "))
	assert.Equal(t, "sky1hd", normalizeName("Sky-1 (HD)"))
	assert.Equal(t, "", normalizeName("--"))
}

func TestMapChannelsToEpg(t *testing.T) {
	ctx := context.Background()
	s := storetest.NewMemory()
	pl := newPlaylist(t, s)
	e := newEpg(t, s, pl.UserID)

	bbc, _ := s.UpsertEpgChannel(ctx, &models.EpgChannel{UserID: pl.UserID, EpgID: e.ID, ChannelID: "BBC1.uk", Name: "BBC One", DisplayName: "BBC One"})
	cnn, _ := s.UpsertEpgChannel(ctx, &models.EpgChannel{UserID: pl.UserID, EpgID: e.ID, ChannelID: "cnn.us", Name: "CNN International", DisplayName: "CNN International"})

	byStream, _ := s.UpsertChannel(ctx, &models.Channel{UserID: pl.UserID, PlaylistID: pl.ID, Name: "bbc", StreamID: strp("bbc1.UK"), URL: "u1"})
	byName, _ := s.UpsertChannel(ctx, &models.Channel{UserID: pl.UserID, PlaylistID: pl.ID, Name: "cnn-international", URL: "u2"})
	noMatch, _ := s.UpsertChannel(ctx, &models.Channel{UserID: pl.UserID, PlaylistID: pl.ID, Name: "Local TV", URL: "u3"})
	premapped, _ := s.UpsertChannel(ctx, &models.Channel{UserID: pl.UserID, PlaylistID: pl.ID, Name: "BBC One", URL: "u4"})
	require.NoError(t, s.SetChannelEpgChannel(ctx, premapped, &cnn))

	ids := []int64{byStream, byName, noMatch, premapped}
	n, err := MapChannelsToEpg(ctx, s, pl.UserID, e.ID, ids, false)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	get := func(id int64) *models.Channel {
		ch, err := s.GetChannel(ctx, id)
		require.NoError(t, err)
		return ch
	}
	assert.Equal(t, bbc, *get(byStream).EpgChannelID)
	assert.Equal(t, cnn, *get(byName).EpgChannelID)
	assert.Nil(t, get(noMatch).EpgChannelID)
	assert.Equal(t, cnn, *get(premapped).EpgChannelID, "kept without overwrite")

	n, err = MapChannelsToEpg(ctx, s, pl.UserID, e.ID, ids, true)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, bbc, *get(premapped).EpgChannelID, "remapped with overwrite")
}

func TestMapChannelsToEpg_otherUsersEpg(t *testing.T) {
	ctx := context.Background()
	s := storetest.NewMemory()
	pl := newPlaylist(t, s)
	e := newEpg(t, s, pl.UserID)

	_, err := MapChannelsToEpg(ctx, s, pl.UserID+1, e.ID, nil, false)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
