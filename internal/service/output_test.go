package service

import (
	"context"
	"io"
	"testing"

	"github.com/jamesnetherton/m3u"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyagen/m3ueditor/internal/models"
	"github.com/voyagen/m3ueditor/internal/store"
	"github.com/voyagen/m3ueditor/internal/store/storetest"
)

func tags(tr m3u.Track) map[string]string {
	out := map[string]string{}
	for _, tg := range tr.Tags {
		out[tg.Name] = tg.Value
	}
	return out
}

func TestBuildPlaylist(t *testing.T) {
	seven := 7
	chs := []models.OutputChannel{
		{
			Channel: models.Channel{
				Name: "bbc1", Title: "BBC One", NameCustom: strp("BBC 1"), TitleCustom: strp("The BBC"),
				URL: "http://s/1", Logo: strp("http://logo/src"), LogoType: models.LogoTypeEpg,
				StreamID: strp("bbc.src"), Group: "News", Shift: 2,
			},
			EpgXMLTVID: strp("bbc1.uk"),
			EpgIcon:    strp("http://logo/epg"),
		},
		{
			Channel: models.Channel{
				Name: "cnn", Title: "CNN", URL: "http://s/2", Logo: strp("http://logo/cnn"),
				LogoType: models.LogoTypeEpg, StreamID: strp("cnn.src"), Number: &seven,
			},
		},
		{
			Channel: models.Channel{Name: "local", URL: "http://s/3", LogoType: models.LogoTypeChannel},
		},
	}

	p := BuildPlaylist(&store.OutputTarget{AutoChannelIncrement: true, ChannelStart: 100}, chs)
	require.Len(t, p.Tracks, 3)

	first := p.Tracks[0]
	assert.Equal(t, "The BBC", first.Name)
	assert.Equal(t, "http://s/1", first.URI)
	assert.Equal(t, -1, first.Length)
	assert.Equal(t, map[string]string{
		"tvg-id":      "bbc1.uk",
		"tvg-name":    "BBC 1",
		"tvg-logo":    "http://logo/epg",
		"tvg-chno":    "100",
		"tvg-shift":   "2",
		"group-title": "News",
	}, tags(first))

	second := tags(p.Tracks[1])
	assert.Equal(t, "cnn.src", second["tvg-id"])
	assert.Equal(t, "http://logo/cnn", second["tvg-logo"], "epg logo preference without an icon falls back")
	assert.Equal(t, "7", second["tvg-chno"], "own number wins and does not consume the counter")

	third := tags(p.Tracks[2])
	assert.Equal(t, "101", third["tvg-chno"])
	assert.Equal(t, "local", p.Tracks[2].Name)
	_, hasLogo := third["tvg-logo"]
	assert.False(t, hasLogo)
}

func TestBuildPlaylist_noAutoIncrement(t *testing.T) {
	p := BuildPlaylist(&store.OutputTarget{ChannelStart: 1}, []models.OutputChannel{
		{Channel: models.Channel{Name: "a", URL: "http://s/a"}},
	})
	_, ok := tags(p.Tracks[0])["tvg-chno"]
	assert.False(t, ok)
}

func TestGeneratePlaylist_customPlaylist(t *testing.T) {
	ctx := context.Background()
	s := storetest.NewMemory()
	pl := newPlaylist(t, s)

	on, _ := s.UpsertChannel(ctx, &models.Channel{UserID: pl.UserID, PlaylistID: pl.ID, Name: "On", Title: "On", URL: "http://s/on"})
	off, _ := s.UpsertChannel(ctx, &models.Channel{UserID: pl.UserID, PlaylistID: pl.ID, Name: "Off", Title: "Off", URL: "http://s/off"})
	_, err := s.SetChannelsEnabled(ctx, pl.UserID, []int64{off}, false)
	require.NoError(t, err)

	cp := &models.CustomPlaylist{UserID: pl.UserID, Name: "Mine", AutoChannelIncrement: true, ChannelStart: 5}
	require.NoError(t, s.CreateCustomPlaylist(ctx, cp))
	require.NoError(t, s.SyncCustomPlaylistChannels(ctx, cp.ID, []int64{on, off}))

	target, body, err := GeneratePlaylist(ctx, s, cp.UUID)
	require.NoError(t, err)
	assert.Equal(t, models.OutputCustomPlaylist, target.Kind)

	raw, err := io.ReadAll(body)
	require.NoError(t, err)
	out := string(raw)
	assert.Contains(t, out, "#EXTM3U")
	assert.Contains(t, out, "http://s/on")
	assert.Contains(t, out, `tvg-chno="5"`)
	assert.NotContains(t, out, "http://s/off")
}

func TestGeneratePlaylist_unknownUUID(t *testing.T) {
	_, _, err := GeneratePlaylist(context.Background(), storetest.NewMemory(), "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
