package service

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/jamesnetherton/m3u"

	"github.com/voyagen/m3ueditor/internal/models"
	"github.com/voyagen/m3ueditor/internal/store"
)

// GeneratePlaylist renders the enabled channels of the playlist, custom
// playlist or merged playlist addressed by uuid as an M3U document.
func GeneratePlaylist(ctx context.Context, s store.Store, uuid string) (*store.OutputTarget, io.Reader, error) {
	t, err := s.FindOutput(ctx, uuid)
	if err != nil {
		return nil, nil, fmt.Errorf("FindOutput: %w", err)
	}
	chs, err := s.ListOutputChannels(ctx, t.Kind, t.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("ListOutputChannels: %w", err)
	}
	body, err := m3u.Marshall(BuildPlaylist(t, chs))
	if err != nil {
		return nil, nil, fmt.Errorf("m3u.Marshall: %w", err)
	}
	return t, body, nil
}

// BuildPlaylist converts output channels into tracks. Channels without their own
// number are numbered from ChannelStart when the target auto-increments.
func BuildPlaylist(t *store.OutputTarget, chs []models.OutputChannel) m3u.Playlist {
	p := m3u.Playlist{Tracks: make([]m3u.Track, 0, len(chs))}
	next := t.ChannelStart
	for i := range chs {
		ch := &chs[i]

		var number *int
		switch {
		case ch.Number != nil:
			number = ch.Number
		case t.AutoChannelIncrement:
			n := next
			number = &n
			next++
		}

		track := m3u.Track{Name: ch.DisplayTitle(), Length: -1, URI: ch.URL}
		addTag := func(name, value string) {
			if value != "" {
				track.Tags = append(track.Tags, m3u.Tag{Name: name, Value: value})
			}
		}
		addTag("tvg-id", tvgID(ch))
		addTag("tvg-name", ch.DisplayName())
		addTag("tvg-logo", logoFor(ch))
		if number != nil {
			addTag("tvg-chno", strconv.Itoa(*number))
		}
		if ch.Shift != 0 {
			addTag("tvg-shift", strconv.Itoa(ch.Shift))
		}
		addTag("group-title", ch.Group)
		p.Tracks = append(p.Tracks, track)
	}
	return p
}

// tvgID prefers the mapped EPG channel's XMLTV id over the source stream id.
func tvgID(ch *models.OutputChannel) string {
	if ch.EpgXMLTVID != nil && *ch.EpgXMLTVID != "" {
		return *ch.EpgXMLTVID
	}
	if ch.StreamID != nil {
		return *ch.StreamID
	}
	return ""
}

func logoFor(ch *models.OutputChannel) string {
	if ch.LogoType == models.LogoTypeEpg && ch.EpgIcon != nil && *ch.EpgIcon != "" {
		return *ch.EpgIcon
	}
	if ch.Logo != nil {
		return *ch.Logo
	}
	return ""
}
