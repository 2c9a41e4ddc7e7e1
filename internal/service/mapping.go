package service

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/voyagen/m3ueditor/internal/models"
	"github.com/voyagen/m3ueditor/internal/store"
)

// MapChannelsToEpg links the user's selected channels to channels of an EPG.
// A channel matches on stream id = XMLTV id (case-insensitive), else on its
// normalised custom name, name or title = the EPG channel's normalised display
// name or name. Already-mapped channels are left alone unless overwrite is set.
// Returns the number of channels mapped.
func MapChannelsToEpg(ctx context.Context, s store.Store, userID, epgID int64, channelIDs []int64, overwrite bool) (int, error) {
	e, err := s.GetEpg(ctx, epgID)
	if err != nil {
		return 0, fmt.Errorf("GetEpg: %w", err)
	}
	if e.UserID != userID {
		return 0, fmt.Errorf("GetEpg: %w", store.ErrNotFound)
	}
	ecs, err := s.ListEpgChannels(ctx, epgID)
	if err != nil {
		return 0, fmt.Errorf("ListEpgChannels: %w", err)
	}
	idx := newEpgIndex(ecs)

	chs, err := s.ListChannelsByIDs(ctx, userID, channelIDs)
	if err != nil {
		return 0, fmt.Errorf("ListChannelsByIDs: %w", err)
	}
	mapped := 0
	for i := range chs {
		ch := &chs[i]
		if ch.EpgChannelID != nil && !overwrite {
			continue
		}
		ecID, ok := idx.match(ch)
		if !ok {
			continue
		}
		if ch.EpgChannelID == nil || *ch.EpgChannelID != ecID {
			if err := s.SetChannelEpgChannel(ctx, ch.ID, &ecID); err != nil {
				return mapped, fmt.Errorf("SetChannelEpgChannel: %w", err)
			}
		}
		mapped++
	}
	return mapped, nil
}

type epgIndex struct {
	byID   map[string]int64
	byName map[string]int64
}

// newEpgIndex indexes EPG channels; the first channel wins on collisions.
func newEpgIndex(ecs []models.EpgChannel) *epgIndex {
	idx := &epgIndex{byID: map[string]int64{}, byName: map[string]int64{}}
	add := func(m map[string]int64, key string, id int64) {
		if key == "" {
			return
		}
		if _, ok := m[key]; !ok {
			m[key] = id
		}
	}
	for _, ec := range ecs {
		add(idx.byID, strings.ToLower(strings.TrimSpace(ec.ChannelID)), ec.ID)
		add(idx.byName, normalizeName(ec.DisplayName), ec.ID)
		add(idx.byName, normalizeName(ec.Name), ec.ID)
	}
	return idx
}

func (idx *epgIndex) match(ch *models.Channel) (int64, bool) {
	if ch.StreamID != nil {
		if id, ok := idx.byID[strings.ToLower(strings.TrimSpace(*ch.StreamID))]; ok {
			return id, true
		}
	}
	candidates := []string{ch.Name, ch.Title}
	if ch.NameCustom != nil {
		candidates = append([]string{*ch.NameCustom}, candidates...)
	}
	for _, c := range candidates {
		if id, ok := idx.byName[normalizeName(c)]; ok {
			return id, true
		}
	}
	return 0, false
}

// normalizeName lowercases s and keeps only letters and digits.
func normalizeName(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
