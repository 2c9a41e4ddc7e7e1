// Package storetest provides an in-memory store.Store for tests.
package storetest

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voyagen/m3ueditor/internal/models"
	"github.com/voyagen/m3ueditor/internal/store"
)

// Memory is a mutex-guarded in-memory Store with the same uniqueness keys and
// cascades as the Postgres schema.
type Memory struct {
	mu     sync.Mutex
	nextID int64

	users     map[int64]*models.User
	playlists map[int64]*models.Playlist
	groups    map[int64]*models.Group
	channels  map[int64]*models.Channel
	epgs      map[int64]*models.Epg
	epgChans  map[int64]*models.EpgChannel
	customs   map[int64]*models.CustomPlaylist
	merged    map[int64]*models.MergedPlaylist

	customChannels map[int64][]int64 // custom playlist id -> channel ids
	mergedMembers  map[int64][]int64 // merged playlist id -> playlist ids

	// Now is used for timestamps; defaults to time.Now.
	Now func() time.Time
	// FailOn, when set, makes the named method return the error.
	FailOn map[string]error
}

var _ store.Store = (*Memory)(nil)

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{
		users:          map[int64]*models.User{},
		playlists:      map[int64]*models.Playlist{},
		groups:         map[int64]*models.Group{},
		channels:       map[int64]*models.Channel{},
		epgs:           map[int64]*models.Epg{},
		epgChans:       map[int64]*models.EpgChannel{},
		customs:        map[int64]*models.CustomPlaylist{},
		merged:         map[int64]*models.MergedPlaylist{},
		customChannels: map[int64][]int64{},
		mergedMembers:  map[int64][]int64{},
		Now:            time.Now,
		FailOn:         map[string]error{},
	}
}

func (m *Memory) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *Memory) now() *time.Time {
	t := m.Now()
	return &t
}

func (m *Memory) fail(op string) error {
	if err, ok := m.FailOn[op]; ok {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func notFound(op string) error { return fmt.Errorf("%s: %w", op, store.ErrNotFound) }

// --- users ---

func (m *Memory) CreateUser(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	for _, x := range m.users {
		if x.Email == u.Email {
			return fmt.Errorf("CreateUser: %w", store.ErrConflict)
		}
	}
	u.ID = m.id()
	u.CreatedAt = m.now()
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *Memory) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, notFound("GetUserByEmail")
}

func (m *Memory) GetUserByID(_ context.Context, id int64) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, notFound("GetUserByID")
	}
	cp := *u
	return &cp, nil
}

// --- playlists ---

func (m *Memory) CreatePlaylist(_ context.Context, p *models.Playlist) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.UUID == "" {
		p.UUID = uuid.NewString()
	}
	if p.ImportPrefs == nil {
		p.ImportPrefs = map[string]any{}
	}
	p.ID = m.id()
	p.SyncInterval = models.NormalizeSyncInterval(p.SyncInterval)
	p.Status = models.StatusPending
	p.CreatedAt, p.UpdatedAt = m.now(), m.now()
	cp := *p
	m.playlists[p.ID] = &cp
	return nil
}

func (m *Memory) GetPlaylist(_ context.Context, id int64) (*models.Playlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.playlists[id]
	if !ok {
		return nil, notFound("GetPlaylist")
	}
	cp := *p
	return &cp, nil
}

func (m *Memory) ListPlaylists(_ context.Context, userID int64) ([]models.Playlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Playlist
	for _, p := range m.playlists {
		if p.UserID == userID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) UpdatePlaylist(_ context.Context, id int64, f store.PlaylistUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.playlists[id]
	if !ok {
		return notFound("UpdatePlaylist")
	}
	if f.Name != nil {
		p.Name = *f.Name
	}
	if f.URL != nil {
		p.URL = *f.URL
	}
	if f.SyncInterval != nil {
		p.SyncInterval = models.NormalizeSyncInterval(*f.SyncInterval)
	}
	if f.ImportPrefs != nil {
		p.ImportPrefs = f.ImportPrefs
	}
	p.UpdatedAt = m.now()
	return nil
}

func (m *Memory) DeletePlaylist(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.playlists[id]; !ok {
		return notFound("DeletePlaylist")
	}
	delete(m.playlists, id)
	for gid, g := range m.groups {
		if g.PlaylistID == id {
			delete(m.groups, gid)
		}
	}
	for cid, c := range m.channels {
		if c.PlaylistID == id {
			m.deleteChannelLocked(cid)
		}
	}
	for mid, members := range m.mergedMembers {
		m.mergedMembers[mid] = slices.DeleteFunc(members, func(x int64) bool { return x == id })
	}
	return nil
}

func (m *Memory) UpdatePlaylistSync(_ context.Context, id int64, s models.SyncState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("UpdatePlaylistSync"); err != nil {
		return err
	}
	p, ok := m.playlists[id]
	if !ok {
		return notFound("UpdatePlaylistSync")
	}
	p.Status = s.Status
	p.Errors = s.Errors
	if s.Status != models.StatusProcessing {
		p.Channels = s.Count
	}
	if !s.Synced.IsZero() {
		t := s.Synced
		p.Synced = &t
	}
	p.UpdatedAt = m.now()
	return nil
}

func (m *Memory) ListDuePlaylists(_ context.Context, now time.Time) ([]models.Playlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Playlist
	for _, p := range m.playlists {
		if p.Status == models.StatusProcessing && p.UpdatedAt != nil && p.UpdatedAt.After(now.Add(-time.Hour)) {
			continue
		}
		if models.IsDue(p.Synced, p.SyncInterval, now) {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- groups ---

func (m *Memory) GetOrCreateGroup(_ context.Context, userID, playlistID int64, name string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("GetOrCreateGroup"); err != nil {
		return 0, err
	}
	for _, g := range m.groups {
		if g.PlaylistID == playlistID && g.Name == name {
			g.UpdatedAt = m.now()
			return g.ID, nil
		}
	}
	g := &models.Group{ID: m.id(), UserID: userID, PlaylistID: playlistID, Name: name,
		CreatedAt: m.now(), UpdatedAt: m.now()}
	m.groups[g.ID] = g
	return g.ID, nil
}

func (m *Memory) CreateGroup(_ context.Context, g *models.Group) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.groups {
		if x.PlaylistID == g.PlaylistID && x.Name == g.Name {
			return fmt.Errorf("CreateGroup: %w", store.ErrConflict)
		}
	}
	g.ID = m.id()
	g.CreatedAt, g.UpdatedAt = m.now(), m.now()
	cp := *g
	m.groups[g.ID] = &cp
	return nil
}

func (m *Memory) groupWithRef(g *models.Group) models.Group {
	out := *g
	if p, ok := m.playlists[g.PlaylistID]; ok {
		out.Playlist = &models.PlaylistRef{ID: p.ID, Name: p.Name}
	}
	return out
}

func (m *Memory) GetGroup(_ context.Context, id int64) (*models.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[id]
	if !ok {
		return nil, notFound("GetGroup")
	}
	out := m.groupWithRef(g)
	return &out, nil
}

func (m *Memory) ListGroups(_ context.Context, userID int64) ([]models.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Group
	for _, g := range m.groups {
		if g.UserID == userID {
			out = append(out, m.groupWithRef(g))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) UpdateGroup(_ context.Context, id int64, f store.GroupUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[id]
	if !ok {
		return notFound("UpdateGroup")
	}
	if f.Name != nil {
		g.Name = *f.Name
		for _, c := range m.channels {
			if c.GroupID != nil && *c.GroupID == id {
				c.Group = *f.Name
			}
		}
	}
	if f.PlaylistID != nil {
		g.PlaylistID = *f.PlaylistID
	}
	g.UpdatedAt = m.now()
	return nil
}

func (m *Memory) DeleteGroup(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.groups[id]; !ok {
		return notFound("DeleteGroup")
	}
	m.deleteGroupLocked(id)
	return nil
}

func (m *Memory) deleteGroupLocked(id int64) {
	delete(m.groups, id)
	for _, c := range m.channels {
		if c.GroupID != nil && *c.GroupID == id {
			c.GroupID = nil
		}
	}
}

func (m *Memory) DeleteGroupsNotIn(_ context.Context, playlistID int64, keep []int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, g := range m.groups {
		if g.PlaylistID == playlistID && !slices.Contains(keep, id) {
			m.deleteGroupLocked(id)
			n++
		}
	}
	return n, nil
}

// --- channels ---

func (m *Memory) UpsertChannel(_ context.Context, ch *models.Channel) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("UpsertChannel"); err != nil {
		return 0, err
	}
	for _, c := range m.channels {
		if c.PlaylistID == ch.PlaylistID && c.Name == ch.Name && c.Group == ch.Group {
			c.GroupID = ch.GroupID
			c.Title = ch.Title
			c.URL = ch.URL
			c.Logo = ch.Logo
			c.StreamID = ch.StreamID
			c.Shift = ch.Shift
			c.Lang = ch.Lang
			c.Country = ch.Country
			c.UpdatedAt = m.now()
			ch.ID = c.ID
			return c.ID, nil
		}
	}
	c := &models.Channel{
		ID: m.id(), UserID: ch.UserID, PlaylistID: ch.PlaylistID, GroupID: ch.GroupID,
		Group: ch.Group, Name: ch.Name, Title: ch.Title, URL: ch.URL, Logo: ch.Logo,
		LogoType: models.LogoTypeChannel, StreamID: ch.StreamID, Shift: ch.Shift,
		Lang: ch.Lang, Country: ch.Country, Enabled: true,
		CreatedAt: m.now(), UpdatedAt: m.now(),
	}
	m.channels[c.ID] = c
	ch.ID = c.ID
	return c.ID, nil
}

func (m *Memory) CreateChannel(_ context.Context, ch *models.Channel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch.GroupID != nil {
		if g, ok := m.groups[*ch.GroupID]; ok {
			ch.Group = g.Name
		}
	}
	for _, c := range m.channels {
		if c.PlaylistID == ch.PlaylistID && c.Name == ch.Name && c.Group == ch.Group {
			return fmt.Errorf("CreateChannel: %w", store.ErrConflict)
		}
	}
	if ch.LogoType == "" {
		ch.LogoType = models.LogoTypeChannel
	}
	ch.ID = m.id()
	ch.CreatedAt, ch.UpdatedAt = m.now(), m.now()
	cp := *ch
	m.channels[ch.ID] = &cp
	return nil
}

func (m *Memory) channelWithRefs(c *models.Channel) models.Channel {
	out := *c
	if p, ok := m.playlists[c.PlaylistID]; ok {
		out.Playlist = &models.PlaylistRef{ID: p.ID, Name: p.Name}
	}
	if c.GroupID != nil {
		if g, ok := m.groups[*c.GroupID]; ok {
			out.GroupRef = &models.GroupRef{ID: g.ID, Name: g.Name}
		}
	}
	return out
}

func (m *Memory) GetChannel(_ context.Context, id int64) (*models.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.channels[id]
	if !ok {
		return nil, notFound("GetChannel")
	}
	out := m.channelWithRefs(c)
	return &out, nil
}

func (m *Memory) ListChannels(_ context.Context, f store.ChannelFilter) ([]models.Channel, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	search := strings.ToLower(strings.TrimSpace(f.Search))
	var all []models.Channel
	for _, c := range m.channels {
		if c.UserID != f.UserID {
			continue
		}
		if f.PlaylistID != nil && c.PlaylistID != *f.PlaylistID {
			continue
		}
		if f.GroupID != nil && (c.GroupID == nil || *c.GroupID != *f.GroupID) {
			continue
		}
		if f.Enabled != nil && c.Enabled != *f.Enabled {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(c.Name), search) &&
			!strings.Contains(strings.ToLower(c.Title), search) {
			continue
		}
		all = append(all, m.channelWithRefs(c))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	total := len(all)
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	start := min(max(f.Offset, 0), total)
	end := min(start+limit, total)
	return all[start:end], total, nil
}

func (m *Memory) ListChannelsByIDs(_ context.Context, userID int64, ids []int64) ([]models.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Channel
	for _, id := range ids {
		if c, ok := m.channels[id]; ok && c.UserID == userID {
			out = append(out, m.channelWithRefs(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) UpdateChannel(_ context.Context, id int64, f store.ChannelUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.channels[id]
	if !ok {
		return notFound("UpdateChannel")
	}
	if f.Name != nil {
		c.Name = *f.Name
	}
	if f.URL != nil {
		c.URL = *f.URL
	}
	if f.PlaylistID != nil {
		c.PlaylistID = *f.PlaylistID
	}
	if f.GroupID != nil {
		gid := *f.GroupID
		c.GroupID = &gid
		c.Group = ""
		if g, ok := m.groups[gid]; ok {
			c.Group = g.Name
		}
	}
	if f.Enabled != nil {
		c.Enabled = *f.Enabled
	}
	if f.Shift != nil {
		c.Shift = *f.Shift
	}
	if f.Logo != nil {
		c.Logo = ptr(*f.Logo)
	}
	if f.LogoType != nil {
		c.LogoType = *f.LogoType
	}
	if f.NameCustom != nil {
		c.NameCustom = ptr(*f.NameCustom)
	}
	if f.TitleCustom != nil {
		c.TitleCustom = ptr(*f.TitleCustom)
	}
	if f.Number != nil {
		c.Number = ptr(*f.Number)
	}
	if f.EpgChannelID != nil {
		c.EpgChannelID = ptr(*f.EpgChannelID)
	}
	c.UpdatedAt = m.now()
	return nil
}

func (m *Memory) DeleteChannel(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.channels[id]; !ok {
		return notFound("DeleteChannel")
	}
	m.deleteChannelLocked(id)
	return nil
}

func (m *Memory) deleteChannelLocked(id int64) {
	delete(m.channels, id)
	for cpID, ids := range m.customChannels {
		m.customChannels[cpID] = slices.DeleteFunc(ids, func(x int64) bool { return x == id })
	}
}

func (m *Memory) DeleteChannelsNotIn(_ context.Context, playlistID int64, keep []int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("DeleteChannelsNotIn"); err != nil {
		return 0, err
	}
	var n int64
	for id, c := range m.channels {
		if c.PlaylistID == playlistID && !slices.Contains(keep, id) {
			m.deleteChannelLocked(id)
			n++
		}
	}
	return n, nil
}

func (m *Memory) eachOwnedChannel(userID int64, ids []int64, fn func(*models.Channel) bool) int64 {
	var n int64
	for _, id := range ids {
		if c, ok := m.channels[id]; ok && c.UserID == userID && fn(c) {
			c.UpdatedAt = m.now()
			n++
		}
	}
	return n
}

func (m *Memory) SetChannelsEnabled(_ context.Context, userID int64, ids []int64, enabled bool) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.eachOwnedChannel(userID, ids, func(c *models.Channel) bool {
		c.Enabled = enabled
		return true
	}), nil
}

func (m *Memory) MoveChannelsToGroup(_ context.Context, userID int64, ids []int64, g *models.Group) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.eachOwnedChannel(userID, ids, func(c *models.Channel) bool {
		if c.PlaylistID != g.PlaylistID {
			return false
		}
		c.GroupID = ptr(g.ID)
		c.Group = g.Name
		return true
	}), nil
}

func (m *Memory) SetChannelsLogoType(_ context.Context, userID int64, ids []int64, logoType string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.eachOwnedChannel(userID, ids, func(c *models.Channel) bool {
		c.LogoType = logoType
		return true
	}), nil
}

func (m *Memory) SetChannelEpgChannel(_ context.Context, channelID int64, epgChannelID *int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.channels[channelID]
	if !ok {
		return notFound("SetChannelEpgChannel")
	}
	c.EpgChannelID = epgChannelID
	c.UpdatedAt = m.now()
	return nil
}

func (m *Memory) ListOutputChannels(_ context.Context, kind string, id int64) ([]models.OutputChannel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var selected []*models.Channel
	switch kind {
	case models.OutputPlaylist:
		for _, c := range m.channels {
			if c.PlaylistID == id {
				selected = append(selected, c)
			}
		}
	case models.OutputCustomPlaylist:
		for _, cid := range m.customChannels[id] {
			if c, ok := m.channels[cid]; ok {
				selected = append(selected, c)
			}
		}
	case models.OutputMergedPlaylist:
		members := m.mergedMembers[id]
		for _, c := range m.channels {
			if slices.Contains(members, c.PlaylistID) {
				selected = append(selected, c)
			}
		}
	default:
		return nil, fmt.Errorf("ListOutputChannels: unknown kind %q", kind)
	}
	sort.Slice(selected, func(i, j int) bool {
		if selected[i].PlaylistID != selected[j].PlaylistID && kind == models.OutputMergedPlaylist {
			return selected[i].PlaylistID < selected[j].PlaylistID
		}
		return selected[i].ID < selected[j].ID
	})
	var out []models.OutputChannel
	for _, c := range selected {
		if !c.Enabled {
			continue
		}
		oc := models.OutputChannel{Channel: m.channelWithRefs(c)}
		if c.EpgChannelID != nil {
			if ec, ok := m.epgChans[*c.EpgChannelID]; ok {
				oc.EpgXMLTVID = ptr(ec.ChannelID)
				oc.EpgIcon = ec.Icon
			}
		}
		out = append(out, oc)
	}
	return out, nil
}

// --- epgs ---

func (m *Memory) CreateEpg(_ context.Context, e *models.Epg) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.UUID == "" {
		e.UUID = uuid.NewString()
	}
	e.ID = m.id()
	e.SyncInterval = models.NormalizeSyncInterval(e.SyncInterval)
	e.Status = models.StatusPending
	e.CreatedAt, e.UpdatedAt = m.now(), m.now()
	cp := *e
	m.epgs[e.ID] = &cp
	return nil
}

func (m *Memory) GetEpg(_ context.Context, id int64) (*models.Epg, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.epgs[id]
	if !ok {
		return nil, notFound("GetEpg")
	}
	cp := *e
	return &cp, nil
}

func (m *Memory) ListEpgs(_ context.Context, userID int64) ([]models.Epg, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Epg
	for _, e := range m.epgs {
		if e.UserID == userID {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) UpdateEpg(_ context.Context, id int64, f store.EpgUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.epgs[id]
	if !ok {
		return notFound("UpdateEpg")
	}
	if f.Name != nil {
		e.Name = *f.Name
	}
	if f.URL != nil {
		e.URL = *f.URL
	}
	if f.SyncInterval != nil {
		e.SyncInterval = models.NormalizeSyncInterval(*f.SyncInterval)
	}
	e.UpdatedAt = m.now()
	return nil
}

func (m *Memory) DeleteEpg(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.epgs[id]; !ok {
		return notFound("DeleteEpg")
	}
	delete(m.epgs, id)
	for ecID, ec := range m.epgChans {
		if ec.EpgID == id {
			m.deleteEpgChannelLocked(ecID)
		}
	}
	return nil
}

func (m *Memory) deleteEpgChannelLocked(id int64) {
	delete(m.epgChans, id)
	for _, c := range m.channels {
		if c.EpgChannelID != nil && *c.EpgChannelID == id {
			c.EpgChannelID = nil
		}
	}
}

func (m *Memory) UpdateEpgSync(_ context.Context, id int64, s models.SyncState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.epgs[id]
	if !ok {
		return notFound("UpdateEpgSync")
	}
	e.Status = s.Status
	e.Errors = s.Errors
	if s.Status != models.StatusProcessing {
		e.ChannelCount = s.Count
		e.ProgrammeCount = s.Programmes
	}
	if !s.Synced.IsZero() {
		t := s.Synced
		e.Synced = &t
	}
	e.UpdatedAt = m.now()
	return nil
}

func (m *Memory) ListDueEpgs(_ context.Context, now time.Time) ([]models.Epg, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Epg
	for _, e := range m.epgs {
		if e.Status == models.StatusProcessing && e.UpdatedAt != nil && e.UpdatedAt.After(now.Add(-time.Hour)) {
			continue
		}
		if models.IsDue(e.Synced, e.SyncInterval, now) {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) UpsertEpgChannel(_ context.Context, ch *models.EpgChannel) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ec := range m.epgChans {
		if ec.EpgID == ch.EpgID && ec.ChannelID == ch.ChannelID {
			ec.Name, ec.DisplayName, ec.Icon = ch.Name, ch.DisplayName, ch.Icon
			ch.ID = ec.ID
			return ec.ID, nil
		}
	}
	ch.ID = m.id()
	cp := *ch
	m.epgChans[ch.ID] = &cp
	return ch.ID, nil
}

func (m *Memory) DeleteEpgChannelsNotIn(_ context.Context, epgID int64, keep []int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, ec := range m.epgChans {
		if ec.EpgID == epgID && !slices.Contains(keep, id) {
			m.deleteEpgChannelLocked(id)
			n++
		}
	}
	return n, nil
}

func (m *Memory) ListEpgChannels(_ context.Context, epgID int64) ([]models.EpgChannel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.EpgChannel
	for _, ec := range m.epgChans {
		if ec.EpgID == epgID {
			out = append(out, *ec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- collections ---

func (m *Memory) CreateCustomPlaylist(_ context.Context, cp *models.CustomPlaylist) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cp.UUID == "" {
		cp.UUID = uuid.NewString()
	}
	if cp.ChannelStart == 0 {
		cp.ChannelStart = 1
	}
	cp.ID = m.id()
	cp.CreatedAt, cp.UpdatedAt = m.now(), m.now()
	c := *cp
	c.Channels = nil
	m.customs[cp.ID] = &c
	return nil
}

func (m *Memory) customWithChannels(cp *models.CustomPlaylist) models.CustomPlaylist {
	out := *cp
	out.Channels = []models.ChannelRef{}
	ids := slices.Clone(m.customChannels[cp.ID])
	slices.Sort(ids)
	for _, id := range ids {
		if c, ok := m.channels[id]; ok {
			out.Channels = append(out.Channels, models.ChannelRef{ID: c.ID, Name: c.Name})
		}
	}
	return out
}

func (m *Memory) GetCustomPlaylist(_ context.Context, id int64) (*models.CustomPlaylist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp, ok := m.customs[id]
	if !ok {
		return nil, notFound("GetCustomPlaylist")
	}
	out := m.customWithChannels(cp)
	return &out, nil
}

func (m *Memory) ListCustomPlaylists(_ context.Context, userID int64) ([]models.CustomPlaylist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.CustomPlaylist
	for _, cp := range m.customs {
		if cp.UserID == userID {
			out = append(out, m.customWithChannels(cp))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) UpdateCustomPlaylist(_ context.Context, id int64, f store.CollectionUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp, ok := m.customs[id]
	if !ok {
		return notFound("UpdateCustomPlaylist")
	}
	applyCollection(&cp.Name, &cp.AutoChannelIncrement, &cp.ChannelStart, f)
	cp.UpdatedAt = m.now()
	return nil
}

func (m *Memory) DeleteCustomPlaylist(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.customs[id]; !ok {
		return notFound("DeleteCustomPlaylist")
	}
	delete(m.customs, id)
	delete(m.customChannels, id)
	return nil
}

func (m *Memory) AttachCustomPlaylistChannels(_ context.Context, id int64, channelIDs []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.customs[id]; !ok {
		return notFound("AttachCustomPlaylistChannels")
	}
	for _, cid := range channelIDs {
		if !slices.Contains(m.customChannels[id], cid) {
			m.customChannels[id] = append(m.customChannels[id], cid)
		}
	}
	return nil
}

func (m *Memory) SyncCustomPlaylistChannels(_ context.Context, id int64, channelIDs []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.customs[id]; !ok {
		return notFound("SyncCustomPlaylistChannels")
	}
	m.customChannels[id] = dedupe(channelIDs)
	return nil
}

func (m *Memory) CreateMergedPlaylist(_ context.Context, mp *models.MergedPlaylist) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mp.UUID == "" {
		mp.UUID = uuid.NewString()
	}
	if mp.ChannelStart == 0 {
		mp.ChannelStart = 1
	}
	mp.ID = m.id()
	mp.CreatedAt, mp.UpdatedAt = m.now(), m.now()
	c := *mp
	c.Playlists = nil
	m.merged[mp.ID] = &c
	return nil
}

func (m *Memory) mergedWithPlaylists(mp *models.MergedPlaylist) models.MergedPlaylist {
	out := *mp
	out.Playlists = []models.PlaylistRef{}
	out.ChannelsCount, out.EnabledChannelsCount = 0, 0
	members := slices.Clone(m.mergedMembers[mp.ID])
	slices.Sort(members)
	for _, pid := range members {
		if p, ok := m.playlists[pid]; ok {
			out.Playlists = append(out.Playlists, models.PlaylistRef{ID: p.ID, Name: p.Name})
		}
	}
	for _, c := range m.channels {
		if slices.Contains(members, c.PlaylistID) {
			out.ChannelsCount++
			if c.Enabled {
				out.EnabledChannelsCount++
			}
		}
	}
	return out
}

func (m *Memory) GetMergedPlaylist(_ context.Context, id int64) (*models.MergedPlaylist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mp, ok := m.merged[id]
	if !ok {
		return nil, notFound("GetMergedPlaylist")
	}
	out := m.mergedWithPlaylists(mp)
	return &out, nil
}

func (m *Memory) ListMergedPlaylists(_ context.Context, userID int64) ([]models.MergedPlaylist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.MergedPlaylist
	for _, mp := range m.merged {
		if mp.UserID == userID {
			out = append(out, m.mergedWithPlaylists(mp))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) UpdateMergedPlaylist(_ context.Context, id int64, f store.CollectionUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mp, ok := m.merged[id]
	if !ok {
		return notFound("UpdateMergedPlaylist")
	}
	applyCollection(&mp.Name, &mp.AutoChannelIncrement, &mp.ChannelStart, f)
	mp.UpdatedAt = m.now()
	return nil
}

func (m *Memory) DeleteMergedPlaylist(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.merged[id]; !ok {
		return notFound("DeleteMergedPlaylist")
	}
	delete(m.merged, id)
	delete(m.mergedMembers, id)
	return nil
}

func (m *Memory) SyncMergedPlaylistPlaylists(_ context.Context, id int64, playlistIDs []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.merged[id]; !ok {
		return notFound("SyncMergedPlaylistPlaylists")
	}
	m.mergedMembers[id] = dedupe(playlistIDs)
	return nil
}

func (m *Memory) FindOutput(_ context.Context, id string) (*store.OutputTarget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.playlists {
		if p.UUID == id {
			return &store.OutputTarget{Kind: models.OutputPlaylist, ID: p.ID, Name: p.Name, ChannelStart: 1}, nil
		}
	}
	for _, cp := range m.customs {
		if cp.UUID == id {
			return &store.OutputTarget{Kind: models.OutputCustomPlaylist, ID: cp.ID, Name: cp.Name,
				AutoChannelIncrement: cp.AutoChannelIncrement, ChannelStart: cp.ChannelStart}, nil
		}
	}
	for _, mp := range m.merged {
		if mp.UUID == id {
			return &store.OutputTarget{Kind: models.OutputMergedPlaylist, ID: mp.ID, Name: mp.Name,
				AutoChannelIncrement: mp.AutoChannelIncrement, ChannelStart: mp.ChannelStart}, nil
		}
	}
	return nil, notFound("FindOutput")
}

func (m *Memory) OwnedIDs(_ context.Context, table string, userID int64, ids []int64) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	owner := func(id int64) (int64, bool) {
		switch table {
		case store.OwnedPlaylists:
			if x, ok := m.playlists[id]; ok {
				return x.UserID, true
			}
		case store.OwnedGroups:
			if x, ok := m.groups[id]; ok {
				return x.UserID, true
			}
		case store.OwnedChannels:
			if x, ok := m.channels[id]; ok {
				return x.UserID, true
			}
		case store.OwnedEpgs:
			if x, ok := m.epgs[id]; ok {
				return x.UserID, true
			}
		case store.OwnedCustomPlaylists:
			if x, ok := m.customs[id]; ok {
				return x.UserID, true
			}
		case store.OwnedEpgChannels:
			if x, ok := m.epgChans[id]; ok {
				return x.UserID, true
			}
		}
		return 0, false
	}
	var out []int64
	for _, id := range dedupe(ids) {
		if uid, ok := owner(id); ok && uid == userID {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out, nil
}

// --- test helpers ---

// Channels returns a snapshot of every channel of a playlist ordered by id.
func (m *Memory) Channels(playlistID int64) []models.Channel {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Channel
	for _, c := range m.channels {
		if c.PlaylistID == playlistID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Groups returns a snapshot of every group of a playlist ordered by id.
func (m *Memory) Groups(playlistID int64) []models.Group {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Group
	for _, g := range m.groups {
		if g.PlaylistID == playlistID {
			out = append(out, *g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func applyCollection(name *string, auto *bool, start *int, f store.CollectionUpdate) {
	if f.Name != nil {
		*name = *f.Name
	}
	if f.AutoChannelIncrement != nil {
		*auto = *f.AutoChannelIncrement
	}
	if f.ChannelStart != nil {
		*start = *f.ChannelStart
	}
}

func dedupe(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

func ptr[T any](v T) *T { return &v }
