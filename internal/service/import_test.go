package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyagen/m3ueditor/internal/cache"
	"github.com/voyagen/m3ueditor/internal/fetcher"
	"github.com/voyagen/m3ueditor/internal/models"
	"github.com/voyagen/m3ueditor/internal/store"
	"github.com/voyagen/m3ueditor/internal/store/storetest"
)

type fakeFetcher struct {
	entries []fetcher.Entry
	guide   *fetcher.Guide
	raw     []byte
	err     error
	panic   bool
	calls   int
}

func (f *fakeFetcher) FetchM3U(context.Context, string) ([]fetcher.Entry, []byte, error) {
	f.calls++
	if f.panic {
		panic("parser exploded")
	}
	return f.entries, f.raw, f.err
}

func (f *fakeFetcher) FetchXMLTV(context.Context, string) (*fetcher.Guide, []byte, error) {
	f.calls++
	if f.panic {
		panic("parser exploded")
	}
	return f.guide, f.raw, f.err
}

type fakeArchive struct {
	saved map[string][]byte
}

func (a *fakeArchive) Save(kind, uuid, name string, data []byte) (string, error) {
	if a.saved == nil {
		a.saved = map[string][]byte{}
	}
	key := kind + "/" + uuid + "/" + name
	a.saved[key] = data
	return key, nil
}

type fakeLocker struct {
	err      error
	released int
}

func (l *fakeLocker) Lock(context.Context, string, int64) (func(), error) {
	if l.err != nil {
		return nil, l.err
	}
	return func() { l.released++ }, nil
}

type recordingObserver struct {
	mu       sync.Mutex
	statuses []string
}

func (o *recordingObserver) ObserveSync(_, status string, _ time.Duration, _ int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.statuses = append(o.statuses, status)
}

func strp(s string) *string { return &s }

func entry(name, group, url string) fetcher.Entry {
	return fetcher.Entry{Name: name, Title: name, Group: group, URL: url}
}

func newPlaylist(t *testing.T, s *storetest.Memory) *models.Playlist {
	t.Helper()
	ctx := context.Background()
	u := &models.User{Name: "owner", Email: "owner@example.com"}
	require.NoError(t, s.CreateUser(ctx, u))
	pl := &models.Playlist{UserID: u.ID, Name: "Main", URL: "http://example.com/list.m3u"}
	require.NoError(t, s.CreatePlaylist(ctx, pl))
	return pl
}

func channelIDs(chs []models.Channel) []int64 {
	ids := make([]int64, len(chs))
	for i, c := range chs {
		ids[i] = c.ID
	}
	return ids
}

func TestImportPlaylist_sharedGroup(t *testing.T) {
	s := storetest.NewMemory()
	pl := newPlaylist(t, s)
	f := &fakeFetcher{entries: []fetcher.Entry{
		entry("BBC One", "News", "http://s/1"),
		entry("CNN", "News", "http://s/2"),
	}}

	n, err := NewSyncer(s, f, Options{}).ImportPlaylist(context.Background(), pl.ID, true)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	groups := s.Groups(pl.ID)
	require.Len(t, groups, 1)
	assert.Equal(t, "News", groups[0].Name)

	chs := s.Channels(pl.ID)
	require.Len(t, chs, 2)
	for _, c := range chs {
		require.NotNil(t, c.GroupID)
		assert.Equal(t, groups[0].ID, *c.GroupID)
		assert.Equal(t, "News", c.Group)
	}

	got, err := s.GetPlaylist(context.Background(), pl.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
	assert.Equal(t, 2, got.Channels)
	assert.Nil(t, got.Errors)
	assert.NotNil(t, got.Synced)
}

func TestImportPlaylist_identityKey(t *testing.T) {
	s := storetest.NewMemory()
	pl := newPlaylist(t, s)
	f := &fakeFetcher{entries: []fetcher.Entry{
		entry("Sport 1", "Sports", "http://s/1"),
		entry("Sport 1", "Sports", "http://s/1-backup"),
		entry("Sport 1", "Sports HD", "http://s/1hd"),
		entry("Sport 1", "", "http://s/1-nogroup"),
	}}

	n, err := NewSyncer(s, f, Options{}).ImportPlaylist(context.Background(), pl.ID, true)
	require.NoError(t, err)
	assert.Equal(t, 3, n, "same name and group collapse to one channel")

	chs := s.Channels(pl.ID)
	require.Len(t, chs, 3)
	assert.Equal(t, "http://s/1-backup", chs[0].URL, "last entry wins")

	assert.Nil(t, chs[2].GroupID, "empty group label has no group row")
	assert.Len(t, s.Groups(pl.ID), 2)
}

func TestImportPlaylist_idempotent(t *testing.T) {
	s := storetest.NewMemory()
	pl := newPlaylist(t, s)
	f := &fakeFetcher{entries: []fetcher.Entry{
		entry("A", "G1", "http://s/a"),
		entry("B", "G2", "http://s/b"),
		entry("C", "", "http://s/c"),
	}}
	sy := NewSyncer(s, f, Options{})

	_, err := sy.ImportPlaylist(context.Background(), pl.ID, true)
	require.NoError(t, err)
	firstChannels := channelIDs(s.Channels(pl.ID))
	firstGroups := s.Groups(pl.ID)

	_, err = sy.ImportPlaylist(context.Background(), pl.ID, true)
	require.NoError(t, err)
	assert.Equal(t, firstChannels, channelIDs(s.Channels(pl.ID)))
	assert.Equal(t, len(firstGroups), len(s.Groups(pl.ID)))
	assert.Equal(t, firstGroups[0].ID, s.Groups(pl.ID)[0].ID)
}

func TestImportPlaylist_removesOrphans(t *testing.T) {
	ctx := context.Background()
	s := storetest.NewMemory()
	pl := newPlaylist(t, s)
	f := &fakeFetcher{entries: []fetcher.Entry{
		entry("A", "Keep", "http://s/a"),
		entry("B", "Gone", "http://s/b"),
	}}
	sy := NewSyncer(s, f, Options{})
	_, err := sy.ImportPlaylist(ctx, pl.ID, true)
	require.NoError(t, err)

	f.entries = []fetcher.Entry{entry("A", "Keep", "http://s/a2"), entry("D", "Keep", "http://s/d")}
	n, err := sy.ImportPlaylist(ctx, pl.ID, true)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	chs := s.Channels(pl.ID)
	require.Len(t, chs, 2)
	names := []string{chs[0].Name, chs[1].Name}
	assert.ElementsMatch(t, []string{"A", "D"}, names)

	groups := s.Groups(pl.ID)
	require.Len(t, groups, 1)
	assert.Equal(t, "Keep", groups[0].Name)
	for _, c := range chs {
		assert.Equal(t, groups[0].ID, *c.GroupID)
	}
}

func TestImportPlaylist_preservesUserFields(t *testing.T) {
	ctx := context.Background()
	s := storetest.NewMemory()
	pl := newPlaylist(t, s)
	f := &fakeFetcher{entries: []fetcher.Entry{{
		Name: "A", Title: "A", Group: "G", URL: "http://s/a", Logo: strp("http://logo/1"), Shift: 1,
	}}}
	sy := NewSyncer(s, f, Options{})
	_, err := sy.ImportPlaylist(ctx, pl.ID, true)
	require.NoError(t, err)

	id := s.Channels(pl.ID)[0].ID
	off, num, logoType, ecID := false, 7, models.LogoTypeEpg, int64(99)
	require.NoError(t, s.UpdateChannel(ctx, id, store.ChannelUpdate{
		Enabled: &off, NameCustom: strp("Mine"), TitleCustom: strp("My Title"),
		Number: &num, LogoType: &logoType, EpgChannelID: &ecID,
	}))

	f.entries[0].URL = "http://s/a-new"
	f.entries[0].Logo = strp("http://logo/2")
	f.entries[0].Shift = 3
	_, err = sy.ImportPlaylist(ctx, pl.ID, true)
	require.NoError(t, err)

	ch := s.Channels(pl.ID)[0]
	assert.Equal(t, id, ch.ID)
	assert.Equal(t, "http://s/a-new", ch.URL)
	assert.Equal(t, "http://logo/2", *ch.Logo)
	assert.Equal(t, 3, ch.Shift)
	assert.False(t, ch.Enabled)
	assert.Equal(t, "Mine", *ch.NameCustom)
	assert.Equal(t, "My Title", *ch.TitleCustom)
	assert.Equal(t, 7, *ch.Number)
	assert.Equal(t, models.LogoTypeEpg, ch.LogoType)
	assert.Equal(t, int64(99), *ch.EpgChannelID)
}

func TestImportPlaylist_fetchFailure(t *testing.T) {
	ctx := context.Background()
	s := storetest.NewMemory()
	pl := newPlaylist(t, s)
	obs := &recordingObserver{}
	f := &fakeFetcher{err: errors.New("HTTP 404")}

	_, err := NewSyncer(s, f, Options{Metrics: obs}).ImportPlaylist(ctx, pl.ID, true)
	require.Error(t, err)

	got, err := s.GetPlaylist(ctx, pl.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, got.Status)
	require.NotNil(t, got.Errors)
	assert.Contains(t, *got.Errors, "HTTP 404")
	assert.Equal(t, 0, got.Channels)
	assert.Equal(t, []string{"failed"}, obs.statuses)
}

func TestImportPlaylist_failureRecordsFinishTime(t *testing.T) {
	ctx := context.Background()
	s := storetest.NewMemory()
	pl := newPlaylist(t, s)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base
	clock := func() time.Time {
		t := now
		now = now.Add(time.Minute)
		return t
	}

	_, err := NewSyncer(s, &fakeFetcher{err: errors.New("HTTP 500")}, Options{Now: clock}).ImportPlaylist(ctx, pl.ID, true)
	require.Error(t, err)

	got, err := s.GetPlaylist(ctx, pl.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, got.Status)
	require.NotNil(t, got.Synced)
	assert.True(t, got.Synced.After(base), "failed sync stamps the finish time, not the start time")
}

func TestImportPlaylist_panicEndsFailed(t *testing.T) {
	ctx := context.Background()
	s := storetest.NewMemory()
	pl := newPlaylist(t, s)
	f := &fakeFetcher{panic: true}

	_, err := NewSyncer(s, f, Options{}).ImportPlaylist(ctx, pl.ID, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parser exploded")

	got, _ := s.GetPlaylist(ctx, pl.ID)
	assert.Equal(t, models.StatusFailed, got.Status)
	require.NotNil(t, got.Errors)
	assert.Contains(t, *got.Errors, "panic")
}

func TestImportPlaylist_storeErrorMidway(t *testing.T) {
	ctx := context.Background()
	s := storetest.NewMemory()
	pl := newPlaylist(t, s)
	s.FailOn["DeleteChannelsNotIn"] = errors.New("db gone")
	f := &fakeFetcher{entries: []fetcher.Entry{entry("A", "G", "http://s/a")}}

	_, err := NewSyncer(s, f, Options{}).ImportPlaylist(ctx, pl.ID, true)
	require.Error(t, err)

	got, _ := s.GetPlaylist(ctx, pl.ID)
	assert.Equal(t, models.StatusFailed, got.Status)
	assert.Len(t, s.Channels(pl.ID), 1, "rows written before the failure stay committed")
}

func TestImportPlaylist_cancelledContextStillRecordsStatus(t *testing.T) {
	s := storetest.NewMemory()
	pl := newPlaylist(t, s)
	f := &fakeFetcher{entries: []fetcher.Entry{entry("A", "G", "http://s/a")}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewSyncer(s, f, Options{}).ImportPlaylist(ctx, pl.ID, true)
	require.Error(t, err)

	got, _ := s.GetPlaylist(context.Background(), pl.ID)
	assert.Equal(t, models.StatusFailed, got.Status)
}

func TestImportPlaylist_dueness(t *testing.T) {
	ctx := context.Background()
	s := storetest.NewMemory()
	pl := newPlaylist(t, s)
	f := &fakeFetcher{entries: []fetcher.Entry{entry("A", "", "http://s/a")}}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sy := NewSyncer(s, f, Options{Now: func() time.Time { return now }})

	_, err := sy.ImportPlaylist(ctx, pl.ID, false)
	require.NoError(t, err, "never synced is due")

	_, err = sy.ImportPlaylist(ctx, pl.ID, false)
	assert.ErrorIs(t, err, ErrSkipped)
	assert.Equal(t, 1, f.calls)

	_, err = sy.ImportPlaylist(ctx, pl.ID, true)
	require.NoError(t, err)
	assert.Equal(t, 2, f.calls)

	now = now.Add(25 * time.Hour)
	_, err = sy.ImportPlaylist(ctx, pl.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 3, f.calls)
}

func TestImportPlaylist_locked(t *testing.T) {
	ctx := context.Background()
	s := storetest.NewMemory()
	pl := newPlaylist(t, s)
	f := &fakeFetcher{entries: []fetcher.Entry{entry("A", "", "http://s/a")}}

	held := &fakeLocker{err: cache.ErrLocked}
	_, err := NewSyncer(s, f, Options{Locker: held}).ImportPlaylist(ctx, pl.ID, true)
	assert.ErrorIs(t, err, ErrSkipped)
	assert.Zero(t, f.calls)

	got, _ := s.GetPlaylist(ctx, pl.ID)
	assert.Equal(t, models.StatusPending, got.Status, "a skipped run does not touch status")

	free := &fakeLocker{}
	_, err = NewSyncer(s, f, Options{Locker: free}).ImportPlaylist(ctx, pl.ID, true)
	require.NoError(t, err)
	assert.Equal(t, 1, free.released)

	broken := &fakeLocker{err: errors.New("redis down")}
	_, err = NewSyncer(s, f, Options{Locker: broken}).ImportPlaylist(ctx, pl.ID, true)
	assert.NoError(t, err, "lock backend errors do not block the import")
}

func TestImportPlaylist_archivesRaw(t *testing.T) {
	s := storetest.NewMemory()
	pl := newPlaylist(t, s)
	arch := &fakeArchive{}
	f := &fakeFetcher{entries: []fetcher.Entry{entry("A", "", "http://s/a")}, raw: []byte("#EXTM3U")}

	_, err := NewSyncer(s, f, Options{Archive: arch}).ImportPlaylist(context.Background(), pl.ID, true)
	require.NoError(t, err)
	assert.Equal(t, []byte("#EXTM3U"), arch.saved["playlist/"+pl.UUID+"/playlist.m3u"])
}

func TestImportPlaylist_missingPlaylist(t *testing.T) {
	s := storetest.NewMemory()
	_, err := NewSyncer(s, &fakeFetcher{}, Options{}).ImportPlaylist(context.Background(), 404, true)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
