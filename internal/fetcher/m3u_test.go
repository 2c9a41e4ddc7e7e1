package fetcher

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseM3U_empty(t *testing.T) {
	entries, err := ParseM3U(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestParseM3U_attributes(t *testing.T) {
	m3u := `#EXTM3U x-tvg-url="http://example.com/epg.xml"
#EXTINF:-1 tvg-id="bbc1.uk" tvg-name="BBC One" tvg-logo="http://img/bbc1.png" tvg-shift="+2" tvg-language="English" tvg-country="UK" group-title="News, UK",BBC One HD
#EXTVLCOPT:http-user-agent=VLC
http://example.com/bbc1.m3u8
`
	entries, err := ParseM3U(strings.NewReader(m3u))
	require.NoError(t, err)
	require.Len(t, entries, 1)

	e := entries[0]
	assert.Equal(t, "BBC One", e.Name)
	assert.Equal(t, "BBC One HD", e.Title)
	assert.Equal(t, "http://example.com/bbc1.m3u8", e.URL)
	assert.Equal(t, "News, UK", e.Group)
	require.NotNil(t, e.StreamID)
	assert.Equal(t, "bbc1.uk", *e.StreamID)
	require.NotNil(t, e.Logo)
	assert.Equal(t, "http://img/bbc1.png", *e.Logo)
	require.NotNil(t, e.Lang)
	assert.Equal(t, "English", *e.Lang)
	require.NotNil(t, e.Country)
	assert.Equal(t, "UK", *e.Country)
	assert.Equal(t, 2, e.Shift)
}

func TestParseM3U_nameFallbacks(t *testing.T) {
	m3u := `#EXTM3U
#EXTINF:-1,Plain Title
http://example.com/a
#EXTINF:-1 tvg-id="only.id",
http://example.com/b
#EXTINF:-1 group-title="Empty",
http://example.com/c
`
	entries, err := ParseM3U(strings.NewReader(m3u))
	require.NoError(t, err)
	require.Len(t, entries, 2, "entry without any name is skipped")

	assert.Equal(t, "Plain Title", entries[0].Name)
	assert.Equal(t, "Plain Title", entries[0].Title)
	assert.Empty(t, entries[0].Group)
	assert.Nil(t, entries[0].StreamID)

	assert.Equal(t, "only.id", entries[1].Name)
	assert.Equal(t, "only.id", entries[1].Title)
}

func TestParseM3U_skipsOrphansAndKeepsOrder(t *testing.T) {
	m3u := `#EXTM3U
http://example.com/no-extinf
#EXTINF:-1,Dropped (no URL follows)
#EXTINF:-1,First

http://example.com/1
#EXTINF:-1,Second
http://example.com/2
`
	entries, err := ParseM3U(strings.NewReader(m3u))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "First", entries[0].Name)
	assert.Equal(t, "Second", entries[1].Name)
}

func TestParseShift(t *testing.T) {
	assert.Equal(t, 0, parseShift(""))
	assert.Equal(t, -1, parseShift("-1"))
	assert.Equal(t, 3, parseShift("+3"))
	assert.Equal(t, 2, parseShift("1.5"))
	assert.Equal(t, 0, parseShift("abc"))
}

func TestCommaTitle(t *testing.T) {
	assert.Equal(t, "Title", commaTitle(`#EXTINF:-1,Title`))
	assert.Equal(t, "Title, Two", commaTitle(`#EXTINF:-1 group-title="a,b",Title, Two`))
	assert.Equal(t, `"Quoted" Show`, commaTitle(`#EXTINF:-1 tvg-name="x","Quoted" Show`))
	assert.Equal(t, "", commaTitle(`#EXTINF:-1 tvg-name="x"`))
}
