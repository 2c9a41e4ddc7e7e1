package fetcher

// Entry is one parsed #EXTINF + URL pair of an M3U playlist.
type Entry struct {
	Name     string
	Title    string
	URL      string
	Group    string
	StreamID *string
	Logo     *string
	Lang     *string
	Country  *string
	Shift    int
}

// GuideChannel is a <channel> element of an XMLTV document.
type GuideChannel struct {
	ID          string
	DisplayName string
	Icon        *string
}

// Guide is the subset of an XMLTV document the EPG import uses.
type Guide struct {
	Channels   []GuideChannel
	Programmes int
}
