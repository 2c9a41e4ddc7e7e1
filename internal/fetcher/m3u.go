package fetcher

import (
	"bufio"
	"errors"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	reTvgName     = regexp.MustCompile(`tvg-name="([^"]*)"`)
	reTvgID       = regexp.MustCompile(`tvg-id="([^"]*)"`)
	reTvgLogo     = regexp.MustCompile(`tvg-logo="([^"]*)"`)
	reTvgShift    = regexp.MustCompile(`tvg-shift="([^"]*)"`)
	reTvgLanguage = regexp.MustCompile(`tvg-language="([^"]*)"`)
	reTvgCountry  = regexp.MustCompile(`tvg-country="([^"]*)"`)
	reGroup       = regexp.MustCompile(`group-title="([^"]*)"`)
)

const maxLineSize = 1024 * 1024

var errNoName = errors.New("no name from EXTINF")

// ParseM3U reads an M3U playlist from r and returns its entries in document order.
// Malformed entries (EXTINF without a usable name, URL without EXTINF) are skipped.
func ParseM3U(r io.Reader) ([]Entry, error) {
	var entries []Entry
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var extinf string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		upper := strings.ToUpper(line)

		switch {
		case line == "":
			continue
		case strings.HasPrefix(upper, "#EXTINF"):
			// A previous EXTINF without URL is dropped.
			extinf = line
		case strings.HasPrefix(line, "#"):
			// #EXTM3U, #EXTGRP, #EXTVLCOPT and other directives carry nothing we store.
			continue
		default:
			if extinf == "" {
				continue
			}
			e, err := entryFromEXTINF(extinf, line)
			extinf = ""
			if err != nil {
				continue
			}
			entries = append(entries, e)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func entryFromEXTINF(extinf, url string) (Entry, error) {
	title := commaTitle(extinf)
	name := matchFirst(reTvgName, extinf)
	if name == "" {
		name = title
	}
	if name == "" {
		name = matchFirst(reTvgID, extinf)
	}
	if name == "" {
		return Entry{}, errNoName
	}
	if title == "" {
		title = name
	}
	return Entry{
		Name:     name,
		Title:    title,
		URL:      url,
		Group:    matchFirst(reGroup, extinf),
		StreamID: matchFirstPtr(reTvgID, extinf),
		Logo:     matchFirstPtr(reTvgLogo, extinf),
		Lang:     matchFirstPtr(reTvgLanguage, extinf),
		Country:  matchFirstPtr(reTvgCountry, extinf),
		Shift:    parseShift(matchFirst(reTvgShift, extinf)),
	}, nil
}

// commaTitle returns the display text after the attribute list: everything
// after the first comma that is not inside a quoted attribute value.
func commaTitle(extinf string) string {
	inQuote := false
	for i, r := range extinf {
		switch r {
		case '"':
			inQuote = !inQuote
		case ',':
			if !inQuote {
				return strings.TrimSpace(extinf[i+1:])
			}
		}
	}
	return ""
}

func parseShift(s string) int {
	if s == "" {
		return 0
	}
	s = strings.TrimPrefix(s, "+")
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(math.Round(f))
	}
	return 0
}

func matchFirst(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}

func matchFirstPtr(re *regexp.Regexp, s string) *string {
	v := matchFirst(re, s)
	if v == "" {
		return nil
	}
	return &v
}
