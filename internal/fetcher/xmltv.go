package fetcher

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

type xmlChannel struct {
	ID           string   `xml:"id,attr"`
	DisplayNames []string `xml:"display-name"`
	Icon         struct {
		Src string `xml:"src,attr"`
	} `xml:"icon"`
}

// ParseXMLTV streams an XMLTV document and returns its channels and the
// number of programmes. Malformed or id-less channels are skipped.
func ParseXMLTV(r io.Reader) (*Guide, error) {
	decoder := xml.NewDecoder(r)
	decoder.CharsetReader = charsetReader

	guide := &Guide{}
	seen := make(map[string]bool)
	var inTV bool
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("xml token: %w", err)
		}
		el, ok := token.(xml.StartElement)
		if !ok {
			continue
		}
		switch el.Name.Local {
		case "tv":
			inTV = true
		case "channel":
			if !inTV {
				continue
			}
			var raw xmlChannel
			if err := decoder.DecodeElement(&raw, &el); err != nil {
				continue
			}
			id := strings.TrimSpace(raw.ID)
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			ch := GuideChannel{ID: id}
			for _, n := range raw.DisplayNames {
				if n = strings.TrimSpace(n); n != "" {
					ch.DisplayName = n
					break
				}
			}
			if src := strings.TrimSpace(raw.Icon.Src); src != "" {
				ch.Icon = &src
			}
			guide.Channels = append(guide.Channels, ch)
		case "programme":
			if !inTV {
				continue
			}
			if err := decoder.Skip(); err != nil {
				return nil, fmt.Errorf("xml programme: %w", err)
			}
			guide.Programmes++
		}
	}
	if !inTV {
		return nil, fmt.Errorf("xml: missing <tv> root element")
	}
	return guide, nil
}

// charsetReader decodes the Latin-1 family of declared encodings; anything
// else is passed through and assumed to be UTF-8 compatible.
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(label) {
	case "iso-8859-1", "latin1", "latin-1":
		return charmap.ISO8859_1.NewDecoder().Reader(input), nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252.NewDecoder().Reader(input), nil
	case "iso-8859-15":
		return charmap.ISO8859_15.NewDecoder().Reader(input), nil
	}
	return input, nil
}
