package fetcher

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/ulikunitz/xz"
	"golang.org/x/text/encoding/charmap"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	xzMagic   = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
)

// decompress unwraps gzip or xz bodies by magic bytes; other bodies are returned unchanged.
func decompress(body []byte) ([]byte, error) {
	switch {
	case bytes.HasPrefix(body, gzipMagic):
		zr, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer zr.Close()
		out, err := io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		return out, nil
	case bytes.HasPrefix(body, xzMagic):
		xr, err := xz.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("xz: %w", err)
		}
		out, err := io.ReadAll(xr)
		if err != nil {
			return nil, fmt.Errorf("xz: %w", err)
		}
		return out, nil
	}
	return body, nil
}

// toUTF8 decodes legacy Windows-1252 playlists. Valid UTF-8 is returned unchanged.
func toUTF8(body []byte) []byte {
	body = bytes.TrimPrefix(body, []byte("\xef\xbb\xbf"))
	if utf8.Valid(body) {
		return body
	}
	out, err := charmap.Windows1252.NewDecoder().Bytes(body)
	if err != nil {
		return body
	}
	return out
}
