package geometry

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"strings"
)

const pngDataURLPrefix = "data:image/png;base64,"

// BlankDataURL is a 1x1 transparent PNG, the placeholder snapshot for empty canvases
const BlankDataURL = pngDataURLPrefix + "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII="

var ErrNotPNGDataURL = errors.New("not a base64 PNG data URL")

// EncodePNG writes the raster as PNG.
func (s *Surface) EncodePNG(w io.Writer) error {
	return s.dc.EncodePNG(w)
}

// DataURL: raster snapshot in the form browsers put in <img src>
func (s *Surface) DataURL() (string, error) {
	var buf bytes.Buffer
	if err := s.EncodePNG(&buf); err != nil {
		return "", fmt.Errorf("encode png: %w", err)
	}
	return pngDataURLPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// LoadDataURL replaces the raster with a decoded snapshot, scaled to the
// current surface size. On error the raster is left untouched.
func (s *Surface) LoadDataURL(url string) error {
	img, err := DecodeDataURL(url)
	if err != nil {
		return err
	}

	s.Clear()
	s.replace(img, s.Width(), s.Height())
	return nil
}

// DecodeDataURL decodes a base64 PNG data URL.
func DecodeDataURL(url string) (image.Image, error) {
	if !strings.HasPrefix(url, pngDataURLPrefix) {
		return nil, ErrNotPNGDataURL
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(url, pngDataURLPrefix))
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}

	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode png: %w", err)
	}
	return img, nil
}
