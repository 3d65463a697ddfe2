// Package image checks image selections before they leave the host.
package image

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	"image/png"
	"strings"

	"github.com/labi-le/clipsync/pkg/clipboard/eventful"
	"github.com/labi-le/clipsync/pkg/mime"
	"github.com/rs/zerolog"
	_ "golang.org/x/image/bmp"  // register decoder
	_ "golang.org/x/image/tiff" // register decoder
	_ "golang.org/x/image/webp" // register decoder
)

const (
	PNG = "image/png"
	// DefaultMaxPixels bounds decoded images.
	DefaultMaxPixels = 64 << 20
)

var (
	ErrTooLarge       = errors.New("image dimensions exceed limit")
	ErrFormatMismatch = errors.New("image format does not match target")
)

// Sanitizer drops image content that does not decode as its target says,
// and re-encodes image/png so metadata chunks never leave the host.
type Sanitizer struct {
	Logger    zerolog.Logger
	MaxPixels int
}

func NewSanitizer(logger zerolog.Logger) *Sanitizer {
	return &Sanitizer{Logger: logger, MaxPixels: DefaultMaxPixels}
}

// Filter has the signature of a selection content filter.
func (s *Sanitizer) Filter(target string, c eventful.Content) eventful.Content {
	if !mime.AsType(target).IsImage() || len(c.Data) == 0 {
		return c
	}

	data, err := s.Sanitize(target, c.Data)
	if err != nil {
		s.Logger.Warn().Err(err).Str("target", target).Msg("image dropped")
		return eventful.Content{}
	}

	c.Data = data
	return c
}

// Sanitize validates data for target. PNG targets accept any decodable
// format and always come back as PNG.
func (s *Sanitizer) Sanitize(target string, data []byte) ([]byte, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if s.MaxPixels > 0 && cfg.Width*cfg.Height > s.MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d", ErrTooLarge, cfg.Width, cfg.Height)
	}

	if !strings.EqualFold(target, PNG) {
		if !matches(target, format) {
			return nil, fmt.Errorf("%w: %s holds %s", ErrFormatMismatch, target, format)
		}
		return data, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// matches compares a mime target with a registered decoder name.
func matches(target, format string) bool {
	sub := strings.TrimPrefix(strings.ToLower(target), "image/")
	switch sub {
	case "jpg", "jpeg":
		return format == "jpeg"
	case "tif", "tiff":
		return format == "tiff"
	default:
		return sub == format
	}
}
