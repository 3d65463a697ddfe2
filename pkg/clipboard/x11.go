//go:build linux || freebsd || openbsd || netbsd

package clipboard

import (
	"github.com/labi-le/clipsync/pkg/clipboard/eventful"
	"github.com/labi-le/clipsync/pkg/clipboard/x11"
	"github.com/rs/zerolog"
)

const x11Name = x11.Name

func init() {
	backends[x11.Name] = func(logger zerolog.Logger, selections []string) (eventful.Backend, error) {
		return x11.New(logger, selections...)
	}
}
