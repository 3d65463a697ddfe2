//go:build linux || freebsd || openbsd || netbsd

package clipboard

import (
	"github.com/labi-le/clipsync/pkg/clipboard/eventful"
	"github.com/labi-le/clipsync/pkg/clipboard/wlr"
	"github.com/rs/zerolog"
)

const waylandName = wlr.Name

func init() {
	backends[wlr.Name] = func(logger zerolog.Logger, selections []string) (eventful.Backend, error) {
		return wlr.New(logger, selections...)
	}
}
