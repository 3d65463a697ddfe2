// Package clipboard picks the host clipboard backend.
package clipboard

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"sort"

	"github.com/labi-le/clipsync/pkg/clipboard/eventful"
	"github.com/labi-le/clipsync/pkg/clipboard/native"
	"github.com/labi-le/clipsync/pkg/clipboard/null"
	"github.com/rs/zerolog"
)

const Auto = "auto"

var ErrUnknownBackend = errors.New("unknown clipboard backend")

type factory func(logger zerolog.Logger, selections []string) (eventful.Backend, error)

var backends = map[string]factory{
	null.Name: func(zerolog.Logger, []string) (eventful.Backend, error) {
		return null.New(), nil
	},
	native.Name: func(logger zerolog.Logger, _ []string) (eventful.Backend, error) {
		return native.New(logger)
	},
}

// Names lists the backends compiled into this build.
func Names() []string {
	names := make([]string, 0, len(backends)+1)
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return append([]string{Auto}, names...)
}

// Candidates is the order Auto tries backends in: Wayland when a
// compositor is reachable, X11 when a display is set, then the operating
// system clipboard.
func Candidates() []string {
	var names []string
	if os.Getenv("WAYLAND_DISPLAY") != "" || os.Getenv("WAYLAND_SOCKET") != "" {
		names = append(names, waylandName)
	}
	if os.Getenv("DISPLAY") != "" {
		names = append(names, x11Name)
	}
	names = append(names, native.Name)

	return slices.DeleteFunc(names, func(name string) bool {
		_, ok := backends[name]
		return !ok
	})
}

// New opens the named backend for selections. Auto opens the first of
// Candidates that works.
func New(name string, logger zerolog.Logger, selections ...string) (eventful.Backend, error) {
	if name != Auto {
		return open(name, logger, selections)
	}

	var errs []error
	for _, candidate := range Candidates() {
		b, err := open(candidate, logger, selections)
		if err == nil {
			return b, nil
		}
		logger.Warn().Err(err).Str("backend", candidate).Msg("clipboard backend unavailable, trying next")
		errs = append(errs, err)
	}
	return nil, errors.Join(errs...)
}

func open(name string, logger zerolog.Logger, selections []string) (eventful.Backend, error) {
	factory, ok := backends[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s (available: %v)", ErrUnknownBackend, name, Names())
	}

	if name == native.Name && slices.ContainsFunc(selections, func(s string) bool { return s != native.Selection }) {
		logger.Warn().Strs("selections", selections).Msg("the native clipboard only carries CLIPBOARD")
	}

	b, err := factory(logger, selections)
	if err != nil {
		return nil, fmt.Errorf("open %s clipboard: %w", name, err)
	}
	return b, nil
}
