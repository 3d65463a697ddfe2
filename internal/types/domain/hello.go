package domain

import (
	"github.com/labi-le/clipsync/internal/metadata"
)

// Hello is exchanged once per session and carries the clipboard capabilities of each side.
type Hello struct {
	Version          string
	Device           Device
	Port             uint32
	Selections       []string
	WantTargets      bool
	Greedy           bool
	PreferredTargets []string
}

type HelloOption func(h *Hello)

func NewHello(opts ...HelloOption) EventHello {
	hello := &Hello{
		Version: metadata.Version,
		Device:  SelfDevice(),
	}

	for _, opt := range opts {
		opt(hello)
	}

	return NewEvent(*hello)
}

func WithDevice(d Device) HelloOption {
	return func(h *Hello) {
		h.Device = d
	}
}

func WithPort(port int) HelloOption {
	return func(h *Hello) {
		h.Port = uint32(port)
	}
}

func WithSelections(selections ...string) HelloOption {
	return func(h *Hello) {
		h.Selections = selections
	}
}

func WithWantTargets(want bool) HelloOption {
	return func(h *Hello) {
		h.WantTargets = want
	}
}

func WithGreedy(greedy bool) HelloOption {
	return func(h *Hello) {
		h.Greedy = greedy
	}
}

func WithPreferredTargets(targets ...string) HelloOption {
	return func(h *Hello) {
		h.PreferredTargets = targets
	}
}
