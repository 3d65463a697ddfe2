package wlr

import (
	"slices"

	"github.com/labi-le/clipsync/pkg/clipboard/eventful"
)

const (
	Clipboard = "CLIPBOARD"
	Primary   = "PRIMARY"
)

// DefaultTargets are offered when the peer did not say what it has.
var DefaultTargets = []string{
	"text/plain;charset=utf-8",
	"text/plain",
	"UTF8_STRING",
	"STRING",
	"TEXT",
}

// selectionState tracks ownership of one selection. The compositor answers
// every set_selection with a selection event, so the event following our
// claim announces our own source.
type selectionState struct {
	name    string
	owned   bool
	claimed bool
	owner   uint32
}

func (s *selectionState) claim() {
	s.owned = true
	s.claimed = true
}

func (s *selectionState) release() {
	s.owned = false
	s.claimed = false
}

// observe applies a selection event; present is false for an empty selection.
func (s *selectionState) observe(present bool) []eventful.Event {
	if s.claimed && present {
		s.claimed = false
		return []eventful.Event{eventful.OwnerChanged{Selection: s.name, Ours: true}}
	}
	s.claimed = false

	events := s.lost()
	if present {
		s.owner++
		events = append(events, eventful.OwnerChanged{Selection: s.name, Owner: s.owner})
	}
	return events
}

// lost reports losing a selection we owned.
func (s *selectionState) lost() []eventful.Event {
	if !s.owned {
		return nil
	}
	s.owned = false
	return []eventful.Event{eventful.SelectionClear{Selection: s.name}}
}

// offerable is what a claim announces: the peer's targets without the
// pseudo targets, or DefaultTargets.
func offerable(targets []string) []string {
	out := make([]string, 0, len(targets))
	for _, t := range targets {
		if t == "" || t == eventful.TargetsTarget || t == "TIMESTAMP" || t == "MULTIPLE" || slices.Contains(out, t) {
			continue
		}
		out = append(out, t)
	}
	if len(out) == 0 {
		return slices.Clone(DefaultTargets)
	}
	return out
}
