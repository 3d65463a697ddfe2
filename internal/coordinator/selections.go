package coordinator

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

const (
	DirectionBoth     = "both"
	DirectionToPeer   = "to-peer"
	DirectionFromPeer = "from-peer"
	DirectionDisabled = "disabled"
)

var (
	ErrBadDirection = errors.New("invalid direction")
	ErrBadMapping   = errors.New("invalid selection mapping")
)

// ParseDirection turns a direction name into send and receive permissions.
func ParseDirection(s string) (canSend, canReceive bool, err error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case DirectionBoth, "":
		return true, true, nil
	case DirectionToPeer:
		return true, false, nil
	case DirectionFromPeer:
		return false, true, nil
	case DirectionDisabled:
		return false, false, nil
	default:
		return false, false, fmt.Errorf("%w: %q", ErrBadDirection, s)
	}
}

// ParseSelections builds the selection list from names and local:remote
// mappings. A mapping for a selection not listed in names adds it.
func ParseSelections(names, mappings []string, direction string) ([]Selection, error) {
	canSend, canReceive, err := ParseDirection(direction)
	if err != nil {
		return nil, err
	}

	remotes := make(map[string]string, len(mappings))
	var order []string
	for _, m := range mappings {
		local, remote, ok := strings.Cut(m, ":")
		local, remote = strings.TrimSpace(local), strings.TrimSpace(remote)
		if !ok || local == "" || remote == "" {
			return nil, fmt.Errorf("%w: %q", ErrBadMapping, m)
		}
		remotes[local] = remote
		order = append(order, local)
	}

	seen := make(map[string]bool)
	var selections []Selection
	for _, name := range slices.Concat(names, order) {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		selections = append(selections, Selection{
			Name:       name,
			Remote:     remotes[name],
			CanSend:    canSend,
			CanReceive: canReceive,
		})
	}
	return selections, nil
}
