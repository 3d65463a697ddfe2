package domain

import (
	"github.com/labi-le/clipsync/pkg/id"
)

type RequestID = id.Unique

// Request asks the peer for its content of Target.
type Request struct {
	ID        RequestID
	Selection string
	Target    string
}

// Contents answers a Request. None is set when the peer has nothing to offer.
type Contents struct {
	ID        RequestID
	Selection string
	Target    string
	Type      string
	Format    int
	Data      []byte
	None      bool
}

// EnableSelections limits synchronization to the listed selections.
type EnableSelections struct {
	Selections []string
}
