package domain

import (
	"time"

	"github.com/labi-le/clipsync/pkg/id"
)

type payloadConstraint interface {
	Hello | Token | Request | Contents | EnableSelections
}

type Event[T payloadConstraint] struct {
	From    id.Unique
	Created time.Time
	Payload T
}

type (
	EventHello            = Event[Hello]
	EventToken            = Event[Token]
	EventRequest          = Event[Request]
	EventContents         = Event[Contents]
	EventEnableSelections = Event[EnableSelections]
)

// AnyEvent is satisfied by every concrete event type.
type AnyEvent interface {
	EventHello | EventToken | EventRequest | EventContents | EventEnableSelections
}

func NewEvent[concrete payloadConstraint](payload concrete) Event[concrete] {
	return Event[concrete]{
		From:    defaultDevice.ID,
		Created: time.Now(),
		Payload: payload,
	}
}
