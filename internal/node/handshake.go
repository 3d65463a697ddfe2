package node

import (
	"errors"
	"fmt"

	"github.com/labi-le/clipsync/internal/metadata"
	"github.com/labi-le/clipsync/internal/protocol"
	"github.com/labi-le/clipsync/internal/transport"
	"github.com/labi-le/clipsync/internal/types/domain"
	"github.com/labi-le/clipsync/pkg/network"
)

var ErrSelfConnect = errors.New("connected to ourselves")

// exchange sends our hello and reads the peer's within the deadline.
// Both sides write first, so neither waits on the other.
func exchange(
	stream transport.Stream,
	mine domain.EventHello,
	dd network.Deadline,
) (domain.EventHello, error) {
	var empty domain.EventHello

	if err := network.SetDeadline(stream, dd); err != nil {
		return empty, err
	}
	defer network.ClearDeadline(stream)

	if err := protocol.EncodeToWriter(stream, mine); err != nil {
		return empty, fmt.Errorf("send hello: %w", err)
	}

	theirs, err := protocol.DecodeExpect[domain.EventHello](stream)
	if err != nil {
		return empty, fmt.Errorf("read hello: %w", err)
	}

	if theirs.Payload.Device.ID == mine.Payload.Device.ID {
		return empty, ErrSelfConnect
	}

	if err := metadata.Compatible(theirs.Payload.Version); err != nil {
		return empty, err
	}

	return theirs, nil
}
