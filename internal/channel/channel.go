package channel

import (
	"context"
	"errors"
	"sync"

	"github.com/labi-le/clipsync/internal/types/domain"
)

var ErrClosed = errors.New("channel closed")

// Channel queues outbound events for the peer writer. Pushing never blocks,
// so the event loop can hand over messages while the writer is busy.
type Channel struct {
	mu     sync.Mutex
	queue  []any
	wake   chan struct{}
	closed bool
}

func New() *Channel {
	return &Channel{wake: make(chan struct{}, 1)}
}

func (c *Channel) Token(t domain.Token) { c.push(domain.NewEvent(t)) }

func (c *Channel) Request(r domain.Request) { c.push(domain.NewEvent(r)) }

func (c *Channel) Contents(m domain.Contents) { c.push(domain.NewEvent(m)) }

func (c *Channel) EnableSelections(e domain.EnableSelections) { c.push(domain.NewEvent(e)) }

func (c *Channel) push(event any) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.queue = append(c.queue, event)
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Next blocks until an event is queued, ctx is done or the channel is closed.
// Events queued before Close are still delivered.
func (c *Channel) Next(ctx context.Context) (any, error) {
	for {
		c.mu.Lock()
		if len(c.queue) > 0 {
			event := c.queue[0]
			c.queue[0] = nil
			c.queue = c.queue[1:]
			c.mu.Unlock()
			return event, nil
		}
		closed := c.closed
		c.mu.Unlock()

		if closed {
			return nil, ErrClosed
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.wake:
		}
	}
}

func (c *Channel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Close stops accepting events and wakes the reader.
func (c *Channel) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}
