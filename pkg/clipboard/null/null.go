// Package null is an in-memory selection backend. It never talks to a host
// clipboard; it records what the engine asks of it and lets callers inject
// host events.
package null

import (
	"context"
	"slices"
	"sync"

	"github.com/labi-le/clipsync/pkg/clipboard/eventful"
)

const Name = "null"

var _ eventful.Backend = (*Backend)(nil)

type Conversion struct {
	Selection string
	Target    string
}

type Response struct {
	Selection string
	Request   eventful.Request
	// Content is nil for a refusal.
	Content *eventful.Content
}

type Backend struct {
	mu sync.Mutex

	owned       map[string]bool
	claims      []string
	releases    []string
	conversions []Conversion
	responses   []Response
	sink        eventful.Sink

	ClaimErr   error
	ConvertErr error
}

func New() *Backend {
	return &Backend{owned: make(map[string]bool)}
}

func (b *Backend) Name() string { return Name }

func (b *Backend) Watch(ctx context.Context, sink eventful.Sink) error {
	b.mu.Lock()
	b.sink = sink
	b.mu.Unlock()

	<-ctx.Done()

	b.mu.Lock()
	b.sink = nil
	b.mu.Unlock()
	return nil
}

// Emit delivers ev to the sink registered by Watch. It reports false when no one watches.
func (b *Backend) Emit(ev eventful.Event) bool {
	b.mu.Lock()
	sink := b.sink
	b.mu.Unlock()

	if sink == nil {
		return false
	}
	sink(ev)
	return true
}

func (b *Backend) Claim(selection string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.ClaimErr != nil {
		return b.ClaimErr
	}
	b.owned[selection] = true
	b.claims = append(b.claims, selection)
	return nil
}

func (b *Backend) Release(selection string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.owned[selection] {
		return eventful.ErrNotOwner
	}
	delete(b.owned, selection)
	b.releases = append(b.releases, selection)
	return nil
}

func (b *Backend) Owned(selection string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.owned[selection], nil
}

// SetOwned simulates another application taking (false) or us keeping (true) the selection.
func (b *Backend) SetOwned(selection string, owned bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if owned {
		b.owned[selection] = true
		return
	}
	delete(b.owned, selection)
}

func (b *Backend) Convert(selection, target string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.ConvertErr != nil {
		return b.ConvertErr
	}
	b.conversions = append(b.conversions, Conversion{Selection: selection, Target: target})
	return nil
}

func (b *Backend) Respond(selection string, req eventful.Request, content *eventful.Content) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if content != nil {
		c := *content
		c.Data = slices.Clone(c.Data)
		content = &c
	}
	b.responses = append(b.responses, Response{Selection: selection, Request: req, Content: content})
	return nil
}

func (b *Backend) Claims() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.claims)
}

func (b *Backend) Releases() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.releases)
}

func (b *Backend) Conversions() []Conversion {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.conversions)
}

func (b *Backend) Responses() []Response {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.responses)
}
