// Package native serves the CLIPBOARD selection through the operating
// system clipboard. The host keeps data, not promises, so claiming the
// selection immediately asks for the peer's content.
package native

import (
	"bytes"
	"context"
	"runtime"
	"slices"
	"sync"

	"github.com/labi-le/clipsync/pkg/clipboard/eventful"
	"github.com/labi-le/clipsync/pkg/ctxlog"
	"github.com/rs/zerolog"
	"golang.design/x/clipboard"
)

const (
	Name      = "native"
	Selection = "CLIPBOARD"
	// Requestor names the requests synthesized after a claim.
	Requestor = "clipsync-native"

	imageTarget = "image/png"
	textTarget  = "UTF8_STRING"
)

var textTargets = []string{textTarget, "STRING", "TEXT", "text/plain", "text/plain;charset=utf-8"}

// Host is the operating system clipboard.
type Host interface {
	Read(f clipboard.Format) []byte
	Write(f clipboard.Format, data []byte)
	Watch(ctx context.Context, f clipboard.Format) <-chan []byte
}

type system struct{}

func (system) Read(f clipboard.Format) []byte { return clipboard.Read(f) }

func (system) Write(f clipboard.Format, data []byte) { clipboard.Write(f, data) }

func (system) Watch(ctx context.Context, f clipboard.Format) <-chan []byte {
	return clipboard.Watch(ctx, f)
}

var (
	_ eventful.Backend       = (*Backend)(nil)
	_ eventful.TargetClaimer = (*Backend)(nil)
)

type Backend struct {
	logger zerolog.Logger
	host   Host
	crlf   bool

	mu        sync.Mutex
	sink      eventful.Sink
	owned     bool
	owner     uint32
	textDedup eventful.Deduplicator
	imgDedup  eventful.Deduplicator
}

type Option func(*Backend)

// WithHost replaces the operating system clipboard.
func WithHost(h Host) Option {
	return func(b *Backend) {
		b.host = h
	}
}

// WithCRLF controls line ending expansion on write; on by default on Windows.
func WithCRLF(crlf bool) Option {
	return func(b *Backend) {
		b.crlf = crlf
	}
}

// New initializes the system clipboard unless a host is supplied.
func New(logger zerolog.Logger, opts ...Option) (*Backend, error) {
	b := &Backend{
		logger: logger.With().Str("component", Name).Logger(),
		crlf:   runtime.GOOS == "windows",
	}
	for _, opt := range opts {
		opt(b)
	}

	if b.host == nil {
		if err := clipboard.Init(); err != nil {
			return nil, err
		}
		b.host = system{}
	}

	b.textDedup.Mark(b.host.Read(clipboard.FmtText))
	b.imgDedup.Mark(b.host.Read(clipboard.FmtImage))
	return b, nil
}

func (b *Backend) Name() string { return Name }

func (b *Backend) Watch(ctx context.Context, sink eventful.Sink) error {
	ctxLog := ctxlog.Op(b.logger, "native.Watch")

	b.mu.Lock()
	b.sink = sink
	b.mu.Unlock()

	text := b.host.Watch(ctx, clipboard.FmtText)
	image := b.host.Watch(ctx, clipboard.FmtImage)

	for {
		select {
		case <-ctx.Done():
			return nil
		case data, ok := <-text:
			if !ok {
				text = nil
				continue
			}
			if _, changed := b.textDedup.Check(data); changed {
				ctxLog.Trace().Int("size", len(data)).Msg("text changed")
				b.changed()
			}
		case data, ok := <-image:
			if !ok {
				image = nil
				continue
			}
			if _, changed := b.imgDedup.Check(data); changed {
				ctxLog.Trace().Int("size", len(data)).Msg("image changed")
				b.changed()
			}
		}
	}
}

// changed reports a foreign write to the host clipboard.
func (b *Backend) changed() {
	b.mu.Lock()
	wasOwned := b.owned
	b.owned = false
	b.owner++
	owner := b.owner
	b.mu.Unlock()

	if wasOwned {
		b.emit(eventful.SelectionClear{Selection: Selection})
	}
	b.emit(eventful.OwnerChanged{Selection: Selection, Owner: owner})
}

func (b *Backend) emit(ev eventful.Event) {
	b.mu.Lock()
	sink := b.sink
	b.mu.Unlock()

	if sink != nil {
		sink(ev)
	}
}

func check(selection string) error {
	if selection != Selection {
		return eventful.ErrUnsupported
	}
	return nil
}

// Claim marks the selection ours and asks for the peer's targets; the
// answer is written to the host by Respond.
func (b *Backend) Claim(selection string) error {
	if err := check(selection); err != nil {
		return err
	}

	b.mu.Lock()
	b.owned = true
	b.mu.Unlock()

	b.request(eventful.TargetsTarget)
	return nil
}

// ClaimTargets marks the selection ours and asks for the representation
// picked from the peer's targets, or for the targets when none is known.
// Every call fetches again since the host keeps a copy, not a promise.
func (b *Backend) ClaimTargets(selection string, targets []string) error {
	if err := check(selection); err != nil {
		return err
	}

	b.mu.Lock()
	b.owned = true
	b.mu.Unlock()

	target := pick(targets)
	if target == "" {
		target = eventful.TargetsTarget
	}
	b.request(target)
	return nil
}

func (b *Backend) request(target string) {
	b.emit(eventful.SelectionRequest{
		Selection: Selection,
		Request: eventful.Request{
			Requestor: eventful.Requestor{Name: Requestor},
			Target:    target,
			Property:  target,
		},
	})
}

func (b *Backend) Release(selection string) error {
	if err := check(selection); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.owned {
		return eventful.ErrNotOwner
	}
	b.owned = false
	return nil
}

func (b *Backend) Owned(selection string) (bool, error) {
	if err := check(selection); err != nil {
		return false, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.owned, nil
}

// Convert reads the host clipboard and answers with a Chunk right away.
func (b *Backend) Convert(selection, target string) error {
	if err := check(selection); err != nil {
		return err
	}

	b.emit(eventful.Chunk{Selection: Selection, Target: target, Content: b.read(target)})
	return nil
}

func (b *Backend) read(target string) *eventful.Content {
	switch {
	case target == eventful.TargetsTarget:
		var targets []string
		if len(b.host.Read(clipboard.FmtImage)) > 0 {
			targets = append(targets, imageTarget)
		}
		if len(b.host.Read(clipboard.FmtText)) > 0 {
			targets = append(targets, textTargets...)
		}
		if len(targets) == 0 {
			return nil
		}
		c := eventful.TargetsContent(targets)
		return &c
	case target == imageTarget:
		data := b.host.Read(clipboard.FmtImage)
		if len(data) == 0 {
			return nil
		}
		return &eventful.Content{Type: imageTarget, Format: 8, Data: data}
	case slices.Contains(textTargets, target):
		data := b.host.Read(clipboard.FmtText)
		if len(data) == 0 {
			return nil
		}
		return &eventful.Content{Type: target, Format: 8, Data: ToLF(data)}
	default:
		return nil
	}
}

// Respond writes the peer's content to the host. A TARGETS answer picks
// the representation to fetch next.
func (b *Backend) Respond(selection string, req eventful.Request, content *eventful.Content) error {
	if err := check(selection); err != nil {
		return err
	}
	if req.Requestor.Name != Requestor || content == nil || len(content.Data) == 0 {
		return nil
	}

	b.mu.Lock()
	owned := b.owned
	b.mu.Unlock()
	if !owned {
		return nil
	}

	switch {
	case req.Target == eventful.TargetsTarget:
		if target := pick(eventful.DecodeTargets(content.Data)); target != "" {
			b.request(target)
		}
	case req.Target == imageTarget:
		b.imgDedup.Mark(content.Data)
		b.host.Write(clipboard.FmtImage, content.Data)
	default:
		data := content.Data
		if b.crlf {
			data = ToCRLF(data)
		}
		b.textDedup.Mark(data)
		b.host.Write(clipboard.FmtText, data)
	}
	return nil
}

// pick prefers an image over text.
func pick(targets []string) string {
	if slices.Contains(targets, imageTarget) {
		return imageTarget
	}
	for _, t := range textTargets {
		if slices.Contains(targets, t) {
			return t
		}
	}
	return ""
}

// ToLF normalizes CRLF line endings.
func ToLF(data []byte) []byte {
	if !bytes.Contains(data, []byte("\r\n")) {
		return data
	}
	return bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
}

// ToCRLF expands bare LF line endings.
func ToCRLF(data []byte) []byte {
	return bytes.ReplaceAll(ToLF(data), []byte("\n"), []byte("\r\n"))
}
