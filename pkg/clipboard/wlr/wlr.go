//go:build linux || freebsd || openbsd || netbsd

// Package wlr serves CLIPBOARD and PRIMARY on Wayland through the wlroots
// data-control protocol. A claim publishes a data source offering the
// peer's targets and every send from the compositor becomes a selection
// request; conversions read the current offer through a pipe.
package wlr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"
	"time"

	wl "deedles.dev/wl/client"
	"github.com/labi-le/clipsync/pkg/clipboard/eventful"
	"github.com/labi-le/clipsync/pkg/ctxlog"
	"github.com/labi-le/clipsync/pkg/pipe"
	"github.com/rs/zerolog"
)

const (
	Name = "wayland"

	writeTimeout = 5 * time.Second
	readIdle     = 5 * time.Second
	// maxRead bounds one conversion.
	maxRead  = 256 << 20
	jobQueue = 64

	propertyPrefix = "CLIPSYNC_WL_"
)

var (
	ErrNoDataControl = errors.New("compositor lacks " + ZwlrDataControlManagerV1Interface)
	ErrNoSeat        = errors.New("no seat found")
	ErrClosed        = errors.New("wayland connection closed")
	ErrFinished      = errors.New("data control device finished")
)

var (
	_ eventful.Backend       = (*Backend)(nil)
	_ eventful.TargetClaimer = (*Backend)(nil)
)

// Supported reports whether a Wayland session is reachable.
func Supported() bool {
	_, display := os.LookupEnv("WAYLAND_DISPLAY")
	_, socket := os.LookupEnv("WAYLAND_SOCKET")
	return display || socket
}

// offer is content another client published, with the types it announced.
type offer struct {
	obj *ZwlrDataControlOfferV1

	mu      sync.Mutex
	targets []string
}

func (o *offer) Offer(mimeType string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.targets = append(o.targets, mimeType)
}

func (o *offer) Targets() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return slices.Clone(o.targets)
}

// source is a selection we published.
type source struct {
	b         *Backend
	selection string
	obj       *ZwlrDataControlSourceV1
}

func (s *source) Send(target string, fd *os.File) { s.b.serve(s.selection, target, fd) }
func (s *source) Cancelled()                      { s.b.cancelled(s) }

type globals struct{ b *Backend }

func (g globals) Global(name uint32, inter string, version uint32) {
	b := g.b
	switch inter {
	case wl.SeatInterface:
		if b.seat == nil {
			b.seat = wl.BindSeat(b.client, b.registry, name, version)
		}
	case ZwlrDataControlManagerV1Interface:
		b.version = min(version, ZwlrDataControlManagerV1Version)
		b.manager = BindZwlrDataControlManagerV1(b.client, b.registry, name, b.version)
	}
}

func (g globals) GlobalRemove(uint32) {}

// Backend owns one data-control device on the first seat. Protocol
// requests run on the Watch goroutine.
type Backend struct {
	logger zerolog.Logger

	client   *wl.Client
	registry *wl.Registry
	seat     *wl.Seat
	manager  *ZwlrDataControlManagerV1
	device   *ZwlrDataControlDeviceV1
	version  uint32

	jobs     chan func()
	done     chan struct{}
	finished bool

	mu       sync.Mutex
	sink     eventful.Sink
	states   map[string]*selectionState
	sources  map[string]*source
	offers   map[string]*offer
	fresh    map[*ZwlrDataControlOfferV1]*offer
	sends    map[string]*os.File
	nextSend uint64
}

// New connects to the compositor and binds data control for selections.
func New(logger zerolog.Logger, selections ...string) (*Backend, error) {
	client, err := wl.Dial()
	if err != nil {
		return nil, fmt.Errorf("wayland connect: %w", err)
	}

	b := newBackend(logger, selections...)
	b.client = client
	if err := b.setup(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return b, nil
}

func newBackend(logger zerolog.Logger, selections ...string) *Backend {
	b := &Backend{
		logger:  logger.With().Str("component", Name).Logger(),
		jobs:    make(chan func(), jobQueue),
		done:    make(chan struct{}),
		states:  make(map[string]*selectionState),
		sources: make(map[string]*source),
		offers:  make(map[string]*offer),
		fresh:   make(map[*ZwlrDataControlOfferV1]*offer),
		sends:   make(map[string]*os.File),
	}

	for _, name := range selections {
		switch name {
		case Clipboard, Primary:
			b.states[name] = &selectionState{name: name}
		default:
			b.logger.Warn().Str("selection", name).Msg("selection does not exist on wayland")
		}
	}
	return b
}

func (b *Backend) setup() error {
	b.registry = b.client.Display().GetRegistry()
	b.registry.Listener = globals{b: b}

	if err := b.client.RoundTrip(); err != nil {
		return fmt.Errorf("round trip: %w", err)
	}
	if b.seat == nil {
		return ErrNoSeat
	}
	if b.manager == nil {
		return ErrNoDataControl
	}

	if _, ok := b.states[Primary]; ok && b.version < 2 {
		b.logger.Warn().Uint32("version", b.version).Msg("compositor data control has no primary selection")
		delete(b.states, Primary)
	}

	b.device = b.manager.GetDataDevice(b.seat)
	b.device.Listener = b
	b.device.OnDelete = func() {
		b.logger.Trace().Uint32("device_id", b.device.ID()).Msg("device deleted")
	}
	return nil
}

func (b *Backend) Name() string { return Name }

// Watch dispatches compositor events and queued requests until ctx is
// done, then closes the connection.
func (b *Backend) Watch(ctx context.Context, sink eventful.Sink) error {
	ctxLog := ctxlog.Op(b.logger, "wlr.Watch")

	b.mu.Lock()
	b.sink = sink
	b.mu.Unlock()
	defer b.close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-b.client.Events():
			if !ok {
				return ErrClosed
			}
			if err := ev(); err != nil {
				ctxLog.Error().Err(err).Msg("event processing error")
				return fmt.Errorf("wlr.Watch: %w", err)
			}
			if b.finished {
				return ErrFinished
			}
		case job := <-b.jobs:
			job()
		}
	}
}

func (b *Backend) do(job func()) error {
	select {
	case b.jobs <- job:
		return nil
	case <-b.done:
		return ErrClosed
	}
}

func (b *Backend) close() {
	ctxLog := ctxlog.Op(b.logger, "wlr.close")

	close(b.done)

	b.mu.Lock()
	b.sink = nil
	sources, offers, sends := b.sources, b.offers, b.sends
	b.sources = make(map[string]*source)
	b.offers = make(map[string]*offer)
	b.sends = make(map[string]*os.File)
	for _, st := range b.states {
		st.release()
	}
	b.mu.Unlock()

	for selection, src := range sources {
		b.publish(selection, nil)
		src.obj.Destroy()
	}
	for _, o := range offers {
		o.obj.Destroy()
	}
	for _, f := range sends {
		_ = f.Close()
	}
	if b.device != nil {
		b.device.Destroy()
	}

	if err := b.client.Close(); err != nil {
		ctxLog.Error().Err(err).Msg("failed to close client")
	}
}

func (b *Backend) emit(ev eventful.Event) {
	b.mu.Lock()
	sink := b.sink
	b.mu.Unlock()

	if sink != nil {
		sink(ev)
	}
}

func (b *Backend) publish(selection string, src *ZwlrDataControlSourceV1) {
	if selection == Primary {
		b.device.SetPrimarySelection(src)
		return
	}
	b.device.SetSelection(src)
}

func (b *Backend) state(selection string) (*selectionState, error) {
	st, ok := b.states[selection]
	if !ok {
		return nil, fmt.Errorf("%w: selection %s is not watched", eventful.ErrUnsupported, selection)
	}
	return st, nil
}

func (b *Backend) Claim(selection string) error {
	return b.ClaimTargets(selection, nil)
}

// ClaimTargets publishes a new source offering targets. Every call replaces
// the previous source, which the compositor then cancels.
func (b *Backend) ClaimTargets(selection string, targets []string) error {
	b.mu.Lock()
	st, err := b.state(selection)
	if err == nil {
		st.claim()
	}
	b.mu.Unlock()
	if err != nil {
		return err
	}

	offered := offerable(targets)
	return b.do(func() {
		src := &source{b: b, selection: selection, obj: b.manager.CreateDataSource()}
		src.obj.Listener = src
		for _, t := range offered {
			src.obj.Offer(t)
		}

		b.mu.Lock()
		b.sources[selection] = src
		b.mu.Unlock()

		b.publish(selection, src.obj)
	})
}

func (b *Backend) Release(selection string) error {
	b.mu.Lock()
	st, err := b.state(selection)
	if err != nil {
		b.mu.Unlock()
		return err
	}
	if !st.owned {
		b.mu.Unlock()
		return eventful.ErrNotOwner
	}
	st.release()
	src := b.sources[selection]
	delete(b.sources, selection)
	b.mu.Unlock()

	return b.do(func() {
		b.publish(selection, nil)
		if src != nil {
			src.obj.Destroy()
		}
	})
}

func (b *Backend) Owned(selection string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	st, err := b.state(selection)
	if err != nil {
		return false, err
	}
	return st.owned, nil
}

// Convert reads target from the current offer. TARGETS is answered from
// the announced types right away; anything else arrives once the owner
// closes the pipe.
func (b *Backend) Convert(selection, target string) error {
	b.mu.Lock()
	_, err := b.state(selection)
	o := b.offers[selection]
	b.mu.Unlock()
	if err != nil {
		return err
	}

	refuse := eventful.Chunk{Selection: selection, Target: target}
	if o == nil {
		b.emit(refuse)
		return nil
	}

	targets := o.Targets()
	if target == eventful.TargetsTarget {
		c := eventful.TargetsContent(targets)
		b.emit(eventful.Chunk{Selection: selection, Target: target, Content: &c})
		return nil
	}
	if !slices.Contains(targets, target) {
		b.emit(refuse)
		return nil
	}

	r, w, err := pipe.New()
	if err != nil {
		return err
	}

	err = b.do(func() {
		b.mu.Lock()
		current := b.offers[selection] == o
		b.mu.Unlock()
		if !current {
			_ = r.Close()
			_ = w.Close()
			b.emit(refuse)
			return
		}

		o.obj.Receive(target, w)
		if err := b.client.RoundTrip(); err != nil {
			b.logger.Error().Err(err).Str("target", target).Msg("round trip failed")
		}
		_ = w.Close()

		go b.read(selection, target, r)
	})
	if err != nil {
		_ = r.Close()
		_ = w.Close()
	}
	return err
}

func (b *Backend) read(selection, target string, r *os.File) {
	defer r.Close()

	data, err := pipe.ReadAll(r, readIdle, maxRead)
	if err != nil || len(data) == 0 {
		b.logger.Debug().Err(err).Str("target", target).Msg("nothing read from offer")
		b.emit(eventful.Chunk{Selection: selection, Target: target})
		return
	}

	b.emit(eventful.Chunk{
		Selection: selection,
		Target:    target,
		Content:   &eventful.Content{Type: target, Format: 8, Data: data},
	})
}

// Respond writes the answer into the pipe the compositor handed to Send.
// A nil content closes it empty.
func (b *Backend) Respond(selection string, req eventful.Request, content *eventful.Content) error {
	b.mu.Lock()
	_, err := b.state(selection)
	fd, ok := b.sends[req.Property]
	delete(b.sends, req.Property)
	b.mu.Unlock()
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	if content == nil || len(content.Data) == 0 {
		return fd.Close()
	}

	data := content.Data
	go func() {
		if err := pipe.WriteAll(fd, data, writeTimeout); err != nil {
			b.logger.Trace().Err(err).Str("target", req.Target).Msg("write failed")
		}
	}()
	return nil
}

// serve turns a compositor send into a selection request.
func (b *Backend) serve(selection, target string, fd *os.File) {
	b.mu.Lock()
	b.nextSend++
	property := fmt.Sprintf("%s%d", propertyPrefix, b.nextSend)
	b.sends[property] = fd
	b.mu.Unlock()

	b.emit(eventful.SelectionRequest{
		Selection: selection,
		Request: eventful.Request{
			Target:   target,
			Property: property,
		},
	})
}

func (b *Backend) cancelled(s *source) {
	b.mu.Lock()
	var events []eventful.Event
	if b.sources[s.selection] == s {
		delete(b.sources, s.selection)
		if st, ok := b.states[s.selection]; ok {
			st.claimed = false
			events = st.lost()
		}
	}
	b.mu.Unlock()

	s.obj.Destroy()
	for _, ev := range events {
		b.emit(ev)
	}
}

func (b *Backend) DataOffer(obj *ZwlrDataControlOfferV1) {
	o := &offer{obj: obj}
	obj.Listener = o

	b.mu.Lock()
	b.fresh[obj] = o
	b.mu.Unlock()
}

func (b *Backend) Selection(obj *ZwlrDataControlOfferV1)        { b.selected(Clipboard, obj) }
func (b *Backend) PrimarySelection(obj *ZwlrDataControlOfferV1) { b.selected(Primary, obj) }

func (b *Backend) Finished() {
	b.logger.Warn().Msg("data control device finished")
	b.finished = true
}

// selected installs the new offer of selection and reports the owner change.
func (b *Backend) selected(selection string, obj *ZwlrDataControlOfferV1) {
	b.mu.Lock()
	var o *offer
	if obj != nil {
		if o = b.fresh[obj]; o == nil {
			o = &offer{obj: obj}
		}
		delete(b.fresh, obj)
	}

	prev := b.offers[selection]
	if o != nil {
		b.offers[selection] = o
	} else {
		delete(b.offers, selection)
	}

	var events []eventful.Event
	if st, ok := b.states[selection]; ok {
		events = st.observe(o != nil)
	}
	b.mu.Unlock()

	if prev != nil && prev != o {
		prev.obj.Destroy()
	}
	for _, ev := range events {
		b.emit(ev)
	}
}
