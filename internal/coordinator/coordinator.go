package coordinator

import (
	"errors"
	"fmt"
	"slices"

	"github.com/labi-le/clipsync/internal/history"
	"github.com/labi-le/clipsync/internal/loop"
	"github.com/labi-le/clipsync/internal/selection"
	"github.com/labi-le/clipsync/internal/types/domain"
	"github.com/labi-le/clipsync/pkg/clipboard/eventful"
	"github.com/labi-le/clipsync/pkg/ctxlog"
	"github.com/rs/zerolog"
)

var ErrUnknownSelection = errors.New("unknown selection")

// Outbound carries coordinator messages to the peer.
type Outbound interface {
	Token(domain.Token)
	Request(domain.Request)
	Contents(domain.Contents)
	EnableSelections(domain.EnableSelections)
}

type entry struct {
	config Selection
	proxy  *selection.Proxy
	// peerEnabled is false when the peer excluded this selection.
	peerEnabled    bool
	disabledByLoop bool
}

func (e *entry) applyEnabled() {
	e.proxy.SetEnabled(e.peerEnabled && !e.disabledByLoop)
}

// Coordinator owns the proxies and applies policy between them and the peer.
// All methods must run on the scheduler's goroutine.
type Coordinator struct {
	opts    Options
	logger  zerolog.Logger
	backend eventful.Backend
	sched   loop.Scheduler

	out Outbound
	// session changes on every Attach and Detach.
	session uint64

	entries  map[string]*entry
	byRemote map[string]*entry
	order    []string

	pending map[domain.RequestID]*remoteRequest
	loops   *loopDetector
	warned  *history.Set[string]
}

func New(backend eventful.Backend, sched loop.Scheduler, opts ...Option) *Coordinator {
	options := NewOptions(opts...)

	c := &Coordinator{
		opts:     options,
		logger:   options.Logger,
		backend:  backend,
		sched:    sched,
		entries:  make(map[string]*entry),
		byRemote: make(map[string]*entry),
		pending:  make(map[domain.RequestID]*remoteRequest),
		loops:    newLoopDetector(options.Loop),
		warned:   history.NewSet[string](512),
	}

	for _, sel := range options.Selections {
		c.makeProxy(sel)
	}

	return c
}

func (c *Coordinator) makeProxy(sel Selection) {
	if _, ok := c.entries[sel.Name]; ok {
		c.logger.Warn().Str("selection", sel.Name).Msg("duplicate selection ignored")
		return
	}

	e := &entry{config: sel, peerEnabled: true}
	e.proxy = selection.New(sel.Name, c.backend, c.sched, selection.Hooks{
		SendToken: func(tok domain.Token) {
			c.sendToken(e, tok)
		},
		RequestTarget: func(target string) {
			c.requestTarget(e, target)
		},
	},
		selection.WithLogger(c.logger),
		selection.WithDirection(sel.CanSend, sel.CanReceive),
		selection.WithSynchronous(c.opts.Greedy),
		selection.WithTranslations(c.opts.Translations),
		selection.WithBlocklist(c.opts.Blocklist),
		selection.WithTimeouts(c.opts.ConvertTimeout, c.opts.IncrTimeout),
		selection.WithEmitDelay(c.opts.EmitDelay),
		selection.WithFilter(c.opts.Filter),
		selection.WithWarned(c.warned),
	)

	if prev, ok := c.byRemote[sel.remote()]; ok {
		c.logger.Warn().
			Str("selection", sel.Name).
			Str("shadows", prev.config.Name).
			Str("remote", sel.remote()).
			Msg("remote selection mapped twice, peer traffic goes to the last mapping")
	}

	c.entries[sel.Name] = e
	c.byRemote[sel.remote()] = e
	c.order = append(c.order, sel.Name)
}

// Proxy returns the proxy of a local selection.
func (c *Coordinator) Proxy(name string) (*selection.Proxy, error) {
	e, ok := c.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSelection, name)
	}
	return e.proxy, nil
}

// Selections lists the local selection names in configuration order.
func (c *Coordinator) Selections() []string { return slices.Clone(c.order) }

// RemoteSelections lists the selection names as the peer knows them.
func (c *Coordinator) RemoteSelections() []string {
	names := make([]string, 0, len(c.order))
	for _, name := range c.order {
		names = append(names, c.entries[name].config.remote())
	}
	return names
}

// DisabledByLoop reports whether loop detection stopped synchronizing name.
func (c *Coordinator) DisabledByLoop(name string) bool {
	e, ok := c.entries[name]
	return ok && e.disabledByLoop
}

// Hello returns the capabilities this side announces.
func (c *Coordinator) Hello(opts ...domain.HelloOption) domain.EventHello {
	opts = append([]domain.HelloOption{
		domain.WithSelections(c.RemoteSelections()...),
		domain.WithWantTargets(c.opts.WantTargets),
		domain.WithGreedy(c.opts.Greedy),
		domain.WithPreferredTargets(c.opts.PreferredTargets...),
	}, opts...)
	return domain.NewHello(opts...)
}

// Attach starts a session with the peer. Selections disabled by a previous
// session's loop detection are enabled again.
func (c *Coordinator) Attach(out Outbound, peer domain.Hello) {
	ctxLog := ctxlog.Op(c.logger, "coordinator.Attach")

	c.out = out
	c.session++
	c.warned.Reset()
	c.loops.reset()

	for _, name := range c.order {
		e := c.entries[name]
		if e.disabledByLoop {
			ctxLog.Info().Str("selection", name).Msg("re-enabling selection disabled by loop detection")
		}
		e.disabledByLoop = false
		e.peerEnabled = true
	}

	c.SetPeer(peer)
}

// SetPeer applies the peer's announced capabilities.
func (c *Coordinator) SetPeer(peer domain.Hello) {
	c.logger.Debug().
		Object("device", peer.Device).
		Strs("selections", peer.Selections).
		Bool("want_targets", peer.WantTargets).
		Bool("greedy", peer.Greedy).
		Msg("peer capabilities")

	for _, name := range c.order {
		c.entries[name].proxy.SetPeer(peer.WantTargets, peer.Greedy, peer.PreferredTargets)
	}

	if len(peer.Selections) > 0 {
		c.enableSelections(peer.Selections)
	}
}

// SendAllTokens announces every selection this side owns locally.
func (c *Coordinator) SendAllTokens() {
	for _, name := range c.order {
		c.entries[name].proxy.SendInitialToken()
	}
}

// Detach ends the session: pending peer requests resolve empty and
// nothing is sent until the next Attach.
func (c *Coordinator) Detach() {
	ctxLog := ctxlog.Op(c.logger, "coordinator.Detach")

	c.out = nil
	c.session++
	c.resolvePending()

	for _, name := range c.order {
		info := c.entries[name].proxy.Info()
		ctxLog.Debug().Object("info", info).Msg("selection summary")
	}
}

// Cleanup detaches and closes every proxy.
func (c *Coordinator) Cleanup() {
	c.Detach()
	for _, name := range c.order {
		c.entries[name].proxy.Cleanup()
	}
}

// Dispatch routes a backend event to its proxy.
func (c *Coordinator) Dispatch(ev eventful.Event) {
	e, ok := c.entries[ev.SelectionName()]
	if !ok {
		c.logger.Trace().Str("selection", ev.SelectionName()).Msg("event for unmanaged selection")
		return
	}

	switch ev := ev.(type) {
	case eventful.OwnerChanged:
		e.proxy.OwnerChanged(ev)
	case eventful.SelectionClear:
		e.proxy.SelectionClear()
	case eventful.SelectionRequest:
		e.proxy.SelectionRequest(ev.Request)
	case eventful.Chunk:
		e.proxy.LocalChunk(ev.Target, ev.Content)
	default:
		c.logger.Warn().Type("event", ev).Msg("unknown backend event")
	}
}

// Process routes a message from the peer.
func (c *Coordinator) Process(msg any) {
	switch msg := msg.(type) {
	case domain.EventToken:
		c.gotToken(msg.Payload)
	case domain.EventRequest:
		c.gotRequest(msg.Payload)
	case domain.EventContents:
		c.gotContents(msg.Payload)
	case domain.EventEnableSelections:
		c.enableSelections(msg.Payload.Selections)
	case domain.EventHello:
		c.SetPeer(msg.Payload)
	default:
		c.logger.Warn().Type("message", msg).Msg("unexpected message")
	}
}

func (c *Coordinator) remoteEntry(name string) (*entry, bool) {
	e, ok := c.byRemote[name]
	if !ok && c.warned.Add("unknown:"+name) {
		c.logger.Warn().Str("selection", name).Msg("peer used an unknown selection")
	}
	return e, ok
}

func (c *Coordinator) gotToken(tok domain.Token) {
	e, ok := c.remoteEntry(tok.Selection)
	if !ok {
		return
	}

	if tok.Content != nil {
		content, keep := c.limit(e, tok.Target, *tok.Content, c.opts.MaxReceiveSize)
		if keep {
			tok.Content = &content
		} else {
			tok.Target, tok.Content = "", nil
		}
	}

	if !e.disabledByLoop && e.proxy.Enabled() && c.loops.recordReceived(e.config.Name, fingerprint(tok), c.sched.Now()) {
		c.disableByLoop(e)
		return
	}

	tok.Selection = e.config.Name
	e.proxy.GotToken(tok)
}

// EnableSelections restricts synchronization to the named local selections
// and asks the peer to do the same.
func (c *Coordinator) EnableSelections(names []string) {
	remote := make([]string, 0, len(names))
	for _, name := range c.order {
		e := c.entries[name]
		e.peerEnabled = slices.Contains(names, name)
		e.applyEnabled()
		if e.peerEnabled {
			remote = append(remote, e.config.remote())
		}
	}

	if c.out != nil {
		c.out.EnableSelections(domain.EnableSelections{Selections: remote})
	}
}

func (c *Coordinator) enableSelections(remote []string) {
	for _, name := range c.order {
		e := c.entries[name]
		e.peerEnabled = slices.Contains(remote, e.config.remote())
		e.applyEnabled()
	}
}

func (c *Coordinator) sendToken(e *entry, tok domain.Token) {
	if tok.Content != nil {
		content, keep := c.limit(e, tok.Target, *tok.Content, c.opts.MaxSendSize)
		if keep {
			tok.Content = &content
		} else {
			tok.Target, tok.Content = "", nil
		}
	}

	c.loops.recordSent(e.config.Name, fingerprint(tok), c.sched.Now())

	if c.out == nil {
		return
	}
	tok.Selection = e.config.remote()
	c.out.Token(tok)
}

func (c *Coordinator) disableByLoop(e *entry) {
	name := e.config.Name
	e.disabledByLoop = true
	e.applyEnabled()
	e.proxy.CancelEmitToken()

	c.logger.Warn().
		Str("selection", name).
		Dur("window", c.opts.Loop.Window).
		Int("threshold", c.opts.Loop.Threshold).
		Msg("clipboard loop detected, synchronization disabled")
	c.opts.Notifier.Notify("Clipboard loop detected on %s, synchronization disabled until reconnect", name)
}

func fingerprint(tok domain.Token) uint64 {
	return eventful.Fingerprint(tok.Targets, tok.Target, tok.Content)
}
