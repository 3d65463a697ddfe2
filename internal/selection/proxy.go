package selection

import (
	"slices"
	"strings"

	"github.com/labi-le/clipsync/internal/loop"
	"github.com/labi-le/clipsync/internal/types/domain"
	"github.com/labi-le/clipsync/pkg/clipboard/eventful"
	"github.com/labi-le/clipsync/pkg/ctxlog"
	"github.com/rs/zerolog"
)

type State int

const (
	StateUnknown State = iota
	StateRemoteOwns
	StateLocalOwns
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateRemoteOwns:
		return "remote-owns"
	case StateLocalOwns:
		return "local-owns"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type localRequest struct {
	timer loop.Timer
	done  func(eventful.Content)
}

// Proxy synchronizes one selection between the local backend and the peer.
// Every method must be called from the scheduler's goroutine.
type Proxy struct {
	selection string
	opts      Options
	logger    zerolog.Logger
	backend   eventful.Backend
	sched     loop.Scheduler
	hooks     Hooks

	state            State
	enabled          bool
	owned            bool
	haveToken        bool
	blockOwnerChange bool

	targets    []string
	targetData map[string]eventful.Content

	remoteRequests map[string][]eventful.Request
	localRequests  map[string]map[uint64]*localRequest
	nextRequestID  uint64

	incr *incrTransfer

	emitTimer loop.Timer
	// emitGen invalidates asynchronous token emissions overtaken by a peer token.
	emitGen uint64

	counters counters
}

type counters struct {
	selectionRequest int
	gotToken         int
	sentToken        int
	getContents      int
	requestContents  int
}

func New(
	selection string,
	backend eventful.Backend,
	sched loop.Scheduler,
	hooks Hooks,
	opts ...Option,
) *Proxy {
	options := NewOptions(opts...)

	if hooks.SendToken == nil {
		hooks.SendToken = func(domain.Token) {}
	}
	if hooks.RequestTarget == nil {
		hooks.RequestTarget = func(string) {}
	}

	return &Proxy{
		selection:      selection,
		opts:           options,
		logger:         ctxlog.Selection(options.Logger, selection),
		backend:        backend,
		sched:          sched,
		hooks:          hooks,
		enabled:        true,
		targetData:     make(map[string]eventful.Content),
		remoteRequests: make(map[string][]eventful.Request),
		localRequests:  make(map[string]map[uint64]*localRequest),
	}
}

func (p *Proxy) Selection() string { return p.selection }
func (p *Proxy) State() State      { return p.state }
func (p *Proxy) Enabled() bool     { return p.enabled }
func (p *Proxy) HaveToken() bool   { return p.haveToken }
func (p *Proxy) CanSend() bool     { return p.opts.CanSend }
func (p *Proxy) CanReceive() bool  { return p.opts.CanReceive }

// Targets returns a copy of the cached target list.
func (p *Proxy) Targets() []string { return slices.Clone(p.targets) }

// Cached returns the cached content for target, if any.
func (p *Proxy) Cached(target string) (eventful.Content, bool) {
	c, ok := p.targetData[target]
	return c, ok
}

func (p *Proxy) SetEnabled(enabled bool) {
	if p.enabled != enabled {
		p.logger.Debug().Bool("enabled", enabled).Msg("selection synchronization toggled")
	}
	p.enabled = enabled
}

// SetPeer applies the capabilities the peer announced.
func (p *Proxy) SetPeer(wantTargets, greedy bool, preferred []string) {
	p.opts.WantTargets = wantTargets
	p.opts.Greedy = greedy
	p.opts.PreferredTargets = preferred
}

func (p *Proxy) active() bool {
	return p.enabled && p.state != StateClosed
}

// Claim takes local ownership so host applications see the peer's content.
func (p *Proxy) Claim() {
	ctxLog := ctxlog.Op(p.logger, "selection.Claim")

	if !p.opts.CanReceive || p.state == StateClosed {
		return
	}

	owned, err := p.backend.Owned(p.selection)
	if err != nil {
		ctxLog.Warn().Err(err).Msg("failed to query selection owner")
	}

	claimer, retarget := p.backend.(eventful.TargetClaimer)
	if owned && !retarget {
		ctxLog.Trace().Msg("already owned")
		p.owned = true
		p.state = StateRemoteOwns
		return
	}

	if retarget {
		err = claimer.ClaimTargets(p.selection, p.Targets())
	} else {
		err = p.backend.Claim(p.selection)
	}
	if err != nil {
		ctxLog.Warn().Err(err).Msg("failed to claim selection")
		return
	}

	p.owned = true
	p.state = StateRemoteOwns
	p.blockOwnerChange = true
	p.sched.Post(func() {
		p.blockOwnerChange = false
	})

	ctxLog.Debug().Msg("claimed")
}

// OwnerChanged handles a new local owner, possibly ourselves.
func (p *Proxy) OwnerChanged(ev eventful.OwnerChanged) {
	ctxLog := ctxlog.Op(p.logger, "selection.OwnerChanged")

	p.owned = ev.Ours
	if !p.active() {
		return
	}

	if ev.Ours {
		ctxLog.Trace().Msg("we are the owner")
		return
	}

	if p.blockOwnerChange {
		ctxLog.Trace().Uint32("owner", ev.Owner).Msg("ignoring owner change caused by our claim")
		return
	}

	ctxLog.Debug().Uint32("owner", ev.Owner).Msg("local owner changed")
	p.ownerChanged()
	p.state = StateLocalOwns

	if p.opts.CanSend {
		p.ScheduleEmitToken(p.opts.EmitDelay)
	}
}

// SelectionClear handles losing ownership to another local application.
func (p *Proxy) SelectionClear() {
	p.logger.Debug().Msg("selection cleared")
	p.owned = false
	p.ownerChanged()
}

func (p *Proxy) ownerChanged() {
	p.haveToken = false
	p.targets = nil
	clear(p.targetData)
}

func (p *Proxy) blocked(r eventful.Requestor) bool {
	if r.Name == "" {
		return false
	}
	for _, name := range p.opts.Blocklist {
		if name != "" && strings.Contains(r.Name, name) {
			return true
		}
	}
	return false
}

// warnOnce reports whether key is seen for the first time.
func (p *Proxy) warnOnce(key string) bool {
	return p.opts.Warned.Add(p.selection + "/" + key)
}

// Cleanup resolves every pending request with an empty answer and releases ownership.
func (p *Proxy) Cleanup() {
	if p.state == StateClosed {
		return
	}
	ctxLog := ctxlog.Op(p.logger, "selection.Cleanup")

	p.CancelEmitToken()
	p.resetIncr()

	for _, target := range sortedKeys(p.remoteRequests) {
		waiters := p.remoteRequests[target]
		delete(p.remoteRequests, target)
		for _, req := range waiters {
			p.respond(req, eventful.EmptyFor(req.Target))
		}
	}

	for _, target := range sortedKeys(p.localRequests) {
		p.gotLocalContents(target, nil)
	}

	if p.owned {
		if err := p.backend.Release(p.selection); err != nil {
			ctxLog.Warn().Err(err).Msg("failed to release selection")
		}
	}

	p.owned = false
	p.ownerChanged()
	p.state = StateClosed
	ctxLog.Debug().Msg("closed")
}

// Info is a point in time snapshot for logging.
type Info struct {
	Selection        string
	State            State
	Enabled          bool
	Owned            bool
	HaveToken        bool
	Targets          []string
	PendingRemote    int
	PendingLocal     int
	SelectionRequest int
	GotToken         int
	SentToken        int
	GetContents      int
	RequestContents  int
}

func (p *Proxy) Info() Info {
	info := Info{
		Selection:        p.selection,
		State:            p.state,
		Enabled:          p.enabled,
		Owned:            p.owned,
		HaveToken:        p.haveToken,
		Targets:          p.Targets(),
		SelectionRequest: p.counters.selectionRequest,
		GotToken:         p.counters.gotToken,
		SentToken:        p.counters.sentToken,
		GetContents:      p.counters.getContents,
		RequestContents:  p.counters.requestContents,
	}
	for _, w := range p.remoteRequests {
		info.PendingRemote += len(w)
	}
	for _, r := range p.localRequests {
		info.PendingLocal += len(r)
	}
	return info
}

func (i Info) MarshalZerologObject(e *zerolog.Event) {
	e.Str("selection", i.Selection)
	e.Stringer("state", i.State)
	e.Bool("enabled", i.Enabled)
	e.Bool("owned", i.Owned)
	e.Bool("have_token", i.HaveToken)
	e.Strs("targets", i.Targets)
	e.Int("pending_remote", i.PendingRemote)
	e.Int("pending_local", i.PendingLocal)
	e.Int("selection_request", i.SelectionRequest)
	e.Int("got_token", i.GotToken)
	e.Int("sent_token", i.SentToken)
	e.Int("get_contents", i.GetContents)
	e.Int("request_contents", i.RequestContents)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
