package node

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"

	"github.com/labi-le/clipsync/internal/channel"
	"github.com/labi-le/clipsync/internal/coordinator"
	"github.com/labi-le/clipsync/internal/loop"
	"github.com/labi-le/clipsync/internal/peer"
	"github.com/labi-le/clipsync/internal/transport"
	"github.com/labi-le/clipsync/internal/types/domain"
	"github.com/labi-le/clipsync/pkg/clipboard/eventful"
	"github.com/labi-le/clipsync/pkg/ctxlog"
	"github.com/rs/zerolog"
)

var (
	ErrAlreadyConnected = errors.New("already connected")
	ErrLoopStopped      = errors.New("event loop stopped")
)

// Node owns the event loop, the clipboard coordinator and at most one
// session with a peer.
type Node struct {
	transport transport.Transport
	backend   eventful.Backend
	loop      *loop.Loop
	coord     *coordinator.Coordinator
	options   Options
	logger    zerolog.Logger

	mu     sync.Mutex
	active *peer.Peer
	addr   net.Addr
	ready  chan struct{}

	loopDone chan struct{}
}

func New(
	tr transport.Transport,
	backend eventful.Backend,
	opts ...Option,
) *Node {
	options := NewOptions(opts...)
	lp := loop.New(options.Logger)

	coordOpts := append([]coordinator.Option{
		coordinator.WithLogger(options.Logger),
		coordinator.WithNotifier(options.Notifier),
	}, options.Coordinator...)

	return &Node{
		transport: tr,
		backend:   backend,
		loop:      lp,
		coord:     coordinator.New(backend, lp, coordOpts...),
		options:   options,
		logger:    options.Logger,
		ready:     make(chan struct{}),
		loopDone:  make(chan struct{}),
	}
}

func (n *Node) Metadata() domain.Device { return n.options.Metadata }

// Ready is closed once the listener accepts connections.
func (n *Node) Ready() <-chan struct{} { return n.ready }

// Addr is the listening address, nil before Ready.
func (n *Node) Addr() net.Addr {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.addr
}

// port is the listening port once known, else the configured one.
func (n *Node) port() int {
	if addr, ok := n.Addr().(interface{ AddrPort() netip.AddrPort }); ok {
		return int(addr.AddrPort().Port())
	}
	return n.options.PublicPort
}

// Connected reports whether a session is active.
func (n *Node) Connected() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.active != nil
}

// Do runs fn on the event loop and waits for it.
func (n *Node) Do(ctx context.Context, fn func(c *coordinator.Coordinator)) error {
	done := make(chan struct{})
	n.loop.Post(func() {
		fn(n.coord)
		close(done)
	})

	select {
	case <-done:
		return nil
	case <-n.loopDone:
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start runs the event loop, watches the clipboard and accepts sessions
// until ctx is done.
func (n *Node) Start(ctx context.Context) error {
	ctxLog := ctxlog.Op(n.logger, "node.Start")

	l, err := n.transport.Listen(ctx, fmt.Sprintf(":%d", n.options.PublicPort))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	defer l.Close()

	loopCtx, stopLoop := context.WithCancel(context.WithoutCancel(ctx))
	go func() {
		defer close(n.loopDone)
		_ = n.loop.Run(loopCtx)
	}()
	defer stopLoop()
	defer n.shutdown()

	go func() {
		sink := func(ev eventful.Event) {
			n.loop.Post(func() { n.coord.Dispatch(ev) })
		}
		if err := n.backend.Watch(ctx, sink); err != nil && ctx.Err() == nil {
			ctxLog.Error().Err(err).Str("backend", n.backend.Name()).Msg("clipboard watch stopped")
		}
	}()

	n.mu.Lock()
	n.addr = l.Addr()
	n.mu.Unlock()
	close(n.ready)

	ctxLog.Info().
		Str("address", l.Addr().String()).
		Str("transport", n.transport.Name()).
		Str("backend", n.backend.Name()).
		Object("metadata", n.options.Metadata).
		Msg("started")

	for {
		conn, err := l.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) || errors.Is(err, transport.ErrConnectionClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		ctxLog.Trace().Str("remote", conn.RemoteAddr().String()).Msg("accepted connection")

		go func() {
			if err := n.accept(ctx, conn); err != nil {
				ctxLog.Warn().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("session failed")
			}
		}()
	}
}

func (n *Node) shutdown() {
	n.mu.Lock()
	active := n.active
	n.mu.Unlock()
	if active != nil {
		_ = active.Close()
	}

	done := make(chan struct{})
	n.loop.Post(func() {
		n.coord.Cleanup()
		close(done)
	})
	select {
	case <-done:
	case <-n.loopDone:
	}
}

// ConnectTo dials addr and runs the session until it ends.
func (n *Node) ConnectTo(ctx context.Context, addr string) error {
	ctxLog := ctxlog.Op(n.logger, "node.ConnectTo").With().
		Str("addr", addr).
		Logger()

	if n.Connected() {
		ctxLog.Trace().Msg("session active, not dialing")
		return ErrAlreadyConnected
	}

	conn, err := n.transport.Dial(ctx, addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}

	stream, err := conn.OpenStream(ctx)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open stream: %w", err)
	}

	return n.session(ctx, conn, stream, true)
}

func (n *Node) accept(ctx context.Context, conn transport.Connection) error {
	stream, err := conn.AcceptStream(ctx)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("accept stream: %w", err)
	}

	return n.session(ctx, conn, stream, false)
}

func (n *Node) session(ctx context.Context, conn transport.Connection, stream transport.Stream, dialed bool) error {
	ctxLog := ctxlog.Op(n.logger, "node.session").With().
		Str("remote", conn.RemoteAddr().String()).
		Bool("dialed", dialed).
		Logger()

	var mine domain.EventHello
	if err := n.Do(ctx, func(c *coordinator.Coordinator) {
		mine = c.Hello(
			domain.WithDevice(n.options.Metadata),
			domain.WithPort(n.port()),
		)
	}); err != nil {
		_ = conn.Close()
		return err
	}

	theirs, err := exchange(stream, mine, n.options.Deadline)
	if err != nil {
		_ = conn.Close()
		if errors.Is(err, ErrSelfConnect) {
			ctxLog.Trace().Msg("ignoring connection to ourselves")
			return nil
		}
		return fmt.Errorf("handshake: %w", err)
	}

	out := channel.New()
	p := peer.New(conn, stream, theirs.Payload.Device, out,
		peer.WithLogger(n.logger),
		peer.WithDeadline(n.options.Deadline),
		peer.WithMaxFrame(n.options.MaxPacketSize),
	)

	if !n.acquire(p) {
		ctxLog.Debug().Str("node", p.String()).Msg("already connected, dropping session")
		_ = p.Close()
		return nil
	}
	defer n.release(p)

	if err := n.Do(ctx, func(c *coordinator.Coordinator) {
		c.Attach(out, theirs.Payload)
		if dialed {
			c.SendAllTokens()
		}
	}); err != nil {
		_ = p.Close()
		return err
	}

	ctxLog.Info().Str("node", p.String()).Object("device", theirs.Payload.Device).Msg("connected")
	n.options.Notifier.Notify("Connected to %s", theirs.Payload.Device.Name)

	runErr := p.Run(ctx, func(msg any) {
		n.loop.Post(func() { n.coord.Process(msg) })
	})
	_ = p.Close()

	n.options.Notifier.Notify("Disconnected from %s", theirs.Payload.Device.Name)

	if err := n.Do(context.WithoutCancel(ctx), func(c *coordinator.Coordinator) {
		c.Detach()
	}); err != nil {
		ctxLog.Trace().Err(err).Msg("detach skipped")
	}

	return runErr
}

func (n *Node) acquire(p *peer.Peer) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.active != nil {
		return false
	}
	n.active = p
	return true
}

func (n *Node) release(p *peer.Peer) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.active == p {
		n.active = nil
	}
}
