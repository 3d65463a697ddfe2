package peer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/labi-le/clipsync/internal/channel"
	"github.com/labi-le/clipsync/internal/protocol"
	"github.com/labi-le/clipsync/internal/transport"
	"github.com/labi-le/clipsync/internal/types/domain"
	"github.com/labi-le/clipsync/pkg/ctxlog"
	"github.com/labi-le/clipsync/pkg/network"
	"github.com/labi-le/clipsync/pkg/protoutil"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Handler receives every decoded message in arrival order.
type Handler func(msg any)

type Options struct {
	Logger   zerolog.Logger
	Deadline network.Deadline
	MaxFrame int
}

type Option func(*Options)

var DefaultOptions = Options{
	Logger:   zerolog.Nop(),
	MaxFrame: protoutil.DefaultMaxFrame,
}

func WithLogger(logger zerolog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

func WithDeadline(dd network.Deadline) Option {
	return func(o *Options) {
		o.Deadline = dd
	}
}

func WithMaxFrame(limit int) Option {
	return func(o *Options) {
		o.MaxFrame = limit
	}
}

// Peer is one session with the remote side: a single stream read by one
// goroutine and written by another.
type Peer struct {
	conn   transport.Connection
	stream transport.Stream
	device domain.Device
	out    *channel.Channel
	opts   Options
	logger zerolog.Logger

	stringRepr string
}

func New(
	conn transport.Connection,
	stream transport.Stream,
	device domain.Device,
	out *channel.Channel,
	opts ...Option,
) *Peer {
	options := DefaultOptions
	for _, opt := range opts {
		opt(&options)
	}

	return &Peer{
		conn:   conn,
		stream: stream,
		device: device,
		out:    out,
		opts:   options,
		logger: options.Logger,
	}
}

func (p *Peer) Device() domain.Device { return p.device }

func (p *Peer) String() string {
	if p.stringRepr == "" {
		p.stringRepr = fmt.Sprintf("%s -> %s", p.device.Name, p.conn.RemoteAddr())
	}
	return p.stringRepr
}

// Run pumps the session until either direction fails or ctx is done.
// A peer hanging up is not an error.
func (p *Peer) Run(ctx context.Context, handle Handler) error {
	ctxLog := ctxlog.Op(p.logger, "peer.Run").With().
		Str("node", p.String()).
		Logger()
	defer ctxLog.Info().Msg("disconnected")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return p.receive(ctx, handle)
	})
	g.Go(func() error {
		return p.send(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		p.out.Close()
		_ = p.stream.Reset()
		return nil
	})

	err := g.Wait()
	if isClosed(err) {
		return nil
	}
	return err
}

// Close tears down the connection, which ends Run.
func (p *Peer) Close() error {
	p.out.Close()
	return p.conn.Close()
}

func (p *Peer) receive(ctx context.Context, handle Handler) error {
	ctxLog := ctxlog.Op(p.logger, "peer.receive")

	for {
		msg, err := protocol.DecodeEventLimit(p.stream, p.opts.MaxFrame)
		if err != nil {
			if ctx.Err() != nil || isClosed(err) {
				return io.EOF
			}
			return fmt.Errorf("receive: %w", err)
		}

		ctxLog.Trace().Type("msg", msg).Str("from", p.device.Name).Msg("received")
		handle(msg)
	}
}

func (p *Peer) send(ctx context.Context) error {
	ctxLog := ctxlog.Op(p.logger, "peer.send")

	for {
		msg, err := p.out.Next(ctx)
		if err != nil {
			return io.EOF
		}

		if err := network.SetWriteDeadline(p.stream, p.opts.Deadline); err != nil {
			return err
		}

		if err := protocol.EncodeToWriter(p.stream, msg); err != nil {
			if isClosed(err) {
				return io.EOF
			}
			return fmt.Errorf("send: %w", err)
		}

		ctxLog.Trace().Type("msg", msg).Str("to", p.device.Name).Msg("sent")
	}
}

func isClosed(err error) bool {
	return err == nil ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, channel.ErrClosed) ||
		errors.Is(err, transport.ErrConnectionClosed) ||
		errors.Is(err, transport.ErrStreamCanceled)
}
