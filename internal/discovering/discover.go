package discovering

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/labi-le/clipsync/internal/protocol"
	"github.com/labi-le/clipsync/internal/types/domain"
	"github.com/labi-le/clipsync/pkg/ctxlog"
	"github.com/labi-le/clipsync/pkg/network"
	"github.com/rs/zerolog"
	"github.com/schollz/peerdiscovery"
)

// Connector is the node side of discovery.
type Connector interface {
	Metadata() domain.Device
	Connected() bool
	ConnectTo(ctx context.Context, addr string) error
}

type Discover struct {
	maxPeers int
	delay    time.Duration
	port     int
	logger   zerolog.Logger
}

var defaultConfig = Discover{
	maxPeers: 10,
	delay:    time.Minute * 5,
	logger:   zerolog.Nop(),
}

type Option func(*Discover)

func WithMaxPeers(maxPeers int) Option {
	return func(d *Discover) {
		d.maxPeers = maxPeers
	}
}

func WithDelay(delay time.Duration) Option {
	return func(d *Discover) {
		d.delay = delay
	}
}

// WithPort sets the session port announced to other hosts.
func WithPort(port int) Option {
	return func(d *Discover) {
		d.port = port
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(d *Discover) {
		d.logger = logger
	}
}

func New(opts ...Option) *Discover {
	d := defaultConfig

	for _, opt := range opts {
		opt(&d)
	}

	return &d
}

// Payload is the hello broadcast to the local network.
func (d *Discover) Payload(c Connector) []byte {
	return protocol.MustEncode(domain.NewHello(
		domain.WithDevice(c.Metadata()),
		domain.WithPort(d.port),
	))
}

// Discover broadcasts our presence and dials every host that answers,
// as long as no session is active. It blocks until ctx is done.
func (d *Discover) Discover(ctx context.Context, c Connector) error {
	ctxLog := ctxlog.Op(d.logger, "discovering.Discover")

	payload := d.Payload(c)
	stop := make(chan struct{})
	go func() {
		<-ctx.Done()
		close(stop)
	}()

	_, err := peerdiscovery.Discover(peerdiscovery.Settings{
		PayloadFunc: func() []byte { return payload },
		Limit:       d.maxPeers,
		TimeLimit:   -1,
		Delay:       d.delay,
		AllowSelf:   false,
		StopChan:    stop,
		Notify: func(found peerdiscovery.Discovered) {
			addr, err := d.peerAddr(c, found)
			if err != nil {
				ctxLog.Trace().Err(err).Str("from", found.Address).Msg("ignored announcement")
				return
			}
			if c.Connected() {
				return
			}

			ctxLog.Debug().Str("addr", addr).Msg("discovered peer")
			go func() {
				if err := c.ConnectTo(ctx, addr); err != nil {
					ctxLog.Debug().Err(err).Str("addr", addr).Msg("failed to connect to discovered peer")
				}
			}()
		},
	})
	if err != nil {
		return fmt.Errorf("discover: %w", err)
	}
	return nil
}

var (
	ErrSelf       = errors.New("announcement from this host")
	ErrNoEndpoint = errors.New("announcement without port")
)

func (d *Discover) peerAddr(c Connector, found peerdiscovery.Discovered) (string, error) {
	peerIP := net.ParseIP(found.Address)
	// the library calls Notify for our own broadcasts despite AllowSelf:false
	if network.IsLocalIP(peerIP) {
		return "", ErrSelf
	}

	hello, err := protocol.DecodeExpect[domain.EventHello](bytes.NewReader(found.Payload))
	if err != nil {
		return "", err
	}
	if hello.Payload.Device.ID == c.Metadata().ID {
		return "", ErrSelf
	}
	if hello.Payload.Port == 0 {
		return "", ErrNoEndpoint
	}

	return network.HostPort(peerIP, int(hello.Payload.Port)), nil
}
