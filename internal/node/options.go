package node

import (
	"time"

	"github.com/labi-le/clipsync/internal/coordinator"
	"github.com/labi-le/clipsync/internal/notification"
	"github.com/labi-le/clipsync/internal/types/domain"
	"github.com/labi-le/clipsync/pkg/network"
	"github.com/labi-le/clipsync/pkg/protoutil"
	"github.com/rs/zerolog"
)

type Options struct {
	PublicPort    int
	Deadline      network.Deadline
	Notifier      notification.Notifier
	Discovering   DiscoverOptions
	Metadata      domain.Device
	Logger        zerolog.Logger
	MaxPacketSize int
	Coordinator   []coordinator.Option
}

type DiscoverOptions struct {
	Enable   bool
	Delay    time.Duration
	MaxPeers int
}

type Option func(*Options)

//nolint:mnd //shut up
var DefaultOptions = Options{
	// zero listens on an ephemeral port
	PublicPort: 0,
	Deadline: network.Deadline{
		Read:  5 * time.Second,
		Write: 5 * time.Second,
	},
	Notifier: notification.NullNotifier{},
	Discovering: DiscoverOptions{
		Enable:   true,
		Delay:    30 * time.Second,
		MaxPeers: 5,
	},
	Metadata:      domain.SelfDevice(),
	Logger:        zerolog.Nop(),
	MaxPacketSize: protoutil.DefaultMaxFrame,
}

func NewOptions(opts ...Option) Options {
	options := DefaultOptions

	for _, opt := range opts {
		opt(&options)
	}

	return options
}

func WithPublicPort(port int) Option {
	return func(o *Options) {
		o.PublicPort = port
	}
}

func WithDeadline(dd network.Deadline) Option {
	return func(o *Options) {
		o.Deadline = dd
	}
}

func WithNotifier(notifier notification.Notifier) Option {
	return func(o *Options) {
		o.Notifier = notifier
	}
}

func WithDiscovering(opt DiscoverOptions) Option {
	return func(o *Options) {
		o.Discovering = opt
	}
}

func WithMetadata(opt domain.Device) Option {
	return func(o *Options) {
		o.Metadata = opt
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

func WithMaxPacketSize(size int) Option {
	return func(o *Options) {
		o.MaxPacketSize = size
	}
}

// WithCoordinator passes options to the clipboard coordinator.
func WithCoordinator(opts ...coordinator.Option) Option {
	return func(o *Options) {
		o.Coordinator = append(o.Coordinator, opts...)
	}
}
