package selection

import (
	"time"

	"github.com/labi-le/clipsync/internal/history"
	"github.com/labi-le/clipsync/internal/types/domain"
	"github.com/labi-le/clipsync/pkg/clipboard/eventful"
	"github.com/rs/zerolog"
)

const (
	DefaultConvertTimeout = 2500 * time.Millisecond
	DefaultIncrTimeout    = time.Second
	DefaultEmitDelay      = 100 * time.Millisecond
)

// DefaultBlocklist names requestors known to bounce the selection back and forth.
var DefaultBlocklist = []string{"clipit", "Software", "gnome-shell"}

// Filter rewrites locally sourced content before it leaves the process.
type Filter func(target string, c eventful.Content) eventful.Content

// Hooks are the outbound events of a Proxy.
type Hooks struct {
	SendToken     func(domain.Token)
	RequestTarget func(target string)
}

type Options struct {
	Logger zerolog.Logger

	CanSend    bool
	CanReceive bool
	// WantTargets: the peer wants the target list along with each token.
	WantTargets bool
	// Greedy: the peer wants content pushed along with each token.
	Greedy bool
	// Synchronous: this side expects content with the tokens it receives.
	Synchronous      bool
	PreferredTargets []string

	Translations Translations
	Blocklist    []string

	ConvertTimeout time.Duration
	IncrTimeout    time.Duration
	EmitDelay      time.Duration

	Filter Filter
	// Warned throttles repeated log entries; owned by the coordinator.
	Warned *history.Set[string]
}

// Option defines the method to configure Options
type Option func(*Options)

var DefaultOptions = Options{
	Logger:         zerolog.Nop(),
	CanSend:        true,
	CanReceive:     true,
	Translations:   MustParseTranslations(DefaultTranslations),
	Blocklist:      DefaultBlocklist,
	ConvertTimeout: DefaultConvertTimeout,
	IncrTimeout:    DefaultIncrTimeout,
	EmitDelay:      DefaultEmitDelay,
}

func NewOptions(opts ...Option) Options {
	options := DefaultOptions
	for _, opt := range opts {
		opt(&options)
	}

	if options.Warned == nil {
		options.Warned = history.NewSet[string](256)
	}
	if options.Translations == nil {
		options.Translations = Translations{}
	}
	return options
}

func WithLogger(logger zerolog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

func WithDirection(canSend, canReceive bool) Option {
	return func(o *Options) {
		o.CanSend = canSend
		o.CanReceive = canReceive
	}
}

func WithWantTargets(want bool) Option {
	return func(o *Options) {
		o.WantTargets = want
	}
}

func WithGreedy(greedy bool) Option {
	return func(o *Options) {
		o.Greedy = greedy
	}
}

func WithSynchronous(sync bool) Option {
	return func(o *Options) {
		o.Synchronous = sync
	}
}

func WithPreferredTargets(targets []string) Option {
	return func(o *Options) {
		o.PreferredTargets = targets
	}
}

func WithTranslations(t Translations) Option {
	return func(o *Options) {
		o.Translations = t
	}
}

func WithBlocklist(names []string) Option {
	return func(o *Options) {
		o.Blocklist = names
	}
}

func WithTimeouts(convert, incr time.Duration) Option {
	return func(o *Options) {
		o.ConvertTimeout = convert
		o.IncrTimeout = incr
	}
}

func WithEmitDelay(d time.Duration) Option {
	return func(o *Options) {
		o.EmitDelay = d
	}
}

func WithFilter(f Filter) Option {
	return func(o *Options) {
		o.Filter = f
	}
}

func WithWarned(set *history.Set[string]) Option {
	return func(o *Options) {
		o.Warned = set
	}
}
