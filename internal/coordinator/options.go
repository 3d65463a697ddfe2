package coordinator

import (
	"time"

	"github.com/labi-le/clipsync/internal/notification"
	"github.com/labi-le/clipsync/internal/selection"
	"github.com/rs/zerolog"
)

const (
	DefaultRemoteTimeout = 5 * time.Second
	DefaultLoopWindow    = 2 * time.Second
	DefaultLoopThreshold = 10
)

// Selection configures one synchronized selection.
type Selection struct {
	Name string
	// Remote is the peer's name for this selection; empty means the same name.
	Remote     string
	CanSend    bool
	CanReceive bool
}

func (s Selection) remote() string {
	if s.Remote == "" {
		return s.Name
	}
	return s.Remote
}

// LoopPolicy trips when the peer echoes Threshold of our own tokens within Window.
type LoopPolicy struct {
	Enabled   bool
	Window    time.Duration
	Threshold int
}

type Options struct {
	Logger     zerolog.Logger
	Selections []Selection

	// capabilities announced to the peer
	WantTargets      bool
	Greedy           bool
	PreferredTargets []string

	Translations selection.Translations
	Blocklist    []string

	ConvertTimeout time.Duration
	IncrTimeout    time.Duration
	EmitDelay      time.Duration
	RemoteTimeout  time.Duration

	Loop LoopPolicy

	// zero disables the limit
	MaxSendSize    int
	MaxReceiveSize int

	Filter   selection.Filter
	Notifier notification.Notifier
}

type Option func(*Options)

var DefaultOptions = Options{
	Logger: zerolog.Nop(),
	Selections: []Selection{
		{Name: "CLIPBOARD", CanSend: true, CanReceive: true},
	},
	Translations:   selection.MustParseTranslations(selection.DefaultTranslations),
	Blocklist:      selection.DefaultBlocklist,
	ConvertTimeout: selection.DefaultConvertTimeout,
	IncrTimeout:    selection.DefaultIncrTimeout,
	EmitDelay:      selection.DefaultEmitDelay,
	RemoteTimeout:  DefaultRemoteTimeout,
	Loop: LoopPolicy{
		Enabled:   true,
		Window:    DefaultLoopWindow,
		Threshold: DefaultLoopThreshold,
	},
	Notifier: notification.NullNotifier{},
}

func NewOptions(opts ...Option) Options {
	options := DefaultOptions
	for _, opt := range opts {
		opt(&options)
	}
	if options.Notifier == nil {
		options.Notifier = notification.NullNotifier{}
	}
	return options
}

func WithLogger(logger zerolog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

func WithSelections(selections ...Selection) Option {
	return func(o *Options) {
		o.Selections = selections
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

func WithPreferredTargets(targets []string) Option {
	return func(o *Options) {
		o.PreferredTargets = targets
	}
}

func WithTranslations(t selection.Translations) Option {
	return func(o *Options) {
		o.Translations = t
	}
}

func WithBlocklist(names []string) Option {
	return func(o *Options) {
		o.Blocklist = names
	}
}

func WithTimeouts(convert, incr, remote time.Duration) Option {
	return func(o *Options) {
		o.ConvertTimeout = convert
		o.IncrTimeout = incr
		o.RemoteTimeout = remote
	}
}

func WithEmitDelay(d time.Duration) Option {
	return func(o *Options) {
		o.EmitDelay = d
	}
}

func WithLoopPolicy(p LoopPolicy) Option {
	return func(o *Options) {
		o.Loop = p
	}
}

func WithSizeLimits(maxSend, maxReceive int) Option {
	return func(o *Options) {
		o.MaxSendSize = maxSend
		o.MaxReceiveSize = maxReceive
	}
}

func WithFilter(f selection.Filter) Option {
	return func(o *Options) {
		o.Filter = f
	}
}

func WithNotifier(n notification.Notifier) Option {
	return func(o *Options) {
		o.Notifier = n
	}
}
