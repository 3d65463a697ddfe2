package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/labi-le/clipsync/internal/config"
	"github.com/labi-le/clipsync/internal/coordinator"
	"github.com/labi-le/clipsync/internal/discovering"
	"github.com/labi-le/clipsync/internal/lock"
	"github.com/labi-le/clipsync/internal/metadata"
	"github.com/labi-le/clipsync/internal/netstack"
	"github.com/labi-le/clipsync/internal/node"
	"github.com/labi-le/clipsync/internal/notification"
	"github.com/labi-le/clipsync/internal/security"
	"github.com/labi-le/clipsync/internal/selection"
	"github.com/labi-le/clipsync/internal/service"
	"github.com/labi-le/clipsync/internal/transport"
	"github.com/labi-le/clipsync/internal/transport/quic"
	"github.com/labi-le/clipsync/internal/transport/ws"
	"github.com/labi-le/clipsync/pkg/clipboard"
	"github.com/labi-le/clipsync/pkg/console"
	"github.com/labi-le/clipsync/pkg/image"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"
)

type action struct {
	addressIP  string
	configFile string
	transport  string
	backend    string
	secret     string
	keepAlive  time.Duration

	verbose        bool
	showVersion    bool
	showHelp       bool
	notify         bool
	hidden         bool
	installService bool
	sanitizeImages bool
}

// clipFlags are the synchronization settings handed to the coordinator.
type clipFlags struct {
	selections   []string
	remotes      []string
	direction    string
	wantTargets  bool
	greedy       bool
	preferred    []string
	translations string
	blocklist    []string

	convertTimeout time.Duration
	incrTimeout    time.Duration
	remoteTimeout  time.Duration
	emitDelay      time.Duration
	loop           coordinator.LoopPolicy

	maxSendSize    string
	maxReceiveSize string
	maxPacketSize  string
}

func parseFlags() (node.Options, clipFlags, action) {
	var (
		opts = node.DefaultOptions
		clip clipFlags
		act  action
	)

	flag.IntVarP(&opts.PublicPort, "port", "p", netstack.RandomPort(), "Port to use. Default: random")
	flag.BoolVar(&opts.Discovering.Enable, "node_discover", true, "Find local nodes on the network and connect to them")
	flag.DurationVar(&opts.Discovering.Delay, "discover_delay", 30*time.Second, "Delay between node discovery")
	flag.IntVar(&opts.Discovering.MaxPeers, "max_peers", 5, "Maximum number of discovered peers")
	flag.DurationVar(&act.keepAlive, "keep_alive", time.Minute, "Interval for checking the connection between nodes")
	flag.DurationVar(&opts.Deadline.Write, "write_timeout", 5*time.Second, "Write timeout")
	flag.DurationVar(&opts.Deadline.Read, "read_timeout", 5*time.Second, "Handshake read timeout")
	flag.StringVar(&act.secret, "secret", "", "Key to connect between node (empty=all may connect)")

	flag.StringSliceVar(&clip.selections, "selections", []string{"CLIPBOARD"}, "Selections to synchronize")
	flag.StringSliceVar(&clip.remotes, "remote_selection", nil, "Map a local selection to the peer's name, local:remote")
	flag.StringVar(&clip.direction, "direction", coordinator.DirectionBoth, "Synchronization direction: both|to-peer|from-peer|disabled")
	flag.BoolVar(&clip.wantTargets, "want_targets", false, "Ask the peer to send target lists with every token")
	flag.BoolVar(&clip.greedy, "greedy", false, "Ask the peer to send content with every token")
	flag.StringSliceVar(&clip.preferred, "preferred_targets", nil, "Targets the peer should prefer when greedy")
	flag.StringVar(&clip.translations, "translated_targets", selection.DefaultTranslations, "Equivalent targets, src:dst1,dst2#...")
	flag.StringSliceVar(&clip.blocklist, "blocklist", selection.DefaultBlocklist, "Requestors never answered, matched by substring")
	flag.DurationVar(&clip.convertTimeout, "convert_timeout", selection.DefaultConvertTimeout, "Time to wait for the local selection owner")
	flag.DurationVar(&clip.incrTimeout, "incr_timeout", selection.DefaultIncrTimeout, "Time to wait between incremental chunks")
	flag.DurationVar(&clip.remoteTimeout, "remote_timeout", coordinator.DefaultRemoteTimeout, "Time to wait for the peer's contents")
	flag.DurationVar(&clip.emitDelay, "emit_delay", selection.DefaultEmitDelay, "Delay before announcing a local owner change")
	flag.BoolVar(&clip.loop.Enabled, "loop_detection", true, "Disable a selection when the peer keeps echoing our tokens")
	flag.DurationVar(&clip.loop.Window, "loop_window", coordinator.DefaultLoopWindow, "Loop detection window")
	flag.IntVar(&clip.loop.Threshold, "loop_threshold", coordinator.DefaultLoopThreshold, "Echoes within the window that trip loop detection")
	flag.StringVar(&clip.maxSendSize, "max_send_size", "0", "Largest content sent to the peer (0=unlimited)")
	flag.StringVar(&clip.maxReceiveSize, "max_receive_size", "0", "Largest content accepted from the peer (0=unlimited)")
	flag.StringVar(&clip.maxPacketSize, "max_packet_size", "16MiB", "Largest frame accepted on the wire")

	flag.StringVarP(&act.addressIP, "connect", "c", "", "Address in ip:port format to connect to the node")
	flag.StringVar(&act.configFile, "config", "", "Config file (default: clipsync.{toml,yaml} in ~/.config/clipsync or /etc/clipsync)")
	flag.StringVar(&act.transport, "transport", quic.Name, "Transport: quic|ws")
	flag.StringVar(&act.backend, "clipboard", clipboard.Auto, fmt.Sprintf("Clipboard backend: %s", strings.Join(clipboard.Names(), "|")))
	flag.BoolVar(&act.sanitizeImages, "sanitize_images", true, "Validate images and re-encode PNG before sending")
	flag.BoolVar(&act.verbose, "verbose", false, "Verbose logs")
	flag.BoolVar(&act.notify, "notify", true, "Enable notifications")
	flag.BoolVarP(&act.showVersion, "version", "v", false, "Show version")
	flag.BoolVarP(&act.showHelp, "help", "h", false, "Show help")
	flag.BoolVar(&act.hidden, "hidden", true, "Hide console window (for windows user)")
	flag.BoolVar(&act.installService, "install-service", false, "Install systemd-unit and start the service")

	flag.Parse()

	if act.showHelp {
		return opts, clip, act
	}

	if _, err := config.Merge(flag.CommandLine, act.configFile, config.Search()...); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "%v\n", err)
		flag.Usage()
		os.Exit(1)
	}

	if opts.Discovering.MaxPeers <= 0 {
		opts.Discovering.MaxPeers = 5
	}

	return opts, clip, act
}

func parseSize(name, raw string) int {
	size, err := humanize.ParseBytes(raw)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid %s format: %v\n", name, err)
		flag.Usage()
		os.Exit(1)
	}
	return int(size)
}

// coordinatorOptions turns the clipboard flags into coordinator options
// and lists the local selections to watch.
func (c clipFlags) coordinatorOptions(logger zerolog.Logger, filter selection.Filter) ([]coordinator.Option, []string, error) {
	selections, err := coordinator.ParseSelections(c.selections, c.remotes, c.direction)
	if err != nil {
		return nil, nil, err
	}

	translations, err := selection.ParseTranslations(c.translations)
	if err != nil {
		return nil, nil, err
	}

	names := make([]string, 0, len(selections))
	for _, sel := range selections {
		names = append(names, sel.Name)
	}

	return []coordinator.Option{
		coordinator.WithLogger(logger),
		coordinator.WithSelections(selections...),
		coordinator.WithWantTargets(c.wantTargets),
		coordinator.WithGreedy(c.greedy),
		coordinator.WithPreferredTargets(c.preferred),
		coordinator.WithTranslations(translations),
		coordinator.WithBlocklist(c.blocklist),
		coordinator.WithTimeouts(c.convertTimeout, c.incrTimeout, c.remoteTimeout),
		coordinator.WithEmitDelay(c.emitDelay),
		coordinator.WithLoopPolicy(c.loop),
		coordinator.WithSizeLimits(
			parseSize("max_send_size", c.maxSendSize),
			parseSize("max_receive_size", c.maxReceiveSize),
		),
		coordinator.WithFilter(filter),
	}, names, nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	opts, clip, cfg := parseFlags()

	if cfg.showHelp {
		flag.Usage()
		return
	}

	applyTagsOverrides(&cfg)
	logger := initLogger(cfg.verbose)

	logger.Info().
		Str("v", metadata.Version).
		Str("commit_hash", metadata.CommitHash).
		Str("build_time", metadata.BuildTime).
		Send()

	if cfg.showVersion {
		// ^
		return
	}

	if cfg.verbose {
		logger.Info().Msg("verbose mode enabled")
	}

	if cfg.installService {
		if err := service.InstallService(logger, serviceArgs()...); err != nil {
			logger.Fatal().Err(err).Msg("failed install service")
		}
		return
	}

	unlock, err := lock.Acquire("", logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to lock")
	}
	defer unlock()

	if cfg.hidden && console.Hide() {
		logger.Trace().Msg("console window hidden")
	}

	var filter selection.Filter
	if cfg.sanitizeImages {
		filter = image.NewSanitizer(logger).Filter
	}

	coordOpts, selections, err := clip.coordinatorOptions(logger, filter)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid clipboard settings")
	}

	backend, err := clipboard.New(cfg.backend, logger, selections...)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open clipboard")
	}

	tlsConfig, err := security.MakeTLSConfig(cfg.secret, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to generate TLS config")
	}

	var tr transport.Transport
	switch cfg.transport {
	case quic.Name:
		tr = quic.New(tlsConfig, cfg.keepAlive)
	case ws.Name:
		tr = ws.New(tlsConfig, cfg.keepAlive)
	default:
		logger.Fatal().Str("transport", cfg.transport).Msg("unknown transport")
	}

	maxPacket := parseSize("max_packet_size", clip.maxPacketSize)
	notifier := notification.New(cfg.notify)

	nd := node.New(
		tr,
		backend,
		node.WithPublicPort(opts.PublicPort),
		node.WithDeadline(opts.Deadline),
		node.WithDiscovering(opts.Discovering),
		node.WithLogger(logger),
		node.WithNotifier(notifier),
		node.WithMaxPacketSize(maxPacket),
		node.WithCoordinator(coordOpts...),
	)

	if cfg.addressIP != "" {
		go func() {
			<-nd.Ready()
			if err := nd.ConnectTo(ctx, cfg.addressIP); err != nil {
				logger.Error().Err(err).Str("addr", cfg.addressIP).Msg("failed to connect to the node")
			}
		}()
	}

	if opts.Discovering.Enable {
		go func() {
			<-nd.Ready()
			err := discovering.New(
				discovering.WithLogger(logger),
				discovering.WithMaxPeers(opts.Discovering.MaxPeers),
				discovering.WithDelay(opts.Discovering.Delay),
				discovering.WithPort(opts.PublicPort),
			).Discover(ctx, nd)
			if err != nil {
				logger.Error().Err(err).Msg("discovery stopped")
			}
		}()
	}

	if err := nd.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to start node")
	}
}

// serviceArgs repeats the explicitly passed flags in the unit, except
// the installation itself.
func serviceArgs() []string {
	var args []string
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "install-service" {
			return
		}
		value := f.Value.String()
		if slice, ok := f.Value.(flag.SliceValue); ok {
			value = strings.Join(slice.GetSlice(), ",")
		}
		args = append(args, fmt.Sprintf("--%s=%s", f.Name, value))
	})
	return args
}

func initLogger(verbose bool) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()) && !isatty.IsCygwinTerminal(os.Stderr.Fd()),
	}

	if verbose {
		zerolog.CallerMarshalFunc = func(_ uintptr, file string, line int) string {
			short := file
			for i := len(file) - 1; i > 0; i-- {
				if file[i] == '/' {
					short = file[i+1:]
					break
				}
			}
			file = short
			return fmt.Sprintf("%s:%d", file, line)
		}
		return zerolog.New(output).
			Level(zerolog.TraceLevel).
			With().
			Timestamp().
			Caller().
			Logger()
	}

	return zerolog.New(output).
		Level(zerolog.InfoLevel).
		With().
		Timestamp().
		Logger()
}
