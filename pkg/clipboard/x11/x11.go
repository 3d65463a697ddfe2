package x11

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xfixes"
	"github.com/jezek/xgb/xproto"
	"github.com/labi-le/clipsync/pkg/clipboard/eventful"
	"github.com/labi-le/clipsync/pkg/ctxlog"
	"github.com/rs/zerolog"
)

const (
	Name = "x11"

	// maxPropWords bounds a single property read, in 32-bit units.
	maxPropWords = 50 * 1024 * 1024 / 4
	// incrChunk is the largest property written at once; bigger answers
	// go out incrementally.
	incrChunk = 64 * 1024

	xFixesClientMajor = 5
	xFixesClientMinor = 0

	propertyPrefix = "CLIPSYNC_"
)

var _ eventful.Backend = (*Backend)(nil)

var ErrConnectionClosed = errors.New("x11 connection closed")

type convKey struct {
	selection xproto.Atom
	target    xproto.Atom
}

type conversion struct {
	selection string
	target    string
}

// Backend talks to the X server through a private window that owns
// selections, receives conversions and answers requests.
type Backend struct {
	logger zerolog.Logger
	conn   *xgb.Conn
	srv    server
	win    xproto.Window
	atoms  *atomCache

	targetsAtom   xproto.Atom
	timestampAtom xproto.Atom
	multipleAtom  xproto.Atom
	incrAtom      xproto.Atom

	selections map[xproto.Atom]string
	selAtoms   map[string]xproto.Atom

	mu        sync.Mutex
	sink      eventful.Sink
	claimedAt map[string]xproto.Timestamp
	pending   map[convKey]xproto.Atom
	incoming  map[xproto.Atom]conversion
	outgoing  map[outKey]*outgoing
}

// New connects to $DISPLAY and watches the given selections.
func New(logger zerolog.Logger, selections ...string) (*Backend, error) {
	b := &Backend{
		logger:     logger.With().Str("component", Name).Logger(),
		selections: make(map[xproto.Atom]string),
		selAtoms:   make(map[string]xproto.Atom),
		claimedAt:  make(map[string]xproto.Timestamp),
		pending:    make(map[convKey]xproto.Atom),
		incoming:   make(map[xproto.Atom]conversion),
		outgoing:   make(map[outKey]*outgoing),
	}

	if err := b.init(selections); err != nil {
		if b.conn != nil {
			b.conn.Close()
		}
		return nil, err
	}
	return b, nil
}

func (b *Backend) init(selections []string) error {
	var err error
	if b.conn, err = xgb.NewConn(); err != nil {
		return fmt.Errorf("xgb connect: %w", err)
	}
	b.srv = xserver{conn: b.conn}

	if err := xfixes.Init(b.conn); err != nil {
		return fmt.Errorf("xfixes init: %w", err)
	}

	if _, err := xfixes.QueryVersion(b.conn, xFixesClientMajor, xFixesClientMinor).Reply(); err != nil {
		return fmt.Errorf("xfixes query version: %w", err)
	}

	b.atoms = newAtomCache(b.conn)
	wellKnown, err := b.atoms.InternAll([]string{
		eventful.TargetsTarget, "TIMESTAMP", "MULTIPLE", eventful.IncrType,
	})
	if err != nil {
		return fmt.Errorf("load atoms: %w", err)
	}
	b.targetsAtom, b.timestampAtom, b.multipleAtom, b.incrAtom =
		wellKnown[0], wellKnown[1], wellKnown[2], wellKnown[3]

	screen := xproto.Setup(b.conn).DefaultScreen(b.conn)
	if b.win, err = xproto.NewWindowId(b.conn); err != nil {
		return err
	}

	err = xproto.CreateWindowChecked(
		b.conn,
		screen.RootDepth,
		b.win,
		screen.Root,
		0,
		0,
		1,
		1,
		0,
		xproto.WindowClassInputOutput,
		screen.RootVisual,
		xproto.CwEventMask,
		[]uint32{xproto.EventMaskPropertyChange},
	).Check()
	if err != nil {
		return fmt.Errorf("create window: %w", err)
	}

	selAtoms, err := b.atoms.InternAll(selections)
	if err != nil {
		return fmt.Errorf("load selections: %w", err)
	}

	mask := xfixes.SelectionEventMaskSetSelectionOwner |
		xfixes.SelectionEventMaskSelectionWindowDestroy |
		xfixes.SelectionEventMaskSelectionClientClose
	for i, atom := range selAtoms {
		b.selections[atom] = selections[i]
		b.selAtoms[selections[i]] = atom

		err = xfixes.SelectSelectionInputChecked(b.conn, b.win, atom, uint32(mask)).Check()
		if err != nil {
			return fmt.Errorf("select selection input %s: %w", selections[i], err)
		}
	}

	return nil
}

func (b *Backend) Name() string { return Name }

// Watch pumps X events into sink until ctx is done, then closes the connection.
func (b *Backend) Watch(ctx context.Context, sink eventful.Sink) error {
	b.mu.Lock()
	b.sink = sink
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.conn.Close()
	}()

	return pump(ctx, ctxlog.Op(b.logger, "x11.Watch"), b.conn.WaitForEvent, b.handleEvent)
}

// pump hands events to handle until next reports the connection gone.
// Losing the connection while ctx is live is an error.
func pump(ctx context.Context, logger zerolog.Logger, next func() (xgb.Event, xgb.Error), handle func(xgb.Event)) error {
	for {
		ev, xerr := next()
		if ev == nil && xerr == nil {
			if ctx.Err() != nil {
				return nil
			}
			return ErrConnectionClosed
		}
		if xerr != nil {
			logger.Debug().Str("error", xerr.Error()).Msg("x11 error")
			continue
		}
		handle(ev)
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

func (b *Backend) handleEvent(ev xgb.Event) {
	switch e := ev.(type) {
	case xfixes.SelectionNotifyEvent:
		b.ownerChanged(e)
	case xproto.SelectionClearEvent:
		if name, ok := b.selections[e.Selection]; ok {
			b.mu.Lock()
			delete(b.claimedAt, name)
			b.mu.Unlock()
			b.emit(eventful.SelectionClear{Selection: name})
		}
	case xproto.SelectionRequestEvent:
		b.selectionRequest(e)
	case xproto.SelectionNotifyEvent:
		b.converted(e)
	case xproto.PropertyNotifyEvent:
		if e.Window == b.win {
			b.incrChunk(e)
		} else {
			b.sendNextChunk(e)
		}
	}
}

func (b *Backend) ownerChanged(e xfixes.SelectionNotifyEvent) {
	name, ok := b.selections[e.Selection]
	if !ok || e.Owner == xproto.WindowNone {
		return
	}

	ours := e.Owner == b.win
	if ours {
		b.mu.Lock()
		b.claimedAt[name] = e.SelectionTimestamp
		b.mu.Unlock()
	}

	b.emit(eventful.OwnerChanged{
		Selection: name,
		Owner:     uint32(e.Owner),
		Ours:      ours,
	})
}

func (b *Backend) selectionAtom(selection string) (xproto.Atom, error) {
	atom, ok := b.selAtoms[selection]
	if !ok {
		return xproto.AtomNone, fmt.Errorf("%w: selection %s is not watched", eventful.ErrUnsupported, selection)
	}
	return atom, nil
}

func (b *Backend) Claim(selection string) error {
	atom, err := b.selectionAtom(selection)
	if err != nil {
		return err
	}

	if err := xproto.SetSelectionOwnerChecked(b.conn, b.win, atom, xproto.TimeCurrentTime).Check(); err != nil {
		return fmt.Errorf("set selection owner: %w", err)
	}

	owned, err := b.Owned(selection)
	if err != nil {
		return err
	}
	if !owned {
		return fmt.Errorf("claim %s: %w", selection, eventful.ErrNotOwner)
	}
	return nil
}

func (b *Backend) Release(selection string) error {
	atom, err := b.selectionAtom(selection)
	if err != nil {
		return err
	}

	owned, err := b.Owned(selection)
	if err != nil {
		return err
	}
	if !owned {
		return eventful.ErrNotOwner
	}

	b.mu.Lock()
	delete(b.claimedAt, selection)
	b.mu.Unlock()

	return xproto.SetSelectionOwnerChecked(b.conn, xproto.WindowNone, atom, xproto.TimeCurrentTime).Check()
}

func (b *Backend) Owned(selection string) (bool, error) {
	atom, err := b.selectionAtom(selection)
	if err != nil {
		return false, err
	}

	reply, err := xproto.GetSelectionOwner(b.conn, atom).Reply()
	if err != nil {
		return false, fmt.Errorf("get selection owner: %w", err)
	}
	return reply.Owner == b.win, nil
}

// requestorName names the window asking for a selection by WM_NAME, falling
// back to WM_CLASS.
func (b *Backend) requestorName(win xproto.Window) string {
	for _, prop := range []xproto.Atom{xproto.AtomWmName, xproto.AtomWmClass} {
		reply, err := xproto.GetProperty(b.conn, false, win, prop, xproto.GetPropertyTypeAny, 0, 64).Reply()
		if err != nil || len(reply.Value) == 0 {
			continue
		}
		return strings.TrimSpace(strings.ReplaceAll(string(reply.Value), "\x00", " "))
	}
	return ""
}
