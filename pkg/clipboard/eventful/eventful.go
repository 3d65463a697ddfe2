package eventful

import (
	"context"
	"errors"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
)

const (
	// TargetsTarget is the pseudo target listing the formats on offer.
	TargetsTarget = "TARGETS"
	// IncrType announces an incremental transfer; Data holds the declared size.
	IncrType = "INCR"
	// AtomType is the type of a TARGETS answer.
	AtomType = "ATOM"
)

var (
	ErrNotOwner    = errors.New("selection is not owned by this process")
	ErrUnsupported = errors.New("operation not supported by backend")
)

// Backend is the host clipboard mechanism. All methods except Watch are called
// from the event loop and must not block on anything slower than a local
// round trip; results of Convert arrive later as Chunk events.
type Backend interface {
	Name() string
	// Watch pumps host notifications into sink until ctx is done.
	Watch(ctx context.Context, sink Sink) error
	// Claim asserts ownership of selection for this process.
	Claim(selection string) error
	// Release gives up ownership if held.
	Release(selection string) error
	// Owned reports whether this process currently owns selection.
	Owned(selection string) (bool, error)
	// Convert asks the current owner for target; TargetsTarget lists formats.
	Convert(selection, target string) error
	// Respond answers a local application's request. A nil content refuses it.
	Respond(selection string, req Request, content *Content) error
}

// TargetClaimer is implemented by backends whose claim depends on the
// peer's targets: a host keeping copies instead of promises, or a protocol
// that announces formats up front. They are claimed again on every peer
// claim, even while already owning the selection.
type TargetClaimer interface {
	ClaimTargets(selection string, targets []string) error
}

type Sink func(Event)

// Content is one representation of the selection: type name, bit width and bytes.
type Content struct {
	Type   string
	Format int
	Data   []byte
}

func (c Content) Empty() bool { return c.Type == "" && len(c.Data) == 0 }

func (c Content) MarshalZerologObject(e *zerolog.Event) {
	e.Str("type", c.Type)
	e.Int("format", c.Format)
	e.Str("size", humanize.IBytes(uint64(len(c.Data))))
}

// EmptyFor is the answer used when nothing can be provided for target.
func EmptyFor(target string) Content {
	if target == TargetsTarget {
		return Content{Type: AtomType, Format: 32}
	}
	return Content{}
}

// Requestor identifies the local application asking for the selection.
type Requestor struct {
	ID   uint32
	Name string
}

// Request is a local application's selection request.
type Request struct {
	Requestor Requestor
	Target    string
	Property  string
	Time      uint32
}

type Event interface {
	SelectionName() string
}

// OwnerChanged reports that a new owner appeared for the selection.
type OwnerChanged struct {
	Selection string
	Owner     uint32
	Ours      bool
}

// SelectionClear reports that this process lost ownership.
type SelectionClear struct {
	Selection string
}

// SelectionRequest carries a local application's request while we own the selection.
type SelectionRequest struct {
	Selection string
	Request   Request
}

// Chunk is local content produced by Convert. Content is nil when the owner
// refused the conversion. Incremental transfers start with a Chunk of IncrType
// and end with an empty Chunk.
type Chunk struct {
	Selection string
	Target    string
	Content   *Content
}

func (e OwnerChanged) SelectionName() string     { return e.Selection }
func (e SelectionClear) SelectionName() string   { return e.Selection }
func (e SelectionRequest) SelectionName() string { return e.Selection }
func (e Chunk) SelectionName() string            { return e.Selection }
