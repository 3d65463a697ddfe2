package protocol

import (
	"fmt"
	"time"

	"github.com/labi-le/clipsync/internal/types/domain"
	"github.com/labi-le/clipsync/pkg/clipboard/eventful"
	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// envelope fields
const (
	fieldCreated protowire.Number = 1
	fieldFrom    protowire.Number = 2

	fieldHello            protowire.Number = 10
	fieldToken            protowire.Number = 11
	fieldRequest          protowire.Number = 12
	fieldContents         protowire.Number = 13
	fieldEnableSelections protowire.Number = 14
)

// appendEvent marshals any domain event into b.
func appendEvent(b []byte, v any) ([]byte, error) {
	e := encoder{b: b}

	switch ev := v.(type) {
	case domain.EventHello:
		appendHeader(&e, ev.From, ev.Created)
		e.message(fieldHello, func(e *encoder) { encodeHello(e, ev.Payload) })
	case domain.EventToken:
		appendHeader(&e, ev.From, ev.Created)
		e.message(fieldToken, func(e *encoder) { encodeToken(e, ev.Payload) })
	case domain.EventRequest:
		appendHeader(&e, ev.From, ev.Created)
		e.message(fieldRequest, func(e *encoder) { encodeRequest(e, ev.Payload) })
	case domain.EventContents:
		appendHeader(&e, ev.From, ev.Created)
		e.message(fieldContents, func(e *encoder) { encodeContents(e, ev.Payload) })
	case domain.EventEnableSelections:
		appendHeader(&e, ev.From, ev.Created)
		e.message(fieldEnableSelections, func(e *encoder) { e.strings(1, ev.Payload.Selections) })
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownEvent, v)
	}

	return e.b, nil
}

func appendHeader(e *encoder, from int64, created time.Time) {
	if !created.IsZero() {
		ts, _ := proto.Marshal(timestamppb.New(created))
		e.bytes(fieldCreated, ts)
	}
	e.int64(fieldFrom, from)
}

func encodeHello(e *encoder, h domain.Hello) {
	e.string(1, h.Version)
	e.message(2, func(e *encoder) {
		e.int64(1, h.Device.ID)
		e.string(2, h.Device.Name)
		e.string(3, h.Device.Arch)
	})
	e.varint(3, uint64(h.Port))
	e.strings(4, h.Selections)
	e.bool(5, h.WantTargets)
	e.bool(6, h.Greedy)
	e.strings(7, h.PreferredTargets)
}

func encodeToken(e *encoder, t domain.Token) {
	e.string(1, t.Selection)
	e.strings(2, t.Targets)
	e.string(3, t.Target)
	if t.Content != nil {
		e.message(4, func(e *encoder) { encodeContent(e, *t.Content) })
	}
	e.bool(5, t.Claim)
	e.bool(6, t.Greedy)
	e.bool(7, t.Synchronous)
}

// encodeContent sends TARGETS style answers as atom names, everything else as bytes.
func encodeContent(e *encoder, c eventful.Content) {
	e.string(1, c.Type)
	e.varint(2, uint64(c.Format))
	if c.Type == eventful.AtomType {
		e.strings(4, eventful.DecodeTargets(c.Data))
		return
	}
	e.bytes(3, c.Data)
}

func encodeRequest(e *encoder, r domain.Request) {
	e.int64(1, r.ID)
	e.string(2, r.Selection)
	e.string(3, r.Target)
}

func encodeContents(e *encoder, c domain.Contents) {
	e.int64(1, c.ID)
	e.string(2, c.Selection)
	e.string(3, c.Target)
	if !c.None {
		e.message(4, func(e *encoder) {
			encodeContent(e, eventful.Content{Type: c.Type, Format: c.Format, Data: c.Data})
		})
	}
	e.bool(5, c.None)
}

// decodeEvent unmarshals one envelope into its domain event.
func decodeEvent(b []byte) (any, error) {
	var (
		from    int64
		created time.Time
		payload any
	)

	err := walk(b, func(f field) error {
		switch f.num {
		case fieldCreated:
			var ts timestamppb.Timestamp
			if err := proto.Unmarshal(f.raw, &ts); err != nil {
				return fmt.Errorf("%w: created: %w", ErrMalformed, err)
			}
			created = ts.AsTime()
		case fieldFrom:
			from = f.int64()
		case fieldHello:
			h, err := decodeHello(f.raw)
			payload = domain.EventHello{Payload: h}
			return err
		case fieldToken:
			t, err := decodeToken(f.raw)
			payload = domain.EventToken{Payload: t}
			return err
		case fieldRequest:
			r, err := decodeRequest(f.raw)
			payload = domain.EventRequest{Payload: r}
			return err
		case fieldContents:
			c, err := decodeContents(f.raw)
			payload = domain.EventContents{Payload: c}
			return err
		case fieldEnableSelections:
			var s domain.EnableSelections
			err := walk(f.raw, func(f field) error {
				if f.num == 1 {
					s.Selections = append(s.Selections, f.string())
				}
				return nil
			})
			payload = domain.EventEnableSelections{Payload: s}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	switch ev := payload.(type) {
	case domain.EventHello:
		ev.From, ev.Created = from, created
		return ev, nil
	case domain.EventToken:
		ev.From, ev.Created = from, created
		return ev, nil
	case domain.EventRequest:
		ev.From, ev.Created = from, created
		return ev, nil
	case domain.EventContents:
		ev.From, ev.Created = from, created
		return ev, nil
	case domain.EventEnableSelections:
		ev.From, ev.Created = from, created
		return ev, nil
	default:
		return nil, fmt.Errorf("%w: empty envelope", ErrUnknownEvent)
	}
}

func decodeHello(b []byte) (domain.Hello, error) {
	var h domain.Hello
	err := walk(b, func(f field) error {
		switch f.num {
		case 1:
			h.Version = f.string()
		case 2:
			return walk(f.raw, func(f field) error {
				switch f.num {
				case 1:
					h.Device.ID = f.int64()
				case 2:
					h.Device.Name = f.string()
				case 3:
					h.Device.Arch = f.string()
				}
				return nil
			})
		case 3:
			h.Port = uint32(f.x)
		case 4:
			h.Selections = append(h.Selections, f.string())
		case 5:
			h.WantTargets = f.bool()
		case 6:
			h.Greedy = f.bool()
		case 7:
			h.PreferredTargets = append(h.PreferredTargets, f.string())
		}
		return nil
	})
	return h, err
}

func decodeToken(b []byte) (domain.Token, error) {
	var t domain.Token
	err := walk(b, func(f field) error {
		switch f.num {
		case 1:
			t.Selection = f.string()
		case 2:
			if err := f.expect(protowire.BytesType); err != nil {
				return err
			}
			t.Targets = append(t.Targets, f.string())
		case 3:
			t.Target = f.string()
		case 4:
			c, err := decodeContent(f.raw)
			if err != nil {
				return err
			}
			t.Content = &c
		case 5:
			t.Claim = f.bool()
		case 6:
			t.Greedy = f.bool()
		case 7:
			t.Synchronous = f.bool()
		}
		return nil
	})
	if err != nil {
		return t, err
	}

	if t.Content != nil && t.Target == "" {
		return t, fmt.Errorf("%w: token content without target", ErrMalformed)
	}
	return t, nil
}

func decodeContent(b []byte) (eventful.Content, error) {
	var (
		c     eventful.Content
		atoms []string
	)
	err := walk(b, func(f field) error {
		switch f.num {
		case 1:
			c.Type = f.string()
		case 2:
			c.Format = int(f.x)
		case 3:
			c.Data = f.raw
		case 4:
			atoms = append(atoms, f.string())
		}
		return nil
	})
	if atoms != nil {
		c.Data = eventful.EncodeTargets(atoms)
	}
	return c, err
}

func decodeRequest(b []byte) (domain.Request, error) {
	var r domain.Request
	err := walk(b, func(f field) error {
		switch f.num {
		case 1:
			r.ID = f.int64()
		case 2:
			r.Selection = f.string()
		case 3:
			r.Target = f.string()
		}
		return nil
	})
	return r, err
}

func decodeContents(b []byte) (domain.Contents, error) {
	var c domain.Contents
	err := walk(b, func(f field) error {
		switch f.num {
		case 1:
			c.ID = f.int64()
		case 2:
			c.Selection = f.string()
		case 3:
			c.Target = f.string()
		case 4:
			content, err := decodeContent(f.raw)
			if err != nil {
				return err
			}
			c.Type, c.Format, c.Data = content.Type, content.Format, content.Data
		case 5:
			c.None = f.bool()
		}
		return nil
	})
	return c, err
}
