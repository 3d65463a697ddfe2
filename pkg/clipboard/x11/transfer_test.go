package x11

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
	"github.com/labi-le/clipsync/pkg/clipboard/eventful"
	"github.com/rs/zerolog"
)

const (
	ourWindow xproto.Window = 1
	requestor xproto.Window = 7

	clipboardAtom xproto.Atom = 100
	utf8Atom      xproto.Atom = 101
	targetsAtom   xproto.Atom = 102
	timestampAtom xproto.Atom = 103
	incrAtom      xproto.Atom = 104
	xselAtom      xproto.Atom = 105
	stringAtom    xproto.Atom = 106
	convAtom      xproto.Atom = 107
)

type propertyWrite struct {
	win    xproto.Window
	prop   xproto.Atom
	typ    xproto.Atom
	format byte
	data   []byte
}

type fakeServer struct {
	props    map[xproto.Atom]*xproto.GetPropertyReply
	writes   []propertyWrite
	watching map[xproto.Window]bool
	notified []xproto.Atom
	err      error
}

func (s *fakeServer) readProperty(_ xproto.Window, prop xproto.Atom) (*xproto.GetPropertyReply, error) {
	reply, ok := s.props[prop]
	if !ok {
		return nil, errors.New("no such property")
	}
	delete(s.props, prop)
	return reply, nil
}

func (s *fakeServer) changeProperty(win xproto.Window, prop, typ xproto.Atom, format byte, data []byte) error {
	if s.err != nil {
		return s.err
	}
	s.writes = append(s.writes, propertyWrite{win: win, prop: prop, typ: typ, format: format, data: bytes.Clone(data)})
	return nil
}

func (s *fakeServer) watchProperties(win xproto.Window, on bool) { s.watching[win] = on }

func (s *fakeServer) sendNotify(ev xproto.SelectionNotifyEvent) {
	s.notified = append(s.notified, ev.Property)
}

func newTestBackend() (*Backend, *fakeServer, *[]eventful.Event) {
	srv := &fakeServer{
		props:    make(map[xproto.Atom]*xproto.GetPropertyReply),
		watching: make(map[xproto.Window]bool),
	}
	events := new([]eventful.Event)

	b := &Backend{
		logger:        zerolog.Nop(),
		srv:           srv,
		win:           ourWindow,
		atoms:         newAtomCache(nil),
		targetsAtom:   targetsAtom,
		timestampAtom: timestampAtom,
		incrAtom:      incrAtom,
		selections:    map[xproto.Atom]string{clipboardAtom: "CLIPBOARD"},
		selAtoms:      map[string]xproto.Atom{"CLIPBOARD": clipboardAtom},
		claimedAt:     make(map[string]xproto.Timestamp),
		pending:       make(map[convKey]xproto.Atom),
		incoming:      make(map[xproto.Atom]conversion),
		outgoing:      make(map[outKey]*outgoing),
		sink:          func(ev eventful.Event) { *events = append(*events, ev) },
	}

	for name, atom := range map[string]xproto.Atom{
		"CLIPBOARD":                      clipboardAtom,
		"UTF8_STRING":                    utf8Atom,
		"TARGETS":                        targetsAtom,
		"TIMESTAMP":                      timestampAtom,
		"INCR":                           incrAtom,
		"XSEL_DATA":                      xselAtom,
		"STRING":                         stringAtom,
		"CLIPSYNC_CLIPBOARD_UTF8_STRING": convAtom,
	} {
		b.atoms.remember(name, atom)
	}
	return b, srv, events
}

func utf8Request() eventful.Request {
	return eventful.Request{
		Requestor: eventful.Requestor{ID: uint32(requestor), Name: "xterm"},
		Target:    "UTF8_STRING",
		Property:  "XSEL_DATA",
	}
}

func TestEncode(t *testing.T) {
	b, _, _ := newTestBackend()

	tests := []struct {
		name       string
		target     string
		content    eventful.Content
		wantType   xproto.Atom
		wantFormat byte
		wantData   []byte
	}{
		{
			name:       "text",
			target:     "UTF8_STRING",
			content:    eventful.Content{Type: "UTF8_STRING", Format: 8, Data: []byte("hi")},
			wantType:   utf8Atom,
			wantFormat: 8,
			wantData:   []byte("hi"),
		},
		{
			name:       "missing type uses target",
			target:     "STRING",
			content:    eventful.Content{Data: []byte("hi")},
			wantType:   stringAtom,
			wantFormat: 8,
			wantData:   []byte("hi"),
		},
		{
			name:       "invalid format",
			target:     "UTF8_STRING",
			content:    eventful.Content{Type: "UTF8_STRING", Format: 12, Data: []byte("hi")},
			wantType:   utf8Atom,
			wantFormat: 8,
			wantData:   []byte("hi"),
		},
		{
			name:       "targets become atoms",
			target:     eventful.TargetsTarget,
			content:    eventful.TargetsContent([]string{"UTF8_STRING", "STRING"}),
			wantType:   xproto.AtomAtom,
			wantFormat: 32,
			wantData:   encodeAtoms([]xproto.Atom{targetsAtom, timestampAtom, utf8Atom, stringAtom}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			typ, format, data, err := b.encode(tt.target, tt.content)
			if err != nil {
				t.Fatal(err)
			}
			if typ != tt.wantType || format != tt.wantFormat {
				t.Fatalf("type/format = %d/%d, want %d/%d", typ, format, tt.wantType, tt.wantFormat)
			}
			if !bytes.Equal(data, tt.wantData) {
				t.Fatalf("data = %v, want %v", data, tt.wantData)
			}
		})
	}
}

func TestRespond_Plain(t *testing.T) {
	b, srv, _ := newTestBackend()

	content := eventful.Content{Type: "UTF8_STRING", Format: 8, Data: []byte("hello")}
	if err := b.Respond("CLIPBOARD", utf8Request(), &content); err != nil {
		t.Fatal(err)
	}

	want := []propertyWrite{{win: requestor, prop: xselAtom, typ: utf8Atom, format: 8, data: []byte("hello")}}
	if diff := cmp.Diff(want, srv.writes, cmp.AllowUnexported(propertyWrite{})); diff != "" {
		t.Fatalf("writes (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]xproto.Atom{xselAtom}, srv.notified); diff != "" {
		t.Fatalf("notifications (-want +got):\n%s", diff)
	}
}

func TestRespond_Refusal(t *testing.T) {
	b, srv, _ := newTestBackend()

	if err := b.Respond("CLIPBOARD", utf8Request(), nil); err != nil {
		t.Fatal(err)
	}
	if len(srv.writes) != 0 {
		t.Fatalf("refusal wrote %d properties", len(srv.writes))
	}
	if diff := cmp.Diff([]xproto.Atom{xproto.AtomNone}, srv.notified); diff != "" {
		t.Fatalf("notifications (-want +got):\n%s", diff)
	}
}

func TestRespond_Incremental(t *testing.T) {
	b, srv, _ := newTestBackend()

	data := bytes.Repeat([]byte("x"), 2*incrChunk+10)
	content := eventful.Content{Type: "UTF8_STRING", Format: 8, Data: data}
	if err := b.Respond("CLIPBOARD", utf8Request(), &content); err != nil {
		t.Fatal(err)
	}

	if len(srv.writes) != 1 {
		t.Fatalf("expected the INCR announcement only, got %d writes", len(srv.writes))
	}
	announce := srv.writes[0]
	if announce.typ != incrAtom || announce.format != 32 || binary.LittleEndian.Uint32(announce.data) != uint32(len(data)) {
		t.Fatalf("unexpected announcement %+v", announce)
	}
	if !srv.watching[requestor] {
		t.Fatal("requestor property changes must be watched during the transfer")
	}
	if diff := cmp.Diff([]xproto.Atom{xselAtom}, srv.notified); diff != "" {
		t.Fatalf("notifications (-want +got):\n%s", diff)
	}

	// a new value on the requestor is not an acknowledgement
	b.sendNextChunk(xproto.PropertyNotifyEvent{Window: requestor, Atom: xselAtom, State: xproto.PropertyNewValue})
	if len(srv.writes) != 1 {
		t.Fatal("piece sent without the previous one being deleted")
	}

	deleted := xproto.PropertyNotifyEvent{Window: requestor, Atom: xselAtom, State: xproto.PropertyDelete}
	for range 5 {
		b.sendNextChunk(deleted)
	}

	var sizes []int
	var got []byte
	for _, w := range srv.writes[1:] {
		if w.typ != utf8Atom || w.format != 8 {
			t.Fatalf("piece with type %d format %d", w.typ, w.format)
		}
		sizes = append(sizes, len(w.data))
		got = append(got, w.data...)
	}

	if diff := cmp.Diff([]int{incrChunk, incrChunk, 10, 0}, sizes); diff != "" {
		t.Fatalf("piece sizes (-want +got):\n%s", diff)
	}
	if !bytes.Equal(got, data) {
		t.Fatal("reassembled pieces differ from the answer")
	}
	if srv.watching[requestor] {
		t.Fatal("requestor still watched after the final piece")
	}
	if len(b.outgoing) != 0 {
		t.Fatalf("outgoing transfers left: %d", len(b.outgoing))
	}
}

func TestRespond_IncrementalWriteFailureEnds(t *testing.T) {
	b, srv, _ := newTestBackend()

	content := eventful.Content{Type: "UTF8_STRING", Format: 8, Data: make([]byte, incrChunk+1)}
	if err := b.Respond("CLIPBOARD", utf8Request(), &content); err != nil {
		t.Fatal(err)
	}

	srv.err = errors.New("requestor gone")
	b.sendNextChunk(xproto.PropertyNotifyEvent{Window: requestor, Atom: xselAtom, State: xproto.PropertyDelete})

	if len(b.outgoing) != 0 {
		t.Fatal("failed transfer must be dropped")
	}
	if srv.watching[requestor] {
		t.Fatal("requestor still watched after a failed write")
	}
}

func TestConverted_Incremental(t *testing.T) {
	b, srv, events := newTestBackend()
	b.pending[convKey{clipboardAtom, utf8Atom}] = convAtom

	srv.props[convAtom] = &xproto.GetPropertyReply{Type: incrAtom, Format: 32, Value: encodeAtoms([]xproto.Atom{8})}
	b.converted(xproto.SelectionNotifyEvent{Requestor: ourWindow, Selection: clipboardAtom, Target: utf8Atom, Property: convAtom})

	newValue := xproto.PropertyNotifyEvent{Window: ourWindow, Atom: convAtom, State: xproto.PropertyNewValue}
	for _, piece := range []string{"abcd", "efgh", ""} {
		srv.props[convAtom] = &xproto.GetPropertyReply{Type: utf8Atom, Format: 8, Value: []byte(piece)}
		b.incrChunk(newValue)
	}

	// the transfer is over, later notifications are ignored
	srv.props[convAtom] = &xproto.GetPropertyReply{Type: utf8Atom, Format: 8, Value: []byte("late")}
	b.incrChunk(newValue)

	incr := eventful.IncrContent(8)
	piece := func(s string) *eventful.Content {
		return &eventful.Content{Type: "UTF8_STRING", Format: 8, Data: []byte(s)}
	}
	want := []eventful.Event{
		eventful.Chunk{Selection: "CLIPBOARD", Target: "UTF8_STRING", Content: &incr},
		eventful.Chunk{Selection: "CLIPBOARD", Target: "UTF8_STRING", Content: piece("abcd")},
		eventful.Chunk{Selection: "CLIPBOARD", Target: "UTF8_STRING", Content: piece("efgh")},
		eventful.Chunk{Selection: "CLIPBOARD", Target: "UTF8_STRING", Content: piece("")},
	}
	if diff := cmp.Diff(want, *events); diff != "" {
		t.Fatalf("events (-want +got):\n%s", diff)
	}
	if len(b.incoming) != 0 {
		t.Fatalf("incoming transfers left: %d", len(b.incoming))
	}
}

func TestConverted_Refused(t *testing.T) {
	b, _, events := newTestBackend()
	b.pending[convKey{clipboardAtom, utf8Atom}] = convAtom

	b.converted(xproto.SelectionNotifyEvent{Requestor: ourWindow, Selection: clipboardAtom, Target: utf8Atom, Property: xproto.AtomNone})

	want := []eventful.Event{eventful.Chunk{Selection: "CLIPBOARD", Target: "UTF8_STRING"}}
	if diff := cmp.Diff(want, *events); diff != "" {
		t.Fatalf("events (-want +got):\n%s", diff)
	}
	if len(b.pending) != 0 {
		t.Fatal("answered conversion still pending")
	}
}

type xerror struct{}

func (xerror) SequenceId() uint16 { return 1 }
func (xerror) BadId() uint32      { return 0 }
func (xerror) Error() string      { return "bad window" }

func TestPump(t *testing.T) {
	type step struct {
		ev  xgb.Event
		err xgb.Error
	}

	tests := []struct {
		name    string
		cancel  bool
		want    error
		handled int
	}{
		{name: "connection lost", want: ErrConnectionClosed, handled: 1},
		{name: "shutdown", cancel: true, want: nil, handled: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			if tt.cancel {
				cancel()
			}

			steps := []step{
				{ev: xproto.PropertyNotifyEvent{Window: ourWindow}},
				{err: xerror{}},
				{},
			}
			next := func() (xgb.Event, xgb.Error) {
				s := steps[0]
				steps = steps[1:]
				return s.ev, s.err
			}

			var handled int
			err := pump(ctx, zerolog.Nop(), next, func(xgb.Event) { handled++ })
			if !errors.Is(err, tt.want) {
				t.Fatalf("pump() = %v, want %v", err, tt.want)
			}
			if handled != tt.handled {
				t.Fatalf("handled %d events, want %d", handled, tt.handled)
			}
		})
	}
}
