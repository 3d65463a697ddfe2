package native_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/labi-le/clipsync/pkg/clipboard/eventful"
	"github.com/labi-le/clipsync/pkg/clipboard/native"
	"github.com/rs/zerolog"
	"golang.design/x/clipboard"
)

type host struct {
	mu   sync.Mutex
	data map[clipboard.Format][]byte
}

func newHost() *host {
	return &host{data: make(map[clipboard.Format][]byte)}
}

func (h *host) Read(f clipboard.Format) []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.data[f]
}

func (h *host) Write(f clipboard.Format, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.data[f] = data
}

func (h *host) Watch(ctx context.Context, _ clipboard.Format) <-chan []byte {
	ch := make(chan []byte)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch
}

type events struct {
	mu  sync.Mutex
	got []eventful.Event
}

func (e *events) sink(ev eventful.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.got = append(e.got, ev)
}

func (e *events) take() []eventful.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	got := e.got
	e.got = nil
	return got
}

func start(t *testing.T, h *host, opts ...native.Option) (*native.Backend, *events) {
	t.Helper()

	b, err := native.New(zerolog.Nop(), append([]native.Option{native.WithHost(h)}, opts...)...)
	if err != nil {
		t.Fatal(err)
	}

	ev := new(events)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	ready := make(chan struct{})
	go func() {
		close(ready)
		_ = b.Watch(ctx, ev.sink)
	}()
	<-ready

	// wait until Watch installed the sink
	for {
		_ = b.Convert(native.Selection, "nothing")
		if len(ev.take()) > 0 {
			break
		}
	}
	return b, ev
}

func TestConvert(t *testing.T) {
	h := newHost()
	h.Write(clipboard.FmtText, []byte("one\r\ntwo"))
	b, ev := start(t, h)

	if err := b.Convert(native.Selection, eventful.TargetsTarget); err != nil {
		t.Fatal(err)
	}
	if err := b.Convert(native.Selection, "UTF8_STRING"); err != nil {
		t.Fatal(err)
	}
	if err := b.Convert(native.Selection, "image/png"); err != nil {
		t.Fatal(err)
	}

	targets := eventful.TargetsContent([]string{"UTF8_STRING", "STRING", "TEXT", "text/plain", "text/plain;charset=utf-8"})
	want := []eventful.Event{
		eventful.Chunk{Selection: native.Selection, Target: eventful.TargetsTarget, Content: &targets},
		eventful.Chunk{Selection: native.Selection, Target: "UTF8_STRING", Content: &eventful.Content{Type: "UTF8_STRING", Format: 8, Data: []byte("one\ntwo")}},
		eventful.Chunk{Selection: native.Selection, Target: "image/png"},
	}
	if diff := cmp.Diff(want, ev.take()); diff != "" {
		t.Fatalf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestClaimFetchesPeerContent(t *testing.T) {
	h := newHost()
	b, ev := start(t, h, native.WithCRLF(true))

	if err := b.Claim(native.Selection); err != nil {
		t.Fatal(err)
	}

	got := ev.take()
	if len(got) != 1 {
		t.Fatalf("expected one synthesized request, got %v", got)
	}
	req := got[0].(eventful.SelectionRequest).Request
	if req.Target != eventful.TargetsTarget || req.Requestor.Name != native.Requestor {
		t.Fatalf("unexpected request %+v", req)
	}

	targets := eventful.TargetsContent([]string{"text/plain", "UTF8_STRING"})
	if err := b.Respond(native.Selection, req, &targets); err != nil {
		t.Fatal(err)
	}

	got = ev.take()
	if len(got) != 1 {
		t.Fatalf("expected a request for the text, got %v", got)
	}
	req = got[0].(eventful.SelectionRequest).Request
	if req.Target != "UTF8_STRING" {
		t.Fatalf("expected UTF8_STRING, got %s", req.Target)
	}

	text := eventful.Content{Type: "UTF8_STRING", Format: 8, Data: []byte("a\nb")}
	if err := b.Respond(native.Selection, req, &text); err != nil {
		t.Fatal(err)
	}

	if got := string(h.Read(clipboard.FmtText)); got != "a\r\nb" {
		t.Fatalf("expected CRLF text on the host, got %q", got)
	}

	owned, err := b.Owned(native.Selection)
	if err != nil || !owned {
		t.Fatalf("expected to own the selection, got %v %v", owned, err)
	}
}

func TestOtherSelectionsUnsupported(t *testing.T) {
	b, err := native.New(zerolog.Nop(), native.WithHost(newHost()))
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Claim("PRIMARY"); err == nil {
		t.Fatal("PRIMARY must be unsupported")
	}
}

func TestLineEndings(t *testing.T) {
	tests := []struct {
		in, lf, crlf string
	}{
		{in: "a\r\nb", lf: "a\nb", crlf: "a\r\nb"},
		{in: "a\nb\n", lf: "a\nb\n", crlf: "a\r\nb\r\n"},
		{in: "plain", lf: "plain", crlf: "plain"},
	}

	for _, tt := range tests {
		if got := string(native.ToLF([]byte(tt.in))); got != tt.lf {
			t.Errorf("ToLF(%q) = %q, want %q", tt.in, got, tt.lf)
		}
		if got := string(native.ToCRLF([]byte(tt.in))); got != tt.crlf {
			t.Errorf("ToCRLF(%q) = %q, want %q", tt.in, got, tt.crlf)
		}
	}
}
