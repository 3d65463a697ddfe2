package native_test

import (
	"testing"

	"github.com/labi-le/clipsync/internal/coordinator"
	"github.com/labi-le/clipsync/internal/loop"
	"github.com/labi-le/clipsync/internal/types/domain"
	"github.com/labi-le/clipsync/pkg/clipboard/eventful"
	"github.com/labi-le/clipsync/pkg/clipboard/native"
	"golang.design/x/clipboard"
)

type peer struct {
	requests []domain.Request
}

func (p *peer) Token(domain.Token)                       {}
func (p *peer) Request(r domain.Request)                 { p.requests = append(p.requests, r) }
func (p *peer) Contents(domain.Contents)                 {}
func (p *peer) EnableSelections(domain.EnableSelections) {}

// answer feeds backend events to the coordinator and answers every request
// that reaches the peer with text, until both sides are quiet.
func answer(coord *coordinator.Coordinator, ev *events, out *peer, text string) {
	for {
		got := ev.take()
		requests := out.requests
		out.requests = nil
		if len(got) == 0 && len(requests) == 0 {
			return
		}

		for _, e := range got {
			coord.Dispatch(e)
		}
		for _, r := range requests {
			coord.Process(domain.NewEvent(domain.Contents{
				ID:        r.ID,
				Selection: r.Selection,
				Target:    r.Target,
				Type:      r.Target,
				Format:    8,
				Data:      []byte(text),
			}))
		}
	}
}

func TestCoordinator_EveryPeerTokenReachesHost(t *testing.T) {
	h := newHost()
	b, ev := start(t, h, native.WithCRLF(false))

	sched := loop.NewFake()
	out := new(peer)
	coord := coordinator.New(b, sched)
	coord.Attach(out, domain.Hello{})
	t.Cleanup(coord.Cleanup)

	for _, text := range []string{"first", "second", "third"} {
		coord.Process(domain.NewEvent(domain.Token{
			Selection: native.Selection,
			Claim:     true,
			Targets:   []string{"UTF8_STRING"},
		}))
		sched.Flush()
		answer(coord, ev, out, text)

		if got := string(h.Read(clipboard.FmtText)); got != text {
			t.Fatalf("host clipboard = %q, want %q", got, text)
		}
	}

	owned, err := b.Owned(native.Selection)
	if err != nil || !owned {
		t.Fatalf("expected to own the selection, got %v %v", owned, err)
	}
}

func TestClaimTargets(t *testing.T) {
	tests := []struct {
		name    string
		targets []string
		want    string
	}{
		{name: "text", targets: []string{"text/plain", "UTF8_STRING"}, want: "UTF8_STRING"},
		{name: "image first", targets: []string{"UTF8_STRING", "image/png"}, want: "image/png"},
		{name: "unknown targets", targets: []string{"application/x-foo"}, want: eventful.TargetsTarget},
		{name: "no targets", want: eventful.TargetsTarget},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, ev := start(t, newHost())

			// a second claim while owned asks again
			for range 2 {
				if err := b.ClaimTargets(native.Selection, tt.targets); err != nil {
					t.Fatal(err)
				}
				got := ev.take()
				if len(got) != 1 {
					t.Fatalf("expected one synthesized request, got %v", got)
				}
				req := got[0].(eventful.SelectionRequest).Request
				if req.Target != tt.want || req.Requestor.Name != native.Requestor {
					t.Fatalf("request %+v, want target %s", req, tt.want)
				}
			}
		})
	}
}
