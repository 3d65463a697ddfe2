package channel_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/labi-le/clipsync/internal/channel"
	"github.com/labi-le/clipsync/internal/types/domain"
)

func TestChannel_PreservesOrder(t *testing.T) {
	ch := channel.New()

	ch.Token(domain.Token{Selection: "CLIPBOARD", Claim: true})
	ch.Request(domain.Request{ID: 1, Selection: "CLIPBOARD", Target: "UTF8_STRING"})
	ch.Contents(domain.Contents{ID: 2, Selection: "CLIPBOARD", None: true})
	ch.EnableSelections(domain.EnableSelections{Selections: []string{"CLIPBOARD"}})

	if n := ch.Len(); n != 4 {
		t.Fatalf("expected 4 queued events, got %d", n)
	}

	ctx := context.Background()
	want := []string{"token", "request", "contents", "enable"}
	for i, kind := range want {
		event, err := ch.Next(ctx)
		if err != nil {
			t.Fatalf("event %d: %v", i, err)
		}

		var got string
		switch event.(type) {
		case domain.EventToken:
			got = "token"
		case domain.EventRequest:
			got = "request"
		case domain.EventContents:
			got = "contents"
		case domain.EventEnableSelections:
			got = "enable"
		}
		if got != kind {
			t.Fatalf("event %d: expected %s, got %T", i, kind, event)
		}
	}
}

func TestChannel_NextWaitsForPush(t *testing.T) {
	ch := channel.New()

	go func() {
		time.Sleep(10 * time.Millisecond)
		ch.Request(domain.Request{ID: 7})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	event, err := ch.Next(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if req, ok := event.(domain.EventRequest); !ok || req.Payload.ID != 7 {
		t.Fatalf("unexpected event %#v", event)
	}
}

func TestChannel_CloseDrainsThenFails(t *testing.T) {
	ch := channel.New()
	ch.Token(domain.Token{Selection: "CLIPBOARD"})
	ch.Close()
	ch.Token(domain.Token{Selection: "PRIMARY"})

	ctx := context.Background()
	if _, err := ch.Next(ctx); err != nil {
		t.Fatalf("queued event must survive Close: %v", err)
	}
	if _, err := ch.Next(ctx); !errors.Is(err, channel.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestChannel_NextHonoursContext(t *testing.T) {
	ch := channel.New()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := ch.Next(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
