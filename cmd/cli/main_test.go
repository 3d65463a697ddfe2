package main

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/labi-le/clipsync/internal/coordinator"
	"github.com/labi-le/clipsync/internal/selection"
	"github.com/rs/zerolog"
)

func TestCoordinatorOptions(t *testing.T) {
	clip := clipFlags{
		selections:     []string{"CLIPBOARD"},
		remotes:        []string{"PRIMARY:CLIPBOARD"},
		direction:      coordinator.DirectionToPeer,
		translations:   selection.DefaultTranslations,
		emitDelay:      time.Second,
		maxSendSize:    "1KiB",
		maxReceiveSize: "0",
	}

	opts, names, err := clip.coordinatorOptions(zerolog.Nop(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"CLIPBOARD", "PRIMARY"}, names); diff != "" {
		t.Fatalf("selections (-want +got):\n%s", diff)
	}

	got := coordinator.NewOptions(opts...)
	if got.MaxSendSize != 1024 || got.MaxReceiveSize != 0 {
		t.Fatalf("size limits: send %d, receive %d", got.MaxSendSize, got.MaxReceiveSize)
	}
	if got.EmitDelay != time.Second {
		t.Fatalf("emit delay: %s", got.EmitDelay)
	}
	for _, sel := range got.Selections {
		if !sel.CanSend || sel.CanReceive {
			t.Fatalf("direction not applied to %+v", sel)
		}
	}
}

func TestCoordinatorOptions_BadTranslation(t *testing.T) {
	clip := clipFlags{
		selections:     []string{"CLIPBOARD"},
		direction:      coordinator.DirectionBoth,
		translations:   "missing-separator",
		maxSendSize:    "0",
		maxReceiveSize: "0",
	}

	if _, _, err := clip.coordinatorOptions(zerolog.Nop(), nil); err == nil {
		t.Fatal("expected an error for a malformed translation table")
	}
}
