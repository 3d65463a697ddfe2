//go:build linux || freebsd || openbsd || netbsd

package clipboard_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/labi-le/clipsync/pkg/clipboard"
	"github.com/labi-le/clipsync/pkg/clipboard/native"
	"github.com/labi-le/clipsync/pkg/clipboard/wlr"
	"github.com/labi-le/clipsync/pkg/clipboard/x11"
)

func TestCandidates(t *testing.T) {
	tests := []struct {
		name    string
		wayland string
		socket  string
		display string
		want    []string
	}{
		{name: "headless", want: []string{native.Name}},
		{name: "x11 session", display: ":0", want: []string{x11.Name, native.Name}},
		{name: "wayland session", wayland: "wayland-0", want: []string{wlr.Name, native.Name}},
		{name: "wayland socket", socket: "3", want: []string{wlr.Name, native.Name}},
		{name: "xwayland", wayland: "wayland-1", display: ":1", want: []string{wlr.Name, x11.Name, native.Name}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("WAYLAND_DISPLAY", tt.wayland)
			t.Setenv("WAYLAND_SOCKET", tt.socket)
			t.Setenv("DISPLAY", tt.display)

			if diff := cmp.Diff(tt.want, clipboard.Candidates()); diff != "" {
				t.Fatalf("candidates (-want +got):\n%s", diff)
			}
		})
	}
}
