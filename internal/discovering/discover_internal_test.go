package discovering

import (
	"context"
	"errors"
	"testing"

	"github.com/labi-le/clipsync/internal/types/domain"
	"github.com/labi-le/clipsync/pkg/id"
	"github.com/schollz/peerdiscovery"
)

type connector struct {
	device domain.Device
}

func (c connector) Metadata() domain.Device                 { return c.device }
func (c connector) Connected() bool                         { return false }
func (c connector) ConnectTo(context.Context, string) error { return nil }

func TestPeerAddr(t *testing.T) {
	self := connector{device: domain.Device{ID: id.New(), Name: "self"}}
	other := connector{device: domain.Device{ID: id.New(), Name: "other"}}

	tests := []struct {
		name    string
		found   peerdiscovery.Discovered
		want    string
		wantErr error
	}{
		{
			name:  "remote host",
			found: peerdiscovery.Discovered{Address: "192.0.2.10", Payload: New(WithPort(7010)).Payload(other)},
			want:  "192.0.2.10:7010",
		},
		{
			name:    "loopback",
			found:   peerdiscovery.Discovered{Address: "127.0.0.1", Payload: New(WithPort(7010)).Payload(other)},
			wantErr: ErrSelf,
		},
		{
			name:    "our own device",
			found:   peerdiscovery.Discovered{Address: "192.0.2.10", Payload: New(WithPort(7010)).Payload(self)},
			wantErr: ErrSelf,
		},
		{
			name:    "no port",
			found:   peerdiscovery.Discovered{Address: "192.0.2.10", Payload: New().Payload(other)},
			wantErr: ErrNoEndpoint,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := New().peerAddr(self, tt.found)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
			if got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}

	if _, err := New().peerAddr(self, peerdiscovery.Discovered{Address: "192.0.2.10", Payload: []byte{1, 2}}); err == nil {
		t.Fatal("garbage payload must be rejected")
	}
}
