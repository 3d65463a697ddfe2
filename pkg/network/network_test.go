package network_test

import (
	"net"
	"testing"
	"time"

	"github.com/labi-le/clipsync/pkg/network"
)

type recorder struct {
	read, write time.Time
}

func (r *recorder) SetReadDeadline(t time.Time) error  { r.read = t; return nil }
func (r *recorder) SetWriteDeadline(t time.Time) error { r.write = t; return nil }

func TestSetDeadline(t *testing.T) {
	conn := new(recorder)

	if err := network.SetDeadline(conn, network.Deadline{Write: time.Second}); err != nil {
		t.Fatal(err)
	}
	if !conn.read.IsZero() {
		t.Fatalf("zero read bound must not set a deadline, got %v", conn.read)
	}
	if conn.write.IsZero() {
		t.Fatal("write deadline not set")
	}

	network.ClearDeadline(conn)
	if !conn.read.IsZero() || !conn.write.IsZero() {
		t.Fatal("deadlines not cleared")
	}
}

func TestIsLocalIP(t *testing.T) {
	tests := []struct {
		ip   net.IP
		want bool
	}{
		{net.ParseIP("127.0.0.1"), true},
		{net.ParseIP("::1"), true},
		{net.ParseIP("203.0.113.7"), false},
		{nil, false},
	}

	for _, tt := range tests {
		if got := network.IsLocalIP(tt.ip); got != tt.want {
			t.Errorf("IsLocalIP(%v) = %v, want %v", tt.ip, got, tt.want)
		}
	}
}

func TestHostPort(t *testing.T) {
	if got := network.HostPort(net.ParseIP("::1"), 7000); got != "[::1]:7000" {
		t.Fatalf("got %s", got)
	}
	if got := network.HostPort(net.ParseIP("10.0.0.2"), 0); got != "10.0.0.2:0" {
		t.Fatalf("got %s", got)
	}
}
