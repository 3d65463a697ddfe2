package netstack_test

import (
	"net"
	"testing"

	"github.com/labi-le/clipsync/internal/netstack"
)

func TestRandomPort_InRange(t *testing.T) {
	for range 50 {
		port := netstack.RandomPort()
		if port < netstack.PortRangeStart || port >= netstack.PortRangeStart+netstack.PortRangeSize {
			t.Fatalf("port %d out of range", port)
		}
	}
}

func TestFree_BoundPort(t *testing.T) {
	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	port := ln.Addr().(*net.TCPAddr).Port
	if netstack.Free(port) {
		t.Fatalf("port %d is bound but reported free", port)
	}
}
