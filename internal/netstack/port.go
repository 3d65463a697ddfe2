package netstack

import (
	"crypto/rand"
	"encoding/binary"
	"net"
	"strconv"
)

const (
	PortRangeStart = 7000
	PortRangeSize  = 1000

	pickAttempts = 8
)

// RandomPort picks a port from [PortRangeStart, PortRangeStart+PortRangeSize)
// that is currently free for both transports. When every attempt collides
// the last pick is returned and the listener reports the conflict.
func RandomPort() int {
	port := pick()
	for range pickAttempts {
		if Free(port) {
			return port
		}
		port = pick()
	}
	return port
}

// Free reports whether port can be bound over TCP and UDP on all interfaces.
func Free(port int) bool {
	addr := ":" + strconv.Itoa(port)

	tl, err := net.Listen("tcp", addr)
	if err != nil {
		return false
	}
	_ = tl.Close()

	ul, err := net.ListenPacket("udp", addr)
	if err != nil {
		return false
	}
	_ = ul.Close()

	return true
}

func pick() int {
	var b [8]byte
	_, _ = rand.Read(b[:])

	return int(binary.BigEndian.Uint64(b[:])%PortRangeSize) + PortRangeStart
}
