package eventful

import (
	"sync/atomic"

	"github.com/cespare/xxhash"
)

// Deduplicator remembers the hash of the last payload seen or written.
type Deduplicator struct {
	lastHash atomic.Uint64
}

func (d *Deduplicator) Check(data []byte) (uint64, bool) {
	h := xxhash.Sum64(data)
	if h == d.lastHash.Load() {
		return h, false
	}
	d.lastHash.Store(h)
	return h, true
}

func (d *Deduplicator) Mark(data []byte) {
	d.lastHash.Store(xxhash.Sum64(data))
}

// Fingerprint hashes a token: its targets and optional content.
func Fingerprint(targets []string, target string, c *Content) uint64 {
	h := xxhash.New()
	for _, t := range targets {
		_, _ = h.Write([]byte(t))
		_, _ = h.Write([]byte{targetSeparator})
	}
	_, _ = h.Write([]byte(target))
	if c != nil {
		_, _ = h.Write([]byte(c.Type))
		_, _ = h.Write(c.Data)
	}
	return h.Sum64()
}
