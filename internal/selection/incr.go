package selection

import (
	"github.com/dustin/go-humanize"
	"github.com/labi-le/clipsync/internal/loop"
	"github.com/labi-le/clipsync/pkg/clipboard/eventful"
	"github.com/labi-le/clipsync/pkg/ctxlog"
)

// incrTransfer accumulates an incremental transfer from the local owner.
type incrTransfer struct {
	target   string
	typ      string
	format   int
	declared int
	chunks   [][]byte
	size     int
	timer    loop.Timer
}

// LocalChunk feeds a conversion result from the backend.
func (p *Proxy) LocalChunk(target string, c *eventful.Content) {
	ctxLog := ctxlog.Op(p.logger, "selection.LocalChunk").With().
		Str("target", target).
		Logger()

	if c == nil {
		ctxLog.Debug().Msg("local owner refused conversion")
		if p.incr != nil && p.incr.target == target {
			p.resetIncr()
		}
		p.gotLocalContents(target, nil)
		return
	}

	if c.Type == eventful.IncrType {
		p.resetIncr()
		p.incr = &incrTransfer{
			target:   target,
			declared: eventful.IncrSize(*c),
		}
		p.armIncr()
		ctxLog.Debug().
			Str("declared", humanize.IBytes(uint64(p.incr.declared))).
			Msg("incremental transfer started")
		return
	}

	if p.incr == nil || p.incr.target != target {
		p.gotLocalContents(target, c)
		return
	}

	t := p.incr
	if len(c.Data) == 0 {
		data := make([]byte, 0, t.size)
		for _, chunk := range t.chunks {
			data = append(data, chunk...)
		}
		content := eventful.Content{Type: t.typ, Format: t.format, Data: data}
		if content.Type == "" {
			content.Type, content.Format = c.Type, c.Format
		}

		p.resetIncr()
		ctxLog.Debug().Object("content", content).Msg("incremental transfer complete")
		p.gotLocalContents(target, &content)
		return
	}

	if t.typ == "" {
		t.typ, t.format = c.Type, c.Format
	} else if t.typ != c.Type || t.format != c.Format {
		ctxLog.Error().
			Str("expected", t.typ).
			Str("got", c.Type).
			Msg("incremental transfer type changed, discarding")
		p.resetIncr()
		return
	}

	t.chunks = append(t.chunks, c.Data)
	t.size += len(c.Data)
	p.armIncr()
}

func (p *Proxy) armIncr() {
	t := p.incr
	loop.Stop(t.timer)
	t.timer = p.sched.AfterFunc(p.opts.IncrTimeout, func() {
		if p.incr != t {
			return
		}
		p.logger.Warn().
			Str("target", t.target).
			Str("received", humanize.IBytes(uint64(t.size))).
			Msg("incremental transfer timed out, discarding")
		p.incr = nil
	})
}

func (p *Proxy) resetIncr() {
	if p.incr == nil {
		return
	}
	loop.Stop(p.incr.timer)
	p.incr = nil
}

// IncrActive reports whether an incremental transfer is being assembled.
func (p *Proxy) IncrActive() bool { return p.incr != nil }
