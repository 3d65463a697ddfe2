package coordinator

import (
	"github.com/dustin/go-humanize"
	"github.com/labi-le/clipsync/internal/loop"
	"github.com/labi-le/clipsync/internal/selection"
	"github.com/labi-le/clipsync/internal/types/domain"
	"github.com/labi-le/clipsync/pkg/clipboard/eventful"
	"github.com/labi-le/clipsync/pkg/ctxlog"
	"github.com/labi-le/clipsync/pkg/id"
)

// remoteRequest is a target asked from the peer and not yet answered.
type remoteRequest struct {
	entry  *entry
	target string
	timer  loop.Timer
}

func (c *Coordinator) requestTarget(e *entry, target string) {
	if c.out == nil {
		c.logger.Debug().
			Str("selection", e.config.Name).
			Str("target", target).
			Msg("no peer, answering empty")
		e.proxy.GotContents(target, eventful.EmptyFor(target))
		return
	}

	requestID := id.New()
	c.pending[requestID] = &remoteRequest{
		entry:  e,
		target: target,
		timer: c.sched.AfterFunc(c.opts.RemoteTimeout, func() {
			c.timeoutRequest(requestID)
		}),
	}

	c.out.Request(domain.Request{
		ID:        requestID,
		Selection: e.config.remote(),
		Target:    target,
	})
}

func (c *Coordinator) timeoutRequest(requestID domain.RequestID) {
	req, ok := c.pending[requestID]
	if !ok {
		return
	}
	delete(c.pending, requestID)

	c.logger.Warn().
		Str("selection", req.entry.config.Name).
		Str("target", req.target).
		Int64("request_id", requestID).
		Dur("timeout", c.opts.RemoteTimeout).
		Msg("peer did not answer in time")

	req.entry.proxy.GotContents(req.target, eventful.EmptyFor(req.target))
}

// PendingRequests counts targets asked from the peer and not yet answered.
func (c *Coordinator) PendingRequests() int { return len(c.pending) }

func (c *Coordinator) resolvePending() {
	pending := c.pending
	c.pending = make(map[domain.RequestID]*remoteRequest)

	for _, req := range pending {
		loop.Stop(req.timer)
		req.entry.proxy.GotContents(req.target, eventful.EmptyFor(req.target))
	}
}

func (c *Coordinator) gotContents(msg domain.Contents) {
	ctxLog := ctxlog.Op(c.logger, "coordinator.gotContents")

	req, ok := c.pending[msg.ID]
	if !ok {
		ctxLog.Debug().
			Int64("request_id", msg.ID).
			Str("target", msg.Target).
			Msg("answer for an unknown or expired request")
		return
	}
	delete(c.pending, msg.ID)
	loop.Stop(req.timer)

	if msg.None {
		req.entry.proxy.GotContents(req.target, eventful.EmptyFor(req.target))
		return
	}

	content := eventful.Content{Type: msg.Type, Format: msg.Format, Data: msg.Data}
	content, keep := c.limit(req.entry, req.target, content, c.opts.MaxReceiveSize)
	if !keep {
		content = eventful.EmptyFor(req.target)
	}

	req.entry.proxy.GotContents(req.target, content)
}

func (c *Coordinator) gotRequest(msg domain.Request) {
	e, ok := c.remoteEntry(msg.Selection)
	if !ok {
		c.reply(msg, nil)
		return
	}

	if !e.config.CanSend || !e.proxy.Enabled() {
		c.reply(msg, nil)
		return
	}

	session := c.session
	e.proxy.GetContents(msg.Target, func(content eventful.Content) {
		if session != c.session {
			return
		}
		if content.Empty() {
			c.reply(msg, nil)
			return
		}

		content, keep := c.limit(e, msg.Target, content, c.opts.MaxSendSize)
		if !keep {
			c.reply(msg, nil)
			return
		}
		c.reply(msg, &content)
	})
}

// reply answers a peer request; nil content answers "none".
func (c *Coordinator) reply(msg domain.Request, content *eventful.Content) {
	if c.out == nil {
		return
	}

	contents := domain.Contents{
		ID:        msg.ID,
		Selection: msg.Selection,
		Target:    msg.Target,
		None:      content == nil,
	}
	if content != nil {
		contents.Type = content.Type
		contents.Format = content.Format
		contents.Data = content.Data
	}
	c.out.Contents(contents)
}

// limit enforces a size limit: text is truncated, anything else is dropped.
func (c *Coordinator) limit(e *entry, target string, content eventful.Content, max int) (eventful.Content, bool) {
	if max <= 0 || len(content.Data) <= max {
		return content, true
	}

	ctxLog := c.logger.With().
		Str("selection", e.config.Name).
		Str("target", target).
		Str("size", humanize.IBytes(uint64(len(content.Data)))).
		Str("limit", humanize.IBytes(uint64(max))).
		Logger()

	if target == selection.Targets || !selection.IsTextTarget(target) {
		ctxLog.Warn().Msg("content exceeds size limit, dropped")
		return content, false
	}

	ctxLog.Warn().Msg("text exceeds size limit, truncated")
	content.Data = content.Data[:max]
	return content, true
}
