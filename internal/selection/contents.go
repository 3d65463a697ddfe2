package selection

import (
	"slices"

	"github.com/labi-le/clipsync/internal/loop"
	"github.com/labi-le/clipsync/pkg/clipboard/eventful"
	"github.com/labi-le/clipsync/pkg/ctxlog"
)

// GotContents delivers the peer's content for target and answers its waiters in order.
func (p *Proxy) GotContents(target string, c eventful.Content) {
	ctxLog := ctxlog.Op(p.logger, "selection.GotContents").With().
		Str("target", target).
		Logger()

	if target == Targets {
		switch {
		case c.Type == eventful.AtomType:
			if targets := FilterTargets(eventful.DecodeTargets(c.Data)); len(targets) > 0 {
				p.targets = targets
			}
		case !c.Empty():
			ctxLog.Error().Str("type", c.Type).Msg("malformed targets, expected atoms")
		}
	} else if p.haveToken && p.opts.CanReceive && !c.Empty() {
		p.targetData[target] = c
	}

	waiters := p.remoteRequests[target]
	delete(p.remoteRequests, target)
	if len(waiters) == 0 {
		return
	}

	ctxLog.Trace().Int("waiters", len(waiters)).Object("content", c).Msg("answering waiters")

	for _, req := range waiters {
		if target == Targets {
			if len(p.targets) == 0 {
				p.respond(req, eventful.EmptyFor(Targets))
				continue
			}
			p.respond(req, eventful.TargetsContent(p.targets))
			continue
		}
		p.respond(req, fixType(c, target, req.Target))
	}
}

// Pending reports how many local applications wait for target from the peer.
func (p *Proxy) Pending(target string) int {
	return len(p.remoteRequests[target])
}

// GetContents reads target from the local owner and hands the result to done.
// done runs exactly once, possibly before GetContents returns.
func (p *Proxy) GetContents(target string, done func(eventful.Content)) {
	ctxLog := ctxlog.Op(p.logger, "selection.GetContents").With().
		Str("target", target).
		Logger()

	p.counters.getContents++

	if target != Targets && p.opts.Filter != nil {
		filter, inner := p.opts.Filter, done
		done = func(c eventful.Content) {
			if !c.Empty() {
				c = filter(target, c)
			}
			inner(c)
		}
	}

	if target == Targets && len(p.targets) > 0 {
		done(eventful.TargetsContent(p.targets))
		return
	}
	if c, ok := p.targetData[target]; ok {
		done(c)
		return
	}

	owned, err := p.backend.Owned(p.selection)
	if err != nil {
		ctxLog.Warn().Err(err).Msg("failed to query selection owner")
	}
	if owned {
		ctxLog.Debug().Msg("we own the selection, nothing to read")
		done(eventful.EmptyFor(target))
		return
	}

	p.nextRequestID++
	requestID := p.nextRequestID

	pending := p.localRequests[target]
	if pending == nil {
		pending = make(map[uint64]*localRequest)
		p.localRequests[target] = pending
	}
	first := len(pending) == 0

	pending[requestID] = &localRequest{
		done: done,
		timer: p.sched.AfterFunc(p.opts.ConvertTimeout, func() {
			p.timeoutGetContents(target, requestID)
		}),
	}

	if !first {
		return
	}

	if err := p.backend.Convert(p.selection, target); err != nil {
		ctxLog.Warn().Err(err).Msg("failed to read local selection")
		p.gotLocalContents(target, nil)
	}
}

func (p *Proxy) timeoutGetContents(target string, requestID uint64) {
	pending := p.localRequests[target]
	req, ok := pending[requestID]
	if !ok {
		return
	}

	delete(pending, requestID)
	if len(pending) == 0 {
		delete(p.localRequests, target)
	}

	p.logger.Warn().
		Str("target", target).
		Uint64("request_id", requestID).
		Dur("timeout", p.opts.ConvertTimeout).
		Msg("timed out waiting for local selection owner")

	req.done(eventful.EmptyFor(target))
}

// gotLocalContents resolves every pending local read of target in request order.
// A nil content resolves them with the empty answer for target.
func (p *Proxy) gotLocalContents(target string, c *eventful.Content) {
	pending := p.localRequests[target]
	delete(p.localRequests, target)
	if len(pending) == 0 {
		return
	}

	answer := eventful.EmptyFor(target)
	if c != nil {
		answer = *c
	}

	ids := make([]uint64, 0, len(pending))
	for requestID := range pending {
		ids = append(ids, requestID)
	}
	slices.Sort(ids)

	for _, requestID := range ids {
		req := pending[requestID]
		loop.Stop(req.timer)
		req.done(answer)
	}
}
