package selection

import (
	"slices"

	"github.com/labi-le/clipsync/pkg/clipboard/eventful"
	"github.com/labi-le/clipsync/pkg/ctxlog"
)

// SelectionRequest answers a local application asking for the peer's content.
// The answer is immediate when cached, otherwise the request waits for the peer.
func (p *Proxy) SelectionRequest(req eventful.Request) {
	ctxLog := ctxlog.Op(p.logger, "selection.SelectionRequest").With().
		Str("target", req.Target).
		Str("requestor", req.Requestor.Name).
		Logger()

	p.counters.selectionRequest++

	if !p.active() || !p.opts.CanReceive {
		ctxLog.Trace().Msg("refused, receiving disabled")
		p.refuse(req)
		return
	}

	if p.blocked(req.Requestor) {
		if p.warnOnce("blocklist:" + req.Requestor.Name) {
			ctxLog.Warn().Msg("requestor is blocklisted, its requests are refused")
		}
		p.refuse(req)
		return
	}

	if MustDiscard(req.Target) || MustDiscardExtra(req.Target) {
		ctxLog.Trace().Msg("refused, target is never served")
		p.refuse(req)
		return
	}

	if req.Target == Targets {
		if len(p.targets) > 0 {
			p.respond(req, eventful.TargetsContent(p.targets))
			return
		}
		p.enqueue(req, Targets)
		return
	}

	target := req.Target
	if len(p.targets) > 0 && !slices.Contains(p.targets, target) {
		alt, ok := p.opts.Translations.Equivalent(target, p.targets)
		switch {
		case ok:
			if p.warnOnce("translate:" + req.Requestor.Name + ":" + target) {
				ctxLog.Debug().Str("equivalent", alt).Msg("target translated")
			}
			target = alt
		case !critical(target):
			if p.warnOnce("unavailable:" + req.Requestor.Name + ":" + target) {
				ctxLog.Debug().Strs("targets", p.targets).Msg("target not available from peer")
			}
			p.refuse(req)
			return
		}
	}

	if c, ok := p.targetData[target]; ok && p.haveToken {
		p.respond(req, fixType(c, target, req.Target))
		return
	}

	p.enqueue(req, target)
}

// critical targets are requested from the peer even when it never advertised them.
func critical(target string) bool {
	return slices.Contains(TextTargets, target)
}

// enqueue parks req under target; only the first waiter asks the peer.
func (p *Proxy) enqueue(req eventful.Request, target string) {
	waiters := p.remoteRequests[target]
	p.remoteRequests[target] = append(waiters, req)

	if len(waiters) > 0 {
		return
	}

	p.counters.requestContents++
	p.logger.Debug().Str("target", target).Msg("requesting target from peer")
	p.hooks.RequestTarget(target)
}

// fixType reports the requested target as the type when the content was
// resolved through a translation and carries the resolved target's name.
func fixType(c eventful.Content, resolved, requested string) eventful.Content {
	if resolved != requested && c.Type == resolved {
		c.Type = requested
	}
	return c
}

func (p *Proxy) refuse(req eventful.Request) {
	if err := p.backend.Respond(p.selection, req, nil); err != nil {
		p.logger.Warn().Err(err).Str("target", req.Target).Msg("failed to refuse request")
	}
}

// respond answers req with c; an empty generic content refuses it.
func (p *Proxy) respond(req eventful.Request, c eventful.Content) {
	if c.Empty() {
		p.refuse(req)
		return
	}
	if err := p.backend.Respond(p.selection, req, &c); err != nil {
		p.logger.Warn().Err(err).Str("target", req.Target).Msg("failed to answer request")
	}
}
