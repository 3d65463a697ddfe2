package selection

import (
	"slices"
	"time"

	"github.com/labi-le/clipsync/internal/loop"
	"github.com/labi-le/clipsync/internal/types/domain"
	"github.com/labi-le/clipsync/pkg/clipboard/eventful"
	"github.com/labi-le/clipsync/pkg/ctxlog"
)

// GotToken applies a token from the peer: the peer now owns the selection.
func (p *Proxy) GotToken(tok domain.Token) {
	ctxLog := ctxlog.Op(p.logger, "selection.GotToken")

	p.CancelEmitToken()
	p.emitGen++

	if !p.active() {
		ctxLog.Trace().Msg("ignored, synchronization disabled")
		return
	}

	p.counters.gotToken++
	if tok.Claim {
		p.haveToken = true
	}

	if !p.opts.CanReceive {
		return
	}

	ctxLog.Debug().
		Bool("claim", tok.Claim).
		Strs("targets", tok.Targets).
		Str("target", tok.Target).
		Msg("token received")

	if tok.Claim {
		p.targets = nil
		clear(p.targetData)
		if len(tok.Targets) > 0 {
			p.targets = FilterTargets(tok.Targets)
		}
	}

	if tok.HasContent() {
		p.targetData[tok.Target] = *tok.Content
	}

	if tok.Claim && len(p.targets) > 0 {
		p.GotContents(Targets, eventful.TargetsContent(p.targets))
	}

	if (tok.Synchronous || p.opts.Synchronous) && tok.Claim && tok.HasContent() && IsTextTarget(tok.Target) {
		p.GotContents(tok.Target, *tok.Content)
	}

	if tok.Claim {
		p.Claim()
	}
}

// ScheduleEmitToken announces local ownership to the peer after delay.
// A later call replaces an earlier pending one.
func (p *Proxy) ScheduleEmitToken(delay time.Duration) {
	p.CancelEmitToken()

	if delay <= 0 {
		p.emitToken()
		return
	}

	p.emitTimer = p.sched.AfterFunc(delay, func() {
		p.emitTimer = nil
		p.emitToken()
	})
}

func (p *Proxy) CancelEmitToken() {
	loop.Stop(p.emitTimer)
	p.emitTimer = nil
}

// EmitPending reports whether a token emission is scheduled.
func (p *Proxy) EmitPending() bool { return p.emitTimer != nil }

func (p *Proxy) emitToken() {
	ctxLog := ctxlog.Op(p.logger, "selection.emitToken")

	if !p.active() || !p.opts.CanSend {
		return
	}

	p.haveToken = false
	p.state = StateLocalOwns
	p.emitGen++
	gen := p.emitGen

	if !p.opts.WantTargets && !p.opts.Greedy {
		p.sendToken(domain.Token{Claim: true})
		return
	}

	p.GetContents(Targets, func(c eventful.Content) {
		if gen != p.emitGen || !p.active() {
			ctxLog.Trace().Msg("token emission superseded")
			return
		}

		targets := FilterTargets(eventful.DecodeTargets(c.Data))
		p.targets = targets

		if len(targets) == 0 {
			p.sendToken(domain.Token{Claim: true})
			return
		}

		if !p.opts.Greedy {
			p.sendToken(domain.Token{Claim: true, Targets: targets})
			return
		}

		target := ChooseTarget(targets, p.opts.PreferredTargets)
		if target == "" {
			p.sendToken(domain.Token{Claim: true, Targets: targets})
			return
		}

		p.GetContents(target, func(c eventful.Content) {
			if gen != p.emitGen || !p.active() {
				ctxLog.Trace().Msg("token emission superseded")
				return
			}

			tok := domain.Token{Claim: true, Targets: targets}
			if !c.Empty() {
				tok.Target = target
				tok.Content = &c
			}
			p.sendToken(tok)
		})
	})
}

// SendInitialToken announces the selection when a local application owns it.
func (p *Proxy) SendInitialToken() {
	if !p.active() || !p.opts.CanSend {
		return
	}

	gen := p.emitGen
	p.GetContents(Targets, func(c eventful.Content) {
		if gen != p.emitGen {
			return
		}
		targets := FilterTargets(eventful.DecodeTargets(c.Data))
		if len(targets) == 0 {
			return
		}
		p.targets = targets
		p.emitToken()
	})
}

func (p *Proxy) sendToken(tok domain.Token) {
	tok.Selection = p.selection
	tok.Synchronous = p.opts.Synchronous
	tok.Greedy = p.opts.Greedy
	tok.Targets = slices.Clone(tok.Targets)

	p.counters.sentToken++
	p.logger.Debug().
		Strs("targets", tok.Targets).
		Str("target", tok.Target).
		Msg("token sent")

	p.hooks.SendToken(tok)
}
