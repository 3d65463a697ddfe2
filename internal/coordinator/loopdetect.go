package coordinator

import (
	"time"
)

type stamp struct {
	at          time.Time
	fingerprint uint64
}

// loopDetector counts peer tokens that repeat a token we recently sent.
type loopDetector struct {
	policy LoopPolicy
	sent   map[string][]stamp
	echoes map[string][]time.Time
}

func newLoopDetector(policy LoopPolicy) *loopDetector {
	return &loopDetector{
		policy: policy,
		sent:   make(map[string][]stamp),
		echoes: make(map[string][]time.Time),
	}
}

func (d *loopDetector) reset() {
	clear(d.sent)
	clear(d.echoes)
}

func (d *loopDetector) recordSent(selection string, fingerprint uint64, now time.Time) {
	if !d.policy.Enabled {
		return
	}
	d.sent[selection] = append(d.prune(selection, now), stamp{at: now, fingerprint: fingerprint})
}

// recordReceived reports whether the selection is looping.
func (d *loopDetector) recordReceived(selection string, fingerprint uint64, now time.Time) bool {
	if !d.policy.Enabled || d.policy.Threshold <= 0 {
		return false
	}

	echo := false
	for _, s := range d.prune(selection, now) {
		if s.fingerprint == fingerprint {
			echo = true
			break
		}
	}
	if !echo {
		return false
	}

	echoes := d.echoes[selection]
	cutoff := now.Add(-d.policy.Window)
	kept := echoes[:0]
	for _, at := range echoes {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	kept = append(kept, now)
	d.echoes[selection] = kept

	return len(kept) >= d.policy.Threshold
}

func (d *loopDetector) prune(selection string, now time.Time) []stamp {
	cutoff := now.Add(-d.policy.Window)
	stamps := d.sent[selection]
	kept := stamps[:0]
	for _, s := range stamps {
		if s.at.After(cutoff) {
			kept = append(kept, s)
		}
	}
	d.sent[selection] = kept
	return kept
}
