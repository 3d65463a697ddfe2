package notification

import (
	"fmt"

	"github.com/gen2brain/beeep"
)

const Title = "clipsync"

type Notifier interface {
	Notify(message string, v ...any)
}

// New returns a desktop notifier, or one that drops everything when disabled.
func New(enable bool) Notifier {
	if !enable {
		return NullNotifier{}
	}
	return BeepDecorator{Title: Title}
}

type BeepDecorator struct {
	Title string
}

func (b BeepDecorator) Notify(message string, v ...any) {
	_ = beeep.Notify(b.Title, fmt.Sprintf(message, v...), "")
}

type NullNotifier struct{}

func (n NullNotifier) Notify(string, ...any) {}
