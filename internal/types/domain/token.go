package domain

import (
	"github.com/labi-le/clipsync/pkg/clipboard/eventful"
)

// Token announces that the sender now owns Selection.
// Targets is empty for a bare token; Content is set only together with Target.
type Token struct {
	Selection   string
	Targets     []string
	Target      string
	Content     *eventful.Content
	Claim       bool
	Greedy      bool
	Synchronous bool
}

func (t Token) HasContent() bool {
	return t.Target != "" && t.Content != nil
}
