package selection

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/labi-le/clipsync/pkg/clipboard/eventful"
	"github.com/labi-le/clipsync/pkg/mime"
	"github.com/labi-le/clipsync/pkg/strutil"
)

const Targets = eventful.TargetsTarget

// TextTargets are the text representations understood on every platform, in preference order.
var TextTargets = []string{
	"UTF8_STRING",
	"TEXT",
	"STRING",
	"text/plain",
	"text/html",
	"text/plain;charset=utf-8",
}

var (
	discardTargets = compile(
		`^NeXT`,
		`^com\.apple\.`,
		`^CorePasteboardFlavorType`,
		`^dyn\.`,
		`^resource-transfer-format`,
		`^x-special/`,
	)
	discardExtraTargets = compile(
		`^SAVE_TARGETS$`,
		`^COMPOUND_TEXT`,
		`GTK_TEXT_BUFFER_CONTENTS`,
	)
)

func compile(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}

func matchAny(res []*regexp.Regexp, target string) bool {
	for _, re := range res {
		if re.MatchString(target) {
			return true
		}
	}
	return false
}

// MustDiscard reports platform private targets that are never forwarded.
func MustDiscard(target string) bool {
	return matchAny(discardTargets, target)
}

// MustDiscardExtra reports targets a local application may ask for but we never serve.
func MustDiscardExtra(target string) bool {
	return matchAny(discardExtraTargets, target)
}

// FilterTargets drops discarded and duplicate targets, keeping order.
func FilterTargets(targets []string) []string {
	out := make([]string, 0, len(targets))
	for _, t := range targets {
		if t == "" || MustDiscard(t) {
			continue
		}
		out = append(out, t)
	}
	return strutil.Dedup(out)
}

func IsTextTarget(target string) bool {
	return slices.Contains(TextTargets, target) || mime.AsType(target).IsText()
}

func IsImageTarget(target string) bool {
	return mime.AsType(target).IsImage()
}

// ChooseTarget picks the single target worth pushing along with a token.
// With a preferred list: an image both sides have, then a text target both
// sides have, else nothing. Without one: the first known text target.
func ChooseTarget(targets, preferred []string) string {
	if len(preferred) > 0 {
		for _, t := range preferred {
			if IsImageTarget(t) && slices.Contains(targets, t) {
				return t
			}
		}
		for _, t := range preferred {
			if IsTextTarget(t) && slices.Contains(targets, t) {
				return t
			}
		}
		return ""
	}

	for _, t := range TextTargets {
		if slices.Contains(targets, t) {
			return t
		}
	}
	return ""
}

// DefaultTranslations is the equivalence table in its textual form:
// entries separated by '#', each "source:equivalent1,equivalent2".
const DefaultTranslations = "text/plain;charset=utf-8:UTF8_STRING,text/plain,public.utf8-plain-text" +
	"#text/plain:UTF8_STRING,text/plain;charset=utf-8,public.utf8-plain-text" +
	"#TEXT:text/plain,text/plain;charset=utf-8,UTF8_STRING,public.utf8-plain-text" +
	"#STRING:text/plain,text/plain;charset=utf-8,UTF8_STRING,public.utf8-plain-text" +
	"#UTF8_STRING:text/plain;charset=utf-8,text/plain,public.utf8-plain-text" +
	"#GTK_TEXT_BUFFER_CONTENTS:UTF8_STRING,text/plain,public.utf8-plain-text"

var ErrBadTranslation = errors.New("invalid translation entry")

// Translations maps a requested target to equivalent targets, in preference order.
type Translations map[string][]string

func ParseTranslations(s string) (Translations, error) {
	table := make(Translations)
	for _, entry := range strings.Split(s, "#") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		src, dst, ok := strings.Cut(entry, ":")
		src = strings.TrimSpace(src)
		if !ok || src == "" {
			return nil, fmt.Errorf("%w: %q", ErrBadTranslation, entry)
		}

		for _, d := range strings.Split(dst, ",") {
			if d = strings.TrimSpace(d); d != "" && d != src {
				table[src] = append(table[src], d)
			}
		}
	}
	return table, nil
}

func MustParseTranslations(s string) Translations {
	t, err := ParseTranslations(s)
	if err != nil {
		panic(err)
	}
	return t
}

// Equivalent returns the first translation of target present in available.
func (t Translations) Equivalent(target string, available []string) (string, bool) {
	for _, alt := range t[target] {
		if slices.Contains(available, alt) {
			return alt, true
		}
	}
	return "", false
}
