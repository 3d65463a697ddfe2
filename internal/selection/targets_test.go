package selection_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/labi-le/clipsync/internal/selection"
)

func TestChooseTarget(t *testing.T) {
	tests := []struct {
		name      string
		targets   []string
		preferred []string
		want      string
	}{
		{
			name:      "image wins over text",
			targets:   []string{"UTF8_STRING", "image/png"},
			preferred: []string{"UTF8_STRING", "image/png"},
			want:      "image/png",
		},
		{
			name:      "image only offered locally",
			targets:   []string{"UTF8_STRING", "image/png"},
			preferred: []string{"UTF8_STRING"},
			want:      "UTF8_STRING",
		},
		{
			name:      "preferred order among text",
			targets:   []string{"UTF8_STRING", "text/plain"},
			preferred: []string{"text/plain", "UTF8_STRING"},
			want:      "text/plain",
		},
		{
			name:      "no overlap",
			targets:   []string{"image/png"},
			preferred: []string{"UTF8_STRING", "image/jpeg"},
			want:      "",
		},
		{
			name:      "overlap without text or image",
			targets:   []string{"application/pdf"},
			preferred: []string{"application/pdf"},
			want:      "",
		},
		{
			name:    "no preferred list takes first known text",
			targets: []string{"text/plain", "STRING", "UTF8_STRING"},
			want:    "UTF8_STRING",
		},
		{
			name:    "no preferred list ignores images",
			targets: []string{"image/png"},
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := selection.ChooseTarget(tt.targets, tt.preferred); got != tt.want {
				t.Fatalf("ChooseTarget(%v, %v) = %q, want %q", tt.targets, tt.preferred, got, tt.want)
			}
		})
	}
}

func TestFilterTargets(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "duplicates keep first position",
			in:   []string{"UTF8_STRING", "text/plain", "UTF8_STRING", "text/plain"},
			want: []string{"UTF8_STRING", "text/plain"},
		},
		{
			name: "platform private targets",
			in: []string{
				"NeXT plain ascii pasteboard type",
				"com.apple.traditional-mac-plain-text",
				"CorePasteboardFlavorType 0x75747874",
				"dyn.ah62d4rv4gu8y",
				"x-special/gnome-copied-files",
				"UTF8_STRING",
			},
			want: []string{"UTF8_STRING"},
		},
		{
			name: "empty names",
			in:   []string{"", "STRING", ""},
			want: []string{"STRING"},
		},
		{
			name: "everything discarded",
			in:   []string{"com.apple.webarchive"},
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, selection.FilterTargets(tt.in)); diff != "" {
				t.Fatalf("FilterTargets (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseTranslations(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    selection.Translations
		wantErr error
	}{
		{
			name: "entries",
			in:   "TEXT:UTF8_STRING,text/plain#STRING:UTF8_STRING",
			want: selection.Translations{
				"TEXT":   {"UTF8_STRING", "text/plain"},
				"STRING": {"UTF8_STRING"},
			},
		},
		{
			name: "self translation skipped",
			in:   "UTF8_STRING:UTF8_STRING,text/plain",
			want: selection.Translations{"UTF8_STRING": {"text/plain"}},
		},
		{
			name: "blanks trimmed",
			in:   " # TEXT : STRING , , UTF8_STRING # ",
			want: selection.Translations{"TEXT": {"STRING", "UTF8_STRING"}},
		},
		{
			name: "empty",
			in:   "",
			want: selection.Translations{},
		},
		{
			name:    "missing separator",
			in:      "TEXT:STRING#UTF8_STRING",
			wantErr: selection.ErrBadTranslation,
		},
		{
			name:    "missing source",
			in:      ":STRING",
			wantErr: selection.ErrBadTranslation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := selection.ParseTranslations(tt.in)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("translations (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTranslations_Equivalent(t *testing.T) {
	table := selection.MustParseTranslations(selection.DefaultTranslations)

	alt, ok := table.Equivalent("TEXT", []string{"image/png", "UTF8_STRING", "text/plain"})
	if !ok || alt != "text/plain" {
		t.Fatalf("Equivalent(TEXT) = %q %v, want text/plain", alt, ok)
	}

	if _, ok := table.Equivalent("image/png", []string{"UTF8_STRING"}); ok {
		t.Fatal("image/png has no equivalent")
	}
}
