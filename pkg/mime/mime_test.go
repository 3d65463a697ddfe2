package mime_test

import (
	"testing"

	"github.com/labi-le/clipsync/pkg/mime"
)

func TestAsType(t *testing.T) {
	tests := []struct {
		target string
		want   mime.Type
	}{
		{"UTF8_STRING", mime.TypeText},
		{"STRING", mime.TypeText},
		{"text/plain;charset=utf-8", mime.TypeText},
		{"text/rtf", mime.TypeText},
		{"image/png", mime.TypeImage},
		{"image/x-xcf", mime.TypeImage},
		{"text/uri-list", mime.TypePath},
		{"application/pdf", mime.TypeBinary},
		{"TARGETS", mime.TypeUnknown},
		{"TIMESTAMP", mime.TypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			if got := mime.AsType(tt.target); got != tt.want {
				t.Fatalf("AsType(%q) = %s, want %s", tt.target, got, tt.want)
			}
		})
	}
}
