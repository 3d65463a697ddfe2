package protocol_test

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/labi-le/clipsync/internal/protocol"
	"github.com/labi-le/clipsync/internal/types/domain"
	"github.com/labi-le/clipsync/pkg/clipboard/eventful"
	"github.com/labi-le/clipsync/pkg/protoutil"
)

var (
	testTime = time.Now()

	fullHelloEvent = domain.EventHello{
		From:    101,
		Created: testTime,
		Payload: domain.Hello{
			Version: "1.2.3",
			Device: domain.Device{
				ID:   401,
				Name: "TestNode",
				Arch: "amd64",
			},
			Port:             8080,
			Selections:       []string{"CLIPBOARD", "PRIMARY"},
			WantTargets:      true,
			Greedy:           true,
			PreferredTargets: []string{"UTF8_STRING", "image/png"},
		},
	}

	fullTokenEvent = domain.EventToken{
		From:    201,
		Created: testTime,
		Payload: domain.Token{
			Selection: "CLIPBOARD",
			Targets:   []string{"TARGETS", "UTF8_STRING", "text/plain"},
			Target:    "UTF8_STRING",
			Content: &eventful.Content{
				Type:   "UTF8_STRING",
				Format: 8,
				Data:   []byte("hello"),
			},
			Claim:       true,
			Greedy:      true,
			Synchronous: true,
		},
	}

	bareTokenEvent = domain.EventToken{
		From:    202,
		Created: testTime,
		Payload: domain.Token{Selection: "PRIMARY", Claim: true},
	}

	fullRequestEvent = domain.EventRequest{
		From:    301,
		Created: testTime,
		Payload: domain.Request{
			ID:        302,
			Selection: "CLIPBOARD",
			Target:    "image/png",
		},
	}

	fullContentsEvent = domain.EventContents{
		From:    401,
		Created: testTime,
		Payload: domain.Contents{
			ID:        402,
			Selection: "CLIPBOARD",
			Target:    "image/png",
			Type:      "image/png",
			Format:    8,
			Data:      []byte{0x89, 0x50, 0x4E, 0x47},
		},
	}

	targetsContentsEvent = domain.EventContents{
		From:    403,
		Created: testTime,
		Payload: domain.Contents{
			ID:        404,
			Selection: "CLIPBOARD",
			Target:    eventful.TargetsTarget,
			Type:      eventful.AtomType,
			Format:    32,
			Data:      eventful.EncodeTargets([]string{"TARGETS", "STRING"}),
		},
	}

	noneContentsEvent = domain.EventContents{
		From:    405,
		Created: testTime,
		Payload: domain.Contents{
			ID:        406,
			Selection: "PRIMARY",
			Target:    "text/plain",
			None:      true,
		},
	}

	fullEnableEvent = domain.EventEnableSelections{
		From:    501,
		Created: testTime,
		Payload: domain.EnableSelections{Selections: []string{"CLIPBOARD"}},
	}
)

func TestMapping_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   any
	}{
		{"EventHello", fullHelloEvent},
		{"EventToken", fullTokenEvent},
		{"EventTokenBare", bareTokenEvent},
		{"EventRequest", fullRequestEvent},
		{"EventContents", fullContentsEvent},
		{"EventContentsTargets", targetsContentsEvent},
		{"EventContentsNone", noneContentsEvent},
		{"EventEnableSelections", fullEnableEvent},
	}

	opts := []cmp.Option{
		cmpopts.EquateApproxTime(time.Microsecond),
		cmpopts.EquateEmpty(),
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded := protocol.MustEncode(tt.in)

			decoded, err := protocol.DecodeEvent(bytes.NewReader(encoded))
			if err != nil {
				t.Fatalf("DecodeEvent failed: %v", err)
			}

			if diff := cmp.Diff(tt.in, decoded, opts...); diff != "" {
				t.Errorf("RoundTrip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEncodeToWriter_MatchesEncode(t *testing.T) {
	var buf bytes.Buffer
	for _, ev := range []any{fullTokenEvent, fullContentsEvent} {
		if err := protocol.EncodeToWriter(&buf, ev); err != nil {
			t.Fatalf("EncodeToWriter: %v", err)
		}
	}

	want := append(protocol.MustEncode(fullTokenEvent), protocol.MustEncode(fullContentsEvent)...)
	if !bytes.Equal(want, buf.Bytes()) {
		t.Fatal("pooled and plain encodings differ")
	}

	first, err := protocol.DecodeExpect[domain.EventToken](&buf)
	if err != nil {
		t.Fatalf("DecodeExpect token: %v", err)
	}
	if first.Payload.Selection != "CLIPBOARD" {
		t.Fatalf("unexpected selection %q", first.Payload.Selection)
	}

	if _, err := protocol.DecodeExpect[domain.EventToken](&buf); err == nil {
		t.Fatal("expected a type mismatch for a contents frame")
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name  string
		frame []byte
		limit int
		want  error
	}{
		{
			name:  "frame over limit",
			frame: protocol.MustEncode(fullContentsEvent),
			limit: 8,
			want:  protoutil.ErrFrameTooLarge,
		},
		{
			name:  "truncated varint",
			frame: frame([]byte{0x10, 0xff}),
			want:  protocol.ErrMalformed,
		},
		{
			name:  "empty envelope",
			frame: frame(nil),
			want:  protocol.ErrUnknownEvent,
		},
		{
			name:  "content without target",
			frame: frame([]byte{0x5a, 0x04, 0x22, 0x02, 0x0a, 0x00}),
			want:  protocol.ErrMalformed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := protocol.DecodeEventLimit(bytes.NewReader(tt.frame), tt.limit)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestEncode_UnknownType(t *testing.T) {
	if _, err := protocol.Encode(struct{}{}); !errors.Is(err, protocol.ErrUnknownEvent) {
		t.Fatalf("expected ErrUnknownEvent, got %v", err)
	}
}

func frame(body []byte) []byte {
	var buf bytes.Buffer
	_ = protoutil.WriteFrame(&buf, body)
	return buf.Bytes()
}
