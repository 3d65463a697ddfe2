//go:build unix

package pipe_test

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/labi-le/clipsync/pkg/pipe"
)

func TestReadAll(t *testing.T) {
	tests := []struct {
		name string
		size int
	}{
		{name: "empty", size: 0},
		{name: "small", size: 11},
		{name: "several chunks", size: 300 * 1024},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, w, err := pipe.New()
			if err != nil {
				t.Fatal(err)
			}
			defer r.Close()

			data := bytes.Repeat([]byte("clip"), tt.size/4+1)[:tt.size]
			errc := make(chan error, 1)
			go func() { errc <- pipe.WriteAll(w, data, time.Second) }()

			got, err := pipe.ReadAll(r, time.Second, 0)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(got, data) {
				t.Fatalf("read %d bytes, want %d", len(got), len(data))
			}
			if err := <-errc; err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestReadAll_Idle(t *testing.T) {
	r, w, err := pipe.New()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	defer w.Close()

	if _, err := pipe.ReadAll(r, 20*time.Millisecond, 0); !errors.Is(err, pipe.ErrTimeout) {
		t.Fatalf("expected %v, got %v", pipe.ErrTimeout, err)
	}
}

func TestReadAll_Limit(t *testing.T) {
	r, w, err := pipe.New()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	go func() { _ = pipe.WriteAll(w, make([]byte, 4096), time.Second) }()

	if _, err := pipe.ReadAll(r, time.Second, 1024); !errors.Is(err, pipe.ErrTooBig) {
		t.Fatalf("expected %v, got %v", pipe.ErrTooBig, err)
	}
}

func TestWriteAll_ReaderGone(t *testing.T) {
	r, w, err := pipe.New()
	if err != nil {
		t.Fatal(err)
	}
	_ = r.Close()

	if err := pipe.WriteAll(w, []byte("nobody listens"), time.Second); err != nil {
		t.Fatalf("a closed reader must not be an error, got %v", err)
	}
}
