package protocol

import (
	"fmt"
	"io"

	"github.com/labi-le/clipsync/internal/types/domain"
	"github.com/labi-le/clipsync/pkg/protoutil"
)

// Encode returns v as a length-prefixed frame.
func Encode(v any) ([]byte, error) {
	buf := make([]byte, protoutil.Length, protoutil.DefaultBufferSize)
	buf, err := appendEvent(buf, v)
	if err != nil {
		return nil, err
	}
	return protoutil.Seal(buf), nil
}

func MustEncode(v any) []byte {
	encode, err := Encode(v)
	if err != nil {
		panic(err)
	}

	return encode
}

// EncodeToWriter frames v into w using a pooled buffer.
func EncodeToWriter(w io.Writer, v any) error {
	bufPtr := protoutil.Buffer()
	defer protoutil.Release(bufPtr)

	buf, err := appendEvent(*bufPtr, v)
	if err != nil {
		return err
	}
	*bufPtr = buf

	_, err = w.Write(protoutil.Seal(buf))
	return err
}

// DecodeEvent reads one frame of at most protoutil.DefaultMaxFrame bytes.
func DecodeEvent(r io.Reader) (any, error) {
	return DecodeEventLimit(r, protoutil.DefaultMaxFrame)
}

func DecodeEventLimit(r io.Reader, limit int) (any, error) {
	body, err := protoutil.ReadFrame(r, limit)
	if err != nil {
		return nil, err
	}
	return decodeEvent(body)
}

func DecodeExpect[T domain.AnyEvent](r io.Reader) (T, error) {
	var empty T
	event, err := DecodeEvent(r)
	if err != nil {
		return empty, err
	}

	typed, ok := event.(T)
	if !ok {
		return empty, fmt.Errorf("expected %T, got %T", empty, event)
	}

	return typed, nil
}
