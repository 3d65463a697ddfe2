package protoutil

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
)

const (
	Length            = 4
	DefaultBufferSize = 2048
	// DefaultMaxFrame bounds a single frame body.
	DefaultMaxFrame = 16 << 20
)

var ErrFrameTooLarge = errors.New("frame exceeds size limit")

var encodePool = sync.Pool{
	New: func() any {
		b := make([]byte, Length, DefaultBufferSize)
		return &b
	},
}

// Buffer returns a pooled buffer whose first Length bytes are reserved for the header.
func Buffer() *[]byte {
	bufPtr := encodePool.Get().(*[]byte)
	*bufPtr = (*bufPtr)[:Length]
	return bufPtr
}

func Release(bufPtr *[]byte) {
	if cap(*bufPtr) > DefaultMaxFrame {
		return
	}
	encodePool.Put(bufPtr)
}

// Seal writes the body length into the reserved header of buf.
func Seal(buf []byte) []byte {
	binary.BigEndian.PutUint32(buf[:Length], uint32(len(buf)-Length))
	return buf
}

// WriteFrame writes a length-prefixed body.
func WriteFrame(w io.Writer, body []byte) error {
	var header [Length]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(body)))

	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}

// ReadFrame reads one length-prefixed body of at most limit bytes.
func ReadFrame(r io.Reader, limit int) ([]byte, error) {
	length, err := dataLen(r)
	if err != nil {
		return nil, err
	}

	if limit > 0 && length > limit {
		return nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, length, limit)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return data, nil
}

func dataLen(r io.Reader) (int, error) {
	var header [Length]byte

	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, err
	}

	return int(binary.BigEndian.Uint32(header[:])), nil
}
