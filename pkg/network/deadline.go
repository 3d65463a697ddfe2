package network

import (
	"fmt"
	"time"
)

// Deadline bounds a single read or write. Zero disables the bound.
type Deadline struct {
	Read  time.Duration
	Write time.Duration
}

type ReadDeadline interface {
	SetReadDeadline(time.Time) error
}

type WriteDeadline interface {
	SetWriteDeadline(time.Time) error
}

type RWDeadline interface {
	ReadDeadline
	WriteDeadline
}

func SetDeadline(conn RWDeadline, dd Deadline) error {
	if err := SetReadDeadline(conn, dd); err != nil {
		return err
	}

	return SetWriteDeadline(conn, dd)
}

func SetReadDeadline(conn ReadDeadline, dd Deadline) error {
	if dd.Read == 0 {
		return nil
	}
	if err := conn.SetReadDeadline(time.Now().Add(dd.Read)); err != nil {
		return fmt.Errorf("set read deadline: %w", err)
	}
	return nil
}

func SetWriteDeadline(conn WriteDeadline, dd Deadline) error {
	if dd.Write == 0 {
		return nil
	}
	if err := conn.SetWriteDeadline(time.Now().Add(dd.Write)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	return nil
}

// ClearDeadline removes both deadlines, leaving an idle session open.
func ClearDeadline(conn RWDeadline) {
	_ = conn.SetReadDeadline(time.Time{})
	_ = conn.SetWriteDeadline(time.Time{})
}
