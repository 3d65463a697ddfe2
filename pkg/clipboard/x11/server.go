package x11

import (
	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
)

// server is the part of the X protocol that moves selection data between
// windows.
type server interface {
	readProperty(win xproto.Window, prop xproto.Atom) (*xproto.GetPropertyReply, error)
	changeProperty(win xproto.Window, prop, typ xproto.Atom, format byte, data []byte) error
	// watchProperties toggles PropertyNotify delivery for a requestor window.
	watchProperties(win xproto.Window, on bool)
	sendNotify(ev xproto.SelectionNotifyEvent)
}

type xserver struct {
	conn *xgb.Conn
}

// readProperty reads and deletes prop, which acknowledges an INCR piece.
func (s xserver) readProperty(win xproto.Window, prop xproto.Atom) (*xproto.GetPropertyReply, error) {
	return xproto.GetProperty(s.conn, true, win, prop, xproto.GetPropertyTypeAny, 0, maxPropWords).Reply()
}

func (s xserver) changeProperty(win xproto.Window, prop, typ xproto.Atom, format byte, data []byte) error {
	return xproto.ChangePropertyChecked(s.conn, xproto.PropModeReplace, win, prop, typ, format, units(data, format), data).Check()
}

func (s xserver) watchProperties(win xproto.Window, on bool) {
	mask := uint32(xproto.EventMaskNoEvent)
	if on {
		mask = xproto.EventMaskPropertyChange
	}
	xproto.ChangeWindowAttributes(s.conn, win, xproto.CwEventMask, []uint32{mask})
}

func (s xserver) sendNotify(ev xproto.SelectionNotifyEvent) {
	xproto.SendEvent(s.conn, false, ev.Requestor, xproto.EventMaskNoEvent, string(ev.Bytes()))
}

// units is the property length in elements of format bits.
func units(data []byte, format byte) uint32 {
	if format < 8 {
		return 0
	}
	return uint32(len(data)) / uint32(format/8)
}
