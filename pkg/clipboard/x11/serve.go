package x11

import (
	"encoding/binary"
	"fmt"

	"github.com/jezek/xgb/xproto"
	"github.com/labi-le/clipsync/pkg/clipboard/eventful"
)

type outKey struct {
	requestor xproto.Window
	property  xproto.Atom
}

// outgoing is an answer being written to a requestor incrementally.
type outgoing struct {
	typ    xproto.Atom
	format byte
	data   []byte
}

func (b *Backend) selectionRequest(e xproto.SelectionRequestEvent) {
	selection, ok := b.selections[e.Selection]
	if !ok {
		b.notify(e, xproto.AtomNone)
		return
	}

	property := e.Property
	// obsolete clients leave the property empty
	if property == xproto.AtomNone {
		property = e.Target
	}

	switch e.Target {
	case b.timestampAtom:
		b.mu.Lock()
		at, owned := b.claimedAt[selection]
		b.mu.Unlock()
		if !owned {
			b.notify(e, xproto.AtomNone)
			return
		}
		data := make([]byte, 4)
		binary.LittleEndian.PutUint32(data, uint32(at))
		if err := b.srv.changeProperty(e.Requestor, property, xproto.AtomInteger, 32, data); err != nil {
			b.notify(e, xproto.AtomNone)
			return
		}
		b.notify(e, property)
		return
	case b.multipleAtom:
		b.notify(e, xproto.AtomNone)
		return
	}

	names := b.atoms.Names([]xproto.Atom{e.Target, property})
	if len(names) != 2 {
		b.notify(e, xproto.AtomNone)
		return
	}

	b.emit(eventful.SelectionRequest{
		Selection: selection,
		Request: eventful.Request{
			Requestor: eventful.Requestor{
				ID:   uint32(e.Requestor),
				Name: b.requestorName(e.Requestor),
			},
			Target:   names[0],
			Property: names[1],
			Time:     uint32(e.Time),
		},
	})
}

// Respond writes content into the requestor's property and notifies it.
// Answers above incrChunk are sent with the INCR protocol.
func (b *Backend) Respond(selection string, req eventful.Request, content *eventful.Content) error {
	selAtom, err := b.selectionAtom(selection)
	if err != nil {
		return err
	}

	atoms, err := b.atoms.InternAll([]string{req.Target, req.Property})
	if err != nil {
		return err
	}

	e := xproto.SelectionRequestEvent{
		Time:      xproto.Timestamp(req.Time),
		Owner:     b.win,
		Requestor: xproto.Window(req.Requestor.ID),
		Selection: selAtom,
		Target:    atoms[0],
		Property:  atoms[1],
	}

	if content == nil {
		b.notify(e, xproto.AtomNone)
		return nil
	}

	typ, format, data, err := b.encode(req.Target, *content)
	if err != nil {
		b.notify(e, xproto.AtomNone)
		return err
	}

	if len(data) > incrChunk {
		b.startIncr(e, typ, format, data)
		return nil
	}

	if err := b.srv.changeProperty(e.Requestor, e.Property, typ, format, data); err != nil {
		b.notify(e, xproto.AtomNone)
		return fmt.Errorf("change property: %w", err)
	}

	b.notify(e, e.Property)
	return nil
}

func (b *Backend) encode(target string, c eventful.Content) (xproto.Atom, byte, []byte, error) {
	if target == eventful.TargetsTarget {
		names := append([]string{eventful.TargetsTarget, "TIMESTAMP"}, eventful.DecodeTargets(c.Data)...)
		atoms, err := b.atoms.InternAll(names)
		if err != nil {
			return 0, 0, nil, err
		}
		return xproto.AtomAtom, 32, encodeAtoms(atoms), nil
	}

	typName := c.Type
	if typName == "" {
		typName = target
	}
	typ, err := b.atoms.Intern(typName)
	if err != nil {
		return 0, 0, nil, err
	}

	format := byte(c.Format)
	if format != 8 && format != 16 && format != 32 {
		format = 8
	}
	return typ, format, c.Data, nil
}

func (b *Backend) startIncr(e xproto.SelectionRequestEvent, typ xproto.Atom, format byte, data []byte) {
	key := outKey{e.Requestor, e.Property}

	b.mu.Lock()
	b.outgoing[key] = &outgoing{typ: typ, format: format, data: data}
	b.mu.Unlock()

	b.srv.watchProperties(e.Requestor, true)

	size := make([]byte, 4)
	binary.LittleEndian.PutUint32(size, uint32(len(data)))
	if err := b.srv.changeProperty(e.Requestor, e.Property, b.incrAtom, 32, size); err != nil {
		b.mu.Lock()
		delete(b.outgoing, key)
		b.mu.Unlock()
		b.srv.watchProperties(e.Requestor, false)
		b.notify(e, xproto.AtomNone)
		return
	}

	b.notify(e, e.Property)
}

// next cuts the following piece; the empty piece ends the transfer.
func (o *outgoing) next() (chunk []byte, last bool) {
	n := min(incrChunk, len(o.data))
	chunk, o.data = o.data[:n], o.data[n:]
	return chunk, n == 0
}

// sendNextChunk continues an incremental answer once the requestor deleted
// the previous piece. The final piece is empty.
func (b *Backend) sendNextChunk(e xproto.PropertyNotifyEvent) {
	if e.State != xproto.PropertyDelete {
		return
	}

	key := outKey{xproto.Window(e.Window), e.Atom}

	b.mu.Lock()
	out, ok := b.outgoing[key]
	var (
		chunk []byte
		last  bool
	)
	if ok {
		chunk, last = out.next()
		if last {
			delete(b.outgoing, key)
		}
	}
	b.mu.Unlock()
	if !ok {
		return
	}

	err := b.srv.changeProperty(key.requestor, key.property, out.typ, out.format, chunk)
	if err != nil {
		b.logger.Debug().Err(err).Uint32("requestor", uint32(key.requestor)).Msg("incremental write failed")
		b.mu.Lock()
		delete(b.outgoing, key)
		b.mu.Unlock()
		last = true
	}

	if last {
		b.srv.watchProperties(key.requestor, false)
	}
}

func (b *Backend) notify(e xproto.SelectionRequestEvent, property xproto.Atom) {
	ev := xproto.SelectionNotifyEvent{
		Time:      e.Time,
		Requestor: e.Requestor,
		Selection: e.Selection,
		Target:    e.Target,
		Property:  property,
	}
	b.srv.sendNotify(ev)
}
