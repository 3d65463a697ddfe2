package x11

import (
	"fmt"

	"github.com/jezek/xgb/xproto"
	"github.com/labi-le/clipsync/pkg/clipboard/eventful"
)

// Convert asks the owner of selection for target. The answer arrives as
// Chunk events: one for a plain transfer, a sequence for INCR.
func (b *Backend) Convert(selection, target string) error {
	selAtom, err := b.selectionAtom(selection)
	if err != nil {
		return err
	}

	atoms, err := b.atoms.InternAll([]string{target, propertyPrefix + selection + "_" + target})
	if err != nil {
		return err
	}
	targetAtom, prop := atoms[0], atoms[1]

	b.mu.Lock()
	b.pending[convKey{selAtom, targetAtom}] = prop
	b.mu.Unlock()

	if err := xproto.ConvertSelectionChecked(b.conn, b.win, selAtom, targetAtom, prop, xproto.TimeCurrentTime).Check(); err != nil {
		b.mu.Lock()
		delete(b.pending, convKey{selAtom, targetAtom})
		b.mu.Unlock()
		return fmt.Errorf("convert selection: %w", err)
	}
	return nil
}

func (b *Backend) converted(e xproto.SelectionNotifyEvent) {
	selection, ok := b.selections[e.Selection]
	if !ok {
		return
	}

	key := convKey{e.Selection, e.Target}
	b.mu.Lock()
	prop, ok := b.pending[key]
	delete(b.pending, key)
	b.mu.Unlock()
	if !ok {
		return
	}

	target, err := b.atoms.Name(e.Target)
	if err != nil {
		b.logger.Warn().Err(err).Msg("conversion for unknown target")
		return
	}

	if e.Property == xproto.AtomNone {
		b.emit(eventful.Chunk{Selection: selection, Target: target})
		return
	}

	reply, err := b.srv.readProperty(b.win, prop)
	if err != nil {
		b.logger.Warn().Err(err).Str("target", target).Msg("failed to read converted property")
		b.emit(eventful.Chunk{Selection: selection, Target: target})
		return
	}

	if reply.Type == b.incrAtom {
		var size uint32
		if sizes := decodeAtoms(reply.Value); len(sizes) > 0 {
			size = uint32(sizes[0])
		}

		b.mu.Lock()
		b.incoming[prop] = conversion{selection: selection, target: target}
		b.mu.Unlock()

		incr := eventful.IncrContent(size)
		b.emit(eventful.Chunk{Selection: selection, Target: target, Content: &incr})
		return
	}

	content, err := b.content(reply)
	if err != nil {
		b.logger.Warn().Err(err).Str("target", target).Msg("failed to decode converted property")
		b.emit(eventful.Chunk{Selection: selection, Target: target})
		return
	}
	b.emit(eventful.Chunk{Selection: selection, Target: target, Content: &content})
}

// incrChunk reads the next piece of an incremental transfer into our window.
func (b *Backend) incrChunk(e xproto.PropertyNotifyEvent) {
	if e.State != xproto.PropertyNewValue {
		return
	}

	b.mu.Lock()
	conv, ok := b.incoming[e.Atom]
	b.mu.Unlock()
	if !ok {
		return
	}

	reply, err := b.srv.readProperty(b.win, e.Atom)
	if err != nil {
		b.mu.Lock()
		delete(b.incoming, e.Atom)
		b.mu.Unlock()
		b.logger.Warn().Err(err).Str("target", conv.target).Msg("incremental read failed")
		b.emit(eventful.Chunk{Selection: conv.selection, Target: conv.target})
		return
	}

	content, err := b.content(reply)
	if err != nil {
		b.logger.Warn().Err(err).Str("target", conv.target).Msg("failed to decode incremental chunk")
		return
	}

	if len(content.Data) == 0 {
		b.mu.Lock()
		delete(b.incoming, e.Atom)
		b.mu.Unlock()
	}
	b.emit(eventful.Chunk{Selection: conv.selection, Target: conv.target, Content: &content})
}

// content turns a property into Content. Atom lists become target names.
func (b *Backend) content(reply *xproto.GetPropertyReply) (eventful.Content, error) {
	typ, err := b.atoms.Name(reply.Type)
	if err != nil {
		return eventful.Content{}, err
	}

	if reply.Type == xproto.AtomAtom && reply.Format == 32 {
		return eventful.TargetsContent(b.atoms.Names(decodeAtoms(reply.Value))), nil
	}

	return eventful.Content{
		Type:   typ,
		Format: int(reply.Format),
		Data:   reply.Value,
	}, nil
}
