package x11

import (
	"encoding/binary"
	"fmt"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
	"github.com/labi-le/clipsync/internal/history"
)

const atomCacheSize = 1024

// atomCache maps atom names both ways. Lookups that miss go to the server.
type atomCache struct {
	conn   *xgb.Conn
	byName *history.Map[string, xproto.Atom]
	byAtom *history.Map[xproto.Atom, string]
}

func newAtomCache(conn *xgb.Conn) *atomCache {
	return &atomCache{
		conn:   conn,
		byName: history.NewMap[string, xproto.Atom](atomCacheSize),
		byAtom: history.NewMap[xproto.Atom, string](atomCacheSize),
	}
}

func (a *atomCache) remember(name string, atom xproto.Atom) {
	a.byName.Add(name, atom)
	a.byAtom.Add(atom, name)
}

func (a *atomCache) Intern(name string) (xproto.Atom, error) {
	atoms, err := a.InternAll([]string{name})
	if err != nil {
		return xproto.AtomNone, err
	}
	return atoms[0], nil
}

// InternAll resolves names with one round trip for all misses.
func (a *atomCache) InternAll(names []string) ([]xproto.Atom, error) {
	atoms := make([]xproto.Atom, len(names))
	cookies := make(map[int]xproto.InternAtomCookie)

	for i, name := range names {
		if atom, ok := a.byName.Get(name); ok {
			atoms[i] = atom
			continue
		}
		cookies[i] = xproto.InternAtom(a.conn, false, uint16(len(name)), name)
	}

	for i, cookie := range cookies {
		reply, err := cookie.Reply()
		if err != nil {
			return nil, fmt.Errorf("intern %q: %w", names[i], err)
		}
		atoms[i] = reply.Atom
		a.remember(names[i], reply.Atom)
	}

	return atoms, nil
}

func (a *atomCache) Name(atom xproto.Atom) (string, error) {
	if atom == xproto.AtomNone {
		return "", nil
	}
	if name, ok := a.byAtom.Get(atom); ok {
		return name, nil
	}

	reply, err := xproto.GetAtomName(a.conn, atom).Reply()
	if err != nil {
		return "", fmt.Errorf("atom name %d: %w", atom, err)
	}
	a.remember(reply.Name, atom)
	return reply.Name, nil
}

func (a *atomCache) Names(atoms []xproto.Atom) []string {
	names := make([]string, 0, len(atoms))
	for _, atom := range atoms {
		name, err := a.Name(atom)
		if err != nil || name == "" {
			continue
		}
		names = append(names, name)
	}
	return names
}

func encodeAtoms(atoms []xproto.Atom) []byte {
	data := make([]byte, 4*len(atoms))
	for i, atom := range atoms {
		binary.LittleEndian.PutUint32(data[4*i:], uint32(atom))
	}
	return data
}

func decodeAtoms(data []byte) []xproto.Atom {
	atoms := make([]xproto.Atom, 0, len(data)/4)
	for i := 0; i+4 <= len(data); i += 4 {
		atoms = append(atoms, xproto.Atom(binary.LittleEndian.Uint32(data[i:])))
	}
	return atoms
}
