package eventful

import (
	"bytes"
	"encoding/binary"
)

const targetSeparator = 0

// EncodeTargets packs target names into the Data of an AtomType content.
func EncodeTargets(targets []string) []byte {
	var buf bytes.Buffer
	for i, t := range targets {
		if i > 0 {
			buf.WriteByte(targetSeparator)
		}
		buf.WriteString(t)
	}
	return buf.Bytes()
}

// DecodeTargets is the inverse of EncodeTargets.
func DecodeTargets(data []byte) []string {
	if len(data) == 0 {
		return nil
	}

	parts := bytes.Split(data, []byte{targetSeparator})
	targets := make([]string, 0, len(parts))
	for _, p := range parts {
		if len(p) == 0 {
			continue
		}
		targets = append(targets, string(p))
	}
	return targets
}

func TargetsContent(targets []string) Content {
	return Content{Type: AtomType, Format: 32, Data: EncodeTargets(targets)}
}

// IncrContent announces an incremental transfer of size bytes.
func IncrContent(size uint32) Content {
	data := make([]byte, 4)
	binary.LittleEndian.PutUint32(data, size)
	return Content{Type: IncrType, Format: 32, Data: data}
}

// IncrSize reads the declared size of an IncrType content.
func IncrSize(c Content) int {
	if len(c.Data) < 4 {
		return 0
	}
	return int(binary.LittleEndian.Uint32(c.Data))
}
