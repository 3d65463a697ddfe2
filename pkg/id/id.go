package id

import (
	"fmt"
	"net"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/cespare/xxhash"
)

type Unique = int64

var (
	MyID      = nodeID()
	generator = new(idGenerator)
)

type idGenerator struct {
	node *snowflake.Node
	once sync.Once
}

func (g *idGenerator) next() Unique {
	g.once.Do(func() {
		node, err := snowflake.NewNode(MyID)
		if err != nil {
			panic(fmt.Sprintf("snowflake node %d: %s", MyID, err))
		}
		g.node = node
	})
	return g.node.Generate().Int64()
}

// New returns a process-wide unique, time ordered identifier.
// Used for request ids on the wire and for device identities.
func New() Unique {
	return generator.next()
}

func nodeID() int64 {
	interfaces, err := net.Interfaces()
	if err != nil {
		return 1
	}

	for _, i := range interfaces {
		if i.Flags&net.FlagUp == 0 || len(i.HardwareAddr) == 0 {
			continue
		}
		return int64(xxhash.Sum64(i.HardwareAddr) % 1024)
	}

	return 1
}
