package utilities

import (
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/segmentio/ksuid"
)

// NewKSUID generates a new globally unique KSUID string.
func NewKSUID() string {
	return ksuid.New().String()
}

// IDGenerator hands out snowflake ids from a single node. Nodes are not
// cheap to build and must be shared to keep the sequence monotonic.
type IDGenerator struct {
	once   sync.Once
	nodeID int64
	node   *snowflake.Node
}

func NewIDGenerator(nodeID int64) *IDGenerator {
	return &IDGenerator{nodeID: nodeID}
}

// Next returns a snowflake id string. If the node cannot be initialized
// (node id outside 0..1023) or g is nil it falls back to a KSUID string.
func (g *IDGenerator) Next() string {
	if g == nil {
		return NewKSUID()
	}
	g.once.Do(func() {
		node, err := snowflake.NewNode(g.nodeID)
		if err == nil {
			g.node = node
		}
	})
	if g.node == nil {
		return NewKSUID()
	}
	return g.node.Generate().String()
}
