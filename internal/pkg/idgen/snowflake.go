package idgen

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	node *snowflake.Node
	once sync.Once
)

// Initialize sets up the Snowflake ID generator with a node ID.
// Only the first call has any effect.
func Initialize(nodeID int64) error {
	var err error
	once.Do(func() {
		node, err = snowflake.NewNode(nodeID)
	})
	return err
}

// GenerateID generates a new Snowflake ID as a string. Used for request IDs
// on outgoing API calls and for web session IDs.
func GenerateID() string {
	// No-op after the first call; also orders the read of node
	_ = Initialize(1)
	return node.Generate().String()
}
