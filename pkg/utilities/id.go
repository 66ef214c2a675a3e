package utilities

import (
	"os"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"github.com/segmentio/ksuid"
)

// NewSessionID generates a globally unique, sortable session identifier.
// KSUIDs are URL-safe which matters because session IDs end up inside
// cache key names.
func NewSessionID() string {
	return ksuid.New().String()
}

// NewNumericID generates a snowflake ID using a node ID from the
// SNOWFLAKE_NODE environment variable, defaulting to node 1. Falls back
// to a KSUID string if the node cannot be initialized.
func NewNumericID() string {
	nodeID := int64(1)
	if nodeEnv := os.Getenv("SNOWFLAKE_NODE"); nodeEnv != "" {
		if parsed, err := strconv.ParseInt(nodeEnv, 10, 64); err == nil {
			nodeID = parsed
		}
	}
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return NewSessionID()
	}
	return node.Generate().String()
}
