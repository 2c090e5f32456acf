package rpc

import (
	"time"

	"github.com/halvalla/stabled/internal/core/engine"
	"github.com/halvalla/stabled/internal/core/policy"
	"github.com/halvalla/stabled/internal/index"
	"github.com/halvalla/stabled/internal/storage/history"
)

// Services holds everything the method handlers reach into. One
// instance is built at node startup and shared by the HTTP and
// WebSocket servers.
type Services struct {
	// Engine hosts the registered policies and applies transactions.
	Engine *engine.Engine
	// Policy is the deployment this node serves.
	Policy *policy.Policy
	// Index is the live position view.
	Index *index.Index
	// History is the evaluation audit log; a NoneStore when disabled.
	History history.Store
	// Info describes the running node.
	Info NodeInfo
}

// NodeInfo is the static server_info payload material.
type NodeInfo struct {
	Version       string
	KVBackend     string
	HistoryDriver string
	StartedAt     time.Time
}

// Uptime returns whole seconds since the node started.
func (n NodeInfo) Uptime() int64 {
	if n.StartedAt.IsZero() {
		return 0
	}
	return int64(time.Since(n.StartedAt).Seconds())
}
