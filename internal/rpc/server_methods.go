package rpc

import (
	"encoding/json"
	"time"

	"github.com/halvalla/stabled/internal/core/vault"
)

// ServerInfoMethod handles the server_info RPC method.
type ServerInfoMethod struct {
	svc      *Services
	registry *MethodRegistry
}

func (m *ServerInfoMethod) Handle(ctx *Context, params json.RawMessage) (interface{}, *Error) {
	if m.svc == nil {
		return nil, ErrorInternal("Server services not available")
	}

	info := map[string]interface{}{
		"build_version":   m.svc.Info.Version,
		"started_at":      m.svc.Info.StartedAt.UTC().Format(time.RFC3339),
		"uptime":          m.svc.Info.Uptime(),
		"kv_backend":      m.svc.Info.KVBackend,
		"history_backend": m.svc.Info.HistoryDriver,
	}
	if m.registry != nil {
		info["methods"] = m.registry.List()
	}
	if m.svc.Policy != nil {
		p := m.svc.Policy.Params()
		info["policy"] = map[string]interface{}{
			"policy_id":              m.svc.Policy.Self().String(),
			"token":                  string(vault.StablecoinTokenName),
			"oracle_entity":          p.OracleEntity.String(),
			"vault_entity":           p.VaultEntity.String(),
			"min_collateral_percent": p.MinCollateralPercent,
		}
	}
	if m.svc.Index != nil {
		info["positions"] = m.svc.Index.Len()
		if price, ok := m.svc.Index.Price(); ok {
			info["price"] = PriceJSON{Ref: encodeRef(price.Ref), Rate: price.Rate}
		}
	}

	return map[string]interface{}{"info": info}, nil
}

// PingMethod handles the ping RPC method. An empty success response is
// the whole point.
type PingMethod struct{}

func (m *PingMethod) Handle(ctx *Context, params json.RawMessage) (interface{}, *Error) {
	return map[string]interface{}{}, nil
}

// SubscribeMethod rejects subscribe over plain HTTP; the real
// implementation lives in the WebSocket handler.
type SubscribeMethod struct{}

func (m *SubscribeMethod) Handle(ctx *Context, params json.RawMessage) (interface{}, *Error) {
	return nil, ErrorNotSupported("subscribe is only available via WebSocket")
}

// UnsubscribeMethod rejects unsubscribe over plain HTTP.
type UnsubscribeMethod struct{}

func (m *UnsubscribeMethod) Handle(ctx *Context, params json.RawMessage) (interface{}, *Error) {
	return nil, ErrorNotSupported("unsubscribe is only available via WebSocket")
}
