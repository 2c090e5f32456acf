package rpc

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
)

// Request is the HTTP JSON-RPC request envelope:
// {"method": "method_name", "params": [{...}]}. Params carries at most
// one object; extra entries are ignored.
type Request struct {
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params,omitempty"`
}

// Context carries request-scoped information into method handlers.
type Context struct {
	Context  context.Context
	ClientIP string
}

// MethodHandler is implemented by every RPC method.
type MethodHandler interface {
	Handle(ctx *Context, params json.RawMessage) (interface{}, *Error)
}

// MethodRegistry maps method names to handlers. Registration happens at
// server construction; lookups are concurrent.
type MethodRegistry struct {
	mu      sync.RWMutex
	methods map[string]MethodHandler
}

func NewMethodRegistry() *MethodRegistry {
	return &MethodRegistry{methods: make(map[string]MethodHandler)}
}

func (r *MethodRegistry) Register(name string, handler MethodHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.methods[name] = handler
}

func (r *MethodRegistry) Get(name string) (MethodHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handler, exists := r.methods[name]
	return handler, exists
}

func (r *MethodRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	methods := make([]string, 0, len(r.methods))
	for name := range r.methods {
		methods = append(methods, name)
	}
	sort.Strings(methods)
	return methods
}

// Command is one WebSocket request: the method name and id at the top
// level, every other field forming the params object.
type Command struct {
	Command string
	ID      interface{}
	Params  json.RawMessage
}

// Response is the WebSocket response envelope for successful commands.
type Response struct {
	Type   string      `json:"type"`
	ID     interface{} `json:"id,omitempty"`
	Status string      `json:"status,omitempty"`
	Result interface{} `json:"result,omitempty"`
}
