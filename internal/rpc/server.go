// Package rpc serves the node's JSON-RPC API over HTTP POST and the
// subscription streams over WebSocket. The request envelope is
// {"method": "name", "params": [{...}]} and every response carries a
// result object with a status field; errors ride inside the result.
package rpc

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/halvalla/stabled/internal/logging"
)

// DefaultTimeout bounds request handling when the config names none.
const DefaultTimeout = 30 * time.Second

// Server handles HTTP JSON-RPC requests.
type Server struct {
	registry *MethodRegistry
	svc      *Services
	timeout  time.Duration
	logger   logging.Logger
}

// NewServer builds a server over svc with every method registered.
func NewServer(svc *Services, timeout time.Duration, logger logging.Logger) *Server {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = logging.New("rpc")
	}
	server := &Server{
		registry: NewMethodRegistry(),
		svc:      svc,
		timeout:  timeout,
		logger:   logger,
	}
	server.registerAllMethods()
	return server
}

// Registry exposes the method table so the WebSocket server can share it.
func (s *Server) Registry() *MethodRegistry {
	return s.registry
}

// registerAllMethods wires the complete method table.
func (s *Server) registerAllMethods() {
	// Transaction methods
	s.registry.Register("submit", &SubmitMethod{svc: s.svc})
	s.registry.Register("evaluate", &EvaluateMethod{svc: s.svc})
	s.registry.Register("max_mint", &MaxMintMethod{svc: s.svc})

	// Query methods
	s.registry.Register("positions", &PositionsMethod{svc: s.svc})
	s.registry.Register("position", &PositionMethod{svc: s.svc})
	s.registry.Register("price", &PriceMethod{svc: s.svc})
	s.registry.Register("history", &HistoryMethod{svc: s.svc})

	// Server methods
	s.registry.Register("server_info", &ServerInfoMethod{svc: s.svc, registry: s.registry})
	s.registry.Register("ping", &PingMethod{})

	// Subscription commands exist on the WebSocket side only; register
	// them here so HTTP callers get a pointed error instead of unknownCmd.
	s.registry.Register("subscribe", &SubscribeMethod{})
	s.registry.Register("unsubscribe", &UnsubscribeMethod{})
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("Content-Type", "application/json")

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		s.handleGet(w, r)
	case http.MethodPost:
		s.handlePost(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleGet serves simple query-parameter requests, defaulting to
// server_info so a plain GET answers something useful.
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	method := r.URL.Query().Get("command")
	if method == "" {
		method = "server_info"
	}

	ctx := &Context{Context: r.Context(), ClientIP: clientIP(r)}
	result, rpcErr := s.execute(method, nil, ctx)
	s.writeResponse(w, result, rpcErr)
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeResponse(w, nil, ErrorInternal("Failed to read request body"))
		return
	}
	defer r.Body.Close()

	var request Request
	if err := json.Unmarshal(body, &request); err != nil {
		s.writeResponse(w, nil, ErrorParse("Invalid JSON: "+err.Error()))
		return
	}
	if request.Method == "" {
		s.writeResponse(w, nil, ErrorMissingCommand())
		return
	}

	var params json.RawMessage
	if len(request.Params) > 0 {
		params = request.Params[0]
	}

	ctx := &Context{Context: r.Context(), ClientIP: clientIP(r)}
	result, rpcErr := s.execute(request.Method, params, ctx)
	s.writeResponse(w, result, rpcErr)
}

// execute resolves and runs one method.
func (s *Server) execute(method string, params json.RawMessage, ctx *Context) (interface{}, *Error) {
	handler, exists := s.registry.Get(method)
	if !exists {
		return nil, ErrorMethodNotFound(method)
	}
	return handler.Handle(ctx, params)
}

// writeResponse writes the response envelope. Success wraps the result
// with status "success"; failure renders the error fields inside the
// result object.
func (s *Server) writeResponse(w http.ResponseWriter, result interface{}, rpcErr *Error) {
	var resultObj map[string]interface{}

	if rpcErr != nil {
		resultObj = map[string]interface{}{
			"status":        "error",
			"error":         rpcErr.Name,
			"error_code":    rpcErr.Code,
			"error_message": rpcErr.Message,
		}
	} else if m, ok := result.(map[string]interface{}); ok {
		m["status"] = "success"
		resultObj = m
	} else {
		resultObj = map[string]interface{}{
			"status": "success",
			"data":   result,
		}
	}

	data, err := json.Marshal(map[string]interface{}{"result": resultObj})
	if err != nil {
		s.logger.Error("failed to marshal response: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// clientIP extracts the caller's address, honoring proxy headers.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}
