package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/halvalla/stabled/internal/logging"
)

// Stream names a WebSocket subscription feed.
type Stream string

const (
	// StreamVerdicts carries one event per policy evaluation.
	StreamVerdicts Stream = "verdicts"
	// StreamApplied carries the ledger effects of applied transactions.
	StreamApplied Stream = "applied"
	// StreamPrices carries fresh oracle publications.
	StreamPrices Stream = "prices"
	// StreamLiquidations carries undercollateralized positions.
	StreamLiquidations Stream = "liquidations"
)

func knownStream(s Stream) bool {
	switch s {
	case StreamVerdicts, StreamApplied, StreamPrices, StreamLiquidations:
		return true
	}
	return false
}

const (
	// writeWait bounds a single write to the peer.
	writeWait = 10 * time.Second
	// pongWait is how long a silent peer stays alive.
	pongWait = 60 * time.Second
	// pingPeriod must be shorter than pongWait.
	pingPeriod = 54 * time.Second
	// maxMessageSize caps inbound messages at 512KB.
	maxMessageSize = 512 * 1024
	// sendBuffer is the per-connection outbound queue.
	sendBuffer = 256
)

// Conn is one WebSocket client with its subscription set.
type Conn struct {
	ID       string
	clientIP string

	sock   *websocket.Conn
	send   chan []byte
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	streams map[Stream]struct{}
}

func (c *Conn) subscribe(streams []Stream) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range streams {
		c.streams[s] = struct{}{}
	}
}

func (c *Conn) unsubscribe(streams []Stream) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range streams {
		delete(c.streams, s)
	}
}

func (c *Conn) subscribed(s Stream) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.streams[s]
	return ok
}

func (c *Conn) streamNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.streams))
	for s := range c.streams {
		names = append(names, string(s))
	}
	return names
}

// WebSocketServer upgrades HTTP connections and serves the same method
// set as the HTTP server, plus subscribe and unsubscribe. Broadcasts
// fan out to every connection subscribed to the stream.
type WebSocketServer struct {
	upgrader websocket.Upgrader
	registry *MethodRegistry
	logger   logging.Logger

	mu    sync.RWMutex
	conns map[string]*Conn
}

// NewWebSocketServer builds a WebSocket server over an already
// populated method registry, normally the HTTP server's.
func NewWebSocketServer(registry *MethodRegistry, logger logging.Logger) *WebSocketServer {
	if registry == nil {
		registry = NewMethodRegistry()
	}
	if logger == nil {
		logger = logging.New("websocket")
	}
	return &WebSocketServer{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		registry: registry,
		logger:   logger,
		conns:    make(map[string]*Conn),
	}
}

// ServeHTTP upgrades the request and starts the connection pumps.
func (s *WebSocketServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sock, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed: %v", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	conn := &Conn{
		ID:       fmt.Sprintf("conn_%d", time.Now().UnixNano()),
		clientIP: clientIP(r),
		sock:     sock,
		send:     make(chan []byte, sendBuffer),
		ctx:      ctx,
		cancel:   cancel,
		streams:  make(map[Stream]struct{}),
	}

	s.mu.Lock()
	s.conns[conn.ID] = conn
	s.mu.Unlock()

	s.logger.Debug("websocket connection %s opened from %s", conn.ID, conn.clientIP)

	go s.writeLoop(conn)
	go s.readLoop(conn)
}

// readLoop consumes messages until the peer goes away. Pings live in
// the write loop; reads block here, refreshed by the pong handler.
func (s *WebSocketServer) readLoop(conn *Conn) {
	defer s.drop(conn)

	conn.sock.SetReadLimit(maxMessageSize)
	conn.sock.SetReadDeadline(time.Now().Add(pongWait))
	conn.sock.SetPongHandler(func(string) error {
		return conn.sock.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := conn.sock.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Warn("websocket read on %s: %v", conn.ID, err)
			}
			return
		}
		s.handleMessage(conn, message)
	}
}

// writeLoop owns all writes to the socket, keepalive pings included.
func (s *WebSocketServer) writeLoop(conn *Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.sock.Close()
	}()

	for {
		select {
		case <-conn.ctx.Done():
			return
		case message := <-conn.send:
			conn.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.sock.WriteMessage(websocket.TextMessage, message); err != nil {
				s.logger.Debug("websocket write on %s: %v", conn.ID, err)
				return
			}
		case <-ticker.C:
			conn.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.sock.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage dispatches one inbound command. The command and id sit
// at the top level; every other field becomes the params object.
func (s *WebSocketServer) handleMessage(conn *Conn, message []byte) {
	var fields map[string]interface{}
	if err := json.Unmarshal(message, &fields); err != nil {
		s.sendError(conn, ErrorParse("Invalid JSON: "+err.Error()), nil)
		return
	}

	name, _ := fields["command"].(string)
	if name == "" {
		s.sendError(conn, ErrorMissingCommand(), nil)
		return
	}

	cmd := Command{Command: name, ID: fields["id"]}
	delete(fields, "command")
	delete(fields, "id")
	if len(fields) > 0 {
		params, err := json.Marshal(fields)
		if err != nil {
			s.sendError(conn, ErrorInternal("Failed to encode parameters"), cmd.ID)
			return
		}
		cmd.Params = params
	}

	switch cmd.Command {
	case "subscribe":
		s.handleSubscribe(conn, cmd)
	case "unsubscribe":
		s.handleUnsubscribe(conn, cmd)
	default:
		s.handleMethod(conn, cmd)
	}
}

func (s *WebSocketServer) handleMethod(conn *Conn, cmd Command) {
	handler, exists := s.registry.Get(cmd.Command)
	if !exists {
		s.sendError(conn, ErrorMethodNotFound(cmd.Command), cmd.ID)
		return
	}

	ctx := &Context{Context: conn.ctx, ClientIP: conn.clientIP}
	result, rpcErr := handler.Handle(ctx, cmd.Params)
	if rpcErr != nil {
		s.sendError(conn, rpcErr, cmd.ID)
		return
	}
	s.sendResponse(conn, Response{Type: "response", ID: cmd.ID, Status: "success", Result: result})
}

func parseStreams(params json.RawMessage) ([]Stream, *Error) {
	var req struct {
		Streams []string `json:"streams"`
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, ErrorInvalidParams("Invalid subscription parameters: " + err.Error())
		}
	}
	if len(req.Streams) == 0 {
		return nil, ErrorMissingField("streams")
	}
	streams := make([]Stream, 0, len(req.Streams))
	for _, name := range req.Streams {
		stream := Stream(name)
		if !knownStream(stream) {
			return nil, ErrorInvalidParams("Unknown stream: " + name)
		}
		streams = append(streams, stream)
	}
	return streams, nil
}

func (s *WebSocketServer) handleSubscribe(conn *Conn, cmd Command) {
	streams, rpcErr := parseStreams(cmd.Params)
	if rpcErr != nil {
		s.sendError(conn, rpcErr, cmd.ID)
		return
	}
	conn.subscribe(streams)
	s.sendResponse(conn, Response{
		Type:   "response",
		ID:     cmd.ID,
		Status: "success",
		Result: map[string]interface{}{"streams": conn.streamNames()},
	})
}

func (s *WebSocketServer) handleUnsubscribe(conn *Conn, cmd Command) {
	streams, rpcErr := parseStreams(cmd.Params)
	if rpcErr != nil {
		s.sendError(conn, rpcErr, cmd.ID)
		return
	}
	conn.unsubscribe(streams)
	s.sendResponse(conn, Response{
		Type:   "response",
		ID:     cmd.ID,
		Status: "success",
		Result: map[string]interface{}{"streams": conn.streamNames()},
	})
}

func (s *WebSocketServer) sendResponse(conn *Conn, response Response) {
	data, err := json.Marshal(response)
	if err != nil {
		s.logger.Error("failed to marshal websocket response: %v", err)
		return
	}
	s.deliver(conn, data)
}

// sendError writes the error with flat fields at the top level.
func (s *WebSocketServer) sendError(conn *Conn, rpcErr *Error, id interface{}) {
	response := map[string]interface{}{
		"type":          "response",
		"status":        "error",
		"error":         rpcErr.Name,
		"error_code":    rpcErr.Code,
		"error_message": rpcErr.Message,
	}
	if id != nil {
		response["id"] = id
	}
	data, err := json.Marshal(response)
	if err != nil {
		s.logger.Error("failed to marshal websocket error: %v", err)
		return
	}
	s.deliver(conn, data)
}

// deliver queues a direct response; a full queue drops the connection.
func (s *WebSocketServer) deliver(conn *Conn, data []byte) {
	select {
	case conn.send <- data:
	case <-conn.ctx.Done():
	default:
		s.logger.Warn("websocket send queue full, dropping connection %s", conn.ID)
		s.drop(conn)
	}
}

// Broadcast sends one event to every connection subscribed to stream.
// Slow consumers are skipped, never waited on.
func (s *WebSocketServer) Broadcast(stream Stream, event interface{}) {
	data, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("failed to marshal %s event: %v", stream, err)
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, conn := range s.conns {
		if !conn.subscribed(stream) {
			continue
		}
		select {
		case conn.send <- data:
		default:
			s.logger.Warn("skipping slow websocket connection %s", conn.ID)
		}
	}
}

// SubscriberCount reports how many connections follow a stream.
func (s *WebSocketServer) SubscriberCount(stream Stream) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, conn := range s.conns {
		if conn.subscribed(stream) {
			count++
		}
	}
	return count
}

// ConnectionCount reports how many connections are open.
func (s *WebSocketServer) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}

func (s *WebSocketServer) drop(conn *Conn) {
	conn.cancel()

	s.mu.Lock()
	delete(s.conns, conn.ID)
	s.mu.Unlock()

	conn.sock.Close()
	s.logger.Debug("websocket connection %s closed", conn.ID)
}
