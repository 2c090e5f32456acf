package grpc

import (
	"errors"
	"net"
	"sync"

	"google.golang.org/grpc"

	"github.com/halvalla/stabled/internal/core/engine"
	"github.com/halvalla/stabled/internal/core/policy"
	"github.com/halvalla/stabled/internal/index"
)

// Services carries the node components the handlers call.
type Services struct {
	Engine *engine.Engine
	Policy *policy.Policy
	Index  *index.Index
}

// Server owns the gRPC transport and answers handler calls.
type Server struct {
	mu sync.RWMutex

	grpcServer *grpc.Server
	svc        Services
	config     *ServerConfig
	listener   net.Listener
	running    bool
}

// NewServer builds a server from the configuration. A nil cfg selects
// the defaults.
func NewServer(cfg *ServerConfig, svc Services) (*Server, error) {
	if cfg == nil {
		cfg = DefaultServerConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := []grpc.ServerOption{
		grpc.MaxRecvMsgSize(cfg.MaxRecvMsgSize),
		grpc.MaxSendMsgSize(cfg.MaxSendMsgSize),
	}

	return &Server{
		grpcServer: grpc.NewServer(opts...),
		svc:        svc,
		config:     cfg,
	}, nil
}

// Start listens and serves. It blocks until Stop or a transport error.
func (s *Server) Start() error {
	listener, err := s.listen()
	if err != nil {
		return err
	}
	return s.grpcServer.Serve(listener)
}

// StartAsync listens and serves in a background goroutine.
func (s *Server) StartAsync() error {
	listener, err := s.listen()
	if err != nil {
		return err
	}
	go func() {
		_ = s.grpcServer.Serve(listener)
	}()
	return nil
}

func (s *Server) listen() (net.Listener, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil, errors.New("server is already running")
	}
	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return nil, err
	}
	s.listener = listener
	s.running = true
	return listener, nil
}

// Stop drains in-flight calls and shuts the transport down.
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.grpcServer.GracefulStop()
	s.running = false
}

// StopNow cuts every connection without waiting.
func (s *Server) StopNow() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.grpcServer.Stop()
	s.running = false
}

// IsRunning reports whether the server is serving.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Address returns the bound listen address, empty before Start.
func (s *Server) Address() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// GRPCServer exposes the underlying transport for service registration.
func (s *Server) GRPCServer() *grpc.Server {
	return s.grpcServer
}
