package grpc

import (
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *ServerConfig)
		wantErr string
	}{
		{
			name:   "default is valid",
			mutate: func(c *ServerConfig) {},
		},
		{
			name:    "empty address",
			mutate:  func(c *ServerConfig) { c.Address = "" },
			wantErr: "address is required",
		},
		{
			name:    "address without port",
			mutate:  func(c *ServerConfig) { c.Address = "localhost" },
			wantErr: "invalid address format",
		},
		{
			name:    "empty host",
			mutate:  func(c *ServerConfig) { c.Address = ":50051" },
			wantErr: "host cannot be empty",
		},
		{
			name:    "empty port",
			mutate:  func(c *ServerConfig) { c.Address = "localhost:" },
			wantErr: "port cannot be empty",
		},
		{
			name:    "zero recv size",
			mutate:  func(c *ServerConfig) { c.MaxRecvMsgSize = 0 },
			wantErr: "max_recv_msg_size must be positive",
		},
		{
			name:    "negative send size",
			mutate:  func(c *ServerConfig) { c.MaxSendMsgSize = -1 },
			wantErr: "max_send_msg_size must be positive",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultServerConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewServerRejectsInvalidConfig(t *testing.T) {
	_, err := NewServer(&ServerConfig{Address: "nowhere"}, Services{})
	require.Error(t, err)
}

func TestNewServerDefaultsConfig(t *testing.T) {
	srv, err := NewServer(nil, Services{})
	require.NoError(t, err)
	assert.False(t, srv.IsRunning())
	assert.Empty(t, srv.Address())
	assert.NotNil(t, srv.GRPCServer())
}

func TestServerLifecycle(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.Address = "127.0.0.1:0"
	srv, err := NewServer(cfg, Services{})
	require.NoError(t, err)

	require.NoError(t, srv.StartAsync())
	assert.True(t, srv.IsRunning())

	addr := srv.Address()
	require.NotEmpty(t, addr)
	assert.True(t, strings.HasPrefix(addr, "127.0.0.1:"))

	// The listener accepts connections.
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	conn.Close()

	// A second start is refused while serving.
	err = srv.StartAsync()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")

	srv.Stop()
	assert.False(t, srv.IsRunning())

	// Stopping again is a no-op.
	srv.Stop()
	assert.False(t, srv.IsRunning())
}

func TestServerStopNow(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.Address = "127.0.0.1:0"
	srv, err := NewServer(cfg, Services{})
	require.NoError(t, err)

	require.NoError(t, srv.StartAsync())
	require.True(t, srv.IsRunning())

	srv.StopNow()
	assert.False(t, srv.IsRunning())
}
