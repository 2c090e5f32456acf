package rpc

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halvalla/stabled/internal/logging"
)

func newTestServer(t *testing.T) (*rig, *httptest.Server) {
	t.Helper()
	r := newRig(t)
	server := NewServer(r.svc, 0, logging.Nop{})
	srv := httptest.NewServer(server)
	t.Cleanup(srv.Close)
	return r, srv
}

// callRPC posts a request body and returns the decoded result object.
func callRPC(t *testing.T, srv *httptest.Server, body string) map[string]interface{} {
	t.Helper()
	resp, err := http.Post(srv.URL, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return decodeResult(t, resp.Body)
}

func decodeResult(t *testing.T, body io.Reader) map[string]interface{} {
	t.Helper()
	var envelope struct {
		Result map[string]interface{} `json:"result"`
	}
	require.NoError(t, json.NewDecoder(body).Decode(&envelope))
	require.NotNil(t, envelope.Result)
	return envelope.Result
}

func TestServerPing(t *testing.T) {
	_, srv := newTestServer(t)

	result := callRPC(t, srv, `{"method":"ping","params":[{}]}`)
	assert.Equal(t, "success", result["status"])
}

func TestServerSubmitEndToEnd(t *testing.T) {
	r, srv := newTestServer(t)

	body, err := json.Marshal(Request{
		Method: "submit",
		Params: []json.RawMessage{marshalParams(t, map[string]interface{}{"tx": txJSON(r.mintTx(100))})},
	})
	require.NoError(t, err)

	result := callRPC(t, srv, string(body))
	assert.Equal(t, "success", result["status"])
	assert.Equal(t, true, result["applied"])
	assert.Equal(t, true, result["accepted"])
	assert.NotEmpty(t, result["tx_hash"])

	verdicts, ok := result["verdicts"].([]interface{})
	require.True(t, ok)
	require.Len(t, verdicts, 1)
	verdict, ok := verdicts[0].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Accepted", verdict["result"])
	assert.Equal(t, "mint", verdict["mode"])
}

func TestServerErrorsInsideResult(t *testing.T) {
	_, srv := newTestServer(t)

	tests := []struct {
		name     string
		body     string
		wantName string
		wantCode float64
	}{
		{"unknown method", `{"method":"teleport"}`, "unknownCmd", CodeMethodNotFound},
		{"missing method", `{"params":[{}]}`, "missingCommand", CodeMissingCommand},
		{"invalid json", `{"method":`, "jsonInvalid", CodeParse},
		{"subscribe over http", `{"method":"subscribe"}`, "notSupported", CodeNotSupported},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := callRPC(t, srv, tc.body)
			assert.Equal(t, "error", result["status"])
			assert.Equal(t, tc.wantName, result["error"])
			assert.Equal(t, tc.wantCode, result["error_code"])
		})
	}
}

func TestServerGetDefaultsToServerInfo(t *testing.T) {
	_, srv := newTestServer(t)

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	result := decodeResult(t, resp.Body)
	assert.Equal(t, "success", result["status"])

	info, ok := result["info"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "test", info["build_version"])
}

func TestServerGetCommand(t *testing.T) {
	_, srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "?command=ping")
	require.NoError(t, err)
	defer resp.Body.Close()

	result := decodeResult(t, resp.Body)
	assert.Equal(t, "success", result["status"])
}

func TestServerCORS(t *testing.T) {
	_, srv := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, srv.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "POST")
}

func TestServerRejectsOtherVerbs(t *testing.T) {
	_, srv := newTestServer(t)

	req, err := http.NewRequest(http.MethodPut, srv.URL, strings.NewReader("{}"))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestMethodRegistry(t *testing.T) {
	registry := NewMethodRegistry()
	registry.Register("ping", &PingMethod{})
	registry.Register("alpha", &PingMethod{})

	_, exists := registry.Get("ping")
	assert.True(t, exists)
	_, exists = registry.Get("absent")
	assert.False(t, exists)

	assert.Equal(t, []string{"alpha", "ping"}, registry.List())
}

func TestServerRegistersFullMethodTable(t *testing.T) {
	r := newRig(t)
	server := NewServer(r.svc, 0, logging.Nop{})

	for _, name := range []string{
		"submit", "evaluate", "max_mint",
		"positions", "position", "price", "history",
		"server_info", "ping", "subscribe", "unsubscribe",
	} {
		_, exists := server.Registry().Get(name)
		assert.True(t, exists, "method %s should be registered", name)
	}
}
