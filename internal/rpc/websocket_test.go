package rpc

import (
	"encoding/hex"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halvalla/stabled/internal/core/engine"
	"github.com/halvalla/stabled/internal/core/ledger"
	"github.com/halvalla/stabled/internal/core/policy"
	"github.com/halvalla/stabled/internal/index"
	"github.com/halvalla/stabled/internal/logging"
	"github.com/halvalla/stabled/internal/monitor"
)

const wsReadWait = 2 * time.Second

type wsRig struct {
	rig  *rig
	ws   *WebSocketServer
	pub  *Publisher
	conn *websocket.Conn
}

func newWSRig(t *testing.T) *wsRig {
	t.Helper()
	r := newRig(t)

	server := NewServer(r.svc, 0, logging.Nop{})
	ws := NewWebSocketServer(server.Registry(), logging.Nop{})
	srv := httptest.NewServer(ws)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })

	return &wsRig{
		rig:  r,
		ws:   ws,
		pub:  NewPublisher(ws, testOracleID),
		conn: conn,
	}
}

func (w *wsRig) send(t *testing.T, v interface{}) {
	t.Helper()
	require.NoError(t, w.conn.WriteJSON(v))
}

func (w *wsRig) read(t *testing.T) map[string]interface{} {
	t.Helper()
	require.NoError(t, w.conn.SetReadDeadline(time.Now().Add(wsReadWait)))
	var msg map[string]interface{}
	require.NoError(t, w.conn.ReadJSON(&msg))
	return msg
}

// expectSilence asserts that nothing arrives before the deadline.
func (w *wsRig) expectSilence(t *testing.T, wait time.Duration) {
	t.Helper()
	require.NoError(t, w.conn.SetReadDeadline(time.Now().Add(wait)))
	var msg map[string]interface{}
	err := w.conn.ReadJSON(&msg)
	require.Error(t, err, "expected no message, got %v", msg)
}

func (w *wsRig) subscribe(t *testing.T, streams ...string) {
	t.Helper()
	w.send(t, map[string]interface{}{"command": "subscribe", "id": "sub", "streams": streams})
	msg := w.read(t)
	require.Equal(t, "success", msg["status"], "subscribe failed: %v", msg)
}

func TestWebSocketPing(t *testing.T) {
	w := newWSRig(t)

	w.send(t, map[string]interface{}{"command": "ping", "id": float64(1)})
	msg := w.read(t)

	assert.Equal(t, "response", msg["type"])
	assert.Equal(t, float64(1), msg["id"])
	assert.Equal(t, "success", msg["status"])
}

func TestWebSocketMethodCall(t *testing.T) {
	w := newWSRig(t)

	w.send(t, map[string]interface{}{
		"command":    "max_mint",
		"id":         "q1",
		"collateral": 150 * ledger.UnitsPerCoin,
		"rate":       100,
	})
	msg := w.read(t)

	require.Equal(t, "success", msg["status"], "call failed: %v", msg)
	assert.Equal(t, "q1", msg["id"])
	result, ok := msg["result"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(100), result["max_mint"])
}

func TestWebSocketErrorsAreFlat(t *testing.T) {
	w := newWSRig(t)

	tests := []struct {
		name     string
		request  map[string]interface{}
		wantName string
		wantCode float64
	}{
		{"unknown command", map[string]interface{}{"command": "teleport", "id": float64(7)}, "unknownCmd", CodeMethodNotFound},
		{"missing command", map[string]interface{}{"id": float64(8)}, "missingCommand", CodeMissingCommand},
		{"unknown stream", map[string]interface{}{"command": "subscribe", "streams": []string{"weather"}}, "invalidParams", CodeInvalidParams},
		{"missing streams", map[string]interface{}{"command": "subscribe"}, "invalidParams", CodeInvalidParams},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w.send(t, tc.request)
			msg := w.read(t)
			assert.Equal(t, "error", msg["status"])
			assert.Equal(t, tc.wantName, msg["error"])
			assert.Equal(t, tc.wantCode, msg["error_code"])
		})
	}
}

func TestWebSocketSubscribeLifecycle(t *testing.T) {
	w := newWSRig(t)

	w.subscribe(t, "verdicts", "prices")
	assert.Equal(t, 1, w.ws.SubscriberCount(StreamVerdicts))
	assert.Equal(t, 1, w.ws.SubscriberCount(StreamPrices))
	assert.Equal(t, 0, w.ws.SubscriberCount(StreamApplied))

	w.send(t, map[string]interface{}{"command": "unsubscribe", "id": "un", "streams": []string{"verdicts"}})
	msg := w.read(t)
	require.Equal(t, "success", msg["status"])

	assert.Equal(t, 0, w.ws.SubscriberCount(StreamVerdicts))
	assert.Equal(t, 1, w.ws.SubscriberCount(StreamPrices))
	assert.Equal(t, 1, w.ws.ConnectionCount())
}

func TestPublisherVerdictStream(t *testing.T) {
	w := newWSRig(t)
	w.subscribe(t, "verdicts")

	txHash := [32]byte{0xAB}
	w.pub.PublishEvaluation(engine.Evaluation{
		TxHash:    txHash,
		Policy:    testPolicyID,
		Mode:      policy.ModeMint,
		Verdict:   policy.Accept(),
		MintDelta: 100,
	})

	msg := w.read(t)
	assert.Equal(t, "verdict", msg["type"])
	assert.Equal(t, hex.EncodeToString(txHash[:]), msg["tx_hash"])
	assert.Equal(t, testPolicyID.String(), msg["policy_id"])
	assert.Equal(t, "mint", msg["mode"])
	assert.Equal(t, "Accepted", msg["result"])
	assert.Equal(t, true, msg["accepted"])
	assert.Equal(t, float64(100), msg["mint_delta"])
}

func TestPublisherAppliedAndPriceStreams(t *testing.T) {
	w := newWSRig(t)
	w.subscribe(t, "applied", "prices")

	txHash := [32]byte{0xCD}
	priceRef := ledger.OutputRef{TxHash: txHash, Index: 1}
	w.pub.PublishApplied(engine.Applied{
		TxHash:   txHash,
		Consumed: []ledger.OutputRef{{TxHash: [32]byte{0x02}, Index: 0}},
		Produced: []ledger.Input{
			{Ref: ledger.OutputRef{TxHash: txHash, Index: 0}, Output: ledger.Output{Address: testVaultID, Value: ledger.NativeValue(1)}},
			{Ref: priceRef, Output: ledger.Output{Address: testOracleID, Value: ledger.NativeValue(1), Datum: priceBytes(t, 97)}},
		},
	})

	applied := w.read(t)
	assert.Equal(t, "applied", applied["type"])
	assert.Equal(t, hex.EncodeToString(txHash[:]), applied["tx_hash"])
	consumed, ok := applied["consumed"].([]interface{})
	require.True(t, ok)
	assert.Len(t, consumed, 1)
	produced, ok := applied["produced"].([]interface{})
	require.True(t, ok)
	assert.Len(t, produced, 2)

	price := w.read(t)
	assert.Equal(t, "price", price["type"])
	assert.Equal(t, float64(97), price["rate"])
	ref, ok := price["ref"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, hex.EncodeToString(txHash[:]), ref["tx_hash"])
	assert.Equal(t, float64(1), ref["index"])
}

func TestPublisherLiquidationStream(t *testing.T) {
	w := newWSRig(t)
	w.subscribe(t, "liquidations")

	posRef := ledger.OutputRef{TxHash: [32]byte{0xEF}, Index: 0}
	owner := ledger.EntityID{0xA1}
	w.pub.PublishLiquidation(monitor.Candidate{
		Position: index.Position{
			Ref:        posRef,
			Owner:      owner,
			Debt:       100,
			Collateral: 150 * ledger.UnitsPerCoin,
			Policy:     testPolicyID,
		},
		Rate: 99,
		Cap:  99,
	})

	msg := w.read(t)
	assert.Equal(t, "liquidation", msg["type"])
	assert.Equal(t, owner.String(), msg["owner"])
	assert.Equal(t, float64(100), msg["debt"])
	assert.Equal(t, float64(99), msg["rate"])
	assert.Equal(t, float64(99), msg["max_mint"])
}

func TestBroadcastRespectsSubscriptions(t *testing.T) {
	w := newWSRig(t)
	w.subscribe(t, "prices")

	w.pub.PublishEvaluation(engine.Evaluation{
		TxHash:  [32]byte{0x11},
		Policy:  testPolicyID,
		Mode:    policy.ModeMint,
		Verdict: policy.Accept(),
	})
	w.expectSilence(t, 300*time.Millisecond)
}

func TestWebSocketSubmitRoundTrip(t *testing.T) {
	w := newWSRig(t)
	w.subscribe(t, "verdicts")
	w.rig.eng.SetEvents(engine.FanOut(w.rig.idx, w.pub))

	w.send(t, map[string]interface{}{
		"command": "submit",
		"id":      "tx1",
		"tx":      txJSON(w.rig.mintTx(100)),
	})

	// The verdict event and the command response both arrive; order is
	// not fixed between the broadcast path and the response path.
	var response, event map[string]interface{}
	for i := 0; i < 2; i++ {
		msg := w.read(t)
		if msg["type"] == "verdict" {
			event = msg
		} else {
			response = msg
		}
	}

	require.NotNil(t, response, "missing command response")
	require.NotNil(t, event, "missing verdict event")
	assert.Equal(t, "tx1", response["id"])
	assert.Equal(t, "success", response["status"])
	result, ok := response["result"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, result["applied"])
	assert.Equal(t, "Accepted", event["result"])
	assert.Equal(t, result["tx_hash"], event["tx_hash"])
}
