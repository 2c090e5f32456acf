package rpc

import (
	"encoding/hex"

	"github.com/halvalla/stabled/internal/core/engine"
	"github.com/halvalla/stabled/internal/core/ledger"
	"github.com/halvalla/stabled/internal/core/oracle"
	"github.com/halvalla/stabled/internal/monitor"
)

// Publisher bridges the engine and monitor to WebSocket subscribers.
// Evaluations feed the verdicts stream, applied transactions the
// applied stream, oracle outputs among the produced set the prices
// stream, and flagged positions the liquidations stream.
type Publisher struct {
	ws     *WebSocketServer
	oracle ledger.EntityID
}

// NewPublisher builds a publisher over the given WebSocket server.
// oracleEntity marks which produced outputs carry price publications.
func NewPublisher(ws *WebSocketServer, oracleEntity ledger.EntityID) *Publisher {
	return &Publisher{ws: ws, oracle: oracleEntity}
}

// PublishEvaluation broadcasts a verdict event.
func (p *Publisher) PublishEvaluation(ev engine.Evaluation) {
	if p.ws == nil {
		return
	}
	verdict := encodeVerdict(ev.Verdict)
	p.ws.Broadcast(StreamVerdicts, VerdictEvent{
		Type:          "verdict",
		TxHash:        hex.EncodeToString(ev.TxHash[:]),
		PolicyID:      ev.Policy.String(),
		Mode:          ev.Mode.String(),
		Result:        verdict.Result,
		ResultCode:    verdict.ResultCode,
		ResultMessage: verdict.ResultMessage,
		Accepted:      verdict.Accepted,
		MintDelta:     ev.MintDelta,
		Timestamp:     eventTime(),
	})
}

// PublishApplied broadcasts an applied event, plus a price event for
// every produced output that decodes as an oracle publication.
func (p *Publisher) PublishApplied(ap engine.Applied) {
	if p.ws == nil {
		return
	}

	consumed := make([]RefJSON, 0, len(ap.Consumed))
	for _, ref := range ap.Consumed {
		consumed = append(consumed, encodeRef(ref))
	}
	produced := make([]RefJSON, 0, len(ap.Produced))
	for _, in := range ap.Produced {
		produced = append(produced, encodeRef(in.Ref))
	}
	p.ws.Broadcast(StreamApplied, AppliedEvent{
		Type:      "applied",
		TxHash:    hex.EncodeToString(ap.TxHash[:]),
		Consumed:  consumed,
		Produced:  produced,
		Timestamp: eventTime(),
	})

	for _, in := range ap.Produced {
		if in.Output.Address != p.oracle {
			continue
		}
		found := oracle.Found{Ref: in.Ref, Output: in.Output}
		price, ok := found.Price()
		if !ok {
			continue
		}
		p.ws.Broadcast(StreamPrices, PriceEvent{
			Type:      "price",
			Ref:       encodeRef(in.Ref),
			Rate:      price.Rate,
			Timestamp: eventTime(),
		})
	}
}

// PublishLiquidation broadcasts a liquidation event.
func (p *Publisher) PublishLiquidation(c monitor.Candidate) {
	if p.ws == nil {
		return
	}
	p.ws.Broadcast(StreamLiquidations, LiquidationEvent{
		Type:       "liquidation",
		Ref:        encodeRef(c.Position.Ref),
		Owner:      c.Position.Owner.String(),
		Debt:       c.Position.Debt,
		Collateral: c.Position.Collateral,
		Rate:       c.Rate,
		MaxMint:    c.Cap,
		Timestamp:  eventTime(),
	})
}

var (
	_ engine.Events = (*Publisher)(nil)
	_ monitor.Sink  = (*Publisher)(nil)
)
