package rpc

import (
	"encoding/hex"
	"encoding/json"

	"github.com/halvalla/stabled/internal/core/ledger"
	"github.com/halvalla/stabled/internal/storage/history"
)

// PositionsMethod handles the positions RPC method: every live vault
// position, optionally filtered by owner, with collateral ratios when
// a price is live.
type PositionsMethod struct {
	svc *Services
}

func (m *PositionsMethod) Handle(ctx *Context, params json.RawMessage) (interface{}, *Error) {
	if m.svc == nil || m.svc.Index == nil {
		return nil, ErrorInternal("Index not available")
	}

	var req struct {
		Owner string `json:"owner"`
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, ErrorInvalidParams("Invalid positions parameters: " + err.Error())
		}
	}

	positions := m.svc.Index.Positions()
	if req.Owner != "" {
		owner, err := ledger.EntityIDFromHex(req.Owner)
		if err != nil {
			return nil, ErrorInvalidField("owner")
		}
		positions = m.svc.Index.PositionsByOwner(owner)
	}

	price, havePrice := m.svc.Index.Price()
	out := make([]PositionJSON, 0, len(positions))
	for _, pos := range positions {
		out = append(out, encodePosition(pos, price.Rate, havePrice))
	}
	return map[string]interface{}{
		"count":     len(out),
		"positions": out,
	}, nil
}

// PositionMethod handles the position RPC method: one vault position by
// output reference.
type PositionMethod struct {
	svc *Services
}

func (m *PositionMethod) Handle(ctx *Context, params json.RawMessage) (interface{}, *Error) {
	if m.svc == nil || m.svc.Index == nil {
		return nil, ErrorInternal("Index not available")
	}

	var req struct {
		TxHash string  `json:"tx_hash"`
		Index  *uint32 `json:"index"`
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, ErrorInvalidParams("Invalid position parameters: " + err.Error())
		}
	}
	if req.TxHash == "" {
		return nil, ErrorMissingField("tx_hash")
	}
	if req.Index == nil {
		return nil, ErrorMissingField("index")
	}

	ref, err := RefJSON{TxHash: req.TxHash, Index: *req.Index}.decode()
	if err != nil {
		return nil, ErrorInvalidField("tx_hash")
	}

	pos, ok := m.svc.Index.Get(ref)
	if !ok {
		return nil, ErrorNotFound("Position not found.")
	}

	price, havePrice := m.svc.Index.Price()
	return map[string]interface{}{
		"position": encodePosition(pos, price.Rate, havePrice),
	}, nil
}

// PriceMethod handles the price RPC method: the live oracle price.
type PriceMethod struct {
	svc *Services
}

func (m *PriceMethod) Handle(ctx *Context, params json.RawMessage) (interface{}, *Error) {
	if m.svc == nil || m.svc.Index == nil {
		return nil, ErrorInternal("Index not available")
	}

	price, ok := m.svc.Index.Price()
	if !ok {
		return nil, ErrorUnavailable("No oracle price is live.")
	}
	return map[string]interface{}{
		"price": PriceJSON{Ref: encodeRef(price.Ref), Rate: price.Rate},
	}, nil
}

// HistoryMethod handles the history RPC method: persisted evaluation
// records, newest first, or every record for one transaction.
type HistoryMethod struct {
	svc *Services
}

func (m *HistoryMethod) Handle(ctx *Context, params json.RawMessage) (interface{}, *Error) {
	if m.svc == nil || m.svc.History == nil {
		return nil, ErrorUnavailable("History is not enabled on this node.")
	}

	var req struct {
		TxHash string `json:"tx_hash"`
		Limit  int    `json:"limit"`
		Offset int    `json:"offset"`
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, ErrorInvalidParams("Invalid history parameters: " + err.Error())
		}
	}

	var (
		records []history.Record
		err     error
	)
	if req.TxHash != "" {
		if raw, decodeErr := hex.DecodeString(req.TxHash); decodeErr != nil || len(raw) != 32 {
			return nil, ErrorInvalidField("tx_hash")
		}
		records, err = m.svc.History.EvaluationsByTx(ctx.Context, req.TxHash)
	} else {
		records, err = m.svc.History.ListEvaluations(ctx.Context, req.Limit, req.Offset)
	}
	if err != nil {
		return nil, ErrorInternal("History query failed: " + err.Error())
	}

	out := make([]RecordJSON, 0, len(records))
	for _, rec := range records {
		out = append(out, encodeRecord(rec))
	}
	return map[string]interface{}{
		"count":       len(out),
		"evaluations": out,
	}, nil
}
