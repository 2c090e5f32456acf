package rpc

import (
	"encoding/json"
	"errors"

	"github.com/halvalla/stabled/internal/core/engine"
	"github.com/halvalla/stabled/internal/core/policy"
)

// SubmitMethod handles the submit RPC method: decode, apply, report.
type SubmitMethod struct {
	svc *Services
}

func (m *SubmitMethod) Handle(ctx *Context, params json.RawMessage) (interface{}, *Error) {
	if m.svc == nil || m.svc.Engine == nil {
		return nil, ErrorInternal("Engine not available")
	}

	var req struct {
		Tx *TxJSON `json:"tx"`
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, ErrorInvalidParams("Invalid submit parameters: " + err.Error())
		}
	}
	if req.Tx == nil {
		return nil, ErrorMissingField("tx")
	}

	tx, err := req.Tx.Decode()
	if err != nil {
		return nil, ErrorInvalidParams(err.Error())
	}

	result, err := m.svc.Engine.Apply(tx)
	if err != nil {
		return nil, engineError(err)
	}

	out := encodeApplyResult(result)
	return map[string]interface{}{
		"tx_hash":  out.TxHash,
		"applied":  out.Applied,
		"accepted": out.Accepted,
		"verdicts": out.Verdicts,
	}, nil
}

// EvaluateMethod handles the evaluate RPC method: run the policy over
// an already-resolved context without touching the store. The context's
// signers are taken as asserted; nothing is verified here.
type EvaluateMethod struct {
	svc *Services
}

func (m *EvaluateMethod) Handle(ctx *Context, params json.RawMessage) (interface{}, *Error) {
	if m.svc == nil || m.svc.Policy == nil {
		return nil, ErrorInternal("Policy not available")
	}

	var req struct {
		Mode    string       `json:"mode"`
		Context *ContextJSON `json:"context"`
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, ErrorInvalidParams("Invalid evaluate parameters: " + err.Error())
		}
	}
	if req.Mode == "" {
		return nil, ErrorMissingField("mode")
	}
	if req.Context == nil {
		return nil, ErrorMissingField("context")
	}

	mode, err := policy.ParseMode(req.Mode)
	if err != nil {
		return nil, ErrorInvalidField("mode")
	}
	evalCtx, err := req.Context.Decode()
	if err != nil {
		return nil, ErrorInvalidParams(err.Error())
	}

	verdict := encodeVerdict(m.svc.Policy.Evaluate(mode, evalCtx))
	return map[string]interface{}{
		"policy_id":      m.svc.Policy.Self().String(),
		"mode":           mode.String(),
		"result":         verdict.Result,
		"result_code":    verdict.ResultCode,
		"result_message": verdict.ResultMessage,
		"accepted":       verdict.Accepted,
	}, nil
}

// MaxMintMethod handles the max_mint RPC method: the issuance cap for a
// collateral amount at a rate, under this deployment's collateral ratio.
type MaxMintMethod struct {
	svc *Services
}

func (m *MaxMintMethod) Handle(ctx *Context, params json.RawMessage) (interface{}, *Error) {
	if m.svc == nil || m.svc.Policy == nil {
		return nil, ErrorInternal("Policy not available")
	}

	var req struct {
		Collateral *int64 `json:"collateral"`
		Rate       *int64 `json:"rate"`
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, ErrorInvalidParams("Invalid max_mint parameters: " + err.Error())
		}
	}
	if req.Collateral == nil {
		return nil, ErrorMissingField("collateral")
	}
	if req.Rate == nil {
		return nil, ErrorMissingField("rate")
	}
	if *req.Collateral < 0 {
		return nil, ErrorInvalidField("collateral")
	}
	if *req.Rate < 0 {
		return nil, ErrorInvalidField("rate")
	}

	cmp := m.svc.Policy.Params().MinCollateralPercent
	return map[string]interface{}{
		"collateral":             *req.Collateral,
		"rate":                   *req.Rate,
		"min_collateral_percent": cmp,
		"max_mint":               policy.MaxMint(*req.Collateral, *req.Rate, cmp),
	}, nil
}

// engineError maps an engine failure onto the RPC error taxonomy: the
// malformed group, the authorization group, the missing-entry group,
// everything else internal.
func engineError(err error) *Error {
	switch {
	case isAny(err,
		engine.ErrNilTransaction, engine.ErrNoInputs, engine.ErrDuplicateInput,
		engine.ErrInputReferenced, engine.ErrNegativeOutput, engine.ErrMintNative,
		engine.ErrDuplicateRedeemer, engine.ErrMissingRedeemer, engine.ErrUnbalanced):
		return ErrorTxMalformed(err.Error())
	case isAny(err, engine.ErrBadWitness):
		return ErrorTxBadAuth(err.Error())
	case isAny(err, engine.ErrInputNotFound, engine.ErrReferenceNotFound, engine.ErrUnknownPolicy):
		return ErrorTxNoEntry(err.Error())
	default:
		return ErrorInternal(err.Error())
	}
}

func isAny(err error, targets ...error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
