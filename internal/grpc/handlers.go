package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/halvalla/stabled/internal/core/engine"
	"github.com/halvalla/stabled/internal/core/ledger"
	"github.com/halvalla/stabled/internal/core/policy"
	"github.com/halvalla/stabled/internal/index"
)

// SubmitRequest represents a request to validate and apply a transaction.
type SubmitRequest struct {
	// Tx is the fully-formed transaction, witnesses included
	Tx *ledger.Tx
}

// SubmitResponse represents the outcome of a submission. A rejected
// transaction is a normal response with Applied false; an error means
// the transaction never reached the policy.
type SubmitResponse struct {
	// TxHash is the canonical hash of the submitted transaction
	TxHash [32]byte

	// Applied indicates whether the store was updated
	Applied bool

	// Accepted indicates whether every evaluated redeemer was accepted
	Accepted bool

	// Verdicts carries the per-redeemer policy verdicts
	Verdicts []engine.PolicyVerdict
}

// SubmitTx validates a transaction and applies it to the store.
func (s *Server) SubmitTx(ctx context.Context, req *SubmitRequest) (*SubmitResponse, error) {
	if s.svc.Engine == nil {
		return nil, status.Error(codes.Internal, "engine not available")
	}
	if req == nil || req.Tx == nil {
		return nil, status.Error(codes.InvalidArgument, "transaction is required")
	}

	result, err := s.svc.Engine.Apply(req.Tx)
	if err != nil {
		return nil, statusFromEngine(err)
	}

	return &SubmitResponse{
		TxHash:   result.TxHash,
		Applied:  result.Applied,
		Accepted: result.Accepted(),
		Verdicts: result.Verdicts,
	}, nil
}

// EvaluateRequest represents a request to run the policy over an
// already-resolved context. Signers are taken as asserted; nothing is
// verified against the store.
type EvaluateRequest struct {
	// Mode selects the policy branch to evaluate
	Mode policy.Mode

	// Context carries the resolved inputs, reference inputs, outputs,
	// mint and signers
	Context *ledger.Context
}

// EvaluateResponse represents the verdict of the node's policy.
type EvaluateResponse struct {
	// Policy is the identifier of the policy that was evaluated
	Policy ledger.PolicyID

	// Mode echoes the evaluated mode
	Mode policy.Mode

	// Verdict is the policy's decision
	Verdict policy.Verdict
}

// EvaluateTx evaluates a context against the policy without touching
// the store.
func (s *Server) EvaluateTx(ctx context.Context, req *EvaluateRequest) (*EvaluateResponse, error) {
	if s.svc.Policy == nil {
		return nil, status.Error(codes.Internal, "policy not available")
	}
	if req == nil || req.Context == nil {
		return nil, status.Error(codes.InvalidArgument, "context is required")
	}
	if !req.Mode.Valid() {
		return nil, status.Error(codes.InvalidArgument, "unknown redeemer mode")
	}

	return &EvaluateResponse{
		Policy:  s.svc.Policy.Self(),
		Mode:    req.Mode,
		Verdict: s.svc.Policy.Evaluate(req.Mode, req.Context),
	}, nil
}

// GetPositionsRequest represents a request to list live positions.
type GetPositionsRequest struct {
	// Owner restricts the listing to one owner when set
	Owner *ledger.EntityID
}

// GetPositionsResponse represents the listed positions and the oracle
// rate they were read under.
type GetPositionsResponse struct {
	// Positions contains the live vault positions
	Positions []index.Position

	// Rate is the live oracle rate, meaningful only when HavePrice is set
	Rate int64

	// HavePrice indicates whether an oracle publication is live
	HavePrice bool
}

// GetPositions lists the live collateral positions.
func (s *Server) GetPositions(ctx context.Context, req *GetPositionsRequest) (*GetPositionsResponse, error) {
	if s.svc.Index == nil {
		return nil, status.Error(codes.Internal, "index not available")
	}

	var positions []index.Position
	if req != nil && req.Owner != nil {
		positions = s.svc.Index.PositionsByOwner(*req.Owner)
	} else {
		positions = s.svc.Index.Positions()
	}

	price, havePrice := s.svc.Index.Price()
	return &GetPositionsResponse{
		Positions: positions,
		Rate:      price.Rate,
		HavePrice: havePrice,
	}, nil
}

// GetPositionRequest represents a request for one position by its
// output reference.
type GetPositionRequest struct {
	// Ref locates the vault output
	Ref ledger.OutputRef
}

// GetPositionResponse represents the located position.
type GetPositionResponse struct {
	Position index.Position
}

// GetPosition fetches one live position.
func (s *Server) GetPosition(ctx context.Context, req *GetPositionRequest) (*GetPositionResponse, error) {
	if s.svc.Index == nil {
		return nil, status.Error(codes.Internal, "index not available")
	}
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "reference is required")
	}

	pos, ok := s.svc.Index.Get(req.Ref)
	if !ok {
		return nil, status.Error(codes.NotFound, "position not found")
	}
	return &GetPositionResponse{Position: pos}, nil
}

// GetPriceRequest represents a request for the live oracle price.
type GetPriceRequest struct{}

// GetPriceResponse represents the live publication.
type GetPriceResponse struct {
	// Ref locates the oracle output carrying the price
	Ref ledger.OutputRef

	// Rate is the published collateral rate
	Rate int64
}

// GetPrice returns the live oracle price.
func (s *Server) GetPrice(ctx context.Context, req *GetPriceRequest) (*GetPriceResponse, error) {
	if s.svc.Index == nil {
		return nil, status.Error(codes.Internal, "index not available")
	}

	price, ok := s.svc.Index.Price()
	if !ok {
		return nil, status.Error(codes.Unavailable, "no oracle price is live")
	}
	return &GetPriceResponse{Ref: price.Ref, Rate: price.Rate}, nil
}

// MaxMintRequest represents a request for the issuance cap of a
// collateral amount at a given rate.
type MaxMintRequest struct {
	// Collateral is the locked native amount in base units
	Collateral int64

	// Rate is the oracle rate to compute under
	Rate int64
}

// MaxMintResponse represents the computed cap.
type MaxMintResponse struct {
	// MaxMint is the largest stablecoin amount the collateral supports
	MaxMint int64

	// MinCollateralPercent is the ratio the node's policy enforces
	MinCollateralPercent int64
}

// ComputeMaxMint returns the issuance cap under the node's configured
// collateral ratio.
func (s *Server) ComputeMaxMint(ctx context.Context, req *MaxMintRequest) (*MaxMintResponse, error) {
	if s.svc.Policy == nil {
		return nil, status.Error(codes.Internal, "policy not available")
	}
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	if req.Collateral < 0 || req.Rate < 0 {
		return nil, status.Error(codes.InvalidArgument, "collateral and rate must be non-negative")
	}

	cmp := s.svc.Policy.Params().MinCollateralPercent
	return &MaxMintResponse{
		MaxMint:              policy.MaxMint(req.Collateral, req.Rate, cmp),
		MinCollateralPercent: cmp,
	}, nil
}

// statusFromEngine maps engine failures onto gRPC codes: malformed
// transactions become InvalidArgument, witness failures Unauthenticated,
// unresolvable references NotFound.
func statusFromEngine(err error) error {
	switch {
	case isAny(err,
		engine.ErrNilTransaction, engine.ErrNoInputs, engine.ErrDuplicateInput,
		engine.ErrInputReferenced, engine.ErrNegativeOutput, engine.ErrMintNative,
		engine.ErrDuplicateRedeemer, engine.ErrMissingRedeemer, engine.ErrUnbalanced):
		return status.Error(codes.InvalidArgument, err.Error())
	case isAny(err, engine.ErrBadWitness):
		return status.Error(codes.Unauthenticated, err.Error())
	case isAny(err, engine.ErrInputNotFound, engine.ErrReferenceNotFound, engine.ErrUnknownPolicy):
		return status.Error(codes.NotFound, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
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
