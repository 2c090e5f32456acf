package rpc

import "time"

// VerdictEvent is the verdicts stream message: one policy evaluation of
// one submitted transaction.
type VerdictEvent struct {
	Type          string `json:"type"` // always "verdict"
	TxHash        string `json:"tx_hash"`
	PolicyID      string `json:"policy_id"`
	Mode          string `json:"mode"`
	Result        string `json:"result"`
	ResultCode    int    `json:"result_code"`
	ResultMessage string `json:"result_message"`
	Accepted      bool   `json:"accepted"`
	MintDelta     int64  `json:"mint_delta"`
	Timestamp     string `json:"timestamp"`
}

// AppliedEvent is the applied stream message: the ledger effects of one
// accepted transaction.
type AppliedEvent struct {
	Type      string    `json:"type"` // always "applied"
	TxHash    string    `json:"tx_hash"`
	Consumed  []RefJSON `json:"consumed"`
	Produced  []RefJSON `json:"produced"`
	Timestamp string    `json:"timestamp"`
}

// PriceEvent is the prices stream message: a fresh oracle publication.
type PriceEvent struct {
	Type      string  `json:"type"` // always "price"
	Ref       RefJSON `json:"ref"`
	Rate      int64   `json:"rate"`
	Timestamp string  `json:"timestamp"`
}

// LiquidationEvent is the liquidations stream message: a position whose
// debt exceeds its issuance cap at the live rate.
type LiquidationEvent struct {
	Type       string  `json:"type"` // always "liquidation"
	Ref        RefJSON `json:"ref"`
	Owner      string  `json:"owner"`
	Debt       int64   `json:"debt"`
	Collateral int64   `json:"collateral"`
	Rate       int64   `json:"rate"`
	MaxMint    int64   `json:"max_mint"`
	Timestamp  string  `json:"timestamp"`
}

func eventTime() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
