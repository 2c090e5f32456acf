package rpc

import (
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"github.com/halvalla/stabled/internal/core/engine"
	"github.com/halvalla/stabled/internal/core/ledger"
	"github.com/halvalla/stabled/internal/core/policy"
	"github.com/halvalla/stabled/internal/crypto"
	"github.com/halvalla/stabled/internal/index"
	"github.com/halvalla/stabled/internal/storage/history"
)

// JSON wire forms of the ledger types. Hashes, entity ids and datum
// bytes travel as lowercase hex; asset quantities and native amounts
// as plain integers.

type RefJSON struct {
	TxHash string `json:"tx_hash"`
	Index  uint32 `json:"index"`
}

type AssetJSON struct {
	PolicyID string `json:"policy_id"`
	Token    string `json:"token"`
	Quantity int64  `json:"quantity"`
}

type ValueJSON struct {
	Native int64       `json:"native,omitempty"`
	Assets []AssetJSON `json:"assets,omitempty"`
}

type OutputJSON struct {
	Address string    `json:"address"`
	Value   ValueJSON `json:"value"`
	Datum   string    `json:"datum,omitempty"`
}

type InputJSON struct {
	Ref    RefJSON    `json:"ref"`
	Output OutputJSON `json:"output"`
}

// RedeemerJSON names the mode symbolically ("mint", "burn",
// "liquidate") or carries the raw CBOR payload as hex. Mode wins when
// both are set.
type RedeemerJSON struct {
	PolicyID string `json:"policy_id"`
	Mode     string `json:"mode,omitempty"`
	Data     string `json:"data,omitempty"`
}

type WitnessJSON struct {
	Scheme    string `json:"scheme"`
	PubKey    string `json:"pub_key"`
	Signature string `json:"signature"`
}

type TxJSON struct {
	Inputs          []RefJSON      `json:"inputs"`
	ReferenceInputs []RefJSON      `json:"reference_inputs,omitempty"`
	Outputs         []OutputJSON   `json:"outputs"`
	Mint            []AssetJSON    `json:"mint,omitempty"`
	Redeemers       []RedeemerJSON `json:"redeemers,omitempty"`
	Witnesses       []WitnessJSON  `json:"witnesses,omitempty"`
}

// ContextJSON is the already-resolved evaluation context for the pure
// evaluate method: inputs carry their outputs, and signers are asserted
// rather than verified.
type ContextJSON struct {
	Inputs          []InputJSON  `json:"inputs,omitempty"`
	ReferenceInputs []InputJSON  `json:"reference_inputs,omitempty"`
	Outputs         []OutputJSON `json:"outputs,omitempty"`
	Mint            []AssetJSON  `json:"mint,omitempty"`
	Signers         []string     `json:"signers,omitempty"`
}

func (r RefJSON) decode() (ledger.OutputRef, error) {
	raw, err := hex.DecodeString(r.TxHash)
	if err != nil || len(raw) != 32 {
		return ledger.OutputRef{}, fmt.Errorf("tx_hash must be 64 hex characters")
	}
	ref := ledger.OutputRef{Index: r.Index}
	copy(ref.TxHash[:], raw)
	return ref, nil
}

func encodeRef(ref ledger.OutputRef) RefJSON {
	return RefJSON{TxHash: hex.EncodeToString(ref.TxHash[:]), Index: ref.Index}
}

func decodeRefs(refs []RefJSON) ([]ledger.OutputRef, error) {
	out := make([]ledger.OutputRef, 0, len(refs))
	for _, r := range refs {
		ref, err := r.decode()
		if err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, nil
}

func (v ValueJSON) decode() (ledger.Value, error) {
	value := ledger.NewValue()
	if v.Native != 0 {
		value.Add(ledger.NativeAssetID, v.Native)
	}
	for _, a := range v.Assets {
		id, err := assetID(a)
		if err != nil {
			return nil, err
		}
		value.Add(id, a.Quantity)
	}
	return value, nil
}

func assetID(a AssetJSON) (ledger.AssetID, error) {
	pid, err := ledger.PolicyIDFromHex(a.PolicyID)
	if err != nil {
		return ledger.AssetID{}, fmt.Errorf("asset policy_id: %w", err)
	}
	return ledger.AssetID{Policy: pid, Name: ledger.TokenName(a.Token)}, nil
}

func encodeValue(v ledger.Value) ValueJSON {
	out := ValueJSON{Native: v.Native()}
	for id, quantity := range v {
		if id.IsNative() || quantity == 0 {
			continue
		}
		out.Assets = append(out.Assets, AssetJSON{
			PolicyID: id.Policy.String(),
			Token:    string(id.Name),
			Quantity: quantity,
		})
	}
	sort.Slice(out.Assets, func(a, b int) bool {
		if out.Assets[a].PolicyID != out.Assets[b].PolicyID {
			return out.Assets[a].PolicyID < out.Assets[b].PolicyID
		}
		return out.Assets[a].Token < out.Assets[b].Token
	})
	return out
}

func decodeMint(assets []AssetJSON) (ledger.Value, error) {
	value := ledger.NewValue()
	for _, a := range assets {
		id, err := assetID(a)
		if err != nil {
			return nil, err
		}
		value.Add(id, a.Quantity)
	}
	return value, nil
}

func (o OutputJSON) decode() (ledger.Output, error) {
	addr, err := ledger.EntityIDFromHex(o.Address)
	if err != nil {
		return ledger.Output{}, fmt.Errorf("output address: %w", err)
	}
	value, err := o.Value.decode()
	if err != nil {
		return ledger.Output{}, err
	}
	out := ledger.Output{Address: addr, Value: value}
	if o.Datum != "" {
		datum, err := hex.DecodeString(o.Datum)
		if err != nil {
			return ledger.Output{}, fmt.Errorf("output datum is not hex")
		}
		out.Datum = datum
	}
	return out, nil
}

func encodeOutput(out ledger.Output) OutputJSON {
	o := OutputJSON{Address: out.Address.String(), Value: encodeValue(out.Value)}
	if len(out.Datum) > 0 {
		o.Datum = hex.EncodeToString(out.Datum)
	}
	return o
}

func decodeOutputs(outputs []OutputJSON) ([]ledger.Output, error) {
	out := make([]ledger.Output, 0, len(outputs))
	for _, o := range outputs {
		decoded, err := o.decode()
		if err != nil {
			return nil, err
		}
		out = append(out, decoded)
	}
	return out, nil
}

func (in InputJSON) decode() (ledger.Input, error) {
	ref, err := in.Ref.decode()
	if err != nil {
		return ledger.Input{}, err
	}
	out, err := in.Output.decode()
	if err != nil {
		return ledger.Input{}, err
	}
	return ledger.Input{Ref: ref, Output: out}, nil
}

func decodeInputs(inputs []InputJSON) ([]ledger.Input, error) {
	out := make([]ledger.Input, 0, len(inputs))
	for _, in := range inputs {
		decoded, err := in.decode()
		if err != nil {
			return nil, err
		}
		out = append(out, decoded)
	}
	return out, nil
}

func (r RedeemerJSON) decode() (ledger.Redeemer, error) {
	pid, err := ledger.PolicyIDFromHex(r.PolicyID)
	if err != nil {
		return ledger.Redeemer{}, fmt.Errorf("redeemer policy_id: %w", err)
	}
	switch {
	case r.Mode != "":
		mode, err := policy.ParseMode(r.Mode)
		if err != nil {
			return ledger.Redeemer{}, err
		}
		data, err := mode.Bytes()
		if err != nil {
			return ledger.Redeemer{}, err
		}
		return ledger.Redeemer{Policy: pid, Data: data}, nil
	case r.Data != "":
		data, err := hex.DecodeString(r.Data)
		if err != nil {
			return ledger.Redeemer{}, fmt.Errorf("redeemer data is not hex")
		}
		return ledger.Redeemer{Policy: pid, Data: data}, nil
	default:
		return ledger.Redeemer{}, fmt.Errorf("redeemer needs a mode or data")
	}
}

func (w WitnessJSON) decode() (ledger.Witness, error) {
	scheme, err := crypto.ParseScheme(w.Scheme)
	if err != nil {
		return ledger.Witness{}, err
	}
	pub, err := hex.DecodeString(w.PubKey)
	if err != nil {
		return ledger.Witness{}, fmt.Errorf("witness pub_key is not hex")
	}
	sig, err := hex.DecodeString(w.Signature)
	if err != nil {
		return ledger.Witness{}, fmt.Errorf("witness signature is not hex")
	}
	return ledger.Witness{Scheme: scheme, PubKey: pub, Sig: sig}, nil
}

// Decode converts the wire form into a full transaction.
func (t TxJSON) Decode() (*ledger.Tx, error) {
	inputs, err := decodeRefs(t.Inputs)
	if err != nil {
		return nil, err
	}
	refs, err := decodeRefs(t.ReferenceInputs)
	if err != nil {
		return nil, err
	}
	outputs, err := decodeOutputs(t.Outputs)
	if err != nil {
		return nil, err
	}
	mint, err := decodeMint(t.Mint)
	if err != nil {
		return nil, err
	}

	tx := &ledger.Tx{Body: ledger.TxBody{
		Inputs:          inputs,
		ReferenceInputs: refs,
		Outputs:         outputs,
		Mint:            mint,
	}}
	for _, r := range t.Redeemers {
		red, err := r.decode()
		if err != nil {
			return nil, err
		}
		tx.Body.Redeemers = append(tx.Body.Redeemers, red)
	}
	for _, w := range t.Witnesses {
		wit, err := w.decode()
		if err != nil {
			return nil, err
		}
		tx.Witnesses = append(tx.Witnesses, wit)
	}
	return tx, nil
}

// Decode converts the wire form into an evaluation context.
func (c ContextJSON) Decode() (*ledger.Context, error) {
	inputs, err := decodeInputs(c.Inputs)
	if err != nil {
		return nil, err
	}
	refs, err := decodeInputs(c.ReferenceInputs)
	if err != nil {
		return nil, err
	}
	outputs, err := decodeOutputs(c.Outputs)
	if err != nil {
		return nil, err
	}
	mint, err := decodeMint(c.Mint)
	if err != nil {
		return nil, err
	}

	ctx := &ledger.Context{
		Inputs:          inputs,
		ReferenceInputs: refs,
		Outputs:         outputs,
		Mint:            mint,
	}
	for _, s := range c.Signers {
		signer, err := ledger.EntityIDFromHex(s)
		if err != nil {
			return nil, fmt.Errorf("signer: %w", err)
		}
		ctx.Signers = append(ctx.Signers, signer)
	}
	return ctx, nil
}

// Response forms.

type VerdictJSON struct {
	Result        string `json:"result"`
	ResultCode    int    `json:"result_code"`
	ResultMessage string `json:"result_message"`
	Accepted      bool   `json:"accepted"`
}

func encodeVerdict(v policy.Verdict) VerdictJSON {
	message := v.Detail
	if message == "" {
		message = v.Code.Message()
	}
	return VerdictJSON{
		Result:        v.Code.String(),
		ResultCode:    int(v.Code),
		ResultMessage: message,
		Accepted:      v.Accepted(),
	}
}

type PolicyVerdictJSON struct {
	PolicyID string `json:"policy_id"`
	Mode     string `json:"mode"`
	VerdictJSON
}

type ApplyResultJSON struct {
	TxHash   string              `json:"tx_hash"`
	Applied  bool                `json:"applied"`
	Accepted bool                `json:"accepted"`
	Verdicts []PolicyVerdictJSON `json:"verdicts"`
}

func encodeApplyResult(res *engine.ApplyResult) ApplyResultJSON {
	out := ApplyResultJSON{
		TxHash:   hex.EncodeToString(res.TxHash[:]),
		Applied:  res.Applied,
		Accepted: res.Accepted(),
		Verdicts: make([]PolicyVerdictJSON, 0, len(res.Verdicts)),
	}
	for _, pv := range res.Verdicts {
		out.Verdicts = append(out.Verdicts, PolicyVerdictJSON{
			PolicyID:    pv.Policy.String(),
			Mode:        pv.Mode.String(),
			VerdictJSON: encodeVerdict(pv.Verdict),
		})
	}
	return out
}

type PositionJSON struct {
	Ref        RefJSON `json:"ref"`
	Owner      string  `json:"owner"`
	Debt       int64   `json:"debt"`
	Collateral int64   `json:"collateral"`
	PolicyID   string  `json:"policy_id"`
	Ratio      string  `json:"collateral_ratio,omitempty"`
}

func encodePosition(pos index.Position, rate int64, havePrice bool) PositionJSON {
	out := PositionJSON{
		Ref:        encodeRef(pos.Ref),
		Owner:      pos.Owner.String(),
		Debt:       pos.Debt,
		Collateral: pos.Collateral,
		PolicyID:   pos.Policy.String(),
	}
	if havePrice && pos.Debt > 0 {
		out.Ratio = pos.Ratio(rate).StringFixed(2)
	}
	return out
}

type PriceJSON struct {
	Ref  RefJSON `json:"ref"`
	Rate int64   `json:"rate"`
}

type RecordJSON struct {
	ID            string `json:"id"`
	TxHash        string `json:"tx_hash"`
	PolicyID      string `json:"policy_id"`
	Mode          string `json:"mode"`
	Result        string `json:"result"`
	ResultMessage string `json:"result_message,omitempty"`
	MintDelta     int64  `json:"mint_delta"`
	CreatedAt     string `json:"created_at"`
}

func encodeRecord(rec history.Record) RecordJSON {
	return RecordJSON{
		ID:            rec.ID,
		TxHash:        rec.TxHash,
		PolicyID:      rec.PolicyID,
		Mode:          rec.Mode,
		Result:        rec.Code,
		ResultMessage: rec.Detail,
		MintDelta:     rec.MintDelta,
		CreatedAt:     rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}
