package fullnode

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/holiman/uint256"

	roltypes "github.com/nativerollup/core/rollup/types"
)

// API implements the nativerollup_* JSON-RPC namespace from section 6.
// Method names are lower-cased by the rpc package's dispatch convention
// (ExecuteL1ToL2Call -> nativerollup_executeL1ToL2Call), the same
// convention the teacher's arbitrum.APIs aggregator relies on.
type API struct {
	engine *Engine
}

// NewAPI wraps engine for JSON-RPC dispatch.
func NewAPI(engine *Engine) *API { return &API{engine: engine} }

// L1ToL2CallParams is the wire shape of simulateL1ToL2Call/executeL1ToL2Call
// params (section 6).
type L1ToL2CallParams struct {
	L1Caller             common.Address `json:"l1Caller"`
	L2Target             common.Address `json:"l2Target"`
	CallData             hexutil.Bytes  `json:"callData"`
	Value                *hexutil.Big   `json:"value"`
	ExpectedPreStateHash common.Hash    `json:"expectedPreStateHash"`
	Gas                  hexutil.Uint64 `json:"gas"`
}

func (p L1ToL2CallParams) toRequest() L1ToL2CallRequest {
	var value *big.Int
	if p.Value != nil {
		value = (*big.Int)(p.Value)
	}
	return L1ToL2CallRequest{
		L1Caller:         p.L1Caller,
		L2Target:         p.L2Target,
		CallData:         p.CallData,
		Value:            value,
		ExpectedPreState: p.ExpectedPreStateHash,
		Gas:              uint64(p.Gas),
	}
}

// CallResultWire is the JSON shape of a CallResult.
type CallResultWire struct {
	Success      bool           `json:"success"`
	ReturnData   hexutil.Bytes  `json:"returnData"`
	TxHash       *common.Hash   `json:"txHash,omitempty"`
	NewStateRoot common.Hash    `json:"newStateRoot"`
	GasUsed      hexutil.Uint64 `json:"gasUsed"`
	Error        string         `json:"error,omitempty"`
}

func toWire(r CallResult) CallResultWire {
	return CallResultWire{
		Success:      r.Success,
		ReturnData:   r.ReturnData,
		NewStateRoot: r.NewStateRoot,
		GasUsed:      hexutil.Uint64(r.GasUsed),
		Error:        r.Error,
	}
}

// GetStateRoot implements nativerollup_getStateRoot.
func (a *API) GetStateRoot(ctx context.Context) (common.Hash, error) {
	return a.engine.GetStateRoot(), nil
}

// SimulateL1ToL2Call implements nativerollup_simulateL1ToL2Call.
func (a *API) SimulateL1ToL2Call(ctx context.Context, params L1ToL2CallParams) (CallResultWire, error) {
	res, err := a.engine.SimulateL1ToL2Call(ctx, params.toRequest())
	if err != nil {
		return CallResultWire{}, err
	}
	return toWire(res), nil
}

// ExecuteL1ToL2Call implements nativerollup_executeL1ToL2Call.
func (a *API) ExecuteL1ToL2Call(ctx context.Context, params L1ToL2CallParams) (CallResultWire, error) {
	res, err := a.engine.ExecuteL1ToL2Call(ctx, params.toRequest())
	if err != nil {
		return CallResultWire{}, err
	}
	return toWire(res), nil
}

// ExecuteL2Transaction implements nativerollup_executeL2Transaction.
func (a *API) ExecuteL2Transaction(ctx context.Context, rawTx hexutil.Bytes) (CallResultWire, error) {
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(rawTx); err != nil {
		return CallResultWire{}, err
	}
	res, err := a.engine.ExecuteL2Transaction(ctx, tx)
	if err != nil {
		return CallResultWire{}, err
	}
	wire := toWire(res)
	hash := tx.Hash()
	wire.TxHash = &hash
	return wire, nil
}

// GetL1SenderProxyL2 implements nativerollup_getL1SenderProxyL2.
func (a *API) GetL1SenderProxyL2(ctx context.Context, l1Address common.Address) (common.Address, error) {
	return a.engine.GetL1SenderProxyL2(l1Address), nil
}

// IsL1SenderProxyL2Deployed implements nativerollup_isL1SenderProxyL2Deployed.
func (a *API) IsL1SenderProxyL2Deployed(ctx context.Context, l1Address common.Address) (bool, error) {
	return a.engine.IsL1SenderProxyL2Deployed(ctx, l1Address)
}

// GetNonce implements nativerollup_getNonce.
func (a *API) GetNonce(ctx context.Context, addr common.Address) (hexutil.Uint64, error) {
	nonce, err := a.engine.GetNonce(ctx, addr)
	return hexutil.Uint64(nonce), err
}

// VerifyStateChainParams wraps the events argument to verifyStateChain.
type VerifyStateChainParams struct {
	Events []EventWire `json:"events"`
}

// EventWire is the JSON wire shape of a roltypes.Event.
type EventWire struct {
	Kind            string             `json:"kind"`
	PrevHash        common.Hash        `json:"prevHash"`
	NewHash         common.Hash        `json:"newHash"`
	RLPEncodedTx    hexutil.Bytes      `json:"rlpEncodedTx,omitempty"`
	L2Address       common.Address     `json:"l2Address,omitempty"`
	L1Caller        common.Address     `json:"l1Caller,omitempty"`
	CallData        hexutil.Bytes      `json:"callData,omitempty"`
	OutgoingCalls   []OutgoingCallWire `json:"outgoingCalls,omitempty"`
	OutgoingResults []hexutil.Bytes    `json:"outgoingResults,omitempty"`
}

// OutgoingCallWire is the JSON wire shape of a roltypes.OutgoingCall.
type OutgoingCallWire struct {
	From              common.Address `json:"from"`
	Target            common.Address `json:"target"`
	Value             *hexutil.Big   `json:"value"`
	Gas               hexutil.Uint64 `json:"gas"`
	Data              hexutil.Bytes  `json:"data"`
	PostCallStateHash common.Hash    `json:"postCallStateHash"`
}

func (e EventWire) toEvent() roltypes.Event {
	kind := roltypes.EventL2BlockProcessed
	if e.Kind == "IncomingCallHandled" {
		kind = roltypes.EventIncomingCallHandled
	}
	var results [][]byte
	for _, r := range e.OutgoingResults {
		results = append(results, r)
	}
	var calls []roltypes.OutgoingCall
	for _, c := range e.OutgoingCalls {
		value := uint256.NewInt(0)
		if c.Value != nil {
			value, _ = uint256.FromBig((*big.Int)(c.Value))
		}
		calls = append(calls, roltypes.OutgoingCall{
			From:              c.From,
			Target:            c.Target,
			Value:             value,
			Gas:               uint64(c.Gas),
			Data:              c.Data,
			PostCallStateHash: c.PostCallStateHash,
		})
	}
	return roltypes.Event{
		Kind:            kind,
		PrevHash:        e.PrevHash,
		NewHash:         e.NewHash,
		RLPEncodedTx:    e.RLPEncodedTx,
		L2Address:       e.L2Address,
		L1Caller:        e.L1Caller,
		CallData:        e.CallData,
		OutgoingCalls:   calls,
		OutgoingResults: results,
	}
}

// EventResultWire is the JSON shape of a per-event VerifyStateChain result.
type EventResultWire struct {
	PreMatch   bool        `json:"preMatch"`
	PostMatch  bool        `json:"postMatch"`
	ActualPre  common.Hash `json:"actualPre"`
	ActualPost common.Hash `json:"actualPost"`
}

// VerifyStateChainResultWire is the JSON shape of VerifyStateChainResult.
type VerifyStateChainResultWire struct {
	Results         []EventResultWire `json:"results"`
	AllMatch        bool              `json:"allMatch"`
	FirstDivergence int               `json:"firstDivergence"`
}

// VerifyStateChain implements nativerollup_verifyStateChain.
func (a *API) VerifyStateChain(ctx context.Context, params VerifyStateChainParams) (VerifyStateChainResultWire, error) {
	var events []roltypes.Event
	for _, e := range params.Events {
		events = append(events, e.toEvent())
	}
	res, err := a.engine.VerifyStateChain(ctx, events)
	if err != nil {
		return VerifyStateChainResultWire{}, err
	}
	wire := VerifyStateChainResultWire{AllMatch: res.AllMatch, FirstDivergence: res.FirstDivergence}
	for _, r := range res.Results {
		wire.Results = append(wire.Results, EventResultWire{
			PreMatch: r.PreMatch, PostMatch: r.PostMatch, ActualPre: r.ActualPre, ActualPost: r.ActualPost,
		})
	}
	return wire, nil
}

// EvmAPI implements the evm_snapshot/evm_revert namespace methods the
// Builder drives directly against the Fullnode (section 6).
type EvmAPI struct {
	engine *Engine
}

// NewEvmAPI wraps engine for the evm_* JSON-RPC namespace.
func NewEvmAPI(engine *Engine) *EvmAPI { return &EvmAPI{engine: engine} }

// Snapshot implements evm_snapshot.
func (a *EvmAPI) Snapshot(ctx context.Context) (string, error) {
	return a.engine.Snapshot(ctx)
}

// Revert implements evm_revert.
func (a *EvmAPI) Revert(ctx context.Context, id string) (bool, error) {
	return a.engine.Revert(ctx, id)
}

// APIs assembles the full []rpc.API surface for an Engine, mirroring the
// teacher's arbitrum.APIs.Slice() aggregation pattern.
func APIs(engine *Engine) []rpc.API {
	return []rpc.API{
		{Namespace: "nativerollup", Service: NewAPI(engine)},
		{Namespace: "evm", Service: NewEvmAPI(engine)},
	}
}

