package builder

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/nativerollup/core/rollup/rpcretry"
)

// FullnodeClient is the Builder's JSON-RPC client to the Fullnode's
// nativerollup_*/evm_* namespace (section 6). It is deliberately its own
// wire-level type set rather than a reuse of rollup/fullnode's server-side
// types: Builder and Fullnode are independent processes (section 4's "two
// long-lived processes") that only ever agree on the JSON wire shape, the
// same posture ethclient.Client takes toward the eth package it talks to.
type FullnodeClient struct {
	rpc *rpc.Client
}

// DialFullnode connects to a Fullnode's JSON-RPC endpoint.
func DialFullnode(ctx context.Context, rawURL string) (*FullnodeClient, error) {
	c, err := rpc.DialContext(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("dialing fullnode rpc: %w", err)
	}
	return &FullnodeClient{rpc: c}, nil
}

// Close releases the underlying connection.
func (f *FullnodeClient) Close() { f.rpc.Close() }

// L1ToL2CallParams mirrors fullnode.API's wire shape for
// simulateL1ToL2Call/executeL1ToL2Call.
type L1ToL2CallParams struct {
	L1Caller             common.Address `json:"l1Caller"`
	L2Target             common.Address `json:"l2Target"`
	CallData             hexutil.Bytes  `json:"callData"`
	Value                *hexutil.Big   `json:"value"`
	ExpectedPreStateHash common.Hash    `json:"expectedPreStateHash"`
	Gas                  hexutil.Uint64 `json:"gas"`
}

// CallResult mirrors fullnode.API's CallResultWire.
type CallResult struct {
	Success      bool           `json:"success"`
	ReturnData   hexutil.Bytes  `json:"returnData"`
	TxHash       *common.Hash   `json:"txHash,omitempty"`
	NewStateRoot common.Hash    `json:"newStateRoot"`
	GasUsed      hexutil.Uint64 `json:"gasUsed"`
	Error        string         `json:"error,omitempty"`
}

// GetStateRoot calls nativerollup_getStateRoot. Safe to retry: a pure read
// with no side effects on the Fullnode.
func (f *FullnodeClient) GetStateRoot(ctx context.Context) (common.Hash, error) {
	var h common.Hash
	err := rpcretry.Do(ctx, rpcretry.DefaultPolicy, rpcretry.AnyError, "fullnode.getStateRoot", func(ctx context.Context) error {
		return f.rpc.CallContext(ctx, &h, "nativerollup_getStateRoot")
	})
	return h, err
}

// SimulateL1ToL2Call calls nativerollup_simulateL1ToL2Call.
func (f *FullnodeClient) SimulateL1ToL2Call(ctx context.Context, p L1ToL2CallParams) (CallResult, error) {
	var r CallResult
	err := f.rpc.CallContext(ctx, &r, "nativerollup_simulateL1ToL2Call", p)
	return r, err
}

// ExecuteL1ToL2Call calls nativerollup_executeL1ToL2Call.
func (f *FullnodeClient) ExecuteL1ToL2Call(ctx context.Context, p L1ToL2CallParams) (CallResult, error) {
	var r CallResult
	err := f.rpc.CallContext(ctx, &r, "nativerollup_executeL1ToL2Call", p)
	return r, err
}

// ExecuteL2Transaction calls nativerollup_executeL2Transaction.
func (f *FullnodeClient) ExecuteL2Transaction(ctx context.Context, rawTx []byte) (CallResult, error) {
	var r CallResult
	err := f.rpc.CallContext(ctx, &r, "nativerollup_executeL2Transaction", hexutil.Bytes(rawTx))
	return r, err
}

// GetL1SenderProxyL2 calls nativerollup_getL1SenderProxyL2. Safe to retry:
// a pure read with no side effects on the Fullnode.
func (f *FullnodeClient) GetL1SenderProxyL2(ctx context.Context, l1 common.Address) (common.Address, error) {
	var a common.Address
	err := rpcretry.Do(ctx, rpcretry.DefaultPolicy, rpcretry.AnyError, "fullnode.getL1SenderProxyL2", func(ctx context.Context) error {
		return f.rpc.CallContext(ctx, &a, "nativerollup_getL1SenderProxyL2", l1)
	})
	return a, err
}

// IsL1SenderProxyL2Deployed calls nativerollup_isL1SenderProxyL2Deployed.
// Safe to retry: a pure read with no side effects on the Fullnode.
func (f *FullnodeClient) IsL1SenderProxyL2Deployed(ctx context.Context, l1 common.Address) (bool, error) {
	var ok bool
	err := rpcretry.Do(ctx, rpcretry.DefaultPolicy, rpcretry.AnyError, "fullnode.isL1SenderProxyL2Deployed", func(ctx context.Context) error {
		return f.rpc.CallContext(ctx, &ok, "nativerollup_isL1SenderProxyL2Deployed", l1)
	})
	return ok, err
}

// GetNonce calls nativerollup_getNonce. Safe to retry: a pure read with
// no side effects on the Fullnode.
func (f *FullnodeClient) GetNonce(ctx context.Context, addr common.Address) (uint64, error) {
	var nonce hexutil.Uint64
	err := rpcretry.Do(ctx, rpcretry.DefaultPolicy, rpcretry.AnyError, "fullnode.getNonce", func(ctx context.Context) error {
		return f.rpc.CallContext(ctx, &nonce, "nativerollup_getNonce", addr)
	})
	return uint64(nonce), err
}

// Snapshot calls evm_snapshot.
func (f *FullnodeClient) Snapshot(ctx context.Context) (string, error) {
	var id string
	err := f.rpc.CallContext(ctx, &id, "evm_snapshot")
	return id, err
}

// Revert calls evm_revert.
func (f *FullnodeClient) Revert(ctx context.Context, id string) (bool, error) {
	var ok bool
	err := f.rpc.CallContext(ctx, &ok, "evm_revert", id)
	return ok, err
}

func toHexBig(v *big.Int) *hexutil.Big {
	if v == nil {
		return nil
	}
	return (*hexutil.Big)(v)
}
