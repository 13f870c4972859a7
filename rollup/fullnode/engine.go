// Package fullnode implements the coordinator's Fullnode: the service
// that owns canonical L2 state, exposes simulation/execution/snapshot
// primitives to the Builder, and replays the anchor event log
// deterministically (sections 4.1 and 5 of the coordinator spec).
package fullnode

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"

	"github.com/nativerollup/core/rollup/evmrpc"
	roltypes "github.com/nativerollup/core/rollup/types"
)

// Engine is the Fullnode's execution core. Section 4.1's concurrency
// model ("serializes all state-mutating RPCs behind a single logical
// queue") is implemented here as opMu: every simulate/execute/snapshot/
// revert call holds it for its full duration, so they are mutually
// exclusive with each other by construction. Read-only operations
// (GetStateRoot, proxy queries) do not take opMu.
type Engine struct {
	evm *evmrpc.Client
	cfg GenesisConfig

	opMu sync.Mutex

	stateMu     sync.RWMutex
	stateHash   roltypes.StateHash
	genesisHash roltypes.StateHash

	factoryAddr  common.Address
	registryAddr common.Address

	// snapshots maps a caller-facing snapshot id to the underlying EVM
	// snapshot id. IDs are uuid.UUID strings: opaque, unguessable, and
	// never reused, matching section 5's "snapshot identifiers are
	// private to the holder and must never be exposed across requests."
	snapMu    sync.Mutex
	snapshots map[string]string

	syncedMu sync.RWMutex
	synced   bool
	haltErr  error
}

// New constructs an Engine bound to an already-dialed execution EVM
// client. Call RunGenesis (fresh chain) or SyncStateHash (resume boot)
// before serving any requests.
func New(evm *evmrpc.Client, cfg GenesisConfig) *Engine {
	return &Engine{
		evm:       evm,
		cfg:       cfg,
		snapshots: make(map[string]string),
		synced:    true,
	}
}

func (e *Engine) setStateHash(h roltypes.StateHash) {
	e.stateMu.Lock()
	e.stateHash = h
	e.stateMu.Unlock()
}

// SyncStateHash reads the execution EVM's current state root and adopts it
// as the Fullnode's own state hash, without mutating any EVM state. Call
// this on a resume boot (anchor hash is not genesis, so RunGenesis is
// skipped) so GetStateRoot reflects what the underlying EVM actually has
// rather than the zero value an unstarted Engine starts with, which is
// bitwise identical to roltypes.Genesis and would otherwise make the
// replayer start over from the first event on every restart.
func (e *Engine) SyncStateHash(ctx context.Context) error {
	e.opMu.Lock()
	defer e.opMu.Unlock()

	hash, err := e.evm.StateRoot(ctx)
	if err != nil {
		return fmt.Errorf("reading current execution evm state hash: %w", err)
	}
	e.setStateHash(hash)
	return nil
}

// GetStateRoot returns the Fullnode's current state hash (section 4.1).
func (e *Engine) GetStateRoot() roltypes.StateHash {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	return e.stateHash
}

// GetL1SenderProxyL2 returns the derived L2 proxy address for l1Address.
// Pure function; never errors.
func (e *Engine) GetL1SenderProxyL2(l1Address common.Address) common.Address {
	return roltypes.DeriveL1SenderProxyL2(l1Address)
}

// IsL1SenderProxyL2Deployed reports whether l1Address's proxy has code on
// L2 yet.
func (e *Engine) IsL1SenderProxyL2Deployed(ctx context.Context, l1Address common.Address) (bool, error) {
	code, err := e.evm.CodeAt(ctx, roltypes.DeriveL1SenderProxyL2(l1Address))
	if err != nil {
		return false, fmt.Errorf("reading proxy code: %w", err)
	}
	return len(code) > 0, nil
}

// GetNonce reads addr's current L2 transaction count, used by the
// Builder to reject a stale-nonce L2 submission before any anchor-chain
// or Fullnode work begins (section 7's NonceMismatch).
func (e *Engine) GetNonce(ctx context.Context, addr common.Address) (uint64, error) {
	return e.evm.NonceAt(ctx, addr)
}

// IsSynced reports true until the replayer halts on divergence, then false
// together with the error that halted it.
func (e *Engine) IsSynced() (bool, error) {
	e.syncedMu.RLock()
	defer e.syncedMu.RUnlock()
	return e.synced, e.haltErr
}

func (e *Engine) haltOnDivergence(err error) {
	e.syncedMu.Lock()
	e.synced = false
	e.haltErr = err
	e.syncedMu.Unlock()
	log.Error("fullnode halted on divergence", "err", err)
}

// L1ToL2CallRequest is the shared input of simulateL1ToL2Call and
// executeL1ToL2Call (section 4.1).
type L1ToL2CallRequest struct {
	L1Caller         common.Address
	L2Target         common.Address
	CallData         []byte
	Value            *big.Int
	ExpectedPreState roltypes.StateHash
	Gas              uint64
}

// CallResult is the shared output shape of simulate/execute L1->L2 calls
// and executeL2Transaction (section 4.1).
type CallResult struct {
	Success      bool
	ReturnData   []byte
	NewStateRoot roltypes.StateHash
	GasUsed      uint64
	Error        string
}

// SimulateL1ToL2Call runs an L1->L2 call non-committingly: an internal
// snapshot is reverted before return, per section 4.1.
func (e *Engine) SimulateL1ToL2Call(ctx context.Context, req L1ToL2CallRequest) (CallResult, error) {
	e.opMu.Lock()
	defer e.opMu.Unlock()

	snapID, err := e.evm.Snapshot(ctx)
	if err != nil {
		return CallResult{}, fmt.Errorf("taking internal snapshot: %w", err)
	}
	origHash := e.GetStateRoot()
	defer func() {
		if _, revertErr := e.evm.Revert(ctx, snapID); revertErr != nil {
			log.Error("failed to revert internal simulation snapshot", "err", revertErr)
			return
		}
		e.setStateHash(origHash)
	}()

	return e.executeL1ToL2CallLocked(ctx, req)
}

// ExecuteL1ToL2Call runs an L1->L2 call persistently: state advances.
// Caller must hold no outer lock; this method itself serializes via
// opMu.
func (e *Engine) ExecuteL1ToL2Call(ctx context.Context, req L1ToL2CallRequest) (CallResult, error) {
	e.opMu.Lock()
	defer e.opMu.Unlock()
	return e.executeL1ToL2CallLocked(ctx, req)
}

// executeL1ToL2CallLocked implements section 4.1's four-step recipe.
// Caller must hold opMu.
func (e *Engine) executeL1ToL2CallLocked(ctx context.Context, req L1ToL2CallRequest) (CallResult, error) {
	current := e.GetStateRoot()
	if req.ExpectedPreState != current {
		return CallResult{}, fmt.Errorf("%w: expected %s, have %s", roltypes.ErrStalePreState, req.ExpectedPreState, current)
	}

	proxy, err := e.ensureProxyDeployed(ctx, req.L1Caller)
	if err != nil {
		return CallResult{}, fmt.Errorf("ensuring proxy deployed: %w", err)
	}

	msg := evmrpc.CallMsg{
		From:  e.cfg.SystemAccount,
		To:    &proxy,
		Data:  encodeForwardCall(req.L2Target, req.CallData),
		Gas:   req.Gas,
		Value: req.Value,
	}

	txHash, err := e.evm.SendImpersonatedTransaction(ctx, msg)
	if err != nil {
		return CallResult{Success: false, Error: err.Error()}, nil
	}

	if err := e.evm.Mine(ctx); err != nil {
		return CallResult{}, fmt.Errorf("committing block: %w", err)
	}

	receipt, err := e.evm.WaitMined(ctx, txHash)
	if err != nil {
		return CallResult{}, fmt.Errorf("waiting for mined receipt: %w", err)
	}

	newHash, err := e.evm.StateRoot(ctx)
	if err != nil {
		return CallResult{}, fmt.Errorf("reading post-call state hash: %w", err)
	}
	e.setStateHash(newHash)

	return CallResult{
		Success:      receipt.Status == types.ReceiptStatusSuccessful,
		NewStateRoot: newHash,
		GasUsed:      receipt.GasUsed,
	}, nil
}

// ExecuteL2Transaction submits a plain signed L2 transaction and reads the
// resulting state hash. No system-account involvement (section 4.1).
func (e *Engine) ExecuteL2Transaction(ctx context.Context, signedTx *types.Transaction) (CallResult, error) {
	e.opMu.Lock()
	defer e.opMu.Unlock()
	return e.executeL2TransactionLocked(ctx, signedTx)
}

// executeL2TransactionLocked is ExecuteL2Transaction's body, callable by
// other opMu-holding operations (VerifyStateChain) without deadlocking.
func (e *Engine) executeL2TransactionLocked(ctx context.Context, signedTx *types.Transaction) (CallResult, error) {
	if err := e.evm.SendRawTransaction(ctx, signedTx); err != nil {
		return CallResult{}, fmt.Errorf("submitting l2 transaction: %w", err)
	}
	if err := e.evm.Mine(ctx); err != nil {
		return CallResult{}, fmt.Errorf("committing block: %w", err)
	}

	receipt, err := e.evm.WaitMined(ctx, signedTx.Hash())
	if err != nil {
		return CallResult{}, fmt.Errorf("waiting for mined receipt: %w", err)
	}

	newHash, err := e.evm.StateRoot(ctx)
	if err != nil {
		return CallResult{}, fmt.Errorf("reading post-tx state hash: %w", err)
	}
	e.setStateHash(newHash)

	return CallResult{
		Success:      receipt.Status == types.ReceiptStatusSuccessful,
		NewStateRoot: newHash,
		GasUsed:      receipt.GasUsed,
	}, nil
}

// Snapshot demarcates a reversible scope, returning an opaque id.
func (e *Engine) Snapshot(ctx context.Context) (string, error) {
	e.opMu.Lock()
	defer e.opMu.Unlock()

	evmID, err := e.evm.Snapshot(ctx)
	if err != nil {
		return "", fmt.Errorf("evm snapshot: %w", err)
	}
	id := uuid.NewString()
	e.snapMu.Lock()
	e.snapshots[id] = evmID
	e.snapMu.Unlock()
	return id, nil
}

// Revert reverts a snapshot previously returned by Snapshot.
func (e *Engine) Revert(ctx context.Context, id string) (bool, error) {
	e.opMu.Lock()
	defer e.opMu.Unlock()

	e.snapMu.Lock()
	evmID, ok := e.snapshots[id]
	if ok {
		delete(e.snapshots, id)
	}
	e.snapMu.Unlock()
	if !ok {
		return false, roltypes.ErrUnknownSnapshot
	}

	reverted, err := e.evm.Revert(ctx, evmID)
	if err != nil {
		return false, fmt.Errorf("evm revert: %w", err)
	}
	hash, err := e.evm.StateRoot(ctx)
	if err != nil {
		return false, fmt.Errorf("reading post-revert state hash: %w", err)
	}
	e.setStateHash(hash)
	return reverted, nil
}
