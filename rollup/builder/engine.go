package builder

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/sync/errgroup"

	"github.com/nativerollup/core/rollup/anchor"
	roltypes "github.com/nativerollup/core/rollup/types"
)

// Engine is the Builder's sequencing core (section 4.2). It owns no EVM
// state itself; it coordinates an AnchorClient and a Fullnode client
// through the classification, discovery, and broadcast rules.
type Engine struct {
	anchor   *anchor.Client
	fullnode *FullnodeClient
	cfg      Config
	admin    *ecdsa.PrivateKey

	opMu opLock

	// knownL2Addresses accumulates every L2 address this Engine has ever
	// seen named, by submit hints or by discovery's own registrations.
	// Classification's "traced calls into known proxies" leg (section
	// 4.2) resolves proxies against this set: the anchor ABI has no
	// enumerate-all-proxies view, so a hint-free submission can only be
	// recognized as a contract-call path if its proxy targets were named
	// by some earlier request.
	knownMu          sync.RWMutex
	knownL2Addresses map[common.Address]struct{}
}

// opLock serializes state-mutating Builder operations, mirroring the
// Fullnode's single logical queue (section 5's "all EVM-affecting
// operations pass through one sequenced queue per component").
type opLock struct{ ch chan struct{} }

func newOpLock() opLock {
	l := opLock{ch: make(chan struct{}, 1)}
	l.ch <- struct{}{}
	return l
}

func (l opLock) Lock()   { <-l.ch }
func (l opLock) Unlock() { l.ch <- struct{}{} }

// NewEngine constructs a Builder Engine.
func NewEngine(anchorClient *anchor.Client, fullnodeClient *FullnodeClient, admin *ecdsa.PrivateKey, cfg Config) *Engine {
	return &Engine{
		anchor:           anchorClient,
		fullnode:         fullnodeClient,
		cfg:              cfg,
		admin:            admin,
		opMu:             newOpLock(),
		knownL2Addresses: make(map[common.Address]struct{}),
	}
}

// recordKnownL2Addresses folds addrs into the known-proxy-target set.
func (e *Engine) recordKnownL2Addresses(addrs []common.Address) {
	if len(addrs) == 0 {
		return
	}
	e.knownMu.Lock()
	for _, a := range addrs {
		e.knownL2Addresses[a] = struct{}{}
	}
	e.knownMu.Unlock()
}

func (e *Engine) knownL2AddressSnapshot() []common.Address {
	e.knownMu.RLock()
	defer e.knownMu.RUnlock()
	out := make([]common.Address, 0, len(e.knownL2Addresses))
	for a := range e.knownL2Addresses {
		out = append(out, a)
	}
	return out
}

// detectTracedProxyCalls takes an initial debug_traceCall against tx and
// reports whether it contains any call into a proxy resolving to a known
// L2 address (hinted on this request or learned from an earlier one).
// This is the trace Classify's "or with traced calls into known proxies"
// leg (section 4.2) needs; without it that leg was unreachable in
// production and every hint-free L1 submission fell through to a plain
// broadcast regardless of what it actually called.
func (e *Engine) detectTracedProxyCalls(ctx context.Context, tx *types.Transaction, from common.Address, hints Hints) (bool, error) {
	candidates := append(candidatesFromHints(hints), e.knownL2AddressSnapshot()...)
	if len(candidates) == 0 {
		return false, nil
	}

	proxyToL2 := make(map[common.Address]common.Address, len(candidates))
	for _, l2 := range candidates {
		proxy, err := e.anchor.GetProxyAddress(l2)
		if err != nil {
			return false, fmt.Errorf("resolving proxy address for %s: %w", l2, err)
		}
		proxyToL2[proxy] = l2
	}

	trace, err := e.anchor.TraceCall(ctx, tx, from)
	if err != nil {
		return false, fmt.Errorf("%w: tracing for classification: %v", roltypes.ErrDependencyUnavailable, err)
	}
	calls := anchor.WalkProxyCalls(trace, func(_, to common.Address) (common.Address, bool) {
		l2, ok := proxyToL2[to]
		return l2, ok
	})
	return len(calls) > 0, nil
}

// SubmitRequest is submit/simulate's shared input (section 4.2).
type SubmitRequest struct {
	SignedTx    *types.Transaction
	SourceChain SourceChain
	Hints       Hints
}

// SubmitResult is submit's output.
type SubmitResult struct {
	AnchorTxHash      common.Hash
	Path              PathKind
	FinalStateHash    roltypes.StateHash
	L2CallsDiscovered int
	L2CallsRegistered int
}

// SimulateResult is simulate's output (section 4.2, section 6).
type SimulateResult struct {
	TxWouldSucceed    bool
	TxError           string
	TxReturnData      []byte
	CallDetails       []Registration
	FinalL2StateHash  roltypes.StateHash
	L2CallsDiscovered int
	L2CallsRegistered int
}

// StatusResult is status's output.
type StatusResult struct {
	AnchorBlockNumber uint64
	AnchorStateHash   roltypes.StateHash
	FullnodeStateHash roltypes.StateHash
	IsSynced          bool
	RollupAddress     common.Address
}

// Status implements the /status operation. Read-only: does not take opMu
// (section 4.1/4.2's concurrency model only serializes state-mutating
// work).
func (e *Engine) Status(ctx context.Context) (StatusResult, error) {
	anchorHash, err := e.anchor.L2BlockHash(ctx)
	if err != nil {
		return StatusResult{}, fmt.Errorf("%w: reading anchor state hash: %v", roltypes.ErrDependencyUnavailable, err)
	}
	fullnodeHash, err := e.fullnode.GetStateRoot(ctx)
	if err != nil {
		return StatusResult{}, fmt.Errorf("%w: reading fullnode state hash: %v", roltypes.ErrDependencyUnavailable, err)
	}
	blockNum, err := e.anchor.L2BlockNumber(ctx)
	if err != nil {
		return StatusResult{}, fmt.Errorf("%w: reading anchor block number: %v", roltypes.ErrDependencyUnavailable, err)
	}
	return StatusResult{
		AnchorBlockNumber: blockNum.Uint64(),
		AnchorStateHash:   anchorHash,
		FullnodeStateHash: fullnodeHash,
		IsSynced:          anchorHash == fullnodeHash,
		RollupAddress:     e.anchor.Address(),
	}, nil
}

// senderOf recovers the transaction's sender, used to classify and to
// drive trace calls "from" the right address.
func senderOf(tx *types.Transaction) (common.Address, error) {
	signer := types.LatestSignerForChainID(tx.ChainId())
	return types.Sender(signer, tx)
}

// candidatesFromHints flattens a Hints value into the address set the
// discovery loop's proxy resolver is seeded with.
func candidatesFromHints(h Hints) []common.Address {
	candidates := append([]common.Address(nil), h.L2Addresses...)
	if h.L2TargetAddress != nil {
		candidates = append(candidates, *h.L2TargetAddress)
	}
	return candidates
}

// registeredL2Addresses extracts the distinct L2 addresses a discovery
// pass registered calls against, fed back into the Engine's known-proxy
// set so future hint-free submissions can be traced against them.
func registeredL2Addresses(regs []Registration) []common.Address {
	out := make([]common.Address, len(regs))
	for i, r := range regs {
		out[i] = r.L2Address
	}
	return out
}

// Submit implements the /submit operation (section 4.2).
func (e *Engine) Submit(ctx context.Context, req SubmitRequest) (SubmitResult, error) {
	e.opMu.Lock()
	defer e.opMu.Unlock()

	from, err := senderOf(req.SignedTx)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("recovering sender: %w", err)
	}

	if err := e.checkNonce(ctx, req.SourceChain, from, req.SignedTx.Nonce()); err != nil {
		return SubmitResult{}, err
	}

	hasTraced, err := e.classificationTrace(ctx, req.SignedTx, from, req.SourceChain, req.Hints)
	if err != nil {
		return SubmitResult{}, err
	}
	e.recordKnownL2Addresses(candidatesFromHints(req.Hints))

	path := Classify(req.SourceChain, req.Hints, hasTraced)
	switch path {
	case PathL2Transaction:
		return e.submitL2Transaction(ctx, req.SignedTx)
	case PathDirectL1ToL2, PathL1ContractCall:
		return e.submitL1ContractCall(ctx, req, from, path)
	default:
		return e.submitPlainL1Broadcast(ctx, req.SignedTx, path)
	}
}

// checkNonce rejects a stale-nonce submission before any anchor-chain or
// Fullnode work begins (section 7's NonceMismatch must be "rejected
// before any anchor-chain work"). An L2-sourced transaction's nonce is
// tracked by the Fullnode's execution EVM; every other source broadcasts
// through the anchor chain, so its nonce is tracked there instead.
func (e *Engine) checkNonce(ctx context.Context, source SourceChain, from common.Address, txNonce uint64) error {
	var current uint64
	var err error
	if source == SourceChainL2 {
		current, err = e.fullnode.GetNonce(ctx, from)
	} else {
		current, err = e.anchor.Eth().NonceAt(ctx, from, nil)
	}
	if err != nil {
		return fmt.Errorf("%w: reading current nonce for %s: %v", roltypes.ErrDependencyUnavailable, from, err)
	}
	if txNonce != current {
		return fmt.Errorf("%w: %s has nonce %d, transaction has %d", roltypes.ErrNonceMismatch, from, current, txNonce)
	}
	return nil
}

// classificationTrace runs detectTracedProxyCalls only when it could
// possibly change the outcome: an L2-sourced submission always takes the
// L2 transaction path regardless, and a direct-deposit hint already
// forces the contract-call path, so tracing in either case would be a
// wasted round-trip.
func (e *Engine) classificationTrace(ctx context.Context, tx *types.Transaction, from common.Address, source SourceChain, hints Hints) (bool, error) {
	if source != SourceChainL1 || hints.L2TargetAddress != nil {
		return false, nil
	}
	return e.detectTracedProxyCalls(ctx, tx, from, hints)
}

func (e *Engine) submitL2Transaction(ctx context.Context, tx *types.Transaction) (SubmitResult, error) {
	anchorHash, err := e.anchor.L2BlockHash(ctx)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("%w: reading anchor state hash: %v", roltypes.ErrDependencyUnavailable, err)
	}
	fullnodeHash, err := e.fullnode.GetStateRoot(ctx)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("%w: reading fullnode state hash: %v", roltypes.ErrDependencyUnavailable, err)
	}
	if anchorHash != fullnodeHash {
		return SubmitResult{}, fmt.Errorf("%w: anchor hash %s != fullnode hash %s", roltypes.ErrStalePreState, anchorHash, fullnodeHash)
	}

	rawTx, err := tx.MarshalBinary()
	if err != nil {
		return SubmitResult{}, fmt.Errorf("encoding transaction: %w", err)
	}
	result, err := e.fullnode.ExecuteL2Transaction(ctx, rawTx)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("executing l2 transaction: %w", err)
	}
	if !result.Success {
		return SubmitResult{}, fmt.Errorf("%w: %s", roltypes.ErrBroadcastReverted, result.Error)
	}

	proof, err := signL2BlockProof(anchorHash, result.NewStateRoot, tx.Data(), nil, nil, result.NewStateRoot, e.admin)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("signing l2-block proof: %w", err)
	}

	anchorTx, err := e.anchor.CommitL2Block(ctx, anchorHash, rawTx, result.NewStateRoot, proof)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("%w: %v", roltypes.ErrBroadcastReverted, err)
	}
	receipt, err := e.anchor.WaitMined(ctx, anchorTx)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("%w: %v", roltypes.ErrBroadcastTimeout, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return SubmitResult{}, fmt.Errorf("%w: commitL2Block reverted", roltypes.ErrBroadcastReverted)
	}

	return SubmitResult{AnchorTxHash: anchorTx.Hash(), Path: PathL2Transaction, FinalStateHash: result.NewStateRoot}, nil
}

func (e *Engine) submitL1ContractCall(ctx context.Context, req SubmitRequest, from common.Address, path PathKind) (SubmitResult, error) {
	candidates := append(candidatesFromHints(req.Hints), e.knownL2AddressSnapshot()...)
	discovery, err := Discover(ctx, e.anchor, e.fullnode, req.SignedTx, from, candidates, e.admin, e.cfg)
	if err != nil {
		return SubmitResult{}, err
	}
	e.recordKnownL2Addresses(registeredL2Addresses(discovery.Registered))

	if err := e.preBroadcastChecks(ctx, req.SignedTx, from, discovery); err != nil {
		return SubmitResult{}, err
	}

	if err := e.anchor.Eth().SendTransaction(ctx, req.SignedTx); err != nil {
		return SubmitResult{}, fmt.Errorf("%w: broadcasting user transaction: %v", roltypes.ErrBroadcastReverted, err)
	}

	broadcastCtx, cancel := context.WithTimeout(ctx, e.cfg.BroadcastTimeout)
	defer cancel()
	receipt, err := e.anchor.WaitMined(broadcastCtx, req.SignedTx)
	if err != nil {
		if ctx.Err() != nil {
			return SubmitResult{}, fmt.Errorf("%w: %v", roltypes.ErrCancelledAfterBroadcast, ctx.Err())
		}
		return SubmitResult{}, fmt.Errorf("%w: %v", roltypes.ErrBroadcastTimeout, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		log.Error("broadcast user transaction reverted", "tx", req.SignedTx.Hash())
		return SubmitResult{}, fmt.Errorf("%w: user transaction reverted", roltypes.ErrBroadcastReverted)
	}

	return SubmitResult{
		AnchorTxHash:      req.SignedTx.Hash(),
		Path:              path,
		FinalStateHash:    discovery.FinalStateHash,
		L2CallsDiscovered: len(discovery.Registered),
		L2CallsRegistered: len(discovery.Registered),
	}, nil
}

func (e *Engine) submitPlainL1Broadcast(ctx context.Context, tx *types.Transaction, path PathKind) (SubmitResult, error) {
	if err := e.anchor.Eth().SendTransaction(ctx, tx); err != nil {
		return SubmitResult{}, fmt.Errorf("%w: %v", roltypes.ErrBroadcastReverted, err)
	}
	broadcastCtx, cancel := context.WithTimeout(ctx, e.cfg.BroadcastTimeout)
	defer cancel()
	receipt, err := e.anchor.WaitMined(broadcastCtx, tx)
	if err != nil {
		if ctx.Err() != nil {
			return SubmitResult{}, fmt.Errorf("%w: %v", roltypes.ErrCancelledAfterBroadcast, ctx.Err())
		}
		return SubmitResult{}, fmt.Errorf("%w: %v", roltypes.ErrBroadcastTimeout, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return SubmitResult{}, fmt.Errorf("%w: plain l1 broadcast reverted", roltypes.ErrBroadcastReverted)
	}
	return SubmitResult{AnchorTxHash: tx.Hash(), Path: path}, nil
}

// preBroadcastChecks implements section 4.2's three mandatory checks. The
// per-registration deployment/registration reads are independent of one
// another, so they run concurrently across discovery.Registered.
func (e *Engine) preBroadcastChecks(ctx context.Context, tx *types.Transaction, from common.Address, discovery DiscoveryResult) error {
	group, groupCtx := errgroup.WithContext(ctx)
	for _, reg := range discovery.Registered {
		reg := reg
		group.Go(func() error {
			deployed, err := e.anchor.IsProxyDeployed(reg.L2Address)
			if err != nil {
				return fmt.Errorf("%w: checking proxy deployment for %s: %v", roltypes.ErrPreBroadcastCheckFailed, reg.L2Address, err)
			}
			if !deployed {
				return fmt.Errorf("%w: proxy for %s not deployed", roltypes.ErrPreBroadcastCheckFailed, reg.L2Address)
			}

			key := roltypes.ResponseKey(reg.L2Address, reg.PreStateHash, reg.CallData)
			registered, err := e.anchor.IncomingCallRegistered(groupCtx, key)
			if err != nil {
				return fmt.Errorf("%w: checking registration for key %s: %v", roltypes.ErrPreBroadcastCheckFailed, key, err)
			}
			if !registered {
				return fmt.Errorf("%w: response key %s is not registered", roltypes.ErrPreBroadcastCheckFailed, key)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	trace, err := e.anchor.TraceCall(ctx, tx, from)
	if err != nil {
		return fmt.Errorf("%w: dry-run trace failed: %v", roltypes.ErrPreBroadcastCheckFailed, err)
	}
	if trace.Reverted() {
		return fmt.Errorf("%w: dry-run against fully-registered anchor state still reverts: %s", roltypes.ErrPreBroadcastCheckFailed, trace.Error)
	}
	return nil
}

// Simulate implements /simulate: the full submit dance performed inside
// an anchor-chain snapshot and a Fullnode snapshot, both always reverted,
// so it has no observable side effects (section 4.2).
func (e *Engine) Simulate(ctx context.Context, req SubmitRequest) (SimulateResult, error) {
	e.opMu.Lock()
	defer e.opMu.Unlock()

	from, err := senderOf(req.SignedTx)
	if err != nil {
		return SimulateResult{}, fmt.Errorf("recovering sender: %w", err)
	}

	anchorSnap, err := e.anchor.Snapshot(ctx)
	if err != nil {
		return SimulateResult{}, fmt.Errorf("%w: taking anchor snapshot: %v", roltypes.ErrDependencyUnavailable, err)
	}
	defer func() {
		if _, err := e.anchor.Revert(ctx, anchorSnap); err != nil {
			log.Error("failed to revert anchor simulation snapshot", "err", err)
		}
	}()

	hasTraced, err := e.classificationTrace(ctx, req.SignedTx, from, req.SourceChain, req.Hints)
	if err != nil {
		return SimulateResult{}, err
	}

	path := Classify(req.SourceChain, req.Hints, hasTraced)
	switch path {
	case PathL2Transaction:
		return e.simulateL2Transaction(ctx, req.SignedTx)
	case PathPlainL1Broadcast:
		return SimulateResult{TxWouldSucceed: true}, nil
	}

	candidates := append(candidatesFromHints(req.Hints), e.knownL2AddressSnapshot()...)
	discovery, err := Discover(ctx, e.anchor, e.fullnode, req.SignedTx, from, candidates, e.admin, e.cfg)
	if err != nil {
		return SimulateResult{TxError: err.Error()}, nil
	}

	trace, err := e.anchor.TraceCall(ctx, req.SignedTx, from)
	if err != nil {
		return SimulateResult{}, fmt.Errorf("%w: %v", roltypes.ErrDependencyUnavailable, err)
	}

	return SimulateResult{
		TxWouldSucceed:    !trace.Reverted(),
		TxError:           trace.Error,
		TxReturnData:      trace.Output,
		CallDetails:       discovery.Registered,
		FinalL2StateHash:  discovery.FinalStateHash,
		L2CallsDiscovered: len(discovery.Registered),
		L2CallsRegistered: len(discovery.Registered),
	}, nil
}

// simulateL2Transaction runs an L2 transaction against the Fullnode inside
// its own reversible snapshot, since executeL2Transaction always commits
// (section 4.1 exposes no separate non-committing variant for it).
func (e *Engine) simulateL2Transaction(ctx context.Context, tx *types.Transaction) (SimulateResult, error) {
	snapID, err := e.fullnode.Snapshot(ctx)
	if err != nil {
		return SimulateResult{}, fmt.Errorf("%w: taking fullnode snapshot: %v", roltypes.ErrDependencyUnavailable, err)
	}
	defer func() {
		if _, err := e.fullnode.Revert(ctx, snapID); err != nil {
			log.Error("failed to revert fullnode simulation snapshot", "err", err)
		}
	}()

	rawTx, err := tx.MarshalBinary()
	if err != nil {
		return SimulateResult{}, fmt.Errorf("encoding transaction: %w", err)
	}
	result, err := e.fullnode.ExecuteL2Transaction(ctx, rawTx)
	if err != nil {
		return SimulateResult{}, fmt.Errorf("simulating l2 transaction: %w", err)
	}

	return SimulateResult{
		TxWouldSucceed:   result.Success,
		TxError:          result.Error,
		TxReturnData:     result.ReturnData,
		FinalL2StateHash: result.NewStateRoot,
	}, nil
}
