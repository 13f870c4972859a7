package builder

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"

	"github.com/nativerollup/core/rollup/anchor"
	roltypes "github.com/nativerollup/core/rollup/types"
)

// AnchorClient is the subset of *anchor.Client the discovery loop needs.
// A narrow interface, not *anchor.Client directly, so discovery_test.go
// can drive the algorithm against an in-memory fake (the teacher's own
// preference for hand-rolled fakes over a mocking framework).
type AnchorClient interface {
	L2BlockHash(ctx context.Context) (roltypes.StateHash, error)
	TraceCall(ctx context.Context, tx *types.Transaction, from common.Address) (anchor.CallNode, error)
	GetProxyAddress(l2Address common.Address) (common.Address, error)
	IncomingCallRegistered(ctx context.Context, key common.Hash) (bool, error)
	IncomingCallResponse(ctx context.Context, key common.Hash) (roltypes.IncomingCallResponse, error)
	RegisterIncomingCall(ctx context.Context, l2Address common.Address, preStateHash roltypes.StateHash, callData []byte, response roltypes.IncomingCallResponse, proof []byte) (*types.Transaction, error)
	WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
}

// Fullnode is the subset of *FullnodeClient the discovery loop needs.
type Fullnode interface {
	Snapshot(ctx context.Context) (string, error)
	Revert(ctx context.Context, id string) (bool, error)
	ExecuteL1ToL2Call(ctx context.Context, p L1ToL2CallParams) (CallResult, error)
}

// Registration is one committed incoming-call response, in discovery
// order.
type Registration struct {
	L2Address    common.Address
	PreStateHash roltypes.StateHash
	CallData     []byte
	Response     roltypes.IncomingCallResponse
}

// DiscoveryResult is the outcome of Discover.
type DiscoveryResult struct {
	FinalStateHash roltypes.StateHash
	Registered     []Registration
	Iterations     int
}

// Discover implements section 4.2's iterative fixed-point discovery
// algorithm for the L1-contract-call path. candidateL2Addresses seeds the
// proxy-resolution set the trace walker checks calls against: the ABI
// this coordinator consumes (section 6) has no "enumerate every deployed
// proxy" view, so the set is fixed for the whole call: proxies of L2
// addresses not in candidateL2Addresses are never recognized. The Engine
// passes the submit hints plus the L2 addresses earlier requests named or
// registered (see DESIGN.md's Open Question resolution on proxy-candidate
// scoping).
func Discover(ctx context.Context, ac AnchorClient, fn Fullnode, tx *types.Transaction, from common.Address, candidateL2Addresses []common.Address, adminKey *ecdsa.PrivateKey, cfg Config) (DiscoveryResult, error) {
	stateHash, err := ac.L2BlockHash(ctx)
	if err != nil {
		return DiscoveryResult{}, fmt.Errorf("%w: reading anchor l2BlockHash: %v", roltypes.ErrDependencyUnavailable, err)
	}

	snapID, err := fn.Snapshot(ctx)
	if err != nil {
		return DiscoveryResult{}, fmt.Errorf("%w: taking fullnode snapshot: %v", roltypes.ErrDependencyUnavailable, err)
	}
	defer func() {
		if _, err := fn.Revert(ctx, snapID); err != nil {
			log.Error("failed to revert fullnode discovery snapshot", "err", err)
		}
	}()

	proxyToL2 := make(map[common.Address]common.Address, len(candidateL2Addresses))
	for _, l2 := range candidateL2Addresses {
		proxy, err := ac.GetProxyAddress(l2)
		if err != nil {
			return DiscoveryResult{}, fmt.Errorf("resolving proxy address for %s: %w", l2, err)
		}
		proxyToL2[proxy] = l2
	}
	isProxyOf := func(_, to common.Address) (common.Address, bool) {
		l2, ok := proxyToL2[to]
		return l2, ok
	}

	maxIterations := cfg.MaxDiscoveryIterations
	if maxIterations <= 0 {
		maxIterations = DefaultConfig.MaxDiscoveryIterations
	}

	s := stateHash
	var registered []Registration

	for iter := 0; iter < maxIterations; iter++ {
		trace, err := ac.TraceCall(ctx, tx, from)
		if err != nil {
			return DiscoveryResult{}, fmt.Errorf("tracing discovery iteration %d: %w", iter, err)
		}
		calls := anchor.WalkProxyCalls(trace, isProxyOf)

		registeredThisIteration := false
		for _, call := range calls {
			key := roltypes.ResponseKey(call.L2Target, s, call.Data)

			alreadyRegistered, err := ac.IncomingCallRegistered(ctx, key)
			if err != nil {
				return DiscoveryResult{}, fmt.Errorf("checking registration for key %s: %w", key, err)
			}
			if alreadyRegistered {
				resp, err := ac.IncomingCallResponse(ctx, key)
				if err != nil {
					return DiscoveryResult{}, fmt.Errorf("reading registered response for key %s: %w", key, err)
				}
				s = resp.FinalStateHash
				continue
			}

			result, err := fn.ExecuteL1ToL2Call(ctx, L1ToL2CallParams{
				L1Caller:             call.From,
				L2Target:             call.L2Target,
				CallData:             call.Data,
				Value:                toHexBig(orZero(call.Value)),
				ExpectedPreStateHash: s,
			})
			if err != nil {
				return DiscoveryResult{}, fmt.Errorf("executing discovered l1->l2 call: %w", err)
			}

			response := roltypes.IncomingCallResponse{
				PreOutgoingCallsStateHash: s,
				ReturnValue:               result.ReturnData,
				FinalStateHash:            result.NewStateRoot,
			}
			proof, err := signIncomingCallProof(call.L2Target, s, call.Data, response, adminKey)
			if err != nil {
				return DiscoveryResult{}, fmt.Errorf("signing incoming-call proof: %w", err)
			}

			anchorTx, err := ac.RegisterIncomingCall(ctx, call.L2Target, s, call.Data, response, proof)
			if err != nil {
				return DiscoveryResult{}, fmt.Errorf("%w: %v", roltypes.ErrRegistrationFailed, err)
			}
			receipt, err := ac.WaitMined(ctx, anchorTx)
			if err != nil {
				return DiscoveryResult{}, fmt.Errorf("%w: waiting for registration receipt: %v", roltypes.ErrBroadcastTimeout, err)
			}
			if receipt.Status != types.ReceiptStatusSuccessful {
				return DiscoveryResult{}, fmt.Errorf("%w: registerIncomingCall reverted for key %s", roltypes.ErrRegistrationFailed, key)
			}

			registered = append(registered, Registration{
				L2Address:    call.L2Target,
				PreStateHash: s,
				CallData:     call.Data,
				Response:     response,
			})
			s = result.NewStateRoot
			registeredThisIteration = true
			break // re-trace from the top: the previous trace may have reverted partway.
		}

		if !registeredThisIteration {
			return DiscoveryResult{FinalStateHash: s, Registered: registered, Iterations: iter + 1}, nil
		}
	}

	return DiscoveryResult{}, roltypes.ErrDiscoveryNonTermination
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
