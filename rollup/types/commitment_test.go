package types

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestHashCallsEmptyMatchesHashOfEmptyBytes(t *testing.T) {
	require.Equal(t, H(nil), HashCalls(nil))
	require.Equal(t, H(nil), HashResults(nil))
}

func TestHashCallsOrderSensitive(t *testing.T) {
	a := OutgoingCall{From: common.HexToAddress("0x1"), Target: common.HexToAddress("0x2"), Value: uint256.NewInt(1), Gas: 21000, Data: []byte{1}}
	b := OutgoingCall{From: common.HexToAddress("0x3"), Target: common.HexToAddress("0x4"), Value: uint256.NewInt(2), Gas: 21000, Data: []byte{2}}

	h1 := HashCalls([]OutgoingCall{a, b})
	h2 := HashCalls([]OutgoingCall{b, a})
	require.NotEqual(t, h1, h2, "position in the outgoing call list is significant")

	h1again := HashCalls([]OutgoingCall{a, b})
	require.Equal(t, h1, h1again, "hashing must be deterministic")
}

func TestResponseKeyDistinctPreStates(t *testing.T) {
	l2 := common.HexToAddress("0xabc")
	callData := []byte("value()")

	k1 := ResponseKey(l2, common.HexToHash("0x1"), callData)
	k2 := ResponseKey(l2, common.HexToHash("0x2"), callData)
	require.NotEqual(t, k1, k2, "same call data at different pre-states must key distinctly")

	k1Again := ResponseKey(l2, common.HexToHash("0x1"), callData)
	require.Equal(t, k1, k1Again)
}

func TestL2BlockProofMessageDeterministic(t *testing.T) {
	prev := common.HexToHash("0x1")
	final := common.HexToHash("0x2")
	msg1 := L2BlockProofMessage(prev, []byte("tx"), final, nil, nil, final)
	msg2 := L2BlockProofMessage(prev, []byte("tx"), final, nil, nil, final)
	require.Equal(t, msg1, msg2)

	other := L2BlockProofMessage(prev, []byte("tx2"), final, nil, nil, final)
	require.NotEqual(t, msg1, other)
}

func TestSignDigestRoundTrips(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	digest := common.HexToHash("0xdeadbeef")

	sig, err := SignDigest(digest, key)
	require.NoError(t, err)

	recovered, err := RecoverSigner(digest, sig)
	require.NoError(t, err)
	require.Equal(t, crypto.PubkeyToAddress(key.PublicKey), recovered)
}

func TestDeriveL1SenderProxyL2Deterministic(t *testing.T) {
	a := common.HexToAddress("0x1111111111111111111111111111111111111111")
	p1 := DeriveL1SenderProxyL2(a)
	p2 := DeriveL1SenderProxyL2(a)
	require.Equal(t, p1, p2)

	b := common.HexToAddress("0x2222222222222222222222222222222222222222")
	require.NotEqual(t, p1, DeriveL1SenderProxyL2(b))
}

func TestVerifyChainContinuity(t *testing.T) {
	genesis := common.HexToHash("0x0")
	h1 := common.HexToHash("0x1")
	h2 := common.HexToHash("0x2")

	ok := []Event{
		{PrevHash: genesis, NewHash: h1},
		{PrevHash: h1, NewHash: h2},
	}
	require.NoError(t, VerifyChainContinuity(ok, genesis))

	broken := []Event{
		{PrevHash: genesis, NewHash: h1},
		{PrevHash: h2, NewHash: common.HexToHash("0x3")}, // should have been h1
	}
	err := VerifyChainContinuity(broken, genesis)
	require.Error(t, err)
	var de *DivergenceError
	require.ErrorAs(t, err, &de)
	require.Equal(t, uint64(1), de.EventIndex)
}
