package fullnode

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	roltypes "github.com/nativerollup/core/rollup/types"
)

func TestEncodeForwardCallShape(t *testing.T) {
	target := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	data := []byte{0x01, 0x02, 0x03}

	encoded := encodeForwardCall(target, data)
	require.Equal(t, forwardSelector, encoded[:4])
	require.Equal(t, target.Bytes(), encoded[4+12:4+32])

	// length word (third 32-byte word) must equal len(data).
	lengthWord := encoded[4+64 : 4+96]
	require.Equal(t, byte(len(data)), lengthWord[31])

	// payload is right-padded to a 32-byte boundary.
	require.Zero(t, (len(encoded)-4-96)%32)
}

func TestExecuteL1ToL2CallStalePreState(t *testing.T) {
	e := New(nil, GenesisConfig{})
	e.setStateHash(roltypes.StateHash(common.HexToHash("0x01")))

	_, err := e.ExecuteL1ToL2Call(context.Background(), L1ToL2CallRequest{
		ExpectedPreState: common.HexToHash("0x02"),
	})
	require.ErrorIs(t, err, roltypes.ErrStalePreState)
}

func TestRevertUnknownSnapshot(t *testing.T) {
	e := New(nil, GenesisConfig{})
	_, err := e.Revert(context.Background(), "does-not-exist")
	require.ErrorIs(t, err, roltypes.ErrUnknownSnapshot)
}

func TestIsSyncedAfterHaltOnDivergence(t *testing.T) {
	e := New(nil, GenesisConfig{})
	synced, err := e.IsSynced()
	require.True(t, synced)
	require.NoError(t, err)

	e.haltOnDivergence(roltypes.ErrDivergence)
	synced, err = e.IsSynced()
	require.False(t, synced)
	require.ErrorIs(t, err, roltypes.ErrDivergence)
}

func TestGetL1SenderProxyL2Deterministic(t *testing.T) {
	e := New(nil, GenesisConfig{})
	l1 := common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	require.Equal(t, roltypes.DeriveL1SenderProxyL2(l1), e.GetL1SenderProxyL2(l1))
}
