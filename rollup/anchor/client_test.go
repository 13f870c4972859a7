package anchor

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	roltypes "github.com/nativerollup/core/rollup/types"
)

func TestRollupABIParses(t *testing.T) {
	require.Contains(t, RollupABI.Methods, "registerIncomingCall")
	require.Contains(t, RollupABI.Methods, "l2BlockHash")
	require.Contains(t, RollupABI.Events, "L2BlockProcessed")
	require.Contains(t, RollupABI.Events, "IncomingCallHandled")
}

func TestToResponseTupleNilResultsBecomeEmptySlice(t *testing.T) {
	resp := roltypes.IncomingCallResponse{
		OutgoingCalls: []roltypes.OutgoingCall{
			{From: common.Address{}, Target: common.Address{}, Value: uint256.NewInt(7), Gas: 21000},
		},
	}
	tuple := toResponseTuple(resp)
	require.NotNil(t, tuple.ExpectedResults)
	require.Len(t, tuple.OutgoingCalls, 1)
	require.Equal(t, uint64(21000), tuple.OutgoingCalls[0].Gas.Uint64())
	require.Equal(t, int64(7), tuple.OutgoingCalls[0].Value.Int64())
}
