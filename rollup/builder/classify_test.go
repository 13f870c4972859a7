package builder

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestClassifyL2SourceAlwaysL2Transaction(t *testing.T) {
	target := common.HexToAddress("0x01")
	require.Equal(t, PathL2Transaction, Classify(SourceChainL2, Hints{L2TargetAddress: &target}, true))
}

func TestClassifyDirectDeposit(t *testing.T) {
	target := common.HexToAddress("0x01")
	require.Equal(t, PathDirectL1ToL2, Classify(SourceChainL1, Hints{L2TargetAddress: &target}, false))
}

func TestClassifyContractCallFromHint(t *testing.T) {
	hints := Hints{L2Addresses: []common.Address{common.HexToAddress("0x02")}}
	require.Equal(t, PathL1ContractCall, Classify(SourceChainL1, hints, false))
}

func TestClassifyContractCallFromTrace(t *testing.T) {
	require.Equal(t, PathL1ContractCall, Classify(SourceChainL1, Hints{}, true))
}

func TestClassifyPlainBroadcastWhenNothingDetected(t *testing.T) {
	require.Equal(t, PathPlainL1Broadcast, Classify(SourceChainL1, Hints{}, false))
}

func TestPathKindStringUnknown(t *testing.T) {
	require.Equal(t, "Unknown", PathKind(99).String())
}
