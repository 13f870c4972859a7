package anchor

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestWalkProxyCallsDepthFirstNoDedup(t *testing.T) {
	proxy := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	l2Target := common.HexToAddress("0x00000000000000000000000000000000000042")
	caller := common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	other := common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccc")

	root := CallNode{
		Kind: CallKindCall,
		From: caller,
		To:   other,
		Calls: []CallNode{
			{Kind: CallKindCall, From: caller, To: proxy, Input: []byte{0x01}},
			{
				Kind: CallKindCall, From: other, To: other,
				Calls: []CallNode{
					{Kind: CallKindCall, From: other, To: proxy, Input: []byte{0x01}}, // same data, different from
				},
			},
		},
	}

	isProxyOf := func(from, to common.Address) (common.Address, bool) {
		if to == proxy {
			return l2Target, true
		}
		return common.Address{}, false
	}

	calls := WalkProxyCalls(root, isProxyOf)
	require.Len(t, calls, 2, "duplicate (l2Address, callData) occurrences at different call sites must not be deduplicated")
	require.Equal(t, caller, calls[0].From)
	require.Equal(t, other, calls[1].From)
	require.Equal(t, l2Target, calls[0].L2Target)
	require.Equal(t, l2Target, calls[1].L2Target)
}

func TestWalkProxyCallsIgnoresNonProxyTargets(t *testing.T) {
	other := common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccc")
	root := CallNode{Kind: CallKindCall, To: other}
	calls := WalkProxyCalls(root, func(from, to common.Address) (common.Address, bool) { return common.Address{}, false })
	require.Empty(t, calls)
}
