package builder

import (
	"encoding/hex"
	"errors"
	"net/http"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	roltypes "github.com/nativerollup/core/rollup/types"
)

func TestTrimHexPrefix(t *testing.T) {
	require.Equal(t, "abcd", trimHexPrefix("0xabcd"))
	require.Equal(t, "abcd", trimHexPrefix("abcd"))
	require.Equal(t, "ABCD", trimHexPrefix("0XABCD"))
}

func TestSubmitWireRequestDecodeRejectsBadSourceChain(t *testing.T) {
	tx := types.NewTransaction(0, common.Address{}, nil, 0, nil, nil)
	raw, err := tx.MarshalBinary()
	require.NoError(t, err)

	wire := submitWireRequest{
		SignedTx:    "0x" + hex.EncodeToString(raw),
		SourceChain: "L3",
	}
	_, err = wire.decode()
	require.Error(t, err)
}

func TestSubmitWireRequestDecodeRejectsBadHex(t *testing.T) {
	wire := submitWireRequest{SignedTx: "not-hex", SourceChain: "L1"}
	_, err := wire.decode()
	require.Error(t, err)
}

func TestSubmitWireRequestDecodeAccepts(t *testing.T) {
	tx := types.NewTransaction(0, common.Address{}, nil, 0, nil, nil)
	raw, err := tx.MarshalBinary()
	require.NoError(t, err)

	wire := submitWireRequest{SignedTx: "0x" + hex.EncodeToString(raw), SourceChain: "L2"}
	req, err := wire.decode()
	require.NoError(t, err)
	require.Equal(t, SourceChainL2, req.SourceChain)
}

func TestStatusForErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{roltypes.ErrConfig, http.StatusBadRequest},
		{roltypes.ErrStalePreState, http.StatusConflict},
		{roltypes.ErrDependencyUnavailable, http.StatusServiceUnavailable},
		{roltypes.ErrBroadcastTimeout, http.StatusGatewayTimeout},
		{roltypes.ErrPreBroadcastCheckFailed, http.StatusUnprocessableEntity},
		{errors.New("unmapped"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		require.Equal(t, c.want, statusForError(c.err))
	}
}
