package builder

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	roltypes "github.com/nativerollup/core/rollup/types"
)

func TestSignL2BlockProofRecoversAdmin(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	admin := crypto.PubkeyToAddress(key.PublicKey)

	prev := common.HexToHash("0x01")
	post := common.HexToHash("0x02")
	final := common.HexToHash("0x03")
	callData := []byte{0xaa, 0xbb}

	sig, err := signL2BlockProof(prev, post, callData, nil, nil, final, key)
	require.NoError(t, err)

	digest := roltypes.L2BlockProofMessage(prev, callData, post, nil, nil, final)
	recovered, err := roltypes.RecoverSigner(digest, sig)
	require.NoError(t, err)
	require.Equal(t, admin, recovered)
}

func TestSignIncomingCallProofRecoversAdmin(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	admin := crypto.PubkeyToAddress(key.PublicKey)

	l2Address := common.HexToAddress("0xcafe")
	pre := common.HexToHash("0x01")
	callData := []byte{0x01, 0x02, 0x03}
	response := roltypes.IncomingCallResponse{
		PreOutgoingCallsStateHash: common.HexToHash("0x04"),
		ReturnValue:               []byte{0xff},
		FinalStateHash:            common.HexToHash("0x05"),
	}

	sig, err := signIncomingCallProof(l2Address, pre, callData, response, key)
	require.NoError(t, err)

	digest := roltypes.IncomingCallProofMessage(
		l2Address, pre, callData,
		response.PreOutgoingCallsStateHash, response.OutgoingCalls, response.ExpectedResults,
		response.ReturnValue, response.FinalStateHash,
	)
	recovered, err := roltypes.RecoverSigner(digest, sig)
	require.NoError(t, err)
	require.Equal(t, admin, recovered)
}
