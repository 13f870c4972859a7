package builder

import (
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/common"

	roltypes "github.com/nativerollup/core/rollup/types"
)

// signL2BlockProof signs the six-word L2-block proof (section 4.2's
// "Proof signing" subsection).
func signL2BlockProof(prevHash, postExecutionStateHash roltypes.StateHash, callData []byte, calls []roltypes.OutgoingCall, results [][]byte, finalStateHash roltypes.StateHash, key *ecdsa.PrivateKey) ([]byte, error) {
	digest := roltypes.L2BlockProofMessage(prevHash, callData, postExecutionStateHash, calls, results, finalStateHash)
	return roltypes.SignDigest(digest, key)
}

// signIncomingCallProof signs the eight-word incoming-call proof.
func signIncomingCallProof(l2Address common.Address, preStateHash roltypes.StateHash, callData []byte, response roltypes.IncomingCallResponse, key *ecdsa.PrivateKey) ([]byte, error) {
	digest := roltypes.IncomingCallProofMessage(
		l2Address, preStateHash, callData,
		response.PreOutgoingCallsStateHash, response.OutgoingCalls, response.ExpectedResults,
		response.ReturnValue, response.FinalStateHash,
	)
	return roltypes.SignDigest(digest, key)
}
