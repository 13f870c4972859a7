package types

import (
	"github.com/ethereum/go-ethereum/common"
)

// L2BlockProofMessage returns the 32-byte digest the admin signs to commit
// an L2 transaction's state transition (section 4.2, "L2-block proof"):
//
//	H( prevHash, H(callData), postExecutionStateHash, H_calls(outgoingCalls),
//	   H_results(expectedResults), finalStateHash )
//
// Each operand is already a 32-byte word, so the six-word digest is a
// straight concatenation: ABI-encoding a tuple of bytes32 values adds no
// padding beyond what each word already has.
func L2BlockProofMessage(prevHash StateHash, callData []byte, postExecutionStateHash StateHash, outgoingCalls []OutgoingCall, expectedResults [][]byte, finalStateHash StateHash) common.Hash {
	callDataHash := H(callData)
	callsHash := HashCalls(outgoingCalls)
	resultsHash := HashResults(expectedResults)

	buf := make([]byte, 0, 6*32)
	buf = append(buf, prevHash.Bytes()...)
	buf = append(buf, callDataHash.Bytes()...)
	buf = append(buf, postExecutionStateHash.Bytes()...)
	buf = append(buf, callsHash.Bytes()...)
	buf = append(buf, resultsHash.Bytes()...)
	buf = append(buf, finalStateHash.Bytes()...)
	return H(buf)
}

// IncomingCallProofMessage returns the 32-byte digest the admin signs to
// register a response to an incoming (L1->L2) call (section 4.2,
// "Incoming-call proof"):
//
//	H( l2Address, preStateHash, H(callData), preOutgoingCallsStateHash,
//	   H_calls(outgoingCalls), H_results(expectedResults), H(returnValue),
//	   finalStateHash )
//
// l2Address is left-padded to a 32-byte word, matching standard (not
// packed) ABI tuple encoding of an address operand.
func IncomingCallProofMessage(l2Address common.Address, preStateHash StateHash, callData []byte, preOutgoingCallsStateHash StateHash, outgoingCalls []OutgoingCall, expectedResults [][]byte, returnValue []byte, finalStateHash StateHash) common.Hash {
	callDataHash := H(callData)
	callsHash := HashCalls(outgoingCalls)
	resultsHash := HashResults(expectedResults)
	returnValueHash := H(returnValue)

	buf := make([]byte, 0, 8*32)
	buf = append(buf, leftPad32(l2Address.Bytes())...)
	buf = append(buf, preStateHash.Bytes()...)
	buf = append(buf, callDataHash.Bytes()...)
	buf = append(buf, preOutgoingCallsStateHash.Bytes()...)
	buf = append(buf, callsHash.Bytes()...)
	buf = append(buf, resultsHash.Bytes()...)
	buf = append(buf, returnValueHash.Bytes()...)
	buf = append(buf, finalStateHash.Bytes()...)
	return H(buf)
}
