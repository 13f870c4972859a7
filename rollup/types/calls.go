package types

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// OutgoingCall is a structured record of an L2->L1 call emitted during a
// cross-layer transaction. Position within an OutgoingCall slice is
// significant: it is part of the commitment hash (see HashCalls).
type OutgoingCall struct {
	From              common.Address
	Target            common.Address
	Value             *uint256.Int
	Gas               uint64
	Data              []byte
	PostCallStateHash StateHash
}

// packed appends this call's solidity-packed encoding (no padding between
// fields) to dst, per section 4.2's HashCalls definition:
//
//	packed(from, target, value, gas, H(data), postCallStateHash)
//
// value and gas are encoded as full 32-byte big-endian words: the verifier
// contract declares both as uint256, so packing narrows nothing.
func (c OutgoingCall) packed() []byte {
	out := make([]byte, 0, 20+20+32+32+32+32)
	out = append(out, c.From.Bytes()...)
	out = append(out, c.Target.Bytes()...)
	v := c.Value
	if v == nil {
		v = uint256.NewInt(0)
	}
	out = append(out, v.PaddedBytes(32)...)
	var gasWord [32]byte
	binary.BigEndian.PutUint64(gasWord[24:], c.Gas)
	out = append(out, gasWord[:]...)
	dataHash := H(c.Data)
	out = append(out, dataHash.Bytes()...)
	out = append(out, c.PostCallStateHash.Bytes()...)
	return out
}

// HashCalls computes H_calls(cs) from section 4.2: the hash of the
// concatenation of every call's packed encoding, in order. An empty list
// hashes to H(empty_bytes), matching HashResults' treatment of the empty
// case (see the "Open Questions" resolution in DESIGN.md).
func HashCalls(cs []OutgoingCall) common.Hash {
	var buf []byte
	for _, c := range cs {
		buf = append(buf, c.packed()...)
	}
	return H(buf)
}

// HashResults computes H_results(rs) from section 4.2: the hash of the
// concatenation of H(r) for each result r, in order.
func HashResults(rs [][]byte) common.Hash {
	var buf []byte
	for _, r := range rs {
		h := H(r)
		buf = append(buf, h.Bytes()...)
	}
	return H(buf)
}

// IncomingCallResponse is the commitment that lets an L1 proxy satisfy an
// incoming call without on-the-fly execution. It is keyed by ResponseKey
// and, per the response-registry invariant in section 3, is immutable
// once registered.
type IncomingCallResponse struct {
	PreOutgoingCallsStateHash StateHash
	OutgoingCalls             []OutgoingCall
	ExpectedResults           [][]byte
	ReturnValue               []byte
	FinalStateHash            StateHash
}

// ResponseKey computes H(l2Address, preStateHash, H(callData)), the index
// under which an IncomingCallResponse is registered and consumed exactly
// once.
func ResponseKey(l2Address common.Address, preStateHash StateHash, callData []byte) common.Hash {
	callDataHash := H(callData)
	buf := make([]byte, 0, 32+32+32)
	buf = append(buf, leftPad32(l2Address.Bytes())...)
	buf = append(buf, preStateHash.Bytes()...)
	buf = append(buf, callDataHash.Bytes()...)
	return H(buf)
}
