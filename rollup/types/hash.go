// Package types holds the on-wire commitment protocol shared between the
// Fullnode and the Builder: state hashes, outgoing calls, incoming-call
// responses, anchor-chain events, proxy address derivations, and the
// byte-exact hashing/signing rules of section 4.3 of the coordinator spec.
package types

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// StateHash is the opaque 32-byte commitment to the full L2 state at a
// block boundary, as produced by the EVM implementation at block
// finalization. It is never computed by this package; it is only hashed
// over, compared, and threaded through the commitment protocol.
type StateHash = common.Hash

// Genesis is the well-known previous-hash value of the first event in an
// anchor chain's event log.
var Genesis StateHash

// H is the canonical hash function of the commitment protocol: keccak256.
func H(data ...[]byte) common.Hash {
	return crypto.Keccak256Hash(data...)
}

// HBytes is H but returns the raw digest instead of a common.Hash, for
// call sites that are themselves assembling a larger packed/ABI buffer.
func HBytes(data ...[]byte) []byte {
	return crypto.Keccak256(data...)
}

// leftPad32 left-pads b to 32 bytes, matching standard (non-packed) ABI
// word encoding of a value narrower than a word (e.g. an address).
func leftPad32(b []byte) []byte {
	if len(b) >= 32 {
		return b[len(b)-32:]
	}
	out := make([]byte, 32)
	copy(out[32-len(b):], b)
	return out
}
