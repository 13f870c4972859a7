package types

import "github.com/ethereum/go-ethereum/common"

// EventKind tags the two anchor-chain event shapes from section 3.
type EventKind uint8

const (
	// EventL2BlockProcessed corresponds to an L2 transaction finalized
	// directly (the L2 transaction path in section 4.2).
	EventL2BlockProcessed EventKind = iota
	// EventIncomingCallHandled corresponds to a cross-layer call from L1
	// satisfied via a registered response (the L1-contract-call path).
	EventIncomingCallHandled
)

func (k EventKind) String() string {
	switch k {
	case EventL2BlockProcessed:
		return "L2BlockProcessed"
	case EventIncomingCallHandled:
		return "IncomingCallHandled"
	default:
		return "Unknown"
	}
}

// AnchorPosition orders events strictly by (anchor_block_number,
// anchor_log_index), per section 3.
type AnchorPosition struct {
	BlockNumber uint64
	LogIndex    uint
}

// Less reports whether p sorts before o.
func (p AnchorPosition) Less(o AnchorPosition) bool {
	if p.BlockNumber != o.BlockNumber {
		return p.BlockNumber < o.BlockNumber
	}
	return p.LogIndex < o.LogIndex
}

// Event is the common shape of both anchor-chain event kinds, sufficient
// for the Fullnode's replayer to re-execute and for verifyStateChain to
// check. Fields not relevant to a given Kind are left zero.
type Event struct {
	Kind     EventKind
	Position AnchorPosition

	// PrevHash/NewHash: the chain-continuity fields from section 3's
	// invariant e_{i+1}.prev == e_i.post.
	PrevHash StateHash
	NewHash  StateHash

	// L2BlockProcessed fields.
	RLPEncodedTx []byte

	// IncomingCallHandled fields.
	L2Address common.Address
	L1Caller  common.Address
	CallData  []byte
	Value     StateHash // unused for this event kind's hashing; kept as raw word for ABI fidelity

	// Shared outgoing-call/result fields, present on both event kinds.
	OutgoingCalls   []OutgoingCall
	OutgoingResults [][]byte
}

// VerifyChainContinuity checks invariant 2 from section 8: for every pair
// of adjacent events, the later's PrevHash equals the earlier's NewHash,
// with genesis as the implicit predecessor of the first event.
func VerifyChainContinuity(events []Event, genesis StateHash) error {
	prev := genesis
	for i, e := range events {
		if e.PrevHash != prev {
			return &DivergenceError{EventIndex: uint64(i), Expected: prev, Actual: e.PrevHash}
		}
		prev = e.NewHash
	}
	return nil
}
