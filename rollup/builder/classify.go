package builder

import "github.com/ethereum/go-ethereum/common"

// SourceChain tags which chain originated a submitted transaction
// (section 4.2's submit input).
type SourceChain string

const (
	SourceChainL1 SourceChain = "L1"
	SourceChainL2 SourceChain = "L2"
)

// Hints are the optional classification aids a submitter may supply
// alongside a transaction (section 4.2).
type Hints struct {
	L2TargetAddress *common.Address
	L2Addresses     []common.Address
}

// PathKind is the outcome of classification (section 4.2's four paths).
type PathKind int

const (
	PathL2Transaction PathKind = iota
	PathDirectL1ToL2
	PathL1ContractCall
	PathPlainL1Broadcast
)

func (k PathKind) String() string {
	switch k {
	case PathL2Transaction:
		return "L2Transaction"
	case PathDirectL1ToL2:
		return "DirectL1ToL2"
	case PathL1ContractCall:
		return "L1ContractCall"
	case PathPlainL1Broadcast:
		return "PlainL1Broadcast"
	default:
		return "Unknown"
	}
}

// Classify implements section 4.2's classification rules:
//
//	sourceChain=L2                                  -> L2 transaction path
//	sourceChain=L1 with l2TargetAddress hint         -> direct deposit/call
//	sourceChain=L1 with l2Addresses[] hint or traced
//	  calls into known proxies                       -> contract-call path
//	sourceChain=L1, nothing detected                 -> plain L1 broadcast
//
// hasTracedProxyCalls reports whether an initial trace (taken by the
// caller before hints are known to be sufficient) found calls into
// proxies registered to this rollup; pass false if no such trace was
// taken yet, since the contract-call path's own discovery loop performs
// the authoritative trace regardless.
func Classify(source SourceChain, hints Hints, hasTracedProxyCalls bool) PathKind {
	if source == SourceChainL2 {
		return PathL2Transaction
	}
	if hints.L2TargetAddress != nil {
		return PathDirectL1ToL2
	}
	if len(hints.L2Addresses) > 0 || hasTracedProxyCalls {
		return PathL1ContractCall
	}
	return PathPlainL1Broadcast
}
