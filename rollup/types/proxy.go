package types

import "github.com/ethereum/go-ethereum/common"

// l1SenderProxySalt is the domain-separation tag in the L1->L2 proxy
// derivation rule (section 3): last20(H("L1SenderProxyL2.v1" || a)).
const l1SenderProxySalt = "L1SenderProxyL2.v1"

// DeriveL1SenderProxyL2 computes the deterministic L2 address of the
// lazily-deployed proxy that represents l1Address's calls on L2. This is
// a pure function of l1Address and the salt constant; it must match
// whatever the Fullnode deploys to and whatever it returns from
// getL1SenderProxyL2.
func DeriveL1SenderProxyL2(l1Address common.Address) common.Address {
	digest := H([]byte(l1SenderProxySalt), l1Address.Bytes())
	var addr common.Address
	copy(addr[:], digest[len(digest)-20:])
	return addr
}

// L2ToL1ProxyResolver queries the anchor chain for the CREATE2-style L2->L1
// proxy address of an L2 contract. Unlike the L1->L2 direction, this
// derivation is anchor-side and is not reproduced locally: section 3
// specifies it is "queried on the anchor chain", so the core only ever
// consumes it through this interface (implemented by rollup/anchor).
type L2ToL1ProxyResolver interface {
	GetProxyAddress(l2Address common.Address) (common.Address, error)
	IsProxyDeployed(l2Address common.Address) (bool, error)
}
