package fullnode

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// GenesisConfig holds the determinism constants of section 4.1: "the
// identity of the system account, its initial balance, its nonce
// sequence, and the bytecodes constitute the determinism constants;
// changing any of them changes the genesis hash." Two independent
// Fullnodes must be configured identically to ever agree.
type GenesisConfig struct {
	// ChainID is the L2 chain id (the operator-visible `chain-id`
	// configuration knob from section 9). RunGenesis only logs it; it is
	// not written into genesis state and not checked against the execution
	// EVM's own chain id.
	ChainID uint64

	// SystemAccount is the fixed address that deploys system contracts
	// and originates all system-initiated L2 transactions. It is the
	// only account the Fullnode ever impersonates.
	SystemAccount common.Address

	// SystemAccountBalance is the balance credited to SystemAccount at
	// genesis, before any contract deployment.
	SystemAccountBalance *big.Int

	// ProxyFactoryBytecode and CallRegistryBytecode are deployed, in this
	// fixed order, by SystemAccount's first two transactions. Changing
	// either bytecode, or their order, changes the genesis hash.
	ProxyFactoryBytecode []byte
	CallRegistryBytecode []byte

	// DeployGas bounds each deployment transaction's gas.
	DeployGas uint64
}

// DefaultDeployGas is used when GenesisConfig.DeployGas is left zero.
const DefaultDeployGas = 6_000_000
