package fullnode

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"

	"github.com/nativerollup/core/rollup/evmrpc"
	"github.com/nativerollup/core/rollup/types"
)

// deployL1SenderProxySelector is the 4-byte selector of
// deployL1SenderProxy(address) on the L1-sender-proxy factory contract.
// The factory's bytecode is an input (section 1's non-goals: "Genesis
// contract compilation (bytecode is an input)"); the Fullnode only needs
// to know how to call it.
var deployL1SenderProxySelector = crypto.Keccak256([]byte("deployL1SenderProxy(address)"))[:4]

// forwardSelector is the 4-byte selector of forward(address,bytes) on the
// deployed L1->L2 proxy: it re-dispatches data to target so that
// msg.sender at target is the proxy itself (section 4.1, step 3).
var forwardSelector = crypto.Keccak256([]byte("forward(address,bytes)"))[:4]

// encodeForwardCall ABI-encodes a call to forward(address target, bytes data).
func encodeForwardCall(target common.Address, data []byte) []byte {
	out := make([]byte, 0, 4+32+32+32+((len(data)+31)/32)*32)
	out = append(out, forwardSelector...)
	out = append(out, leftPad32(target.Bytes())...)
	var offset [32]byte
	offset[31] = 0x40 // two head words precede the dynamic bytes payload
	out = append(out, offset[:]...)
	var length [32]byte
	binary.BigEndian.PutUint64(length[24:], uint64(len(data)))
	out = append(out, length[:]...)
	out = append(out, data...)
	if pad := (32 - len(data)%32) % 32; pad > 0 {
		out = append(out, make([]byte, pad)...)
	}
	return out
}

// RunGenesis brings the execution EVM up to the coordinator's genesis
// state (section 4.1): fund the system account, have it deploy the proxy
// factory and call registry in a fixed nonce sequence, force a block
// commit, and record the resulting state hash as genesis.
func (e *Engine) RunGenesis(ctx context.Context) error {
	e.opMu.Lock()
	defer e.opMu.Unlock()

	cfg := e.cfg
	if err := e.evm.SetBalance(ctx, cfg.SystemAccount, cfg.SystemAccountBalance); err != nil {
		return fmt.Errorf("funding system account: %w", err)
	}
	if err := e.evm.ImpersonateAccount(ctx, cfg.SystemAccount); err != nil {
		return fmt.Errorf("impersonating system account: %w", err)
	}

	deployGas := cfg.DeployGas
	if deployGas == 0 {
		deployGas = DefaultDeployGas
	}

	nonce, err := e.evm.NonceAt(ctx, cfg.SystemAccount)
	if err != nil {
		return fmt.Errorf("reading system account nonce: %w", err)
	}

	factoryAddr := crypto.CreateAddress(cfg.SystemAccount, nonce)
	if _, err := e.evm.SendImpersonatedTransaction(ctx, evmrpc.CallMsg{
		From: cfg.SystemAccount,
		Data: cfg.ProxyFactoryBytecode,
		Gas:  deployGas,
	}); err != nil {
		return fmt.Errorf("deploying proxy factory: %w", err)
	}

	registryAddr := crypto.CreateAddress(cfg.SystemAccount, nonce+1)
	if _, err := e.evm.SendImpersonatedTransaction(ctx, evmrpc.CallMsg{
		From: cfg.SystemAccount,
		Data: cfg.CallRegistryBytecode,
		Gas:  deployGas,
	}); err != nil {
		return fmt.Errorf("deploying call registry: %w", err)
	}

	if err := e.evm.Mine(ctx); err != nil {
		return fmt.Errorf("committing genesis block: %w", err)
	}

	hash, err := e.evm.StateRoot(ctx)
	if err != nil {
		return fmt.Errorf("reading genesis state hash: %w", err)
	}

	e.factoryAddr = factoryAddr
	e.registryAddr = registryAddr
	e.genesisHash = hash
	e.setStateHash(hash)

	log.Info("fullnode genesis complete",
		"chainId", cfg.ChainID,
		"systemAccount", cfg.SystemAccount,
		"factory", factoryAddr,
		"registry", registryAddr,
		"genesisHash", hash)
	return nil
}

// GenesisHash returns the state hash recorded immediately after
// RunGenesis. It is zero until genesis has run.
func (e *Engine) GenesisHash() types.StateHash {
	return e.genesisHash
}

// ensureProxyDeployed deploys the L1->L2 proxy for l1Caller if it is not
// already present, via the proxy factory's deployL1SenderProxy method.
// The resulting address must equal types.DeriveL1SenderProxyL2(l1Caller);
// a mismatch means the deployed factory disagrees with the derivation
// rule, which is a determinism-constants bug, not a recoverable error.
func (e *Engine) ensureProxyDeployed(ctx context.Context, l1Caller common.Address) (common.Address, error) {
	derived := types.DeriveL1SenderProxyL2(l1Caller)
	code, err := e.evm.CodeAt(ctx, derived)
	if err != nil {
		return common.Address{}, fmt.Errorf("reading proxy code: %w", err)
	}
	if len(code) > 0 {
		return derived, nil
	}

	deployGas := e.cfg.DeployGas
	if deployGas == 0 {
		deployGas = DefaultDeployGas
	}
	calldata := append(append([]byte{}, deployL1SenderProxySelector...), leftPad32(l1Caller.Bytes())...)
	if _, err := e.evm.SendImpersonatedTransaction(ctx, evmrpc.CallMsg{
		From: e.cfg.SystemAccount,
		To:   &e.factoryAddr,
		Data: calldata,
		Gas:  deployGas,
	}); err != nil {
		return common.Address{}, fmt.Errorf("deploying L1 sender proxy: %w", err)
	}

	code, err = e.evm.CodeAt(ctx, derived)
	if err != nil {
		return common.Address{}, fmt.Errorf("verifying proxy deployment: %w", err)
	}
	if len(code) == 0 {
		return common.Address{}, fmt.Errorf("proxy factory did not deploy to derived address %s for l1 caller %s", derived, l1Caller)
	}
	return derived, nil
}

func leftPad32(b []byte) []byte {
	if len(b) >= 32 {
		return b[len(b)-32:]
	}
	out := make([]byte, 32)
	copy(out[32-len(b):], b)
	return out
}
