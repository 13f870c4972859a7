// Package evmrpc wraps the small, documented set of admin primitives the
// Fullnode needs from its underlying EVM implementation (section 1's
// non-goals: "The EVM implementation ... talks to it only via a standard
// JSON-RPC interface plus a small set of documented admin primitives:
// balance override, account impersonation, snapshot/revert, state-root
// read"). Grounded on rpc/client_arbitrum.go's scheme-sniffing DialTransport
// helper and on the ethclient.Client pattern the whole pack uses to reach
// an EVM node over JSON-RPC.
package evmrpc

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/nativerollup/core/rollup/rpcretry"
)

// waitMinedPollInterval is the spacing between receipt polls in
// WaitMined, the same interval bind.WaitMined uses against a real chain.
const waitMinedPollInterval = 1 * time.Second

// Client is a thin, admin-capable JSON-RPC client to the execution EVM
// backing a Fullnode. It layers anvil/hardhat-style admin calls
// (evm_snapshot, evm_revert, anvil_setBalance, anvil_impersonateAccount)
// on top of the standard ethclient.Client for eth_* reads and writes.
type Client struct {
	rpc *rpc.Client
	eth *ethclient.Client
}

// Dial connects to rawURL, sniffing scheme the way rpc/client_arbitrum.go's
// DialTransport does (http/https/ws/wss/stdio/ipc).
func Dial(ctx context.Context, rawURL string) (*Client, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing evm rpc url: %w", err)
	}
	var rc *rpc.Client
	switch u.Scheme {
	case "http", "https":
		rc, err = rpc.DialHTTPWithClient(rawURL, &http.Client{})
	case "ws", "wss":
		rc, err = rpc.DialWebsocket(ctx, rawURL, "")
	case "stdio":
		rc, err = rpc.DialStdIO(ctx)
	default:
		rc, err = rpc.DialIPC(ctx, rawURL)
	}
	if err != nil {
		return nil, fmt.Errorf("dialing evm rpc: %w", err)
	}
	return &Client{rpc: rc, eth: ethclient.NewClient(rc)}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() { c.rpc.Close() }

// Raw exposes the underlying *rpc.Client for callers (e.g. tracers) that
// need a method this wrapper does not cover.
func (c *Client) Raw() *rpc.Client { return c.rpc }

// Eth exposes the underlying *ethclient.Client for standard eth_* reads.
func (c *Client) Eth() *ethclient.Client { return c.eth }

// StateRoot reads the current state root of the latest block, which the
// Fullnode publishes as its current state hash (section 4.1's
// getStateRoot).
func (c *Client) StateRoot(ctx context.Context) (common.Hash, error) {
	var root common.Hash
	err := rpcretry.Do(ctx, rpcretry.DefaultPolicy, rpcretry.AnyError, "evmrpc.StateRoot", func(ctx context.Context) error {
		header, err := c.eth.HeaderByNumber(ctx, nil)
		if err != nil {
			return fmt.Errorf("reading latest header: %w", err)
		}
		root = header.Root
		return nil
	})
	return root, err
}

// Snapshot takes an EVM-level snapshot (evm_snapshot) and returns its id.
func (c *Client) Snapshot(ctx context.Context) (string, error) {
	var id string
	if err := c.rpc.CallContext(ctx, &id, "evm_snapshot"); err != nil {
		return "", fmt.Errorf("evm_snapshot: %w", err)
	}
	return id, nil
}

// Revert reverts the EVM to a previously taken snapshot (evm_revert).
func (c *Client) Revert(ctx context.Context, id string) (bool, error) {
	var ok bool
	if err := c.rpc.CallContext(ctx, &ok, "evm_revert", id); err != nil {
		return false, fmt.Errorf("evm_revert: %w", err)
	}
	return ok, nil
}

// SetBalance overrides an account's balance (anvil_setBalance /
// hardhat_setBalance), used only at genesis to fund the system account.
func (c *Client) SetBalance(ctx context.Context, addr common.Address, balance *big.Int) error {
	if err := c.rpc.CallContext(ctx, nil, "anvil_setBalance", addr, (*hexutil.Big)(balance)); err != nil {
		return fmt.Errorf("anvil_setBalance: %w", err)
	}
	return nil
}

// ImpersonateAccount enables the EVM to accept transactions "from" addr
// without a signature, used by the Fullnode's system account to deploy
// proxies and drive incoming calls.
func (c *Client) ImpersonateAccount(ctx context.Context, addr common.Address) error {
	if err := c.rpc.CallContext(ctx, nil, "anvil_impersonateAccount", addr); err != nil {
		return fmt.Errorf("anvil_impersonateAccount: %w", err)
	}
	return nil
}

// StopImpersonatingAccount reverses ImpersonateAccount.
func (c *Client) StopImpersonatingAccount(ctx context.Context, addr common.Address) error {
	if err := c.rpc.CallContext(ctx, nil, "anvil_stopImpersonatingAccount", addr); err != nil {
		return fmt.Errorf("anvil_stopImpersonatingAccount: %w", err)
	}
	return nil
}

// SendImpersonatedTransaction submits msg as a transaction "from" an
// impersonated account (it must already be impersonated) and mines it
// immediately (eth_sendTransaction against a node in auto-mine mode, the
// posture this coordinator always runs its execution EVM in).
func (c *Client) SendImpersonatedTransaction(ctx context.Context, msg CallMsg) (common.Hash, error) {
	var hash common.Hash
	if err := c.rpc.CallContext(ctx, &hash, "eth_sendTransaction", msg.toRPC()); err != nil {
		return common.Hash{}, fmt.Errorf("eth_sendTransaction: %w", err)
	}
	return hash, nil
}

// SendRawTransaction submits a pre-signed L2 transaction, as used by
// executeL2Transaction.
func (c *Client) SendRawTransaction(ctx context.Context, tx *types.Transaction) error {
	if err := c.eth.SendTransaction(ctx, tx); err != nil {
		return fmt.Errorf("eth_sendRawTransaction: %w", err)
	}
	return nil
}

// WaitMined blocks until tx's receipt is available.
func (c *Client) WaitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(waitMinedPollInterval)
	defer ticker.Stop()
	for {
		receipt, err := c.eth.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Mine forces a block commit (evm_mine), used after genesis deployment
// and after every persistent L1->L2/L2 execution so a fresh state root is
// available to read.
func (c *Client) Mine(ctx context.Context) error {
	if err := c.rpc.CallContext(ctx, nil, "evm_mine"); err != nil {
		return fmt.Errorf("evm_mine: %w", err)
	}
	return nil
}

// NonceAt reads addr's current transaction count, used to predict the
// CREATE address of the next deployment from an impersonated account.
func (c *Client) NonceAt(ctx context.Context, addr common.Address) (uint64, error) {
	return c.eth.NonceAt(ctx, addr, nil)
}

// CodeAt reads addr's code, used to check whether a proxy has already
// been deployed.
func (c *Client) CodeAt(ctx context.Context, addr common.Address) ([]byte, error) {
	return c.eth.CodeAt(ctx, addr, nil)
}

// BalanceAt reads addr's balance.
func (c *Client) BalanceAt(ctx context.Context, addr common.Address) (*big.Int, error) {
	return c.eth.BalanceAt(ctx, addr, nil)
}

// CallMsg is a minimal call/tx message, enough for proxy deployment and
// proxy invocation from the impersonated system account.
type CallMsg struct {
	From  common.Address
	To    *common.Address
	Value *big.Int
	Gas   uint64
	Data  []byte
}

func (m CallMsg) toRPC() map[string]interface{} {
	out := map[string]interface{}{
		"from": m.From,
		"data": hexutil.Bytes(m.Data),
	}
	if m.To != nil {
		out["to"] = *m.To
	}
	if m.Value != nil {
		out["value"] = (*hexutil.Big)(m.Value)
	}
	if m.Gas != 0 {
		out["gas"] = hexutil.Uint64(m.Gas)
	}
	return out
}
