package anchor

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/nativerollup/core/rollup/rpcretry"
	roltypes "github.com/nativerollup/core/rollup/types"
)

// Client wraps the anchor contract via accounts/abi/bind, exposing the
// section 6 call surface. It implements roltypes.L2ToL1ProxyResolver and
// fullnode.EventSource.
type Client struct {
	eth      *ethclient.Client
	contract *bind.BoundContract
	address  common.Address
	chainID  *big.Int
	admin    *ecdsa.PrivateKey
}

// Dial connects to the anchor chain's JSON-RPC endpoint and binds the
// rollup contract at contractAddr. admin signs every state-mutating call
// this client sends (registerIncomingCall, the two commit methods,
// deployProxy); it may be nil for a read-only client.
func Dial(ctx context.Context, rawURL string, contractAddr common.Address, admin *ecdsa.PrivateKey) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("dialing anchor chain: %w", err)
	}
	chainID, err := eth.ChainID(ctx)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("reading anchor chain id: %w", err)
	}
	contract := bind.NewBoundContract(contractAddr, RollupABI, eth, eth, eth)
	return &Client{eth: eth, contract: contract, address: contractAddr, chainID: chainID, admin: admin}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() { c.eth.Close() }

// Eth exposes the underlying ethclient for callers needing raw access
// (log filters, debug_traceCall).
func (c *Client) Eth() *ethclient.Client { return c.eth }

// Address returns the bound contract address.
func (c *Client) Address() common.Address { return c.address }

func (c *Client) transactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	if c.admin == nil {
		return nil, fmt.Errorf("%w: anchor client has no admin key configured", roltypes.ErrConfig)
	}
	opts, err := bind.NewKeyedTransactorWithChainID(c.admin, c.chainID)
	if err != nil {
		return nil, fmt.Errorf("building transactor: %w", err)
	}
	opts.Context = ctx
	return opts, nil
}

// L2BlockHash reads the anchor contract's currently recorded L2 state
// hash (section 4.1's boot-resume read, section 6's l2BlockHash).
func (c *Client) L2BlockHash(ctx context.Context) (roltypes.StateHash, error) {
	var hash roltypes.StateHash
	err := rpcretry.Do(ctx, rpcretry.DefaultPolicy, rpcretry.AnyError, "anchor.l2BlockHash", func(ctx context.Context) error {
		var out []interface{}
		if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "l2BlockHash"); err != nil {
			return fmt.Errorf("l2BlockHash: %w", err)
		}
		hash = out[0].([32]byte)
		return nil
	})
	return hash, err
}

// AnchorStateHash implements fullnode.EventSource.
func (c *Client) AnchorStateHash(ctx context.Context) (roltypes.StateHash, error) {
	return c.L2BlockHash(ctx)
}

// L2BlockNumber reads the anchor contract's recorded L2 block number.
func (c *Client) L2BlockNumber(ctx context.Context) (*big.Int, error) {
	var number *big.Int
	err := rpcretry.Do(ctx, rpcretry.DefaultPolicy, rpcretry.AnyError, "anchor.l2BlockNumber", func(ctx context.Context) error {
		var out []interface{}
		if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "l2BlockNumber"); err != nil {
			return fmt.Errorf("l2BlockNumber: %w", err)
		}
		number = out[0].(*big.Int)
		return nil
	})
	return number, err
}

// GetProxyAddress implements roltypes.L2ToL1ProxyResolver: queries the
// anchor chain for l2Address's CREATE2-style L2->L1 proxy (section 3:
// "queried on the anchor chain", not locally derived).
func (c *Client) GetProxyAddress(l2Address common.Address) (common.Address, error) {
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{}, &out, "getProxyAddress", l2Address); err != nil {
		return common.Address{}, fmt.Errorf("getProxyAddress: %w", err)
	}
	return out[0].(common.Address), nil
}

// IsProxyDeployed implements roltypes.L2ToL1ProxyResolver.
func (c *Client) IsProxyDeployed(l2Address common.Address) (bool, error) {
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{}, &out, "isProxyDeployed", l2Address); err != nil {
		return false, fmt.Errorf("isProxyDeployed: %w", err)
	}
	return out[0].(bool), nil
}

// DeployProxy calls the anchor contract's deployProxy(address). Nothing in
// this module calls it: the Builder's pre-broadcast checks only read
// IsProxyDeployed and fail the submission when a proxy is missing, without
// deploying it.
func (c *Client) DeployProxy(ctx context.Context, l2Address common.Address) (*types.Transaction, error) {
	opts, err := c.transactOpts(ctx)
	if err != nil {
		return nil, err
	}
	return c.contract.Transact(opts, "deployProxy", l2Address)
}

// responseTuple is the ABI tuple shape of roltypes.IncomingCallResponse.
type responseTuple struct {
	PreOutgoingCallsStateHash [32]byte
	OutgoingCalls             []outgoingCallTuple
	ExpectedResults           [][]byte
	ReturnValue               []byte
	FinalStateHash            [32]byte
}

type outgoingCallTuple struct {
	From              common.Address
	Target            common.Address
	Value             *big.Int
	Gas               *big.Int
	Data              []byte
	PostCallStateHash [32]byte
}

func toResponseTuple(r roltypes.IncomingCallResponse) responseTuple {
	calls := make([]outgoingCallTuple, len(r.OutgoingCalls))
	for i, c := range r.OutgoingCalls {
		value := new(big.Int)
		if c.Value != nil {
			value = c.Value.ToBig()
		}
		calls[i] = outgoingCallTuple{
			From:              c.From,
			Target:            c.Target,
			Value:             value,
			Gas:               new(big.Int).SetUint64(c.Gas),
			Data:              c.Data,
			PostCallStateHash: c.PostCallStateHash,
		}
	}
	results := r.ExpectedResults
	if results == nil {
		results = [][]byte{}
	}
	return responseTuple{
		PreOutgoingCallsStateHash: r.PreOutgoingCallsStateHash,
		OutgoingCalls:             calls,
		ExpectedResults:           results,
		ReturnValue:               r.ReturnValue,
		FinalStateHash:            r.FinalStateHash,
	}
}

// RegisterIncomingCall calls the anchor contract's registerIncomingCall,
// the step that turns a discovered cross-layer call into a commitment a
// proxy can later consume without on-the-fly execution (section 3).
func (c *Client) RegisterIncomingCall(ctx context.Context, l2Address common.Address, preStateHash roltypes.StateHash, callData []byte, response roltypes.IncomingCallResponse, proof []byte) (*types.Transaction, error) {
	opts, err := c.transactOpts(ctx)
	if err != nil {
		return nil, err
	}
	return c.contract.Transact(opts, "registerIncomingCall", l2Address, [32]byte(preStateHash), callData, toResponseTuple(response), proof)
}

// GetResponseKey mirrors types.ResponseKey but as an anchor-chain call,
// for cross-checking the locally computed key against the contract's own
// hashing. Nothing in this module, tests included, calls it.
func (c *Client) GetResponseKey(ctx context.Context, l2Address common.Address, preStateHash roltypes.StateHash, callData []byte) (common.Hash, error) {
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getResponseKey", l2Address, [32]byte(preStateHash), callData); err != nil {
		return common.Hash{}, fmt.Errorf("getResponseKey: %w", err)
	}
	return out[0].([32]byte), nil
}

// IncomingCallRegistered reports whether a response has already been
// registered for key (invariant 4 of section 8: at most one per key).
func (c *Client) IncomingCallRegistered(ctx context.Context, key common.Hash) (bool, error) {
	var registered bool
	err := rpcretry.Do(ctx, rpcretry.DefaultPolicy, rpcretry.AnyError, "anchor.incomingCallRegistered", func(ctx context.Context) error {
		var out []interface{}
		if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "incomingCallRegistered", key); err != nil {
			return fmt.Errorf("incomingCallRegistered: %w", err)
		}
		registered = out[0].(bool)
		return nil
	})
	return registered, err
}

// IncomingCallResponse reads the registered response for key, used by the
// discovery loop to thread the pre-state forward without re-execution
// (section 4.2, discovery invariant 4).
func (c *Client) IncomingCallResponse(ctx context.Context, key common.Hash) (roltypes.IncomingCallResponse, error) {
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "incomingCallResponses", key); err != nil {
		return roltypes.IncomingCallResponse{}, fmt.Errorf("incomingCallResponses: %w", err)
	}
	t := out[0].(responseTuple)
	calls := make([]roltypes.OutgoingCall, len(t.OutgoingCalls))
	for i, c := range t.OutgoingCalls {
		calls[i] = roltypes.OutgoingCall{
			From:              c.From,
			Target:            c.Target,
			Gas:               c.Gas.Uint64(),
			Data:              c.Data,
			PostCallStateHash: c.PostCallStateHash,
		}
	}
	return roltypes.IncomingCallResponse{
		PreOutgoingCallsStateHash: t.PreOutgoingCallsStateHash,
		OutgoingCalls:             calls,
		ExpectedResults:           t.ExpectedResults,
		ReturnValue:               t.ReturnValue,
		FinalStateHash:            t.FinalStateHash,
	}, nil
}

// CommitL2Block calls the anchor contract's plain L2-block commit method
// (section 4.1's L2-transaction path, no outgoing calls).
func (c *Client) CommitL2Block(ctx context.Context, prevHash roltypes.StateHash, rlpEncodedTx []byte, finalStateHash roltypes.StateHash, proof []byte) (*types.Transaction, error) {
	opts, err := c.transactOpts(ctx)
	if err != nil {
		return nil, err
	}
	return c.contract.Transact(opts, "commitL2Block", [32]byte(prevHash), rlpEncodedTx, [32]byte(finalStateHash), proof)
}

// CommitL2BlockWithOutgoingCalls calls the anchor contract's
// outgoing-calls-bearing commit method (section 4.1's richer proof
// shape, used whenever the L2 block produced outgoing calls).
func (c *Client) CommitL2BlockWithOutgoingCalls(ctx context.Context, prevHash roltypes.StateHash, rlpEncodedTx []byte, preOutgoingCallsStateHash roltypes.StateHash, calls []roltypes.OutgoingCall, results [][]byte, finalStateHash roltypes.StateHash, proof []byte) (*types.Transaction, error) {
	opts, err := c.transactOpts(ctx)
	if err != nil {
		return nil, err
	}
	tuples := make([]outgoingCallTuple, len(calls))
	for i, c := range calls {
		value := new(big.Int)
		if c.Value != nil {
			value = c.Value.ToBig()
		}
		tuples[i] = outgoingCallTuple{
			From:              c.From,
			Target:            c.Target,
			Value:             value,
			Gas:               new(big.Int).SetUint64(c.Gas),
			Data:              c.Data,
			PostCallStateHash: c.PostCallStateHash,
		}
	}
	if results == nil {
		results = [][]byte{}
	}
	return c.contract.Transact(opts, "commitL2BlockWithOutgoingCalls",
		[32]byte(prevHash), rlpEncodedTx, [32]byte(preOutgoingCallsStateHash), tuples, results, [32]byte(finalStateHash), proof)
}

// WaitMined blocks until tx is confirmed, used after every state-mutating
// anchor call (section 4.2 step 4, section 8's closure-order confirmation
// requirement).
func (c *Client) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	return bind.WaitMined(ctx, c.eth, tx)
}

// Snapshot takes an anvil/hardhat-style evm_snapshot of the anchor chain,
// used by simulate to bracket discovery's real registerIncomingCall
// broadcasts so they leave no observable trace (section 4.2).
func (c *Client) Snapshot(ctx context.Context) (string, error) {
	var id string
	if err := c.eth.Client().CallContext(ctx, &id, "evm_snapshot"); err != nil {
		return "", fmt.Errorf("anchor evm_snapshot: %w", err)
	}
	return id, nil
}

// Revert restores a snapshot taken by Snapshot.
func (c *Client) Revert(ctx context.Context, id string) (bool, error) {
	var ok bool
	if err := c.eth.Client().CallContext(ctx, &ok, "evm_revert", id); err != nil {
		return false, fmt.Errorf("anchor evm_revert: %w", err)
	}
	return ok, nil
}
