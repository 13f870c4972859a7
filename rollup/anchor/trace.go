package anchor

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	roltypes "github.com/nativerollup/core/rollup/types"
)

// CallKind tags the heterogeneous node shapes of a debug call trace
// (section 9's redesign note: "represent it as a tagged sum over
// {call, delegatecall, staticcall, create, ...} with a common
// to/from/input/value/error?/children shape").
type CallKind string

const (
	CallKindCall         CallKind = "CALL"
	CallKindDelegateCall CallKind = "DELEGATECALL"
	CallKindStaticCall   CallKind = "STATICCALL"
	CallKindCreate       CallKind = "CREATE"
	CallKindCreate2      CallKind = "CREATE2"
)

// CallNode is one node of the call tree callTracer returns from
// debug_traceCall, normalized into CallKind's common shape.
type CallNode struct {
	Kind    CallKind       `json:"type"`
	From    common.Address `json:"from"`
	To      common.Address `json:"to"`
	Input   hexutil.Bytes  `json:"input"`
	Output  hexutil.Bytes  `json:"output"`
	Value   *hexutil.Big   `json:"value"`
	Gas     hexutil.Uint64 `json:"gas"`
	GasUsed hexutil.Uint64 `json:"gasUsed"`
	Error   string         `json:"error,omitempty"`
	Calls   []CallNode     `json:"calls,omitempty"`
}

// Reverted reports whether this node or call errored out.
func (n CallNode) Reverted() bool { return n.Error != "" }

// ValueOrZero returns n.Value as *big.Int, zero if unset.
func (n CallNode) ValueOrZero() *big.Int {
	if n.Value == nil {
		return new(big.Int)
	}
	return (*big.Int)(n.Value)
}

// TraceCall runs debug_traceCall against the anchor chain's pending block
// using the callTracer, the trace the discovery loop re-derives on every
// iteration (section 4.2's algorithm: "trace <- anchor.debug_traceCall(tx)").
func (c *Client) TraceCall(ctx context.Context, tx *types.Transaction, from common.Address) (CallNode, error) {
	callMsg := map[string]interface{}{
		"from": from,
		"gas":  hexutil.Uint64(tx.Gas()),
		"data": hexutil.Bytes(tx.Data()),
	}
	if to := tx.To(); to != nil {
		callMsg["to"] = *to
	}
	if v := tx.Value(); v != nil {
		callMsg["value"] = (*hexutil.Big)(v)
	}

	var raw json.RawMessage
	err := c.eth.Client().CallContext(ctx, &raw, "debug_traceCall", callMsg, "pending", map[string]interface{}{
		"tracer": "callTracer",
	})
	if err != nil {
		return CallNode{}, fmt.Errorf("%w: debug_traceCall: %v", roltypes.ErrDependencyUnavailable, err)
	}

	var root CallNode
	if err := json.Unmarshal(raw, &root); err != nil {
		return CallNode{}, fmt.Errorf("decoding call trace: %w", err)
	}
	return root, nil
}

// ProxyCall is one depth-first occurrence of a call into a registered
// L1->L2 proxy, in execution order. Position is significant and
// duplicates are preserved: section 4.2's discovery invariant 1
// explicitly forbids deduplicating by call identity.
type ProxyCall struct {
	From     common.Address
	L2Target common.Address
	Data     []byte
	Value    *big.Int
}

// WalkProxyCalls depth-first walks root and keeps every CALL or STATICCALL
// node for which isProxyOf(from, to) reports an L2 target, in walk order
// and without dedup; DELEGATECALL and CREATE/CREATE2 nodes are not
// matched, though their children are still walked. The Builder builds
// isProxyOf from a proxy-address -> L2-address map it fills by asking the
// anchor contract's GetProxyAddress for each candidate L2 address, and
// matches on `to` alone.
func WalkProxyCalls(root CallNode, isProxyOf func(from, to common.Address) (l2Target common.Address, ok bool)) []ProxyCall {
	var out []ProxyCall
	var walk func(n CallNode)
	walk = func(n CallNode) {
		if n.Kind == CallKindCall || n.Kind == CallKindStaticCall {
			if l2Target, ok := isProxyOf(n.From, n.To); ok {
				out = append(out, ProxyCall{
					From:     n.From,
					L2Target: l2Target,
					Data:     n.Input,
					Value:    n.ValueOrZero(),
				})
			}
		}
		for _, child := range n.Calls {
			walk(child)
		}
	}
	walk(root)
	return out
}
