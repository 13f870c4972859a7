package anchor

import (
	"context"
	"fmt"
	"math/big"
	"sort"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	roltypes "github.com/nativerollup/core/rollup/types"
)

func (c *Client) filterQuery() ethereum.FilterQuery {
	return ethereum.FilterQuery{
		FromBlock: big.NewInt(0),
		Addresses: []common.Address{c.address},
	}
}

// EventsFrom implements fullnode.EventSource: it reads every
// L2BlockProcessed/IncomingCallHandled log emitted since genesis, orders
// them by (anchor_block_number, anchor_log_index) per section 3, drops
// everything up to and including the event whose NewHash equals
// afterHash, and streams the remainder followed by a live subscription.
//
// The teacher's own log-filtering idiom (FilterLogs against a bound
// contract, then SubscribeFilterLogs for the live tail) is followed here
// rather than go-ethereum's richer generated-binding WatchLogs machinery,
// since this contract has no abigen binding (section 1's non-goals:
// bytecode/ABI are inputs, not compiled here).
func (c *Client) EventsFrom(ctx context.Context, afterHash roltypes.StateHash) (<-chan roltypes.Event, <-chan error, error) {
	logs, err := c.eth.FilterLogs(ctx, c.filterQuery())
	if err != nil {
		return nil, nil, fmt.Errorf("filtering historical anchor logs: %w", err)
	}

	events, err := decodeAndOrderLogs(logs)
	if err != nil {
		return nil, nil, err
	}

	start := 0
	if afterHash != (roltypes.StateHash{}) {
		found := false
		for i, ev := range events {
			if ev.NewHash == afterHash {
				start = i + 1
				found = true
				break
			}
		}
		if !found {
			return nil, nil, fmt.Errorf("%w: no event in anchor log has hash %s", roltypes.ErrChainDiscontinuity, afterHash)
		}
	}

	out := make(chan roltypes.Event, len(events)-start+16)
	errs := make(chan error, 1)

	liveLogs := make(chan types.Log, 256)
	sub, err := c.eth.SubscribeFilterLogs(ctx, c.filterQuery(), liveLogs)
	if err != nil {
		return nil, nil, fmt.Errorf("subscribing to live anchor logs: %w", err)
	}

	go func() {
		defer close(out)
		defer sub.Unsubscribe()

		for _, ev := range events[start:] {
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case err := <-sub.Err():
				errs <- err
				return
			case raw := <-liveLogs:
				ev, err := decodeLog(raw)
				if err != nil {
					errs <- err
					return
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, errs, nil
}

func decodeAndOrderLogs(logs []types.Log) ([]roltypes.Event, error) {
	events := make([]roltypes.Event, 0, len(logs))
	for _, l := range logs {
		ev, err := decodeLog(l)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].Position.Less(events[j].Position)
	})
	return events, nil
}

func decodeLog(l types.Log) (roltypes.Event, error) {
	if len(l.Topics) == 0 {
		return roltypes.Event{}, fmt.Errorf("anchor log has no topics")
	}
	position := roltypes.AnchorPosition{BlockNumber: l.BlockNumber, LogIndex: l.Index}

	switch l.Topics[0] {
	case RollupABI.Events["L2BlockProcessed"].ID:
		var decoded struct {
			RlpEncodedTx []byte
		}
		if err := RollupABI.UnpackIntoInterface(&decoded, "L2BlockProcessed", l.Data); err != nil {
			return roltypes.Event{}, fmt.Errorf("unpacking L2BlockProcessed: %w", err)
		}
		return roltypes.Event{
			Kind:         roltypes.EventL2BlockProcessed,
			Position:     position,
			PrevHash:     l.Topics[1],
			NewHash:      l.Topics[2],
			RLPEncodedTx: decoded.RlpEncodedTx,
		}, nil
	case RollupABI.Events["IncomingCallHandled"].ID:
		var decoded struct {
			L1Caller common.Address
			CallData []byte
		}
		if err := RollupABI.UnpackIntoInterface(&decoded, "IncomingCallHandled", l.Data); err != nil {
			return roltypes.Event{}, fmt.Errorf("unpacking IncomingCallHandled: %w", err)
		}
		return roltypes.Event{
			Kind:      roltypes.EventIncomingCallHandled,
			Position:  position,
			PrevHash:  l.Topics[1],
			NewHash:   l.Topics[2],
			L2Address: common.BytesToAddress(l.Topics[3].Bytes()),
			L1Caller:  decoded.L1Caller,
			CallData:  decoded.CallData,
		}, nil
	default:
		return roltypes.Event{}, fmt.Errorf("unrecognized anchor log topic %s", l.Topics[0])
	}
}
