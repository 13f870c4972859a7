package fullnode

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"

	roltypes "github.com/nativerollup/core/rollup/types"
)

var (
	replayedEventsCounter = metrics.NewRegisteredCounter("fullnode/replayer/events", nil)
	divergenceCounter     = metrics.NewRegisteredCounter("fullnode/replayer/divergences", nil)
)

// EventSource is the anchor-chain's event log, as consumed by the
// replayer. Implemented by rollup/anchor.Client. AnchorStateHash reads
// the anchor contract's currently recorded l2BlockHash, used at boot to
// find the correct resume point (section 4.1's idempotent-restart
// requirement).
type EventSource interface {
	AnchorStateHash(ctx context.Context) (roltypes.StateHash, error)
	EventsFrom(ctx context.Context, afterHash roltypes.StateHash) (<-chan roltypes.Event, <-chan error, error)
}

// Replayer subscribes to the anchor event log in (block, logIndex) order
// and re-executes each event against the Fullnode's Engine, asserting
// that the resulting hash matches the event's declared post-hash
// (section 4.1). A mismatch is fatal.
type Replayer struct {
	engine *Engine
	source EventSource
}

// NewReplayer constructs a Replayer. Call Run to start consuming events;
// Run blocks until ctx is cancelled or a divergence halts consumption.
func NewReplayer(engine *Engine, source EventSource) *Replayer {
	return &Replayer{engine: engine, source: source}
}

// Run resumes from the Fullnode's current hash, per section 4.1: "on boot
// the Fullnode reads the anchor contract's current state hash, compares
// to its own, and resumes by replaying the suffix of events whose
// prev-hash threads from the Fullnode's current hash. If no such suffix
// exists, it halts."
func (r *Replayer) Run(ctx context.Context) error {
	anchorHash, err := r.source.AnchorStateHash(ctx)
	if err != nil {
		return fmt.Errorf("%w: reading anchor state hash: %v", roltypes.ErrDependencyUnavailable, err)
	}
	localHash := r.engine.GetStateRoot()

	log.Info("fullnode replayer resuming",
		"anchorHash", anchorHash, "localHash", localHash, "inSync", anchorHash == localHash)

	events, errs, err := r.source.EventsFrom(ctx, localHash)
	if err != nil {
		return fmt.Errorf("subscribing to event log from %s: %w", localHash, err)
	}

	idx := uint64(0)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errs:
			if err != nil {
				return fmt.Errorf("%w: event subscription: %v", roltypes.ErrDependencyUnavailable, err)
			}
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := r.replayOne(ctx, idx, ev); err != nil {
				r.engine.haltOnDivergence(err)
				return err
			}
			idx++
		}
	}
}

func (r *Replayer) replayOne(ctx context.Context, idx uint64, ev roltypes.Event) error {
	pre := r.engine.GetStateRoot()
	if ev.PrevHash != pre {
		return fmt.Errorf("%w: event %d prevHash %s does not thread from current hash %s",
			roltypes.ErrChainDiscontinuity, idx, ev.PrevHash, pre)
	}

	var result CallResult
	var err error
	switch ev.Kind {
	case roltypes.EventL2BlockProcessed:
		tx := new(types.Transaction)
		if decErr := tx.UnmarshalBinary(ev.RLPEncodedTx); decErr != nil {
			return fmt.Errorf("decoding event %d raw tx: %w", idx, decErr)
		}
		result, err = r.engine.ExecuteL2Transaction(ctx, tx)
	case roltypes.EventIncomingCallHandled:
		result, err = r.engine.ExecuteL1ToL2Call(ctx, L1ToL2CallRequest{
			L1Caller:         ev.L1Caller,
			L2Target:         ev.L2Address,
			CallData:         ev.CallData,
			ExpectedPreState: pre,
		})
	default:
		return fmt.Errorf("event %d: unknown kind %v", idx, ev.Kind)
	}
	if err != nil {
		return fmt.Errorf("replaying event %d: %w", idx, err)
	}

	replayedEventsCounter.Inc(1)
	if result.NewStateRoot != ev.NewHash {
		divergenceCounter.Inc(1)
		return &roltypes.DivergenceError{EventIndex: idx, Expected: ev.NewHash, Actual: result.NewStateRoot}
	}
	return nil
}
