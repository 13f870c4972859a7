package fullnode

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	roltypes "github.com/nativerollup/core/rollup/types"
)

type stubEventSource struct {
	anchorHash roltypes.StateHash
	anchorErr  error
	events     chan roltypes.Event
	errs       chan error
}

func (s *stubEventSource) AnchorStateHash(ctx context.Context) (roltypes.StateHash, error) {
	return s.anchorHash, s.anchorErr
}

func (s *stubEventSource) EventsFrom(ctx context.Context, afterHash roltypes.StateHash) (<-chan roltypes.Event, <-chan error, error) {
	return s.events, s.errs, nil
}

func TestReplayOneChainDiscontinuity(t *testing.T) {
	e := New(nil, GenesisConfig{})
	e.setStateHash(roltypes.StateHash(common.HexToHash("0x01")))
	r := NewReplayer(e, &stubEventSource{})

	err := r.replayOne(context.Background(), 0, roltypes.Event{
		Kind:     roltypes.EventIncomingCallHandled,
		PrevHash: common.HexToHash("0x02"),
	})
	require.ErrorIs(t, err, roltypes.ErrChainDiscontinuity)
}

func TestRunPropagatesAnchorStateHashError(t *testing.T) {
	e := New(nil, GenesisConfig{})
	source := &stubEventSource{anchorErr: errors.New("boom")}
	r := NewReplayer(e, source)

	err := r.Run(context.Background())
	require.ErrorIs(t, err, roltypes.ErrDependencyUnavailable)
}

func TestRunHaltsOnChainDiscontinuity(t *testing.T) {
	e := New(nil, GenesisConfig{})
	e.setStateHash(roltypes.StateHash(common.HexToHash("0x01")))

	source := &stubEventSource{
		anchorHash: roltypes.StateHash(common.HexToHash("0x01")),
		events:     make(chan roltypes.Event, 1),
		errs:       make(chan error, 1),
	}
	source.events <- roltypes.Event{
		Kind:     roltypes.EventIncomingCallHandled,
		PrevHash: common.HexToHash("0xdead"),
	}
	r := NewReplayer(e, source)

	err := r.Run(context.Background())
	require.ErrorIs(t, err, roltypes.ErrChainDiscontinuity)

	synced, haltErr := e.IsSynced()
	require.False(t, synced)
	require.Error(t, haltErr)
}
