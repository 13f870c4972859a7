package types

import (
	"errors"
	"strconv"
)

// Error kinds from section 7 of the coordinator spec. These are sentinel
// values; callers wrap them with fmt.Errorf("...: %w", ErrX) and inspect
// with errors.Is/errors.As rather than matching on string content.
var (
	// ErrConfig signals a missing or invalid configuration flag. Startup
	// aborts; exit code 1.
	ErrConfig = errors.New("config error")

	// ErrDependencyUnavailable signals the anchor RPC or EVM RPC was
	// unreachable. At startup this aborts with exit code 2; during
	// operation the in-flight request fails but the service stays up.
	ErrDependencyUnavailable = errors.New("dependency unavailable")

	// ErrStalePreState signals a caller-supplied pre-state hash that does
	// not match the Fullnode's current state hash. Recoverable: the
	// caller re-reads the current hash and retries.
	ErrStalePreState = errors.New("stale pre-state hash")

	// ErrNonceMismatch signals the submitted transaction's nonce does not
	// equal the account's current nonce. Rejected before any anchor-chain
	// work begins.
	ErrNonceMismatch = errors.New("nonce mismatch")

	// ErrDiscoveryNonTermination signals the Builder's iterative call
	// discovery hit its iteration cap without reaching a fixed point.
	ErrDiscoveryNonTermination = errors.New("discovery did not terminate")

	// ErrRegistrationFailed signals registerIncomingCall reverted on the
	// anchor chain. No partial cleanup is needed: pre-broadcast has not
	// begun.
	ErrRegistrationFailed = errors.New("incoming call registration failed")

	// ErrPreBroadcastCheckFailed signals one of the three pre-broadcast
	// checks (proxy deployed, call registered, dry-run succeeds) failed.
	ErrPreBroadcastCheckFailed = errors.New("pre-broadcast check failed")

	// ErrBroadcastReverted signals the anchor transaction mined with a
	// non-success receipt status.
	ErrBroadcastReverted = errors.New("broadcast transaction reverted")

	// ErrBroadcastTimeout signals no receipt was obtained within the
	// configured deadline. The caller must poll to learn the final status.
	ErrBroadcastTimeout = errors.New("broadcast confirmation timed out")

	// ErrDivergence signals the Fullnode's replayer observed a state-hash
	// mismatch against an event's declared post-hash. Fatal: consumption
	// halts and does not resume without operator intervention.
	ErrDivergence = errors.New("state hash divergence")

	// ErrCancelledAfterBroadcast signals a submit call was cancelled after
	// its anchor transaction was already sent; the user transaction may
	// still confirm independently of the cancelled caller.
	ErrCancelledAfterBroadcast = errors.New("cancelled after broadcast")

	// ErrUnknownSnapshot signals revert was called with a snapshot id the
	// Fullnode does not recognize (already reverted, or never issued).
	ErrUnknownSnapshot = errors.New("unknown snapshot id")

	// ErrResponseAlreadyRegistered signals an attempt to register a
	// response key that already has an immutable entry.
	ErrResponseAlreadyRegistered = errors.New("response key already registered")

	// ErrChainDiscontinuity signals an event whose prev-hash does not
	// thread from the preceding event's post-hash, or, at resume, does
	// not thread from the Fullnode's current hash.
	ErrChainDiscontinuity = errors.New("event log discontinuity")
)

// DivergenceError carries the index of the offending event alongside
// ErrDivergence so operators can locate it in the anchor event log.
type DivergenceError struct {
	EventIndex uint64
	Expected   StateHash
	Actual     StateHash
}

func (e *DivergenceError) Error() string {
	return "divergence at event " + strconv.FormatUint(e.EventIndex, 10) +
		": expected " + e.Expected.Hex() + " got " + e.Actual.Hex()
}

func (e *DivergenceError) Unwrap() error { return ErrDivergence }
