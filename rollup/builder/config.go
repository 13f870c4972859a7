package builder

import (
	"time"

	flag "github.com/spf13/pflag"
)

// Config holds the Builder's tunables from section 4.2's discovery
// algorithm and section 5's timeout model.
type Config struct {
	// MaxDiscoveryIterations caps the L1-contract-call path's fixed-point
	// loop; exceeding it yields DiscoveryNonTermination.
	MaxDiscoveryIterations int

	// BroadcastTimeout bounds how long submit waits for the originating
	// transaction's anchor-chain confirmation.
	BroadcastTimeout time.Duration

	// ReadTimeout is carried in the configuration and set from the CLI,
	// but the Engine does not apply it: read-only outbound RPCs (status
	// checks, trace calls, response lookups) run under the caller's
	// context with no deadline of their own.
	ReadTimeout time.Duration
}

// DefaultConfig matches section 4.2's stated default iteration cap and
// section 5's stated default deadlines (30s broadcasts, 10s reads).
var DefaultConfig = Config{
	MaxDiscoveryIterations: 20,
	BroadcastTimeout:       30 * time.Second,
	ReadTimeout:            10 * time.Second,
}

// ConfigAddOptions registers prefix-namespaced flags for Config, the same
// prefix.flag-name sub-config pattern the teacher uses so the Builder's
// tunables can be embedded under a --builder.* namespace.
func ConfigAddOptions(prefix string, f *flag.FlagSet) {
	f.Int(prefix+".discovery-iteration-cap", DefaultConfig.MaxDiscoveryIterations, "maximum discovery re-trace iterations before DiscoveryNonTermination")
	f.Duration(prefix+".broadcast-timeout", DefaultConfig.BroadcastTimeout, "timeout waiting for the originating transaction's anchor confirmation")
	f.Duration(prefix+".read-timeout", DefaultConfig.ReadTimeout, "timeout for read-only outbound RPCs (stored in Config; not applied by the Engine)")
}
