package main

import (
	"time"

	"github.com/urfave/cli/v2"
)

// config holds the Builder's operator-visible knobs from section 9's
// enumerated configuration list.
type config struct {
	L1RPC                 string
	Rollup                string
	AdminKey              string
	Port                  int
	FullnodeURL           string
	DiscoveryIterationCap int
	BroadcastTimeout      time.Duration
	ReadTimeout           time.Duration
	LogFile               string
}

var flags = []cli.Flag{
	&cli.StringFlag{Name: "l1-rpc", Usage: "anchor chain JSON-RPC url", Required: true},
	&cli.StringFlag{Name: "rollup", Usage: "anchor rollup contract address", Required: true},
	&cli.StringFlag{Name: "admin-key", Usage: "hex-encoded admin private key", Required: true},
	&cli.IntFlag{Name: "port", Usage: "port the Builder's HTTP API is served on", Value: 8745},
	&cli.StringFlag{Name: "fullnode-url", Usage: "this Builder's Fullnode JSON-RPC url", Required: true},
	&cli.IntFlag{Name: "discovery-iteration-cap", Usage: "upper bound on discovery re-trace iterations", Value: 20},
	&cli.DurationFlag{Name: "broadcast-timeout", Usage: "deadline waiting for an anchor-chain receipt", Value: 30 * time.Second},
	&cli.DurationFlag{Name: "read-timeout", Usage: "deadline for read-only outbound RPCs (stored in the Builder config; not applied by the Engine)", Value: 10 * time.Second},
	&cli.StringFlag{Name: "log-file", Usage: "rotate logs to this file instead of stderr", Value: ""},
}

func configFromCLI(c *cli.Context) config {
	return config{
		L1RPC:                 c.String("l1-rpc"),
		Rollup:                c.String("rollup"),
		AdminKey:              c.String("admin-key"),
		Port:                  c.Int("port"),
		FullnodeURL:           c.String("fullnode-url"),
		DiscoveryIterationCap: c.Int("discovery-iteration-cap"),
		BroadcastTimeout:      c.Duration("broadcast-timeout"),
		ReadTimeout:           c.Duration("read-timeout"),
		LogFile:               c.String("log-file"),
	}
}
