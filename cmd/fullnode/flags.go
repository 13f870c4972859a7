package main

import (
	"github.com/urfave/cli/v2"
)

// config holds every Fullnode-specific operator-visible knob from section
// 9's enumerated configuration list, plus section 4.1's determinism
// constants.
type config struct {
	L1RPC                    string
	Rollup                   string
	AdminKey                 string
	RPCPort                  int
	L2Port                   int
	EVMRPC                   string
	ChainID                  uint64
	SystemAccount            string
	SystemAccountWei         string
	ProxyFactoryBytecodePath string
	CallRegistryBytecodePath string
	DeployGas                uint64
	LogFile                  string
}

var flags = []cli.Flag{
	&cli.StringFlag{Name: "l1-rpc", Usage: "anchor chain JSON-RPC url", Required: true},
	&cli.StringFlag{Name: "rollup", Usage: "anchor rollup contract address", Required: true},
	&cli.StringFlag{Name: "admin-key", Usage: "hex-encoded admin private key; optional for a read-only fullnode", Value: ""},
	&cli.IntFlag{Name: "rpc-port", Usage: "port nativerollup_*/evm_* JSON-RPC is served on", Value: 8645},
	&cli.IntFlag{Name: "l2-port", Usage: "port the underlying execution EVM's own JSON-RPC is served on, for eth_* reads", Value: 8646},
	&cli.StringFlag{Name: "evm-rpc", Usage: "execution EVM's admin JSON-RPC url (anvil/hardhat-style)", Required: true},
	&cli.Uint64Flag{Name: "chain-id", Usage: "L2 chain id, logged at genesis (not applied to the execution EVM)", Required: true},
	&cli.StringFlag{Name: "system-account", Usage: "hex address of the fixed system account", Required: true},
	&cli.StringFlag{Name: "system-account-balance-wei", Usage: "decimal wei balance credited to the system account at genesis", Value: "0"},
	&cli.StringFlag{Name: "proxy-factory-bytecode", Usage: "path to the proxy factory's deployment bytecode", Required: true},
	&cli.StringFlag{Name: "call-registry-bytecode", Usage: "path to the call registry's deployment bytecode", Required: true},
	&cli.Uint64Flag{Name: "deploy-gas", Usage: "gas limit for genesis deployment transactions", Value: 0},
	&cli.StringFlag{Name: "log-file", Usage: "rotate logs to this file instead of stderr", Value: ""},
}

func configFromCLI(c *cli.Context) config {
	return config{
		L1RPC:                    c.String("l1-rpc"),
		Rollup:                   c.String("rollup"),
		AdminKey:                 c.String("admin-key"),
		RPCPort:                  c.Int("rpc-port"),
		L2Port:                   c.Int("l2-port"),
		EVMRPC:                   c.String("evm-rpc"),
		ChainID:                  c.Uint64("chain-id"),
		SystemAccount:            c.String("system-account"),
		SystemAccountWei:         c.String("system-account-balance-wei"),
		ProxyFactoryBytecodePath: c.String("proxy-factory-bytecode"),
		CallRegistryBytecodePath: c.String("call-registry-bytecode"),
		DeployGas:                c.Uint64("deploy-gas"),
		LogFile:                  c.String("log-file"),
	}
}
