// Command fullnode runs the coordinator's Fullnode: it owns canonical L2
// state, serves the nativerollup_*/evm_* JSON-RPC surface to a Builder,
// and replays the anchor chain's event log to stay in sync.
package main

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/urfave/cli/v2"
	_ "go.uber.org/automaxprocs"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/nativerollup/core/rollup/anchor"
	"github.com/nativerollup/core/rollup/evmrpc"
	"github.com/nativerollup/core/rollup/fullnode"
	roltypes "github.com/nativerollup/core/rollup/types"
)

func main() {
	app := &cli.App{
		Name:   "fullnode",
		Usage:  "coordinator fullnode: canonical L2 state + anchor event replayer",
		Flags:  flags,
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

func exitCodeFor(err error) int {
	switch {
	case errors.Is(err, roltypes.ErrConfig), errors.Is(err, roltypes.ErrDivergence):
		return 1
	case errors.Is(err, roltypes.ErrDependencyUnavailable):
		return 2
	default:
		return 1
	}
}

func run(c *cli.Context) error {
	cfg := configFromCLI(c)
	setupLogging(cfg.LogFile)

	if !common.IsHexAddress(cfg.Rollup) {
		return fmt.Errorf("%w: --rollup is not a valid address", roltypes.ErrConfig)
	}
	if !common.IsHexAddress(cfg.SystemAccount) {
		return fmt.Errorf("%w: --system-account is not a valid address", roltypes.ErrConfig)
	}
	balance, ok := new(big.Int).SetString(cfg.SystemAccountWei, 10)
	if !ok {
		return fmt.Errorf("%w: --system-account-balance-wei is not a decimal integer", roltypes.ErrConfig)
	}
	factoryBytecode, err := os.ReadFile(cfg.ProxyFactoryBytecodePath)
	if err != nil {
		return fmt.Errorf("%w: reading --proxy-factory-bytecode: %v", roltypes.ErrConfig, err)
	}
	registryBytecode, err := os.ReadFile(cfg.CallRegistryBytecodePath)
	if err != nil {
		return fmt.Errorf("%w: reading --call-registry-bytecode: %v", roltypes.ErrConfig, err)
	}

	var adminKey *ecdsa.PrivateKey
	if cfg.AdminKey != "" {
		adminKey, err = crypto.HexToECDSA(trimHex(cfg.AdminKey))
		if err != nil {
			return fmt.Errorf("%w: --admin-key is not a valid private key: %v", roltypes.ErrConfig, err)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	evm, err := evmrpc.Dial(ctx, cfg.EVMRPC)
	if err != nil {
		return fmt.Errorf("%w: dialing execution evm: %v", roltypes.ErrDependencyUnavailable, err)
	}
	defer evm.Close()

	anchorClient, err := anchor.Dial(ctx, cfg.L1RPC, common.HexToAddress(cfg.Rollup), adminKey)
	if err != nil {
		return fmt.Errorf("%w: dialing anchor chain: %v", roltypes.ErrDependencyUnavailable, err)
	}
	defer anchorClient.Close()

	engine := fullnode.New(evm, fullnode.GenesisConfig{
		ChainID:              cfg.ChainID,
		SystemAccount:        common.HexToAddress(cfg.SystemAccount),
		SystemAccountBalance: balance,
		ProxyFactoryBytecode: factoryBytecode,
		CallRegistryBytecode: registryBytecode,
		DeployGas:            cfg.DeployGas,
	})

	anchorHash, err := anchorClient.AnchorStateHash(ctx)
	if err != nil {
		return fmt.Errorf("%w: reading anchor state hash: %v", roltypes.ErrDependencyUnavailable, err)
	}
	if anchorHash == roltypes.Genesis {
		if err := engine.RunGenesis(ctx); err != nil {
			return fmt.Errorf("running genesis: %w", err)
		}
	} else if err := engine.SyncStateHash(ctx); err != nil {
		return fmt.Errorf("%w: resuming from execution evm: %v", roltypes.ErrDependencyUnavailable, err)
	}

	replayer := fullnode.NewReplayer(engine, anchorClient)
	replayErrs := make(chan error, 1)
	go func() { replayErrs <- replayer.Run(ctx) }()

	rpcServer := rpc.NewServer()
	for _, api := range fullnode.APIs(engine) {
		if err := rpcServer.RegisterName(api.Namespace, api.Service); err != nil {
			return fmt.Errorf("registering rpc api %s: %w", api.Namespace, err)
		}
	}
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.RPCPort),
		Handler: rpcServer,
	}
	serveErrs := make(chan error, 1)
	go func() { serveErrs <- httpServer.ListenAndServe() }()

	log.Info("fullnode started", "rpcPort", cfg.RPCPort, "l2Port", cfg.L2Port, "rollup", cfg.Rollup)

	select {
	case <-ctx.Done():
		log.Info("fullnode shutting down")
		_ = httpServer.Close()
		return nil
	case err := <-replayErrs:
		_ = httpServer.Close()
		if err != nil {
			return fmt.Errorf("%w: %v", roltypes.ErrDivergence, err)
		}
		return nil
	case err := <-serveErrs:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("%w: rpc server: %v", roltypes.ErrDependencyUnavailable, err)
		}
		return nil
	}
}

func setupLogging(logFile string) {
	var handler log.Handler
	if logFile != "" {
		writer := &lumberjack.Logger{Filename: logFile, MaxSize: 100, MaxBackups: 5, MaxAge: 28}
		handler = log.NewTerminalHandler(writer, false)
	} else {
		handler = log.NewTerminalHandler(os.Stderr, true)
	}
	log.SetDefault(log.NewLogger(handler))
}

func trimHex(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
