// Command builder runs the coordinator's Builder: it classifies
// submitted transactions, drives cross-layer call discovery against its
// Fullnode, and broadcasts to the anchor chain.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"
	_ "go.uber.org/automaxprocs"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/nativerollup/core/rollup/anchor"
	"github.com/nativerollup/core/rollup/builder"
	roltypes "github.com/nativerollup/core/rollup/types"
)

func main() {
	app := &cli.App{
		Name:   "builder",
		Usage:  "coordinator builder: classification, discovery, broadcast",
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
	case errors.Is(err, roltypes.ErrConfig):
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
	adminKey, err := crypto.HexToECDSA(trimHex(cfg.AdminKey))
	if err != nil {
		return fmt.Errorf("%w: --admin-key is not a valid private key: %v", roltypes.ErrConfig, err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	anchorClient, err := anchor.Dial(ctx, cfg.L1RPC, common.HexToAddress(cfg.Rollup), adminKey)
	if err != nil {
		return fmt.Errorf("%w: dialing anchor chain: %v", roltypes.ErrDependencyUnavailable, err)
	}
	defer anchorClient.Close()

	fullnodeClient, err := builder.DialFullnode(ctx, cfg.FullnodeURL)
	if err != nil {
		return fmt.Errorf("%w: dialing fullnode: %v", roltypes.ErrDependencyUnavailable, err)
	}
	defer fullnodeClient.Close()

	engineCfg := builder.Config{
		MaxDiscoveryIterations: cfg.DiscoveryIterationCap,
		BroadcastTimeout:       cfg.BroadcastTimeout,
		ReadTimeout:            cfg.ReadTimeout,
	}
	engine := builder.NewEngine(anchorClient, fullnodeClient, adminKey, engineCfg)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: builder.NewHTTPServer(engine).Handler(),
	}

	serveErrs := make(chan error, 1)
	go func() { serveErrs <- httpServer.ListenAndServe() }()

	log.Info("builder started", "port", cfg.Port, "rollup", cfg.Rollup, "fullnode", cfg.FullnodeURL)

	select {
	case <-ctx.Done():
		log.Info("builder shutting down")
		return httpServer.Close()
	case err := <-serveErrs:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("%w: http server: %v", roltypes.ErrDependencyUnavailable, err)
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
