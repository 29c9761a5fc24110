// Package main runs a standalone clara proxy: the pub/sub forwarder and
// control-plane service every Connection dials into. Configuration
// comes from an optional file argument, falling back to built-in
// defaults, and the process shuts down on SIGINT/SIGTERM.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/clara-msg/clara/config"
	"github.com/clara-msg/clara/logging"
	"github.com/clara-msg/clara/proxy"
)

func main() {
	configFile := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := logging.New("proxy", cfg.LogDir, !cfg.Debug)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Close()

	addr, err := cfg.ProxyAddress()
	if err != nil {
		log.Fatalf("resolving proxy address: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal %s, shutting down", sig)
		cancel()
	}()

	p := proxy.New(addr, logger)
	logger.Info("proxy starting on pub=%d sub=%d ctrl=%d", addr.PubPort, addr.SubPort, addr.CtrlPort())
	if err := p.Run(ctx); err != nil {
		logger.Error("proxy exited with error: %v", err)
		os.Exit(1)
	}
	logger.Info("proxy stopped")
}
