// Package main runs a standalone clara registrar: the shared publisher/
// subscriber registration service. Configuration loading and shutdown
// handling mirror the proxy binary.
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
	"github.com/clara-msg/clara/registrar"
)

func main() {
	configFile := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := logging.New("registrar", cfg.LogDir, !cfg.Debug)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Close()

	addr, err := cfg.RegAddress()
	if err != nil {
		log.Fatalf("resolving registrar address: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal %s, shutting down", sig)
		cancel()
	}()

	s := registrar.New(addr, logger)
	logger.Info("registrar starting on %s", addr.Addr())
	if err := s.Run(ctx); err != nil {
		logger.Error("registrar exited with error: %v", err)
		os.Exit(1)
	}
	logger.Info("registrar stopped")
}
