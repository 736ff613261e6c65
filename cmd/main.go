// Command registry runs the nImO Registry service: the network-wide
// catalog of machines, nodes, channels, and connections described by
// spec.md. It loads configuration, wires up the catalog, dispatcher,
// listener, status publisher, and mDNS announcer, then runs until a
// termination signal arrives.
//
// Usage:
//
//	registry --port 40000
//	registry --config /etc/nimo/registry.json
//	registry --log --port 0   # OS-assigned port, verbose logging
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nimo-project/registry/config"
	"github.com/nimo-project/registry/observability"
	"github.com/nimo-project/registry/registry"
)

const version = "1.0.0"

func main() {
	os.Exit(run())
}

// run performs startup, serves until signaled, and returns the
// process exit code, per spec.md §6's exit-code contract.
func run() int {
	verbose := flag.Bool("log", false, "enable per-operation logging")
	configPath := flag.String("config", "", "path to a registry config file")
	port := flag.Int("port", -1, "override the command TCP port (0 = OS-assigned)")
	showVersion := flag.Bool("version", false, "print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("registry %s\n", version)
		return 0
	}

	cfg, err := config.Load(config.ResolvePath(*configPath))
	if err != nil {
		log.Printf("registry: %v", err)
		return 1
	}
	if *verbose {
		cfg.Verbose = true
	}
	if *port >= 0 {
		cfg.CommandPort = *port
	}

	logger := &observability.StdLogger{Verbose: cfg.Verbose}

	var tracerShutdown func(context.Context) error
	if cfg.OTLPEndpoint != "" {
		tracerShutdown, err = observability.InitTracer(cfg.OTLPEndpoint)
		if err != nil {
			logger.Warn("registry_tracer_init_failed", "error", err.Error())
		}
	}

	svc, err := registry.New(logger, cfg)
	if err != nil {
		if errors.Is(err, registry.ErrDuplicateRegistry) {
			logger.Error("registry_duplicate_detected", "error", err.Error())
			fmt.Fprintln(os.Stderr, "registry: another Registry instance is already advertising on this network")
		} else {
			logger.Error("registry_startup_failed", "error", err.Error())
		}
		return 1
	}

	addr, err := svc.Start()
	if err != nil {
		logger.Error("registry_bind_failed", "error", err.Error())
		return 1
	}
	logger.Info("registry_ready", "address", addr.String(), "version", version)
	fmt.Printf("nImO Registry listening on %s\n", addr.String())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("registry_signal_received", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout()+time.Second)
	defer cancel()
	if err := svc.Shutdown(ctx); err != nil {
		logger.Error("registry_shutdown_error", "error", err.Error())
	}

	if tracerShutdown != nil {
		if err := tracerShutdown(context.Background()); err != nil {
			logger.Warn("registry_tracer_shutdown_failed", "error", err.Error())
		}
	}

	return 0
}
