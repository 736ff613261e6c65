// Package registry composes the Registry service's subsystems B–H
// (catalog, protocol, dispatch, session, netsvc, status, announce),
// grounded directly on coreengine/kernel.Kernel
// (coreengine/kernel/kernel.go): a struct holding each subsystem, a
// New(logger, config) constructor, and a Shutdown(ctx) error that
// aggregates per-subsystem shutdown errors into a *ShutdownError.
package registry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/nimo-project/registry/announce"
	"github.com/nimo-project/registry/catalog"
	"github.com/nimo-project/registry/config"
	"github.com/nimo-project/registry/dispatch"
	"github.com/nimo-project/registry/netsvc"
	"github.com/nimo-project/registry/observability"
	"github.com/nimo-project/registry/status"
)

// Logger is the structured logging shape Registry and its subsystems
// log through — the teacher's interface shape, (msg string,
// keysAndValues ...any), duck-typed per package rather than shared.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// ShutdownError aggregates the errors from shutting down each
// subsystem, mirroring kernel.ShutdownError's Error()/Unwrap() shape.
type ShutdownError struct {
	Errors []error
}

func (e *ShutdownError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "shutdown completed with no errors"
	case 1:
		return fmt.Sprintf("shutdown error: %v", e.Errors[0])
	default:
		return fmt.Sprintf("shutdown completed with %d errors", len(e.Errors))
	}
}

func (e *ShutdownError) Unwrap() error {
	if len(e.Errors) > 0 {
		return e.Errors[0]
	}
	return nil
}

// ErrDuplicateRegistry is returned by New when the startup probe finds
// another Registry already advertising on the network (spec.md §4.I).
var ErrDuplicateRegistry = errors.New("registry: another registry instance is already advertising on this network")

// Registry is the top-level Registry service.
type Registry struct {
	cfg    *config.RegistryConfig
	logger Logger

	store     *catalog.Store
	publisher *status.Publisher
	dispatch  *dispatch.Registry
	listener  *netsvc.Listener
	announcer *announce.Announcer

	mu          sync.Mutex
	statsCancel func()
}

// New wires together every subsystem and performs the startup
// duplicate-Registry probe, but does not bind the command port or
// begin advertising yet — call Start for that. Returns
// ErrDuplicateRegistry if the probe finds an existing advertisement.
func New(logger Logger, cfg *config.RegistryConfig) (*Registry, error) {
	if cfg == nil {
		cfg = config.DefaultRegistryConfig()
	}
	if logger == nil {
		logger = observability.NoopLogger()
	}

	found, err := announce.Probe(cfg.StartupProbeTimeout())
	if err != nil {
		logger.Warn("registry_startup_probe_failed", "error", err.Error())
	} else if found {
		return nil, ErrDuplicateRegistry
	}

	store := catalog.NewStore()
	publisher, err := status.NewPublisher(cfg.StatusMulticastAddr, statusLoggerAdapter{logger})
	if err != nil {
		return nil, fmt.Errorf("registry: create status publisher: %w", err)
	}

	dispatchRegistry := dispatch.NewRegistry()
	dispatchRegistry.Use(dispatch.NewLoggingMiddleware())
	dispatch.RegisterAll(dispatchRegistry, store, publisher)

	listener := netsvc.New(dispatchRegistry, netsvcLoggerAdapter{logger})

	instanceName := cfg.AdvertiseInstanceName
	if instanceName == "" {
		instanceName = announce.Hostname()
	}
	localIP, err := localIPv4()
	if err != nil {
		return nil, fmt.Errorf("registry: determine local address: %w", err)
	}
	announcer, err := announce.New(announce.Service{
		InstanceName: instanceName,
		CommandPort:  cfg.CommandPort,
		IPv4Address:  localIP,
		StatusAddr:   cfg.StatusMulticastAddr,
	}, announceLoggerAdapter{logger})
	if err != nil {
		return nil, fmt.Errorf("registry: create announcer: %w", err)
	}

	return &Registry{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		publisher: publisher,
		dispatch:  dispatchRegistry,
		listener:  listener,
		announcer: announcer,
	}, nil
}

// Start binds the command-port listener, advertises the service, and
// begins periodic catalog-stats sampling. Returns the bound address.
func (r *Registry) Start() (net.Addr, error) {
	addr, err := r.listener.Start(":" + strconv.Itoa(r.cfg.CommandPort))
	if err != nil {
		return nil, err
	}

	if err := r.announcer.Advertise(); err != nil {
		r.logger.Warn("registry_advertise_failed", "error", err.Error())
	}

	r.mu.Lock()
	r.statsCancel = r.startStatsLoop(r.cfg.StatsInterval())
	r.mu.Unlock()

	r.logger.Info("registry_started", "address", addr.String())
	return addr, nil
}

// startStatsLoop periodically samples catalog.Stats into Prometheus
// gauges, adapted from coreengine/kernel/cleanup.go's
// StartCleanupLoop: a ticker plus a done channel, returning a stop
// function.
func (r *Registry) startStatsLoop(interval time.Duration) func() {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				stats := r.store.Stats()
				observability.RecordCatalogStats(stats.Machines, stats.Nodes, stats.Channels, stats.Connections)
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	return func() { close(done) }
}

// Shutdown stops the listener, withdraws the mDNS advertisement, and
// waits for in-flight sessions and the announcer's query loop to
// finish, aggregating any errors into a *ShutdownError — generalized
// from kernel.Kernel.Shutdown's "terminate all processes" to this
// service's subsystem list.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.logger.Info("registry_shutdown_initiated")
	var errs []error

	r.mu.Lock()
	if r.statsCancel != nil {
		r.statsCancel()
	}
	r.mu.Unlock()

	r.listener.Stop()

	if err := r.announcer.Withdraw(); err != nil {
		errs = append(errs, fmt.Errorf("withdraw announcement: %w", err))
	}
	if err := r.announcer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close announcer socket: %w", err))
	}
	if err := r.publisher.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close status publisher: %w", err))
	}

	r.logger.Info("registry_shutdown_completed", "errors", len(errs))
	if len(errs) > 0 {
		return &ShutdownError{Errors: errs}
	}
	return nil
}

// Store exposes the catalog store, mainly for tests that want to
// assert on state without going through the wire protocol.
func (r *Registry) Store() *catalog.Store { return r.store }

func localIPv4() (net.IP, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, err
	}
	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
			if v4 := ipnet.IP.To4(); v4 != nil {
				return v4, nil
			}
		}
	}
	return net.IPv4(127, 0, 0, 1), nil
}

type statusLoggerAdapter struct{ Logger }
type netsvcLoggerAdapter struct{ Logger }
type announceLoggerAdapter struct{ Logger }
