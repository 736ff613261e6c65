// Package config holds the Registry's runtime configuration, adapted
// from coreengine/config/core_config.go's struct + DefaultXConfig() +
// JSON-tag convention — generalized from orchestration tuning knobs to
// the Registry's network and housekeeping knobs.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// EnvOverrideVar names the environment variable that supplies the
// config file path when the --config flag is not given; an explicit
// --config value takes precedence (see ResolvePath).
const EnvOverrideVar = "NIMO_REGISTRY_CONFIG"

// RegistryConfig configures one Registry process.
type RegistryConfig struct {
	// CommandPort is the TCP port the command protocol listens on.
	CommandPort int `json:"command_port"`
	// StatusMulticastAddr is the status-event multicast group:port.
	StatusMulticastAddr string `json:"status_multicast_addr"`
	// AdvertiseInstanceName overrides the mDNS instance name; empty
	// means use the OS hostname.
	AdvertiseInstanceName string `json:"advertise_instance_name"`
	// StartupProbeTimeoutMs bounds the duplicate-Registry mDNS probe
	// performed before binding (spec.md §4.I).
	StartupProbeTimeoutMs int `json:"startup_probe_timeout_ms"`
	// ShutdownTimeoutMs bounds graceful shutdown.
	ShutdownTimeoutMs int `json:"shutdown_timeout_ms"`
	// StatsIntervalMs is how often catalog stats are sampled into
	// Prometheus gauges (coreengine's CleanupConfig.Interval idiom).
	StatsIntervalMs int `json:"stats_interval_ms"`
	// Verbose enables debug-level logging (the --log flag).
	Verbose bool `json:"verbose"`
	// OTLPEndpoint, if non-empty, enables OpenTelemetry tracing export.
	OTLPEndpoint string `json:"otlp_endpoint"`
}

// DefaultRegistryConfig returns a RegistryConfig with spec.md's
// documented defaults.
func DefaultRegistryConfig() *RegistryConfig {
	return &RegistryConfig{
		CommandPort:           40000,
		StatusMulticastAddr:   "239.17.12.1:9999",
		AdvertiseInstanceName: "",
		StartupProbeTimeoutMs: 1000,
		ShutdownTimeoutMs:     2000,
		StatsIntervalMs:       5000,
		Verbose:               false,
		OTLPEndpoint:          "",
	}
}

// StartupProbeTimeout returns StartupProbeTimeoutMs as a Duration.
func (c *RegistryConfig) StartupProbeTimeout() time.Duration {
	return time.Duration(c.StartupProbeTimeoutMs) * time.Millisecond
}

// ShutdownTimeout returns ShutdownTimeoutMs as a Duration.
func (c *RegistryConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutMs) * time.Millisecond
}

// StatsInterval returns StatsIntervalMs as a Duration.
func (c *RegistryConfig) StatsInterval() time.Duration {
	return time.Duration(c.StatsIntervalMs) * time.Millisecond
}

// Load reads a RegistryConfig from a JSON file at path, applied on top
// of DefaultRegistryConfig so a partial file only overrides what it
// names — mirrors CoreConfigFromMap's "unknown/missing keys keep the
// default" behavior, but via json.Unmarshal into the already-defaulted
// struct rather than a hand-rolled field-by-field map walk.
func Load(path string) (*RegistryConfig, error) {
	cfg := DefaultRegistryConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// ResolvePath returns the config file path to load: the explicit flag
// value if non-empty, otherwise NIMO_REGISTRY_CONFIG, otherwise "" (use
// defaults), per spec.md §6.
func ResolvePath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv(EnvOverrideVar)
}
