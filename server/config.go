// File: server/config.go
//
// Config/DefaultConfig/ServerOption follow the teacher's facade.Config and
// server.Config shape (immutable-once-built configuration plus functional
// options), adapted from a WebSocket gateway's tunables to a FIX gateway's:
// ring buffer capacity and worker count replace IOBufferSize/ChannelCapacity,
// matching the source's BUFSIZE and hardware_concurrency() constants.
package server

import (
	"runtime"
	"time"
)

// DefaultRingCapacity is the per-connection ring buffer size, matching the
// source's BUFSIZE constant.
const DefaultRingCapacity = 1 << 20

// Config holds the gateway's startup configuration. Once passed to New, it
// is not mutated; runtime introspection of its effective values goes
// through control.ConfigStore instead (see api.Control.GetConfig).
type Config struct {
	ListenAddr      string        // TCP bind address, e.g. ":8080"
	Workers         int           // worker goroutine count; <=0 means runtime.NumCPU()
	RingCapacity    int           // per-connection ring buffer size in bytes
	CPUAffinity     bool          // pin each worker to a CPU via the affinity package
	ShutdownTimeout time.Duration // bound on Shutdown's wait for workers to drain
}

// DefaultConfig returns the gateway's compile-time defaults.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:      ":8080",
		Workers:         runtime.NumCPU(),
		RingCapacity:    DefaultRingCapacity,
		CPUAffinity:     true,
		ShutdownTimeout: 30 * time.Second,
	}
}

// ServerOption customizes a Config produced by DefaultConfig before New
// builds a Server from it.
type ServerOption func(*Config)

// WithListenAddr overrides the TCP bind address.
func WithListenAddr(addr string) ServerOption {
	return func(c *Config) { c.ListenAddr = addr }
}

// WithWorkers overrides the worker goroutine count.
func WithWorkers(n int) ServerOption {
	return func(c *Config) { c.Workers = n }
}

// WithRingCapacity overrides the per-connection ring buffer size.
func WithRingCapacity(capacity int) ServerOption {
	return func(c *Config) { c.RingCapacity = capacity }
}

// WithCPUAffinity enables or disables worker CPU pinning.
func WithCPUAffinity(enabled bool) ServerOption {
	return func(c *Config) { c.CPUAffinity = enabled }
}

// WithShutdownTimeout overrides the graceful shutdown bound.
func WithShutdownTimeout(d time.Duration) ServerOption {
	return func(c *Config) { c.ShutdownTimeout = d }
}
