package weft

import (
	"time"

	"github.com/rs/zerolog"
)

// Option configures a Scheduler at construction.
type Option func(*Config)

// WithWorkerThreadCount spawns n dedicated worker threads at construction.
func WithWorkerThreadCount(n int) Option {
	return func(c *Config) {
		c.WorkerThreadCount = n
	}
}

// WithThreadInitializer runs fn at the start of each worker thread.
func WithThreadInitializer(fn func()) Option {
	return func(c *Config) {
		c.ThreadInitializer = fn
	}
}

// WithAffinity sets the worker thread CPU affinity policy.
func WithAffinity(policy AffinityPolicy) Option {
	return func(c *Config) {
		c.Affinity = policy
	}
}

// WithSpinDuration bounds how long an idle worker spins before parking.
func WithSpinDuration(d time.Duration) Option {
	return func(c *Config) {
		c.SpinDuration = d
	}
}

// WithPanicHandler installs a handler for panicking tasks. Without one a
// task panic terminates the process.
func WithPanicHandler(fn func(any)) Option {
	return func(c *Config) {
		c.PanicHandler = fn
	}
}

// WithLogger directs scheduler diagnostics to logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}
