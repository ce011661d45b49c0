package weft

import (
	"time"

	"github.com/rs/zerolog"
)

// Config contains all configuration options for a Scheduler. Construct one
// implicitly through New and the With* options.
type Config struct {
	// WorkerThreadCount is the number of dedicated worker threads to spawn
	// at construction. 0 leaves the scheduler in single-threaded mode;
	// SetWorkerThreadCount can still be called before any task is enqueued.
	WorkerThreadCount int

	// ThreadInitializer is run at the start of each worker thread, before
	// the thread's run loop.
	ThreadInitializer func()

	// Affinity maps a worker thread id to the logical CPUs it may run on.
	// nil disables affinity. On platforms without affinity control the
	// returned set is ignored.
	Affinity AffinityPolicy

	// SpinDuration bounds how long an idle worker spins, probing for new
	// and stealable work, before parking. Defaults to 1ms.
	SpinDuration time.Duration

	// PanicHandler is called when a task panics. If nil, the panic is
	// logged and re-raised, terminating the process.
	PanicHandler func(any)

	// Logger receives scheduler diagnostics. Defaults to a no-op logger.
	Logger zerolog.Logger
}

func defaultConfig() Config {
	return Config{
		SpinDuration: time.Millisecond,
		Logger:       zerolog.Nop(),
	}
}

func (c *Config) validate() error {
	if c.WorkerThreadCount < 0 {
		return errInvalidConfig("WorkerThreadCount must be >= 0")
	}
	if c.SpinDuration < 0 {
		return errInvalidConfig("SpinDuration must be >= 0")
	}
	return nil
}
