package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/llmequeue/llmequeue/internal/store"
)

// sweepTimeout bounds a single delete pass against a slow or wedged store.
const sweepTimeout = 30 * time.Second

// SweeperConfig holds configuration for the retention sweeper.
type SweeperConfig struct {
	// Interval is how often a sweep runs.
	Interval time.Duration

	// Retention is how long a task record is kept, regardless of status,
	// measured from its creation time.
	Retention time.Duration
}

// DefaultSweeperConfig returns a SweeperConfig with reasonable defaults.
func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		Interval:  10 * time.Minute,
		Retention: time.Hour,
	}
}

// Sweeper periodically purges task records older than the retention window.
// Abandoned tasks (timed-out synchronous waits nobody polled for, tasks left
// stuck in processing by a crashed worker) would otherwise accumulate
// forever.
type Sweeper struct {
	store  store.TaskStore
	config SweeperConfig
	logger *slog.Logger
	now    func() time.Time

	done chan struct{}
	wg   sync.WaitGroup
}

// NewSweeper creates a new Sweeper. Zero config values fall back to the
// defaults. If logger is nil, a default logger will be used.
func NewSweeper(taskStore store.TaskStore, config SweeperConfig, logger *slog.Logger) *Sweeper {
	if taskStore == nil {
		panic("taskStore cannot be nil")
	}

	defaults := DefaultSweeperConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.Retention <= 0 {
		config.Retention = defaults.Retention
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Sweeper{
		store:  taskStore,
		config: config,
		logger: logger.With(slog.String("component", "retention_sweeper")),
		now:    func() time.Time { return time.Now().UTC() },
		done:   make(chan struct{}),
	}
}

// Start launches the sweep loop in a background goroutine.
func (s *Sweeper) Start() {
	s.wg.Add(1)
	go s.run()

	s.logger.Info("retention sweeper started",
		"interval", s.config.Interval,
		"retention", s.config.Retention)
}

// Stop signals the sweep loop to exit and waits for it to finish. The stop
// signal is observed only between sweep cycles; an in-flight delete always
// runs to completion first.
func (s *Sweeper) Stop() {
	close(s.done)
	s.wg.Wait()
	s.logger.Info("retention sweeper stopped")
}

// run is the sweep loop. A failed sweep is logged and retried on the next
// scheduled tick; nothing short of Stop terminates the loop.
func (s *Sweeper) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep performs one delete pass. It runs on a detached context so that
// shutdown never cancels a delete that has already started.
func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	cutoff := s.now().Add(-s.config.Retention)

	deleted, err := s.store.DeleteCreatedBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error("sweep failed, will retry on next tick", "error", err)
		return
	}

	if deleted > 0 {
		s.logger.Info("purged expired tasks", "count", deleted, "cutoff", cutoff)
	} else {
		s.logger.Debug("sweep found no expired tasks", "cutoff", cutoff)
	}
}
