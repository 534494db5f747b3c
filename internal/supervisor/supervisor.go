// Package supervisor wires the entity adapter, destination updater, and
// MITM relay into one restart group: all three run concurrently, and if
// any one exits the rest are canceled, the group pauses, and all three
// are started fresh.
//
// Components are a fixed set of in-process goroutines behind a uniform
// Run(ctx) error contract, restarted with bounded attempts and a fixed
// backoff between rounds.
package supervisor

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const (
	defaultRestartDelay = 5 * time.Second
	defaultMaxRestarts  = 10
)

// Logger is the subset of structured-logging methods the supervisor
// needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Component is one of the restart group's members: a name for logging
// and a blocking Run that returns when it fails or ctx is canceled.
type Component struct {
	Name string
	Run  func(ctx context.Context) error
}

// Config tunes the supervisor's restart behavior.
type Config struct {
	// RestartDelay is the pause between a failure and the next
	// restart attempt. Default: 5s.
	RestartDelay time.Duration

	// MaxRestarts bounds how many times the whole group may be
	// restarted before Run gives up. Default: 10.
	MaxRestarts int
}

// Supervisor runs a fixed set of components as one restart group.
type Supervisor struct {
	cfg        Config
	log        Logger
	components []Component
}

// New builds a Supervisor over components, applying Config defaults for
// zero values.
func New(cfg Config, log Logger, components ...Component) *Supervisor {
	if cfg.RestartDelay == 0 {
		cfg.RestartDelay = defaultRestartDelay
	}
	if cfg.MaxRestarts == 0 {
		cfg.MaxRestarts = defaultMaxRestarts
	}
	return &Supervisor{cfg: cfg, log: log, components: components}
}

type taskResult struct {
	name string
	err  error
}

// Run starts every component concurrently. If one exits (for any reason,
// including a nil error — a component is not expected to return on its
// own), the rest are canceled, the group waits RestartDelay, and all
// components are started again. Run returns ErrRestartsExhausted after
// MaxRestarts such cycles, or ctx.Err() if ctx is canceled first.
func (s *Supervisor) Run(ctx context.Context) error {
	restarts := 0
	for {
		if err := s.runOnce(ctx); err != nil {
			return err
		}

		restarts++
		if restarts > s.cfg.MaxRestarts {
			return fmt.Errorf("%w: %d restarts", ErrRestartsExhausted, restarts)
		}

		s.log.Warn("supervisor: restarting component group", "attempt", restarts, "delay", s.cfg.RestartDelay)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.cfg.RestartDelay):
		}
	}
}

// runOnce starts every component and returns when the first one exits,
// after canceling and waiting for the rest. It returns a non-nil error
// only when ctx itself ended the run (the caller should stop retrying);
// an ordinary component failure returns nil so Run proceeds to restart.
func (s *Supervisor) runOnce(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan taskResult, len(s.components))
	var wg sync.WaitGroup
	for _, c := range s.components {
		wg.Add(1)
		go func(c Component) {
			defer wg.Done()
			err := c.Run(runCtx)
			select {
			case results <- taskResult{name: c.Name, err: err}:
			case <-runCtx.Done():
			}
		}(c)
	}

	select {
	case first := <-results:
		s.log.Error("supervisor: component exited", "component", first.name, "error", first.err)
		cancel()
		wg.Wait()
		return nil
	case <-ctx.Done():
		cancel()
		wg.Wait()
		return ctx.Err()
	}
}
