package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultTickInterval is how often the runner scans schedules.
const DefaultTickInterval = 15 * time.Second

// Runner drives an Evaluator on a fixed cadence.
//
// Ticks never overlap: a tick that comes due while the previous one is
// still dispatching is skipped. Stop waits for the active tick and
// cancels its device commands.
type Runner struct {
	evaluator *Evaluator
	interval  time.Duration
	logger    Logger

	mu      sync.Mutex
	cron    *cron.Cron
	cancel  context.CancelFunc
	started bool
}

// NewRunner creates a runner that ticks every interval. Intervals are
// clamped to between one second and one minute.
func NewRunner(evaluator *Evaluator, interval time.Duration) *Runner {
	switch {
	case interval <= 0:
		interval = DefaultTickInterval
	case interval < time.Second:
		interval = time.Second
	case interval > time.Minute:
		interval = time.Minute
	}
	return &Runner{
		evaluator: evaluator,
		interval:  interval,
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the runner.
func (r *Runner) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	r.logger = logger
}

// Start begins ticking. The context bounds every tick; cancelling it
// abandons in-flight device commands.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return errors.New("schedule runner already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	cl := cronLogger{r.logger}
	c := cron.New(
		cron.WithSeconds(),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	_, err := c.AddFunc(fmt.Sprintf("@every %s", r.interval), func() {
		if _, err := r.evaluator.Tick(runCtx); err != nil {
			r.logger.Debug("schedule tick skipped", "error", err)
		}
	})
	if err != nil {
		cancel()
		return fmt.Errorf("scheduling evaluator: %w", err)
	}

	c.Start()
	r.cron = c
	r.cancel = cancel
	r.started = true
	r.logger.Info("schedule runner started", "interval", r.interval.String())
	return nil
}

// Stop halts ticking, cancels the active tick's commands and waits for
// it to return. It is safe to call more than once.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started {
		return
	}
	done := r.cron.Stop()
	r.cancel()
	<-done.Done()
	r.started = false
	r.logger.Info("schedule runner stopped")
}

// cronLogger adapts Logger to cron.Logger. Cron's chatty info lines go
// to debug.
type cronLogger struct {
	l Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
