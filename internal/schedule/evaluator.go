package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-lights/internal/device"
	"github.com/nerrad567/gray-logic-lights/internal/dispatch"
)

// Dispatcher is what the evaluator needs to apply a schedule's action.
type Dispatcher interface {
	ApplyToAll(ctx context.Context, desired device.PowerState) dispatch.BulkResult
}

// Recorder receives schedule firings for time-series storage.
// *influxdb.Client satisfies it.
type Recorder interface {
	WriteScheduleFired(scheduleID int64, action string, total, failed int, firedAt time.Time)
}

// Evaluator decides which schedules are due and fires them.
//
// A schedule is due when it is enabled, its time of day equals the
// current minute in the evaluator's location, and it has not already
// fired at that local date and minute. Missed minutes are never caught up.
//
// Thread Safety: Tick may be called concurrently; overlapping calls are
// rejected with ErrTickInProgress rather than run in parallel.
type Evaluator struct {
	store      *Store
	dispatcher Dispatcher
	clock      Clock
	loc        *time.Location

	scanMu sync.Mutex

	logger   Logger
	metrics  *Metrics
	recorder Recorder
	onFired  func(Schedule, Run)
}

// NewEvaluator creates an evaluator. A nil clock uses the system clock
// and a nil loc uses time.Local.
func NewEvaluator(store *Store, dispatcher Dispatcher, clock Clock, loc *time.Location) *Evaluator {
	if clock == nil {
		clock = SystemClock{}
	}
	if loc == nil {
		loc = time.Local
	}
	return &Evaluator{
		store:      store,
		dispatcher: dispatcher,
		clock:      clock,
		loc:        loc,
		logger:     noopLogger{},
	}
}

// SetLogger sets the logger for the evaluator.
func (e *Evaluator) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	e.logger = logger
}

// SetMetrics sets the Prometheus collectors. Nil disables metrics.
func (e *Evaluator) SetMetrics(m *Metrics) {
	e.metrics = m
}

// SetRecorder sets where firings are written. Nil disables recording.
func (e *Evaluator) SetRecorder(r Recorder) {
	e.recorder = r
}

// SetOnFired registers a callback run after each firing is recorded.
func (e *Evaluator) SetOnFired(fn func(Schedule, Run)) {
	e.onFired = fn
}

// Tick scans the schedules once and fires every due schedule. Due
// schedules dispatch concurrently and are joined before Tick returns.
// It returns how many schedules fired.
//
// Dispatch failures are logged and recorded, never returned. The only
// error is ErrTickInProgress.
func (e *Evaluator) Tick(ctx context.Context) (int, error) {
	if !e.scanMu.TryLock() {
		e.metrics.observeSkipped()
		e.logger.Warn("schedule scan still running, skipping tick")
		return 0, ErrTickInProgress
	}
	defer e.scanMu.Unlock()
	e.metrics.observeTick()

	now := e.clock.Now().In(e.loc)
	minute := now.Truncate(time.Minute)

	var due []Schedule
	for _, sc := range e.store.Enabled(ctx) {
		if !sc.Time.Matches(minute) {
			continue
		}
		if last, ok := sc.LastFired(); ok && sameLocalMinute(last, minute, e.loc) {
			continue
		}
		due = append(due, sc)
	}
	if len(due) == 0 {
		return 0, nil
	}

	// Device commands end with the minute so a slow bulk action cannot
	// hold the scan lock into the next one.
	fireCtx, cancel := context.WithTimeout(ctx, fireBudget(now, minute))
	defer cancel()

	var wg sync.WaitGroup
	for _, sc := range due {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.fire(fireCtx, sc, minute)
		}()
	}
	wg.Wait()
	return len(due), nil
}

// minFireBudget is the least time given to a firing that starts at the
// very end of its minute.
const minFireBudget = 500 * time.Millisecond

// fireBudget is the time left in the matching minute.
func fireBudget(now, minute time.Time) time.Duration {
	left := minute.Add(time.Minute).Sub(now)
	if left < minFireBudget {
		return minFireBudget
	}
	return left
}

// sameLocalMinute compares wall-clock minutes on the local calendar. When
// DST ends the same local minute occurs at two instants, and both count
// as one.
func sameLocalMinute(a, b time.Time, loc *time.Location) bool {
	const layout = "2006-01-02 15:04"
	return a.In(loc).Format(layout) == b.In(loc).Format(layout)
}

func (e *Evaluator) fire(ctx context.Context, sc Schedule, minute time.Time) {
	e.logger.Info("schedule firing", "schedule_id", sc.ID, "time", sc.Time.String(), "action", sc.Action)

	bulk := e.dispatcher.ApplyToAll(ctx, sc.Action.PowerState())

	// Bookkeeping outlives shutdown so a restart in the same minute does not refire.
	writeCtx := context.WithoutCancel(ctx)
	if err := e.store.MarkFired(writeCtx, sc.ID, minute); err != nil {
		e.logger.Error("failed to mark schedule fired", "schedule_id", sc.ID, "error", err)
	}

	failed := bulk.Failed()
	run := Run{
		ScheduleID:    sc.ID,
		FiredAt:       minute,
		Action:        sc.Action,
		Success:       bulk.Success,
		DevicesTotal:  len(bulk.Results),
		DevicesFailed: len(failed),
		FailedDevices: make([]string, 0, len(failed)),
	}
	for _, r := range failed {
		run.FailedDevices = append(run.FailedDevices, r.DeviceID)
	}
	if err := e.store.RecordRun(writeCtx, &run); err != nil {
		e.logger.Warn("failed to record schedule run", "schedule_id", sc.ID, "error", err)
	}

	e.metrics.observeFired(sc.Action, bulk.Success)
	if e.recorder != nil {
		e.recorder.WriteScheduleFired(sc.ID, string(sc.Action), run.DevicesTotal, run.DevicesFailed, minute)
	}

	if err := bulk.Err(); err != nil {
		e.logger.Warn("schedule fired with failures", "schedule_id", sc.ID, "error", err)
	} else {
		e.logger.Info("schedule fired", "schedule_id", sc.ID, "devices", run.DevicesTotal)
	}

	if e.onFired != nil {
		e.onFired(sc, run)
	}
}
