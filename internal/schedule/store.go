package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Logger defines the logging interface used by the schedule package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Change kinds passed to the store's change callback.
const (
	ChangeCreated = "created"
	ChangeDeleted = "deleted"
	ChangeToggled = "toggled"
)

// Store owns the schedule set. It wraps a Repository with an in-memory
// cache kept in creation order.
//
// Mutations are serialised by a single writer lock and reach the cache
// only after the repository write has committed. Reads are served from
// the cache.
//
// All public methods are thread-safe.
type Store struct {
	repo Repository

	writeMu sync.Mutex

	mu    sync.RWMutex
	order []int64
	byID  map[int64]*Schedule

	logger   Logger
	onChange func(kind string, s Schedule)
	now      func() time.Time
}

// NewStore creates a store over repo. Call Refresh before use.
func NewStore(repo Repository) *Store {
	return &Store{
		repo:   repo,
		byID:   make(map[int64]*Schedule),
		logger: noopLogger{},
		now:    time.Now,
	}
}

// SetLogger sets the logger for the store.
func (s *Store) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	s.logger = logger
}

// SetOnChange registers a callback run after a create, delete or toggle
// has been persisted.
func (s *Store) SetOnChange(fn func(kind string, sched Schedule)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Refresh reloads every schedule from the repository into the cache.
// This should be called on application startup.
func (s *Store) Refresh(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	schedules, err := s.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading schedules: %w", err)
	}

	s.mu.Lock()
	s.order = make([]int64, 0, len(schedules))
	s.byID = make(map[int64]*Schedule, len(schedules))
	for i := range schedules {
		sc := schedules[i]
		s.order = append(s.order, sc.ID)
		s.byID[sc.ID] = &sc
	}
	s.mu.Unlock()

	s.logger.Info("schedule cache refreshed", "count", len(schedules))
	return nil
}

// List returns every schedule in creation order.
func (s *Store) List(_ context.Context) []Schedule {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Schedule, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.byID[id])
	}
	return out
}

// Enabled returns a snapshot of the enabled schedules in creation order.
func (s *Store) Enabled(_ context.Context) []Schedule {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Schedule
	for _, id := range s.order {
		if sc := s.byID[id]; sc.Enabled {
			out = append(out, *sc)
		}
	}
	return out
}

// Get returns one schedule.
func (s *Store) Get(_ context.Context, id int64) (Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sc, ok := s.byID[id]
	if !ok {
		return Schedule{}, ErrNotFound
	}
	return *sc, nil
}

// Create validates the input, persists a new enabled schedule and
// returns it. Invalid input leaves the store unchanged.
func (s *Store) Create(ctx context.Context, timeOfDay, action string) (Schedule, error) {
	tod, err := ParseTimeOfDay(timeOfDay)
	if err != nil {
		return Schedule{}, err
	}
	act, err := ParseAction(action)
	if err != nil {
		return Schedule{}, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	sc := Schedule{
		Time:      tod,
		Action:    act,
		Enabled:   true,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.Create(ctx, &sc); err != nil {
		return Schedule{}, err
	}

	s.mu.Lock()
	stored := sc
	s.byID[sc.ID] = &stored
	s.order = append(s.order, sc.ID)
	s.mu.Unlock()

	s.logger.Info("schedule created", "schedule_id", sc.ID, "time", sc.Time.String(), "action", sc.Action)
	s.notify(ChangeCreated, sc)
	return sc, nil
}

// Delete removes a schedule. It stops being evaluated as soon as this returns.
func (s *Store) Delete(ctx context.Context, id int64) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	sc, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.byID, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	s.logger.Info("schedule deleted", "schedule_id", id)
	s.notify(ChangeDeleted, sc)
	return nil
}

// ToggleEnabled flips a schedule's enabled flag and returns the updated record.
func (s *Store) ToggleEnabled(ctx context.Context, id int64) (Schedule, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	sc, err := s.Get(ctx, id)
	if err != nil {
		return Schedule{}, err
	}
	sc.Enabled = !sc.Enabled
	if err := s.repo.SetEnabled(ctx, id, sc.Enabled); err != nil {
		return Schedule{}, err
	}

	s.mu.Lock()
	if cached, ok := s.byID[id]; ok {
		cached.Enabled = sc.Enabled
	}
	s.mu.Unlock()

	s.logger.Info("schedule toggled", "schedule_id", id, "enabled", sc.Enabled)
	s.notify(ChangeToggled, sc)
	return sc, nil
}

// MarkFired records that a schedule fired in the given minute. The
// cache is updated even if the write fails so the schedule cannot fire
// twice in the same minute while the process is running.
func (s *Store) MarkFired(ctx context.Context, id int64, minute time.Time) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	cached, ok := s.byID[id]
	if ok {
		cached.lastFired = minute
	}
	s.mu.Unlock()
	if !ok {
		return ErrNotFound
	}

	if err := s.repo.SetLastFired(ctx, id, minute); err != nil {
		return fmt.Errorf("persisting last fired minute: %w", err)
	}
	return nil
}

// RecordRun stores a run record for a schedule.
func (s *Store) RecordRun(ctx context.Context, run *Run) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.Get(ctx, run.ScheduleID); err != nil {
		return err
	}
	return s.repo.CreateRun(ctx, run)
}

// ListRuns returns recent runs of a schedule, newest first.
func (s *Store) ListRuns(ctx context.Context, id int64, limit int) ([]Run, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListRuns(ctx, id, limit)
}

func (s *Store) notify(kind string, sc Schedule) {
	s.mu.RLock()
	fn := s.onChange
	s.mu.RUnlock()
	if fn != nil {
		fn(kind, sc)
	}
}
