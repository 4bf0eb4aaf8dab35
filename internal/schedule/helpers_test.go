package schedule

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-lights/internal/device"
	"github.com/nerrad567/gray-logic-lights/internal/dispatch"
	"github.com/nerrad567/gray-logic-lights/internal/infrastructure/database"
	_ "github.com/nerrad567/gray-logic-lights/migrations"
)

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// openTestDB returns a migrated in-memory database.
func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(database.Config{Path: database.MemoryPath, BusyTimeout: 1})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	if err := db.Migrate(testContext(t)); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return db
}

func newTestStore(t *testing.T) (*Store, *database.DB) {
	t.Helper()
	db := openTestDB(t)
	store := NewStore(NewSQLiteRepository(db.DB))
	if err := store.Refresh(testContext(t)); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	return store, db
}

func mustCreate(t *testing.T, store *Store, tod, action string) Schedule {
	t.Helper()
	sc, err := store.Create(testContext(t), tod, action)
	if err != nil {
		t.Fatalf("Create(%q, %q) error = %v", tod, action, err)
	}
	return sc
}

// fakeClock is a settable Clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// fakeDispatcher records bulk actions. failIDs fail every call; when
// gate is set each call signals arrived and waits for gate to close or
// ctx to end.
type fakeDispatcher struct {
	mu      sync.Mutex
	calls   []device.PowerState
	failIDs []string
	arrived chan struct{}
	gate    chan struct{}
}

func (f *fakeDispatcher) ApplyToAll(ctx context.Context, desired device.PowerState) dispatch.BulkResult {
	f.mu.Lock()
	f.calls = append(f.calls, desired)
	arrived, gate := f.arrived, f.gate
	f.mu.Unlock()

	if arrived != nil {
		arrived <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
		}
	}

	bulk := dispatch.BulkResult{Action: desired.Action(), Desired: desired, Success: true}
	bulk.Results = append(bulk.Results, dispatch.CommandResult{DeviceID: "ok", Desired: desired, Success: true})
	for _, id := range f.failIDs {
		bulk.Success = false
		bulk.Results = append(bulk.Results, dispatch.CommandResult{
			DeviceID: id, Name: id, Desired: desired, Error: "connection refused",
		})
	}
	return bulk
}

func (f *fakeDispatcher) Calls() []device.PowerState {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]device.PowerState, len(f.calls))
	copy(out, f.calls)
	return out
}

// at returns the given wall-clock time on a fixed day in loc.
func at(loc *time.Location, day, hour, minute, sec int) time.Time {
	return time.Date(2026, time.March, day, hour, minute, sec, 0, loc)
}
