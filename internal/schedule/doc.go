// Package schedule stores daily on/off schedules and fires them.
//
// The Store persists schedules through a Repository (SQLite in
// production) and serves reads from a cache. The Evaluator compares the
// enabled schedules against the current minute and hands due ones to
// the dispatcher, firing each at most once per matching minute. The
// Runner ticks the Evaluator on a fixed cadence with robfig/cron.
//
// Usage:
//
//	store := schedule.NewStore(schedule.NewSQLiteRepository(db.DB))
//	if err := store.Refresh(ctx); err != nil {
//	    return err
//	}
//	eval := schedule.NewEvaluator(store, dispatcher, schedule.SystemClock{}, loc)
//	runner := schedule.NewRunner(eval, 15*time.Second)
//	runner.Start(ctx)
//	defer runner.Stop()
package schedule
