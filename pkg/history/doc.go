// Package history records the outcome of evaluation runs.
//
// Every run the engine completes can be turned into a Run record: the run
// ID, the rule set version, the cycles executed, the rules fired in order,
// the terminal reason and any action errors. Records are written
// asynchronously by a Recorder, which plugs into the engine as an
// engine.Observer, so evaluations never wait on storage.
//
// # Storage Backends
//
//   - SQL: sqlx over SQLite (mattn/go-sqlite3 or the pure Go
//     modernc.org/sqlite driver) or PostgreSQL (lib/pq). Queries are
//     named statements embedded from queries/*.sql.
//   - Memory: for tests and short-lived processes.
//
// # Basic Usage
//
//	store, err := history.OpenSQLStore(ctx, &history.SQLConfig{
//	    Driver: history.DriverSQLite,
//	    DSN:    "data/history.db",
//	}, logger)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	rec := history.NewRecorder(store, nil, logger)
//	defer rec.Close()
//	eng := engine.NewEngine(nil, logger).WithObserver(rec)
//
// # Retention
//
// A Pruner deletes runs older than a maximum age and trims the store to a
// maximum number of runs, either on demand or on a cron schedule.
package history
