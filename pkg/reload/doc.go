// Package reload keeps a compiled rule set current while the engine serves
// evaluations.
//
// A Manager loads rule definitions from a source.Source, compiles them and
// publishes the result through an atomic pointer. Readers call Current and
// never block on a reload. A failed reload leaves the previous rule set in
// place; there is no window in which evaluations see a partial or missing
// rule set.
//
// # Triggers
//
// Reloads are triggered explicitly with Reload, by a FileWatcher reacting to
// fsnotify events on file-backed sources, or by a cron Scheduler that also
// pulls git-backed sources before reloading.
//
//	m, err := reload.NewManager(src, engine.DefaultCompileOptions(), logger)
//	if err := m.Reload(ctx); err != nil {
//	    return err
//	}
//	go m.Watch(ctx, reload.DefaultWatcherConfig())
//
//	report, err := eng.Evaluate(ctx, m.Current(), facts, cfg)
//
// # Listeners
//
// Listeners receive an Event after every reload attempt, successful or
// not. Metrics and audit logging hook in here.
package reload
