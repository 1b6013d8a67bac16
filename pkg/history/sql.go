package history

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/qustavo/dotsql"
	_ "modernc.org/sqlite"

	"mercator-hq/verdict/pkg/engine"
)

// Supported database drivers.
const (
	// DriverSQLite3 is the cgo SQLite driver (github.com/mattn/go-sqlite3).
	DriverSQLite3 = "sqlite3"

	// DriverSQLite is the pure Go SQLite driver (modernc.org/sqlite).
	DriverSQLite = "sqlite"

	// DriverPostgres is the PostgreSQL driver (github.com/lib/pq).
	DriverPostgres = "postgres"
)

//go:embed queries/*.sql
var queriesFS embed.FS

func init() {
	// sqlx does not know the modernc driver name; it uses ? placeholders.
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// SQLConfig contains configuration for the SQL store.
type SQLConfig struct {
	// Driver is one of DriverSQLite3, DriverSQLite or DriverPostgres.
	Driver string

	// DSN is the driver-specific data source name, a file path for SQLite
	// or a connection URL for PostgreSQL.
	DSN string

	// MaxOpenConns is the maximum number of open connections.
	// Default: 16 (1 for SQLite)
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 4
	MaxIdleConns int

	// ConnMaxLifetime bounds how long a connection is reused.
	// Default: 30 minutes
	ConnMaxLifetime time.Duration
}

// SQLStore implements Store on top of database/sql via sqlx.
type SQLStore struct {
	db     *sqlx.DB
	dot    *dotsql.DotSql
	logger *slog.Logger
}

// runRow is the database representation of a Run.
type runRow struct {
	ID             string `db:"id"`
	RuleSetVersion string `db:"rule_set_version"`
	StartedAt      int64  `db:"started_at"`
	DurationNs     int64  `db:"duration_ns"`
	Cycles         int    `db:"cycles"`
	Terminal       string `db:"terminal"`
	Fired          string `db:"fired"`
	ActionErrors   string `db:"action_errors"`
	Error          string `db:"error"`
}

// OpenSQLStore connects to the database, applies the schema and returns a
// ready store.
func OpenSQLStore(ctx context.Context, config *SQLConfig, logger *slog.Logger) (*SQLStore, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	switch config.Driver {
	case DriverSQLite3, DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver: %q (expected %s, %s or %s)",
			config.Driver, DriverSQLite3, DriverSQLite, DriverPostgres)
	}
	if config.DSN == "" {
		return nil, fmt.Errorf("database DSN cannot be empty")
	}

	db, err := sqlx.Open(config.Driver, config.DSN)
	if err != nil {
		return nil, newStorageError("sql", "open", err)
	}
	configurePool(db, config)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, newStorageError("sql", "ping", err)
	}

	dot, err := loadQueries()
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLStore{
		db:     db,
		dot:    dot,
		logger: logger.With("component", "history.sql", "driver", config.Driver),
	}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Info("history store initialized")
	return s, nil
}

func configurePool(db *sqlx.DB, config *SQLConfig) {
	maxOpen := config.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 16
		if config.Driver != DriverPostgres {
			// A single writer avoids SQLITE_BUSY under concurrent saves.
			maxOpen = 1
		}
	}
	maxIdle := config.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = 4
	}
	lifetime := config.ConnMaxLifetime
	if lifetime <= 0 {
		lifetime = 30 * time.Minute
	}

	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(lifetime)
}

// loadQueries parses the embedded named queries.
func loadQueries() (*dotsql.DotSql, error) {
	var combined strings.Builder
	err := fs.WalkDir(queriesFS, "queries", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".sql") {
			return nil
		}
		content, err := queriesFS.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		combined.Write(content)
		combined.WriteString("\n")
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load query files: %w", err)
	}

	dot, err := dotsql.LoadFromString(combined.String())
	if err != nil {
		return nil, fmt.Errorf("failed to parse queries: %w", err)
	}
	return dot, nil
}

func (s *SQLStore) query(name string) (string, error) {
	q, err := s.dot.Raw(name)
	if err != nil {
		return "", fmt.Errorf("query not found: %s", name)
	}
	return q, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	for _, name := range []string{"create-runs-table", "create-runs-started-at-index", "create-runs-terminal-index"} {
		q, err := s.query(name)
		if err != nil {
			return err
		}
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return newStorageError("sql", name, err)
		}
	}
	return nil
}

// DB returns the underlying connection pool.
func (s *SQLStore) DB() *sqlx.DB {
	return s.db
}

// Save inserts a run.
func (s *SQLStore) Save(ctx context.Context, run *Run) error {
	row, err := toRow(run)
	if err != nil {
		return newStorageError("sql", "save", err)
	}
	q, err := s.query("insert-run")
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, s.db.Rebind(q),
		row.ID, row.RuleSetVersion, row.StartedAt, row.DurationNs, row.Cycles,
		row.Terminal, row.Fired, row.ActionErrors, row.Error,
	)
	if err != nil {
		return newStorageError("sql", "save", err)
	}
	return nil
}

// Get returns the run with the given ID.
func (s *SQLStore) Get(ctx context.Context, id string) (*Run, error) {
	q, err := s.query("get-run")
	if err != nil {
		return nil, err
	}

	var row runRow
	if err := s.db.GetContext(ctx, &row, s.db.Rebind(q), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return nil, newStorageError("sql", "get", err)
	}
	return fromRow(&row)
}

// List returns matching runs, newest first.
func (s *SQLStore) List(ctx context.Context, query *Query) ([]*Run, error) {
	base, err := s.query("select-runs")
	if err != nil {
		return nil, err
	}
	where, args := whereClause(query)

	var sb strings.Builder
	sb.WriteString(strings.TrimRight(strings.TrimSpace(base), ";"))
	sb.WriteString(where)
	sb.WriteString(" ORDER BY started_at DESC, id ASC")
	if query != nil && query.Limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, query.Limit)
	}
	if query != nil && query.Offset > 0 {
		if query.Limit <= 0 {
			// OFFSET requires a LIMIT in SQLite.
			sb.WriteString(" LIMIT ?")
			args = append(args, int64(1<<62))
		}
		sb.WriteString(" OFFSET ?")
		args = append(args, query.Offset)
	}

	var rows []runRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(sb.String()), args...); err != nil {
		return nil, newStorageError("sql", "list", err)
	}

	runs := make([]*Run, 0, len(rows))
	for i := range rows {
		run, err := fromRow(&rows[i])
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// Count returns the number of matching runs.
func (s *SQLStore) Count(ctx context.Context, query *Query) (int64, error) {
	base, err := s.query("count-runs")
	if err != nil {
		return 0, err
	}
	where, args := whereClause(query)

	var n int64
	q := strings.TrimRight(strings.TrimSpace(base), ";") + where
	if err := s.db.GetContext(ctx, &n, s.db.Rebind(q), args...); err != nil {
		return 0, newStorageError("sql", "count", err)
	}
	return n, nil
}

// Delete removes matching runs.
func (s *SQLStore) Delete(ctx context.Context, query *Query) (int64, error) {
	base, err := s.query("delete-runs")
	if err != nil {
		return 0, err
	}
	where, args := whereClause(query)

	q := strings.TrimRight(strings.TrimSpace(base), ";") + where
	res, err := s.db.ExecContext(ctx, s.db.Rebind(q), args...)
	if err != nil {
		return 0, newStorageError("sql", "delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, newStorageError("sql", "delete", err)
	}
	return n, nil
}

// Close closes the connection pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// whereClause builds a WHERE clause with ? placeholders for query.
func whereClause(query *Query) (string, []any) {
	if query == nil {
		return "", nil
	}
	var conds []string
	var args []any
	if query.Since != nil {
		conds = append(conds, "started_at >= ?")
		args = append(args, query.Since.UnixNano())
	}
	if query.Until != nil {
		conds = append(conds, "started_at < ?")
		args = append(args, query.Until.UnixNano())
	}
	if query.Terminal != "" {
		conds = append(conds, "terminal = ?")
		args = append(args, query.Terminal)
	}
	if query.RuleSetVersion != "" {
		conds = append(conds, "rule_set_version = ?")
		args = append(args, query.RuleSetVersion)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func toRow(run *Run) (*runRow, error) {
	fired, err := json.Marshal(run.Fired)
	if err != nil {
		return nil, fmt.Errorf("failed to encode firings: %w", err)
	}
	actionErrors := run.ActionErrors
	if actionErrors == nil {
		actionErrors = []string{}
	}
	errs, err := json.Marshal(actionErrors)
	if err != nil {
		return nil, fmt.Errorf("failed to encode action errors: %w", err)
	}
	return &runRow{
		ID:             run.ID,
		RuleSetVersion: run.RuleSetVersion,
		StartedAt:      run.StartedAt.UnixNano(),
		DurationNs:     int64(run.Duration),
		Cycles:         run.Cycles,
		Terminal:       run.Terminal,
		Fired:          string(fired),
		ActionErrors:   string(errs),
		Error:          run.Error,
	}, nil
}

func fromRow(row *runRow) (*Run, error) {
	run := &Run{
		ID:             row.ID,
		RuleSetVersion: row.RuleSetVersion,
		StartedAt:      time.Unix(0, row.StartedAt).UTC(),
		Duration:       time.Duration(row.DurationNs),
		Cycles:         row.Cycles,
		Terminal:       row.Terminal,
		Fired:          []engine.Firing{},
		Error:          row.Error,
	}
	if err := json.Unmarshal([]byte(row.Fired), &run.Fired); err != nil {
		return nil, newStorageError("sql", "decode", fmt.Errorf("run %s firings: %w", row.ID, err))
	}
	if err := json.Unmarshal([]byte(row.ActionErrors), &run.ActionErrors); err != nil {
		return nil, newStorageError("sql", "decode", fmt.Errorf("run %s action errors: %w", row.ID, err))
	}
	if len(run.ActionErrors) == 0 {
		run.ActionErrors = nil
	}
	return run, nil
}
