package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mercator-hq/verdict/pkg/engine"
	"mercator-hq/verdict/pkg/history"
	"mercator-hq/verdict/pkg/telemetry/logging"
)

func resetHistoryFlags() {
	historyFlags.driver = ""
	historyFlags.dsn = ""
	historyFlags.since = ""
	historyFlags.until = ""
	historyFlags.terminal = ""
	historyFlags.version = ""
	historyFlags.limit = 0
	historyFlags.offset = 0
	historyFlags.format = "text"
	historyFlags.maxAge = 0
	historyFlags.maxRuns = 0
	historyFlags.output = ""
}

// seedHistory stores runs started one hour apart, the newest first, and
// points the history flags at the store.
func seedHistory(t *testing.T, now time.Time, terminals ...engine.TerminalReason) {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "history.db")

	store, err := history.OpenSQLStore(context.Background(), &history.SQLConfig{
		Driver: history.DriverSQLite,
		DSN:    dsn,
	}, logging.Discard())
	if err != nil {
		t.Fatalf("OpenSQLStore() error = %v", err)
	}
	defer store.Close()

	for i, terminal := range terminals {
		report := &engine.Report{
			RunID:          fmt.Sprintf("run-%d", i),
			RuleSetVersion: "v1",
			StartedAt:      now.Add(-time.Duration(i) * time.Hour),
			Cycles:         1,
			Terminal:       terminal,
			Fired:          []engine.Firing{{Rule: "adult", Cycle: 1, ActionsExecuted: 1}},
		}
		if err := store.Save(context.Background(), history.NewRun(report, nil)); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	useConfig(t, "")
	resetHistoryFlags()
	historyFlags.driver = history.DriverSQLite
	historyFlags.dsn = dsn
}

func TestListHistory(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name      string
		setup     func()
		wantIDs   []string
		wantTotal int64
	}{
		{
			name:      "all runs newest first",
			wantIDs:   []string{"run-0", "run-1", "run-2"},
			wantTotal: 3,
		},
		{
			name:      "terminal filter",
			setup:     func() { historyFlags.terminal = string(engine.CycleLimitReached) },
			wantIDs:   []string{"run-1"},
			wantTotal: 1,
		},
		{
			name:      "since duration",
			setup:     func() { historyFlags.since = "90m" },
			wantIDs:   []string{"run-0", "run-1"},
			wantTotal: 2,
		},
		{
			name:      "limit and offset",
			setup:     func() { historyFlags.limit = 1; historyFlags.offset = 1 },
			wantIDs:   []string{"run-1"},
			wantTotal: 3,
		},
		{
			name:      "unknown version",
			setup:     func() { historyFlags.version = "v2" },
			wantIDs:   []string{},
			wantTotal: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seedHistory(t, now, engine.Idle, engine.CycleLimitReached, engine.Idle)
			historyFlags.format = "json"
			if tt.setup != nil {
				tt.setup()
			}

			cmd, out := testCommand("")
			if err := listHistory(cmd, nil); err != nil {
				t.Fatalf("listHistory() error = %v", err)
			}

			var list RunList
			if err := json.Unmarshal(out.Bytes(), &list); err != nil {
				t.Fatalf("output is not JSON: %v\n%s", err, out.String())
			}
			if list.Total != tt.wantTotal {
				t.Errorf("Total = %d, want %d", list.Total, tt.wantTotal)
			}
			ids := make([]string, len(list.Runs))
			for i, run := range list.Runs {
				ids[i] = run.ID
			}
			if strings.Join(ids, ",") != strings.Join(tt.wantIDs, ",") {
				t.Errorf("run IDs = %v, want %v", ids, tt.wantIDs)
			}
		})
	}
}

func TestListHistory_Text(t *testing.T) {
	seedHistory(t, time.Now(), engine.Idle)

	cmd, out := testCommand("")
	if err := listHistory(cmd, nil); err != nil {
		t.Fatalf("listHistory() error = %v", err)
	}
	for _, want := range []string{"RUN ID", "run-0", "idle", "1 of 1 run(s)"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestShowHistory(t *testing.T) {
	seedHistory(t, time.Now(), engine.Idle)

	cmd, out := testCommand("")
	if err := showHistory(cmd, []string{"run-0"}); err != nil {
		t.Fatalf("showHistory() error = %v", err)
	}
	if !strings.Contains(out.String(), "cycle 1: adult") {
		t.Errorf("output missing firing:\n%s", out.String())
	}

	cmd, _ = testCommand("")
	if err := showHistory(cmd, []string{"missing"}); err == nil {
		t.Error("showHistory(missing) error = nil, want error")
	}
}

func TestPruneHistory(t *testing.T) {
	seedHistory(t, time.Now(), engine.Idle, engine.Idle, engine.Idle, engine.Idle)

	cmd, out := testCommand("")
	cmd.Flags().Int64Var(&historyFlags.maxRuns, "max-runs", 0, "")
	cmd.Flags().DurationVar(&historyFlags.maxAge, "max-age", 0, "")
	if err := cmd.Flags().Set("max-runs", "2"); err != nil {
		t.Fatal(err)
	}
	if err := cmd.Flags().Set("max-age", "0s"); err != nil {
		t.Fatal(err)
	}

	if err := pruneHistory(cmd, nil); err != nil {
		t.Fatalf("pruneHistory() error = %v", err)
	}
	if !strings.Contains(out.String(), "Deleted 2 run(s), 2 remaining") {
		t.Errorf("output = %q, want 2 deleted and 2 remaining", out.String())
	}
}

func TestExportHistory(t *testing.T) {
	seedHistory(t, time.Now(), engine.Idle, engine.CycleLimitReached)
	historyFlags.format = history.FormatCSV
	historyFlags.output = filepath.Join(t.TempDir(), "runs.csv")

	cmd, _ := testCommand("")
	if err := exportHistory(cmd, nil); err != nil {
		t.Fatalf("exportHistory() error = %v", err)
	}

	data, err := os.ReadFile(historyFlags.output)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("export is not CSV: %v", err)
	}
	if len(records) != 3 {
		t.Errorf("len(records) = %d, want header plus 2 rows", len(records))
	}
}

func TestExportHistory_InvalidFormat(t *testing.T) {
	resetHistoryFlags()
	historyFlags.format = "xml"

	cmd, _ := testCommand("")
	if err := exportHistory(cmd, nil); err == nil {
		t.Error("exportHistory() error = nil, want error")
	}
}

func TestWithHistoryStore_MemoryDriver(t *testing.T) {
	useConfig(t, "")
	resetHistoryFlags()
	historyFlags.driver = "memory"

	cmd, _ := testCommand("")
	if err := listHistory(cmd, nil); err == nil {
		t.Error("listHistory() with memory driver error = nil, want error")
	}
}

func TestParseTimeFlag(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		value   string
		want    time.Time
		wantErr bool
	}{
		{value: "2026-02-01T00:00:00Z", want: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)},
		{value: "24h", want: now.Add(-24 * time.Hour)},
		{value: "90m", want: now.Add(-90 * time.Minute)},
		{value: "-1h", wantErr: true},
		{value: "yesterday", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			got, err := parseTimeFlag(tt.value, now)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseTimeFlag(%q) error = %v, wantErr %v", tt.value, err, tt.wantErr)
			}
			if !tt.wantErr && !got.Equal(tt.want) {
				t.Errorf("parseTimeFlag(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestHistoryQuery_NegativeLimit(t *testing.T) {
	resetHistoryFlags()
	historyFlags.limit = -1

	if _, err := historyQuery(time.Now()); err == nil {
		t.Error("historyQuery() error = nil, want error")
	}
}
