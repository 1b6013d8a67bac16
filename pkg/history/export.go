package history

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Export formats.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// Export writes runs to w in the given format.
func Export(w io.Writer, runs []*Run, format string) error {
	switch format {
	case FormatJSON, "":
		return ExportJSON(w, runs, true)
	case FormatCSV:
		return ExportCSV(w, runs, true)
	default:
		return fmt.Errorf("unsupported export format %q (expected %s or %s)", format, FormatJSON, FormatCSV)
	}
}

// ExportJSON writes runs as a JSON array.
func ExportJSON(w io.Writer, runs []*Run, pretty bool) error {
	if runs == nil {
		runs = []*Run{}
	}
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(runs); err != nil {
		return fmt.Errorf("failed to export %d runs as json: %w", len(runs), err)
	}
	return nil
}

var csvHeader = []string{
	"id", "started_at", "duration_ms", "rule_set_version", "cycles",
	"terminal", "fired_rules", "action_errors", "error",
}

// ExportCSV writes one row per run. Fired rule names are joined with ';'.
func ExportCSV(w io.Writer, runs []*Run, includeHeader bool) error {
	writer := csv.NewWriter(w)

	if includeHeader {
		if err := writer.Write(csvHeader); err != nil {
			return fmt.Errorf("failed to export runs as csv: %w", err)
		}
	}
	for _, run := range runs {
		row := []string{
			run.ID,
			run.StartedAt.Format(time.RFC3339Nano),
			strconv.FormatInt(run.Duration.Milliseconds(), 10),
			run.RuleSetVersion,
			strconv.Itoa(run.Cycles),
			run.Terminal,
			strings.Join(run.FiredRules(), ";"),
			strconv.Itoa(len(run.ActionErrors)),
			run.Error,
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to export runs as csv: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}
