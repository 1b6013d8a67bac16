package history

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"mercator-hq/verdict/pkg/engine"
)

func TestExportJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := ExportJSON(&buf, []*Run{testRun("a", 0, engine.Idle)}, false); err != nil {
		t.Fatalf("ExportJSON() error = %v", err)
	}

	var decoded []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not a JSON array: %v", err)
	}
	if len(decoded) != 1 || decoded[0]["id"] != "a" || decoded[0]["terminal"] != "idle" {
		t.Errorf("decoded = %v", decoded)
	}

	buf.Reset()
	if err := ExportJSON(&buf, nil, false); err != nil {
		t.Fatalf("ExportJSON(nil) error = %v", err)
	}
	if got := strings.TrimSpace(buf.String()); got != "[]" {
		t.Errorf("ExportJSON(nil) = %q, want []", got)
	}
}

func TestExportCSV(t *testing.T) {
	run := testRun("a", 0, engine.CycleLimitReached)
	run.ActionErrors = []string{"x", "y"}

	var buf bytes.Buffer
	if err := ExportCSV(&buf, []*Run{run}, true); err != nil {
		t.Fatalf("ExportCSV() error = %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("output is not CSV: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	row := rows[1]
	if row[0] != "a" || row[1] != baseTime.Format(time.RFC3339Nano) || row[2] != "3" {
		t.Errorf("row = %v", row)
	}
	if row[6] != "adult;can-vote" || row[7] != "2" {
		t.Errorf("fired/errors columns = %q, %q", row[6], row[7])
	}
}

func TestExport_UnknownFormat(t *testing.T) {
	if err := Export(&bytes.Buffer{}, nil, "xml"); err == nil {
		t.Error("Export() error = nil, want error for xml")
	}
}
