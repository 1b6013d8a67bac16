package main

import (
	"bufio"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"mercator-hq/verdict/pkg/cli"
)

func resetRunFlags() {
	runFlags.input = "-"
	runFlags.listen = ""
	runFlags.keepAlive = false
	runFlags.dryRun = false
}

type lineOutput struct {
	Line   int `json:"line"`
	Report *struct {
		Terminal string `json:"terminal"`
	} `json:"report"`
	Facts map[string]any `json:"facts"`
	Error string         `json:"error"`
}

func decodeLines(t *testing.T, out string) []lineOutput {
	t.Helper()
	var lines []lineOutput
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		var l lineOutput
		if err := json.Unmarshal(scanner.Bytes(), &l); err != nil {
			t.Fatalf("output line is not JSON: %v\n%s", err, scanner.Text())
		}
		lines = append(lines, l)
	}
	return lines
}

func TestRunEngine_Stream(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "rules.yaml", adultRules)

	useConfig(t, "rules:\n  path: "+dir+"\n")
	resetRunFlags()

	input := strings.Join([]string{
		`{"age": 30}`,
		``,
		`{"age": 10}`,
		`{"age": `,
		`{"age": 18}`,
	}, "\n")

	cmd, out := testCommand(input)
	if err := runEngine(cmd, nil); err != nil {
		t.Fatalf("runEngine() error = %v", err)
	}

	lines := decodeLines(t, out.String())
	if len(lines) != 4 {
		t.Fatalf("got %d result lines, want 4:\n%s", len(lines), out.String())
	}

	tests := []struct {
		line     int
		wantTags bool
		wantErr  bool
	}{
		{line: 1, wantTags: true},
		{line: 3},
		{line: 4, wantErr: true},
		{line: 5, wantTags: true},
	}
	for i, tt := range tests {
		got := lines[i]
		if got.Line != tt.line {
			t.Errorf("result %d: Line = %d, want %d", i, got.Line, tt.line)
		}
		if (got.Error != "") != tt.wantErr {
			t.Errorf("line %d: Error = %q, wantErr %v", tt.line, got.Error, tt.wantErr)
		}
		if tt.wantErr {
			if got.Report != nil {
				t.Errorf("line %d: malformed input has a report", tt.line)
			}
			continue
		}
		if got.Report == nil || got.Report.Terminal != "idle" {
			t.Errorf("line %d: report = %+v, want idle terminal", tt.line, got.Report)
		}
		if _, tagged := got.Facts["tags"]; tagged != tt.wantTags {
			t.Errorf("line %d: tagged = %v, want %v", tt.line, tagged, tt.wantTags)
		}
	}
}

func TestRunEngine_InputFileWithHistory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "rules.yaml", adultRules)
	input := writeFile(t, t.TempDir(), "facts.jsonl", "{\"age\": 30}\n{\"age\": 40}\n")
	dsn := filepath.Join(t.TempDir(), "history.db")

	useConfig(t, "rules:\n  path: "+dir+"\nhistory:\n  enabled: true\n  driver: sqlite\n  dsn: "+dsn+"\n")
	resetRunFlags()
	runFlags.input = input

	cmd, out := testCommand("")
	if err := runEngine(cmd, nil); err != nil {
		t.Fatalf("runEngine() error = %v", err)
	}
	if got := len(decodeLines(t, out.String())); got != 2 {
		t.Errorf("got %d result lines, want 2", got)
	}

	resetHistoryFlags()
	historyFlags.format = "json"
	listCmd, listOut := testCommand("")
	if err := listHistory(listCmd, nil); err != nil {
		t.Fatalf("listHistory() error = %v", err)
	}
	var list RunList
	if err := json.Unmarshal(listOut.Bytes(), &list); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if list.Total != 2 {
		t.Errorf("recorded runs = %d, want 2", list.Total)
	}
}

func TestRunEngine_DryRun(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "rules.yaml", adultRules)

	useConfig(t, "rules:\n  path: "+dir+"\n")
	resetRunFlags()
	runFlags.dryRun = true

	cmd, out := testCommand("")
	if err := runEngine(cmd, nil); err != nil {
		t.Fatalf("runEngine() error = %v", err)
	}
	if !strings.Contains(out.String(), "(1 rules)") {
		t.Errorf("output = %q, want rule count", out.String())
	}
}

func TestRunEngine_StartupFailures(t *testing.T) {
	tests := []struct {
		name   string
		rules  string
		config func(dir string) string
	}{
		{
			name:  "unparseable rules",
			rules: "rules: [\n",
		},
		{
			name: "rules fail to compile",
			rules: `
rules:
  - name: adult
    condition: {attr: age, op: gte, value: true}
    actions: [{type: tag, params: {value: adult}}]
`,
		},
		{
			name:  "history store cannot open",
			rules: adultRules,
			config: func(dir string) string {
				return "history:\n  enabled: true\n  driver: sqlite\n  dsn: " +
					filepath.Join(dir, "missing", "history.db") + "\n"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, "rules.yaml", tt.rules)

			extra := "rules:\n  path: " + dir + "\n"
			if tt.config != nil {
				extra += tt.config(dir)
			}
			useConfig(t, extra)
			resetRunFlags()

			cmd, _ := testCommand("")
			var err error
			func() {
				defer func() {
					if r := recover(); r != nil {
						t.Fatalf("runEngine() panicked: %v", r)
					}
				}()
				err = runEngine(cmd, nil)
			}()
			if err == nil {
				t.Fatal("runEngine() error = nil, want startup error")
			}
			if code := cli.ExitCode(err); code == cli.ExitOK {
				t.Errorf("ExitCode() = %d, want non-zero", code)
			}
		})
	}
}

func TestRunEngine_MissingInput(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "rules.yaml", adultRules)

	useConfig(t, "rules:\n  path: "+dir+"\n")
	resetRunFlags()
	runFlags.input = filepath.Join(dir, "missing.jsonl")

	cmd, _ := testCommand("")
	if err := runEngine(cmd, nil); err == nil {
		t.Error("runEngine() error = nil, want error")
	}
}
