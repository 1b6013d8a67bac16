package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

const adultRules = `
rules:
  - name: adult
    priority: 10
    condition: {attr: age, op: gte, value: 18}
    actions: [{type: tag, params: {value: adult}}]
`

const quietConfig = `
telemetry:
  logging:
    level: error
  metrics:
    enabled: false
  health:
    enabled: false
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile(%s) error = %v", path, err)
	}
	return path
}

// testCommand returns a command whose output goes to the returned buffer
// and whose input is in.
func testCommand(in string) (*cobra.Command, *bytes.Buffer) {
	cmd := &cobra.Command{}
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(in))
	return cmd, out
}

// useConfig points the global config flag at a quiet config for the test.
func useConfig(t *testing.T, extra string) {
	t.Helper()
	path := writeFile(t, t.TempDir(), "verdict.yaml", quietConfig+extra)
	cfgFile = path
	logLevel = ""
	t.Cleanup(func() { cfgFile = "" })
}
