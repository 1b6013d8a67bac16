package main

import (
	"strings"
	"testing"
)

func TestVersionCommand(t *testing.T) {
	origVersion := Version
	Version = "1.2.3-test"
	defer func() { Version = origVersion }()

	cmd, out := testCommand("")
	versionCmd.Run(cmd, nil)

	for _, want := range []string{"Verdict 1.2.3-test", "Git Commit:", "Go Version:"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestRootCommand_Subcommands(t *testing.T) {
	want := map[string]bool{"eval": false, "history": false, "lint": false, "run": false, "version": false}
	for _, cmd := range rootCmd.Commands() {
		if _, ok := want[cmd.Name()]; ok {
			want[cmd.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("root command has no %q subcommand", name)
		}
	}
}
