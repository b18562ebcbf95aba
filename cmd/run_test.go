package cmd

import (
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func TestRunCommandFlags(t *testing.T) {
	t.Parallel()

	cmd := runCmd

	tests := []struct {
		flagName     string
		shorthand    string
		defaultValue string
	}{
		{"task", "t", ""},
		{"skip-generation", "d", "false"},
		{"from-snapshot", "", "false"},
		{"output-dir", "o", ""},
	}

	for _, tt := range tests {
		t.Run(tt.flagName, func(t *testing.T) {
			t.Parallel()

			flag := cmd.Flags().Lookup(tt.flagName)
			if flag == nil {
				t.Errorf("run command should have --%s flag", tt.flagName)
				return
			}

			if flag.Shorthand != tt.shorthand {
				t.Errorf("--%s shorthand = %q, want %q", tt.flagName, flag.Shorthand, tt.shorthand)
			}

			if flag.DefValue != tt.defaultValue {
				t.Errorf("--%s default = %q, want %q", tt.flagName, flag.DefValue, tt.defaultValue)
			}
		})
	}
}

func TestRunCommandTaskRequired(t *testing.T) {
	t.Parallel()

	flag := runCmd.Flags().Lookup("task")
	if flag == nil {
		t.Fatal("run command should have --task flag")
	}

	if _, ok := flag.Annotations[cobra.BashCompOneRequiredFlag]; !ok {
		t.Error("--task flag should be marked required")
	}
}

func TestRunCommandDescription(t *testing.T) {
	t.Parallel()

	cmd := runCmd

	if cmd.Use != "run" {
		t.Errorf("run command Use = %q, want %q", cmd.Use, "run")
	}

	expectedContent := []string{
		"planforge run --task",
		"--skip-generation",
		"pipeline",
		"validates",
	}

	for _, content := range expectedContent {
		if !strings.Contains(cmd.Long, content) {
			t.Errorf("run command Long description should contain %q", content)
		}
	}
}

func TestRunCommandHasRunE(t *testing.T) {
	t.Parallel()

	if runCmd.RunE == nil {
		t.Error("run command should have RunE set for error handling")
	}

	if !runCmd.SilenceUsage {
		t.Error("run command should silence usage on runtime errors")
	}
}
