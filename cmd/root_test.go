package cmd

import (
	"strings"
	"testing"

	"github.com/spf13/pflag"

	"github.com/pbelyakov/planforge/pkg/config"
)

func TestRootCommandStructure(t *testing.T) {
	// Not parallel - accesses global rootCmd
	cmd := rootCmd

	if cmd.Use != "planforge" {
		t.Errorf("root command Use = %q, want %q", cmd.Use, "planforge")
	}

	if cmd.Short == "" {
		t.Error("root command should have Short description")
	}

	if cmd.Long == "" {
		t.Error("root command should have Long description")
	}

	expectedKeywords := []string{"work plan", "ticket", "stories"}
	for _, keyword := range expectedKeywords {
		if !strings.Contains(cmd.Long, keyword) {
			t.Errorf("root command Long description should mention %q", keyword)
		}
	}
}

func TestRootCommandPersistentFlags(t *testing.T) {
	// Not parallel - accesses global rootCmd
	cmd := rootCmd

	configFlag := cmd.PersistentFlags().Lookup("config")
	if configFlag == nil {
		t.Fatal("root command should have --config persistent flag")
	}
	if configFlag.Shorthand != "C" {
		t.Errorf("--config shorthand = %q, want %q", configFlag.Shorthand, "C")
	}
	if configFlag.DefValue != "" {
		t.Errorf("--config default should be empty, got %q", configFlag.DefValue)
	}
	if !strings.Contains(configFlag.Usage, "$HOME/.config/planforge") {
		t.Error("--config usage should mention default config location")
	}

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	if verboseFlag == nil {
		t.Fatal("root command should have --verbose persistent flag")
	}
	if verboseFlag.Shorthand != "v" {
		t.Errorf("--verbose shorthand = %q, want %q", verboseFlag.Shorthand, "v")
	}
	if verboseFlag.DefValue != "false" {
		t.Errorf("--verbose default = %q, want %q", verboseFlag.DefValue, "false")
	}

	cmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		if f.Usage == "" {
			t.Errorf("persistent flag --%s should have usage text", f.Name)
		}
	})
}

func TestRootCommandSubcommands(t *testing.T) {
	// Not parallel - accesses global rootCmd
	expected := []string{"run", "history", "update", "auth", "version"}

	registered := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		registered[c.Name()] = true
	}

	for _, name := range expected {
		if !registered[name] {
			t.Errorf("subcommand %q should be registered with rootCmd", name)
		}
	}
}

func TestResetConfigClearsState(t *testing.T) {
	// Not parallel - mutates package globals
	appConfig = &config.Config{}
	resetConfig()

	if appConfig != nil {
		t.Error("resetConfig should clear the cached config")
	}
}
