package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/cockroachdb/errors"
	"github.com/creativeprojects/go-selfupdate"
	"github.com/spf13/cobra"
)

// Version is the current binary version. Set via ldflags at build time:
//
//	go build -ldflags "-X github.com/pbelyakov/planforge/cmd.Version=1.0.0"
var Version = "dev"

const (
	repoOwner = "pbelyakov"
	repoName  = "planforge"
)

// GetVersion returns the current binary version.
func GetVersion() string {
	return Version
}

var (
	updateCheck bool
	updateForce bool
	updatePre   bool
	updateYes   bool
)

// updateCmd represents the update command
var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update planforge to the latest version",
	Long: `Check GitHub releases for a newer version and replace the current binary.

The release asset for this platform is downloaded, verified against the
published checksums, and swapped in place of the running binary.

Examples:
  planforge update            # Update to the latest release
  planforge update --check    # Only check whether an update exists
  planforge update --yes      # Update without confirmation
  planforge update --force    # Reinstall even if already up to date
  planforge update --pre      # Include pre-release versions`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runUpdateCommand(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(updateCmd)

	updateCmd.Flags().BoolVarP(&updateCheck, "check", "c", false, "Check for updates without installing")
	updateCmd.Flags().BoolVarP(&updateForce, "force", "f", false, "Force update even if already up to date")
	updateCmd.Flags().BoolVarP(&updatePre, "pre", "p", false, "Include pre-release versions")
	updateCmd.Flags().BoolVarP(&updateYes, "yes", "y", false, "Skip confirmation prompt")
}

func runUpdateCommand(ctx context.Context) error {
	slug := repoOwner + "/" + repoName
	if cfg, err := loadConfig(); err == nil && cfg.Update.Repository != "" {
		slug = cfg.Update.Repository
	}

	updater, err := selfupdate.NewUpdater(selfupdate.Config{Prerelease: updatePre})
	if err != nil {
		return errors.Wrap(err, "failed to initialize updater")
	}

	latest, found, err := updater.DetectLatest(ctx, selfupdate.ParseSlug(slug))
	if err != nil {
		return errors.Wrap(err, "failed to check for updates")
	}
	if !found {
		fmt.Printf("No releases found for %s\n", slug)
		return nil
	}

	isDevVersion := Version == "dev"

	latestLessEqual := false
	if !isDevVersion {
		current, err := semver.NewVersion(Version)
		if err != nil {
			return errors.Wrapf(err, "current version %q is not valid semver", Version)
		}
		latestVer, err := semver.NewVersion(latest.Version())
		if err != nil {
			return errors.Wrapf(err, "latest version %q is not valid semver", latest.Version())
		}
		latestLessEqual = !latestVer.GreaterThan(current)
	}

	if updateCheck {
		fmt.Printf("Current version: %s\n", Version)
		fmt.Printf("Latest version:  %s\n", latest.Version())
		if !isDevVersion && latestLessEqual {
			fmt.Println("Already up to date.")
		} else {
			fmt.Println("Update available. Run 'planforge update' to install.")
		}
		return nil
	}

	skipUpdate := !isDevVersion && latestLessEqual && !updateForce
	if skipUpdate {
		fmt.Printf("Already up to date (%s).\n", Version)
		return nil
	}

	if !updateYes && !confirmUpdate(Version, latest.Version()) {
		fmt.Println("Update cancelled.")
		return nil
	}

	exe, err := os.Executable()
	if err != nil {
		return errors.Wrap(err, "failed to locate current executable")
	}

	if err := updater.UpdateTo(ctx, latest, exe); err != nil {
		return errors.Wrap(err, "update failed")
	}

	fmt.Printf("Successfully updated to %s\n", latest.Version())
	return nil
}

// confirmUpdate prompts the user before replacing the binary.
func confirmUpdate(current, latest string) bool {
	fmt.Printf("Update planforge from %s to %s? [y/N]: ", current, latest)

	reader := bufio.NewReader(os.Stdin)
	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.ToLower(strings.TrimSpace(response))
	return response == "y" || response == "yes"
}
