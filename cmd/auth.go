package cmd

import (
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/zalando/go-keyring"
	"golang.org/x/oauth2"
	"golang.org/x/term"

	pferrors "github.com/pbelyakov/planforge/pkg/errors"
	"github.com/pbelyakov/planforge/pkg/github"
)

const (
	// trackerKeyringService is the keychain service for the tracker API token.
	trackerKeyringService = "planforge-tracker"
	trackerKeyringUser    = "api-token"

	// trackerTokenEnv is the environment variable the tracker tool server
	// reads its API token from. A stored token is injected under this name
	// unless the variable is already set.
	trackerTokenEnv = "TRACKER_API_TOKEN"
)

var (
	authGitHubClear  bool
	authTrackerClear bool
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage credentials for upstream services",
	Long: `Authenticate with upstream services and store credentials locally.

Credentials go to the system keychain when available, with a file fallback
under ~/.config/planforge.

Examples:
  planforge auth github            # OAuth device flow, cache the token
  planforge auth github --clear    # Forget the cached GitHub token
  planforge auth tracker           # Store a tracker API token
  planforge auth tracker --clear   # Forget the stored tracker token`,
}

// authGitHubCmd runs the GitHub OAuth device flow and caches the token.
var authGitHubCmd = &cobra.Command{
	Use:          "github",
	Short:        "Authenticate with GitHub via OAuth device flow",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAuthGitHubCommand(cmd)
	},
}

// authTrackerCmd prompts for a tracker API token and stores it.
var authTrackerCmd = &cobra.Command{
	Use:          "tracker",
	Short:        "Store an API token for the ticket tracker",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAuthTrackerCommand()
	},
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authGitHubCmd)
	authCmd.AddCommand(authTrackerCmd)

	authGitHubCmd.Flags().BoolVar(&authGitHubClear, "clear", false, "Remove the cached GitHub token")
	authTrackerCmd.Flags().BoolVar(&authTrackerClear, "clear", false, "Remove the stored tracker token")
}

func runAuthGitHubCommand(cmd *cobra.Command) error {
	cache := github.NewTokenCache()

	if authGitHubClear {
		if err := cache.Clear(); err != nil {
			return errors.Wrap(err, "failed to clear cached token")
		}
		fmt.Println("Cached GitHub token removed.")
		return nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}

	if cfg.GitHub.ClientID == "" {
		return errors.New("github.client_id is not configured; device flow needs an OAuth app client ID")
	}

	apiToken, err := github.DeviceAuth(cmd.Context(), github.OAuthConfig{
		ClientID: cfg.GitHub.ClientID,
		Scopes:   []string{"repo", "read:org"},
	}, os.Stdout)
	if err != nil {
		fmt.Println(pferrors.FormatUserError(err))
		return errors.Wrap(err, "device flow failed")
	}

	token := &oauth2.Token{
		AccessToken: apiToken.Token,
		TokenType:   apiToken.Type,
	}
	if err := cache.Set(token); err != nil {
		return errors.Wrap(err, "authenticated, but failed to store the token")
	}

	fmt.Println("GitHub authentication complete. Token stored.")
	return nil
}

func runAuthTrackerCommand() error {
	if authTrackerClear {
		err := keyring.Delete(trackerKeyringService, trackerKeyringUser)
		if err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return errors.Wrap(err, "failed to remove tracker token")
		}
		fmt.Println("Stored tracker token removed.")
		return nil
	}

	fmt.Print("Tracker API token: ")
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return errors.Wrap(err, "failed to read token")
	}
	if len(raw) == 0 {
		return errors.New("empty token")
	}

	if err := keyring.Set(trackerKeyringService, trackerKeyringUser, string(raw)); err != nil {
		return errors.Wrap(err, "failed to store tracker token")
	}

	fmt.Printf("Tracker token stored. It is passed to the tool server as %s.\n", trackerTokenEnv)
	return nil
}

// storedTrackerToken returns the keychain tracker token, or "" when none is
// stored or the keychain is unavailable.
func storedTrackerToken() string {
	token, err := keyring.Get(trackerKeyringService, trackerKeyringUser)
	if err != nil {
		return ""
	}
	return token
}
