package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/graphmirror/internal/auth"
	"github.com/custodia-labs/graphmirror/internal/config"
	"github.com/custodia-labs/graphmirror/internal/graph"
)

var (
	loginClientID string
	loginTenant   string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to a Microsoft 365 account",
	Long: `Sign in using the device authorization flow. The command prints a
verification URL and a one-time code; open the URL in any browser and enter
the code to complete sign-in. Tokens are stored in the data directory.`,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored account token",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfgPath, err := config.Path()
		if err != nil {
			return err
		}
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		dir, err := config.Dir()
		if err != nil {
			return err
		}
		provider := auth.NewProvider(cfg.Account.ClientID, cfg.Account.ClientSecret, cfg.Account.Tenant, dir)
		if err := provider.Logout(); err != nil {
			return err
		}
		fmt.Println("Signed out.")
		return nil
	},
}

func runLogin(cmd *cobra.Command, _ []string) error {
	cfgPath, err := config.Path()
	if err != nil {
		return err
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	if loginClientID != "" {
		cfg.Account.ClientID = loginClientID
	}
	if loginTenant != "" {
		cfg.Account.Tenant = loginTenant
	}
	if cfg.Account.ClientID == "" {
		return fmt.Errorf("no client id configured, pass --client-id")
	}

	// Confidential app registrations need a secret for the token exchange;
	// public clients leave this empty.
	secret, err := promptSecret("Client secret (empty for public clients): ")
	if err != nil {
		return err
	}
	if secret != "" {
		cfg.Account.ClientSecret = secret
	}

	dir, err := config.Dir()
	if err != nil {
		return err
	}

	provider := auth.NewProvider(cfg.Account.ClientID, cfg.Account.ClientSecret, cfg.Account.Tenant, dir)
	ctx := cmd.Context()

	err = provider.Login(ctx, func(url, code string) {
		fmt.Printf("To sign in, open %s and enter the code %s\n", url, code)
	})
	if err != nil {
		return err
	}

	// Record which account we signed in as.
	client := graph.NewClient(provider)
	if info, err := client.GetUserInfo(ctx); err == nil {
		cfg.Account.Email = info.Email()
		fmt.Printf("Signed in as %s\n", info.Email())
	} else {
		fmt.Println("Signed in.")
	}

	return cfg.Save(cfgPath)
}

// promptSecret reads a line without echo when stdin is a terminal, and
// returns empty otherwise (non-interactive runs).
func promptSecret(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", nil
	}
	fmt.Fprint(os.Stderr, prompt)
	secret, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read secret: %w", err)
	}
	return string(secret), nil
}

func init() {
	loginCmd.Flags().StringVar(&loginClientID, "client-id", "", "Azure application (client) ID")
	loginCmd.Flags().StringVar(&loginTenant, "tenant", "", "directory tenant (default: common)")
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}
