package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/leadkit/gateway/internal/service"
)

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Operator access to the admin API",
	}

	cmd.AddCommand(newAdminTokenCmd())

	return cmd
}

func newAdminTokenCmd() *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a short-lived admin API token",
		Long:  "Sign a bearer token for /admin/v1 with auth.admin_secret.",
		Example: `  leadkit admin token --subject ops@example.com
  curl -H "Authorization: Bearer $(leadkit admin token)" localhost:8080/admin/v1/organizations`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			tokens := service.NewAdminTokens(cfg.Auth.AdminSecret)
			if !tokens.Enabled() {
				return errors.New("auth.admin_secret is not set (config file or LEADKIT_AUTH_ADMIN_SECRET)")
			}
			if ttl <= 0 {
				ttl = cfg.Auth.AdminTokenTTL
			}
			token, err := tokens.Issue(subject, ttl)
			if err != nil {
				return fmt.Errorf("issue admin token: %w", err)
			}

			if !isTerminal() {
				fmt.Println(token)
				return nil
			}
			fmt.Printf("Admin token for %s (valid %s):\n\n", subject, ttl)
			fmt.Printf("  %s\n\n", token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "operator", "Token subject recorded in admin logs")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (default auth.admin_token_ttl)")

	return cmd
}
