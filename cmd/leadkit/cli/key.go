package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/leadkit/gateway/internal/handler"
	"github.com/leadkit/gateway/internal/model"
	"github.com/leadkit/gateway/internal/service"
	"github.com/leadkit/gateway/internal/store"
)

func newKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "key",
		Aliases: []string{"apikey"},
		Short:   "Manage API keys",
		Long:    "Create, list, and revoke organization API keys used to authenticate against the CRM API.",
	}

	cmd.AddCommand(newKeyCreateCmd())
	cmd.AddCommand(newKeyListCmd())
	cmd.AddCommand(newKeyRevokeCmd())

	return cmd
}

// ---------- key create ----------

type keyCreateOptions struct {
	orgID     string
	name      string
	env       string
	preset    string
	perMinute int
	perDay    int
	allowIPs  []string
	expiresIn time.Duration
}

func newKeyCreateCmd() *cobra.Command {
	var opts keyCreateOptions

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new API key",
		Long:  "Issue an API key for an organization. The raw key is shown once and cannot be retrieved again.",
		Example: `  leadkit key create --org <org-id> --name "Website forms" --preset read-only
  leadkit key create --org <org-id> --name CI --env test --allow-ip 10.0.0.0/8 --expires-in 720h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(s *store.Store) error {
				return runKeyCreate(cmd, s, opts)
			})
		},
	}

	cmd.Flags().StringVar(&opts.orgID, "org", "", "Organization ID (required)")
	cmd.Flags().StringVar(&opts.name, "name", "", "Human-readable key name (required)")
	cmd.Flags().StringVar(&opts.env, "env", model.KeyEnvLive, "Key environment: live or test")
	cmd.Flags().StringVar(&opts.preset, "preset", "full", "Permission preset: full, read-only or none")
	cmd.Flags().IntVar(&opts.perMinute, "rate-per-minute", handler.DefaultRateLimitPerMinute, "Requests allowed per minute")
	cmd.Flags().IntVar(&opts.perDay, "rate-per-day", handler.DefaultRateLimitPerDay, "Requests allowed per day")
	cmd.Flags().StringSliceVar(&opts.allowIPs, "allow-ip", nil, "Allowed client address or CIDR (repeatable)")
	cmd.Flags().DurationVar(&opts.expiresIn, "expires-in", 0, "Expire the key after this duration")
	cmd.MarkFlagRequired("org")
	cmd.MarkFlagRequired("name")

	return cmd
}

func permissionPreset(name string) (model.Permissions, error) {
	switch name {
	case "full":
		return model.FullPermissions(), nil
	case "read-only", "readonly":
		return model.ReadOnlyPermissions(), nil
	case "none":
		return model.Permissions{}, nil
	default:
		return model.Permissions{}, fmt.Errorf("unknown permission preset %q: use full, read-only or none", name)
	}
}

func runKeyCreate(cmd *cobra.Command, s *store.Store, opts keyCreateOptions) error {
	ctx := cmd.Context()
	if opts.env != model.KeyEnvLive && opts.env != model.KeyEnvTest {
		return fmt.Errorf("invalid --env %q: use live or test", opts.env)
	}
	if opts.perMinute < 0 || opts.perDay < 0 {
		return fmt.Errorf("rate limits must not be negative")
	}
	perms, err := permissionPreset(opts.preset)
	if err != nil {
		return err
	}
	if err := service.ValidateIPList(opts.allowIPs); err != nil {
		return err
	}
	org, err := s.GetOrganization(ctx, opts.orgID)
	if err != nil {
		return fmt.Errorf("organization %s: %w", opts.orgID, err)
	}

	key := &model.APIKey{
		OrganizationID:     org.ID,
		Name:               opts.name,
		Permissions:        perms,
		AllowedIPs:         model.IPList(opts.allowIPs),
		RateLimitPerMinute: opts.perMinute,
		RateLimitPerDay:    opts.perDay,
	}
	if opts.expiresIn > 0 {
		exp := time.Now().Add(opts.expiresIn).UTC()
		key.ExpiresAt = &exp
	}

	raw, err := service.IssueAPIKey(ctx, s, key, opts.env)
	if err != nil {
		return fmt.Errorf("create api key: %w", err)
	}

	if !isTerminal() {
		fmt.Println(raw)
		return nil
	}
	fmt.Println("API Key created:")
	fmt.Println()
	fmt.Printf("  Key:          %s\n", raw)
	fmt.Printf("  ID:           %s\n", key.ID)
	fmt.Printf("  Organization: %s\n", org.Name)
	fmt.Printf("  Permissions:  %s\n", opts.preset)
	fmt.Printf("  Limits:       %d/min, %d/day\n", key.RateLimitPerMinute, key.RateLimitPerDay)
	if key.ExpiresAt != nil {
		fmt.Printf("  Expires:      %s\n", key.ExpiresAt.Format(time.RFC3339))
	}
	fmt.Println()
	fmt.Println("  Save this key now - it cannot be retrieved again.")
	return nil
}

// ---------- key list ----------

func newKeyListCmd() *cobra.Command {
	var (
		orgID      string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(s *store.Store) error {
				keys, err := s.ListAPIKeys(cmd.Context(), orgID)
				if err != nil {
					return fmt.Errorf("list api keys: %w", err)
				}
				if jsonOutput {
					return printJSON(os.Stdout, keys)
				}
				if len(keys) == 0 {
					fmt.Println("No API keys. Use 'leadkit key create' to issue one.")
					return nil
				}
				fmt.Printf("%-38s %-18s %-24s %-8s %-12s\n", "ID", "PREFIX", "NAME", "ACTIVE", "USES")
				for _, k := range keys {
					fmt.Printf("%-38s %-18s %-24s %-8s %-12d\n", k.ID, k.KeyPrefix, k.Name, yesNo(k.IsActive), k.UsageCount)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&orgID, "org", "", "Only keys of this organization")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

// ---------- key revoke ----------

func newKeyRevokeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "revoke <key-id>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(s *store.Store) error {
				if err := s.RevokeAPIKey(cmd.Context(), args[0]); err != nil {
					return fmt.Errorf("revoke api key: %w", err)
				}
				fmt.Printf("API key %s revoked.\n", args[0])
				return nil
			})
		},
	}

	return cmd
}
