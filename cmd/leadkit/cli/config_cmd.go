package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leadkit/gateway/internal/config"
)

const redacted = "********"

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and initialize configuration",
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var (
		path  string
		force bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.WriteDefault(path, force); err != nil {
				return fmt.Errorf("write config: %w (use --force to overwrite)", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", config.DefaultFileName, "Destination file")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long:  "Print the configuration after defaults, the config file and LEADKIT_* overrides are applied. Secrets are masked.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if cfg.File != "" {
				fmt.Fprintf(out, "# file: %s\n", cfg.File)
			} else {
				fmt.Fprintln(out, "# file: none (defaults and environment)")
			}
			data, err := config.Marshal(redact(*cfg))
			if err != nil {
				return err
			}
			_, err = out.Write(data)
			return err
		},
	}

	return cmd
}

// redact masks credentials in a copy of cfg.
func redact(cfg config.Config) *config.Config {
	if cfg.Auth.AdminSecret != "" {
		cfg.Auth.AdminSecret = redacted
	}
	if cfg.RateLimit.Redis.Password != "" {
		cfg.RateLimit.Redis.Password = redacted
	}
	if cfg.Database.Driver != "sqlite" && cfg.Database.DSN != "" {
		cfg.Database.DSN = redacted
	}
	return &cfg
}
