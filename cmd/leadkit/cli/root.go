package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/leadkit/gateway/internal/config"
)

var (
	cfgFile    string
	appVersion string // set in Execute, reported by discovery and /openapi.json
)

// Execute creates the root command tree and runs it.
func Execute(version, commit, date string) error {
	appVersion = version
	rootCmd := newRootCmd(version, commit, date)
	return rootCmd.Execute()
}

func newRootCmd(version, commit, date string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leadkit",
		Short: "Multi-tenant CRM API gateway",
		Long: `LeadKit serves a multi-tenant CRM REST API behind organization API keys.

Every request is authenticated with a bearer key, rate limited per key, checked
against the key's permission matrix and recorded in the request log.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./leadkit.yaml)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newVersionCmd(version, commit, date))
	cmd.AddCommand(newOrgCmd())
	cmd.AddCommand(newKeyCmd())
	cmd.AddCommand(newPipelineCmd())
	cmd.AddCommand(newTagCmd())
	cmd.AddCommand(newAdminCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// loadConfig resolves the effective configuration from --config, the
// default search paths and LEADKIT_* variables.
func loadConfig() (*config.Config, error) {
	return config.Load(viper.GetViper(), cfgFile)
}
