package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/leadkit/gateway/internal/model"
	"github.com/leadkit/gateway/internal/store"
)

func newOrgCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "org",
		Aliases: []string{"organization"},
		Short:   "Manage organizations (tenants)",
	}

	cmd.AddCommand(newOrgCreateCmd())
	cmd.AddCommand(newOrgListCmd())

	return cmd
}

// ---------- org create ----------

func newOrgCreateCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:     "create",
		Short:   "Create an organization",
		Example: `  leadkit org create --name "Acme Corp"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(s *store.Store) error {
				org := &model.Organization{Name: name}
				if err := s.CreateOrganization(cmd.Context(), org); err != nil {
					return fmt.Errorf("create organization: %w", err)
				}
				fmt.Printf("Organization created: %s (%s)\n", org.Name, org.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Organization name (required)")
	cmd.MarkFlagRequired("name")

	return cmd
}

// ---------- org list ----------

func newOrgListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List organizations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(s *store.Store) error {
				orgs, err := s.ListOrganizations(cmd.Context())
				if err != nil {
					return fmt.Errorf("list organizations: %w", err)
				}
				if jsonOutput {
					return printJSON(os.Stdout, orgs)
				}
				if len(orgs) == 0 {
					fmt.Println("No organizations. Use 'leadkit org create' to add one.")
					return nil
				}
				fmt.Printf("%-38s %-32s %-20s\n", "ID", "NAME", "CREATED")
				for _, o := range orgs {
					fmt.Printf("%-38s %-32s %-20s\n", o.ID, o.Name, o.CreatedAt.Format("2006-01-02 15:04"))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}
