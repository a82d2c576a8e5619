package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leadkit/gateway/internal/model"
	"github.com/leadkit/gateway/internal/store"
)

func newTagCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tag",
		Short: "Manage contact tags",
		Long:  "Tags are read-only through the CRM API; operators create them here.",
	}

	cmd.AddCommand(newTagCreateCmd())

	return cmd
}

func newTagCreateCmd() *cobra.Command {
	var (
		orgID string
		name  string
		color string
	)

	cmd := &cobra.Command{
		Use:     "create",
		Short:   "Create a tag",
		Example: `  leadkit tag create --org <org-id> --name vip --color "#e11d48"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(s *store.Store) error {
				ctx := cmd.Context()
				if _, err := s.GetOrganization(ctx, orgID); err != nil {
					return fmt.Errorf("organization %s: %w", orgID, err)
				}
				t := &model.Tag{OrganizationID: orgID, Name: name, Color: color}
				if err := s.CreateTag(ctx, t); err != nil {
					if errors.Is(err, store.ErrConflict) {
						return fmt.Errorf("tag %q already exists", name)
					}
					return fmt.Errorf("create tag: %w", err)
				}
				fmt.Printf("Tag created: %s (%s)\n", t.Name, t.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&orgID, "org", "", "Organization ID (required)")
	cmd.Flags().StringVar(&name, "name", "", "Tag name, unique per organization (required)")
	cmd.Flags().StringVar(&color, "color", "", "Display color")
	cmd.MarkFlagRequired("org")
	cmd.MarkFlagRequired("name")

	return cmd
}
