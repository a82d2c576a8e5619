package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leadkit/gateway/internal/model"
	"github.com/leadkit/gateway/internal/store"
)

const defaultStages = "Lead:10,Qualified:25,Proposal:50,Negotiation:75,Won:won,Lost:lost"

func newPipelineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Manage sales pipelines",
	}

	cmd.AddCommand(newPipelineCreateCmd())

	return cmd
}

func newPipelineCreateCmd() *cobra.Command {
	var (
		orgID     string
		name      string
		isDefault bool
		stages    string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a pipeline with its stages",
		Long: `Create a pipeline. Stages are given in order as NAME:PROBABILITY pairs.
Use "won" or "lost" instead of a probability to mark a closing stage.`,
		Example: `  leadkit pipeline create --org <org-id> --name Sales --default
  leadkit pipeline create --org <org-id> --name Renewals --stages "Due:40,Quoted:70,Renewed:won,Churned:lost"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parseStages(stages)
			if err != nil {
				return err
			}
			return withStore(cmd.Context(), func(s *store.Store) error {
				ctx := cmd.Context()
				if _, err := s.GetOrganization(ctx, orgID); err != nil {
					return fmt.Errorf("organization %s: %w", orgID, err)
				}
				p := &model.Pipeline{OrganizationID: orgID, Name: name, IsDefault: isDefault}
				if err := s.CreatePipeline(ctx, p, parsed); err != nil {
					return fmt.Errorf("create pipeline: %w", err)
				}
				fmt.Printf("Pipeline created: %s (%s)\n", p.Name, p.ID)
				for _, st := range parsed {
					fmt.Printf("  %d. %-20s %3d%%  %s\n", st.Position+1, st.Name, st.Probability, st.DealStatus())
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&orgID, "org", "", "Organization ID (required)")
	cmd.Flags().StringVar(&name, "name", "", "Pipeline name (required)")
	cmd.Flags().BoolVar(&isDefault, "default", false, "Use as the organization's default pipeline")
	cmd.Flags().StringVar(&stages, "stages", defaultStages, "Ordered stages as NAME:PROBABILITY, comma-separated")
	cmd.MarkFlagRequired("org")
	cmd.MarkFlagRequired("name")

	return cmd
}

// parseStages reads "Lead:10,Won:won,Lost:lost" into ordered stages.
func parseStages(spec string) ([]model.Stage, error) {
	var stages []model.Stage
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, ok := strings.Cut(part, ":")
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid stage %q: want NAME:PROBABILITY", part)
		}
		st := model.Stage{Name: name, Position: len(stages)}
		switch strings.ToLower(value) {
		case "won":
			st.IsWon = true
			st.Probability = 100
		case "lost":
			st.IsLost = true
		default:
			p, err := strconv.Atoi(value)
			if err != nil || p < 0 || p > 100 {
				return nil, fmt.Errorf("invalid probability %q for stage %s: want 0-100, won or lost", value, name)
			}
			st.Probability = p
		}
		stages = append(stages, st)
	}
	if len(stages) == 0 {
		return nil, fmt.Errorf("a pipeline needs at least one stage")
	}
	return stages, nil
}
