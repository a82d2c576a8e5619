package store

import (
	"context"
	"fmt"

	"github.com/leadkit/gateway/internal/model"
)

const (
	pipelineColumns = `id, organization_id, name, is_default, position, created_at, updated_at`
	stageColumns    = `id, organization_id, pipeline_id, name, position, probability, is_won, is_lost, created_at`
)

// ListPipelines returns a page of pipelines in display order.
func (s *Store) ListPipelines(ctx context.Context, orgID string, page model.Page) ([]model.Pipeline, int64, error) {
	pipelines := []model.Pipeline{}
	total, err := s.listPage(ctx, &pipelines, "pipelines", pipelineColumns, tenant(orgID), "position, created_at, id", page)
	if err != nil {
		return nil, 0, err
	}
	return pipelines, total, nil
}

// GetPipeline returns one pipeline.
func (s *Store) GetPipeline(ctx context.Context, orgID, id string) (*model.Pipeline, error) {
	var p model.Pipeline
	if err := s.getScoped(ctx, &p, "pipelines", pipelineColumns, orgID, id); err != nil {
		return nil, err
	}
	return &p, nil
}

// DefaultPipeline returns the organization's default pipeline, falling back
// to the first one.
func (s *Store) DefaultPipeline(ctx context.Context, orgID string) (*model.Pipeline, error) {
	var p model.Pipeline
	err := s.db.GetContext(ctx, &p, s.q(`SELECT `+pipelineColumns+` FROM pipelines
		WHERE organization_id = ? ORDER BY is_default DESC, position, created_at LIMIT 1`), orgID)
	if err != nil {
		return nil, classify(err)
	}
	return &p, nil
}

// CreatePipeline inserts a pipeline and its stages in one transaction.
// Stage positions follow slice order.
func (s *Store) CreatePipeline(ctx context.Context, p *model.Pipeline, stages []model.Stage) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	p.ID = newID()
	p.CreatedAt = now()
	p.UpdatedAt = p.CreatedAt
	if _, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO pipelines (`+pipelineColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		p.ID, p.OrganizationID, p.Name, p.IsDefault, p.Position, p.CreatedAt, p.UpdatedAt); err != nil {
		return fmt.Errorf("insert pipeline: %w", classify(err))
	}

	for i := range stages {
		st := &stages[i]
		st.ID = newID()
		st.OrganizationID = p.OrganizationID
		st.PipelineID = p.ID
		st.Position = i
		st.CreatedAt = p.CreatedAt
		if _, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO pipeline_stages (`+stageColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			st.ID, st.OrganizationID, st.PipelineID, st.Name, st.Position, st.Probability,
			st.IsWon, st.IsLost, st.CreatedAt); err != nil {
			return fmt.Errorf("insert stage: %w", classify(err))
		}
	}
	return tx.Commit()
}

// ListStages returns the stages of a tenant-owned pipeline in order.
func (s *Store) ListStages(ctx context.Context, orgID, pipelineID string) ([]model.Stage, error) {
	stages := []model.Stage{}
	err := s.db.SelectContext(ctx, &stages, s.q(`SELECT `+stageColumns+` FROM pipeline_stages
		WHERE organization_id = ? AND pipeline_id = ? ORDER BY position, id`), orgID, pipelineID)
	if err != nil {
		return nil, fmt.Errorf("list stages: %w", err)
	}
	return stages, nil
}

// GetStage returns one tenant-owned stage.
func (s *Store) GetStage(ctx context.Context, orgID, id string) (*model.Stage, error) {
	var st model.Stage
	if err := s.getScoped(ctx, &st, "pipeline_stages", stageColumns, orgID, id); err != nil {
		return nil, err
	}
	return &st, nil
}
