package store

import (
	"context"
	"fmt"

	"github.com/leadkit/gateway/internal/model"
)

const dealColumns = `id, organization_id, title, value, currency, pipeline_id, stage_id, contact_id, company_id,
	status, expected_close_date, created_at, updated_at`

// DealFilter narrows ListDeals.
type DealFilter struct {
	Status     string
	PipelineID string
	StageID    string
	ContactID  string
}

// ListDeals returns a page of deals.
func (s *Store) ListDeals(ctx context.Context, orgID string, f DealFilter, page model.Page) ([]model.Deal, int64, error) {
	w := tenant(orgID)
	if f.Status != "" {
		w.add("status = ?", f.Status)
	}
	if f.PipelineID != "" {
		w.add("pipeline_id = ?", f.PipelineID)
	}
	if f.StageID != "" {
		w.add("stage_id = ?", f.StageID)
	}
	if f.ContactID != "" {
		w.add("contact_id = ?", f.ContactID)
	}
	deals := []model.Deal{}
	total, err := s.listPage(ctx, &deals, "deals", dealColumns, w, "created_at DESC, id DESC", page)
	if err != nil {
		return nil, 0, err
	}
	return deals, total, nil
}

// GetDeal returns one deal.
func (s *Store) GetDeal(ctx context.Context, orgID, id string) (*model.Deal, error) {
	var d model.Deal
	if err := s.getScoped(ctx, &d, "deals", dealColumns, orgID, id); err != nil {
		return nil, err
	}
	return &d, nil
}

// DealExists reports whether the organization owns the deal.
func (s *Store) DealExists(ctx context.Context, orgID, id string) (bool, error) {
	return s.exists(ctx, "deals", orgID, id)
}

// CreateDeal inserts a deal. PipelineID and StageID must already be
// resolved.
func (s *Store) CreateDeal(ctx context.Context, d *model.Deal) error {
	d.ID = newID()
	d.CreatedAt = now()
	d.UpdatedAt = d.CreatedAt
	if d.Currency == "" {
		d.Currency = "USD"
	}
	if d.Status == "" {
		d.Status = model.DealStatusOpen
	}
	_, err := s.db.ExecContext(ctx, s.q(`INSERT INTO deals (`+dealColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		d.ID, d.OrganizationID, d.Title, d.Value, d.Currency, d.PipelineID, d.StageID, d.ContactID, d.CompanyID,
		d.Status, d.ExpectedCloseDate, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert deal: %w", classify(err))
	}
	return nil
}

// UpdateDeal applies a partial update.
func (s *Store) UpdateDeal(ctx context.Context, orgID, id string, f Fields) error {
	return s.updateScoped(ctx, "deals", orgID, id, f)
}

// MoveDealToStage puts a deal in a stage and derives its status from it.
func (s *Store) MoveDealToStage(ctx context.Context, orgID, id string, stage *model.Stage) error {
	return s.updateScoped(ctx, "deals", orgID, id, Fields{
		"pipeline_id": stage.PipelineID,
		"stage_id":    stage.ID,
		"status":      stage.DealStatus(),
	})
}
