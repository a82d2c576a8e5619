package store

import (
	"context"
	"fmt"

	"github.com/leadkit/gateway/internal/model"
)

const activityColumns = `id, organization_id, contact_id, type, subject, body, occurred_at, created_at`

// CreateActivity appends a timeline entry to a contact.
func (s *Store) CreateActivity(ctx context.Context, a *model.Activity) error {
	a.ID = newID()
	a.CreatedAt = now()
	if a.OccurredAt.IsZero() {
		a.OccurredAt = a.CreatedAt
	}
	a.OccurredAt = a.OccurredAt.UTC()
	_, err := s.db.ExecContext(ctx, s.q(`INSERT INTO activities (`+activityColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		a.ID, a.OrganizationID, a.ContactID, a.Type, a.Subject, a.Body, a.OccurredAt, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert activity: %w", classify(err))
	}
	return nil
}

// ListActivities returns a contact's timeline, newest first.
func (s *Store) ListActivities(ctx context.Context, orgID, contactID string, page model.Page) ([]model.Activity, int64, error) {
	w := tenant(orgID)
	w.add("contact_id = ?", contactID)
	activities := []model.Activity{}
	total, err := s.listPage(ctx, &activities, "activities", activityColumns, w, "occurred_at DESC, id DESC", page)
	if err != nil {
		return nil, 0, err
	}
	return activities, total, nil
}
