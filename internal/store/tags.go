package store

import (
	"context"
	"fmt"

	"github.com/leadkit/gateway/internal/model"
)

const tagColumns = `id, organization_id, name, color, created_at`

// ListTags returns a page of tags ordered by name.
func (s *Store) ListTags(ctx context.Context, orgID string, page model.Page) ([]model.Tag, int64, error) {
	tags := []model.Tag{}
	total, err := s.listPage(ctx, &tags, "tags", tagColumns, tenant(orgID), "name, id", page)
	if err != nil {
		return nil, 0, err
	}
	return tags, total, nil
}

// CreateTag inserts a tag. Names are unique per organization.
func (s *Store) CreateTag(ctx context.Context, t *model.Tag) error {
	t.ID = newID()
	t.CreatedAt = now()
	_, err := s.db.ExecContext(ctx, s.q(`INSERT INTO tags (`+tagColumns+`) VALUES (?, ?, ?, ?, ?)`),
		t.ID, t.OrganizationID, t.Name, t.Color, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert tag: %w", classify(err))
	}
	return nil
}
