package store

import (
	"context"
	"fmt"

	"github.com/leadkit/gateway/internal/model"
)

// CreateOrganization inserts a tenant and fills in its ID and timestamp.
func (s *Store) CreateOrganization(ctx context.Context, org *model.Organization) error {
	org.ID = newID()
	org.CreatedAt = now()
	_, err := s.db.ExecContext(ctx, s.q(
		`INSERT INTO organizations (id, name, created_at) VALUES (?, ?, ?)`),
		org.ID, org.Name, org.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert organization: %w", classify(err))
	}
	return nil
}

// GetOrganization returns a tenant by ID.
func (s *Store) GetOrganization(ctx context.Context, id string) (*model.Organization, error) {
	var org model.Organization
	err := s.db.GetContext(ctx, &org, s.q(
		`SELECT id, name, created_at FROM organizations WHERE id = ?`), id)
	if err != nil {
		return nil, classify(err)
	}
	return &org, nil
}

// ListOrganizations returns every tenant ordered by creation time.
func (s *Store) ListOrganizations(ctx context.Context) ([]model.Organization, error) {
	orgs := []model.Organization{}
	err := s.db.SelectContext(ctx, &orgs,
		`SELECT id, name, created_at FROM organizations ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	return orgs, nil
}
