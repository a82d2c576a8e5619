package store

import (
	"context"
	"fmt"

	"github.com/leadkit/gateway/internal/model"
)

const companyColumns = `id, organization_id, name, domain, industry, website, phone, created_at, updated_at`

// ListCompanies returns a page of companies, optionally filtered by a name
// or domain search.
func (s *Store) ListCompanies(ctx context.Context, orgID, search string, page model.Page) ([]model.Company, int64, error) {
	w := tenant(orgID)
	if search != "" {
		p := like(search)
		w.add("("+likeClause("name")+" OR "+likeClause("domain")+")", p, p)
	}
	companies := []model.Company{}
	total, err := s.listPage(ctx, &companies, "companies", companyColumns, w, "name, id", page)
	if err != nil {
		return nil, 0, err
	}
	return companies, total, nil
}

// GetCompany returns one company.
func (s *Store) GetCompany(ctx context.Context, orgID, id string) (*model.Company, error) {
	var c model.Company
	if err := s.getScoped(ctx, &c, "companies", companyColumns, orgID, id); err != nil {
		return nil, err
	}
	return &c, nil
}

// CompanyExists reports whether the organization owns the company.
func (s *Store) CompanyExists(ctx context.Context, orgID, id string) (bool, error) {
	return s.exists(ctx, "companies", orgID, id)
}

// CreateCompany inserts a company.
func (s *Store) CreateCompany(ctx context.Context, c *model.Company) error {
	c.ID = newID()
	c.CreatedAt = now()
	c.UpdatedAt = c.CreatedAt
	_, err := s.db.ExecContext(ctx, s.q(`INSERT INTO companies (`+companyColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		c.ID, c.OrganizationID, c.Name, c.Domain, c.Industry, c.Website, c.Phone, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert company: %w", classify(err))
	}
	return nil
}

// UpdateCompany applies a partial update.
func (s *Store) UpdateCompany(ctx context.Context, orgID, id string, f Fields) error {
	return s.updateScoped(ctx, "companies", orgID, id, f)
}
