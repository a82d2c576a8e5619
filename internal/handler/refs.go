package handler

import (
	"context"

	"github.com/leadkit/gateway/internal/problem"
	"github.com/leadkit/gateway/internal/store"
)

// Reference checks reject IDs that point outside the caller's organization.
// An empty or absent ID is not a reference.

func companyRef(ctx context.Context, s *store.Store, orgID string, id *string) error {
	if optional(id) == nil {
		return nil
	}
	ok, err := s.CompanyExists(ctx, orgID, *id)
	return existsRef(ok, err, "company_id")
}

func dealRef(ctx context.Context, s *store.Store, orgID string, id *string) error {
	if optional(id) == nil {
		return nil
	}
	ok, err := s.DealExists(ctx, orgID, *id)
	return existsRef(ok, err, "deal_id")
}

func contactRef(ctx context.Context, s *store.Store, orgID string, id *string) error {
	if optional(id) == nil {
		return nil
	}
	if _, err := s.GetContact(ctx, orgID, *id); err != nil {
		return refError(err, "contact_id")
	}
	return nil
}

func existsRef(ok bool, err error, field string) error {
	if err != nil {
		return err
	}
	if !ok {
		return problem.BadRequest(field + " does not reference a record in this organization")
	}
	return nil
}
