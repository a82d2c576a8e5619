package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/leadkit/gateway/internal/model"
)

const contactColumns = `id, organization_id, email, first_name, last_name, phone, company_id, source, status,
	created_at, updated_at`

// ContactFilter narrows ListContacts.
type ContactFilter struct {
	Search    string
	Status    string
	CompanyID string
}

// NormalizeEmail is the canonical form used for uniqueness.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ListContacts returns a page of contacts with their tags.
func (s *Store) ListContacts(ctx context.Context, orgID string, f ContactFilter, page model.Page) ([]model.Contact, int64, error) {
	w := tenant(orgID)
	if f.Search != "" {
		p := like(f.Search)
		w.add("("+likeClause("email")+" OR "+likeClause("first_name")+" OR "+likeClause("last_name")+")", p, p, p)
	}
	if f.Status != "" {
		w.add("status = ?", f.Status)
	}
	if f.CompanyID != "" {
		w.add("company_id = ?", f.CompanyID)
	}

	contacts := []model.Contact{}
	total, err := s.listPage(ctx, &contacts, "contacts", contactColumns, w, "created_at DESC, id DESC", page)
	if err != nil {
		return nil, 0, err
	}
	if err := s.attachTags(ctx, orgID, contacts); err != nil {
		return nil, 0, err
	}
	return contacts, total, nil
}

// GetContact returns one contact with its tags.
func (s *Store) GetContact(ctx context.Context, orgID, id string) (*model.Contact, error) {
	var c model.Contact
	if err := s.getScoped(ctx, &c, "contacts", contactColumns, orgID, id); err != nil {
		return nil, err
	}
	tags, err := s.ContactTags(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	c.Tags = tags
	return &c, nil
}

// GetContactByEmail looks a contact up by its normalized email.
func (s *Store) GetContactByEmail(ctx context.Context, orgID, email string) (*model.Contact, error) {
	var c model.Contact
	err := s.db.GetContext(ctx, &c, s.q(
		`SELECT `+contactColumns+` FROM contacts WHERE organization_id = ? AND email = ?`),
		orgID, NormalizeEmail(email))
	if err != nil {
		return nil, classify(err)
	}
	return &c, nil
}

// CreateContact inserts a contact. A duplicate email returns ErrConflict.
func (s *Store) CreateContact(ctx context.Context, c *model.Contact) error {
	c.ID = newID()
	c.Email = NormalizeEmail(c.Email)
	if c.Status == "" {
		c.Status = model.ContactStatusLead
	}
	c.CreatedAt = now()
	c.UpdatedAt = c.CreatedAt
	c.Tags = []model.Tag{}

	_, err := s.db.ExecContext(ctx, s.q(`INSERT INTO contacts (`+contactColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		c.ID, c.OrganizationID, c.Email, c.FirstName, c.LastName, c.Phone, c.CompanyID, c.Source, c.Status,
		c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert contact: %w", classify(err))
	}
	return nil
}

// UpsertContact inserts c unless a contact with the same email already exists
// in the organization, in which case merge is applied to the existing row.
// The boolean reports whether a new row was created.
func (s *Store) UpsertContact(ctx context.Context, c *model.Contact, merge Fields) (*model.Contact, bool, error) {
	for attempt := 0; attempt < 2; attempt++ {
		existing, err := s.GetContactByEmail(ctx, c.OrganizationID, c.Email)
		switch {
		case err == nil:
			if len(merge) > 0 {
				if err := s.UpdateContact(ctx, c.OrganizationID, existing.ID, merge); err != nil {
					return nil, false, err
				}
			}
			updated, err := s.GetContact(ctx, c.OrganizationID, existing.ID)
			return updated, false, err
		case !errors.Is(err, ErrNotFound):
			return nil, false, err
		}

		err = s.CreateContact(ctx, c)
		if err == nil {
			return c, true, nil
		}
		// Lost a race with a concurrent insert of the same email.
		if !errors.Is(err, ErrConflict) {
			return nil, false, err
		}
	}
	return nil, false, fmt.Errorf("upsert contact %q: %w", c.Email, ErrConflict)
}

// UpdateContact applies a partial update.
func (s *Store) UpdateContact(ctx context.Context, orgID, id string, f Fields) error {
	if email, ok := f["email"].(string); ok {
		f["email"] = NormalizeEmail(email)
	}
	return s.updateScoped(ctx, "contacts", orgID, id, f)
}

// ContactTags returns the tags applied to a contact, by name.
func (s *Store) ContactTags(ctx context.Context, orgID, contactID string) ([]model.Tag, error) {
	tags := []model.Tag{}
	err := s.db.SelectContext(ctx, &tags, s.q(
		`SELECT t.id, t.organization_id, t.name, t.color, t.created_at
		 FROM tags t JOIN contact_tags ct ON ct.tag_id = t.id
		 WHERE ct.organization_id = ? AND ct.contact_id = ?
		 ORDER BY t.name`), orgID, contactID)
	if err != nil {
		return nil, fmt.Errorf("list contact tags: %w", err)
	}
	return tags, nil
}

func (s *Store) attachTags(ctx context.Context, orgID string, contacts []model.Contact) error {
	if len(contacts) == 0 {
		return nil
	}
	ids := make([]string, len(contacts))
	for i := range contacts {
		ids[i] = contacts[i].ID
		contacts[i].Tags = []model.Tag{}
	}

	query, args, err := sqlx.In(
		`SELECT ct.contact_id, t.id, t.organization_id, t.name, t.color, t.created_at
		 FROM tags t JOIN contact_tags ct ON ct.tag_id = t.id
		 WHERE ct.organization_id = ? AND ct.contact_id IN (?)
		 ORDER BY t.name`, orgID, ids)
	if err != nil {
		return fmt.Errorf("build tag query: %w", err)
	}

	var rows []struct {
		ContactID string `db:"contact_id"`
		model.Tag
	}
	if err := s.db.SelectContext(ctx, &rows, s.q(query), args...); err != nil {
		return fmt.Errorf("load contact tags: %w", err)
	}

	index := make(map[string]int, len(contacts))
	for i := range contacts {
		index[contacts[i].ID] = i
	}
	for _, r := range rows {
		if i, ok := index[r.ContactID]; ok {
			contacts[i].Tags = append(contacts[i].Tags, r.Tag)
		}
	}
	return nil
}

// AddContactTags applies tags to a contact. Every tag must belong to the
// organization; already-applied tags are left alone.
func (s *Store) AddContactTags(ctx context.Context, orgID, contactID string, tagIDs []string) error {
	for _, tagID := range tagIDs {
		ok, err := s.exists(ctx, "tags", orgID, tagID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("tag %s: %w", tagID, ErrNotFound)
		}
	}

	for _, tagID := range tagIDs {
		_, err := s.db.ExecContext(ctx, s.q(
			`INSERT INTO contact_tags (contact_id, tag_id, organization_id, created_at) VALUES (?, ?, ?, ?)`),
			contactID, tagID, orgID, now())
		if err = classify(err); err != nil && !errors.Is(err, ErrConflict) {
			return fmt.Errorf("tag contact: %w", err)
		}
	}
	return nil
}

// RemoveContactTag detaches one tag. ErrNotFound when it was not applied.
func (s *Store) RemoveContactTag(ctx context.Context, orgID, contactID, tagID string) error {
	res, err := s.db.ExecContext(ctx, s.q(
		`DELETE FROM contact_tags WHERE organization_id = ? AND contact_id = ? AND tag_id = ?`),
		orgID, contactID, tagID)
	if err != nil {
		return fmt.Errorf("untag contact: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
