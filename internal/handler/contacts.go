package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/leadkit/gateway/internal/gateway"
	"github.com/leadkit/gateway/internal/model"
	"github.com/leadkit/gateway/internal/problem"
	"github.com/leadkit/gateway/internal/store"
)

// ContactsHandler serves /v1/contacts and its activities and tags
// sub-resources.
type ContactsHandler struct {
	store *store.Store
	ops   []operation
}

// NewContactsHandler creates a ContactsHandler.
func NewContactsHandler(s *store.Store) *ContactsHandler {
	h := &ContactsHandler{store: s}
	h.ops = []operation{
		{collection, "", http.MethodGet, h.list},
		{collection, "", http.MethodPost, h.create},
		{item, "", http.MethodGet, h.get},
		{item, "", http.MethodPatch, h.update},
		{sub, "activities", http.MethodGet, h.listActivities},
		{sub, "activities", http.MethodPost, h.logActivity},
		{sub, "tags", http.MethodPost, h.addTags},
		{subItem, "tags", http.MethodDelete, h.removeTag},
	}
	return h
}

// Serve implements gateway.Resource.
func (h *ContactsHandler) Serve(w http.ResponseWriter, req *gateway.Request) error {
	return dispatch(h.ops, w, req)
}

type contactInput struct {
	Email     string  `json:"email" validate:"required,max=320"`
	FirstName *string `json:"first_name" validate:"omitempty,max=200"`
	LastName  *string `json:"last_name" validate:"omitempty,max=200"`
	Phone     *string `json:"phone" validate:"omitempty,max=50"`
	CompanyID *string `json:"company_id"`
	Source    *string `json:"source" validate:"omitempty,max=100"`
	Status    *string `json:"status" validate:"omitempty,oneof=lead customer churned"`
}

type contactPatch struct {
	Email     *string `json:"email" validate:"omitempty,max=320"`
	FirstName *string `json:"first_name" validate:"omitempty,max=200"`
	LastName  *string `json:"last_name" validate:"omitempty,max=200"`
	Phone     *string `json:"phone" validate:"omitempty,max=50"`
	CompanyID *string `json:"company_id"`
	Source    *string `json:"source" validate:"omitempty,max=100"`
	Status    *string `json:"status" validate:"omitempty,oneof=lead customer churned"`
}

// fields returns the columns a patch sets, skipping email.
func (p *contactPatch) fields() store.Fields {
	f := store.Fields{}
	if p.FirstName != nil {
		f["first_name"] = *p.FirstName
	}
	if p.LastName != nil {
		f["last_name"] = *p.LastName
	}
	if p.Phone != nil {
		f["phone"] = *p.Phone
	}
	if p.CompanyID != nil {
		f["company_id"] = nullable(p.CompanyID)
	}
	if p.Source != nil {
		f["source"] = *p.Source
	}
	if p.Status != nil {
		f["status"] = *p.Status
	}
	return f
}

type activityInput struct {
	Type       string     `json:"type" validate:"required,oneof=note call email meeting task"`
	Subject    string     `json:"subject" validate:"required,max=500"`
	Body       string     `json:"body" validate:"max=10000"`
	OccurredAt *time.Time `json:"occurred_at"`
}

type tagIDsInput struct {
	TagIDs []string `json:"tag_ids" validate:"required,min=1,dive,required"`
}

func (h *ContactsHandler) list(w http.ResponseWriter, req *gateway.Request) error {
	if err := authorize(req, model.EntityContacts, model.ActionRead, "read contacts"); err != nil {
		return err
	}
	page := pageOf(req.Request)
	filter := store.ContactFilter{
		Search:    queryString(req.Request, "search"),
		Status:    queryString(req.Request, "status"),
		CompanyID: queryString(req.Request, "company_id"),
	}
	contacts, total, err := h.store.ListContacts(req.Context(), req.OrganizationID(), filter, page)
	if err != nil {
		return err
	}
	writeList(w, contacts, total, page)
	return nil
}

func (h *ContactsHandler) get(w http.ResponseWriter, req *gateway.Request) error {
	if err := authorize(req, model.EntityContacts, model.ActionRead, "read contacts"); err != nil {
		return err
	}
	c, err := h.store.GetContact(req.Context(), req.OrganizationID(), req.Route.ID)
	if err != nil {
		return storeError(err, "Contact")
	}
	writeData(w, http.StatusOK, c)
	return nil
}

// create inserts a contact, or merges the supplied fields into the existing
// contact with the same email.
func (h *ContactsHandler) create(w http.ResponseWriter, req *gateway.Request) error {
	if err := authorize(req, model.EntityContacts, model.ActionWrite, "create contacts"); err != nil {
		return err
	}
	var in contactInput
	if err := decode(req.Request, &in); err != nil {
		return err
	}
	if err := checkEmail(in.Email); err != nil {
		return err
	}
	ctx := req.Context()
	orgID := req.OrganizationID()

	if err := companyRef(ctx, h.store, orgID, in.CompanyID); err != nil {
		return err
	}

	c := &model.Contact{
		OrganizationID: orgID,
		Email:          store.NormalizeEmail(in.Email),
		FirstName:      deref(in.FirstName),
		LastName:       deref(in.LastName),
		Phone:          deref(in.Phone),
		CompanyID:      optional(in.CompanyID),
		Source:         deref(in.Source),
		Status:         deref(in.Status),
	}
	merge := (&contactPatch{
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Phone:     in.Phone,
		CompanyID: in.CompanyID,
		Source:    in.Source,
		Status:    in.Status,
	}).fields()

	contact, created, err := h.store.UpsertContact(ctx, c, merge)
	if err != nil {
		return storeError(err, "Contact")
	}
	if contact.Tags == nil {
		contact.Tags = []model.Tag{}
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, model.UpsertResponse{Data: contact, Created: created})
	return nil
}

func (h *ContactsHandler) update(w http.ResponseWriter, req *gateway.Request) error {
	if err := authorize(req, model.EntityContacts, model.ActionWrite, "update contacts"); err != nil {
		return err
	}
	var in contactPatch
	if err := decode(req.Request, &in); err != nil {
		return err
	}
	ctx := req.Context()
	orgID := req.OrganizationID()

	f := in.fields()
	if in.Email != nil {
		if err := checkEmail(*in.Email); err != nil {
			return err
		}
		f["email"] = store.NormalizeEmail(*in.Email)
	}
	if len(f) == 0 {
		return problem.BadRequest("No fields to update")
	}
	if err := companyRef(ctx, h.store, orgID, in.CompanyID); err != nil {
		return err
	}

	if err := h.store.UpdateContact(ctx, orgID, req.Route.ID, f); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return problem.Conflict("A contact with this email already exists")
		}
		return storeError(err, "Contact")
	}
	c, err := h.store.GetContact(ctx, orgID, req.Route.ID)
	if err != nil {
		return storeError(err, "Contact")
	}
	writeData(w, http.StatusOK, c)
	return nil
}

func (h *ContactsHandler) listActivities(w http.ResponseWriter, req *gateway.Request) error {
	if err := authorize(req, model.EntityActivities, model.ActionRead, "read activities"); err != nil {
		return err
	}
	ctx := req.Context()
	orgID := req.OrganizationID()
	if _, err := h.store.GetContact(ctx, orgID, req.Route.ID); err != nil {
		return storeError(err, "Contact")
	}

	page := pageOf(req.Request)
	activities, total, err := h.store.ListActivities(ctx, orgID, req.Route.ID, page)
	if err != nil {
		return err
	}
	writeList(w, activities, total, page)
	return nil
}

func (h *ContactsHandler) logActivity(w http.ResponseWriter, req *gateway.Request) error {
	if err := authorize(req, model.EntityActivities, model.ActionWrite, "create activities"); err != nil {
		return err
	}
	var in activityInput
	if err := decode(req.Request, &in); err != nil {
		return err
	}
	ctx := req.Context()
	orgID := req.OrganizationID()
	if _, err := h.store.GetContact(ctx, orgID, req.Route.ID); err != nil {
		return storeError(err, "Contact")
	}

	a := &model.Activity{
		OrganizationID: orgID,
		ContactID:      req.Route.ID,
		Type:           in.Type,
		Subject:        in.Subject,
		Body:           in.Body,
	}
	if in.OccurredAt != nil {
		a.OccurredAt = *in.OccurredAt
	}
	if err := h.store.CreateActivity(ctx, a); err != nil {
		return err
	}
	writeData(w, http.StatusCreated, a)
	return nil
}

func (h *ContactsHandler) addTags(w http.ResponseWriter, req *gateway.Request) error {
	if err := authorize(req, model.EntityContacts, model.ActionWrite, "tag contacts"); err != nil {
		return err
	}
	var in tagIDsInput
	if err := decode(req.Request, &in); err != nil {
		return err
	}
	ctx := req.Context()
	orgID := req.OrganizationID()
	if _, err := h.store.GetContact(ctx, orgID, req.Route.ID); err != nil {
		return storeError(err, "Contact")
	}

	if err := h.store.AddContactTags(ctx, orgID, req.Route.ID, in.TagIDs); err != nil {
		return refError(err, "tag_ids")
	}
	tags, err := h.store.ContactTags(ctx, orgID, req.Route.ID)
	if err != nil {
		return err
	}
	writeData(w, http.StatusOK, tags)
	return nil
}

func (h *ContactsHandler) removeTag(w http.ResponseWriter, req *gateway.Request) error {
	if err := authorize(req, model.EntityContacts, model.ActionDelete, "untag contacts"); err != nil {
		return err
	}
	ctx := req.Context()
	orgID := req.OrganizationID()
	if _, err := h.store.GetContact(ctx, orgID, req.Route.ID); err != nil {
		return storeError(err, "Contact")
	}
	if err := h.store.RemoveContactTag(ctx, orgID, req.Route.ID, req.Route.SubID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return problem.NotFound("Tag is not applied to this contact")
		}
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}
