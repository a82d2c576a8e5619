package handler

import (
	"net/http"

	"github.com/leadkit/gateway/internal/gateway"
	"github.com/leadkit/gateway/internal/model"
	"github.com/leadkit/gateway/internal/problem"
	"github.com/leadkit/gateway/internal/store"
)

// CompaniesHandler serves /v1/companies.
type CompaniesHandler struct {
	store *store.Store
	ops   []operation
}

// NewCompaniesHandler creates a CompaniesHandler.
func NewCompaniesHandler(s *store.Store) *CompaniesHandler {
	h := &CompaniesHandler{store: s}
	h.ops = []operation{
		{collection, "", http.MethodGet, h.list},
		{collection, "", http.MethodPost, h.create},
		{item, "", http.MethodGet, h.get},
		{item, "", http.MethodPatch, h.update},
	}
	return h
}

// Serve implements gateway.Resource.
func (h *CompaniesHandler) Serve(w http.ResponseWriter, req *gateway.Request) error {
	return dispatch(h.ops, w, req)
}

type companyInput struct {
	Name     string `json:"name" validate:"required,max=300"`
	Domain   string `json:"domain" validate:"omitempty,fqdn"`
	Industry string `json:"industry" validate:"max=200"`
	Website  string `json:"website" validate:"omitempty,url"`
	Phone    string `json:"phone" validate:"max=50"`
}

type companyPatch struct {
	Name     *string `json:"name" validate:"omitempty,min=1,max=300"`
	Domain   *string `json:"domain" validate:"omitempty,fqdn"`
	Industry *string `json:"industry" validate:"omitempty,max=200"`
	Website  *string `json:"website" validate:"omitempty,url"`
	Phone    *string `json:"phone" validate:"omitempty,max=50"`
}

func (h *CompaniesHandler) list(w http.ResponseWriter, req *gateway.Request) error {
	if err := authorize(req, model.EntityCompanies, model.ActionRead, "read companies"); err != nil {
		return err
	}
	page := pageOf(req.Request)
	companies, total, err := h.store.ListCompanies(req.Context(), req.OrganizationID(), queryString(req.Request, "search"), page)
	if err != nil {
		return err
	}
	writeList(w, companies, total, page)
	return nil
}

func (h *CompaniesHandler) get(w http.ResponseWriter, req *gateway.Request) error {
	if err := authorize(req, model.EntityCompanies, model.ActionRead, "read companies"); err != nil {
		return err
	}
	c, err := h.store.GetCompany(req.Context(), req.OrganizationID(), req.Route.ID)
	if err != nil {
		return storeError(err, "Company")
	}
	writeData(w, http.StatusOK, c)
	return nil
}

func (h *CompaniesHandler) create(w http.ResponseWriter, req *gateway.Request) error {
	if err := authorize(req, model.EntityCompanies, model.ActionWrite, "create companies"); err != nil {
		return err
	}
	var in companyInput
	if err := decode(req.Request, &in); err != nil {
		return err
	}
	c := &model.Company{
		OrganizationID: req.OrganizationID(),
		Name:           in.Name,
		Domain:         in.Domain,
		Industry:       in.Industry,
		Website:        in.Website,
		Phone:          in.Phone,
	}
	if err := h.store.CreateCompany(req.Context(), c); err != nil {
		return storeError(err, "Company")
	}
	writeData(w, http.StatusCreated, c)
	return nil
}

func (h *CompaniesHandler) update(w http.ResponseWriter, req *gateway.Request) error {
	if err := authorize(req, model.EntityCompanies, model.ActionWrite, "update companies"); err != nil {
		return err
	}
	var in companyPatch
	if err := decode(req.Request, &in); err != nil {
		return err
	}

	f := store.Fields{}
	set := func(col string, v *string) {
		if v != nil {
			f[col] = *v
		}
	}
	set("name", in.Name)
	set("domain", in.Domain)
	set("industry", in.Industry)
	set("website", in.Website)
	set("phone", in.Phone)
	if len(f) == 0 {
		return problem.BadRequest("No fields to update")
	}

	ctx := req.Context()
	if err := h.store.UpdateCompany(ctx, req.OrganizationID(), req.Route.ID, f); err != nil {
		return storeError(err, "Company")
	}
	c, err := h.store.GetCompany(ctx, req.OrganizationID(), req.Route.ID)
	if err != nil {
		return storeError(err, "Company")
	}
	writeData(w, http.StatusOK, c)
	return nil
}
