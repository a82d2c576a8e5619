package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/leadkit/gateway/internal/gateway"
	"github.com/leadkit/gateway/internal/model"
	"github.com/leadkit/gateway/internal/problem"
	"github.com/leadkit/gateway/internal/store"
)

// DealsHandler serves /v1/deals and /v1/deals/{id}/stage.
type DealsHandler struct {
	store *store.Store
	ops   []operation
}

// NewDealsHandler creates a DealsHandler.
func NewDealsHandler(s *store.Store) *DealsHandler {
	h := &DealsHandler{store: s}
	h.ops = []operation{
		{collection, "", http.MethodGet, h.list},
		{collection, "", http.MethodPost, h.create},
		{item, "", http.MethodGet, h.get},
		{item, "", http.MethodPatch, h.update},
		{sub, "stage", http.MethodPatch, h.move},
	}
	return h
}

// Serve implements gateway.Resource.
func (h *DealsHandler) Serve(w http.ResponseWriter, req *gateway.Request) error {
	return dispatch(h.ops, w, req)
}

type dealInput struct {
	Title             string     `json:"title" validate:"required,max=300"`
	Value             float64    `json:"value" validate:"min=0"`
	Currency          string     `json:"currency" validate:"omitempty,len=3,uppercase"`
	PipelineID        *string    `json:"pipeline_id"`
	StageID           *string    `json:"stage_id"`
	ContactID         *string    `json:"contact_id"`
	CompanyID         *string    `json:"company_id"`
	ExpectedCloseDate *time.Time `json:"expected_close_date"`
}

type dealPatch struct {
	Title             *string    `json:"title" validate:"omitempty,min=1,max=300"`
	Value             *float64   `json:"value" validate:"omitempty,min=0"`
	Currency          *string    `json:"currency" validate:"omitempty,len=3,uppercase"`
	ContactID         *string    `json:"contact_id"`
	CompanyID         *string    `json:"company_id"`
	ExpectedCloseDate *time.Time `json:"expected_close_date"`
}

type stageInput struct {
	StageID string `json:"stage_id" validate:"required"`
}

func (h *DealsHandler) list(w http.ResponseWriter, req *gateway.Request) error {
	if err := authorize(req, model.EntityDeals, model.ActionRead, "read deals"); err != nil {
		return err
	}
	page := pageOf(req.Request)
	filter := store.DealFilter{
		Status:     queryString(req.Request, "status"),
		PipelineID: queryString(req.Request, "pipeline_id"),
		StageID:    queryString(req.Request, "stage_id"),
		ContactID:  queryString(req.Request, "contact_id"),
	}
	deals, total, err := h.store.ListDeals(req.Context(), req.OrganizationID(), filter, page)
	if err != nil {
		return err
	}
	writeList(w, deals, total, page)
	return nil
}

func (h *DealsHandler) get(w http.ResponseWriter, req *gateway.Request) error {
	if err := authorize(req, model.EntityDeals, model.ActionRead, "read deals"); err != nil {
		return err
	}
	d, err := h.store.GetDeal(req.Context(), req.OrganizationID(), req.Route.ID)
	if err != nil {
		return storeError(err, "Deal")
	}
	writeData(w, http.StatusOK, d)
	return nil
}

func (h *DealsHandler) create(w http.ResponseWriter, req *gateway.Request) error {
	if err := authorize(req, model.EntityDeals, model.ActionWrite, "create deals"); err != nil {
		return err
	}
	var in dealInput
	if err := decode(req.Request, &in); err != nil {
		return err
	}
	ctx := req.Context()
	orgID := req.OrganizationID()

	if err := contactRef(ctx, h.store, orgID, in.ContactID); err != nil {
		return err
	}
	if err := companyRef(ctx, h.store, orgID, in.CompanyID); err != nil {
		return err
	}
	stage, err := h.placement(ctx, orgID, optional(in.PipelineID), optional(in.StageID))
	if err != nil {
		return err
	}

	d := &model.Deal{
		OrganizationID:    orgID,
		Title:             in.Title,
		Value:             in.Value,
		Currency:          in.Currency,
		PipelineID:        stage.PipelineID,
		StageID:           stage.ID,
		ContactID:         optional(in.ContactID),
		CompanyID:         optional(in.CompanyID),
		Status:            stage.DealStatus(),
		ExpectedCloseDate: in.ExpectedCloseDate,
	}
	if err := h.store.CreateDeal(ctx, d); err != nil {
		return storeError(err, "Deal")
	}
	writeData(w, http.StatusCreated, d)
	return nil
}

// placement resolves the stage a new deal starts in. Without a pipeline the
// organization's default pipeline is used; without a stage, its first stage.
func (h *DealsHandler) placement(ctx context.Context, orgID string, pipelineID, stageID *string) (*model.Stage, error) {
	if stageID != nil {
		stage, err := h.store.GetStage(ctx, orgID, *stageID)
		if err != nil {
			return nil, refError(err, "stage_id")
		}
		if pipelineID != nil && stage.PipelineID != *pipelineID {
			return nil, problem.BadRequest("stage_id does not belong to pipeline_id")
		}
		return stage, nil
	}

	var (
		pipeline *model.Pipeline
		err      error
	)
	if pipelineID != nil {
		pipeline, err = h.store.GetPipeline(ctx, orgID, *pipelineID)
		if err != nil {
			return nil, refError(err, "pipeline_id")
		}
	} else {
		pipeline, err = h.store.DefaultPipeline(ctx, orgID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, problem.BadRequest("No pipeline exists for this organization")
		}
		if err != nil {
			return nil, err
		}
	}

	stages, err := h.store.ListStages(ctx, orgID, pipeline.ID)
	if err != nil {
		return nil, err
	}
	if len(stages) == 0 {
		return nil, problem.BadRequest("Pipeline has no stages")
	}
	return &stages[0], nil
}

func (h *DealsHandler) update(w http.ResponseWriter, req *gateway.Request) error {
	if err := authorize(req, model.EntityDeals, model.ActionWrite, "update deals"); err != nil {
		return err
	}
	var in dealPatch
	if err := decode(req.Request, &in); err != nil {
		return err
	}
	ctx := req.Context()
	orgID := req.OrganizationID()

	f := store.Fields{}
	if in.Title != nil {
		f["title"] = *in.Title
	}
	if in.Value != nil {
		f["value"] = *in.Value
	}
	if in.Currency != nil {
		f["currency"] = *in.Currency
	}
	if in.ContactID != nil {
		if err := contactRef(ctx, h.store, orgID, in.ContactID); err != nil {
			return err
		}
		f["contact_id"] = nullable(in.ContactID)
	}
	if in.CompanyID != nil {
		if err := companyRef(ctx, h.store, orgID, in.CompanyID); err != nil {
			return err
		}
		f["company_id"] = nullable(in.CompanyID)
	}
	if in.ExpectedCloseDate != nil {
		f["expected_close_date"] = in.ExpectedCloseDate.UTC()
	}
	if len(f) == 0 {
		return problem.BadRequest("No fields to update")
	}

	if err := h.store.UpdateDeal(ctx, orgID, req.Route.ID, f); err != nil {
		return storeError(err, "Deal")
	}
	return h.respond(ctx, w, orgID, req.Route.ID)
}

// move puts a deal in another stage; won and lost stages close it.
func (h *DealsHandler) move(w http.ResponseWriter, req *gateway.Request) error {
	if err := authorize(req, model.EntityDeals, model.ActionWrite, "update deals"); err != nil {
		return err
	}
	var in stageInput
	if err := decode(req.Request, &in); err != nil {
		return err
	}
	ctx := req.Context()
	orgID := req.OrganizationID()

	if _, err := h.store.GetDeal(ctx, orgID, req.Route.ID); err != nil {
		return storeError(err, "Deal")
	}
	stage, err := h.store.GetStage(ctx, orgID, in.StageID)
	if err != nil {
		return refError(err, "stage_id")
	}
	if err := h.store.MoveDealToStage(ctx, orgID, req.Route.ID, stage); err != nil {
		return storeError(err, "Deal")
	}
	return h.respond(ctx, w, orgID, req.Route.ID)
}

func (h *DealsHandler) respond(ctx context.Context, w http.ResponseWriter, orgID, id string) error {
	d, err := h.store.GetDeal(ctx, orgID, id)
	if err != nil {
		return storeError(err, "Deal")
	}
	writeData(w, http.StatusOK, d)
	return nil
}
