package handler

import (
	"net/http"

	"github.com/leadkit/gateway/internal/gateway"
	"github.com/leadkit/gateway/internal/model"
	"github.com/leadkit/gateway/internal/store"
)

// PipelinesHandler serves /v1/pipelines and /v1/pipelines/{id}/stages.
type PipelinesHandler struct {
	store *store.Store
	ops   []operation
}

// NewPipelinesHandler creates a PipelinesHandler.
func NewPipelinesHandler(s *store.Store) *PipelinesHandler {
	h := &PipelinesHandler{store: s}
	h.ops = []operation{
		{collection, "", http.MethodGet, h.list},
		{sub, "stages", http.MethodGet, h.stages},
	}
	return h
}

// Serve implements gateway.Resource.
func (h *PipelinesHandler) Serve(w http.ResponseWriter, req *gateway.Request) error {
	return dispatch(h.ops, w, req)
}

func (h *PipelinesHandler) list(w http.ResponseWriter, req *gateway.Request) error {
	if err := authorize(req, model.EntityPipelines, model.ActionRead, "read pipelines"); err != nil {
		return err
	}
	page := pageOf(req.Request)
	pipelines, total, err := h.store.ListPipelines(req.Context(), req.OrganizationID(), page)
	if err != nil {
		return err
	}
	writeList(w, pipelines, total, page)
	return nil
}

func (h *PipelinesHandler) stages(w http.ResponseWriter, req *gateway.Request) error {
	if err := authorize(req, model.EntityPipelines, model.ActionRead, "read pipelines"); err != nil {
		return err
	}
	ctx := req.Context()
	if _, err := h.store.GetPipeline(ctx, req.OrganizationID(), req.Route.ID); err != nil {
		return storeError(err, "Pipeline")
	}
	stages, err := h.store.ListStages(ctx, req.OrganizationID(), req.Route.ID)
	if err != nil {
		return err
	}
	writeData(w, http.StatusOK, stages)
	return nil
}
