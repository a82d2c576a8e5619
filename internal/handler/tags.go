package handler

import (
	"net/http"

	"github.com/leadkit/gateway/internal/gateway"
	"github.com/leadkit/gateway/internal/model"
	"github.com/leadkit/gateway/internal/store"
)

// TagsHandler serves the read-only /v1/tags collection.
type TagsHandler struct {
	store *store.Store
	ops   []operation
}

// NewTagsHandler creates a TagsHandler.
func NewTagsHandler(s *store.Store) *TagsHandler {
	h := &TagsHandler{store: s}
	h.ops = []operation{
		{collection, "", http.MethodGet, h.list},
	}
	return h
}

// Serve implements gateway.Resource.
func (h *TagsHandler) Serve(w http.ResponseWriter, req *gateway.Request) error {
	return dispatch(h.ops, w, req)
}

func (h *TagsHandler) list(w http.ResponseWriter, req *gateway.Request) error {
	if err := authorize(req, model.EntityTags, model.ActionRead, "read tags"); err != nil {
		return err
	}
	page := pageOf(req.Request)
	tags, total, err := h.store.ListTags(req.Context(), req.OrganizationID(), page)
	if err != nil {
		return err
	}
	writeList(w, tags, total, page)
	return nil
}
