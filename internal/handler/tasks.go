package handler

import (
	"net/http"
	"time"

	"github.com/leadkit/gateway/internal/gateway"
	"github.com/leadkit/gateway/internal/model"
	"github.com/leadkit/gateway/internal/problem"
	"github.com/leadkit/gateway/internal/store"
)

// TasksHandler serves /v1/tasks. Single tasks are only addressable for
// updates.
type TasksHandler struct {
	store *store.Store
	now   func() time.Time
	ops   []operation
}

// NewTasksHandler creates a TasksHandler.
func NewTasksHandler(s *store.Store) *TasksHandler {
	h := &TasksHandler{store: s, now: time.Now}
	h.ops = []operation{
		{collection, "", http.MethodGet, h.list},
		{collection, "", http.MethodPost, h.create},
		{item, "", http.MethodPatch, h.update},
		{sub, "complete", http.MethodPatch, h.complete},
	}
	return h
}

// Serve implements gateway.Resource.
func (h *TasksHandler) Serve(w http.ResponseWriter, req *gateway.Request) error {
	return dispatch(h.ops, w, req)
}

type taskInput struct {
	Title       string     `json:"title" validate:"required,max=500"`
	Description string     `json:"description" validate:"max=10000"`
	DueDate     *time.Time `json:"due_date"`
	Priority    string     `json:"priority" validate:"omitempty,oneof=low medium high"`
	ContactID   *string    `json:"contact_id"`
	DealID      *string    `json:"deal_id"`
}

type taskPatch struct {
	Title       *string    `json:"title" validate:"omitempty,min=1,max=500"`
	Description *string    `json:"description" validate:"omitempty,max=10000"`
	DueDate     *time.Time `json:"due_date"`
	Priority    *string    `json:"priority" validate:"omitempty,oneof=low medium high"`
	Status      *string    `json:"status" validate:"omitempty,oneof=pending completed"`
	ContactID   *string    `json:"contact_id"`
	DealID      *string    `json:"deal_id"`
}

func (h *TasksHandler) list(w http.ResponseWriter, req *gateway.Request) error {
	if err := authorize(req, model.EntityTasks, model.ActionRead, "read tasks"); err != nil {
		return err
	}
	page := pageOf(req.Request)
	filter := store.TaskFilter{
		Status:    queryString(req.Request, "status"),
		ContactID: queryString(req.Request, "contact_id"),
		DealID:    queryString(req.Request, "deal_id"),
	}
	tasks, total, err := h.store.ListTasks(req.Context(), req.OrganizationID(), filter, page)
	if err != nil {
		return err
	}
	writeList(w, tasks, total, page)
	return nil
}

func (h *TasksHandler) create(w http.ResponseWriter, req *gateway.Request) error {
	if err := authorize(req, model.EntityTasks, model.ActionWrite, "create tasks"); err != nil {
		return err
	}
	var in taskInput
	if err := decode(req.Request, &in); err != nil {
		return err
	}
	ctx := req.Context()
	orgID := req.OrganizationID()

	if err := contactRef(ctx, h.store, orgID, in.ContactID); err != nil {
		return err
	}
	if err := dealRef(ctx, h.store, orgID, in.DealID); err != nil {
		return err
	}

	t := &model.Task{
		OrganizationID: orgID,
		Title:          in.Title,
		Description:    in.Description,
		DueDate:        in.DueDate,
		Priority:       in.Priority,
		ContactID:      optional(in.ContactID),
		DealID:         optional(in.DealID),
	}
	if err := h.store.CreateTask(ctx, t); err != nil {
		return storeError(err, "Task")
	}
	writeData(w, http.StatusCreated, t)
	return nil
}

func (h *TasksHandler) update(w http.ResponseWriter, req *gateway.Request) error {
	if err := authorize(req, model.EntityTasks, model.ActionWrite, "update tasks"); err != nil {
		return err
	}
	var in taskPatch
	if err := decode(req.Request, &in); err != nil {
		return err
	}
	ctx := req.Context()
	orgID := req.OrganizationID()

	f := store.Fields{}
	if in.Title != nil {
		f["title"] = *in.Title
	}
	if in.Description != nil {
		f["description"] = *in.Description
	}
	if in.DueDate != nil {
		f["due_date"] = in.DueDate.UTC()
	}
	if in.Priority != nil {
		f["priority"] = *in.Priority
	}
	if in.Status != nil {
		f["status"] = *in.Status
		if *in.Status == model.TaskStatusCompleted {
			f["completed_at"] = h.now().UTC()
		} else {
			f["completed_at"] = nil
		}
	}
	if in.ContactID != nil {
		if err := contactRef(ctx, h.store, orgID, in.ContactID); err != nil {
			return err
		}
		f["contact_id"] = nullable(in.ContactID)
	}
	if in.DealID != nil {
		if err := dealRef(ctx, h.store, orgID, in.DealID); err != nil {
			return err
		}
		f["deal_id"] = nullable(in.DealID)
	}
	if len(f) == 0 {
		return problem.BadRequest("No fields to update")
	}

	if err := h.store.UpdateTask(ctx, orgID, req.Route.ID, f); err != nil {
		return storeError(err, "Task")
	}
	t, err := h.store.GetTask(ctx, orgID, req.Route.ID)
	if err != nil {
		return storeError(err, "Task")
	}
	writeData(w, http.StatusOK, t)
	return nil
}

func (h *TasksHandler) complete(w http.ResponseWriter, req *gateway.Request) error {
	if err := authorize(req, model.EntityTasks, model.ActionWrite, "update tasks"); err != nil {
		return err
	}
	ctx := req.Context()
	orgID := req.OrganizationID()

	if err := h.store.CompleteTask(ctx, orgID, req.Route.ID, h.now()); err != nil {
		return storeError(err, "Task")
	}
	t, err := h.store.GetTask(ctx, orgID, req.Route.ID)
	if err != nil {
		return storeError(err, "Task")
	}
	writeData(w, http.StatusOK, t)
	return nil
}
