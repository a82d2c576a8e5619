package store

import (
	"context"
	"fmt"
	"time"

	"github.com/leadkit/gateway/internal/model"
)

const taskColumns = `id, organization_id, title, description, due_date, priority, status, contact_id, deal_id,
	completed_at, created_at, updated_at`

// TaskFilter narrows ListTasks.
type TaskFilter struct {
	Status    string
	ContactID string
	DealID    string
}

// ListTasks returns a page of tasks, soonest due first.
func (s *Store) ListTasks(ctx context.Context, orgID string, f TaskFilter, page model.Page) ([]model.Task, int64, error) {
	w := tenant(orgID)
	if f.Status != "" {
		w.add("status = ?", f.Status)
	}
	if f.ContactID != "" {
		w.add("contact_id = ?", f.ContactID)
	}
	if f.DealID != "" {
		w.add("deal_id = ?", f.DealID)
	}
	tasks := []model.Task{}
	total, err := s.listPage(ctx, &tasks, "tasks", taskColumns, w,
		"CASE WHEN due_date IS NULL THEN 1 ELSE 0 END, due_date, created_at, id", page)
	if err != nil {
		return nil, 0, err
	}
	return tasks, total, nil
}

// GetTask returns one task.
func (s *Store) GetTask(ctx context.Context, orgID, id string) (*model.Task, error) {
	var t model.Task
	if err := s.getScoped(ctx, &t, "tasks", taskColumns, orgID, id); err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateTask inserts a task.
func (s *Store) CreateTask(ctx context.Context, t *model.Task) error {
	t.ID = newID()
	t.CreatedAt = now()
	t.UpdatedAt = t.CreatedAt
	if t.Priority == "" {
		t.Priority = model.TaskPriorityMedium
	}
	if t.Status == "" {
		t.Status = model.TaskStatusPending
	}
	_, err := s.db.ExecContext(ctx, s.q(`INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		t.ID, t.OrganizationID, t.Title, t.Description, t.DueDate, t.Priority, t.Status, t.ContactID, t.DealID,
		t.CompletedAt, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert task: %w", classify(err))
	}
	return nil
}

// UpdateTask applies a partial update.
func (s *Store) UpdateTask(ctx context.Context, orgID, id string, f Fields) error {
	return s.updateScoped(ctx, "tasks", orgID, id, f)
}

// CompleteTask marks a task completed at the given time.
func (s *Store) CompleteTask(ctx context.Context, orgID, id string, at time.Time) error {
	return s.updateScoped(ctx, "tasks", orgID, id, Fields{
		"status":       model.TaskStatusCompleted,
		"completed_at": at.UTC(),
	})
}
