package store

import (
	"context"
	"fmt"
	"time"

	"github.com/leadkit/gateway/internal/model"
)

const requestLogColumns = `id, api_key_id, organization_id, method, path, query, client_ip, user_agent,
	status, response_time_ms, error, request_id, created_at`

// RequestLogFilter narrows ListRequestLogs. Zero values match everything.
type RequestLogFilter struct {
	OrganizationID string
	APIKeyID       string
	Limit          int
}

// InsertRequestLog appends an audit row.
func (s *Store) InsertRequestLog(ctx context.Context, entry *model.RequestLog) error {
	if entry.ID == "" {
		entry.ID = newID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now()
	}
	_, err := s.db.ExecContext(ctx, s.q(`INSERT INTO request_logs (`+requestLogColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		entry.ID, entry.APIKeyID, entry.OrganizationID, entry.Method, entry.Path, entry.Query,
		entry.ClientIP, entry.UserAgent, entry.Status, entry.ResponseTimeMs, entry.Error,
		entry.RequestID, entry.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert request log: %w", err)
	}
	return nil
}

// ListRequestLogs returns the newest audit rows first.
func (s *Store) ListRequestLogs(ctx context.Context, f RequestLogFilter) ([]model.RequestLog, error) {
	var w where
	if f.OrganizationID != "" {
		w.add("organization_id = ?", f.OrganizationID)
	}
	if f.APIKeyID != "" {
		w.add("api_key_id = ?", f.APIKeyID)
	}
	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	logs := []model.RequestLog{}
	query := `SELECT ` + requestLogColumns + ` FROM request_logs` + w.sql() +
		` ORDER BY created_at DESC, id DESC LIMIT ?`
	if err := s.db.SelectContext(ctx, &logs, s.q(query), append(w.args, limit)...); err != nil {
		return nil, fmt.Errorf("list request logs: %w", err)
	}
	return logs, nil
}

// CountRequestLogs returns the number of audit rows.
func (s *Store) CountRequestLogs(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM request_logs`); err != nil {
		return 0, fmt.Errorf("count request logs: %w", err)
	}
	return n, nil
}

// PruneRequestLogs deletes audit rows older than t.
func (s *Store) PruneRequestLogs(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM request_logs WHERE created_at < ?`), before.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune request logs: %w", err)
	}
	return res.RowsAffected()
}
