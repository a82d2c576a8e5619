package model

import "time"

// RequestLog is one audit entry per gateway request. Rows are append-only.
type RequestLog struct {
	ID             string    `json:"id" db:"id"`
	APIKeyID       *string   `json:"api_key_id" db:"api_key_id"`
	OrganizationID *string   `json:"organization_id" db:"organization_id"`
	Method         string    `json:"method" db:"method"`
	Path           string    `json:"path" db:"path"`
	Query          string    `json:"query" db:"query"`
	ClientIP       string    `json:"client_ip" db:"client_ip"`
	UserAgent      string    `json:"user_agent" db:"user_agent"`
	Status         int       `json:"status" db:"status"`
	ResponseTimeMs int64     `json:"response_time_ms" db:"response_time_ms"`
	Error          *string   `json:"error" db:"error"`
	RequestID      string    `json:"request_id" db:"request_id"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
