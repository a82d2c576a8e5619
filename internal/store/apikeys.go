package store

import (
	"context"
	"fmt"
	"time"

	"github.com/leadkit/gateway/internal/model"
)

const apiKeyColumns = `id, organization_id, name, key_prefix, key_hash, permissions, allowed_ips,
	rate_limit_per_minute, rate_limit_per_day, is_active, expires_at, last_used_at, last_used_ip,
	usage_count, created_at`

// CreateAPIKey inserts a key. ID and CreatedAt are assigned here; KeyPrefix
// and KeyHash must already be set. A prefix collision returns ErrConflict.
func (s *Store) CreateAPIKey(ctx context.Context, key *model.APIKey) error {
	key.ID = newID()
	key.CreatedAt = now()
	key.UsageCount = 0
	if key.AllowedIPs == nil {
		key.AllowedIPs = model.IPList{}
	}
	if key.ExpiresAt != nil {
		t := key.ExpiresAt.UTC()
		key.ExpiresAt = &t
	}

	_, err := s.db.ExecContext(ctx, s.q(`INSERT INTO api_keys (`+apiKeyColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		key.ID, key.OrganizationID, key.Name, key.KeyPrefix, key.KeyHash, key.Permissions, key.AllowedIPs,
		key.RateLimitPerMinute, key.RateLimitPerDay, key.IsActive, key.ExpiresAt, key.LastUsedAt, key.LastUsedIP,
		key.UsageCount, key.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert api key: %w", classify(err))
	}
	return nil
}

// GetAPIKey returns a key by ID.
func (s *Store) GetAPIKey(ctx context.Context, id string) (*model.APIKey, error) {
	var key model.APIKey
	err := s.db.GetContext(ctx, &key, s.q(`SELECT `+apiKeyColumns+` FROM api_keys WHERE id = ?`), id)
	if err != nil {
		return nil, classify(err)
	}
	return &key, nil
}

// GetAPIKeyByPrefix resolves a credential prefix to its key record.
func (s *Store) GetAPIKeyByPrefix(ctx context.Context, prefix string) (*model.APIKey, error) {
	var key model.APIKey
	err := s.db.GetContext(ctx, &key, s.q(`SELECT `+apiKeyColumns+` FROM api_keys WHERE key_prefix = ?`), prefix)
	if err != nil {
		return nil, classify(err)
	}
	return &key, nil
}

// ListAPIKeys returns the keys of one organization, or of all organizations
// when orgID is empty.
func (s *Store) ListAPIKeys(ctx context.Context, orgID string) ([]model.APIKey, error) {
	keys := []model.APIKey{}
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys`
	var args []any
	if orgID != "" {
		query += ` WHERE organization_id = ?`
		args = append(args, orgID)
	}
	query += ` ORDER BY created_at DESC, id`
	if err := s.db.SelectContext(ctx, &keys, s.q(query), args...); err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	return keys, nil
}

// RevokeAPIKey deactivates a key. Revoked keys stay in place for the audit
// trail.
func (s *Store) RevokeAPIKey(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.q(`UPDATE api_keys SET is_active = ? WHERE id = ?`), false, id)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := s.GetAPIKey(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// TouchAPIKey records a successful authentication: last-used time and IP,
// and one more use.
func (s *Store) TouchAPIKey(ctx context.Context, id, ip string, at time.Time) error {
	var lastIP *string
	if ip != "" {
		lastIP = &ip
	}
	_, err := s.db.ExecContext(ctx, s.q(
		`UPDATE api_keys SET last_used_at = ?, last_used_ip = ?, usage_count = usage_count + 1 WHERE id = ?`),
		at.UTC(), lastIP, id)
	if err != nil {
		return fmt.Errorf("touch api key: %w", err)
	}
	return nil
}
