package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// KeyPrefixLength is the number of leading credential characters persisted
// for lookup: "ks_live_" plus eight characters of the secret.
const KeyPrefixLength = 16

// Key environments embedded in the credential after the "ks_" marker.
const (
	KeyEnvLive = "live"
	KeyEnvTest = "test"
)

// APIKey is a tenant-scoped credential for the CRM REST API. The raw key is
// never stored; only its SHA-256 hash and a short lookup prefix are persisted.
type APIKey struct {
	ID                 string      `json:"id" db:"id"`
	OrganizationID     string      `json:"organization_id" db:"organization_id"`
	Name               string      `json:"name" db:"name"`
	KeyPrefix          string      `json:"key_prefix" db:"key_prefix"`
	KeyHash            string      `json:"-" db:"key_hash"`
	Permissions        Permissions `json:"permissions" db:"permissions"`
	AllowedIPs         IPList      `json:"allowed_ips" db:"allowed_ips"`
	RateLimitPerMinute int         `json:"rate_limit_per_minute" db:"rate_limit_per_minute"`
	RateLimitPerDay    int         `json:"rate_limit_per_day" db:"rate_limit_per_day"`
	IsActive           bool        `json:"is_active" db:"is_active"`
	ExpiresAt          *time.Time  `json:"expires_at,omitempty" db:"expires_at"`
	LastUsedAt         *time.Time  `json:"last_used_at,omitempty" db:"last_used_at"`
	LastUsedIP         *string     `json:"last_used_ip,omitempty" db:"last_used_ip"`
	UsageCount         int64       `json:"usage_count" db:"usage_count"`
	CreatedAt          time.Time   `json:"created_at" db:"created_at"`
}

// Expired reports whether the key has an expiry at or before now.
func (k *APIKey) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && !k.ExpiresAt.After(now)
}

// IPList is a set of exact addresses or CIDR ranges, stored as a JSON array.
type IPList []string

// Value implements driver.Valuer.
func (l IPList) Value() (driver.Value, error) {
	if l == nil {
		l = IPList{}
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (l *IPList) Scan(src any) error {
	return scanJSON(src, (*[]string)(l))
}

func scanJSON(src any, dst any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), dst)
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, dst)
	default:
		return fmt.Errorf("unsupported JSON column type %T", src)
	}
}

func jsonValue(v any) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
