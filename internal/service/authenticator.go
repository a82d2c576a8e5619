package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/leadkit/gateway/internal/metrics"
	"github.com/leadkit/gateway/internal/model"
	"github.com/leadkit/gateway/internal/ratelimit"
	"github.com/leadkit/gateway/internal/store"
)

// Client-facing failure details. Every credential problem past the format
// check shares one detail so callers cannot probe which part was wrong.
const (
	DetailMissingKey           = "Missing or malformed API key"
	DetailInvalidKey           = "Invalid API key"
	DetailIPNotAllowed         = "IP address not allowed"
	DetailRateLimited          = "Rate limit exceeded"
	DetailRateLimitUnavailable = "Rate limit check unavailable"
)

// KeyStore is the slice of the persistence layer the authenticator uses.
type KeyStore interface {
	GetAPIKeyByPrefix(ctx context.Context, prefix string) (*model.APIKey, error)
	TouchAPIKey(ctx context.Context, id, ip string, at time.Time) error
}

// RateLimiter consumes one request from a key's quota.
type RateLimiter interface {
	CheckAndConsume(ctx context.Context, keyID string, perMinute, perDay int) ratelimit.Decision
}

// AuthResult is the outcome of authenticating one request. Build it only
// through authOK and authFail.
type AuthResult struct {
	OK             bool
	KeyID          string
	OrganizationID string
	Permissions    *model.Permissions

	// Status and Detail are the client-facing failure; Cause is the
	// internal reason recorded in the audit log.
	Status int
	Detail string
	Cause  string

	RateLimit *ratelimit.Decision
}

func authOK(key *model.APIKey, d *ratelimit.Decision) AuthResult {
	perms := key.Permissions
	return AuthResult{
		OK:             true,
		KeyID:          key.ID,
		OrganizationID: key.OrganizationID,
		Permissions:    &perms,
		RateLimit:      d,
	}
}

func authFail(status int, detail, cause string) AuthResult {
	metrics.AuthFailures.WithLabelValues(strconv.Itoa(status)).Inc()
	return AuthResult{Status: status, Detail: detail, Cause: cause}
}

// Authenticator validates bearer credentials and applies the per-key
// policies attached to them.
type Authenticator struct {
	keys    KeyStore
	limiter RateLimiter
	logger  *slog.Logger
	now     func() time.Time
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(keys KeyStore, limiter RateLimiter, logger *slog.Logger) *Authenticator {
	return &Authenticator{keys: keys, limiter: limiter, logger: logger, now: time.Now}
}

// Authenticate runs the credential checks in order and stops at the first
// failure: header, format, prefix lookup, active flag, expiry, hash, IP
// allow-list, rate limit.
func (a *Authenticator) Authenticate(r *http.Request) AuthResult {
	ctx := r.Context()

	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return authFail(http.StatusUnauthorized, DetailMissingKey, "missing credential")
	}
	scheme, raw, found := strings.Cut(header, " ")
	raw = strings.TrimSpace(raw)
	if !found || !strings.EqualFold(scheme, "Bearer") || !ValidCredential(raw) {
		return authFail(http.StatusUnauthorized, DetailMissingKey, "malformed credential")
	}

	hash := HashKey(raw)
	key, err := a.keys.GetAPIKeyByPrefix(ctx, raw[:model.KeyPrefixLength])
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			a.logger.Error("api key lookup failed", "error", err)
		}
		return authFail(http.StatusUnauthorized, DetailInvalidKey, "unknown key prefix")
	}

	fail := func(status int, detail, cause string) AuthResult {
		res := authFail(status, detail, cause)
		res.KeyID = key.ID
		return res
	}

	if !key.IsActive {
		return fail(http.StatusUnauthorized, DetailInvalidKey, "key revoked")
	}
	now := a.now()
	if key.Expired(now) {
		return fail(http.StatusUnauthorized, DetailInvalidKey, "key expired")
	}
	if subtle.ConstantTimeCompare([]byte(hash), []byte(key.KeyHash)) != 1 {
		return fail(http.StatusUnauthorized, DetailInvalidKey, "secret mismatch")
	}

	ip := ClientIP(r)
	if !IPAllowed(key.AllowedIPs, ip) {
		return fail(http.StatusForbidden, DetailIPNotAllowed, "ip "+ip+" not in allow-list")
	}

	decision := a.limiter.CheckAndConsume(ctx, key.ID, key.RateLimitPerMinute, key.RateLimitPerDay)
	if !decision.Allowed {
		var res AuthResult
		if decision.Degraded {
			res = fail(http.StatusInternalServerError, DetailRateLimitUnavailable, "rate limiter unavailable")
		} else {
			res = fail(http.StatusTooManyRequests, DetailRateLimited, "rate limit exceeded")
		}
		res.RateLimit = &decision
		return res
	}

	a.touch(ctx, key.ID, ip, now)
	return authOK(key, &decision)
}

// touch records usage. Failures are logged and never fail the request.
func (a *Authenticator) touch(ctx context.Context, keyID, ip string, at time.Time) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := a.keys.TouchAPIKey(ctx, keyID, ip, at); err != nil {
		a.logger.Warn("api key usage update failed", "key_id", keyID, "error", err)
	}
}
