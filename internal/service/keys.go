package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"

	"github.com/leadkit/gateway/internal/model"
	"github.com/leadkit/gateway/internal/store"
)

var credentialPattern = regexp.MustCompile(`^ks_(live|test)_[A-Za-z0-9]{16,}$`)

// ValidCredential reports whether raw has the ks_<env>_<secret> shape.
func ValidCredential(raw string) bool {
	return credentialPattern.MatchString(raw)
}

// HashKey returns the hex SHA-256 of a raw credential.
func HashKey(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}

// GenerateKey returns a fresh credential for env with its lookup prefix.
func GenerateKey(env string) (raw, prefix string, err error) {
	if env != model.KeyEnvLive && env != model.KeyEnvTest {
		return "", "", fmt.Errorf("unknown key environment %q", env)
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("generate random key: %w", err)
	}
	raw = "ks_" + env + "_" + hex.EncodeToString(b)
	return raw, raw[:model.KeyPrefixLength], nil
}

// KeyCreator persists new keys.
type KeyCreator interface {
	CreateAPIKey(ctx context.Context, key *model.APIKey) error
}

// IssueAPIKey generates a credential, stores its hash and prefix on key and
// persists it. The raw credential is returned once and never stored.
func IssueAPIKey(ctx context.Context, keys KeyCreator, key *model.APIKey, env string) (string, error) {
	for attempt := 0; attempt < 3; attempt++ {
		raw, prefix, err := GenerateKey(env)
		if err != nil {
			return "", err
		}
		key.KeyPrefix = prefix
		key.KeyHash = HashKey(raw)
		key.IsActive = true

		err = keys.CreateAPIKey(ctx, key)
		if err == nil {
			return raw, nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return "", err
		}
	}
	return "", fmt.Errorf("issue api key: prefix collisions exhausted")
}
