// Package apikey mints API keys. Raw keys are returned once; only the bcrypt
// hash and the clear-text lookup prefix are stored.
package apikey

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/contentpilot/internal/api/middleware"
	"github.com/kiranshivaraju/contentpilot/pkg/models"
	"golang.org/x/crypto/bcrypt"
)

// Prefix starts every raw key.
const Prefix = "cp_"

const secretBytes = 24

var (
	ErrInvalidName  = errors.New("key name must be 1-64 characters")
	ErrUnknownScope = errors.New("unknown scope")
)

var knownScopes = map[string]bool{"read": true, "write": true, middleware.ScopeAdmin: true}

// New returns a fresh key for profileID and its raw secret. Scopes default to read and write.
func New(profileID uuid.UUID, name string, scopes []string, cost int) (*models.APIKey, string, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 64 {
		return nil, "", ErrInvalidName
	}
	if len(scopes) == 0 {
		scopes = []string{"read", "write"}
	}
	for _, s := range scopes {
		if !knownScopes[s] {
			return nil, "", fmt.Errorf("%w %q", ErrUnknownScope, s)
		}
	}

	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return nil, "", fmt.Errorf("generate key: %w", err)
	}
	raw := Prefix + hex.EncodeToString(buf)

	hash, err := bcrypt.GenerateFromPassword([]byte(raw), cost)
	if err != nil {
		return nil, "", fmt.Errorf("hash key: %w", err)
	}

	now := time.Now().UTC()
	return &models.APIKey{
		ID:        uuid.New(),
		ProfileID: profileID,
		Name:      name,
		KeyHash:   string(hash),
		KeyPrefix: raw[:middleware.KeyPrefixLen],
		Scopes:    scopes,
		CreatedAt: now,
		UpdatedAt: now,
	}, raw, nil
}
