package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	mw "github.com/kiranshivaraju/contentpilot/internal/api/middleware"
	"github.com/kiranshivaraju/contentpilot/internal/api/response"
	"github.com/kiranshivaraju/contentpilot/internal/apikey"
	"github.com/kiranshivaraju/contentpilot/pkg/models"
	"golang.org/x/crypto/bcrypt"
)

// KeyStore manages API keys.
type KeyStore interface {
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context, profileID uuid.UUID) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID, profileID uuid.UUID) error
}

// NewCreateKeyHandler returns an http.HandlerFunc for POST /api/v1/admin/keys.
// The raw key is in the response and never again.
func NewCreateKeyHandler(keys KeyStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		profileID, ok := mw.GetProfileID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing profile", nil)
			return
		}

		var req struct {
			Name   string   `json:"name"`
			Scopes []string `json:"scopes"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.BadRequest(w, "Invalid JSON body")
			return
		}

		key, raw, err := apikey.New(profileID, req.Name, req.Scopes, bcrypt.DefaultCost)
		if err != nil {
			if errors.Is(err, apikey.ErrInvalidName) || errors.Is(err, apikey.ErrUnknownScope) {
				response.BadRequest(w, err.Error())
				return
			}
			writeError(w, r, err)
			return
		}

		if err := keys.CreateAPIKey(r.Context(), key); err != nil {
			writeError(w, r, err)
			return
		}

		response.Created(w, map[string]any{
			"id":         key.ID.String(),
			"name":       key.Name,
			"key":        raw,
			"key_prefix": key.KeyPrefix,
			"scopes":     key.Scopes,
			"created_at": key.CreatedAt,
		})
	}
}

// NewListKeysHandler returns an http.HandlerFunc for GET /api/v1/admin/keys.
func NewListKeysHandler(keys KeyStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		profileID, ok := mw.GetProfileID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing profile", nil)
			return
		}

		list, err := keys.ListAPIKeys(r.Context(), profileID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if list == nil {
			list = []*models.APIKey{}
		}
		response.Collection(w, list, len(list), nil)
	}
}

// NewRevokeKeyHandler returns an http.HandlerFunc for DELETE /api/v1/admin/keys/{keyID}.
func NewRevokeKeyHandler(keys KeyStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		profileID, ok := mw.GetProfileID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing profile", nil)
			return
		}
		keyID, ok := uuidParam(w, r, "keyID")
		if !ok {
			return
		}

		if err := keys.RevokeAPIKey(r.Context(), keyID, profileID); err != nil {
			writeError(w, r, err)
			return
		}
		response.JSON(w, map[string]any{"id": keyID, "revoked": true})
	}
}
