package middleware

import (
	"context"
	"net/http"

	"github.com/edvin/deploycenter/internal/api/response"
	"github.com/edvin/deploycenter/internal/model"
)

type contextKey string

const APIKeyIdentityKey contextKey = "api_key_identity"

// KeyStore resolves a raw API key to its stored row. Implemented by
// core.APIKeyService.
type KeyStore interface {
	GetByRawKey(ctx context.Context, rawKey string) (*model.APIKey, error)
}

// APIKeyIdentity is the authenticated caller. OperatorID is set for
// operator-bound keys; superuser keys may override guarded fields.
type APIKeyIdentity struct {
	ID         string
	Name       string
	OperatorID *string
	Superuser  bool
}

// Auth returns a middleware that validates the X-API-Key header against the
// api_keys table. Revoked keys are rejected by the store lookup.
func Auth(keys KeyStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				response.WriteError(w, http.StatusUnauthorized, "missing API key")
				return
			}

			row, err := keys.GetByRawKey(r.Context(), key)
			if err != nil {
				response.WriteError(w, http.StatusUnauthorized, "invalid API key")
				return
			}

			identity := &APIKeyIdentity{
				ID:         row.ID,
				Name:       row.Name,
				OperatorID: row.OperatorID,
				Superuser:  row.Superuser,
			}
			ctx := context.WithValue(r.Context(), APIKeyIdentityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetIdentity returns the authenticated identity, or nil outside the
// authenticated route group.
func GetIdentity(ctx context.Context) *APIKeyIdentity {
	identity, _ := ctx.Value(APIKeyIdentityKey).(*APIKeyIdentity)
	return identity
}
