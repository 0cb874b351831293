package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/edvin/deploycenter/internal/model"
)

type mockKeyStore struct {
	mock.Mock
}

func (m *mockKeyStore) GetByRawKey(ctx context.Context, rawKey string) (*model.APIKey, error) {
	args := m.Called(ctx, rawKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.APIKey), args.Error(1)
}

func authedHandler(t *testing.T, captured **APIKeyIdentity) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*captured = GetIdentity(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuth_MissingKey(t *testing.T) {
	keys := &mockKeyStore{}
	var identity *APIKeyIdentity

	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/services", nil)
	Auth(keys)(authedHandler(t, &identity)).ServeHTTP(rec, r)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, identity)
	keys.AssertNotCalled(t, "GetByRawKey")
}

func TestAuth_InvalidKey(t *testing.T) {
	keys := &mockKeyStore{}
	keys.On("GetByRawKey", mock.Anything, "dpc_bogus").Return(nil, errors.New("not found"))
	var identity *APIKeyIdentity

	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/services", nil)
	r.Header.Set("X-API-Key", "dpc_bogus")
	Auth(keys)(authedHandler(t, &identity)).ServeHTTP(rec, r)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, identity)
}

func TestAuth_ValidKeySetsIdentity(t *testing.T) {
	opID := "op-1"
	keys := &mockKeyStore{}
	keys.On("GetByRawKey", mock.Anything, "dpc_valid").Return(&model.APIKey{
		ID:         "key-1",
		Name:       "operator key",
		OperatorID: &opID,
		Superuser:  false,
	}, nil)
	var identity *APIKeyIdentity

	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/services", nil)
	r.Header.Set("X-API-Key", "dpc_valid")
	Auth(keys)(authedHandler(t, &identity)).ServeHTTP(rec, r)

	assert.Equal(t, http.StatusOK, rec.Code)
	if assert.NotNil(t, identity) {
		assert.Equal(t, "key-1", identity.ID)
		assert.Equal(t, &opID, identity.OperatorID)
		assert.False(t, identity.Superuser)
	}
}

func TestGetIdentity_Unauthenticated(t *testing.T) {
	assert.Nil(t, GetIdentity(context.Background()))
}
