package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newServiceHandler() *Service {
	return NewService(nil, nil, "deploycenter-tasks")
}

// --- Create ---

func TestServiceCreate_InvalidJSON(t *testing.T) {
	h := newServiceHandler()
	rec := httptest.NewRecorder()
	r := newRequestRaw(http.MethodPost, "/services", "{bad json")

	h.Create(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeErrorResponse(rec)["error"], "invalid JSON")
}

func TestServiceCreate_MissingRequiredFields(t *testing.T) {
	h := newServiceHandler()
	rec := httptest.NewRecorder()
	r := newRequest(http.MethodPost, "/services", map[string]any{"name": "Drive"})

	h.Create(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeErrorResponse(rec)["error"], "validation error")
}

func TestServiceCreate_InvalidMaturity(t *testing.T) {
	h := newServiceHandler()
	rec := httptest.NewRecorder()
	r := newRequest(http.MethodPost, "/services", map[string]any{
		"type":     "drive",
		"name":     "Drive",
		"url":      "https://drive.example.fr",
		"maturity": "experimental",
	})

	h.Create(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServiceCreate_TypeMustBeSlug(t *testing.T) {
	h := newServiceHandler()
	rec := httptest.NewRecorder()
	r := newRequest(http.MethodPost, "/services", map[string]any{
		"type": "My Drive",
		"name": "Drive",
		"url":  "https://drive.example.fr",
	})

	h.Create(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// --- ID parsing ---

func TestServiceGet_NonNumericID(t *testing.T) {
	h := newServiceHandler()
	rec := httptest.NewRecorder()
	r := newRequest(http.MethodGet, "/services/drive", nil)
	r = withChiURLParam(r, "id", "drive")

	h.Get(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeErrorResponse(rec)["error"], "invalid service ID")
}

func TestServiceTriggerScrape_NonNumericID(t *testing.T) {
	h := newServiceHandler()
	rec := httptest.NewRecorder()
	r := newRequest(http.MethodPost, "/services/drive/scrape", nil)
	r = withChiURLParam(r, "id", "drive")

	h.TriggerScrape(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// --- Required services ---

func TestServiceSetRequiredServices_MissingBody(t *testing.T) {
	h := newServiceHandler()
	rec := httptest.NewRecorder()
	r := newRequest(http.MethodPut, "/services/3/required-services", map[string]any{})
	r = withChiURLParam(r, "id", "3")

	h.SetRequiredServices(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// --- Logo ---

func TestServiceSetLogo_EmptyBody(t *testing.T) {
	h := newServiceHandler()
	rec := httptest.NewRecorder()
	r := newRequestRaw(http.MethodPut, "/services/3/logo", "")
	r = withChiURLParam(r, "id", "3")

	h.SetLogo(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeErrorResponse(rec)["error"], "empty logo body")
}

func TestServiceSetLogo_TooLarge(t *testing.T) {
	h := newServiceHandler()
	rec := httptest.NewRecorder()
	body := make([]byte, maxLogoBytes+1)
	for i := range body {
		body[i] = 'a'
	}
	r := newRequestRaw(http.MethodPut, "/services/3/logo", string(body))
	r = withChiURLParam(r, "id", "3")

	h.SetLogo(rec, r)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
