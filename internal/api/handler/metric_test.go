package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetricPush_InvalidServiceID(t *testing.T) {
	h := NewMetric(nil)

	r := newRequest(http.MethodPost, "/services/abc/metrics", map[string]any{
		"organization_id": "org-1",
		"entries":         []map[string]any{{"key": "storage_used", "value": 42}},
	})
	r = withChiURLParam(r, "id", "abc")
	rec := httptest.NewRecorder()

	h.Push(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricPush_MissingOrganization(t *testing.T) {
	h := NewMetric(nil)

	r := newRequest(http.MethodPost, "/services/1/metrics", map[string]any{
		"entries": []map[string]any{{"key": "storage_used", "value": 42}},
	})
	r = withChiURLParam(r, "id", "1")
	rec := httptest.NewRecorder()

	h.Push(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricPush_EmptyEntries(t *testing.T) {
	h := NewMetric(nil)

	r := newRequest(http.MethodPost, "/services/1/metrics", map[string]any{
		"organization_id": "org-1",
		"entries":         []map[string]any{},
	})
	r = withChiURLParam(r, "id", "1")
	rec := httptest.NewRecorder()

	h.Push(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricPush_RejectsUnknownAccountType(t *testing.T) {
	h := NewMetric(nil)

	r := newRequest(http.MethodPost, "/services/1/metrics", map[string]any{
		"organization_id": "org-1",
		"entries": []map[string]any{
			{"key": "storage_used", "value": 42, "account_type": "robot"},
		},
	})
	r = withChiURLParam(r, "id", "1")
	rec := httptest.NewRecorder()

	h.Push(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
