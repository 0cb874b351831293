package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"

	"github.com/edvin/deploycenter/internal/core"
)

func TestWriteServiceError_Validation(t *testing.T) {
	rec := httptest.NewRecorder()
	writeServiceError(rec, &core.ValidationError{
		Code:    core.CodePopulationLimitExceeded,
		Message: "population 5000 exceeds the commune limit 3500",
	})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decodeErrorResponse(rec)
	assert.Equal(t, core.CodePopulationLimitExceeded, body["code"])
	assert.Contains(t, body["error"], "exceeds")
}

func TestWriteServiceError_WrappedNotFound(t *testing.T) {
	rec := httptest.NewRecorder()
	writeServiceError(rec, fmt.Errorf("get organization org-1: %w", pgx.ErrNoRows))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWriteServiceError_Internal(t *testing.T) {
	rec := httptest.NewRecorder()
	writeServiceError(rec, errors.New("connection refused"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
