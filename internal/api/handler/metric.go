package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/edvin/deploycenter/internal/api/request"
	"github.com/edvin/deploycenter/internal/api/response"
	"github.com/edvin/deploycenter/internal/core"
)

type Metric struct {
	svc *core.MetricService
}

func NewMetric(svc *core.MetricService) *Metric {
	return &Metric{svc: svc}
}

// Push godoc
//
//	@Summary		Push metric observations for a service
//	@Tags			Metrics
//	@Security		ApiKeyAuth
//	@Param			id	path	string	true	"Service ID"
//	@Success		204
//	@Failure		400	{object}	response.ErrorResponse
//	@Failure		500	{object}	response.ErrorResponse
//	@Router			/services/{id}/metrics [post]
func (h *Metric) Push(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireServiceID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req struct {
		OrganizationID string `json:"organization_id" validate:"required"`
		Reconcile      bool   `json:"reconcile"`
		Entries        []struct {
			Key          string  `json:"key" validate:"required"`
			Value        float64 `json:"value"`
			AccountType  string  `json:"account_type" validate:"omitempty,oneof=user mailbox organization"`
			AccountID    string  `json:"account_id"`
			AccountEmail string  `json:"account_email" validate:"omitempty,email"`
		} `json:"entries" validate:"required,min=1,dive"`
	}
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	entries := make([]core.MetricEntry, 0, len(req.Entries))
	for _, e := range req.Entries {
		entries = append(entries, core.MetricEntry{
			Key:          e.Key,
			Value:        e.Value,
			AccountType:  e.AccountType,
			AccountID:    e.AccountID,
			AccountEmail: e.AccountEmail,
		})
	}

	if err := h.svc.UpsertMetrics(r.Context(), id, req.OrganizationID, entries, req.Reconcile); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
