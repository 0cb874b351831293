package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/edvin/deploycenter/internal/api/request"
	"github.com/edvin/deploycenter/internal/api/response"
	"github.com/edvin/deploycenter/internal/core"
	"github.com/edvin/deploycenter/internal/model"
)

type Entitlement struct {
	svc *core.EntitlementService
}

func NewEntitlement(svc *core.EntitlementService) *Entitlement {
	return &Entitlement{svc: svc}
}

func (h *Entitlement) ListBySubscription(w http.ResponseWriter, r *http.Request) {
	subID, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	rows, err := h.svc.ListBySubscription(r.Context(), subID)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	response.WriteJSON(w, http.StatusOK, rows)
}

func (h *Entitlement) Create(w http.ResponseWriter, r *http.Request) {
	subID, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req struct {
		Type        string         `json:"type" validate:"required,slug"`
		AccountType string         `json:"account_type" validate:"required,oneof=user mailbox organization"`
		AccountID   *string        `json:"account_id"`
		Config      map[string]any `json:"config"`
	}
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	row := &model.Entitlement{
		ServiceSubscriptionID: subID,
		Type:                  req.Type,
		AccountType:           req.AccountType,
		AccountID:             req.AccountID,
		Config:                req.Config,
	}

	if err := h.svc.Create(r.Context(), row); err != nil {
		writeServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusCreated, row)
}

func (h *Entitlement) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	row, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, row)
}

func (h *Entitlement) Update(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req struct {
		Config map[string]any `json:"config" validate:"required"`
	}
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	row, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	row.Config = req.Config

	if err := h.svc.Update(r.Context(), row); err != nil {
		writeServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, row)
}

func (h *Entitlement) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
