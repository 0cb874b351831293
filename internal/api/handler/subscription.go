package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	mw "github.com/edvin/deploycenter/internal/api/middleware"
	"github.com/edvin/deploycenter/internal/api/request"
	"github.com/edvin/deploycenter/internal/api/response"
	"github.com/edvin/deploycenter/internal/core"
	"github.com/edvin/deploycenter/internal/model"
)

type Subscription struct {
	svc        *core.SubscriptionService
	dispatcher core.EventDispatcher
}

func NewSubscription(svc *core.SubscriptionService, dispatcher core.EventDispatcher) *Subscription {
	return &Subscription{svc: svc, dispatcher: dispatcher}
}

// writeOptions derives the lifecycle write options from the authenticated
// API key.
func writeOptions(r *http.Request) core.WriteOptions {
	opts := core.WriteOptions{}
	if identity := mw.GetIdentity(r.Context()); identity != nil {
		opts.Actor = identity.Name
		opts.SuperuserOverride = identity.Superuser
	}
	return opts
}

func (h *Subscription) List(w http.ResponseWriter, r *http.Request) {
	params := request.ParseListParams(r, "created_at")

	subs, hasMore, err := h.svc.List(r.Context(), params)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var nextCursor string
	if hasMore && len(subs) > 0 {
		nextCursor = subs[len(subs)-1].ID
	}
	response.WritePaginated(w, http.StatusOK, subs, nextCursor, hasMore)
}

func (h *Subscription) ListByOrganization(w http.ResponseWriter, r *http.Request) {
	orgID, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	subs, err := h.svc.ListByOrganization(r.Context(), orgID)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	response.WriteJSON(w, http.StatusOK, subs)
}

func (h *Subscription) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	sub, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, sub)
}

func (h *Subscription) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrganizationID string         `json:"organization_id" validate:"required"`
		OperatorID     string         `json:"operator_id" validate:"required"`
		ServiceID      int64          `json:"service_id" validate:"required"`
		Metadata       map[string]any `json:"metadata"`
		IsActive       *bool          `json:"is_active"`
	}
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	sub := &model.ServiceSubscription{
		OrganizationID: req.OrganizationID,
		OperatorID:     req.OperatorID,
		ServiceID:      req.ServiceID,
		Metadata:       req.Metadata,
		IsActive:       true,
	}
	if req.IsActive != nil {
		sub.IsActive = *req.IsActive
	}

	events, err := h.svc.Create(r.Context(), sub, writeOptions(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.dispatcher.Dispatch(r.Context(), events)

	response.WriteJSON(w, http.StatusCreated, sub)
}

func (h *Subscription) Update(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req struct {
		Metadata map[string]any `json:"metadata"`
		IsActive *bool          `json:"is_active"`
	}
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	sub, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if req.Metadata != nil {
		sub.Metadata = req.Metadata
	}
	if req.IsActive != nil {
		sub.IsActive = *req.IsActive
	}

	events, err := h.svc.Update(r.Context(), sub, writeOptions(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.dispatcher.Dispatch(r.Context(), events)

	response.WriteJSON(w, http.StatusOK, sub)
}

func (h *Subscription) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	events, err := h.svc.Delete(r.Context(), id, writeOptions(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.dispatcher.Dispatch(r.Context(), events)

	w.WriteHeader(http.StatusNoContent)
}
