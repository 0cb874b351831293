package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/edvin/deploycenter/internal/api/request"
	"github.com/edvin/deploycenter/internal/api/response"
	"github.com/edvin/deploycenter/internal/core"
	"github.com/edvin/deploycenter/internal/model"
)

type Operator struct {
	svc *core.OperatorService
}

func NewOperator(svc *core.OperatorService) *Operator {
	return &Operator{svc: svc}
}

func (h *Operator) List(w http.ResponseWriter, r *http.Request) {
	params := request.ParseListParams(r, "name")

	operators, hasMore, err := h.svc.List(r.Context(), params)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var nextCursor string
	if hasMore && len(operators) > 0 {
		nextCursor = operators[len(operators)-1].ID
	}
	response.WritePaginated(w, http.StatusOK, operators, nextCursor, hasMore)
}

func (h *Operator) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string         `json:"name" validate:"required"`
		URL      *string        `json:"url"`
		Config   map[string]any `json:"config"`
		IsActive *bool          `json:"is_active"`
	}
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	operator := &model.Operator{
		Name:     req.Name,
		URL:      req.URL,
		Config:   req.Config,
		IsActive: true,
	}
	if req.IsActive != nil {
		operator.IsActive = *req.IsActive
	}

	if err := h.svc.Create(r.Context(), operator); err != nil {
		writeServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusCreated, operator)
}

func (h *Operator) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	operator, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, operator)
}

func (h *Operator) Update(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req struct {
		Name     string         `json:"name"`
		URL      *string        `json:"url"`
		Config   map[string]any `json:"config"`
		IsActive *bool          `json:"is_active"`
	}
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	operator, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if req.Name != "" {
		operator.Name = req.Name
	}
	if req.URL != nil {
		operator.URL = req.URL
	}
	if req.Config != nil {
		operator.Config = req.Config
	}
	if req.IsActive != nil {
		operator.IsActive = *req.IsActive
	}

	if err := h.svc.Update(r.Context(), operator); err != nil {
		writeServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, operator)
}

func (h *Operator) Delete(w http.ResponseWriter, r *http.Request) {
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
