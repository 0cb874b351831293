package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/edvin/deploycenter/internal/api/request"
	"github.com/edvin/deploycenter/internal/api/response"
	"github.com/edvin/deploycenter/internal/core"
	"github.com/edvin/deploycenter/internal/model"
)

type Account struct {
	svc *core.AccountService
}

func NewAccount(svc *core.AccountService) *Account {
	return &Account{svc: svc}
}

func (h *Account) ListByOrganization(w http.ResponseWriter, r *http.Request) {
	orgID, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	pg := request.ParsePagination(r)
	accounts, hasMore, err := h.svc.ListByOrganization(r.Context(), orgID, pg.Limit, pg.Cursor)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var nextCursor string
	if hasMore && len(accounts) > 0 {
		nextCursor = accounts[len(accounts)-1].ID
	}
	response.WritePaginated(w, http.StatusOK, accounts, nextCursor, hasMore)
}

func (h *Account) Create(w http.ResponseWriter, r *http.Request) {
	orgID, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req struct {
		Type       string   `json:"type" validate:"required,oneof=user mailbox organization"`
		ExternalID string   `json:"external_id"`
		Email      string   `json:"email" validate:"omitempty,email"`
		Name       string   `json:"name"`
		Roles      []string `json:"roles"`
	}
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ExternalID == "" && req.Email == "" {
		response.WriteError(w, http.StatusBadRequest, "external_id or email is required")
		return
	}

	account := &model.Account{
		OrganizationID: orgID,
		Type:           req.Type,
		ExternalID:     req.ExternalID,
		Email:          req.Email,
		Name:           req.Name,
		Roles:          req.Roles,
	}

	if err := h.svc.Create(r.Context(), account); err != nil {
		writeServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusCreated, account)
}

func (h *Account) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	account, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, account)
}

func (h *Account) Update(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req struct {
		Email *string  `json:"email" validate:"omitempty,email"`
		Name  *string  `json:"name"`
		Roles []string `json:"roles"`
	}
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	account, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if req.Email != nil {
		account.Email = *req.Email
	}
	if req.Name != nil {
		account.Name = *req.Name
	}
	if req.Roles != nil {
		account.Roles = req.Roles
	}

	if err := h.svc.Update(r.Context(), account); err != nil {
		writeServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, account)
}

func (h *Account) Delete(w http.ResponseWriter, r *http.Request) {
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

// GetServiceLink returns the per-service roles and scope for an account.
func (h *Account) GetServiceLink(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	serviceID, err := request.RequireServiceID(chi.URLParam(r, "serviceID"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	link, err := h.svc.GetServiceLink(r.Context(), id, serviceID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, link)
}

// UpsertServiceLink replaces the per-service roles and scope for an account.
func (h *Account) UpsertServiceLink(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	serviceID, err := request.RequireServiceID(chi.URLParam(r, "serviceID"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req struct {
		Roles []string       `json:"roles" validate:"required"`
		Scope map[string]any `json:"scope"`
	}
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	link := &model.AccountServiceLink{
		AccountID: id,
		ServiceID: serviceID,
		Roles:     req.Roles,
		Scope:     req.Scope,
	}

	if err := h.svc.UpsertServiceLink(r.Context(), link); err != nil {
		writeServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, link)
}
