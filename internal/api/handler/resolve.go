package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/edvin/deploycenter/internal/api/request"
	"github.com/edvin/deploycenter/internal/api/response"
	"github.com/edvin/deploycenter/internal/entitlement"
	"github.com/edvin/deploycenter/internal/model"
)

// EntitlementResolver runs the inbound entitlement check. Implemented by
// entitlement.Dispatcher.
type EntitlementResolver interface {
	Resolve(ctx context.Context, service *model.Service, accountType, accountIDOrEmail, identifier string) (*entitlement.Response, error)
}

// ServiceStore reads service rows. Implemented by core.ServiceService.
type ServiceStore interface {
	GetByID(ctx context.Context, id int64) (*model.Service, error)
}

// Resolve handles the inbound entitlement check called by the services
// themselves on user login.
type Resolve struct {
	services ServiceStore
	resolver EntitlementResolver
}

func NewResolve(services ServiceStore, resolver EntitlementResolver) *Resolve {
	return &Resolve{services: services, resolver: resolver}
}

// Get resolves the effective entitlements of one account for one service.
// An unknown organization or inactive subscription is not an error: the
// response carries can_access=false with a reason.
func (h *Resolve) Get(w http.ResponseWriter, r *http.Request) {
	serviceID, err := request.RequireServiceID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	q := r.URL.Query()
	accountType := q.Get("account_type")
	accountID := q.Get("account_id")
	identifier := q.Get("identifier")

	if accountType != model.AccountTypeUser && accountType != model.AccountTypeMailbox {
		response.WriteError(w, http.StatusBadRequest, "account_type must be user or mailbox")
		return
	}
	if accountID == "" {
		response.WriteError(w, http.StatusBadRequest, "account_id is required")
		return
	}
	if identifier == "" {
		response.WriteError(w, http.StatusBadRequest, "identifier is required")
		return
	}

	service, err := h.services.GetByID(r.Context(), serviceID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resolved, err := h.resolver.Resolve(r.Context(), service, accountType, accountID, identifier)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, resolved)
}
