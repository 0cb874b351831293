package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/edvin/deploycenter/internal/api/request"
	"github.com/edvin/deploycenter/internal/api/response"
	"github.com/edvin/deploycenter/internal/core"
	"github.com/edvin/deploycenter/internal/model"
)

type Organization struct {
	svc     *core.OrganizationService
	metrics *core.MetricService
}

func NewOrganization(svc *core.OrganizationService, metrics *core.MetricService) *Organization {
	return &Organization{svc: svc, metrics: metrics}
}

func (h *Organization) List(w http.ResponseWriter, r *http.Request) {
	params := request.ParseListParams(r, "created_at")

	orgs, hasMore, err := h.svc.List(r.Context(), params)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var nextCursor string
	if hasMore && len(orgs) > 0 {
		nextCursor = orgs[len(orgs)-1].ID
	}
	response.WritePaginated(w, http.StatusOK, orgs, nextCursor, hasMore)
}

func (h *Organization) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name             string   `json:"name" validate:"required"`
		Type             string   `json:"type" validate:"required,oneof=commune epci departement region other"`
		SIRET            *string  `json:"siret" validate:"omitempty,siret"`
		SIREN            *string  `json:"siren"`
		CodePostal       *string  `json:"code_postal"`
		CodeInsee        *string  `json:"code_insee" validate:"omitempty,insee"`
		Population       *int64   `json:"population"`
		EPCILibelle      *string  `json:"epci_libelle"`
		EPCISiren        *string  `json:"epci_siren"`
		EPCIPopulation   *int64   `json:"epci_population"`
		Email            *string  `json:"email" validate:"omitempty,email"`
		Website          *string  `json:"website"`
		Phone            *string  `json:"phone"`
		RPNT             []string `json:"rpnt"`
		ServicePublicURL *string  `json:"service_public_url"`
	}
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	org := &model.Organization{
		Name:             req.Name,
		Type:             req.Type,
		SIRET:            req.SIRET,
		SIREN:            req.SIREN,
		CodePostal:       req.CodePostal,
		CodeInsee:        req.CodeInsee,
		Population:       req.Population,
		EPCILibelle:      req.EPCILibelle,
		EPCISiren:        req.EPCISiren,
		EPCIPopulation:   req.EPCIPopulation,
		Email:            req.Email,
		Website:          req.Website,
		Phone:            req.Phone,
		RPNT:             req.RPNT,
		ServicePublicURL: req.ServicePublicURL,
	}

	if err := h.svc.Create(r.Context(), org); err != nil {
		writeServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusCreated, org)
}

func (h *Organization) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	org, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, org)
}

// Lookup resolves an organization from a SIRET, SIREN or INSEE code, picked
// by identifier length.
func (h *Organization) Lookup(w http.ResponseWriter, r *http.Request) {
	identifier, err := request.RequireID(chi.URLParam(r, "identifier"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	org, err := h.svc.FindByIdentifier(r.Context(), identifier)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, org)
}

func (h *Organization) Update(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req struct {
		Name             string   `json:"name"`
		Email            *string  `json:"email" validate:"omitempty,email"`
		Website          *string  `json:"website"`
		Phone            *string  `json:"phone"`
		Population       *int64   `json:"population"`
		RPNT             []string `json:"rpnt"`
		ServicePublicURL *string  `json:"service_public_url"`
	}
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	org, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if req.Name != "" {
		org.Name = req.Name
	}
	if req.Email != nil {
		org.Email = req.Email
	}
	if req.Website != nil {
		org.Website = req.Website
	}
	if req.Phone != nil {
		org.Phone = req.Phone
	}
	if req.Population != nil {
		org.Population = req.Population
	}
	if req.RPNT != nil {
		org.RPNT = req.RPNT
	}
	if req.ServicePublicURL != nil {
		org.ServicePublicURL = req.ServicePublicURL
	}

	if err := h.svc.Update(r.Context(), org); err != nil {
		writeServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, org)
}

func (h *Organization) Delete(w http.ResponseWriter, r *http.Request) {
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

// MailDomain reports the derived mail domain and its RPNT-based status.
func (h *Organization) MailDomain(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	org, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]string{
		"status": org.MailDomainStatus(),
		"domain": org.MailDomain(),
	})
}

// ListMetrics returns the latest stored metrics for one organization,
// optionally narrowed to one service.
func (h *Organization) ListMetrics(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var serviceID int64
	if raw := r.URL.Query().Get("service_id"); raw != "" {
		serviceID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			response.WriteError(w, http.StatusBadRequest, "invalid service_id")
			return
		}
	}

	metrics, err := h.metrics.ListByOrganization(r.Context(), id, serviceID)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	response.WriteJSON(w, http.StatusOK, metrics)
}
