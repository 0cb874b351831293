package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	temporalclient "go.temporal.io/sdk/client"

	"github.com/edvin/deploycenter/internal/api/request"
	"github.com/edvin/deploycenter/internal/api/response"
	"github.com/edvin/deploycenter/internal/core"
	"github.com/edvin/deploycenter/internal/model"
)

// maxLogoBytes bounds uploaded SVG logos.
const maxLogoBytes = 256 * 1024

// WorkflowStarter starts asynchronous workflows. Satisfied by the Temporal
// client.
type WorkflowStarter interface {
	ExecuteWorkflow(ctx context.Context, options temporalclient.StartWorkflowOptions,
		workflow any, args ...any) (temporalclient.WorkflowRun, error)
}

type Service struct {
	svc       *core.ServiceService
	starter   WorkflowStarter
	taskQueue string
}

func NewService(svc *core.ServiceService, starter WorkflowStarter, taskQueue string) *Service {
	return &Service{svc: svc, starter: starter, taskQueue: taskQueue}
}

func (h *Service) List(w http.ResponseWriter, r *http.Request) {
	params := request.ParseListParams(r, "name")

	services, hasMore, err := h.svc.List(r.Context(), params)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var nextCursor string
	if hasMore && len(services) > 0 {
		nextCursor = fmt.Sprintf("%d", services[len(services)-1].ID)
	}
	response.WritePaginated(w, http.StatusOK, services, nextCursor, hasMore)
}

func (h *Service) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type             string         `json:"type" validate:"required,slug"`
		Name             string         `json:"name" validate:"required"`
		URL              string         `json:"url" validate:"required,url"`
		Description      *string        `json:"description"`
		Maturity         string         `json:"maturity" validate:"omitempty,oneof=alpha beta stable deprecated"`
		LaunchDate       *time.Time     `json:"launch_date"`
		Config           map[string]any `json:"config"`
		IsActive         *bool          `json:"is_active"`
		RequiredServices []int64        `json:"required_services"`
	}
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	svc := &model.Service{
		Type:             req.Type,
		Name:             req.Name,
		URL:              req.URL,
		Description:      req.Description,
		Maturity:         req.Maturity,
		LaunchDate:       req.LaunchDate,
		Config:           req.Config,
		IsActive:         true,
		RequiredServices: req.RequiredServices,
	}
	if svc.Maturity == "" {
		svc.Maturity = model.MaturityBeta
	}
	if req.IsActive != nil {
		svc.IsActive = *req.IsActive
	}

	if err := h.svc.Create(r.Context(), svc); err != nil {
		writeServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusCreated, svc)
}

func (h *Service) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireServiceID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	svc, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, svc)
}

func (h *Service) Update(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireServiceID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req struct {
		Name        string         `json:"name"`
		URL         string         `json:"url" validate:"omitempty,url"`
		Description *string        `json:"description"`
		Maturity    string         `json:"maturity" validate:"omitempty,oneof=alpha beta stable deprecated"`
		LaunchDate  *time.Time     `json:"launch_date"`
		Config      map[string]any `json:"config"`
		IsActive    *bool          `json:"is_active"`
	}
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	svc, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if req.Name != "" {
		svc.Name = req.Name
	}
	if req.URL != "" {
		svc.URL = req.URL
	}
	if req.Description != nil {
		svc.Description = req.Description
	}
	if req.Maturity != "" {
		svc.Maturity = req.Maturity
	}
	if req.LaunchDate != nil {
		svc.LaunchDate = req.LaunchDate
	}
	if req.Config != nil {
		svc.Config = req.Config
	}
	if req.IsActive != nil {
		svc.IsActive = *req.IsActive
	}

	if err := h.svc.Update(r.Context(), svc); err != nil {
		writeServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, svc)
}

func (h *Service) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireServiceID(chi.URLParam(r, "id"))
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

// SetRequiredServices replaces the list of services that must carry an active
// subscription before this one can activate.
func (h *Service) SetRequiredServices(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireServiceID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req struct {
		ServiceIDs []int64 `json:"service_ids" validate:"required"`
	}
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.svc.SetRequiredServices(r.Context(), id, req.ServiceIDs); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetLogo serves the stored SVG logo.
func (h *Service) GetLogo(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireServiceID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	logo, err := h.svc.GetLogo(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if len(logo) == 0 {
		response.WriteError(w, http.StatusNotFound, fmt.Sprintf("service %d has no logo", id))
		return
	}

	w.Header().Set("Content-Type", "image/svg+xml")
	w.WriteHeader(http.StatusOK)
	w.Write(logo)
}

// SetLogo stores the raw SVG body as the service logo.
func (h *Service) SetLogo(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireServiceID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	logo, err := io.ReadAll(io.LimitReader(r.Body, maxLogoBytes+1))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(logo) == 0 {
		response.WriteError(w, http.StatusBadRequest, "empty logo body")
		return
	}
	if len(logo) > maxLogoBytes {
		response.WriteError(w, http.StatusRequestEntityTooLarge, "logo exceeds 256KiB")
		return
	}

	if err := h.svc.SetLogo(r.Context(), id, logo); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// TriggerScrape starts an asynchronous metrics scrape for the service. The
// workflow id embeds the service id so concurrent triggers dedupe.
func (h *Service) TriggerScrape(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireServiceID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := h.svc.GetByID(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}

	run, err := h.starter.ExecuteWorkflow(r.Context(), temporalclient.StartWorkflowOptions{
		ID:        fmt.Sprintf("scrape-service-%d", id),
		TaskQueue: h.taskQueue,
	}, "ScrapeServiceWorkflow", id)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	response.WriteJSON(w, http.StatusAccepted, map[string]string{
		"workflow_id": run.GetID(),
		"run_id":      run.GetRunID(),
	})
}
