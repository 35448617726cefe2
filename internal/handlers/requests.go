package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ukydev/fleet-maintenance/internal/db"
	"github.com/ukydev/fleet-maintenance/internal/middleware"
	"github.com/ukydev/fleet-maintenance/internal/models"
	"github.com/ukydev/fleet-maintenance/internal/service"
	"github.com/ukydev/fleet-maintenance/internal/workflow"
)

// MaintenanceHandler handles maintenance request endpoints
type MaintenanceHandler struct {
	svc *service.MaintenanceService
}

// NewMaintenanceHandler creates a new maintenance handler
func NewMaintenanceHandler(svc *service.MaintenanceService) *MaintenanceHandler {
	return &MaintenanceHandler{svc: svc}
}

type createRequestBody struct {
	VehicleID     string  `json:"vehicle_id"`
	Description   string  `json:"description"`
	Priority      string  `json:"priority"`
	EstimatedCost float64 `json:"estimated_cost"`
}

type commentsBody struct {
	Comments string `json:"comments"`
}

type rejectBody struct {
	Reason string `json:"reason"`
}

type stageResponse struct {
	Request     *service.RequestView `json:"request"`
	Transaction models.Transaction   `json:"transaction"`
}

// actor returns the authenticated caller or writes a 401.
func actor(w http.ResponseWriter, r *http.Request) (workflow.Actor, bool) {
	a, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "unauthenticated", "User context not found")
	}
	return a, ok
}

// CreateRequest handles POST /api/requests
func (h *MaintenanceHandler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var body createRequestBody
	if err := decode(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	req, err := h.svc.CreateRequest(r.Context(), a, workflow.NewRequest{
		VehicleID:     body.VehicleID,
		Description:   body.Description,
		Priority:      body.Priority,
		EstimatedCost: body.EstimatedCost,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// GetRequest handles GET /api/requests/{id}
func (h *MaintenanceHandler) GetRequest(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	req, err := h.svc.GetRequest(r.Context(), a, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// ListRequests handles GET /api/requests
func (h *MaintenanceHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	filter := db.RequestFilter{
		Status:      models.RequestStatus(q.Get("status")),
		Stage:       models.Stage(q.Get("stage")),
		VehicleID:   q.Get("vehicle_id"),
		RequesterID: q.Get("requester_id"),
	}
	if s := q.Get("limit"); s != "" {
		limit, err := strconv.ParseInt(s, 10, 64)
		if err != nil || limit < 0 {
			writeError(w, r, workflow.InvalidArgumentf("list requests", "invalid limit %q", s))
			return
		}
		filter.Limit = limit
	}
	reqs, err := h.svc.ListRequests(r.Context(), a, filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reqs)
}

// ProcessStage handles POST /api/requests/{id}/process-stage
func (h *MaintenanceHandler) ProcessStage(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var body commentsBody
	if err := decode(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	req, tx, err := h.svc.ProcessStage(r.Context(), a, chi.URLParam(r, "id"), body.Comments)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stageResponse{Request: req, Transaction: tx})
}

// CanProcessReview handles GET /api/requests/{id}/can-process-review
func (h *MaintenanceHandler) CanProcessReview(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	gate, err := h.svc.CanProcessReview(r.Context(), a, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, gate)
}

// Reject handles POST /api/requests/{id}/reject
func (h *MaintenanceHandler) Reject(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var body rejectBody
	if err := decode(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	req, err := h.svc.Reject(r.Context(), a, chi.URLParam(r, "id"), body.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// StartWork handles POST /api/requests/{id}/start-work
func (h *MaintenanceHandler) StartWork(w http.ResponseWriter, r *http.Request) {
	h.workTransition(w, r, h.svc.StartWork)
}

// CompleteWork handles POST /api/requests/{id}/complete-work
func (h *MaintenanceHandler) CompleteWork(w http.ResponseWriter, r *http.Request) {
	h.workTransition(w, r, h.svc.CompleteWork)
}

func (h *MaintenanceHandler) workTransition(w http.ResponseWriter, r *http.Request, apply func(context.Context, workflow.Actor, string, string) (*service.RequestView, error)) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var body commentsBody
	if err := decode(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	req, err := apply(r.Context(), a, chi.URLParam(r, "id"), body.Comments)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}
