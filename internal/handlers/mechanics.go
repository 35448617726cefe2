package handlers

import (
	"net/http"
	"strconv"

	"github.com/ukydev/fleet-maintenance/internal/models"
	"github.com/ukydev/fleet-maintenance/internal/workflow"
)

type registerMechanicBody struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Specialty string `json:"specialty"`
}

// ListMechanics handles GET /api/mechanics
func (h *MaintenanceHandler) ListMechanics(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	activeOnly := true
	if s := r.URL.Query().Get("active"); s != "" {
		v, err := strconv.ParseBool(s)
		if err != nil {
			writeError(w, r, workflow.InvalidArgumentf("list mechanics", "invalid active flag %q", s))
			return
		}
		activeOnly = v
	}
	mechanics, err := h.svc.Mechanics(r.Context(), a, activeOnly)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mechanics)
}

// RegisterMechanic handles POST /api/mechanics
func (h *MaintenanceHandler) RegisterMechanic(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var body registerMechanicBody
	if err := decode(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	m, err := h.svc.RegisterMechanic(r.Context(), a, models.Mechanic{
		ID:        body.ID,
		Name:      body.Name,
		Specialty: body.Specialty,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}
