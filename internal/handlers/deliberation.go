package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type selectMechanicsBody struct {
	MechanicIDs []string `json:"mechanic_ids"`
	Comments    string   `json:"comments"`
}

type proposeBody struct {
	MechanicID string  `json:"mechanic_id"`
	Amount     float64 `json:"amount"`
	Comments   string  `json:"comments"`
}

type negotiateBody struct {
	Amount   float64 `json:"amount"`
	Comments string  `json:"comments"`
	IsFinal  bool    `json:"is_final"`
}

type rejectProposalBody struct {
	Comments string `json:"comments"`
	Reason   string `json:"reason"`
}

// SelectMechanics handles POST /api/requests/{id}/deliberation/select-mechanics
func (h *MaintenanceHandler) SelectMechanics(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var body selectMechanicsBody
	if err := decode(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	snap, err := h.svc.SelectMechanics(r.Context(), a, chi.URLParam(r, "id"), body.MechanicIDs, body.Comments)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// SubmitProposal handles POST /api/requests/{id}/deliberation/propose
func (h *MaintenanceHandler) SubmitProposal(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var body proposeBody
	if err := decode(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.svc.SubmitProposal(r.Context(), a, chi.URLParam(r, "id"), body.MechanicID, body.Amount, body.Comments)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// Negotiate handles POST /api/requests/{id}/deliberation/proposals/{pid}/negotiate
func (h *MaintenanceHandler) Negotiate(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var body negotiateBody
	if err := decode(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.svc.Negotiate(r.Context(), a, chi.URLParam(r, "id"), chi.URLParam(r, "pid"), body.Amount, body.Comments, body.IsFinal)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Accept handles POST /api/requests/{id}/deliberation/proposals/{pid}/accept
func (h *MaintenanceHandler) Accept(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var body commentsBody
	if err := decode(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	offer, err := h.svc.Accept(r.Context(), a, chi.URLParam(r, "id"), chi.URLParam(r, "pid"), body.Comments)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, offer)
}

// RejectProposal handles POST /api/requests/{id}/deliberation/proposals/{pid}/reject
func (h *MaintenanceHandler) RejectProposal(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var body rejectProposalBody
	if err := decode(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.svc.RejectProposal(r.Context(), a, chi.URLParam(r, "id"), chi.URLParam(r, "pid"), body.Comments, body.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Finalize handles POST /api/requests/{id}/deliberation/finalize
func (h *MaintenanceHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var body commentsBody
	if err := decode(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	snap, err := h.svc.Finalize(r.Context(), a, chi.URLParam(r, "id"), body.Comments)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// GetDeliberation handles GET /api/requests/{id}/deliberation
func (h *MaintenanceHandler) GetDeliberation(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	snap, err := h.svc.Deliberation(r.Context(), a, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// History handles GET /api/requests/{id}/deliberation/history
func (h *MaintenanceHandler) History(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	entries, err := h.svc.History(r.Context(), a, chi.URLParam(r, "id"), r.URL.Query().Get("proposal_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// AcceptedOffers handles GET /api/requests/{id}/deliberation/accepted-offers
func (h *MaintenanceHandler) AcceptedOffers(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	offers, err := h.svc.AcceptedOffers(r.Context(), a, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, offers)
}

// Proposals handles GET /api/requests/{id}/deliberation/proposals
func (h *MaintenanceHandler) Proposals(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	proposals, err := h.svc.Proposals(r.Context(), a, chi.URLParam(r, "id"), r.URL.Query().Get("mechanic_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, proposals)
}
