package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/ukydev/fleet-maintenance/internal/auth"
	"github.com/ukydev/fleet-maintenance/internal/config"
	"github.com/ukydev/fleet-maintenance/internal/middleware"
	"github.com/ukydev/fleet-maintenance/internal/models"
	"github.com/ukydev/fleet-maintenance/internal/service"
)

// NewRouter wires the maintenance API.
func NewRouter(svc *service.MaintenanceService, authService *auth.Service, cfg config.ServerConfig) http.Handler {
	h := NewMaintenanceHandler(svc)
	authMW := middleware.NewAuthMiddleware(authService)
	limiter := middleware.NewRateLimitMiddleware()

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(limiter.RateLimit(cfg.RateLimit, int(cfg.RateWindow.Seconds())))
	if cfg.RequestTimeout > 0 {
		r.Use(chimw.Timeout(cfg.RequestTimeout))
	}

	r.Get("/health", Health)

	r.Route("/api", func(r chi.Router) {
		r.Use(authMW.Authenticate)
		r.Use(middleware.RequestLogger)

		r.Route("/mechanics", func(r chi.Router) {
			r.Get("/", h.ListMechanics)
			r.With(authMW.RequirePermission(models.ActionManageUsers)).Post("/", h.RegisterMechanic)
		})

		r.Route("/requests", func(r chi.Router) {
			r.Get("/", h.ListRequests)
			r.Post("/", h.CreateRequest)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetRequest)
				r.Post("/process-stage", h.ProcessStage)
				r.Get("/can-process-review", h.CanProcessReview)
				r.Post("/reject", h.Reject)
				r.Post("/start-work", h.StartWork)
				r.Post("/complete-work", h.CompleteWork)

				r.Route("/deliberation", func(r chi.Router) {
					r.Get("/", h.GetDeliberation)
					r.Get("/history", h.History)
					r.Get("/accepted-offers", h.AcceptedOffers)
					r.Get("/proposals", h.Proposals)
					r.Post("/select-mechanics", h.SelectMechanics)
					r.Post("/propose", h.SubmitProposal)
					r.Post("/proposals/{pid}/negotiate", h.Negotiate)
					r.Post("/proposals/{pid}/accept", h.Accept)
					r.Post("/proposals/{pid}/reject", h.RejectProposal)
					r.Post("/finalize", h.Finalize)
				})
			})
		})
	})
	return r
}

// Health reports liveness.
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
