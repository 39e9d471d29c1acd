package handlers

import (
	"log/slog"
	"net/http"

	"leadmarket/internal/config"
	"leadmarket/internal/middleware"
	"leadmarket/internal/models"
	"leadmarket/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Handler struct {
	cfg         config.Config
	credits     CreditService
	marketplace MarketplaceService
	intake      IntakeService
	reconcile   ReconcileStore
	audit       AuditStore
	hub         *websocket.Hub
	logger      *slog.Logger
}

func New(cfg config.Config, credits CreditService, marketplace MarketplaceService, intake IntakeService, reconcile ReconcileStore, audit AuditStore, hub *websocket.Hub, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		cfg:         cfg,
		credits:     credits,
		marketplace: marketplace,
		intake:      intake,
		reconcile:   reconcile,
		audit:       audit,
		hub:         hub,
		logger:      logger,
	}
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.Logger)
	router.Use(chimiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	userAuth := middleware.Auth(h.cfg.JWTSecret)

	router.Get("/leads", h.ListLeads)
	router.With(userAuth, middleware.RequireRole(models.ActorContractor)).Post("/leads/{jobID}/unlock", h.UnlockLead)
	router.With(userAuth).Post("/jobs/{jobID}/status", h.AdvanceJob)
	router.Route("/contractors/{id}", func(r chi.Router) {
		r.Use(userAuth)
		r.Get("/balance", h.GetBalance)
		r.Get("/ledger", h.ListLedger)
		r.Get("/purchases", h.ListPurchases)
	})
	router.With(userAuth, middleware.RequireRole(models.ActorContractor)).Get("/ws/notifications", h.WSNotifications)

	router.With(middleware.ServiceKey(h.cfg.ServiceKeyHash, "payments")).Post("/webhooks/payments", h.PaymentWebhook)
	router.Route("/intake/jobs", func(r chi.Router) {
		r.Use(middleware.ServiceKey(h.cfg.ServiceKeyHash, "intake"))
		r.Post("/", h.SubmitJob)
		r.Get("/{jobID}", h.GetJob)
		r.Put("/{jobID}/location", h.SetJobLocation)
	})

	router.Route("/admin", func(r chi.Router) {
		r.Use(userAuth)
		r.Use(middleware.RequireRole(models.ActorAdmin))
		r.Post("/contractors", h.OpenAccount)
		r.Post("/contractors/{id}/top-ups", h.AdminTopUp)
		r.Post("/contractors/{id}/adjustments", h.AdminAdjust)
		r.Get("/contractors/{id}/reconcile", h.CheckBalance)
		r.Post("/purchases/{id}/refund", h.RefundPurchase)
		r.Get("/reconcile", h.Reconcile)
		r.Get("/audit", h.ListAuditLogs)
	})

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return router
}
