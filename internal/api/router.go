package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/baharkarakas/iou-backend/internal/api/handlers"
	"github.com/baharkarakas/iou-backend/internal/auth"
	"github.com/baharkarakas/iou-backend/internal/config"
	"github.com/baharkarakas/iou-backend/internal/directory"
	"github.com/baharkarakas/iou-backend/internal/metrics"
	"github.com/baharkarakas/iou-backend/internal/middleware"
	"github.com/baharkarakas/iou-backend/internal/services"
)

type RouterDeps struct {
	Cfg        config.Config
	Logger     *slog.Logger
	Tokens     *auth.TokenManager
	Directory  *directory.Directory
	TxnSvc     *services.TransactionService
	BalanceSvc *services.BalanceService
	SettleSvc  *services.SettlementService
}

func NewRouter(d RouterDeps) http.Handler {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recover, middleware.Logger(d.Logger), middleware.HTTPMetrics,
		middleware.RateLimit(d.Cfg.RateRPS))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"X-Request-Id", "Retry-After"},
	}))

	// health & metrics
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) })
	r.Handle("/metrics", metrics.Handler())

	am := middleware.NewAuthMiddleware(d.Tokens, d.Cfg.APITokenHash, d.Cfg.Env)
	authH := handlers.NewAuthHandler(d.Tokens, am)
	entries := &handlers.EntryHandler{Txns: d.TxnSvc}
	balances := &handlers.BalanceHandler{Balance: d.BalanceSvc, Settle: d.SettleSvc}
	users := &handlers.UserHandler{Dir: d.Directory}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/version", handlers.VersionInfo)

		// ---------- auth ----------
		r.Post("/auth/token", authH.Token)
		r.Post("/auth/refresh", authH.Refresh)

		r.Group(func(r chi.Router) {
			r.Use(am.Auth)

			// ---------- entries ----------
			r.Post("/entries", entries.Create)
			r.Get("/entries", entries.List)
			r.Get("/entries/{id}", entries.Get)
			r.Delete("/entries/{id}", entries.Delete)

			// ---------- balances ----------
			r.Get("/iou_status", balances.Status)
			r.Get("/summary", balances.Summary)
			r.Get("/summary/top", balances.Top)
			r.Post("/settle", balances.SettleUp)
			r.Post("/split", balances.Split)

			// ---------- users ----------
			r.Post("/users", users.Create)
			r.Get("/users", users.List)
			r.Get("/users/{username}", users.Get)
			r.Put("/users/{username}", users.Update)
		})
	})

	return r
}
