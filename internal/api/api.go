// Package api serves the account, data and generation endpoints consumed by the
// front ends.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"thumbexpert/internal/auth"
	"thumbexpert/internal/billing"
	"thumbexpert/internal/service"
)

const defaultMaxBody = 32 << 20

type Options struct {
	Auth       *service.AuthService
	Data       *service.DataService
	Generation *service.GenerationService
	// Billing is optional; checkout and webhook answer 503 without it.
	Billing *billing.Service

	Tokens    *auth.TokenService
	Revoker   auth.Revoker
	Providers auth.Providers

	FrontendURL  string
	MaxBodyBytes int64
	// Health reports backing store readiness for /healthz.
	Health func(context.Context) error
	Logger *slog.Logger
}

type server struct {
	auth       *service.AuthService
	data       *service.DataService
	generation *service.GenerationService
	billing    *billing.Service
	providers  auth.Providers
	frontend   string
	maxBody    int64
	health     func(context.Context) error
	logger     *slog.Logger
}

// NewRouter builds the HTTP handler for the whole API.
func NewRouter(opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBody
	}

	s := &server{
		auth:       opts.Auth,
		data:       opts.Data,
		generation: opts.Generation,
		billing:    opts.Billing,
		providers:  opts.Providers,
		frontend:   strings.TrimRight(opts.FrontendURL, "/"),
		maxBody:    maxBody,
		health:     opts.Health,
		logger:     logger,
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors(s.frontend))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	requireAuth := auth.RequireAuth(opts.Tokens, opts.Revoker, logger)

	r.Route("/api", func(r chi.Router) {
		r.Get("/catalog", s.handleCatalog)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", s.handleRegister)
			r.Post("/login", s.handleLogin)
			r.Get("/oauth/{provider}", s.handleOAuthStart)
			r.Get("/oauth/{provider}/callback", s.handleOAuthCallback)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Get("/me", s.handleMe)
				r.Post("/logout", s.handleLogout)
				r.Post("/upgrade", s.handleUpgrade)
			})
		})

		r.Route("/data", func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/brandkit", s.handleGetBrandKit)
			r.Post("/brandkit", s.handleSaveBrandKit)
			r.Get("/history", s.handleGetHistory)
			r.Post("/history", s.handleSaveHistory)
			r.Get("/favorites", s.handleGetFavorites)
			r.Post("/favorites", s.handleSaveFavorites)
		})

		r.Route("/generate", func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/variants", s.handleVariants)
			r.Post("/edit", s.handleEdit)
			r.Post("/catchphrases", s.handleCatchphrases)
			r.Post("/titles", s.handleTitles)
			r.Post("/ctr", s.handleCTR)
			r.Post("/bulk", s.handleBulk)
		})

		r.Route("/billing", func(r chi.Router) {
			r.Post("/webhook", s.handleWebhook)
			r.With(requireAuth).Post("/checkout", s.handleCheckout)
		})
	})

	return r
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.health(ctx); err != nil {
			s.logger.Warn("health check failed", "err", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// userID returns the authenticated caller. RequireAuth guarantees the claims exist on these routes.
func userID(r *http.Request) string {
	claims, _ := auth.ClaimsFromContext(r.Context())
	return claims.UserID
}
