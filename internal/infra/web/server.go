package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/pravartak01/shlokayug-enrollment/internal/config"
	"github.com/pravartak01/shlokayug-enrollment/internal/domain/ports/repository"
	"github.com/pravartak01/shlokayug-enrollment/internal/infra/logging"
	"github.com/pravartak01/shlokayug-enrollment/internal/infra/redis"
	"github.com/pravartak01/shlokayug-enrollment/internal/usecase"
)

type Server struct {
	enrollUC usecase.EnrollmentUseCase
	payUC    usecase.PaymentUseCase
	subUC    usecase.SubscriptionUseCase
	devUC    usecase.DeviceUseCase
	progUC   usecase.ProgressUseCase
	statsUC  usecase.StatsUseCase
	audits   repository.AuditRepository

	cache         redis.Client // webhook dedupe; nil disables deduplication
	jwtSecret     string
	adminKey      string
	webhookSecret string
	log           *zerolog.Logger
}

func NewServer(
	enrollUC usecase.EnrollmentUseCase,
	payUC usecase.PaymentUseCase,
	subUC usecase.SubscriptionUseCase,
	devUC usecase.DeviceUseCase,
	progUC usecase.ProgressUseCase,
	statsUC usecase.StatsUseCase,
	audits repository.AuditRepository,
	cache redis.Client,
	cfg *config.Config,
	logger *zerolog.Logger,
) *Server {
	webLog := logger.With().Str("component", "WebServer").Logger()
	return &Server{
		enrollUC:      enrollUC,
		payUC:         payUC,
		subUC:         subUC,
		devUC:         devUC,
		progUC:        progUC,
		statsUC:       statsUC,
		audits:        audits,
		cache:         cache,
		jwtSecret:     cfg.Auth.JWTSecret,
		adminKey:      cfg.Auth.AdminAPIKey,
		webhookSecret: cfg.Gateway.WebhookSecret,
		log:           &webLog,
	}
}

// reqLog returns the component logger enriched with the request's
// trace, learner and enrollment ids where present.
func (s *Server) reqLog(r *http.Request) *zerolog.Logger {
	return logging.With(r.Context(), s.log)
}

// traceContext carries the request id into the logging context.
func (s *Server) traceContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			r = r.WithContext(logging.WithTraceID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// enrollmentContext tags logs on per-enrollment routes with the id.
func (s *Server) enrollmentContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := chi.URLParam(r, "id"); id != "" {
			r = r.WithContext(logging.WithEnrollmentID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// RegisterRoutes mounts the full API surface on the router.
func (s *Server) RegisterRoutes(r chi.Router) {
	r.Use(s.traceContext)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeData(w, http.StatusOK, map[string]string{"status": "ok"}, "")
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Post("/webhook/payment", s.handleWebhook)

	r.Route("/api/v1", func(r chi.Router) {
		// Learner routes: JWT identity, ownership enforced per handler.
		r.Group(func(r chi.Router) {
			r.Use(s.learnerAuth)
			r.Post("/enrollments", s.handleInitiate)
			r.Post("/enrollments/confirm", s.handleConfirm)
			r.Get("/enrollments", s.handleListEnrollments)
			r.Route("/enrollments/{id}", func(r chi.Router) {
				r.Use(s.enrollmentContext)
				r.Get("/", s.handleGetEnrollment)
				r.Post("/access", s.handleValidateAccess)
				r.Get("/devices", s.handleListDevices)
				r.Post("/devices", s.handleAddDevice)
				r.Delete("/devices/{deviceID}", s.handleRemoveDevice)
				r.Post("/progress", s.handleUpdateProgress)
				r.Get("/audit", s.handleListAudit)
				r.Post("/subscription/pause", s.handlePause)
				r.Post("/subscription/resume", s.handleResume)
				r.Post("/subscription/cancel", s.handleCancel)
				r.Post("/subscription/renew", s.handleRenew)
				r.Put("/subscription/preferences", s.handlePreferences)
			})
		})

		// Admin routes: static API key.
		r.Group(func(r chi.Router) {
			r.Use(s.adminAuth)
			r.Post("/payments/{id}/refund", s.handleRefund)
			r.Post("/payments/{id}/distribute", s.handleDistribute)
			r.Get("/analytics/summary", s.handleAnalyticsSummary)
		})
	})
}
