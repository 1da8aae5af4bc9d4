package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/studio-booking-platform/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/studio-booking-platform/internal/http/middleware"
	"github.com/wolfman30/studio-booking-platform/internal/observability/metrics"
	"github.com/wolfman30/studio-booking-platform/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Metrics            *metrics.BookingMetrics
	Chat               *handlers.ChatHandler
	AdminConversations *handlers.AdminConversationsHandler
	AdminBookings      *handlers.AdminBookingsHandler
	AdminAlerts        *handlers.AdminAlertsHandler
	Health             http.Handler
	MetricsHandler     http.Handler
	RateLimiter        *httpmiddleware.RateLimiter
	AdminAuthSecret    string
	CORSAllowedOrigins []string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(httpmiddleware.RequestLogger(cfg.Logger, cfg.Metrics))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}

	if cfg.Health != nil {
		r.Method(http.MethodGet, "/health", cfg.Health)
	}
	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	adminAuth := httpmiddleware.AdminJWT(cfg.AdminAuthSecret)

	if cfg.Chat != nil {
		r.Route("/chat", func(chat chi.Router) {
			chat.Group(func(public chi.Router) {
				if cfg.RateLimiter != nil {
					public.Use(cfg.RateLimiter.Middleware)
				}
				public.Post("/messages", cfg.Chat.PostMessage)
				public.Post("/abandon", cfg.Chat.Abandon)
				public.Get("/conversations/{sessionId}", cfg.Chat.GetConversation)
				public.Post("/fingerprint", cfg.Chat.Fingerprint)
				public.Post("/booking", cfg.Chat.SubmitBooking)
				public.Get("/check-booking", cfg.Chat.CheckBooking)
			})
			if cfg.AdminBookings != nil {
				chat.With(adminAuth).Put("/booking/{bookingId}", cfg.AdminBookings.UpdateBookingStatus)
			}
		})
	}

	r.Route("/admin", func(admin chi.Router) {
		admin.Use(adminAuth)
		if h := cfg.AdminConversations; h != nil {
			admin.Get("/conversations", h.ListConversations)
			admin.Post("/conversations/bulk-delete", h.BulkDelete)
			admin.Get("/conversations/{id}", h.GetConversation)
			admin.Put("/conversations/{id}", h.UpdateConversation)
			admin.Delete("/conversations/{id}", h.DeleteConversation)
		}
		if h := cfg.AdminBookings; h != nil {
			admin.Get("/bookings", h.ListBookings)
			admin.Get("/bookings/{id}", h.GetBooking)
			admin.Put("/bookings/{id}", h.UpdateBooking)
			admin.Delete("/bookings/{id}", h.DeleteBooking)
		}
		if h := cfg.AdminAlerts; h != nil {
			admin.Get("/alerts", h.ListAlerts)
			admin.Get("/alerts/stream", h.Stream)
		}
	})

	return r
}
