package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"esim-storefront/internal/domain/model"
	"esim-storefront/internal/infra/metrics"
	red "esim-storefront/internal/infra/redis"
	"esim-storefront/internal/usecase"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Checkout is the orchestrator surface the handlers drive.
type Checkout interface {
	PlaceOrder(ctx context.Context, in usecase.PlaceOrderInput) (*usecase.PlaceOrderResult, error)
	ResumePayment(ctx context.Context, orderID, provider string) (*usecase.PlaceOrderResult, error)
	Capture(ctx context.Context, in usecase.CaptureInput) (*usecase.CaptureOutcome, error)
	EditOrder(ctx context.Context, s usecase.Session, orderID, planModelID string) (*model.Order, error)
	FinishOrder(ctx context.Context, s usecase.Session, orderID string) (*usecase.FinishResult, error)
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Pages are the storefront pages the browser is redirected to after a payment step.
type Pages struct {
	BaseURL string
	Success string
	Pending string
	Error   string
	Auth    string
}

type Options struct {
	RequestTimeout  time.Duration
	OrderRateLimit  int
	RateLimitWindow time.Duration
	Health          map[string]HealthCheck
}

// Server holds the storefront HTTP handlers.
type Server struct {
	checkout Checkout
	sessions *SessionManager
	limiter  Limiter
	pages    Pages
	opts     Options
	log      *zerolog.Logger
}

func NewServer(checkout Checkout, sessions *SessionManager, limiter Limiter, pages Pages, opts Options, logger *zerolog.Logger) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 45 * time.Second
	}
	if opts.RateLimitWindow <= 0 {
		opts.RateLimitWindow = time.Minute
	}
	l := logger.With().Str("component", "api").Logger()
	return &Server{checkout: checkout, sessions: sessions, limiter: limiter, pages: pages, opts: opts, log: &l}
}

// Router builds the chi router with the full middleware stack.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(TraceID())
	r.Use(RequestLog(s.log))
	r.Use(Recover(s.log))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(Timeout(s.opts.RequestTimeout))
		r.Use(s.sessions.Authenticate())

		r.Method(http.MethodPost, "/order", Chain(http.HandlerFunc(s.handlePlaceOrder),
			RateLimit(s.limiter, "order", s.opts.OrderRateLimit, s.opts.RateLimitWindow, s.log, red.RouteKey)))
		r.Get("/order/payment", s.handleResumePayment)
		r.Post("/order/payment", s.handleResumePayment)
		r.Get("/order/payment/callback", s.handleCallback)
		r.Post("/order/payment/paypal/create", s.handlePayPalCreate)
		r.Post("/order/payment/paypal/capture", s.handlePayPalCapture)
		r.Put("/order/edit/{id}", s.handleEditOrder)
		r.Put("/order/finish/{id}", s.handleFinishOrder)
	})
	return r
}

func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}
