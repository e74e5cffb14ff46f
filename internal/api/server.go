package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"github.com/digkill/guincho-facil/internal/metrics"
	"github.com/digkill/guincho-facil/internal/quote"
	"github.com/digkill/guincho-facil/internal/service"
)

const adminPasswordHeader = "X-Admin-Password"

type Options struct {
	Addr               string
	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration
	AdminRatePerSecond float64
	AdminRateBurst     int
	CORSAllowedOrigins []string
	Tariff             quote.Tariff
	// Ping reports store health for /healthz. Optional.
	Ping func(ctx context.Context) error
}

// Services groups the business services the handlers call.
type Services struct {
	Subscriptions *service.SubscriptionService
	Metering      *service.MeteringService
	Admin         *service.AdminService
	Tenants       *service.TenantService
	Payments      *service.PaymentService
	Providers     *service.ProviderService
	Branding      *service.BrandingService
}

type Server struct {
	opts         Options
	log          *slog.Logger
	svc          Services
	adminLimiter *rate.Limiter
	router       *chi.Mux
}

func NewServer(opts Options, log *slog.Logger, svc Services) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 15 * time.Second
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}

	s := &Server{
		opts:   opts,
		log:    log,
		svc:    svc,
		router: chi.NewRouter(),
	}
	if opts.AdminRatePerSecond > 0 && opts.AdminRateBurst > 0 {
		s.adminLimiter = rate.NewLimiter(rate.Limit(opts.AdminRatePerSecond), opts.AdminRateBurst)
	}

	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.observe)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/webhook/stripe", s.handleStripeWebhook)

	r.Route("/api", func(api chi.Router) {
		api.Use(middleware.Timeout(opts.RequestTimeout))

		api.Post("/subscription", s.handleSubscription)
		api.Post("/rides/increment", s.handleIncrementRide)
		api.Post("/checkout", s.handleCheckout)
		api.Post("/payments/verify", s.handleVerifyPayment)
		api.Get("/tenant", s.handleTenant)
		api.Post("/providers", s.handleRegisterProvider)
		api.Post("/quote", s.handleQuote)

		api.Group(func(admin chi.Router) {
			admin.Use(s.throttleAdmin)
			admin.Post("/admin/actions", s.handleAdminAction)
			admin.Group(func(gated chi.Router) {
				gated.Use(s.requireAdminHeader)
				gated.Put("/providers/{id}/customization", s.handleUpdateCustomization)
				gated.Post("/providers/{id}/logo", s.handleUploadLogo)
			})
		})
	})
	return s
}

// Handler returns the routed handler wrapped with CORS for the browser front-end.
func (s *Server) Handler() http.Handler {
	origins := s.opts.CORSAllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", adminPasswordHeader},
	})
	return c.Handler(s.router)
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       s.opts.RequestTimeout + 5*time.Second,
		WriteTimeout:      s.opts.RequestTimeout + 5*time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("api listening", "addr", s.opts.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("api listen: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api shutdown: %w", err)
	}
	return <-errCh
}

// observe logs every request and records its route metrics once chi has matched it.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		metrics.HTTPRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
		s.log.Info("http request",
			"method", r.Method,
			"route", route,
			"status", status,
			"duration_ms", elapsed.Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) throttleAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.adminLimiter != nil && !s.adminLimiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireAdminHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := s.svc.Admin.Authorize(r.Header.Get(adminPasswordHeader)); err != nil {
			s.log.Warn("admin header rejected", "path", r.URL.Path)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}
