package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"opticalfiber-backend/internal/infra/metrics"
	red "opticalfiber-backend/internal/infra/redis"
	"opticalfiber-backend/internal/usecase"
)

// Deps are the use cases the HTTP surface drives.
type Deps struct {
	Routes   usecase.RouteUseCase
	Quota    usecase.QuotaEngine
	Payments usecase.PaymentUseCase
	Webhooks usecase.WebhookReconciler
	Auth     *AuthManager
	Limiter  *red.RateLimiter // nil disables initiation rate limiting
}

type Options struct {
	RequestTimeout              time.Duration
	PaymentInitiationsPerMinute int
}

// Server wires the REST API onto a chi router.
type Server struct {
	routes   usecase.RouteUseCase
	quota    usecase.QuotaEngine
	payments usecase.PaymentUseCase
	webhooks usecase.WebhookReconciler
	auth     *AuthManager
	limiter  *red.RateLimiter
	opts     Options
	log      *zerolog.Logger
}

func NewServer(d Deps, opts Options, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "api.Server").Logger()
	return &Server{
		routes:   d.Routes,
		quota:    d.Quota,
		payments: d.Payments,
		webhooks: d.Webhooks,
		auth:     d.Auth,
		limiter:  d.Limiter,
		opts:     opts,
		log:      &l,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(), RequestLog(s.log), Recover(s.log), Timeout(s.opts.RequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Called by the payment provider and the customer's browser.
		r.Get("/payments/callback", s.paymentCallback)
		r.Post("/payments/webhook", s.paymentWebhook)

		r.Group(func(r chi.Router) {
			r.Use(s.auth.Middleware)

			r.Get("/quota", s.quotaStatus)

			r.Route("/routes", func(r chi.Router) {
				r.Post("/", s.createRoute)
				r.Get("/", s.listRoutes)
				r.Get("/{id}", s.getRoute)
				r.Patch("/{id}", s.updateRoute)
				r.Delete("/{id}", s.deleteRoute)
			})

			r.Route("/payments", func(r chi.Router) {
				r.With(RateLimit(s.limiter, "payment_initiate", s.opts.PaymentInitiationsPerMinute, time.Minute, s.log)).
					Post("/", s.initiatePayment)
				r.Get("/", s.listPayments)
				r.Get("/{transaction_id}", s.getPayment)
			})
		})
	})
	return r
}

// Serve runs an http.Server on port until ctx ends, then shuts it down
// gracefully.
func Serve(ctx context.Context, port int, h http.Handler, logger *zerolog.Logger) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Int("port", port).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	logger.Info().Msg("HTTP server shutting down")
	return srv.Shutdown(shutdownCtx)
}
