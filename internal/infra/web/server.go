package web

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"telegram-invoicing-crm/internal/domain/ports/adapter"
	"telegram-invoicing-crm/internal/infra/logging"
	red "telegram-invoicing-crm/internal/infra/redis"
	"telegram-invoicing-crm/internal/usecase"
)

// Server is the dashboard-facing review API. Chat admins and the dashboard
// drive the same use cases; this is just the second trigger surface.
type Server struct {
	payments   usecase.PaymentUseCase
	review     usecase.ReviewUseCase
	bot        adapter.ChatBotAdapter
	locker     red.Locker
	auth       *AuthManager
	apiKey     string
	reviewerID int64 // identity recorded for dashboard decisions
	log        *zerolog.Logger
}

func NewServer(
	payments usecase.PaymentUseCase,
	review usecase.ReviewUseCase,
	bot adapter.ChatBotAdapter,
	locker red.Locker,
	auth *AuthManager,
	apiKey string,
	reviewerID int64,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "WebServer").Logger()
	return &Server{
		payments:   payments,
		review:     review,
		bot:        bot,
		locker:     locker,
		auth:       auth,
		apiKey:     apiKey,
		reviewerID: reviewerID,
		log:        &l,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := logging.WithTraceID(req.Context(), middleware.GetReqID(req.Context()))
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})

	r.Post("/api/v1/auth/login", s.loginHandler)
	r.Post("/api/v1/auth/logout", s.logoutHandler)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.sessionMiddleware)
		r.Get("/api/v1/payments/pending", s.listPendingHandler)
		r.Post("/api/v1/payments/{id}/confirm", s.confirmHandler)
		r.Post("/api/v1/payments/{id}/reject", s.rejectHandler)
		r.Post("/api/v1/payments/{id}/cancel", s.cancelHandler)
	})

	return r
}

// sessionMiddleware admits requests carrying a valid session JWT.
func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.auth.ParseFromRequest(r); err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withReviewLock serializes dashboard decisions per payment. The database
// CAS stays the correctness guard; the lock just avoids pointless races.
func (s *Server) withReviewLock(w http.ResponseWriter, r *http.Request, paymentID int64, fn func()) {
	if s.locker == nil {
		fn()
		return
	}
	key := red.ReviewLockKey(paymentID)
	token, err := s.locker.TryLock(r.Context(), key, 10*time.Second)
	if err != nil {
		http.Error(w, "Payment is being reviewed elsewhere", http.StatusConflict)
		return
	}
	defer func() {
		if err := s.locker.Unlock(r.Context(), key, token); err != nil {
			s.log.Warn().Err(err).Int64("payment_id", paymentID).Msg("review lock release failed")
		}
	}()
	fn()
}

func (s *Server) ListenAndServe(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.log.Info().Str("addr", addr).Msg("admin API listening")
	return http.ListenAndServe(addr, s.Router())
}
