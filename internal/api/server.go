// Package api exposes the calendar, goals, assistant and notification
// operations as a JSON HTTP API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pathakanu/billcal/internal/bills"
	"github.com/pathakanu/billcal/internal/calendar"
	"github.com/pathakanu/billcal/internal/checkin"
	"github.com/pathakanu/billcal/internal/goals"
	"github.com/pathakanu/billcal/internal/model"
	"github.com/pathakanu/billcal/internal/notify"
	"github.com/pathakanu/billcal/internal/session"
	"github.com/pathakanu/billcal/internal/store"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var errBadRequest = errors.New("bad request")

// Subscriptions reads and replaces notification grants.
type Subscriptions interface {
	Get(ctx context.Context, userID string) (model.Subscription, error)
	Save(ctx context.Context, sub *model.Subscription) error
}

// Services bundles what the handlers call into.
type Services struct {
	Calendar      *calendar.Service
	Editor        *bills.Editor
	Goals         *goals.Tracker
	Assistant     *checkin.Service
	Scheduler     *notify.Scheduler
	Subscriptions Subscriptions
	Webhook       http.Handler
}

// Server routes HTTP requests to the services.
type Server struct {
	svc      Services
	verifier *session.Verifier
	logger   *log.Logger
}

// NewServer returns a Server authenticating callers with verifier.
func NewServer(svc Services, verifier *session.Verifier, logger *log.Logger) *Server {
	return &Server{svc: svc, verifier: verifier, logger: logger}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: s.logger, NoColor: true}))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	if s.svc.Webhook != nil {
		r.Post("/twilio/webhook", s.svc.Webhook.ServeHTTP)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(s.authenticate)

		r.Get("/calendar/{year}/{month}", s.handleCalendar)

		r.Get("/days/{date}", s.handleDay)
		r.Post("/days/{date}/items", s.handleAddItem)

		r.Post("/bills/{id}/toggle-paid", s.handleTogglePaid)
		r.Put("/bills/{id}/status", s.handleSetStatus)
		r.Put("/bills/{id}/payment-arrangement", s.handleSetPADate)
		r.Delete("/bills/{id}", s.handleDeleteItem)

		r.Get("/goals", s.handleListGoals)
		r.Post("/goals", s.handleAddGoal)
		r.Post("/goals/{id}/toggle", s.handleToggleGoal)
		r.Delete("/goals/{id}", s.handleDeleteGoal)

		r.Get("/chat", s.handleChatHistory)
		r.Post("/assistant", s.handleAssistant)

		r.Put("/notifications/subscription", s.handleSubscribe)
		r.Post("/notifications/check", s.handleNotificationCheck)
	})
	return r
}

type sessionKey struct{}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.verifier.FromRequest(r)
		if err != nil {
			s.writeError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, sess)))
	})
}

func sessionFrom(r *http.Request) session.Session {
	sess, _ := r.Context().Value(sessionKey{}).(session.Session)
	return sess
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Join(errBadRequest, err)
	}
	return nil
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, session.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, errBadRequest),
		errors.Is(err, session.ErrInvalidDate),
		errors.Is(err, calendar.ErrInvalidMonth),
		errors.Is(err, calendar.ErrInvalidYear),
		errors.Is(err, bills.ErrDescriptionRequired),
		errors.Is(err, bills.ErrPADateRequired),
		errors.Is(err, model.ErrInvalidBillType),
		errors.Is(err, model.ErrInvalidBillStatus),
		errors.Is(err, model.ErrInvalidPriority),
		errors.Is(err, goals.ErrGoalRequired),
		errors.Is(err, checkin.ErrMessageRequired):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Printf("api: %v", err)
		msg = http.StatusText(status)
	}
	writeJSON(w, status, map[string]string{"error": msg})
}
