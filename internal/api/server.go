package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/oatsaysai/debt-reminder/internal/models"
	"github.com/oatsaysai/debt-reminder/internal/reminder"
	"github.com/oatsaysai/debt-reminder/internal/scheduler"
)

// Trigger runs reminder processing on demand and reports the schedule
type Trigger interface {
	TriggerNow(ctx context.Context) error
	NextRun() time.Time
}

// SummarySource reports the outcome of the latest run
type SummarySource interface {
	LastSummary() *reminder.Summary
}

// ReminderLister reads the reminder audit trail
type ReminderLister interface {
	ListReminders(ctx context.Context, userID int, limit int) ([]models.Reminder, error)
}

// Server is the admin HTTP surface
type Server struct {
	trigger   Trigger
	summaries SummarySource
	reminders ReminderLister
	router    chi.Router
	http      *http.Server
}

// NewServer creates a new admin server
func NewServer(trigger Trigger, summaries SummarySource, reminders ReminderLister) *Server {
	s := &Server{
		trigger:   trigger,
		summaries: summaries,
		reminders: reminders,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/reminders", s.handleListReminders)
		r.Get("/users/{userId}/reminders", s.handleListUserReminders)
		r.Post("/admin/trigger-reminders", s.handleTriggerReminders)
		r.Get("/admin/scheduler", s.handleSchedulerStatus)
	})

	s.router = r
	return s
}

// Handler exposes the router
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves on addr in the background
func (s *Server) Start(addr string) {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("Server is running on http://%s", addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("HTTP server error: %v", err)
		}
	}()
}

// Shutdown stops accepting requests and waits for active ones
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

type triggerResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type schedulerStatus struct {
	NextRun     *time.Time        `json:"next_run"`
	LastSummary *reminder.Summary `json:"last_summary"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleTriggerReminders(w http.ResponseWriter, r *http.Request) {
	// a started run finishes even if the caller goes away
	err := s.trigger.TriggerNow(context.WithoutCancel(r.Context()))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, triggerResponse{Success: true, Message: "Reminder processing triggered successfully"})
	case errors.Is(err, scheduler.ErrRunInProgress):
		writeJSON(w, http.StatusConflict, triggerResponse{Success: false, Message: err.Error()})
	default:
		log.Printf("Manual reminder trigger failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, triggerResponse{Success: false, Message: err.Error()})
	}
}

func (s *Server) handleSchedulerStatus(w http.ResponseWriter, r *http.Request) {
	status := schedulerStatus{LastSummary: s.summaries.LastSummary()}
	if next := s.trigger.NextRun(); !next.IsZero() {
		status.NextRun = &next
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleListReminders(w http.ResponseWriter, r *http.Request) {
	s.listReminders(w, r, 0)
}

func (s *Server) handleListUserReminders(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.Atoi(chi.URLParam(r, "userId"))
	if err != nil || userID <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid user id"})
		return
	}
	s.listReminders(w, r, userID)
}

func (s *Server) listReminders(w http.ResponseWriter, r *http.Request, userID int) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 1000 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be between 1 and 1000"})
			return
		}
		limit = n
	}

	reminders, err := s.reminders.ListReminders(r.Context(), userID, limit)
	if err != nil {
		log.Printf("Error listing reminders for user %d: %v", userID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list reminders"})
		return
	}
	writeJSON(w, http.StatusOK, reminders)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write error: %v", err)
	}
}
