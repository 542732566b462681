package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"task-receiver/internal/config"
	"task-receiver/internal/logging"
	"task-receiver/internal/models"
	"task-receiver/internal/registry"
	"task-receiver/internal/scheduler"
	"task-receiver/internal/telemetry"
)

// defaultLogLines is how much of the log tail GET /logs serves when the
// caller does not say.
const defaultLogLines = 200

// Server wires the HTTP surface of the receiver.
type Server struct {
	cfg       config.Config
	registry  *registry.Registry
	scheduler *scheduler.Scheduler
	sink      *logging.Sink
	logger    *slog.Logger
	validate  *validator.Validate
}

// New constructs the API server.
func New(cfg config.Config, reg *registry.Registry, sched *scheduler.Scheduler, sink *logging.Sink, logger *slog.Logger) *Server {
	return &Server{
		cfg:       cfg,
		registry:  reg,
		scheduler: sched,
		sink:      sink,
		logger:    logger,
		validate:  validator.New(),
	}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/", s.handleRoot)
	r.Post("/ready", s.handleReady)
	r.Get("/status", s.handleStatus)
	r.Get("/health", s.handleHealth)
	r.Get("/logs", s.handleLogs)
	r.Mount("/metrics", telemetry.Handler())
	return r
}

type readyResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type statusResponse struct {
	LastReceivedTask       *models.TaskSummary `json:"last_received_task"`
	RunningBackgroundTasks int                 `json:"running_background_tasks"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Task Receiver Service running. POST /ready to submit.",
	})
}

// handleReady admits a submission: structural validation, then the secret
// gate, and only then any visible state change.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	var sub models.TaskSubmission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if err := s.validate.Struct(sub); err != nil {
		http.Error(w, validationMessage(err), http.StatusBadRequest)
		return
	}
	if !s.secretMatches(sub.Secret) {
		telemetry.TasksRejected.Inc()
		s.logger.Warn("rejected submission", "task", sub.Task, "reason", "secret mismatch")
		http.Error(w, "unauthorized: secret mismatch", http.StatusUnauthorized)
		return
	}

	s.registry.RecordSummary(models.Summarize(sub, time.Now()))
	h := s.scheduler.Submit(sub)
	telemetry.TasksAdmitted.Inc()
	s.logger.Info("accepted task", "task", sub.Task, "round", sub.Round, "job_id", h.ID)

	writeJSON(w, http.StatusOK, readyResponse{
		Status:  "ready",
		Message: fmt.Sprintf("Task %s received.", sub.Task),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	summary, running := s.registry.Snapshot()
	writeJSON(w, http.StatusOK, statusResponse{
		LastReceivedTask:       summary,
		RunningBackgroundTasks: running,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Timestamp: time.Now().UTC()})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	lines := defaultLogLines
	if q := r.URL.Query().Get("lines"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 {
			http.Error(w, "lines must be a positive integer", http.StatusBadRequest)
			return
		}
		lines = n
	}

	tail, err := s.sink.Tail(lines)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			http.Error(w, "Log file not found.", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to read log file", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	for _, line := range tail {
		_, _ = w.Write([]byte(line))
		_, _ = w.Write([]byte("\n"))
	}
}

// secretMatches compares in constant time so response timing reveals
// nothing about the configured secret.
func (s *Server) secretMatches(secret string) bool {
	return subtle.ConstantTimeCompare([]byte(secret), []byte(s.cfg.StudentSecret)) == 1
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return strings.ToLower(verrs[0].Field()) + " is required"
	}
	return "invalid request"
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
