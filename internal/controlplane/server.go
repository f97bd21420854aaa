package controlplane

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fentz26/cadence/internal/models"
	"github.com/fentz26/cadence/internal/replan"
	"github.com/fentz26/cadence/internal/slots"
	"github.com/rs/zerolog"
)

// Version is reported by /health. It is overridden at build time.
var Version = "0.1.0"

// Pinger reports database health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server provides the HTTP API for Cadence.
type Server struct {
	service *Service
	db      Pinger
	addr    string
	server  *http.Server
	log     zerolog.Logger
}

// NewServer creates a new HTTP server.
func NewServer(service *Service, db Pinger, addr string, log zerolog.Logger) *Server {
	return &Server{
		service: service,
		db:      db,
		addr:    addr,
		log:     log.With().Str("component", "http").Logger(),
	}
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)

	mux.HandleFunc("/tasks", s.handleTasks)
	mux.HandleFunc("/tasks/", s.handleTaskByID)

	mux.HandleFunc("/plans", s.post(s.generatePlan))
	mux.HandleFunc("/plans/refine", s.post(s.refinePlan))
	mux.HandleFunc("/plans/execute", s.post(s.executePlan))
	mux.HandleFunc("/replan", s.post(s.triggerReplan))

	mux.HandleFunc("/insights", s.get(s.getInsights))
	mux.HandleFunc("/profile", s.get(s.getProfile))
	mux.HandleFunc("/refinements/patterns", s.get(s.getRefinementPatterns))

	mux.HandleFunc("/monitor", s.get(s.getMonitor))
	mux.HandleFunc("/monitor/start", s.post(s.startMonitor))
	mux.HandleFunc("/monitor/stop", s.post(s.stopMonitor))

	mux.HandleFunc("/slots", s.get(s.getSlots))
	mux.HandleFunc("/events", s.get(s.getEvents))

	return mux
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Minute,
	}

	s.log.Info().Str("addr", s.addr).Msg("starting cadence daemon")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// HealthResponse is the /health payload.
type HealthResponse struct {
	OK      bool   `json:"ok"`
	DB      string `json:"db"`
	Version string `json:"version"`
	Time    string `json:"time"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{OK: true, DB: "ok", Version: Version, Time: time.Now().UTC().Format(time.RFC3339)}
	status := http.StatusOK
	if err := s.db.Ping(ctx); err != nil {
		resp.OK = false
		resp.DB = err.Error()
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// handleTasks handles POST /tasks and GET /tasks
func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.createTask(w, r)
	case http.MethodGet:
		s.listTasks(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleTaskByID handles /tasks/{id}/*
func (s *Server) handleTaskByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/tasks/")
	parts := strings.Split(path, "/")

	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "task id required", http.StatusBadRequest)
		return
	}

	taskID := parts[0]
	action := ""
	if len(parts) > 1 {
		action = parts[1]
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		s.getTask(w, r, taskID)
	case action == "start" && r.Method == http.MethodPost:
		s.respond(w, http.StatusOK)(s.service.MarkInProgress(taskID))
	case action == "complete" && r.Method == http.MethodPost:
		s.respond(w, http.StatusOK)(s.service.MarkCompleted(r.Context(), taskID))
	case action == "cancel" && r.Method == http.MethodPost:
		s.respond(w, http.StatusOK)(s.service.CancelTask(r.Context(), taskID))
	case action == "decisions" && r.Method == http.MethodGet:
		entries, err := s.service.TaskDecisions(taskID, 50)
		if entries == nil {
			entries = []models.PDREntry{}
		}
		s.respond(w, http.StatusOK)(entries, err)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

// --- Task Handlers ---

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	var task models.Task
	if !decode(w, r, &task) {
		return
	}
	s.respond(w, http.StatusCreated)(s.service.AddTask(&task))
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	var statuses []models.TaskStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		for _, st := range strings.Split(raw, ",") {
			statuses = append(statuses, models.TaskStatus(strings.TrimSpace(st)))
		}
	}

	tasks, err := s.service.ListTasks(statuses...)
	if tasks == nil {
		tasks = []models.Task{}
	}
	s.respond(w, http.StatusOK)(tasks, err)
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request, taskID string) {
	s.respond(w, http.StatusOK)(s.service.GetTask(taskID))
}

// --- Plan Handlers ---

type generatePlanRequest struct {
	PlanRequest
	Execute bool `json:"execute"`
}

type planResponse struct {
	Plan      *models.Plan            `json:"plan"`
	Execution *models.ExecutionResult `json:"execution,omitempty"`
}

func (s *Server) generatePlan(w http.ResponseWriter, r *http.Request) {
	var req generatePlanRequest
	if !decode(w, r, &req) {
		return
	}
	plan, err := s.service.GeneratePlan(r.Context(), req.PlanRequest)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := planResponse{Plan: plan}
	if req.Execute {
		if resp.Execution, err = s.service.ExecutePlan(r.Context(), plan); err != nil {
			writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type refinePlanRequest struct {
	Feedback string       `json:"feedback"`
	Plan     *models.Plan `json:"plan,omitempty"`
}

func (s *Server) refinePlan(w http.ResponseWriter, r *http.Request) {
	var req refinePlanRequest
	if !decode(w, r, &req) {
		return
	}
	s.respond(w, http.StatusOK)(s.service.RefinePlan(r.Context(), req.Feedback, req.Plan))
}

func (s *Server) executePlan(w http.ResponseWriter, r *http.Request) {
	var plan models.Plan
	if !decode(w, r, &plan) {
		return
	}
	s.respond(w, http.StatusOK)(s.service.ExecutePlan(r.Context(), &plan))
}

type replanRequest struct {
	Reason  string `json:"reason"`
	Execute bool   `json:"execute"`
}

type replanResponse struct {
	*replan.Result
	Execution *models.ExecutionResult `json:"execution,omitempty"`
}

func (s *Server) triggerReplan(w http.ResponseWriter, r *http.Request) {
	var req replanRequest
	if !decode(w, r, &req) {
		return
	}
	res, exec, err := s.service.TriggerReplan(r.Context(), req.Reason, req.Execute)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, replanResponse{Result: res, Execution: exec})
}

// --- Learning Handlers ---

func (s *Server) getInsights(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.GetInsights())
}

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.GetProfile())
}

func (s *Server) getRefinementPatterns(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK)(s.service.RefinementPatterns())
}

// --- Monitor Handlers ---

type startMonitorRequest struct {
	Interval string `json:"interval,omitempty"`
}

type monitorResponse struct {
	Started bool `json:"started"`
	Status  any  `json:"status"`
}

func (s *Server) getMonitor(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.MonitorStatus())
}

func (s *Server) startMonitor(w http.ResponseWriter, r *http.Request) {
	var req startMonitorRequest
	if !decode(w, r, &req) {
		return
	}
	var interval time.Duration
	if req.Interval != "" {
		d, err := time.ParseDuration(req.Interval)
		if err != nil || d <= 0 {
			http.Error(w, "invalid interval", http.StatusBadRequest)
			return
		}
		interval = d
	}
	started := s.service.StartMonitoring(interval)
	writeJSON(w, http.StatusOK, monitorResponse{Started: started, Status: s.service.MonitorStatus()})
}

func (s *Server) stopMonitor(w http.ResponseWriter, r *http.Request) {
	s.service.StopMonitoring()
	writeJSON(w, http.StatusOK, s.service.MonitorStatus())
}

// --- Calendar Handlers ---

type eventsResponse struct {
	Events   []models.CalendarEvent `json:"events"`
	Warnings []string               `json:"warnings,omitempty"`
}

func (s *Server) getSlots(w http.ResponseWriter, r *http.Request) {
	start, end, ok := windowParams(w, r)
	if !ok {
		return
	}
	var min time.Duration
	if raw := r.URL.Query().Get("min"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			http.Error(w, "invalid min duration", http.StatusBadRequest)
			return
		}
		min = d
	}
	free, err := s.service.FreeSlots(r.Context(), start, end, min)
	if free == nil {
		free = []slots.Interval{}
	}
	s.respond(w, http.StatusOK)(free, err)
}

func (s *Server) getEvents(w http.ResponseWriter, r *http.Request) {
	start, end, ok := windowParams(w, r)
	if !ok {
		return
	}
	events, warnings, err := s.service.ListEvents(r.Context(), start, end)
	if err != nil {
		writeError(w, err)
		return
	}
	if events == nil {
		events = []models.CalendarEvent{}
	}
	writeJSON(w, http.StatusOK, eventsResponse{Events: events, Warnings: warnings})
}

// --- Helpers ---

func (s *Server) get(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	}
}

func (s *Server) post(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	}
}

// respond writes v with status, or the mapped error.
func (s *Server) respond(w http.ResponseWriter, status int) func(v interface{}, err error) {
	return func(v interface{}, err error) {
		if err != nil {
			if statusFor(err) == http.StatusInternalServerError {
				s.log.Error().Err(err).Msg("request failed")
			}
			writeError(w, err)
			return
		}
		writeJSON(w, status, v)
	}
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return false
	}
	return true
}

func windowParams(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	q := r.URL.Query()
	var out [2]time.Time
	for i, key := range []string{"start", "end"} {
		raw := q.Get(key)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid %s: want RFC 3339", key), http.StatusBadRequest)
			return time.Time{}, time.Time{}, false
		}
		out[i] = t
	}
	return out[0], out[1], true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrTaskNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidTask), errors.Is(err, ErrUnknownDependency),
		errors.Is(err, ErrInvalidWindow), errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrInvalidTransition), errors.Is(err, ErrNoPlan):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), statusFor(err))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
