package controlplane

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fentz26/cadence/internal/models"
	"github.com/rs/zerolog"
)

func TestHealthEndpoint_OK(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	s.handleHealth(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if !health.OK {
		t.Error("Expected health.OK to be true")
	}
	if health.DB != "ok" {
		t.Errorf("Expected DB status 'ok', got '%s'", health.DB)
	}
	if health.Version == "" {
		t.Error("Expected version to be set")
	}
	if health.Time == "" {
		t.Error("Expected time to be set")
	}
}

func TestHealthEndpoint_MethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/health", nil)
	w := httptest.NewRecorder()

	s.handleHealth(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", w.Code)
	}
}

func TestHealthEndpoint_DBError(t *testing.T) {
	s, st := newTestServer(t)

	// Close the store to simulate DB error
	st.Close()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	s.handleHealth(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", resp.StatusCode)
	}

	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if health.OK {
		t.Error("Expected health.OK to be false when DB is down")
	}
	if health.DB == "ok" {
		t.Error("Expected DB status to indicate error")
	}
}

func TestTaskRoutes(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	body, _ := json.Marshal(models.Task{Title: "Write tests", EstimatedDuration: 1.5})
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/tasks", bytes.NewReader(body)))
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var created models.Task
	if err := json.NewDecoder(w.Body).Decode(&created); err != nil {
		t.Fatalf("Failed to decode task: %v", err)
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/tasks?status=pending", nil))
	var tasks []models.Task
	if err := json.NewDecoder(w.Body).Decode(&tasks); err != nil {
		t.Fatalf("Failed to decode list: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != created.ID {
		t.Errorf("Unexpected task list: %+v", tasks)
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/tasks/"+created.ID+"/decisions", nil))
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 for decisions, got %d", w.Code)
	}
}

func TestErrorMapping(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"unknown task", http.MethodGet, "/tasks/nope", "", http.StatusNotFound},
		{"complete unknown task", http.MethodPost, "/tasks/nope/complete", "", http.StatusNotFound},
		{"invalid task", http.MethodPost, "/tasks", `{"title":""}`, http.StatusBadRequest},
		{"bad json", http.MethodPost, "/tasks", `{`, http.StatusBadRequest},
		{"refine without plan", http.MethodPost, "/plans/refine", `{"feedback":"later"}`, http.StatusConflict},
		{"wrong method", http.MethodGet, "/plans", "", http.StatusMethodNotAllowed},
		{"bad window", http.MethodGet, "/slots?start=2025-03-03T10:00:00Z&end=2025-03-03T09:00:00Z", "", http.StatusBadRequest},
		{"bad time", http.MethodGet, "/events?start=yesterday", "", http.StatusBadRequest},
		{"unknown action", http.MethodPost, "/tasks/abc/explode", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, bytes.NewBufferString(tt.body)))
			if w.Code != tt.want {
				t.Errorf("Expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestMonitorRoutes(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/monitor/start", bytes.NewBufferString(`{"interval":"1h"}`)))
	var started monitorResponse
	if err := json.NewDecoder(w.Body).Decode(&started); err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if !started.Started {
		t.Error("Expected monitor to start")
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/monitor/start", bytes.NewBufferString(`{"interval":"soon"}`)))
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for bad interval, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/monitor/stop", nil))
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 on stop, got %d", w.Code)
	}
	if st := s.service.MonitorStatus(); st.State != "idle" {
		t.Errorf("Expected idle monitor, got %s", st.State)
	}
}

func newTestServer(t *testing.T) (*Server, interface{ Close() error }) {
	svc, st := newTestService(t, nil)
	return NewServer(svc, st, "127.0.0.1:0", zerolog.Nop()), st
}
