package tui

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/fentz26/cadence/internal/models"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line string
		want command
	}{
		{"plan", command{name: "plan"}},
		{"/plan", command{name: "plan"}},
		{"!plan-execute", command{name: "plan-execute"}},
		{"done @abc123", command{name: "done", ref: "abc123"}},
		{"@abc123", command{name: "show", ref: "abc123"}},
		{"refine more buffer please", command{name: "refine", args: []string{"more", "buffer", "please"}}},
		{"  ", command{}},
	}
	for _, tt := range tests {
		if got := parseCommand(tt.line); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("parseCommand(%q) = %+v, want %+v", tt.line, got, tt.want)
		}
	}
}

func TestParseAdd(t *testing.T) {
	hours, title, err := parseAdd([]string{"1.5", "Write", "report"})
	if err != nil || hours != 1.5 || title != "Write report" {
		t.Errorf("Unexpected parse: %v %q %v", hours, title, err)
	}
	hours, _, err = parseAdd([]string{"90m", "Review"})
	if err != nil || hours != 1.5 {
		t.Errorf("Expected 90m to be 1.5h, got %v (%v)", hours, err)
	}
	for _, args := range [][]string{{"2"}, {"soon", "x"}, {"-1", "x"}} {
		if _, _, err := parseAdd(args); err == nil {
			t.Errorf("Expected error for %v", args)
		}
	}
}

func TestFormatHours(t *testing.T) {
	tests := map[float64]string{0.5: "30m", 1: "1h", 2.25: "2h15m"}
	for in, want := range tests {
		if got := formatHours(in); got != want {
			t.Errorf("formatHours(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestSuggestions(t *testing.T) {
	s := NewSuggestions()

	s.Update("/re")
	if !s.IsVisible() {
		t.Fatal("Expected suggestions for /re")
	}
	var names []string
	for _, item := range s.filtered {
		names = append(names, item.Text)
	}
	if !reflect.DeepEqual(names, []string{"refine", "replan"}) {
		t.Errorf("Unexpected matches: %v", names)
	}

	s.SetTasks([]models.Task{
		{ID: "task-1", Title: "Write report", Status: models.TaskStatusPending},
		{ID: "task-2", Title: "Review budget", Status: models.TaskStatusScheduled},
		{ID: "task-3", Title: "Old review", Status: models.TaskStatusCompleted},
	})
	s.Update("@")
	s.Next()
	if sel := s.Selected(); sel == nil || sel.Text != "task-2" || sel.Type != "task" {
		t.Errorf("Unexpected selection: %+v", sel)
	}
	if len(s.filtered) != 2 {
		t.Errorf("Expected completed tasks to be skipped, got %d", len(s.filtered))
	}

	s.Update("@budget")
	if sel := s.Selected(); sel == nil || sel.Text != "task-2" {
		t.Errorf("Expected title match, got %+v", sel)
	}
	s.Prev()
	if sel := s.Selected(); sel == nil || sel.Text != "task-2" {
		t.Errorf("Expected wrap-around on a single match, got %+v", sel)
	}

	s.Update("plain text")
	if s.IsVisible() {
		t.Error("Expected no suggestions without a trigger prefix")
	}
}

func TestClient(t *testing.T) {
	var gotBody map[string]interface{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/tasks":
			if r.URL.Query().Get("status") != "pending" {
				t.Errorf("Expected status filter, got %q", r.URL.RawQuery)
			}
			json.NewEncoder(w).Encode([]models.Task{{ID: "t1", Title: "One", Status: models.TaskStatusPending}})
		case r.Method == http.MethodPost && r.URL.Path == "/plans":
			json.NewDecoder(r.Body).Decode(&gotBody)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"plan":      models.EmptyPlan("nothing to do"),
				"execution": models.ExecutionResult{Scheduled: []string{"t1"}},
			})
		case r.URL.Path == "/tasks/missing/start":
			http.Error(w, "task not found", http.StatusNotFound)
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	c := NewClient(ts.URL)

	tasks, err := c.ListTasks("pending")
	if err != nil || len(tasks) != 1 || tasks[0].Title != "One" {
		t.Fatalf("ListTasks = %v, %v", tasks, err)
	}

	res, err := c.GeneratePlan(true)
	if err != nil {
		t.Fatalf("GeneratePlan failed: %v", err)
	}
	if gotBody["execute"] != true {
		t.Errorf("Expected execute flag in body, got %v", gotBody)
	}
	if res.Plan.Reasoning != "nothing to do" || len(res.Execution.Scheduled) != 1 {
		t.Errorf("Unexpected plan result: %+v", res)
	}
	if msg := planMessage(res); msg != "✓ 0 session(s) planned, 1 task(s) scheduled" {
		t.Errorf("Unexpected plan message: %q", msg)
	}

	err = c.StartTask("missing")
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Errorf("Expected 404 error, got %v", err)
	}
}
