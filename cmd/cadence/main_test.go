package main

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/fentz26/cadence/internal/models"
)

func TestParseWhen(t *testing.T) {
	got, err := parseWhen("2025-03-03T09:30:00Z")
	if err != nil || !got.Equal(time.Date(2025, 3, 3, 9, 30, 0, 0, time.UTC)) {
		t.Errorf("RFC 3339: got %v, %v", got, err)
	}

	got, err = parseWhen("2025-03-03 14:00")
	if err != nil || got.Hour() != 14 || got.Minute() != 0 {
		t.Errorf("local time: got %v, %v", got, err)
	}

	got, err = parseWhen("2025-03-03")
	if err != nil || got.Day() != 3 || got.Hour() != 0 {
		t.Errorf("date: got %v, %v", got, err)
	}

	if _, err := parseWhen("next tuesday"); err == nil {
		t.Error("Expected error for free text")
	}
}

func TestSavedPlanRoundTrip(t *testing.T) {
	planFile = filepath.Join(t.TempDir(), "plan.json")
	defer func() { planFile = "" }()

	if _, err := loadPlan(); err == nil {
		t.Fatal("Expected error without a saved plan")
	}

	start := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	plan := models.EmptyPlan("test")
	plan.ScheduledTasks = []models.ScheduledTask{{TaskID: "t1", ScheduledStart: start, ScheduledEnd: start.Add(time.Hour), DurationHours: 1}}
	if err := savePlan(plan); err != nil {
		t.Fatalf("savePlan failed: %v", err)
	}

	loaded, err := loadPlan()
	if err != nil {
		t.Fatalf("loadPlan failed: %v", err)
	}
	if len(loaded.ScheduledTasks) != 1 || !loaded.ScheduledTasks[0].ScheduledStart.Equal(start) {
		t.Errorf("Unexpected plan: %+v", loaded)
	}
}

func TestCheckHealth(t *testing.T) {
	status := http.StatusOK
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		if status == http.StatusOK {
			w.Write([]byte(`{"ok":true,"db":"ok","version":"test","time":"now"}`))
		} else {
			w.Write([]byte(`{"ok":false,"db":"database is closed"}`))
		}
	}))
	defer ts.Close()

	old := apiAddr
	apiAddr = ts.URL
	defer func() { apiAddr = old }()

	health, err := CheckHealth(ts.Client())
	if err != nil || !health.OK || health.Version != "test" {
		t.Errorf("Unexpected health: %+v, %v", health, err)
	}

	status = http.StatusServiceUnavailable
	health, err = CheckHealth(ts.Client())
	if err == nil {
		t.Error("Expected error on 503")
	}
	if health == nil || health.DB != "database is closed" {
		t.Errorf("Expected payload alongside error, got %+v", health)
	}
	if isDaemonRunning() {
		t.Error("Expected unhealthy daemon to be reported as not running")
	}
}
