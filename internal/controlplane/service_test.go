package controlplane

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fentz26/cadence/internal/audit"
	"github.com/fentz26/cadence/internal/calendar"
	"github.com/fentz26/cadence/internal/learner"
	"github.com/fentz26/cadence/internal/models"
	"github.com/fentz26/cadence/internal/planner"
	"github.com/fentz26/cadence/internal/store"
	"github.com/rs/zerolog"
)

// monday is a working day with no surprises around it.
var monday = time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)

type failingGateway struct{}

func (failingGateway) Name() string { return "failing" }

func (failingGateway) GetEvents(ctx context.Context, start, end time.Time) ([]models.CalendarEvent, error) {
	return nil, errors.New("calendar offline")
}

func (failingGateway) CreateEvent(ctx context.Context, e *models.CalendarEvent) (string, error) {
	return "", errors.New("calendar offline")
}

func (failingGateway) UpdateEvent(ctx context.Context, e *models.CalendarEvent) error {
	return errors.New("calendar offline")
}

func (failingGateway) DeleteEvent(ctx context.Context, externalID string) error {
	return errors.New("calendar offline")
}

func newTestService(t *testing.T, gw calendar.Gateway) (*Service, *store.Store) {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	if gw == nil {
		gw = calendar.NewLocal(st)
	}
	lr := learner.New(nil)
	svc, err := NewService(st, audit.NewPDRWriter(st, zerolog.Nop()), gw, planner.NewLocal(lr, 0, zerolog.Nop()), lr, Options{UserID: "tester"}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to create service: %v", err)
	}
	t.Cleanup(svc.Close)

	now := monday
	svc.now = func() time.Time { return now }
	return svc, st
}

func setNow(svc *Service, t time.Time) {
	svc.now = func() time.Time { return t }
}

func mustAdd(t *testing.T, svc *Service, task models.Task) *models.Task {
	t.Helper()
	added, err := svc.AddTask(&task)
	if err != nil {
		t.Fatalf("AddTask(%q) failed: %v", task.Title, err)
	}
	return added
}

func testWindow() PlanRequest {
	return PlanRequest{
		WindowStart: monday.Add(time.Hour),
		WindowEnd:   monday.Add(33 * time.Hour),
	}
}

func TestTaskLifecycle(t *testing.T) {
	svc, st := newTestService(t, nil)
	ctx := context.Background()

	task := mustAdd(t, svc, models.Task{Title: "Write report", EstimatedDuration: 2, Priority: models.PriorityHigh})
	if task.ID == "" || task.Status != models.TaskStatusPending {
		t.Fatalf("Unexpected new task: %+v", task)
	}

	req := testWindow()
	plan, err := svc.GeneratePlan(ctx, req)
	if err != nil {
		t.Fatalf("GeneratePlan failed: %v", err)
	}
	if len(plan.ScheduledTasks) != 1 {
		t.Fatalf("Expected 1 placement, got %d (%v)", len(plan.ScheduledTasks), plan.Warnings)
	}
	placed := plan.ScheduledTasks[0]
	if placed.TaskID != task.ID || placed.ScheduledStart.Before(req.WindowStart) {
		t.Errorf("Unexpected placement: %+v", placed)
	}
	if got := placed.ScheduledEnd.Sub(placed.ScheduledStart); got != 2*time.Hour {
		t.Errorf("Expected a 2h session, got %v", got)
	}
	if p := svc.GetProfile(); p.TotalPlansGenerated != 1 || p.LastPlanDate == nil {
		t.Errorf("Plan counters not updated: %+v", p)
	}

	exec, err := svc.ExecutePlan(ctx, plan)
	if err != nil {
		t.Fatalf("ExecutePlan failed: %v", err)
	}
	if len(exec.Scheduled) != 1 || len(exec.Events) != 1 || len(exec.Warnings) != 0 {
		t.Fatalf("Unexpected execution result: %+v", exec)
	}
	ev := exec.Events[0]
	if !ev.Synced || ev.ExternalID == "" || ev.Title != "[TASK] Write report" || ev.Type != models.EventTypeScheduledTask {
		t.Errorf("Unexpected event: %+v", ev)
	}

	got, _ := svc.GetTask(task.ID)
	if got.Status != models.TaskStatusScheduled || got.ScheduledStart == nil || !got.ScheduledStart.Equal(placed.ScheduledStart) {
		t.Fatalf("Task not scheduled: %+v", got)
	}

	setNow(svc, placed.ScheduledStart)
	if _, err := svc.MarkInProgress(task.ID); err != nil {
		t.Fatalf("MarkInProgress failed: %v", err)
	}

	// Finish an hour late to trigger a deviation analysis.
	setNow(svc, placed.ScheduledEnd.Add(time.Hour))
	res, err := svc.MarkCompleted(ctx, task.ID)
	if err != nil {
		t.Fatalf("MarkCompleted failed: %v", err)
	}
	if !res.Learned {
		t.Error("Expected completion to be learned from")
	}
	if res.Deviation == nil {
		t.Error("Expected deviation analysis for a late finish")
	}
	if res.Task.ActualDuration == nil || *res.Task.ActualDuration != 3 {
		t.Errorf("Expected 3h actual duration, got %v", res.Task.ActualDuration)
	}

	if p := svc.GetProfile(); p.ScheduleAdherence.TotalScheduled != 1 || p.ScheduleAdherence.Late != 1 {
		t.Errorf("Adherence not updated: %+v", p.ScheduleAdherence)
	}
	samples, err := st.ListCompletionSamples("tester")
	if err != nil || len(samples) != 1 {
		t.Errorf("Expected 1 stored sample, got %d (%v)", len(samples), err)
	}

	decisions, err := svc.TaskDecisions(task.ID, 10)
	if err != nil {
		t.Fatalf("TaskDecisions failed: %v", err)
	}
	actions := make(map[string]bool)
	for _, d := range decisions {
		actions[d.Action] = true
	}
	for _, want := range []string{"task.create", "task.start", "task.complete"} {
		if !actions[want] {
			t.Errorf("Missing decision %q in %v", want, actions)
		}
	}
}

func TestAddTaskValidation(t *testing.T) {
	svc, _ := newTestService(t, nil)

	if _, err := svc.AddTask(&models.Task{Title: "", EstimatedDuration: 1}); !errors.Is(err, ErrInvalidTask) {
		t.Errorf("Expected ErrInvalidTask for empty title, got %v", err)
	}
	if _, err := svc.AddTask(&models.Task{Title: "x", EstimatedDuration: 1, Dependencies: []string{"missing"}}); !errors.Is(err, ErrUnknownDependency) {
		t.Errorf("Expected ErrUnknownDependency, got %v", err)
	}

	first := mustAdd(t, svc, models.Task{Title: "first", EstimatedDuration: 1})
	second := mustAdd(t, svc, models.Task{Title: "second", EstimatedDuration: 1, Dependencies: []string{first.ID}})
	if second.Priority != models.PriorityMedium {
		t.Errorf("Expected default medium priority, got %s", second.Priority)
	}
}

func TestExecuteSkipsUnknownTasks(t *testing.T) {
	svc, _ := newTestService(t, nil)
	start := monday.Add(2 * time.Hour)

	plan := models.EmptyPlan("manual")
	plan.ScheduledTasks = []models.ScheduledTask{{TaskID: "ghost", ScheduledStart: start, ScheduledEnd: start.Add(time.Hour)}}

	res, err := svc.ExecutePlan(context.Background(), plan)
	if err != nil {
		t.Fatalf("ExecutePlan failed: %v", err)
	}
	if len(res.Scheduled) != 0 || len(res.Events) != 0 {
		t.Errorf("Expected nothing scheduled, got %+v", res)
	}
	if len(res.Warnings) != 1 || res.Warnings[0] != "Task ghost not found, skipped" {
		t.Errorf("Unexpected warnings: %v", res.Warnings)
	}
}

func TestExecuteWithFailingCalendar(t *testing.T) {
	svc, st := newTestService(t, failingGateway{})
	ctx := context.Background()

	task := mustAdd(t, svc, models.Task{Title: "Review", EstimatedDuration: 1})
	plan, err := svc.GeneratePlan(ctx, testWindow())
	if err != nil {
		t.Fatalf("GeneratePlan failed: %v", err)
	}
	if !containsWarning(plan.Warnings, "Calendar unavailable") {
		t.Errorf("Expected calendar warning on plan, got %v", plan.Warnings)
	}

	res, err := svc.ExecutePlan(ctx, plan)
	if err != nil {
		t.Fatalf("ExecutePlan failed: %v", err)
	}
	if !containsWarning(res.Warnings, "Calendar sync failed") {
		t.Errorf("Expected sync warning, got %v", res.Warnings)
	}

	got, _ := svc.GetTask(task.ID)
	if got.Status != models.TaskStatusScheduled {
		t.Errorf("Expected task scheduled despite sync failure, got %s", got.Status)
	}
	events, err := st.ListEventsByTaskID(task.ID)
	if err != nil || len(events) != 1 {
		t.Fatalf("Expected one stored event, got %v (%v)", events, err)
	}
	if events[0].Synced {
		t.Error("Expected event to stay unsynced")
	}
}

func TestCancelRemovesEvent(t *testing.T) {
	svc, st := newTestService(t, nil)
	ctx := context.Background()

	task := mustAdd(t, svc, models.Task{Title: "Call", EstimatedDuration: 0.5})
	plan, err := svc.GeneratePlan(ctx, testWindow())
	if err != nil {
		t.Fatalf("GeneratePlan failed: %v", err)
	}
	if _, err := svc.ExecutePlan(ctx, plan); err != nil {
		t.Fatalf("ExecutePlan failed: %v", err)
	}

	cancelled, err := svc.CancelTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("CancelTask failed: %v", err)
	}
	if cancelled.Status != models.TaskStatusCancelled || cancelled.ScheduledStart != nil {
		t.Errorf("Unexpected cancelled task: %+v", cancelled)
	}
	if events, _ := st.ListEventsByTaskID(task.ID); len(events) != 0 {
		t.Errorf("Expected event removed, got %+v", events)
	}

	if _, err := svc.MarkInProgress(task.ID); !errors.Is(err, models.ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition starting a cancelled task, got %v", err)
	}
	if _, err := svc.CancelTask(ctx, "nope"); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("Expected ErrTaskNotFound, got %v", err)
	}
}

func TestSplitTaskEventsFollowReplanAndCancel(t *testing.T) {
	svc, st := newTestService(t, nil)
	ctx := context.Background()

	task := mustAdd(t, svc, models.Task{Title: "Write chapter", EstimatedDuration: 4, CanSplit: true})
	plan, err := svc.GeneratePlan(ctx, testWindow())
	if err != nil {
		t.Fatalf("GeneratePlan failed: %v", err)
	}
	if len(plan.ScheduledTasks) != 2 {
		t.Fatalf("Expected 2 sessions, got %d (%v)", len(plan.ScheduledTasks), plan.Warnings)
	}
	if _, err := svc.ExecutePlan(ctx, plan); err != nil {
		t.Fatalf("ExecutePlan failed: %v", err)
	}
	first, _ := st.ListEventsByTaskID(task.ID)
	if len(first) != 2 {
		t.Fatalf("Expected 2 events after execute, got %d", len(first))
	}

	for round := 1; round <= 2; round++ {
		_, exec, err := svc.TriggerReplan(ctx, "running behind", true)
		if err != nil {
			t.Fatalf("TriggerReplan round %d failed: %v", round, err)
		}
		if exec == nil || len(exec.Events) != 2 {
			t.Fatalf("Round %d: expected 2 events written, got %+v", round, exec)
		}
		events, _ := st.ListEventsByTaskID(task.ID)
		if len(events) != 2 {
			t.Fatalf("Round %d: expected 2 events for the task, got %d", round, len(events))
		}
		for _, ev := range events {
			if ev.ID != first[0].ID && ev.ID != first[1].ID {
				t.Errorf("Round %d: expected existing events reused, got new event %s", round, ev.ID)
			}
		}
	}

	all, _ := st.ListEvents(monday.AddDate(0, 0, -1), monday.AddDate(0, 1, 0))
	if len(all) != 2 {
		t.Errorf("Expected no stray events in the store, got %d", len(all))
	}

	if _, err := svc.CancelTask(ctx, task.ID); err != nil {
		t.Fatalf("CancelTask failed: %v", err)
	}
	if events, _ := st.ListEventsByTaskID(task.ID); len(events) != 0 {
		t.Errorf("Expected every session event removed, got %d", len(events))
	}
}

func TestExecuteDropsSurplusEvents(t *testing.T) {
	svc, st := newTestService(t, nil)
	ctx := context.Background()

	task := mustAdd(t, svc, models.Task{Title: "Edit", EstimatedDuration: 4, CanSplit: true})
	plan, err := svc.GeneratePlan(ctx, testWindow())
	if err != nil {
		t.Fatalf("GeneratePlan failed: %v", err)
	}
	if _, err := svc.ExecutePlan(ctx, plan); err != nil {
		t.Fatalf("ExecutePlan failed: %v", err)
	}

	// Re-executing as a single session leaves one event behind, not two.
	single := *plan
	single.ScheduledTasks = []models.ScheduledTask{plan.ScheduledTasks[0]}
	single.ScheduledTasks[0].SplitSession, single.ScheduledTasks[0].TotalSessions = 0, 0
	if _, err := svc.ExecutePlan(ctx, &single); err != nil {
		t.Fatalf("ExecutePlan failed: %v", err)
	}
	events, _ := st.ListEventsByTaskID(task.ID)
	if len(events) != 1 || !events[0].StartTime.Equal(plan.ScheduledTasks[0].ScheduledStart) {
		t.Errorf("Expected the single remaining session event, got %+v", events)
	}
}

func TestLateWorkCompletesAfterMonitorCycle(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	started := mustAdd(t, svc, models.Task{Title: "Long review", EstimatedDuration: 1})
	idle := mustAdd(t, svc, models.Task{Title: "Forgotten", EstimatedDuration: 1})
	plan, err := svc.GeneratePlan(ctx, testWindow())
	if err != nil {
		t.Fatalf("GeneratePlan failed: %v", err)
	}
	if _, err := svc.ExecutePlan(ctx, plan); err != nil {
		t.Fatalf("ExecutePlan failed: %v", err)
	}

	task, _ := svc.GetTask(started.ID)
	setNow(svc, *task.ScheduledStart)
	if _, err := svc.MarkInProgress(started.ID); err != nil {
		t.Fatalf("MarkInProgress failed: %v", err)
	}

	// The monitor runs on the wall clock, well past this 2025 schedule.
	svc.monitor.RunCycle()

	if got, _ := svc.GetTask(started.ID); got.Status != models.TaskStatusInProgress {
		t.Errorf("Expected in-progress task untouched by the monitor, got %s", got.Status)
	}
	if got, _ := svc.GetTask(idle.ID); got.Status != models.TaskStatusOverdue {
		t.Errorf("Expected unstarted task overdue, got %s", got.Status)
	}

	setNow(svc, task.ScheduledEnd.Add(time.Hour))
	res, err := svc.MarkCompleted(ctx, started.ID)
	if err != nil {
		t.Fatalf("MarkCompleted failed: %v", err)
	}
	if !res.Learned || res.Deviation == nil {
		t.Errorf("Expected learning and deviation analysis, got %+v", res)
	}
	if adh := svc.GetProfile().ScheduleAdherence; adh.Late != 1 || adh.AverageDelayHours != 1 {
		t.Errorf("Expected one late completion of 1h, got %+v", adh)
	}

	if _, err := svc.MarkCompleted(ctx, idle.ID); err != nil {
		t.Errorf("Expected overdue task to be completable, got %v", err)
	}
}

func TestRefinePlan(t *testing.T) {
	svc, st := newTestService(t, nil)
	ctx := context.Background()

	if _, err := svc.RefinePlan(ctx, "later please", nil); !errors.Is(err, ErrNoPlan) {
		t.Errorf("Expected ErrNoPlan, got %v", err)
	}

	mustAdd(t, svc, models.Task{Title: "Draft", EstimatedDuration: 1})
	if _, err := svc.GeneratePlan(ctx, testWindow()); err != nil {
		t.Fatalf("GeneratePlan failed: %v", err)
	}
	if _, err := svc.RefinePlan(ctx, "  ", nil); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("Expected ErrInvalidRequest for blank feedback, got %v", err)
	}

	refined, err := svc.RefinePlan(ctx, "I prefer shorter sessions", nil)
	if err != nil {
		t.Fatalf("RefinePlan failed: %v", err)
	}
	if !strings.HasPrefix(refined.Reasoning, "Refined with feedback") {
		t.Errorf("Unexpected reasoning: %q", refined.Reasoning)
	}

	refinements, err := st.ListRefinements("tester", "", 10)
	if err != nil || len(refinements) != 1 {
		t.Fatalf("Expected 1 refinement, got %d (%v)", len(refinements), err)
	}
	if p := svc.GetProfile(); p.TotalFeedbackReceived != 1 {
		t.Errorf("Expected feedback counted, got %d", p.TotalFeedbackReceived)
	}
}

func TestTriggerReplanResetsScheduledTasks(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	task := mustAdd(t, svc, models.Task{Title: "Plan sprint", EstimatedDuration: 1})
	plan, err := svc.GeneratePlan(ctx, testWindow())
	if err != nil {
		t.Fatalf("GeneratePlan failed: %v", err)
	}
	if _, err := svc.ExecutePlan(ctx, plan); err != nil {
		t.Fatalf("ExecutePlan failed: %v", err)
	}

	res, exec, err := svc.TriggerReplan(ctx, "", false)
	if err != nil {
		t.Fatalf("TriggerReplan failed: %v", err)
	}
	if exec != nil {
		t.Error("Expected no execution without execute flag")
	}
	if res.Reason != "Schedule deviation detected" {
		t.Errorf("Unexpected default reason: %q", res.Reason)
	}
	if len(res.Reset) != 1 || res.Reset[0] != task.ID {
		t.Errorf("Expected %s reset, got %v", task.ID, res.Reset)
	}
	if res.Plan == nil || len(res.Plan.ScheduledTasks) != 1 {
		t.Errorf("Expected a new placement, got %+v", res.Plan)
	}
	if got, _ := svc.GetTask(task.ID); got.Status != models.TaskStatusPending {
		t.Errorf("Expected pending after replan, got %s", got.Status)
	}
}

func TestWindowValidation(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.FreeSlots(ctx, monday.Add(2*time.Hour), monday, 0)
	if !errors.Is(err, ErrInvalidWindow) {
		t.Errorf("Expected ErrInvalidWindow, got %v", err)
	}

	free, err := svc.FreeSlots(ctx, monday, monday.Add(4*time.Hour), 30*time.Minute)
	if err != nil {
		t.Fatalf("FreeSlots failed: %v", err)
	}
	if len(free) != 1 || free[0].Duration() != 4*time.Hour {
		t.Errorf("Expected one 4h gap on an empty calendar, got %v", free)
	}
}

func containsWarning(warnings []string, substr string) bool {
	for _, w := range warnings {
		if strings.Contains(w, substr) {
			return true
		}
	}
	return false
}
