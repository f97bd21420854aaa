package planner

import (
	"context"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/fentz26/cadence/internal/models"
	"github.com/rs/zerolog"
)

// monday is 2025-03-03, a Monday.
var monday = time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)

func testProfile() *models.UserProfile {
	p := models.DefaultProfile("u1")
	p.Timezone = "UTC"
	return p
}

func testRequest(tasks ...models.Task) Request {
	return Request{
		Tasks:       tasks,
		Profile:     testProfile(),
		WindowStart: monday,
		WindowEnd:   monday.AddDate(0, 0, 5),
	}
}

func findSession(t *testing.T, plan *models.Plan, id string) models.ScheduledTask {
	t.Helper()
	for _, st := range plan.ScheduledTasks {
		if st.TaskID == id {
			return st
		}
	}
	t.Fatalf("Task %s not scheduled; warnings: %v", id, plan.Warnings)
	return models.ScheduledTask{}
}

func hasWarning(plan *models.Plan, substr string) bool {
	for _, w := range plan.Warnings {
		if strings.Contains(w, substr) {
			return true
		}
	}
	return false
}

func TestGenerateAvoidsBusyTimeAndBreaks(t *testing.T) {
	req := testRequest(
		models.Task{ID: "a", Title: "Design doc", Priority: models.PriorityHigh, EstimatedDuration: 2, RequiresDeepFocus: true},
		models.Task{ID: "b", Title: "Email", Priority: models.PriorityMedium, EstimatedDuration: 1},
	)
	req.Busy = []models.CalendarEvent{{Title: "Standup", StartTime: monday, EndTime: monday.Add(30 * time.Minute)}}

	plan, err := NewLocal(nil, 0, zerolog.Nop()).Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	// Standup plus the 15 minute buffer pushes the deep work to 09:45.
	a := findSession(t, plan, "a")
	if !a.ScheduledStart.Equal(monday.Add(45*time.Minute)) || !a.ScheduledEnd.Equal(monday.Add(165*time.Minute)) {
		t.Errorf("Unexpected slot for a: %s - %s", a.ScheduledStart, a.ScheduledEnd)
	}
	// The email prefers the afternoon and lands after the lunch break.
	b := findSession(t, plan, "b")
	if want := time.Date(2025, 3, 3, 13, 0, 0, 0, time.UTC); !b.ScheduledStart.Equal(want) {
		t.Errorf("Expected b at %s, got %s", want, b.ScheduledStart)
	}
	if len(plan.Warnings) != 0 {
		t.Errorf("Unexpected warnings: %v", plan.Warnings)
	}
	if plan.WindowStart == nil || !plan.WindowStart.Equal(monday) {
		t.Errorf("Window not recorded: %v", plan.WindowStart)
	}
}

func TestGenerateRespectsDependencies(t *testing.T) {
	req := testRequest(
		models.Task{ID: "deploy", Title: "Deploy", Priority: models.PriorityUrgent, EstimatedDuration: 1, Dependencies: []string{"build"}},
		models.Task{ID: "build", Title: "Build", Priority: models.PriorityLow, EstimatedDuration: 1},
	)
	plan, _ := NewLocal(nil, 0, zerolog.Nop()).Generate(context.Background(), req)

	build := findSession(t, plan, "build")
	deploy := findSession(t, plan, "deploy")
	if deploy.ScheduledStart.Before(build.ScheduledEnd) {
		t.Errorf("Deploy at %s starts before build ends at %s", deploy.ScheduledStart, build.ScheduledEnd)
	}
}

func TestGenerateCircularDependencies(t *testing.T) {
	req := testRequest(
		models.Task{ID: "a", Title: "A", Priority: models.PriorityMedium, EstimatedDuration: 1, Dependencies: []string{"b"}},
		models.Task{ID: "b", Title: "B", Priority: models.PriorityMedium, EstimatedDuration: 1, Dependencies: []string{"a"}},
	)
	plan, _ := NewLocal(nil, 0, zerolog.Nop()).Generate(context.Background(), req)

	findSession(t, plan, "a")
	findSession(t, plan, "b")
	if !hasWarning(plan, "Circular dependency") {
		t.Errorf("Expected circular dependency warning, got %v", plan.Warnings)
	}
}

func TestGenerateWarnsOnInfeasibleAndDeadline(t *testing.T) {
	deadline := monday.Add(time.Hour)
	req := testRequest(
		models.Task{ID: "huge", Title: "Marathon", Priority: models.PriorityMedium, EstimatedDuration: 9},
		models.Task{ID: "rush", Title: "Rush", Priority: models.PriorityHigh, EstimatedDuration: 2, Deadline: &deadline},
		models.Task{ID: "next", Title: "Follow up", Priority: models.PriorityLow, EstimatedDuration: 1, Dependencies: []string{"huge"}},
	)
	plan, _ := NewLocal(nil, 0, zerolog.Nop()).Generate(context.Background(), req)

	for _, st := range plan.ScheduledTasks {
		if st.TaskID == "huge" || st.TaskID == "next" {
			t.Errorf("Task %s should not be scheduled", st.TaskID)
		}
	}
	findSession(t, plan, "rush")
	for _, want := range []string{`No free slot for "Marathon"`, `"Rush" is scheduled to finish after its deadline`, "dependency huge could not be scheduled"} {
		if !hasWarning(plan, want) {
			t.Errorf("Missing warning %q in %v", want, plan.Warnings)
		}
	}
	if !strings.HasPrefix(plan.Reasoning, "Placed 1 of 3 tasks") {
		t.Errorf("Unexpected reasoning: %s", plan.Reasoning)
	}
}

func TestPreferredTimeYieldsToDeadline(t *testing.T) {
	tight := monday.Add(2 * time.Hour)
	loose := monday.Add(8 * time.Hour)
	tests := []struct {
		name      string
		deadline  *time.Time
		wantStart time.Time
	}{
		{"deadline before preferred time", &tight, monday},
		{"deadline leaves room", &loose, monday.Add(4 * time.Hour)},
		{"no deadline", nil, monday.Add(4 * time.Hour)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testRequest(models.Task{ID: "x", Title: "Call back", Priority: models.PriorityMedium, EstimatedDuration: 1, PreferredTimeOfDay: models.Afternoon, Deadline: tt.deadline})
			plan, _ := NewLocal(nil, 0, zerolog.Nop()).Generate(context.Background(), req)

			st := findSession(t, plan, "x")
			if !st.ScheduledStart.Equal(tt.wantStart) {
				t.Errorf("Expected start %s, got %s", tt.wantStart.Format("15:04"), st.ScheduledStart.Format("15:04"))
			}
			if hasWarning(plan, "after its deadline") {
				t.Errorf("Unexpected deadline warning: %v", plan.Warnings)
			}
		})
	}
}

func TestGenerateSplitsLongTasks(t *testing.T) {
	req := testRequest(models.Task{ID: "w", Title: "Write", Priority: models.PriorityMedium, EstimatedDuration: 5, CanSplit: true})
	plan, _ := NewLocal(nil, 0, zerolog.Nop()).Generate(context.Background(), req)

	if len(plan.ScheduledTasks) != 3 {
		t.Fatalf("Expected 3 sessions, got %d: %v", len(plan.ScheduledTasks), plan.Warnings)
	}
	var total float64
	for i, st := range plan.ScheduledTasks {
		if st.SplitSession != i+1 || st.TotalSessions != 3 {
			t.Errorf("Session %d numbered %d/%d", i, st.SplitSession, st.TotalSessions)
		}
		if i > 0 && st.ScheduledStart.Before(plan.ScheduledTasks[i-1].ScheduledEnd) {
			t.Errorf("Sessions overlap: %+v", plan.ScheduledTasks)
		}
		total += st.DurationHours
	}
	if total < 4.95 || total > 5.05 {
		t.Errorf("Expected 5h in total, got %.2f", total)
	}
}

func TestSessionLengths(t *testing.T) {
	two := 2.0
	tests := []struct {
		name      string
		task      models.Task
		hours     float64
		preferred float64
		want      []float64
	}{
		{"not splittable", models.Task{}, 5, 2, []float64{5}},
		{"short enough", models.Task{CanSplit: true}, 1.5, 2, []float64{1.5}},
		{"equal sessions", models.Task{CanSplit: true}, 6, 2, []float64{2, 2, 2}},
		{"min session caps count", models.Task{CanSplit: true, MinSessionDuration: &two}, 5, 2, []float64{2.5, 2.5}},
		{"no preference", models.Task{CanSplit: true}, 5, 0, []float64{5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sessionLengths(tt.task, tt.hours, tt.preferred); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestOrderTasks(t *testing.T) {
	soon := monday.Add(24 * time.Hour)
	later := monday.Add(48 * time.Hour)
	tasks := []models.Task{
		{ID: "low", Priority: models.PriorityLow},
		{ID: "high-later", Priority: models.PriorityHigh, Deadline: &later},
		{ID: "high-none", Priority: models.PriorityHigh},
		{ID: "high-soon", Priority: models.PriorityHigh, Deadline: &soon},
		{ID: "was-overdue", Priority: models.PriorityLow},
	}
	got := orderTasks(tasks, map[string]bool{"was-overdue": true})

	var ids []string
	for _, t := range got {
		ids = append(ids, t.ID)
	}
	want := []string{"was-overdue", "high-soon", "high-later", "high-none", "low"}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("Expected %v, got %v", want, ids)
	}
}

func TestRefineAppliesFeedback(t *testing.T) {
	ctx := context.Background()
	p := NewLocal(nil, 0, zerolog.Nop())

	plan, err := p.Refine(ctx, "more buffer please", models.EmptyPlan("old"))
	if err != nil {
		t.Fatalf("Refine failed: %v", err)
	}
	if !hasWarning(plan, "No planning session to refine") {
		t.Errorf("Expected unchanged-plan warning, got %v", plan.Warnings)
	}

	req := testRequest(models.Task{ID: "a", Title: "A", Priority: models.PriorityMedium, EstimatedDuration: 1})
	first, _ := p.Generate(ctx, req)
	refined, err := p.Refine(ctx, "I want more buffer between tasks", first)
	if err != nil {
		t.Fatalf("Refine failed: %v", err)
	}
	if !strings.HasPrefix(refined.Reasoning, "Refined with feedback") {
		t.Errorf("Unexpected reasoning: %s", refined.Reasoning)
	}
	if got := p.last.Profile.MinBufferBetweenTasks; got != 0.5 {
		t.Errorf("Expected refined buffer 0.5, got %v", got)
	}
	if req.Profile.MinBufferBetweenTasks != 0.25 {
		t.Errorf("Caller's profile was modified: %v", req.Profile.MinBufferBetweenTasks)
	}
}

func TestRefineKeepsLearningDisabled(t *testing.T) {
	ctx := context.Background()
	p := NewLocal(nil, 0, zerolog.Nop())

	req := testRequest(models.Task{ID: "a", Title: "A", Priority: models.PriorityMedium, EstimatedDuration: 1})
	req.Profile.LearningEnabled = false
	first, _ := p.Generate(ctx, req)
	if _, err := p.Refine(ctx, "I want more buffer between tasks", first); err != nil {
		t.Fatalf("Refine failed: %v", err)
	}
	if got := p.last.Profile; got.MinBufferBetweenTasks != 0.25 || got.LearningEnabled {
		t.Errorf("Expected feedback ignored with learning off, got buffer %v enabled %t", got.MinBufferBetweenTasks, got.LearningEnabled)
	}
}

func TestAnalyzeDeviationLocal(t *testing.T) {
	start := monday
	end := monday.Add(3 * time.Hour)
	task := models.Task{ID: "a", Title: "A", EstimatedDuration: 2, RequiresDeepFocus: true, ActualStart: &start, ActualEnd: &end}

	a, err := NewLocal(nil, 0, zerolog.Nop()).AnalyzeDeviation(context.Background(), DeviationRequest{
		Task:         task,
		ScheduledEnd: monday.Add(2 * time.Hour),
		ActualEnd:    end,
		Profile:      testProfile(),
	})
	if err != nil {
		t.Fatalf("AnalyzeDeviation failed: %v", err)
	}
	if a.DeviationHours != 1 || !strings.Contains(a.DeviationReason, "after the scheduled end") {
		t.Errorf("Unexpected analysis: %+v", a)
	}
	if a.RecommendedAdjustments["estimate_multiplier"] != 1.5 {
		t.Errorf("Expected multiplier 1.5, got %v", a.RecommendedAdjustments)
	}
}
