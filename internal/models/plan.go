package models

import "time"

// ScheduledTask is one placement proposed by a plan.
type ScheduledTask struct {
	TaskID         string    `json:"task_id"`
	ScheduledStart time.Time `json:"scheduled_start"`
	ScheduledEnd   time.Time `json:"scheduled_end"`
	DurationHours  float64   `json:"duration_hours"`
	Rationale      string    `json:"rationale,omitempty"`
	SplitSession   int       `json:"split_session,omitempty"`
	TotalSessions  int       `json:"total_sessions,omitempty"`
}

// Plan is the structured output of the planning collaborator.
type Plan struct {
	Reasoning      string          `json:"reasoning"`
	Warnings       []string        `json:"warnings"`
	Suggestions    []string        `json:"suggestions"`
	ScheduledTasks []ScheduledTask `json:"scheduled_tasks"`
	WindowStart    *time.Time      `json:"window_start,omitempty"`
	WindowEnd      *time.Time      `json:"window_end,omitempty"`
	GeneratedAt    time.Time       `json:"generated_at"`
}

// EmptyPlan returns a plan that schedules nothing.
func EmptyPlan(reasoning string, warnings ...string) *Plan {
	return &Plan{
		Reasoning:      reasoning,
		Warnings:       append([]string{}, warnings...),
		Suggestions:    []string{},
		ScheduledTasks: []ScheduledTask{},
		GeneratedAt:    time.Now().UTC(),
	}
}

// ExecutionResult reports what ExecutePlan did.
type ExecutionResult struct {
	Events    []CalendarEvent `json:"events"`
	Scheduled []string        `json:"scheduled_task_ids"`
	Warnings  []string        `json:"warnings"`
}

// DeviationAnalysis explains a completion that missed its scheduled end.
type DeviationAnalysis struct {
	TaskID                 string         `json:"task_id"`
	DeviationHours         float64        `json:"deviation_hours"`
	DeviationReason        string         `json:"deviation_reason"`
	PatternInsights        []string       `json:"pattern_insights"`
	RecommendedAdjustments map[string]any `json:"recommended_adjustments,omitempty"`
	FuturePlanningNotes    string         `json:"future_planning_notes,omitempty"`
}

// PlanRefinement records one round of plan feedback.
type PlanRefinement struct {
	ID                string    `json:"id"`
	UserID            string    `json:"user_id"`
	OriginalPlan      *Plan     `json:"original_plan,omitempty"`
	RefinementRequest string    `json:"refinement_request"`
	RefinedPlan       *Plan     `json:"refined_plan,omitempty"`
	FeedbackCategory  string    `json:"feedback_category,omitempty"`
	PlanDate          time.Time `json:"plan_date"`
	CreatedAt         time.Time `json:"created_at"`
}

// RefinementPattern counts refinements in one category.
type RefinementPattern struct {
	Category   string  `json:"category"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// RefinementSummary aggregates a user's refinement history.
type RefinementSummary struct {
	TotalRefinements int                 `json:"total_refinements"`
	Patterns         []RefinementPattern `json:"patterns"`
	RecentRequests   []string            `json:"recent_requests"`
}
