// Package models defines the core domain types for Cadence.
package models

import (
	"errors"
	"fmt"
	"time"
)

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusScheduled  TaskStatus = "scheduled"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusCancelled  TaskStatus = "cancelled"
	TaskStatusOverdue    TaskStatus = "overdue"
)

// Priority is the importance of a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Rank orders priorities, higher is more important.
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 3
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 1
	default:
		return 0
	}
}

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Time-of-day buckets used for preferences and suggestions.
const (
	Morning   = "morning"
	Afternoon = "afternoon"
	Evening   = "evening"
)

// TimeOfDayForHour buckets an hour of day (possibly fractional).
func TimeOfDayForHour(hour float64) string {
	switch {
	case hour < 12:
		return Morning
	case hour < 17:
		return Afternoon
	default:
		return Evening
	}
}

// ErrInvalidTransition is returned when a status change is not allowed.
var ErrInvalidTransition = errors.New("invalid status transition")

// transitions is the task lifecycle graph.
var transitions = map[TaskStatus][]TaskStatus{
	TaskStatusPending:    {TaskStatusScheduled, TaskStatusCancelled},
	TaskStatusScheduled:  {TaskStatusInProgress, TaskStatusCompleted, TaskStatusOverdue, TaskStatusPending, TaskStatusCancelled},
	TaskStatusInProgress: {TaskStatusCompleted, TaskStatusOverdue},
	TaskStatusOverdue:    {TaskStatusPending, TaskStatusCompleted, TaskStatusCancelled},
}

// CanTransition reports whether a task may move from one status to another.
func CanTransition(from, to TaskStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions leave the status.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusCancelled
}

// Task represents a unit of work to be placed on the calendar.
type Task struct {
	ID                 string     `json:"id"`
	Title              string     `json:"title"`
	Description        string     `json:"description,omitempty"`
	Priority           Priority   `json:"priority"`
	EstimatedDuration  float64    `json:"estimated_duration"` // hours
	Deadline           *time.Time `json:"deadline,omitempty"`
	PreferredTimeOfDay string     `json:"preferred_time_of_day,omitempty"`
	RequiresDeepFocus  bool       `json:"requires_deep_focus"`
	CanSplit           bool       `json:"can_split"`
	MinSessionDuration *float64   `json:"min_session_duration,omitempty"` // hours
	Status             TaskStatus `json:"status"`
	ScheduledStart     *time.Time `json:"scheduled_start,omitempty"`
	ScheduledEnd       *time.Time `json:"scheduled_end,omitempty"`
	ActualStart        *time.Time `json:"actual_start,omitempty"`
	ActualEnd          *time.Time `json:"actual_end,omitempty"`
	ActualDuration     *float64   `json:"actual_duration,omitempty"` // hours
	Tags               []string   `json:"tags,omitempty"`
	Dependencies       []string   `json:"dependencies,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// TransitionTo moves the task to a new status if the lifecycle allows it.
func (t *Task) TransitionTo(status TaskStatus) error {
	if !CanTransition(t.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, status)
	}
	t.Status = status
	return nil
}

// ClearSchedule drops the scheduled window.
func (t *Task) ClearSchedule() {
	t.ScheduledStart = nil
	t.ScheduledEnd = nil
}

// Validate checks the field-level invariants of a task.
func (t *Task) Validate() error {
	if t.Title == "" {
		return errors.New("title is required")
	}
	if t.EstimatedDuration <= 0 {
		return errors.New("estimated_duration must be positive")
	}
	if t.Priority != "" && !t.Priority.Valid() {
		return fmt.Errorf("unknown priority %q", t.Priority)
	}
	switch t.PreferredTimeOfDay {
	case "", Morning, Afternoon, Evening:
	default:
		return fmt.Errorf("unknown time of day %q", t.PreferredTimeOfDay)
	}
	if t.MinSessionDuration != nil && *t.MinSessionDuration <= 0 {
		return errors.New("min_session_duration must be positive")
	}
	if t.ScheduledStart != nil && t.ScheduledEnd != nil && !t.ScheduledEnd.After(*t.ScheduledStart) {
		return errors.New("scheduled_end must be after scheduled_start")
	}
	if t.ActualStart != nil && t.ActualEnd != nil && t.ActualEnd.Before(*t.ActualStart) {
		return errors.New("actual_end must not be before actual_start")
	}
	return nil
}

// HasTag reports whether any of the given tags is on the task.
func (t *Task) HasTag(tags ...string) bool {
	for _, want := range tags {
		for _, have := range t.Tags {
			if have == want {
				return true
			}
		}
	}
	return false
}

// Hours converts a duration to fractional hours.
func Hours(d time.Duration) float64 {
	return d.Hours()
}

// Duration converts fractional hours to a duration.
func Duration(hours float64) time.Duration {
	return time.Duration(hours * float64(time.Hour))
}

// EventType classifies a calendar event.
type EventType string

const (
	EventTypeMeeting       EventType = "meeting"
	EventTypeScheduledTask EventType = "scheduled_task"
	EventTypePersonal      EventType = "personal"
	EventTypeBlocked       EventType = "blocked"
	EventTypeFree          EventType = "free"
)

// CalendarEvent is a busy interval on the user's calendar.
type CalendarEvent struct {
	ID          string     `json:"id"`
	ExternalID  string     `json:"external_id,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     time.Time  `json:"end_time"`
	Type        EventType  `json:"type"`
	Source      string     `json:"source"`
	Synced      bool       `json:"synced"`
	TaskID      string     `json:"task_id,omitempty"`
	LastSynced  *time.Time `json:"last_synced,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Overlaps reports inclusive overlap with [start, end].
func (e *CalendarEvent) Overlaps(start, end time.Time) bool {
	return !e.EndTime.Before(start) && !e.StartTime.After(end)
}

// PDREntry represents a Process Decision Record for audit.
type PDREntry struct {
	ID         string    `json:"id"`
	Action     string    `json:"action"`
	InputsHash string    `json:"inputs_hash"`
	Outcome    string    `json:"outcome"`
	TaskID     string    `json:"task_id,omitempty"`
	Details    string    `json:"details,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
