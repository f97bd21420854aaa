package planner

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

type promptTask struct {
	ID                 string   `json:"id"`
	Title              string   `json:"title"`
	Description        string   `json:"description,omitempty"`
	Priority           string   `json:"priority"`
	EstimatedDuration  float64  `json:"estimated_duration"`
	Deadline           string   `json:"deadline,omitempty"`
	PreferredTimeOfDay string   `json:"preferred_time_of_day,omitempty"`
	RequiresDeepFocus  bool     `json:"requires_deep_focus"`
	CanSplit           bool     `json:"can_split"`
	MinSessionDuration *float64 `json:"min_session_duration,omitempty"`
	Dependencies       []string `json:"dependencies,omitempty"`
	Tags               []string `json:"tags,omitempty"`
	Favored            bool     `json:"favored,omitempty"`
}

type promptEvent struct {
	Title string `json:"title"`
	Start string `json:"start_time"`
	End   string `json:"end_time"`
	Type  string `json:"type"`
}

const planFormat = `{
  "reasoning": "overall strategy",
  "warnings": ["deadline conflicts or other problems"],
  "suggestions": ["estimate or preference changes worth making"],
  "scheduled_tasks": [
    {
      "task_id": "id of the task",
      "scheduled_start": "2025-03-03T09:00:00Z",
      "scheduled_end": "2025-03-03T11:00:00Z",
      "duration_hours": 2.0,
      "rationale": "why this slot",
      "split_session": 1,
      "total_sessions": 1
    }
  ]
}`

func planningPrompt(req Request) string {
	favored := make(map[string]bool, len(req.Favored))
	for _, id := range req.Favored {
		favored[id] = true
	}

	tasks := make([]promptTask, 0, len(req.Tasks))
	for _, t := range req.Tasks {
		pt := promptTask{
			ID:                 t.ID,
			Title:              t.Title,
			Description:        t.Description,
			Priority:           string(t.Priority),
			EstimatedDuration:  t.EstimatedDuration,
			PreferredTimeOfDay: t.PreferredTimeOfDay,
			RequiresDeepFocus:  t.RequiresDeepFocus,
			CanSplit:           t.CanSplit,
			MinSessionDuration: t.MinSessionDuration,
			Dependencies:       t.Dependencies,
			Tags:               t.Tags,
			Favored:            favored[t.ID],
		}
		if t.Deadline != nil {
			pt.Deadline = t.Deadline.Format(time.RFC3339)
		}
		tasks = append(tasks, pt)
	}

	events := make([]promptEvent, 0, len(req.Busy))
	for _, e := range req.Busy {
		events = append(events, promptEvent{
			Title: e.Title,
			Start: e.StartTime.Format(time.RFC3339),
			End:   e.EndTime.Format(time.RFC3339),
			Type:  string(e.Type),
		})
	}

	var b strings.Builder
	b.WriteString("Schedule the tasks below into the user's free working time.\n\n")
	fmt.Fprintf(&b, "# WINDOW\n%s to %s\n\n", req.WindowStart.Format(time.RFC3339), req.WindowEnd.Format(time.RFC3339))
	writeJSONSection(&b, "TASKS", tasks)
	writeJSONSection(&b, "BUSY CALENDAR", events)
	if req.Profile != nil {
		writeJSONSection(&b, "PROFILE", req.Profile)
	}
	if req.Context != "" {
		fmt.Fprintf(&b, "# CONTEXT\n%s\n\n", req.Context)
	}
	b.WriteString(`# RULES
- Urgent and high priority tasks and tasks with near deadlines go first; favored tasks before all others.
- Never overlap a busy event and stay inside working hours on allowed days.
- Keep min_buffer_between_tasks between consecutive tasks and respect the daily break.
- Put deep focus work in peak hours, or mornings when prefer_morning_deep_work is set.
- Split tasks that can_split when longer than preferred_task_duration; no session shorter than min_session_duration.
- A task starts only after all of its dependencies end.

# OUTPUT
Reply with JSON only, in this shape:
`)
	b.WriteString(planFormat)
	b.WriteString("\n")
	return b.String()
}

func refinePrompt(feedback string) string {
	return fmt.Sprintf("Revise the previous plan using this feedback:\n\n%s\n\nReply with the full revised plan in the same JSON shape.\n", feedback)
}

func deviationPrompt(req DeviationRequest) string {
	dev := req.Hours()
	direction := "late"
	if dev < 0 {
		direction = "early"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "A task finished %.2f hours %s.\n\n", math.Abs(dev), direction)
	fmt.Fprintf(&b, "Task: %s\nEstimated: %.2fh\nPriority: %s\nDeep focus: %t\nTags: %s\n",
		req.Task.Title, req.Task.EstimatedDuration, req.Task.Priority, req.Task.RequiresDeepFocus, strings.Join(req.Task.Tags, ", "))
	fmt.Fprintf(&b, "Scheduled end: %s\nActual end: %s\n", req.ScheduledEnd.Format(time.RFC3339), req.ActualEnd.Format(time.RFC3339))
	if p := req.Profile; p != nil {
		fmt.Fprintf(&b, "Peak hours: %v\nAdherence: %.1f%%\nAverage delay: %.2fh\n",
			p.ProductivityPattern.PeakHours, p.ScheduleAdherence.AdherenceRate(), p.ScheduleAdherence.AverageDelayHours)
	}
	b.WriteString(`
Explain the deviation and what it says about how the user works. Reply with JSON:
{"deviation_reason": "...", "pattern_insights": ["..."], "recommended_adjustments": {}, "future_planning_notes": "..."}
`)
	return b.String()
}

func writeJSONSection(b *strings.Builder, title string, v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		data = []byte("null")
	}
	fmt.Fprintf(b, "# %s\n%s\n\n", title, data)
}
