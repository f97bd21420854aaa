package models

import (
	"fmt"
	"time"
)

// MaxPeakHours bounds ProductivityPattern.PeakHours.
const MaxPeakHours = 4

// Clock is a time of day with minute precision, encoded as "HH:MM".
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock parses "HH:MM".
func ParseClock(s string) (Clock, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return Clock{}, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return Clock{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// MustClock is ParseClock for constants.
func MustClock(s string) Clock {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Clock) String() string { return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute) }

// Minutes returns minutes since midnight.
func (c Clock) Minutes() int { return c.Hour*60 + c.Minute }

// On returns the clock time on the calendar day of t, in t's location.
func (c Clock) On(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, c.Hour, c.Minute, 0, 0, t.Location())
}

func (c Clock) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Clock) UnmarshalText(b []byte) error {
	parsed, err := ParseClock(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// WorkingHours is the daily window tasks may be scheduled in.
type WorkingHours struct {
	Start         Clock   `json:"start" yaml:"start"`
	End           Clock   `json:"end" yaml:"end"`
	BreakStart    *Clock  `json:"break_start,omitempty" yaml:"break_start,omitempty"`
	BreakDuration float64 `json:"break_duration" yaml:"break_duration"` // hours
}

// Bounds returns the working window on the day of t.
func (w WorkingHours) Bounds(t time.Time) (time.Time, time.Time) {
	return w.Start.On(t), w.End.On(t)
}

// Validate checks the window is non-empty.
func (w WorkingHours) Validate() error {
	if w.End.Minutes() <= w.Start.Minutes() {
		return fmt.Errorf("working hours end %s must be after start %s", w.End, w.Start)
	}
	if w.BreakDuration < 0 {
		return fmt.Errorf("break duration must be >= 0")
	}
	return nil
}

// ProductivityPattern holds learned productivity traits.
type ProductivityPattern struct {
	PeakHours             []int   `json:"peak_hours"`
	LowEnergyHours        []int   `json:"low_energy_hours"`
	PreferredTaskDuration float64 `json:"preferred_task_duration"` // hours
	AverageFocusSpan      float64 `json:"average_focus_span"`      // hours
}

// ScheduleAdherence tracks how completions relate to the schedule.
type ScheduleAdherence struct {
	TotalScheduled    int     `json:"total_scheduled"`
	OnTime            int     `json:"on_time"`
	Early             int     `json:"early"`
	Late              int     `json:"late"`
	AverageDelayHours float64 `json:"average_delay_hours"`
	AverageEarlyHours float64 `json:"average_early_hours"`
}

// AdherenceRate is the on-time percentage, 0 when nothing was tracked.
func (a ScheduleAdherence) AdherenceRate() float64 {
	if a.TotalScheduled == 0 {
		return 0
	}
	return float64(a.OnTime) / float64(a.TotalScheduled) * 100
}

// UserProfile holds explicit preferences and learned behavior.
type UserProfile struct {
	UserID                 string              `json:"user_id"`
	Timezone               string              `json:"timezone"`
	WorkingHours           WorkingHours        `json:"working_hours"`
	PreferMorningDeepWork  bool                `json:"prefer_morning_deep_work"`
	MaxDailyWorkHours      float64             `json:"max_daily_work_hours"`
	MinBufferBetweenTasks  float64             `json:"min_buffer_between_tasks"` // hours
	AllowWeekendScheduling bool                `json:"allow_weekend_scheduling"`
	ProductivityPattern    ProductivityPattern `json:"productivity_pattern"`
	ScheduleAdherence      ScheduleAdherence   `json:"schedule_adherence"`
	LearningEnabled        bool                `json:"learning_enabled"`
	TotalPlansGenerated    int                 `json:"total_plans_generated"`
	TotalFeedbackReceived  int                 `json:"total_feedback_received"`
	LastPlanDate           *time.Time          `json:"last_plan_date,omitempty"`
	CreatedAt              time.Time           `json:"created_at"`
	UpdatedAt              time.Time           `json:"updated_at"`
}

// DefaultProfile returns a profile with the stock preferences.
func DefaultProfile(userID string) *UserProfile {
	now := time.Now().UTC()
	breakStart := MustClock("12:00")
	return &UserProfile{
		UserID:   userID,
		Timezone: "UTC",
		WorkingHours: WorkingHours{
			Start:         MustClock("09:00"),
			End:           MustClock("17:00"),
			BreakStart:    &breakStart,
			BreakDuration: 1.0,
		},
		PreferMorningDeepWork: true,
		MaxDailyWorkHours:     8.0,
		MinBufferBetweenTasks: 0.25,
		ProductivityPattern: ProductivityPattern{
			PeakHours:             []int{},
			LowEnergyHours:        []int{},
			PreferredTaskDuration: 2.0,
			AverageFocusSpan:      1.5,
		},
		LearningEnabled: true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Location resolves the profile timezone, falling back to UTC.
func (p *UserProfile) Location() *time.Location {
	if p.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Clone returns a deep copy.
func (p *UserProfile) Clone() *UserProfile {
	c := *p
	c.ProductivityPattern.PeakHours = cloneInts(p.ProductivityPattern.PeakHours)
	c.ProductivityPattern.LowEnergyHours = cloneInts(p.ProductivityPattern.LowEnergyHours)
	if p.WorkingHours.BreakStart != nil {
		b := *p.WorkingHours.BreakStart
		c.WorkingHours.BreakStart = &b
	}
	if p.LastPlanDate != nil {
		d := *p.LastPlanDate
		c.LastPlanDate = &d
	}
	return &c
}

func cloneInts(s []int) []int {
	if s == nil {
		return nil
	}
	return append([]int{}, s...)
}

// CompletionSample is one observed estimate/actual pair.
type CompletionSample struct {
	ID                string    `json:"id"`
	UserID            string    `json:"user_id"`
	TaskID            string    `json:"task_id"`
	Estimated         float64   `json:"estimated"`
	Actual            float64   `json:"actual"`
	Priority          Priority  `json:"priority"`
	RequiresDeepFocus bool      `json:"requires_deep_focus"`
	Tags              []string  `json:"tags"`
	RecordedAt        time.Time `json:"recorded_at"`
}

// Insights is the read-only learning report.
type Insights struct {
	ProductivitySummary struct {
		PeakProductiveHours    []int   `json:"peak_productive_hours"`
		AverageFocusDuration   float64 `json:"average_focus_duration"`
		PreferredSessionLength float64 `json:"preferred_session_length"`
	} `json:"productivity_summary"`
	ScheduleAdherence struct {
		AdherenceRate        float64 `json:"adherence_rate"`
		OnTimeCompletionRate float64 `json:"on_time_completion_rate"`
		TendsToRunLate       bool    `json:"tends_to_run_late"`
		TendsToFinishEarly   bool    `json:"tends_to_finish_early"`
	} `json:"schedule_adherence"`
	Preferences struct {
		PrefersMorningDeepWork bool    `json:"prefers_morning_deep_work"`
		MaxDailyHours          float64 `json:"max_daily_hours"`
		BufferBetweenTasks     float64 `json:"buffer_between_tasks"`
		WeekendWorkEnabled     bool    `json:"weekend_work_enabled"`
	} `json:"preferences"`
	LearningStats struct {
		TotalPlansGenerated   int `json:"total_plans_generated"`
		TotalFeedbackReceived int `json:"total_feedback_received"`
		TasksTracked          int `json:"tasks_tracked"`
	} `json:"learning_stats"`
	Recommendations []string `json:"recommendations"`
}
