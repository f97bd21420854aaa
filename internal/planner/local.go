package planner

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fentz26/cadence/internal/learner"
	"github.com/fentz26/cadence/internal/models"
	"github.com/fentz26/cadence/internal/slots"
	"github.com/rs/zerolog"
)

// maxPreferenceAttempts bounds the search for a slot in the preferred
// time of day before falling back to the earliest slot.
const maxPreferenceAttempts = 64

// bucketStartHour is where each time-of-day bucket begins.
var bucketStartHour = map[string]int{
	models.Morning:   0,
	models.Afternoon: 12,
	models.Evening:   17,
}

// Local is a greedy planner: tasks are ordered by favor, priority and
// deadline and each takes the earliest free working slot, preferring its
// time of day.
type Local struct {
	learner     *learner.Learner
	horizonDays int
	log         zerolog.Logger

	mu   sync.Mutex
	last *Request
}

// NewLocal creates a local planner. A nil learner plans with raw estimates.
func NewLocal(l *learner.Learner, horizonDays int, log zerolog.Logger) *Local {
	if l == nil {
		l = learner.New(nil)
	}
	if horizonDays <= 0 {
		horizonDays = slots.DefaultHorizonDays
	}
	return &Local{
		learner:     l,
		horizonDays: horizonDays,
		log:         log.With().Str("component", "planner").Str("planner", "local").Logger(),
	}
}

func (p *Local) Name() string { return "local" }

func (p *Local) Generate(ctx context.Context, req Request) (*models.Plan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.remember(req)
	return p.plan(req), nil
}

// Refine replays the last request with the feedback applied to a copy of its
// profile, so "more buffer" or "shorter" take effect immediately. A profile
// with learning disabled is replayed as is.
func (p *Local) Refine(ctx context.Context, feedback string, previous *models.Plan) (*models.Plan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	last := p.last
	p.mu.Unlock()

	if last == nil {
		plan := models.EmptyPlan("Nothing to refine")
		if previous != nil {
			cp := *previous
			cp.Warnings = append(append([]string{}, previous.Warnings...), "No planning session to refine; plan unchanged")
			plan = &cp
		}
		return plan, nil
	}

	req := *last
	profile := models.DefaultProfile("")
	if req.Profile != nil {
		profile = req.Profile.Clone()
	}
	p.learner.LearnFromFeedback(feedback, profile)
	req.Profile = profile
	req.Context = strings.TrimSpace(req.Context + "\n" + feedback)

	p.remember(req)
	plan := p.plan(req)
	plan.Reasoning = fmt.Sprintf("Refined with feedback %q. %s", feedback, plan.Reasoning)
	return plan, nil
}

func (p *Local) AnalyzeDeviation(ctx context.Context, req DeviationRequest) (*models.DeviationAnalysis, error) {
	dev := req.Hours()
	a := &models.DeviationAnalysis{
		TaskID:                 req.Task.ID,
		DeviationHours:         dev,
		PatternInsights:        []string{},
		RecommendedAdjustments: map[string]any{},
	}

	est := req.Task.EstimatedDuration
	actual := 0.0
	switch {
	case req.Task.ActualDuration != nil:
		actual = *req.Task.ActualDuration
	case req.Task.ActualStart != nil && req.Task.ActualEnd != nil:
		actual = req.Task.ActualEnd.Sub(*req.Task.ActualStart).Hours()
	}

	switch {
	case dev > 0:
		a.DeviationReason = fmt.Sprintf("Finished %.1fh after the scheduled end", dev)
		if est > 0 && actual > est {
			a.PatternInsights = append(a.PatternInsights, fmt.Sprintf("Took %.0f%% longer than the %.1fh estimate", (actual/est-1)*100, est))
			a.RecommendedAdjustments["estimate_multiplier"] = math.Round(actual/est*100) / 100
		}
		if req.Task.RequiresDeepFocus {
			a.PatternInsights = append(a.PatternInsights, "Deep focus work overran its slot")
		}
		a.FuturePlanningNotes = "Allow more time for similar tasks or schedule them earlier"
	case dev < 0:
		a.DeviationReason = fmt.Sprintf("Finished %.1fh before the scheduled end", -dev)
		if est > 0 && actual > 0 && actual < est {
			a.RecommendedAdjustments["estimate_multiplier"] = math.Round(actual/est*100) / 100
		}
		a.FuturePlanningNotes = "Estimates for similar tasks can be shortened"
	default:
		a.DeviationReason = "Finished on schedule"
	}

	if req.Task.ActualStart != nil {
		loc := time.UTC
		if req.Profile != nil {
			loc = req.Profile.Location()
		}
		s := req.Task.ActualStart.In(loc)
		a.PatternInsights = append(a.PatternInsights, fmt.Sprintf("Started in the %s", bucketOf(s)))
	}
	return a, nil
}

func (p *Local) remember(req Request) {
	p.mu.Lock()
	p.last = &req
	p.mu.Unlock()
}

type placement struct {
	sessions []models.ScheduledTask
	warnings []string
	estimate float64
}

func (p *Local) plan(req Request) *models.Plan {
	prof := req.Profile
	if prof == nil {
		prof = models.DefaultProfile("")
	}
	loc := prof.Location()
	windowStart := req.WindowStart.In(loc)
	windowEnd := req.WindowEnd.In(loc)
	buffer := models.Duration(prof.MinBufferBetweenTasks)

	plan := models.EmptyPlan("")
	ws, we := windowStart.UTC(), windowEnd.UTC()
	plan.WindowStart, plan.WindowEnd = &ws, &we

	if len(req.Tasks) == 0 {
		plan.Reasoning = "No pending tasks to schedule"
		return plan
	}

	busy := slots.DailyBreaks(windowStart, windowEnd, prof.WorkingHours)
	for _, iv := range slots.FromEvents(req.Busy) {
		busy = append(busy, slots.Pad(iv, buffer))
	}

	favored := make(map[string]bool, len(req.Favored))
	for _, id := range req.Favored {
		favored[id] = true
	}
	inRequest := make(map[string]bool, len(req.Tasks))
	for _, t := range req.Tasks {
		inRequest[t.ID] = true
	}

	ends := make(map[string]time.Time)
	failed := make(map[string]bool)
	ignoreDeps := make(map[string]bool)
	placed := 0

	pending := orderTasks(req.Tasks, favored)
	for len(pending) > 0 {
		var deferred []models.Task
		progressed := false

		for _, t := range pending {
			earliest := windowStart
			ready := true
			blockedBy := ""
			if !ignoreDeps[t.ID] {
				for _, dep := range t.Dependencies {
					if !inRequest[dep] {
						continue
					}
					if failed[dep] {
						blockedBy = dep
						break
					}
					end, ok := ends[dep]
					if !ok {
						ready = false
						continue
					}
					if end.After(earliest) {
						earliest = end
					}
				}
			}

			if blockedBy != "" {
				plan.Warnings = append(plan.Warnings, fmt.Sprintf("Task %q not scheduled: dependency %s could not be scheduled", t.Title, blockedBy))
				failed[t.ID] = true
				progressed = true
				continue
			}
			if !ready {
				deferred = append(deferred, t)
				continue
			}
			progressed = true

			pl := p.place(t, earliest.In(loc), windowEnd, &busy, prof, buffer, favored[t.ID])
			plan.Warnings = append(plan.Warnings, pl.warnings...)
			if len(pl.sessions) == 0 {
				failed[t.ID] = true
				continue
			}
			placed++
			plan.ScheduledTasks = append(plan.ScheduledTasks, pl.sessions...)
			ends[t.ID] = pl.sessions[len(pl.sessions)-1].ScheduledEnd

			if diff := pl.estimate - t.EstimatedDuration; math.Abs(diff) >= 0.25 && math.Abs(diff) > 0.1*t.EstimatedDuration {
				plan.Suggestions = append(plan.Suggestions, fmt.Sprintf("History suggests %q takes about %.1fh, not %.1fh", t.Title, pl.estimate, t.EstimatedDuration))
			}
		}

		if !progressed {
			// Every remaining task waits on another: a dependency cycle.
			t := deferred[0]
			ignoreDeps[t.ID] = true
			plan.Warnings = append(plan.Warnings, fmt.Sprintf("Circular dependency involving %q; scheduled without ordering", t.Title))
		}
		pending = deferred
	}

	sort.SliceStable(plan.ScheduledTasks, func(i, j int) bool {
		return plan.ScheduledTasks[i].ScheduledStart.Before(plan.ScheduledTasks[j].ScheduledStart)
	})
	plan.Warnings = append(plan.Warnings, dailyLoadWarnings(plan.ScheduledTasks, loc, prof.MaxDailyWorkHours)...)
	plan.Reasoning = fmt.Sprintf("Placed %d of %d tasks by priority and deadline into free working time between %s and %s",
		placed, len(req.Tasks), windowStart.Format("Mon Jan 2 15:04"), windowEnd.Format("Mon Jan 2 15:04"))

	p.log.Debug().Int("tasks", len(req.Tasks)).Int("placed", placed).Int("sessions", len(plan.ScheduledTasks)).Msg("plan built")
	return plan
}

// place schedules every session of one task, appending padded sessions to busy.
func (p *Local) place(t models.Task, earliest, windowEnd time.Time, busy *[]slots.Interval, prof *models.UserProfile, buffer time.Duration, favored bool) placement {
	estimate := p.learner.EstimateDuration(&t, prof)
	pl := placement{estimate: estimate}

	pref := t.PreferredTimeOfDay
	if pref == "" {
		pref = p.learner.SuggestTimeOfDay(&t, prof)
	}

	lengths := sessionLengths(t, estimate, prof.ProductivityPattern.PreferredTaskDuration)
	cursor := earliest
	for i, h := range lengths {
		dur := models.Duration(h).Round(time.Minute)
		if dur < time.Minute {
			dur = time.Minute
		}
		slot, ok := p.findSlot(cursor, dur, *busy, prof, pref, windowEnd, t.Deadline)
		if !ok {
			if i == 0 {
				pl.warnings = append(pl.warnings, fmt.Sprintf("No free slot for %q (%.1fh) before %s", t.Title, h, windowEnd.Format("Mon Jan 2 15:04")))
			} else {
				pl.warnings = append(pl.warnings, fmt.Sprintf("Only %d of %d sessions of %q fit before %s", i, len(lengths), t.Title, windowEnd.Format("Mon Jan 2 15:04")))
			}
			break
		}
		*busy = append(*busy, slots.Pad(slot, buffer))
		cursor = slot.End

		st := models.ScheduledTask{
			TaskID:         t.ID,
			ScheduledStart: slot.Start.UTC(),
			ScheduledEnd:   slot.End.UTC(),
			DurationHours:  math.Round(slot.Duration().Hours()*100) / 100,
			Rationale:      rationale(t, slot, pref, estimate, favored),
		}
		if len(lengths) > 1 {
			st.SplitSession = i + 1
			st.TotalSessions = len(lengths)
		}
		pl.sessions = append(pl.sessions, st)
	}

	if n := len(pl.sessions); n > 0 && t.Deadline != nil && pl.sessions[n-1].ScheduledEnd.After(*t.Deadline) {
		pl.warnings = append(pl.warnings, fmt.Sprintf("Task %q is scheduled to finish after its deadline %s", t.Title, t.Deadline.In(earliest.Location()).Format("Mon Jan 2 15:04")))
	}
	return pl
}

// findSlot returns the earliest slot inside the window, or a later one in the
// preferred time of day when that also fits the window. A preferred slot never
// trades a met deadline for a missed one.
func (p *Local) findSlot(earliest time.Time, dur time.Duration, busy []slots.Interval, prof *models.UserProfile, pref string, windowEnd time.Time, deadline *time.Time) (slots.Interval, bool) {
	hours, weekends := prof.WorkingHours, prof.AllowWeekendScheduling

	first, ok := slots.NextAvailableSlot(earliest, dur, busy, hours, weekends, p.horizonDays)
	if !ok || first.End.After(windowEnd) {
		return slots.Interval{}, false
	}
	if pref == "" || bucketOf(first.Start) == pref {
		return first, true
	}

	limit := windowEnd
	if deadline != nil && deadline.Before(limit) {
		if first.End.After(*deadline) {
			return first, true
		}
		limit = *deadline
	}

	cursor := first.Start
	for i := 0; i < maxPreferenceAttempts; i++ {
		cursor = nextBucketStart(cursor, pref)
		s, ok := slots.NextAvailableSlot(cursor, dur, busy, hours, weekends, p.horizonDays)
		if !ok || s.End.After(limit) {
			break
		}
		if bucketOf(s.Start) == pref {
			return s, true
		}
		cursor = s.Start
	}
	return first, true
}

// orderTasks sorts favored tasks first, then by priority, deadline and age.
func orderTasks(tasks []models.Task, favored map[string]bool) []models.Task {
	out := append([]models.Task(nil), tasks...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if favored[a.ID] != favored[b.ID] {
			return favored[a.ID]
		}
		if a.Priority.Rank() != b.Priority.Rank() {
			return a.Priority.Rank() > b.Priority.Rank()
		}
		switch {
		case a.Deadline != nil && b.Deadline != nil && !a.Deadline.Equal(*b.Deadline):
			return a.Deadline.Before(*b.Deadline)
		case a.Deadline != nil && b.Deadline == nil:
			return true
		case a.Deadline == nil && b.Deadline != nil:
			return false
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return out
}

// sessionLengths splits a splittable task longer than the preferred session
// into equal sessions, none shorter than its minimum session.
func sessionLengths(t models.Task, hours, preferred float64) []float64 {
	if !t.CanSplit || preferred <= 0 || hours <= preferred {
		return []float64{hours}
	}
	n := int(math.Ceil(hours / preferred))
	if t.MinSessionDuration != nil && *t.MinSessionDuration > 0 {
		if limit := int(hours / *t.MinSessionDuration); limit < n {
			n = limit
		}
	}
	if n < 1 {
		n = 1
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = hours / float64(n)
	}
	return out
}

func rationale(t models.Task, slot slots.Interval, pref string, estimate float64, favored bool) string {
	parts := []string{fmt.Sprintf("%s priority", t.Priority)}
	if favored {
		parts = append(parts, "rescheduled first after going overdue")
	}
	if bucketOf(slot.Start) == pref {
		parts = append(parts, pref+" slot as preferred")
	}
	if t.RequiresDeepFocus {
		parts = append(parts, "deep focus")
	}
	if math.Abs(estimate-t.EstimatedDuration) >= 0.01 {
		parts = append(parts, fmt.Sprintf("estimate adjusted to %.1fh from history", estimate))
	}
	return strings.Join(parts, "; ")
}

func dailyLoadWarnings(sessions []models.ScheduledTask, loc *time.Location, maxHours float64) []string {
	if maxHours <= 0 {
		return nil
	}
	load := make(map[string]float64)
	var days []string
	for _, s := range sessions {
		day := s.ScheduledStart.In(loc).Format("Mon Jan 2")
		if _, ok := load[day]; !ok {
			days = append(days, day)
		}
		load[day] += s.DurationHours
	}
	var out []string
	for _, day := range days {
		if load[day] > maxHours+1e-9 {
			out = append(out, fmt.Sprintf("%.1fh scheduled on %s exceeds the %.1fh daily maximum", load[day], day, maxHours))
		}
	}
	return out
}

func bucketOf(t time.Time) string {
	return models.TimeOfDayForHour(float64(t.Hour()) + float64(t.Minute())/60)
}

func nextBucketStart(t time.Time, bucket string) time.Time {
	y, m, d := t.Date()
	c := time.Date(y, m, d, bucketStartHour[bucket], 0, 0, 0, t.Location())
	if !c.After(t) {
		c = c.AddDate(0, 0, 1)
	}
	return c
}
