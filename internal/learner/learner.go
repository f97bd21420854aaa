// Package learner adapts a user profile to how tasks actually get done.
package learner

import (
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fentz26/cadence/internal/models"
)

const (
	// OnTimeBand is the completion deviation still counted as on time.
	OnTimeBand = 15 * time.Minute

	focusSmoothing = 0.7

	minPreferredDuration = 0.5
	maxPreferredDuration = 4.0
	durationStep         = 0.5

	maxBuffer  = 1.0
	bufferStep = 0.25

	maxDelayFactor = 1.5

	// PatternWindow is how many recent refinements RefinementPatterns reads.
	PatternWindow = 50
	recentLimit   = 5
)

// Learner keeps the completion history used for estimates and applies
// learning rules to profiles handed to it. Profiles are mutated in place;
// persisting them is the caller's job.
type Learner struct {
	mu      sync.RWMutex
	history []models.CompletionSample
	now     func() time.Time
}

// New creates a learner seeded with previously recorded samples.
func New(history []models.CompletionSample) *Learner {
	return &Learner{
		history: append([]models.CompletionSample(nil), history...),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// History returns a copy of the recorded samples.
func (l *Learner) History() []models.CompletionSample {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]models.CompletionSample(nil), l.history...)
}

// LearnFromCompletion updates adherence, peak hours and focus span from a
// finished task and records a completion sample. It does nothing unless the
// task has both actual_start and actual_end and learning is enabled. The
// returned sample is nil when nothing was learned.
func (l *Learner) LearnFromCompletion(task *models.Task, p *models.UserProfile) *models.CompletionSample {
	if task.ActualStart == nil || task.ActualEnd == nil || !p.LearningEnabled {
		return nil
	}
	start, end := *task.ActualStart, *task.ActualEnd

	a := &p.ScheduleAdherence
	a.TotalScheduled++

	if task.ScheduledEnd != nil {
		deviation := end.Sub(*task.ScheduledEnd)
		hours := models.Hours(deviation)
		switch {
		case absDuration(deviation) < OnTimeBand:
			a.OnTime++
		case deviation < 0:
			a.Early++
			a.AverageEarlyHours = runningMean(a.AverageEarlyHours, a.Early, -hours)
		default:
			a.Late++
			a.AverageDelayHours = runningMean(a.AverageDelayHours, a.Late, hours)
		}

		if !end.After(*task.ScheduledEnd) {
			recordPeakHour(&p.ProductivityPattern, start.In(p.Location()).Hour())
		}
	}

	worked := models.Hours(end.Sub(start))
	if task.RequiresDeepFocus {
		pp := &p.ProductivityPattern
		pp.AverageFocusSpan = focusSmoothing*pp.AverageFocusSpan + (1-focusSmoothing)*worked
	}

	actual := worked
	if task.ActualDuration != nil {
		actual = *task.ActualDuration
	}
	sample := models.CompletionSample{
		UserID:            p.UserID,
		TaskID:            task.ID,
		Estimated:         task.EstimatedDuration,
		Actual:            actual,
		Priority:          task.Priority,
		RequiresDeepFocus: task.RequiresDeepFocus,
		Tags:              append([]string(nil), task.Tags...),
		RecordedAt:        l.now(),
	}

	l.mu.Lock()
	l.history = append(l.history, sample)
	l.mu.Unlock()

	p.UpdatedAt = l.now()
	return &sample
}

// LearnFromFeedback applies the literal keyword rules to free-text plan
// feedback. It reports whether the profile was touched.
func (l *Learner) LearnFromFeedback(text string, p *models.UserProfile) bool {
	if !p.LearningEnabled {
		return false
	}
	p.TotalFeedbackReceived++

	lower := strings.ToLower(text)
	pp := &p.ProductivityPattern

	if strings.Contains(lower, "morning") {
		p.PreferMorningDeepWork = !hasNegation(lower)
	}
	if containsAny(lower, "afternoon", "evening") && strings.Contains(lower, "prefer") {
		p.PreferMorningDeepWork = false
	}

	if containsAny(lower, "too long", "shorter") {
		pp.PreferredTaskDuration = math.Max(minPreferredDuration, pp.PreferredTaskDuration-durationStep)
	}
	if containsAny(lower, "longer session", "combine") {
		pp.PreferredTaskDuration = math.Min(maxPreferredDuration, pp.PreferredTaskDuration+durationStep)
	}

	if containsAny(lower, "more time between", "more buffer") {
		p.MinBufferBetweenTasks = math.Min(maxBuffer, p.MinBufferBetweenTasks+bufferStep)
	}
	if containsAny(lower, "less buffer", "back to back") {
		p.MinBufferBetweenTasks = math.Max(0, p.MinBufferBetweenTasks-bufferStep)
	}

	p.UpdatedAt = l.now()
	return true
}

// EstimateDuration adjusts a task's estimate (hours) using similar completed
// tasks, or the user's average delay when there are none.
func (l *Learner) EstimateDuration(task *models.Task, p *models.UserProfile) float64 {
	base := task.EstimatedDuration

	l.mu.RLock()
	var sum float64
	var n int
	for _, s := range l.history {
		if !similar(s, task) || s.Estimated <= 0 {
			continue
		}
		sum += s.Actual / s.Estimated
		n++
	}
	l.mu.RUnlock()

	if n > 0 {
		return base * (0.5 + 0.5*sum/float64(n))
	}
	if delay := p.ScheduleAdherence.AverageDelayHours; delay > 0 {
		return base * math.Min(1+delay/10, maxDelayFactor)
	}
	return base
}

// SuggestTimeOfDay picks morning, afternoon or evening for a task.
func (l *Learner) SuggestTimeOfDay(task *models.Task, p *models.UserProfile) string {
	if task.RequiresDeepFocus && p.PreferMorningDeepWork {
		return models.Morning
	}
	if peaks := p.ProductivityPattern.PeakHours; len(peaks) > 0 {
		var sum int
		for _, h := range peaks {
			sum += h
		}
		return models.TimeOfDayForHour(float64(sum) / float64(len(peaks)))
	}
	if task.Priority == models.PriorityHigh || task.Priority == models.PriorityUrgent {
		return models.Morning
	}
	return models.Afternoon
}

// Insights summarizes what has been learned about the user.
func (l *Learner) Insights(p *models.UserProfile) models.Insights {
	var in models.Insights
	a := p.ScheduleAdherence
	pp := p.ProductivityPattern

	in.ProductivitySummary.PeakProductiveHours = append([]int{}, pp.PeakHours...)
	in.ProductivitySummary.AverageFocusDuration = pp.AverageFocusSpan
	in.ProductivitySummary.PreferredSessionLength = pp.PreferredTaskDuration

	in.ScheduleAdherence.AdherenceRate = a.AdherenceRate()
	in.ScheduleAdherence.OnTimeCompletionRate = float64(a.OnTime) / float64(max(a.TotalScheduled, 1)) * 100
	in.ScheduleAdherence.TendsToRunLate = a.AverageDelayHours > 0.5
	in.ScheduleAdherence.TendsToFinishEarly = a.AverageEarlyHours > 0.5

	in.Preferences.PrefersMorningDeepWork = p.PreferMorningDeepWork
	in.Preferences.MaxDailyHours = p.MaxDailyWorkHours
	in.Preferences.BufferBetweenTasks = p.MinBufferBetweenTasks
	in.Preferences.WeekendWorkEnabled = p.AllowWeekendScheduling

	in.LearningStats.TotalPlansGenerated = p.TotalPlansGenerated
	in.LearningStats.TotalFeedbackReceived = p.TotalFeedbackReceived
	in.LearningStats.TasksTracked = a.TotalScheduled

	in.Recommendations = []string{}
	if a.AverageDelayHours > 1 {
		in.Recommendations = append(in.Recommendations,
			"You tend to underestimate task duration. Consider adding 20-30% buffer to estimates.")
	}
	if a.AdherenceRate() < 50 {
		in.Recommendations = append(in.Recommendations,
			"Low schedule adherence detected. Consider reducing daily task load or increasing time estimates.")
	}
	if len(pp.PeakHours) == 0 {
		in.Recommendations = append(in.Recommendations,
			"Complete a few more tasks to learn your peak productivity hours.")
	}
	return in
}

// refinementKeywords is checked in order; the first category with a match wins.
var refinementKeywords = []struct {
	category string
	keywords []string
}{
	{"timing", []string{"morning", "afternoon", "evening", "time", "earlier", "later"}},
	{"workload", []string{"too much", "too many", "reduce", "less", "more", "add"}},
	{"preferences", []string{"prefer", "like", "want", "need", "better"}},
	{"scheduling", []string{"move", "shift", "reschedule", "change"}},
}

// Categorize assigns a refinement request to a feedback category, or ""
// when no keyword matches.
func Categorize(request string) string {
	lower := strings.ToLower(request)
	for _, rk := range refinementKeywords {
		if containsAny(lower, rk.keywords...) {
			return rk.category
		}
	}
	return ""
}

// RefinementPatterns counts refinement categories over the given refinements,
// newest first, reading at most PatternWindow of them.
func RefinementPatterns(refinements []models.PlanRefinement) models.RefinementSummary {
	if len(refinements) > PatternWindow {
		refinements = refinements[:PatternWindow]
	}
	summary := models.RefinementSummary{
		TotalRefinements: len(refinements),
		Patterns:         []models.RefinementPattern{},
		RecentRequests:   []string{},
	}
	if len(refinements) == 0 {
		return summary
	}

	counts := map[string]int{}
	var order []string
	for _, r := range refinements {
		category := r.FeedbackCategory
		if category == "" {
			category = Categorize(r.RefinementRequest)
		}
		if category == "" {
			continue
		}
		if counts[category] == 0 {
			order = append(order, category)
		}
		counts[category]++
	}

	for _, c := range order {
		pct := float64(counts[c]) / float64(len(refinements)) * 100
		summary.Patterns = append(summary.Patterns, models.RefinementPattern{
			Category:   c,
			Count:      counts[c],
			Percentage: math.Round(pct*10) / 10,
		})
	}
	sort.SliceStable(summary.Patterns, func(i, j int) bool {
		return summary.Patterns[i].Count > summary.Patterns[j].Count
	})

	for i := 0; i < len(refinements) && i < recentLimit; i++ {
		summary.RecentRequests = append(summary.RecentRequests, refinements[i].RefinementRequest)
	}
	return summary
}

// recordPeakHour inserts hour if absent and evicts the oldest entry once the
// set grows past models.MaxPeakHours.
func recordPeakHour(pp *models.ProductivityPattern, hour int) {
	for _, h := range pp.PeakHours {
		if h == hour {
			return
		}
	}
	pp.PeakHours = append(pp.PeakHours, hour)
	if len(pp.PeakHours) > models.MaxPeakHours {
		pp.PeakHours = append([]int(nil), pp.PeakHours[1:]...)
	}
}

func runningMean(mean float64, n int, x float64) float64 {
	return (mean*float64(n-1) + x) / float64(n)
}

func similar(s models.CompletionSample, task *models.Task) bool {
	if s.Priority == task.Priority || s.RequiresDeepFocus == task.RequiresDeepFocus {
		return true
	}
	for _, tag := range s.Tags {
		if task.HasTag(tag) {
			return true
		}
	}
	return false
}

func hasNegation(lower string) bool {
	for _, w := range strings.FieldsFunc(lower, func(r rune) bool {
		return r != '\'' && (r < 'a' || r > 'z')
	}) {
		if w == "not" || w == "don't" {
			return true
		}
	}
	return false
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
