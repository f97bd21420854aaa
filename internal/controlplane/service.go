// Package controlplane provides the HTTP API and service layer for Cadence.
package controlplane

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fentz26/cadence/internal/audit"
	"github.com/fentz26/cadence/internal/calendar"
	"github.com/fentz26/cadence/internal/learner"
	"github.com/fentz26/cadence/internal/models"
	"github.com/fentz26/cadence/internal/monitor"
	"github.com/fentz26/cadence/internal/planner"
	"github.com/fentz26/cadence/internal/replan"
	"github.com/fentz26/cadence/internal/slots"
	"github.com/fentz26/cadence/internal/store"
	"github.com/rs/zerolog"
)

// DeviationThreshold is the completion drift that triggers a deviation analysis.
const DeviationThreshold = 15 * time.Minute

// Options configure a Service.
type Options struct {
	UserID        string
	DefaultWindow time.Duration
	Monitor       monitor.Config
	// Profile seeds the store when the user has no profile yet.
	Profile *models.UserProfile
}

// Service provides the control plane business logic.
type Service struct {
	store    *store.Store
	pdr      *audit.PDRWriter
	calendar calendar.Gateway
	planner  planner.Collaborator
	learner  *learner.Learner
	monitor  *monitor.Monitor
	replan   *replan.Coordinator
	opts     Options
	log      zerolog.Logger
	now      func() time.Time

	mu       sync.Mutex
	profile  *models.UserProfile
	lastPlan *models.Plan
}

// NewService wires the service and loads (or creates) the user's profile.
func NewService(s *store.Store, pdr *audit.PDRWriter, gw calendar.Gateway, pl planner.Collaborator, lr *learner.Learner, opts Options, log zerolog.Logger) (*Service, error) {
	if opts.UserID == "" {
		opts.UserID = "default"
	}
	if opts.DefaultWindow <= 0 {
		opts.DefaultWindow = 14 * 24 * time.Hour
	}

	profile, err := s.GetProfile(opts.UserID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		profile = opts.Profile
		if profile == nil {
			profile = models.DefaultProfile(opts.UserID)
		}
		profile = profile.Clone()
		profile.UserID = opts.UserID
		if err := s.SaveProfile(profile); err != nil {
			return nil, err
		}
	}

	svc := &Service{
		store:    s,
		pdr:      pdr,
		calendar: gw,
		planner:  pl,
		learner:  lr,
		opts:     opts,
		log:      log.With().Str("component", "service").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
		profile:  profile,
	}
	svc.monitor = monitor.New(s, pdr, opts.Monitor, log)
	svc.monitor.SetHooks(monitor.Hooks{Overdue: svc.onOverdue})
	svc.replan = replan.New(s, svc, pdr, log)
	return svc, nil
}

// Close stops background monitoring.
func (s *Service) Close() {
	s.monitor.Stop()
}

// --- Task Operations ---

// AddTask validates and stores a new pending task.
func (s *Service) AddTask(task *models.Task) (*models.Task, error) {
	t := *task
	t.ID = ""
	t.Status = models.TaskStatusPending
	t.ClearSchedule()
	t.ActualStart, t.ActualEnd, t.ActualDuration = nil, nil, nil
	if t.Priority == "" {
		t.Priority = models.PriorityMedium
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTask, err)
	}
	for _, dep := range t.Dependencies {
		existing, err := s.store.GetTask(dep)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, fmt.Errorf("%w: %s", ErrUnknownDependency, dep)
		}
	}

	if err := s.store.SaveTask(&t); err != nil {
		return nil, err
	}
	s.pdr.Record("task.create", map[string]interface{}{"title": t.Title, "estimated_duration": t.EstimatedDuration}, "success", t.ID, "")
	return &t, nil
}

// GetTask retrieves a task by ID.
func (s *Service) GetTask(id string) (*models.Task, error) {
	task, err := s.store.GetTask(id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, ErrTaskNotFound
	}
	return task, nil
}

// ListTasks returns tasks, optionally filtered by status.
func (s *Service) ListTasks(statuses ...models.TaskStatus) ([]models.Task, error) {
	return s.store.ListTasks(statuses...)
}

// CancelTask cancels a task and removes its calendar event.
func (s *Service) CancelTask(ctx context.Context, id string) (*models.Task, error) {
	task, err := s.GetTask(id)
	if err != nil {
		return nil, err
	}
	if err := task.TransitionTo(models.TaskStatusCancelled); err != nil {
		return nil, err
	}
	task.ClearSchedule()
	if err := s.store.SaveTask(task); err != nil {
		return nil, err
	}

	events, err := s.store.ListEventsByTaskID(task.ID)
	if err != nil {
		s.log.Warn().Err(err).Str("task_id", task.ID).Msg("look up task events")
	}
	for i := range events {
		s.removeEvent(ctx, &events[i])
	}

	s.pdr.Record("task.cancel", map[string]string{"task_id": id}, "success", id, "")
	return task, nil
}

// MarkInProgress starts a scheduled task.
func (s *Service) MarkInProgress(id string) (*models.Task, error) {
	task, err := s.GetTask(id)
	if err != nil {
		return nil, err
	}
	if err := task.TransitionTo(models.TaskStatusInProgress); err != nil {
		return nil, err
	}
	now := s.now()
	task.ActualStart = &now
	if err := s.store.SaveTask(task); err != nil {
		return nil, err
	}
	s.pdr.Record("task.start", map[string]string{"task_id": id}, "success", id, "")
	return task, nil
}

// CompletionResult is returned by MarkCompleted.
type CompletionResult struct {
	Task      *models.Task              `json:"task"`
	Learned   bool                      `json:"learned"`
	Deviation *models.DeviationAnalysis `json:"deviation,omitempty"`
}

// MarkCompleted finishes a task, learns from it and, when it missed its
// scheduled end by more than DeviationThreshold, asks the planner why.
func (s *Service) MarkCompleted(ctx context.Context, id string) (*CompletionResult, error) {
	task, err := s.GetTask(id)
	if err != nil {
		return nil, err
	}
	if err := task.TransitionTo(models.TaskStatusCompleted); err != nil {
		return nil, err
	}
	now := s.now()
	task.ActualEnd = &now
	if task.ActualStart != nil {
		worked := models.Hours(now.Sub(*task.ActualStart))
		task.ActualDuration = &worked
	}
	if err := s.store.SaveTask(task); err != nil {
		return nil, err
	}

	res := &CompletionResult{Task: task}

	s.mu.Lock()
	sample := s.learner.LearnFromCompletion(task, s.profile)
	var profile *models.UserProfile
	if sample != nil {
		profile = s.profile.Clone()
	}
	s.mu.Unlock()

	if sample != nil {
		res.Learned = true
		if err := s.store.AddCompletionSample(sample); err != nil {
			s.log.Warn().Err(err).Str("task_id", id).Msg("persist completion sample")
		}
		if err := s.store.SaveProfile(profile); err != nil {
			return nil, err
		}
	}

	if task.ScheduledEnd != nil {
		dev := now.Sub(*task.ScheduledEnd)
		if dev > DeviationThreshold || dev < -DeviationThreshold {
			s.mu.Lock()
			snapshot := s.profile.Clone()
			s.mu.Unlock()
			analysis, err := s.planner.AnalyzeDeviation(ctx, planner.DeviationRequest{
				Task:         *task,
				ScheduledEnd: *task.ScheduledEnd,
				ActualEnd:    now,
				Profile:      snapshot,
			})
			if err != nil {
				s.log.Warn().Err(err).Str("task_id", id).Msg("deviation analysis")
			} else {
				res.Deviation = analysis
				s.log.Info().Str("task_id", id).Float64("deviation_hours", analysis.DeviationHours).
					Str("reason", analysis.DeviationReason).Msg("completion deviated from schedule")
			}
		}
	}

	s.pdr.Record("task.complete", map[string]string{"task_id": id}, "success", id, fmt.Sprintf("learned=%t", res.Learned))
	return res, nil
}

// TaskDecisions returns the decision records for a task, newest first.
func (s *Service) TaskDecisions(id string, limit int) ([]models.PDREntry, error) {
	if _, err := s.GetTask(id); err != nil {
		return nil, err
	}
	return s.store.ListPDR(id, limit)
}

// --- Planning Operations ---

// PlanRequest parameterizes GeneratePlan. Zero times take defaults: now and
// now plus the default window.
type PlanRequest struct {
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
	Context     string    `json:"context,omitempty"`
}

// GeneratePlan asks the planner to schedule every pending task.
func (s *Service) GeneratePlan(ctx context.Context, req PlanRequest) (*models.Plan, error) {
	return s.generate(ctx, req, nil)
}

// RequestPlan generates a plan over the default window. It lets the replan
// coordinator call back into the service.
func (s *Service) RequestPlan(ctx context.Context, hint string, favored []string) (*models.Plan, error) {
	return s.generate(ctx, PlanRequest{Context: hint}, favored)
}

func (s *Service) generate(ctx context.Context, req PlanRequest, favored []string) (*models.Plan, error) {
	start, end, err := s.window(req.WindowStart, req.WindowEnd)
	if err != nil {
		return nil, err
	}

	tasks, err := s.store.ListTasks(models.TaskStatusPending)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		plan := models.EmptyPlan("No pending tasks to schedule")
		plan.WindowStart, plan.WindowEnd = &start, &end
		return plan, nil
	}

	busy, warnings := s.busyEvents(ctx, start, end)
	// Events of tasks about to be rescheduled do not block their own time.
	planning := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		planning[t.ID] = true
	}
	filtered := busy[:0]
	for _, e := range busy {
		if e.TaskID == "" || !planning[e.TaskID] {
			filtered = append(filtered, e)
		}
	}

	s.mu.Lock()
	snapshot := s.profile.Clone()
	s.mu.Unlock()

	plan, err := s.planner.Generate(ctx, planner.Request{
		Tasks:       tasks,
		Busy:        filtered,
		Profile:     snapshot,
		Context:     req.Context,
		Favored:     favored,
		WindowStart: start,
		WindowEnd:   end,
	})
	if err != nil {
		s.pdr.Record("plan.generate", req, "error", "", err.Error())
		return nil, fmt.Errorf("generate plan: %w", err)
	}
	plan.Warnings = append(plan.Warnings, warnings...)
	if plan.WindowStart == nil {
		plan.WindowStart, plan.WindowEnd = &start, &end
	}

	now := s.now()
	s.mu.Lock()
	s.profile.TotalPlansGenerated++
	s.profile.LastPlanDate = &now
	profile := s.profile.Clone()
	s.lastPlan = plan
	s.mu.Unlock()
	if err := s.store.SaveProfile(profile); err != nil {
		return nil, err
	}

	s.pdr.Record("plan.generate", req, "success", "", fmt.Sprintf("%d sessions for %d tasks via %s", len(plan.ScheduledTasks), len(tasks), s.planner.Name()))
	s.log.Info().Int("tasks", len(tasks)).Int("sessions", len(plan.ScheduledTasks)).Int("warnings", len(plan.Warnings)).Msg("plan generated")
	return plan, nil
}

// RefinePlan learns from the feedback, asks the planner for a revised plan
// and logs the refinement. A nil plan refines the last generated one.
func (s *Service) RefinePlan(ctx context.Context, feedback string, plan *models.Plan) (*models.Plan, error) {
	if strings.TrimSpace(feedback) == "" {
		return nil, fmt.Errorf("%w: feedback is required", ErrInvalidRequest)
	}

	s.mu.Lock()
	if plan == nil {
		plan = s.lastPlan
	}
	s.mu.Unlock()
	if plan == nil {
		return nil, ErrNoPlan
	}

	refined, err := s.planner.Refine(ctx, feedback, plan)
	if err != nil {
		s.pdr.Record("plan.refine", map[string]string{"feedback": feedback}, "error", "", err.Error())
		return nil, fmt.Errorf("refine plan: %w", err)
	}

	s.mu.Lock()
	learned := s.learner.LearnFromFeedback(feedback, s.profile)
	profile := s.profile.Clone()
	s.lastPlan = refined
	s.mu.Unlock()
	if learned {
		if err := s.store.SaveProfile(profile); err != nil {
			return nil, err
		}
	}

	category := learner.Categorize(feedback)
	if err := s.store.AddRefinement(&models.PlanRefinement{
		UserID:            s.opts.UserID,
		OriginalPlan:      plan,
		RefinementRequest: feedback,
		RefinedPlan:       refined,
		FeedbackCategory:  category,
	}); err != nil {
		s.log.Warn().Err(err).Msg("log refinement")
	}

	s.pdr.Record("plan.refine", map[string]string{"feedback": feedback}, "success", "", category)
	return refined, nil
}

// ExecutePlan writes each placement to the calendar and schedules its task.
// Unknown tasks are skipped with a warning. A calendar failure leaves the
// event unsynced in the store; the task is still scheduled.
func (s *Service) ExecutePlan(ctx context.Context, plan *models.Plan) (*models.ExecutionResult, error) {
	res := &models.ExecutionResult{Events: []models.CalendarEvent{}, Scheduled: []string{}, Warnings: []string{}}
	if plan == nil {
		return res, nil
	}

	seen := make(map[string]bool)
	// Events already placed for a task are reused session by session; what is
	// left over once the plan is written gets removed.
	reusable := make(map[string][]models.CalendarEvent)
	for _, st := range plan.ScheduledTasks {
		task, err := s.store.GetTask(st.TaskID)
		if err != nil {
			return nil, err
		}
		if task == nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("Task %s not found, skipped", st.TaskID))
			continue
		}
		if !st.ScheduledEnd.After(st.ScheduledStart) {
			res.Warnings = append(res.Warnings, fmt.Sprintf("Task %q has an empty slot, skipped", task.Title))
			continue
		}

		first := !seen[task.ID]
		start, end := st.ScheduledStart, st.ScheduledEnd
		switch {
		case task.Status == models.TaskStatusPending:
			task.ScheduledStart, task.ScheduledEnd = &start, &end
			if err := task.TransitionTo(models.TaskStatusScheduled); err != nil {
				return nil, err
			}
		case task.Status == models.TaskStatusScheduled:
			// Later sessions of a split task widen its window; re-executing a
			// plan moves it.
			if first || task.ScheduledStart == nil || start.Before(*task.ScheduledStart) {
				task.ScheduledStart = &start
			}
			if first || task.ScheduledEnd == nil || end.After(*task.ScheduledEnd) {
				task.ScheduledEnd = &end
			}
		default:
			res.Warnings = append(res.Warnings, fmt.Sprintf("Task %q is %s, skipped", task.Title, task.Status))
			continue
		}
		seen[task.ID] = true

		if first {
			existing, err := s.store.ListEventsByTaskID(task.ID)
			if err != nil {
				s.log.Warn().Err(err).Str("task_id", task.ID).Msg("look up task events")
			}
			reusable[task.ID] = existing
		}
		var prior *models.CalendarEvent
		if pool := reusable[task.ID]; len(pool) > 0 {
			prior, reusable[task.ID] = &pool[0], pool[1:]
		}

		event, warning := s.syncEvent(ctx, task, st, prior)
		if warning != "" {
			res.Warnings = append(res.Warnings, warning)
		}
		if err := s.store.SaveTask(task); err != nil {
			return nil, err
		}
		if event != nil {
			res.Events = append(res.Events, *event)
		}
		if first {
			res.Scheduled = append(res.Scheduled, task.ID)
		}
	}

	for _, stale := range reusable {
		for i := range stale {
			s.removeEvent(ctx, &stale[i])
		}
	}

	s.pdr.Record("plan.execute", plan.ScheduledTasks, "success", "", fmt.Sprintf("%d tasks scheduled, %d warnings", len(res.Scheduled), len(res.Warnings)))
	s.log.Info().Int("scheduled", len(res.Scheduled)).Int("events", len(res.Events)).Int("warnings", len(res.Warnings)).Msg("plan executed")
	return res, nil
}

// syncEvent persists the event for one placement and pushes it to the
// calendar, updating prior in place when the task already had an event.
func (s *Service) syncEvent(ctx context.Context, task *models.Task, st models.ScheduledTask, prior *models.CalendarEvent) (*models.CalendarEvent, string) {
	event := prior
	if event == nil {
		event = &models.CalendarEvent{Source: "agent", TaskID: task.ID}
	}
	event.Title = "[TASK] " + task.Title
	event.Description = task.Description
	event.StartTime = st.ScheduledStart
	event.EndTime = st.ScheduledEnd
	event.Type = models.EventTypeScheduledTask
	event.Synced = false

	if err := s.store.SaveEvent(event); err != nil {
		return nil, fmt.Sprintf("Could not save event for %q: %v", task.Title, err)
	}

	var err error
	if event.ExternalID != "" {
		err = s.calendar.UpdateEvent(ctx, event)
	} else {
		var externalID string
		externalID, err = s.calendar.CreateEvent(ctx, event)
		event.ExternalID = externalID
	}
	if err != nil {
		s.log.Warn().Err(err).Str("task_id", task.ID).Str("provider", s.calendar.Name()).Msg("calendar sync failed")
		return event, fmt.Sprintf("Calendar sync failed for %q: %v", task.Title, err)
	}

	now := s.now()
	event.Synced = true
	event.LastSynced = &now
	if err := s.store.SaveEvent(event); err != nil {
		return event, fmt.Sprintf("Could not record sync for %q: %v", task.Title, err)
	}
	return event, ""
}

// removeEvent deletes an event from the calendar and the store. Failures are
// logged only.
func (s *Service) removeEvent(ctx context.Context, ev *models.CalendarEvent) {
	if ev.ExternalID != "" {
		if err := s.calendar.DeleteEvent(ctx, ev.ExternalID); err != nil {
			s.log.Warn().Err(err).Str("task_id", ev.TaskID).Str("provider", s.calendar.Name()).Msg("remove calendar event")
		}
	}
	if err := s.store.DeleteEvent(ev.ID); err != nil {
		s.log.Warn().Err(err).Str("event_id", ev.ID).Msg("delete event")
	}
}

// --- Monitoring and Replanning ---

// StartMonitoring starts the schedule monitor. It reports false when the
// monitor was already running.
func (s *Service) StartMonitoring(interval time.Duration) bool {
	started := s.monitor.Start(interval)
	if started {
		s.pdr.Record("monitor.start", map[string]string{"interval": interval.String()}, "success", "", "")
	}
	return started
}

// StopMonitoring stops the schedule monitor.
func (s *Service) StopMonitoring() {
	if s.monitor.State() != monitor.StateRunning {
		return
	}
	s.monitor.Stop()
	s.pdr.Record("monitor.stop", nil, "success", "", "")
}

// MonitorStatus returns the monitor snapshot.
func (s *Service) MonitorStatus() monitor.Status {
	return s.monitor.Status()
}

// TriggerReplan resets drifting tasks and generates a new plan. When execute
// is set the plan is written to the calendar as well.
func (s *Service) TriggerReplan(ctx context.Context, reason string, execute bool) (*replan.Result, *models.ExecutionResult, error) {
	if strings.TrimSpace(reason) == "" {
		reason = "Schedule deviation detected"
	}
	res, err := s.replan.Trigger(ctx, reason)
	if err != nil {
		return nil, nil, err
	}
	if !execute {
		return res, nil, nil
	}
	exec, err := s.ExecutePlan(ctx, res.Plan)
	if err != nil {
		return res, nil, err
	}
	return res, exec, nil
}

// onOverdue runs on the monitor goroutine.
func (s *Service) onOverdue(tasks []models.Task) {
	if !s.opts.Monitor.AutoReplan {
		return
	}
	titles := make([]string, 0, len(tasks))
	for _, t := range tasks {
		titles = append(titles, t.Title)
	}
	reason := fmt.Sprintf("%d task(s) overdue: %s", len(tasks), strings.Join(titles, ", "))
	if _, _, err := s.TriggerReplan(context.Background(), reason, true); err != nil {
		s.log.Error().Err(err).Msg("automatic replan failed")
	}
}

// --- Learning and Calendar Views ---

// GetInsights reports what has been learned about the user.
func (s *Service) GetInsights() models.Insights {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.learner.Insights(s.profile)
}

// GetProfile returns a copy of the current profile.
func (s *Service) GetProfile() *models.UserProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile.Clone()
}

// RefinementPatterns summarizes recent refinement requests.
func (s *Service) RefinementPatterns() (models.RefinementSummary, error) {
	refinements, err := s.store.ListRefinements(s.opts.UserID, "", learner.PatternWindow)
	if err != nil {
		return models.RefinementSummary{}, err
	}
	return learner.RefinementPatterns(refinements), nil
}

// ListEvents returns busy events overlapping the window.
func (s *Service) ListEvents(ctx context.Context, start, end time.Time) ([]models.CalendarEvent, []string, error) {
	start, end, err := s.window(start, end)
	if err != nil {
		return nil, nil, err
	}
	events, warnings := s.busyEvents(ctx, start, end)
	return events, warnings, nil
}

// FreeSlots returns gaps of at least minDuration between busy events in the window.
func (s *Service) FreeSlots(ctx context.Context, start, end time.Time, minDuration time.Duration) ([]slots.Interval, error) {
	start, end, err := s.window(start, end)
	if err != nil {
		return nil, err
	}
	events, _ := s.busyEvents(ctx, start, end)
	return slots.FreeSlots(slots.FromEvents(events), start, end, minDuration), nil
}

// busyEvents merges the calendar's events with store events it does not know
// about yet, such as unsynced task events. A calendar failure falls back to
// the store and is reported as a warning.
func (s *Service) busyEvents(ctx context.Context, start, end time.Time) ([]models.CalendarEvent, []string) {
	var warnings []string
	remote, err := s.calendar.GetEvents(ctx, start, end)
	if err != nil {
		s.log.Warn().Err(err).Str("provider", s.calendar.Name()).Msg("read calendar")
		warnings = append(warnings, fmt.Sprintf("Calendar unavailable, using stored events only: %v", err))
		remote = nil
	}
	local, err := s.store.ListEvents(start, end)
	if err != nil {
		s.log.Warn().Err(err).Msg("read stored events")
	}

	seen := make(map[string]bool, len(remote))
	out := make([]models.CalendarEvent, 0, len(remote)+len(local))
	for _, e := range remote {
		if e.ID != "" {
			seen[e.ID] = true
		}
		if e.ExternalID != "" {
			seen[e.ExternalID] = true
		}
		out = append(out, e)
	}
	for _, e := range local {
		if seen[e.ID] || (e.ExternalID != "" && seen[e.ExternalID]) {
			continue
		}
		out = append(out, e)
	}
	return out, warnings
}

func (s *Service) window(start, end time.Time) (time.Time, time.Time, error) {
	if start.IsZero() {
		start = s.now()
	}
	if end.IsZero() {
		end = start.Add(s.opts.DefaultWindow)
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: end %s is not after start %s", ErrInvalidWindow, end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	return start, end, nil
}
