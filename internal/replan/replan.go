// Package replan resets drifting tasks and asks for a fresh plan.
package replan

import (
	"context"
	"fmt"
	"sync"

	"github.com/fentz26/cadence/internal/audit"
	"github.com/fentz26/cadence/internal/models"
	"github.com/rs/zerolog"
)

// TaskStore is the slice of the task store the coordinator needs.
type TaskStore interface {
	ListTasks(statuses ...models.TaskStatus) ([]models.Task, error)
	SaveTask(task *models.Task) error
}

// PlanRequester produces a plan for the pending tasks. hint is passed to the
// planner as context and favored lists task IDs to place first.
type PlanRequester interface {
	RequestPlan(ctx context.Context, hint string, favored []string) (*models.Plan, error)
}

// Result describes what a trigger did.
type Result struct {
	Reason  string       `json:"reason"`
	Reset   []string     `json:"reset_task_ids"`
	Favored []string     `json:"favored_task_ids"`
	Plan    *models.Plan `json:"plan"`
}

// Coordinator runs replans. Triggers are serialized.
type Coordinator struct {
	store     TaskStore
	requester PlanRequester
	pdr       *audit.PDRWriter
	log       zerolog.Logger

	mu sync.Mutex
}

// New creates a coordinator. pdr may be nil.
func New(s TaskStore, requester PlanRequester, pdr *audit.PDRWriter, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		store:     s,
		requester: requester,
		pdr:       pdr,
		log:       log.With().Str("component", "replan").Logger(),
	}
}

// Hint builds the planner context for a replan.
func Hint(reason string) string {
	return fmt.Sprintf("Replanning due to: %s. Please prioritize overdue tasks.", reason)
}

// Trigger resets scheduled and overdue tasks to pending, clearing their
// schedule, then requests a new plan that favors the formerly overdue tasks.
// In-progress tasks are left alone. Calling it again before the plan is
// executed resets nothing further.
func (c *Coordinator) Trigger(ctx context.Context, reason string) (*Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tasks, err := c.store.ListTasks(models.TaskStatusPending, models.TaskStatusScheduled, models.TaskStatusOverdue)
	if err != nil {
		return nil, fmt.Errorf("load replannable tasks: %w", err)
	}

	res := &Result{Reason: reason, Reset: []string{}, Favored: []string{}}
	for i := range tasks {
		task := &tasks[i]
		if task.Status == models.TaskStatusPending {
			continue
		}
		wasOverdue := task.Status == models.TaskStatusOverdue
		if err := task.TransitionTo(models.TaskStatusPending); err != nil {
			return nil, err
		}
		task.ClearSchedule()
		if err := c.store.SaveTask(task); err != nil {
			return nil, fmt.Errorf("reset task %s: %w", task.ID, err)
		}
		res.Reset = append(res.Reset, task.ID)
		if wasOverdue {
			res.Favored = append(res.Favored, task.ID)
		}
	}

	c.log.Info().Str("reason", reason).Int("reset", len(res.Reset)).Int("overdue", len(res.Favored)).Msg("replan triggered")

	plan, err := c.requester.RequestPlan(ctx, Hint(reason), res.Favored)
	if err != nil {
		c.record(reason, res, "error", err.Error())
		return nil, fmt.Errorf("request plan: %w", err)
	}
	res.Plan = plan

	c.record(reason, res, "success", fmt.Sprintf("Reset %d tasks", len(res.Reset)))
	return res, nil
}

func (c *Coordinator) record(reason string, res *Result, outcome, details string) {
	if c.pdr == nil {
		return
	}
	c.pdr.Record("replan.trigger", map[string]interface{}{
		"reason":  reason,
		"reset":   res.Reset,
		"favored": res.Favored,
	}, outcome, "", details)
}
