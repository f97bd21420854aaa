// Package planner produces schedules for pending tasks. The local planner is
// a greedy placer over free working time; the exec planner delegates to an
// external command speaking JSON on stdin and stdout.
package planner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fentz26/cadence/internal/config"
	"github.com/fentz26/cadence/internal/learner"
	"github.com/fentz26/cadence/internal/models"
	"github.com/rs/zerolog"
)

// ErrUnknownPlanner is returned for an unsupported planning.planner value.
var ErrUnknownPlanner = errors.New("unknown planner")

// Request is everything a planner needs to schedule tasks.
type Request struct {
	Tasks       []models.Task          `json:"tasks"`
	Busy        []models.CalendarEvent `json:"busy"`
	Profile     *models.UserProfile    `json:"profile"`
	Context     string                 `json:"context,omitempty"`
	Favored     []string               `json:"favored,omitempty"`
	WindowStart time.Time              `json:"window_start"`
	WindowEnd   time.Time              `json:"window_end"`
}

// DeviationRequest describes a completion that missed its scheduled end.
type DeviationRequest struct {
	Task         models.Task         `json:"task"`
	ScheduledEnd time.Time           `json:"scheduled_end"`
	ActualEnd    time.Time           `json:"actual_end"`
	Profile      *models.UserProfile `json:"profile"`
}

// Hours is the signed deviation, positive when late.
func (r DeviationRequest) Hours() float64 {
	return r.ActualEnd.Sub(r.ScheduledEnd).Hours()
}

// Collaborator generates and refines plans.
type Collaborator interface {
	Name() string
	Generate(ctx context.Context, req Request) (*models.Plan, error)
	// Refine revises previous using free-text feedback, in the context of the
	// most recent Generate call.
	Refine(ctx context.Context, feedback string, previous *models.Plan) (*models.Plan, error)
	AnalyzeDeviation(ctx context.Context, req DeviationRequest) (*models.DeviationAnalysis, error)
}

// New returns the planner selected by cfg.Planner.
func New(cfg config.PlanningConfig, l *learner.Learner, log zerolog.Logger) (Collaborator, error) {
	switch cfg.Planner {
	case "", config.PlannerLocal:
		return NewLocal(l, cfg.HorizonDays, log), nil
	case config.PlannerExec:
		if cfg.Command == "" {
			return nil, errors.New("exec planner requires planning.command")
		}
		return NewExec(cfg.Command, cfg.Args, cfg.Timeout, log), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlanner, cfg.Planner)
	}
}
