// Package monitor watches scheduled tasks and flags drift from the plan.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fentz26/cadence/internal/audit"
	"github.com/fentz26/cadence/internal/models"
	"github.com/rs/zerolog"
)

// State is the monitor lifecycle state.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
)

// TaskStore is the slice of the task store the monitor needs.
type TaskStore interface {
	ListTasks(statuses ...models.TaskStatus) ([]models.Task, error)
	SaveTask(task *models.Task) error
}

// Hooks receive observations from a cycle. Both run on the monitor goroutine.
type Hooks struct {
	// LateStart is called for a scheduled task that has not started well past
	// its scheduled start. The task status is left unchanged.
	LateStart func(task models.Task, late time.Duration)
	// Overdue is called once per cycle with the tasks that cycle marked overdue.
	Overdue func(tasks []models.Task)
}

// Status is a snapshot of the monitor.
type Status struct {
	State           State         `json:"state"`
	Interval        time.Duration `json:"interval"`
	Cycles          int           `json:"cycles"`
	LastCycle       *time.Time    `json:"last_cycle,omitempty"`
	LastError       string        `json:"last_error,omitempty"`
	OverdueDetected int           `json:"overdue_detected"`
}

// Monitor polls the task store on an interval. At most one polling loop runs
// at a time and its cycles never overlap, even across Stop and Start.
type Monitor struct {
	store  TaskStore
	pdr    *audit.PDRWriter
	config Config
	log    zerolog.Logger
	now    func() time.Time

	mu       sync.Mutex
	hooks    Hooks
	state    State
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}

	cycles          int
	lastCycle       *time.Time
	lastError       string
	overdueDetected int
}

// New creates a monitor in the Idle state. pdr may be nil.
func New(s TaskStore, pdr *audit.PDRWriter, cfg Config, log zerolog.Logger) *Monitor {
	def := DefaultConfig()
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = def.StopTimeout
	}
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	return &Monitor{
		store:  s,
		pdr:    pdr,
		config: cfg,
		log:    log.With().Str("component", "monitor").Logger(),
		now:    func() time.Time { return time.Now().UTC() },
		state:  StateIdle,
	}
}

// SetHooks replaces the observation hooks.
func (m *Monitor) SetHooks(h Hooks) {
	m.mu.Lock()
	m.hooks = h
	m.mu.Unlock()
}

// Start moves the monitor from Idle to Running and launches the polling loop.
// A non-positive interval uses the configured default. Starting a running
// monitor logs a warning and returns false.
func (m *Monitor) Start(interval time.Duration) bool {
	if interval <= 0 {
		interval = m.config.Interval
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateRunning {
		m.log.Warn().Msg("monitor already running")
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	prev := m.done
	done := make(chan struct{})

	m.state = StateRunning
	m.interval = interval
	m.cancel = cancel
	m.done = done

	go m.loop(ctx, interval, prev, done)
	m.log.Info().Dur("interval", interval).Msg("monitor started")
	return true
}

// Stop moves the monitor to Idle and waits for the loop to exit, at most
// StopTimeout. If the wait times out the state is still Idle and the loop
// exits by itself once its in-flight cycle finishes.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if m.state != StateRunning {
		m.mu.Unlock()
		return
	}
	m.state = StateIdle
	m.cancel()
	done := m.done
	timeout := m.config.StopTimeout
	m.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		m.log.Info().Msg("monitor stopped")
	case <-timer.C:
		m.log.Warn().Dur("timeout", timeout).Msg("monitor loop still finishing a cycle; detached")
	}
}

// State returns the current lifecycle state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Status returns a snapshot of the monitor counters.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := Status{
		State:           m.state,
		Interval:        m.interval,
		Cycles:          m.cycles,
		LastError:       m.lastError,
		OverdueDetected: m.overdueDetected,
	}
	if m.lastCycle != nil {
		t := *m.lastCycle
		st.LastCycle = &t
	}
	return st
}

func (m *Monitor) loop(ctx context.Context, interval time.Duration, prev, done chan struct{}) {
	defer close(done)

	// A previous loop may still be finishing a cycle after a timed-out Stop.
	if prev != nil {
		select {
		case <-prev:
		case <-ctx.Done():
			return
		}
	}

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		m.RunCycle()
		timer.Reset(interval)
	}
}

// RunCycle runs one polling cycle on the calling goroutine. Errors and panics
// are logged and recorded in Status, never returned.
func (m *Monitor) RunCycle() {
	err := m.safeCycle()

	now := m.now()
	m.mu.Lock()
	m.cycles++
	m.lastCycle = &now
	if err != nil {
		m.lastError = err.Error()
	} else {
		m.lastError = ""
	}
	m.mu.Unlock()

	if err != nil {
		m.log.Error().Err(err).Msg("monitor cycle failed")
	}
}

func (m *Monitor) safeCycle() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("monitor cycle panic: %v", r)
		}
	}()
	return m.cycle()
}

func (m *Monitor) cycle() error {
	// In-progress work is left alone: the user is on it and will complete it.
	tasks, err := m.store.ListTasks(models.TaskStatusScheduled)
	if err != nil {
		return fmt.Errorf("load scheduled tasks: %w", err)
	}

	m.mu.Lock()
	hooks := m.hooks
	m.mu.Unlock()

	now := m.now()
	var overdue []models.Task
	var firstErr error

	for i := range tasks {
		task := &tasks[i]

		if task.Status == models.TaskStatusScheduled && task.ScheduledStart != nil {
			if late := now.Sub(*task.ScheduledStart); late > m.config.LateStartThreshold {
				m.log.Info().Str("task_id", task.ID).Str("title", task.Title).
					Dur("late", late).Msg("scheduled task has not started")
				if hooks.LateStart != nil {
					hooks.LateStart(*task, late)
				}
			}
		}

		if task.ScheduledEnd == nil || !now.After(*task.ScheduledEnd) {
			continue
		}
		if err := task.TransitionTo(models.TaskStatusOverdue); err != nil {
			continue
		}
		if err := m.store.SaveTask(task); err != nil {
			m.log.Error().Err(err).Str("task_id", task.ID).Msg("persist overdue task")
			if firstErr == nil {
				firstErr = fmt.Errorf("save overdue task %s: %w", task.ID, err)
			}
			continue
		}

		if m.pdr != nil {
			m.pdr.Record("task.overdue", map[string]interface{}{
				"task_id":       task.ID,
				"scheduled_end": task.ScheduledEnd,
			}, "success", task.ID, fmt.Sprintf("Missed scheduled end by %s", now.Sub(*task.ScheduledEnd).Round(time.Minute)))
		}
		m.log.Warn().Str("task_id", task.ID).Str("title", task.Title).Msg("task overdue")
		overdue = append(overdue, *task)
	}

	if len(overdue) > 0 {
		m.mu.Lock()
		m.overdueDetected += len(overdue)
		m.mu.Unlock()
		if hooks.Overdue != nil {
			hooks.Overdue(overdue)
		}
	}
	return firstErr
}
