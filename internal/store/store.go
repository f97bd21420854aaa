// Package store provides SQLite-backed persistence for Cadence.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fentz26/cadence/internal/models"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// timeLayout is fixed width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store provides access to the Cadence SQLite database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New creates a new Store and runs migrations.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// The monitor and the request path share one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate runs idempotent schema migrations.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT,
		priority TEXT NOT NULL DEFAULT 'medium',
		estimated_duration REAL NOT NULL,
		deadline TEXT,
		preferred_time_of_day TEXT,
		requires_deep_focus INTEGER NOT NULL DEFAULT 0,
		can_split INTEGER NOT NULL DEFAULT 0,
		min_session_duration REAL,
		status TEXT NOT NULL DEFAULT 'pending',
		scheduled_start TEXT,
		scheduled_end TEXT,
		actual_start TEXT,
		actual_end TEXT,
		actual_duration REAL,
		tags TEXT,
		dependencies TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS calendar_events (
		id TEXT PRIMARY KEY,
		external_id TEXT,
		title TEXT NOT NULL,
		description TEXT,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		event_type TEXT NOT NULL,
		source TEXT NOT NULL,
		synced INTEGER NOT NULL DEFAULT 0,
		task_id TEXT,
		last_synced TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS profiles (
		user_id TEXT PRIMARY KEY,
		data TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS plan_refinements (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		original_plan TEXT,
		refinement_request TEXT NOT NULL,
		refined_plan TEXT,
		feedback_category TEXT,
		plan_date TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS completion_samples (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		task_id TEXT,
		estimated REAL NOT NULL,
		actual REAL NOT NULL,
		priority TEXT,
		requires_deep_focus INTEGER NOT NULL DEFAULT 0,
		tags TEXT,
		recorded_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS pdr (
		id TEXT PRIMARY KEY,
		action TEXT NOT NULL,
		inputs_hash TEXT NOT NULL,
		outcome TEXT NOT NULL,
		task_id TEXT,
		details TEXT,
		timestamp TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
	CREATE INDEX IF NOT EXISTS idx_events_range ON calendar_events(start_time, end_time);
	CREATE INDEX IF NOT EXISTS idx_events_task_id ON calendar_events(task_id);
	CREATE INDEX IF NOT EXISTS idx_refinements_user ON plan_refinements(user_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_samples_user ON completion_samples(user_id);
	CREATE INDEX IF NOT EXISTS idx_pdr_task_id ON pdr(task_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// --- Task Operations ---

const taskColumns = `id, title, description, priority, estimated_duration, deadline, preferred_time_of_day,
	requires_deep_focus, can_split, min_session_duration, status, scheduled_start, scheduled_end,
	actual_start, actual_end, actual_duration, tags, dependencies, created_at, updated_at`

// SaveTask inserts or updates a task, assigning an ID to new tasks.
func (s *Store) SaveTask(task *models.Task) error {
	now := s.now()
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	if task.Status == "" {
		task.Status = models.TaskStatusPending
	}
	if task.Priority == "" {
		task.Priority = models.PriorityMedium
	}
	task.UpdatedAt = now

	_, err := s.db.Exec(
		`INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			priority = excluded.priority,
			estimated_duration = excluded.estimated_duration,
			deadline = excluded.deadline,
			preferred_time_of_day = excluded.preferred_time_of_day,
			requires_deep_focus = excluded.requires_deep_focus,
			can_split = excluded.can_split,
			min_session_duration = excluded.min_session_duration,
			status = excluded.status,
			scheduled_start = excluded.scheduled_start,
			scheduled_end = excluded.scheduled_end,
			actual_start = excluded.actual_start,
			actual_end = excluded.actual_end,
			actual_duration = excluded.actual_duration,
			tags = excluded.tags,
			dependencies = excluded.dependencies,
			updated_at = excluded.updated_at`,
		task.ID, task.Title, task.Description, task.Priority, task.EstimatedDuration,
		nullTime(task.Deadline), task.PreferredTimeOfDay, task.RequiresDeepFocus, task.CanSplit,
		nullFloat(task.MinSessionDuration), task.Status,
		nullTime(task.ScheduledStart), nullTime(task.ScheduledEnd),
		nullTime(task.ActualStart), nullTime(task.ActualEnd), nullFloat(task.ActualDuration),
		encodeStrings(task.Tags), encodeStrings(task.Dependencies),
		formatTime(task.CreatedAt), formatTime(task.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("save task: %w", err)
	}
	return nil
}

// GetTask retrieves a task by ID. It returns nil, nil when the task does not exist.
func (s *Store) GetTask(id string) (*models.Task, error) {
	row := s.db.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query task: %w", err)
	}
	return task, nil
}

// ListTasks returns tasks in the given statuses, or all tasks when none are given.
func (s *Store) ListTasks(statuses ...models.TaskStatus) ([]models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks`
	var args []interface{}

	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, st := range statuses {
			placeholders[i] = "?"
			args = append(args, st)
		}
		query += ` WHERE status IN (` + strings.Join(placeholders, ", ") + `)`
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// DeleteTask removes a task.
func (s *Store) DeleteTask(id string) error {
	_, err := s.db.Exec(`DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row scanner) (*models.Task, error) {
	var task models.Task
	var description, preferred, tags, deps sql.NullString
	var deadline, schedStart, schedEnd, actualStart, actualEnd sql.NullString
	var minSession, actualDuration sql.NullFloat64
	var createdAt, updatedAt string

	err := row.Scan(&task.ID, &task.Title, &description, &task.Priority, &task.EstimatedDuration,
		&deadline, &preferred, &task.RequiresDeepFocus, &task.CanSplit, &minSession, &task.Status,
		&schedStart, &schedEnd, &actualStart, &actualEnd, &actualDuration, &tags, &deps,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	task.Description = description.String
	task.PreferredTimeOfDay = preferred.String
	task.Deadline = parseNullTime(deadline)
	task.ScheduledStart = parseNullTime(schedStart)
	task.ScheduledEnd = parseNullTime(schedEnd)
	task.ActualStart = parseNullTime(actualStart)
	task.ActualEnd = parseNullTime(actualEnd)
	task.MinSessionDuration = parseNullFloat(minSession)
	task.ActualDuration = parseNullFloat(actualDuration)
	task.Tags = decodeStrings(tags)
	task.Dependencies = decodeStrings(deps)
	task.CreatedAt = parseTime(createdAt)
	task.UpdatedAt = parseTime(updatedAt)
	return &task, nil
}

// --- Calendar Event Operations ---

const eventColumns = `id, external_id, title, description, start_time, end_time, event_type, source,
	synced, task_id, last_synced, created_at, updated_at`

// SaveEvent inserts or updates a calendar event, assigning an ID to new events.
func (s *Store) SaveEvent(e *models.CalendarEvent) error {
	now := s.now()
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now

	_, err := s.db.Exec(
		`INSERT INTO calendar_events (`+eventColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			external_id = excluded.external_id,
			title = excluded.title,
			description = excluded.description,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			event_type = excluded.event_type,
			source = excluded.source,
			synced = excluded.synced,
			task_id = excluded.task_id,
			last_synced = excluded.last_synced,
			updated_at = excluded.updated_at`,
		e.ID, e.ExternalID, e.Title, e.Description, formatTime(e.StartTime), formatTime(e.EndTime),
		e.Type, e.Source, e.Synced, e.TaskID, nullTime(e.LastSynced),
		formatTime(e.CreatedAt), formatTime(e.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("save event: %w", err)
	}
	return nil
}

// GetEvent retrieves an event by ID. It returns nil, nil when not found.
func (s *Store) GetEvent(id string) (*models.CalendarEvent, error) {
	return s.queryEvent(`SELECT `+eventColumns+` FROM calendar_events WHERE id = ?`, id)
}

// GetEventByExternalID retrieves an event by its provider-assigned ID.
func (s *Store) GetEventByExternalID(externalID string) (*models.CalendarEvent, error) {
	return s.queryEvent(`SELECT `+eventColumns+` FROM calendar_events WHERE external_id = ? LIMIT 1`, externalID)
}

// ListEventsByTaskID returns every event placed for a task, earliest first.
func (s *Store) ListEventsByTaskID(taskID string) ([]models.CalendarEvent, error) {
	return s.listEvents(
		`SELECT `+eventColumns+` FROM calendar_events WHERE task_id = ? ORDER BY start_time ASC, created_at ASC`,
		taskID,
	)
}

func (s *Store) queryEvent(query string, arg string) (*models.CalendarEvent, error) {
	e, err := scanEvent(s.db.QueryRow(query, arg))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query event: %w", err)
	}
	return e, nil
}

// ListEvents returns events overlapping [start, end] inclusively: an event is
// included when it ends at or after start and begins at or before end.
func (s *Store) ListEvents(start, end time.Time) ([]models.CalendarEvent, error) {
	return s.listEvents(
		`SELECT `+eventColumns+` FROM calendar_events WHERE end_time >= ? AND start_time <= ? ORDER BY start_time ASC`,
		formatTime(start), formatTime(end),
	)
}

func (s *Store) listEvents(query string, args ...interface{}) ([]models.CalendarEvent, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []models.CalendarEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// DeleteEvent removes an event.
func (s *Store) DeleteEvent(id string) error {
	_, err := s.db.Exec(`DELETE FROM calendar_events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}

func scanEvent(row scanner) (*models.CalendarEvent, error) {
	var e models.CalendarEvent
	var externalID, description, taskID, lastSynced sql.NullString
	var start, end, createdAt, updatedAt string

	err := row.Scan(&e.ID, &externalID, &e.Title, &description, &start, &end, &e.Type, &e.Source,
		&e.Synced, &taskID, &lastSynced, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	e.ExternalID = externalID.String
	e.Description = description.String
	e.TaskID = taskID.String
	e.StartTime = parseTime(start)
	e.EndTime = parseTime(end)
	e.LastSynced = parseNullTime(lastSynced)
	e.CreatedAt = parseTime(createdAt)
	e.UpdatedAt = parseTime(updatedAt)
	return &e, nil
}

// --- Profile Operations ---

// GetProfile loads a user profile. It returns nil, nil when none is stored.
func (s *Store) GetProfile(userID string) (*models.UserProfile, error) {
	var data string
	err := s.db.QueryRow(`SELECT data FROM profiles WHERE user_id = ?`, userID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query profile: %w", err)
	}

	var p models.UserProfile
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return &p, nil
}

// SaveProfile stores a user profile, replacing any previous version.
func (s *Store) SaveProfile(p *models.UserProfile) error {
	now := s.now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO profiles (user_id, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		p.UserID, string(data), formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

// --- Refinement Operations ---

// AddRefinement appends a plan refinement to the log.
func (s *Store) AddRefinement(r *models.PlanRefinement) error {
	now := s.now()
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	if r.PlanDate.IsZero() {
		r.PlanDate = now
	}

	original, err := encodePlan(r.OriginalPlan)
	if err != nil {
		return err
	}
	refined, err := encodePlan(r.RefinedPlan)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(
		`INSERT INTO plan_refinements (id, user_id, original_plan, refinement_request, refined_plan, feedback_category, plan_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.UserID, original, r.RefinementRequest, refined, r.FeedbackCategory,
		formatTime(r.PlanDate), formatTime(r.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert refinement: %w", err)
	}
	return nil
}

// ListRefinements returns a user's refinements newest first, optionally
// filtered by category. A limit <= 0 returns all of them.
func (s *Store) ListRefinements(userID, category string, limit int) ([]models.PlanRefinement, error) {
	query := `SELECT id, user_id, original_plan, refinement_request, refined_plan, feedback_category, plan_date, created_at
		FROM plan_refinements WHERE user_id = ?`
	args := []interface{}{userID}
	if category != "" {
		query += ` AND feedback_category = ?`
		args = append(args, category)
	}
	query += ` ORDER BY created_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query refinements: %w", err)
	}
	defer rows.Close()

	var out []models.PlanRefinement
	for rows.Next() {
		var r models.PlanRefinement
		var original, refined, category sql.NullString
		var planDate, createdAt string
		if err := rows.Scan(&r.ID, &r.UserID, &original, &r.RefinementRequest, &refined, &category, &planDate, &createdAt); err != nil {
			return nil, fmt.Errorf("scan refinement: %w", err)
		}
		r.OriginalPlan = decodePlan(original)
		r.RefinedPlan = decodePlan(refined)
		r.FeedbackCategory = category.String
		r.PlanDate = parseTime(planDate)
		r.CreatedAt = parseTime(createdAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

// --- Completion Sample Operations ---

// AddCompletionSample records an estimate/actual observation.
func (s *Store) AddCompletionSample(c *models.CompletionSample) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.RecordedAt.IsZero() {
		c.RecordedAt = s.now()
	}
	_, err := s.db.Exec(
		`INSERT INTO completion_samples (id, user_id, task_id, estimated, actual, priority, requires_deep_focus, tags, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.TaskID, c.Estimated, c.Actual, c.Priority, c.RequiresDeepFocus,
		encodeStrings(c.Tags), formatTime(c.RecordedAt),
	)
	if err != nil {
		return fmt.Errorf("insert completion sample: %w", err)
	}
	return nil
}

// ListCompletionSamples returns a user's samples oldest first.
func (s *Store) ListCompletionSamples(userID string) ([]models.CompletionSample, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, task_id, estimated, actual, priority, requires_deep_focus, tags, recorded_at
		FROM completion_samples WHERE user_id = ? ORDER BY recorded_at ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query completion samples: %w", err)
	}
	defer rows.Close()

	var out []models.CompletionSample
	for rows.Next() {
		var c models.CompletionSample
		var taskID, priority, tags sql.NullString
		var recordedAt string
		if err := rows.Scan(&c.ID, &c.UserID, &taskID, &c.Estimated, &c.Actual, &priority, &c.RequiresDeepFocus, &tags, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan completion sample: %w", err)
		}
		c.TaskID = taskID.String
		c.Priority = models.Priority(priority.String)
		c.Tags = decodeStrings(tags)
		c.RecordedAt = parseTime(recordedAt)
		out = append(out, c)
	}
	return out, rows.Err()
}

// --- PDR Operations ---

// WritePDR writes a Process Decision Record.
func (s *Store) WritePDR(action, inputsHash, outcome, taskID, details string) (*models.PDREntry, error) {
	pdr := &models.PDREntry{
		ID:         uuid.New().String(),
		Action:     action,
		InputsHash: inputsHash,
		Outcome:    outcome,
		TaskID:     taskID,
		Details:    details,
		Timestamp:  s.now(),
	}

	_, err := s.db.Exec(
		`INSERT INTO pdr (id, action, inputs_hash, outcome, task_id, details, timestamp) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		pdr.ID, pdr.Action, pdr.InputsHash, pdr.Outcome, pdr.TaskID, pdr.Details, formatTime(pdr.Timestamp),
	)
	if err != nil {
		return nil, fmt.Errorf("insert pdr: %w", err)
	}
	return pdr, nil
}

// ListPDR returns decision records newest first, for one task when taskID is set.
func (s *Store) ListPDR(taskID string, limit int) ([]models.PDREntry, error) {
	query := `SELECT id, action, inputs_hash, outcome, task_id, details, timestamp FROM pdr`
	var args []interface{}
	if taskID != "" {
		query += ` WHERE task_id = ?`
		args = append(args, taskID)
	}
	query += ` ORDER BY timestamp DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query pdr: %w", err)
	}
	defer rows.Close()

	var out []models.PDREntry
	for rows.Next() {
		var p models.PDREntry
		var task, details sql.NullString
		var ts string
		if err := rows.Scan(&p.ID, &p.Action, &p.InputsHash, &p.Outcome, &task, &details, &ts); err != nil {
			return nil, fmt.Errorf("scan pdr: %w", err)
		}
		p.TaskID = task.String
		p.Details = details.String
		p.Timestamp = parseTime(ts)
		out = append(out, p)
	}
	return out, rows.Err()
}

// --- encoding helpers ---

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

func nullFloat(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}

func parseNullFloat(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

func encodeStrings(values []string) string {
	if len(values) == 0 {
		return "[]"
	}
	data, _ := json.Marshal(values)
	return string(data)
}

func decodeStrings(s sql.NullString) []string {
	if !s.Valid || s.String == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s.String), &out); err != nil || len(out) == 0 {
		return nil
	}
	return out
}

func encodePlan(p *models.Plan) (interface{}, error) {
	if p == nil {
		return nil, nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode plan: %w", err)
	}
	return string(data), nil
}

func decodePlan(s sql.NullString) *models.Plan {
	if !s.Valid || s.String == "" {
		return nil
	}
	var p models.Plan
	if err := json.Unmarshal([]byte(s.String), &p); err != nil {
		return nil
	}
	return &p
}
