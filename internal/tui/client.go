package tui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/fentz26/cadence/internal/models"
)

// DefaultClientTimeout is the default timeout for API requests. Planning
// through an external command can take a while.
const DefaultClientTimeout = 2 * time.Minute

// Client wraps HTTP calls to the Cadence API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client with timeout
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: DefaultClientTimeout,
		},
	}
}

// PlanResult is returned by plan and replan calls.
type PlanResult struct {
	Plan      *models.Plan            `json:"plan"`
	Reset     []string                `json:"reset_task_ids,omitempty"`
	Execution *models.ExecutionResult `json:"execution,omitempty"`
}

// MonitorStatus mirrors the daemon's monitor snapshot.
type MonitorStatus struct {
	State           string        `json:"state"`
	Interval        time.Duration `json:"interval"`
	Cycles          int           `json:"cycles"`
	OverdueDetected int           `json:"overdue_detected"`
	LastError       string        `json:"last_error,omitempty"`
}

// ListTasks fetches tasks, optionally filtered by status
func (c *Client) ListTasks(status string) ([]models.Task, error) {
	path := "/tasks"
	if status != "" {
		path += "?status=" + url.QueryEscape(status)
	}
	var tasks []models.Task
	return tasks, c.get(path, &tasks)
}

// GetTask fetches a single task
func (c *Client) GetTask(id string) (*models.Task, error) {
	var task models.Task
	if err := c.get("/tasks/"+id, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// TaskDecisions fetches the decision records for a task
func (c *Client) TaskDecisions(id string) ([]models.PDREntry, error) {
	var entries []models.PDREntry
	return entries, c.get("/tasks/"+id+"/decisions", &entries)
}

// CreateTask creates a new pending task
func (c *Client) CreateTask(title string, hours float64) (*models.Task, error) {
	var task models.Task
	err := c.post("/tasks", models.Task{Title: title, EstimatedDuration: hours}, &task)
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// StartTask marks a task in progress
func (c *Client) StartTask(id string) error {
	return c.post("/tasks/"+id+"/start", nil, nil)
}

// CompleteTask marks a task completed
func (c *Client) CompleteTask(id string) error {
	return c.post("/tasks/"+id+"/complete", nil, nil)
}

// CancelTask cancels a task
func (c *Client) CancelTask(id string) error {
	return c.post("/tasks/"+id+"/cancel", nil, nil)
}

// GeneratePlan plans every pending task over the default window
func (c *Client) GeneratePlan(execute bool) (*PlanResult, error) {
	var res PlanResult
	err := c.post("/plans", map[string]interface{}{"execute": execute}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// RefinePlan refines the last plan with feedback
func (c *Client) RefinePlan(feedback string) (*models.Plan, error) {
	var plan models.Plan
	if err := c.post("/plans/refine", map[string]string{"feedback": feedback}, &plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

// Replan resets drifting tasks and plans them again
func (c *Client) Replan(reason string, execute bool) (*PlanResult, error) {
	var res PlanResult
	err := c.post("/replan", map[string]interface{}{"reason": reason, "execute": execute}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Insights fetches what the daemon has learned
func (c *Client) Insights() (*models.Insights, error) {
	var in models.Insights
	if err := c.get("/insights", &in); err != nil {
		return nil, err
	}
	return &in, nil
}

// Monitor fetches the monitor status
func (c *Client) Monitor() (*MonitorStatus, error) {
	var st MonitorStatus
	if err := c.get("/monitor", &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// CheckHealth checks if the daemon is healthy
func (c *Client) CheckHealth() (bool, error) {
	resp, err := c.httpClient.Get(c.baseURL + "/health")
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, nil
	}

	var health struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return false, err
	}
	return health.OK, nil
}

func (c *Client) get(path string, out interface{}) error {
	resp, err := c.httpClient.Get(c.baseURL + path)
	if err != nil {
		return err
	}
	return decodeResponse(resp, out)
}

func (c *Client) post(path string, data, out interface{}) error {
	var body io.Reader = http.NoBody
	if data != nil {
		jsonData, err := json.Marshal(data)
		if err != nil {
			return err
		}
		body = bytes.NewReader(jsonData)
	}

	resp, err := c.httpClient.Post(c.baseURL+path, "application/json", body)
	if err != nil {
		return err
	}
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out interface{}) error {
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error (%d): %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
