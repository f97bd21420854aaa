package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/fentz26/cadence/internal/models"
	"github.com/rs/zerolog"
)

// Turn is one exchange kept for refinement.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// execInput is written to the command's stdin. The command answers on stdout
// with a plan (or deviation analysis) as JSON, optionally inside a ```json
// fence. Times are RFC 3339.
type execInput struct {
	Op           string            `json:"op"`
	Prompt       string            `json:"prompt"`
	Request      *Request          `json:"request,omitempty"`
	Feedback     string            `json:"feedback,omitempty"`
	PreviousPlan *models.Plan      `json:"previous_plan,omitempty"`
	Deviation    *DeviationRequest `json:"deviation,omitempty"`
	History      []Turn            `json:"history,omitempty"`
}

// Exec runs an external planning command once per call.
type Exec struct {
	command string
	args    []string
	timeout time.Duration
	log     zerolog.Logger

	mu      sync.Mutex
	history []Turn
}

// NewExec creates an exec planner. A non-positive timeout means no limit
// beyond the caller's context.
func NewExec(command string, args []string, timeout time.Duration, log zerolog.Logger) *Exec {
	return &Exec{
		command: command,
		args:    args,
		timeout: timeout,
		log:     log.With().Str("component", "planner").Str("planner", "exec").Logger(),
	}
}

func (e *Exec) Name() string { return "exec" }

func (e *Exec) Generate(ctx context.Context, req Request) (*models.Plan, error) {
	prompt := planningPrompt(req)
	out, err := e.run(ctx, execInput{Op: "generate", Prompt: prompt, Request: &req})
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.history = []Turn{{Role: "user", Content: prompt}, {Role: "assistant", Content: out}}
	e.mu.Unlock()

	return e.parse(out), nil
}

func (e *Exec) Refine(ctx context.Context, feedback string, previous *models.Plan) (*models.Plan, error) {
	prompt := refinePrompt(feedback)

	e.mu.Lock()
	history := append([]Turn(nil), e.history...)
	e.mu.Unlock()

	out, err := e.run(ctx, execInput{Op: "refine", Prompt: prompt, Feedback: feedback, PreviousPlan: previous, History: history})
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.history = append(e.history, Turn{Role: "user", Content: prompt}, Turn{Role: "assistant", Content: out})
	e.mu.Unlock()

	return e.parse(out), nil
}

// AnalyzeDeviation never fails: command errors degrade to a stub analysis.
func (e *Exec) AnalyzeDeviation(ctx context.Context, req DeviationRequest) (*models.DeviationAnalysis, error) {
	out, err := e.run(ctx, execInput{Op: "analyze_deviation", Prompt: deviationPrompt(req), Deviation: &req})
	if err != nil {
		e.log.Warn().Err(err).Str("task_id", req.Task.ID).Msg("deviation analysis failed")
		out = ""
	}
	return ParseDeviation(out, req), nil
}

func (e *Exec) parse(out string) *models.Plan {
	plan := ParsePlan(out)
	if plan.Reasoning == parseFailedReasoning {
		e.log.Warn().Int("bytes", len(out)).Msg("planner output is not a plan")
	}
	return plan
}

func (e *Exec) run(ctx context.Context, in execInput) (string, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	payload, err := json.Marshal(in)
	if err != nil {
		return "", fmt.Errorf("encode planner input: %w", err)
	}

	cmd := exec.CommandContext(ctx, e.command, e.args...)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	began := time.Now()
	err = cmd.Run()
	e.log.Debug().Str("op", in.Op).Dur("took", time.Since(began)).Msg("planner command finished")

	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", fmt.Errorf("planner command: %w", ctxErr)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("planner command exited %d: %s", exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return "", fmt.Errorf("run planner command: %w", err)
	}
	return stdout.String(), nil
}
