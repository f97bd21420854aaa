package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/fentz26/cadence/internal/config"
	"github.com/fentz26/cadence/internal/models"
	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Plan pending tasks into free calendar time",
	Long: `Generates a plan for every pending task. The plan is saved locally so it
can be refined or executed afterwards.`,
	RunE: runPlanGenerate,
}

var planRefineCmd = &cobra.Command{
	Use:   "refine [feedback...]",
	Short: "Refine the last plan with free-text feedback",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runPlanRefine,
}

var planExecuteCmd = &cobra.Command{
	Use:   "execute",
	Short: "Write the last plan to the calendar",
	RunE:  runPlanExecute,
}

var planShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the last saved plan",
	RunE:  runPlanShow,
}

var replanCmd = &cobra.Command{
	Use:   "replan [reason...]",
	Short: "Reset drifting tasks and plan them again",
	RunE:  runReplan,
}

var (
	planStart   string
	planEnd     string
	planContext string
	planExecute bool
	planFile    string
)

func init() {
	planCmd.AddCommand(planRefineCmd, planExecuteCmd, planShowCmd)

	planCmd.Flags().StringVar(&planStart, "start", "", "Window start (default now)")
	planCmd.Flags().StringVar(&planEnd, "end", "", "Window end (default start plus the configured window)")
	planCmd.Flags().StringVar(&planContext, "context", "", "Extra context for the planner")
	planCmd.Flags().BoolVar(&planExecute, "execute", false, "Write the plan to the calendar immediately")
	planCmd.PersistentFlags().StringVar(&planFile, "file", "", "Saved plan file (default ~/.cadence/last_plan.json)")

	replanCmd.Flags().BoolVar(&planExecute, "execute", false, "Write the new plan to the calendar")
}

type planResponse struct {
	Plan      *models.Plan            `json:"plan"`
	Reset     []string                `json:"reset_task_ids,omitempty"`
	Execution *models.ExecutionResult `json:"execution,omitempty"`
}

func runPlanGenerate(cmd *cobra.Command, args []string) error {
	req := map[string]interface{}{
		"context": planContext,
		"execute": planExecute,
	}
	for key, raw := range map[string]string{"window_start": planStart, "window_end": planEnd} {
		if raw == "" {
			continue
		}
		t, err := parseWhen(raw)
		if err != nil {
			return err
		}
		req[key] = t
	}

	var resp planResponse
	if err := apiPost("/plans", req, &resp); err != nil {
		return err
	}
	if err := savePlan(resp.Plan); err != nil {
		return err
	}

	printPlan(resp.Plan, taskTitles())
	printExecution(resp.Execution)
	return nil
}

func runPlanRefine(cmd *cobra.Command, args []string) error {
	previous, err := loadPlan()
	if err != nil {
		return err
	}

	var refined models.Plan
	body := map[string]interface{}{"feedback": strings.Join(args, " "), "plan": previous}
	if err := apiPost("/plans/refine", body, &refined); err != nil {
		return err
	}
	if err := savePlan(&refined); err != nil {
		return err
	}

	printPlan(&refined, taskTitles())
	return nil
}

func runPlanExecute(cmd *cobra.Command, args []string) error {
	plan, err := loadPlan()
	if err != nil {
		return err
	}

	var res models.ExecutionResult
	if err := apiPost("/plans/execute", plan, &res); err != nil {
		return err
	}
	printExecution(&res)
	return nil
}

func runPlanShow(cmd *cobra.Command, args []string) error {
	plan, err := loadPlan()
	if err != nil {
		return err
	}
	printPlan(plan, taskTitles())
	return nil
}

func runReplan(cmd *cobra.Command, args []string) error {
	body := map[string]interface{}{
		"reason":  strings.Join(args, " "),
		"execute": planExecute,
	}

	var resp planResponse
	if err := apiPost("/replan", body, &resp); err != nil {
		return err
	}
	if err := savePlan(resp.Plan); err != nil {
		return err
	}

	fmt.Printf("Reset %d task(s)\n\n", len(resp.Reset))
	printPlan(resp.Plan, taskTitles())
	printExecution(resp.Execution)
	return nil
}

// --- Saved plan ---

func planPath() string {
	if planFile != "" {
		return planFile
	}
	return filepath.Join(config.Dir(), "last_plan.json")
}

func savePlan(plan *models.Plan) error {
	if plan == nil {
		return nil
	}
	data, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return err
	}
	path := planPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create plan dir: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

func loadPlan() (*models.Plan, error) {
	data, err := os.ReadFile(planPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no saved plan; run 'cadence plan' first")
		}
		return nil, err
	}
	var plan models.Plan
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("parse saved plan: %w", err)
	}
	return &plan, nil
}

// --- Output ---

// taskTitles maps task IDs to titles for display. Errors just mean IDs are shown.
func taskTitles() map[string]string {
	var tasks []models.Task
	titles := make(map[string]string)
	if err := apiGet("/tasks", &tasks); err != nil {
		return titles
	}
	for _, t := range tasks {
		titles[t.ID] = t.Title
	}
	return titles
}

func printPlan(plan *models.Plan, titles map[string]string) {
	if plan == nil {
		fmt.Println("No plan")
		return
	}
	fmt.Println(plan.Reasoning)

	if len(plan.ScheduledTasks) > 0 {
		fmt.Println()
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "WHEN\tTASK\tHOURS\tWHY")
		for _, st := range plan.ScheduledTasks {
			title := titles[st.TaskID]
			if title == "" {
				title = truncateID(st.TaskID)
			}
			if st.TotalSessions > 1 {
				title = fmt.Sprintf("%s (%d/%d)", title, st.SplitSession, st.TotalSessions)
			}
			start, end := st.ScheduledStart, st.ScheduledEnd
			fmt.Fprintf(w, "%s\t%s\t%.2g\t%s\n", formatWindow(&start, &end), truncate(title, 40), st.DurationHours, st.Rationale)
		}
		w.Flush()
	}

	printList("Warnings", plan.Warnings)
	printList("Suggestions", plan.Suggestions)
}

func printExecution(res *models.ExecutionResult) {
	if res == nil {
		return
	}
	fmt.Printf("\nScheduled %d task(s), wrote %d event(s)\n", len(res.Scheduled), len(res.Events))
	printList("Calendar warnings", res.Warnings)
}

func printList(title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Printf("\n%s:\n", title)
	for _, item := range items {
		fmt.Printf("  - %s\n", item)
	}
}
