package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fentz26/cadence/internal/models"
	"github.com/spf13/cobra"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage tasks",
}

var taskAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a new task",
	RunE:  runTaskAdd,
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	RunE:  runTaskList,
}

var taskShowCmd = &cobra.Command{
	Use:   "show [task-id]",
	Short: "Show task details and decisions",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskShow,
}

var taskStartCmd = &cobra.Command{
	Use:   "start [task-id]",
	Short: "Mark a scheduled task in progress",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskStart,
}

var taskDoneCmd = &cobra.Command{
	Use:   "done [task-id]",
	Short: "Mark a task completed",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskDone,
}

var taskCancelCmd = &cobra.Command{
	Use:   "cancel [task-id]",
	Short: "Cancel a task and remove its calendar event",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskCancel,
}

var (
	taskTitle      string
	taskDesc       string
	taskHours      float64
	taskPriority   string
	taskDeadline   string
	taskPrefer     string
	taskDeepFocus  bool
	taskCanSplit   bool
	taskMinSession float64
	taskTags       []string
	taskDepends    []string
	taskStatus     string
)

func init() {
	taskCmd.AddCommand(taskAddCmd, taskListCmd, taskShowCmd, taskStartCmd, taskDoneCmd, taskCancelCmd)

	taskAddCmd.Flags().StringVar(&taskTitle, "title", "", "Task title (required)")
	taskAddCmd.Flags().StringVar(&taskDesc, "desc", "", "Task description")
	taskAddCmd.Flags().Float64Var(&taskHours, "hours", 0, "Estimated duration in hours (required)")
	taskAddCmd.Flags().StringVar(&taskPriority, "priority", "medium", "Priority (low, medium, high, urgent)")
	taskAddCmd.Flags().StringVar(&taskDeadline, "deadline", "", "Deadline (RFC 3339, 2006-01-02 or '2006-01-02 15:04')")
	taskAddCmd.Flags().StringVar(&taskPrefer, "prefer", "", "Preferred time of day (morning, afternoon, evening)")
	taskAddCmd.Flags().BoolVar(&taskDeepFocus, "deep", false, "Requires deep focus")
	taskAddCmd.Flags().BoolVar(&taskCanSplit, "split", false, "Can be split into sessions")
	taskAddCmd.Flags().Float64Var(&taskMinSession, "min-session", 0, "Minimum session length in hours when split")
	taskAddCmd.Flags().StringSliceVar(&taskTags, "tags", nil, "Comma-separated tags")
	taskAddCmd.Flags().StringSliceVar(&taskDepends, "depends", nil, "IDs of tasks that must finish first")
	taskAddCmd.MarkFlagRequired("title")
	taskAddCmd.MarkFlagRequired("hours")

	taskListCmd.Flags().StringVar(&taskStatus, "status", "", "Filter by status, comma-separated (pending, scheduled, in_progress, overdue, completed, cancelled)")
}

func runTaskAdd(cmd *cobra.Command, args []string) error {
	task := models.Task{
		Title:              taskTitle,
		Description:        taskDesc,
		EstimatedDuration:  taskHours,
		Priority:           models.Priority(taskPriority),
		PreferredTimeOfDay: taskPrefer,
		RequiresDeepFocus:  taskDeepFocus,
		CanSplit:           taskCanSplit,
		Tags:               taskTags,
		Dependencies:       taskDepends,
	}
	if taskDeadline != "" {
		deadline, err := parseWhen(taskDeadline)
		if err != nil {
			return err
		}
		task.Deadline = &deadline
	}
	if taskMinSession > 0 {
		task.MinSessionDuration = &taskMinSession
	}

	var created models.Task
	if err := apiPost("/tasks", task, &created); err != nil {
		return err
	}

	fmt.Printf("Created task: %s\n", created.ID)
	return nil
}

func runTaskList(cmd *cobra.Command, args []string) error {
	url := "/tasks"
	if taskStatus != "" {
		url += "?status=" + taskStatus
	}

	var tasks []models.Task
	if err := apiGet(url, &tasks); err != nil {
		return err
	}

	if len(tasks) == 0 {
		fmt.Println("No tasks found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tPRIORITY\tHOURS\tSCHEDULED")
	for _, t := range tasks {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2g\t%s\n",
			truncateID(t.ID), truncate(t.Title, 40), t.Status, t.Priority, t.EstimatedDuration,
			formatWindow(t.ScheduledStart, t.ScheduledEnd))
	}
	w.Flush()
	return nil
}

func runTaskShow(cmd *cobra.Command, args []string) error {
	var task models.Task
	if err := apiGet("/tasks/"+args[0], &task); err != nil {
		return err
	}

	fmt.Printf("ID:          %s\n", task.ID)
	fmt.Printf("Title:       %s\n", task.Title)
	if task.Description != "" {
		fmt.Printf("Description: %s\n", task.Description)
	}
	fmt.Printf("Status:      %s\n", task.Status)
	fmt.Printf("Priority:    %s\n", task.Priority)
	fmt.Printf("Estimate:    %.2gh\n", task.EstimatedDuration)
	if task.Deadline != nil {
		fmt.Printf("Deadline:    %s\n", task.Deadline.Local().Format(time.RFC1123))
	}
	if task.ScheduledStart != nil {
		fmt.Printf("Scheduled:   %s\n", formatWindow(task.ScheduledStart, task.ScheduledEnd))
	}
	if task.ActualDuration != nil {
		fmt.Printf("Actual:      %.2fh\n", *task.ActualDuration)
	}
	if len(task.Dependencies) > 0 {
		fmt.Printf("Depends on:  %s\n", strings.Join(task.Dependencies, ", "))
	}
	if len(task.Tags) > 0 {
		fmt.Printf("Tags:        %s\n", strings.Join(task.Tags, ", "))
	}
	fmt.Printf("Created:     %s\n", task.CreatedAt.Local().Format(time.RFC1123))

	var decisions []models.PDREntry
	if err := apiGet("/tasks/"+args[0]+"/decisions", &decisions); err != nil {
		return err
	}
	if len(decisions) > 0 {
		fmt.Println("\nDecisions:")
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		for _, d := range decisions {
			fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", d.Timestamp.Local().Format("Jan 2 15:04"), d.Action, d.Outcome, d.Details)
		}
		w.Flush()
	}
	return nil
}

func runTaskStart(cmd *cobra.Command, args []string) error {
	var task models.Task
	if err := apiPost("/tasks/"+args[0]+"/start", nil, &task); err != nil {
		return err
	}
	fmt.Printf("Started %q at %s\n", task.Title, task.ActualStart.Local().Format("15:04"))
	return nil
}

func runTaskDone(cmd *cobra.Command, args []string) error {
	var res struct {
		Task      models.Task               `json:"task"`
		Learned   bool                      `json:"learned"`
		Deviation *models.DeviationAnalysis `json:"deviation"`
	}
	if err := apiPost("/tasks/"+args[0]+"/complete", nil, &res); err != nil {
		return err
	}

	fmt.Printf("Completed %q\n", res.Task.Title)
	if res.Learned {
		fmt.Println("Learned from this completion.")
	}
	if d := res.Deviation; d != nil {
		fmt.Printf("Deviation: %+.1fh (%s)\n", d.DeviationHours, d.DeviationReason)
		for _, insight := range d.PatternInsights {
			fmt.Printf("  - %s\n", insight)
		}
		if d.FuturePlanningNotes != "" {
			fmt.Printf("Note: %s\n", d.FuturePlanningNotes)
		}
	}
	return nil
}

func runTaskCancel(cmd *cobra.Command, args []string) error {
	if err := apiPost("/tasks/"+args[0]+"/cancel", nil, nil); err != nil {
		return err
	}
	fmt.Printf("Cancelled task %s\n", args[0])
	return nil
}

// --- Helpers ---

// parseWhen accepts RFC 3339 or a local date with optional time.
func parseWhen(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range []string{"2006-01-02 15:04", "2006-01-02T15:04", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q: use RFC 3339, 2006-01-02 or '2006-01-02 15:04'", s)
}

func formatWindow(start, end *time.Time) string {
	if start == nil || end == nil {
		return ""
	}
	s, e := start.Local(), end.Local()
	if s.Year() == e.Year() && s.YearDay() == e.YearDay() {
		return s.Format("Mon Jan 2 15:04") + "-" + e.Format("15:04")
	}
	return s.Format("Mon Jan 2 15:04") + " - " + e.Format("Mon Jan 2 15:04")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func truncateID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
