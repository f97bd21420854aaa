// Package tui provides the interactive terminal UI for Cadence.
package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fentz26/cadence/internal/models"
)

var (
	// Colors
	primaryColor   = lipgloss.Color("#7C3AED")
	secondaryColor = lipgloss.Color("#6366F1")
	successColor   = lipgloss.Color("#10B981")
	warningColor   = lipgloss.Color("#F59E0B")
	errorColor     = lipgloss.Color("#EF4444")
	mutedColor     = lipgloss.Color("#6B7280")
	fgColor        = lipgloss.Color("#F9FAFB")
	cyanColor      = lipgloss.Color("#06B6D4")

	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#374151")).
			Foreground(fgColor).
			Padding(0, 1)

	inputBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(0, 1)

	taskItemStyle = lipgloss.NewStyle().
			Padding(0, 2)

	selectedStyle = lipgloss.NewStyle().
			Background(primaryColor).
			Foreground(fgColor).
			Bold(true).
			Padding(0, 2)

	helpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Italic(true)

	onlineStyle = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true)

	offlineStyle = lipgloss.NewStyle().
			Foreground(errorColor)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(cyanColor)
)

const (
	modeList     = "list"
	modeDetail   = "detail"
	modePlan     = "plan"
	modeInsights = "insights"
)

var filters = []models.TaskStatus{"", models.TaskStatusPending, models.TaskStatusScheduled, models.TaskStatusInProgress, models.TaskStatusOverdue, models.TaskStatusCompleted}
var filterNames = []string{"ALL", "PENDING", "SCHEDULED", "IN PROGRESS", "OVERDUE", "DONE"}

// App is the main TUI application model.
type App struct {
	client       *Client
	tasks        []models.Task
	selectedIdx  int
	input        textinput.Model
	viewport     viewport.Model
	spinner      spinner.Model
	width        int
	height       int
	mode         string
	currentTask  *models.Task
	decisions    []models.PDREntry
	message      string
	filterIdx    int
	loading      bool
	busy         string
	daemonOnline bool
	monitor      *MonitorStatus
	suggestions  *Suggestions
}

// New creates a new TUI application.
func New(apiAddr string) *App {
	ti := textinput.New()
	ti.Placeholder = "Type: add <hours> <title> | plan | start | done | replan | /help"
	ti.Focus()
	ti.CharLimit = 256
	ti.Width = 80

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(primaryColor)

	return &App{
		client:      NewClient(apiAddr),
		input:       ti,
		viewport:    viewport.New(80, 20),
		spinner:     sp,
		mode:        modeList,
		suggestions: NewSuggestions(),
	}
}

// Run starts the TUI application.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// Init implements tea.Model
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		a.spinner.Tick,
		a.fetchTasks(),
		a.checkDaemon(),
		a.tickCmd(),
	)
}

// Update implements tea.Model
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return a, tea.Quit

		case "esc":
			if a.mode != modeList {
				a.mode = modeList
				a.currentTask = nil
				return a, a.fetchTasks()
			}

		case "up":
			if a.suggestions.IsVisible() {
				a.suggestions.Prev()
			} else if a.mode == modeList && a.selectedIdx > 0 {
				a.selectedIdx--
			} else if a.mode != modeList {
				a.viewport.LineUp(1)
			}

		case "down":
			if a.suggestions.IsVisible() {
				a.suggestions.Next()
			} else if a.mode == modeList && a.selectedIdx < len(a.tasks)-1 {
				a.selectedIdx++
			} else if a.mode != modeList {
				a.viewport.LineDown(1)
			}

		case "tab":
			if a.suggestions.IsVisible() {
				a.acceptSuggestion()
				return a, nil
			}
			if a.mode == modeList {
				a.filterIdx = (a.filterIdx + 1) % len(filters)
				return a, a.fetchTasks()
			}

		case "enter":
			if a.suggestions.IsVisible() {
				a.acceptSuggestion()
				return a, nil
			}
			line := strings.TrimSpace(a.input.Value())
			if line != "" {
				a.input.SetValue("")
				return a, a.executeCommand(line)
			} else if a.mode == modeList && len(a.tasks) > 0 {
				a.mode = modeDetail
				return a, a.fetchTaskDetail(a.tasks[a.selectedIdx].ID)
			}
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.input.Width = msg.Width - 4
		a.viewport.Width = msg.Width
		a.viewport.Height = max(5, msg.Height-10)

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case tasksLoadedMsg:
		a.loading = false
		a.tasks = msg.tasks
		a.suggestions.SetTasks(a.tasks)
		if a.selectedIdx >= len(a.tasks) {
			a.selectedIdx = max(0, len(a.tasks)-1)
		}

	case taskDetailLoadedMsg:
		a.currentTask = msg.task
		a.decisions = msg.decisions
		a.viewport.SetContent(renderTaskDetail(msg.task, msg.decisions))
		a.viewport.GotoTop()

	case planLoadedMsg:
		a.busy = ""
		a.mode = modePlan
		a.message = msg.message
		a.viewport.SetContent(renderPlan(msg.result, a.titles()))
		a.viewport.GotoTop()
		cmds = append(cmds, a.fetchTasks())

	case insightsLoadedMsg:
		a.busy = ""
		a.mode = modeInsights
		a.viewport.SetContent(renderInsights(msg.insights))
		a.viewport.GotoTop()

	case daemonStatusMsg:
		a.daemonOnline = msg.online
		a.monitor = msg.monitor

	case tickMsg:
		return a, tea.Batch(a.checkDaemon(), a.tickCmd())

	case commandResultMsg:
		a.busy = ""
		a.message = msg.message
		return a, a.fetchTasks()

	case errMsg:
		a.busy = ""
		a.loading = false
		a.message = "Error: " + msg.err.Error()
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	cmds = append(cmds, cmd)

	a.suggestions.Update(a.input.Value())

	return a, tea.Batch(cmds...)
}

// View implements tea.Model
func (a *App) View() string {
	var b strings.Builder

	daemonStatus := onlineStyle.Render("● DAEMON")
	if !a.daemonOnline {
		daemonStatus = offlineStyle.Render("○ DAEMON")
	}
	monitorStatus := lipgloss.NewStyle().Foreground(mutedColor).Render("monitor: unknown")
	if a.monitor != nil {
		label := fmt.Sprintf("monitor: %s", a.monitor.State)
		if a.monitor.OverdueDetected > 0 {
			label += fmt.Sprintf(" (%d overdue)", a.monitor.OverdueDetected)
		}
		monitorStatus = lipgloss.NewStyle().Foreground(cyanColor).Render(label)
	}

	header := titleStyle.Render("CADENCE") + "  " + daemonStatus + "  " + monitorStatus
	b.WriteString(header + "\n")
	b.WriteString(strings.Repeat("─", a.width) + "\n")

	contentHeight := a.height - 8
	if contentHeight < 5 {
		contentHeight = 5
	}

	switch a.mode {
	case modeList:
		filterLabel := fmt.Sprintf(" Filter: [%s]", filterNames[a.filterIdx])
		b.WriteString(lipgloss.NewStyle().Foreground(mutedColor).Render(filterLabel) + "\n")
		b.WriteString(a.renderTaskList(contentHeight - 1))
	default:
		b.WriteString(a.viewport.View())
	}

	switch {
	case a.busy != "":
		b.WriteString("\n" + a.spinner.View() + " " + a.busy)
	case a.message != "":
		msgStyle := lipgloss.NewStyle().Foreground(successColor)
		if strings.HasPrefix(a.message, "Error") {
			msgStyle = lipgloss.NewStyle().Foreground(errorColor)
		}
		b.WriteString("\n" + msgStyle.Render(a.message))
	default:
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(inputBoxStyle.Render(a.input.View()))
	if a.suggestions.IsVisible() {
		b.WriteString("\n")
		b.WriteString(a.suggestions.Render(a.width))
	}
	b.WriteString("\n")

	var status string
	switch a.mode {
	case modeList:
		status = fmt.Sprintf(" Tasks: %d | ↑↓:nav | Enter:details | Tab:filter | Ctrl+C:quit", len(a.tasks))
	default:
		status = " ↑↓:scroll | Esc:back | Enter:command | Ctrl+C:quit"
	}
	b.WriteString(statusBarStyle.Width(a.width).Render(status))

	return b.String()
}

func (a *App) renderTaskList(height int) string {
	if a.loading && len(a.tasks) == 0 {
		return "\n  " + a.spinner.View() + " Loading tasks...\n"
	}
	if len(a.tasks) == 0 {
		return "\n  No tasks found. Type: add <hours> <title> to create one.\n"
	}

	var lines []string
	for i, task := range a.tasks {
		when := lipgloss.NewStyle().Foreground(mutedColor).Render(formatWindow(task.ScheduledStart, task.ScheduledEnd))
		if i == a.selectedIdx {
			lines = append(lines, selectedStyle.Render(fmt.Sprintf("▶ %s  %s  %s", statusIcon(task.Status), task.Title, formatWindow(task.ScheduledStart, task.ScheduledEnd))))
		} else {
			lines = append(lines, taskItemStyle.Render(fmt.Sprintf("  %s  %s  %s", formatStatus(task.Status), task.Title, when)))
		}
	}

	if len(lines) > height {
		start := a.selectedIdx - height/2
		if start < 0 {
			start = 0
		}
		end := start + height
		if end > len(lines) {
			end = len(lines)
			start = max(0, end-height)
		}
		lines = lines[start:end]
	}

	return strings.Join(lines, "\n")
}

func (a *App) acceptSuggestion() {
	if selected := a.suggestions.Selected(); selected != nil {
		a.input.SetValue(a.suggestions.prefix + selected.Text + " ")
		a.input.CursorEnd()
		a.suggestions.Update("")
	}
}

func (a *App) titles() map[string]string {
	out := make(map[string]string, len(a.tasks))
	for _, t := range a.tasks {
		out[t.ID] = t.Title
	}
	return out
}

func (a *App) selectedID() string {
	if len(a.tasks) == 0 || a.selectedIdx >= len(a.tasks) {
		return ""
	}
	return a.tasks[a.selectedIdx].ID
}

func (a *App) fetchTasks() tea.Cmd {
	a.loading = true
	filter := string(filters[a.filterIdx])
	return func() tea.Msg {
		tasks, err := a.client.ListTasks(filter)
		if err != nil {
			return errMsg{err}
		}
		return tasksLoadedMsg{tasks}
	}
}

func (a *App) fetchTaskDetail(taskID string) tea.Cmd {
	return func() tea.Msg {
		task, err := a.client.GetTask(taskID)
		if err != nil {
			return errMsg{err}
		}
		decisions, _ := a.client.TaskDecisions(taskID)
		return taskDetailLoadedMsg{task, decisions}
	}
}

func (a *App) checkDaemon() tea.Cmd {
	return func() tea.Msg {
		online, _ := a.client.CheckHealth()
		msg := daemonStatusMsg{online: online}
		if online {
			msg.monitor, _ = a.client.Monitor()
		}
		return msg
	}
}

func (a *App) tickCmd() tea.Cmd {
	return tea.Tick(5*time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// executeCommand runs one line typed into the input box.
func (a *App) executeCommand(line string) tea.Cmd {
	c := parseCommand(line)
	if c.name == "" {
		return nil
	}

	target := c.ref
	if target == "" {
		target = a.selectedID()
	}

	switch c.name {
	case "add":
		hours, title, err := parseAdd(c.args)
		if err != nil {
			return result(err.Error())
		}
		return func() tea.Msg {
			task, err := a.client.CreateTask(title, hours)
			if err != nil {
				return errMsg{err}
			}
			return commandResultMsg{fmt.Sprintf("✓ Created task %s (%s)", shortID(task.ID), formatHours(hours))}
		}

	case "start", "done", "cancel":
		if target == "" {
			return result("No task selected")
		}
		verb := c.name
		return func() tea.Msg {
			var err error
			switch verb {
			case "start":
				err = a.client.StartTask(target)
			case "done":
				err = a.client.CompleteTask(target)
			case "cancel":
				err = a.client.CancelTask(target)
			}
			if err != nil {
				return errMsg{err}
			}
			return commandResultMsg{fmt.Sprintf("✓ %s %s", verb, shortID(target))}
		}

	case "show":
		if target == "" {
			return result("No task selected")
		}
		a.mode = modeDetail
		return a.fetchTaskDetail(target)

	case "plan", "plan-execute":
		execute := c.name == "plan-execute"
		a.busy = "Planning..."
		return func() tea.Msg {
			res, err := a.client.GeneratePlan(execute)
			if err != nil {
				return errMsg{err}
			}
			return planLoadedMsg{res, planMessage(res)}
		}

	case "refine":
		feedback := strings.Join(c.args, " ")
		if feedback == "" {
			return result("Usage: refine <feedback>")
		}
		a.busy = "Refining..."
		return func() tea.Msg {
			plan, err := a.client.RefinePlan(feedback)
			if err != nil {
				return errMsg{err}
			}
			res := &PlanResult{Plan: plan}
			return planLoadedMsg{res, planMessage(res)}
		}

	case "replan", "replan-execute":
		execute := c.name == "replan-execute"
		reason := strings.Join(c.args, " ")
		a.busy = "Replanning..."
		return func() tea.Msg {
			res, err := a.client.Replan(reason, execute)
			if err != nil {
				return errMsg{err}
			}
			return planLoadedMsg{res, fmt.Sprintf("✓ Reset %d task(s). %s", len(res.Reset), planMessage(res))}
		}

	case "insights":
		a.busy = "Loading insights..."
		return func() tea.Msg {
			in, err := a.client.Insights()
			if err != nil {
				return errMsg{err}
			}
			return insightsLoadedMsg{in}
		}

	case "monitor":
		return func() tea.Msg {
			st, err := a.client.Monitor()
			if err != nil {
				return errMsg{err}
			}
			return commandResultMsg{fmt.Sprintf("Monitor %s: %d cycles, %d overdue detected", st.State, st.Cycles, st.OverdueDetected)}
		}

	case "help":
		names := make([]string, 0, len(commandSuggestions))
		for _, s := range commandSuggestions {
			names = append(names, s.Text)
		}
		return result("Commands: " + strings.Join(names, ", "))

	case "q", "quit", "exit":
		return tea.Quit

	default:
		return result(fmt.Sprintf("Unknown: %s (try: add, plan, start, done, replan)", c.name))
	}
}

// command is a parsed input line. "/plan" and "!plan-execute" are the
// same as "plan"; an "@<id>" token names the target task.
type command struct {
	name string
	ref  string
	args []string
}

func parseCommand(line string) command {
	var c command
	for _, f := range strings.Fields(line) {
		switch {
		case c.name == "" && strings.HasPrefix(f, "@"):
			// "@<id>" alone shows the task.
			c.ref = strings.TrimPrefix(f, "@")
		case c.name == "":
			c.name = strings.ToLower(strings.TrimLeft(f, "/!"))
		case c.ref == "" && strings.HasPrefix(f, "@"):
			c.ref = strings.TrimPrefix(f, "@")
		default:
			c.args = append(c.args, f)
		}
	}
	if c.name == "" && c.ref != "" {
		c.name = "show"
	}
	return c
}

// parseAdd reads "<hours> <title...>". Hours accept "1.5" or "90m".
func parseAdd(args []string) (float64, string, error) {
	if len(args) < 2 {
		return 0, "", fmt.Errorf("Usage: add <hours> <title>")
	}
	hours, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		d, derr := time.ParseDuration(args[0])
		if derr != nil {
			return 0, "", fmt.Errorf("Invalid duration %q", args[0])
		}
		hours = models.Hours(d)
	}
	if hours <= 0 {
		return 0, "", fmt.Errorf("Duration must be positive")
	}
	return hours, strings.Join(args[1:], " "), nil
}

func result(message string) tea.Cmd {
	return func() tea.Msg { return commandResultMsg{message} }
}

func planMessage(res *PlanResult) string {
	if res == nil || res.Plan == nil {
		return "No plan"
	}
	msg := fmt.Sprintf("✓ %d session(s) planned", len(res.Plan.ScheduledTasks))
	if res.Execution != nil {
		msg += fmt.Sprintf(", %d task(s) scheduled", len(res.Execution.Scheduled))
	}
	if n := len(res.Plan.Warnings); n > 0 {
		msg += fmt.Sprintf(", %d warning(s)", n)
	}
	return msg
}

func renderPlan(res *PlanResult, titles map[string]string) string {
	var b strings.Builder
	if res == nil || res.Plan == nil {
		return "\n  No plan.\n"
	}
	p := res.Plan

	b.WriteString("\n  " + sectionStyle.Render("Plan") + "\n")
	b.WriteString("  " + p.Reasoning + "\n")

	if len(p.ScheduledTasks) > 0 {
		b.WriteString("\n  " + sectionStyle.Render("Sessions") + "\n")
		for _, st := range p.ScheduledTasks {
			title := titles[st.TaskID]
			if title == "" {
				title = shortID(st.TaskID)
			}
			if st.TotalSessions > 1 {
				title += fmt.Sprintf(" (%d/%d)", st.SplitSession, st.TotalSessions)
			}
			start, end := st.ScheduledStart, st.ScheduledEnd
			b.WriteString(fmt.Sprintf("    %s  %s\n", formatWindow(&start, &end), title))
			if st.Rationale != "" {
				b.WriteString("      " + helpStyle.Render(st.Rationale) + "\n")
			}
		}
	}

	writeList(&b, "Warnings", p.Warnings, warningColor)
	writeList(&b, "Suggestions", p.Suggestions, mutedColor)
	if res.Execution != nil {
		writeList(&b, "Calendar", res.Execution.Warnings, warningColor)
	}
	return b.String()
}

func renderInsights(in *models.Insights) string {
	var b strings.Builder
	b.WriteString("\n  " + sectionStyle.Render("Productivity") + "\n")
	peaks := make([]string, 0, len(in.ProductivitySummary.PeakProductiveHours))
	for _, h := range in.ProductivitySummary.PeakProductiveHours {
		peaks = append(peaks, fmt.Sprintf("%02d:00", h))
	}
	if len(peaks) == 0 {
		peaks = append(peaks, "not learned yet")
	}
	b.WriteString(fmt.Sprintf("    Peak hours:        %s\n", strings.Join(peaks, ", ")))
	b.WriteString(fmt.Sprintf("    Focus span:        %s\n", formatHours(in.ProductivitySummary.AverageFocusDuration)))
	b.WriteString(fmt.Sprintf("    Preferred session: %s\n", formatHours(in.ProductivitySummary.PreferredSessionLength)))

	b.WriteString("\n  " + sectionStyle.Render("Adherence") + "\n")
	b.WriteString(fmt.Sprintf("    On time: %.0f%%\n", in.ScheduleAdherence.OnTimeCompletionRate*100))
	if in.ScheduleAdherence.TendsToRunLate {
		b.WriteString("    Tends to run late\n")
	}
	if in.ScheduleAdherence.TendsToFinishEarly {
		b.WriteString("    Tends to finish early\n")
	}

	b.WriteString("\n  " + sectionStyle.Render("Learning") + "\n")
	b.WriteString(fmt.Sprintf("    Plans: %d  Feedback: %d  Tasks tracked: %d\n",
		in.LearningStats.TotalPlansGenerated, in.LearningStats.TotalFeedbackReceived, in.LearningStats.TasksTracked))

	writeList(&b, "Recommendations", in.Recommendations, successColor)
	return b.String()
}

func renderTaskDetail(t *models.Task, decisions []models.PDREntry) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("\n  %s\n", lipgloss.NewStyle().Bold(true).Render(t.Title)))
	b.WriteString(fmt.Sprintf("  ID: %s\n", shortID(t.ID)))
	b.WriteString(fmt.Sprintf("  Status: %s   Priority: %s\n", formatStatus(t.Status), t.Priority))
	b.WriteString(fmt.Sprintf("  Estimate: %s\n", formatHours(t.EstimatedDuration)))
	if t.Description != "" {
		b.WriteString(fmt.Sprintf("  Description: %s\n", t.Description))
	}
	if t.Deadline != nil {
		b.WriteString(fmt.Sprintf("  Deadline: %s\n", t.Deadline.Local().Format("Mon Jan 2 15:04")))
	}
	if t.ScheduledStart != nil {
		b.WriteString(fmt.Sprintf("  Scheduled: %s\n", formatWindow(t.ScheduledStart, t.ScheduledEnd)))
	}
	if t.ActualDuration != nil {
		b.WriteString(fmt.Sprintf("  Actual: %s\n", formatHours(*t.ActualDuration)))
	}

	if len(decisions) > 0 {
		b.WriteString("\n  " + sectionStyle.Render("Decisions") + "\n")
		for i, d := range decisions {
			if i >= 10 {
				break
			}
			line := fmt.Sprintf("    %s  %s  %s", d.Timestamp.Local().Format("Jan 2 15:04"), d.Action, d.Outcome)
			if d.Details != "" {
				line += "  " + helpStyle.Render(d.Details)
			}
			b.WriteString(line + "\n")
		}
	}
	return b.String()
}

func writeList(b *strings.Builder, title string, items []string, color lipgloss.Color) {
	if len(items) == 0 {
		return
	}
	style := lipgloss.NewStyle().Foreground(color)
	b.WriteString("\n  " + sectionStyle.Render(title) + "\n")
	for _, item := range items {
		b.WriteString("    • " + style.Render(item) + "\n")
	}
}

func formatStatus(status models.TaskStatus) string {
	switch status {
	case models.TaskStatusPending:
		return lipgloss.NewStyle().Foreground(warningColor).Render("○ PENDING")
	case models.TaskStatusScheduled:
		return lipgloss.NewStyle().Foreground(secondaryColor).Render("◐ SCHEDULED")
	case models.TaskStatusInProgress:
		return lipgloss.NewStyle().Foreground(primaryColor).Render("◑ IN PROGRESS")
	case models.TaskStatusCompleted:
		return lipgloss.NewStyle().Foreground(successColor).Render("● DONE")
	case models.TaskStatusOverdue:
		return lipgloss.NewStyle().Foreground(errorColor).Render("! OVERDUE")
	case models.TaskStatusCancelled:
		return lipgloss.NewStyle().Foreground(mutedColor).Render("✗ CANCELLED")
	default:
		return string(status)
	}
}

func statusIcon(status models.TaskStatus) string {
	switch status {
	case models.TaskStatusPending:
		return "○"
	case models.TaskStatusScheduled:
		return "◐"
	case models.TaskStatusInProgress:
		return "◑"
	case models.TaskStatusCompleted:
		return "●"
	case models.TaskStatusOverdue:
		return "!"
	case models.TaskStatusCancelled:
		return "✗"
	default:
		return "?"
	}
}

func formatWindow(start, end *time.Time) string {
	if start == nil || end == nil {
		return ""
	}
	s, e := start.Local(), end.Local()
	if s.YearDay() == e.YearDay() && s.Year() == e.Year() {
		return fmt.Sprintf("%s-%s", s.Format("Mon Jan 2 15:04"), e.Format("15:04"))
	}
	return fmt.Sprintf("%s - %s", s.Format("Mon Jan 2 15:04"), e.Format("Mon Jan 2 15:04"))
}

func formatHours(h float64) string {
	d := models.Duration(h).Round(time.Minute)
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d%time.Hour == 0 {
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
	return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

type commandResultMsg struct {
	message string
}

type errMsg struct {
	err error
}

type tasksLoadedMsg struct {
	tasks []models.Task
}

type taskDetailLoadedMsg struct {
	task      *models.Task
	decisions []models.PDREntry
}

type planLoadedMsg struct {
	result  *PlanResult
	message string
}

type insightsLoadedMsg struct {
	insights *models.Insights
}

type daemonStatusMsg struct {
	online  bool
	monitor *MonitorStatus
}

type tickMsg time.Time
