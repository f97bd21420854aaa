package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fentz26/cadence/internal/models"
)

// SuggestionItem is one completion candidate.
type SuggestionItem struct {
	Text        string
	Description string
	Type        string // "command", "task", "action"
	match       string
}

// Suggestions completes "/" commands, "@" task references and "!" actions.
type Suggestions struct {
	prefix      string
	query       string
	tasks       []SuggestionItem
	filtered    []SuggestionItem
	selectedIdx int
}

const maxSuggestions = 5

var commandSuggestions = []SuggestionItem{
	{Text: "add", Description: "add <hours> <title>", Type: "command"},
	{Text: "start", Description: "start the selected task", Type: "command"},
	{Text: "done", Description: "complete the selected task", Type: "command"},
	{Text: "cancel", Description: "cancel the selected task", Type: "command"},
	{Text: "plan", Description: "plan pending tasks", Type: "command"},
	{Text: "refine", Description: "refine the last plan with feedback", Type: "command"},
	{Text: "replan", Description: "reset drifting tasks and plan again", Type: "command"},
	{Text: "insights", Description: "show learned patterns", Type: "command"},
	{Text: "monitor", Description: "show the schedule monitor", Type: "command"},
}

var actionSuggestions = []SuggestionItem{
	{Text: "plan-execute", Description: "plan and write events to the calendar", Type: "action"},
	{Text: "replan-execute", Description: "replan and write events to the calendar", Type: "action"},
}

var suggestionHeaders = map[string]string{
	"/": "Commands",
	"@": "Tasks",
	"!": "Quick actions",
}

func NewSuggestions() *Suggestions {
	return &Suggestions{}
}

func (s *Suggestions) source() []SuggestionItem {
	switch s.prefix {
	case "/":
		return commandSuggestions
	case "@":
		return s.tasks
	case "!":
		return actionSuggestions
	}
	return nil
}

// Update re-filters against the current input line.
func (s *Suggestions) Update(input string) {
	s.prefix, s.query = "", ""
	if input != "" {
		if _, ok := suggestionHeaders[input[:1]]; ok {
			s.prefix = input[:1]
			s.query = strings.ToLower(input[1:])
		}
	}
	s.refilter()
}

// SetTasks replaces the "@" candidates. Titles are matched as well as ids.
func (s *Suggestions) SetTasks(tasks []models.Task) {
	s.tasks = s.tasks[:0]
	for _, t := range tasks {
		if t.Status.IsTerminal() {
			continue
		}
		s.tasks = append(s.tasks, SuggestionItem{
			Text:        t.ID,
			Description: fmt.Sprintf("%s (%s)", t.Title, t.Status),
			Type:        "task",
			match:       strings.ToLower(t.Title),
		})
	}
	s.refilter()
}

func (s *Suggestions) refilter() {
	s.filtered = s.filtered[:0]
	s.selectedIdx = 0
	for _, item := range s.source() {
		if s.query == "" || strings.Contains(strings.ToLower(item.Text), s.query) || strings.Contains(item.match, s.query) {
			s.filtered = append(s.filtered, item)
		}
	}
}

func (s *Suggestions) Next() {
	if n := len(s.filtered); n > 0 {
		s.selectedIdx = (s.selectedIdx + 1) % n
	}
}

func (s *Suggestions) Prev() {
	if n := len(s.filtered); n > 0 {
		s.selectedIdx = (s.selectedIdx + n - 1) % n
	}
}

// Selected returns nil when nothing is showing.
func (s *Suggestions) Selected() *SuggestionItem {
	if !s.IsVisible() {
		return nil
	}
	return &s.filtered[s.selectedIdx]
}

func (s *Suggestions) IsVisible() bool {
	return s.prefix != "" && len(s.filtered) > 0
}

func (s *Suggestions) Render(width int) string {
	if !s.IsVisible() {
		return ""
	}

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(secondaryColor).
		Padding(0, 1).
		Width(width - 4)
	header := lipgloss.NewStyle().Bold(true).Foreground(primaryColor)
	selected := lipgloss.NewStyle().Background(primaryColor).Foreground(fgColor).Bold(true)
	muted := lipgloss.NewStyle().Foreground(mutedColor).Italic(true)

	lines := []string{header.Render(suggestionHeaders[s.prefix])}
	for i, item := range s.filtered {
		if i == maxSuggestions {
			lines = append(lines, muted.Render(fmt.Sprintf("  +%d more", len(s.filtered)-maxSuggestions)))
			break
		}
		if i == s.selectedIdx {
			lines = append(lines, selected.Render("> "+item.Text+"  "+item.Description))
			continue
		}
		lines = append(lines, "  "+item.Text+"  "+muted.Render(item.Description))
	}
	return box.Render(strings.Join(lines, "\n"))
}
