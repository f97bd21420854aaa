package planner

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/fentz26/cadence/internal/models"
)

// Fallback texts for unusable planner output.
const (
	parseFailedReasoning = "Failed to parse plan"
	parseFailedWarning   = "Could not parse planner response"
	analysisFailedReason = "Analysis failed"
)

// extractJSON returns the body of the first fenced block, preferring a
// ```json fence, or the whole text when there is none.
func extractJSON(text string) string {
	for _, fence := range []string{"```json", "```"} {
		i := strings.Index(text, fence)
		if i < 0 {
			continue
		}
		body := text[i+len(fence):]
		if j := strings.Index(body, "```"); j >= 0 {
			body = body[:j]
		}
		return strings.TrimSpace(body)
	}
	return strings.TrimSpace(text)
}

// ParsePlan decodes planner output. Malformed output yields an empty plan
// carrying a warning instead of an error.
func ParsePlan(text string) *models.Plan {
	var plan models.Plan
	if err := json.Unmarshal([]byte(extractJSON(text)), &plan); err != nil {
		return models.EmptyPlan(parseFailedReasoning, parseFailedWarning)
	}
	normalize(&plan)
	return &plan
}

// ParseDeviation decodes a deviation analysis, falling back to a stub.
func ParseDeviation(text string, req DeviationRequest) *models.DeviationAnalysis {
	var a models.DeviationAnalysis
	if err := json.Unmarshal([]byte(extractJSON(text)), &a); err != nil {
		a = models.DeviationAnalysis{DeviationReason: analysisFailedReason}
	}
	a.TaskID = req.Task.ID
	a.DeviationHours = req.Hours()
	if a.PatternInsights == nil {
		a.PatternInsights = []string{}
	}
	return &a
}

func normalize(p *models.Plan) {
	if p.Warnings == nil {
		p.Warnings = []string{}
	}
	if p.Suggestions == nil {
		p.Suggestions = []string{}
	}
	if p.ScheduledTasks == nil {
		p.ScheduledTasks = []models.ScheduledTask{}
	}
	if p.GeneratedAt.IsZero() {
		p.GeneratedAt = time.Now().UTC()
	}
}
