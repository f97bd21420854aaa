package main

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fentz26/cadence/internal/models"
	"github.com/spf13/cobra"
)

var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Show what has been learned about your work",
	RunE:  runInsights,
}

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Show the schedule monitor status",
	RunE:  runMonitorStatus,
}

var monitorStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the schedule monitor",
	RunE:  runMonitorStart,
}

var monitorStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the schedule monitor",
	RunE:  runMonitorStop,
}

var slotsCmd = &cobra.Command{
	Use:   "slots",
	Short: "List free time between calendar events",
	RunE:  runSlots,
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List calendar events",
	RunE:  runEvents,
}

var (
	monitorInterval time.Duration
	windowStart     string
	windowEnd       string
	slotMin         time.Duration
)

func init() {
	monitorCmd.AddCommand(monitorStartCmd, monitorStopCmd)
	monitorStartCmd.Flags().DurationVar(&monitorInterval, "interval", 0, "Polling interval (default from config)")

	for _, c := range []*cobra.Command{slotsCmd, eventsCmd} {
		c.Flags().StringVar(&windowStart, "start", "", "Window start (default now)")
		c.Flags().StringVar(&windowEnd, "end", "", "Window end (default start plus the configured window)")
	}
	slotsCmd.Flags().DurationVar(&slotMin, "min", 30*time.Minute, "Shortest slot to list")
}

type monitorStatus struct {
	State           string        `json:"state"`
	Interval        time.Duration `json:"interval"`
	Cycles          int           `json:"cycles"`
	LastCycle       *time.Time    `json:"last_cycle,omitempty"`
	LastError       string        `json:"last_error,omitempty"`
	OverdueDetected int           `json:"overdue_detected"`
}

func runInsights(cmd *cobra.Command, args []string) error {
	var in models.Insights
	if err := apiGet("/insights", &in); err != nil {
		return err
	}

	peaks := make([]string, 0, len(in.ProductivitySummary.PeakProductiveHours))
	for _, h := range in.ProductivitySummary.PeakProductiveHours {
		peaks = append(peaks, fmt.Sprintf("%02d:00", h))
	}
	if len(peaks) == 0 {
		peaks = []string{"not learned yet"}
	}

	fmt.Println("Productivity")
	fmt.Printf("  Peak hours:         %s\n", strings.Join(peaks, ", "))
	fmt.Printf("  Average focus:      %.1fh\n", in.ProductivitySummary.AverageFocusDuration)
	fmt.Printf("  Preferred session:  %.1fh\n", in.ProductivitySummary.PreferredSessionLength)
	fmt.Println("Schedule adherence")
	fmt.Printf("  On time:            %.0f%%\n", in.ScheduleAdherence.OnTimeCompletionRate*100)
	fmt.Printf("  Runs late:          %t\n", in.ScheduleAdherence.TendsToRunLate)
	fmt.Printf("  Finishes early:     %t\n", in.ScheduleAdherence.TendsToFinishEarly)
	fmt.Println("Preferences")
	fmt.Printf("  Morning deep work:  %t\n", in.Preferences.PrefersMorningDeepWork)
	fmt.Printf("  Max daily hours:    %.1f\n", in.Preferences.MaxDailyHours)
	fmt.Printf("  Buffer:             %.2fh\n", in.Preferences.BufferBetweenTasks)
	fmt.Printf("  Weekends:           %t\n", in.Preferences.WeekendWorkEnabled)
	fmt.Println("Learning")
	fmt.Printf("  Plans generated:    %d\n", in.LearningStats.TotalPlansGenerated)
	fmt.Printf("  Feedback received:  %d\n", in.LearningStats.TotalFeedbackReceived)
	fmt.Printf("  Tasks tracked:      %d\n", in.LearningStats.TasksTracked)
	printList("Recommendations", in.Recommendations)

	var patterns models.RefinementSummary
	if err := apiGet("/refinements/patterns", &patterns); err != nil {
		return err
	}
	if patterns.TotalRefinements > 0 {
		fmt.Printf("\nRefinements (%d):\n", patterns.TotalRefinements)
		for _, p := range patterns.Patterns {
			fmt.Printf("  %-12s %3d  %.0f%%\n", p.Category, p.Count, p.Percentage)
		}
	}
	return nil
}

func runMonitorStatus(cmd *cobra.Command, args []string) error {
	var st monitorStatus
	if err := apiGet("/monitor", &st); err != nil {
		return err
	}
	printMonitor(st)
	return nil
}

func runMonitorStart(cmd *cobra.Command, args []string) error {
	body := map[string]string{}
	if monitorInterval > 0 {
		body["interval"] = monitorInterval.String()
	}
	var resp struct {
		Started bool          `json:"started"`
		Status  monitorStatus `json:"status"`
	}
	if err := apiPost("/monitor/start", body, &resp); err != nil {
		return err
	}
	if !resp.Started {
		fmt.Println("Monitor was already running")
	}
	printMonitor(resp.Status)
	return nil
}

func runMonitorStop(cmd *cobra.Command, args []string) error {
	var st monitorStatus
	if err := apiPost("/monitor/stop", nil, &st); err != nil {
		return err
	}
	printMonitor(st)
	return nil
}

func printMonitor(st monitorStatus) {
	fmt.Printf("State:     %s\n", st.State)
	if st.Interval > 0 {
		fmt.Printf("Interval:  %s\n", st.Interval)
	}
	fmt.Printf("Cycles:    %d\n", st.Cycles)
	fmt.Printf("Overdue:   %d detected\n", st.OverdueDetected)
	if st.LastCycle != nil {
		fmt.Printf("Last run:  %s\n", st.LastCycle.Local().Format(time.RFC1123))
	}
	if st.LastError != "" {
		fmt.Printf("Error:     %s\n", st.LastError)
	}
}

func runSlots(cmd *cobra.Command, args []string) error {
	q, err := windowQuery()
	if err != nil {
		return err
	}
	q.Set("min", slotMin.String())

	var free []struct {
		Start time.Time `json:"start"`
		End   time.Time `json:"end"`
	}
	if err := apiGet("/slots?"+q.Encode(), &free); err != nil {
		return err
	}
	if len(free) == 0 {
		fmt.Println("No free slots")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FREE\tHOURS")
	for _, s := range free {
		start, end := s.Start, s.End
		fmt.Fprintf(w, "%s\t%.2g\n", formatWindow(&start, &end), models.Hours(end.Sub(start)))
	}
	w.Flush()
	return nil
}

func runEvents(cmd *cobra.Command, args []string) error {
	q, err := windowQuery()
	if err != nil {
		return err
	}

	var resp struct {
		Events   []models.CalendarEvent `json:"events"`
		Warnings []string               `json:"warnings"`
	}
	if err := apiGet("/events?"+q.Encode(), &resp); err != nil {
		return err
	}
	if len(resp.Events) == 0 {
		fmt.Println("No events")
	} else {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "WHEN\tTITLE\tTYPE\tSOURCE\tSYNCED")
		for _, e := range resp.Events {
			start, end := e.StartTime, e.EndTime
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\n", formatWindow(&start, &end), truncate(e.Title, 40), e.Type, e.Source, e.Synced)
		}
		w.Flush()
	}
	printList("Warnings", resp.Warnings)
	return nil
}

func windowQuery() (url.Values, error) {
	q := url.Values{}
	for key, raw := range map[string]string{"start": windowStart, "end": windowEnd} {
		if raw == "" {
			continue
		}
		t, err := parseWhen(raw)
		if err != nil {
			return nil, err
		}
		q.Set(key, t.Format(time.RFC3339))
	}
	return q, nil
}
