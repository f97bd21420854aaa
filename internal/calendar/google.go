package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/fentz26/cadence/internal/config"
	"github.com/fentz26/cadence/internal/models"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/time/rate"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Private extended properties written on events created by Cadence.
const (
	taskIDProperty    = "cadence_task_id"
	eventTypeProperty = "cadence_event_type"
)

// Google talks to the Google Calendar API. Calls are paced by a token bucket.
type Google struct {
	srv        *gcal.Service
	calendarID string
	limiter    *rate.Limiter
	log        zerolog.Logger
}

// NewGoogle builds a client from the OAuth client credentials and an already
// authorized token file. It never runs an interactive consent flow.
func NewGoogle(ctx context.Context, cfg config.CalendarConfig, log zerolog.Logger) (*Google, error) {
	if cfg.CredentialsFile == "" || cfg.TokenFile == "" {
		return nil, errors.New("google calendar requires credentials_file and token_file")
	}
	b, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read client credentials %s: %w", cfg.CredentialsFile, err)
	}
	oauthCfg, err := google.ConfigFromJSON(b, gcal.CalendarEventsScope, gcal.CalendarReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parse client credentials: %w", err)
	}
	tok, err := tokenFromFile(cfg.TokenFile)
	if err != nil {
		return nil, err
	}

	srv, err := gcal.NewService(ctx, option.WithHTTPClient(oauthCfg.Client(ctx, tok)))
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	return NewGoogleWithService(srv, cfg, log), nil
}

// NewGoogleWithService wraps an existing calendar service.
func NewGoogleWithService(srv *gcal.Service, cfg config.CalendarConfig, log zerolog.Logger) *Google {
	calendarID := cfg.CalendarID
	if calendarID == "" {
		calendarID = "primary"
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Google{
		srv:        srv,
		calendarID: calendarID,
		limiter:    rate.NewLimiter(limit, burst),
		log:        log.With().Str("component", "calendar").Str("provider", "google").Logger(),
	}
}

func (g *Google) Name() string { return "google" }

// GetEvents lists single (expanded) events. The API bounds are exclusive, so
// the query is widened by a second and the result filtered inclusively.
func (g *Google) GetEvents(ctx context.Context, start, end time.Time) ([]models.CalendarEvent, error) {
	call := g.srv.Events.List(g.calendarID).
		TimeMin(start.Add(-time.Second).Format(time.RFC3339)).
		TimeMax(end.Add(time.Second).Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx)

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	var out []models.CalendarEvent
	err := call.Pages(ctx, func(page *gcal.Events) error {
		for _, item := range page.Items {
			e, ok := fromGoogleEvent(item)
			if !ok || !e.Overlaps(start, end) {
				continue
			}
			out = append(out, e)
		}
		return g.limiter.Wait(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("list google events: %w", err)
	}
	return out, nil
}

func (g *Google) CreateEvent(ctx context.Context, e *models.CalendarEvent) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", err
	}
	created, err := g.srv.Events.Insert(g.calendarID, toGoogleEvent(e)).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("insert google event: %w", err)
	}
	g.log.Debug().Str("external_id", created.Id).Str("task_id", e.TaskID).Msg("event created")
	return created.Id, nil
}

func (g *Google) UpdateEvent(ctx context.Context, e *models.CalendarEvent) error {
	if e.ExternalID == "" {
		return ErrNoExternalID
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return err
	}
	if _, err := g.srv.Events.Patch(g.calendarID, e.ExternalID, toGoogleEvent(e)).Context(ctx).Do(); err != nil {
		return fmt.Errorf("patch google event %s: %w", e.ExternalID, err)
	}
	return nil
}

func (g *Google) DeleteEvent(ctx context.Context, externalID string) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return err
	}
	err := g.srv.Events.Delete(g.calendarID, externalID).Context(ctx).Do()
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && (apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete google event %s: %w", externalID, err)
	}
	return nil
}

func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open token file: %w", err)
	}
	defer f.Close()
	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("decode token from %s: %w", path, err)
	}
	return tok, nil
}

func toGoogleEvent(e *models.CalendarEvent) *gcal.Event {
	ge := &gcal.Event{
		Summary:     e.Title,
		Description: e.Description,
		Start:       &gcal.EventDateTime{DateTime: e.StartTime.Format(time.RFC3339)},
		End:         &gcal.EventDateTime{DateTime: e.EndTime.Format(time.RFC3339)},
	}
	private := map[string]string{eventTypeProperty: string(e.Type)}
	if e.TaskID != "" {
		private[taskIDProperty] = e.TaskID
	}
	ge.ExtendedProperties = &gcal.EventExtendedProperties{Private: private}
	return ge
}

// fromGoogleEvent converts an API event. Cancelled and transparent (free)
// events are skipped.
func fromGoogleEvent(ge *gcal.Event) (models.CalendarEvent, bool) {
	if ge == nil || ge.Status == "cancelled" || ge.Transparency == "transparent" {
		return models.CalendarEvent{}, false
	}
	start, ok := parseEventTime(ge.Start)
	if !ok {
		return models.CalendarEvent{}, false
	}
	end, ok := parseEventTime(ge.End)
	if !ok {
		return models.CalendarEvent{}, false
	}

	e := models.CalendarEvent{
		ExternalID:  ge.Id,
		Title:       ge.Summary,
		Description: ge.Description,
		StartTime:   start,
		EndTime:     end,
		Type:        models.EventTypeMeeting,
		Source:      "google",
		Synced:      true,
	}
	if ge.ExtendedProperties != nil {
		if t := ge.ExtendedProperties.Private[eventTypeProperty]; t != "" {
			e.Type = models.EventType(t)
		}
		e.TaskID = ge.ExtendedProperties.Private[taskIDProperty]
	}
	return e, true
}

// parseEventTime handles timed events and all-day dates. All-day dates are
// taken in the event's time zone when given, otherwise UTC.
func parseEventTime(dt *gcal.EventDateTime) (time.Time, bool) {
	if dt == nil {
		return time.Time{}, false
	}
	if dt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, dt.DateTime)
		return t, err == nil
	}
	if dt.Date == "" {
		return time.Time{}, false
	}
	loc := time.UTC
	if dt.TimeZone != "" {
		if l, err := time.LoadLocation(dt.TimeZone); err == nil {
			loc = l
		}
	}
	t, err := time.ParseInLocation("2006-01-02", dt.Date, loc)
	return t, err == nil
}
