// Package calendar provides access to the user's calendar through a single
// gateway interface with a local and a Google Calendar provider.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fentz26/cadence/internal/config"
	"github.com/fentz26/cadence/internal/models"
	"github.com/rs/zerolog"
)

var (
	// ErrUnknownProvider is returned for an unsupported calendar.provider value.
	ErrUnknownProvider = errors.New("unknown calendar provider")
	// ErrNoExternalID is returned when updating an event that was never synced.
	ErrNoExternalID = errors.New("event has no external id")
)

// Gateway is the calendar capability used by the service.
type Gateway interface {
	// Name identifies the provider, also used as the event source.
	Name() string
	// GetEvents returns busy events overlapping [start, end] inclusively.
	GetEvents(ctx context.Context, start, end time.Time) ([]models.CalendarEvent, error)
	// CreateEvent writes e to the calendar and returns its external id.
	CreateEvent(ctx context.Context, e *models.CalendarEvent) (string, error)
	// UpdateEvent rewrites the event identified by e.ExternalID.
	UpdateEvent(ctx context.Context, e *models.CalendarEvent) error
	// DeleteEvent removes an event by external id. Missing events are not an error.
	DeleteEvent(ctx context.Context, externalID string) error
}

// EventStore is the part of the store backing the local provider.
type EventStore interface {
	SaveEvent(e *models.CalendarEvent) error
	ListEvents(start, end time.Time) ([]models.CalendarEvent, error)
	GetEventByExternalID(externalID string) (*models.CalendarEvent, error)
	DeleteEvent(id string) error
}

// New returns the gateway selected by cfg.Provider.
func New(ctx context.Context, cfg config.CalendarConfig, s EventStore, log zerolog.Logger) (Gateway, error) {
	switch cfg.Provider {
	case "", config.ProviderLocal:
		return NewLocal(s), nil
	case config.ProviderGoogle:
		return NewGoogle(ctx, cfg, log)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}
